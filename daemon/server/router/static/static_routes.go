package static

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/containerd/errdefs"
	"github.com/containerd/log"
	"github.com/docker/go-units"
	"github.com/pkg/errors"
)

func (sr *staticRouter) serveFile(ctx context.Context, w http.ResponseWriter, r *http.Request, vars map[string]string) error {
	urlPath := r.URL.Path
	if !strings.HasPrefix(urlPath, "/") {
		urlPath = "/" + urlPath
	}

	name, fi, err := sr.resolve(urlPath)
	if err != nil {
		return err
	}

	// typeName is the name the content type is derived from: the requested
	// file, or the index file for a directory.
	typeName := urlPath
	switch {
	case fi.IsDir() && !strings.HasSuffix(urlPath, "/"):
		if !sr.opts.Redirect {
			return errors.Wrap(errdefs.ErrNotFound, urlPath)
		}
		redirectToDir(w, r, path.Clean(urlPath))
		return nil
	case fi.IsDir():
		var index string
		name, index, err = sr.resolveIndex(name, urlPath)
		if err != nil {
			return err
		}
		typeName = path.Join(urlPath, index)
	case strings.HasSuffix(urlPath, "/"):
		return errors.Wrap(errdefs.ErrNotFound, urlPath)
	}

	f, err := os.Open(name)
	if err != nil {
		return convertFSError(err, urlPath)
	}
	defer f.Close()

	fi, err = f.Stat()
	if err != nil {
		return convertFSError(err, urlPath)
	}
	if !fi.Mode().IsRegular() {
		return errors.Wrap(errdefs.ErrNotFound, urlPath)
	}

	sr.setHeaders(w, typeName, fi)

	log.G(ctx).WithFields(log.Fields{
		"file": name,
		"size": units.HumanSize(float64(fi.Size())),
	}).Debug("Serving file")

	var modtime time.Time
	if sr.opts.LastModified {
		modtime = fi.ModTime()
	}
	http.ServeContent(w, r, fi.Name(), modtime, f)
	return nil
}

func (sr *staticRouter) setHeaders(w http.ResponseWriter, name string, fi os.FileInfo) {
	h := w.Header()
	ctype := mime.TypeByExtension(filepath.Ext(name))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	h.Set("Content-Type", ctype)
	h.Set("Cache-Control", "public, max-age="+strconv.Itoa(sr.opts.MaxAge))
	if sr.opts.ETag {
		h.Set("ETag", weakETag(fi))
	}
}

// weakETag returns a weak validator built from the size and modification
// time of the file.
func weakETag(fi os.FileInfo) string {
	return fmt.Sprintf(`W/"%x-%x"`, fi.Size(), fi.ModTime().UnixMilli())
}

// redirectToDir redirects to the directory at the cleaned path dir, with a
// trailing slash, keeping the query string.
func redirectToDir(w http.ResponseWriter, r *http.Request, dir string) {
	target := url.URL{Path: strings.TrimSuffix(dir, "/") + "/", RawQuery: r.URL.RawQuery}
	http.Redirect(w, r, target.String(), http.StatusMovedPermanently)
}
