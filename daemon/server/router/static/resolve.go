package static

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/containerd/errdefs"
	"github.com/moby/isoserve/daemon/config"
	"github.com/moby/sys/symlink"
	"github.com/pkg/errors"
)

// resolve maps the request path to a path below the root directory, and
// returns it along with the information of the file it names. Symlinks are
// evaluated as if the root was the file system root, so the returned path is
// always inside the root.
func (sr *staticRouter) resolve(urlPath string) (string, os.FileInfo, error) {
	if strings.IndexByte(urlPath, 0) >= 0 {
		return "", nil, errors.Wrapf(errdefs.ErrInvalidArgument, "invalid path %q", urlPath)
	}
	if escapesRoot(urlPath) {
		return "", nil, errors.Wrap(errdefs.ErrPermissionDenied, urlPath)
	}

	clean := path.Clean("/" + urlPath)
	if err := sr.checkDotfiles(clean); err != nil {
		return "", nil, errors.Wrap(err, urlPath)
	}

	name, err := symlink.FollowSymlinkInScope(filepath.Join(sr.opts.Root, filepath.FromSlash(clean)), sr.opts.Root)
	if err != nil {
		return "", nil, convertFSError(err, urlPath)
	}
	fi, err := os.Stat(name)
	if err != nil {
		return "", nil, convertFSError(err, urlPath)
	}
	return name, fi, nil
}

// resolveIndex returns the resolved path of the first index file found in
// dir, along with the index entry that matched.
func (sr *staticRouter) resolveIndex(dir, urlPath string) (string, string, error) {
	for _, index := range sr.opts.Index {
		if index == "" {
			continue
		}
		name, err := symlink.FollowSymlinkInScope(filepath.Join(dir, index), sr.opts.Root)
		if err == nil {
			var fi os.FileInfo
			if fi, err = os.Stat(name); err == nil && fi.Mode().IsRegular() {
				return name, index, nil
			}
		}
		if err != nil {
			if isNotExist(err) {
				continue
			}
			return "", "", convertFSError(err, path.Join(urlPath, index))
		}
	}
	return "", "", errors.Wrap(errdefs.ErrNotFound, urlPath)
}

// escapesRoot reports whether the "/"-separated path p climbs above its
// starting directory once "." and ".." segments are applied.
func escapesRoot(p string) bool {
	depth := 0
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "", ".":
		case "..":
			depth--
			if depth < 0 {
				return true
			}
		default:
			depth++
		}
	}
	return false
}

// checkDotfiles applies the dotfiles policy to a cleaned path.
func (sr *staticRouter) checkDotfiles(clean string) error {
	if sr.opts.Dotfiles == config.DotfilesAllow {
		return nil
	}
	for _, seg := range strings.Split(clean, "/") {
		if !strings.HasPrefix(seg, ".") {
			continue
		}
		if sr.opts.Dotfiles == config.DotfilesDeny {
			return errdefs.ErrPermissionDenied
		}
		return errdefs.ErrNotFound
	}
	return nil
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) || errors.Is(err, syscall.ENAMETOOLONG)
}

// convertFSError classifies an error returned by the file system.
func convertFSError(err error, urlPath string) error {
	switch {
	case isNotExist(err):
		return errors.Wrap(errdefs.ErrNotFound, urlPath)
	case errors.Is(err, fs.ErrPermission):
		return errors.Wrap(errdefs.ErrPermissionDenied, urlPath)
	default:
		return errors.Wrapf(err, "failed to access %s", urlPath)
	}
}
