package server

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/moby/isoserve/daemon/config"
	"github.com/moby/isoserve/daemon/server/middleware"
	"github.com/moby/isoserve/daemon/server/router/static"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
	"gotest.tools/v3/fs"
)

func newTestHandler(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	site := fs.NewDir(t, "isoserve-server",
		fs.WithFile("secret.txt", "TOP SECRET"),
		fs.WithDir("public",
			fs.WithFile("index.html", "<h1>Hi</h1>"),
			fs.WithDir("sub", fs.WithFile("index.html", "<p>sub</p>")),
		),
	)
	t.Cleanup(site.Remove)
	root, err := filepath.EvalSymlinks(site.Join("public"))
	assert.NilError(t, err)

	srv := New()
	srv.UseMiddleware(middleware.NewMetricsMiddleware())
	srv.UseMiddleware(middleware.NewRequestLogMiddleware())
	srv.UseMiddleware(middleware.NewIsolationMiddleware())

	r := static.NewRouter(static.Options{
		Root:         root,
		Index:        []string{config.DefaultIndex},
		Dotfiles:     config.DefaultDotfiles,
		Redirect:     true,
		ETag:         true,
		LastModified: true,
	})
	return srv, srv.CreateMux(context.Background(), r)
}

func TestIsolationHeadersOnEveryResponse(t *testing.T) {
	_, h := newTestHandler(t)

	tests := []struct {
		method       string
		target       string
		expectedCode int
	}{
		{method: http.MethodGet, target: "/", expectedCode: http.StatusOK},
		{method: http.MethodGet, target: "/index.html", expectedCode: http.StatusOK},
		{method: http.MethodHead, target: "/index.html", expectedCode: http.StatusOK},
		{method: http.MethodGet, target: "/sub", expectedCode: http.StatusMovedPermanently},
		{method: http.MethodGet, target: "/missing.txt", expectedCode: http.StatusNotFound},
		{method: http.MethodGet, target: "/../secret.txt", expectedCode: http.StatusForbidden},
		{method: http.MethodGet, target: "/./../secret.txt", expectedCode: http.StatusForbidden},
		{method: http.MethodGet, target: "/index.html%00", expectedCode: http.StatusBadRequest},
		{method: http.MethodPost, target: "/index.html", expectedCode: http.StatusNotFound},
		{method: http.MethodDelete, target: "/", expectedCode: http.StatusNotFound},
		{method: http.MethodOptions, target: "/index.html", expectedCode: http.StatusNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.method+" "+tc.target, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.target, nil))

			assert.Check(t, is.Equal(rec.Code, tc.expectedCode))
			assert.Check(t, is.DeepEqual(rec.Header().Values("Cross-Origin-Opener-Policy"), []string{"same-origin"}))
			assert.Check(t, is.DeepEqual(rec.Header().Values("Cross-Origin-Embedder-Policy"), []string{"require-corp"}))
			assert.Check(t, !strings.Contains(rec.Body.String(), "TOP SECRET"))
		})
	}
}

func TestServeAndShutdown(t *testing.T) {
	srv, h := newTestHandler(t)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NilError(t, err)
	srv.Accept(l.Addr().String(), l)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(context.Background(), h)
	}()

	resp, err := http.Get("http://" + l.Addr().String() + "/index.html")
	assert.NilError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.NilError(t, err)
	assert.Check(t, is.Equal(resp.StatusCode, http.StatusOK))
	assert.Check(t, is.Equal(string(body), "<h1>Hi</h1>"))
	assert.Check(t, is.Equal(resp.Header.Get("Cross-Origin-Opener-Policy"), "same-origin"))
	assert.Check(t, is.Equal(resp.Header.Get("Cross-Origin-Embedder-Policy"), "require-corp"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	assert.NilError(t, srv.Shutdown(ctx))

	select {
	case err := <-serveErr:
		assert.NilError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("timeout waiting for the server to stop")
	}

	_, err = http.Get("http://" + l.Addr().String() + "/index.html")
	assert.Check(t, err != nil, "expected connections to be refused after shutdown")
}

// TestServeOptionsAsterisk checks that a server-wide "OPTIONS *" request is
// answered through the middleware chain, not by net/http itself.
func TestServeOptionsAsterisk(t *testing.T) {
	srv, h := newTestHandler(t)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NilError(t, err)
	srv.Accept(l.Addr().String(), l)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(context.Background(), h)
	}()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		assert.Check(t, srv.Shutdown(ctx))
		assert.Check(t, <-serveErr)
	}()

	conn, err := net.Dial("tcp", l.Addr().String())
	assert.NilError(t, err)
	defer conn.Close()

	_, err = io.WriteString(conn, "OPTIONS * HTTP/1.1\r\nHost: localhost\r\nConnection: close\r\n\r\n")
	assert.NilError(t, err)

	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	assert.NilError(t, err)
	defer resp.Body.Close()

	assert.Check(t, is.Equal(resp.StatusCode, http.StatusNotFound))
	assert.Check(t, is.Equal(resp.Header.Get("Cross-Origin-Opener-Policy"), "same-origin"))
	assert.Check(t, is.Equal(resp.Header.Get("Cross-Origin-Embedder-Policy"), "require-corp"))
}

func TestServeWithoutListeners(t *testing.T) {
	err := New().Serve(context.Background(), http.NotFoundHandler())
	assert.Check(t, is.ErrorContains(err, "no listeners"))
}
