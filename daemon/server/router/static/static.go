// Package static implements the router serving files from a root directory.
package static

import (
	"github.com/moby/isoserve/daemon/server/router"
)

// Options configures how files below Root are served.
type Options struct {
	// Root is the absolute path of the directory to serve, with symlinks
	// already evaluated.
	Root string
	// Index lists the files to try, in order, for a request naming a
	// directory. Empty names are skipped.
	Index []string
	// Dotfiles is one of the config.Dotfiles* values.
	Dotfiles string
	// Redirect redirects a directory requested without a trailing slash.
	Redirect     bool
	ETag         bool
	LastModified bool
	// MaxAge is the max-age, in seconds, of the Cache-Control header.
	MaxAge int
}

// staticRouter is a router to serve the files below a root directory.
type staticRouter struct {
	opts   Options
	routes []router.Route
}

// NewRouter initializes a new static router.
func NewRouter(opts Options) router.Router {
	r := &staticRouter{opts: opts}
	r.initRoutes()
	return r
}

// Routes returns the available routes to the static router.
func (sr *staticRouter) Routes() []router.Route {
	return sr.routes
}

func (sr *staticRouter) initRoutes() {
	sr.routes = []router.Route{
		router.NewGetRoute("/{path:.*}", sr.serveFile),
		router.NewHeadRoute("/{path:.*}", sr.serveFile),
	}
}
