// Package server serves the routers registered on a set of listeners.
package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/containerd/errdefs"
	"github.com/containerd/log"
	"github.com/gorilla/mux"
	"github.com/moby/isoserve/daemon/server/httpstatus"
	"github.com/moby/isoserve/daemon/server/httputils"
	"github.com/moby/isoserve/daemon/server/middleware"
	"github.com/moby/isoserve/daemon/server/router"
	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

// readHeaderTimeout bounds the time a client may take to send the request
// headers.
const readHeaderTimeout = 5 * time.Minute

// Server contains instance details for the server
type Server struct {
	middlewares []middleware.Middleware
	servers     []*httpServer
}

type httpServer struct {
	srv *http.Server
	l   net.Listener
}

// New returns a new instance of the server.
func New() *Server {
	return &Server{}
}

// UseMiddleware appends a new middleware to the request chain.
// This needs to be called before the routers are created. The last
// middleware added is the first to see a request.
func (s *Server) UseMiddleware(m middleware.Middleware) {
	s.middlewares = append(s.middlewares, m)
}

// Accept sets the listeners the server accepts connections into.
func (s *Server) Accept(addr string, listeners ...net.Listener) {
	for _, l := range listeners {
		s.servers = append(s.servers, &httpServer{
			srv: &http.Server{
				Addr:              addr,
				ReadHeaderTimeout: readHeaderTimeout,
				// "OPTIONS *" goes through the mux like any other request.
				DisableGeneralOptionsHandler: true,
			},
			l: l,
		})
	}
}

// Serve serves handler on every accepted listener, and blocks until all of
// them stopped. It returns nil when the servers were stopped by Shutdown.
// If serving fails on one listener, the others are closed as well.
func (s *Server) Serve(ctx context.Context, handler http.Handler) error {
	if len(s.servers) == 0 {
		return errors.New("no listeners to serve on")
	}
	eg, ctx := errgroup.WithContext(ctx)
	for _, hs := range s.servers {
		hs.srv.Handler = handler
		hs.srv.BaseContext = func(net.Listener) context.Context {
			return ctx
		}
		eg.Go(func() error {
			log.G(ctx).WithField("addr", hs.l.Addr().String()).Info("API listen")
			if err := hs.srv.Serve(hs.l); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.G(ctx).WithError(err).WithField("addr", hs.l.Addr().String()).Error("error serving requests")
				s.close()
				return errors.Wrapf(err, "error serving on %s", hs.l.Addr())
			}
			return nil
		})
	}
	return eg.Wait()
}

// Shutdown stops accepting connections and waits for the requests in
// flight, until ctx is done. Connections still open at that point are
// closed.
func (s *Server) Shutdown(ctx context.Context) error {
	eg := errgroup.Group{}
	for _, hs := range s.servers {
		eg.Go(func() error {
			if err := hs.srv.Shutdown(ctx); err != nil {
				log.G(ctx).WithError(err).WithField("addr", hs.l.Addr().String()).Warn("forcing connections closed")
				_ = hs.srv.Close()
				return err
			}
			return nil
		})
	}
	return eg.Wait()
}

// close closes all listeners and connections immediately.
func (s *Server) close() {
	for _, hs := range s.servers {
		_ = hs.srv.Close()
	}
}

func (s *Server) makeHTTPHandler(handler httputils.APIFunc, operation string) http.Handler {
	return otelhttp.NewHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Define the context that we'll pass around to share info
		// like the request id and the logger.
		ctx := r.Context()
		handlerFunc := s.handlerWithGlobalMiddlewares(handler)

		vars := mux.Vars(r)
		if vars == nil {
			vars = make(map[string]string)
		}

		if err := handlerFunc(ctx, w, r, vars); err != nil {
			statusCode := httpstatus.FromError(err)
			if statusCode >= http.StatusInternalServerError {
				log.G(ctx).Errorf("Handler for %s %s returned error: %v", r.Method, r.URL.Path, err)
			} else {
				log.G(ctx).Debugf("Handler for %s %s returned error: %v", r.Method, r.URL.Path, err)
			}
			httputils.WriteError(w, err)
		}
	}), operation)
}

// handlerWithGlobalMiddlewares wraps the handler function for a request with
// the server's global middlewares. The order of the middlewares is backwards,
// meaning that the first in the list will be evaluated last.
func (s *Server) handlerWithGlobalMiddlewares(handler httputils.APIFunc) httputils.APIFunc {
	next := handler
	for _, m := range s.middlewares {
		next = m.WrapHandler(next)
	}
	return next
}

// CreateMux returns a new mux with all the routers registered.
func (s *Server) CreateMux(ctx context.Context, routers ...router.Router) *mux.Router {
	// Paths are left as sent so the routers decide what "." and ".."
	// segments mean, instead of mux redirecting to the cleaned path.
	m := mux.NewRouter().SkipClean(true)

	log.G(ctx).Debug("Registering routers")
	for _, apiRouter := range routers {
		for _, r := range apiRouter.Routes() {
			log.G(ctx).Debugf("Registering %s, %s", r.Method(), r.Path())
			m.Path(r.Path()).Methods(r.Method()).Handler(s.makeHTTPHandler(r.Handler(), r.Method()+" "+r.Path()))
		}
	}

	notFoundHandler := s.makeHTTPHandler(pageNotFoundHandler, "page_not_found")
	m.NotFoundHandler = notFoundHandler
	m.MethodNotAllowedHandler = notFoundHandler
	return m
}

func pageNotFoundHandler(ctx context.Context, w http.ResponseWriter, r *http.Request, vars map[string]string) error {
	return errors.Wrapf(errdefs.ErrNotFound, "cannot %s %s", r.Method, r.URL.Path)
}
