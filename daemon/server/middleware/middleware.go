package middleware

import (
	"context"
	"net/http"

	"github.com/felixge/httpsnoop"
	"github.com/moby/isoserve/daemon/server/httpstatus"
)

// Middleware is an interface to allow the use of ordinary functions as isoserve API filters.
// Any struct that has the appropriate signature can be registered as a middleware.
type Middleware interface {
	WrapHandler(func(ctx context.Context, w http.ResponseWriter, r *http.Request, vars map[string]string) error) func(ctx context.Context, w http.ResponseWriter, r *http.Request, vars map[string]string) error
}

// captureResponse calls serve with a wrapped ResponseWriter and reports the
// status code and body size of the response. Errors returned by serve are
// written later by the server, so their status is derived from the error.
func captureResponse(w http.ResponseWriter, serve func(http.ResponseWriter) error) (httpsnoop.Metrics, error) {
	var err error
	m := httpsnoop.CaptureMetricsFn(w, func(ww http.ResponseWriter) {
		err = serve(ww)
	})
	if err != nil {
		m.Code = httpstatus.FromError(err)
	}
	return m, err
}
