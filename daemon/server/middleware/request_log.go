package middleware

import (
	"context"
	"net/http"

	"github.com/containerd/log"
	"github.com/docker/go-units"
	"github.com/google/uuid"
)

// RequestLogMiddleware attaches a logger carrying a unique request ID to the
// request context, and logs the request and its outcome at debug level.
type RequestLogMiddleware struct{}

// NewRequestLogMiddleware creates a new RequestLogMiddleware.
func NewRequestLogMiddleware() RequestLogMiddleware {
	return RequestLogMiddleware{}
}

// WrapHandler returns a new handler function wrapping the previous one in the request chain.
func (RequestLogMiddleware) WrapHandler(handler func(ctx context.Context, w http.ResponseWriter, r *http.Request, vars map[string]string) error) func(ctx context.Context, w http.ResponseWriter, r *http.Request, vars map[string]string) error {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request, vars map[string]string) error {
		logger := log.G(ctx).WithField("request-id", uuid.NewString())
		ctx = log.WithLogger(ctx, logger)
		logger.Debugf("Calling %s %s", r.Method, r.RequestURI)

		m, err := captureResponse(w, func(w http.ResponseWriter) error {
			return handler(ctx, w, r, vars)
		})

		logger.WithFields(log.Fields{
			"status":   m.Code,
			"size":     units.HumanSize(float64(m.Written)),
			"duration": m.Duration,
		}).Debugf("Completed %s %s", r.Method, r.URL.Path)
		return err
	}
}
