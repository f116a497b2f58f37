package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/moby/isoserve/daemon/metrics"
)

// MetricsMiddleware records the duration, status code and size of every
// response.
type MetricsMiddleware struct{}

// NewMetricsMiddleware creates a new MetricsMiddleware.
func NewMetricsMiddleware() MetricsMiddleware {
	return MetricsMiddleware{}
}

// WrapHandler returns a new handler function wrapping the previous one in the request chain.
func (MetricsMiddleware) WrapHandler(handler func(ctx context.Context, w http.ResponseWriter, r *http.Request, vars map[string]string) error) func(ctx context.Context, w http.ResponseWriter, r *http.Request, vars map[string]string) error {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request, vars map[string]string) error {
		m, err := captureResponse(w, func(w http.ResponseWriter) error {
			return handler(ctx, w, r, vars)
		})

		code := strconv.Itoa(m.Code)
		metrics.RequestDuration.WithValues(code).Update(m.Duration)
		metrics.Requests.WithValues(code).Inc(1)
		metrics.ResponseBytes.Inc(float64(m.Written))
		return err
	}
}
