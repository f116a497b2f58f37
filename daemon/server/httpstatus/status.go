// Package httpstatus maps classified errors to HTTP status codes.
package httpstatus

import (
	"context"
	"net/http"

	"github.com/containerd/errdefs"
	"github.com/containerd/log"
)

// FromError retrieves status code from error message.
func FromError(err error) int {
	if err == nil {
		log.G(context.TODO()).WithError(err).Error("unexpected HTTP error handling")
		return http.StatusInternalServerError
	}

	// Resolve the error to a status code, based on the error-class it
	// belongs to.
	switch {
	case errdefs.IsInvalidArgument(err):
		return http.StatusBadRequest
	case errdefs.IsNotFound(err):
		return http.StatusNotFound
	case errdefs.IsPermissionDenied(err):
		return http.StatusForbidden
	case errdefs.IsUnauthorized(err):
		return http.StatusUnauthorized
	case errdefs.IsConflict(err), errdefs.IsAlreadyExists(err):
		return http.StatusConflict
	case errdefs.IsOutOfRange(err):
		return http.StatusRequestedRangeNotSatisfiable
	case errdefs.IsNotImplemented(err):
		return http.StatusNotImplemented
	case errdefs.IsUnavailable(err):
		return http.StatusServiceUnavailable
	case errdefs.IsCanceled(err), errdefs.IsDeadlineExceeded(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
