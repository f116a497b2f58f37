package httputils

import (
	"context"
	"net/http"

	"github.com/moby/isoserve/daemon/server/httpstatus"
)

// APIFunc is an adapter to allow the use of ordinary functions as API endpoints.
// Any function that has the appropriate signature can be registered as an API endpoint (e.g. getVersion).
type APIFunc func(ctx context.Context, w http.ResponseWriter, r *http.Request, vars map[string]string) error

// WriteError writes err to w as a plain-text response, with the status code
// derived from the error's class. Details of server-side errors are not
// sent to the client.
func WriteError(w http.ResponseWriter, err error) {
	statusCode := httpstatus.FromError(err)
	msg := err.Error()
	if statusCode >= http.StatusInternalServerError {
		msg = http.StatusText(statusCode)
	}
	http.Error(w, msg, statusCode)
}
