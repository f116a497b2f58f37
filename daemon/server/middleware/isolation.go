package middleware

import (
	"context"
	"net/http"
)

// Cross-origin isolation headers, and the values sent on every response.
const (
	HeaderOpenerPolicy   = "Cross-Origin-Opener-Policy"
	HeaderEmbedderPolicy = "Cross-Origin-Embedder-Policy"

	OpenerPolicySameOrigin    = "same-origin"
	EmbedderPolicyRequireCorp = "require-corp"
)

// IsolationMiddleware is a middleware that opts every response into
// cross-origin isolation, as required by browser APIs such as
// SharedArrayBuffer.
type IsolationMiddleware struct{}

// NewIsolationMiddleware creates a new IsolationMiddleware.
func NewIsolationMiddleware() IsolationMiddleware {
	return IsolationMiddleware{}
}

// WrapHandler returns a new handler function wrapping the previous one in the request chain.
func (IsolationMiddleware) WrapHandler(handler func(ctx context.Context, w http.ResponseWriter, r *http.Request, vars map[string]string) error) func(ctx context.Context, w http.ResponseWriter, r *http.Request, vars map[string]string) error {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request, vars map[string]string) error {
		w.Header().Set(HeaderOpenerPolicy, OpenerPolicySameOrigin)
		w.Header().Set(HeaderEmbedderPolicy, EmbedderPolicyRequireCorp)
		return handler(ctx, w, r, vars)
	}
}
