// Package reqcontext carries caller identity derived from inbound request
// headers through the resolution of a single GraphQL operation.
package reqcontext

import (
	"context"
	"net/http"
)

const (
	// HeaderAuthorization is forwarded verbatim, scheme prefix included.
	HeaderAuthorization = "Authorization"
	// HeaderCurrency selects the display currency for catalog and legacy calls.
	HeaderCurrency = "Content-Currency"
	// HeaderStore selects the store scope for catalog and legacy calls.
	HeaderStore = "Store"
)

// Context is the immutable per-request value extracted from transport
// metadata. A zero field means the caller did not supply the header.
type Context struct {
	Token    string
	Currency string
	Store    string
}

// FromHeaders derives a Context from inbound request headers. Missing headers
// yield empty fields, never an error.
func FromHeaders(h http.Header) Context {
	return Context{
		Token:    h.Get(HeaderAuthorization),
		Currency: h.Get(HeaderCurrency),
		Store:    h.Get(HeaderStore),
	}
}

type contextKey struct{}

// WithContext attaches rc to the request context.
func WithContext(ctx context.Context, rc Context) context.Context {
	return context.WithValue(ctx, contextKey{}, rc)
}

// FromContext returns the request Context attached by WithContext, or the
// zero value when none is attached.
func FromContext(ctx context.Context) Context {
	rc, _ := ctx.Value(contextKey{}).(Context)
	return rc
}
