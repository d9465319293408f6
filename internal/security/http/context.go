// Package http provides the transport adapter for the security pipeline:
// middleware that feeds requests through authorization and handlers for the
// key, session and status endpoints.
package http

import (
	"context"

	"github.com/zero71st/farmgate/internal/security/domain"
)

// securityContextKey is a context key type for storing the request identity.
type securityContextKey struct{}

// WithSecurityContext stores the authorized identity in the context.
// Called by the security middleware after a successful decision.
func WithSecurityContext(ctx context.Context, sc *domain.SecurityContext) context.Context {
	return context.WithValue(ctx, securityContextKey{}, sc)
}

// GetSecurityContext retrieves the authorized identity from the context.
// Returns (nil, false) when the middleware has not run or denied the request.
func GetSecurityContext(ctx context.Context) (*domain.SecurityContext, bool) {
	sc, ok := ctx.Value(securityContextKey{}).(*domain.SecurityContext)
	return sc, ok
}
