package auth

import (
	"context"

	"github.com/stacklane/stacklane/internal/model"
)

type contextKey struct{}

// WithPrincipal attaches p to ctx.
func WithPrincipal(ctx context.Context, p *model.Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// PrincipalFrom returns the caller attached by the auth middleware, or nil.
func PrincipalFrom(ctx context.Context) *model.Principal {
	p, _ := ctx.Value(contextKey{}).(*model.Principal)
	return p
}

// KeyIDFrom returns the caller's key ID, or "" when unauthenticated.
func KeyIDFrom(ctx context.Context) string {
	if p := PrincipalFrom(ctx); p != nil {
		return p.KeyID
	}
	return ""
}
