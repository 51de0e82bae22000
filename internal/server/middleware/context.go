package middleware

import (
	"context"

	"github.com/veritrail/veritrail/internal/directory"
)

type contextKey string

const contextKeyPrincipal contextKey = "principal"

// WithPrincipal returns a context carrying the resolved principal.
func WithPrincipal(ctx context.Context, p directory.Principal) context.Context {
	return context.WithValue(ctx, contextKeyPrincipal, p)
}

// PrincipalFromContext returns the principal stored by the Auth middleware.
func PrincipalFromContext(ctx context.Context) (directory.Principal, bool) {
	p, ok := ctx.Value(contextKeyPrincipal).(directory.Principal)
	return p, ok
}
