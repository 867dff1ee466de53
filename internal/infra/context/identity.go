package context

import (
	"context"

	"github.com/mkrupp/homecase-accounts/internal/domain"
)

const contextKeyIdentity = contextKey("identity")

// IdentityFromContext extracts the authenticated identity from the context.
// Returns the identity and true if present, or a zero value and false if not present.
func IdentityFromContext(ctx context.Context) (domain.AuthToken, bool) {
	identity, ok := ctx.Value(contextKeyIdentity).(domain.AuthToken)

	return identity, ok
}

// WithIdentity creates a new context carrying the authenticated identity
// resolved from the request's session token.
func WithIdentity(ctx context.Context, identity domain.AuthToken) context.Context {
	return context.WithValue(ctx, contextKeyIdentity, identity)
}
