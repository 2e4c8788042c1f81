package domain

import "context"

type principalKey struct{}

// WithPrincipal stores the authenticated caller's principal id in the context.
// The host middleware sets this; engine operations read it when the caller
// principal is not passed explicitly.
func WithPrincipal(ctx context.Context, principalID string) context.Context {
	return context.WithValue(ctx, principalKey{}, principalID)
}

// PrincipalFromContext extracts the caller's principal id from the context.
func PrincipalFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(principalKey{}).(string)
	return id, ok
}
