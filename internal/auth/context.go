package auth

import (
	"context"

	"github.com/usersapi/usersapi/internal/model"
)

type contextKey struct{}

// ContextWithAuth returns a copy of ctx carrying the authenticated key.
func ContextWithAuth(ctx context.Context, auth *model.AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, auth)
}

// FromContext returns the authenticated key, or nil when auth is disabled
// or the request is anonymous.
func FromContext(ctx context.Context) *model.AuthContext {
	auth, _ := ctx.Value(contextKey{}).(*model.AuthContext)
	return auth
}

// KeyIDFromContext returns the authenticated key id, or "".
func KeyIDFromContext(ctx context.Context) string {
	if auth := FromContext(ctx); auth != nil {
		return auth.KeyID
	}
	return ""
}
