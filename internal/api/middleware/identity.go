package middleware

import (
	"context"
	"net/http"
)

// Identity is the already-verified caller identity supplied by the upstream
// identity provider. This service never authenticates; it trusts the headers
// set by the edge.
type Identity struct {
	UserID string
	Role   string
}

type contextKey string

const identityKey contextKey = "identity"

// WithIdentity injects an identity into a context. Exposed for tests.
func WithIdentity(ctx context.Context, ident *Identity) context.Context {
	return context.WithValue(ctx, identityKey, ident)
}

// IdentityFromContext retrieves the caller identity, or nil if the edge did
// not supply one.
func IdentityFromContext(ctx context.Context) *Identity {
	ident, _ := ctx.Value(identityKey).(*Identity)
	return ident
}

// CallerIdentity reads the identity headers set by the upstream gateway and
// stores them in the request context.
func CallerIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			next.ServeHTTP(w, r)
			return
		}
		ident := &Identity{
			UserID: userID,
			Role:   r.Header.Get("X-User-Role"),
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), ident)))
	})
}
