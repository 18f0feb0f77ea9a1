package middleware

import (
	"context"
	"net/http"

	"github.com/mcoot/rafflegrid/internal/api/apierr"
	"github.com/mcoot/rafflegrid/internal/model"
	"github.com/mcoot/rafflegrid/internal/services/identity"
)

type contextKey string

const identityContextKey contextKey = "identity"

// Where clients present their identity
const (
	IdentityHeader = "X-Client-Identity"
	IdentityCookie = "client_identity"
)

// RequireIdentity rejects requests without a valid client identity
func RequireIdentity() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := identity.Parse(extractIdentity(r))
			if err != nil {
				apierr.WriteError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), identityContextKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractIdentity extracts the raw identity from the request
func extractIdentity(r *http.Request) string {
	// Check header first
	if raw := r.Header.Get(IdentityHeader); raw != "" {
		return raw
	}

	// Fall back to cookie, which is all an EventSource can send
	cookie, err := r.Cookie(IdentityCookie)
	if err == nil {
		return cookie.Value
	}

	return ""
}

// GetIdentity returns the client identity from the request context
func GetIdentity(ctx context.Context) (model.Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(model.Identity)
	return id, ok
}

// MustGetIdentity returns the client identity or panics
func MustGetIdentity(ctx context.Context) model.Identity {
	id, ok := GetIdentity(ctx)
	if !ok {
		panic("no identity in context - identity middleware not applied?")
	}
	return id
}
