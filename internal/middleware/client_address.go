package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/mcoot/rafflegrid/internal/services/audit"
)

// ClientAddress records the address a request came from so it can be
// attached to confirmed reservations. Forwarding headers are trusted, which
// assumes the server sits behind a proxy that sets them.
func ClientAddress() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := audit.WithClientAddress(r.Context(), clientAddress(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func clientAddress(r *http.Request) string {
	// First hop is the original client
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
