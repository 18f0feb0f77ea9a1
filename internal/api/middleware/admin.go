package middleware

import (
	"net/http"

	"github.com/mcoot/rafflegrid/internal/api/apierr"
	"github.com/mcoot/rafflegrid/internal/services/admin"
)

// AdminPasswordHeader carries the operator password
const AdminPasswordHeader = "X-Admin-Password"

// RequireAdmin rejects requests that do not carry the operator password
func RequireAdmin(adminService *admin.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := adminService.Verify(r.Header.Get(AdminPasswordHeader)); err != nil {
				apierr.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
