package auth

import (
	"net/http"
	"strings"

	"github.com/example/animewatch/internal/platform/api"
)

// RequireAdmin gates a route group to users whose access token carries
// the admin role. It must be mounted after RequireUser, which puts the
// role into the request context.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, _ := RoleFromContext(r.Context())
		if !strings.EqualFold(strings.TrimSpace(role), "admin") {
			api.Forbidden(w, "FORBIDDEN", "admin access required", "")
			return
		}
		next.ServeHTTP(w, r)
	})
}
