package middleware

import (
	"errors"
	"net/http"

	"github.com/tasktrack/tasktrack/internal/apperr"
	"github.com/tasktrack/tasktrack/internal/auth"
	"github.com/tasktrack/tasktrack/internal/model"
)

// RequireRole returns middleware that admits only principals holding role.
// Must be applied after Authenticate.
func RequireRole(role model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := auth.RequireRole(auth.PrincipalFromContext(r.Context()), role)
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, apperr.ErrUnauthenticated):
				writeUnauthorized(w)
			default:
				writeError(w, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
			}
		})
	}
}

// RequireAdmin is RequireRole(model.RoleAdmin).
func RequireAdmin(next http.Handler) http.Handler {
	return RequireRole(model.RoleAdmin)(next)
}
