package auth

import (
	"github.com/tasktrack/tasktrack/internal/apperr"
	"github.com/tasktrack/tasktrack/internal/model"
)

// RequireRole permits the principal if it holds role. Admin satisfies every role.
// A missing principal is ErrUnauthenticated, never ErrForbidden.
func RequireRole(p *model.Principal, role model.Role) error {
	if p == nil || p.Subject == "" {
		return apperr.ErrUnauthenticated
	}
	if p.Role == model.RoleAdmin || p.Role == role {
		return nil
	}
	return apperr.ErrForbidden
}

// AuthorizeOwner permits the principal to act on a resource owned by ownerID.
// Owners are permitted, and admins are permitted for any owner.
func AuthorizeOwner(p *model.Principal, ownerID string) error {
	if p == nil || p.Subject == "" {
		return apperr.ErrUnauthenticated
	}
	if p.Owns(ownerID) || p.IsAdmin() {
		return nil
	}
	return apperr.ErrForbidden
}
