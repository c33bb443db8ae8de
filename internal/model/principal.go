package model

// Principal is the authenticated identity resolved from a session token.
// It is built per request and never persisted.
type Principal struct {
	// Subject is the owning user's ID. Task.OwnerID is compared against it.
	Subject string
	Email   string
	Role    Role
}

// IsAdmin reports whether the principal holds the admin role.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// Owns reports whether the principal is the owner identified by ownerID.
func (p *Principal) Owns(ownerID string) bool {
	return p != nil && p.Subject != "" && p.Subject == ownerID
}
