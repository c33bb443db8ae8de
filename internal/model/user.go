// Package model defines domain entities for the application.
package model

import "time"

// Role is the authorization level carried by a principal.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// IsValid checks if the role is known.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}

// ParseRole converts a stored or claimed role string into a Role.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, r.IsValid()
}

// User is the credential record of a task owner.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	PasswordHash string    `json:"-"` // Never serialize
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// DisplayName returns the full name, falling back to the email.
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Email
}
