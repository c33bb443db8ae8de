package dto

import (
	"time"

	"github.com/tasktrack/tasktrack/internal/auth"
	"github.com/tasktrack/tasktrack/internal/model"
)

// LoginRequest is the JSON login body. Form posts use username/password.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is returned on successful login.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Role        string `json:"role"`
	Name        string `json:"name"`
}

// UserResponse represents a credential record without its password hash.
type UserResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

// UserListResponse wraps the admin user listing.
type UserListResponse struct {
	Items []UserResponse `json:"items"`
}

// VerifyRequest is the body of POST /api/v1/auth/verify.
type VerifyRequest struct {
	Token string `json:"token"`
}

// VerifyResponse reports a valid token and its claims.
type VerifyResponse struct {
	Valid  bool         `json:"valid"`
	Claims ClaimsOutput `json:"claims"`
}

// ClaimsOutput is the public view of token claims.
type ClaimsOutput struct {
	Subject   string `json:"sub"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// ToLoginResponse converts a login result.
func ToLoginResponse(token string, expiresIn time.Duration, user *model.User) *LoginResponse {
	return &LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(expiresIn / time.Second),
		Role:        string(user.Role),
		Name:        user.DisplayName(),
	}
}

// ToUserResponse converts a User model to UserResponse DTO.
func ToUserResponse(u *model.User) UserResponse {
	return UserResponse{
		ID:       u.ID,
		Email:    u.Email,
		FullName: u.FullName,
		Role:     string(u.Role),
	}
}

// ToVerifyResponse converts validated claims.
func ToVerifyResponse(c *auth.Claims) *VerifyResponse {
	out := ClaimsOutput{
		Subject: c.Subject,
		Email:   c.Email,
		Role:    c.Role,
	}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Unix()
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Unix()
	}
	return &VerifyResponse{Valid: true, Claims: out}
}
