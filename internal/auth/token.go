package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"

	"github.com/tasktrack/tasktrack/internal/model"
)

// MinSecretLen is the minimum signing key length in bytes for HS256.
const MinSecretLen = 32

// Token validation failures. Callers outside this package should collapse
// all of them into a single unauthenticated outcome.
var (
	// ErrInvalidSignature means the token could not be authenticated:
	// bad signature, wrong algorithm, or a token that does not even parse.
	ErrInvalidSignature = errors.New("token signature invalid")
	// ErrExpired means the signature is valid but now is past expires_at.
	ErrExpired = errors.New("token expired")
	// ErrInvalidClaims means the signature is valid but the claims are unusable.
	ErrInvalidClaims = errors.New("token claims invalid")
	// ErrWeakSecret is returned when the signing key is too short.
	ErrWeakSecret = errors.New("signing secret too short")
)

// Claims is the JWT payload of a session token.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
}

// TokenService issues and validates HS256 session tokens.
// It holds no per-request state and is safe for concurrent use.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
	parser *jwt.Parser
}

// TokenOption customizes a TokenService.
type TokenOption func(*TokenService)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) { s.now = now }
}

// WithIssuer sets the iss claim and requires it on validation.
func WithIssuer(issuer string) TokenOption {
	return func(s *TokenService) { s.issuer = issuer }
}

// NewTokenService creates a TokenService with a default TTL.
func NewTokenService(secret []byte, ttl time.Duration, opts ...TokenOption) (*TokenService, error) {
	if len(secret) < MinSecretLen {
		return nil, fmt.Errorf("%w: need at least %d bytes", ErrWeakSecret, MinSecretLen)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}

	s := &TokenService{
		secret: append([]byte(nil), secret...),
		ttl:    ttl,
		now:    time.Now,
		// Expiry is checked by Validate itself so the boundary is inclusive.
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
			jwt.WithStrictDecoding(),
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TTL returns the default token lifetime.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for the principal valid for ttl (the default TTL when ttl <= 0).
// Timestamps have one-second resolution; issued_at is truncated to the second.
func (s *TokenService) Issue(p model.Principal, ttl time.Duration) (string, error) {
	if p.Subject == "" {
		return "", fmt.Errorf("%w: empty subject", ErrInvalidClaims)
	}
	if !p.Role.IsValid() {
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidClaims, p.Role)
	}
	if ttl <= 0 {
		ttl = s.ttl
	}

	issuedAt := s.now().UTC().Truncate(time.Second)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ulid.Make().String(),
			Subject:   p.Subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
		Email: p.Email,
		Role:  string(p.Role),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseClaims authenticates the token and checks expiry, returning the raw claims.
// The signature is verified before any claim is trusted.
func (s *TokenService) ParseClaims(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := s.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidSignature
	}

	if claims.ExpiresAt == nil {
		return nil, ErrInvalidClaims
	}
	// now == expires_at is still valid.
	if s.now().After(claims.ExpiresAt.Time) {
		return nil, ErrExpired
	}

	if claims.Subject == "" {
		return nil, ErrInvalidClaims
	}
	if _, ok := model.ParseRole(claims.Role); !ok {
		return nil, ErrInvalidClaims
	}
	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, ErrInvalidClaims
	}

	return claims, nil
}

// Validate authenticates the token and returns the principal it carries.
func (s *TokenService) Validate(tokenString string) (*model.Principal, error) {
	claims, err := s.ParseClaims(tokenString)
	if err != nil {
		return nil, err
	}
	return &model.Principal{
		Subject: claims.Subject,
		Email:   claims.Email,
		Role:    model.Role(claims.Role),
	}, nil
}
