package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tasktrack/tasktrack/internal/apperr"
	"github.com/tasktrack/tasktrack/internal/auth"
	"github.com/tasktrack/tasktrack/internal/metrics"
	"github.com/tasktrack/tasktrack/internal/model"
	"github.com/tasktrack/tasktrack/internal/repository"
)

const (
	maxEmailLength    = 254
	maxPasswordLength = 1024
)

// AuthService handles credential verification and session tokens.
type AuthService struct {
	users        UserStore
	hasher       *auth.Hasher
	tokens       *auth.TokenService
	storeTimeout time.Duration
	metrics      metrics.Recorder
	logger       *slog.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(users UserStore, hasher *auth.Hasher, tokens *auth.TokenService, storeTimeout time.Duration, recorder metrics.Recorder, logger *slog.Logger) *AuthService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		users:        users,
		hasher:       hasher,
		tokens:       tokens,
		storeTimeout: storeTimeout,
		metrics:      recorder,
		logger:       logger,
	}
}

// LoginResult is a freshly issued session.
type LoginResult struct {
	Token     string
	ExpiresIn time.Duration
	User      *model.User
}

// Login verifies credentials and issues a session token.
// Unknown email and wrong password both return ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, apperr.NewValidation("email", "is required")
	}
	if password == "" {
		return nil, apperr.NewValidation("password", "is required")
	}
	if len(email) > maxEmailLength || len(password) > maxPasswordLength {
		s.metrics.IncLogin(metrics.LoginFailed)
		return nil, apperr.ErrInvalidCredentials
	}

	var user *model.User
	err := storeCall(ctx, s.storeTimeout, func(ctx context.Context) error {
		var err error
		user, err = s.users.GetUserByEmail(ctx, email)
		return err
	})
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.hasher.VerifyDummy(password)
			s.metrics.IncLogin(metrics.LoginFailed)
			return nil, apperr.ErrInvalidCredentials
		}
		return nil, mapStoreError("login", err, s.metrics)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.metrics.IncLogin(metrics.LoginFailed)
		return nil, apperr.ErrInvalidCredentials
	}

	if !user.Role.IsValid() {
		s.logger.Error("credential record has unknown role", "user_id", user.ID, "role", string(user.Role))
		s.metrics.IncLogin(metrics.LoginFailed)
		return nil, apperr.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(model.Principal{Subject: user.ID, Email: user.Email, Role: user.Role}, 0)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	s.metrics.IncLogin(metrics.LoginSuccess)
	s.logger.Info("login succeeded", "user_id", user.ID, "role", string(user.Role))

	return &LoginResult{Token: token, ExpiresIn: s.tokens.TTL(), User: user}, nil
}

// Me returns the credential record of the principal.
func (s *AuthService) Me(ctx context.Context, p *model.Principal) (*model.User, error) {
	if err := auth.RequireRole(p, model.RoleUser); err != nil {
		return nil, err
	}

	var user *model.User
	err := storeCall(ctx, s.storeTimeout, func(ctx context.Context) error {
		var err error
		user, err = s.users.GetUserByID(ctx, p.Subject)
		return err
	})
	if err != nil {
		return nil, mapStoreError("get current user", err, s.metrics)
	}
	return user, nil
}

// ListUsers returns every credential record. Admin only.
func (s *AuthService) ListUsers(ctx context.Context, p *model.Principal) ([]*model.User, error) {
	if err := auth.RequireRole(p, model.RoleAdmin); err != nil {
		return nil, err
	}

	var users []*model.User
	err := storeCall(ctx, s.storeTimeout, func(ctx context.Context) error {
		var err error
		users, err = s.users.ListUsers(ctx)
		return err
	})
	if err != nil {
		return nil, mapStoreError("list users", err, s.metrics)
	}
	return users, nil
}

// Verify checks a token and returns its claims. Every failure is
// ErrUnauthenticated; the wrapped cause is for logs only.
func (s *AuthService) Verify(token string) (*auth.Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", apperr.ErrUnauthenticated)
	}
	claims, err := s.tokens.ParseClaims(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrUnauthenticated, err)
	}
	return claims, nil
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
