package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tasktrack/tasktrack/internal/auth"
	"github.com/tasktrack/tasktrack/internal/metrics"
	"github.com/tasktrack/tasktrack/internal/model"
)

// TokenValidator turns a bearer token into a principal.
type TokenValidator interface {
	Validate(token string) (*model.Principal, error)
}

// AuthConfig holds configuration for the principal resolver.
type AuthConfig struct {
	Logger  *slog.Logger
	Tokens  TokenValidator
	Metrics metrics.Recorder
}

// ErrMissingToken is returned by ResolvePrincipal when no bearer credential is sent.
var ErrMissingToken = errors.New("missing bearer token")

// Authenticate resolves the caller's principal from the Authorization header
// and stores it in the request context. Every rejection is the same generic
// 401; the concrete reason only goes to logs and metrics.
func Authenticate(cfg AuthConfig) func(http.Handler) http.Handler {
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := ResolvePrincipal(r, cfg.Tokens)
			if err != nil {
				reason := rejectionReason(err)
				recorder.IncAuthRejected(reason)
				logger.Warn("authentication failed",
					slog.String("reason", reason),
					slog.String("request_id", GetRequestID(r.Context())),
					slog.String("path", r.URL.Path),
				)
				writeUnauthorized(w)
				return
			}

			setLogSubject(r.Context(), principal.Subject)
			ctx := auth.ContextWithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ResolvePrincipal extracts the bearer token from r and validates it.
func ResolvePrincipal(r *http.Request, tokens TokenValidator) (*model.Principal, error) {
	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		return nil, ErrMissingToken
	}
	principal, err := tokens.Validate(token)
	if err != nil {
		return nil, err
	}
	if principal == nil || principal.Subject == "" {
		return nil, auth.ErrInvalidClaims
	}
	return principal, nil
}

// bearerToken parses "Bearer <token>" with a case-insensitive scheme.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrMissingToken):
		return metrics.AuthMissingToken
	case errors.Is(err, auth.ErrExpired):
		return metrics.AuthExpiredToken
	default:
		return metrics.AuthInvalidToken
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="tasktrack"`)
	writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "authentication required")
}
