package handler

import (
	"context"
	"log/slog"
	"mime"
	"net/http"

	"github.com/tasktrack/tasktrack/internal/auth"
	"github.com/tasktrack/tasktrack/internal/handler/dto"
	"github.com/tasktrack/tasktrack/internal/model"
	"github.com/tasktrack/tasktrack/internal/service"
)

// AuthService is the slice of service.AuthService the handlers need.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
	Me(ctx context.Context, p *model.Principal) (*model.User, error)
	ListUsers(ctx context.Context, p *model.Principal) ([]*model.User, error)
	Verify(token string) (*auth.Claims, error)
}

var _ AuthService = (*service.AuthService)(nil)

// AuthHandler handles login and identity endpoints.
type AuthHandler struct {
	svc    AuthService
	logger *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, logger: logger}
}

// Login handles POST /api/v1/auth/login.
// It accepts a JSON body {email, password} or form fields username/password.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	email, password, ok := h.loginCredentials(w, r)
	if !ok {
		return
	}

	result, err := h.svc.Login(r.Context(), email, password)
	if err != nil {
		handleServiceError(r.Context(), h.logger, w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToLoginResponse(result.Token, result.ExpiresIn, result.User))
}

func (h *AuthHandler) loginCredentials(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(64 << 10); err != nil && err != http.ErrNotMultipart {
			writeError(w, http.StatusBadRequest, "INVALID_FORM", "invalid form body")
			return "", "", false
		}
		email := r.PostFormValue("username")
		if email == "" {
			email = r.PostFormValue("email")
		}
		return email, r.PostFormValue("password"), true
	default:
		var req dto.LoginRequest
		if !decodeJSON(w, r, &req) {
			return "", "", false
		}
		return req.Email, req.Password, true
	}
}

// Me handles GET /api/v1/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.Me(r.Context(), auth.PrincipalFromContext(r.Context()))
	if err != nil {
		handleServiceError(r.Context(), h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToUserResponse(user))
}

// ListUsers handles GET /api/v1/auth/users. Admin only.
func (h *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListUsers(r.Context(), auth.PrincipalFromContext(r.Context()))
	if err != nil {
		handleServiceError(r.Context(), h.logger, w, err)
		return
	}

	resp := dto.UserListResponse{Items: make([]dto.UserResponse, 0, len(users))}
	for _, u := range users {
		resp.Items = append(resp.Items, dto.ToUserResponse(u))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Verify handles POST /api/v1/auth/verify.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req dto.VerifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	claims, err := h.svc.Verify(req.Token)
	if err != nil {
		h.logger.Info("token verification failed",
			slog.String("error", err.Error()),
			slog.String("request_id", requestID(r.Context())),
		)
		handleServiceError(r.Context(), h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToVerifyResponse(claims))
}
