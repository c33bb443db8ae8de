package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tasktrack/tasktrack/internal/apperr"
	"github.com/tasktrack/tasktrack/internal/handler/dto"
)

// storeRetryAfter is the Retry-After hint sent with 503 responses.
const storeRetryAfter = "1"

// writeError writes a JSON error body with the given status code.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{Error: message, Code: code})
}

// handleServiceError maps service errors to HTTP responses.
func handleServiceError(ctx context.Context, logger *slog.Logger, w http.ResponseWriter, err error) {
	var verr *apperr.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
			Error: verr.Error(),
			Code:  "VALIDATION_ERROR",
			Field: verr.Field,
		})
	case errors.Is(err, apperr.ErrValidation):
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, apperr.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "incorrect email or password")
	case errors.Is(err, apperr.ErrUnauthenticated):
		w.Header().Set("WWW-Authenticate", `Bearer realm="tasktrack"`)
		writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "authentication required")
	case errors.Is(err, apperr.ErrForbidden):
		writeError(w, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
	case errors.Is(err, apperr.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
	case errors.Is(err, apperr.ErrConflict):
		writeError(w, http.StatusConflict, "CONFLICT", "resource already exists")
	case errors.Is(err, apperr.ErrStoreUnavailable):
		logger.Warn("store unavailable", slog.String("error", err.Error()), slog.String("request_id", requestID(ctx)))
		w.Header().Set("Retry-After", storeRetryAfter)
		writeError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "service temporarily unavailable")
	default:
		logger.Error("unexpected error", slog.String("error", err.Error()), slog.String("request_id", requestID(ctx)))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}
