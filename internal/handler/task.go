package handler

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tasktrack/tasktrack/internal/auth"
	"github.com/tasktrack/tasktrack/internal/handler/dto"
	"github.com/tasktrack/tasktrack/internal/model"
	"github.com/tasktrack/tasktrack/internal/query"
	"github.com/tasktrack/tasktrack/internal/service"
)

// TaskService is the slice of service.TaskService the handlers need.
type TaskService interface {
	Query(ctx context.Context, p *model.Principal, params query.Params) (*model.TaskPage, error)
	Create(ctx context.Context, p *model.Principal, input service.CreateTaskInput) (*model.Task, error)
	Get(ctx context.Context, p *model.Principal, id string) (*model.Task, error)
	Update(ctx context.Context, p *model.Principal, id string, input service.UpdateTaskInput) (*model.Task, error)
	Delete(ctx context.Context, p *model.Principal, id string) error
	StatusStats(ctx context.Context, p *model.Principal) (model.StatusCounts, error)
	Workload(ctx context.Context, p *model.Principal) ([]model.WorkloadDay, error)
}

var _ TaskService = (*service.TaskService)(nil)

// TaskHandler handles HTTP requests for task operations.
type TaskHandler struct {
	svc    TaskService
	logger *slog.Logger
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(svc TaskService, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{
		svc:    svc,
		logger: logger,
	}
}

// List handles GET /api/v1/tasks.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.Query(r.Context(), auth.PrincipalFromContext(r.Context()), query.ParamsFromValues(r.URL.Query()))
	if err != nil {
		handleServiceError(r.Context(), h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToTaskListResponse(page))
}

// Create handles POST /api/v1/tasks.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	task, err := h.svc.Create(r.Context(), auth.PrincipalFromContext(r.Context()), service.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		DueDate:     req.DueDate,
	})
	if err != nil {
		handleServiceError(r.Context(), h.logger, w, err)
		return
	}

	h.logger.Info("task_created",
		"task_id", task.ID,
		"owner_id", task.OwnerID,
		"status", string(task.Status),
	)

	writeJSON(w, http.StatusCreated, dto.ToTaskResponse(task))
}

// Get handles GET /api/v1/tasks/{id}.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	task, err := h.svc.Get(r.Context(), auth.PrincipalFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(r.Context(), h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToTaskResponse(task))
}

// Update handles PATCH /api/v1/tasks/{id}.
// An explicit null description or due_date clears the field.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	var req dto.UpdateTaskRequest
	if err := unmarshalBody(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return
	}
	raw, err := dto.RawFields(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return
	}

	input := service.UpdateTaskInput{
		Title:        req.Title,
		Description:  req.Description,
		Status:       req.Status,
		DueDate:      req.DueDate,
		ClearDueDate: req.ClearDueDate,
	}
	if isJSONNull(raw["description"]) {
		empty := ""
		input.Description = &empty
	}
	if isJSONNull(raw["due_date"]) {
		input.ClearDueDate = true
	}

	task, err := h.svc.Update(r.Context(), auth.PrincipalFromContext(r.Context()), chi.URLParam(r, "id"), input)
	if err != nil {
		handleServiceError(r.Context(), h.logger, w, err)
		return
	}

	h.logger.Info("task_updated", "task_id", task.ID)

	writeJSON(w, http.StatusOK, dto.ToTaskResponse(task))
}

// Delete handles DELETE /api/v1/tasks/{id}.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Delete(r.Context(), auth.PrincipalFromContext(r.Context()), id); err != nil {
		handleServiceError(r.Context(), h.logger, w, err)
		return
	}

	h.logger.Info("task_deleted", "task_id", id)

	w.WriteHeader(http.StatusNoContent)
}

// StatusStats handles GET /api/v1/tasks/stats/status.
func (h *TaskHandler) StatusStats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.svc.StatusStats(r.Context(), auth.PrincipalFromContext(r.Context()))
	if err != nil {
		handleServiceError(r.Context(), h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToStatusStatsResponse(counts))
}

// Workload handles GET /api/v1/tasks/stats/workload.
func (h *TaskHandler) Workload(w http.ResponseWriter, r *http.Request) {
	days, err := h.svc.Workload(r.Context(), auth.PrincipalFromContext(r.Context()))
	if err != nil {
		handleServiceError(r.Context(), h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToWorkloadResponse(days))
}

func isJSONNull(raw []byte) bool {
	return raw != nil && bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
