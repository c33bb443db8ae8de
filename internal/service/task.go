package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/tasktrack/tasktrack/internal/apperr"
	"github.com/tasktrack/tasktrack/internal/auth"
	"github.com/tasktrack/tasktrack/internal/metrics"
	"github.com/tasktrack/tasktrack/internal/model"
	"github.com/tasktrack/tasktrack/internal/query"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 5000
)

// TaskService is the task repository facade plus task lifecycle operations.
// All ownership decisions happen here or in the query builder, never in the store.
type TaskService struct {
	store        TaskStore
	builder      *query.Builder
	storeTimeout time.Duration
	metrics      metrics.Recorder
	logger       *slog.Logger
	now          func() time.Time
}

// NewTaskService creates a new TaskService.
func NewTaskService(store TaskStore, builder *query.Builder, storeTimeout time.Duration, recorder metrics.Recorder, logger *slog.Logger) *TaskService {
	if builder == nil {
		builder = query.NewBuilder(query.DefaultPageSize, query.MaxPageSize)
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskService{
		store:        store,
		builder:      builder,
		storeTimeout: storeTimeout,
		metrics:      recorder,
		logger:       logger,
		now:          time.Now,
	}
}

// Query builds a filter from raw parameters for the principal and runs it.
func (s *TaskService) Query(ctx context.Context, p *model.Principal, params query.Params) (*model.TaskPage, error) {
	if err := auth.RequireRole(p, model.RoleUser); err != nil {
		return nil, err
	}
	f, err := s.builder.Build(params, p)
	if err != nil {
		return nil, err
	}
	return s.List(ctx, f)
}

// List runs a built filter against the store.
//
// Every returned item is checked against the filter's owner scope again; an
// item outside it is dropped and logged rather than returned.
func (s *TaskService) List(ctx context.Context, f *query.Filter) (*model.TaskPage, error) {
	if f == nil {
		return nil, apperr.NewValidation("", "missing filter")
	}
	if f.Scope != query.ScopeAll && f.OwnerID == "" {
		return nil, apperr.NewValidation("owner_id", "is required unless scope is all")
	}
	if f.Page < 1 || f.PageSize < 1 || f.PageSize > s.builder.MaxPageSize() {
		return nil, apperr.NewValidation("page_size", "out of range")
	}

	start := s.now()
	var (
		items []*model.Task
		total int
	)
	err := storeCall(ctx, s.storeTimeout, func(ctx context.Context) error {
		var err error
		items, total, err = s.store.ListTasks(ctx, f)
		return err
	})
	if err != nil {
		return nil, mapStoreError("list tasks", err, s.metrics)
	}

	kept := make([]*model.Task, 0, len(items))
	for _, task := range items {
		if task == nil {
			continue
		}
		if !f.PermitsOwner(task.OwnerID) {
			s.metrics.IncOwnershipViolation()
			s.logger.Error("store returned task outside owner scope",
				"task_id", task.ID,
				"scope", string(f.Scope),
				"owner_id", f.OwnerID,
			)
			continue
		}
		kept = append(kept, task)
	}
	if len(kept) > f.PageSize {
		kept = kept[:f.PageSize]
	}

	s.metrics.ObserveTaskQuery(s.now().Sub(start), len(kept))

	return &model.TaskPage{
		Items:    kept,
		Total:    total,
		Page:     f.Page,
		PageSize: f.PageSize,
	}, nil
}

// CreateTaskInput defines input for creating a task.
type CreateTaskInput struct {
	Title       string
	Description *string
	Status      string
	DueDate     string
}

// Create stores a new task owned by the principal.
func (s *TaskService) Create(ctx context.Context, p *model.Principal, input CreateTaskInput) (*model.Task, error) {
	if err := auth.RequireRole(p, model.RoleUser); err != nil {
		return nil, err
	}

	title, err := validateTitle(input.Title)
	if err != nil {
		return nil, err
	}

	status := model.TaskStatusBacklog
	if input.Status != "" {
		if status, err = parseStatus(input.Status); err != nil {
			return nil, err
		}
	}

	desc, err := normalizeDescription(input.Description)
	if err != nil {
		return nil, err
	}

	var due *time.Time
	if strings.TrimSpace(input.DueDate) != "" {
		d, err := ParseDueDate(input.DueDate)
		if err != nil {
			return nil, err
		}
		due = &d
	}

	now := s.now().UTC()
	task := &model.Task{
		ID:          ulid.Make().String(),
		Title:       title,
		Description: desc,
		Status:      status,
		DueDate:     due,
		OwnerID:     p.Subject,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = storeCall(ctx, s.storeTimeout, func(ctx context.Context) error {
		return s.store.CreateTask(ctx, task)
	})
	if err != nil {
		return nil, mapStoreError("create task", err, s.metrics)
	}

	s.metrics.IncTaskCreated()
	return task, nil
}

// Get returns a task the principal owns (or any task, for admins).
func (s *TaskService) Get(ctx context.Context, p *model.Principal, id string) (*model.Task, error) {
	return s.loadAuthorized(ctx, p, id)
}

// UpdateTaskInput defines a partial update. Nil fields are left unchanged.
type UpdateTaskInput struct {
	Title        *string
	Description  *string // empty string clears it
	Status       *string
	DueDate      *string
	ClearDueDate bool
}

// Update applies a partial update. Owner and creation time never change.
func (s *TaskService) Update(ctx context.Context, p *model.Principal, id string, input UpdateTaskInput) (*model.Task, error) {
	task, err := s.loadAuthorized(ctx, p, id)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		title, err := validateTitle(*input.Title)
		if err != nil {
			return nil, err
		}
		task.Title = title
	}

	if input.Description != nil {
		desc, err := normalizeDescription(input.Description)
		if err != nil {
			return nil, err
		}
		task.Description = desc
	}

	if input.Status != nil {
		status, err := parseStatus(*input.Status)
		if err != nil {
			return nil, err
		}
		task.Status = status
	}

	switch {
	case input.ClearDueDate && input.DueDate != nil:
		return nil, apperr.NewValidation("due_date", "cannot be set and cleared in one update")
	case input.ClearDueDate:
		task.DueDate = nil
	case input.DueDate != nil:
		d, err := ParseDueDate(*input.DueDate)
		if err != nil {
			return nil, err
		}
		task.DueDate = &d
	}

	task.UpdatedAt = s.now().UTC()

	err = storeCall(ctx, s.storeTimeout, func(ctx context.Context) error {
		return s.store.UpdateTask(ctx, task)
	})
	if err != nil {
		return nil, mapStoreError("update task", err, s.metrics)
	}

	s.metrics.IncTaskUpdated()
	return task, nil
}

// Delete removes a task the principal owns (or any task, for admins).
func (s *TaskService) Delete(ctx context.Context, p *model.Principal, id string) error {
	task, err := s.loadAuthorized(ctx, p, id)
	if err != nil {
		return err
	}

	err = storeCall(ctx, s.storeTimeout, func(ctx context.Context) error {
		return s.store.DeleteTask(ctx, task.ID)
	})
	if err != nil {
		return mapStoreError("delete task", err, s.metrics)
	}

	s.metrics.IncTaskDeleted()
	return nil
}

// StatusStats counts the principal's own tasks per status.
func (s *TaskService) StatusStats(ctx context.Context, p *model.Principal) (model.StatusCounts, error) {
	if err := auth.RequireRole(p, model.RoleUser); err != nil {
		return nil, err
	}

	var counts model.StatusCounts
	err := storeCall(ctx, s.storeTimeout, func(ctx context.Context) error {
		var err error
		counts, err = s.store.CountTasksByStatus(ctx, p.Subject)
		return err
	})
	if err != nil {
		return nil, mapStoreError("count tasks by status", err, s.metrics)
	}

	// Zero-fill so every status is always reported.
	out := model.NewStatusCounts()
	for status, n := range counts {
		if status.IsValid() {
			out[status] = n
		}
	}
	return out, nil
}

// Workload returns the principal's dated tasks grouped by UTC day, ascending.
func (s *TaskService) Workload(ctx context.Context, p *model.Principal) ([]model.WorkloadDay, error) {
	if err := auth.RequireRole(p, model.RoleUser); err != nil {
		return nil, err
	}

	var days []model.WorkloadDay
	err := storeCall(ctx, s.storeTimeout, func(ctx context.Context) error {
		var err error
		days, err = s.store.WorkloadByDay(ctx, p.Subject)
		return err
	})
	if err != nil {
		return nil, mapStoreError("task workload", err, s.metrics)
	}
	if days == nil {
		days = []model.WorkloadDay{}
	}
	return days, nil
}

// loadAuthorized fetches a task and applies the ownership guard. A task the
// principal may not touch is reported as not found.
func (s *TaskService) loadAuthorized(ctx context.Context, p *model.Principal, id string) (*model.Task, error) {
	if err := auth.RequireRole(p, model.RoleUser); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperr.NewValidation("id", "is required")
	}

	var task *model.Task
	err := storeCall(ctx, s.storeTimeout, func(ctx context.Context) error {
		var err error
		task, err = s.store.GetTaskByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, mapStoreError("get task", err, s.metrics)
	}

	if err := auth.AuthorizeOwner(p, task.OwnerID); err != nil {
		s.logger.Warn("task access denied",
			"task_id", task.ID,
			"subject", p.Subject,
		)
		return nil, fmt.Errorf("%w: task", apperr.ErrNotFound)
	}
	return task, nil
}

func validateTitle(raw string) (string, error) {
	title := strings.TrimSpace(raw)
	if title == "" {
		return "", apperr.NewValidation("title", "is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return "", apperr.NewValidation("title", fmt.Sprintf("must be at most %d characters", maxTitleLength))
	}
	return title, nil
}

func normalizeDescription(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	desc := strings.TrimSpace(*raw)
	if desc == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(desc) > maxDescriptionLength {
		return nil, apperr.NewValidation("description", fmt.Sprintf("must be at most %d characters", maxDescriptionLength))
	}
	return &desc, nil
}

func parseStatus(raw string) (model.TaskStatus, error) {
	status := model.TaskStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !status.IsValid() {
		return "", apperr.NewValidation("status", "must be one of BACKLOG, PENDING, IN_PROGRESS, COMPLETED")
	}
	return status, nil
}

// ParseDueDate parses a task due date. A bare calendar date is stored at
// 12:00 UTC of that day; full timestamps are kept as given, in UTC.
func ParseDueDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if d, err := time.Parse(time.DateOnly, s); err == nil {
		return d.Add(12 * time.Hour).UTC(), nil
	}
	t, err := query.ParseDateTime(s)
	if err != nil {
		return time.Time{}, apperr.NewValidation("due_date", "must be an ISO-8601 date or datetime")
	}
	return t.UTC(), nil
}
