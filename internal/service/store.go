// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tasktrack/tasktrack/internal/apperr"
	"github.com/tasktrack/tasktrack/internal/metrics"
	"github.com/tasktrack/tasktrack/internal/model"
	"github.com/tasktrack/tasktrack/internal/query"
	"github.com/tasktrack/tasktrack/internal/repository"
)

// DefaultStoreTimeout bounds every store call when no timeout is configured.
const DefaultStoreTimeout = 3 * time.Second

// UserStore reads credential records.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	ListUsers(ctx context.Context) ([]*model.User, error)
}

// TaskStore persists tasks. *repository.Repository implements it.
type TaskStore interface {
	CreateTask(ctx context.Context, task *model.Task) error
	GetTaskByID(ctx context.Context, id string) (*model.Task, error)
	UpdateTask(ctx context.Context, task *model.Task) error
	DeleteTask(ctx context.Context, id string) error
	ListTasks(ctx context.Context, f *query.Filter) ([]*model.Task, int, error)
	CountTasksByStatus(ctx context.Context, ownerID string) (model.StatusCounts, error)
	WorkloadByDay(ctx context.Context, ownerID string) ([]model.WorkloadDay, error)
}

var (
	_ UserStore = (*repository.Repository)(nil)
	_ TaskStore = (*repository.Repository)(nil)
)

// storeCall runs fn under the store timeout.
func storeCall(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}

// mapStoreError converts repository errors into the apperr taxonomy.
// Anything the repository does not name is treated as the store being unavailable.
func mapStoreError(op string, err error, recorder metrics.Recorder) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrTaskNotFound):
		return fmt.Errorf("%s: %w: task", op, apperr.ErrNotFound)
	case errors.Is(err, repository.ErrUserNotFound):
		return fmt.Errorf("%s: %w: user", op, apperr.ErrNotFound)
	case errors.Is(err, repository.ErrOwnerNotFound):
		return fmt.Errorf("%s: %w: owner", op, apperr.ErrNotFound)
	case errors.Is(err, repository.ErrEmailExists):
		return fmt.Errorf("%s: %w: email already registered", op, apperr.ErrConflict)
	}
	recorder.IncStoreUnavailable()
	return apperr.StoreUnavailable(op, err)
}
