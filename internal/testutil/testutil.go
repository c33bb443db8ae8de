// Package testutil holds helpers shared by integration tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/tasktrack/tasktrack/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 727001

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// DropSchema removes every application table and the migration ledger so the
// next migration run starts from an empty database.
func DropSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `DROP TABLE IF EXISTS tasks, users, goose_db_version CASCADE`)
	if err != nil {
		return fmt.Errorf("drop schema: %w", err)
	}
	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// NewTestUser creates a user with a unique email. The password hash is a
// placeholder; tests that log in should set a real one.
func NewTestUser(t testing.TB, role model.Role) *model.User {
	t.Helper()
	id := ulid.Make().String()
	return &model.User{
		ID:           id,
		Email:        strings.ToLower(id) + "@example.test",
		FullName:     "Test " + string(role),
		PasswordHash: "$argon2id$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g",
		Role:         role,
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
}

// NewTestTask creates a backlog task owned by ownerID.
func NewTestTask(t testing.TB, ownerID, title string) *model.Task {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &model.Task{
		ID:        ulid.Make().String(),
		Title:     title,
		Status:    model.TaskStatusBacklog,
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewTestTaskDue creates a task with the given status and due date.
func NewTestTaskDue(t testing.TB, ownerID, title string, status model.TaskStatus, due time.Time) *model.Task {
	t.Helper()
	task := NewTestTask(t, ownerID, title)
	task.Status = status
	d := due.UTC()
	task.DueDate = &d
	return task
}
