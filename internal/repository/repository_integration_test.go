//go:build integration

package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tasktrack/tasktrack/internal/model"
	"github.com/tasktrack/tasktrack/internal/query"
	"github.com/tasktrack/tasktrack/internal/testutil"
)

// ============================================================================
// Migrations
// ============================================================================

func TestIntegrationMigrate_CreatesTablesAndIsRepeatable(t *testing.T) {
	ctx, repo := newIntegrationEnv(t)

	for _, table := range []string{"users", "tasks", "goose_db_version"} {
		var exists bool
		err := repo.Pool().QueryRow(ctx, `
			SELECT EXISTS (
				SELECT FROM information_schema.tables
				WHERE table_schema = 'public' AND table_name = $1
			)`, table).Scan(&exists)
		if err != nil {
			t.Fatalf("check table %s: %v", table, err)
		}
		if !exists {
			t.Errorf("table %q should exist after migrations", table)
		}
	}

	if err := repo.Migrate(ctx); err != nil {
		t.Fatalf("second migrate should be a no-op: %v", err)
	}
}

// ============================================================================
// Users
// ============================================================================

func TestIntegrationUsers_CreateAndLookup(t *testing.T) {
	ctx, repo := newIntegrationEnv(t)

	user := testutil.NewTestUser(t, model.RoleAdmin)
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	byEmail, err := repo.GetUserByEmail(ctx, strings.ToUpper(user.Email))
	if err != nil {
		t.Fatalf("GetUserByEmail (case-insensitive) failed: %v", err)
	}
	if byEmail.ID != user.ID || byEmail.Role != model.RoleAdmin || byEmail.PasswordHash != user.PasswordHash {
		t.Errorf("unexpected user: %+v", byEmail)
	}

	byID, err := repo.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if byID.Email != user.Email || byID.FullName != user.FullName {
		t.Errorf("unexpected user: %+v", byID)
	}

	dup := testutil.NewTestUser(t, model.RoleUser)
	dup.Email = strings.ToUpper(user.Email)
	if err := repo.CreateUser(ctx, dup); !errors.Is(err, ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}

	if _, err := repo.GetUserByEmail(ctx, "nobody@example.test"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := repo.GetUserByID(ctx, "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestIntegrationUsers_UpsertKeepsID(t *testing.T) {
	ctx, repo := newIntegrationEnv(t)

	user := testutil.NewTestUser(t, model.RoleUser)
	if err := repo.UpsertUserByEmail(ctx, user); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	originalID := user.ID

	again := testutil.NewTestUser(t, model.RoleAdmin)
	again.Email = user.Email
	again.FullName = "Renamed"
	if err := repo.UpsertUserByEmail(ctx, again); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	if again.ID != originalID {
		t.Fatalf("upsert should keep the stored id: got %s want %s", again.ID, originalID)
	}

	loaded, err := repo.GetUserByID(ctx, originalID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if loaded.Role != model.RoleAdmin || loaded.FullName != "Renamed" {
		t.Errorf("upsert did not update fields: %+v", loaded)
	}

	users, err := repo.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("expected 1 user, got %d", len(users))
	}
}

// ============================================================================
// Tasks
// ============================================================================

func TestIntegrationTasks_CRUD(t *testing.T) {
	ctx, repo := newIntegrationEnv(t)
	owner := createUser(t, ctx, repo, model.RoleUser)

	task := testutil.NewTestTask(t, owner.ID, "Write report")
	desc := "quarterly"
	task.Description = &desc
	if err := repo.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	loaded, err := repo.GetTaskByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTaskByID failed: %v", err)
	}
	if loaded.Title != task.Title || loaded.OwnerID != owner.ID || loaded.Description == nil || *loaded.Description != desc {
		t.Errorf("unexpected task: %+v", loaded)
	}

	due := time.Date(2023, 10, 27, 12, 0, 0, 0, time.UTC)
	loaded.Status = model.TaskStatusCompleted
	loaded.DueDate = &due
	loaded.Description = nil
	loaded.UpdatedAt = loaded.UpdatedAt.Add(time.Minute)
	if err := repo.UpdateTask(ctx, loaded); err != nil {
		t.Fatalf("UpdateTask failed: %v", err)
	}

	updated, err := repo.GetTaskByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTaskByID after update failed: %v", err)
	}
	if updated.Status != model.TaskStatusCompleted || updated.Description != nil {
		t.Errorf("update not applied: %+v", updated)
	}
	if updated.DueDate == nil || !updated.DueDate.Equal(due) {
		t.Errorf("due date mismatch: %v", updated.DueDate)
	}
	if !updated.CreatedAt.Equal(task.CreatedAt) {
		t.Errorf("created_at changed: %v vs %v", updated.CreatedAt, task.CreatedAt)
	}

	if err := repo.DeleteTask(ctx, task.ID); err != nil {
		t.Fatalf("DeleteTask failed: %v", err)
	}
	if _, err := repo.GetTaskByID(ctx, task.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
	if err := repo.DeleteTask(ctx, task.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound on second delete, got %v", err)
	}
	if err := repo.UpdateTask(ctx, task); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound on update of deleted task, got %v", err)
	}
}

func TestIntegrationTasks_CreateWithUnknownOwner(t *testing.T) {
	ctx, repo := newIntegrationEnv(t)

	task := testutil.NewTestTask(t, "no-such-user", "Orphan")
	if err := repo.CreateTask(ctx, task); !errors.Is(err, ErrOwnerNotFound) {
		t.Fatalf("expected ErrOwnerNotFound, got %v", err)
	}
}

func TestIntegrationTasks_ListIsOwnerScoped(t *testing.T) {
	ctx, repo := newIntegrationEnv(t)
	alice := createUser(t, ctx, repo, model.RoleUser)
	bob := createUser(t, ctx, repo, model.RoleUser)

	createTask(t, ctx, repo, testutil.NewTestTask(t, alice.ID, "alice 1"))
	createTask(t, ctx, repo, testutil.NewTestTask(t, alice.ID, "alice 2"))
	createTask(t, ctx, repo, testutil.NewTestTask(t, bob.ID, "bob 1"))

	items, total := listTasks(t, ctx, repo, &query.Filter{Scope: query.ScopeSelf, OwnerID: alice.ID, Page: 1, PageSize: 10})
	if total != 2 || len(items) != 2 {
		t.Fatalf("expected 2 tasks for alice, got total=%d len=%d", total, len(items))
	}
	for _, item := range items {
		if item.OwnerID != alice.ID {
			t.Fatalf("foreign task leaked: %+v", item)
		}
	}

	_, total = listTasks(t, ctx, repo, &query.Filter{Scope: query.ScopeAll, Page: 1, PageSize: 10})
	if total != 3 {
		t.Fatalf("expected 3 tasks across owners, got %d", total)
	}
}

func TestIntegrationTasks_ListEndOfDayInclusive(t *testing.T) {
	ctx, repo := newIntegrationEnv(t)
	owner := createUser(t, ctx, repo, model.RoleUser)

	onDay := testutil.NewTestTaskDue(t, owner.ID, "on the day", model.TaskStatusPending,
		time.Date(2023, 10, 27, 12, 0, 0, 0, time.UTC))
	nextDay := testutil.NewTestTaskDue(t, owner.ID, "next day", model.TaskStatusPending,
		time.Date(2023, 10, 28, 12, 0, 0, 0, time.UTC))
	createTask(t, ctx, repo, onDay)
	createTask(t, ctx, repo, nextDay)

	principal := &model.Principal{Subject: owner.ID, Role: model.RoleUser}
	f, err := query.NewBuilder(10, 100).Build(query.Params{DueDateEnd: "2023-10-27T00:00:00"}, principal)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	items, total := listTasks(t, ctx, repo, f)
	if total != 1 || len(items) != 1 || items[0].ID != onDay.ID {
		t.Fatalf("expected only the task due on 2023-10-27, got total=%d items=%v", total, items)
	}
}

func TestIntegrationTasks_ListPaginationIsStable(t *testing.T) {
	ctx, repo := newIntegrationEnv(t)
	owner := createUser(t, ctx, repo, model.RoleUser)

	// Identical created_at forces the id tiebreaker.
	created := time.Now().UTC().Truncate(time.Microsecond)
	for i := 0; i < 7; i++ {
		task := testutil.NewTestTask(t, owner.ID, "same time")
		task.CreatedAt = created
		task.UpdatedAt = created
		createTask(t, ctx, repo, task)
	}

	seen := map[string]bool{}
	for page := 1; page <= 3; page++ {
		items, total := listTasks(t, ctx, repo, &query.Filter{
			Scope: query.ScopeSelf, OwnerID: owner.ID,
			SortBy: query.SortCreatedAt, SortDesc: true,
			Page: page, PageSize: 3,
		})
		if total != 7 {
			t.Fatalf("page %d: expected total 7, got %d", page, total)
		}
		for _, item := range items {
			if seen[item.ID] {
				t.Fatalf("task %s appeared on two pages", item.ID)
			}
			seen[item.ID] = true
		}
	}
	if len(seen) != 7 {
		t.Fatalf("expected to see 7 distinct tasks, saw %d", len(seen))
	}

	items, total := listTasks(t, ctx, repo, &query.Filter{Scope: query.ScopeSelf, OwnerID: owner.ID, Page: 9, PageSize: 3})
	if total != 7 || len(items) != 0 {
		t.Fatalf("page past the end: total=%d len=%d", total, len(items))
	}
}

func TestIntegrationTasks_ListSearchAndDueDateSort(t *testing.T) {
	ctx, repo := newIntegrationEnv(t)
	owner := createUser(t, ctx, repo, model.RoleUser)

	undated := testutil.NewTestTask(t, owner.ID, "Report draft")
	early := testutil.NewTestTaskDue(t, owner.ID, "Final REPORT", model.TaskStatusPending, time.Date(2023, 1, 1, 9, 0, 0, 0, time.UTC))
	late := testutil.NewTestTaskDue(t, owner.ID, "report_v2", model.TaskStatusPending, time.Date(2023, 6, 1, 9, 0, 0, 0, time.UTC))
	other := testutil.NewTestTask(t, owner.ID, "Groceries")
	for _, task := range []*model.Task{undated, early, late, other} {
		createTask(t, ctx, repo, task)
	}

	items, total := listTasks(t, ctx, repo, &query.Filter{
		Scope: query.ScopeSelf, OwnerID: owner.ID, Search: "report",
		SortBy: query.SortDueDate, SortDesc: false, Page: 1, PageSize: 10,
	})
	if total != 3 {
		t.Fatalf("expected 3 matches, got %d", total)
	}
	want := []string{early.ID, late.ID, undated.ID}
	for i, id := range want {
		if items[i].ID != id {
			t.Fatalf("position %d: got %s (%s), want %s", i, items[i].ID, items[i].Title, id)
		}
	}

	// Underscore is literal, not a wildcard.
	_, total = listTasks(t, ctx, repo, &query.Filter{
		Scope: query.ScopeSelf, OwnerID: owner.ID, Search: "report_draft", Page: 1, PageSize: 10,
	})
	if total != 0 {
		t.Fatalf("expected literal underscore match to find nothing, got %d", total)
	}
}

func TestIntegrationTasks_StatusCountsAndWorkload(t *testing.T) {
	ctx, repo := newIntegrationEnv(t)
	owner := createUser(t, ctx, repo, model.RoleUser)

	day1 := time.Date(2023, 10, 27, 8, 0, 0, 0, time.UTC)
	day2 := time.Date(2023, 10, 29, 23, 30, 0, 0, time.UTC)
	createTask(t, ctx, repo, testutil.NewTestTaskDue(t, owner.ID, "a", model.TaskStatusPending, day1))
	createTask(t, ctx, repo, testutil.NewTestTaskDue(t, owner.ID, "b", model.TaskStatusCompleted, day1))
	createTask(t, ctx, repo, testutil.NewTestTaskDue(t, owner.ID, "c", model.TaskStatusPending, day2))
	createTask(t, ctx, repo, testutil.NewTestTask(t, owner.ID, "undated"))

	counts, err := repo.CountTasksByStatus(ctx, owner.ID)
	if err != nil {
		t.Fatalf("CountTasksByStatus failed: %v", err)
	}
	if counts[model.TaskStatusPending] != 2 || counts[model.TaskStatusCompleted] != 1 ||
		counts[model.TaskStatusBacklog] != 1 || counts[model.TaskStatusInProgress] != 0 {
		t.Fatalf("unexpected counts: %v", counts)
	}
	if len(counts) != len(model.TaskStatuses) {
		t.Fatalf("counts should include every status, got %v", counts)
	}

	days, err := repo.WorkloadByDay(ctx, owner.ID)
	if err != nil {
		t.Fatalf("WorkloadByDay failed: %v", err)
	}
	if len(days) != 2 {
		t.Fatalf("expected 2 days, got %+v", days)
	}
	if days[0].Day != "2023-10-27" || days[0].Total != 2 || days[0].Pending != 1 || days[0].Completed != 1 {
		t.Errorf("unexpected first day: %+v", days[0])
	}
	if days[1].Day != "2023-10-29" || days[1].Total != 1 || days[1].Pending != 1 {
		t.Errorf("unexpected second day: %+v", days[1])
	}
}

// ============================================================================
// Helpers
// ============================================================================

func newIntegrationEnv(t *testing.T) (context.Context, *Repository) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	dbURL := testutil.RequireEnv(t, "TEST_DATABASE_URL")

	repo, err := New(ctx, dbURL, PoolConfig{MaxConns: 4})
	if err != nil {
		t.Fatalf("create repository: %v", err)
	}
	t.Cleanup(repo.Close)

	unlock, err := testutil.AcquireDBLock(ctx, repo.Pool())
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	if err := testutil.DropSchema(ctx, repo.Pool()); err != nil {
		t.Fatalf("drop schema: %v", err)
	}
	if err := repo.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return ctx, repo
}

func createUser(t *testing.T, ctx context.Context, repo *Repository, role model.Role) *model.User {
	t.Helper()
	user := testutil.NewTestUser(t, role)
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return user
}

func createTask(t *testing.T, ctx context.Context, repo *Repository, task *model.Task) {
	t.Helper()
	if err := repo.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
}

func listTasks(t *testing.T, ctx context.Context, repo *Repository, f *query.Filter) ([]*model.Task, int) {
	t.Helper()
	items, total, err := repo.ListTasks(ctx, f)
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	return items, total
}
