package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"github.com/tasktrack/tasktrack/internal/model"
	"github.com/tasktrack/tasktrack/internal/query"
)

// Common errors for task repository operations.
var (
	ErrTaskNotFound  = errors.New("task not found")
	ErrOwnerNotFound = errors.New("task owner does not exist")
)

const taskColumns = `id, title, description, status, due_date, owner_id, created_at, updated_at`

// CreateTask inserts a new task into the database.
func (r *Repository) CreateTask(ctx context.Context, task *model.Task) error {
	stmt := `
		INSERT INTO tasks (id, title, description, status, due_date, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, stmt,
		task.ID,
		task.Title,
		task.Description,
		string(task.Status),
		task.DueDate,
		task.OwnerID,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrOwnerNotFound
		}
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// GetTaskByID retrieves a task by its ID regardless of owner.
func (r *Repository) GetTaskByID(ctx context.Context, id string) (*model.Task, error) {
	stmt := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	task, err := scanTask(r.pool.QueryRow(ctx, stmt, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task by ID: %w", err)
	}
	return task, nil
}

// UpdateTask writes the task's mutable fields. Owner and created_at are never touched.
func (r *Repository) UpdateTask(ctx context.Context, task *model.Task) error {
	stmt := `
		UPDATE tasks
		SET title = $2, description = $3, status = $4, due_date = $5, updated_at = $6
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, stmt,
		task.ID,
		task.Title,
		task.Description,
		string(task.Status),
		task.DueDate,
		task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// DeleteTask removes a task permanently.
func (r *Repository) DeleteTask(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// ListTasks returns one page of tasks matching f and the total match count.
// Both reads run in one read-only snapshot so the count agrees with the page.
func (r *Repository) ListTasks(ctx context.Context, f *query.Filter) ([]*model.Task, int, error) {
	where, args := buildTaskWhere(f)

	countSQL := `SELECT COUNT(*) FROM tasks` + where
	pageSQL := fmt.Sprintf(`SELECT %s FROM tasks%s ORDER BY %s LIMIT $%d OFFSET $%d`,
		taskColumns, where, buildTaskOrder(f), len(args)+1, len(args)+2)
	pageArgs := append(append([]any{}, args...), f.Limit(), f.Offset())

	var (
		tasks []*model.Task
		total int
	)
	txOpts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	err := pgx.BeginTxFunc(ctx, r.pool, txOpts, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
			return fmt.Errorf("count tasks: %w", err)
		}
		if total == 0 || f.Offset() >= total {
			return nil
		}

		rows, err := tx.Query(ctx, pageSQL, pageArgs...)
		if err != nil {
			return fmt.Errorf("query tasks: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			task, err := scanTask(rows)
			if err != nil {
				return fmt.Errorf("scan task: %w", err)
			}
			tasks = append(tasks, task)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, total, nil
}

// CountTasksByStatus counts an owner's tasks per status. Statuses with no
// tasks are present with a zero count.
func (r *Repository) CountTasksByStatus(ctx context.Context, ownerID string) (model.StatusCounts, error) {
	stmt := `SELECT status, COUNT(*) FROM tasks WHERE owner_id = $1 GROUP BY status`

	rows, err := r.pool.Query(ctx, stmt, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks by status: %w", err)
	}
	defer rows.Close()

	counts := model.NewStatusCounts()
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[model.TaskStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status counts: %w", err)
	}
	return counts, nil
}

// WorkloadByDay groups an owner's dated tasks by UTC calendar day, ascending.
func (r *Repository) WorkloadByDay(ctx context.Context, ownerID string) ([]model.WorkloadDay, error) {
	stmt := `
		SELECT to_char(due_date AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day, status, COUNT(*)
		FROM tasks
		WHERE owner_id = $1 AND due_date IS NOT NULL
		GROUP BY day, status
		ORDER BY day, status
	`

	rows, err := r.pool.Query(ctx, stmt, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workload: %w", err)
	}
	defer rows.Close()

	var days []model.WorkloadDay
	for rows.Next() {
		var (
			day, status string
			n           int
		)
		if err := rows.Scan(&day, &status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan workload row: %w", err)
		}
		if len(days) == 0 || days[len(days)-1].Day != day {
			days = append(days, model.WorkloadDay{Day: day})
		}
		days[len(days)-1].Add(model.TaskStatus(status), n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workload: %w", err)
	}
	return days, nil
}

// buildTaskWhere translates the filter predicate into a WHERE clause with
// positional arguments. The owner predicate is always present unless the
// filter is explicitly scoped to all owners.
func buildTaskWhere(f *query.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Scope != query.ScopeAll {
		add("owner_id = $%d", f.OwnerID)
	}
	if f.Status != nil {
		add("status = $%d", string(*f.Status))
	}
	if f.DueStart != nil {
		add("due_date >= $%d", *f.DueStart)
	}
	if f.DueEnd != nil {
		if f.DueEndExclusive {
			add("due_date < $%d", *f.DueEnd)
		} else {
			add("due_date <= $%d", *f.DueEnd)
		}
	}
	if f.Search != "" {
		add("title ILIKE $%d", "%"+escapeLike(f.Search)+"%")
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// buildTaskOrder renders a total ORDER BY: the sort column, then id in the
// same direction. NULL due dates sort last in both directions.
func buildTaskOrder(f *query.Filter) string {
	field := f.SortBy
	if !field.IsValid() {
		field = query.SortCreatedAt
	}

	dir := "ASC"
	if f.SortDesc {
		dir = "DESC"
	}

	order := pq.QuoteIdentifier(string(field)) + " " + dir
	if field == query.SortDueDate {
		order += " NULLS LAST"
	}
	return order + ", " + pq.QuoteIdentifier("id") + " " + dir
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike neutralizes LIKE wildcards so search terms match literally.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func scanTask(row pgx.Row) (*model.Task, error) {
	var (
		task   model.Task
		status string
	)
	err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&status,
		&task.DueDate,
		&task.OwnerID,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	task.Status = model.TaskStatus(status)
	return &task, nil
}
