package model

import "time"

// TaskStatus is the workflow state of a task.
type TaskStatus string

const (
	TaskStatusBacklog    TaskStatus = "BACKLOG"
	TaskStatusPending    TaskStatus = "PENDING"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusCompleted  TaskStatus = "COMPLETED"
)

// TaskStatuses lists every status in board order.
var TaskStatuses = []TaskStatus{
	TaskStatusBacklog,
	TaskStatusPending,
	TaskStatusInProgress,
	TaskStatusCompleted,
}

// IsValid checks if the status is one of the known values.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusBacklog, TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted:
		return true
	}
	return false
}

// Task is a personal task record. OwnerID references User.ID and never changes.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	OwnerID     string     `json:"owner_id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TaskPage is one page of a task listing plus the total match count.
type TaskPage struct {
	Items    []*Task
	Total    int
	Page     int
	PageSize int
}

// Pages returns the number of pages needed for Total at PageSize.
func (p *TaskPage) Pages() int {
	if p.PageSize <= 0 || p.Total == 0 {
		return 0
	}
	return (p.Total + p.PageSize - 1) / p.PageSize
}

// StatusCounts maps every status to the number of tasks in it.
type StatusCounts map[TaskStatus]int

// NewStatusCounts returns counts with every status present at zero.
func NewStatusCounts() StatusCounts {
	counts := make(StatusCounts, len(TaskStatuses))
	for _, s := range TaskStatuses {
		counts[s] = 0
	}
	return counts
}

// WorkloadDay aggregates tasks due on one calendar day (UTC).
type WorkloadDay struct {
	Day        string `json:"day"` // YYYY-MM-DD
	Total      int    `json:"total"`
	Backlog    int    `json:"backlog"`
	Pending    int    `json:"pending"`
	InProgress int    `json:"in_progress"`
	Completed  int    `json:"completed"`
}

// Add counts one task with the given status into the day.
func (d *WorkloadDay) Add(status TaskStatus, n int) {
	d.Total += n
	switch status {
	case TaskStatusBacklog:
		d.Backlog += n
	case TaskStatusPending:
		d.Pending += n
	case TaskStatusInProgress:
		d.InProgress += n
	case TaskStatusCompleted:
		d.Completed += n
	}
}
