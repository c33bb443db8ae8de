package dto

import (
	"encoding/json"
	"time"

	"github.com/tasktrack/tasktrack/internal/model"
)

// CreateTaskRequest represents the request body for creating a task.
// due_date accepts YYYY-MM-DD or an RFC 3339 timestamp.
type CreateTaskRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Status      string  `json:"status,omitempty"`
	DueDate     string  `json:"due_date,omitempty"`
}

// UpdateTaskRequest represents the request body for a partial task update.
// Absent fields are left unchanged.
type UpdateTaskRequest struct {
	Title        *string `json:"title,omitempty"`
	Description  *string `json:"description,omitempty"`
	Status       *string `json:"status,omitempty"`
	DueDate      *string `json:"due_date,omitempty"`
	ClearDueDate bool    `json:"clear_due_date,omitempty"`
}

// TaskResponse represents a task in API responses.
type TaskResponse struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Status      string     `json:"status"`
	DueDate     *time.Time `json:"due_date"`
	OwnerID     string     `json:"owner_id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TaskListResponse is one page of tasks.
type TaskListResponse struct {
	Items    []TaskResponse `json:"items"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
	Pages    int            `json:"pages"`
}

// StatusStatsResponse holds task counts keyed by status.
type StatusStatsResponse struct {
	Counts map[string]int `json:"counts"`
	Total  int            `json:"total"`
}

// WorkloadResponse lists per-day due task counts in ascending day order.
type WorkloadResponse struct {
	Days []model.WorkloadDay `json:"days"`
}

// ToTaskResponse converts a Task model to TaskResponse DTO.
func ToTaskResponse(t *model.Task) TaskResponse {
	resp := TaskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		OwnerID:     t.OwnerID,
		CreatedAt:   t.CreatedAt.UTC(),
		UpdatedAt:   t.UpdatedAt.UTC(),
	}
	if t.DueDate != nil {
		due := t.DueDate.UTC()
		resp.DueDate = &due
	}
	return resp
}

// ToTaskListResponse converts a TaskPage.
func ToTaskListResponse(page *model.TaskPage) *TaskListResponse {
	items := make([]TaskResponse, 0, len(page.Items))
	for _, t := range page.Items {
		items = append(items, ToTaskResponse(t))
	}
	return &TaskListResponse{
		Items:    items,
		Total:    page.Total,
		Page:     page.Page,
		PageSize: page.PageSize,
		Pages:    page.Pages(),
	}
}

// ToStatusStatsResponse converts zero-filled status counts.
func ToStatusStatsResponse(counts model.StatusCounts) *StatusStatsResponse {
	resp := &StatusStatsResponse{Counts: make(map[string]int, len(model.TaskStatuses))}
	for _, s := range model.TaskStatuses {
		resp.Counts[string(s)] = counts[s]
		resp.Total += counts[s]
	}
	return resp
}

// ToWorkloadResponse converts workload days, never emitting a null list.
func ToWorkloadResponse(days []model.WorkloadDay) *WorkloadResponse {
	if days == nil {
		days = []model.WorkloadDay{}
	}
	return &WorkloadResponse{Days: days}
}

// RawFields reports which top-level keys are present in a JSON object body.
// Used to tell an explicit "description": null apart from an absent field.
func RawFields(body []byte) (map[string]json.RawMessage, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}
