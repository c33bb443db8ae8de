// Package query turns untrusted task-listing parameters into a validated Filter.
//
// Ownership scoping and date-boundary rules live here, not in the store,
// so they can be tested without a database.
package query

import (
	"strings"
	"time"

	"github.com/tasktrack/tasktrack/internal/model"
)

// Scope selects whose tasks a filter may return.
type Scope string

const (
	// ScopeSelf restricts results to the requesting principal.
	ScopeSelf Scope = "self"
	// ScopeOwner restricts results to one named owner (admin only).
	ScopeOwner Scope = "owner"
	// ScopeAll returns every owner's tasks (admin only).
	ScopeAll Scope = "all"
)

// SortField is a column tasks can be ordered by.
type SortField string

const (
	SortCreatedAt SortField = "created_at"
	SortUpdatedAt SortField = "updated_at"
	SortDueDate   SortField = "due_date"
	SortTitle     SortField = "title"
	SortStatus    SortField = "status"
)

// IsValid checks if the sort field is supported.
func (f SortField) IsValid() bool {
	switch f {
	case SortCreatedAt, SortUpdatedAt, SortDueDate, SortTitle, SortStatus:
		return true
	}
	return false
}

// Filter is the normalized, validated description of one task listing.
// OwnerID is always set unless Scope is ScopeAll.
type Filter struct {
	Scope   Scope
	OwnerID string

	Status *model.TaskStatus

	// DueStart is an inclusive lower bound on due_date.
	DueStart *time.Time
	// DueEnd is an upper bound on due_date, exclusive when DueEndExclusive is set.
	DueEnd          *time.Time
	DueEndExclusive bool

	// Search is a case-insensitive substring of the title.
	Search string

	SortBy   SortField
	SortDesc bool

	Page     int
	PageSize int
}

// Offset is the number of matching rows skipped before this page.
func (f *Filter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// Limit is the maximum number of rows in this page.
func (f *Filter) Limit() int {
	return f.PageSize
}

// PermitsOwner reports whether a task owned by ownerID may appear in the result.
func (f *Filter) PermitsOwner(ownerID string) bool {
	if f.Scope == ScopeAll {
		return true
	}
	return f.OwnerID != "" && ownerID == f.OwnerID
}

// Matches evaluates the filter predicate against a single task.
// Tasks without a due date never match a due-date bound.
func (f *Filter) Matches(t *model.Task) bool {
	if !f.PermitsOwner(t.OwnerID) {
		return false
	}
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if f.DueStart != nil || f.DueEnd != nil {
		if t.DueDate == nil {
			return false
		}
		if f.DueStart != nil && t.DueDate.Before(*f.DueStart) {
			return false
		}
		if f.DueEnd != nil {
			if f.DueEndExclusive && !t.DueDate.Before(*f.DueEnd) {
				return false
			}
			if !f.DueEndExclusive && t.DueDate.After(*f.DueEnd) {
				return false
			}
		}
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(t.Title), strings.ToLower(f.Search)) {
		return false
	}
	return true
}
