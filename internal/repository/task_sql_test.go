package repository

import (
	"strings"
	"testing"
	"time"

	"github.com/tasktrack/tasktrack/internal/model"
	"github.com/tasktrack/tasktrack/internal/query"
)

func TestBuildTaskWhere_SelfScopeOnly(t *testing.T) {
	f := &query.Filter{Scope: query.ScopeSelf, OwnerID: "u1"}

	where, args := buildTaskWhere(f)
	if where != " WHERE owner_id = $1" {
		t.Fatalf("unexpected where: %q", where)
	}
	if len(args) != 1 || args[0] != "u1" {
		t.Fatalf("unexpected args: %v", args)
	}
}

func TestBuildTaskWhere_AllScopeHasNoOwnerPredicate(t *testing.T) {
	f := &query.Filter{Scope: query.ScopeAll}

	where, args := buildTaskWhere(f)
	if where != "" || len(args) != 0 {
		t.Fatalf("expected empty where, got %q %v", where, args)
	}
}

func TestBuildTaskWhere_OwnerScopeNeverDropsOwner(t *testing.T) {
	// Any scope other than all keeps the owner predicate, even with an empty id.
	for _, scope := range []query.Scope{query.ScopeSelf, query.ScopeOwner, ""} {
		where, _ := buildTaskWhere(&query.Filter{Scope: scope})
		if !strings.Contains(where, "owner_id = $1") {
			t.Fatalf("scope %q: owner predicate missing in %q", scope, where)
		}
	}
}

func TestBuildTaskWhere_AllPredicates(t *testing.T) {
	status := model.TaskStatusPending
	start := time.Date(2023, 10, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, 10, 28, 0, 0, 0, 0, time.UTC)

	f := &query.Filter{
		Scope:           query.ScopeSelf,
		OwnerID:         "u1",
		Status:          &status,
		DueStart:        &start,
		DueEnd:          &end,
		DueEndExclusive: true,
		Search:          "50%_off",
	}

	where, args := buildTaskWhere(f)
	want := " WHERE owner_id = $1 AND status = $2 AND due_date >= $3 AND due_date < $4 AND title ILIKE $5"
	if where != want {
		t.Fatalf("where mismatch:\n got %q\nwant %q", where, want)
	}
	if len(args) != 5 {
		t.Fatalf("expected 5 args, got %d", len(args))
	}
	if args[1] != "PENDING" {
		t.Errorf("status arg = %v", args[1])
	}
	if got := args[4]; got != `%50\%\_off%` {
		t.Errorf("search arg = %v", got)
	}
}

func TestBuildTaskWhere_InclusiveEnd(t *testing.T) {
	end := time.Date(2023, 10, 27, 12, 0, 0, 0, time.UTC)
	f := &query.Filter{Scope: query.ScopeSelf, OwnerID: "u1", DueEnd: &end}

	where, _ := buildTaskWhere(f)
	if !strings.HasSuffix(where, "due_date <= $2") {
		t.Fatalf("expected inclusive end bound, got %q", where)
	}
}

func TestBuildTaskOrder(t *testing.T) {
	tests := []struct {
		name string
		by   query.SortField
		desc bool
		want string
	}{
		{"default", "", true, `"created_at" DESC, "id" DESC`},
		{"created asc", query.SortCreatedAt, false, `"created_at" ASC, "id" ASC`},
		{"due desc", query.SortDueDate, true, `"due_date" DESC NULLS LAST, "id" DESC`},
		{"due asc", query.SortDueDate, false, `"due_date" ASC NULLS LAST, "id" ASC`},
		{"title", query.SortTitle, false, `"title" ASC, "id" ASC`},
		{"unknown falls back", query.SortField("1; DROP TABLE tasks"), true, `"created_at" DESC, "id" DESC`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildTaskOrder(&query.Filter{SortBy: tt.by, SortDesc: tt.desc})
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEscapeLike(t *testing.T) {
	tests := map[string]string{
		"plain":   "plain",
		"100%":    `100\%`,
		"a_b":     `a\_b`,
		`back\sl`: `back\\sl`,
	}
	for in, want := range tests {
		if got := escapeLike(in); got != want {
			t.Errorf("escapeLike(%q) = %q, want %q", in, got, want)
		}
	}
}
