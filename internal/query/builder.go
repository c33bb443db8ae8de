package query

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tasktrack/tasktrack/internal/apperr"
	"github.com/tasktrack/tasktrack/internal/model"
)

const (
	// DefaultPageSize is used when neither the caller nor the config sets one.
	DefaultPageSize = 10
	// MaxPageSize is the hard ceiling for page_size.
	MaxPageSize = 100
	// MaxSearchLen bounds the search term length in characters.
	MaxSearchLen = 200

	maxOffset = math.MaxInt32
)

// Params carries raw, untrusted listing parameters exactly as received.
type Params struct {
	Status       string
	DueDateStart string
	DueDateEnd   string
	Page         string
	PageSize     string
	Scope        string
	OwnerID      string
	Search       string
	SortBy       string
	SortDesc     string
}

// ParamsFromValues reads listing parameters from a URL query.
func ParamsFromValues(v url.Values) Params {
	return Params{
		Status:       v.Get("status"),
		DueDateStart: v.Get("due_date_start"),
		DueDateEnd:   v.Get("due_date_end"),
		Page:         v.Get("page"),
		PageSize:     v.Get("page_size"),
		Scope:        v.Get("scope"),
		OwnerID:      v.Get("owner_id"),
		Search:       v.Get("search"),
		SortBy:       v.Get("sort_by"),
		SortDesc:     v.Get("sort_desc"),
	}
}

// Builder validates Params against a principal and produces a Filter.
type Builder struct {
	defaultPageSize int
	maxPageSize     int
}

// NewBuilder creates a builder. Non-positive sizes fall back to package defaults.
func NewBuilder(defaultPageSize, maxPageSize int) *Builder {
	if maxPageSize <= 0 {
		maxPageSize = MaxPageSize
	}
	if defaultPageSize <= 0 {
		defaultPageSize = DefaultPageSize
	}
	if defaultPageSize > maxPageSize {
		defaultPageSize = maxPageSize
	}
	return &Builder{defaultPageSize: defaultPageSize, maxPageSize: maxPageSize}
}

// MaxPageSize returns the configured page size ceiling.
func (b *Builder) MaxPageSize() int {
	return b.maxPageSize
}

// Build validates p and scopes it to the principal.
//
// Non-admin principals are always confined to their own tasks; any
// scope or owner_id they send is ignored. Admins may list everyone
// (scope=all) or one owner (owner_id).
func (b *Builder) Build(p Params, principal *model.Principal) (*Filter, error) {
	if principal == nil || principal.Subject == "" {
		return nil, apperr.ErrUnauthenticated
	}

	f := &Filter{
		SortBy:   SortCreatedAt,
		SortDesc: true,
		Page:     1,
		PageSize: b.defaultPageSize,
	}

	if err := b.applyScope(f, p, principal); err != nil {
		return nil, err
	}

	if s := strings.TrimSpace(p.Status); s != "" {
		status := model.TaskStatus(s)
		if !status.IsValid() {
			return nil, apperr.NewValidation("status", fmt.Sprintf("must be one of %s", statusList()))
		}
		f.Status = &status
	}

	if err := applyDueRange(f, p); err != nil {
		return nil, err
	}

	if s := strings.TrimSpace(p.Search); s != "" {
		if len([]rune(s)) > MaxSearchLen {
			return nil, apperr.NewValidation("search", fmt.Sprintf("must be at most %d characters", MaxSearchLen))
		}
		f.Search = s
	}

	if s := strings.TrimSpace(p.SortBy); s != "" {
		field := SortField(strings.ToLower(s))
		if !field.IsValid() {
			return nil, apperr.NewValidation("sort_by", "must be one of created_at, updated_at, due_date, title, status")
		}
		f.SortBy = field
	}
	if s := strings.TrimSpace(p.SortDesc); s != "" {
		desc, err := strconv.ParseBool(s)
		if err != nil {
			return nil, apperr.NewValidation("sort_desc", "must be a boolean")
		}
		f.SortDesc = desc
	}

	if err := b.applyPaging(f, p); err != nil {
		return nil, err
	}
	return f, nil
}

func (b *Builder) applyScope(f *Filter, p Params, principal *model.Principal) error {
	if !principal.IsAdmin() {
		f.Scope = ScopeSelf
		f.OwnerID = principal.Subject
		return nil
	}

	scope := strings.ToLower(strings.TrimSpace(p.Scope))
	owner := strings.TrimSpace(p.OwnerID)

	switch scope {
	case "", string(ScopeSelf), string(ScopeAll):
	default:
		return apperr.NewValidation("scope", "must be self or all")
	}

	switch {
	case owner != "" && scope == string(ScopeAll):
		return apperr.NewValidation("owner_id", "cannot be combined with scope=all")
	case owner != "" && owner != principal.Subject:
		f.Scope = ScopeOwner
		f.OwnerID = owner
	case scope == string(ScopeAll):
		f.Scope = ScopeAll
	default:
		f.Scope = ScopeSelf
		f.OwnerID = principal.Subject
	}
	return nil
}

func applyDueRange(f *Filter, p Params) error {
	if s := strings.TrimSpace(p.DueDateStart); s != "" {
		start, err := ParseDateTime(s)
		if err != nil {
			return apperr.NewValidation("due_date_start", "must be an ISO-8601 date or datetime")
		}
		f.DueStart = &start
	}

	if s := strings.TrimSpace(p.DueDateEnd); s != "" {
		end, err := ParseDateTime(s)
		if err != nil {
			return apperr.NewValidation("due_date_end", "must be an ISO-8601 date or datetime")
		}
		// A bare day (or exact midnight) covers that whole day.
		if isMidnight(end) {
			end = end.AddDate(0, 0, 1)
			f.DueEndExclusive = true
		}
		f.DueEnd = &end
	}

	if f.DueStart != nil && f.DueEnd != nil {
		empty := f.DueStart.After(*f.DueEnd) || (f.DueEndExclusive && f.DueStart.Equal(*f.DueEnd))
		if empty {
			return apperr.NewValidation("due_date_start", "must not be after due_date_end")
		}
	}
	return nil
}

func (b *Builder) applyPaging(f *Filter, p Params) error {
	if s := strings.TrimSpace(p.Page); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return apperr.NewValidation("page", "must be an integer")
		}
		if n < 1 {
			return apperr.NewValidation("page", "must be >= 1")
		}
		f.Page = n
	}

	if s := strings.TrimSpace(p.PageSize); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return apperr.NewValidation("page_size", "must be an integer")
		}
		if n < 1 || n > b.maxPageSize {
			return apperr.NewValidation("page_size", fmt.Sprintf("must be between 1 and %d", b.maxPageSize))
		}
		f.PageSize = n
	}

	if f.Page-1 > maxOffset/f.PageSize {
		return apperr.NewValidation("page", "is too large")
	}
	return nil
}

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
}

// ParseDateTime accepts an ISO-8601 calendar date or datetime.
// Values without a zone offset are read as UTC.
func ParseDateTime(s string) (time.Time, error) {
	if len(s) == len("2006-01-02") {
		return time.Parse("2006-01-02", s)
	}
	var firstErr error
	for _, layout := range dateTimeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

func isMidnight(t time.Time) bool {
	h, m, s := t.Clock()
	return h == 0 && m == 0 && s == 0 && t.Nanosecond() == 0
}

func statusList() string {
	names := make([]string, len(model.TaskStatuses))
	for i, s := range model.TaskStatuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}
