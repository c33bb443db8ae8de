// Package memstore provides an in-memory task and user store for tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/tasktrack/tasktrack/internal/model"
	"github.com/tasktrack/tasktrack/internal/query"
	"github.com/tasktrack/tasktrack/internal/repository"
)

// Store is an in-memory task and user store with the same filter, ordering,
// paging and error rules as the Postgres repository.
type Store struct {
	mu    sync.Mutex
	tasks map[string]*model.Task
	users map[string]*model.User

	// Err, when set, is returned by every call.
	Err error
	// Block makes every call wait for ctx to end.
	Block bool
	// Leak is appended to every ListTasks result regardless of the filter.
	Leak *model.Task
}

// New returns an empty Store.
func New() *Store {
	return &Store{tasks: map[string]*model.Task{}, users: map[string]*model.User{}}
}

func (m *Store) enter(ctx context.Context) error {
	if m.Block {
		<-ctx.Done()
		return ctx.Err()
	}
	return m.Err
}

// AddUser stores u.
func (m *Store) AddUser(u *model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

// AddTask stores a copy of t.
func (m *Store) AddTask(t *model.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.tasks[t.ID] = &cp
}

func (m *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	if err := m.enter(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if err := m.enter(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *Store) ListUsers(ctx context.Context) ([]*model.User, error) {
	if err := m.enter(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.User, 0, len(m.users))
	for _, u := range m.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (m *Store) CreateTask(ctx context.Context, task *model.Task) error {
	if err := m.enter(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.users) > 0 {
		if _, ok := m.users[task.OwnerID]; !ok {
			return repository.ErrOwnerNotFound
		}
	}
	cp := *task
	m.tasks[task.ID] = &cp
	return nil
}

func (m *Store) GetTaskByID(ctx context.Context, id string) (*model.Task, error) {
	if err := m.enter(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, repository.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *Store) UpdateTask(ctx context.Context, task *model.Task) error {
	if err := m.enter(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.tasks[task.ID]
	if !ok {
		return repository.ErrTaskNotFound
	}
	cp := *task
	cp.OwnerID = existing.OwnerID
	cp.CreatedAt = existing.CreatedAt
	m.tasks[task.ID] = &cp
	return nil
}

func (m *Store) DeleteTask(ctx context.Context, id string) error {
	if err := m.enter(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return repository.ErrTaskNotFound
	}
	delete(m.tasks, id)
	return nil
}

func (m *Store) ListTasks(ctx context.Context, f *query.Filter) ([]*model.Task, int, error) {
	if err := m.enter(ctx); err != nil {
		return nil, 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*model.Task
	for _, t := range m.tasks {
		if f.Matches(t) {
			cp := *t
			matched = append(matched, &cp)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return less(f, matched[i], matched[j]) })

	total := len(matched)
	start := f.Offset()
	if start > total {
		start = total
	}
	end := start + f.Limit()
	if end > total {
		end = total
	}
	page := matched[start:end]
	if m.Leak != nil {
		cp := *m.Leak
		page = append(page, &cp)
	}
	return page, total, nil
}

func (m *Store) CountTasksByStatus(ctx context.Context, ownerID string) (model.StatusCounts, error) {
	if err := m.enter(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := model.StatusCounts{}
	for _, t := range m.tasks {
		if t.OwnerID == ownerID {
			counts[t.Status]++
		}
	}
	return counts, nil
}

func (m *Store) WorkloadByDay(ctx context.Context, ownerID string) ([]model.WorkloadDay, error) {
	if err := m.enter(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	byDay := map[string]*model.WorkloadDay{}
	for _, t := range m.tasks {
		if t.OwnerID != ownerID || t.DueDate == nil {
			continue
		}
		day := t.DueDate.UTC().Format("2006-01-02")
		if byDay[day] == nil {
			byDay[day] = &model.WorkloadDay{Day: day}
		}
		byDay[day].Add(t.Status, 1)
	}
	var days []model.WorkloadDay
	for _, d := range byDay {
		days = append(days, *d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Day < days[j].Day })
	return days, nil
}

// less mirrors the repository ORDER BY: sort column, NULL due dates last,
// then id in the same direction.
func less(f *query.Filter, a, b *model.Task) bool {
	cmp := 0
	switch f.SortBy {
	case query.SortDueDate:
		switch {
		case a.DueDate == nil && b.DueDate == nil:
		case a.DueDate == nil:
			return false
		case b.DueDate == nil:
			return true
		default:
			cmp = a.DueDate.Compare(*b.DueDate)
		}
	case query.SortUpdatedAt:
		cmp = a.UpdatedAt.Compare(b.UpdatedAt)
	case query.SortTitle:
		cmp = strings.Compare(a.Title, b.Title)
	case query.SortStatus:
		cmp = strings.Compare(string(a.Status), string(b.Status))
	default:
		cmp = a.CreatedAt.Compare(b.CreatedAt)
	}
	if cmp == 0 {
		cmp = strings.Compare(a.ID, b.ID)
	}
	if f.SortDesc {
		return cmp > 0
	}
	return cmp < 0
}
