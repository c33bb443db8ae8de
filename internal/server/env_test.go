package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tasktrack/tasktrack/internal/auth"
	"github.com/tasktrack/tasktrack/internal/cache"
	"github.com/tasktrack/tasktrack/internal/metrics"
	"github.com/tasktrack/tasktrack/internal/model"
	"github.com/tasktrack/tasktrack/internal/query"
	"github.com/tasktrack/tasktrack/internal/service"
	"github.com/tasktrack/tasktrack/internal/testutil/memstore"
)

var testSecret = []byte("router-test-secret-0123456789abcdef")

const testPassword = "correct horse battery staple"

// apiEnv is a fully wired router over an in-memory store.
type apiEnv struct {
	handler http.Handler
	store   *memstore.Store
	tokens  *auth.TokenService
	metrics *metrics.InMemoryRecorder

	alice *model.User
	bob   *model.User
	admin *model.User
}

type envOption func(*RouterConfig)

func newAPIEnv(t *testing.T, opts ...envOption) *apiEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hasher := auth.NewHasher(auth.Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16})
	tokens, err := auth.NewTokenService(testSecret, 30*time.Minute)
	require.NoError(t, err)

	hash, err := hasher.Hash(testPassword)
	require.NoError(t, err)

	store := memstore.New()
	env := &apiEnv{
		store:   store,
		tokens:  tokens,
		metrics: metrics.NewInMemory(),
		alice:   &model.User{ID: "01HALICE", Email: "alice@example.com", FullName: "Alice Doe", PasswordHash: hash, Role: model.RoleUser},
		bob:     &model.User{ID: "01HBOB", Email: "bob@example.com", FullName: "Bob Roe", PasswordHash: hash, Role: model.RoleUser},
		admin:   &model.User{ID: "01HADMIN", Email: "admin@example.com", FullName: "Ada Admin", PasswordHash: hash, Role: model.RoleAdmin},
	}
	store.AddUser(env.alice)
	store.AddUser(env.bob)
	store.AddUser(env.admin)

	cfg := RouterConfig{
		Logger:           logger,
		Version:          "test",
		Auth:             service.NewAuthService(store, hasher, tokens, time.Second, env.metrics, logger),
		Tasks:            service.NewTaskService(store, query.NewBuilder(10, 100), time.Second, env.metrics, logger),
		Tokens:           tokens,
		Metrics:          env.metrics,
		Snapshot:         env.metrics,
		Limiter:          cache.NewLocalLimiter(),
		RateLimitEnabled: false,
		LoginLimit:       cache.Limit{PerMinute: 60, Burst: 10},
		APILimit:         cache.Limit{PerMinute: 600, Burst: 100},
		IsDevelopment:    true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	env.handler = NewRouter(cfg)
	return env
}

func (e *apiEnv) token(t *testing.T, u *model.User) string {
	t.Helper()
	token, err := e.tokens.Issue(model.Principal{Subject: u.ID, Email: u.Email, Role: u.Role}, 0)
	require.NoError(t, err)
	return token
}

func (e *apiEnv) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *apiEnv) seedTask(t *testing.T, owner *model.User, id, title string, status model.TaskStatus, due *time.Time, created time.Time) {
	t.Helper()
	e.store.AddTask(&model.Task{
		ID:        id,
		Title:     title,
		Status:    status,
		DueDate:   due,
		OwnerID:   owner.ID,
		CreatedAt: created,
		UpdatedAt: created,
	})
}
