package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/maheshrc27/socialpilot/internal/api/middleware"
	"github.com/maheshrc27/socialpilot/internal/lock"
	"github.com/maheshrc27/socialpilot/internal/models"
	"github.com/maheshrc27/socialpilot/internal/repository"
	"github.com/maheshrc27/socialpilot/internal/service"
	"github.com/maheshrc27/socialpilot/pkg/utils"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	secretKey  = "0123456789abcdef0123456789abcdef"
	cronSecret = "cron-secret"
)

type stubLease struct{ err, releaseErr error }

func (s stubLease) Acquire(ctx context.Context) (func() error, error) {
	if s.err != nil {
		return nil, s.err
	}
	return func() error { return s.releaseErr }, nil
}

type stubRunner struct {
	summary *service.Summary
	err     error
}

func (s stubRunner) Run(ctx context.Context) (*service.Summary, error) {
	return s.summary, s.err
}

type stubEnqueuer struct{ tasks []*asynq.Task }

func (s *stubEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	s.tasks = append(s.tasks, task)
	return &asynq.TaskInfo{}, nil
}

func newOrchestrator(store *repository.MemoryStore, publishers map[models.Platform]service.Publisher) *service.Orchestrator {
	return service.NewOrchestrator(service.Dependencies{
		Posts:          store.Posts(),
		PostPlatforms:  store.PostPlatforms(),
		Accounts:       store.Accounts(),
		PostingHistory: store.PostingHistory(),
		Scanner:        service.NewDueScanner(store.Posts(), store.PostPlatforms(), models.NewPlatformSet(models.PlatformFacebook), 0),
		Registry:       service.NewRegistry(publishers),
		Media:          service.NewMediaService(nil, "", "", 0),
		Logger:         zerolog.Nop(),
	}, service.Options{Concurrency: 2, RunBudget: time.Minute, MaxRetries: 2})
}

func seed(store *repository.MemoryStore) {
	due := time.Now().Add(-time.Minute)
	store.AddAccount(&models.ConnectedAccount{
		ID: "acc-ig", ProfileID: "profile-1", Platform: models.PlatformInstagram,
		PlatformUserID: "ig-user", AccessToken: "token", IsActive: true,
	})
	store.AddPost(&models.Post{
		ID: "post-1", ProfileID: "profile-1", Content: models.PlainText("hello"),
		MediaURLs: []string{"https://cdn.example.com/a.jpg"}, ScheduledFor: &due,
		Status: models.PostStatusScheduled,
	}, &models.PostPlatform{ID: "pp-1", Platform: models.PlatformInstagram, AccountID: "acc-ig", Status: models.PostPlatformPending})
}

func call(t *testing.T, app *fiber.App, method, path, bearer string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if bearer != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+bearer)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &body))
	}
	return resp.StatusCode, body
}

func cronApp(runner PassRunner, lease Locker) *fiber.App {
	auth := middleware.NewAuthMiddleware(secretKey, "session", cronSecret, zerolog.Nop())
	app := fiber.New()
	app.Get("/api/cron/publish-scheduled", auth.CronAuth(), NewCronHandler(runner, lease, zerolog.Nop()).PublishScheduled)
	return app
}

func TestPublishScheduledRunsPass(t *testing.T) {
	store := repository.NewMemoryStore()
	seed(store)
	ig := service.PublisherFunc(func(ctx context.Context, req *models.PublishRequest) (*models.PublishResult, error) {
		return &models.PublishResult{Success: true, PlatformPostID: "ig-1"}, nil
	})
	app := cronApp(newOrchestrator(store, map[models.Platform]service.Publisher{models.PlatformInstagram: ig}), nil)

	status, body := call(t, app, fiber.MethodGet, "/api/cron/publish-scheduled", cronSecret)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["processed"])
	assert.EqualValues(t, 0, body["failed"])
	assert.EqualValues(t, 1, body["total"])
	assert.Equal(t, "Processed 1 of 1 due posts", body["message"])
	assert.Empty(t, body["errors"])
	assert.NotEmpty(t, body["runId"])

	assert.Equal(t, models.PostStatusPublished, store.Post("post-1").Status)
}

func TestPublishScheduledReportsFailures(t *testing.T) {
	store := repository.NewMemoryStore()
	seed(store)
	ig := service.PublisherFunc(func(ctx context.Context, req *models.PublishRequest) (*models.PublishResult, error) {
		return nil, errors.New("connection reset")
	})
	app := cronApp(newOrchestrator(store, map[models.Platform]service.Publisher{models.PlatformInstagram: ig}), nil)

	status, body := call(t, app, fiber.MethodGet, "/api/cron/publish-scheduled", cronSecret)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["failed"])
	errs, ok := body["errors"].([]any)
	require.True(t, ok)
	require.Len(t, errs, 1)
	entry := errs[0].(map[string]any)
	assert.Equal(t, "post-1", entry["postId"])
	assert.Equal(t, "INSTAGRAM", entry["platform"])
	assert.Contains(t, entry["error"], "connection reset")
}

func TestPublishScheduledUnauthorized(t *testing.T) {
	app := cronApp(stubRunner{}, nil)

	status, _ := call(t, app, fiber.MethodGet, "/api/cron/publish-scheduled", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = call(t, app, fiber.MethodGet, "/api/cron/publish-scheduled", "nope")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestPublishScheduledScanFailure(t *testing.T) {
	app := cronApp(stubRunner{err: errors.New("database unreachable")}, nil)

	status, body := call(t, app, fiber.MethodGet, "/api/cron/publish-scheduled", cronSecret)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "database unreachable", body["error"])
}

func TestPublishScheduledLeaseHeld(t *testing.T) {
	app := cronApp(stubRunner{err: errors.New("must not run")}, stubLease{err: lock.ErrLeaseHeld})

	status, body := call(t, app, fiber.MethodGet, "/api/cron/publish-scheduled", cronSecret)
	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 0, body["processed"])
	assert.Equal(t, "publishing pass already running", body["message"])
}

func TestPublishScheduledLogsReleaseFailure(t *testing.T) {
	var buf bytes.Buffer
	runner := stubRunner{summary: &service.Summary{RunID: "run-1", Total: 1, Processed: 1}}
	auth := middleware.NewAuthMiddleware(secretKey, "session", cronSecret, zerolog.Nop())
	app := fiber.New()
	handler := NewCronHandler(runner, stubLease{releaseErr: errors.New("redis timeout")}, zerolog.New(&buf))
	app.Get("/api/cron/publish-scheduled", auth.CronAuth(), handler.PublishScheduled)

	status, body := call(t, app, fiber.MethodGet, "/api/cron/publish-scheduled", cronSecret)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "run-1", body["runId"])
	assert.Contains(t, buf.String(), `"message":"release run lease"`)
	assert.Contains(t, buf.String(), "redis timeout")
}

type postFixture struct {
	app   *fiber.App
	store *repository.MemoryStore
	tasks *stubEnqueuer
	token string
}

func newPostFixture(t *testing.T, publishers map[models.Platform]service.Publisher) *postFixture {
	t.Helper()
	store := repository.NewMemoryStore()
	seed(store)
	tasks := &stubEnqueuer{}

	auth := middleware.NewAuthMiddleware(secretKey, "session", "", zerolog.Nop())
	h := NewPostHandler(store.Posts(), store.PostPlatforms(), store.PostingHistory(),
		newOrchestrator(store, publishers), tasks, zerolog.Nop())

	app := fiber.New()
	api := app.Group("/api", auth.AuthMiddleware())
	api.Get("/posts/:id", h.GetPost)
	api.Post("/posts/:id/publish", h.PublishPost)
	api.Post("/posts/:id/retry", h.RetryPost)

	token, err := utils.GenerateToken(secretKey, "user-1", []string{"profile-1"}, time.Hour)
	require.NoError(t, err)
	return &postFixture{app: app, store: store, tasks: tasks, token: token}
}

func TestGetPost(t *testing.T) {
	f := newPostFixture(t, nil)

	status, body := call(t, f.app, fiber.MethodGet, "/api/posts/post-1", f.token)
	require.Equal(t, http.StatusOK, status)
	post := body["post"].(map[string]any)
	assert.Equal(t, "SCHEDULED", post["status"])
	assert.Equal(t, "hello", post["content"])
	platforms := post["platforms"].([]any)
	require.Len(t, platforms, 1)
	assert.Equal(t, "PENDING", platforms[0].(map[string]any)["status"])
}

func TestGetPostScopedToProfiles(t *testing.T) {
	f := newPostFixture(t, nil)
	other, err := utils.GenerateToken(secretKey, "user-2", []string{"profile-2"}, time.Hour)
	require.NoError(t, err)

	status, _ := call(t, f.app, fiber.MethodGet, "/api/posts/post-1", other)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = call(t, f.app, fiber.MethodGet, "/api/posts/missing", f.token)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = call(t, f.app, fiber.MethodGet, "/api/posts/post-1", "")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestPublishPostQueuesTask(t *testing.T) {
	f := newPostFixture(t, nil)

	status, _ := call(t, f.app, fiber.MethodPost, "/api/posts/post-1/publish", f.token)
	require.Equal(t, http.StatusAccepted, status)
	require.Len(t, f.tasks.tasks, 1)
	assert.JSONEq(t, `{"post_id":"post-1"}`, string(f.tasks.tasks[0].Payload()))
}

func TestRetryPost(t *testing.T) {
	ig := service.PublisherFunc(func(ctx context.Context, req *models.PublishRequest) (*models.PublishResult, error) {
		return models.PublishFailure("rate limited"), nil
	})
	f := newPostFixture(t, map[models.Platform]service.Publisher{models.PlatformInstagram: ig})

	status, _ := call(t, f.app, fiber.MethodPost, "/api/posts/post-1/retry", f.token)
	assert.Equal(t, http.StatusConflict, status, "nothing has failed yet")

	orch := newOrchestrator(f.store, map[models.Platform]service.Publisher{models.PlatformInstagram: ig})
	_, err := orch.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.PostStatusFailed, f.store.Post("post-1").Status)

	status, _ = call(t, f.app, fiber.MethodPost, "/api/posts/post-1/publish", f.token)
	assert.Equal(t, http.StatusConflict, status)

	status, body := call(t, f.app, fiber.MethodPost, "/api/posts/post-1/retry", f.token)
	require.Equal(t, http.StatusAccepted, status)
	assert.EqualValues(t, 1, body["requeued"])
	assert.Equal(t, models.PostStatusScheduled, f.store.Post("post-1").Status)
	assert.Equal(t, models.PostPlatformPending, f.store.PostPlatform("pp-1").Status)
	assert.Len(t, f.tasks.tasks, 1)
}
