package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/socialpilot/internal/service"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPublisher struct {
	ids     []string
	summary *service.Summary
	err     error
}

func (s *stubPublisher) PublishPostByID(ctx context.Context, postID string) (*service.Summary, error) {
	s.ids = append(s.ids, postID)
	return s.summary, s.err
}

type stubEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (s *stubEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	s.tasks = append(s.tasks, task)
	return &asynq.TaskInfo{}, s.err
}

func TestEnqueuePublishPost(t *testing.T) {
	client := &stubEnqueuer{}
	require.NoError(t, EnqueuePublishPost(client, PublishPostPayload{PostID: "post-1"}))
	require.Len(t, client.tasks, 1)

	task := client.tasks[0]
	assert.Equal(t, TaskTypePublishPost, task.Type())
	var payload PublishPostPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, "post-1", payload.PostID)
}

func TestEnqueuePublishPostDuplicateIsNotAnError(t *testing.T) {
	client := &stubEnqueuer{err: asynq.ErrTaskIDConflict}
	assert.NoError(t, EnqueuePublishPost(client, PublishPostPayload{PostID: "post-1"}))

	client.err = errors.New("redis down")
	assert.Error(t, EnqueuePublishPost(client, PublishPostPayload{PostID: "post-1"}))
}

func TestEnqueuePublishPostRequiresID(t *testing.T) {
	client := &stubEnqueuer{}
	assert.Error(t, EnqueuePublishPost(client, PublishPostPayload{}))
	assert.Empty(t, client.tasks)
}

func task(t *testing.T, postID string) *asynq.Task {
	t.Helper()
	task, err := NewPublishPostTask(PublishPostPayload{PostID: postID})
	require.NoError(t, err)
	return task
}

func TestHandlePublishPostTask(t *testing.T) {
	publisher := &stubPublisher{summary: &service.Summary{RunID: "run-1", Total: 1, Processed: 1}}
	q := NewQueue(publisher, zerolog.Nop())

	require.NoError(t, q.HandlePublishPostTask(context.Background(), task(t, "post-1")))
	assert.Equal(t, []string{"post-1"}, publisher.ids)
}

func TestHandlePublishPostTaskSkipsRetryForGonePosts(t *testing.T) {
	for _, cause := range []error{
		service.ErrPostNotFound,
		fmt.Errorf("%w: PUBLISHED", service.ErrPostNotScheduled),
	} {
		q := NewQueue(&stubPublisher{err: cause}, zerolog.Nop())
		err := q.HandlePublishPostTask(context.Background(), task(t, "post-1"))
		assert.ErrorIs(t, err, asynq.SkipRetry)
	}
}

func TestHandlePublishPostTaskRetriesOtherErrors(t *testing.T) {
	q := NewQueue(&stubPublisher{err: errors.New("connection refused")}, zerolog.Nop())
	err := q.HandlePublishPostTask(context.Background(), task(t, "post-1"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestHandlePublishPostTaskBadPayload(t *testing.T) {
	q := NewQueue(&stubPublisher{}, zerolog.Nop())
	err := q.HandlePublishPostTask(context.Background(), asynq.NewTask(TaskTypePublishPost, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestAsynqLogger(t *testing.T) {
	var buf bytes.Buffer
	var logger asynq.Logger = NewAsynqLogger(zerolog.New(&buf))

	logger.Warn("lease ", "lost")
	assert.Contains(t, buf.String(), `"message":"lease lost"`)
	assert.Contains(t, buf.String(), `"component":"asynq"`)
}
