package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Enqueuer is the subset of *asynq.Client used to schedule tasks.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// NewPublishPostTask builds the task that publishes one post. The task id is
// derived from the post so a post is queued at most once at a time.
func NewPublishPostTask(payload PublishPostPayload) (*asynq.Task, error) {
	if payload.PostID == "" {
		return nil, errors.New("post id is required")
	}
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypePublishPost, taskPayload,
		asynq.TaskID("publish:"+payload.PostID),
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
	), nil
}

// EnqueuePublishPost queues a publish task. A task already queued for the same
// post is not an error.
func EnqueuePublishPost(client Enqueuer, payload PublishPostPayload) error {
	task, err := NewPublishPostTask(payload)
	if err != nil {
		return err
	}

	_, err = client.Enqueue(task)
	if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		return fmt.Errorf("enqueue publish task for post %s: %w", payload.PostID, err)
	}
	return nil
}
