package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/socialpilot/internal/service"
)

func (q *Queue) HandlePublishPostTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishPostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.PostID == "" {
		return fmt.Errorf("empty post id: %w", asynq.SkipRetry)
	}

	log := q.log.With().Str("post_id", payload.PostID).Logger()

	summary, err := q.publisher.PublishPostByID(ctx, payload.PostID)
	switch {
	case errors.Is(err, service.ErrPostNotFound), errors.Is(err, service.ErrPostNotScheduled):
		// Deleted, or already taken by a pass. Nothing left to do.
		log.Info().Err(err).Msg("publish task dropped")
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	case err != nil:
		log.Error().Err(err).Msg("publish task failed")
		return err
	}

	log.Info().
		Str("run_id", summary.RunID).
		Int("processed", summary.Processed).
		Int("failed", summary.Failed).
		Msg(summary.Message())
	return nil
}
