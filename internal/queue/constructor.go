package queue

import (
	"context"

	"github.com/maheshrc27/socialpilot/internal/service"
	"github.com/rs/zerolog"
)

// PostPublisher runs the orchestrator for a single post.
type PostPublisher interface {
	PublishPostByID(ctx context.Context, postID string) (*service.Summary, error)
}

type Queue struct {
	publisher PostPublisher
	log       zerolog.Logger
}

func NewQueue(publisher PostPublisher, logger zerolog.Logger) *Queue {
	return &Queue{
		publisher: publisher,
		log:       logger.With().Str("component", "queue").Logger(),
	}
}

const TaskTypePublishPost = "publish:post"

type PublishPostPayload struct {
	PostID string `json:"post_id"`
}
