package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/socialpilot/internal/api/middleware"
	"github.com/maheshrc27/socialpilot/internal/models"
	"github.com/maheshrc27/socialpilot/internal/queue"
	"github.com/maheshrc27/socialpilot/internal/repository"
	"github.com/maheshrc27/socialpilot/internal/service"
	"github.com/rs/zerolog"
)

type PostRetrier interface {
	RetryPost(ctx context.Context, postID string) (int64, error)
}

type PostHandler struct {
	posts     repository.PostRepository
	platforms repository.PostPlatformRepository
	history   repository.PostingHistoryRepository
	retrier   PostRetrier
	tasks     queue.Enqueuer
	log       zerolog.Logger
}

func NewPostHandler(
	posts repository.PostRepository,
	platforms repository.PostPlatformRepository,
	history repository.PostingHistoryRepository,
	retrier PostRetrier,
	tasks queue.Enqueuer,
	logger zerolog.Logger) *PostHandler {
	return &PostHandler{
		posts:     posts,
		platforms: platforms,
		history:   history,
		retrier:   retrier,
		tasks:     tasks,
		log:       logger.With().Str("component", "posts").Logger(),
	}
}

// loadPost fetches the :id post and checks the caller may act on its profile.
// Unknown and foreign posts both answer 404.
func (h *PostHandler) loadPost(c *fiber.Ctx) (*models.Post, error) {
	post, err := h.posts.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		h.log.Error().Err(err).Str("post_id", c.Params("id")).Msg("load post")
		return nil, errorJSON(c, fiber.StatusInternalServerError, "Unable to load post")
	}

	claims := middleware.GetClaims(c)
	if post == nil || claims == nil || !claims.CanAccess(post.ProfileID) {
		return nil, errorJSON(c, fiber.StatusNotFound, "Post not found")
	}
	return post, nil
}

func (h *PostHandler) GetPost(c *fiber.Ctx) error {
	post, err := h.loadPost(c)
	if post == nil {
		return err
	}

	ctx := c.UserContext()
	post.Platforms, err = h.platforms.ListByPostID(ctx, post.ID)
	if err != nil {
		h.log.Error().Err(err).Str("post_id", post.ID).Msg("list post platforms")
		return errorJSON(c, fiber.StatusInternalServerError, "Unable to load post")
	}
	history, err := h.history.ListByPostID(ctx, post.ID)
	if err != nil {
		h.log.Error().Err(err).Str("post_id", post.ID).Msg("list posting history")
		return errorJSON(c, fiber.StatusInternalServerError, "Unable to load post")
	}
	if history == nil {
		history = []*models.PostingHistory{}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"post":    post,
		"history": history,
	})
}

// PublishPost queues a SCHEDULED post for immediate publishing.
func (h *PostHandler) PublishPost(c *fiber.Ctx) error {
	post, err := h.loadPost(c)
	if post == nil {
		return err
	}
	if post.Status != models.PostStatusScheduled {
		return errorJSON(c, fiber.StatusConflict, "Post is not scheduled")
	}

	if err := queue.EnqueuePublishPost(h.tasks, queue.PublishPostPayload{PostID: post.ID}); err != nil {
		h.log.Error().Err(err).Str("post_id", post.ID).Msg("enqueue publish task")
		return errorJSON(c, fiber.StatusInternalServerError, "Error queueing post")
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "Post queued for publishing",
	})
}

// RetryPost requeues the failed platforms of a post and queues it.
func (h *PostHandler) RetryPost(c *fiber.Ctx) error {
	post, err := h.loadPost(c)
	if post == nil {
		return err
	}

	requeued, err := h.retrier.RetryPost(c.UserContext(), post.ID)
	switch {
	case errors.Is(err, service.ErrPostNotFound):
		return errorJSON(c, fiber.StatusNotFound, "Post not found")
	case errors.Is(err, service.ErrPostNotRetryable), errors.Is(err, service.ErrRetriesExhausted):
		return errorJSON(c, fiber.StatusConflict, err.Error())
	case err != nil:
		h.log.Error().Err(err).Str("post_id", post.ID).Msg("retry post")
		return errorJSON(c, fiber.StatusInternalServerError, "Unable to retry post")
	}

	if err := queue.EnqueuePublishPost(h.tasks, queue.PublishPostPayload{PostID: post.ID}); err != nil {
		// The post is SCHEDULED again, so the next pass picks it up.
		h.log.Warn().Err(err).Str("post_id", post.ID).Msg("enqueue retry task")
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message":  "Post queued for retry",
		"requeued": requeued,
	})
}
