package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/socialpilot/internal/lock"
	"github.com/maheshrc27/socialpilot/internal/service"
	"github.com/rs/zerolog"
)

type PassRunner interface {
	Run(ctx context.Context) (*service.Summary, error)
}

type Locker interface {
	Acquire(ctx context.Context) (func() error, error)
}

type CronHandler struct {
	runner PassRunner
	lease  Locker
	log    zerolog.Logger
}

// NewCronHandler builds the trigger handler. lease may be nil.
func NewCronHandler(runner PassRunner, lease Locker, logger zerolog.Logger) *CronHandler {
	return &CronHandler{
		runner: runner,
		lease:  lease,
		log:    logger.With().Str("component", "trigger").Logger(),
	}
}

// PublishScheduled runs one publishing pass and reports its summary.
func (h *CronHandler) PublishScheduled(c *fiber.Ctx) error {
	ctx := c.UserContext()

	if h.lease != nil {
		release, err := h.lease.Acquire(ctx)
		switch {
		case errors.Is(err, lock.ErrLeaseHeld):
			return c.Status(fiber.StatusOK).JSON(fiber.Map{
				"processed": 0,
				"failed":    0,
				"total":     0,
				"message":   "publishing pass already running",
				"errors":    []service.RunError{},
			})
		case err != nil:
			// Claims are conditional, so running without the lease is still safe.
			h.log.Warn().Err(err).Msg("run lease unavailable, running without it")
		default:
			defer func() {
				if err := release(); err != nil {
					h.log.Warn().Err(err).Msg("release run lease")
				}
			}()
		}
	}

	summary, err := h.runner.Run(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("publishing pass failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"processed": summary.Processed,
		"failed":    summary.Failed,
		"total":     summary.Total,
		"message":   summary.Message(),
		"errors":    summary.Errors,
		"runId":     summary.RunID,
	})
}
