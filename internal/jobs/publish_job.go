package job

import (
	"context"
	"errors"
	"time"

	"github.com/maheshrc27/socialpilot/internal/lock"
	"github.com/maheshrc27/socialpilot/internal/service"
	"github.com/rs/zerolog"
)

// Runner executes one publishing pass.
type Runner interface {
	Run(ctx context.Context) (*service.Summary, error)
}

// Locker guards a pass against overlapping ones. Acquire returns
// lock.ErrLeaseHeld when another pass holds the lease.
type Locker interface {
	Acquire(ctx context.Context) (func() error, error)
}

// PublishJob runs publishing passes in-process on a cron schedule, for
// deployments without an external scheduler hitting the trigger endpoint.
type PublishJob struct {
	runner  Runner
	lease   Locker
	timeout time.Duration
	log     zerolog.Logger
}

// NewPublishJob builds the job. lease may be nil.
func NewPublishJob(runner Runner, lease Locker, timeout time.Duration, logger zerolog.Logger) *PublishJob {
	return &PublishJob{
		runner:  runner,
		lease:   lease,
		timeout: timeout,
		log:     logger.With().Str("job", "publish").Logger(),
	}
}

func (j *PublishJob) RunPass() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if j.lease != nil {
		release, err := j.lease.Acquire(ctx)
		if errors.Is(err, lock.ErrLeaseHeld) {
			j.log.Debug().Msg("publishing pass already running")
			return
		}
		if err != nil {
			j.log.Error().Err(err).Msg("acquire run lease")
			return
		}
		defer func() {
			if err := release(); err != nil {
				j.log.Warn().Err(err).Msg("release run lease")
			}
		}()
	}

	summary, err := j.runner.Run(ctx)
	if err != nil {
		j.log.Error().Err(err).Msg("publishing pass failed")
		return
	}
	j.log.Info().Str("run_id", summary.RunID).Msg(summary.Message())
}
