package job

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const (
	TokenRefreshSpec   = "@every 00h10m00s"
	tokenRefreshWindow = 30 * time.Minute
)

// TokenRefresher renews OAuth tokens that expire within the given window.
type TokenRefresher interface {
	RefreshExpiring(ctx context.Context, within time.Duration, concurrency int) (int, error)
}

type TokenRefreshJob struct {
	refresher   TokenRefresher
	concurrency int
	log         zerolog.Logger
}

func NewTokenRefreshJob(refresher TokenRefresher, concurrency int, logger zerolog.Logger) *TokenRefreshJob {
	return &TokenRefreshJob{
		refresher:   refresher,
		concurrency: concurrency,
		log:         logger.With().Str("job", "token_refresh").Logger(),
	}
}

func (j *TokenRefreshJob) RefreshTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	refreshed, err := j.refresher.RefreshExpiring(ctx, tokenRefreshWindow, j.concurrency)
	if err != nil {
		j.log.Error().Err(err).Msg("unable to refresh tokens")
		return
	}
	if refreshed > 0 {
		j.log.Info().Int("refreshed", refreshed).Msg("tokens refreshed")
	}
}
