package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	config "github.com/maheshrc27/socialpilot/configs"
	"github.com/maheshrc27/socialpilot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistryCoversEveryPlatform(t *testing.T) {
	registry := NewDefaultRegistry(&config.Config{PublishTimeout: time.Second}, http.DefaultClient)

	supported := map[models.Platform]bool{
		models.PlatformInstagram: true,
		models.PlatformFacebook:  false,
		models.PlatformTwitter:   true,
		models.PlatformLinkedIn:  true,
		models.PlatformTiktok:    true,
		models.PlatformThreads:   false,
		models.PlatformYoutube:   true,
	}
	require.Len(t, supported, len(models.AllPlatforms))

	for _, p := range models.AllPlatforms {
		want, listed := supported[p]
		require.True(t, listed, "platform %s missing from the table", p)

		publisher, ok := registry.Lookup(p)
		assert.Equal(t, want, ok, p)
		if want {
			assert.NotNil(t, publisher, p)
		} else {
			assert.Nil(t, publisher, p)
		}
	}

	_, ok := registry.Lookup(models.Platform("MYSPACE"))
	assert.False(t, ok)
}

func TestRegistryIgnoresNilPublishers(t *testing.T) {
	registry := NewRegistry(map[models.Platform]Publisher{
		models.PlatformTwitter:   nil,
		models.PlatformInstagram: PublisherFunc(func(context.Context, *models.PublishRequest) (*models.PublishResult, error) { return nil, nil }),
	})

	_, ok := registry.Lookup(models.PlatformTwitter)
	assert.False(t, ok)
	assert.Equal(t, []models.Platform{models.PlatformInstagram}, registry.Platforms())

	var empty *Registry
	_, ok = empty.Lookup(models.PlatformInstagram)
	assert.False(t, ok)
}

func TestWithTimeoutBoundsSlowPublishers(t *testing.T) {
	slow := PublisherFunc(func(ctx context.Context, req *models.PublishRequest) (*models.PublishResult, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return &models.PublishResult{Success: true}, nil
		}
	})

	started := time.Now()
	_, err := WithTimeout(slow, 20*time.Millisecond).Publish(context.Background(), &models.PublishRequest{Platform: models.PlatformTwitter})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, time.Since(started), 2*time.Second)
}

func TestPublishTimeoutPerPlatform(t *testing.T) {
	cfg := &config.Config{PublishTimeout: 30 * time.Second, YoutubePublishTimeout: 10 * time.Minute}

	assert.Equal(t, 10*time.Minute, publishTimeout(cfg, models.PlatformYoutube))
	for _, p := range []models.Platform{models.PlatformInstagram, models.PlatformTwitter, models.PlatformLinkedIn, models.PlatformTiktok} {
		assert.Equal(t, 30*time.Second, publishTimeout(cfg, p), p)
	}

	cfg.YoutubePublishTimeout = 0
	assert.Equal(t, 30*time.Second, publishTimeout(cfg, models.PlatformYoutube))
}
