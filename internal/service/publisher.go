package service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	config "github.com/maheshrc27/socialpilot/configs"
	"github.com/maheshrc27/socialpilot/internal/models"
)

// Publisher pushes one post to one platform account.
//
// Upstream HTTP failures come back as a result with Success false and Error
// set. A non-nil error means the call itself broke (network, decoding) and
// the caller decides what to record. Publishers never retry.
type Publisher interface {
	Publish(ctx context.Context, req *models.PublishRequest) (*models.PublishResult, error)
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(ctx context.Context, req *models.PublishRequest) (*models.PublishResult, error)

func (f PublisherFunc) Publish(ctx context.Context, req *models.PublishRequest) (*models.PublishResult, error) {
	return f(ctx, req)
}

// Registry is a fixed platform -> publisher table built once at startup.
type Registry struct {
	publishers map[models.Platform]Publisher
}

func NewRegistry(publishers map[models.Platform]Publisher) *Registry {
	table := make(map[models.Platform]Publisher, len(publishers))
	for platform, p := range publishers {
		if p != nil {
			table[platform] = p
		}
	}
	return &Registry{publishers: table}
}

// Lookup returns false for platforms without a publisher.
func (r *Registry) Lookup(platform models.Platform) (Publisher, bool) {
	if r == nil {
		return nil, false
	}
	p, ok := r.publishers[platform]
	return p, ok
}

// Platforms lists the supported platforms in enum order.
func (r *Registry) Platforms() []models.Platform {
	var out []models.Platform
	for _, p := range models.AllPlatforms {
		if _, ok := r.Lookup(p); ok {
			out = append(out, p)
		}
	}
	return out
}

// NewDefaultRegistry wires the production publishers. Every publisher call is
// bounded by publishTimeout.
func NewDefaultRegistry(cfg *config.Config, client *http.Client) *Registry {
	if client == nil {
		client = &http.Client{}
	}

	return NewRegistry(map[models.Platform]Publisher{
		models.PlatformInstagram: WithTimeout(NewInstagramPublisher(client, ""), publishTimeout(cfg, models.PlatformInstagram)),
		models.PlatformTwitter:   WithTimeout(NewTwitterPublisher(client, ""), publishTimeout(cfg, models.PlatformTwitter)),
		models.PlatformLinkedIn:  WithTimeout(NewLinkedInPublisher(client, ""), publishTimeout(cfg, models.PlatformLinkedIn)),
		models.PlatformTiktok:    WithTimeout(NewTiktokPublisher(client, ""), publishTimeout(cfg, models.PlatformTiktok)),
		models.PlatformYoutube:   WithTimeout(NewYoutubePublisher(client, ""), publishTimeout(cfg, models.PlatformYoutube)),
	})
}

// publishTimeout is cfg.PublishTimeout, except for YouTube whose Publish
// streams the whole video.
func publishTimeout(cfg *config.Config, platform models.Platform) time.Duration {
	if platform == models.PlatformYoutube && cfg.YoutubePublishTimeout > 0 {
		return cfg.YoutubePublishTimeout
	}
	return cfg.PublishTimeout
}

// WithTimeout bounds each Publish call. A zero timeout disables the bound.
func WithTimeout(p Publisher, timeout time.Duration) Publisher {
	if timeout <= 0 {
		return p
	}
	return PublisherFunc(func(ctx context.Context, req *models.PublishRequest) (*models.PublishResult, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		result, err := p.Publish(ctx, req)
		if err != nil && ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%s publish timed out after %s: %w", req.Platform, timeout, err)
		}
		return result, err
	})
}
