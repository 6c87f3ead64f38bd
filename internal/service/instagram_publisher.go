package service

import (
	"context"
	"fmt"
	"net/http"

	"github.com/maheshrc27/socialpilot/internal/models"
)

const instagramGraphURL = "https://graph.instagram.com/v21.0"

// InstagramPublisher posts through the Instagram Graph API: one media
// container call followed by one media_publish call.
type InstagramPublisher struct {
	client  *http.Client
	baseURL string
}

func NewInstagramPublisher(client *http.Client, baseURL string) *InstagramPublisher {
	return &InstagramPublisher{client: client, baseURL: baseURLOr(baseURL, instagramGraphURL)}
}

type instagramIDResponse struct {
	ID string `json:"id"`
}

func (p *InstagramPublisher) Publish(ctx context.Context, req *models.PublishRequest) (*models.PublishResult, error) {
	if req.PlatformUserID == "" {
		return models.PublishFailure("Instagram account id is missing"), nil
	}
	if len(req.MediaItems) == 0 {
		return models.PublishFailure("Instagram requires an image or video"), nil
	}

	containerID, failure, err := p.createContainer(ctx, req)
	if err != nil || failure != nil {
		return failure, err
	}

	publishURL := fmt.Sprintf("%s/%s/media_publish", p.baseURL, req.PlatformUserID)
	resp, err := doJSON(ctx, p.client, http.MethodPost, publishURL, "", map[string]string{
		"creation_id":  containerID,
		"access_token": req.AccessToken,
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return models.PublishFailure(upstreamError("Instagram", resp)), nil
	}

	var published instagramIDResponse
	if err := resp.decode(&published); err != nil {
		return nil, err
	}
	if published.ID == "" {
		return models.PublishFailure("no media ID returned from Instagram"), nil
	}

	return &models.PublishResult{
		Success:        true,
		PlatformPostID: published.ID,
	}, nil
}

func (p *InstagramPublisher) createContainer(ctx context.Context, req *models.PublishRequest) (string, *models.PublishResult, error) {
	media := req.MediaItems[0]
	payload := map[string]any{
		"caption":      req.Content,
		"access_token": req.AccessToken,
	}
	if media.Type == models.MediaTypeVideo {
		payload["media_type"] = "REELS"
		payload["video_url"] = media.URL
	} else {
		payload["image_url"] = media.URL
	}

	mediaURL := fmt.Sprintf("%s/%s/media", p.baseURL, req.PlatformUserID)
	resp, err := doJSON(ctx, p.client, http.MethodPost, mediaURL, "", payload)
	if err != nil {
		return "", nil, err
	}
	if !resp.OK() {
		return "", models.PublishFailure(upstreamError("Instagram", resp)), nil
	}

	var container instagramIDResponse
	if err := resp.decode(&container); err != nil {
		return "", nil, err
	}
	if container.ID == "" {
		return "", models.PublishFailure("no media container ID returned from Instagram"), nil
	}
	return container.ID, nil, nil
}
