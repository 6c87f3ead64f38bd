package service

import (
	"context"
	"fmt"
	"net/http"

	"github.com/maheshrc27/socialpilot/internal/models"
)

const twitterAPIURL = "https://api.twitter.com/2"

// TwitterPublisher creates a tweet with the v2 API. Media URLs are appended
// to the text since v2 has no pull-from-URL upload.
type TwitterPublisher struct {
	client  *http.Client
	baseURL string
}

func NewTwitterPublisher(client *http.Client, baseURL string) *TwitterPublisher {
	return &TwitterPublisher{client: client, baseURL: baseURLOr(baseURL, twitterAPIURL)}
}

func (p *TwitterPublisher) Publish(ctx context.Context, req *models.PublishRequest) (*models.PublishResult, error) {
	text := req.Content
	for _, m := range req.MediaItems {
		if text != "" {
			text += "\n"
		}
		text += m.URL
	}
	if text == "" {
		return models.PublishFailure("Tweet text is empty"), nil
	}

	resp, err := doJSON(ctx, p.client, http.MethodPost, p.baseURL+"/tweets", req.AccessToken, map[string]string{
		"text": text,
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return models.PublishFailure(upstreamError("Twitter", resp)), nil
	}

	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := resp.decode(&created); err != nil {
		return nil, err
	}
	if created.Data.ID == "" {
		return models.PublishFailure("no tweet ID returned from Twitter"), nil
	}

	return &models.PublishResult{
		Success:         true,
		PlatformPostID:  created.Data.ID,
		PlatformPostURL: fmt.Sprintf("https://twitter.com/i/web/status/%s", created.Data.ID),
	}, nil
}
