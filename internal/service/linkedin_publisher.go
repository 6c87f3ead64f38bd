package service

import (
	"context"
	"net/http"

	"github.com/maheshrc27/socialpilot/internal/models"
)

const linkedinAPIURL = "https://api.linkedin.com/v2"

// LinkedInPublisher shares a text post, with the first media URL attached as
// an article link.
type LinkedInPublisher struct {
	client  *http.Client
	baseURL string
}

func NewLinkedInPublisher(client *http.Client, baseURL string) *LinkedInPublisher {
	return &LinkedInPublisher{client: client, baseURL: baseURLOr(baseURL, linkedinAPIURL)}
}

func (p *LinkedInPublisher) Publish(ctx context.Context, req *models.PublishRequest) (*models.PublishResult, error) {
	if req.PlatformUserID == "" {
		return models.PublishFailure("LinkedIn member id is missing"), nil
	}

	shareContent := map[string]any{
		"shareCommentary":    map[string]string{"text": req.Content},
		"shareMediaCategory": "NONE",
	}
	if len(req.MediaItems) > 0 {
		shareContent["shareMediaCategory"] = "ARTICLE"
		shareContent["media"] = []map[string]string{{
			"status":      "READY",
			"originalUrl": req.MediaItems[0].URL,
		}}
	}

	payload := map[string]any{
		"author":         "urn:li:person:" + req.PlatformUserID,
		"lifecycleState": "PUBLISHED",
		"specificContent": map[string]any{
			"com.linkedin.ugc.ShareContent": shareContent,
		},
		"visibility": map[string]string{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}

	resp, err := doJSON(ctx, p.client, http.MethodPost, p.baseURL+"/ugcPosts", req.AccessToken, payload)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return models.PublishFailure(upstreamError("LinkedIn", resp)), nil
	}

	postURN := resp.Header.Get("X-RestLi-Id")
	if postURN == "" {
		var created struct {
			ID string `json:"id"`
		}
		if err := resp.decode(&created); err != nil {
			return nil, err
		}
		postURN = created.ID
	}
	if postURN == "" {
		return models.PublishFailure("no post URN returned from LinkedIn"), nil
	}

	return &models.PublishResult{
		Success:         true,
		PlatformPostID:  postURN,
		PlatformPostURL: "https://www.linkedin.com/feed/update/" + postURN,
	}, nil
}
