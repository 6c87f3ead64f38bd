package service

import (
	"context"
	"net/http"

	"github.com/maheshrc27/socialpilot/internal/models"
	"github.com/maheshrc27/socialpilot/internal/transfer"
)

const tiktokAPIURL = "https://open.tiktokapis.com/v2"

// TiktokPublisher uses direct post with PULL_FROM_URL, so TikTok fetches the
// media itself and a single init call is enough.
type TiktokPublisher struct {
	client  *http.Client
	baseURL string
}

func NewTiktokPublisher(client *http.Client, baseURL string) *TiktokPublisher {
	return &TiktokPublisher{client: client, baseURL: baseURLOr(baseURL, tiktokAPIURL)}
}

func (p *TiktokPublisher) Publish(ctx context.Context, req *models.PublishRequest) (*models.PublishResult, error) {
	if len(req.MediaItems) == 0 {
		return models.PublishFailure("TikTok requires a video or at least one photo"), nil
	}

	var (
		endpoint string
		payload  any
	)
	if first := req.MediaItems[0]; first.Type == models.MediaTypeVideo {
		endpoint = p.baseURL + "/post/publish/video/init/"
		payload = transfer.VideoUploadRequest{
			PostInfo: transfer.VideoPostInfo{
				Title:                 req.Content,
				PrivacyLevel:          "PUBLIC_TO_EVERYONE",
				VideoCoverTimestampMs: 1000,
			},
			SourceInfo: transfer.VideoSourceInfo{
				Source:   "PULL_FROM_URL",
				VideoURL: first.URL,
			},
		}
	} else {
		var photos []string
		for _, m := range req.MediaItems {
			if m.Type == models.MediaTypeImage {
				photos = append(photos, m.URL)
			}
		}
		endpoint = p.baseURL + "/post/publish/content/init/"
		payload = transfer.PhotoUploadRequest{
			PostInfo: transfer.PhotoPostInfo{
				Title:        req.Content,
				Description:  req.Content,
				PrivacyLevel: "PUBLIC_TO_EVERYONE",
				AutoAddMusic: true,
			},
			SourceInfo: transfer.PhotoSourceInfo{
				Source:      "PULL_FROM_URL",
				PhotoImages: photos,
			},
			PostMode:  "DIRECT_POST",
			MediaType: "PHOTO",
		}
	}

	resp, err := doJSON(ctx, p.client, http.MethodPost, endpoint, req.AccessToken, payload)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return models.PublishFailure(upstreamError("TikTok", resp)), nil
	}

	var result transfer.TikTokUploadResponse
	if err := resp.decode(&result); err != nil {
		return nil, err
	}
	if result.Error.Failed() {
		return models.PublishFailure("TikTok rejected the post: " + result.Error.Message), nil
	}
	if result.Data.PublishID == "" {
		return models.PublishFailure("no publish ID returned from TikTok"), nil
	}

	return &models.PublishResult{
		Success:        true,
		PlatformPostID: result.Data.PublishID,
	}, nil
}
