package models

type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

type MediaItem struct {
	URL  string    `json:"url"`
	Type MediaType `json:"type"`
}

// PublishRequest is the normalized input every publisher receives.
// AccessToken is already decrypted.
type PublishRequest struct {
	AccountID      string
	Platform       Platform
	Content        string
	MediaItems     []MediaItem
	AccessToken    string
	PlatformUserID string
}

type PublishResult struct {
	Success         bool   `json:"success"`
	PlatformPostID  string `json:"platform_post_id,omitempty"`
	PlatformPostURL string `json:"platform_post_url,omitempty"`
	Error           string `json:"error,omitempty"`
}

func PublishFailure(msg string) *PublishResult {
	return &PublishResult{Success: false, Error: msg}
}
