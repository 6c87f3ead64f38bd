package models

import "time"

// PostStatusEvent is emitted after the engine writes a post's aggregate status.
type PostStatusEvent struct {
	PostID      string     `json:"postId"`
	ProfileID   string     `json:"profileId"`
	Status      PostStatus `json:"status"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	RunID       string     `json:"runId"`
}
