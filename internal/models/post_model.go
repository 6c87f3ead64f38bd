package models

import "time"

type PostStatus string

const (
	PostStatusDraft      PostStatus = "DRAFT"
	PostStatusScheduled  PostStatus = "SCHEDULED"
	PostStatusPublishing PostStatus = "PUBLISHING"
	PostStatusPublished  PostStatus = "PUBLISHED"
	PostStatusFailed     PostStatus = "FAILED"
)

type PostPlatformStatus string

const (
	PostPlatformPending   PostPlatformStatus = "PENDING"
	PostPlatformPublished PostPlatformStatus = "PUBLISHED"
	PostPlatformScheduled PostPlatformStatus = "SCHEDULED" // delivered natively by the provider
	PostPlatformFailed    PostPlatformStatus = "FAILED"
)

// Terminal reports whether the engine will never touch the row again.
func (s PostPlatformStatus) Terminal() bool {
	return s != PostPlatformPending
}

type Post struct {
	ID           string     `db:"id" json:"id"`
	ProfileID    string     `db:"profile_id" json:"profile_id"`
	Content      Content    `db:"content" json:"content"`
	MediaURLs    []string   `db:"media_urls" json:"media_urls"`
	ScheduledFor *time.Time `db:"scheduled_for" json:"scheduled_for"`
	Status       PostStatus `db:"status" json:"status"`
	PublishedAt  *time.Time `db:"published_at" json:"published_at"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`

	// Platforms holds the rows selected by the query that loaded the post,
	// not necessarily every platform of the post.
	Platforms []*PostPlatform `json:"platforms,omitempty"`
}

type PostPlatform struct {
	ID           string             `db:"id" json:"id"`
	PostID       string             `db:"post_id" json:"post_id"`
	Platform     Platform           `db:"platform" json:"platform"`
	AccountID    string             `db:"account_id" json:"account_id"`
	Status       PostPlatformStatus `db:"status" json:"status"`
	PublishedID  string             `db:"published_id" json:"published_id,omitempty"`
	PublishedURL string             `db:"published_url" json:"published_url,omitempty"`
	ErrorMessage string             `db:"error_message" json:"error_message,omitempty"`
	PublishedAt  *time.Time         `db:"published_at" json:"published_at,omitempty"`
	RetryCount   int                `db:"retry_count" json:"retry_count"`
	UpdatedAt    time.Time          `db:"updated_at" json:"updated_at"`
}
