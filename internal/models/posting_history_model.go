package models

import "time"

type PostingHistory struct {
	ID             int64     `db:"id" json:"id"`
	RunID          string    `db:"run_id" json:"run_id"`
	PostID         string    `db:"post_id" json:"post_id"`
	PostPlatformID string    `db:"post_platform_id" json:"post_platform_id"`
	AccountID      string    `db:"account_id" json:"account_id"`
	Platform       Platform  `db:"platform" json:"platform"`
	Success        bool      `db:"success" json:"success"`
	ErrorMessage   string    `db:"error_message" json:"error_message"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
