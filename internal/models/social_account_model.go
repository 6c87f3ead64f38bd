package models

import (
	"time"
)

// ConnectedAccount is written by the OAuth connect flow. Tokens are stored encrypted.
type ConnectedAccount struct {
	ID             string     `db:"id" json:"id"`
	ProfileID      string     `db:"profile_id" json:"profile_id"`
	Platform       Platform   `db:"platform" json:"platform"`
	PlatformUserID string     `db:"platform_user_id" json:"platform_user_id"`
	AccountName    string     `db:"account_name" json:"account_name"`
	AccessToken    string     `db:"access_token" json:"-"`
	RefreshToken   string     `db:"refresh_token" json:"-"`
	TokenExpiresAt *time.Time `db:"token_expires_at" json:"token_expires_at"`
	IsActive       bool       `db:"is_active" json:"is_active"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}
