package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/maheshrc27/socialpilot/internal/models"
)

var ErrTokenChanged = errors.New("access token changed concurrently")

type SocialAccountRepository interface {
	// ListActiveByIDs returns the active accounts among ids that belong to profileID.
	ListActiveByIDs(ctx context.Context, profileID string, ids []string) ([]*models.ConnectedAccount, error)
	ListExpiring(ctx context.Context, before time.Time) ([]*models.ConnectedAccount, error)
	// SetToken replaces the tokens of an account as long as its access token is still oldAccessToken.
	SetToken(ctx context.Context, id, oldAccessToken string, acc *models.ConnectedAccount) error
}

type socialAccountRepository struct {
	db *sql.DB
}

func NewSocialAccountRepository(db *sql.DB) SocialAccountRepository {
	return &socialAccountRepository{db: db}
}

const accountColumns = `id, profile_id, platform, COALESCE(platform_user_id, ''), COALESCE(account_name, ''),
	COALESCE(access_token, ''), COALESCE(refresh_token, ''), token_expires_at, is_active, created_at, updated_at`

func scanAccount(row rowScanner) (*models.ConnectedAccount, error) {
	var (
		acc       models.ConnectedAccount
		expiresAt sql.NullTime
	)
	err := row.Scan(&acc.ID, &acc.ProfileID, &acc.Platform, &acc.PlatformUserID, &acc.AccountName,
		&acc.AccessToken, &acc.RefreshToken, &expiresAt, &acc.IsActive, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		acc.TokenExpiresAt = &t
	}
	return &acc, nil
}

func (r *socialAccountRepository) ListActiveByIDs(ctx context.Context, profileID string, ids []string) ([]*models.ConnectedAccount, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `
		SELECT ` + accountColumns + `
		FROM connected_accounts
		WHERE id = ANY($1) AND profile_id = $2 AND is_active = TRUE
	`
	return r.list(ctx, query, pq.Array(ids), profileID)
}

func (r *socialAccountRepository) ListExpiring(ctx context.Context, before time.Time) ([]*models.ConnectedAccount, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM connected_accounts
		WHERE is_active = TRUE
			AND token_expires_at IS NOT NULL
			AND token_expires_at < $1
			AND refresh_token IS NOT NULL AND refresh_token <> ''
	`
	return r.list(ctx, query, before)
}

func (r *socialAccountRepository) list(ctx context.Context, query string, args ...any) ([]*models.ConnectedAccount, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.ConnectedAccount
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return accounts, nil
}

func (r *socialAccountRepository) SetToken(ctx context.Context, id, oldAccessToken string, acc *models.ConnectedAccount) error {
	query := `
		UPDATE connected_accounts
		SET
			access_token = COALESCE(NULLIF($3, ''), access_token),
			refresh_token = COALESCE(NULLIF($4, ''), refresh_token),
			token_expires_at = COALESCE($5, token_expires_at),
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND access_token = $2
	`
	var expiresAt sql.NullTime
	if acc.TokenExpiresAt != nil {
		expiresAt = sql.NullTime{Time: *acc.TokenExpiresAt, Valid: true}
	}

	updated, err := execAffected(ctx, r.db, query, id, oldAccessToken, acc.AccessToken, acc.RefreshToken, expiresAt)
	if err != nil {
		return fmt.Errorf("set token for account %s: %w", id, err)
	}
	if !updated {
		return ErrTokenChanged
	}
	return nil
}
