package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/maheshrc27/socialpilot/internal/models"
)

type PostPlatformRepository interface {
	ListByPostID(ctx context.Context, postID string) ([]*models.PostPlatform, error)
	// ListPending returns the PENDING rows of the given posts whose platform is not excluded.
	ListPending(ctx context.Context, postIDs []string, excluded []models.Platform) ([]*models.PostPlatform, error)
	// MarkPublished and MarkFailed only touch rows that are still PENDING.
	MarkPublished(ctx context.Context, id, publishedID, publishedURL string, at time.Time) (bool, error)
	MarkFailed(ctx context.Context, id, message string) (bool, error)
	// RequeueFailed moves FAILED rows with retry_count below maxRetries back to PENDING.
	RequeueFailed(ctx context.Context, postID string, maxRetries int) (int64, error)
}

type postPlatformRepository struct {
	db *sql.DB
}

func NewPostPlatformRepository(db *sql.DB) PostPlatformRepository {
	return &postPlatformRepository{db: db}
}

const postPlatformColumns = `id, post_id, platform, account_id, status,
	COALESCE(published_id, ''), COALESCE(published_url, ''), COALESCE(error_message, ''),
	published_at, retry_count, updated_at`

func scanPostPlatform(row rowScanner) (*models.PostPlatform, error) {
	var (
		pp          models.PostPlatform
		publishedAt sql.NullTime
	)
	err := row.Scan(&pp.ID, &pp.PostID, &pp.Platform, &pp.AccountID, &pp.Status,
		&pp.PublishedID, &pp.PublishedURL, &pp.ErrorMessage, &publishedAt, &pp.RetryCount, &pp.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if publishedAt.Valid {
		t := publishedAt.Time
		pp.PublishedAt = &t
	}
	return &pp, nil
}

func (r *postPlatformRepository) ListByPostID(ctx context.Context, postID string) ([]*models.PostPlatform, error) {
	query := `SELECT ` + postPlatformColumns + ` FROM post_platforms WHERE post_id = $1 ORDER BY id`
	return r.list(ctx, query, postID)
}

func (r *postPlatformRepository) ListPending(ctx context.Context, postIDs []string, excluded []models.Platform) ([]*models.PostPlatform, error) {
	if len(postIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT ` + postPlatformColumns + `
		FROM post_platforms
		WHERE post_id = ANY($1)
			AND status = $2
			AND NOT (platform = ANY($3))
		ORDER BY post_id, id
	`
	return r.list(ctx, query, pq.Array(postIDs), models.PostPlatformPending, pq.Array(platformStrings(excluded)))
}

func (r *postPlatformRepository) list(ctx context.Context, query string, args ...any) ([]*models.PostPlatform, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	var platforms []*models.PostPlatform
	for rows.Next() {
		pp, err := scanPostPlatform(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		platforms = append(platforms, pp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return platforms, nil
}

func (r *postPlatformRepository) MarkPublished(ctx context.Context, id, publishedID, publishedURL string, at time.Time) (bool, error) {
	query := `
		UPDATE post_platforms
		SET status = $1,
			published_id = $2,
			published_url = $3,
			published_at = $4,
			error_message = NULL,
			updated_at = $5
		WHERE id = $6 AND status = $7
	`
	return execAffected(ctx, r.db, query, models.PostPlatformPublished, publishedID, publishedURL, at, time.Now(), id, models.PostPlatformPending)
}

func (r *postPlatformRepository) MarkFailed(ctx context.Context, id, message string) (bool, error) {
	query := `
		UPDATE post_platforms
		SET status = $1,
			error_message = $2,
			updated_at = $3
		WHERE id = $4 AND status = $5
	`
	return execAffected(ctx, r.db, query, models.PostPlatformFailed, message, time.Now(), id, models.PostPlatformPending)
}

func (r *postPlatformRepository) RequeueFailed(ctx context.Context, postID string, maxRetries int) (int64, error) {
	query := `
		UPDATE post_platforms
		SET status = $1,
			retry_count = retry_count + 1,
			updated_at = $2
		WHERE post_id = $3 AND status = $4 AND retry_count < $5
	`
	result, err := r.db.ExecContext(ctx, query, models.PostPlatformPending, time.Now(), postID, models.PostPlatformFailed, maxRetries)
	if err != nil {
		return 0, fmt.Errorf("requeue failed platforms: %w", err)
	}
	return result.RowsAffected()
}
