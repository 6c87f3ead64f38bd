package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/maheshrc27/socialpilot/internal/models"
)

type PostRepository interface {
	GetByID(ctx context.Context, id string) (*models.Post, error)
	// ListDue returns SCHEDULED posts due at or before cutoff that still have a
	// PENDING platform outside excluded. Platforms are not attached.
	ListDue(ctx context.Context, cutoff time.Time, excluded []models.Platform) ([]*models.Post, error)
	// ClaimForPublishing moves a post SCHEDULED -> PUBLISHING. False means another
	// worker got there first or the post is no longer scheduled.
	ClaimForPublishing(ctx context.Context, id string) (bool, error)
	// FinishPublishing moves a post out of PUBLISHING. publishedAt is only written
	// when the post has none yet.
	FinishPublishing(ctx context.Context, id string, status models.PostStatus, publishedAt *time.Time) (bool, error)
	// ReclaimStale returns posts stuck in PUBLISHING since before the given time to SCHEDULED.
	ReclaimStale(ctx context.Context, before time.Time) (int64, error)
	// Reschedule moves a FAILED post back to SCHEDULED for a manual retry.
	Reschedule(ctx context.Context, id string) (bool, error)
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `p.id, p.profile_id, p.content, p.media_urls, p.scheduled_for, p.status, p.published_at, p.created_at, p.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*models.Post, error) {
	var (
		post         models.Post
		content      []byte
		mediaURLs    pq.StringArray
		scheduledFor sql.NullTime
		publishedAt  sql.NullTime
	)
	err := row.Scan(&post.ID, &post.ProfileID, &content, &mediaURLs, &scheduledFor,
		&post.Status, &publishedAt, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return nil, err
	}

	post.Content, err = models.ParseContent(content)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", post.ID, err)
	}
	post.MediaURLs = []string(mediaURLs)
	if scheduledFor.Valid {
		t := scheduledFor.Time
		post.ScheduledFor = &t
	}
	if publishedAt.Valid {
		t := publishedAt.Time
		post.PublishedAt = &t
	}
	return &post, nil
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts p WHERE p.id = $1`

	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get post %s: %w", id, err)
	}
	return post, nil
}

func (r *postRepository) ListDue(ctx context.Context, cutoff time.Time, excluded []models.Platform) ([]*models.Post, error) {
	query := `
		SELECT ` + postColumns + `
		FROM posts p
		WHERE p.status = $1
			AND p.scheduled_for IS NOT NULL
			AND p.scheduled_for <= $2
			AND EXISTS (
				SELECT 1 FROM post_platforms pp
				WHERE pp.post_id = p.id
					AND pp.status = $3
					AND NOT (pp.platform = ANY($4))
			)
		ORDER BY p.scheduled_for ASC, p.id ASC
	`

	rows, err := r.db.QueryContext(ctx, query,
		models.PostStatusScheduled, cutoff, models.PostPlatformPending, pq.Array(platformStrings(excluded)))
	if err != nil {
		return nil, fmt.Errorf("query due posts: %w", err)
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan due post: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return posts, nil
}

func (r *postRepository) ClaimForPublishing(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE posts
		SET status = $1,
			updated_at = $2
		WHERE id = $3 AND status = $4
	`
	return execAffected(ctx, r.db, query, models.PostStatusPublishing, time.Now(), id, models.PostStatusScheduled)
}

func (r *postRepository) FinishPublishing(ctx context.Context, id string, status models.PostStatus, publishedAt *time.Time) (bool, error) {
	query := `
		UPDATE posts
		SET status = $1,
			published_at = COALESCE(published_at, $2),
			updated_at = $3
		WHERE id = $4 AND status = $5
	`
	var at sql.NullTime
	if publishedAt != nil {
		at = sql.NullTime{Time: *publishedAt, Valid: true}
	}
	return execAffected(ctx, r.db, query, status, at, time.Now(), id, models.PostStatusPublishing)
}

func (r *postRepository) ReclaimStale(ctx context.Context, before time.Time) (int64, error) {
	query := `
		UPDATE posts
		SET status = $1,
			updated_at = $2
		WHERE status = $3 AND updated_at < $4
	`
	result, err := r.db.ExecContext(ctx, query, models.PostStatusScheduled, time.Now(), models.PostStatusPublishing, before)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale posts: %w", err)
	}
	return result.RowsAffected()
}

func (r *postRepository) Reschedule(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE posts
		SET status = $1,
			updated_at = $2
		WHERE id = $3 AND status IN ($4, $1)
	`
	return execAffected(ctx, r.db, query, models.PostStatusScheduled, time.Now(), id, models.PostStatusFailed)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func execAffected(ctx context.Context, db execer, query string, args ...any) (bool, error) {
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("exec: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func platformStrings(platforms []models.Platform) []string {
	out := make([]string, len(platforms))
	for i, p := range platforms {
		out[i] = string(p)
	}
	return out
}
