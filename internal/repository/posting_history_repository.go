package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/maheshrc27/socialpilot/internal/models"
)

type PostingHistoryRepository interface {
	Create(ctx context.Context, ph *models.PostingHistory) (int64, error)
	ListByPostID(ctx context.Context, postID string) ([]*models.PostingHistory, error)
}

type postingHistoryRepository struct {
	db *sql.DB
}

func NewPostingHistoryRepository(db *sql.DB) PostingHistoryRepository {
	return &postingHistoryRepository{db: db}
}

func (r *postingHistoryRepository) Create(ctx context.Context, ph *models.PostingHistory) (int64, error) {
	query := `
		INSERT INTO posting_history (run_id, post_id, post_platform_id, account_id, platform, success, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		ph.RunID, ph.PostID, ph.PostPlatformID, ph.AccountID, ph.Platform, ph.Success, ph.ErrorMessage).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert posting history: %w", err)
	}
	return id, nil
}

func (r *postingHistoryRepository) ListByPostID(ctx context.Context, postID string) ([]*models.PostingHistory, error) {
	query := `
		SELECT id, run_id, post_id, post_platform_id, account_id, platform, success, error_message, created_at
		FROM posting_history
		WHERE post_id = $1
		ORDER BY created_at DESC, id DESC
	`
	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		return nil, fmt.Errorf("query posting history: %w", err)
	}
	defer rows.Close()

	var history []*models.PostingHistory
	for rows.Next() {
		var ph models.PostingHistory
		err := rows.Scan(&ph.ID, &ph.RunID, &ph.PostID, &ph.PostPlatformID, &ph.AccountID,
			&ph.Platform, &ph.Success, &ph.ErrorMessage, &ph.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan posting history: %w", err)
		}
		history = append(history, &ph)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return history, nil
}
