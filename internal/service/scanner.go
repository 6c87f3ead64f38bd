package service

import (
	"context"
	"fmt"
	"time"

	"github.com/maheshrc27/socialpilot/internal/models"
	"github.com/maheshrc27/socialpilot/internal/repository"
)

// DueScanner finds the posts a pass has to publish.
//
// A post is due when it is SCHEDULED, its scheduled time is at or before the
// cutoff, and it still has a PENDING platform outside the native-scheduling
// set. The cutoff is now, or now plus the look-ahead window when one is set.
type DueScanner struct {
	posts     repository.PostRepository
	platforms repository.PostPlatformRepository
	excluded  []models.Platform
	lookahead time.Duration
}

func NewDueScanner(
	posts repository.PostRepository,
	platforms repository.PostPlatformRepository,
	nativeScheduling models.PlatformSet,
	lookahead time.Duration) *DueScanner {
	if lookahead < 0 {
		lookahead = 0
	}
	return &DueScanner{
		posts:     posts,
		platforms: platforms,
		excluded:  nativeScheduling.Slice(),
		lookahead: lookahead,
	}
}

func (s *DueScanner) Cutoff(now time.Time) time.Time {
	return now.Add(s.lookahead)
}

// Excluded returns the native-scheduling platforms the scanner never selects.
func (s *DueScanner) Excluded() []models.Platform {
	return s.excluded
}

// Scan returns due posts ordered by scheduled time, each carrying only its
// eligible PENDING platforms. Nothing due is an empty slice, not an error.
func (s *DueScanner) Scan(ctx context.Context, now time.Time) ([]*models.Post, error) {
	posts, err := s.posts.ListDue(ctx, s.Cutoff(now), s.excluded)
	if err != nil {
		return nil, fmt.Errorf("list due posts: %w", err)
	}
	if len(posts) == 0 {
		return []*models.Post{}, nil
	}

	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	pending, err := s.platforms.ListPending(ctx, ids, s.excluded)
	if err != nil {
		return nil, fmt.Errorf("list pending platforms: %w", err)
	}

	byPost := make(map[string][]*models.PostPlatform, len(posts))
	for _, pp := range pending {
		byPost[pp.PostID] = append(byPost[pp.PostID], pp)
	}

	due := make([]*models.Post, 0, len(posts))
	for _, p := range posts {
		// A row may have been finished between the two queries.
		if len(byPost[p.ID]) == 0 {
			continue
		}
		p.Platforms = byPost[p.ID]
		due = append(due, p)
	}
	return due, nil
}

// PendingFor attaches the eligible PENDING platforms to a single post.
func (s *DueScanner) PendingFor(ctx context.Context, post *models.Post) error {
	pending, err := s.platforms.ListPending(ctx, []string{post.ID}, s.excluded)
	if err != nil {
		return fmt.Errorf("list pending platforms: %w", err)
	}
	post.Platforms = pending
	return nil
}
