package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/maheshrc27/socialpilot/internal/models"
)

// MemoryStore is an in-process implementation of every repository interface,
// with the same conditional-update semantics as the Postgres queries. It backs
// the tests and local runs without a database.
type MemoryStore struct {
	mu        sync.Mutex
	posts     map[string]*models.Post
	platforms map[string]*models.PostPlatform
	accounts  map[string]*models.ConnectedAccount
	history   []*models.PostingHistory
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		posts:     make(map[string]*models.Post),
		platforms: make(map[string]*models.PostPlatform),
		accounts:  make(map[string]*models.ConnectedAccount),
	}
}

func (s *MemoryStore) Posts() PostRepository { return memoryPosts{s} }
func (s *MemoryStore) PostPlatforms() PostPlatformRepository { return memoryPlatforms{s} }
func (s *MemoryStore) Accounts() SocialAccountRepository { return memoryAccounts{s} }
func (s *MemoryStore) PostingHistory() PostingHistoryRepository { return memoryHistory{s} }

// AddPost stores copies of the post and its platforms.
func (s *MemoryStore) AddPost(post *models.Post, platforms ...*models.PostPlatform) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := *post
	p.Platforms = nil
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now()
	}
	s.posts[p.ID] = &p
	for _, pp := range platforms {
		c := *pp
		c.PostID = p.ID
		s.platforms[c.ID] = &c
	}
}

func (s *MemoryStore) AddAccount(acc *models.ConnectedAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *acc
	s.accounts[c.ID] = &c
}

func (s *MemoryStore) RemoveAccount(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accounts, id)
}

// Post returns a copy of the stored post, or nil.
func (s *MemoryStore) Post(id string) *models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return nil
	}
	c := *p
	return &c
}

// PostPlatform returns a copy of the stored row, or nil.
func (s *MemoryStore) PostPlatform(id string) *models.PostPlatform {
	s.mu.Lock()
	defer s.mu.Unlock()
	pp, ok := s.platforms[id]
	if !ok {
		return nil
	}
	c := *pp
	return &c
}

func (s *MemoryStore) Account(id string) *models.ConnectedAccount {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return nil
	}
	c := *acc
	return &c
}

func (s *MemoryStore) History() []models.PostingHistory {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.PostingHistory, len(s.history))
	for i, ph := range s.history {
		out[i] = *ph
	}
	return out
}

func (s *MemoryStore) platformsOf(postID string) []*models.PostPlatform {
	var out []*models.PostPlatform
	for _, pp := range s.platforms {
		if pp.PostID == postID {
			out = append(out, pp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type memoryPosts struct{ s *MemoryStore }

func (m memoryPosts) GetByID(ctx context.Context, id string) (*models.Post, error) {
	return m.s.Post(id), nil
}

func (m memoryPosts) ListDue(ctx context.Context, cutoff time.Time, excluded []models.Platform) ([]*models.Post, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	skip := models.NewPlatformSet(excluded...)
	var due []*models.Post
	for _, p := range m.s.posts {
		if p.Status != models.PostStatusScheduled || p.ScheduledFor == nil || p.ScheduledFor.After(cutoff) {
			continue
		}
		for _, pp := range m.s.platformsOf(p.ID) {
			if pp.Status == models.PostPlatformPending && !skip.Has(pp.Platform) {
				c := *p
				due = append(due, &c)
				break
			}
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].ScheduledFor.Equal(*due[j].ScheduledFor) {
			return due[i].ID < due[j].ID
		}
		return due[i].ScheduledFor.Before(*due[j].ScheduledFor)
	})
	return due, nil
}

func (m memoryPosts) ClaimForPublishing(ctx context.Context, id string) (bool, error) {
	return m.transition(id, models.PostStatusScheduled, models.PostStatusPublishing, nil), nil
}

func (m memoryPosts) FinishPublishing(ctx context.Context, id string, status models.PostStatus, publishedAt *time.Time) (bool, error) {
	return m.transition(id, models.PostStatusPublishing, status, publishedAt), nil
}

func (m memoryPosts) transition(id string, from, to models.PostStatus, publishedAt *time.Time) bool {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	p, ok := m.s.posts[id]
	if !ok || p.Status != from {
		return false
	}
	p.Status = to
	p.UpdatedAt = time.Now()
	if publishedAt != nil && p.PublishedAt == nil {
		t := *publishedAt
		p.PublishedAt = &t
	}
	return true
}

func (m memoryPosts) ReclaimStale(ctx context.Context, before time.Time) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	var n int64
	for _, p := range m.s.posts {
		if p.Status == models.PostStatusPublishing && p.UpdatedAt.Before(before) {
			p.Status = models.PostStatusScheduled
			p.UpdatedAt = time.Now()
			n++
		}
	}
	return n, nil
}

func (m memoryPosts) Reschedule(ctx context.Context, id string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	p, ok := m.s.posts[id]
	if !ok || (p.Status != models.PostStatusFailed && p.Status != models.PostStatusScheduled) {
		return false, nil
	}
	p.Status = models.PostStatusScheduled
	p.UpdatedAt = time.Now()
	return true, nil
}

type memoryPlatforms struct{ s *MemoryStore }

func (m memoryPlatforms) ListByPostID(ctx context.Context, postID string) ([]*models.PostPlatform, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	var out []*models.PostPlatform
	for _, pp := range m.s.platformsOf(postID) {
		c := *pp
		out = append(out, &c)
	}
	return out, nil
}

func (m memoryPlatforms) ListPending(ctx context.Context, postIDs []string, excluded []models.Platform) ([]*models.PostPlatform, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	skip := models.NewPlatformSet(excluded...)
	var out []*models.PostPlatform
	for _, postID := range postIDs {
		for _, pp := range m.s.platformsOf(postID) {
			if pp.Status == models.PostPlatformPending && !skip.Has(pp.Platform) {
				c := *pp
				out = append(out, &c)
			}
		}
	}
	return out, nil
}

func (m memoryPlatforms) MarkPublished(ctx context.Context, id, publishedID, publishedURL string, at time.Time) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	pp, ok := m.s.platforms[id]
	if !ok || pp.Status != models.PostPlatformPending {
		return false, nil
	}
	pp.Status = models.PostPlatformPublished
	pp.PublishedID = publishedID
	pp.PublishedURL = publishedURL
	pp.PublishedAt = &at
	pp.ErrorMessage = ""
	pp.UpdatedAt = time.Now()
	return true, nil
}

func (m memoryPlatforms) MarkFailed(ctx context.Context, id, message string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	pp, ok := m.s.platforms[id]
	if !ok || pp.Status != models.PostPlatformPending {
		return false, nil
	}
	pp.Status = models.PostPlatformFailed
	pp.ErrorMessage = message
	pp.UpdatedAt = time.Now()
	return true, nil
}

func (m memoryPlatforms) RequeueFailed(ctx context.Context, postID string, maxRetries int) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	var n int64
	for _, pp := range m.s.platformsOf(postID) {
		if pp.Status == models.PostPlatformFailed && pp.RetryCount < maxRetries {
			pp.Status = models.PostPlatformPending
			pp.RetryCount++
			pp.UpdatedAt = time.Now()
			n++
		}
	}
	return n, nil
}

type memoryAccounts struct{ s *MemoryStore }

func (m memoryAccounts) ListActiveByIDs(ctx context.Context, profileID string, ids []string) ([]*models.ConnectedAccount, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	var out []*models.ConnectedAccount
	for _, id := range ids {
		acc, ok := m.s.accounts[id]
		if ok && acc.ProfileID == profileID && acc.IsActive {
			c := *acc
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m memoryAccounts) ListExpiring(ctx context.Context, before time.Time) ([]*models.ConnectedAccount, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	var out []*models.ConnectedAccount
	for _, acc := range m.s.accounts {
		if acc.IsActive && acc.TokenExpiresAt != nil && acc.TokenExpiresAt.Before(before) && acc.RefreshToken != "" {
			c := *acc
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m memoryAccounts) SetToken(ctx context.Context, id, oldAccessToken string, acc *models.ConnectedAccount) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	stored, ok := m.s.accounts[id]
	if !ok || stored.AccessToken != oldAccessToken {
		return ErrTokenChanged
	}
	if acc.AccessToken != "" {
		stored.AccessToken = acc.AccessToken
	}
	if acc.RefreshToken != "" {
		stored.RefreshToken = acc.RefreshToken
	}
	if acc.TokenExpiresAt != nil {
		t := *acc.TokenExpiresAt
		stored.TokenExpiresAt = &t
	}
	stored.UpdatedAt = time.Now()
	return nil
}

type memoryHistory struct{ s *MemoryStore }

func (m memoryHistory) Create(ctx context.Context, ph *models.PostingHistory) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	c := *ph
	c.ID = int64(len(m.s.history) + 1)
	c.CreatedAt = time.Now()
	m.s.history = append(m.s.history, &c)
	return c.ID, nil
}

func (m memoryHistory) ListByPostID(ctx context.Context, postID string) ([]*models.PostingHistory, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	var out []*models.PostingHistory
	for i := len(m.s.history) - 1; i >= 0; i-- {
		if m.s.history[i].PostID == postID {
			c := *m.s.history[i]
			out = append(out, &c)
		}
	}
	return out, nil
}
