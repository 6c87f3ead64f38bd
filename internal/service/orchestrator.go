package service

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/maheshrc27/socialpilot/internal/models"
	"github.com/maheshrc27/socialpilot/internal/repository"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

const (
	MsgAccountNotFound     = "Account not found"
	MsgMissingAccessToken  = "Missing access token"
	MsgUnsupportedPlatform = "Unsupported platform"
	MsgPublishingFailed    = "Publishing failed"
)

var (
	ErrPostNotFound     = errors.New("post not found")
	ErrPostNotScheduled = errors.New("post is not scheduled")
	ErrPostNotRetryable = errors.New("post cannot be retried in its current status")
	ErrRetriesExhausted = errors.New("no failed platform has retries left")
)

// TokenDecrypter opens access tokens stored encrypted at rest.
type TokenDecrypter interface {
	Decrypt(encrypted string) (string, error)
}

type MediaResolver interface {
	Resolve(ctx context.Context, refs []string) ([]models.MediaItem, error)
}

type StatusNotifier interface {
	NotifyPostStatus(ctx context.Context, event models.PostStatusEvent) error
}

type Dependencies struct {
	Posts          repository.PostRepository
	PostPlatforms  repository.PostPlatformRepository
	Accounts       repository.SocialAccountRepository
	PostingHistory repository.PostingHistoryRepository
	Scanner        *DueScanner
	Registry       *Registry
	// Tokens may be nil when tokens are stored in plain text.
	Tokens   TokenDecrypter
	Media    MediaResolver
	Notifier StatusNotifier
	Logger   zerolog.Logger
}

type Options struct {
	Concurrency int
	// RunBudget stops a pass from claiming new posts once it has elapsed.
	RunBudget time.Duration
	// StaleAfter is how long a post may sit in PUBLISHING before a pass reclaims it.
	StaleAfter time.Duration
	MaxRetries int
}

// RunError is one fault recorded during a pass.
type RunError struct {
	PostID         string          `json:"postId"`
	PostPlatformID string          `json:"postPlatformId,omitempty"`
	Platform       models.Platform `json:"platform,omitempty"`
	Error          string          `json:"error"`
}

// Summary reports one pass. Total counts the due posts found, Processed the
// posts this pass claimed and finished, Failed the processed posts with at
// least one platform failure or fault.
type Summary struct {
	RunID     string     `json:"runId"`
	Total     int        `json:"total"`
	Processed int        `json:"processed"`
	Failed    int        `json:"failed"`
	Skipped   int        `json:"skipped"`
	Deferred  int        `json:"deferred"`
	Reclaimed int64      `json:"reclaimed"`
	Errors    []RunError `json:"errors"`
}

func (s *Summary) Message() string {
	msg := fmt.Sprintf("Processed %d of %d due posts", s.Processed, s.Total)
	if s.Failed > 0 {
		msg += fmt.Sprintf(", %d with failures", s.Failed)
	}
	if s.Skipped > 0 {
		msg += fmt.Sprintf(", %d claimed elsewhere", s.Skipped)
	}
	if s.Deferred > 0 {
		msg += fmt.Sprintf(", %d deferred to the next pass", s.Deferred)
	}
	return msg
}

// postOutcome is what processing a single post produced.
type postOutcome struct {
	claimed bool
	failed  bool
	status  models.PostStatus
	errors  []RunError
}

func (o *postOutcome) addError(e RunError) {
	o.failed = true
	o.errors = append(o.errors, e)
}

// Orchestrator runs publishing passes: claim each due post, publish its
// pending platforms and write back the aggregate status.
type Orchestrator struct {
	deps Dependencies
	opts Options
	log  zerolog.Logger
	now  func() time.Time
}

func NewOrchestrator(deps Dependencies, opts Options) *Orchestrator {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Orchestrator{
		deps: deps,
		opts: opts,
		log:  deps.Logger.With().Str("component", "orchestrator").Logger(),
		now:  time.Now,
	}
}

func newRunID() string {
	id, err := gonanoid.New()
	if err != nil {
		return fmt.Sprintf("run-%d", time.Now().UnixNano())
	}
	return id
}

// Run executes one pass over every due post. The only error it returns is a
// failed scan; everything else is recorded in the summary.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	start := o.now()
	summary := &Summary{RunID: newRunID(), Errors: []RunError{}}
	log := o.log.With().Str("run_id", summary.RunID).Logger()

	reclaimed, err := o.ReclaimStale(ctx)
	if err != nil {
		log.Error().Err(err).Msg("reclaim stale posts")
		summary.Errors = append(summary.Errors, RunError{Error: err.Error()})
	}
	summary.Reclaimed = reclaimed

	due, err := o.deps.Scanner.Scan(ctx, start)
	if err != nil {
		log.Error().Err(err).Msg("scan due posts")
		return nil, err
	}
	summary.Total = len(due)
	log.Info().Int("due", len(due)).Msg("publishing pass started")

	var deadline time.Time
	if o.opts.RunBudget > 0 {
		deadline = start.Add(o.opts.RunBudget)
	}
	// Claimed posts always finish, even after the caller gives up.
	work := context.WithoutCancel(ctx)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		semaphore = make(chan struct{}, o.opts.Concurrency)
	)

	for i, post := range due {
		semaphore <- struct{}{}
		if ctx.Err() != nil || (!deadline.IsZero() && !o.now().Before(deadline)) {
			<-semaphore
			summary.Deferred = len(due) - i
			log.Warn().Int("deferred", summary.Deferred).Msg("run budget exhausted")
			break
		}

		wg.Add(1)
		go func(post *models.Post) {
			defer wg.Done()
			defer func() { <-semaphore }()

			outcome := o.processPost(work, summary.RunID, post)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case outcome.claimed:
				summary.Processed++
				if outcome.failed {
					summary.Failed++
				}
			case len(outcome.errors) == 0:
				summary.Skipped++
			}
			summary.Errors = append(summary.Errors, outcome.errors...)
		}(post)
	}
	wg.Wait()

	log.Info().
		Int("processed", summary.Processed).
		Int("failed", summary.Failed).
		Int("skipped", summary.Skipped).
		Int("errors", len(summary.Errors)).
		Dur("took", o.now().Sub(start)).
		Msg("publishing pass finished")
	return summary, nil
}

// ReclaimStale returns posts stuck in PUBLISHING for longer than StaleAfter
// to SCHEDULED. It does nothing when StaleAfter is unset.
func (o *Orchestrator) ReclaimStale(ctx context.Context) (int64, error) {
	if o.opts.StaleAfter <= 0 {
		return 0, nil
	}
	reclaimed, err := o.deps.Posts.ReclaimStale(ctx, o.now().Add(-o.opts.StaleAfter))
	if err != nil {
		return 0, fmt.Errorf("reclaim stale posts: %w", err)
	}
	if reclaimed > 0 {
		o.log.Warn().Int64("reclaimed", reclaimed).Msg("returned stale PUBLISHING posts to SCHEDULED")
	}
	return reclaimed, nil
}

// PublishPostByID runs a single SCHEDULED post immediately, ignoring its
// scheduled time.
func (o *Orchestrator) PublishPostByID(ctx context.Context, postID string) (*Summary, error) {
	post, err := o.deps.Posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrPostNotFound
	}
	if post.Status != models.PostStatusScheduled {
		return nil, fmt.Errorf("%w: %s", ErrPostNotScheduled, post.Status)
	}
	summary := &Summary{RunID: newRunID(), Total: 1, Errors: []RunError{}}
	outcome := o.processPost(context.WithoutCancel(ctx), summary.RunID, post)
	switch {
	case outcome.claimed:
		summary.Processed = 1
		if outcome.failed {
			summary.Failed = 1
		}
	case len(outcome.errors) == 0:
		summary.Skipped = 1
	}
	summary.Errors = append(summary.Errors, outcome.errors...)
	return summary, nil
}

// RetryPost requeues the FAILED platforms of a post that still have retries
// left and makes the post SCHEDULED again. It returns the requeued count.
func (o *Orchestrator) RetryPost(ctx context.Context, postID string) (int64, error) {
	post, err := o.deps.Posts.GetByID(ctx, postID)
	if err != nil {
		return 0, err
	}
	if post == nil {
		return 0, ErrPostNotFound
	}
	if post.Status != models.PostStatusFailed && post.Status != models.PostStatusScheduled {
		return 0, fmt.Errorf("%w: %s", ErrPostNotRetryable, post.Status)
	}

	requeued, err := o.deps.PostPlatforms.RequeueFailed(ctx, postID, o.opts.MaxRetries)
	if err != nil {
		return 0, err
	}
	if requeued == 0 {
		return 0, ErrRetriesExhausted
	}

	ok, err := o.deps.Posts.Reschedule(ctx, postID)
	if err != nil {
		return requeued, err
	}
	if !ok {
		o.log.Warn().Str("post_id", postID).Msg("post changed status while requeueing")
	}
	o.log.Info().Str("post_id", postID).Int64("requeued", requeued).Msg("post requeued for retry")
	return requeued, nil
}

func (o *Orchestrator) processPost(ctx context.Context, runID string, post *models.Post) (outcome postOutcome) {
	log := o.log.With().Str("run_id", runID).Str("post_id", post.ID).Logger()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("post processing panicked")
			outcome.addError(RunError{PostID: post.ID, Error: fmt.Sprintf("panic: %v", r)})
		}
	}()

	claimed, err := o.deps.Posts.ClaimForPublishing(ctx, post.ID)
	if err != nil {
		log.Error().Err(err).Msg("claim post")
		outcome.addError(RunError{PostID: post.ID, Error: fmt.Sprintf("claim post: %v", err)})
		return outcome
	}
	if !claimed {
		log.Info().Msg("post already claimed by another pass")
		return outcome
	}
	outcome.claimed = true
	defer o.finish(ctx, runID, post, &outcome, log)

	// The scan snapshot may predate another pass finishing some rows.
	if err := o.deps.Scanner.PendingFor(ctx, post); err != nil {
		log.Error().Err(err).Msg("reload pending platforms")
		outcome.addError(RunError{PostID: post.ID, Error: err.Error()})
		return outcome
	}

	accounts, err := o.resolveAccounts(ctx, post)
	if err != nil {
		log.Error().Err(err).Msg("resolve accounts")
		outcome.addError(RunError{PostID: post.ID, Error: fmt.Sprintf("resolve accounts: %v", err)})
		return outcome
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, pp := range post.Platforms {
		wg.Add(1)
		go func(pp *models.PostPlatform) {
			defer wg.Done()
			errs := o.publishPlatform(ctx, runID, post, pp, accounts[pp.AccountID])

			mu.Lock()
			defer mu.Unlock()
			for _, e := range errs {
				outcome.addError(e)
			}
		}(pp)
	}
	wg.Wait()
	return outcome
}

func (o *Orchestrator) resolveAccounts(ctx context.Context, post *models.Post) (map[string]*models.ConnectedAccount, error) {
	seen := make(map[string]bool, len(post.Platforms))
	ids := make([]string, 0, len(post.Platforms))
	for _, pp := range post.Platforms {
		if !seen[pp.AccountID] {
			seen[pp.AccountID] = true
			ids = append(ids, pp.AccountID)
		}
	}

	accounts, err := o.deps.Accounts.ListActiveByIDs(ctx, post.ProfileID, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*models.ConnectedAccount, len(accounts))
	for _, acc := range accounts {
		byID[acc.ID] = acc
	}
	return byID, nil
}

// publishPlatform handles one PENDING row and writes its outcome right away.
// Faults come back as run errors; ordinary failures only land on the row.
func (o *Orchestrator) publishPlatform(ctx context.Context, runID string, post *models.Post, pp *models.PostPlatform, acc *models.ConnectedAccount) (errs []RunError) {
	log := o.log.With().
		Str("run_id", runID).
		Str("post_id", post.ID).
		Str("post_platform_id", pp.ID).
		Str("platform", string(pp.Platform)).
		Logger()

	fault := func(msg string) {
		errs = append(errs, RunError{PostID: post.ID, PostPlatformID: pp.ID, Platform: pp.Platform, Error: msg})
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("publisher panicked")
			fault(fmt.Sprintf("panic: %v", r))
			o.recordFailure(ctx, runID, post, pp, MsgPublishingFailed, log, fault)
		}
	}()

	if acc == nil {
		o.recordFailure(ctx, runID, post, pp, MsgAccountNotFound, log, fault)
		return errs
	}

	token := acc.AccessToken
	if token != "" && o.deps.Tokens != nil {
		plain, err := o.deps.Tokens.Decrypt(token)
		if err != nil {
			log.Warn().Err(err).Str("account_id", acc.ID).Msg("decrypt access token")
			plain = ""
		}
		token = plain
	}
	if token == "" {
		o.recordFailure(ctx, runID, post, pp, MsgMissingAccessToken, log, fault)
		return errs
	}

	publisher, ok := o.deps.Registry.Lookup(acc.Platform)
	if !ok {
		o.recordFailure(ctx, runID, post, pp, MsgUnsupportedPlatform, log, fault)
		return errs
	}

	var media []models.MediaItem
	if o.deps.Media != nil && len(post.MediaURLs) > 0 {
		items, err := o.deps.Media.Resolve(ctx, post.MediaURLs)
		if err != nil {
			log.Warn().Err(err).Msg("resolve media")
			o.recordFailure(ctx, runID, post, pp, fmt.Sprintf("Media unavailable: %v", err), log, fault)
			return errs
		}
		media = items
	}

	req := &models.PublishRequest{
		AccountID:      acc.ID,
		Platform:       acc.Platform,
		Content:        ResolveContent(post.Content, acc.Platform),
		MediaItems:     media,
		AccessToken:    token,
		PlatformUserID: acc.PlatformUserID,
	}

	result, err := publisher.Publish(ctx, req)
	switch {
	case err != nil:
		log.Error().Err(err).Msg("publisher call failed")
		fault(err.Error())
		o.recordFailure(ctx, runID, post, pp, MsgPublishingFailed, log, fault)
	case result == nil:
		fault("publisher returned no result")
		o.recordFailure(ctx, runID, post, pp, MsgPublishingFailed, log, fault)
	case !result.Success:
		msg := result.Error
		if msg == "" {
			msg = MsgPublishingFailed
		}
		o.recordFailure(ctx, runID, post, pp, msg, log, fault)
	default:
		o.recordSuccess(ctx, runID, post, pp, result, log, fault)
	}
	return errs
}

func (o *Orchestrator) recordSuccess(ctx context.Context, runID string, post *models.Post, pp *models.PostPlatform, result *models.PublishResult, log zerolog.Logger, fault func(string)) {
	written, err := o.deps.PostPlatforms.MarkPublished(ctx, pp.ID, result.PlatformPostID, result.PlatformPostURL, o.now())
	switch {
	case err != nil:
		log.Error().Err(err).Msg("mark platform published")
		fault(fmt.Sprintf("mark published: %v", err))
	case !written:
		log.Warn().Msg("platform row was no longer PENDING")
	default:
		log.Info().Str("published_id", result.PlatformPostID).Msg("platform published")
	}
	o.recordHistory(ctx, runID, post, pp, true, "", log)
}

func (o *Orchestrator) recordFailure(ctx context.Context, runID string, post *models.Post, pp *models.PostPlatform, msg string, log zerolog.Logger, fault func(string)) {
	written, err := o.deps.PostPlatforms.MarkFailed(ctx, pp.ID, msg)
	switch {
	case err != nil:
		log.Error().Err(err).Msg("mark platform failed")
		fault(fmt.Sprintf("mark failed: %v", err))
	case !written:
		log.Warn().Msg("platform row was no longer PENDING")
	default:
		log.Warn().Str("error_message", msg).Msg("platform failed")
	}
	o.recordHistory(ctx, runID, post, pp, false, msg, log)
}

func (o *Orchestrator) recordHistory(ctx context.Context, runID string, post *models.Post, pp *models.PostPlatform, success bool, msg string, log zerolog.Logger) {
	if o.deps.PostingHistory == nil {
		return
	}
	_, err := o.deps.PostingHistory.Create(ctx, &models.PostingHistory{
		RunID:          runID,
		PostID:         post.ID,
		PostPlatformID: pp.ID,
		AccountID:      pp.AccountID,
		Platform:       pp.Platform,
		Success:        success,
		ErrorMessage:   msg,
	})
	if err != nil {
		log.Warn().Err(err).Msg("save posting history")
	}
}

// finish re-reads every platform row of the post and writes the aggregate
// status, guarded on the post still being PUBLISHING.
func (o *Orchestrator) finish(ctx context.Context, runID string, post *models.Post, outcome *postOutcome, log zerolog.Logger) {
	status := models.PostStatusScheduled
	platforms, err := o.deps.PostPlatforms.ListByPostID(ctx, post.ID)
	if err != nil {
		log.Error().Err(err).Msg("reload platforms; returning post to SCHEDULED")
		outcome.addError(RunError{PostID: post.ID, Error: fmt.Sprintf("reload platforms: %v", err)})
	} else {
		status = AggregateStatus(platformStatuses(platforms))
		for _, pp := range platforms {
			if pp.Status == models.PostPlatformFailed {
				outcome.failed = true
			}
		}
	}

	var publishedAt *time.Time
	if status == models.PostStatusPublished {
		now := o.now()
		publishedAt = &now
	}

	written, err := o.deps.Posts.FinishPublishing(ctx, post.ID, status, publishedAt)
	if err != nil {
		log.Error().Err(err).Msg("write aggregate status")
		outcome.addError(RunError{PostID: post.ID, Error: fmt.Sprintf("write aggregate status: %v", err)})
		return
	}
	if !written {
		log.Warn().Msg("post left PUBLISHING before the aggregate write")
		return
	}
	outcome.status = status
	log.Info().Str("status", string(status)).Msg("post finished")

	if o.deps.Notifier == nil {
		return
	}
	event := models.PostStatusEvent{
		PostID:    post.ID,
		ProfileID: post.ProfileID,
		Status:    status,
		RunID:     runID,
	}
	if status == models.PostStatusPublished {
		if stored, err := o.deps.Posts.GetByID(ctx, post.ID); err == nil && stored != nil {
			event.PublishedAt = stored.PublishedAt
		}
	}
	if err := o.deps.Notifier.NotifyPostStatus(ctx, event); err != nil {
		log.Warn().Err(err).Msg("notify post status")
	}
}
