package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	config "github.com/maheshrc27/socialpilot/configs"
	"github.com/maheshrc27/socialpilot/internal/models"
	"github.com/maheshrc27/socialpilot/internal/repository"
	"github.com/maheshrc27/socialpilot/internal/transfer"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	instagramRefreshURL = "https://graph.instagram.com/refresh_access_token"
	tiktokTokenURL      = "https://open.tiktokapis.com/v2/oauth/token/"
)

var ErrRefreshUnsupported = errors.New("token refresh not supported for platform")

// TokenCipher seals and opens stored tokens.
type TokenCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(encrypted string) (string, error)
}

// TokenRefresher renews OAuth tokens before they expire so the publishing
// pass finds a usable access token.
type TokenRefresher struct {
	accounts repository.SocialAccountRepository
	cipher   TokenCipher
	client   *http.Client
	log      zerolog.Logger

	oauth        map[models.Platform]*oauth2.Config
	tiktokKey    string
	tiktokSecret string
	instagramURL string
	tiktokURL    string
}

func NewTokenRefresher(
	cfg *config.Config,
	accounts repository.SocialAccountRepository,
	cipher TokenCipher,
	client *http.Client,
	logger zerolog.Logger) *TokenRefresher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &TokenRefresher{
		accounts: accounts,
		cipher:   cipher,
		client:   client,
		log:      logger.With().Str("component", "token_refresher").Logger(),
		oauth: map[models.Platform]*oauth2.Config{
			models.PlatformYoutube: {
				ClientID:     cfg.Google.ClientID,
				ClientSecret: cfg.Google.ClientSecret,
				Scopes:       []string{"https://www.googleapis.com/auth/youtube.upload"},
				Endpoint:     google.Endpoint,
			},
			models.PlatformTwitter: {
				ClientID:     cfg.Twitter.ClientID,
				ClientSecret: cfg.Twitter.ClientSecret,
				Endpoint: oauth2.Endpoint{
					AuthURL:   "https://twitter.com/i/oauth2/authorize",
					TokenURL:  "https://api.twitter.com/2/oauth2/token",
					AuthStyle: oauth2.AuthStyleInHeader,
				},
			},
			models.PlatformLinkedIn: {
				ClientID:     cfg.LinkedIn.ClientID,
				ClientSecret: cfg.LinkedIn.ClientSecret,
				Endpoint: oauth2.Endpoint{
					AuthURL:   "https://www.linkedin.com/oauth/v2/authorization",
					TokenURL:  "https://www.linkedin.com/oauth/v2/accessToken",
					AuthStyle: oauth2.AuthStyleInParams,
				},
			},
		},
		tiktokKey:    cfg.Tiktok.ClientID,
		tiktokSecret: cfg.Tiktok.ClientSecret,
		instagramURL: instagramRefreshURL,
		tiktokURL:    tiktokTokenURL,
	}
}

// RefreshExpiring renews every active account whose token expires within the
// window. Failures are logged per account; the count of refreshed accounts is returned.
func (r *TokenRefresher) RefreshExpiring(ctx context.Context, within time.Duration, concurrency int) (int, error) {
	accounts, err := r.accounts.ListExpiring(ctx, time.Now().Add(within))
	if err != nil {
		return 0, fmt.Errorf("list expiring accounts: %w", err)
	}
	if concurrency < 1 {
		concurrency = 1
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		refreshed int
		semaphore = make(chan struct{}, concurrency)
	)
	for _, acc := range accounts {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.ConnectedAccount) {
			defer wg.Done()
			defer func() { <-semaphore }()

			log := r.log.With().Str("account_id", acc.ID).Str("platform", string(acc.Platform)).Logger()
			if err := r.Refresh(ctx, acc); err != nil {
				if errors.Is(err, ErrRefreshUnsupported) {
					log.Debug().Msg("skipping token refresh")
					return
				}
				log.Warn().Err(err).Msg("unable to refresh token")
				return
			}
			log.Info().Msg("token refreshed")

			mu.Lock()
			refreshed++
			mu.Unlock()
		}(acc)
	}
	wg.Wait()
	return refreshed, nil
}

// Refresh renews one account and stores the new tokens, unless another writer
// replaced the access token in the meantime.
func (r *TokenRefresher) Refresh(ctx context.Context, acc *models.ConnectedAccount) error {
	refreshToken, err := r.open(acc.RefreshToken)
	if err != nil {
		return fmt.Errorf("decrypt refresh token: %w", err)
	}

	var token *oauth2.Token
	switch acc.Platform {
	case models.PlatformInstagram:
		// Instagram long-lived tokens refresh themselves.
		accessToken, err := r.open(acc.AccessToken)
		if err != nil {
			return fmt.Errorf("decrypt access token: %w", err)
		}
		token, err = r.refreshInstagram(ctx, accessToken)
		if err != nil {
			return err
		}
	case models.PlatformTiktok:
		token, err = r.refreshTiktok(ctx, refreshToken)
		if err != nil {
			return err
		}
	default:
		conf, ok := r.oauth[acc.Platform]
		if !ok {
			return fmt.Errorf("%w: %s", ErrRefreshUnsupported, acc.Platform)
		}
		ctx = context.WithValue(ctx, oauth2.HTTPClient, r.client)
		token, err = conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
		if err != nil {
			return fmt.Errorf("refresh %s token: %w", acc.Platform, err)
		}
	}

	update := &models.ConnectedAccount{}
	if update.AccessToken, err = r.seal(token.AccessToken); err != nil {
		return err
	}
	if token.RefreshToken != "" && token.RefreshToken != refreshToken {
		if update.RefreshToken, err = r.seal(token.RefreshToken); err != nil {
			return err
		}
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		update.TokenExpiresAt = &expiry
	}

	return r.accounts.SetToken(ctx, acc.ID, acc.AccessToken, update)
}

func (r *TokenRefresher) refreshInstagram(ctx context.Context, accessToken string) (*oauth2.Token, error) {
	query := url.Values{}
	query.Set("grant_type", "ig_refresh_token")
	query.Set("access_token", accessToken)

	resp, err := doJSON(ctx, r.client, http.MethodGet, r.instagramURL+"?"+query.Encode(), "", nil)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, errors.New(upstreamError("Instagram", resp))
	}

	var result transfer.InstagramRefreshResponse
	if err := resp.decode(&result); err != nil {
		return nil, err
	}
	if result.AccessToken == "" {
		return nil, errors.New("no access token returned from Instagram")
	}
	return &oauth2.Token{
		AccessToken:  result.AccessToken,
		RefreshToken: result.AccessToken,
		Expiry:       GetExpiresAt(result.ExpiresIn),
	}, nil
}

func (r *TokenRefresher) refreshTiktok(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	data := url.Values{}
	data.Set("client_key", r.tiktokKey)
	data.Set("client_secret", r.tiktokSecret)
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.tiktokURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := send(r.client, req)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, errors.New(upstreamError("TikTok", resp))
	}

	var result transfer.TiktokTokenResponse
	if err := resp.decode(&result); err != nil {
		return nil, err
	}
	if result.AccessToken == "" {
		return nil, errors.New("no access token returned from TikTok")
	}
	return &oauth2.Token{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		Expiry:       GetExpiresAt(result.ExpiresIn),
	}, nil
}

func (r *TokenRefresher) open(stored string) (string, error) {
	if r.cipher == nil {
		return stored, nil
	}
	return r.cipher.Decrypt(stored)
}

func (r *TokenRefresher) seal(plain string) (string, error) {
	if r.cipher == nil || plain == "" {
		return plain, nil
	}
	sealed, err := r.cipher.Encrypt(plain)
	if err != nil {
		return "", fmt.Errorf("encrypt token: %w", err)
	}
	return sealed, nil
}
