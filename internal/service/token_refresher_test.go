package service

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	config "github.com/maheshrc27/socialpilot/configs"
	"github.com/maheshrc27/socialpilot/internal/models"
	"github.com/maheshrc27/socialpilot/internal/repository"
	"github.com/maheshrc27/socialpilot/pkg/utils"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRefresherFixture(t *testing.T, handler http.HandlerFunc) (*TokenRefresher, *repository.MemoryStore, *utils.TokenCipher) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cipher, err := utils.NewTokenCipher([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	store := repository.NewMemoryStore()
	cfg := &config.Config{
		Tiktok:   config.OAuthClient{ClientID: "tt-key", ClientSecret: "tt-secret"},
		LinkedIn: config.OAuthClient{ClientID: "li-id", ClientSecret: "li-secret"},
	}
	r := NewTokenRefresher(cfg, store.Accounts(), cipher, srv.Client(), zerolog.Nop())
	r.instagramURL = srv.URL + "/instagram"
	r.tiktokURL = srv.URL + "/tiktok"
	r.oauth[models.PlatformLinkedIn].Endpoint.TokenURL = srv.URL + "/linkedin"
	return r, store, cipher
}

func sealedAccount(t *testing.T, cipher *utils.TokenCipher, id string, platform models.Platform, expiresIn time.Duration) *models.ConnectedAccount {
	t.Helper()
	access, err := cipher.Encrypt("old-access")
	require.NoError(t, err)
	refresh, err := cipher.Encrypt("old-refresh")
	require.NoError(t, err)
	expires := time.Now().Add(expiresIn)
	return &models.ConnectedAccount{
		ID: id, ProfileID: "p", Platform: platform, IsActive: true,
		AccessToken: access, RefreshToken: refresh, TokenExpiresAt: &expires,
	}
}

func opened(t *testing.T, cipher *utils.TokenCipher, sealed string) string {
	t.Helper()
	plain, err := cipher.Decrypt(sealed)
	require.NoError(t, err)
	return plain
}

func TestRefreshExpiringRenewsEachPlatform(t *testing.T) {
	r, store, cipher := newRefresherFixture(t, func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch req.URL.Path {
		case "/tiktok":
			require.NoError(t, req.ParseForm())
			assert.Equal(t, "refresh_token", req.PostForm.Get("grant_type"))
			assert.Equal(t, "old-refresh", req.PostForm.Get("refresh_token"))
			assert.Equal(t, "tt-key", req.PostForm.Get("client_key"))
			_, _ = io.WriteString(w, `{"access_token":"tt-new","refresh_token":"tt-refresh","expires_in":86400}`)
		case "/instagram":
			assert.Equal(t, "ig_refresh_token", req.URL.Query().Get("grant_type"))
			assert.Equal(t, "old-access", req.URL.Query().Get("access_token"))
			_, _ = io.WriteString(w, `{"access_token":"ig-new","token_type":"bearer","expires_in":5184000}`)
		case "/linkedin":
			require.NoError(t, req.ParseForm())
			assert.Equal(t, "old-refresh", req.PostForm.Get("refresh_token"))
			_, _ = io.WriteString(w, `{"access_token":"li-new","token_type":"Bearer","expires_in":3600}`)
		default:
			http.NotFound(w, req)
		}
	})

	store.AddAccount(sealedAccount(t, cipher, "tt", models.PlatformTiktok, 10*time.Minute))
	store.AddAccount(sealedAccount(t, cipher, "ig", models.PlatformInstagram, 10*time.Minute))
	store.AddAccount(sealedAccount(t, cipher, "li", models.PlatformLinkedIn, 10*time.Minute))
	store.AddAccount(sealedAccount(t, cipher, "fb", models.PlatformFacebook, 10*time.Minute))
	store.AddAccount(sealedAccount(t, cipher, "fresh", models.PlatformTiktok, 48*time.Hour))

	refreshed, err := r.RefreshExpiring(context.Background(), 30*time.Minute, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, refreshed)

	tt := store.Account("tt")
	assert.Equal(t, "tt-new", opened(t, cipher, tt.AccessToken))
	assert.Equal(t, "tt-refresh", opened(t, cipher, tt.RefreshToken))
	assert.True(t, tt.TokenExpiresAt.After(time.Now().Add(23*time.Hour)))

	ig := store.Account("ig")
	assert.Equal(t, "ig-new", opened(t, cipher, ig.AccessToken))

	li := store.Account("li")
	assert.Equal(t, "li-new", opened(t, cipher, li.AccessToken))
	assert.Equal(t, "old-refresh", opened(t, cipher, li.RefreshToken), "refresh token kept when none is issued")

	assert.Equal(t, "old-access", opened(t, cipher, store.Account("fb").AccessToken))
	assert.Equal(t, "old-access", opened(t, cipher, store.Account("fresh").AccessToken))
}

func TestRefreshUpstreamFailureKeepsTokens(t *testing.T) {
	r, store, cipher := newRefresherFixture(t, func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"invalid_grant","error_description":"expired"}`)
	})
	acc := sealedAccount(t, cipher, "tt", models.PlatformTiktok, time.Minute)
	store.AddAccount(acc)

	err := r.Refresh(context.Background(), acc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_grant")
	assert.Equal(t, acc.AccessToken, store.Account("tt").AccessToken)
}

func TestRefreshLosesRaceToConcurrentWriter(t *testing.T) {
	r, store, cipher := newRefresherFixture(t, func(w http.ResponseWriter, req *http.Request) {
		_, _ = io.WriteString(w, `{"access_token":"tt-new","refresh_token":"tt-refresh","expires_in":60}`)
	})
	acc := sealedAccount(t, cipher, "tt", models.PlatformTiktok, time.Minute)
	store.AddAccount(acc)

	// Someone reconnected the account while the refresh was in flight.
	stale := *acc
	stale.AccessToken = "previous-value"

	err := r.Refresh(context.Background(), &stale)
	assert.ErrorIs(t, err, repository.ErrTokenChanged)
	assert.Equal(t, acc.AccessToken, store.Account("tt").AccessToken)
}
