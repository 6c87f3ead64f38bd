package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	t.Setenv("POSTGRES_URI", "postgres://localhost/socialpilot")
	t.Setenv("SECRET_KEY", "0123456789abcdef0123456789abcdef")
	return LoadConfig()
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg := validConfig(t)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, []string{"FACEBOOK"}, cfg.NativeSchedulingPlatforms)
	assert.Zero(t, cfg.ScanLookahead)
	assert.Equal(t, 30*time.Second, cfg.PublishTimeout)
	assert.Equal(t, 5*time.Minute, cfg.YoutubePublishTimeout)
	assert.Equal(t, 15*time.Minute, cfg.StalePublishingAfter)
	assert.Equal(t, 10, cfg.PublishConcurrency)
	assert.Equal(t, 3, cfg.MaxRetries)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("NATIVE_SCHEDULING_PLATFORMS", " facebook, threads ,")
	t.Setenv("SCAN_LOOKAHEAD", "2m")
	t.Setenv("PUBLISH_CONCURRENCY", "4")
	t.Setenv("YOUTUBE_PUBLISH_TIMEOUT", "12m")
	t.Setenv("LOG_PRETTY", "true")
	cfg := validConfig(t)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, []string{"FACEBOOK", "THREADS"}, cfg.NativeSchedulingPlatforms)
	assert.Equal(t, 2*time.Minute, cfg.ScanLookahead)
	assert.Equal(t, 4, cfg.PublishConcurrency)
	assert.Equal(t, 12*time.Minute, cfg.YoutubePublishTimeout)
	assert.True(t, cfg.LogPretty)
}

func TestNativeSchedulingCanBeEmptied(t *testing.T) {
	t.Setenv("NATIVE_SCHEDULING_PLATFORMS", "-")
	cfg := validConfig(t)
	assert.Empty(t, cfg.NativeSchedulingPlatforms)
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(c *Config){
		"missing database":   func(c *Config) { c.PostgresURI = "" },
		"short secret":       func(c *Config) { c.SecretKey = "short" },
		"unknown platform":   func(c *Config) { c.NativeSchedulingPlatforms = []string{"MYSPACE"} },
		"zero concurrency":   func(c *Config) { c.PublishConcurrency = 0 },
		"negative lookahead": func(c *Config) { c.ScanLookahead = -time.Second },
		"bad log level":      func(c *Config) { c.LogLevel = "loud" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig(t)
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
