package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicURL  string
}

type OAuthClient struct {
	ClientID     string
	ClientSecret string
}

type Config struct {
	Port        string `validate:"required"`
	PostgresURI string `validate:"required"`
	RedisURI    string
	NatsURL     string
	LogLevel    string `validate:"omitempty,oneof=trace debug info warn error"`
	LogPretty   bool

	// SecretKey signs dashboard JWTs and encrypts stored OAuth tokens (AES key, 16/24/32 bytes).
	SecretKey  string `validate:"required,len=32|len=24|len=16"`
	CookieName string
	CronSecret string

	NativeSchedulingPlatforms []string      `validate:"dive,oneof=INSTAGRAM FACEBOOK TWITTER LINKEDIN TIKTOK THREADS YOUTUBE"`
	ScanLookahead             time.Duration `validate:"gte=0"`
	PublishTimeout            time.Duration `validate:"gt=0"`
	// YoutubePublishTimeout covers the whole video upload; zero falls back to PublishTimeout.
	YoutubePublishTimeout     time.Duration `validate:"gte=0"`
	RunBudget                 time.Duration `validate:"gt=0"`
	StalePublishingAfter      time.Duration `validate:"gt=0"`
	PublishConcurrency        int           `validate:"gte=1,lte=64"`
	MaxRetries                int           `validate:"gte=0"`
	PublishCronSpec           string
	RunLeaseTTL               time.Duration `validate:"gt=0"`

	Instagram OAuthClient
	Google    OAuthClient
	Twitter   OAuthClient
	LinkedIn  OAuthClient
	Tiktok    OAuthClient
	R2        R2
}

func LoadConfig() *Config {
	return &Config{
		Port:        getEnv("PORT", "3000"),
		PostgresURI: getEnv("POSTGRES_URI", ""),
		RedisURI:    getEnv("REDIS_URI", ""),
		NatsURL:     getEnv("NATS_URL", ""),
		LogLevel:    strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogPretty:   getBool("LOG_PRETTY", false),

		SecretKey:  getEnv("SECRET_KEY", ""),
		CookieName: getEnv("COOKIE_NAME", "socialpilot_session"),
		CronSecret: getEnv("CRON_SECRET", ""),

		NativeSchedulingPlatforms: getList("NATIVE_SCHEDULING_PLATFORMS", "FACEBOOK"),
		ScanLookahead:             getDuration("SCAN_LOOKAHEAD", 0),
		PublishTimeout:            getDuration("PUBLISH_TIMEOUT", 30*time.Second),
		YoutubePublishTimeout:     getDuration("YOUTUBE_PUBLISH_TIMEOUT", 5*time.Minute),
		RunBudget:                 getDuration("RUN_BUDGET", 55*time.Second),
		StalePublishingAfter:      getDuration("STALE_PUBLISHING_AFTER", 15*time.Minute),
		PublishConcurrency:        getInt("PUBLISH_CONCURRENCY", 10),
		MaxRetries:                getInt("MAX_RETRIES", 3),
		PublishCronSpec:           getEnv("PUBLISH_CRON_SPEC", ""),
		RunLeaseTTL:               getDuration("RUN_LEASE_TTL", 5*time.Minute),

		Instagram: OAuthClient{
			ClientID:     getEnv("INSTAGRAM_CLIENT_ID", ""),
			ClientSecret: getEnv("INSTAGRAM_CLIENT_SECRET", ""),
		},
		Google: OAuthClient{
			ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		},
		Twitter: OAuthClient{
			ClientID:     getEnv("TWITTER_CLIENT_ID", ""),
			ClientSecret: getEnv("TWITTER_CLIENT_SECRET", ""),
		},
		LinkedIn: OAuthClient{
			ClientID:     getEnv("LINKEDIN_CLIENT_ID", ""),
			ClientSecret: getEnv("LINKEDIN_CLIENT_SECRET", ""),
		},
		Tiktok: OAuthClient{
			ClientID:     getEnv("TIKTOK_CLIENT_KEY", ""),
			ClientSecret: getEnv("TIKTOK_CLIENT_SECRET", ""),
		},
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			PublicURL:  getEnv("R2_PUBLIC_URL", ""),
		},
	}
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

// getList reads a comma separated list. An explicitly empty value ("-") yields an empty list.
func getList(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	if raw == "-" {
		return []string{}
	}

	var items []string
	for _, item := range strings.Split(raw, ",") {
		item = strings.ToUpper(strings.TrimSpace(item))
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}
