package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	_ "github.com/lib/pq"
	config "github.com/maheshrc27/socialpilot/configs"
	"github.com/maheshrc27/socialpilot/internal/events"
	"github.com/maheshrc27/socialpilot/internal/models"
	"github.com/maheshrc27/socialpilot/internal/repository"
	"github.com/maheshrc27/socialpilot/internal/service"
	"github.com/maheshrc27/socialpilot/pkg/utils"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// App holds the publishing engine wired against Postgres, shared by the
// server and the CLI.
type App struct {
	Config       *config.Config
	DB           *sql.DB
	Posts        repository.PostRepository
	Platforms    repository.PostPlatformRepository
	Accounts     repository.SocialAccountRepository
	History      repository.PostingHistoryRepository
	Orchestrator *service.Orchestrator
	Refresher    *service.TokenRefresher
	Log          zerolog.Logger

	nats *nats.Conn
}

func NativeScheduling(cfg *config.Config) (models.PlatformSet, error) {
	set := models.NewPlatformSet()
	for _, name := range cfg.NativeSchedulingPlatforms {
		p, err := models.ParsePlatform(name)
		if err != nil {
			return nil, err
		}
		set[p] = struct{}{}
	}
	return set, nil
}

func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	native, err := NativeScheduling(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database is unreachable: %w", err)
	}

	cipher, err := utils.NewTokenCipher([]byte(cfg.SecretKey))
	if err != nil {
		db.Close()
		return nil, err
	}

	var presigner service.ObjectPresigner
	if cfg.R2.AccountID != "" {
		client, err := service.NewR2Client(ctx, cfg.R2)
		if err != nil {
			db.Close()
			return nil, err
		}
		presigner = s3.NewPresignClient(client)
	}

	a := &App{
		Config:    cfg,
		DB:        db,
		Posts:     repository.NewPostRepository(db),
		Platforms: repository.NewPostPlatformRepository(db),
		Accounts:  repository.NewSocialAccountRepository(db),
		History:   repository.NewPostingHistoryRepository(db),
		Log:       log,
	}

	var notifier service.StatusNotifier
	if cfg.NatsURL != "" {
		conn, err := events.Connect(cfg.NatsURL, "socialpilot")
		if err != nil {
			db.Close()
			return nil, err
		}
		a.nats = conn
		notifier = events.NewNatsNotifier(conn)
	}

	// No client-wide timeout: each publisher is bounded by its own, and a
	// YouTube upload may legitimately outlast the others.
	httpClient := &http.Client{}
	a.Orchestrator = service.NewOrchestrator(service.Dependencies{
		Posts:          a.Posts,
		PostPlatforms:  a.Platforms,
		Accounts:       a.Accounts,
		PostingHistory: a.History,
		Scanner:        service.NewDueScanner(a.Posts, a.Platforms, native, cfg.ScanLookahead),
		Registry:       service.NewDefaultRegistry(cfg, httpClient),
		Tokens:         cipher,
		Media:          service.NewMediaService(presigner, cfg.R2.BucketName, cfg.R2.PublicURL, 0),
		Notifier:       notifier,
		Logger:         log,
	}, service.Options{
		Concurrency: cfg.PublishConcurrency,
		RunBudget:   cfg.RunBudget,
		StaleAfter:  cfg.StalePublishingAfter,
		MaxRetries:  cfg.MaxRetries,
	})
	a.Refresher = service.NewTokenRefresher(cfg, a.Accounts, cipher, nil, log)
	return a, nil
}

func (a *App) Close() {
	if a.nats != nil {
		a.nats.Drain()
	}
	if err := a.DB.Close(); err != nil {
		a.Log.Error().Err(err).Msg("close database")
	}
}
