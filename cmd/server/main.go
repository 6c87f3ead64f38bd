package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	config "github.com/maheshrc27/socialpilot/configs"
	"github.com/maheshrc27/socialpilot/internal/api/handlers"
	"github.com/maheshrc27/socialpilot/internal/api/middleware"
	"github.com/maheshrc27/socialpilot/internal/app"
	job "github.com/maheshrc27/socialpilot/internal/jobs"
	"github.com/maheshrc27/socialpilot/internal/lock"
	"github.com/maheshrc27/socialpilot/internal/logger"
	"github.com/maheshrc27/socialpilot/internal/queue"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron"
	"github.com/rs/zerolog"
)

const runLeaseKey = "socialpilot:publish-scheduled:lease"

func main() {
	envErr := godotenv.Load()

	cfg := config.LoadConfig()
	log, err := logger.New(logger.Options{Level: cfg.LogLevel, Pretty: cfg.LogPretty, Service: "socialpilot"})
	if err != nil {
		log = zerolog.New(os.Stderr).With().Timestamp().Logger()
		log.Warn().Err(err).Msg("invalid log level, using info")
	}
	if envErr != nil {
		log.Debug().Err(envErr).Msg("no .env file loaded")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	engine, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start publishing engine")
	}
	defer engine.Close()

	fiberApp := fiber.New(fiber.Config{
		ReadTimeout:  time.Minute,
		WriteTimeout: 10 * time.Minute,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	fiberApp.Use(recover.New())
	fiberApp.Use(fiberlogger.New())
	fiberApp.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	var (
		lease       handlers.Locker
		asynqServer *asynq.Server
		asynqClient *asynq.Client
	)
	if cfg.RedisURI != "" {
		redisOpt, err := redis.ParseURL(cfg.RedisURI)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid REDIS_URI")
		}
		redisClient := redis.NewClient(redisOpt)
		defer redisClient.Close()
		lease = lock.NewLease(redisClient, runLeaseKey, cfg.RunLeaseTTL)

		redisConn := asynq.RedisClientOpt{
			Addr:      redisOpt.Addr,
			Username:  redisOpt.Username,
			Password:  redisOpt.Password,
			DB:        redisOpt.DB,
			TLSConfig: redisOpt.TLSConfig,
		}
		asynqClient = asynq.NewClient(redisConn)
		defer asynqClient.Close()
		asynqServer = asynq.NewServer(redisConn, asynq.Config{
			Concurrency: cfg.PublishConcurrency,
			Logger:      queue.NewAsynqLogger(log),
		})
	} else {
		log.Warn().Msg("REDIS_URI not set: run lease, publish-now and retry endpoints disabled")
	}

	authMiddleware := middleware.NewAuthMiddleware(cfg.SecretKey, cfg.CookieName, cfg.CronSecret, log)

	fiberApp.Get("/healthz", handlers.Healthz)

	trigger := handlers.NewCronHandler(engine.Orchestrator, lease, log)
	fiberApp.Get("/api/cron/publish-scheduled", authMiddleware.CronAuth(), trigger.PublishScheduled)

	if asynqClient != nil {
		api := fiberApp.Group("/api")
		api.Use(authMiddleware.AuthMiddleware())

		post := handlers.NewPostHandler(engine.Posts, engine.Platforms, engine.History, engine.Orchestrator, asynqClient, log)
		api.Get("/posts/:id", post.GetPost)
		api.Post("/posts/:id/publish", post.PublishPost)
		api.Post("/posts/:id/retry", post.RetryPost)
	}

	// cron jobs
	c := cron.New()
	refreshTokenJob := job.NewTokenRefreshJob(engine.Refresher, cfg.PublishConcurrency, log)
	if err := c.AddFunc(job.TokenRefreshSpec, refreshTokenJob.RefreshTokens); err != nil {
		log.Fatal().Err(err).Msg("schedule token refresh")
	}
	if cfg.PublishCronSpec != "" {
		var jobLease job.Locker
		if lease != nil {
			jobLease = lease
		}
		publishJob := job.NewPublishJob(engine.Orchestrator, jobLease, cfg.RunLeaseTTL, log)
		if err := c.AddFunc(cfg.PublishCronSpec, publishJob.RunPass); err != nil {
			log.Fatal().Err(err).Str("spec", cfg.PublishCronSpec).Msg("schedule publishing pass")
		}
	}
	c.Start()
	defer c.Stop()

	// queue
	if asynqServer != nil {
		queueW := queue.NewQueue(engine.Orchestrator, log)
		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypePublishPost, queueW.HandlePublishPostTask)

		go func() {
			log.Info().Msg("starting the asynq server")
			if err := asynqServer.Run(mux); err != nil {
				log.Fatal().Err(err).Msg("could not start asynq server")
			}
		}()
	}

	go func() {
		if err := fiberApp.Listen(":" + cfg.Port); err != nil {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	log.Info().Str("port", cfg.Port).Msg("server is running")

	gracefulShutdown(fiberApp, asynqServer, log)
}

func gracefulShutdown(fiberApp *fiber.App, asynqServer *asynq.Server, log zerolog.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Info().Msg("shutting down server")

	if err := fiberApp.ShutdownWithTimeout(time.Minute); err != nil {
		log.Error().Err(err).Msg("failed to shut down server")
	}
	if asynqServer != nil {
		asynqServer.Shutdown()
	}
	log.Info().Msg("server shutdown complete")
}
