package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	config "github.com/maheshrc27/socialpilot/configs"
	"github.com/maheshrc27/socialpilot/internal/app"
	"github.com/maheshrc27/socialpilot/internal/logger"
)

func main() {
	_ = godotenv.Load()

	cfg := config.LoadConfig()
	log, err := logger.New(logger.Options{Level: cfg.LogLevel, Pretty: true, Writer: os.Stderr, Service: "publishctl"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}

	open := func(ctx context.Context) (Engine, func(), error) {
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
		a, err := app.New(ctx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		return a.Orchestrator, a.Close, nil
	}

	if err := newRootCmd(open).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
