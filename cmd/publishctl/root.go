package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/maheshrc27/socialpilot/internal/service"
	"github.com/spf13/cobra"
)

// Engine is the part of the orchestrator the commands drive.
type Engine interface {
	Run(ctx context.Context) (*service.Summary, error)
	PublishPostByID(ctx context.Context, postID string) (*service.Summary, error)
	ReclaimStale(ctx context.Context) (int64, error)
}

type openFunc func(ctx context.Context) (Engine, func(), error)

type rootFlags struct {
	timeout time.Duration
}

var errFailures = errors.New("publishing finished with failures")

func newRootCmd(open openFunc) *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "publishctl",
		Short:         "Run the scheduled-post publishing engine from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().DurationVar(&flags.timeout, "timeout", 5*time.Minute, "overall deadline for the command")

	cmd.AddCommand(
		newRunCmd(flags, open),
		newPublishCmd(flags, open),
		newReclaimCmd(flags, open),
	)
	return cmd
}

// withEngine opens the engine under the command deadline and closes it afterwards.
func withEngine(cmd *cobra.Command, flags *rootFlags, open openFunc, fn func(ctx context.Context, e Engine) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), flags.timeout)
	defer cancel()

	engine, closeFn, err := open(ctx)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}
	return fn(ctx, engine)
}

func printSummary(cmd *cobra.Command, summary *service.Summary) error {
	out := struct {
		*service.Summary
		Message string `json:"message"`
	}{summary, summary.Message()}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func newRunCmd(flags *rootFlags, open openFunc) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one publishing pass over every due post",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, flags, open, func(ctx context.Context, e Engine) error {
				summary, err := e.Run(ctx)
				if err != nil {
					return fmt.Errorf("publishing pass: %w", err)
				}
				if err := printSummary(cmd, summary); err != nil {
					return err
				}
				if strict && summary.Failed > 0 {
					return errFailures
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when any post failed")
	return cmd
}

func newPublishCmd(flags *rootFlags, open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "publish <post-id>",
		Short: "Publish one scheduled post now, ignoring its scheduled time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, flags, open, func(ctx context.Context, e Engine) error {
				summary, err := e.PublishPostByID(ctx, args[0])
				if err != nil {
					return fmt.Errorf("publish %s: %w", args[0], err)
				}
				return printSummary(cmd, summary)
			})
		},
	}
}

func newReclaimCmd(flags *rootFlags, open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "reclaim",
		Short: "Return posts stuck in PUBLISHING to SCHEDULED",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, flags, open, func(ctx context.Context, e Engine) error {
				reclaimed, err := e.ReclaimStale(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "reclaimed %d posts\n", reclaimed)
				return nil
			})
		},
	}
}
