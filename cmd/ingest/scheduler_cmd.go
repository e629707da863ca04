package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/osint-ingest/internal/adapter/events"
	"github.com/couchcryptid/osint-ingest/internal/adapter/feed"
	"github.com/couchcryptid/osint-ingest/internal/config"
	"github.com/couchcryptid/osint-ingest/internal/dispatcher"
	"github.com/couchcryptid/osint-ingest/internal/observability"
	"github.com/couchcryptid/osint-ingest/internal/scheduler"
)

// newSchedulerCmd runs the recurring calendar-based dispatcher: fetch jobs
// for the feed and events adapters every 15 minutes, a processing sweep
// every 5 minutes. The business-registry adapter is not scheduled — it is
// driven via `ingest run-once bizreg` against an operator-supplied term list.
func newSchedulerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scheduler",
		Short: "Run the recurring fetch and sweep scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := observability.NewLogger(cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			dispClient, err := dispatcher.NewClient(cfg.RedisURL)
			if err != nil {
				return err
			}
			defer func() {
				if err := dispClient.Close(); err != nil {
					logger.Error("dispatcher client close error", "error", err)
				}
			}()

			policy := scheduler.RetryPolicy{
				FetchMaxRetries: cfg.FetchMaxRetries,
				FetchRetryDelay: cfg.FetchRetryDelay,
				SweepMaxRetries: cfg.SweepMaxRetries,
				SweepRetryDelay: cfg.SweepRetryDelay,
			}
			s := scheduler.New(dispClient, policy, logger)

			fetchSpec := scheduler.CronSpecEveryMinutes(int(cfg.FetchInterval.Minutes()))
			sweepSpec := scheduler.CronSpecEveryMinutes(int(cfg.SweepInterval.Minutes()))

			if err := s.RegisterFetch(fetchSpec, feed.Name); err != nil {
				return err
			}
			if err := s.RegisterFetch(fetchSpec, events.Name); err != nil {
				return err
			}
			if err := s.RegisterSweep(sweepSpec); err != nil {
				return err
			}

			s.Start()
			logger.Info("scheduler started", "fetch_spec", fetchSpec, "sweep_spec", sweepSpec)

			<-ctx.Done()
			logger.Info("shutting down scheduler")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			return s.Stop(shutdownCtx)
		},
	}
}
