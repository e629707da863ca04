package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/osint-ingest/internal/adapter/bizreg"
	"github.com/couchcryptid/osint-ingest/internal/adapter/events"
	"github.com/couchcryptid/osint-ingest/internal/adapter/feed"
	"github.com/couchcryptid/osint-ingest/internal/adapter/httpapi"
	"github.com/couchcryptid/osint-ingest/internal/config"
	"github.com/couchcryptid/osint-ingest/internal/dispatcher"
	"github.com/couchcryptid/osint-ingest/internal/observability"
)

// newWorkerCmd runs the asynq worker pool: it drains fetch and sweep units
// from the dispatcher's queue and exposes /healthz, /readyz, /metrics.
func newWorkerCmd() *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the worker pool that executes fetch and sweep units",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := observability.NewLogger(cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := bootstrap(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.close()

			workerCfg := dispatcher.Config{
				RedisURL:        cfg.RedisURL,
				Concurrency:     concurrency,
				FetchRetryDelay: cfg.FetchRetryDelay,
				SweepRetryDelay: cfg.SweepRetryDelay,
			}
			w, err := dispatcher.NewWorker(workerCfg, a.metrics, logger)
			if err != nil {
				return err
			}

			w.Handle(dispatcher.FetchTaskType(feed.Name), a.fetchHandler)
			w.Handle(dispatcher.FetchTaskType(events.Name), a.fetchHandler)
			w.Handle(dispatcher.FetchTaskType(bizreg.Name), a.fetchHandler)
			w.Handle(dispatcher.TaskTypeSweep, a.sweepHandler)

			srv := httpapi.NewServer(cfg.HTTPAddr, a, logger)
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server error", "error", err)
				}
			}()

			runDone := make(chan struct{})
			go func() {
				defer close(runDone)
				if err := w.Run(ctx); err != nil {
					logger.Error("worker pool error", "error", err)
				}
			}()

			<-ctx.Done()
			logger.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
			<-runDone
			return nil
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 10, "maximum concurrent units in flight")
	return cmd
}
