package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/osint-ingest/internal/adapter/registry"
	"github.com/couchcryptid/osint-ingest/internal/config"
	"github.com/couchcryptid/osint-ingest/internal/observability"
)

// newRunOnceCmd fetches a single adapter immediately and upserts the
// results into the raw store, bypassing the scheduler and dispatcher. Used
// for the business-registry adapter, which is driven ad hoc against an
// operator-supplied search term list rather than on a recurring cadence,
// and for manual backfills of the other adapters.
func newRunOnceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run-once <adapter>",
		Short: "Fetch one adapter immediately and upsert the results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			adapterName := args[0]

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := observability.NewLogger(cfg)

			ctx := cmd.Context()
			a, err := bootstrap(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.close()

			if names := registry.Names(); !contains(names, adapterName) {
				return fmt.Errorf("unknown adapter %q (known: %v)", adapterName, names)
			}

			adapter := registry.New(adapterName)
			items, err := adapter.Fetch(ctx)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", adapterName, err)
			}

			inserted := 0
			for _, item := range items {
				ok, err := a.rawStore.Upsert(ctx, item)
				if err != nil {
					logger.Error("run-once: upsert failed", "external_id", item.ExternalID, "error", err)
					continue
				}
				if ok {
					inserted++
				}
			}

			logger.Info("run-once complete", "adapter", adapterName, "fetched", len(items), "inserted", inserted)

			if _, err := a.sweeper.Run(ctx); err != nil {
				return fmt.Errorf("sweep: %w", err)
			}
			return nil
		},
	}
}

func contains(ss []string, v string) bool {
	for _, s := range ss {
		if s == v {
			return true
		}
	}
	return false
}
