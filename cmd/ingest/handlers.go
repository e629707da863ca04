package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/couchcryptid/osint-ingest/internal/adapter/registry"
	"github.com/couchcryptid/osint-ingest/internal/dispatcher"
)

// fetchHandler runs a registered source adapter's Fetch and upserts every
// resulting item into the raw store. A network-level fetch failure is
// returned so the dispatcher redelivers the whole unit; per-item upsert
// failures are not expected and surface the same way.
func (a *app) fetchHandler(ctx context.Context, task *asynq.Task) error {
	var payload dispatcher.FetchPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("fetch handler: decode payload: %w", err)
	}

	adapter := registry.New(payload.Adapter)
	items, err := adapter.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch handler: %s: %w", payload.Adapter, err)
	}

	a.metrics.ItemsFetched.WithLabelValues(payload.Adapter).Add(float64(len(items)))

	var firstErr error
	inserted := 0
	for _, item := range items {
		ok, err := a.rawStore.Upsert(ctx, item)
		if err != nil {
			a.logger.Error("fetch handler: upsert failed", "adapter", payload.Adapter, "external_id", item.ExternalID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if ok {
			inserted++
		}
	}
	a.metrics.ItemsInserted.WithLabelValues(payload.Adapter).Add(float64(inserted))

	return firstErr
}

// sweepHandler runs one processing-sweep unit.
func (a *app) sweepHandler(ctx context.Context, _ *asynq.Task) error {
	result, err := a.sweeper.Run(ctx)
	if err != nil {
		return fmt.Errorf("sweep handler: %w", err)
	}
	if result.Errors > 0 {
		a.logger.Warn("sweep completed with row-level errors", "processed", result.Processed, "errors", result.Errors)
	}
	return nil
}
