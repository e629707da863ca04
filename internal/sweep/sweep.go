// Package sweep implements the single-item processing pipeline: tag,
// normalise, geocode, graph-write, mark-processed. A Sweeper drains a
// batch of unprocessed rows from the raw store, isolating per-row errors
// so one bad document does not block the rest of the batch.
package sweep

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/couchcryptid/osint-ingest/internal/domain"
	"github.com/couchcryptid/osint-ingest/internal/geocoder"
	"github.com/couchcryptid/osint-ingest/internal/normalizer"
	"github.com/couchcryptid/osint-ingest/internal/observability"
	"github.com/couchcryptid/osint-ingest/internal/store/graphstore"
	"github.com/couchcryptid/osint-ingest/internal/store/rawstore"
	"github.com/couchcryptid/osint-ingest/internal/tagger"
)

// DefaultBatchSize is the default number of unprocessed rows drained per
// sweep unit.
const DefaultBatchSize = 200

// RawStore is the subset of rawstore.Store the sweeper depends on.
type RawStore interface {
	SelectUnprocessed(ctx context.Context, batchSize int) ([]rawstore.Row, error)
	MarkProcessed(ctx context.Context, id int64) error
}

// GraphWriter is the subset of graphstore.Store the sweeper depends on.
type GraphWriter interface {
	WriteDocument(ctx context.Context, doc graphstore.Document, entities []domain.NormalisedEntity, geo graphstore.GeoByEntity) error
}

// Result summarises the outcome of a single sweep unit.
type Result struct {
	Processed int
	Errors    int
}

// Sweeper runs the processing sweep over batches of unprocessed raw items.
type Sweeper struct {
	rawStore  RawStore
	tagger    tagger.Tagger
	resolver  *normalizer.Resolver
	geocoder  geocoder.Geocoder
	graph     GraphWriter
	logger    *slog.Logger
	metrics   *observability.Metrics
	batchSize int
}

// New creates a Sweeper. batchSize falls back to DefaultBatchSize when
// non-positive.
func New(
	rawStore RawStore,
	t tagger.Tagger,
	resolver *normalizer.Resolver,
	geo geocoder.Geocoder,
	graph GraphWriter,
	logger *slog.Logger,
	metrics *observability.Metrics,
	batchSize int,
) *Sweeper {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Sweeper{
		rawStore:  rawStore,
		tagger:    t,
		resolver:  resolver,
		geocoder:  geo,
		graph:     graph,
		logger:    logger,
		metrics:   metrics,
		batchSize: batchSize,
	}
}

// Run drains up to the configured batch size of unprocessed rows and
// processes each in turn, isolating failures per row.
func (s *Sweeper) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	rows, err := s.rawStore.SelectUnprocessed(ctx, s.batchSize)
	if err != nil {
		return Result{}, err
	}
	s.metrics.SweepBatchSize.Observe(float64(len(rows)))

	var result Result
	for _, row := range rows {
		if err := s.processRow(ctx, row); err != nil {
			s.logger.Warn("sweep: row failed, left unprocessed for retry",
				"external_id", row.Item.ExternalID, "error", err)
			result.Errors++
			s.metrics.SweepErrors.Inc()
			continue
		}
		result.Processed++
		s.metrics.SweepProcessed.Inc()
	}

	s.metrics.SweepDuration.Observe(time.Since(start).Seconds())
	return result, nil
}

func (s *Sweeper) processRow(ctx context.Context, row rawstore.Row) error {
	text := concatNonEmpty(row.Item.Title, row.Item.Summary, row.Item.Content)

	extracted := s.tagger.Tag(text)
	if len(extracted) == 0 {
		return s.rawStore.MarkProcessed(ctx, row.ID)
	}

	normalised := s.resolver.Resolve(extracted)

	geo := make(graphstore.GeoByEntity)
	for _, e := range normalised {
		if e.Kind != domain.KindLocation {
			continue
		}
		result, found, err := s.geocoder.Geocode(ctx, e.Name)
		if err != nil {
			return err
		}
		if found {
			geo[e.Name] = result
		}
	}

	doc := graphstore.Document{
		ExternalID:  row.Item.ExternalID,
		Title:       row.Item.Title,
		SourceURL:   row.Item.SourceURL,
		Adapter:     row.Item.SourceAdapter,
		PublishedAt: row.Item.PublishedAt,
	}
	if err := s.graph.WriteDocument(ctx, doc, normalised, geo); err != nil {
		return err
	}

	return s.rawStore.MarkProcessed(ctx, row.ID)
}

func concatNonEmpty(parts ...string) string {
	var nonEmpty []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, " ")
}
