package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/couchcryptid/osint-ingest/internal/adapter/bizreg"
	"github.com/couchcryptid/osint-ingest/internal/adapter/events"
	"github.com/couchcryptid/osint-ingest/internal/adapter/feed"
	"github.com/couchcryptid/osint-ingest/internal/adapter/registry"
	"github.com/couchcryptid/osint-ingest/internal/config"
	"github.com/couchcryptid/osint-ingest/internal/dispatcher"
	"github.com/couchcryptid/osint-ingest/internal/domain"
	"github.com/couchcryptid/osint-ingest/internal/geocoder"
	"github.com/couchcryptid/osint-ingest/internal/normalizer"
	"github.com/couchcryptid/osint-ingest/internal/observability"
	"github.com/couchcryptid/osint-ingest/internal/store/graphstore"
	"github.com/couchcryptid/osint-ingest/internal/store/rawstore"
	"github.com/couchcryptid/osint-ingest/internal/sweep"
	"github.com/couchcryptid/osint-ingest/internal/tagger"
)

// app bundles every long-lived dependency wired from config, shared by the
// worker, scheduler, and run-once subcommands.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics

	pgPool     *pgxpool.Pool
	neo4jDrv   neo4j.DriverWithContext
	rawStore   *rawstore.Store
	graph      *graphstore.Store
	sweeper    *sweep.Sweeper
	dispClient *dispatcher.Client
}

func bootstrap(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	metrics := observability.NewMetrics()

	pgPool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	neo4jDrv, err := neo4j.NewDriverWithContext(cfg.Neo4jURI, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""))
	if err != nil {
		return nil, fmt.Errorf("connect neo4j: %w", err)
	}
	if err := neo4jDrv.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}

	rawStore := rawstore.New(pgPool)
	if err := rawStore.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure raw store schema: %w", err)
	}
	graph := graphstore.New(neo4jDrv, metrics)

	geoClient := geocoder.NewClient(cfg.GeocoderUserAgent, metrics, logger)
	rateLimited := geocoder.NewRateLimitedGeocoder(geoClient, geocoder.NewRateLimiter(cfg.GeocoderRateLimit))
	cachedGeo := geocoder.NewCachedGeocoder(rateLimited, cfg.GeocoderCacheSize, metrics)

	resolver := normalizer.NewResolver(cfg.ResolveSimilarityThreshold)
	staticTagger := tagger.NewStaticTagger(tagger.DefaultGazetteer())

	sweeper := sweep.New(rawStore, staticTagger, resolver, cachedGeo, graph, logger, metrics, 0)

	dispClient, err := dispatcher.NewClient(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("create dispatcher client: %w", err)
	}

	registerSourceAdapters(cfg, logger)

	return &app{
		cfg:        cfg,
		logger:     logger,
		metrics:    metrics,
		pgPool:     pgPool,
		neo4jDrv:   neo4jDrv,
		rawStore:   rawStore,
		graph:      graph,
		sweeper:    sweeper,
		dispClient: dispClient,
	}, nil
}

// registerSourceAdapters installs every source adapter constructor into the
// process-wide registry, keyed by adapter name.
func registerSourceAdapters(cfg *config.Config, logger *slog.Logger) {
	registry.Register(feed.Name, func() domain.SourceAdapter { return feed.New(cfg.RSSFeedURLs, logger) })
	registry.Register(events.Name, func() domain.SourceAdapter {
		return events.New(cfg.EventsBaseURL, cfg.EventsFocusCountries, logger)
	})
	registry.Register(bizreg.Name, func() domain.SourceAdapter {
		return bizreg.New(cfg.BizRegAPIURL, cfg.BizRegAPIKey, cfg.BizRegTerms, logger)
	})
}

func (a *app) close() {
	if a.dispClient != nil {
		_ = a.dispClient.Close()
	}
	if a.neo4jDrv != nil {
		_ = a.neo4jDrv.Close(context.Background())
	}
	if a.pgPool != nil {
		a.pgPool.Close()
	}
}

// CheckReadiness implements httpapi.ReadinessChecker: the service is ready
// once both stores answer.
func (a *app) CheckReadiness(ctx context.Context) error {
	if err := a.pgPool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	if err := a.neo4jDrv.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("neo4j: %w", err)
	}
	return nil
}
