// Package graphstore writes processed documents and entities into Neo4j as
// a single logical transaction per raw item: idempotent upserts of
// Document and entity nodes, MENTIONED_IN edges, and CO_OCCURS edges.
package graphstore

import (
	"context"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/couchcryptid/osint-ingest/internal/domain"
	"github.com/couchcryptid/osint-ingest/internal/observability"
)

// Document is the subset of a processed RawItem the graph writer needs.
type Document struct {
	ExternalID  string
	Title       string
	SourceURL   string
	Adapter     string
	PublishedAt *time.Time
}

// GeoByEntity maps a normalised entity's canonical name (within Location
// kind) to its resolved geocode, when one was found.
type GeoByEntity map[string]domain.GeoResult

// Store writes documents and entities to Neo4j.
type Store struct {
	driver  neo4j.DriverWithContext
	clock   clockwork.Clock
	metrics *observability.Metrics
}

// New creates a graph Store over an existing Neo4j driver.
func New(driver neo4j.DriverWithContext, metrics *observability.Metrics) *Store {
	return &Store{driver: driver, clock: clockwork.NewRealClock(), metrics: metrics}
}

// SetClock overrides the store's clock; intended for tests.
func (s *Store) SetClock(c clockwork.Clock) {
	s.clock = c
}

// WriteDocument performs the full upsert sequence for one document in a
// single managed write transaction (session.ExecuteWrite): Document node, entity nodes, MENTIONED_IN
// edges, CO_OCCURS edges. A failure at any step aborts the whole
// transaction and propagates to the caller; the row is left unprocessed
// for retry.
func (s *Store) WriteDocument(ctx context.Context, doc Document, entities []domain.NormalisedEntity, geo GeoByEntity) error {
	start := s.clock.Now()
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if err := upsertDocument(ctx, tx, doc); err != nil {
			return nil, err
		}
		for _, e := range entities {
			if err := upsertEntity(ctx, tx, e, geo); err != nil {
				return nil, err
			}
			if err := upsertMentionedIn(ctx, tx, doc.ExternalID, e); err != nil {
				return nil, err
			}
		}
		if err := upsertCoOccurrences(ctx, tx, entities, s.clock.Now().UTC()); err != nil {
			return nil, err
		}
		return nil, nil
	})

	s.metrics.GraphWriteDuration.Observe(s.clock.Now().Sub(start).Seconds())
	if err != nil {
		s.metrics.GraphWriteErrors.Inc()
	}
	return err
}

func upsertDocument(ctx context.Context, tx neo4j.ManagedTransaction, doc Document) error {
	_, err := tx.Run(ctx, `
		MERGE (d:Document {external_id: $external_id})
		SET d.title = $title, d.source_url = $source_url, d.adapter = $adapter, d.published_at = $published_at
	`, map[string]any{
		"external_id":  doc.ExternalID,
		"title":        doc.Title,
		"source_url":   doc.SourceURL,
		"adapter":      doc.Adapter,
		"published_at": publishedAtParam(doc.PublishedAt),
	})
	return err
}

func publishedAtParam(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func upsertEntity(ctx context.Context, tx neo4j.ManagedTransaction, e domain.NormalisedEntity, geo GeoByEntity) error {
	label := nodeLabel(e.Kind)

	params := map[string]any{
		"name":        e.Name,
		"type":        string(e.Kind),
		"occurrences": e.Occurrences,
	}

	cypher := `
		MERGE (n:` + label + ` {name: $name})
		ON CREATE SET n.type = $type, n.occurrences = $occurrences
		ON MATCH SET n.occurrences = coalesce(n.occurrences, 0) + $occurrences
	`

	if e.Kind == domain.KindLocation {
		if result, ok := geo[e.Name]; ok {
			cypher += `
		SET n.latitude = $latitude, n.longitude = $longitude, n.country = $country, n.region = $region
			`
			params["latitude"] = result.Latitude
			params["longitude"] = result.Longitude
			params["country"] = result.Country
			params["region"] = result.Region
		}
	}

	_, err := tx.Run(ctx, cypher, params)
	return err
}

func upsertMentionedIn(ctx context.Context, tx neo4j.ManagedTransaction, externalID string, e domain.NormalisedEntity) error {
	label := nodeLabel(e.Kind)
	cypher := `
		MATCH (n:` + label + ` {name: $name})
		MATCH (d:Document {external_id: $external_id})
		MERGE (n)-[r:MENTIONED_IN]->(d)
		SET r.occurrences = $occurrences
	`
	_, err := tx.Run(ctx, cypher, map[string]any{
		"name":        e.Name,
		"external_id": externalID,
		"occurrences": e.Occurrences,
	})
	return err
}

// upsertCoOccurrences upserts a CO_OCCURS edge for every unordered pair of
// distinct entities in the document, incrementing weight and refreshing
// last_seen. Pairs are canonically oriented by (kind, name) so the same
// pair is never written as both edge directions.
func upsertCoOccurrences(ctx context.Context, tx neo4j.ManagedTransaction, entities []domain.NormalisedEntity, now time.Time) error {
	ordered := make([]domain.NormalisedEntity, len(entities))
	copy(ordered, entities)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Kind != ordered[j].Kind {
			return ordered[i].Kind < ordered[j].Kind
		}
		return ordered[i].Name < ordered[j].Name
	})

	for i := 0; i < len(ordered); i++ {
		for j := i + 1; j < len(ordered); j++ {
			a, b := ordered[i], ordered[j]
			cypher := `
				MATCH (a:` + nodeLabel(a.Kind) + ` {name: $a_name})
				MATCH (b:` + nodeLabel(b.Kind) + ` {name: $b_name})
				MERGE (a)-[r:CO_OCCURS]-(b)
				ON CREATE SET r.weight = 1, r.last_seen = $now
				ON MATCH SET r.weight = r.weight + 1, r.last_seen = $now
			`
			_, err := tx.Run(ctx, cypher, map[string]any{
				"a_name": a.Name,
				"b_name": b.Name,
				"now":    now.Format(time.RFC3339),
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func nodeLabel(kind domain.EntityKind) string {
	switch kind {
	case domain.KindPerson:
		return "Person"
	case domain.KindOrganization:
		return "Organization"
	case domain.KindLocation:
		return "Location"
	default:
		return "Entity"
	}
}
