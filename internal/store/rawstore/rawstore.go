// Package rawstore persists RawItems as a durable, idempotent queue backed
// by PostgreSQL.
package rawstore

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/couchcryptid/osint-ingest/internal/domain"
)

const ensureTableSQL = `
CREATE TABLE IF NOT EXISTS raw_items (
	id             BIGSERIAL PRIMARY KEY,
	source_adapter TEXT NOT NULL,
	external_id    TEXT NOT NULL UNIQUE,
	title          TEXT NOT NULL DEFAULT '',
	content        TEXT NOT NULL DEFAULT '',
	summary        TEXT NOT NULL DEFAULT '',
	authors        JSONB NOT NULL DEFAULT '[]',
	published_at   TIMESTAMPTZ,
	source_url     TEXT NOT NULL DEFAULT '',
	metadata       JSONB NOT NULL DEFAULT '{}',
	processed      BOOLEAN NOT NULL DEFAULT FALSE,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS raw_items_unprocessed_idx
	ON raw_items (created_at) WHERE NOT processed;
`

const upsertSQL = `
INSERT INTO raw_items (source_adapter, external_id, title, content, summary, authors, published_at, source_url, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (external_id) DO NOTHING
`

const selectUnprocessedSQL = `
SELECT id, source_adapter, external_id, title, content, summary, authors, published_at, source_url, metadata
FROM raw_items
WHERE NOT processed
ORDER BY created_at ASC
LIMIT $1
`

const markProcessedSQL = `
UPDATE raw_items SET processed = TRUE WHERE id = $1
`

// Row is the persisted form of a RawItem plus bookkeeping.
type Row struct {
	ID   int64
	Item domain.RawItem
}

// Store is a PostgreSQL-backed durable queue of RawItems.
type Store struct {
	pool *pgxpool.Pool
	once sync.Once
}

// New creates a Store over an existing connection pool. Call EnsureSchema
// before first use.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the backing table and index if they do not already
// exist. Safe to call repeatedly; only issues DDL on the first call per
// Store instance.
func (s *Store) EnsureSchema(ctx context.Context) error {
	var err error
	s.once.Do(func() {
		_, err = s.pool.Exec(ctx, ensureTableSQL)
	})
	return err
}

// Upsert inserts item if its external_id is new. Returns whether the row
// was freshly inserted; a duplicate external_id is a no-op, not an error.
func (s *Store) Upsert(ctx context.Context, item domain.RawItem) (bool, error) {
	authorsJSON, err := json.Marshal(item.Authors)
	if err != nil {
		return false, err
	}
	metadataJSON, err := json.Marshal(item.Metadata)
	if err != nil {
		return false, err
	}

	tag, err := s.pool.Exec(ctx, upsertSQL,
		item.SourceAdapter, item.ExternalID, item.Title, item.Content, item.Summary,
		authorsJSON, item.PublishedAt, item.SourceURL, metadataJSON)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// SelectUnprocessed returns up to batchSize unprocessed rows, oldest first.
func (s *Store) SelectUnprocessed(ctx context.Context, batchSize int) ([]Row, error) {
	rows, err := s.pool.Query(ctx, selectUnprocessedSQL, batchSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Row
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// MarkProcessed transitions a row to processed = true. Idempotent: marking
// an already-processed or nonexistent row is not an error.
func (s *Store) MarkProcessed(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, markProcessedSQL, id)
	return err
}

func scanRow(rows pgx.Rows) (Row, error) {
	var (
		row          Row
		authorsJSON  []byte
		metadataJSON []byte
		publishedAt  *time.Time
	)
	err := rows.Scan(
		&row.ID, &row.Item.SourceAdapter, &row.Item.ExternalID, &row.Item.Title,
		&row.Item.Content, &row.Item.Summary, &authorsJSON, &publishedAt,
		&row.Item.SourceURL, &metadataJSON,
	)
	if err != nil {
		return Row{}, err
	}
	row.Item.PublishedAt = publishedAt

	if len(authorsJSON) > 0 {
		if err := json.Unmarshal(authorsJSON, &row.Item.Authors); err != nil {
			return Row{}, err
		}
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &row.Item.Metadata); err != nil {
			return Row{}, err
		}
	}
	return row, nil
}
