package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// RawItem is the uniform, immutable representation of any fetched upstream
// document, regardless of which adapter produced it.
type RawItem struct {
	SourceAdapter string
	ExternalID    string
	Title         string
	Content       string
	Summary       string
	Authors       []string
	PublishedAt   *time.Time
	SourceURL     string
	Metadata      map[string]any
}

// NewExternalID derives the deterministic cross-run dedup key for an
// upstream document. namespace is the adapter-specific prefix used in
// spec.md (e.g. "rss", "gdelt", "cvr"); id is the source-specific
// identifier (a feed entry link, a global event id, a registration number).
func NewExternalID(namespace, id string) string {
	sum := sha256.Sum256([]byte(namespace + ":" + id))
	return hex.EncodeToString(sum[:])[:32]
}

// SourceAdapter is the contract every pluggable source adapter implements:
// fetch upstream and map native payloads to RawItems.
//
// Implementations must never partially fail: per-entry errors are logged
// and swallowed so Fetch returns whatever was successfully parsed. A
// network-level failure is returned so the caller (the dispatcher) can
// retry the whole fetch.
type SourceAdapter interface {
	Name() string
	Fetch(ctx context.Context) ([]RawItem, error)
}
