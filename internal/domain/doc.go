// Package domain models the source-agnostic shapes that flow through the
// ingestion pipeline: the RawItem produced by every source adapter, the
// entities the tagger and normaliser extract from it, and the graph shapes
// the graph writer upserts downstream.
//
// # Pipeline
//
// Every upstream source — RSS/Atom feeds, the global events export, the
// business registry — is mapped by its adapter into a RawItem, the single
// canonical representation the rest of the system understands. RawItems are
// persisted to the raw store keyed by ExternalID, then later picked up by
// the processing sweep: tag -> normalise -> geocode -> write to the graph.
//
// # External IDs
//
// ExternalID is a deterministic 32-hex-character SHA-256 digest over a
// source-specific string (e.g. "rss:"+link, "gdelt:"+eventID, "cvr:"+regNo).
// It is the cross-run dedup key: re-fetching the same upstream document
// always yields the same ExternalID, so upserts are idempotent. See
// [NewExternalID].
package domain
