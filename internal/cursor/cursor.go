// Package cursor persists per-stream watermarks for incremental ingestion.
//
// All watermarks for a namespace live in a single JSON document mapping
// stream key -> ISO-8601 UTC timestamp. The document is read once at stream
// start and rewritten whole on advance; with a single orchestrator run per
// namespace there is no concurrent writer, so no locking is used.
package cursor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ignite/utility-ingest/internal/blobstore"
	"github.com/ignite/utility-ingest/internal/pkg/logger"
)

// DocumentPath is the blob path of the watermark document within a namespace.
const DocumentPath = "state/last_interval.json"

// Store reads and writes watermarks for one cursor namespace.
type Store struct {
	blobs blobstore.Store
}

// NewStore creates a cursor store over the given namespace blob store.
func NewStore(blobs blobstore.Store) *Store {
	return &Store{blobs: blobs}
}

// Get returns the stored watermark for a stream key, normalized to UTC.
// Any failure (missing document, corrupt JSON, malformed timestamp) is
// treated as "no watermark": a cursor outage must never block ingestion,
// it only forces a larger re-fetch window.
func (s *Store) Get(ctx context.Context, streamKey string) (time.Time, bool) {
	doc, err := s.load(ctx)
	if err != nil {
		if err != blobstore.ErrNotFound {
			logger.Warn("cursor: unreadable watermark document, treating as absent", "error", err.Error())
		}
		return time.Time{}, false
	}

	raw, ok := doc[streamKey]
	if !ok || raw == "" {
		return time.Time{}, false
	}

	ts, err := ParseTimestamp(raw)
	if err != nil {
		logger.Warn("cursor: malformed watermark, treating as absent",
			"stream", streamKey, "value", raw)
		return time.Time{}, false
	}
	return ts, true
}

// Set stores the watermark for a stream key. The whole document is fetched
// (empty map on any read failure), the single key overwritten, and the
// document re-uploaded with full overwrite. Last write wins.
func (s *Store) Set(ctx context.Context, streamKey string, watermark time.Time) error {
	doc, err := s.load(ctx)
	if err != nil {
		doc = map[string]string{}
	}

	doc[streamKey] = FormatTimestamp(watermark)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling watermark document: %w", err)
	}
	if err := s.blobs.Upload(ctx, DocumentPath, data); err != nil {
		return fmt.Errorf("uploading watermark document: %w", err)
	}
	return nil
}

func (s *Store) load(ctx context.Context) (map[string]string, error) {
	data, err := s.blobs.Download(ctx, DocumentPath)
	if err != nil {
		return nil, err
	}
	var doc map[string]string
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing watermark document: %w", err)
	}
	if doc == nil {
		doc = map[string]string{}
	}
	return doc, nil
}

// FormatTimestamp serializes a watermark in the canonical form: UTC, Z suffix.
func FormatTimestamp(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339)
}

// ParseTimestamp accepts the canonical Z-suffixed form, an explicit +00:00
// (or any other) offset, and naive legacy values with no offset at all,
// which are assumed to be UTC.
func ParseTimestamp(raw string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.UTC(), nil
	}
	// Legacy naive values: no offset, assume UTC
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04:05.999999"} {
		if ts, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}
