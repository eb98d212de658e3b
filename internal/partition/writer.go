// Package partition groups normalized records into date-partitioned
// artifacts and writes them to the object store.
//
// Writes are idempotent: records are deduplicated on their natural key,
// sorted for deterministic serialization, and each (path, date) artifact is
// fully overwritten, so repeated runs covering the same window converge on
// identical content instead of accumulating duplicate rows.
package partition

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/ignite/utility-ingest/internal/blobstore"
	"github.com/ignite/utility-ingest/internal/pkg/logger"
)

// Keys describes how records of type T are deduplicated, dated, and placed.
type Keys[T any] struct {
	// Dedup returns the record's natural key. Later records win on collision
	// since upstream fetches arrive in ascending order.
	Dedup func(T) string

	// Date returns the record's defining timestamp; its UTC date is the
	// partition key.
	Date func(T) time.Time

	// Path returns the artifact path for a partition date (YYYY-MM-DD).
	Path func(date string) string
}

// Writer writes date-partitioned artifacts for one record type.
type Writer[T any] struct {
	blobs blobstore.Store
	keys  Keys[T]
}

// NewWriter creates a partition writer over the given blob store.
func NewWriter[T any](blobs blobstore.Store, keys Keys[T]) *Writer[T] {
	return &Writer[T]{blobs: blobs, keys: keys}
}

// Write deduplicates records, groups them by UTC date, and uploads one JSON
// artifact per date. Empty input is a no-op. Each artifact is written whole;
// a failure aborts the call with no further partitions attempted, which is
// safe because the next run's overlap window re-covers the gap.
func (w *Writer[T]) Write(ctx context.Context, records []T) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	keep := Dedup(records, w.keys.Dedup)

	groups := make(map[string][]T)
	for i, rec := range records {
		if keep[w.keys.Dedup(rec)] != i {
			continue
		}
		date := w.keys.Date(rec).UTC().Format("2006-01-02")
		groups[date] = append(groups[date], rec)
	}

	dates := make([]string, 0, len(groups))
	for date := range groups {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	written := 0
	for _, date := range dates {
		group := groups[date]
		sort.Slice(group, func(i, j int) bool {
			return w.keys.Dedup(group[i]) < w.keys.Dedup(group[j])
		})

		data, err := json.MarshalIndent(group, "", "  ")
		if err != nil {
			return written, fmt.Errorf("marshaling partition %s: %w", date, err)
		}

		path := w.keys.Path(date)
		if err := w.blobs.Upload(ctx, path, data); err != nil {
			return written, fmt.Errorf("writing partition %s: %w", path, err)
		}
		logger.Debug("partition written", "path", path, "records", len(group))
		written++
	}
	return written, nil
}

// Dedup maps each natural key to the index of its last occurrence
// (last-seen-wins).
func Dedup[T any](records []T, key func(T) string) map[string]int {
	keep := make(map[string]int, len(records))
	for i, rec := range records {
		keep[key(rec)] = i
	}
	return keep
}
