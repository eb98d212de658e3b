// Package window computes the bounded fetch window for one ingestion run of
// a stream, applying overlap, bootstrap-lookback, and floor policies.
package window

import "time"

// Floor is the absolute earliest queryable instant. Windows never start
// before this regardless of watermark arithmetic, to avoid pathological
// vendor queries for data that predates any meter.
var Floor = time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)

// Window is a half-open [Start, End) fetch range.
type Window struct {
	Start time.Time
	End   time.Time
}

// Policy controls how the window start is derived.
type Policy struct {
	// Overlap is subtracted from a prior watermark when resuming. For
	// half-hour consumption streams this is 30m1s: the extra second
	// guarantees re-inclusion of the interval that begins exactly at the
	// watermark, masking the legacy end-of-interval/start-of-interval
	// ambiguity and tolerating DST shifts that could otherwise skip a bucket.
	Overlap time.Duration

	// BootstrapLookback sizes the first-run window when no watermark exists.
	BootstrapLookback time.Duration

	// TruncateToDay snaps a resumed start back to the watermark's UTC
	// midnight. Used for day-granular sources (heating day reports) so a
	// partially-ingested day is always re-walked in full; callers then
	// filter fetched records to strictly-after the watermark.
	TruncateToDay bool
}

// Consumption is the policy for half-hour consumption interval streams.
func Consumption() Policy {
	return Policy{
		Overlap:           30*time.Minute + time.Second,
		BootstrapLookback: 7 * 24 * time.Hour,
	}
}

// Rates is the policy for tariff unit-rate streams, which change rarely but
// need a deep first pull.
func Rates() Policy {
	return Policy{
		Overlap:           30*time.Minute + time.Second,
		BootstrapLookback: 30 * 24 * time.Hour,
	}
}

// DayReport is the policy for day-granular heating telemetry streams, whose
// cursor advances on nearly every run.
func DayReport() Policy {
	return Policy{
		BootstrapLookback: time.Hour,
		TruncateToDay:     true,
	}
}

// Plan computes the fetch window for a stream. prior is nil when no watermark
// exists. End is always now; Start is clamped to Floor.
func Plan(prior *time.Time, now time.Time, pol Policy) Window {
	now = now.UTC()

	var start time.Time
	if prior == nil {
		start = now.Add(-pol.BootstrapLookback)
	} else {
		p := prior.UTC()
		if pol.TruncateToDay {
			start = time.Date(p.Year(), p.Month(), p.Day(), 0, 0, 0, 0, time.UTC)
		} else {
			start = p.Add(-pol.Overlap)
		}
	}

	if start.Before(Floor) {
		start = Floor
	}
	return Window{Start: start, End: now}
}
