// Package ingest orchestrates one incremental ingestion run: per stream it
// reads the cursor, plans a fetch window, fetches and normalizes records,
// writes date partitions, and advances the cursor.
//
// Failures are isolated at the stream boundary. One broken meter or device
// never blocks the others; the run as a whole fails only when nothing at all
// succeeded.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/utility-ingest/internal/blobstore"
	"github.com/ignite/utility-ingest/internal/config"
	"github.com/ignite/utility-ingest/internal/cursor"
	"github.com/ignite/utility-ingest/internal/octopus"
	"github.com/ignite/utility-ingest/internal/partition"
	"github.com/ignite/utility-ingest/internal/pkg/logger"
	"github.com/ignite/utility-ingest/internal/tado"
	"github.com/ignite/utility-ingest/internal/window"
)

// OctopusAPI is the slice of the Octopus client the orchestrator needs.
type OctopusAPI interface {
	GetConsumption(ctx context.Context, m octopus.Meter, start, end time.Time) ([]map[string]any, error)
	GetUnitRates(ctx context.Context, productCode, tariffCode string, start, end time.Time) ([]map[string]any, error)
	DiscoverActiveTariffs(ctx context.Context, asOf time.Time) (map[string]octopus.Tariff, error)
}

// TadoAPI is the slice of the Tado client the orchestrator needs.
type TadoAPI interface {
	EnumerateZones(ctx context.Context) ([]tado.Device, error)
	GetDayReport(ctx context.Context, d tado.Device, date time.Time) (*tado.DayReport, error)
}

// SourceReport counts stream outcomes for one source.
type SourceReport struct {
	Success int
	Errors  int
}

// Report is the outcome of one orchestrator run.
type Report struct {
	RunID   string
	Octopus SourceReport
	Tado    SourceReport
}

// TotalSuccess returns the stream successes across all sources.
func (r Report) TotalSuccess() int { return r.Octopus.Success + r.Tado.Success }

// TotalErrors returns the stream errors across all sources.
func (r Report) TotalErrors() int { return r.Octopus.Errors + r.Tado.Errors }

// Failed reports whether the run produced nothing but errors. Partial
// failure (some streams succeeded) is a successful run.
func (r Report) Failed() bool {
	return r.TotalSuccess() == 0 && r.TotalErrors() > 0
}

// Runner executes incremental ingestion runs.
type Runner struct {
	cfg              *config.Config
	consumptionBlobs blobstore.Store
	heatingBlobs     blobstore.Store
	octo             OctopusAPI
	heat             TadoAPI

	// Now is swappable in tests; defaults to time.Now.
	Now func() time.Time
}

// NewRunner wires an orchestrator over the two storage namespaces and the
// vendor clients. A nil client is allowed when the matching source is
// disabled in config.
func NewRunner(cfg *config.Config, consumptionBlobs, heatingBlobs blobstore.Store, octo OctopusAPI, heat TadoAPI) *Runner {
	return &Runner{
		cfg:              cfg,
		consumptionBlobs: consumptionBlobs,
		heatingBlobs:     heatingBlobs,
		octo:             octo,
		heat:             heat,
		Now:              time.Now,
	}
}

// Run executes one full ingestion pass over all enabled sources.
func (r *Runner) Run(ctx context.Context) Report {
	report := Report{RunID: uuid.NewString()}
	started := r.Now()
	logger.Info("ingestion run starting", "run_id", report.RunID)

	if r.cfg.Octopus.Enabled && r.octo != nil {
		report.Octopus = r.runOctopus(ctx)
	} else {
		logger.Info("octopus source skipped", "run_id", report.RunID)
	}

	if r.cfg.Tado.Enabled && r.heat != nil {
		report.Tado = r.runTado(ctx)
	} else {
		logger.Info("tado source skipped", "run_id", report.RunID)
	}

	logger.Info("ingestion run finished",
		"run_id", report.RunID,
		"success", report.TotalSuccess(),
		"errors", report.TotalErrors(),
		"failed", report.Failed(),
		"elapsed", r.Now().Sub(started).String())
	return report
}

// runOctopus ingests all meter consumption streams, then the unit-rate
// streams of the active tariffs, then derives costed-consumption artifacts
// for meters that produced new data.
func (r *Runner) runOctopus(ctx context.Context) SourceReport {
	var rep SourceReport
	cursors := cursor.NewStore(r.consumptionBlobs)
	now := r.Now()

	fetched := make(map[string][]octopus.ConsumptionRecord) // stream key -> new records
	for _, m := range r.cfg.Octopus.Meters {
		records, err := r.ingestMeter(ctx, cursors, m, now)
		if err != nil {
			logger.Error("consumption stream failed", "stream", m.StreamKey(), "kind", m.Kind, "error", err.Error())
			rep.Errors++
			continue
		}
		fetched[m.StreamKey()] = records
		rep.Success++
	}

	tariffs, err := r.octo.DiscoverActiveTariffs(ctx, now)
	if err != nil {
		logger.Error("tariff discovery failed, skipping rate streams", "error", err.Error())
		rep.Errors++
		return rep
	}

	rates := make(map[string][]octopus.UnitRateRecord) // energy kind -> new bands
	for energy, t := range tariffs {
		bands, err := r.ingestRates(ctx, cursors, t, energy, now)
		if err != nil {
			logger.Error("rate stream failed", "tariff", t.TariffCode, "error", err.Error())
			rep.Errors++
			continue
		}
		rates[energy] = bands
		rep.Success++
	}

	// Derived artifact, best effort: a costing failure is logged but does
	// not fail a stream that already landed its primary partitions.
	for _, m := range r.cfg.Octopus.Meters {
		records := fetched[m.StreamKey()]
		bands := rates[m.Kind]
		if len(records) == 0 || len(bands) == 0 {
			continue
		}
		costed := octopus.JoinRates(records, bands)
		if len(costed) == 0 {
			continue
		}
		writer := partition.NewWriter(r.consumptionBlobs, CostedKeys(m))
		if _, err := writer.Write(ctx, costed); err != nil {
			logger.Warn("costed consumption write failed", "stream", m.StreamKey(), "error", err.Error())
		}
	}

	return rep
}

// ingestMeter runs one consumption stream end to end and returns the new
// records for downstream costing.
func (r *Runner) ingestMeter(ctx context.Context, cursors *cursor.Store, m octopus.Meter, now time.Time) ([]octopus.ConsumptionRecord, error) {
	key := m.StreamKey()
	var prior *time.Time
	if ts, ok := cursors.Get(ctx, key); ok {
		prior = &ts
	}
	win := window.Plan(prior, now, window.Consumption())

	raw, err := r.octo.GetConsumption(ctx, m, win.Start, win.End)
	if err != nil {
		return nil, err
	}
	records := octopus.NormalizeConsumption(raw, m)
	if len(records) == 0 {
		logger.Info("no new consumption", "stream", key, "window_start", win.Start.Format(time.RFC3339))
		return nil, nil
	}

	writer := partition.NewWriter(r.consumptionBlobs, ConsumptionKeys(m))
	partitions, err := writer.Write(ctx, records)
	if err != nil {
		return nil, err
	}

	watermark := records[0].IntervalStart
	for _, rec := range records[1:] {
		if rec.IntervalStart.After(watermark) {
			watermark = rec.IntervalStart
		}
	}
	if err := cursors.Set(ctx, key, watermark); err != nil {
		return nil, fmt.Errorf("advancing cursor: %w", err)
	}

	logger.Info("consumption stream ingested",
		"stream", key, "kind", m.Kind,
		"records", len(records), "partitions", partitions,
		"watermark", cursor.FormatTimestamp(watermark))
	return records, nil
}

// ingestRates runs one unit-rate stream end to end and returns the new bands
// for downstream costing.
func (r *Runner) ingestRates(ctx context.Context, cursors *cursor.Store, t octopus.Tariff, energy string, now time.Time) ([]octopus.UnitRateRecord, error) {
	key := "rates:" + t.TariffCode
	var prior *time.Time
	if ts, ok := cursors.Get(ctx, key); ok {
		prior = &ts
	}
	win := window.Plan(prior, now, window.Rates())

	raw, err := r.octo.GetUnitRates(ctx, t.ProductCode, t.TariffCode, win.Start, win.End)
	if err != nil {
		return nil, err
	}
	records := octopus.NormalizeUnitRates(raw, t.ProductCode, t.TariffCode, energy)
	if len(records) == 0 {
		logger.Info("no new unit rates", "stream", key, "window_start", win.Start.Format(time.RFC3339))
		return nil, nil
	}

	writer := partition.NewWriter(r.consumptionBlobs, RateKeys(t, energy))
	partitions, err := writer.Write(ctx, records)
	if err != nil {
		return nil, err
	}

	watermark := records[0].ValidFrom
	for _, rec := range records[1:] {
		if rec.ValidFrom.After(watermark) {
			watermark = rec.ValidFrom
		}
	}
	if err := cursors.Set(ctx, key, watermark); err != nil {
		return nil, fmt.Errorf("advancing cursor: %w", err)
	}

	logger.Info("rate stream ingested",
		"stream", key, "records", len(records), "partitions", partitions,
		"watermark", cursor.FormatTimestamp(watermark))
	return records, nil
}

// runTado ingests all heating device streams day by day.
func (r *Runner) runTado(ctx context.Context) SourceReport {
	var rep SourceReport
	cursors := cursor.NewStore(r.heatingBlobs)
	now := r.Now()

	devices := r.cfg.Tado.Devices
	if len(devices) == 0 {
		var err error
		devices, err = r.heat.EnumerateZones(ctx)
		if err != nil {
			logger.Error("zone enumeration failed, skipping heating streams", "error", err.Error())
			rep.Errors++
			return rep
		}
	}

	for _, d := range devices {
		if err := r.ingestDevice(ctx, cursors, d, now); err != nil {
			logger.Error("heating stream failed", "stream", d.StreamKey(), "error", err.Error())
			rep.Errors++
			continue
		}
		rep.Success++
	}
	return rep
}

// ingestDevice walks the device's day reports from the watermark's date to
// today, filters records to strictly after the watermark, and writes demand
// and temperature partitions.
func (r *Runner) ingestDevice(ctx context.Context, cursors *cursor.Store, d tado.Device, now time.Time) error {
	key := d.StreamKey()
	var prior *time.Time
	if ts, ok := cursors.Get(ctx, key); ok {
		prior = &ts
	}
	win := window.Plan(prior, now, window.DayReport())

	var demand []tado.DemandEvent
	var temps []tado.TemperatureRecord
	for day := truncateDay(win.Start); !day.After(win.End); day = day.AddDate(0, 0, 1) {
		report, err := r.heat.GetDayReport(ctx, d, day)
		if err != nil {
			return fmt.Errorf("day %s: %w", day.Format("2006-01-02"), err)
		}
		dd, tt := tado.ParseDayReport(report, d)
		demand = append(demand, dd...)
		temps = append(temps, tt...)
	}

	// The whole watermark day was re-fetched; drop what a previous run
	// already accounted for so the watermark only ever moves forward.
	if prior != nil {
		demand = filterAfter(demand, *prior, func(e tado.DemandEvent) time.Time { return e.Timestamp })
		temps = filterAfter(temps, *prior, func(t tado.TemperatureRecord) time.Time { return t.Timestamp })
	}
	if len(demand) == 0 && len(temps) == 0 {
		logger.Info("no new heating data", "stream", key)
		return nil
	}

	demandWriter := partition.NewWriter(r.heatingBlobs, DemandKeys(d))
	if _, err := demandWriter.Write(ctx, demand); err != nil {
		return err
	}
	tempWriter := partition.NewWriter(r.heatingBlobs, TemperatureKeys(d))
	if _, err := tempWriter.Write(ctx, temps); err != nil {
		return err
	}

	var watermark time.Time
	for _, e := range demand {
		if e.Timestamp.After(watermark) {
			watermark = e.Timestamp
		}
	}
	for _, t := range temps {
		if t.Timestamp.After(watermark) {
			watermark = t.Timestamp
		}
	}
	if err := cursors.Set(ctx, key, watermark); err != nil {
		return fmt.Errorf("advancing cursor: %w", err)
	}

	logger.Info("heating stream ingested",
		"stream", key,
		"demand_events", len(demand), "temperature_records", len(temps),
		"watermark", cursor.FormatTimestamp(watermark))
	return nil
}

func filterAfter[T any](records []T, cutoff time.Time, ts func(T) time.Time) []T {
	kept := records[:0]
	for _, rec := range records {
		if ts(rec).After(cutoff) {
			kept = append(kept, rec)
		}
	}
	return kept
}

func truncateDay(ts time.Time) time.Time {
	ts = ts.UTC()
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
}
