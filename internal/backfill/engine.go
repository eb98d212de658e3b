// Package backfill bulk-loads historical heating telemetry day by day. Days
// are processed sequentially; within a day all devices are fetched
// concurrently with a bounded pool, and partitions are written only once
// every device's fetch has finished, so a written day is always complete.
package backfill

import (
	"context"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/ignite/utility-ingest/internal/blobstore"
	"github.com/ignite/utility-ingest/internal/ingest"
	"github.com/ignite/utility-ingest/internal/partition"
	"github.com/ignite/utility-ingest/internal/pkg/logger"
	"github.com/ignite/utility-ingest/internal/tado"
)

// DefaultMaxWorkers bounds concurrent day-report fetches. Tado throttles
// aggressively beyond this.
const DefaultMaxWorkers = 7

// Engine backfills heating partitions for a device fleet.
type Engine struct {
	blobs      blobstore.Store
	client     ingest.TadoAPI
	devices    []tado.Device
	maxWorkers int
	dryRun     bool
}

// Options tune the engine beyond its defaults.
type Options struct {
	MaxWorkers int
	DryRun     bool
}

// NewEngine creates a backfill engine over the heating namespace.
func NewEngine(blobs blobstore.Store, client ingest.TadoAPI, devices []tado.Device, opts Options) *Engine {
	workers := opts.MaxWorkers
	if workers <= 0 {
		workers = DefaultMaxWorkers
	}
	return &Engine{
		blobs:      blobs,
		client:     client,
		devices:    devices,
		maxWorkers: workers,
		dryRun:     opts.DryRun,
	}
}

// DayResult summarizes one backfilled day.
type DayResult struct {
	Date          time.Time
	Devices       int
	FailedDevices int
	DemandEvents  int
	Temperatures  int
}

// deviceData is one device's parsed day report.
type deviceData struct {
	device tado.Device
	demand []tado.DemandEvent
	temps  []tado.TemperatureRecord
}

// RunDay fetches the day report for every device concurrently, then writes
// the day's partitions. Failed devices are logged and excluded; the write
// happens regardless so one dead TRV cannot hold back the fleet, but never
// before all fetches have settled.
func (e *Engine) RunDay(ctx context.Context, date time.Time) (DayResult, error) {
	result := DayResult{Date: date, Devices: len(e.devices)}

	var mu sync.Mutex
	var collected []deviceData

	p := pool.New().WithMaxGoroutines(e.maxWorkers)
	for _, d := range e.devices {
		d := d // per-iteration copy: the go directive is 1.21 for toolchain compatibility
		p.Go(func() {
			report, err := e.client.GetDayReport(ctx, d, date)
			if err != nil {
				logger.Warn("backfill: day report fetch failed",
					"stream", d.StreamKey(), "date", date.Format("2006-01-02"), "error", err.Error())
				mu.Lock()
				result.FailedDevices++
				mu.Unlock()
				return
			}
			demand, temps := tado.ParseDayReport(report, d)
			mu.Lock()
			collected = append(collected, deviceData{device: d, demand: demand, temps: temps})
			mu.Unlock()
		})
	}
	p.Wait()

	for _, data := range collected {
		result.DemandEvents += len(data.demand)
		result.Temperatures += len(data.temps)
		if e.dryRun {
			continue
		}
		demandWriter := partition.NewWriter(e.blobs, ingest.DemandKeys(data.device))
		if _, err := demandWriter.Write(ctx, data.demand); err != nil {
			return result, err
		}
		tempWriter := partition.NewWriter(e.blobs, ingest.TemperatureKeys(data.device))
		if _, err := tempWriter.Write(ctx, data.temps); err != nil {
			return result, err
		}
	}

	logger.Info("backfill: day complete",
		"date", date.Format("2006-01-02"),
		"devices", result.Devices,
		"failed_devices", result.FailedDevices,
		"demand_events", result.DemandEvents,
		"temperature_records", result.Temperatures,
		"dry_run", e.dryRun)
	return result, nil
}

// Run walks [start, end] one UTC day at a time. A storage failure aborts the
// walk; the next invocation can resume from the failed date since day writes
// are idempotent.
func (e *Engine) Run(ctx context.Context, start, end time.Time) error {
	start = midnight(start)
	end = midnight(end)
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := e.RunDay(ctx, day); err != nil {
			return err
		}
	}
	return nil
}

func midnight(ts time.Time) time.Time {
	ts = ts.UTC()
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
}
