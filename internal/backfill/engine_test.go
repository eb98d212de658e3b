package backfill

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/utility-ingest/internal/blobstore"
	"github.com/ignite/utility-ingest/internal/tado"
)

type fakeClient struct {
	mu       sync.Mutex
	inflight int
	peak     int
	errZones map[string]error
	reports  map[string]string // "zone|date" -> raw day report
	fetched  []string
}

func (f *fakeClient) EnumerateZones(context.Context) ([]tado.Device, error) {
	return nil, nil
}

func (f *fakeClient) GetDayReport(_ context.Context, d tado.Device, date time.Time) (*tado.DayReport, error) {
	f.mu.Lock()
	f.inflight++
	if f.inflight > f.peak {
		f.peak = f.inflight
	}
	key := d.ZoneID + "|" + date.Format("2006-01-02")
	f.fetched = append(f.fetched, key)
	f.mu.Unlock()

	time.Sleep(time.Millisecond)

	f.mu.Lock()
	f.inflight--
	f.mu.Unlock()

	if err := f.errZones[d.ZoneID]; err != nil {
		return nil, err
	}
	raw, ok := f.reports[key]
	if !ok {
		raw = "{}"
	}
	var report tado.DayReport
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func devices(n int) []tado.Device {
	out := make([]tado.Device, n)
	for i := range out {
		id := string(rune('1' + i))
		out[i] = tado.Device{DeviceID: id, ZoneID: id, DeviceType: "trv"}
	}
	return out
}

func TestRunDayWritesAllDevicePartitions(t *testing.T) {
	date := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	client := &fakeClient{reports: map[string]string{
		"1|2026-08-20": `{"callForHeat": {"dataIntervals": [
			{"value": "LOW", "from": "2026-08-20T06:00:00Z", "to": "2026-08-20T07:00:00Z"}
		]}}`,
		"2|2026-08-20": `{"measuredData": {"insideTemperature": {"dataPoints": [
			{"timestamp": "2026-08-20T06:00:00Z", "value": {"celsius": 18.2}}
		]}}}`,
	}}
	blobs := blobstore.NewMemStore()
	engine := NewEngine(blobs, client, devices(2), Options{})

	result, err := engine.RunDay(context.Background(), date)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Devices)
	assert.Zero(t, result.FailedDevices)
	assert.Equal(t, 1, result.DemandEvents)
	assert.Equal(t, 1, result.Temperatures)

	assert.Contains(t, blobs.Paths(), "demand/trv=1/date=2026-08-20/data.json")
	assert.Contains(t, blobs.Paths(), "temps/trv=2/date=2026-08-20/data.json")
}

func TestRunDayExcludesFailedDevices(t *testing.T) {
	date := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	client := &fakeClient{
		errZones: map[string]error{"2": errors.New("throttled")},
		reports: map[string]string{
			"1|2026-08-20": `{"callForHeat": {"dataIntervals": [
				{"value": "LOW", "from": "2026-08-20T06:00:00Z", "to": "2026-08-20T07:00:00Z"}
			]}}`,
		},
	}
	blobs := blobstore.NewMemStore()
	engine := NewEngine(blobs, client, devices(2), Options{})

	result, err := engine.RunDay(context.Background(), date)
	require.NoError(t, err)
	assert.Equal(t, 1, result.FailedDevices)
	assert.Equal(t, 1, result.DemandEvents)
	assert.Contains(t, blobs.Paths(), "demand/trv=1/date=2026-08-20/data.json")
	assert.NotContains(t, blobs.Paths(), "demand/trv=2/date=2026-08-20/data.json")
}

func TestRunDayBoundsConcurrency(t *testing.T) {
	date := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	client := &fakeClient{}
	engine := NewEngine(blobstore.NewMemStore(), client, devices(8), Options{MaxWorkers: 3})

	_, err := engine.RunDay(context.Background(), date)
	require.NoError(t, err)
	assert.LessOrEqual(t, client.peak, 3)
	assert.Len(t, client.fetched, 8)
}

func TestRunDayDryRunWritesNothing(t *testing.T) {
	date := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	client := &fakeClient{reports: map[string]string{
		"1|2026-08-20": `{"callForHeat": {"dataIntervals": [
			{"value": "LOW", "from": "2026-08-20T06:00:00Z", "to": "2026-08-20T07:00:00Z"}
		]}}`,
	}}
	blobs := blobstore.NewMemStore()
	engine := NewEngine(blobs, client, devices(1), Options{DryRun: true})

	result, err := engine.RunDay(context.Background(), date)
	require.NoError(t, err)
	assert.Equal(t, 1, result.DemandEvents)
	assert.Empty(t, blobs.Paths())
}

func TestRunWalksDays(t *testing.T) {
	client := &fakeClient{}
	engine := NewEngine(blobstore.NewMemStore(), client, devices(1), Options{})

	start := time.Date(2026, 8, 18, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	require.NoError(t, engine.Run(context.Background(), start, end))

	assert.ElementsMatch(t, []string{"1|2026-08-18", "1|2026-08-19", "1|2026-08-20"}, client.fetched)
}
