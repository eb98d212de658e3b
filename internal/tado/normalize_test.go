package tado

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDevice = Device{DeviceID: "3", Name: "Living Room", DeviceType: "trv", ZoneID: "3"}

func dayReport(t *testing.T, raw string) *DayReport {
	t.Helper()
	var report DayReport
	require.NoError(t, json.Unmarshal([]byte(raw), &report))
	return &report
}

func TestParseDayReportDemand(t *testing.T) {
	report := dayReport(t, `{
		"callForHeat": {"dataIntervals": [
			{"value": "NONE", "from": "2026-08-20T00:00:00Z", "to": "2026-08-20T06:00:00Z"},
			{"value": "LOW", "from": "2026-08-20T06:00:00Z", "to": "2026-08-20T06:45:00Z"},
			{"value": "HIGH", "from": "2026-08-20T06:45:00Z", "to": "2026-08-20T07:00:00Z"}
		]}
	}`)

	demand, temps := ParseDayReport(report, testDevice)
	assert.Empty(t, temps)
	require.Len(t, demand, 2) // the NONE interval is suppressed

	assert.Equal(t, "LOW", demand[0].HeatDemand)
	assert.True(t, demand[0].Requested)
	assert.Equal(t, time.Date(2026, 8, 20, 6, 0, 0, 0, time.UTC), demand[0].Timestamp)
	assert.Equal(t, 45, demand[0].DurationMinutes)

	assert.Equal(t, "HIGH", demand[1].HeatDemand)
	assert.Equal(t, 15, demand[1].DurationMinutes)
	assert.Equal(t, "3", demand[1].TRVID)
}

func TestParseDayReportHumidityMerge(t *testing.T) {
	report := dayReport(t, `{
		"measuredData": {
			"insideTemperature": {"dataPoints": [
				{"timestamp": "2026-08-20T06:00:00Z", "value": {"celsius": 19.5}},
				{"timestamp": "2026-08-20T06:15:00Z", "value": {"celsius": 19.8}}
			]},
			"humidity": {"dataPoints": [
				{"timestamp": "2026-08-20T06:00:00Z", "value": 0.55}
			]}
		}
	}`)

	_, temps := ParseDayReport(report, testDevice)
	require.Len(t, temps, 2)

	assert.Equal(t, "inside", temps[0].SensorType)
	assert.Equal(t, 19.5, temps[0].Temperature)
	require.NotNil(t, temps[0].Humidity) // exact timestamp match
	assert.Equal(t, 0.55, *temps[0].Humidity)

	assert.Nil(t, temps[1].Humidity) // no humidity sample at 06:15
}

func TestParseDayReportTargetOnlyWhenOn(t *testing.T) {
	report := dayReport(t, `{
		"settings": {"dataIntervals": [
			{"from": "2026-08-20T00:00:00Z", "to": "2026-08-20T06:00:00Z", "value": {"power": "OFF"}},
			{"from": "2026-08-20T06:00:00Z", "to": "2026-08-20T22:00:00Z", "value": {"power": "ON", "temperature": {"celsius": 21.0}}}
		]}
	}`)

	_, temps := ParseDayReport(report, testDevice)
	require.Len(t, temps, 1)
	assert.Equal(t, "target", temps[0].SensorType)
	assert.Equal(t, 21.0, temps[0].Temperature)
	assert.Equal(t, time.Date(2026, 8, 20, 6, 0, 0, 0, time.UTC), temps[0].Timestamp)
}

func TestParseDayReportSkipsMalformedEntries(t *testing.T) {
	report := dayReport(t, `{
		"callForHeat": {"dataIntervals": [
			{"value": "LOW", "from": "not a time", "to": "2026-08-20T07:00:00Z"},
			{"value": "LOW", "from": "2026-08-20T06:00:00Z", "to": "2026-08-20T07:00:00Z"}
		]},
		"measuredData": {
			"insideTemperature": {"dataPoints": [
				{"timestamp": "2026-08-20T06:00:00Z", "value": {}},
				{"timestamp": "2026-08-20T06:15:00Z", "value": {"celsius": 20.1}}
			]}
		}
	}`)

	demand, temps := ParseDayReport(report, testDevice)
	require.Len(t, demand, 1)
	require.Len(t, temps, 1)
	assert.Equal(t, 20.1, temps[0].Temperature)
}

func TestParseDayReportNil(t *testing.T) {
	demand, temps := ParseDayReport(nil, testDevice)
	assert.Nil(t, demand)
	assert.Nil(t, temps)
}
