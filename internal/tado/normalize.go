package tado

import (
	"encoding/json"
	"time"

	"github.com/ignite/utility-ingest/internal/pkg/logger"
)

type demandInterval struct {
	Value string `json:"value"`
	From  string `json:"from"`
	To    string `json:"to"`
}

type temperaturePoint struct {
	Timestamp string `json:"timestamp"`
	Value     struct {
		Celsius *float64 `json:"celsius"`
	} `json:"value"`
}

type humidityPoint struct {
	Timestamp string   `json:"timestamp"`
	Value     *float64 `json:"value"`
}

type settingInterval struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Value struct {
		Power       string `json:"power"`
		Temperature *struct {
			Celsius *float64 `json:"celsius"`
		} `json:"temperature"`
	} `json:"value"`
}

// ParseDayReport converts a raw day report into demand events and temperature
// records for the device. Malformed entries are skipped, never fatal: one bad
// point must not abort the day.
//
// Demand events cover only intervals where the zone called for heat (value
// other than "NONE"). Inside temperatures carry the humidity sample sharing
// the exact timestamp when one exists. Target temperatures come from settings
// intervals with heating power "ON", timestamped at the interval start.
func ParseDayReport(report *DayReport, d Device) ([]DemandEvent, []TemperatureRecord) {
	if report == nil {
		return nil, nil
	}
	skipped := 0

	var demand []DemandEvent
	for _, raw := range report.CallForHeat.DataIntervals {
		var iv demandInterval
		if err := json.Unmarshal(raw, &iv); err != nil {
			skipped++
			continue
		}
		if iv.Value == "" || iv.Value == "NONE" {
			continue
		}
		from, err := parseTimestamp(iv.From)
		if err != nil {
			skipped++
			continue
		}
		to, err := parseTimestamp(iv.To)
		if err != nil {
			skipped++
			continue
		}
		demand = append(demand, DemandEvent{
			TRVID:           d.DeviceID,
			ZoneID:          d.ZoneID,
			Requested:       true,
			HeatDemand:      iv.Value,
			Timestamp:       from,
			DurationMinutes: int(to.Sub(from).Minutes()),
		})
	}

	// Humidity is sampled on the same cadence as inside temperature, so an
	// exact timestamp match is the join key.
	humidity := make(map[time.Time]float64)
	for _, raw := range report.MeasuredData.Humidity.DataPoints {
		var pt humidityPoint
		if err := json.Unmarshal(raw, &pt); err != nil || pt.Value == nil {
			continue
		}
		ts, err := parseTimestamp(pt.Timestamp)
		if err != nil {
			continue
		}
		humidity[ts] = *pt.Value
	}

	var temps []TemperatureRecord
	for _, raw := range report.MeasuredData.InsideTemperature.DataPoints {
		var pt temperaturePoint
		if err := json.Unmarshal(raw, &pt); err != nil || pt.Value.Celsius == nil {
			skipped++
			continue
		}
		ts, err := parseTimestamp(pt.Timestamp)
		if err != nil {
			skipped++
			continue
		}
		rec := TemperatureRecord{
			DeviceID:    d.DeviceID,
			ZoneID:      d.ZoneID,
			Temperature: *pt.Value.Celsius,
			Timestamp:   ts,
			SensorType:  "inside",
		}
		if h, ok := humidity[ts]; ok {
			rec.Humidity = &h
		}
		temps = append(temps, rec)
	}

	for _, raw := range report.Settings.DataIntervals {
		var iv settingInterval
		if err := json.Unmarshal(raw, &iv); err != nil {
			skipped++
			continue
		}
		if iv.Value.Power != "ON" || iv.Value.Temperature == nil || iv.Value.Temperature.Celsius == nil {
			continue
		}
		ts, err := parseTimestamp(iv.From)
		if err != nil {
			skipped++
			continue
		}
		temps = append(temps, TemperatureRecord{
			DeviceID:    d.DeviceID,
			ZoneID:      d.ZoneID,
			Temperature: *iv.Value.Temperature.Celsius,
			Timestamp:   ts,
			SensorType:  "target",
		})
	}

	if skipped > 0 {
		logger.Warn("tado: skipped malformed day report entries",
			"stream", d.StreamKey(), "skipped", skipped)
	}
	return demand, temps
}

// parseTimestamp accepts Z-suffixed, explicit-offset, and naive (assumed UTC)
// timestamp strings and normalizes to UTC.
func parseTimestamp(raw string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.UTC(), nil
	}
	return time.ParseInLocation("2006-01-02T15:04:05", raw, time.UTC)
}
