package tado

import (
	"encoding/json"
	"time"
)

// Device is one Tado heating zone device (TRV or thermostat) requiring its
// own cursor.
type Device struct {
	DeviceID   string `json:"device_id" yaml:"device_id"`
	Name       string `json:"name" yaml:"name"`
	DeviceType string `json:"device_type" yaml:"device_type"` // "trv", "thermostat"
	ZoneID     string `json:"zone_id" yaml:"zone_id"`
}

// StreamKey returns the cursor key for this device, stable across runs.
func (d Device) StreamKey() string {
	return d.DeviceID + ":" + d.ZoneID
}

// DemandEvent is one heating-demand interval. Events are emitted only while
// the zone is actually calling for heat.
type DemandEvent struct {
	TRVID           string    `json:"trv_id"`
	ZoneID          string    `json:"zone_id"`
	Requested       bool      `json:"requested"`
	HeatDemand      string    `json:"heat_demand"` // "LOW", "MEDIUM", "HIGH"
	Timestamp       time.Time `json:"timestamp"`
	DurationMinutes int       `json:"duration_minutes"`
}

// TemperatureRecord is one temperature sample, either measured ("inside")
// or the setpoint in force ("target"). Humidity is attached when a humidity
// sample shares the exact timestamp.
type TemperatureRecord struct {
	DeviceID    string    `json:"device_id"`
	ZoneID      string    `json:"zone_id"`
	Temperature float64   `json:"temperature"`
	Timestamp   time.Time `json:"timestamp"`
	SensorType  string    `json:"sensor_type"` // "inside" or "target"
	Humidity    *float64  `json:"humidity,omitempty"`
}

// DayReport is the raw dayReport payload for one zone and calendar date.
// Individual points and intervals are kept raw so one malformed entry can be
// skipped without rejecting the whole report.
type DayReport struct {
	CallForHeat  intervalSection `json:"callForHeat"`
	MeasuredData struct {
		InsideTemperature pointSection `json:"insideTemperature"`
		Humidity          pointSection `json:"humidity"`
	} `json:"measuredData"`
	Settings intervalSection `json:"settings"`
}

type intervalSection struct {
	DataIntervals []json.RawMessage `json:"dataIntervals"`
}

type pointSection struct {
	DataPoints []json.RawMessage `json:"dataPoints"`
}

// zone is the API shape of a zone listing entry.
type zone struct {
	ID   json.Number `json:"id"`
	Name string      `json:"name"`
	Type string      `json:"type"`
}
