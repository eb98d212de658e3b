package ingest

import (
	"fmt"
	"time"

	"github.com/ignite/utility-ingest/internal/octopus"
	"github.com/ignite/utility-ingest/internal/partition"
	"github.com/ignite/utility-ingest/internal/tado"
)

// Artifact path schemes are load-bearing: downstream query engines prune on
// the key=value path segments, and changing a scheme orphans history.

// ConsumptionKeys places a meter's intervals at
// kind=<kind>/mpan_mprn=<id>/serial=<serial>/date=<YYYY-MM-DD>/data.json.
func ConsumptionKeys(m octopus.Meter) partition.Keys[octopus.ConsumptionRecord] {
	return partition.Keys[octopus.ConsumptionRecord]{
		Dedup: func(r octopus.ConsumptionRecord) string { return r.IntervalStart.UTC().Format(time.RFC3339) },
		Date:  func(r octopus.ConsumptionRecord) time.Time { return r.IntervalStart },
		Path: func(date string) string {
			return fmt.Sprintf("kind=%s/mpan_mprn=%s/serial=%s/date=%s/data.json",
				m.Kind, m.MPANOrMPRN, m.Serial, date)
		},
	}
}

// RateKeys places a tariff's price bands at
// rates/energy=<e>/product=<p>/tariff=<t>/date=<YYYY-MM-DD>/data.json.
func RateKeys(t octopus.Tariff, energy string) partition.Keys[octopus.UnitRateRecord] {
	return partition.Keys[octopus.UnitRateRecord]{
		Dedup: func(r octopus.UnitRateRecord) string { return r.ValidFrom.UTC().Format(time.RFC3339) },
		Date:  func(r octopus.UnitRateRecord) time.Time { return r.ValidFrom },
		Path: func(date string) string {
			return fmt.Sprintf("rates/energy=%s/product=%s/tariff=%s/date=%s/data.json",
				energy, t.ProductCode, t.TariffCode, date)
		},
	}
}

// CostedKeys places rate-joined consumption at
// consumption_cost/kind=<kind>/mpan_mprn=<id>/serial=<serial>/date=<YYYY-MM-DD>/data.json.
func CostedKeys(m octopus.Meter) partition.Keys[octopus.CostedRecord] {
	return partition.Keys[octopus.CostedRecord]{
		Dedup: func(r octopus.CostedRecord) string { return r.IntervalStart.UTC().Format(time.RFC3339) },
		Date:  func(r octopus.CostedRecord) time.Time { return r.IntervalStart },
		Path: func(date string) string {
			return fmt.Sprintf("consumption_cost/kind=%s/mpan_mprn=%s/serial=%s/date=%s/data.json",
				m.Kind, m.MPANOrMPRN, m.Serial, date)
		},
	}
}

// DemandKeys places heating demand events at
// demand/trv=<id>/date=<YYYY-MM-DD>/data.json.
func DemandKeys(d tado.Device) partition.Keys[tado.DemandEvent] {
	return partition.Keys[tado.DemandEvent]{
		Dedup: func(e tado.DemandEvent) string { return e.Timestamp.UTC().Format(time.RFC3339) },
		Date:  func(e tado.DemandEvent) time.Time { return e.Timestamp },
		Path: func(date string) string {
			return fmt.Sprintf("demand/trv=%s/date=%s/data.json", d.DeviceID, date)
		},
	}
}

// TemperatureKeys places temperature records at
// temps/trv=<id>/date=<YYYY-MM-DD>/data.json. Inside and target samples can
// share a timestamp, so the sensor type is part of the natural key.
func TemperatureKeys(d tado.Device) partition.Keys[tado.TemperatureRecord] {
	return partition.Keys[tado.TemperatureRecord]{
		Dedup: func(t tado.TemperatureRecord) string {
			return t.SensorType + "|" + t.Timestamp.UTC().Format(time.RFC3339)
		},
		Date: func(t tado.TemperatureRecord) time.Time { return t.Timestamp },
		Path: func(date string) string {
			return fmt.Sprintf("temps/trv=%s/date=%s/data.json", d.DeviceID, date)
		},
	}
}
