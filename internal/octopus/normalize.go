package octopus

import (
	"fmt"
	"time"

	"github.com/ignite/utility-ingest/internal/pkg/logger"
)

// parseTimestamp accepts Z-suffixed, explicit-offset, and naive (assumed UTC)
// timestamp strings and normalizes to UTC.
func parseTimestamp(raw string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.UTC(), nil
	}
	if ts, err := time.ParseInLocation("2006-01-02T15:04:05", raw, time.UTC); err == nil {
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

func stringField(rec map[string]any, key string) (string, bool) {
	v, ok := rec[key].(string)
	return v, ok && v != ""
}

func numberField(rec map[string]any, key string) (float64, bool) {
	v, ok := rec[key].(float64)
	return v, ok
}

// NormalizeConsumption converts raw consumption intervals into canonical
// records tagged with the meter identity. Malformed entries (missing or
// unparsable timestamps, non-numeric consumption) are skipped, never fatal:
// one bad record must not abort the stream.
func NormalizeConsumption(raw []map[string]any, m Meter) []ConsumptionRecord {
	records := make([]ConsumptionRecord, 0, len(raw))
	skipped := 0
	for _, rec := range raw {
		startStr, ok := stringField(rec, "interval_start")
		if !ok {
			skipped++
			continue
		}
		endStr, ok := stringField(rec, "interval_end")
		if !ok {
			skipped++
			continue
		}
		value, ok := numberField(rec, "consumption")
		if !ok {
			skipped++
			continue
		}
		start, err := parseTimestamp(startStr)
		if err != nil {
			skipped++
			continue
		}
		end, err := parseTimestamp(endStr)
		if err != nil {
			skipped++
			continue
		}
		records = append(records, ConsumptionRecord{
			IntervalStart: start,
			IntervalEnd:   end,
			Consumption:   value,
			MPANOrMPRN:    m.MPANOrMPRN,
			Serial:        m.Serial,
			Kind:          m.Kind,
		})
	}
	if skipped > 0 {
		logger.Warn("octopus: skipped malformed consumption records",
			"stream", m.StreamKey(), "skipped", skipped)
	}
	return records
}

// NormalizeUnitRates converts raw unit-rate entries into canonical records.
// A missing or empty valid_to marks an open-ended band. Entries without a
// parsable valid_from or any price are skipped.
func NormalizeUnitRates(raw []map[string]any, productCode, tariffCode, energy string) []UnitRateRecord {
	records := make([]UnitRateRecord, 0, len(raw))
	skipped := 0
	for _, rec := range raw {
		fromStr, ok := stringField(rec, "valid_from")
		if !ok {
			skipped++
			continue
		}
		validFrom, err := parseTimestamp(fromStr)
		if err != nil {
			skipped++
			continue
		}

		var validTo *time.Time
		if toStr, ok := stringField(rec, "valid_to"); ok {
			vt, err := parseTimestamp(toStr)
			if err != nil {
				skipped++
				continue
			}
			validTo = &vt
		}

		incVAT, hasInc := numberField(rec, "value_inc_vat")
		excVAT, hasExc := numberField(rec, "value_exc_vat")
		if !hasInc && !hasExc {
			skipped++
			continue
		}

		records = append(records, UnitRateRecord{
			ValidFrom:   validFrom,
			ValidTo:     validTo,
			ValueIncVAT: incVAT,
			ValueExcVAT: excVAT,
			ProductCode: productCode,
			TariffCode:  tariffCode,
			Energy:      energy,
		})
	}
	if skipped > 0 {
		logger.Warn("octopus: skipped malformed unit-rate records",
			"tariff", tariffCode, "skipped", skipped)
	}
	return records
}
