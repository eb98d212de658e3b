package octopus

import (
	"sort"
	"time"
)

// JoinRates joins unit rates to consumption intervals, choosing for each
// interval the rate band where IntervalStart falls in [ValidFrom, ValidTo)
// (nil ValidTo is open-ended). Intervals with no covering band are dropped.
// The rate including VAT is preferred; bands priced only excluding VAT fall
// back to that value.
func JoinRates(consumption []ConsumptionRecord, rates []UnitRateRecord) []CostedRecord {
	if len(consumption) == 0 || len(rates) == 0 {
		return nil
	}

	sorted := make([]UnitRateRecord, len(rates))
	copy(sorted, rates)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ValidFrom.Before(sorted[j].ValidFrom)
	})

	costed := make([]CostedRecord, 0, len(consumption))
	for _, rec := range consumption {
		// Rightmost band with ValidFrom <= IntervalStart
		idx := sort.Search(len(sorted), func(i int) bool {
			return sorted[i].ValidFrom.After(rec.IntervalStart)
		}) - 1
		if idx < 0 {
			continue
		}
		band := sorted[idx]
		if band.ValidTo != nil && !rec.IntervalStart.Before(*band.ValidTo) {
			continue
		}
		rate := band.ValueIncVAT
		if rate == 0 && band.ValueExcVAT != 0 {
			rate = band.ValueExcVAT
		}
		costed = append(costed, CostedRecord{
			ConsumptionRecord: rec,
			UnitRate:          rate,
			Cost:              rec.Consumption * rate,
		})
	}
	return costed
}

// TotalCost sums the cost of all joined records.
func TotalCost(costed []CostedRecord) float64 {
	var total float64
	for _, rec := range costed {
		total += rec.Cost
	}
	return total
}

// DetectMissingIntervals reports (expected, actual, missing) half-hour slots
// over the span covered by the records. Fewer than two records yields zero
// missing: there is no baseline to measure against.
func DetectMissingIntervals(records []ConsumptionRecord) (expected, actual, missing int) {
	if len(records) < 2 {
		return len(records), len(records), 0
	}

	ends := make([]time.Time, len(records))
	for i, rec := range records {
		ends[i] = rec.IntervalEnd
	}
	sort.Slice(ends, func(i, j int) bool { return ends[i].Before(ends[j]) })

	start := ends[0].Add(-30 * time.Minute)
	end := ends[len(ends)-1]
	expected = int(end.Sub(start).Minutes() / 30)
	actual = len(records)
	missing = expected - actual
	if missing < 0 {
		missing = 0
	}
	return expected, actual, missing
}
