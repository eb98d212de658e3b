package octopus

import "time"

// Meter identifies one electricity or gas meter requiring its own cursor.
type Meter struct {
	Kind       string `json:"kind" yaml:"kind"` // "electricity" or "gas"
	MPANOrMPRN string `json:"mpan_mprn" yaml:"mpan_mprn"`
	Serial     string `json:"serial" yaml:"serial"`
	TariffCode string `json:"tariff_code,omitempty" yaml:"tariff_code,omitempty"`
}

// StreamKey returns the cursor key for this meter, stable across runs.
func (m Meter) StreamKey() string {
	return m.MPANOrMPRN + ":" + m.Serial
}

// pagedResponse is the envelope of every list endpoint: results plus a next
// link when further pages exist.
type pagedResponse struct {
	Count    int              `json:"count"`
	Next     *string          `json:"next"`
	Previous *string          `json:"previous"`
	Results  []map[string]any `json:"results"`
}

// ConsumptionRecord is one half-hour (or vendor-defined) consumption bucket,
// timestamps normalized to UTC. IntervalStart is the dedup and ordering key.
type ConsumptionRecord struct {
	IntervalStart time.Time `json:"interval_start"`
	IntervalEnd   time.Time `json:"interval_end"`
	Consumption   float64   `json:"consumption"`
	MPANOrMPRN    string    `json:"mpan_mprn"`
	Serial        string    `json:"serial"`
	Kind          string    `json:"kind"`
}

// UnitRateRecord is one tariff price band. A nil ValidTo means the band is
// open-ended.
type UnitRateRecord struct {
	ValidFrom   time.Time  `json:"valid_from"`
	ValidTo     *time.Time `json:"valid_to"`
	ValueIncVAT float64    `json:"value_inc_vat"`
	ValueExcVAT float64    `json:"value_exc_vat"`
	ProductCode string     `json:"product_code"`
	TariffCode  string     `json:"tariff_code"`
	Energy      string     `json:"energy"` // "electricity" or "gas"
}

// CostedRecord is a consumption interval joined to the unit rate in force at
// its start, with the resulting cost.
type CostedRecord struct {
	ConsumptionRecord
	UnitRate float64 `json:"unit_rate"`
	Cost     float64 `json:"cost"`
}

// Account is the subset of the account payload used for meter and tariff
// discovery.
type Account struct {
	Number                 string       `json:"number"`
	ElectricityMeterPoints []MeterPoint `json:"electricity_meter_points"`
	GasMeterPoints         []MeterPoint `json:"gas_meter_points"`
}

// MeterPoint is one supply point with its meters and tariff agreements.
type MeterPoint struct {
	MPAN       string      `json:"mpan"`
	MPRN       string      `json:"mprn"`
	Meters     []MeterInfo `json:"meters"`
	Agreements []Agreement `json:"agreements"`
}

// MeterInfo is one physical meter at a supply point.
type MeterInfo struct {
	SerialNumber string `json:"serial_number"`
}

// Agreement is one tariff agreement window on a meter point.
type Agreement struct {
	TariffCode string `json:"tariff_code"`
	ValidFrom  string `json:"valid_from"`
	ValidTo    string `json:"valid_to"`
}

// Tariff is a discovered active (product, tariff) pair for one energy kind.
type Tariff struct {
	ProductCode string
	TariffCode  string
}
