package octopus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{
		APIKey:        "sk_test_key",
		AccountNumber: "A-12345",
		BaseURL:       server.URL,
	})
}

func TestGetConsumptionWalksAllPages(t *testing.T) {
	meter := Meter{Kind: "electricity", MPANOrMPRN: "1234567890", Serial: "21E111"}
	var sawAuth bool

	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _, ok := r.BasicAuth()
		sawAuth = ok && user == "sk_test_key"

		assert.Equal(t, "/electricity-meter-points/1234567890/meters/21E111/consumption/", r.URL.Path)
		assert.Equal(t, "period", r.URL.Query().Get("order_by"))
		assert.Equal(t, "250", r.URL.Query().Get("page_size"))

		page := r.URL.Query().Get("page")
		var next *string
		var results []map[string]any
		switch page {
		case "1":
			url := "next"
			next = &url
			results = []map[string]any{{"interval_start": "2026-08-20T10:00:00Z", "interval_end": "2026-08-20T10:30:00Z", "consumption": 0.5}}
		default:
			results = []map[string]any{{"interval_start": "2026-08-20T10:30:00Z", "interval_end": "2026-08-20T11:00:00Z", "consumption": 0.7}}
		}
		json.NewEncoder(w).Encode(map[string]any{"count": 2, "next": next, "results": results})
	}))

	start := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	raw, err := client.GetConsumption(context.Background(), meter, start, start.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Len(t, raw, 2)
	assert.True(t, sawAuth)
}

func TestGetConsumptionErrorStatus(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"Invalid API key"}`, http.StatusUnauthorized)
	}))

	meter := Meter{Kind: "gas", MPANOrMPRN: "987", Serial: "G1"}
	_, err := client.GetConsumption(context.Background(), meter, time.Now().Add(-time.Hour), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestGetConsumptionEmptyBody(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	meter := Meter{Kind: "gas", MPANOrMPRN: "987", Serial: "G1"}
	_, err := client.GetConsumption(context.Background(), meter, time.Now().Add(-time.Hour), time.Now())
	assert.Error(t, err)
}

func TestGetUnitRatesSelectsEndpointByKind(t *testing.T) {
	var paths []string
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{"count": 0, "next": nil, "results": []map[string]any{}})
	}))

	ctx := context.Background()
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	_, err := client.GetUnitRates(ctx, "AGILE-24-09-01", "E-1R-AGILE-24-09-01-A", start, start.AddDate(0, 0, 1))
	require.NoError(t, err)
	_, err = client.GetUnitRates(ctx, "GAS-24-09-01", "G-1R-GAS-24-09-01-A", start, start.AddDate(0, 0, 1))
	require.NoError(t, err)

	require.Len(t, paths, 2)
	assert.Equal(t, "/products/AGILE-24-09-01/electricity-tariffs/E-1R-AGILE-24-09-01-A/standard-unit-rates/", paths[0])
	assert.Equal(t, "/products/GAS-24-09-01/gas-tariffs/G-1R-GAS-24-09-01-A/standard-unit-rates/", paths[1])
}

func TestParseTariffCode(t *testing.T) {
	tests := []struct {
		code                            string
		kind, register, product, region string
	}{
		{"E-1R-AGILE-24-09-01-A", "E", "1R", "AGILE-24-09-01", "A"},
		{"G-1R-VAR-22-11-01-C", "G", "1R", "VAR-22-11-01", "C"},
		{"E-2R-FLUX-IMPORT-23-02-14-B", "E", "2R", "FLUX-IMPORT-23-02-14", "B"},
	}
	for _, tc := range tests {
		kind, register, product, region := ParseTariffCode(tc.code)
		assert.Equal(t, tc.kind, kind, tc.code)
		assert.Equal(t, tc.register, register, tc.code)
		assert.Equal(t, tc.product, product, tc.code)
		assert.Equal(t, tc.region, region, tc.code)
	}
}

func TestDiscoverActiveTariffs(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/accounts/A-12345/", r.URL.Path)
		fmt.Fprint(w, `{
			"number": "A-12345",
			"electricity_meter_points": [{
				"mpan": "1234567890",
				"meters": [{"serial_number": "21E111"}],
				"agreements": [
					{"tariff_code": "E-1R-OLD-20-01-01-A", "valid_from": "2020-01-01T00:00:00Z", "valid_to": "2024-09-01T00:00:00Z"},
					{"tariff_code": "E-1R-AGILE-24-09-01-A", "valid_from": "2024-09-01T00:00:00Z", "valid_to": ""}
				]
			}],
			"gas_meter_points": [{
				"mprn": "555",
				"meters": [{"serial_number": "G1"}],
				"agreements": [
					{"tariff_code": "G-1R-VAR-22-11-01-A", "valid_from": "2022-11-01T00:00:00Z", "valid_to": ""}
				]
			}]
		}`)
	}))

	asOf := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	tariffs, err := client.DiscoverActiveTariffs(context.Background(), asOf)
	require.NoError(t, err)

	require.Contains(t, tariffs, "electricity")
	assert.Equal(t, "E-1R-AGILE-24-09-01-A", tariffs["electricity"].TariffCode)
	assert.Equal(t, "AGILE-24-09-01", tariffs["electricity"].ProductCode)

	require.Contains(t, tariffs, "gas")
	assert.Equal(t, "G-1R-VAR-22-11-01-A", tariffs["gas"].TariffCode)
}

func TestListAllMeters(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"number": "A-12345",
			"electricity_meter_points": [{"mpan": "1234567890", "meters": [{"serial_number": "21E111"}, {"serial_number": ""}]}],
			"gas_meter_points": [{"mprn": "555", "meters": [{"serial_number": "G1"}]}]
		}`)
	}))

	meters, err := client.ListAllMeters(context.Background())
	require.NoError(t, err)
	require.Len(t, meters, 2)
	assert.Equal(t, Meter{Kind: "electricity", MPANOrMPRN: "1234567890", Serial: "21E111"}, meters[0])
	assert.Equal(t, Meter{Kind: "gas", MPANOrMPRN: "555", Serial: "G1"}, meters[1])
}
