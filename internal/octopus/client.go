// Package octopus fetches consumption intervals and tariff unit rates from
// the Octopus Energy REST API and normalizes them into canonical records.
package octopus

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ignite/utility-ingest/internal/pkg/httpretry"
	"github.com/ignite/utility-ingest/internal/pkg/logger"
)

// DefaultBaseURL is the official Octopus Energy API base.
const DefaultBaseURL = "https://api.octopus.energy/v1"

const pageSize = 250

// Client is an Octopus Energy API client. The API authenticates with HTTP
// basic auth using the account API key as username and an empty password.
type Client struct {
	baseURL       string
	apiKey        string
	accountNumber string
	httpClient    httpretry.HTTPDoer
}

// Config carries the client settings; the zero BaseURL falls back to the
// official API.
type Config struct {
	APIKey        string
	AccountNumber string
	BaseURL       string
	Timeout       time.Duration
}

// NewClient creates a new Octopus Energy API client.
func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:       baseURL,
		apiKey:        cfg.APIKey,
		accountNumber: cfg.AccountNumber,
		httpClient:    httpretry.NewRetryClient(&http.Client{Timeout: timeout}, 3),
	}
}

// fmtTime formats a timestamp the way the API expects: UTC with a Z suffix.
func fmtTime(ts time.Time) string {
	return ts.UTC().Format("2006-01-02T15:04:05Z")
}

// doRequest makes a GET request and returns the raw body. Non-2xx statuses,
// empty bodies, and transport failures are errors; retries for transient
// failures happen inside the HTTP client.
func (c *Client) doRequest(ctx context.Context, path string, params url.Values) ([]byte, error) {
	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth(c.apiKey, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("empty response body for %s", path)
	}

	return body, nil
}

// getPaged fetches one page and decodes the standard list envelope.
func (c *Client) getPaged(ctx context.Context, path string, params url.Values) (*pagedResponse, error) {
	body, err := c.doRequest(ctx, path, params)
	if err != nil {
		return nil, err
	}
	var page pagedResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("parsing response for %s: %w", path, err)
	}
	return &page, nil
}

// paginate walks all pages of a list endpoint, accumulating results. The API
// signals the final page with a null next link.
func (c *Client) paginate(ctx context.Context, path string, params url.Values) ([]map[string]any, error) {
	var results []map[string]any
	for page := 1; ; page++ {
		pageParams := url.Values{}
		for k, v := range params {
			pageParams[k] = v
		}
		pageParams.Set("page", strconv.Itoa(page))

		data, err := c.getPaged(ctx, path, pageParams)
		if err != nil {
			return nil, fmt.Errorf("fetching page %d: %w", page, err)
		}
		results = append(results, data.Results...)

		if page == 1 || page%25 == 0 {
			logger.Debug("octopus: page fetched", "path", path, "page", page, "cumulative", len(results))
		}
		if data.Next == nil || *data.Next == "" {
			break
		}
	}
	return results, nil
}

func consumptionPath(m Meter) string {
	if m.Kind == "electricity" {
		return fmt.Sprintf("/electricity-meter-points/%s/meters/%s/consumption/", m.MPANOrMPRN, m.Serial)
	}
	return fmt.Sprintf("/gas-meter-points/%s/meters/%s/consumption/", m.MPANOrMPRN, m.Serial)
}

// GetConsumption fetches raw consumption intervals for a meter over
// [start, end), ascending, walking all pages.
func (c *Client) GetConsumption(ctx context.Context, m Meter, start, end time.Time) ([]map[string]any, error) {
	params := url.Values{}
	params.Set("period_from", fmtTime(start))
	params.Set("period_to", fmtTime(end))
	params.Set("order_by", "period") // ascending, earliest first
	params.Set("page_size", strconv.Itoa(pageSize))

	records, err := c.paginate(ctx, consumptionPath(m), params)
	if err != nil {
		return nil, fmt.Errorf("fetching consumption for %s: %w", m.StreamKey(), err)
	}
	return records, nil
}

// GetUnitRates fetches raw standard unit rates for a product and tariff over
// [start, end). The tariff code determines the electricity vs gas endpoint.
func (c *Client) GetUnitRates(ctx context.Context, productCode, tariffCode string, start, end time.Time) ([]map[string]any, error) {
	var path string
	if strings.HasPrefix(tariffCode, "E-") || strings.Contains(tariffCode, "-E-") {
		path = fmt.Sprintf("/products/%s/electricity-tariffs/%s/standard-unit-rates/", productCode, tariffCode)
	} else {
		path = fmt.Sprintf("/products/%s/gas-tariffs/%s/standard-unit-rates/", productCode, tariffCode)
	}

	params := url.Values{}
	params.Set("period_from", fmtTime(start))
	params.Set("period_to", fmtTime(end))
	params.Set("order_by", "period")
	params.Set("page_size", strconv.Itoa(pageSize))

	records, err := c.paginate(ctx, path, params)
	if err != nil {
		return nil, fmt.Errorf("fetching unit rates for %s/%s: %w", productCode, tariffCode, err)
	}
	return records, nil
}

// GetAccount fetches the full account payload including meter points and
// tariff agreements.
func (c *Client) GetAccount(ctx context.Context) (*Account, error) {
	body, err := c.doRequest(ctx, fmt.Sprintf("/accounts/%s/", c.accountNumber), nil)
	if err != nil {
		return nil, fmt.Errorf("fetching account: %w", err)
	}
	var acct Account
	if err := json.Unmarshal(body, &acct); err != nil {
		return nil, fmt.Errorf("parsing account: %w", err)
	}
	return &acct, nil
}

// GetLatestInterval returns the most recent raw interval for a meter, or nil
// when the meter has no data. Cheap single-record query.
func (c *Client) GetLatestInterval(ctx context.Context, m Meter) (map[string]any, error) {
	params := url.Values{}
	params.Set("order_by", "-period")
	params.Set("page_size", "1")

	data, err := c.getPaged(ctx, consumptionPath(m), params)
	if err != nil {
		return nil, fmt.Errorf("fetching latest interval for %s: %w", m.StreamKey(), err)
	}
	if len(data.Results) == 0 {
		return nil, nil
	}
	return data.Results[0], nil
}

// FindEarliestInterval returns the earliest raw interval for a meter by
// issuing a single wide ascending query from the floor date. The API defaults
// to only the last 7 days when no period is supplied, so the explicit
// far-past period_from is required to discover true earliest data.
func (c *Client) FindEarliestInterval(ctx context.Context, m Meter, floor time.Time) (map[string]any, error) {
	params := url.Values{}
	params.Set("period_from", fmtTime(floor))
	params.Set("period_to", fmtTime(time.Now().UTC()))
	params.Set("order_by", "period")
	params.Set("page_size", "1")

	data, err := c.getPaged(ctx, consumptionPath(m), params)
	if err != nil {
		return nil, fmt.Errorf("fetching earliest interval for %s: %w", m.StreamKey(), err)
	}
	if len(data.Results) == 0 {
		return nil, nil
	}
	return data.Results[0], nil
}

// ParseTariffCode splits a tariff code into (kind, register, productCode,
// region). Examples:
//
//	E-1R-AGILE-24-09-01-A -> ("E", "1R", "AGILE-24-09-01", "A")
//	G-1R-GAS-24-09-01-A   -> ("G", "1R", "GAS-24-09-01", "A")
//
// A trailing single-character segment is treated as the region; everything
// between the register and region is the product code.
func ParseTariffCode(tariffCode string) (kind, register, productCode, region string) {
	parts := strings.Split(tariffCode, "-")
	if len(parts) < 3 {
		if len(parts) > 0 && parts[0] != "" {
			kind = parts[0][:1]
		}
		return kind, "", "", ""
	}
	kind = parts[0][:1]
	register = parts[1]
	core := parts[2:]
	if last := parts[len(parts)-1]; len(last) == 1 {
		region = last
		core = parts[2 : len(parts)-1]
	}
	productCode = strings.Join(core, "-")
	return kind, register, productCode, region
}

// DiscoverActiveTariffs returns the active (product, tariff) pair per energy
// kind at the given instant, choosing the agreement with the latest
// valid_from where valid_from <= asOf < valid_to (open-ended valid_to wins).
func (c *Client) DiscoverActiveTariffs(ctx context.Context, asOf time.Time) (map[string]Tariff, error) {
	acct, err := c.GetAccount(ctx)
	if err != nil {
		return nil, err
	}

	result := make(map[string]Tariff)

	pick := func(agreements []Agreement, kindKey string) {
		var chosen *Tariff
		var chosenStart time.Time
		for _, ag := range agreements {
			if ag.TariffCode == "" {
				continue
			}
			validFrom, err := parseTimestamp(ag.ValidFrom)
			if err != nil {
				continue
			}
			var validTo *time.Time
			if ag.ValidTo != "" {
				vt, err := parseTimestamp(ag.ValidTo)
				if err != nil {
					continue
				}
				validTo = &vt
			}
			if validFrom.After(asOf) || (validTo != nil && !asOf.Before(*validTo)) {
				continue
			}
			if chosen != nil && !validFrom.After(chosenStart) {
				continue
			}
			_, _, productCode, _ := ParseTariffCode(ag.TariffCode)
			if productCode == "" {
				continue
			}
			chosen = &Tariff{ProductCode: productCode, TariffCode: ag.TariffCode}
			chosenStart = validFrom
		}
		if chosen != nil {
			result[kindKey] = *chosen
		}
	}

	// The first meter point with a valid agreement decides the tariff for
	// the whole kind.
	for _, emp := range acct.ElectricityMeterPoints {
		pick(emp.Agreements, "electricity")
		if _, ok := result["electricity"]; ok {
			break
		}
	}
	for _, gmp := range acct.GasMeterPoints {
		pick(gmp.Agreements, "gas")
		if _, ok := result["gas"]; ok {
			break
		}
	}

	return result, nil
}

// ListAllMeters returns every meter on the account, each tagged with its
// energy kind.
func (c *Client) ListAllMeters(ctx context.Context) ([]Meter, error) {
	acct, err := c.GetAccount(ctx)
	if err != nil {
		return nil, err
	}

	var meters []Meter
	for _, emp := range acct.ElectricityMeterPoints {
		for _, m := range emp.Meters {
			if emp.MPAN != "" && m.SerialNumber != "" {
				meters = append(meters, Meter{Kind: "electricity", MPANOrMPRN: emp.MPAN, Serial: m.SerialNumber})
			}
		}
	}
	for _, gmp := range acct.GasMeterPoints {
		for _, m := range gmp.Meters {
			if gmp.MPRN != "" && m.SerialNumber != "" {
				meters = append(meters, Meter{Kind: "gas", MPANOrMPRN: gmp.MPRN, Serial: m.SerialNumber})
			}
		}
	}
	return meters, nil
}
