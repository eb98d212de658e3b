// Package tado fetches heating demand and temperature day reports from the
// Tado v2 API and normalizes them into canonical records.
package tado

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ignite/utility-ingest/internal/pkg/httpretry"
	"github.com/ignite/utility-ingest/internal/pkg/logger"
)

// DefaultBaseURL is the Tado v2 API base.
const DefaultBaseURL = "https://my.tado.com/api/v2"

// Client is a Tado API client scoped to one home.
type Client struct {
	baseURL    string
	homeID     string
	tokens     TokenSource
	httpClient httpretry.HTTPDoer
}

// Config carries the client settings; the zero BaseURL falls back to the
// official API.
type Config struct {
	HomeID  string
	BaseURL string
	Tokens  TokenSource
	Timeout time.Duration
}

// NewClient creates a new Tado API client.
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
		baseURL:    baseURL,
		homeID:     cfg.HomeID,
		tokens:     cfg.Tokens,
		httpClient: httpretry.NewRetryClient(&http.Client{Timeout: timeout}, 3),
	}
}

// doRequest makes an authenticated GET and returns the raw body. A 401 or 403
// invalidates the cached token and retries once with a fresh one; a second
// rejection is a hard auth failure.
func (c *Client) doRequest(ctx context.Context, path string) ([]byte, error) {
	for attempt := 0; attempt < 2; attempt++ {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("obtaining access token: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("executing request: %w", err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("reading response: %w", err)
		}

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			if attempt == 0 {
				logger.Warn("tado: access token rejected, refreshing", "status", resp.StatusCode)
				c.tokens.Invalidate()
				continue
			}
			return nil, fmt.Errorf("%w: API returned %d after token refresh: %s",
				ErrAuthFailed, resp.StatusCode, string(body))
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
		}
		return body, nil
	}
	return nil, ErrAuthFailed
}

// EnumerateZones lists the home's HEATING zones as devices, one device per
// zone.
func (c *Client) EnumerateZones(ctx context.Context) ([]Device, error) {
	body, err := c.doRequest(ctx, fmt.Sprintf("/homes/%s/zones", c.homeID))
	if err != nil {
		return nil, fmt.Errorf("listing zones: %w", err)
	}

	var zones []zone
	if err := json.Unmarshal(body, &zones); err != nil {
		return nil, fmt.Errorf("parsing zones: %w", err)
	}

	var devices []Device
	for _, z := range zones {
		if z.Type != "HEATING" {
			continue
		}
		devices = append(devices, Device{
			DeviceID:   z.ID.String(),
			Name:       z.Name,
			DeviceType: "trv",
			ZoneID:     z.ID.String(),
		})
	}
	return devices, nil
}

// GetDayReport fetches the raw day report for one device's zone and one UTC
// calendar date.
func (c *Client) GetDayReport(ctx context.Context, d Device, date time.Time) (*DayReport, error) {
	path := fmt.Sprintf("/homes/%s/zones/%s/dayReport?date=%s",
		c.homeID, d.ZoneID, date.UTC().Format("2006-01-02"))
	body, err := c.doRequest(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("fetching day report for %s: %w", d.StreamKey(), err)
	}

	var report DayReport
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("parsing day report for %s: %w", d.StreamKey(), err)
	}
	return &report, nil
}
