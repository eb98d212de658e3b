package tado

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/utility-ingest/internal/blobstore"
)

func TestStaticTokenSource(t *testing.T) {
	src := &StaticTokenSource{AccessToken: "tok"}
	token, err := src.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok", token)

	empty := &StaticTokenSource{}
	_, err = empty.Token(context.Background())
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestRefreshingTokenSourcePersistsRotation(t *testing.T) {
	ctx := context.Background()
	secrets := blobstore.NewMemStore()
	require.NoError(t, SeedRefreshToken(ctx, secrets, "refresh-1"))

	var exchanges atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "refresh-1", r.Form.Get("refresh_token"))
		exchanges.Add(1)
		fmt.Fprint(w, `{"access_token": "access-1", "refresh_token": "refresh-2", "expires_in": 600}`)
	}))
	defer server.Close()

	src := NewRefreshingTokenSource("client", server.URL, secrets, nil)
	token, err := src.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access-1", token)

	// Cached until 80% of lifetime, so no second exchange
	token, err = src.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access-1", token)
	assert.Equal(t, int32(1), exchanges.Load())

	// The rotated refresh token survived
	data, err := secrets.Download(ctx, SecretPath)
	require.NoError(t, err)
	var secret struct {
		RefreshToken string `json:"refresh_token"`
	}
	require.NoError(t, json.Unmarshal(data, &secret))
	assert.Equal(t, "refresh-2", secret.RefreshToken)
}

func TestRefreshingTokenSourceRejectedRefreshToken(t *testing.T) {
	ctx := context.Background()
	secrets := blobstore.NewMemStore()
	require.NoError(t, SeedRefreshToken(ctx, secrets, "stale"))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "invalid_grant"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	src := NewRefreshingTokenSource("client", server.URL, secrets, nil)
	_, err := src.Token(ctx)
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestRefreshingTokenSourceNoStoredToken(t *testing.T) {
	src := NewRefreshingTokenSource("client", "http://localhost:1", blobstore.NewMemStore(), nil)
	_, err := src.Token(context.Background())
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestClientRetriesOnceAfterTokenRejection(t *testing.T) {
	var calls atomic.Int32
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "token expired", http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		fmt.Fprint(w, `[{"id": 3, "name": "Living Room", "type": "HEATING"}, {"id": 5, "name": "Hot Water", "type": "HOT_WATER"}]`)
	}))
	defer api.Close()

	client := NewClient(Config{
		HomeID:  "12345",
		BaseURL: api.URL,
		Tokens:  &StaticTokenSource{AccessToken: "tok"},
	})

	devices, err := client.EnumerateZones(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())

	// Only HEATING zones become devices
	require.Len(t, devices, 1)
	assert.Equal(t, "3", devices[0].DeviceID)
	assert.Equal(t, "Living Room", devices[0].Name)
	assert.Equal(t, "3", devices[0].ZoneID)
}

func TestClientAuthFailureAfterRetry(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer api.Close()

	client := NewClient(Config{
		HomeID:  "12345",
		BaseURL: api.URL,
		Tokens:  &StaticTokenSource{AccessToken: "tok"},
	})

	_, err := client.EnumerateZones(context.Background())
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestGetDayReportPath(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/homes/12345/zones/3/dayReport", r.URL.Path)
		assert.Equal(t, "2026-08-20", r.URL.Query().Get("date"))
		fmt.Fprint(w, `{"callForHeat": {"dataIntervals": []}}`)
	}))
	defer api.Close()

	client := NewClient(Config{
		HomeID:  "12345",
		BaseURL: api.URL,
		Tokens:  &StaticTokenSource{AccessToken: "tok"},
	})

	date := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	report, err := client.GetDayReport(context.Background(), testDevice, date)
	require.NoError(t, err)
	assert.NotNil(t, report)
}
