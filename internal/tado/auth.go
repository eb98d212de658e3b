package tado

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ignite/utility-ingest/internal/blobstore"
	"github.com/ignite/utility-ingest/internal/pkg/logger"
)

// DefaultTokenURL is the Tado OAuth2 token endpoint.
const DefaultTokenURL = "https://login.tado.com/oauth2/token"

// DefaultClientID is the public device-code client ID shared by Tado
// integrations.
const DefaultClientID = "1bb50063-6b0c-4d11-bd99-387f4a91cc46"

// SecretPath is where the rotated refresh token lives in the secret store.
const SecretPath = "secrets/tado-refresh-token.json"

// ErrAuthFailed marks a non-recoverable authentication failure: the refresh
// token was rejected, or the API refused the access token twice in a row.
var ErrAuthFailed = errors.New("tado: authentication failed")

// TokenSource yields access tokens for API calls. Invalidate discards any
// cached token so the next Token call fetches a fresh one.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// StaticTokenSource returns a fixed token. Used in tests and for short-lived
// manual runs with a pre-issued token.
type StaticTokenSource struct {
	AccessToken string
}

func (s *StaticTokenSource) Token(context.Context) (string, error) {
	if s.AccessToken == "" {
		return "", fmt.Errorf("%w: no access token configured", ErrAuthFailed)
	}
	return s.AccessToken, nil
}

func (s *StaticTokenSource) Invalidate() {}

// storedSecret is the persisted refresh-token document.
type storedSecret struct {
	RefreshToken string `json:"refresh_token"`
	UpdatedAt    string `json:"updated_at"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// RefreshingTokenSource exchanges a refresh token for access tokens via the
// OAuth2 refresh-token grant. Tado rotates the refresh token on every
// exchange, so the new one is persisted to the secret store immediately; a
// lost rotation strands the integration until a manual re-login.
//
// Access tokens are cached and refreshed at 80% of their reported lifetime.
type RefreshingTokenSource struct {
	clientID string
	tokenURL string
	secrets  blobstore.Store
	doer     interface {
		Do(*http.Request) (*http.Response, error)
	}

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

// NewRefreshingTokenSource builds a token source backed by the given secret
// store. Empty clientID and tokenURL fall back to the public defaults.
func NewRefreshingTokenSource(clientID, tokenURL string, secrets blobstore.Store, doer interface {
	Do(*http.Request) (*http.Response, error)
}) *RefreshingTokenSource {
	if clientID == "" {
		clientID = DefaultClientID
	}
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	if doer == nil {
		doer = &http.Client{Timeout: 30 * time.Second}
	}
	return &RefreshingTokenSource{
		clientID: clientID,
		tokenURL: tokenURL,
		secrets:  secrets,
		doer:     doer,
	}
}

// SeedRefreshToken stores an initial refresh token, typically obtained from a
// one-time device-code login.
func SeedRefreshToken(ctx context.Context, secrets blobstore.Store, refreshToken string) error {
	doc := storedSecret{
		RefreshToken: refreshToken,
		UpdatedAt:    time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling refresh token: %w", err)
	}
	return secrets.Upload(ctx, SecretPath, data)
}

func (r *RefreshingTokenSource) Token(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.accessToken != "" && time.Now().Before(r.expiresAt) {
		return r.accessToken, nil
	}
	return r.refresh(ctx)
}

func (r *RefreshingTokenSource) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accessToken = ""
	r.expiresAt = time.Time{}
}

// refresh exchanges the stored refresh token for a new access token and
// persists the rotated refresh token. Caller holds r.mu.
func (r *RefreshingTokenSource) refresh(ctx context.Context) (string, error) {
	data, err := r.secrets.Download(ctx, SecretPath)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return "", fmt.Errorf("%w: no refresh token stored at %s", ErrAuthFailed, SecretPath)
		}
		return "", fmt.Errorf("reading refresh token: %w", err)
	}
	var secret storedSecret
	if err := json.Unmarshal(data, &secret); err != nil {
		return "", fmt.Errorf("%w: parsing stored refresh token: %v", ErrAuthFailed, err)
	}
	if secret.RefreshToken == "" {
		return "", fmt.Errorf("%w: stored refresh token is empty", ErrAuthFailed)
	}

	form := url.Values{}
	form.Set("client_id", r.clientID)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", secret.RefreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.doer.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		// 400/401 here means the refresh token is dead, not transient.
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
			return "", fmt.Errorf("%w: token endpoint returned %d: %s", ErrAuthFailed, resp.StatusCode, string(body))
		}
		return "", fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("parsing token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("%w: token response missing access_token", ErrAuthFailed)
	}

	r.accessToken = tok.AccessToken
	lifetime := time.Duration(tok.ExpiresIn) * time.Second
	if lifetime <= 0 {
		lifetime = 10 * time.Minute
	}
	r.expiresAt = time.Now().Add(lifetime * 8 / 10)

	// Persist the rotated refresh token before returning. If persistence
	// fails the old token is already consumed, so surface the error loudly.
	if tok.RefreshToken != "" && tok.RefreshToken != secret.RefreshToken {
		if err := SeedRefreshToken(ctx, r.secrets, tok.RefreshToken); err != nil {
			return "", fmt.Errorf("persisting rotated refresh token: %w", err)
		}
		logger.Debug("tado: refresh token rotated")
	}

	return r.accessToken, nil
}
