// ABOUTME: HTTP client for the Baseline loan-servicing REST API.
// ABOUTME: Single-shot requests with Token auth; no retries or backoff.

package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultBaseURL is the production Baseline API endpoint.
const DefaultBaseURL = "https://production.baselinesoftware.com/production/api"

// ErrNoCredential indicates no API credential has been configured.
var ErrNoCredential = errors.New("no Baseline API credential configured")

// StatusError represents a non-2xx response from the Baseline API.
// The response body is captured for diagnostics.
type StatusError struct {
	Status     int
	StatusText string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Baseline API error %d %s: %s", e.Status, e.StatusText, e.Body)
}

// Config holds the upstream connection settings.
type Config struct {
	BaseURL          string
	Credential       string
	UpdateLoanMethod string // HTTP verb for loan updates; defaults to PATCH
	HTTPClient       *http.Client
}

// Client issues authenticated requests to the Baseline API.
// The base URL and credential are mutable via setters so tests and
// administrative calls can repoint a running gateway; both are
// read-mostly and guarded by a mutex.
type Client struct {
	mu               sync.RWMutex
	baseURL          string
	credential       string
	updateLoanMethod string
	httpClient       *http.Client
}

// New constructs a Client from the given config, applying defaults
// for any zero-valued fields.
func New(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	method := cfg.UpdateLoanMethod
	if method == "" {
		method = http.MethodPatch
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:          strings.TrimRight(baseURL, "/"),
		credential:       cfg.Credential,
		updateLoanMethod: method,
		httpClient:       httpClient,
	}
}

// SetCredential replaces the configured API credential.
func (c *Client) SetCredential(credential string) {
	c.mu.Lock()
	c.credential = credential
	c.mu.Unlock()
}

// SetBaseURL replaces the configured base URL.
func (c *Client) SetBaseURL(baseURL string) {
	c.mu.Lock()
	c.baseURL = strings.TrimRight(baseURL, "/")
	c.mu.Unlock()
}

// UpdateLoanMethod returns the configured HTTP verb for loan updates.
func (c *Client) UpdateLoanMethod() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updateLoanMethod
}

// Request sends one HTTP request to the Baseline API and returns the
// parsed JSON body. A nil body sends no payload. Returns ErrNoCredential
// when no credential is configured and a *StatusError on any non-2xx
// response. Empty response bodies resolve to an empty JSON object.
func (c *Client) Request(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	c.mu.RLock()
	baseURL := c.baseURL
	credential := c.credential
	httpClient := c.httpClient
	c.mu.RUnlock()

	if credential == "" {
		return nil, ErrNoCredential
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+resolveToken(credential))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling Baseline API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Status:     resp.StatusCode,
			StatusText: http.StatusText(resp.StatusCode),
			Body:       strings.TrimSpace(string(respBody)),
		}
	}

	if len(bytes.TrimSpace(respBody)) == 0 {
		return json.RawMessage("{}"), nil
	}

	if !json.Valid(respBody) {
		return nil, fmt.Errorf("parsing response body: invalid JSON")
	}
	return json.RawMessage(respBody), nil
}

// credentialKeys is the fixed-priority list of fields consulted when the
// configured credential is itself a JSON object.
var credentialKeys = []string{"token", "apiKey", "key", "value", "secret"}

// resolveToken extracts the real token from the configured credential.
// Credentials pasted from secret managers often arrive as a JSON object
// wrapping the token; plain strings are used as-is.
func resolveToken(credential string) string {
	trimmed := strings.TrimSpace(credential)
	if !strings.HasPrefix(trimmed, "{") {
		return credential
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
		return credential
	}

	for _, key := range credentialKeys {
		if s, ok := obj[key].(string); ok && s != "" {
			return s
		}
	}

	// Fall back to the first string-valued field, keyed in sorted order
	// so resolution is deterministic.
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && s != "" {
			return s
		}
	}

	return credential
}
