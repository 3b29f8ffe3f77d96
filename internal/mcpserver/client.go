package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Config holds the configuration for connecting to the RugSentry platform.
type Config struct {
	APIURL string // Base URL, e.g. "http://localhost:8080"
}

// Client is a pure HTTP client for the RugSentry platform API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a new client for the RugSentry platform.
func NewClient(cfg Config) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiError represents an error response from the platform.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// get makes a GET request to the platform and returns the response body.
func (c *Client) get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	u, err := url.Parse(c.cfg.APIURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	return json.RawMessage(respBody), nil
}

// ListWarnings returns active warnings, optionally filtered.
func (c *Client) ListWarnings(ctx context.Context, network, riskLevel string, limit int) (json.RawMessage, error) {
	q := url.Values{}
	if network != "" {
		q.Set("network", network)
	}
	if riskLevel != "" {
		q.Set("riskLevel", riskLevel)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.get(ctx, "/v1/warnings", q)
}

// GetWarning returns one warning with its evidence.
func (c *Client) GetWarning(ctx context.Context, id string) (json.RawMessage, error) {
	return c.get(ctx, "/v1/warnings/"+url.PathEscape(id), nil)
}

// SimilarToWarning returns confirmed incidents similar to a warning.
func (c *Client) SimilarToWarning(ctx context.Context, id string, limit int) (json.RawMessage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.get(ctx, "/v1/warnings/"+url.PathEscape(id)+"/similar", q)
}

// SimilarToTombstone returns confirmed incidents similar to a tombstone.
func (c *Client) SimilarToTombstone(ctx context.Context, id string, limit int) (json.RawMessage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.get(ctx, "/v1/tombstones/"+url.PathEscape(id)+"/similar", q)
}

// ListTombstones returns confirmed incidents, optionally filtered by network.
func (c *Client) ListTombstones(ctx context.Context, network string, limit int) (json.RawMessage, error) {
	q := url.Values{}
	if network != "" {
		q.Set("network", network)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.get(ctx, "/v1/tombstones", q)
}

// LookupContract returns the tombstone for a contract, if one exists.
func (c *Client) LookupContract(ctx context.Context, network, address string) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("network", network)
	q.Set("address", address)
	return c.get(ctx, "/v1/tombstones/lookup", q)
}
