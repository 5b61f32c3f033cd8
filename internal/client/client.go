// Package client talks to the assets service HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"assetgraph/internal/api"
	"assetgraph/internal/apperrors"
	"assetgraph/internal/asset"
	"assetgraph/internal/persist"
	"assetgraph/internal/pipeline"
)

// Error is a non-2xx response. It matches the apperrors sentinel for its status.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
}

func (e *Error) Unwrap() error { return apperrors.FromHTTPStatus(e.StatusCode) }

// Client is an assets API client.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New creates a client for the service at baseURL. apiKey may be empty.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// ListAssets returns every registered asset.
func (c *Client) ListAssets(ctx context.Context) (*api.ListResponse, error) {
	var resp api.ListResponse
	return &resp, c.do(ctx, http.MethodGet, "/v1/assets", nil, &resp)
}

// GetAsset returns one asset.
func (c *Client) GetAsset(ctx context.Context, id asset.ID) (*api.AssetView, error) {
	var view api.AssetView
	return &view, c.do(ctx, http.MethodGet, assetPath(id, ""), nil, &view)
}

// Eligibility asks whether id would be refreshed now.
func (c *Client) Eligibility(ctx context.Context, id asset.ID) (*api.EligibilityView, error) {
	var view api.EligibilityView
	return &view, c.do(ctx, http.MethodGet, assetPath(id, "/eligibility"), nil, &view)
}

// ListStored returns every stored metadata document.
func (c *Client) ListStored(ctx context.Context) ([]persist.Summary, error) {
	var summaries []persist.Summary
	if err := c.do(ctx, http.MethodGet, "/v1/meta", nil, &summaries); err != nil {
		return nil, err
	}
	return summaries, nil
}

// Run triggers a pipeline run and waits for its report.
func (c *Client) Run(ctx context.Context) (*pipeline.Report, error) {
	var report pipeline.Report
	return &report, c.do(ctx, http.MethodPost, "/v1/runs", nil, &report)
}

// MarkRefreshed records an external refresh of the source asset id.
func (c *Client) MarkRefreshed(ctx context.Context, id asset.ID, note string) (*api.MarkRefreshedResponse, error) {
	var resp api.MarkRefreshedResponse
	return &resp, c.do(ctx, http.MethodPost, assetPath(id, "/refreshed"), api.MarkRefreshedRequest{Note: note}, &resp)
}

func assetPath(id asset.ID, suffix string) string {
	return "/v1/assets/" + url.PathEscape(string(id)) + suffix
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{StatusCode: resp.StatusCode, Message: errorMessage(resp.Body)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// errorMessage extracts {"error": "..."} bodies and falls back to the raw text.
func errorMessage(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, 64<<10))
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(data))
}
