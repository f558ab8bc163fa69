package compute

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPClient talks to the remote geospatial compute service over its HTTP API
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient creates a new compute service client. A zero timeout keeps
// the transport default.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// NewHTTPClientWith creates a client using a caller-supplied http.Client
func NewHTTPClientWith(baseURL string, httpClient *http.Client) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (c *HTTPClient) post(ctx context.Context, path string, reqBody, respBody any) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBytes, _ := io.ReadAll(resp.Body)
		if strings.Contains(string(respBytes), requestTooLargeMarker) {
			return fmt.Errorf("%w: %s", ErrRequestTooLarge, string(respBytes))
		}
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBytes))
	}

	if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// ListScenes queries the catalog for acquisitions matching the query
func (c *HTTPClient) ListScenes(ctx context.Context, q SceneQuery) ([]Scene, error) {
	var resp struct {
		Scenes []Scene `json:"scenes"`
	}
	if err := c.post(ctx, "/v1/collections/scenes", q, &resp); err != nil {
		return nil, fmt.Errorf("failed to list scenes: %w", err)
	}
	return resp.Scenes, nil
}

// DownloadURL asks the service to evaluate the image expression and return a
// URL serving the encoded raster at the requested scale/region/format
func (c *HTTPClient) DownloadURL(ctx context.Context, req DownloadRequest) (string, error) {
	var resp struct {
		URL string `json:"url"`
	}
	if err := c.post(ctx, "/v1/images/download-url", req, &resp); err != nil {
		return "", err
	}
	if resp.URL == "" {
		return "", fmt.Errorf("no download URL in response")
	}
	return resp.URL, nil
}

// Fetch downloads the full response body from a previously issued URL
func (c *HTTPClient) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}

// ReduceRegion asks the service for a scalar reduction over the region,
// returning one value per band
func (c *HTTPClient) ReduceRegion(ctx context.Context, req ReduceRequest) (map[string]float64, error) {
	var resp struct {
		Results map[string]float64 `json:"results"`
	}
	if err := c.post(ctx, "/v1/images/reduce", req, &resp); err != nil {
		return nil, fmt.Errorf("failed to reduce region: %w", err)
	}
	if resp.Results == nil {
		return map[string]float64{}, nil
	}
	return resp.Results, nil
}
