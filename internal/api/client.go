package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client talks to a running playarrd over its HTTP polling API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// NewClient builds a client for the daemon listening at address
// (host:port or a full http URL).
func NewClient(address string, opts ...ClientOption) (*Client, error) {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return nil, fmt.Errorf("daemon address is required")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse daemon address: %w", err)
	}
	client := &Client{
		baseURL:    strings.TrimRight(parsed.String(), "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Status fetches daemon runtime information.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var out DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, nil, &out)
	return out, err
}

// Libraries lists registered scan roots.
func (c *Client) Libraries(ctx context.Context) ([]Library, error) {
	var out LibraryListResponse
	if err := c.do(ctx, http.MethodGet, "/api/libraries", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Libraries, nil
}

// AddLibrary registers a scan root.
func (c *Client) AddLibrary(ctx context.Context, path, name string) (Library, error) {
	var out Library
	err := c.do(ctx, http.MethodPost, "/api/libraries", nil, AddLibraryRequest{Path: path, Name: name}, &out)
	return out, err
}

// RemoveLibrary deletes a scan root.
func (c *Client) RemoveLibrary(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/api/libraries/"+formatID(id), nil, nil, nil)
}

// StartScan launches a scan of one library.
func (c *Client) StartScan(ctx context.Context, libraryID int64) (Scan, error) {
	var out Scan
	err := c.do(ctx, http.MethodPost, "/api/libraries/"+formatID(libraryID)+"/scan", nil, nil, &out)
	return out, err
}

// Scans lists recent scans.
func (c *Client) Scans(ctx context.Context, limit int) ([]Scan, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	var out ScanListResponse
	if err := c.do(ctx, http.MethodGet, "/api/scans", params, nil, &out); err != nil {
		return nil, err
	}
	return out.Scans, nil
}

// GetScan fetches one scan.
func (c *Client) GetScan(ctx context.Context, id int64) (Scan, error) {
	var out Scan
	err := c.do(ctx, http.MethodGet, "/api/scans/"+formatID(id), nil, nil, &out)
	return out, err
}

// ScanProgress fetches the progress view of one scan.
func (c *Client) ScanProgress(ctx context.Context, id int64) (OperationProgress, error) {
	var out OperationProgress
	err := c.do(ctx, http.MethodGet, "/api/scans/"+formatID(id)+"/progress", nil, nil, &out)
	return out, err
}

// CancelScan requests cooperative cancellation of a running scan.
func (c *Client) CancelScan(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPost, "/api/scans/"+formatID(id)+"/cancel", nil, nil, nil)
}

// RecordQuery filters Records listings.
type RecordQuery struct {
	LibraryID int64
	Broken    bool
	Unmatched bool
}

// Records lists analyzed files.
func (c *Client) Records(ctx context.Context, query RecordQuery) ([]Record, error) {
	params := url.Values{}
	if query.LibraryID > 0 {
		params.Set("library", formatID(query.LibraryID))
	}
	if query.Broken {
		params.Set("broken", "1")
	}
	if query.Unmatched {
		params.Set("unmatched", "1")
	}
	var out RecordListResponse
	if err := c.do(ctx, http.MethodGet, "/api/records", params, nil, &out); err != nil {
		return nil, err
	}
	return out.Records, nil
}

// GetRecord fetches one analyzed file.
func (c *Client) GetRecord(ctx context.Context, id int64) (Record, error) {
	var out Record
	err := c.do(ctx, http.MethodGet, "/api/records/"+formatID(id), nil, nil, &out)
	return out, err
}

// RescanFile re-runs extraction and rating for one file.
func (c *Client) RescanFile(ctx context.Context, id int64) (Record, error) {
	var out Record
	err := c.do(ctx, http.MethodPost, "/api/records/"+formatID(id)+"/rescan", nil, nil, &out)
	return out, err
}

// RecalculateRating re-rates stored attributes without extraction.
func (c *Client) RecalculateRating(ctx context.Context, id int64) (Record, error) {
	var out Record
	err := c.do(ctx, http.MethodPost, "/api/records/"+formatID(id)+"/recalculate", nil, nil, &out)
	return out, err
}

// StartMatch launches a match run and returns its operation id.
func (c *Client) StartMatch(ctx context.Context) (string, error) {
	var out struct {
		OperationID string `json:"operationId"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/match", nil, nil, &out); err != nil {
		return "", err
	}
	return out.OperationID, nil
}

// OperationProgress fetches any live operation by its id.
func (c *Client) OperationProgress(ctx context.Context, operationID string) (OperationProgress, error) {
	var out OperationProgress
	err := c.do(ctx, http.MethodGet, "/api/operations/"+url.PathEscape(operationID), nil, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("daemon request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var payload struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&payload); decodeErr == nil && payload.Error != "" {
			return fmt.Errorf("daemon %s %s: %s (%d)", method, path, payload.Error, resp.StatusCode)
		}
		return fmt.Errorf("daemon %s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
