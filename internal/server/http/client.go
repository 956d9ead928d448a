package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"github.com/litetable/litetable-filter/internal/mutation"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to the HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the server at baseURL, e.g. http://localhost:8080.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// CreateFamilies allows writes to the given families and returns every allowed family.
func (c *Client) CreateFamilies(ctx context.Context, families ...string) ([]string, error) {
	var resp FamiliesResponse
	if err := c.post(ctx, "/v1/families", FamiliesRequest{Families: families}, &resp); err != nil {
		return nil, err
	}
	return resp.Families, nil
}

// Mutate writes the batch.
func (c *Client) Mutate(ctx context.Context, batch mutation.Batch) (*MutateResponse, error) {
	var resp MutateResponse
	if err := c.post(ctx, "/v1/rows:mutate", MutateRequest{Entries: batch.Entries}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Scan returns the rows of the scan.
func (c *Client) Scan(ctx context.Context, req ScanRequest) (*ScanResponse, error) {
	var resp ScanResponse
	if err := c.post(ctx, "/v1/rows:scan", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ScanReport returns the text report of the scan.
func (c *Client) ScanReport(ctx context.Context, req ScanRequest) (string, error) {
	body, err := c.do(ctx, "/v1/rows:scan?format=text", req)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := c.do(ctx, path, in)
	if err != nil {
		return err
	}
	if err = json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, path string, in any) ([]byte, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentTypeJSON)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", path, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var errResp ErrorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("POST %s: %s: %s", path, resp.Status, errResp.Error)
		}
		return nil, fmt.Errorf("POST %s: %s", path, resp.Status)
	}
	return body, nil
}
