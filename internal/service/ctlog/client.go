package ctlog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// STH represents a Signed Tree Head response (RFC 6962 §4.3).
type STH struct {
	TreeSize  int64  `json:"tree_size"`
	Timestamp int64  `json:"timestamp"`
	RootHash  string `json:"sha256_root_hash"`
}

// RawEntry represents a single entry from get-entries (RFC 6962 §4.6).
type RawEntry struct {
	LeafInput []byte `json:"leaf_input"`
	ExtraData []byte `json:"extra_data"`
}

// Client talks to a Certificate Transparency log over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetSTH retrieves the latest Signed Tree Head.
func (c *Client) GetSTH(ctx context.Context) (*STH, error) {
	var sth STH
	if err := c.get(ctx, "/ct/v1/get-sth", "STH", &sth); err != nil {
		return nil, err
	}
	return &sth, nil
}

// GetEntries retrieves log entries in range [start, end] inclusive. Logs may
// return fewer entries than requested.
func (c *Client) GetEntries(ctx context.Context, start, end int64) ([]RawEntry, error) {
	var result struct {
		Entries []RawEntry `json:"entries"`
	}
	path := fmt.Sprintf("/ct/v1/get-entries?start=%d&end=%d", start, end)
	if err := c.get(ctx, path, "get-entries", &result); err != nil {
		return nil, err
	}
	return result.Entries, nil
}

func (c *Client) get(ctx context.Context, path, what string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create %s request: %w", what, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", what, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", what, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", what, err)
	}
	return nil
}
