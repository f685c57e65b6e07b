// Package logclient implements the two RFC 6962 HTTP calls a poller needs
// against a single CT log's base URL, with gzip and a bounded retry wrapper.
package logclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ct-watchtower/watchtower/internal/ctwire"
)

const userAgent = "ct-watchtower/1.0"

// ErrRateLimited is returned when the log responds 429.
var ErrRateLimited = errors.New("logclient: rate limited")

// LogError wraps a non-2xx, non-429 HTTP response.
type LogError struct {
	Status      int
	BodyExcerpt string
}

func (e *LogError) Error() string {
	return fmt.Sprintf("logclient: status %d: %s", e.Status, e.BodyExcerpt)
}

// Client talks to one CT log's get-sth/get-entries endpoints.
type Client struct {
	baseURL string
	hc      *http.Client
}

// New creates a Client for baseURL (no trailing slash) with a 30s total
// request timeout. Gzip is accepted transparently by the default
// transport as long as no caller sets Accept-Encoding explicitly.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		hc:      &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("logclient: build request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("logclient: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return ErrRateLimited
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &LogError{Status: resp.StatusCode, BodyExcerpt: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("logclient: decode response: %w", err)
	}

	return nil
}

// GetSTH fetches the log's current signed tree head.
func (c *Client) GetSTH(ctx context.Context) (ctwire.SignedTreeHead, error) {
	var sth ctwire.SignedTreeHead

	if err := c.do(ctx, "/ct/v1/get-sth", &sth); err != nil {
		return ctwire.SignedTreeHead{}, err
	}

	return sth, nil
}

// GetEntries fetches entries in [start, end] inclusive. The log may return
// fewer than end-start+1 entries; callers must not assume a full range.
func (c *Client) GetEntries(ctx context.Context, start, end int64) ([]ctwire.RawLogEntry, error) {
	if start > end {
		return nil, fmt.Errorf("logclient: invalid range [%d, %d]", start, end)
	}

	var resp ctwire.GetEntriesResponse

	path := fmt.Sprintf("/ct/v1/get-entries?start=%d&end=%d", start, end)
	if err := c.do(ctx, path, &resp); err != nil {
		return nil, err
	}

	return resp.Entries, nil
}
