package gtfsrt

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Client fetches GTFS-RT protobuf data over HTTP or from local files.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a client. A zero timeout means no client-side timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Fetch returns the raw protobuf bytes at urlOrPath. Anything that is not an
// http(s) URL is read as a local file. Returns nil if urlOrPath is empty.
func (c *Client) Fetch(ctx context.Context, urlOrPath string) ([]byte, error) {
	if urlOrPath == "" {
		return nil, nil
	}

	if !strings.HasPrefix(urlOrPath, "http://") && !strings.HasPrefix(urlOrPath, "https://") {
		return os.ReadFile(urlOrPath)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlOrPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", urlOrPath, err)
	}
	req.Header.Set("Accept", "application/x-protobuf")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", urlOrPath, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, urlOrPath)
	}

	return io.ReadAll(resp.Body)
}
