package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hazyhaar/cvwatch/domwatch/internal/transport"
)

// Client drives a collector running in another process through its HTTP
// API: the crawl side of Handler.
type Client struct {
	base   string
	client *http.Client
	logger *slog.Logger
}

// NewClient returns a client of the collector at base.
func NewClient(base string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

// Navigation reports a navigation status of tab.
func (c *Client) Navigation(ctx context.Context, tabID, pageURL, status string) error {
	body, err := json.Marshal(map[string]string{"url": pageURL, "status": status})
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, c.tabPath(tabID)+"/navigation", body)
}

// Activated reports that tab became the active tab.
func (c *Client) Activated(ctx context.Context, tabID string) error {
	return c.do(ctx, http.MethodPost, c.tabPath(tabID)+"/activated", nil)
}

// Closed reports that tab was closed.
func (c *Client) Closed(ctx context.Context, tabID string) error {
	return c.do(ctx, http.MethodDelete, c.tabPath(tabID), nil)
}

// Channel returns the message channel of a page of tab.
func (c *Client) Channel(tabID string) *transport.HTTP {
	return transport.NewHTTP(c.base, tabID,
		transport.WithHTTPClient(c.client),
		transport.WithHTTPLogger(c.logger))
}

func (c *Client) tabPath(tabID string) string {
	return c.base + "/tabs/" + url.PathEscape(tabID)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("collector: new request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("collector: %s %s: %w", method, endpoint, err)
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("collector: %s %s: status %d", method, endpoint, resp.StatusCode)
	}
	return nil
}
