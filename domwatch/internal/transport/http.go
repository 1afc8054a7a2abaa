package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hazyhaar/cvwatch/domwatch/mutation"
)

// HTTP posts each message to a remote collector at
// {base}/tabs/{tabID}/messages. There is no retry: the first failure
// closes the channel.
type HTTP struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
	closed   atomic.Bool
}

// HTTPOption configures an HTTP channel.
type HTTPOption func(*HTTP)

// WithHTTPClient sets the client used for requests.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTP) { h.client = c }
}

// WithHTTPLogger sets a custom logger.
func WithHTTPLogger(l *slog.Logger) HTTPOption {
	return func(h *HTTP) { h.logger = l }
}

// NewHTTP returns a channel to the collector at base for tabID.
func NewHTTP(base, tabID string, opts ...HTTPOption) *HTTP {
	h := &HTTP{
		endpoint: strings.TrimRight(base, "/") + "/tabs/" + url.PathEscape(tabID) + "/messages",
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *HTTP) Send(ctx context.Context, msg mutation.Message) error {
	if h.closed.Load() {
		return ErrClosed
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("transport: marshal: %w", err)
	}
	if err := h.post(ctx, body); err != nil {
		h.closed.Store(true)
		h.logger.Warn("transport: collector unreachable, closing channel", "endpoint", h.endpoint, "error", err)
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	return nil
}

func (h *HTTP) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func (h *HTTP) Close() error {
	h.closed.Store(true)
	return nil
}
