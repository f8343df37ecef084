// Package expression talks to the remote face-expression API that renders
// mouth patterns. Updates are best effort: failures are logged and
// swallowed, never propagated into the playback path.
package expression

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hmori/siriusd/internal/config"
)

// Client drives one mouth-pattern endpoint. It satisfies the lip-sync
// walker's sink contract: synchronous anchor updates, fire-and-forget
// follow-ups, and an unconditional clear.
type Client struct {
	endpoint string
	sync     *http.Client
	async    *http.Client
	logger   *slog.Logger
}

// NewClient builds an expression client from the expression config section.
func NewClient(cfg config.ExpressionConfig, logger *slog.Logger) *Client {
	syncTimeout := time.Duration(cfg.SyncTimeoutMS) * time.Millisecond
	if syncTimeout <= 0 {
		syncTimeout = 500 * time.Millisecond
	}
	asyncTimeout := time.Duration(cfg.AsyncTimeoutMS) * time.Millisecond
	if asyncTimeout <= 0 {
		asyncTimeout = 50 * time.Millisecond
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		sync:     &http.Client{Timeout: syncTimeout},
		async:    &http.Client{Timeout: asyncTimeout},
		logger:   logger,
	}
}

// ApplySync sets a mouth pattern and waits for the round trip.
func (c *Client) ApplySync(pattern string) error {
	return c.post(c.sync, &pattern)
}

// ApplyAsync sets a mouth pattern without waiting; errors are dropped on
// the floor since a missed frame is invisible next to a stalled schedule.
func (c *Client) ApplyAsync(pattern string) {
	go func() {
		_ = c.post(c.async, &pattern)
	}()
}

// Clear restores the neutral mouth by sending a null pattern.
func (c *Client) Clear() {
	if err := c.post(c.sync, nil); err != nil {
		c.logger.Warn("mouth pattern clear failed", "error", err)
	}
}

// Set writes an explicit pattern, nil meaning neutral. Used on shutdown to
// restore whatever pattern was active before siriusd took over.
func (c *Client) Set(pattern *string) error {
	return c.post(c.sync, pattern)
}

// Current reads the active mouth pattern, nil meaning neutral.
func (c *Client) Current(ctx context.Context) (*string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/mouth_pattern", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.sync.Do(req)
	if err != nil {
		return nil, fmt.Errorf("read mouth pattern: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("expression api returned %s", resp.Status)
	}

	var payload struct {
		MouthPattern *string `json:"mouth_pattern"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode mouth pattern: %w", err)
	}
	return payload.MouthPattern, nil
}

func (c *Client) post(client *http.Client, pattern *string) error {
	body, err := json.Marshal(struct {
		MouthPattern *string `json:"mouth_pattern"`
	}{MouthPattern: pattern})
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, c.endpoint+"/mouth_pattern", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("set mouth pattern: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("expression api returned %s", resp.Status)
	}
	return nil
}
