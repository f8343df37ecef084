package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hmori/siriusd/internal/audio"
	"github.com/hmori/siriusd/internal/config"
)

// LoadState tracks transcription server readiness. The server loads its
// model lazily, so the first request after startup can take many seconds;
// callers poll or await readiness instead of eating that latency mid-session.
type LoadState int32

const (
	LoadNotStarted LoadState = iota
	LoadLoading
	LoadReady
)

func (s LoadState) String() string {
	switch s {
	case LoadNotStarted:
		return "not_started"
	case LoadLoading:
		return "loading"
	case LoadReady:
		return "ready"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// ErrNotReady is returned by Transcribe before the server has been warmed up.
var ErrNotReady = errors.New("transcription server is not ready")

// Client submits PCM audio to a faster-whisper-compatible server.
type Client struct {
	endpoint string
	model    string
	apiKey   string
	http     *http.Client
	logger   *slog.Logger

	state atomic.Int32

	readyOnce sync.Once
	ready     chan struct{}
	readyErr  error
}

// NewClient builds a transcription client from the whisper config section.
func NewClient(cfg config.WhisperConfig, logger *slog.Logger) *Client {
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
		ready:    make(chan struct{}),
	}
}

// State reports the current readiness phase.
func (c *Client) State() LoadState {
	return LoadState(c.state.Load())
}

// Preload starts warming the server in the background. Safe to call more
// than once; only the first call does work.
func (c *Client) Preload(ctx context.Context) {
	c.readyOnce.Do(func() {
		c.state.Store(int32(LoadLoading))
		go func() {
			start := time.Now()
			err := c.awaitHealthy(ctx)
			if err != nil {
				c.logger.Error("transcription server warm-up failed", "error", err)
			} else {
				c.state.Store(int32(LoadReady))
				c.logger.Info("transcription server ready",
					"endpoint", c.endpoint,
					"elapsed_ms", time.Since(start).Milliseconds())
			}
			c.readyErr = err
			close(c.ready)
		}()
	})
}

// AwaitReady blocks until the server is warm, Preload failed, or ctx ends.
func (c *Client) AwaitReady(ctx context.Context) error {
	if c.State() == LoadNotStarted {
		c.Preload(ctx)
	}
	select {
	case <-c.ready:
		return c.readyErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Health performs a single readiness probe against the server.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.healthURL(), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("probe transcription server: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("transcription server health returned %s", resp.Status)
	}
	return nil
}

// Transcribe submits one mono 16kHz clip and parses the verbose response.
func (c *Client) Transcribe(ctx context.Context, samples []int16, opts Options) (Result, error) {
	if c.State() != LoadReady {
		return Result{}, ErrNotReady
	}
	if len(samples) == 0 {
		return Result{}, errors.New("empty audio clip")
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", "audio.wav")
	if err != nil {
		return Result{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(audio.EncodeWAV(samples, audio.SampleRate)); err != nil {
		return Result{}, fmt.Errorf("write audio payload: %w", err)
	}
	if err := opts.writeForm(form, c.model); err != nil {
		return Result{}, err
	}
	if err := form.Close(); err != nil {
		return Result{}, fmt.Errorf("finalize form: %w", err)
	}

	url := c.endpoint + "/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("post transcription: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read transcription response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("transcription server returned %s: %s", resp.Status, truncateBody(payload))
	}

	var parsed struct {
		Text     string    `json:"text"`
		Segments []Segment `json:"segments"`
		Language string    `json:"language"`
		LangProb float64   `json:"language_probability"`
		Duration float64   `json:"duration"`
	}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return Result{}, fmt.Errorf("decode transcription response: %w", err)
	}

	return Result{
		Text:     parsed.Text,
		Segments: parsed.Segments,
		Info: Info{
			Language:            parsed.Language,
			LanguageProbability: parsed.LangProb,
			Duration:            parsed.Duration,
		},
	}, nil
}

// awaitHealthy polls the health endpoint until it answers or ctx ends.
func (c *Client) awaitHealthy(ctx context.Context) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := c.Health(ctx); err == nil {
			return nil
		} else {
			lastErr = err
		}
		select {
		case <-ctx.Done():
			if lastErr != nil {
				return fmt.Errorf("%w (last probe: %v)", ctx.Err(), lastErr)
			}
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// healthURL derives the probe URL from the API endpoint. The API lives
// under /v1 but the health route sits at the server root.
func (c *Client) healthURL() string {
	return strings.TrimSuffix(c.endpoint, "/v1") + "/health"
}

func truncateBody(b []byte) string {
	const limit = 300
	s := strings.TrimSpace(string(b))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
