// Package voicevox speaks to a local VOICEVOX engine over its two-step
// HTTP surface: build an audio query describing prosody, then render it
// to a WAV payload. The query's mora timings also drive lip-sync.
package voicevox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hmori/siriusd/internal/config"
)

// Mora is one syllable-level timing unit in an audio query.
type Mora struct {
	Text            string   `json:"text"`
	Consonant       *string  `json:"consonant"`
	ConsonantLength *float64 `json:"consonant_length"`
	Vowel           string   `json:"vowel"`
	VowelLength     float64  `json:"vowel_length"`
	Pitch           float64  `json:"pitch"`
}

// AccentPhrase groups moras under one accent nucleus.
type AccentPhrase struct {
	Moras           []Mora `json:"moras"`
	Accent          int    `json:"accent"`
	PauseMora       *Mora  `json:"pause_mora"`
	IsInterrogative bool   `json:"is_interrogative"`
}

// Query is the engine's audio query document. Unknown fields must survive
// the round trip, so the raw payload is kept and scale fields are patched
// into it before synthesis.
type Query struct {
	AccentPhrases   []AccentPhrase `json:"accent_phrases"`
	SpeedScale      float64        `json:"speedScale"`
	PitchScale      float64        `json:"pitchScale"`
	IntonationScale float64        `json:"intonationScale"`
	VolumeScale     float64        `json:"volumeScale"`
	PrePhonemeLen   float64        `json:"prePhonemeLength"`
	PostPhonemeLen  float64        `json:"postPhonemeLength"`
	Kana            string         `json:"kana"`

	raw map[string]json.RawMessage
}

// Client calls one VOICEVOX engine instance.
type Client struct {
	endpoint string
	styleID  int
	speed    float64
	pitch    float64
	inton    float64
	http     *http.Client
}

// NewClient builds a synthesis client from the synthesis config section.
func NewClient(cfg config.SynthesisConfig) *Client {
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		styleID:  cfg.StyleID,
		speed:    cfg.SpeedScale,
		pitch:    cfg.PitchScale,
		inton:    cfg.IntonationScale,
		http:     &http.Client{Timeout: timeout},
	}
}

// StyleID returns the configured voice style.
func (c *Client) StyleID() int {
	return c.styleID
}

// AudioQuery asks the engine to build prosody for text, with the configured
// speed, pitch, and intonation scales already applied.
func (c *Client) AudioQuery(ctx context.Context, text string) (*Query, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("audio query text is empty")
	}

	endpoint := fmt.Sprintf("%s/audio_query?%s", c.endpoint, url.Values{
		"text":    {text},
		"speaker": {strconv.Itoa(c.styleID)},
	}.Encode())
	payload, err := c.post(ctx, endpoint, "", nil)
	if err != nil {
		return nil, fmt.Errorf("audio query: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("decode audio query: %w", err)
	}
	var query Query
	if err := json.Unmarshal(payload, &query); err != nil {
		return nil, fmt.Errorf("decode audio query: %w", err)
	}
	query.raw = raw

	query.SpeedScale = c.speed
	query.PitchScale = c.pitch
	query.IntonationScale = c.inton
	return &query, nil
}

// Synthesize renders a query into a WAV payload.
func (c *Client) Synthesize(ctx context.Context, query *Query) ([]byte, error) {
	if query == nil {
		return nil, fmt.Errorf("nil audio query")
	}
	body, err := query.encode()
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/synthesis?%s", c.endpoint, url.Values{
		"speaker": {strconv.Itoa(c.styleID)},
	}.Encode())
	wav, err := c.post(ctx, endpoint, "application/json", body)
	if err != nil {
		return nil, fmt.Errorf("synthesis: %w", err)
	}
	if len(wav) == 0 {
		return nil, fmt.Errorf("synthesis returned empty audio")
	}
	return wav, nil
}

// Version probes the engine and returns its version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/version", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("probe voicevox engine: %w", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("voicevox version returned %s", resp.Status)
	}
	return strings.Trim(strings.TrimSpace(string(payload)), `"`), nil
}

// encode rebuilds the query JSON, patching the scale fields into the raw
// document so engine fields this client does not model are preserved.
func (q *Query) encode() ([]byte, error) {
	doc := make(map[string]json.RawMessage, len(q.raw)+3)
	for k, v := range q.raw {
		doc[k] = v
	}
	for field, value := range map[string]float64{
		"speedScale":      q.SpeedScale,
		"pitchScale":      q.PitchScale,
		"intonationScale": q.IntonationScale,
	} {
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		doc[field] = encoded
	}
	return json.Marshal(doc)
}

func (c *Client) post(ctx context.Context, endpoint string, contentType string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, reader)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("engine returned %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}
	return payload, nil
}
