package wakeword

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hmori/siriusd/internal/audio"
	"github.com/hmori/siriusd/internal/config"
	"github.com/hmori/siriusd/internal/events"
	"github.com/hmori/siriusd/internal/ring"
	"github.com/hmori/siriusd/internal/stt"
)

// Transcriber is the speech-to-text dependency the detector drives.
type Transcriber interface {
	Transcribe(ctx context.Context, samples []int16, opts stt.Options) (stt.Result, error)
}

// FrameSource delivers fixed-size PCM frames until stopped.
type FrameSource interface {
	Frames() <-chan []int16
	Stop() error
}

// SourceFunc opens the microphone for one detection session.
type SourceFunc func(ctx context.Context) (FrameSource, error)

// Detector finds the wake phrase in continuously flowing audio. It owns a
// capture worker feeding the ring buffer and a detection worker that
// extracts tail windows, gates them by RMS volume, transcribes, and runs
// the matching policy, debounced by a cooldown after each acceptance.
type Detector struct {
	cfg         config.WakeWordConfig
	opts        stt.Options
	matcher     *Matcher
	transcriber Transcriber
	openSource  SourceFunc
	bus         *events.Bus
	logger      *slog.Logger

	buffer *ring.Buffer

	mu            sync.Mutex
	running       bool
	cancel        context.CancelFunc
	workers       sync.WaitGroup
	source        FrameSource
	lastDetection time.Time
	history       []events.Detection
}

// NewDetector wires a detector. The transcription options are fixed per
// detector; the wake path runs a fast, recall-leaning tuning.
func NewDetector(
	cfg config.WakeWordConfig,
	opts stt.Options,
	transcriber Transcriber,
	openSource SourceFunc,
	bus *events.Bus,
	logger *slog.Logger,
) *Detector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Detector{
		cfg:         cfg,
		opts:        opts,
		matcher:     NewMatcher(cfg),
		transcriber: transcriber,
		openSource:  openSource,
		bus:         bus,
		logger:      logger,
		buffer:      ring.New(audio.SampleRate),
	}
}

// Running reports whether a detection session is active.
func (d *Detector) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// History returns a copy of the bounded detection history, newest last.
func (d *Detector) History() []events.Detection {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]events.Detection(nil), d.history...)
}

// Start opens the microphone and launches the capture and detection
// workers. Starting an already-running detector is a no-op.
func (d *Detector) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return nil
	}

	source, err := d.openSource(ctx)
	if err != nil {
		d.mu.Unlock()
		return err
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	d.running = true
	d.cancel = cancel
	d.source = source
	d.buffer.Reset()
	d.workers.Add(2)
	d.mu.Unlock()

	go d.captureLoop(source)
	go d.detectLoop(sessionCtx)

	d.logger.Info("wake-word detection started",
		"phrase", d.cfg.Phrase,
		"window_s", d.cfg.WindowSeconds,
		"interval_s", d.cfg.ProcessingIntervalSeconds)
	return nil
}

// Stop ends the session and joins both workers. Idempotent. In-flight
// transcriptions run to completion; their results are discarded.
func (d *Detector) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	cancel := d.cancel
	source := d.source
	d.cancel = nil
	d.source = nil
	d.mu.Unlock()

	cancel()
	if source != nil {
		_ = source.Stop()
	}
	d.workers.Wait()
	d.buffer.Reset()
	d.logger.Info("wake-word detection stopped")
}

// captureLoop drains the frame source into the ring buffer. A closed
// source (device failure or Stop) ends the loop; device failures are
// fatal for the session and are not retried.
func (d *Detector) captureLoop(source FrameSource) {
	defer d.workers.Done()
	for frame := range source.Frames() {
		d.buffer.Append(frame)
	}
	d.logger.Debug("wake-word capture loop exited")
}

// detectLoop polls the ring buffer on the processing interval.
func (d *Detector) detectLoop(ctx context.Context) {
	defer d.workers.Done()

	interval := secondsToDuration(d.cfg.ProcessingIntervalSeconds, 300*time.Millisecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if detection, err := d.processWindow(ctx, time.Now()); err != nil {
				if !errors.Is(err, context.Canceled) {
					d.logger.Error("wake-word window processing failed", "error", err)
				}
			} else if detection != nil {
				d.bus.Publish(*detection)
			}
		}
	}
}

// processWindow runs one detection cycle: cooldown gate, window
// extraction, silence gate, transcription, matching. Returns nil with no
// error for every negative outcome that is not an engine failure.
func (d *Detector) processWindow(ctx context.Context, now time.Time) (*events.Detection, error) {
	d.mu.Lock()
	cooldown := secondsToDuration(d.cfg.CooldownSeconds, 2*time.Second)
	inCooldown := !d.lastDetection.IsZero() && now.Sub(d.lastDetection) < cooldown
	d.mu.Unlock()
	if inCooldown {
		return nil, nil
	}

	window := secondsToDuration(d.cfg.WindowSeconds, 1500*time.Millisecond)
	overlap := secondsToDuration(d.cfg.OverlapSeconds, 300*time.Millisecond)
	samples, ok := d.buffer.TryExtractWindow(window, overlap)
	if !ok {
		return nil, nil
	}

	if rms := audio.RMS(samples); rms < d.cfg.VolumeFloor {
		d.logger.Debug("window below volume floor", "rms", rms)
		return nil, nil
	}

	result, err := d.transcriber.Transcribe(ctx, samples, d.opts)
	if err != nil {
		return nil, err
	}
	if !d.Running() {
		// Session stopped while transcribing; discard the late result.
		return nil, nil
	}

	text := result.CombinedText()
	confidence := result.SimpleConfidence()
	accepted, reason := d.matcher.Match(text, confidence)
	d.logger.Debug("wake-word window decoded",
		"text", text,
		"confidence", confidence,
		"accepted", accepted,
		"reason", reason)
	if !accepted {
		return nil, nil
	}

	detection := events.Detection{
		ID:            uuid.New(),
		At:            now,
		Text:          text,
		Confidence:    confidence,
		WindowSeconds: d.cfg.WindowSeconds,
	}

	d.mu.Lock()
	d.lastDetection = now
	d.history = append(d.history, detection)
	if limit := d.cfg.MaxHistory; limit > 0 && len(d.history) > limit {
		d.history = d.history[len(d.history)-limit:]
	}
	d.mu.Unlock()

	d.logger.Info("wake phrase detected",
		"text", text,
		"confidence", confidence,
		"rule", reason)
	return &detection, nil
}

func secondsToDuration(seconds float64, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds * float64(time.Second))
}
