// Package speech orchestrates one spoken reply: synthesis, mouth-shape
// scheduling, external audio playback, and the timed lip-sync walk, with
// cancellation that kills the playback process mid-utterance.
package speech

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hmori/siriusd/internal/audio"
	"github.com/hmori/siriusd/internal/config"
	"github.com/hmori/siriusd/internal/events"
	"github.com/hmori/siriusd/internal/lipsync"
	"github.com/hmori/siriusd/internal/voicevox"
)

// Synthesizer produces prosody and audio for one utterance.
type Synthesizer interface {
	AudioQuery(ctx context.Context, text string) (*voicevox.Query, error)
	Synthesize(ctx context.Context, query *voicevox.Query) ([]byte, error)
}

// Player is one running playback process.
type Player interface {
	Wait() error
	Done() <-chan struct{}
	Terminate(grace time.Duration) bool
}

// PlayFunc launches the external playback command against a WAV path and
// returns once the process has started.
type PlayFunc func(argv []string, path string) (Player, error)

// playWAV adapts the audio package's process launcher to PlayFunc.
func playWAV(argv []string, path string) (Player, error) {
	return audio.PlayWAV(argv, path)
}

// terminateGrace bounds how long Cancel waits for the killed process.
const terminateGrace = 500 * time.Millisecond

// Controller speaks at most one utterance at a time.
type Controller struct {
	synth       Synthesizer
	sink        lipsync.Sink
	table       lipsync.ShapeTable
	reader      lipsync.ReadingConverter
	play        PlayFunc
	playbackCmd []string
	settleDelay time.Duration
	charSlot    float64
	clock       lipsync.Clock
	bus         *events.Bus
	logger      *slog.Logger

	active atomic.Bool

	mu       sync.Mutex
	speaking bool
	playback Player
	done     chan struct{}
}

// NewController wires a speech controller from the lipsync and audio
// config sections. reader may be nil; kanji then get no fallback shape.
func NewController(
	synth Synthesizer,
	sink lipsync.Sink,
	lipsyncCfg config.LipsyncConfig,
	audioCfg config.AudioConfig,
	reader lipsync.ReadingConverter,
	bus *events.Bus,
	logger *slog.Logger,
) *Controller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	settle := time.Duration(lipsyncCfg.SettleDelayMS) * time.Millisecond
	if settle <= 0 {
		settle = 200 * time.Millisecond
	}
	charSlot := float64(lipsyncCfg.CharSlotMS) / 1000
	return &Controller{
		synth:       synth,
		sink:        sink,
		table:       lipsync.ShapeTable(lipsyncCfg.MouthShapes),
		reader:      reader,
		play:        playWAV,
		playbackCmd: audioCfg.PlaybackCmd.Argv,
		settleDelay: settle,
		charSlot:    charSlot,
		clock:       lipsync.SystemClock{},
		bus:         bus,
		logger:      logger,
	}
}

// Speaking reports whether an utterance is in flight.
func (c *Controller) Speaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speaking
}

// Speak starts speaking text in the background. A second Speak while one
// utterance is in flight is a no-op; completion is reported on the bus.
func (c *Controller) Speak(ctx context.Context, text string) {
	c.mu.Lock()
	if c.speaking {
		c.mu.Unlock()
		c.logger.Warn("speak ignored, already speaking")
		return
	}
	c.speaking = true
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	c.active.Store(true)
	go c.run(ctx, text, done)
}

// Cancel stops the in-flight utterance: kills the playback process, lets
// the walk clear the mouth, and waits for the completion notification.
// Returns false when nothing was speaking.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	if !c.speaking {
		c.mu.Unlock()
		return false
	}
	playback := c.playback
	done := c.done
	c.mu.Unlock()

	c.active.Store(false)
	if playback != nil {
		playback.Terminate(terminateGrace)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		c.logger.Error("speak worker did not finish after cancel")
	}
	return true
}

// run is the per-utterance worker.
func (c *Controller) run(ctx context.Context, text string, done chan struct{}) {
	cancelled := false
	defer func() {
		c.mu.Lock()
		c.speaking = false
		c.playback = nil
		c.mu.Unlock()
		close(done)
		c.bus.Publish(events.PlaybackCompleted{Utterance: text, Cancelled: cancelled})
	}()

	query, err := c.synth.AudioQuery(ctx, text)
	if err != nil {
		c.logger.Error("audio query failed", "error", err)
		return
	}

	schedule, err := lipsync.BuildSchedule(query, c.table)
	if err != nil {
		c.logger.Warn("prosody analysis failed, using character fallback", "error", err)
		schedule = lipsync.CharSchedule(text, c.charSlot, c.reader)
	}

	wav, err := c.synth.Synthesize(ctx, query)
	if err != nil {
		c.logger.Error("synthesis failed", "error", err)
		return
	}

	path, err := writeTempWAV(wav)
	if err != nil {
		c.logger.Error("write synthesis artifact failed", "error", err)
		return
	}
	defer os.Remove(path)

	if !c.active.Load() {
		// Cancelled during synthesis, before any audio started.
		cancelled = true
		return
	}

	playback, err := c.play(c.playbackCmd, path)
	if err != nil {
		c.logger.Error("start playback failed", "error", err)
		return
	}
	audioStart := c.clock.Now()

	c.mu.Lock()
	c.playback = playback
	c.mu.Unlock()
	if !c.active.Load() {
		// Cancel raced playback startup and missed the process handle.
		playback.Terminate(terminateGrace)
	}

	c.bus.Publish(events.PlaybackStarted{Utterance: text})
	c.logger.Info("playback started", "chars", len([]rune(text)), "events", len(schedule))

	walker := &lipsync.Walker{
		Sink:        c.sink,
		Clock:       c.clock,
		Logger:      c.logger,
		SettleDelay: c.settleDelay,
	}
	stats := walker.Walk(schedule, audioStart, c.active.Load)

	if err := playback.Wait(); err != nil && c.active.Load() {
		c.logger.Warn("playback process exited with error", "error", err)
	}
	cancelled = !c.active.Load()
	c.active.Store(false)

	c.logger.Info("playback finished",
		"cancelled", cancelled,
		"sync_perfect", stats.Perfect,
		"sync_good", stats.Good,
		"sync_poor", stats.Poor)
}

func writeTempWAV(wav []byte) (string, error) {
	file, err := os.CreateTemp("", "siriusd-say-*.wav")
	if err != nil {
		return "", err
	}
	path := file.Name()
	if _, err := file.Write(wav); err != nil {
		file.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write wav artifact: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}
