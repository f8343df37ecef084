// Package recorder captures one bounded utterance from the microphone,
// watches for trailing silence, and transcribes the finalized audio.
package recorder

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hmori/siriusd/internal/audio"
	"github.com/hmori/siriusd/internal/config"
	"github.com/hmori/siriusd/internal/events"
	"github.com/hmori/siriusd/internal/stt"
)

// Transcriber is the speech-to-text dependency for finalized recordings.
type Transcriber interface {
	Transcribe(ctx context.Context, samples []int16, opts stt.Options) (stt.Result, error)
}

// FrameSource delivers fixed-size PCM frames until stopped.
type FrameSource interface {
	Frames() <-chan []int16
	Stop() error
}

// SourceFunc opens the microphone for one recording session.
type SourceFunc func(ctx context.Context) (FrameSource, error)

// Recorder runs one recording session at a time: a capture worker collects
// frames and tracks the last moment voice was heard, while a silence
// monitor ends the session once the voice has been quiet for the timeout.
type Recorder struct {
	cfg         config.RecorderConfig
	opts        stt.Options
	transcriber Transcriber
	openSource  SourceFunc
	bus         *events.Bus
	logger      *slog.Logger
	dumpAudio   bool

	mu        sync.Mutex
	recording bool
	source    FrameSource
	cancel    context.CancelFunc
	samples   []int16
	lastVoice time.Time
	workers   sync.WaitGroup
	done      chan struct{}
	result    *events.Transcription
}

// NewRecorder wires a recorder. The transcription options are the
// precision-leaning utterance tuning.
func NewRecorder(
	cfg config.RecorderConfig,
	opts stt.Options,
	transcriber Transcriber,
	openSource SourceFunc,
	bus *events.Bus,
	logger *slog.Logger,
	dumpAudio bool,
) *Recorder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Recorder{
		cfg:         cfg,
		opts:        opts,
		transcriber: transcriber,
		openSource:  openSource,
		bus:         bus,
		logger:      logger,
		dumpAudio:   dumpAudio,
	}
}

// Recording reports whether a session is active.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Done returns the channel closed when the current session finalizes.
// Valid between Start and the next Start.
func (r *Recorder) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// Result returns the session's transcription after Done, nil when the
// recording was discarded (too short or transcription failed).
func (r *Recorder) Result() *events.Transcription {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result
}

// Start opens the microphone and begins capturing. Starting while already
// recording is a no-op.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.recording {
		r.mu.Unlock()
		return nil
	}

	source, err := r.openSource(ctx)
	if err != nil {
		r.mu.Unlock()
		return err
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	r.recording = true
	r.source = source
	r.cancel = cancel
	r.samples = nil
	r.lastVoice = time.Now()
	r.done = make(chan struct{})
	r.result = nil
	r.workers.Add(2)
	r.mu.Unlock()

	go r.captureLoop(source)
	go r.silenceLoop(sessionCtx)

	r.logger.Info("recording started",
		"silence_timeout_s", r.cfg.SilenceTimeoutSeconds,
		"voice_threshold", r.cfg.VoiceThreshold)
	return nil
}

// Stop ends the session manually and finalizes the recording, blocking
// until transcription completes. Idempotent; returns the session result.
func (r *Recorder) Stop(ctx context.Context) *events.Transcription {
	r.finalize(ctx)
	return r.Result()
}

// captureLoop collects frames and advances lastVoice on voiced audio.
func (r *Recorder) captureLoop(source FrameSource) {
	defer r.workers.Done()
	for frame := range source.Frames() {
		voiced := audio.RMS(frame) > r.cfg.VoiceThreshold
		r.mu.Lock()
		if !r.recording {
			// Late frame after stop; drop it.
			r.mu.Unlock()
			continue
		}
		r.samples = append(r.samples, frame...)
		if voiced {
			r.lastVoice = time.Now()
		}
		r.mu.Unlock()
	}
}

// silenceLoop polls the quiet duration and fires the silence notification
// exactly once, which finalizes the session from a fresh goroutine.
func (r *Recorder) silenceLoop(ctx context.Context) {
	defer r.workers.Done()

	timeout := time.Duration(r.cfg.SilenceTimeoutSeconds * float64(time.Second))
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.mu.Lock()
			quiet := time.Since(r.lastVoice)
			active := r.recording
			r.mu.Unlock()
			if !active {
				return
			}
			if quiet >= timeout {
				r.logger.Info("silence detected", "quiet_ms", quiet.Milliseconds())
				r.bus.Publish(events.Silence{Quiet: quiet})
				go r.finalize(context.Background())
				return
			}
		}
	}
}

// finalize tears down the session and processes the captured audio. Only
// the first caller per session does the work.
func (r *Recorder) finalize(ctx context.Context) {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return
	}
	r.recording = false
	source := r.source
	cancel := r.cancel
	done := r.done
	r.source = nil
	r.cancel = nil
	r.mu.Unlock()

	cancel()
	if source != nil {
		_ = source.Stop()
	}
	r.workers.Wait()

	r.mu.Lock()
	samples := r.samples
	r.samples = nil
	r.mu.Unlock()

	result := r.processRecording(ctx, samples)

	r.mu.Lock()
	r.result = result
	r.mu.Unlock()

	if result != nil {
		r.bus.Publish(*result)
	}
	close(done)
}

// processRecording validates and transcribes the finalized audio. A
// too-small artifact is a negative outcome, not an error: the session
// simply reports no result. The temp artifact is removed on every path
// unless audio dumping is enabled.
func (r *Recorder) processRecording(ctx context.Context, samples []int16) *events.Transcription {
	artifact := audio.EncodeWAV(samples, audio.SampleRate)
	if len(artifact) < r.cfg.MinArtifactBytes {
		r.logger.Info("recording too short, discarded",
			"bytes", len(artifact),
			"floor", r.cfg.MinArtifactBytes)
		return nil
	}

	path, err := r.writeArtifact(artifact)
	if err != nil {
		r.logger.Error("write recording artifact failed", "error", err)
		return nil
	}
	if !r.dumpAudio {
		defer func() {
			if removeErr := os.Remove(path); removeErr != nil {
				r.logger.Warn("remove recording artifact failed", "path", path, "error", removeErr)
			}
		}()
	} else {
		r.logger.Info("recording artifact kept", "path", path)
	}

	result, err := r.transcriber.Transcribe(ctx, samples, r.opts)
	if err != nil {
		r.logger.Error("recording transcription failed", "error", err)
		return nil
	}

	transcription := &events.Transcription{
		Text:       result.CombinedText(),
		Confidence: result.DetailedConfidence(),
	}
	r.logger.Info("recording transcribed",
		"text", transcription.Text,
		"confidence", transcription.Confidence,
		"audio_s", float64(len(samples))/float64(audio.SampleRate))
	return transcription
}

func (r *Recorder) writeArtifact(artifact []byte) (string, error) {
	file, err := os.CreateTemp("", "siriusd-rec-*.wav")
	if err != nil {
		return "", err
	}
	path := file.Name()
	if _, err := file.Write(artifact); err != nil {
		file.Close()
		_ = os.Remove(path)
		return "", err
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return filepath.Clean(path), nil
}
