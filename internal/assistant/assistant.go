// Package assistant runs the conversation loop: wake-word listening,
// utterance recording, reply generation, and spoken playback, advancing a
// pure state machine on each pipeline event.
package assistant

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/hmori/siriusd/internal/events"
	"github.com/hmori/siriusd/internal/fsm"
)

// Listener is the wake-word detection session.
type Listener interface {
	Start(ctx context.Context) error
	Stop()
	Running() bool
	History() []events.Detection
}

// UtteranceRecorder is one-shot recording with self-finalizing silence.
type UtteranceRecorder interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) *events.Transcription
	Done() <-chan struct{}
	Result() *events.Transcription
	Recording() bool
}

// Replier produces the assistant's reply to transcribed user text.
type Replier interface {
	Reply(ctx context.Context, userText string) string
}

// Speaker plays a spoken reply with lip sync.
type Speaker interface {
	Speak(ctx context.Context, text string)
	Cancel() bool
	Speaking() bool
}

// Status is a point-in-time snapshot for diagnostics and IPC.
type Status struct {
	State      fsm.State `json:"state"`
	Listening  bool      `json:"listening"`
	Recording  bool      `json:"recording"`
	Speaking   bool      `json:"speaking"`
	Detections int       `json:"detections"`
	Dropped    int64     `json:"events_dropped"`
}

// Assistant owns the event loop. All state transitions happen on the loop
// goroutine; control methods only publish work into it.
type Assistant struct {
	listener Listener
	recorder UtteranceRecorder
	replier  Replier
	speaker  Speaker
	bus      *events.Bus
	logger   *slog.Logger

	recFinished chan *events.Transcription
	sayRequests chan string

	mu    sync.Mutex
	state fsm.State
}

// New wires the conversation loop.
func New(
	listener Listener,
	recorder UtteranceRecorder,
	replier Replier,
	speaker Speaker,
	bus *events.Bus,
	logger *slog.Logger,
) *Assistant {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Assistant{
		listener:    listener,
		recorder:    recorder,
		replier:     replier,
		speaker:     speaker,
		bus:         bus,
		logger:      logger,
		recFinished: make(chan *events.Transcription, 1),
		sayRequests: make(chan string, 4),
		state:       fsm.StateIdle,
	}
}

// State returns the current conversation state.
func (a *Assistant) State() fsm.State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Snapshot builds a status report for IPC and the doctor.
func (a *Assistant) Snapshot() Status {
	return Status{
		State:      a.State(),
		Listening:  a.listener.Running(),
		Recording:  a.recorder.Recording(),
		Speaking:   a.speaker.Speaking(),
		Detections: len(a.listener.History()),
		Dropped:    a.bus.Dropped(),
	}
}

// Say queues text to be spoken out of band, outside the wake flow.
func (a *Assistant) Say(text string) {
	select {
	case a.sayRequests <- text:
	default:
		a.logger.Warn("say request dropped, queue full")
	}
}

// CancelSpeech aborts the in-flight utterance, if any.
func (a *Assistant) CancelSpeech() bool {
	return a.speaker.Cancel()
}

// Run drives the loop until ctx ends. It owns the microphone handoff:
// the wake detector and the recorder never hold the device at once.
func (a *Assistant) Run(ctx context.Context) error {
	if err := a.startListening(ctx); err != nil {
		return err
	}
	defer a.teardown()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case text := <-a.sayRequests:
			a.speaker.Speak(ctx, text)

		case result := <-a.recFinished:
			a.handleRecordingFinished(ctx, result)

		case ev := <-a.bus.C():
			a.handleEvent(ctx, ev)
		}
	}
}

func (a *Assistant) handleEvent(ctx context.Context, ev events.Event) {
	switch ev := ev.(type) {
	case events.Detection:
		if a.State() != fsm.StateListening {
			return
		}
		a.logger.Info("wake detected, recording utterance",
			"text", ev.Text, "confidence", ev.Confidence)
		a.advance(fsm.EventWake)

		// Device handoff: the detector must release the microphone
		// before the recorder opens it.
		a.listener.Stop()
		if err := a.recorder.Start(ctx); err != nil {
			a.logger.Error("recorder start failed", "error", err)
			a.advance(fsm.EventCancel)
			a.resumeListening(ctx)
			return
		}
		go a.watchRecording(ctx)

	case events.Silence:
		a.logger.Debug("silence ended the recording", "quiet_ms", ev.Quiet.Milliseconds())

	case events.Transcription:
		// Informational here; the recording watcher owns the handoff.

	case events.PlaybackStarted:
		a.logger.Debug("speaking", "utterance", ev.Utterance)

	case events.PlaybackCompleted:
		if a.State() != fsm.StateSpeaking {
			return
		}
		a.advance(fsm.EventSpoken)
		a.resumeListening(ctx)
	}
}

// watchRecording waits for the recorder to finalize and feeds the result
// back into the loop, nil result included.
func (a *Assistant) watchRecording(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-a.recorder.Done():
		a.recFinished <- a.recorder.Result()
	}
}

func (a *Assistant) handleRecordingFinished(ctx context.Context, result *events.Transcription) {
	if a.State() != fsm.StateRecording {
		return
	}

	if result == nil || strings.TrimSpace(result.Text) == "" {
		a.logger.Info("recording produced no usable text, resuming listening")
		a.advance(fsm.EventCancel)
		a.resumeListening(ctx)
		return
	}

	a.advance(fsm.EventCaptured)
	a.logger.Info("user utterance", "text", result.Text, "confidence", result.Confidence)

	reply := a.replier.Reply(ctx, result.Text)
	a.advance(fsm.EventReply)
	a.speaker.Speak(ctx, reply)
}

func (a *Assistant) startListening(ctx context.Context) error {
	if err := a.listener.Start(ctx); err != nil {
		return err
	}
	a.advance(fsm.EventListen)
	return nil
}

func (a *Assistant) resumeListening(ctx context.Context) {
	if err := a.listener.Start(ctx); err != nil {
		a.logger.Error("resume listening failed", "error", err)
		a.advance(fsm.EventFail)
	}
}

func (a *Assistant) teardown() {
	a.listener.Stop()
	if a.recorder.Recording() {
		a.recorder.Stop(context.Background())
	}
	a.speaker.Cancel()
	a.setState(fsm.StateIdle)
	a.logger.Info("assistant loop stopped")
}

// advance applies one fsm event; invalid transitions are logged, never fatal.
func (a *Assistant) advance(event fsm.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	next, err := fsm.Transition(a.state, event)
	if err != nil {
		a.logger.Warn("state transition rejected",
			"state", string(a.state), "event", string(event), "error", err)
		return
	}
	a.state = next
}

func (a *Assistant) setState(s fsm.State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}
