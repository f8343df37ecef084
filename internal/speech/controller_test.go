package speech

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hmori/siriusd/internal/config"
	"github.com/hmori/siriusd/internal/events"
	"github.com/hmori/siriusd/internal/voicevox"
)

type fakeSynth struct {
	query    *voicevox.Query
	queryErr error
	wav      []byte
	wavErr   error
	queries  atomic.Int64
}

func (f *fakeSynth) AudioQuery(context.Context, string) (*voicevox.Query, error) {
	f.queries.Add(1)
	return f.query, f.queryErr
}

func (f *fakeSynth) Synthesize(context.Context, *voicevox.Query) ([]byte, error) {
	return f.wav, f.wavErr
}

type fakeSink struct {
	mu       sync.Mutex
	patterns []string
	clears   int
}

func (s *fakeSink) ApplySync(pattern string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patterns = append(s.patterns, pattern)
	return nil
}

func (s *fakeSink) ApplyAsync(pattern string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patterns = append(s.patterns, pattern)
}

func (s *fakeSink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears++
}

func (s *fakeSink) snapshot() ([]string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.patterns...), s.clears
}

type fakePlayer struct {
	done       chan struct{}
	closeOnce  sync.Once
	terminated atomic.Bool
}

func newFakePlayer(finished bool) *fakePlayer {
	p := &fakePlayer{done: make(chan struct{})}
	if finished {
		p.finish()
	}
	return p
}

func (p *fakePlayer) finish() { p.closeOnce.Do(func() { close(p.done) }) }

func (p *fakePlayer) Wait() error { <-p.done; return nil }

func (p *fakePlayer) Done() <-chan struct{} { return p.done }

func (p *fakePlayer) Terminate(time.Duration) bool {
	select {
	case <-p.done:
		return false
	default:
		p.terminated.Store(true)
		p.finish()
		return true
	}
}

func tinyQuery() *voicevox.Query {
	k := "k"
	kl := 0.005
	return &voicevox.Query{
		SpeedScale: 1.0,
		AccentPhrases: []voicevox.AccentPhrase{{
			Moras: []voicevox.Mora{
				{Consonant: &k, ConsonantLength: &kl, Vowel: "o", VowelLength: 0.005},
				{Vowel: "N", VowelLength: 0.005},
			},
		}},
	}
}

func testController(synth Synthesizer, sink *fakeSink, play PlayFunc) (*Controller, *events.Bus) {
	bus := events.NewBus(nil, 16)
	cfg := config.Default()
	cfg.Lipsync.SettleDelayMS = 1

	ctrl := NewController(synth, sink, cfg.Lipsync, cfg.Audio, nil, bus, nil)
	ctrl.play = play
	return ctrl, bus
}

func drainUntil(t *testing.T, bus *events.Bus, kind events.Kind) events.Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-bus.C():
			if ev.Kind() == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("no %s event arrived", kind)
		}
	}
}

func TestSpeakHappyPath(t *testing.T) {
	synth := &fakeSynth{query: tinyQuery(), wav: []byte("RIFFwav")}
	sink := &fakeSink{}
	player := newFakePlayer(true)
	ctrl, bus := testController(synth, sink, func([]string, string) (Player, error) {
		return player, nil
	})

	ctrl.Speak(context.Background(), "こんにちは")

	started := drainUntil(t, bus, events.KindPlaybackStarted)
	require.Equal(t, "こんにちは", started.(events.PlaybackStarted).Utterance)

	completed := drainUntil(t, bus, events.KindPlaybackCompleted).(events.PlaybackCompleted)
	require.False(t, completed.Cancelled)
	require.False(t, ctrl.Speaking())

	patterns, clears := sink.snapshot()
	require.Len(t, patterns, 3, "one update per visible phoneme")
	require.Equal(t, "mouth_a", patterns[0], "k maps to a")
	require.Equal(t, "mouth_o", patterns[1])
	require.Equal(t, "mouth_o", patterns[2], "N maps to o")
	require.Equal(t, 1, clears)
}

func TestSpeakWhileSpeakingIsNoop(t *testing.T) {
	synth := &fakeSynth{query: tinyQuery(), wav: []byte("RIFFwav")}
	sink := &fakeSink{}
	player := newFakePlayer(false)

	var launches atomic.Int64
	ctrl, bus := testController(synth, sink, func([]string, string) (Player, error) {
		launches.Add(1)
		return player, nil
	})

	ctrl.Speak(context.Background(), "ひとつめ")
	drainUntil(t, bus, events.KindPlaybackStarted)

	ctrl.Speak(context.Background(), "ふたつめ")
	require.Equal(t, int64(1), synth.queries.Load(), "second speak never reaches synthesis")

	player.finish()
	completed := drainUntil(t, bus, events.KindPlaybackCompleted).(events.PlaybackCompleted)
	require.Equal(t, "ひとつめ", completed.Utterance)
	require.Equal(t, int64(1), launches.Load())
}

func TestCancelStopsPlayback(t *testing.T) {
	synth := &fakeSynth{query: tinyQuery(), wav: []byte("RIFFwav")}
	sink := &fakeSink{}
	player := newFakePlayer(false)
	ctrl, bus := testController(synth, sink, func([]string, string) (Player, error) {
		return player, nil
	})

	require.False(t, ctrl.Cancel(), "nothing speaking yet")

	ctrl.Speak(context.Background(), "長い長い返事")
	drainUntil(t, bus, events.KindPlaybackStarted)

	require.True(t, ctrl.Cancel())
	require.True(t, player.terminated.Load())

	completed := drainUntil(t, bus, events.KindPlaybackCompleted).(events.PlaybackCompleted)
	require.True(t, completed.Cancelled)
	require.False(t, ctrl.Speaking())

	_, clears := sink.snapshot()
	require.GreaterOrEqual(t, clears, 1, "mouth cleared after cancel")

	require.False(t, ctrl.Cancel(), "cancel is idempotent")
}

func TestSpeakFallsBackToCharSchedule(t *testing.T) {
	// Query with no accent phrases: prosody analysis fails, the character
	// heuristic takes over.
	synth := &fakeSynth{query: &voicevox.Query{SpeedScale: 1.0}, wav: []byte("RIFFwav")}
	sink := &fakeSink{}
	ctrl, bus := testController(synth, sink, func([]string, string) (Player, error) {
		return newFakePlayer(true), nil
	})
	ctrl.charSlot = 0.005

	ctrl.Speak(context.Background(), "かし")
	drainUntil(t, bus, events.KindPlaybackCompleted)

	patterns, clears := sink.snapshot()
	require.Equal(t, []string{"mouth_a", "mouth_i"}, patterns)
	require.Equal(t, 1, clears)
}

func TestSpeakSynthesisFailure(t *testing.T) {
	synth := &fakeSynth{query: tinyQuery(), wavErr: errors.New("engine down")}
	sink := &fakeSink{}

	var launches atomic.Int64
	ctrl, bus := testController(synth, sink, func([]string, string) (Player, error) {
		launches.Add(1)
		return newFakePlayer(true), nil
	})

	ctrl.Speak(context.Background(), "こんにちは")

	completed := drainUntil(t, bus, events.KindPlaybackCompleted).(events.PlaybackCompleted)
	require.False(t, completed.Cancelled)
	require.Zero(t, launches.Load(), "no playback after failed synthesis")
	require.False(t, ctrl.Speaking())
}
