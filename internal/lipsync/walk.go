package lipsync

import (
	"log/slog"
	"time"
)

// Sink receives mouth-pattern updates during a timed walk. ApplySync blocks
// on the round trip and is used for the anchor updates at the start of an
// utterance; ApplyAsync is fire-and-forget; Clear restores the neutral mouth.
type Sink interface {
	ApplySync(pattern string) error
	ApplyAsync(pattern string)
	Clear()
}

// syncAnchorWindow covers the start of an utterance: updates this early are
// sent synchronously so their round trip anchors the timing, after which
// async updates keep round-trip jitter out of the schedule.
const syncAnchorWindow = 0.5

// Walker drives one mouth-shape schedule against running audio playback.
type Walker struct {
	Sink        Sink
	Clock       Clock
	Logger      *slog.Logger
	SettleDelay time.Duration
}

// Walk issues each visible event at audioStart+offset, polling active
// between events so an external cancel stops the walk within one event.
// The final clear runs unconditionally, cancelled or not. Returned stats
// classify per-update timing error and have no effect on control flow.
func (w *Walker) Walk(events []Event, audioStart time.Time, active func() bool) Stats {
	clock := w.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	logger := w.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var stats Stats
	first := true
	for _, ev := range Visible(events) {
		if active != nil && !active() {
			logger.Info("lipsync walk cancelled", "at_offset", ev.Offset)
			break
		}

		target := audioStart.Add(time.Duration(ev.Offset * float64(time.Second)))
		SleepUntil(clock, target)

		pattern := "mouth_" + ev.Shape
		if first || ev.Offset < syncAnchorWindow {
			if err := w.Sink.ApplySync(pattern); err != nil {
				logger.Warn("mouth pattern update failed", "pattern", pattern, "error", err)
			}
			first = false
		} else {
			w.Sink.ApplyAsync(pattern)
		}

		errMS := clock.Now().Sub(target).Abs().Milliseconds()
		switch {
		case errMS <= 5:
			stats.Perfect++
		case errMS <= 15:
			stats.Good++
		default:
			stats.Poor++
		}
	}

	if w.SettleDelay > 0 {
		clock.Sleep(w.SettleDelay)
	}
	w.Sink.Clear()

	if stats.Total() > 0 {
		logger.Info("lipsync walk complete",
			"updates", stats.Total(),
			"perfect", stats.Perfect,
			"good", stats.Good,
			"poor", stats.Poor,
			"perfect_rate", stats.PerfectRate())
	}
	return stats
}
