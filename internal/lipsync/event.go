// Package lipsync converts synthesized prosody into a timed mouth-shape
// schedule and walks that schedule against live audio playback with
// sub-5ms target precision.
package lipsync

// Event is one entry in a mouth-shape schedule. Offset and Duration are in
// seconds from utterance start. An empty Shape marks silence; silence
// entries stay in the schedule for introspection but are skipped during
// playback.
type Event struct {
	Offset   float64
	Shape    string
	Duration float64
}

// Silent reports whether the event carries no visible mouth shape.
func (e Event) Silent() bool {
	return e.Shape == ""
}

// Visible filters a schedule down to the entries playback acts on.
func Visible(events []Event) []Event {
	out := make([]Event, 0, len(events))
	for _, ev := range events {
		if !ev.Silent() {
			out = append(out, ev)
		}
	}
	return out
}

// TotalDuration sums every event's duration, silence included.
func TotalDuration(events []Event) float64 {
	var total float64
	for _, ev := range events {
		total += ev.Duration
	}
	return total
}

// Stats counts mouth-shape updates by timing-error band. The bands are
// observability only and never influence the walk itself.
type Stats struct {
	Perfect int // within 5ms of target
	Good    int // within 15ms
	Poor    int // everything else
}

// Total returns the number of classified updates.
func (s Stats) Total() int {
	return s.Perfect + s.Good + s.Poor
}

// PerfectRate returns the share of updates within the 5ms band.
func (s Stats) PerfectRate() float64 {
	total := s.Total()
	if total == 0 {
		return 0
	}
	return float64(s.Perfect) / float64(total) * 100
}
