// Package events defines the typed notifications produced by the audio
// pipeline workers and the bounded queue that delivers them to a single
// consumer, keeping producer goroutines decoupled from UI thread rules.
package events

import (
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindDetection         Kind = "detection"
	KindTranscription     Kind = "transcription"
	KindSilence           Kind = "silence"
	KindPlaybackStarted   Kind = "playback_started"
	KindPlaybackCompleted Kind = "playback_completed"
)

// Event is one pipeline notification variant.
type Event interface {
	Kind() Kind
}

// Detection is an accepted wake-phrase hit. Immutable once created.
type Detection struct {
	ID            uuid.UUID
	At            time.Time
	Text          string
	Confidence    float64
	WindowSeconds float64
}

func (Detection) Kind() Kind { return KindDetection }

// Transcription is the decoded text of one finalized recording.
type Transcription struct {
	Text       string
	Confidence float64
}

func (Transcription) Kind() Kind { return KindTranscription }

// Silence reports that the recorder observed no voice for its timeout.
type Silence struct {
	Quiet time.Duration
}

func (Silence) Kind() Kind { return KindSilence }

// PlaybackStarted fires when the audio device call actually begins,
// not when synthesis starts.
type PlaybackStarted struct {
	Utterance string
}

func (PlaybackStarted) Kind() Kind { return KindPlaybackStarted }

// PlaybackCompleted fires after playback ends, naturally or by cancel.
type PlaybackCompleted struct {
	Utterance string
	Cancelled bool
}

func (PlaybackCompleted) Kind() Kind { return KindPlaybackCompleted }
