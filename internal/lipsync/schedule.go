package lipsync

import (
	"errors"

	"github.com/hmori/siriusd/internal/voicevox"
)

// defaultPhonemeLength stands in for engine entries that report no length.
const defaultPhonemeLength = 0.1

// BuildSchedule walks an audio query's accent phrases in order and emits a
// mouth-shape event per consonant and vowel, plus silence entries for
// inter-phrase pauses. Every duration is divided by the query's speed
// scale, so faster speech compresses the whole timeline linearly.
func BuildSchedule(query *voicevox.Query, table ShapeTable) ([]Event, error) {
	if query == nil || len(query.AccentPhrases) == 0 {
		return nil, errors.New("audio query has no accent phrases")
	}

	speed := query.SpeedScale
	if speed <= 0 {
		speed = 1.0
	}

	var events []Event
	current := 0.0
	push := func(shape string, duration float64) {
		events = append(events, Event{Offset: current, Shape: shape, Duration: duration})
		current += duration
	}

	for _, phrase := range query.AccentPhrases {
		for _, mora := range phrase.Moras {
			if mora.Consonant != nil && *mora.Consonant != "" {
				length := defaultPhonemeLength
				if mora.ConsonantLength != nil && *mora.ConsonantLength > 0 {
					length = *mora.ConsonantLength
				}
				push(table.Lookup(*mora.Consonant), length/speed)
			}
			if mora.Vowel != "" {
				length := mora.VowelLength
				if length <= 0 {
					length = defaultPhonemeLength
				}
				push(table.Lookup(mora.Vowel), length/speed)
			}
		}
		if phrase.PauseMora != nil && phrase.PauseMora.VowelLength > 0 {
			push("", phrase.PauseMora.VowelLength/speed)
		}
	}

	if len(events) == 0 {
		return nil, errors.New("audio query produced no phonemes")
	}
	return events, nil
}
