package lipsync

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hmori/siriusd/internal/voicevox"
)

func testTable() ShapeTable {
	return ShapeTable{
		"a": "a", "i": "i", "u": "o", "e": "a", "o": "o",
		"k": "a", "s": "i", "n": "o", "N": "o",
		"sil": "", "pau": "", "cl": "", "q": "",
	}
}

func strptr(s string) *string   { return &s }
func f64ptr(v float64) *float64 { return &v }

func mora(consonant string, consonantLen float64, vowel string, vowelLen float64) voicevox.Mora {
	m := voicevox.Mora{Vowel: vowel, VowelLength: vowelLen}
	if consonant != "" {
		m.Consonant = strptr(consonant)
		m.ConsonantLength = f64ptr(consonantLen)
	}
	return m
}

func TestBuildScheduleBasic(t *testing.T) {
	query := &voicevox.Query{
		SpeedScale: 1.0,
		AccentPhrases: []voicevox.AccentPhrase{{
			Moras: []voicevox.Mora{mora("k", 0.1, "a", 0.1)},
		}},
	}

	events, err := BuildSchedule(query, testTable())
	require.NoError(t, err)
	require.Len(t, events, 2)

	require.InDelta(t, 0.0, events[0].Offset, 1e-9)
	require.Equal(t, "a", events[0].Shape)
	require.InDelta(t, 0.1, events[0].Duration, 1e-9)

	require.InDelta(t, 0.1, events[1].Offset, 1e-9)
	require.Equal(t, "a", events[1].Shape)
	require.InDelta(t, 0.1, events[1].Duration, 1e-9)
}

func TestBuildScheduleSpeedScaleHalvesDurations(t *testing.T) {
	phrases := []voicevox.AccentPhrase{{
		Moras: []voicevox.Mora{
			mora("k", 0.05, "o", 0.12),
			mora("", 0, "N", 0.08),
		},
		PauseMora: &voicevox.Mora{Vowel: "pau", VowelLength: 0.3},
	}}

	normal, err := BuildSchedule(&voicevox.Query{SpeedScale: 1.0, AccentPhrases: phrases}, testTable())
	require.NoError(t, err)
	double, err := BuildSchedule(&voicevox.Query{SpeedScale: 2.0, AccentPhrases: phrases}, testTable())
	require.NoError(t, err)

	require.Len(t, double, len(normal))
	require.InDelta(t, TotalDuration(normal)/2, TotalDuration(double), 1e-9)
	for i := range normal {
		require.InDelta(t, normal[i].Duration/2, double[i].Duration, 1e-9)
		require.InDelta(t, normal[i].Offset/2, double[i].Offset, 1e-9)
	}
}

func TestBuildScheduleOffsetsMonotonic(t *testing.T) {
	query := &voicevox.Query{
		SpeedScale: 1.0,
		AccentPhrases: []voicevox.AccentPhrase{
			{
				Moras:     []voicevox.Mora{mora("s", 0.04, "i", 0.09), mora("", 0, "o", 0.11)},
				PauseMora: &voicevox.Mora{Vowel: "pau", VowelLength: 0.2},
			},
			{
				Moras: []voicevox.Mora{mora("k", 0.06, "u", 0.1)},
			},
		},
	}

	events, err := BuildSchedule(query, testTable())
	require.NoError(t, err)
	require.Len(t, events, 6)

	prev := -1.0
	for _, ev := range events {
		require.GreaterOrEqual(t, ev.Offset, prev)
		prev = ev.Offset
	}
	// Offsets accumulate exactly: each event starts where the previous ended.
	for i := 1; i < len(events); i++ {
		require.InDelta(t, events[i-1].Offset+events[i-1].Duration, events[i].Offset, 1e-9)
	}
}

func TestBuildSchedulePauseIsSilence(t *testing.T) {
	query := &voicevox.Query{
		SpeedScale: 1.0,
		AccentPhrases: []voicevox.AccentPhrase{{
			Moras:     []voicevox.Mora{mora("", 0, "a", 0.1)},
			PauseMora: &voicevox.Mora{Vowel: "pau", VowelLength: 0.25},
		}},
	}

	events, err := BuildSchedule(query, testTable())
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.True(t, events[1].Silent())

	visible := Visible(events)
	require.Len(t, visible, 1)
	require.Equal(t, "a", visible[0].Shape)
}

func TestBuildScheduleDefaultsMissingLengths(t *testing.T) {
	query := &voicevox.Query{
		SpeedScale: 1.0,
		AccentPhrases: []voicevox.AccentPhrase{{
			Moras: []voicevox.Mora{{Consonant: strptr("k"), Vowel: "a"}},
		}},
	}

	events, err := BuildSchedule(query, testTable())
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.InDelta(t, defaultPhonemeLength, events[0].Duration, 1e-9)
	require.InDelta(t, defaultPhonemeLength, events[1].Duration, 1e-9)
}

func TestBuildScheduleRejectsEmptyQuery(t *testing.T) {
	_, err := BuildSchedule(nil, testTable())
	require.Error(t, err)
	_, err = BuildSchedule(&voicevox.Query{}, testTable())
	require.Error(t, err)
}

func TestShapeTableLookup(t *testing.T) {
	table := testTable()
	require.Equal(t, "i", table.Lookup("s"))
	require.Equal(t, "", table.Lookup("sil"))
	require.Equal(t, "a", table.Lookup("zz"), "unknown phonemes fall back to a")
}
