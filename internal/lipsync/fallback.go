package lipsync

// ReadingConverter turns logographic text into a phonetic (kana) reading.
// Optional; when absent, kanji characters simply get no mouth shape.
type ReadingConverter interface {
	Reading(text string) (string, error)
}

// Kana vowel classes for the character-based fallback. The "u" and "e"
// columns collapse into "o" and "a" respectively, matching the phoneme table.
const (
	aSounds = "あかがさざただなはばぱまやらわアカガサザタダナハバパマヤラワ"
	iSounds = "いきぎしじちぢにひびぴみりイキギシジチヂニヒビピミリ"
	oSounds = "うえおこごそぞとどのほぼぽもよろをンウエオコゴソゾトドノホボポモヨロヲン"
)

// CharSchedule is the heuristic fallback used when prosody introspection
// fails: every character gets a fixed time slot and a shape guessed from
// its kana vowel class. Speed scaling does not apply on this path.
func CharSchedule(text string, slotSeconds float64, converter ReadingConverter) []Event {
	if slotSeconds <= 0 {
		slotSeconds = 0.15
	}

	var events []Event
	current := 0.0
	for _, ch := range text {
		events = append(events, Event{
			Offset:   current,
			Shape:    charShape(ch, converter),
			Duration: slotSeconds,
		})
		current += slotSeconds
	}
	return events
}

// charShape classifies one character, converting kanji to its reading first
// when a converter is available and judging by the reading's first kana.
func charShape(ch rune, converter ReadingConverter) string {
	if isKanji(ch) && converter != nil {
		reading, err := converter.Reading(string(ch))
		if err == nil {
			for _, first := range reading {
				return kanaShape(first)
			}
		}
	}
	return kanaShape(ch)
}

func kanaShape(ch rune) string {
	switch {
	case containsRune(aSounds, ch):
		return "a"
	case containsRune(iSounds, ch):
		return "i"
	case containsRune(oSounds, ch):
		return "o"
	default:
		return ""
	}
}

func isKanji(ch rune) bool {
	return ch >= 0x4e00 && ch <= 0x9faf
}

func containsRune(s string, ch rune) bool {
	for _, r := range s {
		if r == ch {
			return true
		}
	}
	return false
}
