package stt

import "strings"

// Word is one word-level timestamp entry from a verbose transcription.
type Word struct {
	Word        string  `json:"word"`
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Probability float64 `json:"probability"`
}

// Segment is one decoded segment from a verbose transcription.
type Segment struct {
	Text       string  `json:"text"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	AvgLogProb float64 `json:"avg_logprob"`
	Words      []Word  `json:"words"`
}

// Info carries whole-request metadata from a verbose transcription.
type Info struct {
	Language            string  `json:"language"`
	LanguageProbability float64 `json:"language_probability"`
	Duration            float64 `json:"duration"`
}

// Result is a parsed verbose_json transcription response.
type Result struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
	Info     Info      `json:"-"`
}

// CombinedText joins segment texts, preferring them over the top-level text
// field, which some servers leave empty when segments are present.
func (r Result) CombinedText() string {
	if len(r.Segments) == 0 {
		return strings.TrimSpace(r.Text)
	}
	parts := make([]string, 0, len(r.Segments))
	for _, seg := range r.Segments {
		if t := strings.TrimSpace(seg.Text); t != "" {
			parts = append(parts, t)
		}
	}
	if len(parts) == 0 {
		return strings.TrimSpace(r.Text)
	}
	return strings.Join(parts, "")
}

// SimpleConfidence scores a transcription on a 0-100 scale using the
// cheapest available signal. Language probability wins when present,
// then the segment log-probability average, then a neutral 50.
func (r Result) SimpleConfidence() float64 {
	if r.Info.LanguageProbability > 0 {
		return clampConfidence(r.Info.LanguageProbability * 100)
	}
	if c, ok := segmentConfidence(r.Segments); ok {
		return c
	}
	return 50.0
}

// DetailedConfidence scores a transcription on a 0-100 scale by blending
// word-level probabilities with segment log probabilities when word
// timestamps were requested, falling back like SimpleConfidence otherwise.
func (r Result) DetailedConfidence() float64 {
	var sum float64
	var n int
	for _, seg := range r.Segments {
		for _, w := range seg.Words {
			sum += clampConfidence(w.Probability * 100)
			n++
		}
	}
	if c, ok := segmentConfidence(r.Segments); ok {
		sum += c
		n++
	}
	if n > 0 {
		return clampConfidence(sum / float64(n))
	}
	if r.Info.LanguageProbability > 0 {
		return clampConfidence(r.Info.LanguageProbability * 100)
	}
	return 50.0
}

// segmentConfidence maps the mean avg_logprob across segments onto 0-100.
// Log probabilities live roughly in [-5, 0]; -5 maps to 0 and 0 to 100.
func segmentConfidence(segments []Segment) (float64, bool) {
	if len(segments) == 0 {
		return 0, false
	}
	var sum float64
	for _, seg := range segments {
		sum += seg.AvgLogProb
	}
	mean := sum / float64(len(segments))
	return clampConfidence((mean + 5.0) / 5.0 * 100), true
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
