// Package wakeword runs continuous wake-phrase detection over a sliding
// window of microphone audio, gated by volume and debounced by cooldown.
package wakeword

import (
	"strings"

	"golang.org/x/text/width"

	"github.com/hmori/siriusd/internal/config"
)

// Matcher applies the wake-phrase acceptance policy to decoded text.
type Matcher struct {
	phrase    string
	variants  []string
	roots     []string
	threshold float64
	debug     bool
}

// NewMatcher builds a matcher from the wake-word config section. The
// phrase, variant, and root lists are normalized once up front.
func NewMatcher(cfg config.WakeWordConfig) *Matcher {
	m := &Matcher{
		phrase:    normalize(cfg.Phrase),
		threshold: cfg.ConfidenceThreshold,
		debug:     cfg.DebugMode,
	}
	for _, v := range cfg.Variants {
		if n := normalize(v); n != "" {
			m.variants = append(m.variants, n)
		}
	}
	for _, r := range cfg.RootTokens {
		if n := normalize(r); n != "" {
			m.roots = append(m.roots, n)
		}
	}
	return m
}

// Match decides whether decoded text at a given confidence is a wake hit
// and names which rule accepted it. The confidence gate applies first and
// is bypassed only in debug mode. Pure-ASCII text is rejected outright:
// the wake phrase is Japanese, so a Latin-only decode is noise.
func (m *Matcher) Match(text string, confidence float64) (bool, string) {
	if confidence < m.threshold && !m.debug {
		return false, "below confidence threshold"
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false, "empty text"
	}
	if !hasNonASCII(trimmed) {
		return false, "ascii-only text"
	}

	normalized := normalize(trimmed)
	if m.phrase != "" && strings.Contains(normalized, m.phrase) {
		return true, "exact phrase"
	}
	for _, variant := range m.variants {
		if strings.Contains(normalized, variant) {
			return true, "variant"
		}
	}
	for _, root := range m.roots {
		if strings.Contains(normalized, root) {
			return true, "root token"
		}
	}
	return false, "no phrase match"
}

// normalize folds half-width katakana to full width and lowercases latin
// letters so spacing and width quirks in the decode do not break matching.
func normalize(s string) string {
	return strings.ToLower(width.Fold.String(strings.TrimSpace(s)))
}

func hasNonASCII(s string) bool {
	for _, r := range s {
		if r > 127 {
			return true
		}
	}
	return false
}
