package wakeword

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hmori/siriusd/internal/config"
)

func TestMatcherPolicy(t *testing.T) {
	matcher := NewMatcher(config.Default().WakeWord)

	tests := []struct {
		name       string
		text       string
		confidence float64
		accept     bool
	}{
		{
			name:       "exact phrase above threshold",
			text:       "シリウスくん、今日の天気は？",
			confidence: 75,
			accept:     true,
		},
		{
			name:       "exact phrase at threshold",
			text:       "シリウスくん",
			confidence: 60,
			accept:     true,
		},
		{
			name:       "below threshold rejects even exact phrase",
			text:       "シリウスくん",
			confidence: 59.9,
			accept:     false,
		},
		{
			name:       "ascii-only rejects regardless of confidence",
			text:       "hello there",
			confidence: 95,
			accept:     false,
		},
		{
			name:       "empty text rejects",
			text:       "   ",
			confidence: 90,
			accept:     false,
		},
		{
			name:       "hiragana variant",
			text:       "しりうすくん、おはよう",
			confidence: 80,
			accept:     true,
		},
		{
			name:       "spaced variant",
			text:       "シリウス くん",
			confidence: 80,
			accept:     true,
		},
		{
			name:       "colloquial prefix variant",
			text:       "ねえ、シリウスくん",
			confidence: 80,
			accept:     true,
		},
		{
			name:       "bare root token",
			text:       "シリウス",
			confidence: 80,
			accept:     true,
		},
		{
			name:       "unrelated japanese rejects",
			text:       "今日はいい天気ですね",
			confidence: 90,
			accept:     false,
		},
		{
			name:       "half-width katakana folds to full width",
			text:       "ｼﾘｳｽｸﾝではなくｼﾘｳｽ",
			confidence: 80,
			accept:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accepted, reason := matcher.Match(tt.text, tt.confidence)
			require.Equal(t, tt.accept, accepted, "reason: %s", reason)
		})
	}
}

func TestMatcherDebugModeBypassesThreshold(t *testing.T) {
	cfg := config.Default().WakeWord
	cfg.DebugMode = true
	matcher := NewMatcher(cfg)

	accepted, _ := matcher.Match("シリウスくん", 10)
	require.True(t, accepted)

	// Debug mode skips the confidence gate only; text rules still apply.
	accepted, _ = matcher.Match("hello", 99)
	require.False(t, accepted)
}
