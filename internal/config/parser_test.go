package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseEmptyContentReturnsDefaults(t *testing.T) {
	cfg, _, err := Parse("", Default())
	require.NoError(t, err)
	require.Equal(t, Default().WakeWord.Phrase, cfg.WakeWord.Phrase)
	require.Equal(t, Default().Synthesis.StyleID, cfg.Synthesis.StyleID)
}

func TestParseRejectsNonObjectContent(t *testing.T) {
	_, _, err := Parse("wake_word = yes", Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "JSONC object")
}

func TestParseJSONCOverlaysDefaults(t *testing.T) {
	content := `{
		// local tuning
		"wake_word": {
			"confidence_threshold": 72.5,
			"cooldown_seconds": 3.0,
			"debug_mode": true,
		},
		"recorder": {
			"silence_timeout_seconds": 1.5,
		},
		"synthesis": {
			"speed_scale": 1.2,
		},
		/* whisper server runs on another host */
		"whisper": {
			"endpoint": "http://10.0.0.7:8000/v1",
		},
	}`

	cfg, warnings, err := Parse(content, Default())
	require.NoError(t, err)
	require.Empty(t, warnings)

	require.Equal(t, 72.5, cfg.WakeWord.ConfidenceThreshold)
	require.Equal(t, 3.0, cfg.WakeWord.CooldownSeconds)
	require.True(t, cfg.WakeWord.DebugMode)
	require.Equal(t, 1.5, cfg.Recorder.SilenceTimeoutSeconds)
	require.Equal(t, 1.2, cfg.Synthesis.SpeedScale)
	require.Equal(t, "http://10.0.0.7:8000/v1", cfg.Whisper.Endpoint)

	// Untouched sections keep their defaults.
	require.Equal(t, "シリウスくん", cfg.WakeWord.Phrase)
	require.Equal(t, 54, cfg.Synthesis.StyleID)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, _, err := Parse(`{"wake_word": {"phrse": "typo"}}`, Default())
	require.Error(t, err)
}

func TestParsePlaybackCmdArgv(t *testing.T) {
	cfg, _, err := Parse(`{"audio": {"playback_cmd": "aplay -q -r 24000"}}`, Default())
	require.NoError(t, err)
	require.Equal(t, []string{"aplay", "-q", "-r", "24000"}, cfg.Audio.PlaybackCmd.Argv)
}

func TestParseReportsLineForSyntaxErrors(t *testing.T) {
	_, _, err := Parse("{\n  \"whisper\": {\n    \"model\": !\n  }\n}", Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "line 3")
}
