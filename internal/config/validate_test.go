package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateDefaultsPass(t *testing.T) {
	warnings, err := Validate(Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "empty whisper endpoint",
			mutate:  func(c *Config) { c.Whisper.Endpoint = " " },
			wantErr: "whisper.endpoint",
		},
		{
			name:    "empty wake phrase",
			mutate:  func(c *Config) { c.WakeWord.Phrase = "" },
			wantErr: "wake_word.phrase",
		},
		{
			name:    "confidence out of range",
			mutate:  func(c *Config) { c.WakeWord.ConfidenceThreshold = 120 },
			wantErr: "confidence_threshold",
		},
		{
			name:    "overlap not smaller than window",
			mutate:  func(c *Config) { c.WakeWord.OverlapSeconds = 1.5 },
			wantErr: "overlap_seconds",
		},
		{
			name:    "zero silence timeout",
			mutate:  func(c *Config) { c.Recorder.SilenceTimeoutSeconds = 0 },
			wantErr: "silence_timeout_seconds",
		},
		{
			name:    "zero speed scale",
			mutate:  func(c *Config) { c.Synthesis.SpeedScale = 0 },
			wantErr: "speed_scale",
		},
		{
			name:    "invalid mouth shape",
			mutate:  func(c *Config) { c.Lipsync.MouthShapes = map[string]string{"a": "x"} },
			wantErr: "mouth_shapes",
		},
		{
			name:    "empty playback cmd",
			mutate:  func(c *Config) { c.Audio.PlaybackCmd = CommandConfig{} },
			wantErr: "playback_cmd",
		},
		{
			name:    "zero beam size",
			mutate:  func(c *Config) { c.WakeTranscribe.BeamSize = 0 },
			wantErr: "wake_transcribe.beam_size",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			_, err := Validate(cfg)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestValidateWarnsOnEmptyVariants(t *testing.T) {
	cfg := Default()
	cfg.WakeWord.Variants = nil
	warnings, err := Validate(cfg)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0].Message, "variants")
}
