package config

import (
	"fmt"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if strings.TrimSpace(cfg.Whisper.Endpoint) == "" {
		return nil, fmt.Errorf("whisper.endpoint must not be empty")
	}
	if strings.TrimSpace(cfg.Whisper.Model) == "" {
		return nil, fmt.Errorf("whisper.model must not be empty")
	}
	if cfg.Audio.FrameSamples <= 0 {
		return nil, fmt.Errorf("audio.frame_samples must be > 0")
	}
	if len(cfg.Audio.PlaybackCmd.Argv) == 0 {
		return nil, fmt.Errorf("audio.playback_cmd must not be empty")
	}

	if strings.TrimSpace(cfg.WakeWord.Phrase) == "" {
		return nil, fmt.Errorf("wake_word.phrase must not be empty")
	}
	if cfg.WakeWord.ConfidenceThreshold < 0 || cfg.WakeWord.ConfidenceThreshold > 100 {
		return nil, fmt.Errorf("wake_word.confidence_threshold must be within [0,100]")
	}
	if cfg.WakeWord.WindowSeconds <= 0 {
		return nil, fmt.Errorf("wake_word.window_seconds must be > 0")
	}
	if cfg.WakeWord.OverlapSeconds < 0 {
		return nil, fmt.Errorf("wake_word.overlap_seconds must be >= 0")
	}
	if cfg.WakeWord.OverlapSeconds >= cfg.WakeWord.WindowSeconds {
		return nil, fmt.Errorf("wake_word.overlap_seconds must be smaller than window_seconds")
	}
	if cfg.WakeWord.ProcessingIntervalSeconds <= 0 {
		return nil, fmt.Errorf("wake_word.processing_interval_seconds must be > 0")
	}
	if cfg.WakeWord.CooldownSeconds < 0 {
		return nil, fmt.Errorf("wake_word.cooldown_seconds must be >= 0")
	}
	if cfg.WakeWord.MaxHistory <= 0 {
		return nil, fmt.Errorf("wake_word.max_history must be > 0")
	}
	if len(cfg.WakeWord.Variants) == 0 {
		warnings = append(warnings, Warning{Message: "wake_word.variants is empty; only the exact phrase and root tokens will match"})
	}

	for _, tuning := range []struct {
		name string
		cfg  TranscribeConfig
	}{
		{name: "wake_transcribe", cfg: cfg.WakeTranscribe},
		{name: "utterance_transcribe", cfg: cfg.UtteranceTranscribe},
	} {
		if strings.TrimSpace(tuning.cfg.Language) == "" {
			return nil, fmt.Errorf("%s.language must not be empty", tuning.name)
		}
		if tuning.cfg.BeamSize <= 0 {
			return nil, fmt.Errorf("%s.beam_size must be > 0", tuning.name)
		}
	}

	if cfg.Recorder.SilenceTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("recorder.silence_timeout_seconds must be > 0")
	}
	if cfg.Recorder.MinArtifactBytes < 0 {
		return nil, fmt.Errorf("recorder.min_artifact_bytes must be >= 0")
	}

	if strings.TrimSpace(cfg.Synthesis.Endpoint) == "" {
		return nil, fmt.Errorf("synthesis.endpoint must not be empty")
	}
	if cfg.Synthesis.SpeedScale <= 0 {
		return nil, fmt.Errorf("synthesis.speed_scale must be > 0")
	}

	for phoneme, shape := range cfg.Lipsync.MouthShapes {
		switch shape {
		case "", "a", "i", "o":
		default:
			return nil, fmt.Errorf("lipsync.mouth_shapes[%q] must be one of: a, i, o, or empty for silence", phoneme)
		}
	}
	if cfg.Lipsync.SettleDelayMS < 0 {
		return nil, fmt.Errorf("lipsync.settle_delay_ms must be >= 0")
	}
	if cfg.Lipsync.CharSlotMS <= 0 {
		return nil, fmt.Errorf("lipsync.char_slot_ms must be > 0")
	}

	if strings.TrimSpace(cfg.Expression.Endpoint) == "" {
		return nil, fmt.Errorf("expression.endpoint must not be empty")
	}
	if strings.TrimSpace(cfg.LLM.Endpoint) == "" {
		return nil, fmt.Errorf("llm.endpoint must not be empty")
	}
	if strings.TrimSpace(cfg.LLM.Model) == "" {
		return nil, fmt.Errorf("llm.model must not be empty")
	}

	return warnings, nil
}
