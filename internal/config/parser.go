package config

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Parse reads JSONC configuration content and applies it over base.
func Parse(content string, base Config) (Config, []Warning, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		validatedWarnings, err := Validate(base)
		if err != nil {
			return Config{}, nil, err
		}
		return base, validatedWarnings, nil
	}

	if !strings.HasPrefix(trimmed, "{") {
		return Config{}, nil, fmt.Errorf("config must be a JSONC object")
	}

	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := base
	if err := payload.applyTo(&cfg); err != nil {
		return Config{}, nil, err
	}

	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

type jsoncConfig struct {
	Whisper    *jsoncWhisper    `json:"whisper"`
	Audio      *jsoncAudio      `json:"audio"`
	WakeWord   *jsoncWakeWord   `json:"wake_word"`
	Wake       *jsoncTranscribe `json:"wake_transcribe"`
	Utterance  *jsoncTranscribe `json:"utterance_transcribe"`
	Recorder   *jsoncRecorder   `json:"recorder"`
	Synthesis  *jsoncSynthesis  `json:"synthesis"`
	Lipsync    *jsoncLipsync    `json:"lipsync"`
	Expression *jsoncExpression `json:"expression"`
	LLM        *jsoncLLM        `json:"llm"`
	Debug      *jsoncDebug      `json:"debug"`
}

type jsoncWhisper struct {
	Endpoint  *string `json:"endpoint"`
	Model     *string `json:"model"`
	APIKey    *string `json:"api_key"`
	TimeoutMS *int    `json:"timeout_ms"`
}

type jsoncAudio struct {
	Input        *string `json:"input"`
	Fallback     *string `json:"fallback"`
	FrameSamples *int    `json:"frame_samples"`
	PlaybackCmd  *string `json:"playback_cmd"`
}

type jsoncWakeWord struct {
	Phrase              *string  `json:"phrase"`
	Variants            []string `json:"variants"`
	RootTokens          []string `json:"root_tokens"`
	ConfidenceThreshold *float64 `json:"confidence_threshold"`
	CooldownSeconds     *float64 `json:"cooldown_seconds"`
	WindowSeconds       *float64 `json:"window_seconds"`
	OverlapSeconds      *float64 `json:"overlap_seconds"`
	ProcessingInterval  *float64 `json:"processing_interval_seconds"`
	VolumeFloor         *float64 `json:"volume_floor"`
	MaxHistory          *int     `json:"max_history"`
	DebugMode           *bool    `json:"debug_mode"`
}

type jsoncTranscribe struct {
	Language                  *string    `json:"language"`
	BeamSize                  *int       `json:"beam_size"`
	Temperature               *float64   `json:"temperature"`
	CompressionRatioThreshold *float64   `json:"compression_ratio_threshold"`
	LogProbThreshold          *float64   `json:"log_prob_threshold"`
	NoSpeechThreshold         *float64   `json:"no_speech_threshold"`
	ConditionOnPreviousText   *bool      `json:"condition_on_previous_text"`
	InitialPrompt             *string    `json:"initial_prompt"`
	WordTimestamps            *bool      `json:"word_timestamps"`
	VADFilter                 *bool     `json:"vad_filter"`
	VAD                       *jsoncVAD `json:"vad_parameters"`
}

type jsoncVAD struct {
	MinSilenceDurationMS *int     `json:"min_silence_duration_ms"`
	SpeechPadMS          *int     `json:"speech_pad_ms"`
	Threshold            *float64 `json:"threshold"`
}

type jsoncRecorder struct {
	SilenceTimeoutSeconds *float64 `json:"silence_timeout_seconds"`
	VoiceThreshold        *float64 `json:"voice_threshold"`
	MinArtifactBytes      *int     `json:"min_artifact_bytes"`
}

type jsoncSynthesis struct {
	Endpoint        *string  `json:"endpoint"`
	StyleID         *int     `json:"style_id"`
	SpeedScale      *float64 `json:"speed_scale"`
	PitchScale      *float64 `json:"pitch_scale"`
	IntonationScale *float64 `json:"intonation_scale"`
	TimeoutMS       *int     `json:"timeout_ms"`
}

type jsoncLipsync struct {
	MouthShapes   map[string]string `json:"mouth_shapes"`
	SettleDelayMS *int              `json:"settle_delay_ms"`
	CharSlotMS    *int              `json:"char_slot_ms"`
}

type jsoncExpression struct {
	Endpoint       *string `json:"endpoint"`
	SyncTimeoutMS  *int    `json:"sync_timeout_ms"`
	AsyncTimeoutMS *int    `json:"async_timeout_ms"`
}

type jsoncLLM struct {
	Endpoint     *string `json:"endpoint"`
	APIKey       *string `json:"api_key"`
	Model        *string `json:"model"`
	SystemPrompt *string `json:"system_prompt"`
	TimeoutMS    *int    `json:"timeout_ms"`
}

type jsoncDebug struct {
	AudioDump *bool `json:"audio_dump"`
}

func (payload jsoncConfig) applyTo(cfg *Config) error {
	if payload.Whisper != nil {
		applyString(&cfg.Whisper.Endpoint, payload.Whisper.Endpoint)
		applyString(&cfg.Whisper.Model, payload.Whisper.Model)
		applyString(&cfg.Whisper.APIKey, payload.Whisper.APIKey)
		applyInt(&cfg.Whisper.TimeoutMS, payload.Whisper.TimeoutMS)
	}

	if payload.Audio != nil {
		applyString(&cfg.Audio.Input, payload.Audio.Input)
		applyString(&cfg.Audio.Fallback, payload.Audio.Fallback)
		applyInt(&cfg.Audio.FrameSamples, payload.Audio.FrameSamples)
		if payload.Audio.PlaybackCmd != nil {
			raw := *payload.Audio.PlaybackCmd
			argv, err := parseArgv(raw)
			if err != nil {
				return fmt.Errorf("invalid audio.playback_cmd: %w", err)
			}
			cfg.Audio.PlaybackCmd = CommandConfig{Raw: raw, Argv: argv}
		}
	}

	if payload.WakeWord != nil {
		applyString(&cfg.WakeWord.Phrase, payload.WakeWord.Phrase)
		if payload.WakeWord.Variants != nil {
			cfg.WakeWord.Variants = trimmedList(payload.WakeWord.Variants)
		}
		if payload.WakeWord.RootTokens != nil {
			cfg.WakeWord.RootTokens = trimmedList(payload.WakeWord.RootTokens)
		}
		applyFloat(&cfg.WakeWord.ConfidenceThreshold, payload.WakeWord.ConfidenceThreshold)
		applyFloat(&cfg.WakeWord.CooldownSeconds, payload.WakeWord.CooldownSeconds)
		applyFloat(&cfg.WakeWord.WindowSeconds, payload.WakeWord.WindowSeconds)
		applyFloat(&cfg.WakeWord.OverlapSeconds, payload.WakeWord.OverlapSeconds)
		applyFloat(&cfg.WakeWord.ProcessingIntervalSeconds, payload.WakeWord.ProcessingInterval)
		applyFloat(&cfg.WakeWord.VolumeFloor, payload.WakeWord.VolumeFloor)
		applyInt(&cfg.WakeWord.MaxHistory, payload.WakeWord.MaxHistory)
		applyBool(&cfg.WakeWord.DebugMode, payload.WakeWord.DebugMode)
	}

	if payload.Wake != nil {
		payload.Wake.applyTo(&cfg.WakeTranscribe)
	}
	if payload.Utterance != nil {
		payload.Utterance.applyTo(&cfg.UtteranceTranscribe)
	}

	if payload.Recorder != nil {
		applyFloat(&cfg.Recorder.SilenceTimeoutSeconds, payload.Recorder.SilenceTimeoutSeconds)
		applyFloat(&cfg.Recorder.VoiceThreshold, payload.Recorder.VoiceThreshold)
		applyInt(&cfg.Recorder.MinArtifactBytes, payload.Recorder.MinArtifactBytes)
	}

	if payload.Synthesis != nil {
		applyString(&cfg.Synthesis.Endpoint, payload.Synthesis.Endpoint)
		applyInt(&cfg.Synthesis.StyleID, payload.Synthesis.StyleID)
		applyFloat(&cfg.Synthesis.SpeedScale, payload.Synthesis.SpeedScale)
		applyFloat(&cfg.Synthesis.PitchScale, payload.Synthesis.PitchScale)
		applyFloat(&cfg.Synthesis.IntonationScale, payload.Synthesis.IntonationScale)
		applyInt(&cfg.Synthesis.TimeoutMS, payload.Synthesis.TimeoutMS)
	}

	if payload.Lipsync != nil {
		if payload.Lipsync.MouthShapes != nil {
			cfg.Lipsync.MouthShapes = payload.Lipsync.MouthShapes
		}
		applyInt(&cfg.Lipsync.SettleDelayMS, payload.Lipsync.SettleDelayMS)
		applyInt(&cfg.Lipsync.CharSlotMS, payload.Lipsync.CharSlotMS)
	}

	if payload.Expression != nil {
		applyString(&cfg.Expression.Endpoint, payload.Expression.Endpoint)
		applyInt(&cfg.Expression.SyncTimeoutMS, payload.Expression.SyncTimeoutMS)
		applyInt(&cfg.Expression.AsyncTimeoutMS, payload.Expression.AsyncTimeoutMS)
	}

	if payload.LLM != nil {
		applyString(&cfg.LLM.Endpoint, payload.LLM.Endpoint)
		applyString(&cfg.LLM.APIKey, payload.LLM.APIKey)
		applyString(&cfg.LLM.Model, payload.LLM.Model)
		applyString(&cfg.LLM.SystemPrompt, payload.LLM.SystemPrompt)
		applyInt(&cfg.LLM.TimeoutMS, payload.LLM.TimeoutMS)
	}

	if payload.Debug != nil {
		applyBool(&cfg.Debug.EnableAudioDump, payload.Debug.AudioDump)
	}

	return nil
}

func (payload jsoncTranscribe) applyTo(cfg *TranscribeConfig) {
	applyString(&cfg.Language, payload.Language)
	applyInt(&cfg.BeamSize, payload.BeamSize)
	applyFloat(&cfg.Temperature, payload.Temperature)
	applyFloat(&cfg.CompressionRatioThreshold, payload.CompressionRatioThreshold)
	applyFloat(&cfg.LogProbThreshold, payload.LogProbThreshold)
	applyFloat(&cfg.NoSpeechThreshold, payload.NoSpeechThreshold)
	applyBool(&cfg.ConditionOnPreviousText, payload.ConditionOnPreviousText)
	applyString(&cfg.InitialPrompt, payload.InitialPrompt)
	applyBool(&cfg.WordTimestamps, payload.WordTimestamps)
	applyBool(&cfg.VADFilter, payload.VADFilter)
	if payload.VAD != nil {
		applyInt(&cfg.VAD.MinSilenceDurationMS, payload.VAD.MinSilenceDurationMS)
		applyInt(&cfg.VAD.SpeechPadMS, payload.VAD.SpeechPadMS)
		applyFloat(&cfg.VAD.Threshold, payload.VAD.Threshold)
	}
}

func applyString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func applyInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func applyFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func applyBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func trimmedList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
