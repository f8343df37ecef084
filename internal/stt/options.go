// Package stt talks to a faster-whisper-compatible transcription server
// over its OpenAI-style HTTP surface and derives confidence scores from
// the verbose transcription payload.
package stt

import (
	"fmt"
	"mime/multipart"
	"strconv"

	"github.com/hmori/siriusd/internal/config"
)

// Options carries the per-request decoding parameters. The wake-word path
// and the utterance path submit different tunings of the same request.
type Options struct {
	Language                  string
	BeamSize                  int
	Temperature               float64
	CompressionRatioThreshold float64
	LogProbThreshold          float64
	NoSpeechThreshold         float64
	ConditionOnPreviousText   bool
	InitialPrompt             string
	WordTimestamps            bool
	VADFilter                 bool
	VADMinSilenceDurationMS   int
	VADSpeechPadMS            int
	VADThreshold              float64
}

// OptionsFromConfig flattens a transcription config section into request options.
func OptionsFromConfig(cfg config.TranscribeConfig) Options {
	return Options{
		Language:                  cfg.Language,
		BeamSize:                  cfg.BeamSize,
		Temperature:               cfg.Temperature,
		CompressionRatioThreshold: cfg.CompressionRatioThreshold,
		LogProbThreshold:          cfg.LogProbThreshold,
		NoSpeechThreshold:         cfg.NoSpeechThreshold,
		ConditionOnPreviousText:   cfg.ConditionOnPreviousText,
		InitialPrompt:             cfg.InitialPrompt,
		WordTimestamps:            cfg.WordTimestamps,
		VADFilter:                 cfg.VADFilter,
		VADMinSilenceDurationMS:   cfg.VAD.MinSilenceDurationMS,
		VADSpeechPadMS:            cfg.VAD.SpeechPadMS,
		VADThreshold:              cfg.VAD.Threshold,
	}
}

// writeForm appends the option fields to a multipart transcription request.
func (o Options) writeForm(form *multipart.Writer, model string) error {
	fields := map[string]string{
		"model":                       model,
		"response_format":             "verbose_json",
		"language":                    o.Language,
		"beam_size":                   strconv.Itoa(o.BeamSize),
		"temperature":                 formatFloat(o.Temperature),
		"compression_ratio_threshold": formatFloat(o.CompressionRatioThreshold),
		"log_prob_threshold":          formatFloat(o.LogProbThreshold),
		"no_speech_threshold":         formatFloat(o.NoSpeechThreshold),
		"condition_on_previous_text":  strconv.FormatBool(o.ConditionOnPreviousText),
		"word_timestamps":             strconv.FormatBool(o.WordTimestamps),
		"vad_filter":                  strconv.FormatBool(o.VADFilter),
	}
	if o.InitialPrompt != "" {
		fields["initial_prompt"] = o.InitialPrompt
	}
	if o.VADFilter {
		fields["vad_parameters"] = fmt.Sprintf(
			`{"min_silence_duration_ms":%d,"speech_pad_ms":%d,"threshold":%s}`,
			o.VADMinSilenceDurationMS, o.VADSpeechPadMS, formatFloat(o.VADThreshold),
		)
	}

	for name, value := range fields {
		if err := form.WriteField(name, value); err != nil {
			return fmt.Errorf("write form field %s: %w", name, err)
		}
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
