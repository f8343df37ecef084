// Package config resolves, parses, validates, and defaults siriusd configuration.
package config

// Config is the fully materialized runtime configuration used by siriusd.
// Values are fixed at load time; components receive the sub-structs they
// need by value and never share mutable state through them.
type Config struct {
	Whisper             WhisperConfig
	Audio               AudioConfig
	WakeWord            WakeWordConfig
	WakeTranscribe      TranscribeConfig
	UtteranceTranscribe TranscribeConfig
	Recorder            RecorderConfig
	Synthesis           SynthesisConfig
	Lipsync             LipsyncConfig
	Expression          ExpressionConfig
	LLM                 LLMConfig
	Debug               DebugConfig
}

// WhisperConfig locates the faster-whisper-compatible transcription server.
type WhisperConfig struct {
	Endpoint  string
	Model     string
	APIKey    string
	TimeoutMS int
}

// AudioConfig controls capture-source selection and frame sizing.
type AudioConfig struct {
	Input        string
	Fallback     string
	FrameSamples int
	PlaybackCmd  CommandConfig
}

// TranscribeConfig carries the per-call-site decoding parameters. The wake
// path and the utterance path use different tunings of the same surface.
type TranscribeConfig struct {
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
	VAD                       VADConfig
}

// VADConfig holds the voice-activity filter sub-parameters.
type VADConfig struct {
	MinSilenceDurationMS int
	SpeechPadMS          int
	Threshold            float64
}

// WakeWordConfig tunes continuous wake-phrase detection.
type WakeWordConfig struct {
	Phrase                    string
	Variants                  []string
	RootTokens                []string
	ConfidenceThreshold       float64
	CooldownSeconds           float64
	WindowSeconds             float64
	OverlapSeconds            float64
	ProcessingIntervalSeconds float64
	VolumeFloor               float64
	MaxHistory                int
	DebugMode                 bool
}

// RecorderConfig tunes one-shot utterance recording sessions.
type RecorderConfig struct {
	SilenceTimeoutSeconds float64
	VoiceThreshold        float64
	MinArtifactBytes      int
}

// SynthesisConfig locates the VOICEVOX engine and fixes the voice style.
type SynthesisConfig struct {
	Endpoint        string
	StyleID         int
	SpeedScale      float64
	PitchScale      float64
	IntonationScale float64
	TimeoutMS       int
}

// LipsyncConfig holds the hand-tuned mouth-shape tables. The table contents
// are configuration data, not logic; defaults are preserved verbatim.
type LipsyncConfig struct {
	// MouthShapes maps a phoneme symbol to "a", "i", "o", or "" for silence.
	// Phonemes absent from the table fall back to "a".
	MouthShapes   map[string]string
	SettleDelayMS int
	CharSlotMS    int
}

// ExpressionConfig locates the remote mouth-pattern API.
type ExpressionConfig struct {
	Endpoint       string
	SyncTimeoutMS  int
	AsyncTimeoutMS int
}

// LLMConfig locates the downstream chat-completions endpoint.
type LLMConfig struct {
	Endpoint     string
	APIKey       string
	Model        string
	SystemPrompt string
	TimeoutMS    int
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// DebugConfig controls optional debug artifact output.
type DebugConfig struct {
	EnableAudioDump bool
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
