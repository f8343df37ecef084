package config

// Default returns the canonical runtime configuration used when no file is
// present. The wake-phrase variants and the phoneme table are hand-tuned for
// the Japanese voice and kept verbatim; treat them as data, not rules.
func Default() Config {
	playback := "paplay"

	return Config{
		Whisper: WhisperConfig{
			Endpoint:  "http://127.0.0.1:8000/v1",
			Model:     "small",
			TimeoutMS: 30000,
		},
		Audio: AudioConfig{
			Input:        "default",
			Fallback:     "default",
			FrameSamples: 1024,
			PlaybackCmd:  CommandConfig{Raw: playback, Argv: mustParseArgv(playback)},
		},
		WakeWord: WakeWordConfig{
			Phrase: "シリウスくん",
			Variants: []string{
				"シリウスくん", "シリウス", "しりうすくん", "しりうす",
				"シリウス くん", "しりうす くん", "シリウスさん", "しりうすさん",
				"ねえ，シリウスくん", "ねえシリウスくん", "ねえ、シリウスくん", "ねえ シリウスくん",
				"おい、シリウスくん", "おいシリウスくん", "ちょっと、シリウスくん", "ちょっとシリウスくん",
			},
			RootTokens:                []string{"シリウス", "しりうす"},
			ConfidenceThreshold:       60.0,
			CooldownSeconds:           2.0,
			WindowSeconds:             1.5,
			OverlapSeconds:            0.3,
			ProcessingIntervalSeconds: 0.3,
			VolumeFloor:               100,
			MaxHistory:                10,
		},
		WakeTranscribe: TranscribeConfig{
			Language:                  "ja",
			BeamSize:                  1,
			Temperature:               0.0,
			CompressionRatioThreshold: 2.4,
			LogProbThreshold:          -1.0,
			NoSpeechThreshold:         0.3,
			ConditionOnPreviousText:   true,
			InitialPrompt:             "以下は日本語の音声です。ウェイクワード「シリウスくん」を聞いてください。",
			WordTimestamps:            false,
			VADFilter:                 true,
			VAD: VADConfig{
				MinSilenceDurationMS: 300,
				SpeechPadMS:          50,
				Threshold:            0.4,
			},
		},
		UtteranceTranscribe: TranscribeConfig{
			Language:                  "ja",
			BeamSize:                  1,
			Temperature:               0.0,
			CompressionRatioThreshold: 2.0,
			LogProbThreshold:          -0.8,
			NoSpeechThreshold:         0.4,
			ConditionOnPreviousText:   false,
			InitialPrompt:             "以下は日本語の音声です。",
			WordTimestamps:            true,
			VADFilter:                 true,
			VAD: VADConfig{
				MinSilenceDurationMS: 800,
				SpeechPadMS:          50,
				Threshold:            0.5,
			},
		},
		Recorder: RecorderConfig{
			SilenceTimeoutSeconds: 2.0,
			VoiceThreshold:        100,
			MinArtifactBytes:      1000,
		},
		Synthesis: SynthesisConfig{
			Endpoint:        "http://127.0.0.1:50021",
			StyleID:         54,
			SpeedScale:      1.0,
			PitchScale:      0.0,
			IntonationScale: 0.9,
			TimeoutMS:       30000,
		},
		Lipsync: LipsyncConfig{
			MouthShapes:   defaultMouthShapes(),
			SettleDelayMS: 200,
			CharSlotMS:    150,
		},
		Expression: ExpressionConfig{
			Endpoint:       "http://127.0.0.1:8080",
			SyncTimeoutMS:  500,
			AsyncTimeoutMS: 50,
		},
		LLM: LLMConfig{
			Endpoint:     "http://127.0.0.1:1234/v1",
			Model:        "local",
			SystemPrompt: "あなたは「シリウスくん」という名前の親しみやすい音声アシスタントです。簡潔に、話し言葉で答えてください。",
			TimeoutMS:    60000,
		},
		Debug: DebugConfig{},
	}
}

// defaultMouthShapes collapses the synthesizer's phoneme symbols down to the
// three visible shapes plus silence ("").
func defaultMouthShapes() map[string]string {
	return map[string]string{
		"a": "a", "i": "i", "u": "o", "e": "a", "o": "o",
		"k": "a", "g": "a", "s": "i", "z": "i", "t": "a", "d": "a",
		"n": "o", "h": "o", "b": "o", "p": "o", "m": "o", "y": "a",
		"r": "a", "w": "o", "f": "o", "v": "o", "ch": "i", "sh": "i",
		"j": "i", "ts": "a", "sil": "", "pau": "", "cl": "",
		"q": "", "N": "o",
	}
}
