package config

// DefaultQuestions is the built-in practice set used when the config supplies
// no question list.
var DefaultQuestions = []string{
	"Tell me about yourself.",
	"What is your greatest strength?",
	"What is your greatest weakness?",
	"Why do you want to work here?",
	"Describe a challenge you faced and how you handled it.",
}

// Default returns the canonical runtime configuration used when no file is
// present.
func Default() Config {
	return Config{
		Server: ServerConfig{
			BaseURL:        "http://localhost:5000",
			TimeoutSeconds: 15,
		},
		Recognizer: RecognizerConfig{
			Model:          "nova-2",
			Language:       "en-US",
			InterimResults: true,
		},
		Audio: AudioConfig{
			Input: "default",
		},
		Transcript: TranscriptConfig{
			Autosave: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
