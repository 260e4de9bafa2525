package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	base := strings.TrimSpace(cfg.Server.BaseURL)
	if base == "" {
		return nil, fmt.Errorf("server.base_url must not be empty")
	}
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("server.base_url %q is not a valid URL", base)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("server.base_url scheme must be http or https")
	}
	if cfg.Server.TimeoutSeconds <= 0 {
		return nil, fmt.Errorf("server.timeout_seconds must be > 0")
	}

	if strings.TrimSpace(cfg.Recognizer.Language) == "" {
		return nil, fmt.Errorf("recognizer.language must not be empty")
	}
	if cfg.Recognizer.APIKey == "" {
		warnings = append(warnings, Warning{
			Message: "recognizer.api_key is empty; live transcription will be unavailable",
		})
	}

	if strings.TrimSpace(cfg.Audio.Input) == "" {
		return nil, fmt.Errorf("audio.input must not be empty")
	}

	if len(cfg.Questions.List) > 0 && strings.TrimSpace(cfg.Questions.File) != "" {
		warnings = append(warnings, Warning{
			Message: "questions.list and questions.file are both set; the inline list wins",
		})
	}

	level := strings.ToLower(strings.TrimSpace(cfg.Logging.Level))
	switch level {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	return warnings, nil
}
