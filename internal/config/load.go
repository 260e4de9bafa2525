package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loaded captures resolved config path, parsed values, and non-fatal
// warnings.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Load resolves, reads, parses, and validates the runtime configuration.
// Secrets may come from the environment instead of the file: DEEPGRAM_API_KEY
// fills the recognizer key and PREPMATE_TOKEN fills the server token when the
// file leaves them empty.
func Load(explicitPath string) (Loaded, error) {
	resolvedPath, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	cfg := Default()
	exists := true
	warnings := make([]Warning, 0)

	content, err := os.ReadFile(resolvedPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Loaded{}, fmt.Errorf("read config %q: %w", resolvedPath, err)
		}
		exists = false
		warnings = append(warnings, Warning{
			Message: fmt.Sprintf("config file %q not found; using defaults", resolvedPath),
		})
	} else {
		decoder := yaml.NewDecoder(strings.NewReader(string(content)))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil {
			return Loaded{}, fmt.Errorf("parse config %q: %w", resolvedPath, err)
		}
	}

	applyEnv(&cfg)

	validateWarnings, err := Validate(cfg)
	if err != nil {
		return Loaded{}, fmt.Errorf("validate config %q: %w", resolvedPath, err)
	}
	warnings = append(warnings, validateWarnings...)

	return Loaded{
		Path:     resolvedPath,
		Config:   cfg,
		Warnings: warnings,
		Exists:   exists,
	}, nil
}

func applyEnv(cfg *Config) {
	if cfg.Recognizer.APIKey == "" {
		cfg.Recognizer.APIKey = strings.TrimSpace(os.Getenv("DEEPGRAM_API_KEY"))
	}
	if cfg.Server.Token == "" {
		cfg.Server.Token = strings.TrimSpace(os.Getenv("PREPMATE_TOKEN"))
	}
}

// LoadQuestions returns the effective question list: inline list first, then
// the questions file (one per line, blank lines and # comments skipped), then
// the built-in set.
func LoadQuestions(cfg Config) ([]string, error) {
	if len(cfg.Questions.List) > 0 {
		return cfg.Questions.List, nil
	}

	if strings.TrimSpace(cfg.Questions.File) != "" {
		content, err := os.ReadFile(cfg.Questions.File)
		if err != nil {
			return nil, fmt.Errorf("read questions file %q: %w", cfg.Questions.File, err)
		}
		questions := make([]string, 0)
		for _, line := range strings.Split(string(content), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			questions = append(questions, line)
		}
		if len(questions) == 0 {
			return nil, fmt.Errorf("questions file %q contains no questions", cfg.Questions.File)
		}
		return questions, nil
	}

	return DefaultQuestions, nil
}
