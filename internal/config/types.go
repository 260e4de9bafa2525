// Package config resolves, parses, validates, and defaults prepmate
// configuration.
package config

// Config is the fully materialized runtime configuration used by the
// practice client.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Recognizer RecognizerConfig `yaml:"recognizer"`
	Audio      AudioConfig      `yaml:"audio"`
	Questions  QuestionsConfig  `yaml:"questions"`
	Transcript TranscriptConfig `yaml:"transcript"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig points the client at the interview backend.
type ServerConfig struct {
	BaseURL        string `yaml:"base_url"`
	Token          string `yaml:"token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// RecognizerConfig controls the streaming speech-to-text session.
type RecognizerConfig struct {
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	Language       string `yaml:"language"`
	InterimResults bool   `yaml:"interim_results"`
}

// AudioConfig controls input-source selection.
type AudioConfig struct {
	Input string `yaml:"input"`
}

// QuestionsConfig supplies the practice question list, either inline or from
// a file with one question per line.
type QuestionsConfig struct {
	File string   `yaml:"file"`
	List []string `yaml:"list"`
}

// TranscriptConfig controls session snapshot persistence.
type TranscriptConfig struct {
	SnapshotDir string `yaml:"snapshot_dir"`
	Autosave    bool   `yaml:"autosave"`
}

// LoggingConfig controls the JSONL client log.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Message string
}
