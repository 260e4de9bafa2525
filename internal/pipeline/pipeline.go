// Package pipeline assembles the capture -> recognition -> transcript stack
// from runtime config.
package pipeline

import (
	"fmt"
	"io"
	"log/slog"

	"prepmate/internal/audio"
	"prepmate/internal/config"
	"prepmate/internal/speech"
	"prepmate/internal/speech/deepgram"
	"prepmate/internal/transcript"
)

// Stack owns the wired speech components for one practice session.
type Stack struct {
	Meter      *audio.LevelMeter
	Capture    *audio.Capture
	Recognizer speech.Recognizer
	Session    *speech.Session
}

// New wires microphone capture into the streaming recognizer and binds the
// recognition session to the transcript manager.
func New(
	cfg config.Config,
	manager *transcript.Manager,
	logger *slog.Logger,
	opts ...speech.SessionOption,
) (*Stack, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	meter := audio.NewLevelMeter()
	capture := audio.NewCapture(cfg.Audio.Input, meter)
	recognizer := deepgram.New(cfg.Recognizer.APIKey, cfg.Recognizer.Model, capture, logger)

	session := speech.NewSession(recognizer, manager, logger, opts...)
	if err := session.SetLanguage(cfg.Recognizer.Language); err != nil {
		return nil, fmt.Errorf("configure language: %w", err)
	}
	if err := session.SetInterimResults(cfg.Recognizer.InterimResults); err != nil {
		return nil, fmt.Errorf("configure interim delivery: %w", err)
	}

	return &Stack{
		Meter:      meter,
		Capture:    capture,
		Recognizer: recognizer,
		Session:    session,
	}, nil
}
