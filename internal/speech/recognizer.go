// Package speech bridges a continuous, possibly-restarting recognition stream
// into discrete finalized transcript segments with timestamps.
package speech

import (
	"context"
	"errors"
)

// Classified recognition failures. Recognizer implementations wrap these so
// the session can distinguish transient noise from environment errors.
var (
	// ErrNoSpeech is the transient no-input timeout; recognition continues.
	ErrNoSpeech = errors.New("no speech detected")
	// ErrNotSupported reports a missing or unusable recognition engine.
	ErrNotSupported = errors.New("speech recognition not supported")
	// ErrPermissionDenied reports refused microphone or API access.
	ErrPermissionDenied = errors.New("microphone permission denied")
)

// Result is one recognition hypothesis. Final results are committed as
// segments; interim results replace the transient display string.
type Result struct {
	Text       string
	Confidence float64
	Final      bool
}

type EventKind int

const (
	EventResult EventKind = iota
	EventError
)

// Event is one item in a recognizer's output stream.
type Event struct {
	Kind   EventKind
	Result Result
	Err    error
}

// Config carries the per-question recognition settings.
type Config struct {
	Language       string
	InterimResults bool
}

// Recognizer is the injected capability interface over a platform recognition
// engine. Start opens one engine session and returns its event stream; the
// stream closes when the engine stops, whether requested or on its own.
// Stop requests shutdown and must be safe to call when already stopped.
type Recognizer interface {
	Start(ctx context.Context, cfg Config) (<-chan Event, error)
	Stop() error
}
