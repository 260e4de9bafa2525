// Package speechmock provides a scripted Recognizer for session tests.
package speechmock

import (
	"context"
	"fmt"
	"sync"

	"prepmate/internal/speech"
)

// Script describes one engine session: the events it emits and whether the
// stream stays open afterwards. A stream that is not held open closes itself,
// modelling the platform engine's auto-stop.
type Script struct {
	StartErr error
	Events   []speech.Event
	HoldOpen bool
}

// Recognizer replays scripts in order, one per Start call.
type Recognizer struct {
	Scripts []Script
	StopErr error

	mu      sync.Mutex
	starts  int
	stops   int
	lastCfg speech.Config
	current chan speech.Event
}

var _ speech.Recognizer = (*Recognizer)(nil)

func (r *Recognizer) Start(_ context.Context, cfg speech.Config) (<-chan speech.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Mirrors the live adapter: an engine session that has not ended, by
	// Stop or by closing itself, rejects a second Start.
	if r.current != nil {
		return nil, fmt.Errorf("engine session already active")
	}

	idx := r.starts
	r.starts++
	r.lastCfg = cfg

	if idx >= len(r.Scripts) {
		return nil, fmt.Errorf("%w: no script for engine session %d", speech.ErrNotSupported, idx)
	}
	script := r.Scripts[idx]
	if script.StartErr != nil {
		return nil, script.StartErr
	}

	ch := make(chan speech.Event, len(script.Events)+1)
	for _, ev := range script.Events {
		ch <- ev
	}
	if script.HoldOpen {
		r.current = ch
	} else {
		close(ch)
	}
	return ch, nil
}

func (r *Recognizer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stops++
	if r.current != nil {
		close(r.current)
		r.current = nil
	}
	return r.StopErr
}

// CloseStream ends the held-open engine session from the service side, as a
// recognition backend does after a silence window: the stream closes and the
// engine no longer counts as started, without any Stop call.
func (r *Recognizer) CloseStream() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != nil {
		close(r.current)
		r.current = nil
	}
}

func (r *Recognizer) StartCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.starts
}

func (r *Recognizer) StopCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stops
}

func (r *Recognizer) LastConfig() speech.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastCfg
}

// FinalResult builds a finalized result event.
func FinalResult(text string, confidence float64) speech.Event {
	return speech.Event{Kind: speech.EventResult, Result: speech.Result{Text: text, Confidence: confidence, Final: true}}
}

// InterimResult builds an interim result event.
func InterimResult(text string) speech.Event {
	return speech.Event{Kind: speech.EventResult, Result: speech.Result{Text: text}}
}

// ErrorEvent builds an error event.
func ErrorEvent(err error) speech.Event {
	return speech.Event{Kind: speech.EventError, Err: err}
}
