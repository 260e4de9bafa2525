package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"prepmate/internal/fsm"
	"prepmate/internal/transcript"
)

// Session drives one question's capture: it starts and stops the recognizer,
// reconciles interim against finalized text, timestamps each finalized chunk,
// and forwards new segments to the transcript manager.
//
// All recognizer events are consumed on a single goroutine, so events within
// the engine's stream are processed in arrival order.
type Session struct {
	logger  *slog.Logger
	rec     Recognizer
	manager *transcript.Manager
	now     func() time.Time

	onInterim func(string)
	onSegment func(transcript.Segment)
	onError   func(error)

	mu        sync.Mutex
	state     fsm.State
	cfg       Config
	interim   string
	segments  []transcript.Segment
	forwarded int
	refStart  int64
	done      chan struct{}
}

// SessionOption customizes a Session.
type SessionOption func(*Session)

// WithSessionClock injects the time source used to timestamp segments.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// WithInterimFunc registers the live interim-text callback. The string is
// replaced wholesale on every event and cleared on finalization or reset.
func WithInterimFunc(fn func(string)) SessionOption {
	return func(s *Session) { s.onInterim = fn }
}

// WithSegmentFunc registers a callback fired for every finalized segment.
func WithSegmentFunc(fn func(transcript.Segment)) SessionOption {
	return func(s *Session) { s.onSegment = fn }
}

// WithErrorFunc registers the callback for non-transient recognition errors.
func WithErrorFunc(fn func(error)) SessionOption {
	return func(s *Session) { s.onError = fn }
}

// NewSession wires a recognizer to a transcript manager.
func NewSession(rec Recognizer, manager *transcript.Manager, logger *slog.Logger, opts ...SessionOption) *Session {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Session{
		logger:  logger,
		rec:     rec,
		manager: manager,
		now:     time.Now,
		state:   fsm.StateIdle,
		cfg:     Config{Language: "en-US", InterimResults: true},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() fsm.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Listening reports whether capture is in flight.
func (s *Session) Listening() bool {
	return s.State() == fsm.StateListening
}

// InterimText returns the current unfinalized display string.
func (s *Session) InterimText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interim
}

// Segments returns a copy of the finalized segments recorded since the last
// reset.
func (s *Session) Segments() []transcript.Segment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]transcript.Segment(nil), s.segments...)
}

// Transcript returns the finalized text recorded since the last reset.
func (s *Session) Transcript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	parts := make([]string, 0, len(s.segments))
	for _, seg := range s.segments {
		parts = append(parts, seg.Text)
	}
	return joinNonEmpty(parts)
}

// SetLanguage reconfigures the recognition language. It cannot be changed
// while a recognition session is in flight; stop first.
func (s *Session) SetLanguage(lang string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == fsm.StateListening || s.state == fsm.StateStopping {
		return errors.New("cannot change language while listening; stop the session first")
	}
	s.cfg.Language = lang
	return nil
}

// SetInterimResults toggles interim hypothesis delivery for future starts.
func (s *Session) SetInterimResults(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == fsm.StateListening || s.state == fsm.StateStopping {
		return errors.New("cannot change interim delivery while listening; stop the session first")
	}
	s.cfg.InterimResults = enabled
	return nil
}

// StartListening opens an engine session and begins consuming its events.
// Environment failures are reported immediately; the session never pretends
// to be listening.
func (s *Session) StartListening(ctx context.Context) error {
	s.mu.Lock()
	if s.state == fsm.StateListening || s.state == fsm.StateStopping {
		s.mu.Unlock()
		return errors.New("already listening")
	}

	events, err := s.rec.Start(ctx, s.cfg)
	if err != nil {
		s.state, _ = fsm.Transition(s.state, fsm.EventFail)
		s.mu.Unlock()
		s.reportError(err)
		return fmt.Errorf("start recognizer: %w", err)
	}

	next, terr := fsm.Transition(s.state, fsm.EventStart)
	if terr != nil {
		s.mu.Unlock()
		_ = s.rec.Stop()
		return terr
	}
	s.state = next
	s.interim = ""
	s.refStart = s.now().UnixMilli()
	done := make(chan struct{})
	s.done = done
	s.mu.Unlock()

	go s.consume(ctx, events, done)
	return nil
}

// StopListening requests engine shutdown and waits for the event stream to
// drain. Idempotent: calling it when already stopped is a no-op.
func (s *Session) StopListening() error {
	s.mu.Lock()
	if s.state != fsm.StateListening {
		// Also covers state error: stopping a failed session resets it.
		if s.state == fsm.StateError {
			s.state, _ = fsm.Transition(s.state, fsm.EventReset)
		}
		s.mu.Unlock()
		return nil
	}
	next, err := fsm.Transition(s.state, fsm.EventStopRequest)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.state = next
	done := s.done
	s.mu.Unlock()

	if err := s.rec.Stop(); err != nil {
		// Engine already stopped is not a failure; the stream will close.
		s.logger.Debug("recognizer stop", "error", err.Error())
	}
	if done != nil {
		<-done
	}
	return nil
}

// ConfigureQuestion points subsequent segments at a question. If actively
// listening it stops first, flushes, and resets the per-question buffers;
// when restart is set it resumes listening for the new question.
func (s *Session) ConfigureQuestion(ctx context.Context, questionID int, questionText string, restart bool) error {
	if err := s.StopListening(); err != nil {
		return err
	}

	s.mu.Lock()
	s.segments = nil
	s.forwarded = 0
	s.interim = ""
	s.mu.Unlock()

	s.manager.SetActiveQuestion(questionID, questionText)

	if restart {
		return s.StartListening(ctx)
	}
	return nil
}

// Reset discards accumulated segments and interim text without touching the
// transcript manager.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segments = nil
	s.forwarded = 0
	s.interim = ""
}

// consume processes one engine stream, restarting the engine when it stops
// on its own while the caller's intent is still listening.
func (s *Session) consume(ctx context.Context, events <-chan Event, done chan struct{}) {
	defer close(done)

	for {
		ev, ok := <-events
		if !ok {
			s.mu.Lock()
			listening := s.state == fsm.StateListening
			cfg := s.cfg
			s.mu.Unlock()

			if listening {
				// Engine auto-stop in continuous mode: restart immediately.
				// Finalized segments stay in the buffer, so nothing is
				// duplicated across the restart. Release the old stream
				// first; engines that close on their own do not accept a
				// new Start while they still hold resources. Start can
				// block on connect retries, so the lock is not held here.
				if err := s.rec.Stop(); err != nil {
					s.logger.Debug("release recognizer before restart", "error", err.Error())
				}
				restarted, err := s.rec.Start(ctx, cfg)
				if err != nil {
					s.mu.Lock()
					s.state, _ = fsm.Transition(s.state, fsm.EventFail)
					s.mu.Unlock()
					s.reportError(err)
					return
				}
				s.logger.Debug("recognizer restarted after engine stop")

				s.mu.Lock()
				stillListening := s.state == fsm.StateListening
				s.mu.Unlock()
				if !stillListening {
					// A stop request landed during the restart. Shut the
					// fresh stream down; its closure drives the normal
					// stopped path below.
					_ = s.rec.Stop()
				}
				events = restarted
				continue
			}

			s.mu.Lock()
			s.state, _ = fsm.Transition(s.state, fsm.EventStopped)
			s.interim = ""
			s.mu.Unlock()
			s.notifyInterim("")
			return
		}

		switch ev.Kind {
		case EventResult:
			s.handleResult(ev.Result)
		case EventError:
			if errors.Is(ev.Err, ErrNoSpeech) {
				// Transient noise; recognition continues.
				s.logger.Debug("no speech detected, continuing")
				continue
			}
			s.reportError(ev.Err)
		}
	}
}

// handleResult applies the interim-replace/final-append rules to one result.
func (s *Session) handleResult(result Result) {
	if !result.Final {
		s.mu.Lock()
		s.interim = result.Text
		s.mu.Unlock()
		s.notifyInterim(result.Text)
		return
	}

	now := s.now().UnixMilli()
	s.mu.Lock()
	segment := transcript.Segment{
		Text:       result.Text,
		StartTime:  s.refStart,
		EndTime:    now,
		Confidence: result.Confidence,
	}
	s.segments = append(s.segments, segment)
	s.refStart = now
	s.interim = ""

	// Length-based cursor: only segments beyond what was previously
	// forwarded are pushed, so a replay never duplicates.
	pending := append([]transcript.Segment(nil), s.segments[s.forwarded:]...)
	s.forwarded = len(s.segments)
	s.mu.Unlock()

	if len(pending) > 0 && s.manager != nil {
		if !s.manager.AddSegments(pending) {
			s.logger.Error("transcript manager rejected segments", "count", len(pending))
		}
	}
	s.notifyInterim("")
	if s.onSegment != nil {
		s.onSegment(segment)
	}
}

func (s *Session) reportError(err error) {
	if err == nil {
		return
	}
	s.logger.Error("recognition error", "error", err.Error())
	if s.onError != nil {
		s.onError(err)
	}
}

func (s *Session) notifyInterim(text string) {
	if s.onInterim != nil {
		s.onInterim(text)
	}
}

func joinNonEmpty(parts []string) string {
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out == "" {
			out = p
			continue
		}
		out += " " + p
	}
	return out
}
