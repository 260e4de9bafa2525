// Package deepgram implements the speech.Recognizer port over the Deepgram
// live websocket API.
package deepgram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	clientinterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listen "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	listenv1ws "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen/v1/websocket"

	"prepmate/internal/speech"
)

// Capture parameters shared with the audio package: 16 kHz mono s16 PCM.
const (
	encoding   = "linear16"
	sampleRate = 16000
	channels   = 1
)

// Source supplies the PCM chunk stream fed to the recognition service.
// internal/audio.Capture satisfies it.
type Source interface {
	Start(ctx context.Context) error
	Chunks() <-chan []byte
	Stop() error
}

// Recognizer streams microphone audio to Deepgram and surfaces interim and
// finalized transcription results as speech events.
type Recognizer struct {
	apiKey string
	model  string
	source Source
	logger *slog.Logger

	mu      sync.Mutex
	client  *listenv1ws.WSCallback
	cancel  context.CancelFunc
	started bool
	gen     int
}

// New builds a recognizer for one API key. model may be empty to use the
// service default.
func New(apiKey, model string, source Source, logger *slog.Logger) *Recognizer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Recognizer{apiKey: apiKey, model: model, source: source, logger: logger}
}

var _ speech.Recognizer = (*Recognizer)(nil)

// Start opens the websocket, begins audio capture, and returns the event
// stream. The stream closes when the service ends the connection or Stop is
// called.
func (r *Recognizer) Start(ctx context.Context, cfg speech.Config) (<-chan speech.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil, errors.New("recognizer already started")
	}
	if strings.TrimSpace(r.apiKey) == "" {
		return nil, fmt.Errorf("%w: recognizer API key is empty", speech.ErrNotSupported)
	}

	runCtx, cancel := context.WithCancel(ctx)

	// The service drops the socket on its own after a silence window; the
	// close callback must release this stream's state so the session can
	// reopen it. The generation guards against a stale callback from an
	// earlier stream clearing a newer one.
	r.gen++
	gen := r.gen

	events := make(chan speech.Event, 32)
	handler := &liveHandler{
		events:  events,
		logger:  r.logger,
		onClose: func() { r.streamClosed(gen) },
	}

	options := &clientinterfaces.LiveTranscriptionOptions{
		Model:          r.model,
		Language:       cfg.Language,
		Punctuate:      true,
		InterimResults: cfg.InterimResults,
		Encoding:       encoding,
		SampleRate:     sampleRate,
		Channels:       channels,
	}

	client, err := listen.NewWSUsingCallback(runCtx, r.apiKey, &clientinterfaces.ClientOptions{}, options, handler)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: create live client: %v", speech.ErrNotSupported, err)
	}
	if !client.Connect() {
		cancel()
		return nil, fmt.Errorf("%w: unable to reach recognition service", speech.ErrNotSupported)
	}

	if err := r.source.Start(runCtx); err != nil {
		client.Stop()
		cancel()
		return nil, fmt.Errorf("%w: %v", speech.ErrPermissionDenied, err)
	}

	go pump(r.source.Chunks(), client, r.logger)

	r.client = client
	r.cancel = cancel
	r.started = true
	return events, nil
}

// Stop shuts down capture and the websocket. Safe to call when already
// stopped. The mutex is released before teardown: client.Stop fires the
// close callback, which takes the same mutex.
func (r *Recognizer) Stop() error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil
	}
	r.started = false
	client := r.client
	cancel := r.cancel
	r.client = nil
	r.cancel = nil
	r.mu.Unlock()

	err := r.source.Stop()
	if client != nil {
		client.Stop()
	}
	if cancel != nil {
		cancel()
	}
	return err
}

// streamClosed releases the stream's resources when the service closed the
// socket without a Stop call. The websocket is already gone, so only the
// capture source and the run context need tearing down.
func (r *Recognizer) streamClosed(gen int) {
	r.mu.Lock()
	if !r.started || gen != r.gen {
		r.mu.Unlock()
		return
	}
	r.started = false
	cancel := r.cancel
	r.client = nil
	r.cancel = nil
	r.mu.Unlock()

	if err := r.source.Stop(); err != nil {
		r.logger.Debug("stop capture after stream close", "error", err.Error())
	}
	if cancel != nil {
		cancel()
	}
}

// pump forwards captured PCM chunks until the source channel closes.
func pump(chunks <-chan []byte, client *listenv1ws.WSCallback, logger *slog.Logger) {
	for chunk := range chunks {
		if err := client.WriteBinary(chunk); err != nil {
			logger.Debug("write audio chunk", "error", err.Error())
			return
		}
	}
}

// liveHandler adapts Deepgram callback events onto the speech event stream.
type liveHandler struct {
	events  chan speech.Event
	logger  *slog.Logger
	onClose func()

	closeOnce sync.Once
}

var _ msginterfaces.LiveMessageCallback = (*liveHandler)(nil)

func (h *liveHandler) Open(*msginterfaces.OpenResponse) error {
	h.logger.Debug("recognition stream open")
	return nil
}

func (h *liveHandler) Message(mr *msginterfaces.MessageResponse) error {
	if mr == nil || len(mr.Channel.Alternatives) == 0 {
		return nil
	}
	alt := mr.Channel.Alternatives[0]
	text := strings.TrimSpace(alt.Transcript)
	if text == "" {
		return nil
	}
	h.emit(speech.Event{Kind: speech.EventResult, Result: speech.Result{
		Text:       text,
		Confidence: alt.Confidence,
		Final:      mr.IsFinal,
	}})
	return nil
}

func (h *liveHandler) Metadata(*msginterfaces.MetadataResponse) error { return nil }

func (h *liveHandler) SpeechStarted(*msginterfaces.SpeechStartedResponse) error { return nil }

func (h *liveHandler) UtteranceEnd(*msginterfaces.UtteranceEndResponse) error { return nil }

func (h *liveHandler) Close(*msginterfaces.CloseResponse) error {
	// Adapter state is released before the channel closes, so a consumer
	// reacting to the closure can start a fresh stream immediately.
	h.closeOnce.Do(func() {
		if h.onClose != nil {
			h.onClose()
		}
		close(h.events)
	})
	return nil
}

func (h *liveHandler) Error(er *msginterfaces.ErrorResponse) error {
	if er == nil {
		return nil
	}
	h.emit(speech.Event{Kind: speech.EventError, Err: classifyError(er.ErrMsg, er.Description)})
	return nil
}

func (h *liveHandler) UnhandledEvent(raw []byte) error {
	h.logger.Debug("unhandled recognition event", "raw", string(raw))
	return nil
}

func (h *liveHandler) emit(ev speech.Event) {
	select {
	case h.events <- ev:
	default:
		// A stalled consumer drops telemetry, never blocks the socket.
		h.logger.Debug("recognition event dropped: consumer stalled")
	}
}

// classifyError maps service errors onto the session's error taxonomy.
func classifyError(msg, description string) error {
	combined := strings.ToLower(msg + " " + description)
	switch {
	case strings.Contains(combined, "no speech"), strings.Contains(combined, "net-0001"):
		return fmt.Errorf("%w: %s", speech.ErrNoSpeech, msg)
	case strings.Contains(combined, "401"), strings.Contains(combined, "unauthorized"), strings.Contains(combined, "invalid auth"):
		return fmt.Errorf("%w: %s", speech.ErrPermissionDenied, msg)
	default:
		return fmt.Errorf("recognition service error: %s %s", msg, description)
	}
}
