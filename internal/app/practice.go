package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"prepmate/internal/fsm"
	"prepmate/internal/ipc"
	"prepmate/internal/transcript"
)

type action int

const (
	actionNext action = iota + 1
	actionStop
	actionCancel
)

// answerSession is the slice of the speech session the practice loop drives.
type answerSession interface {
	StopListening() error
	ConfigureQuestion(ctx context.Context, questionID int, questionText string, restart bool) error
	State() fsm.State
	InterimText() string
}

// practiceResult is the outcome of one complete practice attempt.
type practiceResult struct {
	Session    transcript.SessionData
	Cancelled  bool
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// practiceController walks the question list, pointing the speech session at
// one question at a time and reacting to IPC navigation commands.
type practiceController struct {
	logger    *slog.Logger
	session   answerSession
	manager   *transcript.Manager
	questions []string
	out       io.Writer

	mu    sync.RWMutex
	index int

	actions chan action
}

func newPracticeController(
	logger *slog.Logger,
	session answerSession,
	manager *transcript.Manager,
	questions []string,
	out io.Writer,
	startIndex int,
) *practiceController {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if out == nil {
		out = io.Discard
	}
	if startIndex < 0 {
		startIndex = 0
	}
	if startIndex >= len(questions) && len(questions) > 0 {
		startIndex = len(questions) - 1
	}

	return &practiceController{
		logger:    logger,
		session:   session,
		manager:   manager,
		questions: questions,
		out:       out,
		index:     startIndex,
		actions:   make(chan action, 1),
	}
}

func (c *practiceController) currentIndex() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index
}

func (c *practiceController) setIndex(index int) {
	c.mu.Lock()
	c.index = index
	c.mu.Unlock()
}

// Run executes one practice attempt from the starting question to
// stop/cancel/failure completion.
func (c *practiceController) Run(ctx context.Context) practiceResult {
	result := practiceResult{StartedAt: time.Now()}

	if err := c.activate(ctx, c.currentIndex()); err != nil {
		result.Err = err
		result.FinishedAt = time.Now()
		return result
	}

	for {
		select {
		case <-ctx.Done():
			_ = c.session.StopListening()
			result.Cancelled = true
			result.Err = ctx.Err()
			result.FinishedAt = time.Now()
			return result
		case a := <-c.actions:
			switch a {
			case actionCancel:
				_ = c.session.StopListening()
				result.Cancelled = true
				result.FinishedAt = time.Now()
				return result
			case actionStop:
				return c.finish(result)
			case actionNext:
				next := c.currentIndex() + 1
				if next >= len(c.questions) {
					return c.finish(result)
				}
				c.setIndex(next)
				if err := c.activate(ctx, next); err != nil {
					result.Err = err
					result.FinishedAt = time.Now()
					return result
				}
			default:
				_ = c.session.StopListening()
				result.Err = fmt.Errorf("unknown action %d", a)
				result.FinishedAt = time.Now()
				return result
			}
		}
	}
}

// activate points the session at a question and prints its prompt.
func (c *practiceController) activate(ctx context.Context, index int) error {
	fmt.Fprintf(c.out, "\nQuestion %d/%d: %s\n", index+1, len(c.questions), c.questions[index])
	if err := c.session.ConfigureQuestion(ctx, index+1, c.questions[index], true); err != nil {
		return fmt.Errorf("start question %d: %w", index+1, err)
	}
	return nil
}

func (c *practiceController) finish(result practiceResult) practiceResult {
	if err := c.session.StopListening(); err != nil {
		c.logger.Warn("stop listening", "error", err.Error())
	}
	result.Session = c.manager.EndSession()
	result.FinishedAt = time.Now()
	return result
}

// Handle serves IPC commands for the active practice attempt.
func (c *practiceController) Handle(_ context.Context, req ipc.Request) ipc.Response {
	state := string(c.session.State())
	question := c.currentIndex() + 1
	total := len(c.questions)

	switch req.Command {
	case ipc.CommandStatus:
		return ipc.Response{
			OK:       true,
			State:    state,
			Question: question,
			Total:    total,
			Interim:  c.session.InterimText(),
		}
	case ipc.CommandNext:
		return c.enqueue(actionNext, "next question requested", state, question, total)
	case ipc.CommandStop:
		return c.enqueue(actionStop, "stop requested", state, question, total)
	case ipc.CommandCancel:
		return c.enqueue(actionCancel, "cancel requested", state, question, total)
	default:
		return ipc.Response{
			OK:    false,
			State: state,
			Error: fmt.Sprintf("unknown command: %s", req.Command),
		}
	}
}

// enqueue hands an action to the run loop without blocking the IPC server.
func (c *practiceController) enqueue(a action, msg, state string, question, total int) ipc.Response {
	select {
	case c.actions <- a:
		return ipc.Response{OK: true, State: state, Question: question, Total: total, Message: msg}
	default:
		return ipc.Response{OK: true, State: state, Question: question, Total: total, Message: "command already pending"}
	}
}

// resumeIndex picks the question to reopen after a snapshot restore: the
// highest recorded question id, so a partially answered question keeps
// accumulating segments.
func resumeIndex(session transcript.SessionData, total int) int {
	highest := 0
	for id := range session.Questions {
		if id > highest {
			highest = id
		}
	}
	if highest == 0 {
		return 0
	}
	index := highest - 1
	if index >= total {
		index = total - 1
	}
	return index
}
