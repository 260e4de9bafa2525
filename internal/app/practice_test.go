package app

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"prepmate/internal/fsm"
	"prepmate/internal/ipc"
	"prepmate/internal/transcript"
)

type fakeSession struct {
	mu         sync.Mutex
	manager    *transcript.Manager
	state      fsm.State
	interim    string
	configured []int
	startErr   error
	stops      int
}

func (f *fakeSession) StopListening() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.state = fsm.StateIdle
	return nil
}

func (f *fakeSession) ConfigureQuestion(_ context.Context, questionID int, questionText string, restart bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.configured = append(f.configured, questionID)
	if f.manager != nil {
		f.manager.SetActiveQuestion(questionID, questionText)
	}
	if restart {
		f.state = fsm.StateListening
	}
	return nil
}

func (f *fakeSession) State() fsm.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == "" {
		return fsm.StateIdle
	}
	return f.state
}

func (f *fakeSession) InterimText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.interim
}

func (f *fakeSession) configuredIDs() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.configured...)
}

func newTestController(t *testing.T, questions []string) (*practiceController, *fakeSession, *transcript.Manager) {
	t.Helper()
	manager := transcript.NewManager(transcript.NewMemorySnapshotStore(), nil)
	manager.StartSession()
	session := &fakeSession{manager: manager}
	controller := newPracticeController(nil, session, manager, questions, &bytes.Buffer{}, 0)
	return controller, session, manager
}

func runController(controller *practiceController) chan practiceResult {
	results := make(chan practiceResult, 1)
	go func() {
		results <- controller.Run(context.Background())
	}()
	return results
}

func awaitResult(t *testing.T, results chan practiceResult) practiceResult {
	t.Helper()
	select {
	case result := <-results:
		return result
	case <-time.After(2 * time.Second):
		t.Fatal("controller did not finish")
		return practiceResult{}
	}
}

func sendCommand(t *testing.T, controller *practiceController, command string) ipc.Response {
	t.Helper()
	resp := controller.Handle(context.Background(), ipc.Request{Command: command})
	require.True(t, resp.OK, resp.Error)
	return resp
}

func TestControllerWalksAllQuestions(t *testing.T) {
	controller, session, _ := newTestController(t, []string{"Q1", "Q2", "Q3"})
	results := runController(controller)

	require.Eventually(t, func() bool {
		return len(session.configuredIDs()) == 1
	}, time.Second, 10*time.Millisecond)

	sendCommand(t, controller, ipc.CommandNext)
	require.Eventually(t, func() bool {
		return len(session.configuredIDs()) == 2
	}, time.Second, 10*time.Millisecond)

	sendCommand(t, controller, ipc.CommandNext)
	require.Eventually(t, func() bool {
		return len(session.configuredIDs()) == 3
	}, time.Second, 10*time.Millisecond)

	// Advancing past the final question finishes the attempt.
	sendCommand(t, controller, ipc.CommandNext)
	result := awaitResult(t, results)

	require.NoError(t, result.Err)
	require.False(t, result.Cancelled)
	require.Equal(t, []int{1, 2, 3}, session.configuredIDs())
	require.NotZero(t, result.Session.EndTime)
	require.Len(t, result.Session.Questions, 3)
}

func TestControllerStopEndsEarly(t *testing.T) {
	controller, session, _ := newTestController(t, []string{"Q1", "Q2"})
	results := runController(controller)

	require.Eventually(t, func() bool {
		return len(session.configuredIDs()) == 1
	}, time.Second, 10*time.Millisecond)

	sendCommand(t, controller, ipc.CommandStop)
	result := awaitResult(t, results)

	require.NoError(t, result.Err)
	require.False(t, result.Cancelled)
	require.Len(t, result.Session.Questions, 1)
}

func TestControllerCancelDiscards(t *testing.T) {
	controller, session, _ := newTestController(t, []string{"Q1"})
	results := runController(controller)

	require.Eventually(t, func() bool {
		return len(session.configuredIDs()) == 1
	}, time.Second, 10*time.Millisecond)

	sendCommand(t, controller, ipc.CommandCancel)
	result := awaitResult(t, results)

	require.True(t, result.Cancelled)
	require.NoError(t, result.Err)
	require.Zero(t, result.Session.EndTime)
}

func TestControllerContextCancellation(t *testing.T) {
	controller, session, _ := newTestController(t, []string{"Q1"})
	ctx, cancel := context.WithCancel(context.Background())

	results := make(chan practiceResult, 1)
	go func() {
		results <- controller.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return len(session.configuredIDs()) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	result := awaitResult(t, results)
	require.True(t, result.Cancelled)
	require.ErrorIs(t, result.Err, context.Canceled)
}

func TestControllerStartFailure(t *testing.T) {
	manager := transcript.NewManager(transcript.NewMemorySnapshotStore(), nil)
	manager.StartSession()
	session := &fakeSession{manager: manager, startErr: errors.New("no microphone")}
	controller := newPracticeController(nil, session, manager, []string{"Q1"}, nil, 0)

	result := controller.Run(context.Background())
	require.ErrorContains(t, result.Err, "no microphone")
}

func TestHandleStatus(t *testing.T) {
	controller, session, _ := newTestController(t, []string{"Q1", "Q2"})
	session.interim = "so far I have"

	resp := controller.Handle(context.Background(), ipc.Request{Command: ipc.CommandStatus})
	require.True(t, resp.OK)
	require.Equal(t, 1, resp.Question)
	require.Equal(t, 2, resp.Total)
	require.Equal(t, "so far I have", resp.Interim)
}

func TestHandleUnknownCommand(t *testing.T) {
	controller, _, _ := newTestController(t, []string{"Q1"})

	resp := controller.Handle(context.Background(), ipc.Request{Command: "reboot"})
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "unknown command")
}

func TestEnqueueReportsPendingCommand(t *testing.T) {
	controller, _, _ := newTestController(t, []string{"Q1"})

	first := controller.Handle(context.Background(), ipc.Request{Command: ipc.CommandStop})
	require.Equal(t, "stop requested", first.Message)

	// The run loop is not draining, so a second command finds the slot taken.
	second := controller.Handle(context.Background(), ipc.Request{Command: ipc.CommandStop})
	require.Equal(t, "command already pending", second.Message)
}

func TestResumeIndex(t *testing.T) {
	empty := transcript.SessionData{Questions: map[int]*transcript.Question{}}
	require.Equal(t, 0, resumeIndex(empty, 5))

	partial := transcript.SessionData{Questions: map[int]*transcript.Question{
		1: {Text: "Q1"},
		2: {Text: "Q2"},
	}}
	require.Equal(t, 1, resumeIndex(partial, 5))

	overflow := transcript.SessionData{Questions: map[int]*transcript.Question{
		1: {}, 2: {}, 3: {},
	}}
	require.Equal(t, 1, resumeIndex(overflow, 2))
}
