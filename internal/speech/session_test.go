package speech_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prepmate/internal/fsm"
	"prepmate/internal/speech"
	"prepmate/internal/speech/speechmock"
	"prepmate/internal/transcript"
)

func newManager() *transcript.Manager {
	return transcript.NewManager(transcript.NewMemorySnapshotStore(), nil)
}

func startedSession(t *testing.T, rec *speechmock.Recognizer, manager *transcript.Manager, opts ...speech.SessionOption) *speech.Session {
	t.Helper()
	session := speech.NewSession(rec, manager, nil, opts...)
	manager.StartSession()
	manager.SetActiveQuestion(0, "Tell me about yourself")
	return session
}

func TestFinalResultsBecomeTimestampedSegments(t *testing.T) {
	rec := &speechmock.Recognizer{Scripts: []speechmock.Script{{
		HoldOpen: true,
		Events: []speech.Event{
			speechmock.FinalResult("I am", 0.9),
			speechmock.FinalResult("a developer", 0.8),
		},
	}}}
	manager := newManager()
	session := startedSession(t, rec, manager)

	require.NoError(t, session.StartListening(context.Background()))
	require.NoError(t, session.StopListening())

	segs := session.Segments()
	require.Len(t, segs, 2)
	assert.Equal(t, "I am", segs[0].Text)
	assert.InDelta(t, 0.9, segs[0].Confidence, 1e-9)
	assert.GreaterOrEqual(t, segs[0].EndTime, segs[0].StartTime)
	// The reference start time advances: the second segment begins where
	// the first ended.
	assert.Equal(t, segs[0].EndTime, segs[1].StartTime)

	tr := manager.QuestionTranscript(0)
	require.NotNil(t, tr)
	assert.Equal(t, "I am a developer", tr.FullText)
}

func TestInterimTextReplacedWholesaleAndClearedOnFinal(t *testing.T) {
	rec := &speechmock.Recognizer{Scripts: []speechmock.Script{{
		HoldOpen: true,
		Events: []speech.Event{
			speechmock.InterimResult("I"),
			speechmock.InterimResult("I am"),
			speechmock.FinalResult("I am here", 0.95),
		},
	}}}
	manager := newManager()

	var mu sync.Mutex
	var seen []string
	session := startedSession(t, rec, manager, speech.WithInterimFunc(func(text string) {
		mu.Lock()
		seen = append(seen, text)
		mu.Unlock()
	}))

	require.NoError(t, session.StartListening(context.Background()))
	require.NoError(t, session.StopListening())

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(seen), 3)
	assert.Equal(t, "I", seen[0])
	assert.Equal(t, "I am", seen[1])
	assert.Equal(t, "", seen[2])
	assert.Empty(t, session.InterimText())
}

func TestEngineAutoStopRestartsWithoutDuplication(t *testing.T) {
	rec := &speechmock.Recognizer{Scripts: []speechmock.Script{
		{Events: []speech.Event{speechmock.FinalResult("hello", 0.9)}}, // engine stops on its own
		{HoldOpen: true, Events: []speech.Event{speechmock.FinalResult("world", 0.9)}},
	}}
	manager := newManager()
	session := startedSession(t, rec, manager)

	require.NoError(t, session.StartListening(context.Background()))

	require.Eventually(t, func() bool {
		return session.Transcript() == "hello world"
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, 2, rec.StartCalls())
	// The exhausted engine is released before the new stream opens.
	require.Equal(t, 1, rec.StopCalls())

	require.NoError(t, session.StopListening())

	tr := manager.QuestionTranscript(0)
	require.NotNil(t, tr)
	require.Len(t, tr.Segments, 2)
	assert.Equal(t, "hello world", tr.FullText)
}

func TestServiceInitiatedCloseRestartsListening(t *testing.T) {
	// The backend drops a held-open socket after a silence window without
	// any Stop call on this side. Listening must survive that.
	rec := &speechmock.Recognizer{Scripts: []speechmock.Script{
		{HoldOpen: true, Events: []speech.Event{speechmock.FinalResult("hello", 0.9)}},
		{HoldOpen: true, Events: []speech.Event{speechmock.FinalResult("world", 0.9)}},
	}}
	manager := newManager()
	session := startedSession(t, rec, manager)

	require.NoError(t, session.StartListening(context.Background()))
	require.Eventually(t, func() bool {
		return session.Transcript() == "hello"
	}, time.Second, 5*time.Millisecond)

	rec.CloseStream()

	require.Eventually(t, func() bool {
		return session.Transcript() == "hello world"
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, 2, rec.StartCalls())
	require.Equal(t, fsm.StateListening, session.State())

	require.NoError(t, session.StopListening())

	tr := manager.QuestionTranscript(0)
	require.NotNil(t, tr)
	require.Len(t, tr.Segments, 2)
	assert.Equal(t, "hello world", tr.FullText)
}

func TestNoSpeechErrorIsInvisible(t *testing.T) {
	rec := &speechmock.Recognizer{Scripts: []speechmock.Script{{
		HoldOpen: true,
		Events: []speech.Event{
			speechmock.ErrorEvent(fmt.Errorf("engine: %w", speech.ErrNoSpeech)),
			speechmock.FinalResult("still going", 0.7),
		},
	}}}
	manager := newManager()

	var reported error
	session := startedSession(t, rec, manager, speech.WithErrorFunc(func(err error) { reported = err }))

	require.NoError(t, session.StartListening(context.Background()))
	require.NoError(t, session.StopListening())

	assert.NoError(t, reported)
	assert.Equal(t, "still going", session.Transcript())
}

func TestUnsupportedEnvironmentFailsFast(t *testing.T) {
	rec := &speechmock.Recognizer{Scripts: []speechmock.Script{{
		StartErr: speech.ErrNotSupported,
	}}}
	manager := newManager()

	var reported error
	session := startedSession(t, rec, manager, speech.WithErrorFunc(func(err error) { reported = err }))

	err := session.StartListening(context.Background())
	require.ErrorIs(t, err, speech.ErrNotSupported)
	require.ErrorIs(t, reported, speech.ErrNotSupported)
	assert.Equal(t, fsm.StateError, session.State())
	assert.False(t, session.Listening())
}

func TestPermissionDeniedReported(t *testing.T) {
	rec := &speechmock.Recognizer{Scripts: []speechmock.Script{
		{HoldOpen: true, Events: []speech.Event{speechmock.ErrorEvent(speech.ErrPermissionDenied)}},
		{HoldOpen: true},
	}}
	manager := newManager()

	errCh := make(chan error, 1)
	session := startedSession(t, rec, manager, speech.WithErrorFunc(func(err error) { errCh <- err }))

	require.NoError(t, session.StartListening(context.Background()))
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, speech.ErrPermissionDenied)
	case <-time.After(time.Second):
		t.Fatal("permission error was not reported")
	}
	require.NoError(t, session.StopListening())
}

func TestStopListeningIsIdempotent(t *testing.T) {
	rec := &speechmock.Recognizer{Scripts: []speechmock.Script{{HoldOpen: true}}}
	manager := newManager()
	session := startedSession(t, rec, manager)

	require.NoError(t, session.StartListening(context.Background()))
	require.NoError(t, session.StopListening())

	stateAfterFirst := session.State()
	stopsAfterFirst := rec.StopCalls()

	require.NoError(t, session.StopListening())
	assert.Equal(t, stateAfterFirst, session.State())
	assert.Equal(t, stopsAfterFirst, rec.StopCalls())
}

func TestStopBeforeStartIsNoOp(t *testing.T) {
	rec := &speechmock.Recognizer{}
	session := speech.NewSession(rec, newManager(), nil)

	require.NoError(t, session.StopListening())
	assert.Equal(t, fsm.StateIdle, session.State())
	assert.Zero(t, rec.StopCalls())
}

func TestStopToleratesAlreadyStoppedEngine(t *testing.T) {
	rec := &speechmock.Recognizer{
		Scripts: []speechmock.Script{{HoldOpen: true}},
		StopErr: errors.New("recognizer already stopped"),
	}
	manager := newManager()
	session := startedSession(t, rec, manager)

	require.NoError(t, session.StartListening(context.Background()))
	require.NoError(t, session.StopListening())
	assert.Equal(t, fsm.StateIdle, session.State())
}

func TestConfigureQuestionStopsFlushesAndRetargets(t *testing.T) {
	rec := &speechmock.Recognizer{Scripts: []speechmock.Script{
		{HoldOpen: true, Events: []speech.Event{
			speechmock.FinalResult("first answer", 0.9),
			speechmock.InterimResult("half a thou"),
		}},
		{HoldOpen: true, Events: []speech.Event{speechmock.FinalResult("second answer", 0.9)}},
	}}
	manager := newManager()
	session := startedSession(t, rec, manager)

	require.NoError(t, session.StartListening(context.Background()))
	require.NoError(t, session.ConfigureQuestion(context.Background(), 1, "Why this role?", true))

	require.Eventually(t, func() bool {
		return session.Transcript() == "second answer"
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, session.StopListening())

	first := manager.QuestionTranscript(0)
	require.NotNil(t, first)
	assert.Equal(t, "first answer", first.FullText)

	second := manager.QuestionTranscript(1)
	require.NotNil(t, second)
	assert.Equal(t, "second answer", second.FullText)

	assert.Empty(t, session.InterimText())
}

func TestLanguageChangeRequiresStop(t *testing.T) {
	rec := &speechmock.Recognizer{Scripts: []speechmock.Script{
		{HoldOpen: true},
		{HoldOpen: true},
	}}
	manager := newManager()
	session := startedSession(t, rec, manager)

	require.NoError(t, session.StartListening(context.Background()))
	require.Error(t, session.SetLanguage("de-DE"))

	require.NoError(t, session.StopListening())
	require.NoError(t, session.SetLanguage("de-DE"))
	require.NoError(t, session.StartListening(context.Background()))
	require.NoError(t, session.StopListening())

	assert.Equal(t, "de-DE", rec.LastConfig().Language)
}
