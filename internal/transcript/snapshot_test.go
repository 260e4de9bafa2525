package transcript

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSnapshotRoundTripThroughMemoryStore(t *testing.T) {
	store := NewMemorySnapshotStore()
	m := NewManager(store, nil, WithClock(fakeClock(0)))

	m.StartSession()
	m.SetActiveQuestion(0, "Tell me about yourself")
	require.True(t, m.AddSegment(Segment{Text: "I am", StartTime: 0, EndTime: 1, Confidence: 0.9}))
	require.True(t, m.AddSegment(Segment{Text: "a developer", StartTime: 1, EndTime: 2, Confidence: 0.8}))

	restored := NewManager(store, nil)
	require.True(t, restored.Restore())

	tr := restored.QuestionTranscript(0)
	require.NotNil(t, tr)
	require.Equal(t, "I am a developer", tr.FullText)

	// Recovery does not resurrect the active-question pointer.
	_, active := restored.ActiveQuestionID()
	require.False(t, active)
}

func TestRestoreWithoutSnapshot(t *testing.T) {
	m := NewManager(NewMemorySnapshotStore(), nil)
	require.False(t, m.Restore())
}

func TestRestoreCorruptSnapshot(t *testing.T) {
	store := NewMemorySnapshotStore()
	require.NoError(t, store.Save(SnapshotKey, []byte("{not json")))

	m := NewManager(store, nil)
	require.False(t, m.Restore())
}

func TestClearSnapshot(t *testing.T) {
	store := NewMemorySnapshotStore()
	m := NewManager(store, nil, WithClock(fakeClock(0)))

	m.StartSession()
	m.ClearSnapshot()

	_, err := store.Load(SnapshotKey)
	require.ErrorIs(t, err, ErrNoSnapshot)
}

func TestFileSnapshotStoreRoundTrip(t *testing.T) {
	store, err := NewFileSnapshotStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save("k", []byte(`{"a":1}`)))
	blob, err := store.Load("k")
	require.NoError(t, err)
	require.JSONEq(t, `{"a":1}`, string(blob))

	require.NoError(t, store.Clear("k"))
	_, err = store.Load("k")
	require.ErrorIs(t, err, ErrNoSnapshot)

	// Clearing a missing key is not an error.
	require.NoError(t, store.Clear("k"))
}
