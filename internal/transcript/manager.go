// Package transcript tracks per-question answer segments for one interview
// attempt and persists recovery snapshots after every mutation.
package transcript

import (
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// Segment is one finalized chunk of recognized speech. Timestamps are unix
// milliseconds, matching the wire format the backend stores.
type Segment struct {
	Text       string  `json:"text"`
	StartTime  int64   `json:"startTime"`
	EndTime    int64   `json:"endTime"`
	Confidence float64 `json:"confidence"`
}

// Question accumulates the segments recorded while a question was active.
type Question struct {
	Text      string    `json:"text"`
	StartTime int64     `json:"startTime"`
	Segments  []Segment `json:"segments"`
}

// SessionData is the complete state of one interview attempt.
type SessionData struct {
	StartTime int64             `json:"startTime"`
	EndTime   int64             `json:"endTime"`
	Questions map[int]*Question `json:"questions"`
}

// QuestionTranscript is the read model for one question's recorded answer.
type QuestionTranscript struct {
	QuestionID   int       `json:"questionId"`
	QuestionText string    `json:"questionText"`
	FullText     string    `json:"fullText"`
	Segments     []Segment `json:"segments"`
	StartTime    int64     `json:"startTime"`
}

// SubmissionEntry is the per-question shape sent to the backend.
type SubmissionEntry struct {
	QuestionID int    `json:"questionId"`
	Answer     string `json:"answer"`
	StartTime  int64  `json:"startTime"`
	EndTime    int64  `json:"endTime"`
}

// Manager owns the session clock, the per-question transcript map, and the
// active-question pointer. Safe for concurrent use.
type Manager struct {
	logger *slog.Logger
	store  SnapshotStore
	now    func() time.Time

	mu       sync.Mutex
	data     SessionData
	activeID int
	active   bool
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock injects the time source, used by tests to control timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager constructs a manager persisting snapshots to store. A nil store
// disables persistence; a nil logger discards logs.
func NewManager(store SnapshotStore, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	m := &Manager{
		logger: logger,
		store:  store,
		now:    time.Now,
		data:   SessionData{Questions: map[int]*Question{}},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// StartSession begins a new attempt, clearing any prior question data, and
// returns the session start timestamp.
func (m *Manager) StartSession() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data.StartTime = m.now().UnixMilli()
	m.data.EndTime = 0
	m.data.Questions = map[int]*Question{}
	m.active = false

	m.persistLocked()
	return m.data.StartTime
}

// EndSession stamps the end time and returns the full session data.
func (m *Manager) EndSession() SessionData {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data.EndTime = m.now().UnixMilli()
	m.persistLocked()
	return m.snapshotLocked()
}

// SetActiveQuestion selects the question receiving subsequent segments. A new
// question is created with the current time and empty segments; revisiting an
// existing question only updates its text. Negative ids are rejected with a
// log entry, not an error.
func (m *Manager) SetActiveQuestion(questionID int, questionText string) {
	if questionID < 0 {
		m.logger.Error("set active question with invalid id", "question_id", questionID)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if q, ok := m.data.Questions[questionID]; ok {
		q.Text = questionText
	} else {
		m.data.Questions[questionID] = &Question{
			Text:      questionText,
			StartTime: m.now().UnixMilli(),
		}
	}
	m.activeID = questionID
	m.active = true

	m.persistLocked()
}

// ActiveQuestionID returns the selected question key, if any.
func (m *Manager) ActiveQuestionID() (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeID, m.active
}

// AddSegment appends one segment to the active question. Returns false when
// no question is active; that is a caller error surfaced through the log, not
// a crash.
func (m *Manager) AddSegment(segment Segment) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addSegmentLocked(segment)
}

// AddSegments appends segments in order through the single-segment path. A
// nil slice fails as a whole with no partial application.
func (m *Manager) AddSegments(segments []Segment) bool {
	if segments == nil {
		m.logger.Error("add segments called with nil slice")
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ok := true
	for _, segment := range segments {
		if !m.addSegmentLocked(segment) {
			ok = false
		}
	}
	return ok
}

func (m *Manager) addSegmentLocked(segment Segment) bool {
	if !m.active {
		m.logger.Error("segment dropped: no active question", "text", segment.Text)
		return false
	}

	q := m.data.Questions[m.activeID]
	q.Segments = append(q.Segments, Segment{
		Text:       segment.Text,
		StartTime:  segment.StartTime,
		EndTime:    segment.EndTime,
		Confidence: segment.Confidence,
	})

	m.persistLocked()
	return true
}

// QuestionTranscript returns the read model for one question, or nil when the
// question is unknown.
func (m *Manager) QuestionTranscript(questionID int) *QuestionTranscript {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.questionTranscriptLocked(questionID)
}

// AllTranscripts returns every known question's transcript in key order.
func (m *Manager) AllTranscripts() []QuestionTranscript {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]QuestionTranscript, 0, len(m.data.Questions))
	for _, id := range m.questionIDsLocked() {
		result = append(result, *m.questionTranscriptLocked(id))
	}
	return result
}

// FormatForSubmission flattens the session into the array the backend's
// update endpoint accepts. A question with no segments reports its start time
// as its end time.
func (m *Manager) FormatForSubmission() []SubmissionEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	formatted := make([]SubmissionEntry, 0, len(m.data.Questions))
	for _, id := range m.questionIDsLocked() {
		q := m.data.Questions[id]
		endTime := q.StartTime
		if n := len(q.Segments); n > 0 {
			endTime = q.Segments[n-1].EndTime
		}
		formatted = append(formatted, SubmissionEntry{
			QuestionID: id,
			Answer:     joinSegments(q.Segments),
			StartTime:  q.StartTime,
			EndTime:    endTime,
		})
	}
	return formatted
}

// Session returns a copy of the current session data.
func (m *Manager) Session() SessionData {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) questionTranscriptLocked(questionID int) *QuestionTranscript {
	q, ok := m.data.Questions[questionID]
	if !ok {
		return nil
	}
	return &QuestionTranscript{
		QuestionID:   questionID,
		QuestionText: q.Text,
		FullText:     joinSegments(q.Segments),
		Segments:     append([]Segment(nil), q.Segments...),
		StartTime:    q.StartTime,
	}
}

func (m *Manager) questionIDsLocked() []int {
	ids := make([]int, 0, len(m.data.Questions))
	for id := range m.data.Questions {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (m *Manager) snapshotLocked() SessionData {
	copied := SessionData{
		StartTime: m.data.StartTime,
		EndTime:   m.data.EndTime,
		Questions: make(map[int]*Question, len(m.data.Questions)),
	}
	for id, q := range m.data.Questions {
		copied.Questions[id] = &Question{
			Text:      q.Text,
			StartTime: q.StartTime,
			Segments:  append([]Segment(nil), q.Segments...),
		}
	}
	return copied
}

// joinSegments concatenates segment texts with single spaces, in order.
func joinSegments(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		parts = append(parts, s.Text)
	}
	return strings.Join(parts, " ")
}
