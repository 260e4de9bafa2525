// Package models defines the persisted user and interview documents shared
// by the backend store, handlers, and client.
package models

import "time"

// User is a registered account. The password field holds a bcrypt hash and
// never leaves the server.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// TranscriptEntry is one answered question inside a stored interview.
type TranscriptEntry struct {
	QuestionText    string  `json:"questionText"`
	AnswerText      string  `json:"answerText"`
	DurationSeconds float64 `json:"durationSeconds"`
}

// Interview is one completed mock-interview session owned by a user.
// Feedback and VisualAnalysis are free-form JSON objects replaced wholesale
// on update, never merged field-by-field.
type Interview struct {
	ID             string            `json:"id"`
	UserID         string            `json:"userId"`
	Questions      []string          `json:"questions"`
	Transcript     []TranscriptEntry `json:"transcript"`
	Feedback       map[string]any    `json:"feedback,omitempty"`
	VisualAnalysis map[string]any    `json:"visualAnalysis,omitempty"`
	FinalScore     *float64          `json:"finalScore,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// PageInfo describes one page of a list response.
type PageInfo struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// InterviewPage is the paginated list envelope returned by the backend.
type InterviewPage struct {
	Interviews []Interview `json:"interviews"`
	PageInfo   PageInfo    `json:"pageInfo"`
}
