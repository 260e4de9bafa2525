package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"prepmate/internal/models"
	"prepmate/internal/store"
)

// Interviews serves interview-record CRUD endpoints. All routes require the
// auth middleware to have resolved a user id.
type Interviews struct {
	store  store.InterviewStore
	logger *slog.Logger
}

// NewInterviews builds the interview handler set.
func NewInterviews(s store.InterviewStore, logger *slog.Logger) *Interviews {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Interviews{store: s, logger: logger}
}

// Create handles POST /api/interviews.
func (h *Interviews) Create(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		return
	}

	var body struct {
		Questions json.RawMessage `json:"questions"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondMessage(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	if isAbsent(body.Questions) {
		respondMessage(c, http.StatusBadRequest, "Questions are required")
		return
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(body.Questions, &raw); err != nil {
		respondMessage(c, http.StatusBadRequest, "Questions must be an array")
		return
	}
	if len(raw) == 0 {
		respondMessage(c, http.StatusBadRequest, "Questions are required")
		return
	}

	questions := make([]string, 0, len(raw))
	for _, item := range raw {
		var question string
		if err := json.Unmarshal(item, &question); err != nil || strings.TrimSpace(question) == "" {
			respondMessage(c, http.StatusBadRequest, "Each question must be a non-empty string")
			return
		}
		questions = append(questions, question)
	}

	interview := &models.Interview{
		ID:        uuid.NewString(),
		UserID:    userID,
		Questions: questions,
	}
	if err := h.store.CreateInterview(c.Request.Context(), interview); err != nil {
		h.logger.Error("create interview", "error", err)
		serverError(c)
		return
	}

	c.JSON(http.StatusCreated, interview)
}

// List handles GET /api/interviews.
func (h *Interviews) List(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		return
	}

	page := positiveIntQuery(c, "page", 1)
	limit := positiveIntQuery(c, "limit", 10)

	interviews, total, err := h.store.InterviewsByUser(c.Request.Context(), userID, page, limit)
	if err != nil {
		h.logger.Error("list interviews", "error", err)
		serverError(c)
		return
	}

	pages := total / limit
	if total%limit != 0 {
		pages++
	}

	c.JSON(http.StatusOK, models.InterviewPage{
		Interviews: interviews,
		PageInfo: models.PageInfo{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: pages,
		},
	})
}

// Get handles GET /api/interviews/:id.
func (h *Interviews) Get(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		return
	}

	interview, ok := h.ownedInterview(c, userID)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, interview)
}

// Update handles PUT /api/interviews/:id. Every provided field is validated
// before any mutation; a failed field aborts the whole update.
func (h *Interviews) Update(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		return
	}

	var body map[string]json.RawMessage
	if err := c.ShouldBindJSON(&body); err != nil {
		respondMessage(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	var (
		transcript []models.TranscriptEntry
		feedback   map[string]any
		visual     map[string]any
		finalScore *float64
	)

	if raw, present := body["transcript"]; present {
		entries, msg := parseTranscript(raw)
		if msg != "" {
			respondMessage(c, http.StatusBadRequest, msg)
			return
		}
		transcript = entries
	}
	if raw, present := body["feedback"]; present {
		object, msg := parseObject(raw, "feedback")
		if msg != "" {
			respondMessage(c, http.StatusBadRequest, msg)
			return
		}
		feedback = object
	}
	if raw, present := body["visualAnalysis"]; present {
		object, msg := parseObject(raw, "visualAnalysis")
		if msg != "" {
			respondMessage(c, http.StatusBadRequest, msg)
			return
		}
		visual = object
	}
	if raw, present := body["finalScore"]; present {
		var score float64
		if isNull(raw) || json.Unmarshal(raw, &score) != nil {
			respondMessage(c, http.StatusBadRequest, "finalScore must be a number")
			return
		}
		if score < 0 || score > 100 {
			respondMessage(c, http.StatusBadRequest, "finalScore must be between 0 and 100")
			return
		}
		finalScore = &score
	}

	interview, ok := h.ownedInterview(c, userID)
	if !ok {
		return
	}

	// Provided fields replace wholesale; absent fields are untouched.
	if _, present := body["transcript"]; present {
		interview.Transcript = transcript
	}
	if _, present := body["feedback"]; present {
		interview.Feedback = feedback
	}
	if _, present := body["visualAnalysis"]; present {
		interview.VisualAnalysis = visual
	}
	if _, present := body["finalScore"]; present {
		interview.FinalScore = finalScore
	}

	if err := h.store.UpdateInterview(c.Request.Context(), interview); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondMessage(c, http.StatusNotFound, "Interview not found")
			return
		}
		h.logger.Error("update interview", "error", err)
		serverError(c)
		return
	}

	c.JSON(http.StatusOK, interview)
}

// Delete handles DELETE /api/interviews/:id.
func (h *Interviews) Delete(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		return
	}

	interview, ok := h.ownedInterview(c, userID)
	if !ok {
		return
	}

	if err := h.store.DeleteInterview(c.Request.Context(), interview.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondMessage(c, http.StatusNotFound, "Interview not found")
			return
		}
		h.logger.Error("delete interview", "error", err)
		serverError(c)
		return
	}

	respondMessage(c, http.StatusOK, "Interview removed")
}

// ownedInterview resolves the :id route param, distinguishing malformed ids
// from unknown ones, and enforces ownership with not-found precedence.
func (h *Interviews) ownedInterview(c *gin.Context, userID string) (*models.Interview, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		respondMessage(c, http.StatusBadRequest, "Invalid interview ID format")
		return nil, false
	}

	interview, err := h.store.InterviewByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondMessage(c, http.StatusNotFound, "Interview not found")
			return nil, false
		}
		h.logger.Error("load interview", "error", err)
		serverError(c)
		return nil, false
	}

	if interview.UserID != userID {
		respondMessage(c, http.StatusUnauthorized, "Not authorized")
		return nil, false
	}
	return interview, true
}

func parseTranscript(raw json.RawMessage) ([]models.TranscriptEntry, string) {
	var items []json.RawMessage
	if isNull(raw) || json.Unmarshal(raw, &items) != nil {
		return nil, "Transcript must be an array"
	}

	const itemMsg = "Each transcript item must have questionText (string), answerText (string), and durationSeconds (number)"
	entries := make([]models.TranscriptEntry, 0, len(items))
	for _, item := range items {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(item, &fields); err != nil {
			return nil, itemMsg
		}

		// json.Unmarshal accepts null for any target type, so each field
		// needs an explicit null rejection to stay strictly typed.
		var entry models.TranscriptEntry
		if raw, present := fields["questionText"]; !present || isNull(raw) || json.Unmarshal(raw, &entry.QuestionText) != nil {
			return nil, itemMsg
		}
		if raw, present := fields["answerText"]; !present || isNull(raw) || json.Unmarshal(raw, &entry.AnswerText) != nil {
			return nil, itemMsg
		}
		if raw, present := fields["durationSeconds"]; !present || isNull(raw) || json.Unmarshal(raw, &entry.DurationSeconds) != nil {
			return nil, itemMsg
		}
		entries = append(entries, entry)
	}
	return entries, ""
}

func parseObject(raw json.RawMessage, field string) (map[string]any, string) {
	var object map[string]any
	if isNull(raw) || json.Unmarshal(raw, &object) != nil {
		return nil, field + " must be an object"
	}
	return object, ""
}

func positiveIntQuery(c *gin.Context, name string, fallback int) int {
	value, err := strconv.Atoi(c.Query(name))
	if err != nil || value < 1 {
		return fallback
	}
	return value
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || isNull(raw)
}

func isNull(raw json.RawMessage) bool {
	return string(raw) == "null"
}
