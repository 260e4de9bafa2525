package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"prepmate/internal/models"
)

// MemStore is an in-memory Store for tests and single-process deployments.
type MemStore struct {
	mu         sync.RWMutex
	users      map[string]*models.User
	interviews map[string]*models.Interview
	now        func() time.Time
}

var _ Store = (*MemStore)(nil)

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		users:      make(map[string]*models.User),
		interviews: make(map[string]*models.Interview),
		now:        time.Now,
	}
}

// WithClock overrides the timestamp source, for tests.
func (s *MemStore) WithClock(now func() time.Time) *MemStore {
	s.now = now
	return s
}

func (s *MemStore) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(user.Email)
	for _, existing := range s.users {
		if strings.ToLower(existing.Email) == email {
			return ErrDuplicateEmail
		}
	}

	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now()
	}
	stored := *user
	s.users[user.ID] = &stored
	return nil
}

func (s *MemStore) UserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email = strings.ToLower(email)
	for _, user := range s.users {
		if strings.ToLower(user.Email) == email {
			found := *user
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemStore) UserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	found := *user
	return &found, nil
}

func (s *MemStore) CreateInterview(_ context.Context, interview *models.Interview) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if interview.CreatedAt.IsZero() {
		interview.CreatedAt = s.now()
	}
	interview.UpdatedAt = interview.CreatedAt
	stored := cloneInterview(interview)
	s.interviews[interview.ID] = &stored
	return nil
}

func (s *MemStore) InterviewByID(_ context.Context, id string) (*models.Interview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	interview, ok := s.interviews[id]
	if !ok {
		return nil, ErrNotFound
	}
	found := cloneInterview(interview)
	return &found, nil
}

func (s *MemStore) InterviewsByUser(_ context.Context, userID string, page, limit int) ([]models.Interview, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owned := make([]models.Interview, 0)
	for _, interview := range s.interviews {
		if interview.UserID == userID {
			owned = append(owned, cloneInterview(interview))
		}
	}

	sort.Slice(owned, func(i, j int) bool {
		if owned[i].CreatedAt.Equal(owned[j].CreatedAt) {
			return owned[i].ID > owned[j].ID
		}
		return owned[i].CreatedAt.After(owned[j].CreatedAt)
	})

	total := len(owned)
	start := (page - 1) * limit
	if start >= total {
		return []models.Interview{}, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	return owned[start:end], total, nil
}

func (s *MemStore) UpdateInterview(_ context.Context, interview *models.Interview) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.interviews[interview.ID]; !ok {
		return ErrNotFound
	}
	interview.UpdatedAt = s.now()
	stored := cloneInterview(interview)
	s.interviews[interview.ID] = &stored
	return nil
}

func (s *MemStore) DeleteInterview(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.interviews[id]; !ok {
		return ErrNotFound
	}
	delete(s.interviews, id)
	return nil
}

// cloneInterview copies the record deeply enough that callers cannot mutate
// stored state through returned slices and maps.
func cloneInterview(in *models.Interview) models.Interview {
	out := *in
	out.Questions = append([]string(nil), in.Questions...)
	out.Transcript = append([]models.TranscriptEntry(nil), in.Transcript...)
	if in.Feedback != nil {
		out.Feedback = make(map[string]any, len(in.Feedback))
		for k, v := range in.Feedback {
			out.Feedback[k] = v
		}
	}
	if in.VisualAnalysis != nil {
		out.VisualAnalysis = make(map[string]any, len(in.VisualAnalysis))
		for k, v := range in.VisualAnalysis {
			out.VisualAnalysis[k] = v
		}
	}
	if in.FinalScore != nil {
		score := *in.FinalScore
		out.FinalScore = &score
	}
	return out
}
