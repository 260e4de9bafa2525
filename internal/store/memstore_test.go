package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"prepmate/internal/models"
)

func TestMemStoreCreateUserAndLookup(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	user := &models.User{ID: "u1", Name: "Ada", Email: "Ada@Example.com", Password: "hash"}
	require.NoError(t, s.CreateUser(ctx, user))
	require.False(t, user.CreatedAt.IsZero())

	byEmail, err := s.UserByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	require.Equal(t, "u1", byEmail.ID)

	byID, err := s.UserByID(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "Ada", byID.Name)
}

func TestMemStoreDuplicateEmail(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, &models.User{ID: "u1", Email: "ada@example.com"}))
	err := s.CreateUser(ctx, &models.User{ID: "u2", Email: "ADA@example.com"})
	require.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestMemStoreUserNotFound(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	_, err := s.UserByEmail(ctx, "nobody@example.com")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = s.UserByID(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemStoreInterviewLifecycle(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	interview := &models.Interview{
		ID:        "i1",
		UserID:    "u1",
		Questions: []string{"Q1", "Q2"},
	}
	require.NoError(t, s.CreateInterview(ctx, interview))
	require.False(t, interview.CreatedAt.IsZero())
	require.Equal(t, interview.CreatedAt, interview.UpdatedAt)

	loaded, err := s.InterviewByID(ctx, "i1")
	require.NoError(t, err)
	require.Equal(t, []string{"Q1", "Q2"}, loaded.Questions)

	score := 85.0
	loaded.FinalScore = &score
	loaded.Feedback = map[string]any{"summary": "solid"}
	require.NoError(t, s.UpdateInterview(ctx, loaded))

	reloaded, err := s.InterviewByID(ctx, "i1")
	require.NoError(t, err)
	require.NotNil(t, reloaded.FinalScore)
	require.Equal(t, 85.0, *reloaded.FinalScore)
	require.Equal(t, "solid", reloaded.Feedback["summary"])

	require.NoError(t, s.DeleteInterview(ctx, "i1"))
	_, err = s.InterviewByID(ctx, "i1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemStoreUpdateAndDeleteMissing(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	err := s.UpdateInterview(ctx, &models.Interview{ID: "missing"})
	require.ErrorIs(t, err, ErrNotFound)

	err = s.DeleteInterview(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemStoreReturnsCopies(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	require.NoError(t, s.CreateInterview(ctx, &models.Interview{
		ID:        "i1",
		UserID:    "u1",
		Questions: []string{"Q1"},
	}))

	loaded, err := s.InterviewByID(ctx, "i1")
	require.NoError(t, err)
	loaded.Questions[0] = "mutated"

	reloaded, err := s.InterviewByID(ctx, "i1")
	require.NoError(t, err)
	require.Equal(t, "Q1", reloaded.Questions[0])
}

func TestMemStoreListNewestFirstPaginated(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	s := NewMemStore().WithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	})
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		require.NoError(t, s.CreateInterview(ctx, &models.Interview{
			ID:     fmt.Sprintf("i%02d", i),
			UserID: "u1",
		}))
	}
	require.NoError(t, s.CreateInterview(ctx, &models.Interview{ID: "other", UserID: "u2"}))

	pageOne, total, err := s.InterviewsByUser(ctx, "u1", 1, 10)
	require.NoError(t, err)
	require.Equal(t, 25, total)
	require.Len(t, pageOne, 10)
	require.Equal(t, "i24", pageOne[0].ID)

	pageThree, total, err := s.InterviewsByUser(ctx, "u1", 3, 10)
	require.NoError(t, err)
	require.Equal(t, 25, total)
	require.Len(t, pageThree, 5)
	require.Equal(t, "i00", pageThree[4].ID)

	pageFour, total, err := s.InterviewsByUser(ctx, "u1", 4, 10)
	require.NoError(t, err)
	require.Equal(t, 25, total)
	require.Empty(t, pageFour)
}
