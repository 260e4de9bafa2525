// Package store persists users and interview records. Implementations must
// be safe for concurrent use.
package store

import (
	"context"
	"errors"

	"prepmate/internal/models"
)

var (
	// ErrNotFound is returned when a record id does not resolve.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateEmail is returned when registering an already-taken email.
	ErrDuplicateEmail = errors.New("email already registered")
)

// UserStore provides account persistence.
type UserStore interface {
	// CreateUser inserts a new user. Returns ErrDuplicateEmail when the
	// email is taken.
	CreateUser(ctx context.Context, user *models.User) error

	// UserByEmail resolves a user by email. Returns ErrNotFound if absent.
	UserByEmail(ctx context.Context, email string) (*models.User, error)

	// UserByID resolves a user by id. Returns ErrNotFound if absent.
	UserByID(ctx context.Context, id string) (*models.User, error)
}

// InterviewStore provides interview-record persistence.
type InterviewStore interface {
	// CreateInterview inserts a new record.
	CreateInterview(ctx context.Context, interview *models.Interview) error

	// InterviewByID resolves a record regardless of owner. Returns
	// ErrNotFound if absent; ownership checks are the caller's concern so
	// not-found and not-authorized stay distinct.
	InterviewByID(ctx context.Context, id string) (*models.Interview, error)

	// InterviewsByUser returns one page of the owner's records, newest
	// first by creation time, plus the owner's total record count.
	InterviewsByUser(ctx context.Context, userID string, page, limit int) ([]models.Interview, int, error)

	// UpdateInterview replaces the record's mutable fields wholesale.
	// Returns ErrNotFound if the id does not resolve.
	UpdateInterview(ctx context.Context, interview *models.Interview) error

	// DeleteInterview removes a record. Returns ErrNotFound if absent.
	DeleteInterview(ctx context.Context, id string) error
}

// Store bundles both persistence surfaces behind one backend.
type Store interface {
	UserStore
	InterviewStore
}
