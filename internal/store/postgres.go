package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"prepmate/internal/models"
)

// Schema is the SQL DDL for the backend tables. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    email      TEXT NOT NULL UNIQUE,
    password   TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS interviews (
    id              TEXT PRIMARY KEY,
    user_id         TEXT NOT NULL REFERENCES users(id),
    questions       JSONB NOT NULL DEFAULT '[]',
    transcript      JSONB NOT NULL DEFAULT '[]',
    feedback        JSONB,
    visual_analysis JSONB,
    final_score     DOUBLE PRECISION,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_interviews_user_created ON interviews(user_id, created_at DESC);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy it.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by PostgreSQL. Structured sub-fields
// (questions, transcript, feedback, visual analysis) are serialized as JSONB.
type PostgresStore struct {
	db DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore wraps an open connection or pool. Call Migrate before
// issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	const query = `
		INSERT INTO users (id, name, email, password)
		VALUES ($1, $2, lower($3), $4)
		RETURNING created_at`

	err := s.db.QueryRow(ctx, query, user.ID, user.Name, user.Email, user.Password).
		Scan(&user.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("store: create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	const query = `
		SELECT id, name, email, password, created_at
		FROM users WHERE lower(email) = lower($1)`
	return s.scanUser(s.db.QueryRow(ctx, query, email))
}

func (s *PostgresStore) UserByID(ctx context.Context, id string) (*models.User, error) {
	const query = `
		SELECT id, name, email, password, created_at
		FROM users WHERE id = $1`
	return s.scanUser(s.db.QueryRow(ctx, query, id))
}

func (s *PostgresStore) scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.Password, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: scan user: %w", err)
	}
	return &user, nil
}

func (s *PostgresStore) CreateInterview(ctx context.Context, interview *models.Interview) error {
	questionsJSON, transcriptJSON, feedbackJSON, visualJSON, err := marshalInterviewFields(interview)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO interviews (id, user_id, questions, transcript, feedback, visual_analysis, final_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	err = s.db.QueryRow(ctx, query,
		interview.ID, interview.UserID,
		questionsJSON, transcriptJSON, feedbackJSON, visualJSON, interview.FinalScore,
	).Scan(&interview.CreatedAt, &interview.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: create interview: %w", err)
	}
	return nil
}

func (s *PostgresStore) InterviewByID(ctx context.Context, id string) (*models.Interview, error) {
	const query = `
		SELECT id, user_id, questions, transcript, feedback, visual_analysis, final_score, created_at, updated_at
		FROM interviews WHERE id = $1`

	interview, err := scanInterview(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return interview, nil
}

func (s *PostgresStore) InterviewsByUser(ctx context.Context, userID string, page, limit int) ([]models.Interview, int, error) {
	var total int
	const countQuery = `SELECT count(*) FROM interviews WHERE user_id = $1`
	if err := s.db.QueryRow(ctx, countQuery, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: count interviews: %w", err)
	}

	const query = `
		SELECT id, user_id, questions, transcript, feedback, visual_analysis, final_score, created_at, updated_at
		FROM interviews
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`

	rows, err := s.db.Query(ctx, query, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list interviews: %w", err)
	}
	defer rows.Close()

	interviews := make([]models.Interview, 0, limit)
	for rows.Next() {
		interview, scanErr := scanInterview(rows)
		if scanErr != nil {
			return nil, 0, scanErr
		}
		interviews = append(interviews, *interview)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("store: list interviews: %w", err)
	}
	return interviews, total, nil
}

func (s *PostgresStore) UpdateInterview(ctx context.Context, interview *models.Interview) error {
	questionsJSON, transcriptJSON, feedbackJSON, visualJSON, err := marshalInterviewFields(interview)
	if err != nil {
		return err
	}

	const query = `
		UPDATE interviews
		SET questions = $2, transcript = $3, feedback = $4, visual_analysis = $5, final_score = $6, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err = s.db.QueryRow(ctx, query,
		interview.ID,
		questionsJSON, transcriptJSON, feedbackJSON, visualJSON, interview.FinalScore,
	).Scan(&interview.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("store: update interview: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteInterview(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM interviews WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("store: delete interview: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func marshalInterviewFields(interview *models.Interview) ([]byte, []byte, []byte, []byte, error) {
	questions := interview.Questions
	if questions == nil {
		questions = []string{}
	}
	questionsJSON, err := json.Marshal(questions)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("store: marshal questions: %w", err)
	}

	transcriptEntries := interview.Transcript
	if transcriptEntries == nil {
		transcriptEntries = []models.TranscriptEntry{}
	}
	transcriptJSON, err := json.Marshal(transcriptEntries)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("store: marshal transcript: %w", err)
	}

	var feedbackJSON []byte
	if interview.Feedback != nil {
		feedbackJSON, err = json.Marshal(interview.Feedback)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("store: marshal feedback: %w", err)
		}
	}

	var visualJSON []byte
	if interview.VisualAnalysis != nil {
		visualJSON, err = json.Marshal(interview.VisualAnalysis)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("store: marshal visual analysis: %w", err)
		}
	}

	return questionsJSON, transcriptJSON, feedbackJSON, visualJSON, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInterview(row rowScanner) (*models.Interview, error) {
	var (
		interview      models.Interview
		questionsJSON  []byte
		transcriptJSON []byte
		feedbackJSON   []byte
		visualJSON     []byte
	)

	err := row.Scan(
		&interview.ID, &interview.UserID,
		&questionsJSON, &transcriptJSON, &feedbackJSON, &visualJSON,
		&interview.FinalScore, &interview.CreatedAt, &interview.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("store: scan interview: %w", err)
	}

	if err := json.Unmarshal(questionsJSON, &interview.Questions); err != nil {
		return nil, fmt.Errorf("store: unmarshal questions: %w", err)
	}
	if err := json.Unmarshal(transcriptJSON, &interview.Transcript); err != nil {
		return nil, fmt.Errorf("store: unmarshal transcript: %w", err)
	}
	if len(feedbackJSON) > 0 {
		if err := json.Unmarshal(feedbackJSON, &interview.Feedback); err != nil {
			return nil, fmt.Errorf("store: unmarshal feedback: %w", err)
		}
	}
	if len(visualJSON) > 0 {
		if err := json.Unmarshal(visualJSON, &interview.VisualAnalysis); err != nil {
			return nil, fmt.Errorf("store: unmarshal visual analysis: %w", err)
		}
	}
	return &interview, nil
}

// isDuplicateKeyError reports PostgreSQL unique-constraint violations.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
