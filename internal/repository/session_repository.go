package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/proctorly/proctor-backend/internal/model"
)

// SessionRepository persists live session state. One row per test,
// keyed by test_id; the upsert gives last-writer-wins semantics for
// concurrent control calls.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// GetByTest retrieves the session for a test.
func (r *SessionRepository) GetByTest(ctx context.Context, testID uuid.UUID) (*model.Session, error) {
	s := &model.Session{}
	err := r.pool.QueryRow(ctx,
		`SELECT test_id, status, current_question_index, started_at, updated_at
		 FROM sessions
		 WHERE test_id = $1`, testID,
	).Scan(&s.TestID, &s.Status, &s.CurrentQuestionIndex, &s.StartedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

// Upsert writes the session, creating the row on first use and resetting
// (not duplicating) any prior session for the same test.
func (r *SessionRepository) Upsert(ctx context.Context, s *model.Session) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO sessions (test_id, status, current_question_index, started_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (test_id) DO UPDATE
		 SET status = EXCLUDED.status,
		     current_question_index = EXCLUDED.current_question_index,
		     started_at = EXCLUDED.started_at,
		     updated_at = EXCLUDED.updated_at`,
		s.TestID, s.Status, s.CurrentQuestionIndex, s.StartedAt, s.UpdatedAt,
	)
	return err
}
