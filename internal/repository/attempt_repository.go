package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/proctorly/proctor-backend/internal/model"
)

// AttemptRepository handles attempt data access. Answers live in a jsonb
// column so a whole attempt loads and persists as one row.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// Create inserts a new in-progress attempt. One attempt per taker per
// test; a retried start returns the existing row untouched.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO attempts (id, test_id, taker_id, status, answers, started_at, expires_at)
		 VALUES ($1, $2, $3, $4, '[]'::jsonb, $5, $6)
		 ON CONFLICT (test_id, taker_id) DO UPDATE SET taker_id = attempts.taker_id
		 RETURNING id, status, started_at, expires_at`,
		a.ID, a.TestID, a.TakerID, a.Status, a.StartedAt, a.ExpiresAt,
	).Scan(&a.ID, &a.Status, &a.StartedAt, &a.ExpiresAt)
}

// GetByID retrieves an attempt with its recorded answers.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	a := &model.Attempt{}
	var answersRaw []byte
	err := r.pool.QueryRow(ctx,
		`SELECT id, test_id, taker_id, status, answers, score, started_at, expires_at, submitted_at, graded_at
		 FROM attempts
		 WHERE id = $1`, id,
	).Scan(&a.ID, &a.TestID, &a.TakerID, &a.Status, &answersRaw, &a.Score, &a.StartedAt, &a.ExpiresAt, &a.SubmittedAt, &a.GradedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if len(answersRaw) > 0 {
		if err := json.Unmarshal(answersRaw, &a.Answers); err != nil {
			return nil, fmt.Errorf("unmarshal answers for attempt %s: %w", id, err)
		}
	}
	return a, nil
}

// SaveAnswer upserts one answer into the attempt's answers array. The
// replace-then-append runs inside a single UPDATE so concurrent saves for
// different questions cannot lose each other's writes. Only in-progress
// attempts accept answers.
func (r *AttemptRepository) SaveAnswer(ctx context.Context, attemptID uuid.UUID, answer model.AttemptAnswer) error {
	answerJSON, err := json.Marshal(answer)
	if err != nil {
		return fmt.Errorf("marshal answer: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE attempts
		 SET answers = (
		     SELECT COALESCE(jsonb_agg(a), '[]'::jsonb)
		     FROM jsonb_array_elements(answers) AS a
		     WHERE a->>'question_id' <> $2
		 ) || jsonb_build_array($3::jsonb)
		 WHERE id = $1 AND status = $4`,
		attemptID, answer.QuestionID.String(), answerJSON, model.AttemptStatusInProgress,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkSubmitted transitions an in-progress attempt to submitted. Returns
// false without error when the attempt was already submitted or graded, so
// redelivered expiry jobs stay no-ops.
func (r *AttemptRepository) MarkSubmitted(ctx context.Context, attemptID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE attempts
		 SET status = $1, submitted_at = NOW()
		 WHERE id = $2 AND status = $3`,
		model.AttemptStatusSubmitted, attemptID, model.AttemptStatusInProgress,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkGraded persists the grading result: annotated answers, signed score,
// graded status and timestamps. submitted_at is backfilled if absent.
func (r *AttemptRepository) MarkGraded(ctx context.Context, attempt *model.Attempt) error {
	answersJSON, err := json.Marshal(attempt.Answers)
	if err != nil {
		return fmt.Errorf("marshal graded answers: %w", err)
	}

	now := time.Now()
	_, err = r.pool.Exec(ctx,
		`UPDATE attempts
		 SET answers = $1,
		     score = $2,
		     status = $3,
		     submitted_at = COALESCE(submitted_at, $4),
		     graded_at = $4
		 WHERE id = $5`,
		answersJSON, attempt.Score, model.AttemptStatusGraded, now, attempt.ID,
	)
	return err
}
