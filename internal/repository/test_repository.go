package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/proctorly/proctor-backend/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// TestRepository handles test and question data access. Questions are the
// authoritative source for answer keys; the cache layer sits on top.
type TestRepository struct {
	pool *pgxpool.Pool
}

// NewTestRepository creates a new TestRepository.
func NewTestRepository(pool *pgxpool.Pool) *TestRepository {
	return &TestRepository{pool: pool}
}

// GetByID retrieves a test by its UUID.
func (r *TestRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Test, error) {
	t := &model.Test{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, duration_minutes, created_at, updated_at
		 FROM tests
		 WHERE id = $1`, id,
	).Scan(&t.ID, &t.Title, &t.DurationMinutes, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

// CountQuestions returns the question count for a test. The session state
// machine calls this on every control request so the count always reflects
// the latest authored content.
func (r *TestRepository) CountQuestions(ctx context.Context, testID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM questions WHERE test_id = $1`, testID,
	).Scan(&count)
	return count, err
}

// ListQuestions retrieves all questions for a test in authored order.
func (r *TestRepository) ListQuestions(ctx context.Context, testID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, test_id, question_type, question_text, correct_answer, marks, negative_marks, order_num
		 FROM questions
		 WHERE test_id = $1
		 ORDER BY order_num ASC`, testID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		var correctRaw []byte
		if err := rows.Scan(&q.ID, &q.TestID, &q.QuestionType, &q.QuestionText, &correctRaw, &q.Marks, &q.NegativeMarks, &q.OrderNum); err != nil {
			return nil, err
		}
		if len(correctRaw) > 0 {
			if err := json.Unmarshal(correctRaw, &q.CorrectAnswer); err != nil {
				return nil, fmt.Errorf("unmarshal correct_answer for question %s: %w", q.ID, err)
			}
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}
