package model

import (
	"time"

	"github.com/google/uuid"
)

// QuestionType enumerates the answerable question kinds.
type QuestionType string

const (
	QuestionTypeMCQ      QuestionType = "mcq"
	QuestionTypeMultiMCQ QuestionType = "multi-mcq"
	QuestionTypeInteger  QuestionType = "integer"
	QuestionTypeText     QuestionType = "text"
)

// Test represents an authored test.
type Test struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	DurationMinutes int       `json:"duration_minutes"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Question represents a single authored question. CorrectAnswer is stored
// as JSON and may be a string, a number, or an array (multi-select).
type Question struct {
	ID            uuid.UUID    `json:"id"`
	TestID        uuid.UUID    `json:"test_id"`
	QuestionType  QuestionType `json:"question_type"`
	QuestionText  string       `json:"question_text"`
	CorrectAnswer interface{}  `json:"correct_answer"`
	Marks         float64      `json:"marks"`
	NegativeMarks float64      `json:"negative_marks"`
	OrderNum      int          `json:"order_num"`
}

// AnswerKeyEntry is the normalized per-question grading record derived
// from a Question. This is what lives in the answer-key cache; the
// authoritative data stays in the questions table.
type AnswerKeyEntry struct {
	QuestionID    uuid.UUID    `json:"question_id"`
	Type          QuestionType `json:"type"`
	CorrectAnswer interface{}  `json:"correct_answer"`
	Marks         float64      `json:"marks"`
	NegativeMarks float64      `json:"negative_marks"`
}
