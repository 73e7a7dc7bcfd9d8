package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates attempt lifecycle states.
type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "in_progress"
	AttemptStatusSubmitted  AttemptStatus = "submitted"
	AttemptStatusGraded     AttemptStatus = "graded"
)

// Attempt is one test-taker's instance of a test. Grading is applied at
// most once: a grading job that finds Status == graded is a no-op.
type Attempt struct {
	ID          uuid.UUID       `json:"id"`
	TestID      uuid.UUID       `json:"test_id"`
	TakerID     int             `json:"taker_id"`
	Status      AttemptStatus   `json:"status"`
	Answers     []AttemptAnswer `json:"answers"`
	Score       *float64        `json:"score,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
	SubmittedAt *time.Time      `json:"submitted_at,omitempty"`
	GradedAt    *time.Time      `json:"graded_at,omitempty"`
}

// AttemptAnswer is a single recorded answer. GivenAnswer may be a string,
// a number, an array (multi-select), or nil for unanswered. The grading
// fields are populated once, by the grading engine.
type AttemptAnswer struct {
	QuestionID      uuid.UUID    `json:"question_id"`
	Type            QuestionType `json:"type"`
	GivenAnswer     interface{}  `json:"given_answer"`
	IsMarkedCorrect *bool        `json:"is_marked_correct,omitempty"`
	AwardedMarks    *float64     `json:"awarded_marks,omitempty"`
}

// SubmitAnswerRequest is the play API payload for saving one answer.
// Persistence is fire-and-forget; no grading happens here.
type SubmitAnswerRequest struct {
	QuestionID  string      `json:"question_id" binding:"required,uuid"`
	GivenAnswer interface{} `json:"given_answer"`
}

// RecordViolationRequest is the play API payload for a proctoring event.
type RecordViolationRequest struct {
	Type string `json:"type" binding:"required,max=64"`
}
