package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates live session states.
type SessionStatus string

const (
	SessionStatusWaiting  SessionStatus = "waiting"
	SessionStatusActive   SessionStatus = "active"
	SessionStatusPaused   SessionStatus = "paused"
	SessionStatusFinished SessionStatus = "finished"
)

// Session is the shared control state for a test being administered live.
// One row per test; mutated only through validated transitions in the
// session service. Concurrent control calls resolve last-writer-wins.
type Session struct {
	TestID               uuid.UUID     `json:"test_id"`
	Status               SessionStatus `json:"status"`
	CurrentQuestionIndex int           `json:"current_question_index"`
	StartedAt            *time.Time    `json:"started_at,omitempty"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

// ControlRequest is the admin control payload. Index is only meaningful
// for the goto action.
type ControlRequest struct {
	Action string `json:"action" binding:"required,max=16"`
	Index  *int   `json:"index,omitempty"`
}

// SessionState is the compact delta broadcast to gateways after every
// successful transition. This is the wire contract for the session channel.
type SessionState struct {
	TestID               string        `json:"test_id"`
	CurrentQuestionIndex int           `json:"current_question_index"`
	Status               SessionStatus `json:"status"`
}
