package gateway

import "github.com/proctorly/proctor-backend/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionJoin Action = "join"
	ActionPing Action = "ping"
)

// RequestPayload is the client message envelope.
type RequestPayload struct {
	Action Action `json:"action"`
	TestID string `json:"test_id,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState     Event = "state"
	EventHeadcount Event = "headcount"
	EventJoined    Event = "joined"
	EventError     Event = "error"
	EventPong      Event = "pong"
)

// StateEvent carries the authoritative session state to a room. Clients
// replace their local state wholesale on receipt.
type StateEvent struct {
	Event Event              `json:"event"`
	Data  model.SessionState `json:"data"`
}

// HeadcountEvent carries the current room size, recomputed on every join.
type HeadcountEvent struct {
	Event Event `json:"event"`
	Data  struct {
		Count int `json:"count"`
	} `json:"data"`
}

// JoinedEvent acknowledges a successful room join.
type JoinedEvent struct {
	Event  Event  `json:"event"`
	TestID string `json:"test_id"`
}

// ErrorEvent reports a protocol error to one client.
type ErrorEvent struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

// PongEvent answers a client ping.
type PongEvent struct {
	Event Event `json:"event"`
}
