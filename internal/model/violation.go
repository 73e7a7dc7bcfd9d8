package model

import "time"

// Violation is one detected proctoring anomaly (no face, multiple faces,
// tab switch, camera disabled, ...). The type string comes from the
// browser-side detector and is stored verbatim.
type Violation struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// ViolationRecord is the TTL-bound per-attempt violation log. It lives in
// the key-value store with an expiry equal to the attempt's remaining
// duration; disappearing on expiry is intentional.
type ViolationRecord struct {
	AttemptID  string      `json:"attempt_id"`
	Count      int         `json:"count"`
	Violations []Violation `json:"violations"`
}
