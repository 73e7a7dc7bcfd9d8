package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/proctorly/proctor-backend/internal/config"
	"github.com/proctorly/proctor-backend/internal/kv"
	"github.com/proctorly/proctor-backend/internal/model"
	"github.com/rs/zerolog"
)

// ViolationService tracks proctoring violations per attempt. The record
// carries the caller-supplied TTL (the attempt's remaining duration) on
// every write, so it can never outlive the attempt it protects. When the
// backing store is unreachable the tracker soft-fails: a zeroed record and
// no auto-submit, rather than blocking the test.
type ViolationService struct {
	store         kv.Store
	maxViolations int
	log           zerolog.Logger
}

// NewViolationService creates a new ViolationService.
func NewViolationService(store kv.Store, maxViolations int, log zerolog.Logger) *ViolationService {
	return &ViolationService{
		store:         store,
		maxViolations: maxViolations,
		log:           log.With().Str("component", "violation_service").Logger(),
	}
}

// RecordViolation appends one violation and returns the updated record plus
// whether the threshold was reached. The caller decides what to do about
// auto-submit; this component has no side effects beyond its own state.
func (s *ViolationService) RecordViolation(ctx context.Context, attemptID, violationType string, ttl time.Duration) (model.ViolationRecord, bool) {
	key := config.CacheKey.ViolationKey(attemptID)
	record := model.ViolationRecord{AttemptID: attemptID}

	data, err := s.store.Get(ctx, key)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &record); err != nil {
			// Unreadable record: start over rather than fail the request.
			s.log.Warn().Str("attempt_id", attemptID).Msg("Discarding unreadable violation record")
			record = model.ViolationRecord{AttemptID: attemptID}
		}
	case errors.Is(err, kv.ErrNotFound):
		// First violation for this attempt.
	default:
		s.log.Warn().Err(err).Str("attempt_id", attemptID).Msg("Violation store unreachable, degrading to no-op")
		return model.ViolationRecord{AttemptID: attemptID}, false
	}

	record.Count++
	record.Violations = append(record.Violations, model.Violation{
		Type:      violationType,
		Timestamp: time.Now(),
	})

	payload, err := json.Marshal(record)
	if err == nil {
		err = s.store.Set(ctx, key, payload, ttl)
	}
	if err != nil {
		s.log.Warn().Err(err).Str("attempt_id", attemptID).Msg("Violation write failed, degrading to no-op")
		return model.ViolationRecord{AttemptID: attemptID}, false
	}

	return record, record.Count >= s.maxViolations
}
