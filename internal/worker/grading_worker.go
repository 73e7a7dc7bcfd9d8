package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/proctorly/proctor-backend/internal/config"
	"github.com/proctorly/proctor-backend/internal/queue"
	"github.com/proctorly/proctor-backend/internal/service"
	"github.com/rs/zerolog"
)

// GradeAttemptPayload names the attempt a grading job covers. Payloads are
// self-sufficient: redelivery and out-of-order execution are both safe
// because grading is idempotent per attempt.
type GradeAttemptPayload struct {
	AttemptID string `json:"attempt_id"`
}

// TestExpiryPayload names the attempt a scheduled expiry job covers.
type TestExpiryPayload struct {
	AttemptID string `json:"attempt_id"`
}

// AttemptSubmitter force-submits attempts whose time ran out.
type AttemptSubmitter interface {
	MarkSubmitted(ctx context.Context, attemptID uuid.UUID) (bool, error)
}

// GradingWorker consumes the grading queue: explicit submissions and
// timer-driven expiries both funnel into the same grading path. Safe at
// any concurrency because of the idempotence guard in the service.
type GradingWorker struct {
	worker *queue.Worker
	log    zerolog.Logger
}

// NewGradingWorker wires the grading handlers onto a worker pool.
func NewGradingWorker(q *queue.Queue, grading *service.GradingService, attempts AttemptSubmitter, concurrency int, log zerolog.Logger) *GradingWorker {
	gw := &GradingWorker{
		worker: queue.NewWorker(q, concurrency),
		log:    log.With().Str("component", "grading_worker").Logger(),
	}

	gw.worker.Handle(config.JobGradeAttempt, func(ctx context.Context, job *queue.Job) (interface{}, error) {
		var p GradeAttemptPayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode grade payload: %w", err)
		}
		attemptID, err := uuid.Parse(p.AttemptID)
		if err != nil {
			return nil, fmt.Errorf("invalid attempt id %q: %w", p.AttemptID, err)
		}
		return nil, grading.GradeAttempt(ctx, attemptID)
	})

	gw.worker.Handle(config.JobTestExpiry, func(ctx context.Context, job *queue.Job) (interface{}, error) {
		var p TestExpiryPayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode expiry payload: %w", err)
		}
		attemptID, err := uuid.Parse(p.AttemptID)
		if err != nil {
			return nil, fmt.Errorf("invalid attempt id %q: %w", p.AttemptID, err)
		}

		submitted, err := attempts.MarkSubmitted(ctx, attemptID)
		if err != nil {
			return nil, fmt.Errorf("expire attempt %s: %w", attemptID, err)
		}
		if submitted {
			gw.log.Info().Str("attempt_id", p.AttemptID).Msg("Attempt expired, forcing submission")
		}
		// Already-submitted attempts still pass through grading; the
		// idempotence guard makes a second grade a no-op.
		return nil, grading.GradeAttempt(ctx, attemptID)
	})

	return gw
}

// Start blocks consuming grading jobs until the context is cancelled.
func (gw *GradingWorker) Start(ctx context.Context) {
	gw.log.Info().Msg("GradingWorker started")
	gw.worker.Run(ctx)
}
