package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/proctorly/proctor-backend/internal/config"
	"github.com/proctorly/proctor-backend/internal/middleware"
	"github.com/proctorly/proctor-backend/internal/model"
	"github.com/proctorly/proctor-backend/internal/queue"
	"github.com/proctorly/proctor-backend/internal/repository"
	"github.com/proctorly/proctor-backend/internal/response"
	"github.com/proctorly/proctor-backend/internal/service"
	"github.com/proctorly/proctor-backend/internal/validator"
	"github.com/proctorly/proctor-backend/internal/worker"
	"github.com/rs/zerolog"
)

// fallbackViolationTTL bounds a violation record's lifetime when an
// attempt has no expiry to derive it from.
const fallbackViolationTTL = time.Hour

// PlayHandler handles the test-taker APIs: starting attempts, saving
// answers, reporting proctoring violations and submitting for grading.
type PlayHandler struct {
	tests        *repository.TestRepository
	attempts     *repository.AttemptRepository
	violations   *service.ViolationService
	gradingQueue *queue.Queue
	log          zerolog.Logger
}

// NewPlayHandler creates a new PlayHandler.
func NewPlayHandler(
	tests *repository.TestRepository,
	attempts *repository.AttemptRepository,
	violations *service.ViolationService,
	gradingQueue *queue.Queue,
	log zerolog.Logger,
) *PlayHandler {
	return &PlayHandler{
		tests:        tests,
		attempts:     attempts,
		violations:   violations,
		gradingQueue: gradingQueue,
		log:          log.With().Str("component", "play_handler").Logger(),
	}
}

// StartAttempt godoc
// POST /api/v1/play/tests/:test_id/attempts
// Creates (or returns the existing) attempt for the authenticated taker
// and schedules its expiry. Restarting after a disconnect is safe: the
// original attempt row and its deadline are preserved.
func (h *PlayHandler) StartAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	test, err := h.tests.GetByID(c.Request.Context(), testID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	now := time.Now()
	expiresAt := now.Add(time.Duration(test.DurationMinutes) * time.Minute)
	attempt := &model.Attempt{
		ID:        uuid.New(),
		TestID:    testID,
		TakerID:   claims.UserID,
		Status:    model.AttemptStatusInProgress,
		StartedAt: now,
		ExpiresAt: &expiresAt,
	}

	if err := h.attempts.Create(c.Request.Context(), attempt); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	// Expiry fires against the deadline actually stored, which for a
	// rejoined attempt predates this request.
	if attempt.ExpiresAt != nil {
		delay := time.Until(*attempt.ExpiresAt)
		if delay < 0 {
			delay = 0
		}
		payload := worker.TestExpiryPayload{AttemptID: attempt.ID.String()}
		if _, err := h.gradingQueue.EnqueueIn(c.Request.Context(), config.JobTestExpiry, payload, delay); err != nil {
			h.log.Error().Err(err).Str("attempt_id", attempt.ID.String()).Msg("Failed to schedule attempt expiry")
		}
	}

	response.Success(c, http.StatusCreated, gin.H{"attempt": attempt})
}

// SaveAnswer godoc
// POST /api/v1/play/attempts/:attempt_id/answers
// Persists one answer. No grading happens here; the answer is upserted
// into the attempt and the request returns immediately.
func (h *PlayHandler) SaveAnswer(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SubmitAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	questionID, err := uuid.Parse(req.QuestionID)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	answer := model.AttemptAnswer{
		QuestionID:  questionID,
		GivenAnswer: req.GivenAnswer,
	}

	if err := h.attempts.SaveAnswer(c.Request.Context(), attemptID, answer); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			response.Fail(c, http.StatusConflict, response.ErrAttemptNotEditable)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"saved": true})
}

// RecordViolation godoc
// POST /api/v1/play/attempts/:attempt_id/violations
// Appends a proctoring violation to the attempt's expiring counter and
// tells the client whether the threshold forces submission. The client
// (or proctor) triggers the actual submit; this endpoint only counts.
func (h *PlayHandler) RecordViolation(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.RecordViolationRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	attempt, err := h.attempts.GetByID(c.Request.Context(), attemptID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	// The record must never outlive the attempt it protects.
	ttl := fallbackViolationTTL
	if attempt.ExpiresAt != nil {
		if remaining := time.Until(*attempt.ExpiresAt); remaining > 0 {
			ttl = remaining
		}
	}

	record, shouldAutoSubmit := h.violations.RecordViolation(c.Request.Context(), attemptID.String(), req.Type, ttl)

	response.Success(c, http.StatusOK, gin.H{
		"updated_count":      record.Count,
		"should_auto_submit": shouldAutoSubmit,
	})
}

// Submit godoc
// POST /api/v1/play/attempts/:attempt_id/submit
// Marks the attempt submitted and enqueues asynchronous grading.
// Submitting twice is harmless: the second call finds nothing to
// transition and grading itself is idempotent.
func (h *PlayHandler) Submit(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	changed, err := h.attempts.MarkSubmitted(c.Request.Context(), attemptID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	if changed {
		payload := worker.GradeAttemptPayload{AttemptID: attemptID.String()}
		if _, err := h.gradingQueue.Enqueue(c.Request.Context(), config.JobGradeAttempt, payload); err != nil {
			// The attempt is already submitted; the expiry job will
			// pick up grading if this enqueue is lost.
			h.log.Error().Err(err).Str("attempt_id", attemptID.String()).Msg("Failed to enqueue grading")
		}
	}

	response.Success(c, http.StatusOK, gin.H{"success": true})
}
