package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/proctorly/proctor-backend/internal/config"
	"github.com/proctorly/proctor-backend/internal/extraction"
	"github.com/proctorly/proctor-backend/internal/queue"
	"github.com/proctorly/proctor-backend/internal/response"
	"github.com/proctorly/proctor-backend/internal/validator"
	"github.com/rs/zerolog"
)

// ExtractionHandler handles AI question extraction for admins. Requests
// either run inline against the extraction service or go through the
// extraction queue, depending on configuration.
type ExtractionHandler struct {
	client *extraction.Client
	queue  *queue.Queue
	cfg    *config.Config
	log    zerolog.Logger
}

// NewExtractionHandler creates a new ExtractionHandler.
func NewExtractionHandler(client *extraction.Client, q *queue.Queue, cfg *config.Config, log zerolog.Logger) *ExtractionHandler {
	return &ExtractionHandler{
		client: client,
		queue:  q,
		cfg:    cfg,
		log:    log.With().Str("component", "extraction_handler").Logger(),
	}
}

// Extract godoc
// POST /api/v1/admin/extraction
// Submits a document for question extraction. With the queue enabled the
// handler waits briefly for the job; if it has not finished in time the
// client gets 202 with a job ID to poll.
func (h *ExtractionHandler) Extract(c *gin.Context) {
	var req extraction.Request
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if !h.cfg.ExtractionViaQueue {
		result, err := h.client.Extract(c.Request.Context(), req)
		if err != nil {
			h.log.Error().Err(err).Msg("Inline extraction failed")
			response.Fail(c, http.StatusBadGateway, response.ErrExtractionFailed)
			return
		}
		response.Success(c, http.StatusOK, result)
		return
	}

	jobID, err := h.queue.Enqueue(c.Request.Context(), config.JobParsePDF, req)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	state, err := h.queue.WaitForResult(c.Request.Context(), jobID, h.cfg.ExtractionWaitTimeout)
	if err != nil {
		if errors.Is(err, queue.ErrWaitTimeout) {
			response.Success(c, http.StatusAccepted, gin.H{
				"status": queue.StatusQueued,
				"job_id": jobID,
			})
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	h.respondJobState(c, state)
}

// GetJob godoc
// GET /api/v1/admin/extraction/jobs/:job_id
// Polls a queued extraction job.
func (h *ExtractionHandler) GetJob(c *gin.Context) {
	state, err := h.queue.GetJob(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		if errors.Is(err, queue.ErrJobNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrJobNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	h.respondJobState(c, state)
}

func (h *ExtractionHandler) respondJobState(c *gin.Context, state *queue.JobState) {
	switch state.Status {
	case queue.StatusCompleted:
		var result extraction.Result
		if err := json.Unmarshal(state.Result, &result); err != nil {
			h.log.Error().Err(err).Str("job_id", state.ID).Msg("Malformed extraction job result")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}
		response.Success(c, http.StatusOK, gin.H{
			"status": state.Status,
			"job_id": state.ID,
			"result": result,
		})
	case queue.StatusFailed:
		response.Success(c, http.StatusOK, gin.H{
			"status":     state.Status,
			"job_id":     state.ID,
			"last_error": state.LastError,
		})
	default:
		response.Success(c, http.StatusOK, gin.H{
			"status": state.Status,
			"job_id": state.ID,
		})
	}
}
