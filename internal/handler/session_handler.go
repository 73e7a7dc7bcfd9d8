package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/proctorly/proctor-backend/internal/model"
	"github.com/proctorly/proctor-backend/internal/repository"
	"github.com/proctorly/proctor-backend/internal/response"
	"github.com/proctorly/proctor-backend/internal/service"
	"github.com/proctorly/proctor-backend/internal/validator"
)

// SessionHandler handles live session control endpoints for proctors.
type SessionHandler struct {
	sessionService *service.SessionService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionService *service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// Create godoc
// POST /api/v1/admin/tests/:test_id/session
// Creates the live session for a test, or resets it to the waiting state
// if one already exists.
func (h *SessionHandler) Create(c *gin.Context) {
	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	session, err := h.sessionService.CreateOrReset(c.Request.Context(), testID)
	if err != nil {
		if errors.Is(err, service.ErrTestNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": session})
}

// Get godoc
// GET /api/v1/admin/tests/:test_id/session
// Returns the current session state for the proctor UI.
func (h *SessionHandler) Get(c *gin.Context) {
	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	session, err := h.sessionService.Get(c.Request.Context(), testID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": session})
}

// Control godoc
// POST /api/v1/admin/tests/:test_id/session/control
// Applies a control action (start/next/prev/goto/pause/resume/finish) to
// the live session and broadcasts the resulting state.
func (h *SessionHandler) Control(c *gin.Context) {
	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.ControlRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	action, err := service.ParseAction(req.Action, req.Index)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrGotoIndexRequired):
			response.Fail(c, http.StatusBadRequest, response.ErrGotoIndexRequired)
		default:
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidAction)
		}
		return
	}

	session, totalQuestions, err := h.sessionService.Control(c.Request.Context(), testID, action)
	if err != nil {
		if errors.Is(err, service.ErrTestNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"success": true,
		"session": gin.H{
			"status":                 session.Status,
			"current_question_index": session.CurrentQuestionIndex,
		},
		"total_questions": totalQuestions,
	})
}
