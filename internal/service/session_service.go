package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/proctorly/proctor-backend/internal/model"
	"github.com/rs/zerolog"
)

// ErrTestNotFound is returned when control is requested for a missing test.
var ErrTestNotFound = errors.New("test not found")

// SessionStore persists live session rows.
type SessionStore interface {
	GetByTest(ctx context.Context, testID uuid.UUID) (*model.Session, error)
	Upsert(ctx context.Context, s *model.Session) error
}

// TestSource supplies test metadata and the live question count. The count
// is read on every control call, never cached, so it always reflects the
// latest authored content.
type TestSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Test, error)
	CountQuestions(ctx context.Context, testID uuid.UUID) (int, error)
}

// StatePublisher pushes a session delta onto the broadcast fabric.
// Publish failures are best-effort and never fail the transition.
type StatePublisher interface {
	PublishState(ctx context.Context, state model.SessionState) error
}

// SessionService is the live-session state machine. Transitions are
// validated here; persistence is a plain upsert, so concurrent control
// calls for one test resolve last-writer-wins. That is acceptable because
// every transition is either idempotent or monotonic.
type SessionService struct {
	sessions  SessionStore
	tests     TestSource
	publisher StatePublisher
	log       zerolog.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(sessions SessionStore, tests TestSource, publisher StatePublisher, log zerolog.Logger) *SessionService {
	return &SessionService{
		sessions:  sessions,
		tests:     tests,
		publisher: publisher,
		log:       log.With().Str("component", "session_service").Logger(),
	}
}

// CreateOrReset creates the session for a test, or resets an existing one
// back to waiting. There is never more than one session per test.
func (s *SessionService) CreateOrReset(ctx context.Context, testID uuid.UUID) (*model.Session, error) {
	if _, err := s.tests.GetByID(ctx, testID); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTestNotFound, testID)
	}

	session := &model.Session{
		TestID:               testID,
		Status:               model.SessionStatusWaiting,
		CurrentQuestionIndex: 0,
		UpdatedAt:            time.Now(),
	}
	if err := s.sessions.Upsert(ctx, session); err != nil {
		return nil, fmt.Errorf("upsert session: %w", err)
	}

	s.broadcast(ctx, session)
	return session, nil
}

// Get returns the current session for a test, or ErrTestNotFound.
func (s *SessionService) Get(ctx context.Context, testID uuid.UUID) (*model.Session, error) {
	session, err := s.sessions.GetByTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Control applies one validated action to the session and broadcasts the
// resulting state. Returns the updated session and the total question
// count. Boundary actions (next past the end, goto out of range) are
// policy no-ops, not errors; repeating any action is safe.
func (s *SessionService) Control(ctx context.Context, testID uuid.UUID, action Action) (*model.Session, int, error) {
	if _, err := s.tests.GetByID(ctx, testID); err != nil {
		return nil, 0, fmt.Errorf("%w: %s", ErrTestNotFound, testID)
	}

	total, err := s.tests.CountQuestions(ctx, testID)
	if err != nil {
		return nil, 0, fmt.Errorf("count questions: %w", err)
	}

	session, err := s.sessions.GetByTest(ctx, testID)
	if err != nil {
		// First control request creates the session implicitly.
		session = &model.Session{
			TestID: testID,
			Status: model.SessionStatusWaiting,
		}
	}

	applyAction(session, action, total)
	session.UpdatedAt = time.Now()

	if err := s.sessions.Upsert(ctx, session); err != nil {
		return nil, 0, fmt.Errorf("upsert session: %w", err)
	}

	s.broadcast(ctx, session)
	return session, total, nil
}

// applyAction mutates the session per the transition rules. The index is
// always clamped to [0, total); total comes from the caller per request.
func applyAction(s *model.Session, action Action, total int) {
	switch a := action.(type) {
	case StartAction:
		now := time.Now()
		s.Status = model.SessionStatusActive
		s.StartedAt = &now
		s.CurrentQuestionIndex = 0
	case NextAction:
		if s.CurrentQuestionIndex < total-1 {
			s.CurrentQuestionIndex++
		}
	case PrevAction:
		if s.CurrentQuestionIndex > 0 {
			s.CurrentQuestionIndex--
		}
	case GotoAction:
		if a.Index >= 0 && a.Index < total {
			s.CurrentQuestionIndex = a.Index
		}
	case PauseAction:
		if s.Status == model.SessionStatusActive {
			s.Status = model.SessionStatusPaused
		}
	case ResumeAction:
		if s.Status == model.SessionStatusPaused {
			s.Status = model.SessionStatusActive
		}
	case FinishAction:
		s.Status = model.SessionStatusFinished
	}
}

func (s *SessionService) broadcast(ctx context.Context, session *model.Session) {
	state := model.SessionState{
		TestID:               session.TestID.String(),
		CurrentQuestionIndex: session.CurrentQuestionIndex,
		Status:               session.Status,
	}
	if err := s.publisher.PublishState(ctx, state); err != nil {
		// Gateways resync from the next delta; last write wins on receipt.
		s.log.Warn().Err(err).Str("test_id", state.TestID).Msg("State broadcast failed")
	}
}
