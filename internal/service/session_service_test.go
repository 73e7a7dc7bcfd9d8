package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/proctorly/proctor-backend/internal/model"
	"github.com/proctorly/proctor-backend/internal/repository"
	"github.com/rs/zerolog"
)

// fakeSessionStore keeps sessions in a map, like the real upsert-based
// repository but without Postgres.
type fakeSessionStore struct {
	sessions map[uuid.UUID]model.Session
	upserts  int
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[uuid.UUID]model.Session)}
}

func (f *fakeSessionStore) GetByTest(_ context.Context, testID uuid.UUID) (*model.Session, error) {
	s, ok := f.sessions[testID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (f *fakeSessionStore) Upsert(_ context.Context, s *model.Session) error {
	f.upserts++
	f.sessions[s.TestID] = *s
	return nil
}

// fakeTestSource serves one test with a configurable question count.
type fakeTestSource struct {
	testID uuid.UUID
	total  int
}

func (f *fakeTestSource) GetByID(_ context.Context, id uuid.UUID) (*model.Test, error) {
	if id != f.testID {
		return nil, repository.ErrNotFound
	}
	return &model.Test{ID: id, Title: "Sample", DurationMinutes: 60}, nil
}

func (f *fakeTestSource) CountQuestions(_ context.Context, testID uuid.UUID) (int, error) {
	return f.total, nil
}

// fakePublisher records broadcast states and can simulate outages.
type fakePublisher struct {
	states []model.SessionState
	err    error
}

func (f *fakePublisher) PublishState(_ context.Context, state model.SessionState) error {
	if f.err != nil {
		return f.err
	}
	f.states = append(f.states, state)
	return nil
}

func newSessionFixture(total int) (*SessionService, *fakeSessionStore, *fakeTestSource, *fakePublisher) {
	store := newFakeSessionStore()
	tests := &fakeTestSource{testID: uuid.New(), total: total}
	pub := &fakePublisher{}
	svc := NewSessionService(store, tests, pub, zerolog.Nop())
	return svc, store, tests, pub
}

func TestParseAction(t *testing.T) {
	idx := 3

	t.Run("known actions", func(t *testing.T) {
		cases := []struct {
			wire  string
			index *int
			want  Action
		}{
			{"start", nil, StartAction{}},
			{"next", nil, NextAction{}},
			{"prev", nil, PrevAction{}},
			{"goto", &idx, GotoAction{Index: 3}},
			{"pause", nil, PauseAction{}},
			{"resume", nil, ResumeAction{}},
			{"finish", nil, FinishAction{}},
		}
		for _, tc := range cases {
			got, err := ParseAction(tc.wire, tc.index)
			if err != nil {
				t.Fatalf("ParseAction(%q) returned error: %v", tc.wire, err)
			}
			if got != tc.want {
				t.Errorf("ParseAction(%q) = %#v, want %#v", tc.wire, got, tc.want)
			}
		}
	})

	t.Run("unknown action", func(t *testing.T) {
		_, err := ParseAction("skip", nil)
		if !errors.Is(err, ErrUnknownAction) {
			t.Errorf("Expected ErrUnknownAction, got %v", err)
		}
	})

	t.Run("goto without index", func(t *testing.T) {
		_, err := ParseAction("goto", nil)
		if !errors.Is(err, ErrGotoIndexRequired) {
			t.Errorf("Expected ErrGotoIndexRequired, got %v", err)
		}
	})
}

func TestSessionControlClamping(t *testing.T) {
	const total = 5
	ctx := context.Background()

	t.Run("next clamps at the last question", func(t *testing.T) {
		svc, _, tests, _ := newSessionFixture(total)
		if _, _, err := svc.Control(ctx, tests.testID, StartAction{}); err != nil {
			t.Fatalf("start failed: %v", err)
		}

		var session *model.Session
		var err error
		for i := 0; i < total+3; i++ {
			session, _, err = svc.Control(ctx, tests.testID, NextAction{})
			if err != nil {
				t.Fatalf("next failed: %v", err)
			}
		}
		if session.CurrentQuestionIndex != total-1 {
			t.Errorf("Expected index %d after overshooting next, got %d", total-1, session.CurrentQuestionIndex)
		}
	})

	t.Run("prev clamps at zero", func(t *testing.T) {
		svc, _, tests, _ := newSessionFixture(total)
		svc.Control(ctx, tests.testID, StartAction{})

		session, _, err := svc.Control(ctx, tests.testID, PrevAction{})
		if err != nil {
			t.Fatalf("prev failed: %v", err)
		}
		if session.CurrentQuestionIndex != 0 {
			t.Errorf("Expected index 0 after prev at start, got %d", session.CurrentQuestionIndex)
		}
	})

	t.Run("goto out of range is a no-op", func(t *testing.T) {
		svc, _, tests, _ := newSessionFixture(total)
		svc.Control(ctx, tests.testID, StartAction{})
		svc.Control(ctx, tests.testID, GotoAction{Index: 2})

		for _, bad := range []int{-1, total, total + 10} {
			session, _, err := svc.Control(ctx, tests.testID, GotoAction{Index: bad})
			if err != nil {
				t.Fatalf("goto %d failed: %v", bad, err)
			}
			if session.CurrentQuestionIndex != 2 {
				t.Errorf("goto %d moved index to %d, want unchanged 2", bad, session.CurrentQuestionIndex)
			}
		}
	})

	t.Run("pause only from active, resume only from paused", func(t *testing.T) {
		svc, _, tests, _ := newSessionFixture(total)

		// Pause before start: session is waiting, stays waiting.
		session, _, _ := svc.Control(ctx, tests.testID, PauseAction{})
		if session.Status != model.SessionStatusWaiting {
			t.Errorf("Expected waiting after pause before start, got %s", session.Status)
		}

		svc.Control(ctx, tests.testID, StartAction{})
		session, _, _ = svc.Control(ctx, tests.testID, PauseAction{})
		if session.Status != model.SessionStatusPaused {
			t.Errorf("Expected paused, got %s", session.Status)
		}

		session, _, _ = svc.Control(ctx, tests.testID, ResumeAction{})
		if session.Status != model.SessionStatusActive {
			t.Errorf("Expected active after resume, got %s", session.Status)
		}

		// Resume while already active changes nothing.
		session, _, _ = svc.Control(ctx, tests.testID, ResumeAction{})
		if session.Status != model.SessionStatusActive {
			t.Errorf("Expected active after redundant resume, got %s", session.Status)
		}
	})
}

func TestSessionControlScenario(t *testing.T) {
	// A full proctored run: start, walk forward, jump, pause/resume,
	// finish. Broadcasts fire after every transition.
	const total = 10
	ctx := context.Background()
	svc, store, tests, pub := newSessionFixture(total)

	steps := []struct {
		action     Action
		wantStatus model.SessionStatus
		wantIndex  int
	}{
		{StartAction{}, model.SessionStatusActive, 0},
		{NextAction{}, model.SessionStatusActive, 1},
		{NextAction{}, model.SessionStatusActive, 2},
		{GotoAction{Index: 7}, model.SessionStatusActive, 7},
		{PauseAction{}, model.SessionStatusPaused, 7},
		{ResumeAction{}, model.SessionStatusActive, 7},
		{PrevAction{}, model.SessionStatusActive, 6},
		{FinishAction{}, model.SessionStatusFinished, 6},
	}

	for i, step := range steps {
		session, gotTotal, err := svc.Control(ctx, tests.testID, step.action)
		if err != nil {
			t.Fatalf("step %d (%T) failed: %v", i, step.action, err)
		}
		if gotTotal != total {
			t.Fatalf("step %d: total = %d, want %d", i, gotTotal, total)
		}
		if session.Status != step.wantStatus || session.CurrentQuestionIndex != step.wantIndex {
			t.Errorf("step %d (%T): got (%s, %d), want (%s, %d)",
				i, step.action, session.Status, session.CurrentQuestionIndex, step.wantStatus, step.wantIndex)
		}
	}

	if len(pub.states) != len(steps) {
		t.Errorf("Expected %d broadcasts, got %d", len(steps), len(pub.states))
	}
	last := pub.states[len(pub.states)-1]
	if last.Status != model.SessionStatusFinished || last.CurrentQuestionIndex != 6 {
		t.Errorf("Last broadcast = %+v, want finished at index 6", last)
	}
	if store.upserts != len(steps) {
		t.Errorf("Expected %d upserts, got %d", len(steps), store.upserts)
	}
}

func TestSessionCreateOrReset(t *testing.T) {
	ctx := context.Background()

	t.Run("resets an advanced session back to waiting", func(t *testing.T) {
		svc, _, tests, _ := newSessionFixture(5)
		svc.Control(ctx, tests.testID, StartAction{})
		svc.Control(ctx, tests.testID, NextAction{})

		session, err := svc.CreateOrReset(ctx, tests.testID)
		if err != nil {
			t.Fatalf("CreateOrReset failed: %v", err)
		}
		if session.Status != model.SessionStatusWaiting || session.CurrentQuestionIndex != 0 {
			t.Errorf("Expected fresh waiting session, got (%s, %d)", session.Status, session.CurrentQuestionIndex)
		}
	})

	t.Run("unknown test is rejected", func(t *testing.T) {
		svc, _, _, _ := newSessionFixture(5)
		if _, err := svc.CreateOrReset(ctx, uuid.New()); !errors.Is(err, ErrTestNotFound) {
			t.Errorf("Expected ErrTestNotFound, got %v", err)
		}
	})
}

func TestSessionControlSurvivesBroadcastOutage(t *testing.T) {
	ctx := context.Background()
	svc, _, tests, pub := newSessionFixture(5)
	pub.err = errors.New("redis down")

	session, _, err := svc.Control(ctx, tests.testID, StartAction{})
	if err != nil {
		t.Fatalf("Control should not fail when broadcast fails: %v", err)
	}
	if session.Status != model.SessionStatusActive {
		t.Errorf("Expected active, got %s", session.Status)
	}
}
