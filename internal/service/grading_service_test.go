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

// fakeAttemptStore holds attempts in memory and counts grade writes.
type fakeAttemptStore struct {
	attempts map[uuid.UUID]*model.Attempt
	graded   int
}

func newFakeAttemptStore() *fakeAttemptStore {
	return &fakeAttemptStore{attempts: make(map[uuid.UUID]*model.Attempt)}
}

func (f *fakeAttemptStore) GetByID(_ context.Context, id uuid.UUID) (*model.Attempt, error) {
	a, ok := f.attempts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *a
	copied.Answers = append([]model.AttemptAnswer(nil), a.Answers...)
	return &copied, nil
}

func (f *fakeAttemptStore) MarkGraded(_ context.Context, attempt *model.Attempt) error {
	f.graded++
	attempt.Status = model.AttemptStatusGraded
	f.attempts[attempt.ID] = attempt
	return nil
}

// fakeKeyProvider serves a fixed answer key.
type fakeKeyProvider struct {
	entries []model.AnswerKeyEntry
	err     error
}

func (f *fakeKeyProvider) GetAnswerKey(_ context.Context, _ uuid.UUID) ([]model.AnswerKeyEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.entries, nil
}

func TestCompareAnswers(t *testing.T) {
	cases := []struct {
		name    string
		given   interface{}
		correct interface{}
		want    bool
	}{
		{"exact string", "paris", "paris", true},
		{"case and whitespace insensitive", "  Paris ", "paris", true},
		{"different strings", "london", "paris", false},
		{"numeric equality", 42.0, 42.0, true},
		{"string coerces to number", "42", 42.0, true},
		{"number coerces against string key", 42.0, "42", true},
		{"non-matching number", "41", 42.0, false},
		{"array order insensitive", []interface{}{"b", "a"}, []interface{}{"a", "b"}, true},
		{"array element normalization", []interface{}{" B", "a "}, []interface{}{"a", "b"}, true},
		{"array mismatch", []interface{}{"a"}, []interface{}{"a", "b"}, false},
		{"array of numbers vs strings", []interface{}{"2", "1"}, []interface{}{1.0, 2.0}, true},
		{"nil never matches", nil, "paris", false},
		{"empty string never matches", "", "", false},
		{"whitespace only is unanswered", "   ", "   ", false},
		{"empty array never matches", []interface{}{}, []interface{}{}, false},
		{"nil against nil key", nil, nil, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CompareAnswers(tc.given, tc.correct, model.QuestionTypeText); got != tc.want {
				t.Errorf("CompareAnswers(%#v, %#v) = %v, want %v", tc.given, tc.correct, got, tc.want)
			}
		})
	}
}

func TestGradeAttemptScenario(t *testing.T) {
	// Three questions, one mark each, 0.5 negative marking. One right,
	// one wrong, one unanswered: 1 - 0.5 + 0 = 0.5.
	q1, q2, q3 := uuid.New(), uuid.New(), uuid.New()
	keys := &fakeKeyProvider{entries: []model.AnswerKeyEntry{
		{QuestionID: q1, Type: model.QuestionTypeMCQ, CorrectAnswer: "a", Marks: 1, NegativeMarks: 0.5},
		{QuestionID: q2, Type: model.QuestionTypeMCQ, CorrectAnswer: "b", Marks: 1, NegativeMarks: 0.5},
		{QuestionID: q3, Type: model.QuestionTypeMCQ, CorrectAnswer: "c", Marks: 1, NegativeMarks: 0.5},
	}}

	store := newFakeAttemptStore()
	attemptID := uuid.New()
	store.attempts[attemptID] = &model.Attempt{
		ID:     attemptID,
		TestID: uuid.New(),
		Status: model.AttemptStatusSubmitted,
		Answers: []model.AttemptAnswer{
			{QuestionID: q1, GivenAnswer: "a"},
			{QuestionID: q2, GivenAnswer: "c"},
			{QuestionID: q3, GivenAnswer: nil},
		},
	}

	svc := NewGradingService(store, keys, zerolog.Nop())
	if err := svc.GradeAttempt(context.Background(), attemptID); err != nil {
		t.Fatalf("GradeAttempt failed: %v", err)
	}

	graded := store.attempts[attemptID]
	if graded.Status != model.AttemptStatusGraded {
		t.Fatalf("Expected graded status, got %s", graded.Status)
	}
	if graded.Score == nil || *graded.Score != 0.5 {
		t.Fatalf("Expected score 0.5, got %v", graded.Score)
	}

	wantCorrect := []bool{true, false, false}
	wantMarks := []float64{1, -0.5, 0}
	for i, ans := range graded.Answers {
		if ans.IsMarkedCorrect == nil || *ans.IsMarkedCorrect != wantCorrect[i] {
			t.Errorf("answer %d: is_marked_correct = %v, want %v", i, ans.IsMarkedCorrect, wantCorrect[i])
		}
		if ans.AwardedMarks == nil || *ans.AwardedMarks != wantMarks[i] {
			t.Errorf("answer %d: awarded_marks = %v, want %v", i, ans.AwardedMarks, wantMarks[i])
		}
	}
}

func TestGradeAttemptIdempotence(t *testing.T) {
	q1 := uuid.New()
	keys := &fakeKeyProvider{entries: []model.AnswerKeyEntry{
		{QuestionID: q1, Type: model.QuestionTypeMCQ, CorrectAnswer: "a", Marks: 2},
	}}

	store := newFakeAttemptStore()
	attemptID := uuid.New()
	store.attempts[attemptID] = &model.Attempt{
		ID:      attemptID,
		TestID:  uuid.New(),
		Status:  model.AttemptStatusSubmitted,
		Answers: []model.AttemptAnswer{{QuestionID: q1, GivenAnswer: "a"}},
	}

	svc := NewGradingService(store, keys, zerolog.Nop())

	// Redelivered job grades once and only once.
	for i := 0; i < 3; i++ {
		if err := svc.GradeAttempt(context.Background(), attemptID); err != nil {
			t.Fatalf("run %d failed: %v", i, err)
		}
	}

	if store.graded != 1 {
		t.Errorf("Expected exactly 1 grade write, got %d", store.graded)
	}
	if score := store.attempts[attemptID].Score; score == nil || *score != 2 {
		t.Errorf("Expected score 2, got %v", score)
	}
}

func TestGradeAttemptErrors(t *testing.T) {
	t.Run("missing attempt", func(t *testing.T) {
		svc := NewGradingService(newFakeAttemptStore(), &fakeKeyProvider{}, zerolog.Nop())
		if err := svc.GradeAttempt(context.Background(), uuid.New()); !errors.Is(err, repository.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("answer key failure surfaces for retry", func(t *testing.T) {
		store := newFakeAttemptStore()
		attemptID := uuid.New()
		store.attempts[attemptID] = &model.Attempt{
			ID:     attemptID,
			TestID: uuid.New(),
			Status: model.AttemptStatusSubmitted,
		}

		keyErr := errors.New("source down")
		svc := NewGradingService(store, &fakeKeyProvider{err: keyErr}, zerolog.Nop())
		if err := svc.GradeAttempt(context.Background(), attemptID); !errors.Is(err, keyErr) {
			t.Errorf("Expected key error to propagate, got %v", err)
		}
		if store.graded != 0 {
			t.Errorf("Attempt must not be marked graded when the key load fails")
		}
	})
}
