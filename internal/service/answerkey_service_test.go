package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/proctorly/proctor-backend/internal/config"
	"github.com/proctorly/proctor-backend/internal/kv"
	"github.com/proctorly/proctor-backend/internal/model"
	"github.com/rs/zerolog"
)

// fakeQuestionSource counts how often the authoritative collection is hit.
type fakeQuestionSource struct {
	questions []model.Question
	err       error
	calls     int
}

func (f *fakeQuestionSource) ListQuestions(_ context.Context, _ uuid.UUID) ([]model.Question, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.questions, nil
}

func sampleQuestions(testID uuid.UUID) []model.Question {
	return []model.Question{
		{ID: uuid.New(), TestID: testID, QuestionType: model.QuestionTypeMCQ, CorrectAnswer: "a", Marks: 1, NegativeMarks: 0.25},
		{ID: uuid.New(), TestID: testID, QuestionType: model.QuestionTypeInteger, CorrectAnswer: 42.0, Marks: 2},
	}
}

func TestGetAnswerKeyCachesAfterFirstRead(t *testing.T) {
	testID := uuid.New()
	source := &fakeQuestionSource{questions: sampleQuestions(testID)}
	svc := NewAnswerKeyService(kv.NewMemoryStore(), source, time.Minute, zerolog.Nop())

	ctx := context.Background()
	first, err := svc.GetAnswerKey(ctx, testID)
	if err != nil {
		t.Fatalf("first read failed: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(first))
	}

	second, err := svc.GetAnswerKey(ctx, testID)
	if err != nil {
		t.Fatalf("second read failed: %v", err)
	}
	if source.calls != 1 {
		t.Errorf("Expected 1 source hit, got %d", source.calls)
	}
	if second[0].QuestionID != first[0].QuestionID || second[1].Marks != 2 {
		t.Errorf("Cached entries differ from source entries")
	}
}

func TestGetAnswerKeyFallsBackWhenCacheDown(t *testing.T) {
	testID := uuid.New()
	source := &fakeQuestionSource{questions: sampleQuestions(testID)}
	svc := NewAnswerKeyService(brokenStore{}, source, time.Minute, zerolog.Nop())

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		entries, err := svc.GetAnswerKey(ctx, testID)
		if err != nil {
			t.Fatalf("read %d failed despite source being healthy: %v", i, err)
		}
		if len(entries) != 2 {
			t.Fatalf("read %d: expected 2 entries, got %d", i, len(entries))
		}
	}

	// No cache means every read goes to the source.
	if source.calls != 2 {
		t.Errorf("Expected 2 source hits, got %d", source.calls)
	}
}

func TestGetAnswerKeyRebuildsCorruptCache(t *testing.T) {
	testID := uuid.New()
	store := kv.NewMemoryStore()
	ctx := context.Background()
	store.Set(ctx, config.CacheKey.AnswerKeyKey(testID.String()), []byte("{not json"), time.Minute)

	source := &fakeQuestionSource{questions: sampleQuestions(testID)}
	svc := NewAnswerKeyService(store, source, time.Minute, zerolog.Nop())

	entries, err := svc.GetAnswerKey(ctx, testID)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(entries) != 2 || source.calls != 1 {
		t.Fatalf("Expected rebuild from source, entries=%d calls=%d", len(entries), source.calls)
	}

	// The rebuilt key replaced the corrupt one.
	data, err := store.Get(ctx, config.CacheKey.AnswerKeyKey(testID.String()))
	if err != nil {
		t.Fatalf("cache read failed: %v", err)
	}
	var cached []model.AnswerKeyEntry
	if err := json.Unmarshal(data, &cached); err != nil {
		t.Fatalf("cache still corrupt: %v", err)
	}
}

func TestInvalidateForcesSourceReload(t *testing.T) {
	testID := uuid.New()
	source := &fakeQuestionSource{questions: sampleQuestions(testID)}
	svc := NewAnswerKeyService(kv.NewMemoryStore(), source, time.Minute, zerolog.Nop())

	ctx := context.Background()
	svc.GetAnswerKey(ctx, testID)
	svc.Invalidate(ctx, testID)
	svc.GetAnswerKey(ctx, testID)

	if source.calls != 2 {
		t.Errorf("Expected source reload after invalidation, got %d hits", source.calls)
	}
}

func TestGetAnswerKeyPropagatesSourceFailure(t *testing.T) {
	source := &fakeQuestionSource{err: errStoreDown}
	svc := NewAnswerKeyService(kv.NewMemoryStore(), source, time.Minute, zerolog.Nop())

	if _, err := svc.GetAnswerKey(context.Background(), uuid.New()); err == nil {
		t.Error("Expected error when both cache and source are unavailable")
	}
}
