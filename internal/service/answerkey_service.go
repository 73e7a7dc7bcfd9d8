package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/proctorly/proctor-backend/internal/config"
	"github.com/proctorly/proctor-backend/internal/kv"
	"github.com/proctorly/proctor-backend/internal/model"
	"github.com/rs/zerolog"
)

// AnswerKeySource is the authoritative question collection behind the cache.
type AnswerKeySource interface {
	ListQuestions(ctx context.Context, testID uuid.UUID) ([]model.Question, error)
}

// AnswerKeyService is a read-through cache over the question collection.
// Correctness never depends on the cache backend, only latency does: every
// read path falls back to the source, and cache writes are best-effort.
type AnswerKeyService struct {
	store  kv.Store
	source AnswerKeySource
	ttl    time.Duration
	log    zerolog.Logger
}

// NewAnswerKeyService creates a new AnswerKeyService.
func NewAnswerKeyService(store kv.Store, source AnswerKeySource, ttl time.Duration, log zerolog.Logger) *AnswerKeyService {
	return &AnswerKeyService{
		store:  store,
		source: source,
		ttl:    ttl,
		log:    log.With().Str("component", "answerkey_service").Logger(),
	}
}

// GetAnswerKey returns the normalized answer key for a test. Cache hits are
// returned verbatim; on miss or backend failure the key is rebuilt from the
// authoritative questions and the cache is repopulated best-effort.
func (s *AnswerKeyService) GetAnswerKey(ctx context.Context, testID uuid.UUID) ([]model.AnswerKeyEntry, error) {
	cacheKey := config.CacheKey.AnswerKeyKey(testID.String())

	if data, err := s.store.Get(ctx, cacheKey); err == nil {
		var entries []model.AnswerKeyEntry
		if err := json.Unmarshal(data, &entries); err == nil {
			return entries, nil
		}
		// Corrupt cache entry: rebuild from source below.
		s.log.Warn().Str("test_id", testID.String()).Msg("Discarding unreadable cached answer key")
	} else if !errors.Is(err, kv.ErrNotFound) {
		s.log.Warn().Err(err).Str("test_id", testID.String()).Msg("Answer key cache read failed, using source")
	}

	questions, err := s.source.ListQuestions(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	entries := make([]model.AnswerKeyEntry, len(questions))
	for i, q := range questions {
		entries[i] = model.AnswerKeyEntry{
			QuestionID:    q.ID,
			Type:          q.QuestionType,
			CorrectAnswer: q.CorrectAnswer,
			Marks:         q.Marks,
			NegativeMarks: q.NegativeMarks,
		}
	}

	// Populate is explicitly fire-and-forget: the result is logged but
	// never propagated to the caller.
	if res := s.populate(ctx, cacheKey, entries); res.err != nil {
		s.log.Warn().Err(res.err).Str("test_id", testID.String()).Msg("Answer key cache write failed")
	}

	return entries, nil
}

// Invalidate drops the cached key for a test. Called when questions change
// after the key was cached.
func (s *AnswerKeyService) Invalidate(ctx context.Context, testID uuid.UUID) {
	if err := s.store.Delete(ctx, config.CacheKey.AnswerKeyKey(testID.String())); err != nil {
		s.log.Warn().Err(err).Str("test_id", testID.String()).Msg("Answer key cache invalidation failed")
	}
}

// cacheWriteResult makes the swallowed-error contract explicit: a failed
// populate is observable in logs but cannot fail the read.
type cacheWriteResult struct {
	written bool
	err     error
}

func (s *AnswerKeyService) populate(ctx context.Context, key string, entries []model.AnswerKeyEntry) cacheWriteResult {
	data, err := json.Marshal(entries)
	if err != nil {
		return cacheWriteResult{err: err}
	}
	if err := s.store.Set(ctx, key, data, s.ttl); err != nil {
		return cacheWriteResult{err: err}
	}
	return cacheWriteResult{written: true}
}
