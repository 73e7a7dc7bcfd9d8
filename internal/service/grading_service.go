package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/proctorly/proctor-backend/internal/model"
	"github.com/rs/zerolog"
)

// AttemptStore is the persistence surface the grading engine writes to.
type AttemptStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error)
	MarkGraded(ctx context.Context, attempt *model.Attempt) error
}

// AnswerKeyProvider supplies the normalized answer key for a test.
type AnswerKeyProvider interface {
	GetAnswerKey(ctx context.Context, testID uuid.UUID) ([]model.AnswerKeyEntry, error)
}

// GradingService grades submitted attempts. Grading is idempotent: jobs may
// be redelivered, so an attempt that is already graded is left untouched.
// There is no additional locking around the read-compute-write sequence;
// the idempotence guard plus single delivery per job attempt is the
// concurrency control.
type GradingService struct {
	attempts AttemptStore
	keys     AnswerKeyProvider
	log      zerolog.Logger
}

// NewGradingService creates a new GradingService.
func NewGradingService(attempts AttemptStore, keys AnswerKeyProvider, log zerolog.Logger) *GradingService {
	return &GradingService{
		attempts: attempts,
		keys:     keys,
		log:      log.With().Str("component", "grading_service").Logger(),
	}
}

// GradeAttempt loads, scores and persists one attempt. Unanswered
// questions score zero (no negative marking); wrong answers score
// -negative_marks; the total is a signed sum and can go below zero.
func (s *GradingService) GradeAttempt(ctx context.Context, attemptID uuid.UUID) error {
	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		return fmt.Errorf("load attempt %s: %w", attemptID, err)
	}

	if attempt.Status == model.AttemptStatusGraded {
		s.log.Debug().Str("attempt_id", attemptID.String()).Msg("Attempt already graded, skipping")
		return nil
	}

	entries, err := s.keys.GetAnswerKey(ctx, attempt.TestID)
	if err != nil {
		return fmt.Errorf("answer key for test %s: %w", attempt.TestID, err)
	}

	keyByQuestion := make(map[uuid.UUID]model.AnswerKeyEntry, len(entries))
	for _, e := range entries {
		keyByQuestion[e.QuestionID] = e
	}

	var total float64
	for i := range attempt.Answers {
		ans := &attempt.Answers[i]

		correct := false
		awarded := 0.0

		entry, hasKey := keyByQuestion[ans.QuestionID]
		if hasKey && isAnswered(ans.GivenAnswer) {
			correct = CompareAnswers(ans.GivenAnswer, entry.CorrectAnswer, entry.Type)
			if correct {
				awarded = entry.Marks
			} else {
				awarded = -entry.NegativeMarks
			}
		}

		ans.IsMarkedCorrect = &correct
		awardedCopy := awarded
		ans.AwardedMarks = &awardedCopy
		total += awarded
	}

	attempt.Score = &total
	if err := s.attempts.MarkGraded(ctx, attempt); err != nil {
		return fmt.Errorf("persist graded attempt %s: %w", attemptID, err)
	}

	s.log.Info().
		Str("attempt_id", attemptID.String()).
		Float64("score", total).
		Int("answers", len(attempt.Answers)).
		Msg("Attempt graded")
	return nil
}

// ─── Answer comparison ──────────────────────────────────────────────

type answerKind int

const (
	answerUnanswered answerKind = iota
	answerString
	answerNumber
	answerArray
)

type normalizedAnswer struct {
	kind answerKind
	str  string
	num  float64
	arr  []string
}

// CompareAnswers reports whether a given answer matches the correct one.
// Strings are trimmed and lower-cased; arrays are element-normalized then
// sorted, so multi-select order never matters; mixed numeric/string
// operands are coerced through numeric comparison so "42" matches 42.
// Two unanswered values never compare equal: an unanswered question is
// always wrong, even when the correct answer is itself empty.
func CompareAnswers(given, correct interface{}, _ model.QuestionType) bool {
	g := normalizeAnswer(given)
	c := normalizeAnswer(correct)

	if g.kind == answerUnanswered || c.kind == answerUnanswered {
		return false
	}

	if g.kind == answerArray || c.kind == answerArray {
		if g.kind != c.kind || len(g.arr) != len(c.arr) {
			return false
		}
		for i := range g.arr {
			if g.arr[i] != c.arr[i] {
				return false
			}
		}
		return true
	}

	if g.kind == answerNumber && c.kind == answerNumber {
		return g.num == c.num
	}

	if g.kind != c.kind {
		gn, gok := asNumber(g)
		cn, cok := asNumber(c)
		return gok && cok && gn == cn
	}

	return g.str == c.str
}

// isAnswered applies the same emptiness rule as normalization: nil, empty
// or whitespace-only strings and empty arrays all count as unanswered.
func isAnswered(v interface{}) bool {
	return normalizeAnswer(v).kind != answerUnanswered
}

func normalizeAnswer(v interface{}) normalizedAnswer {
	switch x := v.(type) {
	case nil:
		return normalizedAnswer{kind: answerUnanswered}
	case string:
		t := strings.TrimSpace(x)
		if t == "" {
			return normalizedAnswer{kind: answerUnanswered}
		}
		return normalizedAnswer{kind: answerString, str: strings.ToLower(t)}
	case float64:
		return normalizedAnswer{kind: answerNumber, num: x}
	case float32:
		return normalizedAnswer{kind: answerNumber, num: float64(x)}
	case int:
		return normalizedAnswer{kind: answerNumber, num: float64(x)}
	case int64:
		return normalizedAnswer{kind: answerNumber, num: float64(x)}
	case json.Number:
		if n, err := x.Float64(); err == nil {
			return normalizedAnswer{kind: answerNumber, num: n}
		}
		return normalizedAnswer{kind: answerString, str: strings.ToLower(x.String())}
	case bool:
		return normalizedAnswer{kind: answerString, str: strconv.FormatBool(x)}
	case []string:
		elems := make([]interface{}, len(x))
		for i, e := range x {
			elems[i] = e
		}
		return normalizeArray(elems)
	case []interface{}:
		return normalizeArray(x)
	default:
		return normalizedAnswer{kind: answerString, str: strings.ToLower(strings.TrimSpace(fmt.Sprint(x)))}
	}
}

func normalizeArray(elems []interface{}) normalizedAnswer {
	if len(elems) == 0 {
		return normalizedAnswer{kind: answerUnanswered}
	}
	out := make([]string, len(elems))
	for i, e := range elems {
		n := normalizeAnswer(e)
		switch n.kind {
		case answerNumber:
			out[i] = strconv.FormatFloat(n.num, 'f', -1, 64)
		default:
			out[i] = n.str
		}
	}
	sort.Strings(out)
	return normalizedAnswer{kind: answerArray, arr: out}
}

func asNumber(n normalizedAnswer) (float64, bool) {
	switch n.kind {
	case answerNumber:
		return n.num, true
	case answerString:
		v, err := strconv.ParseFloat(n.str, 64)
		return v, err == nil
	default:
		return 0, false
	}
}
