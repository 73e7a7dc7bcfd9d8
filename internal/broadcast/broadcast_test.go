package broadcast

import (
	"context"
	"testing"
	"time"

	"github.com/proctorly/proctor-backend/internal/config"
	"github.com/proctorly/proctor-backend/internal/kv"
	"github.com/proctorly/proctor-backend/internal/model"
	"github.com/rs/zerolog"
)

func TestPublishSubscribeRoundtrip(t *testing.T) {
	store := kv.NewMemoryStore()
	pub := NewPublisher(store, zerolog.Nop())
	sub := NewSubscriber(store, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan model.SessionState, 4)
	done := make(chan error, 1)
	go func() {
		done <- sub.Run(ctx, func(state model.SessionState) {
			received <- state
		})
	}()

	// Give the subscriber a moment to register before publishing.
	time.Sleep(10 * time.Millisecond)

	want := model.SessionState{
		TestID:               "test-1",
		CurrentQuestionIndex: 3,
		Status:               model.SessionStatusActive,
	}
	if err := pub.PublishState(ctx, want); err != nil {
		t.Fatalf("PublishState failed: %v", err)
	}

	select {
	case got := <-received:
		if got != want {
			t.Errorf("Received %+v, want %+v", got, want)
		}
	case <-time.After(time.Second):
		t.Fatal("Subscriber never received the state")
	}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on context cancellation")
	}
}

func TestSubscriberDropsMalformedPayloads(t *testing.T) {
	store := kv.NewMemoryStore()
	sub := NewSubscriber(store, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan model.SessionState, 4)
	go sub.Run(ctx, func(state model.SessionState) {
		received <- state
	})
	time.Sleep(10 * time.Millisecond)

	store.Publish(ctx, config.CacheKey.SessionChannel(), []byte("{garbage"))
	store.Publish(ctx, config.CacheKey.SessionChannel(), []byte(`{"test_id":"t","current_question_index":1,"status":"active"}`))

	select {
	case got := <-received:
		if got.TestID != "t" || got.CurrentQuestionIndex != 1 {
			t.Errorf("Received wrong state: %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("Valid state after a malformed one was never delivered")
	}

	select {
	case extra := <-received:
		t.Errorf("Unexpected extra delivery: %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}
