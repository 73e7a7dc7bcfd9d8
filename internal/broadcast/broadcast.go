package broadcast

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/proctorly/proctor-backend/internal/config"
	"github.com/proctorly/proctor-backend/internal/kv"
	"github.com/proctorly/proctor-backend/internal/model"
	"github.com/rs/zerolog"
)

// Publisher pushes session state deltas onto the shared channel. Delivery
// is at-least-once: consumers must treat every received state as the new
// authoritative truth, never diff against a prior one.
type Publisher struct {
	store kv.Store
	log   zerolog.Logger
}

// NewPublisher creates a Publisher over the shared store.
func NewPublisher(store kv.Store, log zerolog.Logger) *Publisher {
	return &Publisher{
		store: store,
		log:   log.With().Str("component", "broadcast").Logger(),
	}
}

// PublishState sends one compact state delta to every subscribed gateway.
func (p *Publisher) PublishState(ctx context.Context, state model.SessionState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal session state: %w", err)
	}
	if err := p.store.Publish(ctx, config.CacheKey.SessionChannel(), payload); err != nil {
		return fmt.Errorf("publish session state: %w", err)
	}
	return nil
}

// Subscriber receives session state deltas. Each gateway process runs
// exactly one Subscriber for its lifetime.
type Subscriber struct {
	store kv.Store
	log   zerolog.Logger
}

// NewSubscriber creates a Subscriber over the shared store.
func NewSubscriber(store kv.Store, log zerolog.Logger) *Subscriber {
	return &Subscriber{
		store: store,
		log:   log.With().Str("component", "broadcast").Logger(),
	}
}

// Run subscribes to the session channel and invokes handle for every state
// delta until the context is cancelled. Malformed payloads are dropped:
// the next delta carries the full authoritative state anyway.
func (s *Subscriber) Run(ctx context.Context, handle func(model.SessionState)) error {
	sub, err := s.store.Subscribe(ctx, config.CacheKey.SessionChannel())
	if err != nil {
		return fmt.Errorf("subscribe session channel: %w", err)
	}
	defer sub.Close()

	s.log.Info().Str("channel", config.CacheKey.SessionChannel()).Msg("Subscribed to session events")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-sub.Messages():
			if !ok {
				return nil
			}
			var state model.SessionState
			if err := json.Unmarshal(payload, &state); err != nil {
				s.log.Warn().Err(err).Str("payload", string(payload)).Msg("Dropping malformed session event")
				continue
			}
			handle(state)
		}
	}
}
