package kv

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used by tests and as a degraded
// single-process fallback. Expiry is checked lazily on read.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]memoryEntry
	subs map[string][]*memorySubscription
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]memoryEntry),
		subs: make(map[string][]*memorySubscription),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	entry, ok := s.data[key]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.data, key)
		s.mu.Unlock()
		return nil, ErrNotFound
	}

	// Copy so callers cannot mutate the stored value.
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}

	s.mu.Lock()
	s.data[key] = entry
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Publish(_ context.Context, channel string, payload []byte) error {
	// Send while holding the lock: Close removes a subscription under the
	// write lock before closing its channel, so no sender can still see it.
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.subs[channel] {
		select {
		case sub.out <- append([]byte(nil), payload...):
		default:
			// Slow subscriber: drop rather than block the publisher.
		}
	}
	return nil
}

func (s *MemoryStore) Subscribe(_ context.Context, channel string) (Subscription, error) {
	sub := &memorySubscription{
		store:   s,
		channel: channel,
		out:     make(chan []byte, 64),
	}

	s.mu.Lock()
	s.subs[channel] = append(s.subs[channel], sub)
	s.mu.Unlock()
	return sub, nil
}

type memorySubscription struct {
	store   *MemoryStore
	channel string
	out     chan []byte
	once    sync.Once
}

func (s *memorySubscription) Messages() <-chan []byte { return s.out }

func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		s.store.mu.Lock()
		subs := s.store.subs[s.channel]
		for i, sub := range subs {
			if sub == s {
				s.store.subs[s.channel] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		s.store.mu.Unlock()
		// Removal above happened under the write lock, so no publisher
		// still holds a reference to this channel.
		close(s.out)
	})
	return nil
}
