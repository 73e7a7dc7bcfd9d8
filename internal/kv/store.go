package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when a key does not exist or has expired.
var ErrNotFound = errors.New("kv: key not found")

// Store is the shared key-value and pub/sub surface every component
// coordinates through. Implementations must be safe for concurrent use
// across goroutines; cross-process consistency comes from the backing
// service, not from this interface.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key. A zero ttl means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Publish sends payload to every subscriber of channel. Delivery is
	// at-least-once and best-effort; a publish to a channel with no
	// subscribers is not an error.
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe registers a subscription on channel. The subscription
	// stays open until closed or the context is cancelled.
	Subscribe(ctx context.Context, channel string) (Subscription, error)
}

// Subscription delivers published payloads for one channel.
type Subscription interface {
	// Messages returns the receive channel. It is closed when the
	// subscription ends.
	Messages() <-chan []byte
	Close() error
}
