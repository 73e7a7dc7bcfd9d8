package kv

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMemoryStoreGetSet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	t.Run("missing key", func(t *testing.T) {
		if _, err := store.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("set and get", func(t *testing.T) {
		if err := store.Set(ctx, "k", []byte("v"), 0); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		got, err := store.Get(ctx, "k")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !bytes.Equal(got, []byte("v")) {
			t.Errorf("Got %q, want %q", got, "v")
		}
	})

	t.Run("returned value is a copy", func(t *testing.T) {
		store.Set(ctx, "copy", []byte("abc"), 0)
		got, _ := store.Get(ctx, "copy")
		got[0] = 'X'
		again, _ := store.Get(ctx, "copy")
		if !bytes.Equal(again, []byte("abc")) {
			t.Errorf("Stored value was mutated through the returned slice: %q", again)
		}
	})

	t.Run("delete", func(t *testing.T) {
		store.Set(ctx, "gone", []byte("v"), 0)
		if err := store.Delete(ctx, "gone"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := store.Get(ctx, "gone"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound after delete, got %v", err)
		}
		// Deleting again is not an error.
		if err := store.Delete(ctx, "gone"); err != nil {
			t.Errorf("Second delete failed: %v", err)
		}
	})

	t.Run("ttl expiry", func(t *testing.T) {
		store.Set(ctx, "short", []byte("v"), 10*time.Millisecond)
		time.Sleep(20 * time.Millisecond)
		if _, err := store.Get(ctx, "short"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound after expiry, got %v", err)
		}
	})

	t.Run("zero ttl never expires", func(t *testing.T) {
		store.Set(ctx, "forever", []byte("v"), 0)
		time.Sleep(20 * time.Millisecond)
		if _, err := store.Get(ctx, "forever"); err != nil {
			t.Errorf("Key with zero ttl expired: %v", err)
		}
	})
}

func TestMemoryStorePubSub(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	t.Run("delivers to all subscribers", func(t *testing.T) {
		sub1, err := store.Subscribe(ctx, "events")
		if err != nil {
			t.Fatalf("Subscribe failed: %v", err)
		}
		defer sub1.Close()
		sub2, _ := store.Subscribe(ctx, "events")
		defer sub2.Close()

		if err := store.Publish(ctx, "events", []byte("hello")); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}

		for i, sub := range []Subscription{sub1, sub2} {
			select {
			case msg := <-sub.Messages():
				if !bytes.Equal(msg, []byte("hello")) {
					t.Errorf("subscriber %d got %q", i, msg)
				}
			case <-time.After(time.Second):
				t.Fatalf("subscriber %d never received the message", i)
			}
		}
	})

	t.Run("channel isolation", func(t *testing.T) {
		sub, _ := store.Subscribe(ctx, "a")
		defer sub.Close()

		store.Publish(ctx, "b", []byte("wrong channel"))

		select {
		case msg := <-sub.Messages():
			t.Errorf("Received %q from another channel", msg)
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("publish without subscribers is fine", func(t *testing.T) {
		if err := store.Publish(ctx, "empty", []byte("x")); err != nil {
			t.Errorf("Publish to empty channel failed: %v", err)
		}
	})

	t.Run("close ends the message stream", func(t *testing.T) {
		sub, _ := store.Subscribe(ctx, "closing")
		if err := sub.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
		// Closing twice is safe.
		if err := sub.Close(); err != nil {
			t.Fatalf("Second close failed: %v", err)
		}

		if _, ok := <-sub.Messages(); ok {
			t.Error("Messages channel still open after Close")
		}

		// Publishes after close go nowhere.
		if err := store.Publish(ctx, "closing", []byte("late")); err != nil {
			t.Errorf("Publish after close failed: %v", err)
		}
	})
}

// Publishers racing subscription churn must never send on a closed
// channel. Run with -race to also catch the ordering at the memory level.
func TestMemoryStorePublishDuringClose(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	done := make(chan struct{})
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
					store.Publish(ctx, "churn", []byte("tick"))
				}
			}
		}()
	}

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
					sub, err := store.Subscribe(ctx, "churn")
					if err != nil {
						t.Errorf("Subscribe failed: %v", err)
						return
					}
					// Drain a little so the buffer sees traffic.
					select {
					case <-sub.Messages():
					default:
					}
					sub.Close()
				}
			}
		}()
	}

	time.Sleep(200 * time.Millisecond)
	close(done)
	wg.Wait()
}
