package queue

import (
	"testing"
	"time"
)

func TestBackoffSchedule(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 32 * time.Second},
		{6, time.Minute}, // 64s caps at the ceiling
		{7, time.Minute},
		{100, time.Minute},
	}

	for _, tc := range cases {
		if got := Backoff(tc.attempt); got != tc.want {
			t.Errorf("Backoff(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestBackoffDegenerateAttempts(t *testing.T) {
	// Attempt numbers below 1 should never produce a shorter wait than
	// the base delay.
	for _, attempt := range []int{0, -1} {
		if got := Backoff(attempt); got < 2*time.Second {
			t.Errorf("Backoff(%d) = %v, want >= 2s", attempt, got)
		}
	}
}
