package ratelimit

import (
	"testing"
	"time"
)

func TestKeyed_BurstThenLimit(t *testing.T) {
	k := New(1, 2)
	now := time.Unix(1_700_000_000, 0)
	k.now = func() time.Time { return now }

	got := []bool{k.Allow("a"), k.Allow("a"), k.Allow("a")}
	want := []bool{true, true, false}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Allow sequence = %v, want %v", got, want)
		}
	}

	if !k.Allow("b") {
		t.Fatal("a different key must have its own bucket")
	}

	now = now.Add(time.Second)
	if !k.Allow("a") {
		t.Fatal("bucket should refill after one second")
	}
}

func TestKeyed_EvictsIdleKeys(t *testing.T) {
	k := New(10, 10)
	now := time.Unix(1_700_000_000, 0)
	k.now = func() time.Time { return now }

	k.Allow("10.0.0.1")
	k.Allow("10.0.0.2")

	now = now.Add(2 * IdleTTL)
	k.Allow("10.0.0.3")

	if k.Len() != 1 {
		t.Errorf("tracked keys = %d, want 1 after eviction", k.Len())
	}
}

func TestKeyed_RetryAfter(t *testing.T) {
	tests := []struct {
		rate float64
		want time.Duration
	}{
		{rate: 50, want: time.Second},
		{rate: 1, want: time.Second},
		{rate: 0.25, want: 4 * time.Second},
		{rate: 0.3, want: 4 * time.Second},
		{rate: 0, want: time.Second},
	}
	for _, tt := range tests {
		if got := New(tt.rate, 1).RetryAfter(); got != tt.want {
			t.Errorf("RetryAfter(rate=%v) = %v, want %v", tt.rate, got, tt.want)
		}
	}
}
