package ratelimit

import (
	"testing"
	"time"
)

func TestAllowBurstThenReject(t *testing.T) {
	l := NewLimiter(Config{Rate: 1, Burst: 3, IdleTTL: time.Minute})
	now := time.Now()

	for i := 0; i < 3; i++ {
		if !l.allowAt("user", now) {
			t.Fatalf("request %d within burst rejected", i)
		}
	}
	if l.allowAt("user", now) {
		t.Fatal("request beyond burst allowed")
	}
}

func TestRefillOverTime(t *testing.T) {
	l := NewLimiter(Config{Rate: 2, Burst: 2, IdleTTL: time.Minute})
	now := time.Now()

	l.allowAt("user", now)
	l.allowAt("user", now)
	if l.allowAt("user", now) {
		t.Fatal("bucket should be empty")
	}

	// One second at 2 tokens/sec refills two requests.
	later := now.Add(time.Second)
	if !l.allowAt("user", later) || !l.allowAt("user", later) {
		t.Fatal("refilled tokens not granted")
	}
	if l.allowAt("user", later) {
		t.Fatal("refill exceeded burst")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	l := NewLimiter(Config{Rate: 1, Burst: 1, IdleTTL: time.Minute})
	now := time.Now()

	if !l.allowAt("a", now) {
		t.Fatal("first key rejected")
	}
	if !l.allowAt("b", now) {
		t.Fatal("second key rejected despite its own bucket")
	}
	if l.allowAt("a", now) {
		t.Fatal("first key's bucket should be empty")
	}
}

func TestPruneIdleBuckets(t *testing.T) {
	l := NewLimiter(Config{Rate: 1, Burst: 1, IdleTTL: time.Second})
	now := time.Now()

	l.allowAt("old", now)
	// A new key after the TTL triggers pruning of the idle bucket.
	l.allowAt("new", now.Add(2*time.Second))

	l.mu.Lock()
	_, oldExists := l.buckets["old"]
	l.mu.Unlock()
	if oldExists {
		t.Fatal("idle bucket not pruned")
	}
}

func TestReset(t *testing.T) {
	l := NewLimiter(Config{Rate: 1, Burst: 1, IdleTTL: time.Minute})
	now := time.Now()

	l.allowAt("user", now)
	if l.allowAt("user", now) {
		t.Fatal("bucket should be empty")
	}
	l.Reset("user")
	if !l.allowAt("user", now) {
		t.Fatal("reset should restore the burst")
	}
}

func TestDefaultsApplied(t *testing.T) {
	l := NewLimiter(Config{})
	if l.config.Rate != 1 || l.config.Burst != 5 {
		t.Fatalf("defaults not applied: %+v", l.config)
	}
}
