package backoff

import (
	"context"
	"testing"
	"time"
)

func TestDelayGrowsExponentially(t *testing.T) {
	p := Policy{Initial: time.Second, Max: time.Minute, Factor: 2}

	if d := p.delayWithRand(1, 0); d != time.Second {
		t.Fatalf("attempt 1 = %v", d)
	}
	if d := p.delayWithRand(2, 0); d != 2*time.Second {
		t.Fatalf("attempt 2 = %v", d)
	}
	if d := p.delayWithRand(5, 0); d != 16*time.Second {
		t.Fatalf("attempt 5 = %v", d)
	}
}

func TestDelayCappedAtMax(t *testing.T) {
	p := Policy{Initial: time.Second, Max: 5 * time.Second, Factor: 2}
	if d := p.delayWithRand(10, 0); d != 5*time.Second {
		t.Fatalf("capped delay = %v", d)
	}
}

func TestDelayJitter(t *testing.T) {
	p := Policy{Initial: time.Second, Max: time.Minute, Factor: 2, Jitter: 0.5}

	// random=1 adds the full jitter fraction.
	if d := p.delayWithRand(1, 1); d != 1500*time.Millisecond {
		t.Fatalf("jittered delay = %v", d)
	}
	if d := p.delayWithRand(1, 0); d != time.Second {
		t.Fatalf("unjittered delay = %v", d)
	}
}

func TestSleepHonorsCancellation(t *testing.T) {
	p := Policy{Initial: time.Hour, Factor: 2}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := Sleep(ctx, p, 1)
	if err == nil {
		t.Fatal("expected context error")
	}
	if time.Since(start) > time.Second {
		t.Fatal("Sleep did not return promptly on cancellation")
	}
}

func TestSleepCompletes(t *testing.T) {
	p := Policy{Initial: time.Millisecond, Factor: 1}
	if err := Sleep(context.Background(), p, 1); err != nil {
		t.Fatalf("Sleep: %v", err)
	}
}
