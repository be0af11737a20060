package heartbeat

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func decode(t *testing.T, payload string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		t.Fatalf("payload is not valid JSON: %v\n%s", err, payload)
	}
	return m
}

func TestPackageUserMessage(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	m := decode(t, PackageUserMessage("hello", "", at))
	if m["type"] != "user_message" || m["message"] != "hello" {
		t.Fatalf("unexpected payload: %v", m)
	}
	if _, ok := m["name"]; ok {
		t.Fatal("name should be omitted when empty")
	}

	m = decode(t, PackageUserMessage("hi", "alice", at))
	if m["name"] != "alice" {
		t.Fatalf("name not carried: %v", m)
	}
}

func TestHeartbeatPayloads(t *testing.T) {
	at := time.Now()

	m := decode(t, Heartbeat(RequestHeartbeatReason, at))
	if m["type"] != "heartbeat" {
		t.Fatalf("type = %v", m["type"])
	}
	if !strings.HasPrefix(m["reason"].(string), NonUserMessagePrefix) {
		t.Fatalf("reason missing automated prefix: %v", m["reason"])
	}

	m = decode(t, TokenLimitWarning(at))
	if m["type"] != "system_alert" {
		t.Fatalf("type = %v", m["type"])
	}
	if !strings.Contains(m["message"].(string), "core_memory_append") {
		t.Fatal("warning should steer the model toward memory tools")
	}
}

func TestPackageFunctionResponse(t *testing.T) {
	at := time.Now()

	m := decode(t, PackageFunctionResponse(true, "done", at))
	if m["status"] != "OK" || m["message"] != "done" {
		t.Fatalf("unexpected payload: %v", m)
	}

	m = decode(t, PackageFunctionResponse(false, "No function named nope", at))
	if m["status"] != "Failed" {
		t.Fatalf("status = %v", m["status"])
	}

	m = decode(t, PackageFunctionResponse(true, "", at))
	if m["message"] != nil {
		t.Fatalf("empty response should serialize as null, got %v", m["message"])
	}
}

func TestPackageSummarizeMessage(t *testing.T) {
	m := decode(t, PackageSummarizeMessage("the gist", 12, 15, 40, time.Now()))
	msg := m["message"].(string)
	if !strings.Contains(msg, "15 of 40 total messages") {
		t.Fatalf("hidden/total counts missing: %s", msg)
	}
	if !strings.Contains(msg, "previous 12 messages") {
		t.Fatalf("summary count missing: %s", msg)
	}
	if !strings.Contains(msg, "the gist") {
		t.Fatalf("summary body missing: %s", msg)
	}
}

func TestRunnerPause(t *testing.T) {
	r := NewRunner(DefaultConfig(), "agent-1", nil)

	if d := r.Pause(10); d != 10*time.Minute {
		t.Fatalf("pause = %v", d)
	}
	if !r.isPaused(time.Now()) {
		t.Fatal("runner should be paused")
	}

	// Clamped to the maximum.
	if d := r.Pause(100000); d != MaxPauseMinutes*time.Minute {
		t.Fatalf("pause not clamped: %v", d)
	}

	r.Resume()
	if r.isPaused(time.Now()) {
		t.Fatal("runner should have resumed")
	}
}

func TestRunnerFires(t *testing.T) {
	var fired atomic.Int64
	cfg := &Config{Interval: 5 * time.Millisecond, Enabled: true}
	r := NewRunner(cfg, "agent-1", func(ctx context.Context, agentID string, payload string) error {
		if agentID != "agent-1" {
			t.Errorf("agentID = %s", agentID)
		}
		decode(t, payload)
		fired.Add(1)
		return nil
	})

	r.Start(context.Background())
	defer r.Stop()

	deadline := time.After(2 * time.Second)
	for fired.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("runner never fired")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestSchedulerLifecycle(t *testing.T) {
	s := NewScheduler(&Config{Interval: time.Minute, Enabled: true})
	step := func(ctx context.Context, agentID, payload string) error { return nil }

	a := s.GetOrCreate(context.Background(), "a", step)
	if again := s.GetOrCreate(context.Background(), "a", step); again != a {
		t.Fatal("GetOrCreate should be idempotent per agent")
	}
	s.GetOrCreate(context.Background(), "b", step)

	if n := s.Active(); n != 2 {
		t.Fatalf("active = %d, want 2", n)
	}

	s.StopAll()
	if n := s.Active(); n != 0 {
		t.Fatalf("active after StopAll = %d", n)
	}
	if s.Get("a") != nil {
		t.Fatal("runners should be cleared after StopAll")
	}
}
