package engine

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/haasonsaas/mnemos/pkg/models"
)

func TestValidateUserInput(t *testing.T) {
	if err := ValidateUserInput(""); err == nil {
		t.Fatal("empty input must be rejected")
	}
	if err := ValidateUserInput("/save"); err == nil {
		t.Fatal("command-prefixed input must be rejected")
	}
	if err := ValidateUserInput("hello"); err != nil {
		t.Fatalf("plain input rejected: %v", err)
	}
}

func TestValidateRole(t *testing.T) {
	if err := ValidateRole(models.RoleUser); err != nil {
		t.Fatalf("user role rejected: %v", err)
	}
	if err := ValidateRole(models.RoleSystem); err != nil {
		t.Fatalf("system role rejected: %v", err)
	}
	if err := ValidateRole(models.RoleTool); err == nil {
		t.Fatal("tool role must be rejected at ingest")
	}
	if err := ValidateRole(models.Role("owner")); err == nil {
		t.Fatal("unknown role must be rejected")
	}
}

func TestNormalizeIncomingLiftsName(t *testing.T) {
	ag := &Agent{record: &AgentRecord{ID: "a", OwnerID: "o", LLM: LLMConfig{Model: "m"}}}
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	msg := ag.normalizeIncoming(Input{Raw: `{"type": "user_message", "message": "hi", "name": "alice"}`}, now)
	if msg == nil {
		t.Fatal("expected a message")
	}
	if msg.Name != "alice" {
		t.Fatalf("name = %q, want alice", msg.Name)
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(msg.Content), &decoded); err != nil {
		t.Fatalf("content not valid JSON after re-serialization: %v", err)
	}
	if _, present := decoded["name"]; present {
		t.Fatal("name field should have been lifted out of the body")
	}
	if !msg.CreatedAt.Equal(now) {
		t.Fatalf("timestamp not recreated: %v", msg.CreatedAt)
	}
}

func TestNormalizeIncomingPlainText(t *testing.T) {
	ag := &Agent{record: &AgentRecord{ID: "a", OwnerID: "o", LLM: LLMConfig{Model: "m"}}}
	now := time.Now()

	msg := ag.normalizeIncoming(Input{Raw: "not json at all"}, now)
	if msg == nil || msg.Content != "not json at all" {
		t.Fatalf("plain text should pass through, got %+v", msg)
	}
	if msg.Role != models.RoleUser {
		t.Fatalf("role = %s", msg.Role)
	}
}

func TestNormalizeIncomingKeepTimestamp(t *testing.T) {
	ag := &Agent{record: &AgentRecord{ID: "a", OwnerID: "o", LLM: LLMConfig{Model: "m"}}}
	loc := time.FixedZone("PST", -8*3600)
	supplied := time.Date(2024, 3, 1, 4, 0, 0, 0, loc)

	msg := ag.normalizeIncoming(Input{
		Message:       &models.Message{Role: models.RoleUser, Content: "hi", CreatedAt: supplied},
		KeepTimestamp: true,
	}, time.Now())

	// Preserved, but normalized to UTC.
	if msg.CreatedAt.Location() != time.UTC {
		t.Fatalf("timestamp not UTC: %v", msg.CreatedAt)
	}
	if !msg.CreatedAt.Equal(supplied) {
		t.Fatalf("timestamp changed: %v != %v", msg.CreatedAt, supplied)
	}
}

func TestNormalizeIncomingEmpty(t *testing.T) {
	ag := &Agent{record: &AgentRecord{ID: "a"}}
	if msg := ag.normalizeIncoming(Input{}, time.Now()); msg != nil {
		t.Fatalf("empty input should produce nil, got %+v", msg)
	}
}

func TestIsContextOverflow(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{&ContextOverflowError{Detail: "x"}, true},
		{&ProtocolError{Detail: "x"}, false},
		{errMessage("This model's maximum context length is 8192 tokens"), true},
		{errMessage("error code: context_length_exceeded"), true},
		{errMessage("rate limited"), false},
		{nil, false},
	}
	for _, tc := range cases {
		if got := IsContextOverflow(tc.err); got != tc.want {
			t.Errorf("IsContextOverflow(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

type errMessage string

func (e errMessage) Error() string { return string(e) }

func TestLiftNameFieldNonObject(t *testing.T) {
	if _, _, ok := liftNameField("plain words"); ok {
		t.Fatal("non-JSON content should not be rewritten")
	}
	if _, _, ok := liftNameField("[1,2,3]"); ok {
		t.Fatal("JSON arrays should not be rewritten")
	}
	clean, name, ok := liftNameField(`{"message": "hi"}`)
	if !ok || name != "" || !strings.Contains(clean, "hi") {
		t.Fatalf("object without name mishandled: %q %q %v", clean, name, ok)
	}
}
