package engine

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/haasonsaas/mnemos/pkg/models"
)

// Input is one step's incoming payload: either a pre-formed user message or
// a raw string (already packaged by the host or a chaining payload).
type Input struct {
	// Message is a pre-formed message. Takes precedence over Raw.
	Message *models.Message

	// Raw is the message body when no pre-formed message is supplied.
	Raw string

	// FirstMessage forces the first-turn completion path with its retry
	// guard.
	FirstMessage bool

	// KeepTimestamp preserves the supplied message's created_at instead of
	// recreating it at UTC now.
	KeepTimestamp bool
}

// empty reports a step with no incoming message (re-run over the existing
// log).
func (in Input) empty() bool {
	return in.Message == nil && in.Raw == ""
}

// ValidateUserInput applies the ingest checks shared by every state-mutating
// entry point: non-empty, not a client command. Violations reject the
// request before any state mutation.
func ValidateUserInput(text string) error {
	if len(text) == 0 {
		return &InputError{Reason: "empty message"}
	}
	if strings.HasPrefix(text, "/") {
		return &InputError{Reason: "message must not start with '/'"}
	}
	return nil
}

// ValidateRole accepts the roles the message endpoint can inject.
func ValidateRole(role models.Role) error {
	switch role {
	case models.RoleUser, models.RoleSystem:
		return nil
	default:
		return &InputError{Reason: "role must be user or system"}
	}
}

// normalizeIncoming converts an Input into the message appended to the log,
// or nil for an empty input. When the body looks like JSON, it is validated
// by decode/re-encode and a top-level "name" field is lifted onto the
// message's Name attribute.
func (a *Agent) normalizeIncoming(in Input, now time.Time) *models.Message {
	if in.empty() {
		return nil
	}

	var msg *models.Message
	if in.Message != nil {
		msg = in.Message
		if msg.ID == "" {
			fresh := a.newMessage(msg.Role, msg.Content, now)
			fresh.Name = msg.Name
			fresh.CreatedAt = msg.CreatedAt
			msg = fresh
		}
	} else {
		msg = a.newMessage(models.RoleUser, in.Raw, now)
	}

	if clean, name, ok := liftNameField(msg.Content); ok {
		msg.Content = clean
		if name != "" {
			msg.Name = name
		}
	}

	if !in.KeepTimestamp || msg.CreatedAt.IsZero() {
		msg.CreatedAt = now.UTC()
	} else {
		msg.CreatedAt = msg.CreatedAt.UTC()
	}
	return msg
}

// liftNameField validates JSON-looking content by decode/re-encode and
// removes a top-level "name" field, returning the cleaned body and the
// name. ok is false when content is not a JSON object, in which case the
// body passes through untouched.
func liftNameField(content string) (clean, name string, ok bool) {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "{") {
		return "", "", false
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
		return "", "", false
	}
	if raw, present := decoded["name"]; present {
		if s, isString := raw.(string); isString {
			name = s
		}
		delete(decoded, "name")
	}
	reencoded, err := json.Marshal(decoded)
	if err != nil {
		return "", "", false
	}
	return string(reencoded), name, true
}
