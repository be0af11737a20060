package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAgentBusy is returned when a second caller reaches a locked agent. The
// caller may retry; no state was touched.
var ErrAgentBusy = errors.New("agent is currently busy")

// ErrAgentNotFound reports an unknown agent id.
var ErrAgentNotFound = errors.New("agent not found")

// InputError rejects invalid incoming input before any state mutation.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return "invalid input: " + e.Reason
}

// ProtocolError reports an LLM reply the step engine cannot interpret:
// unexpected finish reason, empty body, or unparseable payload after all
// repair strategies.
type ProtocolError struct {
	FinishReason string
	Detail       string
}

func (e *ProtocolError) Error() string {
	if e.FinishReason != "" {
		return fmt.Sprintf("protocol error: finish_reason=%q %s", e.FinishReason, e.Detail)
	}
	return "protocol error: " + e.Detail
}

// ContextOverflowError reports that the prompt no longer fits the model's
// context window. It triggers one compact-and-retry; a second occurrence in
// the same step is fatal.
type ContextOverflowError struct {
	Detail string
}

func (e *ContextOverflowError) Error() string {
	return "context window overflow: " + e.Detail
}

// overflow markers providers use in error bodies.
const (
	overflowNeedle     = "maximum context length"
	overflowErrorCode  = "context_length_exceeded"
)

// IsContextOverflow reports whether err signals a context-window overflow,
// either as a typed ContextOverflowError or by the provider's error text.
func IsContextOverflow(err error) bool {
	if err == nil {
		return false
	}
	var overflow *ContextOverflowError
	if errors.As(err, &overflow) {
		return true
	}
	text := err.Error()
	return strings.Contains(text, overflowNeedle) || strings.Contains(text, overflowErrorCode)
}
