package engine

import "github.com/haasonsaas/mnemos/pkg/models"

// Interface receives the user-facing events a step produces, in order. The
// HTTP layer implements it to frame server-sent events; tests implement it
// to assert emission order. Methods must not block the step.
type Interface interface {
	// UserMessage observes the incoming user message after normalization.
	UserMessage(text string, msg *models.Message)

	// InternalMonologue carries the assistant's inner thoughts (the content
	// field of a tool-calling reply).
	InternalMonologue(text string, msg *models.Message)

	// FunctionCall reports Running/Ran transitions of a tool call.
	FunctionCall(text string, msg *models.Message)

	// FunctionReturn reports a tool result or error.
	FunctionReturn(success bool, text string, msg *models.Message)

	// AssistantMessage carries text the agent explicitly sent to the user
	// via send_message.
	AssistantMessage(text string, msg *models.Message)
}

// NopInterface discards every event.
type NopInterface struct{}

func (NopInterface) UserMessage(string, *models.Message)          {}
func (NopInterface) InternalMonologue(string, *models.Message)    {}
func (NopInterface) FunctionCall(string, *models.Message)         {}
func (NopInterface) FunctionReturn(bool, string, *models.Message) {}
func (NopInterface) AssistantMessage(string, *models.Message)     {}
