package agent

import (
	"context"

	"github.com/haasonsaas/mnemos/pkg/models"
)

// LLMProvider defines the interface for Large Language Model backends.
//
// Implementations of this interface handle the specifics of communicating
// with different LLM APIs while presenting a unified streaming interface.
// The step engine itself consumes the blocking ChatService contract (see
// chat.go); the streaming surface exists for hosts that relay partial
// output.
//
// Thread Safety:
// Implementations must be safe for concurrent use. Multiple goroutines may
// call Complete() simultaneously for different requests.
type LLMProvider interface {
	// Complete sends a prompt and returns a streaming response.
	Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error)

	// Name returns the provider name.
	Name() string

	// Models returns available models.
	Models() []Model
}

// CompletionRequest contains all parameters for a streaming LLM completion
// request.
type CompletionRequest struct {
	// Model specifies which LLM model to use. If empty, the provider's
	// default model is used.
	Model string `json:"model"`

	// System is the system prompt. This is handled separately from messages
	// in most LLM APIs.
	System string `json:"system,omitempty"`

	// Messages contains the conversation history in chronological order.
	Messages []CompletionMessage `json:"messages"`

	// Tools advertises tool schemas the LLM can request to invoke.
	Tools []ToolSchema `json:"tools,omitempty"`

	// MaxTokens limits the maximum length of the generated response.
	// If 0 or negative, the provider's default is used.
	MaxTokens int `json:"max_tokens,omitempty"`
}

// CompletionMessage represents a single message in a conversation.
//
// Role values: "system", "user", "assistant", "tool".
type CompletionMessage struct {
	// Role indicates who sent the message.
	Role string `json:"role"`

	// Content is the text content of the message (may be empty for
	// tool-only messages).
	Content string `json:"content,omitempty"`

	// Name labels non-user senders, e.g. the tool a return came from.
	Name string `json:"name,omitempty"`

	// ToolCalls contains any tool invocation requests from the assistant.
	ToolCalls []models.ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID ties a tool-role message back to the assistant request it
	// answers.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// CompletionChunk represents a single chunk in a streaming LLM response.
//
// Chunks are delivered through channels as the LLM generates its response.
type CompletionChunk struct {
	// Text contains partial response text (streamed incrementally).
	Text string `json:"text,omitempty"`

	// ToolCall contains a complete tool invocation request.
	ToolCall *models.ToolCall `json:"tool_call,omitempty"`

	// Done is true when the stream has completed successfully.
	Done bool `json:"done,omitempty"`

	// Error contains any error that occurred (streaming is terminated).
	Error error `json:"-"`

	// InputTokens contains the number of input tokens consumed by this
	// request. Only populated in the final chunk (when Done is true).
	InputTokens int `json:"input_tokens,omitempty"`

	// OutputTokens contains the number of output tokens generated by this
	// response. Only populated in the final chunk (when Done is true).
	OutputTokens int `json:"output_tokens,omitempty"`

	// FinishReason carries the provider's stop reason on the final chunk:
	// "stop", "tool_calls", "function_call", or "length".
	FinishReason string `json:"finish_reason,omitempty"`
}

// Model describes an available LLM model and its capabilities.
type Model struct {
	// ID is the API identifier for the model.
	ID string `json:"id"`

	// Name is the human-readable model name.
	Name string `json:"name"`

	// ContextSize is the maximum token context window.
	ContextSize int `json:"context_size"`
}
