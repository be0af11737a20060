package agent

import (
	"context"

	"github.com/haasonsaas/mnemos/pkg/models"
)

// Finish reasons the step engine accepts from a completion. Anything else is
// a protocol error; FinishLength signals context overflow and routes to the
// compactor.
const (
	FinishStop         = "stop"
	FinishFunctionCall = "function_call"
	FinishToolCalls    = "tool_calls"
	FinishLength       = "length"
)

// ChatRequest is a non-streaming completion request carrying the fully
// assembled in-context log and the agent's tool schemas.
type ChatRequest struct {
	// Model is the model identifier from the agent's LLM config.
	Model string

	// Messages is the full prompt: system message first, then the
	// in-context log in order.
	Messages []*models.Message

	// Functions advertises the agent's tool registry to the model.
	Functions []ToolSchema

	// FirstMessage hints that this is the agent's first turn, letting the
	// provider select the turn-1 preamble where its prompt formatter
	// distinguishes one.
	FirstMessage bool

	// MaxTokens bounds the completion length. Zero uses the provider
	// default.
	MaxTokens int
}

// FunctionCall is the legacy single-function-call field some providers still
// emit in place of the tool_calls array.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ChatMessage is the assistant message inside a completion choice.
type ChatMessage struct {
	Role         string            `json:"role"`
	Content      string            `json:"content"`
	ToolCalls    []models.ToolCall `json:"tool_calls,omitempty"`
	FunctionCall *FunctionCall     `json:"function_call,omitempty"`
}

// ChatChoice is one completion alternative. The step engine only reads
// index 0.
type ChatChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// ChatUsage is the token accounting block the pressure check reads.
type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is a completed (non-streaming) LLM reply.
type ChatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Usage   ChatUsage    `json:"usage"`
}

// ChatService is the LLM dependency of the step engine: one blocking call
// per step, with rate-limit backoff handled inside the implementation.
type ChatService interface {
	ChatCompletion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}
