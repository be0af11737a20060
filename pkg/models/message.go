package models

import (
	"encoding/json"
	"time"
)

// Role indicates the message author type.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Message is one entry in an agent's transcript. The same type serves the
// in-context log and the recall store; compaction revokes a message's
// presence in the former, never the latter.
type Message struct {
	ID      string `json:"id"`
	AgentID string `json:"agent_id"`
	OwnerID string `json:"owner_id"`
	Role    Role   `json:"role"`

	// Content is the message text. For tool-role messages it carries the
	// packaged {status, message, time} envelope.
	Content string `json:"content,omitempty"`

	// Name labels non-user senders: the tool a return came from, or a
	// named sender lifted out of structured user input.
	Name string `json:"name,omitempty"`

	// ToolCalls holds the assistant's tool invocation requests. At most
	// one element is acted on.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID ties a tool-role message to the assistant request it
	// answers.
	ToolCallID string `json:"tool_call_id,omitempty"`

	// ToolResults is an optional expanded form used when a host relays
	// multiple results in one message.
	ToolResults []ToolResult `json:"tool_results,omitempty"`

	// Model records which model produced or received this message.
	Model string `json:"model,omitempty"`

	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// ToolCall represents an LLM's request to execute a tool.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResult represents the output of a tool execution.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// User represents an authenticated user.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
