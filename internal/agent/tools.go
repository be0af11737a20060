package agent

import (
	"context"
	"encoding/json"
	"time"

	"github.com/haasonsaas/mnemos/pkg/models"
)

// ToolSchema is the declarative half of a tool: the name, description, and
// parameter JSON schema advertised to the LLM. An agent's state blob carries
// an ordered, append-only list of these; the registry links each schema back
// to executable code at load time.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Capabilities is the handle a tool receives to act on the calling agent's
// memory. It replaces a direct back-reference to the agent: tools can edit
// core memory, search recall, and use archival memory, and nothing else.
type Capabilities interface {
	// CoreGet returns the current content of a core memory field
	// ("persona" or "human").
	CoreGet(field string) (string, error)

	// CoreEdit replaces a core memory field wholesale, enforcing the
	// field's character limit.
	CoreEdit(field, content string) error

	// CoreAppend appends content to a core memory field using sep as the
	// separator (newline when empty).
	CoreAppend(field, content, sep string) error

	// CoreReplace substitutes oldContent with newContent inside a field.
	// Fails when oldContent is empty or not found.
	CoreReplace(field, oldContent, newContent string) error

	// RecallSearch finds messages whose text contains query. Paged.
	RecallSearch(ctx context.Context, query string, page, pageSize int) ([]*models.Message, int, error)

	// RecallSearchDate finds messages created within [start, end]. Paged.
	RecallSearchDate(ctx context.Context, start, end time.Time, page, pageSize int) ([]*models.Message, int, error)

	// ArchivalInsert chunks, embeds, and stores content in archival memory.
	ArchivalInsert(ctx context.Context, content string) error

	// ArchivalSearch runs a similarity search over archival memory. Paged.
	ArchivalSearch(ctx context.Context, query string, page, pageSize int) ([]ArchivalResult, int, error)

	// SendAssistantMessage delivers a user-visible message from the agent.
	SendAssistantMessage(message string)

	// PauseHeartbeats suspends automated heartbeats for the given number of
	// minutes, returning the effective duration after clamping.
	PauseHeartbeats(minutes int) time.Duration
}

// ArchivalResult is one archival memory hit: the stored text plus the
// timestamp the search surfaced it at.
type ArchivalResult struct {
	Timestamp string `json:"timestamp"`
	Content   string `json:"content"`
}

// Tool is executable agent functionality. Execute receives the decoded
// argument map (request_heartbeat already removed) and a capability handle
// scoped to the calling agent. The returned string is shown to the model as
// the tool's result; errors become structured tool failures.
type Tool interface {
	// Name returns the tool name used in LLM function calling.
	Name() string

	// Description explains when the model should reach for this tool.
	Description() string

	// Schema returns the JSON Schema for the tool's parameters.
	Schema() json.RawMessage

	// Execute runs the tool.
	Execute(ctx context.Context, caps Capabilities, args map[string]any) (string, error)
}
