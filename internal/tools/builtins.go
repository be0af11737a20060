// Package tools implements the built-in tool set every agent registers:
// messaging, core memory editing, recall search, and archival memory. Each
// tool acts on the calling agent only through the capability handle it is
// passed, never through a direct agent reference.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/haasonsaas/mnemos/internal/agent"
	"github.com/haasonsaas/mnemos/internal/recall"
	"github.com/haasonsaas/mnemos/pkg/models"
)

// RegisterBuiltins adds the full built-in tool set to a registry.
func RegisterBuiltins(registry *agent.ToolRegistry) {
	registry.Register(SendMessage{})
	registry.Register(PauseHeartbeats{})
	registry.Register(CoreMemoryAppend{})
	registry.Register(CoreMemoryReplace{})
	registry.Register(ConversationSearch{})
	registry.Register(ConversationSearchDate{})
	registry.Register(ArchivalMemoryInsert{})
	registry.Register(ArchivalMemorySearch{})
}

// heartbeatParam is appended to every schema so the model can chain a
// follow-up step after the call.
const heartbeatParam = `"request_heartbeat": {
        "type": "boolean",
        "description": "Request an immediate heartbeat after function execution. Set to 'true' if you want to send a follow-up message or run a follow-up function."
      }`

// SendMessage delivers a user-visible message from the agent.
type SendMessage struct{}

func (SendMessage) Name() string { return "send_message" }

func (SendMessage) Description() string {
	return "Sends a message to the human user. Use this and only this to communicate; everything else you say is inner monologue."
}

func (SendMessage) Schema() json.RawMessage {
	return json.RawMessage(`{
    "type": "object",
    "properties": {
      "message": {
        "type": "string",
        "description": "Message contents. All unicode (including emojis) are supported."
      },
      ` + heartbeatParam + `
    },
    "required": ["message"]
  }`)
}

func (SendMessage) Execute(ctx context.Context, caps agent.Capabilities, args map[string]any) (string, error) {
	message, err := stringArg(args, "message")
	if err != nil {
		return "", err
	}
	caps.SendAssistantMessage(message)
	return "", nil
}

// PauseHeartbeats suspends automated (timer-driven) heartbeats.
type PauseHeartbeats struct{}

func (PauseHeartbeats) Name() string { return "pause_heartbeats" }

func (PauseHeartbeats) Description() string {
	return "Temporarily ignore timed heartbeats. You may still receive messages from manual heartbeats and other events."
}

func (PauseHeartbeats) Schema() json.RawMessage {
	return json.RawMessage(`{
    "type": "object",
    "properties": {
      "minutes": {
        "type": "integer",
        "description": "Number of minutes to ignore timed heartbeats for. Max value of 360 minutes (6 hours)."
      },
      ` + heartbeatParam + `
    },
    "required": ["minutes"]
  }`)
}

func (PauseHeartbeats) Execute(ctx context.Context, caps agent.Capabilities, args map[string]any) (string, error) {
	minutes, err := intArg(args, "minutes")
	if err != nil {
		return "", err
	}
	paused := caps.PauseHeartbeats(minutes)
	return fmt.Sprintf("Pausing timed heartbeats for %d min", int(paused/time.Minute)), nil
}

// CoreMemoryAppend appends to a core memory block.
type CoreMemoryAppend struct{}

func (CoreMemoryAppend) Name() string { return "core_memory_append" }

func (CoreMemoryAppend) Description() string {
	return "Append to the contents of core memory."
}

func (CoreMemoryAppend) Schema() json.RawMessage {
	return json.RawMessage(`{
    "type": "object",
    "properties": {
      "name": {
        "type": "string",
        "description": "Section of the memory to be edited (persona or human)."
      },
      "content": {
        "type": "string",
        "description": "Content to write to the memory. All unicode (including emojis) are supported."
      },
      ` + heartbeatParam + `
    },
    "required": ["name", "content"]
  }`)
}

func (CoreMemoryAppend) Execute(ctx context.Context, caps agent.Capabilities, args map[string]any) (string, error) {
	field, err := stringArg(args, "name")
	if err != nil {
		return "", err
	}
	content, err := stringArg(args, "content")
	if err != nil {
		return "", err
	}
	if err := caps.CoreAppend(field, content, "\n"); err != nil {
		return "", err
	}
	return "", nil
}

// CoreMemoryReplace rewrites part of a core memory block. Replacing with an
// empty string deletes the old content.
type CoreMemoryReplace struct{}

func (CoreMemoryReplace) Name() string { return "core_memory_replace" }

func (CoreMemoryReplace) Description() string {
	return "Replace the contents of core memory. To delete memories, use an empty string for new_content."
}

func (CoreMemoryReplace) Schema() json.RawMessage {
	return json.RawMessage(`{
    "type": "object",
    "properties": {
      "name": {
        "type": "string",
        "description": "Section of the memory to be edited (persona or human)."
      },
      "old_content": {
        "type": "string",
        "description": "String to replace. Must be an exact match."
      },
      "new_content": {
        "type": "string",
        "description": "Content to write to the memory. All unicode (including emojis) are supported."
      },
      ` + heartbeatParam + `
    },
    "required": ["name", "old_content", "new_content"]
  }`)
}

func (CoreMemoryReplace) Execute(ctx context.Context, caps agent.Capabilities, args map[string]any) (string, error) {
	field, err := stringArg(args, "name")
	if err != nil {
		return "", err
	}
	oldContent, err := stringArg(args, "old_content")
	if err != nil {
		return "", err
	}
	newContent, optErr := stringArg(args, "new_content")
	if optErr != nil {
		newContent = ""
	}
	if err := caps.CoreReplace(field, oldContent, newContent); err != nil {
		return "", err
	}
	return "", nil
}

// ConversationSearch pages through recall memory by substring.
type ConversationSearch struct{}

func (ConversationSearch) Name() string { return "conversation_search" }

func (ConversationSearch) Description() string {
	return "Search prior conversation history using case-insensitive string matching."
}

func (ConversationSearch) Schema() json.RawMessage {
	return json.RawMessage(`{
    "type": "object",
    "properties": {
      "query": {
        "type": "string",
        "description": "String to search for."
      },
      "page": {
        "type": "integer",
        "description": "Allows you to page through results. Only use on a follow-up query. Defaults to 0 (first page)."
      },
      ` + heartbeatParam + `
    },
    "required": ["query"]
  }`)
}

func (ConversationSearch) Execute(ctx context.Context, caps agent.Capabilities, args map[string]any) (string, error) {
	query, err := stringArg(args, "query")
	if err != nil {
		return "", err
	}
	page := optionalIntArg(args, "page", 0)

	results, total, err := caps.RecallSearch(ctx, query, page, recall.DefaultPageSize)
	if err != nil {
		return "", err
	}
	return formatMessageResults(results, total, page), nil
}

// ConversationSearchDate pages through recall memory by date range.
type ConversationSearchDate struct{}

func (ConversationSearchDate) Name() string { return "conversation_search_date" }

func (ConversationSearchDate) Description() string {
	return "Search prior conversation history using a date range."
}

func (ConversationSearchDate) Schema() json.RawMessage {
	return json.RawMessage(`{
    "type": "object",
    "properties": {
      "start_date": {
        "type": "string",
        "description": "The start of the date range to search, in the format 'YYYY-MM-DD'."
      },
      "end_date": {
        "type": "string",
        "description": "The end of the date range to search, in the format 'YYYY-MM-DD'."
      },
      "page": {
        "type": "integer",
        "description": "Allows you to page through results. Only use on a follow-up query. Defaults to 0 (first page)."
      },
      ` + heartbeatParam + `
    },
    "required": ["start_date", "end_date"]
  }`)
}

func (ConversationSearchDate) Execute(ctx context.Context, caps agent.Capabilities, args map[string]any) (string, error) {
	startRaw, err := stringArg(args, "start_date")
	if err != nil {
		return "", err
	}
	endRaw, err := stringArg(args, "end_date")
	if err != nil {
		return "", err
	}
	start, err := time.Parse("2006-01-02", startRaw)
	if err != nil {
		return "", fmt.Errorf("start_date must be in YYYY-MM-DD format: %s", startRaw)
	}
	end, err := time.Parse("2006-01-02", endRaw)
	if err != nil {
		return "", fmt.Errorf("end_date must be in YYYY-MM-DD format: %s", endRaw)
	}
	// Make the range inclusive of the whole end day.
	end = end.Add(24*time.Hour - time.Nanosecond)
	page := optionalIntArg(args, "page", 0)

	results, total, err := caps.RecallSearchDate(ctx, start, end, page, recall.DefaultPageSize)
	if err != nil {
		return "", err
	}
	return formatMessageResults(results, total, page), nil
}

// ArchivalMemoryInsert writes a passage into archival memory.
type ArchivalMemoryInsert struct{}

func (ArchivalMemoryInsert) Name() string { return "archival_memory_insert" }

func (ArchivalMemoryInsert) Description() string {
	return "Add to archival memory. Make sure to phrase the memory contents such that it can be easily queried later."
}

func (ArchivalMemoryInsert) Schema() json.RawMessage {
	return json.RawMessage(`{
    "type": "object",
    "properties": {
      "content": {
        "type": "string",
        "description": "Content to write to the memory. All unicode (including emojis) are supported."
      },
      ` + heartbeatParam + `
    },
    "required": ["content"]
  }`)
}

func (ArchivalMemoryInsert) Execute(ctx context.Context, caps agent.Capabilities, args map[string]any) (string, error) {
	content, err := stringArg(args, "content")
	if err != nil {
		return "", err
	}
	if err := caps.ArchivalInsert(ctx, content); err != nil {
		return "", err
	}
	return "", nil
}

// ArchivalMemorySearch runs a semantic search over archival memory.
type ArchivalMemorySearch struct{}

func (ArchivalMemorySearch) Name() string { return "archival_memory_search" }

func (ArchivalMemorySearch) Description() string {
	return "Search archival memory using semantic (embedding-based) search."
}

func (ArchivalMemorySearch) Schema() json.RawMessage {
	return json.RawMessage(`{
    "type": "object",
    "properties": {
      "query": {
        "type": "string",
        "description": "String to search for."
      },
      "page": {
        "type": "integer",
        "description": "Allows you to page through results. Only use on a follow-up query. Defaults to 0 (first page)."
      },
      ` + heartbeatParam + `
    },
    "required": ["query"]
  }`)
}

func (ArchivalMemorySearch) Execute(ctx context.Context, caps agent.Capabilities, args map[string]any) (string, error) {
	query, err := stringArg(args, "query")
	if err != nil {
		return "", err
	}
	page := optionalIntArg(args, "page", 0)

	results, total, err := caps.ArchivalSearch(ctx, query, page, recall.DefaultPageSize)
	if err != nil {
		return "", err
	}
	if total == 0 {
		return "No results found.", nil
	}
	lines := make([]string, 0, len(results)+1)
	lines = append(lines, fmt.Sprintf("Showing %d of %d results (page %d):", len(results), total, page))
	for _, r := range results {
		lines = append(lines, fmt.Sprintf("timestamp: %s, memory: %s", r.Timestamp, r.Content))
	}
	return strings.Join(lines, "\n"), nil
}

func formatMessageResults(results []*models.Message, total, page int) string {
	if total == 0 {
		return "No results found."
	}
	lines := make([]string, 0, len(results)+1)
	lines = append(lines, fmt.Sprintf("Showing %d of %d results (page %d):", len(results), total, page))
	for _, msg := range results {
		lines = append(lines, fmt.Sprintf("timestamp: %s, %s - %s",
			msg.CreatedAt.UTC().Format(time.RFC3339), msg.Role, msg.Content))
	}
	return strings.Join(lines, "\n")
}

func stringArg(args map[string]any, key string) (string, error) {
	raw, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string", key)
	}
	return s, nil
}

func intArg(args map[string]any, key string) (int, error) {
	raw, ok := args[key]
	if !ok {
		return 0, fmt.Errorf("missing required argument %q", key)
	}
	switch v := raw.(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	case string:
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
			return 0, fmt.Errorf("argument %q must be an integer", key)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("argument %q must be an integer", key)
	}
}

func optionalIntArg(args map[string]any, key string, fallback int) int {
	if _, ok := args[key]; !ok {
		return fallback
	}
	n, err := intArg(args, key)
	if err != nil {
		return fallback
	}
	return n
}
