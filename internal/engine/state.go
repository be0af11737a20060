// Package engine implements the agent step state machine: prompt assembly
// from layered memory, LLM dispatch, tool execution, context-pressure
// compaction, and the chaining loop that strings steps together via
// heartbeat and failure signals.
package engine

import (
	"context"
	"time"

	"github.com/haasonsaas/mnemos/internal/agent"
	"github.com/haasonsaas/mnemos/internal/memory"
)

// LLMConfig binds an agent to a completion endpoint.
type LLMConfig struct {
	Provider      string `json:"provider"`
	Model         string `json:"model"`
	Endpoint      string `json:"endpoint,omitempty"`
	ContextWindow int    `json:"context_window"`
	MaxTokens     int    `json:"max_tokens,omitempty"`
}

// EmbeddingConfig binds an agent to an embedding provider.
type EmbeddingConfig struct {
	Provider           string `json:"provider"`
	Model              string `json:"model"`
	Endpoint           string `json:"endpoint,omitempty"`
	EmbeddingDim       int    `json:"embedding_dim"`
	EmbeddingChunkSize int    `json:"embedding_chunk_size"`
}

// StateBlob is the mutable half of an agent, checkpointed after every step.
type StateBlob struct {
	// Persona and Human are the two bounded core memory blocks.
	Persona string `json:"persona"`
	Human   string `json:"human"`

	// System is the static policy preamble the position-0 message is
	// regenerated from.
	System string `json:"system"`

	// Functions is the agent's append-only tool schema registry.
	Functions []agent.ToolSchema `json:"functions"`

	// Messages holds the ids of the in-context log, referencing the
	// durable recall store.
	Messages []string `json:"messages"`
}

// AgentRecord is an agent's durable identity plus its state blob.
// Everything except State is immutable after creation.
type AgentRecord struct {
	ID         string          `json:"id"`
	OwnerID    string          `json:"owner_id"`
	Name       string          `json:"name"`
	Preset     string          `json:"preset"`
	LLM        LLMConfig       `json:"llm_config"`
	Embedding  EmbeddingConfig `json:"embedding_config"`
	CreatedAt  time.Time       `json:"created_at"`
	State      StateBlob       `json:"state"`

	// MessagesTotal counts every message the agent has ever produced,
	// including ones compacted out of the live window.
	MessagesTotal int `json:"messages_total"`
}

// AgentStore persists agent records; the metadata backend implements it.
type AgentStore interface {
	// GetAgent loads a record by id, returning nil when absent.
	GetAgent(ctx context.Context, ownerID, agentID string) (*AgentRecord, error)

	// SaveAgent creates or replaces a record.
	SaveAgent(ctx context.Context, record *AgentRecord) error
}

// CoreLimits carries the configured core memory character caps.
type CoreLimits struct {
	Persona int
	Human   int
}

// DefaultCoreLimits mirrors the memory package defaults.
func DefaultCoreLimits() CoreLimits {
	return CoreLimits{
		Persona: memory.DefaultPersonaCharLimit,
		Human:   memory.DefaultHumanCharLimit,
	}
}
