package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/haasonsaas/mnemos/internal/agent"
	"github.com/haasonsaas/mnemos/internal/compaction"
	"github.com/haasonsaas/mnemos/internal/heartbeat"
	"github.com/haasonsaas/mnemos/internal/memory"
	"github.com/haasonsaas/mnemos/internal/observability"
	"github.com/haasonsaas/mnemos/internal/recall"
)

// FirstMessageAttempts bounds the first-turn retry loop.
const FirstMessageAttempts = 10

// DefaultMaxChainingSteps bounds host-driven chaining per inbound request.
const DefaultMaxChainingSteps = 20

// Config tunes the engine.
type Config struct {
	// MaxChainingSteps caps RunChain; zero means DefaultMaxChainingSteps.
	MaxChainingSteps int

	// FirstMessageAttempts caps the first-turn retry loop; zero means
	// FirstMessageAttempts.
	FirstMessageAttempts int

	// CoreLimits overrides the core memory character caps.
	CoreLimits CoreLimits
}

// ArchivalFactory builds per-agent archival memory. A nil factory (or nil
// return) disables archival.
type ArchivalFactory func(record *AgentRecord) *memory.Archival

// Engine is the step state machine. It serializes per-agent work through a
// non-blocking lock table; distinct agents step in parallel.
type Engine struct {
	llm        agent.ChatService
	dispatcher *agent.Dispatcher
	registry   *agent.ToolRegistry
	recall     recall.Store
	agents     AgentStore
	archivalFn ArchivalFactory
	logger     *observability.Logger
	metrics    *observability.Metrics
	locks      *LockTable
	config     Config
	heartbeats *heartbeat.Scheduler
	hooks      *memory.Hooks

	mu   sync.RWMutex
	live map[string]*Agent
}

// New wires an Engine from its collaborators.
func New(llm agent.ChatService, registry *agent.ToolRegistry, recallStore recall.Store, agents AgentStore, archivalFn ArchivalFactory, logger *observability.Logger, metrics *observability.Metrics, config Config) *Engine {
	if config.MaxChainingSteps <= 0 {
		config.MaxChainingSteps = DefaultMaxChainingSteps
	}
	if config.FirstMessageAttempts <= 0 {
		config.FirstMessageAttempts = FirstMessageAttempts
	}
	if config.CoreLimits == (CoreLimits{}) {
		config.CoreLimits = DefaultCoreLimits()
	}
	return &Engine{
		llm:        llm,
		dispatcher: agent.NewDispatcher(registry, logger),
		registry:   registry,
		recall:     recallStore,
		agents:     agents,
		archivalFn: archivalFn,
		logger:     logger,
		metrics:    metrics,
		locks:      NewLockTable(),
		config:     config,
	}
}

// SetMemoryHooks enables auto-capture and auto-recall against archival
// memory: capture runs after a step commits, recall is injected into the
// prompt preamble before assembly.
func (e *Engine) SetMemoryHooks(hooks *memory.Hooks) {
	e.hooks = hooks
}

// SetHeartbeatScheduler enables timer-driven heartbeats: every loaded agent
// gets a runner whose ticks run a full locked chain with a heartbeat
// payload. The agent's pause_heartbeats tool acts on this runner.
func (e *Engine) SetHeartbeatScheduler(s *heartbeat.Scheduler) {
	e.heartbeats = s
}

func (e *Engine) attachHeartbeatRunner(ctx context.Context, ag *Agent) {
	if e.heartbeats == nil {
		return
	}
	runner := e.heartbeats.GetOrCreate(ctx, ag.ID(), func(ctx context.Context, agentID, payload string) error {
		return e.WithAgentLock(ctx, ag.OwnerID(), agentID, func(locked *Agent) error {
			_, err := e.RunChain(ctx, locked, Input{Raw: payload}, nil)
			return err
		})
	})
	ag.SetHeartbeatRunner(runner)
}

// SchemasFor returns the registered tool schemas for the named functions,
// in registration order. An empty name list selects the full registry.
func (e *Engine) SchemasFor(names []string) []agent.ToolSchema {
	all := e.registry.Schemas()
	if len(names) == 0 {
		return all
	}
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}
	selected := make([]agent.ToolSchema, 0, len(names))
	for _, schema := range all {
		if wanted[schema.Name] {
			selected = append(selected, schema)
		}
	}
	return selected
}

// Recall exposes the engine's recall store to the host layer.
func (e *Engine) Recall() recall.Store { return e.recall }

// Agents exposes the engine's agent store to the host layer.
func (e *Engine) Agents() AgentStore { return e.agents }

// WithAgentLock runs fn holding the agent's exclusive lock, loading the
// agent into the live registry first if needed. A busy agent returns
// ErrAgentBusy without queueing. The lock is released on every exit path.
func (e *Engine) WithAgentLock(ctx context.Context, ownerID, agentID string, fn func(*Agent) error) error {
	release, ok := e.locks.TryLock(agentID)
	if !ok {
		return ErrAgentBusy
	}
	defer release()

	ag, err := e.getOrLoadAgent(ctx, ownerID, agentID)
	if err != nil {
		return err
	}
	return fn(ag)
}

// getOrLoadAgent returns the live agent, loading it from the stores on
// first use. Callers hold the agent's lock, so a given agent is only ever
// loaded once; the map itself is guarded for cross-agent access.
func (e *Engine) getOrLoadAgent(ctx context.Context, ownerID, agentID string) (*Agent, error) {
	e.mu.RLock()
	ag, ok := e.live[agentID]
	e.mu.RUnlock()
	if ok {
		if ag.OwnerID() != ownerID {
			return nil, ErrAgentNotFound
		}
		return ag, nil
	}

	record, err := e.agents.GetAgent(ctx, ownerID, agentID)
	if err != nil {
		return nil, fmt.Errorf("load agent record: %w", err)
	}
	if record == nil {
		return nil, ErrAgentNotFound
	}
	// Every persisted function schema must link back to registered code.
	if err := e.registry.Link(record.State.Functions); err != nil {
		return nil, err
	}

	var archival *memory.Archival
	if e.archivalFn != nil {
		archival = e.archivalFn(record)
	}
	ag, err = LoadAgent(ctx, record, e.config.CoreLimits, archival, e.recall)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.live == nil {
		e.live = make(map[string]*Agent)
	}
	e.live[agentID] = ag
	e.mu.Unlock()
	e.attachHeartbeatRunner(ctx, ag)
	return ag, nil
}

// CreateAgent persists a fresh record, boots its live runtime, and returns
// it. The caller supplies a record with identity and configs filled in;
// state is initialized here.
func (e *Engine) CreateAgent(ctx context.Context, record *AgentRecord) (*Agent, error) {
	var archival *memory.Archival
	if e.archivalFn != nil {
		archival = e.archivalFn(record)
	}
	ag, err := NewAgent(ctx, record, e.config.CoreLimits, archival, e.recall)
	if err != nil {
		return nil, err
	}
	if err := e.agents.SaveAgent(ctx, ag.Record()); err != nil {
		return nil, fmt.Errorf("persist agent: %w", err)
	}

	e.mu.Lock()
	if e.live == nil {
		e.live = make(map[string]*Agent)
	}
	e.live[record.ID] = ag
	e.mu.Unlock()
	e.attachHeartbeatRunner(ctx, ag)
	return ag, nil
}

// CompactAgent lets the host compact proactively after a memory warning,
// under the agent's lock.
func (e *Engine) CompactAgent(ctx context.Context, ownerID, agentID string) error {
	return e.WithAgentLock(ctx, ownerID, agentID, func(ag *Agent) error {
		return e.compact(ctx, ag)
	})
}

// compact runs summarize-and-trim on the agent's log, persists the summary
// message, and clears the pressure latch.
func (e *Engine) compact(ctx context.Context, ag *Agent) error {
	counter := compaction.CounterForModel(ag.record.LLM.Model)
	summarizer := compaction.NewSummarizer(e.llm, counter)
	compactor := compaction.NewCompactor(summarizer, counter)

	before := len(ag.Log())
	result, err := compactor.Compact(ctx, ag.ID(), ag.OwnerID(), ag.record.LLM.Model, ag.Window().Total(), ag.Log(), ag.MessagesTotal())
	if err != nil {
		return err
	}

	// The synthetic summary message joins recall like any other message.
	if err := e.recall.Append(ctx, result.Log[1]); err != nil {
		return fmt.Errorf("persist summary message: %w", err)
	}
	ag.replaceLog(result.Log)
	if err := e.agents.SaveAgent(ctx, ag.Record()); err != nil {
		return fmt.Errorf("checkpoint after compaction: %w", err)
	}

	if e.logger != nil {
		e.logger.Info(ctx, "compacted in-context log",
			"agent_id", ag.ID(),
			"before", before,
			"after", len(result.Log),
			"summarized", result.SummaryMessageCount)
	}
	if e.metrics != nil {
		e.metrics.RecordCompaction(result.SummaryMessageCount)
	}
	return nil
}
