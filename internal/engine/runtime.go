package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/mnemos/internal/agent"
	"github.com/haasonsaas/mnemos/internal/heartbeat"
	"github.com/haasonsaas/mnemos/internal/memory"
	"github.com/haasonsaas/mnemos/internal/prompt"
	"github.com/haasonsaas/mnemos/internal/recall"
	"github.com/haasonsaas/mnemos/internal/window"
	"github.com/haasonsaas/mnemos/pkg/models"
)

// Boot transcript constants: a fresh agent's log opens with a scripted
// send_message exchange so the model has a tool-call exemplar from turn one.
const (
	initialBootMessageThought = "Bootup sequence complete. Persona activated. Testing messaging functionality."
	initialBootMessageText    = "More human than human is our motto."

	// initialLogLength is the boot transcript size every fresh agent starts
	// with: system, scripted assistant send_message, its tool return, and
	// the login event. A lifetime total still at initialLogLength-1 means
	// no user turn has ever been committed.
	initialLogLength = 4
)

// Agent is a live agent: its durable record plus the mutable in-context
// state the step engine works on. All mutation happens under the per-agent
// lock; Agent itself is not safe for concurrent use.
type Agent struct {
	record *AgentRecord

	core     *memory.Core
	log      []*models.Message
	archival *memory.Archival
	window   *window.Window

	// messagesTotalInit is the lifetime count at load; used to detect the
	// agent's first user turn.
	messagesTotalInit int

	// alertedAboutPressure latches the one-shot memory warning until the
	// next compaction.
	alertedAboutPressure bool

	// runner is the agent's timed heartbeat runner, if scheduled.
	runner *heartbeat.Runner
}

// NewAgent builds a live agent from a record with a fresh boot transcript.
// Used when no in-context messages exist yet; the boot messages are written
// through to recall.
func NewAgent(ctx context.Context, record *AgentRecord, limits CoreLimits, archival *memory.Archival, store recall.Store) (*Agent, error) {
	ag := newRuntime(record, limits, archival)

	boot := ag.initialMessageSequence(time.Now().UTC())
	if err := store.Append(ctx, boot...); err != nil {
		return nil, fmt.Errorf("persist boot transcript: %w", err)
	}
	ag.log = boot
	// The system message doesn't count toward the conversational total.
	record.MessagesTotal = len(boot) - 1
	ag.messagesTotalInit = record.MessagesTotal
	ag.syncState()
	return ag, nil
}

// LoadAgent rebuilds a live agent from its record, pulling the in-context
// messages out of the recall store by id. Non-UTC timestamps read from
// storage are normalized; unpaired tool messages are dropped.
func LoadAgent(ctx context.Context, record *AgentRecord, limits CoreLimits, archival *memory.Archival, store recall.Store) (*Agent, error) {
	if len(record.State.Messages) == 0 {
		return NewAgent(ctx, record, limits, archival, store)
	}

	ag := newRuntime(record, limits, archival)
	log := make([]*models.Message, 0, len(record.State.Messages))
	for _, id := range record.State.Messages {
		msg, err := store.Get(ctx, record.ID, id)
		if err != nil {
			return nil, fmt.Errorf("load message %s: %w", id, err)
		}
		if msg == nil {
			continue
		}
		msg.CreatedAt = msg.CreatedAt.UTC()
		log = append(log, msg)
	}
	ag.log = agent.RepairTranscript(log)
	ag.messagesTotalInit = initialLogLength - 1
	ag.syncState()
	return ag, nil
}

func newRuntime(record *AgentRecord, limits CoreLimits, archival *memory.Archival) *Agent {
	core := memory.NewCore(record.State.Persona, record.State.Human)
	if limits.Persona > 0 {
		core.PersonaCharLimit = limits.Persona
	}
	if limits.Human > 0 {
		core.HumanCharLimit = limits.Human
	}

	contextWindow := record.LLM.ContextWindow
	var win *window.Window
	if contextWindow > 0 {
		win = window.NewWindow(contextWindow, "config")
	} else {
		win = window.NewWindowForModel(record.LLM.Model)
	}

	return &Agent{
		record:   record,
		core:     core,
		archival: archival,
		window:   win,
	}
}

// ID returns the agent id.
func (a *Agent) ID() string { return a.record.ID }

// OwnerID returns the owning user's id.
func (a *Agent) OwnerID() string { return a.record.OwnerID }

// Record returns the agent's durable record, state synced.
func (a *Agent) Record() *AgentRecord {
	a.syncState()
	return a.record
}

// Log returns the in-context message log. Position 0 is always the system
// message.
func (a *Agent) Log() []*models.Message { return a.log }

// MessagesTotal returns the lifetime message count.
func (a *Agent) MessagesTotal() int { return a.record.MessagesTotal }

// Core returns the agent's core memory.
func (a *Agent) Core() *memory.Core { return a.core }

// Archival returns the agent's archival memory, which may be nil when no
// vector backend is configured.
func (a *Agent) Archival() *memory.Archival { return a.archival }

// Window returns the agent's context-window tracker.
func (a *Agent) Window() *window.Window { return a.window }

// SetHeartbeatRunner attaches the agent's timed heartbeat runner.
func (a *Agent) SetHeartbeatRunner(r *heartbeat.Runner) { a.runner = r }

// isFirstTurn reports whether the agent has not completed a user turn yet.
func (a *Agent) isFirstTurn() bool {
	return a.record.MessagesTotal == a.messagesTotalInit
}

// refreshSystemMessage regenerates the position-0 system message from the
// static system text, core memory, and the storage counts. The message's
// identity is preserved; only its content changes.
func (a *Agent) refreshSystemMessage(ctx context.Context, store recall.Store) error {
	counts := prompt.MemoryCounts{}
	if store != nil {
		n, err := store.Size(ctx, a.record.ID)
		if err != nil {
			return fmt.Errorf("recall size: %w", err)
		}
		counts.Recall = n
	}
	if a.archival != nil {
		n, err := a.archival.Count(ctx)
		if err != nil {
			return fmt.Errorf("archival count: %w", err)
		}
		counts.Archival = int(n)
	}

	if len(a.log) == 0 || a.log[0].Role != models.RoleSystem {
		return fmt.Errorf("log[0] is not a system message")
	}
	a.log[0].Content = prompt.ConstructSystem(a.record.State.System, a.core, counts, time.Now().UTC())
	return nil
}

// appendToLog extends the in-context log and lifetime counter. Callers have
// already written the messages through to recall.
func (a *Agent) appendToLog(msgs []*models.Message) {
	a.log = append(a.log, msgs...)
	a.record.MessagesTotal += len(msgs)
	a.syncState()
}

// replaceLog swaps the in-context log after compaction. The summary message
// at position 1 is new and counts toward the lifetime total.
func (a *Agent) replaceLog(log []*models.Message) {
	a.log = log
	a.record.MessagesTotal++
	a.alertedAboutPressure = false
	a.syncState()
}

// syncState mirrors the runtime back into the record's state blob.
func (a *Agent) syncState() {
	ids := make([]string, len(a.log))
	for i, msg := range a.log {
		ids[i] = msg.ID
	}
	a.record.State.Persona = a.core.Persona
	a.record.State.Human = a.core.Human
	a.record.State.Messages = ids
}

// initialMessageSequence builds a fresh agent's log: system message, the
// scripted boot exchange, and a login event.
func (a *Agent) initialMessageSequence(now time.Time) []*models.Message {
	bootCallID := agent.MintToolCallID()
	sendArgs := fmt.Sprintf("{\n  \"message\": %q\n}", initialBootMessageText)

	return []*models.Message{
		a.newMessage(models.RoleSystem, a.record.State.System, now),
		func() *models.Message {
			msg := a.newMessage(models.RoleAssistant, initialBootMessageThought, now)
			msg.ToolCalls = []models.ToolCall{{
				ID:    bootCallID,
				Name:  "send_message",
				Input: []byte(sendArgs),
			}}
			return msg
		}(),
		func() *models.Message {
			msg := a.newMessage(models.RoleTool, heartbeat.PackageFunctionResponse(true, "", now), now)
			msg.Name = "send_message"
			msg.ToolCallID = bootCallID
			return msg
		}(),
		a.newMessage(models.RoleUser, heartbeat.LoginEvent("", now), now),
	}
}

// newMessage stamps a message with the agent's identity and model.
func (a *Agent) newMessage(role models.Role, content string, at time.Time) *models.Message {
	return &models.Message{
		ID:        uuid.NewString(),
		AgentID:   a.record.ID,
		OwnerID:   a.record.OwnerID,
		Role:      role,
		Content:   content,
		Model:     a.record.LLM.Model,
		CreatedAt: at.UTC(),
	}
}
