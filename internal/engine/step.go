package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/haasonsaas/mnemos/internal/agent"
	"github.com/haasonsaas/mnemos/internal/retry"
	"github.com/haasonsaas/mnemos/pkg/models"
)

// StepResult carries one step's output and chaining signals.
type StepResult struct {
	// Messages are the messages this step committed, in order.
	Messages []*models.Message

	// HeartbeatRequest is set when the executed tool asked for an immediate
	// follow-up step.
	HeartbeatRequest bool

	// ToolFailed is set when the tool pipeline short-circuited; chaining
	// always follows up with a failure heartbeat.
	ToolFailed bool

	// MemoryWarning fires once per pressure episode when token usage
	// crosses the warning fraction of the context window.
	MemoryWarning bool

	// CompletionTokens is the usage reported for this step's completion.
	CompletionTokens int
}

// Step runs one full step for the agent. On context overflow it compacts
// and retries once; a second overflow is fatal. The caller holds the
// agent's lock.
func (e *Engine) Step(ctx context.Context, ag *Agent, in Input, iface Interface) (*StepResult, error) {
	if iface == nil {
		iface = NopInterface{}
	}

	res, err := e.stepOnce(ctx, ag, in, iface)
	if err == nil || !IsContextOverflow(err) {
		return res, err
	}

	if e.logger != nil {
		e.logger.Warn(ctx, "context overflow, compacting and retrying", "agent_id", ag.ID(), "error", err)
	}
	if cerr := e.compact(ctx, ag); cerr != nil {
		return nil, fmt.Errorf("compaction after overflow: %w", cerr)
	}

	res, err = e.stepOnce(ctx, ag, in, iface)
	if err != nil && IsContextOverflow(err) {
		return nil, fmt.Errorf("context overflow persisted after compaction: %w", err)
	}
	return res, err
}

// stepOnce is the straight-line step body: ingest, complete, dispatch,
// pressure check, commit.
func (e *Engine) stepOnce(ctx context.Context, ag *Agent, in Input, iface Interface) (*StepResult, error) {
	now := time.Now()

	// Ingest. The message joins the prompt tentatively; it is only
	// committed with the step's output at the end.
	userMsg := ag.normalizeIncoming(in, now)
	if userMsg != nil {
		iface.UserMessage(userMsg.Content, userMsg)
	}

	if err := ag.refreshSystemMessage(ctx, e.recall); err != nil {
		return nil, err
	}
	seq := ag.Log()
	if userMsg != nil {
		seq = append(append(make([]*models.Message, 0, len(seq)+1), seq...), userMsg)
	}
	if e.hooks != nil && userMsg != nil {
		if injected := e.hooks.RecallContext(ctx, ag.Archival(), userMsg.Content); injected != "" {
			system := *seq[0]
			system.Content += "\n\n" + injected
			seq = append([]*models.Message{&system}, seq[1:]...)
		}
	}
	if len(seq) > 1 && seq[len(seq)-1].Role != models.RoleUser && e.logger != nil {
		e.logger.Warn(ctx, "running completion without a trailing user message", "agent_id", ag.ID())
	}

	// Completion, with the first-turn guard.
	var resp *agent.ChatResponse
	var err error
	if in.FirstMessage || ag.isFirstTurn() {
		resp, err = e.completeFirstMessage(ctx, ag, seq)
	} else {
		resp, err = e.complete(ctx, ag, seq, false)
	}
	if err != nil {
		return nil, err
	}

	// Reply dispatch.
	replyMsgs, heartbeatRequest, toolFailed := e.handleReply(ctx, ag, iface, &resp.Choices[0].Message)

	// Pressure check: one-shot warning per episode, reset by compaction.
	memoryWarning := false
	if ag.window.ExceedsWarningFrac(resp.Usage.TotalTokens) {
		if e.logger != nil {
			e.logger.Warn(ctx, "token usage crossed warning fraction",
				"agent_id", ag.ID(), "total_tokens", resp.Usage.TotalTokens, "window", ag.window.Total())
		}
		if !ag.alertedAboutPressure {
			memoryWarning = true
			ag.alertedAboutPressure = true
		}
	}
	ag.window.SetUsed(resp.Usage.TotalTokens)

	// Commit: this step's messages all land or none do.
	all := replyMsgs
	if userMsg != nil {
		all = append([]*models.Message{userMsg}, replyMsgs...)
	}
	if err := e.recall.Append(ctx, all...); err != nil {
		return nil, fmt.Errorf("commit messages: %w", err)
	}
	ag.appendToLog(all)
	if err := e.agents.SaveAgent(ctx, ag.Record()); err != nil {
		return nil, fmt.Errorf("checkpoint agent: %w", err)
	}

	if e.metrics != nil {
		e.metrics.RecordStep(ag.ID(), toolFailed, resp.Usage.CompletionTokens)
	}
	if e.hooks != nil {
		texts := make([]string, 0, len(all))
		for _, msg := range all {
			if msg.Role == models.RoleUser || msg.Role == models.RoleAssistant {
				texts = append(texts, msg.Content)
			}
		}
		e.hooks.CaptureCompleted(ctx, ag.Archival(), texts, !toolFailed)
	}

	return &StepResult{
		Messages:         all,
		HeartbeatRequest: heartbeatRequest,
		ToolFailed:       toolFailed,
		MemoryWarning:    memoryWarning,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// complete performs one LLM call and classifies the finish reason.
func (e *Engine) complete(ctx context.Context, ag *Agent, seq []*models.Message, firstMessage bool) (*agent.ChatResponse, error) {
	req := &agent.ChatRequest{
		Model:        ag.record.LLM.Model,
		Messages:     seq,
		Functions:    ag.record.State.Functions,
		FirstMessage: firstMessage,
		MaxTokens:    ag.record.LLM.MaxTokens,
	}
	resp, err := e.llm.ChatCompletion(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, &ProtocolError{Detail: "completion returned no choices"}
	}

	switch resp.Choices[0].FinishReason {
	case agent.FinishStop, agent.FinishFunctionCall, agent.FinishToolCalls:
		return resp, nil
	case agent.FinishLength:
		return nil, &ContextOverflowError{Detail: "finish_reason was length"}
	default:
		return nil, &ProtocolError{
			FinishReason: resp.Choices[0].FinishReason,
			Detail:       "unexpected finish reason",
		}
	}
}

// completeFirstMessage retries the first-turn completion on any error up to
// the configured bound. The prompt formatter uses a different preamble on
// turn one, which some endpoints reject transiently.
func (e *Engine) completeFirstMessage(ctx context.Context, ag *Agent, seq []*models.Message) (*agent.ChatResponse, error) {
	cfg := retry.Config{
		MaxAttempts:  e.config.FirstMessageAttempts,
		InitialDelay: time.Second,
		Factor:       2,
		Jitter:       true,
	}
	resp, result := retry.DoWithValue(ctx, cfg, func() (*agent.ChatResponse, error) {
		return e.complete(ctx, ag, seq, true)
	})
	if result.Err != nil {
		return nil, fmt.Errorf("first message failed after %d attempts: %w", result.Attempts, result.Err)
	}
	return resp, nil
}
