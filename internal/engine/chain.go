package engine

import (
	"context"
	"time"

	"github.com/haasonsaas/mnemos/internal/heartbeat"
)

// ChainResult summarizes a full chaining run.
type ChainResult struct {
	// Steps is how many steps ran.
	Steps int

	// CompletionTokens accumulates usage across the chain.
	CompletionTokens int
}

// RunChain feeds input through Step and keeps re-entering while the step
// emits chaining signals, in priority order: memory warning, tool failure,
// explicit heartbeat request. The loop is bounded by MaxChainingSteps. The
// caller holds the agent's lock for the whole chain.
func (e *Engine) RunChain(ctx context.Context, ag *Agent, in Input, iface Interface) (*ChainResult, error) {
	result := &ChainResult{}
	next := in

	for {
		stepRes, err := e.Step(ctx, ag, next, iface)
		if err != nil {
			return result, err
		}
		result.Steps++
		result.CompletionTokens += stepRes.CompletionTokens

		if result.Steps >= e.config.MaxChainingSteps {
			if e.logger != nil {
				e.logger.Warn(ctx, "hit max chaining steps", "agent_id", ag.ID(), "steps", result.Steps)
			}
			return result, nil
		}

		now := time.Now()
		switch {
		case stepRes.MemoryWarning:
			next = Input{Raw: heartbeat.TokenLimitWarning(now)}
		case stepRes.ToolFailed:
			next = Input{Raw: heartbeat.Heartbeat(heartbeat.FunctionFailedReason, now)}
		case stepRes.HeartbeatRequest:
			next = Input{Raw: heartbeat.Heartbeat(heartbeat.RequestHeartbeatReason, now)}
		default:
			return result, nil
		}
	}
}
