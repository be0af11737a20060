package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/haasonsaas/mnemos/internal/agent"
	"github.com/haasonsaas/mnemos/pkg/models"
)

// handleReply turns a completion message into the step's new log entries.
// It returns the messages to commit, the tool's heartbeat request, and
// whether the tool pipeline failed.
func (e *Engine) handleReply(ctx context.Context, ag *Agent, iface Interface, reply *agent.ChatMessage) ([]*models.Message, bool, bool) {
	now := time.Now()

	isToolRequest := reply.FunctionCall != nil || len(reply.ToolCalls) > 0
	if !isToolRequest {
		// Plain assistant turn: the content is internal monologue.
		msg := ag.newMessage(models.RoleAssistant, reply.Content, now)
		iface.InternalMonologue(reply.Content, msg)
		return []*models.Message{msg}, false, false
	}

	legacy := reply.FunctionCall != nil && len(reply.ToolCalls) == 0
	calls := reply.ToolCalls
	if legacy {
		calls = []models.ToolCall{{
			Name:  reply.FunctionCall.Name,
			Input: json.RawMessage(reply.FunctionCall.Arguments),
		}}
	}
	if len(calls) > 1 && e.logger != nil {
		e.logger.Warn(ctx, "more than one tool call in reply, honoring index 0 only",
			"agent_id", ag.ID(), "dropped", len(calls)-1)
	}
	call := calls[0]
	if call.ID == "" || legacy {
		call.ID = agent.MintToolCallID()
	}

	assistantMsg := ag.newMessage(models.RoleAssistant, reply.Content, now)
	assistantMsg.ToolCalls = []models.ToolCall{call}
	iface.InternalMonologue(reply.Content, assistantMsg)

	caps := newCapabilities(ctx, ag, e, iface)
	result := e.dispatcher.Dispatch(ctx, caps, call, func(args map[string]any) {
		iface.FunctionCall(fmt.Sprintf("Running %s(%s)", call.Name, formatArgs(args)), assistantMsg)
	})

	toolMsg := ag.newMessage(models.RoleTool, result.Packaged, now)
	toolMsg.Name = result.ToolName
	toolMsg.ToolCallID = result.ToolCallID

	if result.Failed {
		iface.FunctionReturn(false, result.Response, toolMsg)
	} else {
		iface.FunctionCall(fmt.Sprintf("Ran %s(%s)", call.Name, formatArgs(result.Args)), toolMsg)
		iface.FunctionReturn(true, result.Response, toolMsg)
	}

	return []*models.Message{assistantMsg, toolMsg}, result.HeartbeatRequest, result.Failed
}

// formatArgs renders an argument map compactly for user-facing log lines.
func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		return ""
	}
	return string(encoded)
}
