package engine

import (
	"context"
	"errors"
	"time"

	"github.com/haasonsaas/mnemos/internal/agent"
	"github.com/haasonsaas/mnemos/pkg/models"
)

// capabilities is the per-step handle tools receive. It scopes every
// operation to the stepping agent and routes user-visible output through
// the step's interface, removing any need for a back-reference to the
// agent itself.
type capabilities struct {
	ctx   context.Context
	ag    *Agent
	e     *Engine
	iface Interface
}

func newCapabilities(ctx context.Context, ag *Agent, e *Engine, iface Interface) *capabilities {
	return &capabilities{ctx: ctx, ag: ag, e: e, iface: iface}
}

func (c *capabilities) CoreGet(field string) (string, error) {
	switch field {
	case "persona":
		return c.ag.core.Persona, nil
	case "human":
		return c.ag.core.Human, nil
	default:
		return "", errors.New("no memory section named " + field)
	}
}

func (c *capabilities) CoreEdit(field, content string) error {
	switch field {
	case "persona":
		return c.ag.core.EditPersona(content)
	case "human":
		return c.ag.core.EditHuman(content)
	default:
		return errors.New("no memory section named " + field)
	}
}

func (c *capabilities) CoreAppend(field, content, sep string) error {
	return c.ag.core.EditAppend(field, content, sep)
}

func (c *capabilities) CoreReplace(field, oldContent, newContent string) error {
	return c.ag.core.EditReplace(field, oldContent, newContent)
}

func (c *capabilities) RecallSearch(ctx context.Context, query string, page, pageSize int) ([]*models.Message, int, error) {
	return c.e.recall.SearchText(ctx, c.ag.ID(), query, page*pageSize, pageSize)
}

func (c *capabilities) RecallSearchDate(ctx context.Context, start, end time.Time, page, pageSize int) ([]*models.Message, int, error) {
	return c.e.recall.SearchDate(ctx, c.ag.ID(), start, end, page*pageSize, pageSize)
}

func (c *capabilities) ArchivalInsert(ctx context.Context, content string) error {
	if c.ag.archival == nil {
		return errors.New("archival memory is not configured for this agent")
	}
	return c.ag.archival.Insert(ctx, content)
}

func (c *capabilities) ArchivalSearch(ctx context.Context, query string, page, pageSize int) ([]agent.ArchivalResult, int, error) {
	if c.ag.archival == nil {
		return nil, 0, errors.New("archival memory is not configured for this agent")
	}
	passages, total, err := c.ag.archival.Search(ctx, query, page, pageSize)
	if err != nil {
		return nil, 0, err
	}
	results := make([]agent.ArchivalResult, len(passages))
	for i, p := range passages {
		results[i] = agent.ArchivalResult{Timestamp: p.Timestamp, Content: p.Content}
	}
	return results, total, nil
}

func (c *capabilities) SendAssistantMessage(message string) {
	c.iface.AssistantMessage(message, nil)
}

func (c *capabilities) PauseHeartbeats(minutes int) time.Duration {
	if c.ag.runner == nil {
		return 0
	}
	return c.ag.runner.Pause(minutes)
}
