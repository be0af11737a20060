package recall

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/haasonsaas/mnemos/pkg/models"
)

// MemoryStore is an in-memory recall store for tests and local runs.
// Messages are cloned on the way in and out so callers can't mutate stored
// state through shared pointers.
type MemoryStore struct {
	mu       sync.RWMutex
	byAgent  map[string][]*models.Message
	byID     map[string]*models.Message
}

// NewMemoryStore creates an empty in-memory recall store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byAgent: make(map[string][]*models.Message),
		byID:    make(map[string]*models.Message),
	}
}

// Append records messages in order.
func (m *MemoryStore) Append(ctx context.Context, msgs ...*models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range msgs {
		if msg == nil {
			continue
		}
		c := cloneMessage(msg)
		m.byAgent[c.AgentID] = append(m.byAgent[c.AgentID], c)
		m.byID[c.ID] = c
	}
	return nil
}

// Get returns one message by id, or nil when absent.
func (m *MemoryStore) Get(ctx context.Context, agentID, messageID string) (*models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msg, ok := m.byID[messageID]
	if !ok || msg.AgentID != agentID {
		return nil, nil
	}
	return cloneMessage(msg), nil
}

// GetAll returns the agent's messages in append order, paged.
func (m *MemoryStore) GetAll(ctx context.Context, agentID string, offset, limit int) ([]*models.Message, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	results, total := page(m.byAgent[agentID], offset, limit)
	return cloneMessages(results), total, nil
}

// SearchText returns messages containing query, case-insensitively, paged.
func (m *MemoryStore) SearchText(ctx context.Context, agentID, query string, offset, limit int) ([]*models.Message, int, error) {
	needle := strings.ToLower(query)
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matches []*models.Message
	for _, msg := range m.byAgent[agentID] {
		if strings.Contains(strings.ToLower(msg.Content), needle) {
			matches = append(matches, msg)
		}
	}
	results, total := page(matches, offset, limit)
	return cloneMessages(results), total, nil
}

// SearchDate returns messages created within [start, end], paged.
func (m *MemoryStore) SearchDate(ctx context.Context, agentID string, start, end time.Time, offset, limit int) ([]*models.Message, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matches []*models.Message
	for _, msg := range m.byAgent[agentID] {
		if !msg.CreatedAt.Before(start) && !msg.CreatedAt.After(end) {
			matches = append(matches, msg)
		}
	}
	results, total := page(matches, offset, limit)
	return cloneMessages(results), total, nil
}

// Size reports the number of stored messages for the agent.
func (m *MemoryStore) Size(ctx context.Context, agentID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byAgent[agentID]), nil
}

func cloneMessages(msgs []*models.Message) []*models.Message {
	out := make([]*models.Message, len(msgs))
	for i, msg := range msgs {
		out[i] = cloneMessage(msg)
	}
	return out
}

func cloneMessage(msg *models.Message) *models.Message {
	c := *msg
	if len(msg.ToolCalls) > 0 {
		c.ToolCalls = make([]models.ToolCall, len(msg.ToolCalls))
		copy(c.ToolCalls, msg.ToolCalls)
		for i := range c.ToolCalls {
			if msg.ToolCalls[i].Input != nil {
				c.ToolCalls[i].Input = append([]byte(nil), msg.ToolCalls[i].Input...)
			}
		}
	}
	if len(msg.ToolResults) > 0 {
		c.ToolResults = make([]models.ToolResult, len(msg.ToolResults))
		copy(c.ToolResults, msg.ToolResults)
	}
	if msg.Metadata != nil {
		c.Metadata = make(map[string]any, len(msg.Metadata))
		for k, v := range msg.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
