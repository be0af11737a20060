// Package metadata persists the identity data the core depends on: users,
// agent records (with their JSON state and config blobs), and the bearer
// tokens that map API callers to owner ids.
package metadata

import (
	"context"
	"sync"
	"time"

	"github.com/haasonsaas/mnemos/internal/engine"
	"github.com/haasonsaas/mnemos/pkg/models"
)

// Token maps a bearer credential to its owning user.
type Token struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Token     string    `json:"token"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the metadata contract: the engine's AgentStore plus the user and
// token tables the HTTP surface authenticates against.
type Store interface {
	engine.AgentStore

	// CreateUser persists a user.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUser loads a user by id, returning nil when absent.
	GetUser(ctx context.Context, id string) (*models.User, error)

	// ListAgents returns the owner's agent records.
	ListAgents(ctx context.Context, ownerID string) ([]*engine.AgentRecord, error)

	// CreateToken persists a bearer token.
	CreateToken(ctx context.Context, token *Token) error

	// GetUserByToken resolves a bearer credential to its user, returning
	// nil when the token is unknown.
	GetUserByToken(ctx context.Context, token string) (*models.User, error)
}

// MemoryStore keeps metadata in memory, for tests and local runs.
type MemoryStore struct {
	mu     sync.RWMutex
	users  map[string]*models.User
	agents map[string]*engine.AgentRecord
	tokens map[string]*Token
}

// NewMemoryStore returns an empty in-memory metadata store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:  make(map[string]*models.User),
		agents: make(map[string]*engine.AgentRecord),
		tokens: make(map[string]*Token),
	}
}

// CreateUser persists a user.
func (m *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *user
	m.users[user.ID] = &c
	return nil
}

// GetUser loads a user by id.
func (m *MemoryStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	c := *user
	return &c, nil
}

// GetAgent loads an agent record scoped to its owner.
func (m *MemoryStore) GetAgent(ctx context.Context, ownerID, agentID string) (*engine.AgentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.agents[agentID]
	if !ok || record.OwnerID != ownerID {
		return nil, nil
	}
	return cloneRecord(record), nil
}

// SaveAgent creates or replaces an agent record.
func (m *MemoryStore) SaveAgent(ctx context.Context, record *engine.AgentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agents[record.ID] = cloneRecord(record)
	return nil
}

// ListAgents returns the owner's agent records.
func (m *MemoryStore) ListAgents(ctx context.Context, ownerID string) ([]*engine.AgentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*engine.AgentRecord
	for _, record := range m.agents {
		if record.OwnerID == ownerID {
			out = append(out, cloneRecord(record))
		}
	}
	return out, nil
}

// CreateToken persists a bearer token.
func (m *MemoryStore) CreateToken(ctx context.Context, token *Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *token
	m.tokens[token.Token] = &c
	return nil
}

// GetUserByToken resolves a bearer credential to its user.
func (m *MemoryStore) GetUserByToken(ctx context.Context, token string) (*models.User, error) {
	m.mu.RLock()
	entry, ok := m.tokens[token]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return m.GetUser(ctx, entry.UserID)
}

func cloneRecord(record *engine.AgentRecord) *engine.AgentRecord {
	c := *record
	c.State.Functions = append(record.State.Functions[:0:0], record.State.Functions...)
	c.State.Messages = append(record.State.Messages[:0:0], record.State.Messages...)
	return &c
}
