// Package memstore implements the archival passage store in process
// memory, for tests and single-process local runs.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/haasonsaas/mnemos/internal/memory/backend"
)

// Store keeps passages per agent in memory.
type Store struct {
	mu      sync.RWMutex
	byAgent map[string][]*backend.Passage
	ids     map[string]bool
}

// New returns an empty in-memory passage store.
func New() *Store {
	return &Store{
		byAgent: make(map[string][]*backend.Passage),
		ids:     make(map[string]bool),
	}
}

// Insert stores passages.
func (s *Store) Insert(ctx context.Context, passages []*backend.Passage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range passages {
		if s.ids[p.ID] {
			return fmt.Errorf("memstore: duplicate passage id %s", p.ID)
		}
	}
	for _, p := range passages {
		c := *p
		c.Embedding = append([]float32(nil), p.Embedding...)
		s.byAgent[p.AgentID] = append(s.byAgent[p.AgentID], &c)
		s.ids[p.ID] = true
	}
	return nil
}

// Search ranks one agent's passages by cosine similarity.
func (s *Store) Search(ctx context.Context, agentID string, embedding []float32, limit int) ([]*backend.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	passages := s.byAgent[agentID]
	matches := make([]*backend.Match, 0, len(passages))
	for _, p := range passages {
		matches = append(matches, &backend.Match{
			Passage: p,
			Score:   backend.CosineSimilarity(embedding, p.Embedding),
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Count reports the agent's passage count.
func (s *Store) Count(ctx context.Context, agentID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.byAgent[agentID])), nil
}

// DeleteAgent removes every passage of one agent.
func (s *Store) DeleteAgent(ctx context.Context, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.byAgent[agentID] {
		delete(s.ids, p.ID)
	}
	delete(s.byAgent, agentID)
	return nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }
