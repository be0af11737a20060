package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/mnemos/internal/memory/backend"
	"github.com/haasonsaas/mnemos/internal/memory/embeddings"
)

// DefaultArchivalTopK bounds how many candidates a similarity search pulls
// from the backend before paging is applied.
const DefaultArchivalTopK = 100

// queryCacheCapacity bounds the per-agent query embedding cache.
const queryCacheCapacity = 100

// Passage is one archival memory hit surfaced to a tool: the stored text
// and the timestamp the result was produced at.
type Passage struct {
	Timestamp string `json:"timestamp"`
	Content   string `json:"content"`
}

// Archival is the vector-indexed free-form memory an agent writes through
// tool calls. Inserted text is chunked into passages, embedded, and stored;
// search is by embedding similarity with zero-based page/size paging.
type Archival struct {
	store     backend.Store
	embedder  embeddings.Provider
	agentID   string
	chunkSize int
	topK      int

	mu         sync.Mutex
	queryCache *vectorCache
	hits       map[string][]*backend.Match
}

// NewArchival scopes archival memory to one agent. chunkTokens is the
// passage budget from the embedding config.
func NewArchival(store backend.Store, embedder embeddings.Provider, agentID string, chunkTokens int) *Archival {
	if chunkTokens <= 0 {
		chunkTokens = 300
	}
	return &Archival{
		store:      store,
		embedder:   embedder,
		agentID:    agentID,
		chunkSize:  chunkTokens,
		topK:       DefaultArchivalTopK,
		queryCache: newVectorCache(queryCacheCapacity),
		hits:       make(map[string][]*backend.Match),
	}
}

// Insert chunks content into passages, embeds each, and stores them.
func (a *Archival) Insert(ctx context.Context, content string) error {
	if a == nil || a.store == nil || a.embedder == nil {
		return errors.New("archival memory is not configured")
	}
	texts := SplitIntoPassages(content, a.chunkSize)
	if len(texts) == 0 {
		return errors.New("content must not be empty")
	}

	now := time.Now().UTC()
	passages := make([]*backend.Passage, 0, len(texts))
	for start := 0; start < len(texts); start += a.batchSize() {
		end := start + a.batchSize()
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := a.embedder.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return fmt.Errorf("archival insert: embed: %w", err)
		}
		for i, vec := range vecs {
			passages = append(passages, &backend.Passage{
				ID:        uuid.NewString(),
				AgentID:   a.agentID,
				Text:      texts[start+i],
				Embedding: vec,
				CreatedAt: now,
			})
		}
	}
	if err := a.store.Insert(ctx, passages); err != nil {
		return fmt.Errorf("archival insert: %w", err)
	}

	// New passages invalidate cached similarity results (the query
	// embeddings themselves stay valid).
	a.mu.Lock()
	a.hits = make(map[string][]*backend.Match)
	a.mu.Unlock()
	return nil
}

// Search runs a similarity search for query and returns the requested page
// plus the number of results on it. page is zero-based.
func (a *Archival) Search(ctx context.Context, query string, page, pageSize int) ([]Passage, int, error) {
	matches, err := a.search(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	if pageSize <= 0 {
		pageSize = a.topK
	}

	start := page * pageSize
	if start >= len(matches) {
		return nil, 0, nil
	}
	end := start + pageSize
	if end > len(matches) {
		end = len(matches)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	passages := make([]Passage, 0, end-start)
	for _, m := range matches[start:end] {
		passages = append(passages, Passage{
			Timestamp: now,
			Content:   m.Passage.Text,
		})
	}
	return passages, len(passages), nil
}

// HasSimilar reports whether any stored passage resembles text at or above
// threshold cosine similarity. Used to skip near-duplicate captures.
func (a *Archival) HasSimilar(ctx context.Context, text string, threshold float32) (bool, error) {
	matches, err := a.search(ctx, text)
	if err != nil {
		return false, err
	}
	return len(matches) > 0 && matches[0].Score >= threshold, nil
}

// Count reports the number of stored passages for the prompt preamble.
func (a *Archival) Count(ctx context.Context) (int64, error) {
	if a == nil || a.store == nil {
		return 0, nil
	}
	return a.store.Count(ctx, a.agentID)
}

func (a *Archival) search(ctx context.Context, query string) ([]*backend.Match, error) {
	if a == nil || a.store == nil || a.embedder == nil {
		return nil, errors.New("archival memory is not configured")
	}

	a.mu.Lock()
	cached, ok := a.hits[query]
	a.mu.Unlock()
	if ok {
		return cached, nil
	}

	vec, err := a.queryEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("archival search: embed query: %w", err)
	}
	matches, err := a.store.Search(ctx, a.agentID, vec, a.topK)
	if err != nil {
		return nil, fmt.Errorf("archival search: %w", err)
	}

	a.mu.Lock()
	a.hits[query] = matches
	a.mu.Unlock()
	return matches, nil
}

func (a *Archival) queryEmbedding(ctx context.Context, query string) ([]float32, error) {
	a.mu.Lock()
	vec, ok := a.queryCache.get(query)
	a.mu.Unlock()
	if ok {
		return vec, nil
	}

	vec, err := a.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	a.queryCache.set(query, vec)
	a.mu.Unlock()
	return vec, nil
}

func (a *Archival) batchSize() int {
	if n := a.embedder.MaxBatchSize(); n > 0 {
		return n
	}
	return 1
}

// vectorCache is a small LRU for query embeddings, keyed by query text.
type vectorCache struct {
	capacity int
	entries  map[string][]float32
	order    []string
}

func newVectorCache(capacity int) *vectorCache {
	return &vectorCache{
		capacity: capacity,
		entries:  make(map[string][]float32),
	}
}

func (c *vectorCache) get(key string) ([]float32, bool) {
	vec, ok := c.entries[key]
	return vec, ok
}

func (c *vectorCache) set(key string, vec []float32) {
	if c.capacity <= 0 {
		return
	}
	if _, exists := c.entries[key]; !exists {
		if len(c.order) >= c.capacity {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = vec
}
