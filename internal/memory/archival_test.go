package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/haasonsaas/mnemos/internal/memory/backend"
	"github.com/haasonsaas/mnemos/internal/memory/backend/memstore"
)

// fakeEmbedder maps text to a deterministic small vector and counts calls.
type fakeEmbedder struct {
	dim        int
	embedCalls int
}

func (f *fakeEmbedder) vector(text string) []float32 {
	vec := make([]float32, f.dim)
	for i, ch := range []byte(text) {
		vec[i%f.dim] += float32(ch)
	}
	return vec
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.embedCalls++
	return f.vector(text), nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = f.vector(text)
	}
	return out, nil
}

func (f *fakeEmbedder) Name() string      { return "fake" }
func (f *fakeEmbedder) Dimension() int    { return f.dim }
func (f *fakeEmbedder) MaxBatchSize() int { return 16 }

func newTestArchival(t *testing.T) (*Archival, *memstore.Store, *fakeEmbedder) {
	t.Helper()
	store := memstore.New()
	embedder := &fakeEmbedder{dim: 8}
	return NewArchival(store, embedder, "agent-1", 50), store, embedder
}

func TestArchivalInsertChunksAndStores(t *testing.T) {
	arch, store, _ := newTestArchival(t)

	var text strings.Builder
	for i := 0; i < 30; i++ {
		text.WriteString("A memorable fact worth keeping for later recall. ")
	}
	if err := arch.Insert(context.Background(), text.String()); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	n, err := store.Count(context.Background(), "agent-1")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n < 2 {
		t.Fatalf("expected chunked passages, got %d", n)
	}
	matches, err := store.Search(context.Background(), "agent-1", make([]float32, 8), 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, m := range matches {
		if m.Passage.AgentID != "agent-1" {
			t.Fatalf("passage not scoped to agent: %+v", m.Passage)
		}
		if len(m.Passage.Embedding) != 8 {
			t.Fatalf("passage missing embedding: %+v", m.Passage)
		}
	}
}

func TestArchivalInsertEmpty(t *testing.T) {
	arch, _, _ := newTestArchival(t)
	if err := arch.Insert(context.Background(), "   "); err == nil {
		t.Fatal("empty insert must fail")
	}
}

func TestArchivalSearchPaging(t *testing.T) {
	arch, _, _ := newTestArchival(t)
	facts := []string{
		"Fact one about the garden.",
		"Fact two about the kitchen.",
		"Fact three about the workshop.",
	}
	for _, fact := range facts {
		if err := arch.Insert(context.Background(), fact); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	page0, n0, err := arch.Search(context.Background(), "fact", 0, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if n0 != 2 || len(page0) != 2 {
		t.Fatalf("page 0: n=%d len=%d", n0, len(page0))
	}
	if page0[0].Content == "" || page0[0].Timestamp == "" {
		t.Fatalf("passage incomplete: %+v", page0[0])
	}

	page1, n1, err := arch.Search(context.Background(), "fact", 1, 2)
	if err != nil {
		t.Fatalf("Search page 1: %v", err)
	}
	if n1 != 1 || len(page1) != 1 {
		t.Fatalf("page 1: n=%d len=%d", n1, len(page1))
	}

	pageFar, nFar, err := arch.Search(context.Background(), "fact", 50, 2)
	if err != nil {
		t.Fatalf("Search far page: %v", err)
	}
	if nFar != 0 || pageFar != nil {
		t.Fatalf("far page should be empty, n=%d", nFar)
	}
}

func TestArchivalQueryEmbeddingCached(t *testing.T) {
	arch, _, embedder := newTestArchival(t)
	if err := arch.Insert(context.Background(), "One short fact."); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if _, _, err := arch.Search(context.Background(), "fact", 0, 5); err != nil {
		t.Fatalf("Search: %v", err)
	}
	calls := embedder.embedCalls
	if _, _, err := arch.Search(context.Background(), "fact", 1, 5); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if embedder.embedCalls != calls {
		t.Fatalf("repeated query re-embedded: %d -> %d", calls, embedder.embedCalls)
	}

	// New inserts invalidate result caches but keep query embeddings.
	if err := arch.Insert(context.Background(), "Another fact entirely."); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, n, err := arch.Search(context.Background(), "fact", 0, 10); err != nil || n < 2 {
		t.Fatalf("post-insert search: n=%d err=%v", n, err)
	}
}

func TestArchivalHasSimilar(t *testing.T) {
	arch, _, _ := newTestArchival(t)
	if err := arch.Insert(context.Background(), "The user's favorite color is green."); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	// Identical text embeds identically: similarity 1.
	similar, err := arch.HasSimilar(context.Background(), "The user's favorite color is green.", 0.95)
	if err != nil {
		t.Fatalf("HasSimilar: %v", err)
	}
	if !similar {
		t.Fatal("identical text should register as similar")
	}
}

func TestArchivalCount(t *testing.T) {
	arch, _, _ := newTestArchival(t)
	if err := arch.Insert(context.Background(), "One short fact."); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	n, err := arch.Count(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("count = %d err = %v", n, err)
	}
}

func TestArchivalUnconfigured(t *testing.T) {
	var arch *Archival
	if err := arch.Insert(context.Background(), "text"); err == nil {
		t.Fatal("insert without a backend must fail")
	}
	if _, _, err := arch.Search(context.Background(), "q", 0, 5); err == nil {
		t.Fatal("search without a backend must fail")
	}
	if n, err := arch.Count(context.Background()); err != nil || n != 0 {
		t.Fatalf("count without a backend: n=%d err=%v", n, err)
	}
}

func TestVectorCacheEviction(t *testing.T) {
	c := newVectorCache(2)
	c.set("a", []float32{1})
	c.set("b", []float32{2})
	c.set("c", []float32{3})

	if _, ok := c.get("a"); ok {
		t.Fatal("oldest entry should have been evicted")
	}
	if _, ok := c.get("c"); !ok {
		t.Fatal("newest entry missing")
	}
}

var _ backend.Store = (*memstore.Store)(nil)
