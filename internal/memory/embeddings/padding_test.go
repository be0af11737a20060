package embeddings

import (
	"context"
	"testing"
)

type stubProvider struct{ dim int }

func (s *stubProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, s.dim)
	for i := range vec {
		vec[i] = 1
	}
	return vec, nil
}

func (s *stubProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i], _ = s.Embed(ctx, texts[i])
	}
	return out, nil
}

func (s *stubProvider) Name() string      { return "stub" }
func (s *stubProvider) Dimension() int    { return s.dim }
func (s *stubProvider) MaxBatchSize() int { return 4 }

func TestPad(t *testing.T) {
	vec := []float32{1, 2, 3}
	padded := Pad(vec, 8)
	if len(padded) != 8 {
		t.Fatalf("len = %d", len(padded))
	}
	if padded[0] != 1 || padded[2] != 3 || padded[3] != 0 {
		t.Fatalf("padded = %v", padded)
	}

	// Already at width: unchanged.
	same := Pad(vec, 3)
	if len(same) != 3 {
		t.Fatalf("len = %d", len(same))
	}
}

func TestPaddedProvider(t *testing.T) {
	p := NewPadded(&stubProvider{dim: 1536})

	if p.Dimension() != MaxEmbeddingDim {
		t.Fatalf("dimension = %d, want %d", p.Dimension(), MaxEmbeddingDim)
	}

	vec, err := p.Embed(context.Background(), "text")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != MaxEmbeddingDim {
		t.Fatalf("vector len = %d", len(vec))
	}
	if vec[0] != 1 || vec[1535] != 1 || vec[1536] != 0 {
		t.Fatal("padding corrupted the vector")
	}

	batch, err := p.EmbedBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	for _, v := range batch {
		if len(v) != MaxEmbeddingDim {
			t.Fatalf("batch vector len = %d", len(v))
		}
	}
}
