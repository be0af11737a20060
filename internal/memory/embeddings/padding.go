package embeddings

import "context"

// MaxEmbeddingDim is the fixed width vectors are padded to before storage.
// Backends with fixed-width vector columns keep working when the embedding
// model (and so its native dimension) changes; do not lower this without
// resetting the stores.
const MaxEmbeddingDim = 4096

// Pad right-pads a vector with zeros to dim. Vectors already at or beyond
// dim are returned unchanged.
func Pad(vec []float32, dim int) []float32 {
	if len(vec) >= dim {
		return vec
	}
	padded := make([]float32, dim)
	copy(padded, vec)
	return padded
}

// Padded wraps a Provider so every produced vector is padded to
// MaxEmbeddingDim. Dimension() reports the padded width, which is what
// fixed-width backends size their columns from.
type Padded struct {
	inner Provider
}

// NewPadded wraps provider with zero-padding to MaxEmbeddingDim.
func NewPadded(provider Provider) *Padded {
	return &Padded{inner: provider}
}

func (p *Padded) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := p.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return Pad(vec, MaxEmbeddingDim), nil
}

func (p *Padded) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := p.inner.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	for i := range vecs {
		vecs[i] = Pad(vecs[i], MaxEmbeddingDim)
	}
	return vecs, nil
}

func (p *Padded) Name() string {
	return p.inner.Name()
}

func (p *Padded) Dimension() int {
	return MaxEmbeddingDim
}

func (p *Padded) MaxBatchSize() int {
	return p.inner.MaxBatchSize()
}
