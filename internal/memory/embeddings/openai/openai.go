// Package openai embeds passage text through an OpenAI-compatible
// embeddings endpoint.
package openai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/haasonsaas/mnemos/internal/memory/embeddings"
)

const defaultModel = "text-embedding-3-small"

// knownDimensions maps embedding models to their native vector width.
var knownDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// Provider embeds via the OpenAI API.
type Provider struct {
	client    *openai.Client
	model     string
	dimension int
}

// New builds a Provider from config. BaseURL supports proxies and
// compatible local servers.
func New(cfg embeddings.Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai embeddings: API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	dimension, ok := knownDimensions[model]
	if !ok {
		dimension = knownDimensions[defaultModel]
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Provider{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     model,
		dimension: dimension,
	}, nil
}

// Embed generates an embedding for a single text.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one request.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(p.model),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embeddings: got %d vectors for %d texts", len(resp.Data), len(texts))
	}

	// The API may return data out of order; Index restores it.
	vecs := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(vecs) {
			return nil, fmt.Errorf("openai embeddings: index %d out of range", item.Index)
		}
		vecs[item.Index] = item.Embedding
	}
	return vecs, nil
}

// Name returns the provider name.
func (p *Provider) Name() string { return "openai" }

// Dimension returns the model's native vector width.
func (p *Provider) Dimension() int { return p.dimension }

// MaxBatchSize returns the per-request input cap.
func (p *Provider) MaxBatchSize() int { return 2048 }
