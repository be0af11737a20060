// Package embeddings turns archival passage text into the vectors the
// backend stores and searches by.
package embeddings

import "context"

// Provider produces embeddings for passage text and search queries.
type Provider interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one call.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Name returns the provider name.
	Name() string

	// Dimension returns the native embedding width.
	Dimension() int

	// MaxBatchSize returns the maximum number of texts per batch.
	MaxBatchSize() int
}

// Config selects and configures a provider.
type Config struct {
	Provider string // openai, ollama
	APIKey   string
	BaseURL  string
	Model    string
}
