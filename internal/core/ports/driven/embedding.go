package driven

import (
	"context"

	"github.com/entropyguard/entropyguard/internal/core/domain"
)

// EmbeddingService transforms texts into unit-norm vectors. Deterministic
// for a fixed Model() identifier; callers must not mix embeddings from two
// different models in one index.
type EmbeddingService interface {
	// Embed generates one embedding per input text, in order. A degenerate
	// (near-zero-norm) input yields a nil Embedding at that position rather
	// than an error; the caller treats nil as a post-sanitization drop.
	Embed(ctx context.Context, texts []string) ([]domain.Embedding, error)

	Dimensions() int
	Model() string
	HealthCheck(ctx context.Context) error
	Close() error
}

// EmbeddingServiceFactory constructs an EmbeddingService for a model name.
type EmbeddingServiceFactory interface {
	CreateEmbeddingService(modelName string) (EmbeddingService, error)
}
