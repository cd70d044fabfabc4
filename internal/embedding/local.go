// Package embedding holds the EmbeddingService adapters behind the
// driven.EmbeddingService port: a dispatch-by-model-name factory
// constructing one of several backends.
package embedding

import (
	"context"
	"math"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/entropyguard/entropyguard/internal/core/domain"
	"github.com/entropyguard/entropyguard/internal/core/ports/driven"
)

const defaultDimensions = 384

var _ driven.EmbeddingService = (*LocalHashEmbedding)(nil)

// LocalHashEmbedding is a deterministic, offline embedder: each input text
// is tokenized into overlapping character trigrams, each trigram hashed
// into a dimension with a hashing-trick sign, and the resulting vector
// L2-normalized. It never calls out to a model backend, which makes it the
// default for tests and for runs with no configured provider, while still
// honoring the embedder contract: deterministic for a fixed model id,
// unit-norm, non-zero unless the input is genuinely degenerate.
type LocalHashEmbedding struct {
	dim   int
	model string
}

// NewLocalHashEmbedding builds a LocalHashEmbedding of the given
// dimension. model is returned by Model() so callers can assert they
// never mix embeddings from two different configurations in one index.
func NewLocalHashEmbedding(model string, dim int) *LocalHashEmbedding {
	if dim <= 0 {
		dim = defaultDimensions
	}
	return &LocalHashEmbedding{dim: dim, model: model}
}

// Embed hashes each text's character trigrams into dim-dimensional
// buckets and L2-normalizes the result. A text with no trigrams (fewer
// than three runes) yields a nil Embedding, the sentinel the orchestrator
// treats as a post-sanitization drop.
func (e *LocalHashEmbedding) Embed(_ context.Context, texts []string) ([]domain.Embedding, error) {
	out := make([]domain.Embedding, len(texts))
	for i, text := range texts {
		out[i] = e.embedOne(text)
	}
	return out, nil
}

func (e *LocalHashEmbedding) embedOne(text string) domain.Embedding {
	runes := []rune(strings.ToLower(text))
	if len(runes) < 3 {
		return nil
	}

	vec := make([]float64, e.dim)
	for i := 0; i+2 < len(runes); i++ {
		trigram := string(runes[i : i+3])
		h := xxhash.Sum64String(trigram)
		bucket := int(h % uint64(e.dim))
		sign := 1.0
		if (h>>63)&1 == 1 {
			sign = -1.0
		}
		vec[bucket] += sign
	}

	var sumSq float64
	for _, v := range vec {
		sumSq += v * v
	}
	if sumSq < 1e-12 {
		return nil
	}
	norm := math.Sqrt(sumSq)

	emb := make(domain.Embedding, e.dim)
	for i, v := range vec {
		emb[i] = float32(v / norm)
	}
	return emb
}

func (e *LocalHashEmbedding) Dimensions() int { return e.dim }
func (e *LocalHashEmbedding) Model() string   { return e.model }

func (e *LocalHashEmbedding) HealthCheck(_ context.Context) error { return nil }
func (e *LocalHashEmbedding) Close() error                        { return nil }
