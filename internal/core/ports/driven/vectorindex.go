package driven

import (
	"context"

	"github.com/entropyguard/entropyguard/internal/core/domain"
)

// VectorIndex is an incremental approximate-nearest-neighbor index over
// unit vectors, using squared L2 as the distance. See internal/vectorindex
// for the numeric contract this interface binds implementations to.
type VectorIndex interface {
	// Add appends vectors, assigning contiguous global_vector_ids. Rows with
	// ||v||^2 < 1e-8 are rejected (skipped, warning emitted) rather than
	// erroring the batch.
	Add(ctx context.Context, embeddings []domain.Embedding, originalIndexes []int64) ([]domain.IndexEntry, error)

	// Search returns the k nearest entries to q by squared L2 distance.
	Search(ctx context.Context, q domain.Embedding, k int) (dists []float64, ids []int, err error)

	// FindDuplicates runs union-find over all pairs within thresholdSq,
	// restricted to the given candidate global_vector_ids (a new batch's
	// vectors) against the whole index built so far.
	FindDuplicates(ctx context.Context, thresholdSq float64, candidateIDs []int) ([]domain.DuplicateGroup, error)

	Size() int

	// SetStoreVectors toggles whether raw vectors are retained after
	// insertion; false caps memory, and vectors that are not stored no
	// longer take part in Search or FindDuplicates.
	SetStoreVectors(store bool)
}
