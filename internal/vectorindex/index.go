// Package vectorindex implements an incremental nearest-neighbor index
// over unit vectors, using squared L2 as the distance.
//
// Numeric contract: for unit vectors, cosine similarity s and squared L2
// distance d^2 satisfy
//
//	d^2 = 2(1 - s)
//
// ThresholdSq converts a user similarity threshold to that radius WITHOUT
// taking a square root. Taking sqrt(2(1-s)) instead produces an overly
// loose radius and wildly over-reports duplicates; TestThresholdSqIdentity
// in index_test.go pins the squared form down so it cannot regress
// silently.
//
// This implementation is a flat (brute-force) index: correct and simple,
// trading query-time O(n) for zero external index state. It satisfies the
// VectorIndex port exactly; a future build can swap in a true ANN backend
// behind the same interface without touching the orchestrator.
package vectorindex

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/entropyguard/entropyguard/internal/core/domain"
	"github.com/entropyguard/entropyguard/internal/core/ports/driven"
)

// minSquaredNorm is the floor below which a vector is considered
// degenerate and rejected from the index.
const minSquaredNorm = 1e-8

var _ driven.VectorIndex = (*FlatIndex)(nil)

// FlatIndex is the process-wide, cross-batch ANN state C9 owns. It is
// written only by the orchestrator's single driver thread.
type FlatIndex struct {
	mu            sync.RWMutex
	dim           int
	storeVectors  bool
	vectors       []domain.Embedding // nil entries once storeVectors is false and vectors were dropped
	originalIndex []int64
}

// New creates an empty FlatIndex for dim-dimensional vectors.
func New(dim int) *FlatIndex {
	return &FlatIndex{dim: dim, storeVectors: true}
}

// SetStoreVectors toggles whether raw vectors are retained after
// insertion. Disabling it drops previously stored vectors too, capping
// memory; a vector that is not stored no longer takes part in Search or
// FindDuplicates.
func (idx *FlatIndex) SetStoreVectors(store bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.storeVectors = store
	if !store {
		for i := range idx.vectors {
			idx.vectors[i] = nil
		}
	}
}

// Size returns the number of vectors currently indexed.
func (idx *FlatIndex) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.originalIndex)
}

// Add appends vectors, assigning contiguous global_vector_ids in insertion
// order. A row with ||v||^2 < 1e-8 is rejected (skipped) rather than
// failing the whole call. Norm checks fan out across a bounded pool since
// a batch's rows are disjoint and read-only at this point.
func (idx *FlatIndex) Add(ctx context.Context, embeddings []domain.Embedding, originalIndexes []int64) ([]domain.IndexEntry, error) {
	if len(embeddings) != len(originalIndexes) {
		return nil, domain.NewProcessingError("vectorindex", "Add", errMismatchedLengths)
	}

	sqNorms := make([]float64, len(embeddings))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(16)
	for i, v := range embeddings {
		i, v := i, v
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			sqNorms[i] = squaredNorm(v)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, domain.NewProcessingError("vectorindex", "Add", err)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	entries := make([]domain.IndexEntry, 0, len(embeddings))
	for i, v := range embeddings {
		if v == nil || sqNorms[i] < minSquaredNorm {
			continue // degenerate vector: warning is the caller's responsibility to log
		}
		gid := len(idx.originalIndex)
		if idx.storeVectors {
			idx.vectors = append(idx.vectors, v)
		} else {
			idx.vectors = append(idx.vectors, nil)
		}
		idx.originalIndex = append(idx.originalIndex, originalIndexes[i])
		entries = append(entries, domain.IndexEntry{GlobalVectorID: gid, OriginalIndex: originalIndexes[i]})
	}
	return entries, nil
}

// Search returns the k nearest indexed entries to q by squared L2
// distance, ascending. dists[0] is q's own distance if q is itself
// indexed (distance 0 would appear first).
func (idx *FlatIndex) Search(ctx context.Context, q domain.Embedding, k int) ([]float64, []int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if k > len(idx.originalIndex) {
		k = len(idx.originalIndex)
	}
	if k <= 0 {
		return nil, nil, nil
	}

	type cand struct {
		id   int
		dist float64
	}
	cands := make([]cand, 0, len(idx.originalIndex))
	for gid, v := range idx.vectors {
		if v == nil {
			continue // vectors discarded; cannot participate in query-time search
		}
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		default:
		}
		cands = append(cands, cand{id: gid, dist: squaredL2(q, v)})
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })
	if len(cands) > k {
		cands = cands[:k]
	}

	dists := make([]float64, len(cands))
	ids := make([]int, len(cands))
	for i, c := range cands {
		dists[i] = c.dist
		ids[i] = c.id
	}
	return dists, ids, nil
}

// FindDuplicates runs union-find over every pair (i, j), i != j, where i
// ranges over candidateIDs (a new batch's freshly inserted vectors) and j
// ranges over the whole index built so far, with dist^2(v_i, v_j) <=
// thresholdSq. Grouping is restricted to candidateIDs x all so a batch
// only needs to examine the vectors it just added plus everything earlier,
// never re-comparing prior batches against each other.
func (idx *FlatIndex) FindDuplicates(ctx context.Context, thresholdSq float64, candidateIDs []int) ([]domain.DuplicateGroup, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	uf := newUnionFind(len(idx.originalIndex))
	for _, i := range candidateIDs {
		if i < 0 || i >= len(idx.vectors) || idx.vectors[i] == nil {
			continue
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		for j := 0; j < len(idx.vectors); j++ {
			if j == i || idx.vectors[j] == nil {
				continue
			}
			if squaredL2(idx.vectors[i], idx.vectors[j]) <= thresholdSq {
				uf.union(i, j)
			}
		}
	}

	groups := map[int][]int64{}
	touched := map[int]bool{}
	for _, i := range candidateIDs {
		if i < 0 || i >= len(idx.originalIndex) {
			continue
		}
		root := uf.find(i)
		if !touched[root] {
			touched[root] = true
		}
	}
	for gid := range idx.originalIndex {
		root := uf.find(gid)
		if touched[root] {
			groups[root] = append(groups[root], idx.originalIndex[gid])
		}
	}

	out := make([]domain.DuplicateGroup, 0, len(groups))
	for _, members := range groups {
		if len(members) < 2 {
			continue
		}
		sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
		out = append(out, domain.DuplicateGroup{Canonical: members[0], Members: members})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Canonical < out[j].Canonical })
	return out, nil
}

// ThresholdSq converts a user-specified cosine-similarity threshold to the
// squared-L2 index radius, per the numeric contract in the package doc.
// similarity must be in [0, 1]; callers validate that range at startup.
func ThresholdSq(similarity float64) float64 {
	return 2 * (1 - similarity)
}

func squaredNorm(v domain.Embedding) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return sum
}

func squaredL2(a, b domain.Embedding) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	if uf.rank[ra] < uf.rank[rb] {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
	if uf.rank[ra] == uf.rank[rb] {
		uf.rank[ra]++
	}
}

type errString string

func (e errString) Error() string { return string(e) }

const errMismatchedLengths = errString("embeddings and originalIndexes must have the same length")
