package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/motionclinic/casematch/internal/domain"
)

// IndexEntry is one (id, label, vector) triple stored in a vector index.
type IndexEntry struct {
	ID     string
	Label  string
	Vector []float32
}

// Hit is a single nearest-neighbor result. Score is the inner product of
// the unit-normalized query and stored vector, capped at 1.
type Hit struct {
	ID    string
	Label string
	Score float64
}

// Searcher answers k-nearest-neighbor queries over label embeddings.
// The brute-force VectorIndex is the exact baseline; a remote index may
// substitute it behind this interface for larger corpora.
type Searcher interface {
	Search(ctx context.Context, query []float32, k int) ([]Hit, error)
	Len() int
}

// VectorIndex is an exact, in-memory nearest-neighbor index using inner
// product over unit-normalized vectors (O(n*d) per query). It is read-only
// after Build and safe for concurrent searches.
type VectorIndex struct {
	dim     int
	entries []IndexEntry
}

// BuildIndex constructs a VectorIndex from entries. Vectors are normalized
// to unit length on insert; insertion order is preserved for tie-breaking.
// Parameters:
//   - entries: (id, label, vector) triples sharing one dimension.
// Returns:
//   - *VectorIndex: searchable index.
//   - error: domain.ErrDimensionMismatch if dimensions disagree.
func BuildIndex(entries []IndexEntry) (*VectorIndex, error) {
	ix := &VectorIndex{}
	for i, e := range entries {
		if ix.dim == 0 {
			ix.dim = len(e.Vector)
		}
		if len(e.Vector) != ix.dim {
			return nil, fmt.Errorf("%w: entry %d (%s) has dimension %d, index has %d",
				domain.ErrDimensionMismatch, i, e.ID, len(e.Vector), ix.dim)
		}
		ix.entries = append(ix.entries, IndexEntry{
			ID:     e.ID,
			Label:  e.Label,
			Vector: Normalize(e.Vector),
		})
	}
	return ix, nil
}

// Search returns up to k entries ranked by similarity to query, descending.
// Ties keep corpus insertion order (first-seen wins). Searching an empty
// index returns an empty result, never an error.
// Parameters:
//   - ctx: unused by the in-memory index, present for Searcher parity.
//   - query: query embedding; dimension must match the index.
//   - k: maximum number of hits.
// Returns:
//   - []Hit: ranked results.
//   - error: domain.ErrDimensionMismatch on incompatible query dimension.
func (ix *VectorIndex) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	_ = ctx
	if len(ix.entries) == 0 {
		return []Hit{}, nil
	}
	if len(query) != ix.dim {
		return nil, fmt.Errorf("%w: query has dimension %d, index has %d",
			domain.ErrDimensionMismatch, len(query), ix.dim)
	}
	if k <= 0 {
		return []Hit{}, nil
	}

	q := Normalize(query)
	hits := make([]Hit, 0, len(ix.entries))
	for _, e := range ix.entries {
		// float32 rounding during normalization can leave a self-match a
		// hair above 1; cap it so downstream scores stay in [0, 1].
		score := dot(q, e.Vector)
		if score > 1 {
			score = 1
		}
		hits = append(hits, Hit{
			ID:    e.ID,
			Label: e.Label,
			Score: score,
		})
	}

	// Stable sort so equal scores keep insertion order.
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Len returns the number of stored entries.
func (ix *VectorIndex) Len() int {
	return len(ix.entries)
}

// Dimension returns the embedding dimension, or 0 for an empty index.
func (ix *VectorIndex) Dimension() int {
	return ix.dim
}

// Entries returns a copy of the stored (normalized) entries in insertion
// order, for snapshot persistence.
func (ix *VectorIndex) Entries() []IndexEntry {
	out := make([]IndexEntry, len(ix.entries))
	copy(out, ix.entries)
	return out
}
