package rag

import (
	"context"
	"fmt"
	"math"
)

// MinScore is the similarity assigned when cosine similarity is undefined
// (a zero-norm vector or mismatched lengths).
const MinScore float32 = -1

// Cosine returns dot(a,b) / (|a| * |b|). It returns MinScore instead of NaN
// when either vector has zero norm or the lengths differ.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return MinScore
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return MinScore
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Rounding can push the value a hair outside [-1, 1].
	return float32(max(-1, min(1, sim)))
}

// MemoryIndex is an exact, brute-force VectorIndex held in process memory.
// It is built once per document session and never mutated afterwards, so
// concurrent ScoreAll calls need no locking.
type MemoryIndex struct {
	// vectors holds one embedding per passage, indexed by Passage.Index.
	vectors [][]float32

	// dim is the common vector length, 0 when empty.
	dim int
}

// NewMemoryIndex returns an empty MemoryIndex.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{}
}

// Build replaces the index content. All vectors must share one length.
func (m *MemoryIndex) Build(_ context.Context, vectors [][]float32) error {
	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	owned := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("rag: build: vector %d has %d dims, want %d: %w", i, len(v), dim, ErrDimensionMismatch)
		}
		owned[i] = append([]float32(nil), v...)
	}
	m.vectors = owned
	m.dim = dim
	return nil
}

// ScoreAll scores query against every indexed vector, in index order.
func (m *MemoryIndex) ScoreAll(_ context.Context, query []float32) ([]RankedResult, error) {
	if len(m.vectors) == 0 {
		return nil, nil
	}
	if len(query) != m.dim {
		return nil, fmt.Errorf("rag: score: query has %d dims, index has %d: %w", len(query), m.dim, ErrDimensionMismatch)
	}

	results := make([]RankedResult, len(m.vectors))
	for i, v := range m.vectors {
		results[i] = RankedResult{Index: i, Score: Cosine(query, v)}
	}
	return results, nil
}

// Len returns the number of indexed vectors.
func (m *MemoryIndex) Len() int { return len(m.vectors) }

// Close is a no-op.
func (m *MemoryIndex) Close() error { return nil }
