package rag

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestCosine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"scaled", []float32{1, 2, 3}, []float32{2, 4, 6}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero left", []float32{0, 0}, []float32{1, 1}, MinScore},
		{"zero right", []float32{1, 1}, []float32{0, 0}, MinScore},
		{"both zero", []float32{0, 0}, []float32{0, 0}, MinScore},
		{"length mismatch", []float32{1, 2}, []float32{1, 2, 3}, MinScore},
		{"empty", nil, nil, MinScore},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Cosine(tt.a, tt.b)
			if math.IsNaN(float64(got)) {
				t.Fatalf("Cosine returned NaN")
			}
			if math.Abs(float64(got-tt.want)) > 1e-6 {
				t.Errorf("Cosine = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCosine_Symmetric(t *testing.T) {
	t.Parallel()

	vecs := [][]float32{
		{0.3, -1.2, 4.5, 0},
		{1, 1, 1, 1},
		{-0.7, 0.1, 0.2, 9},
		{0, 0, 0, 0},
	}
	for i := range vecs {
		for j := range vecs {
			if ab, ba := Cosine(vecs[i], vecs[j]), Cosine(vecs[j], vecs[i]); ab != ba {
				t.Errorf("Cosine(%d,%d)=%v but Cosine(%d,%d)=%v", i, j, ab, j, i, ba)
			}
		}
	}
}

func TestMemoryIndex_ScoreAllInIndexOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	idx := NewMemoryIndex()
	if err := idx.Build(ctx, [][]float32{{1, 0}, {0, 1}, {0, 0}}); err != nil {
		t.Fatalf("build: %v", err)
	}

	got, err := idx.ScoreAll(ctx, []float32{0, 1})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("want 3 results, got %d", len(got))
	}
	for i, r := range got {
		if r.Index != i {
			t.Errorf("result %d has index %d", i, r.Index)
		}
	}
	if got[1].Score != 1 {
		t.Errorf("passage 1 score = %v, want 1", got[1].Score)
	}
	if got[2].Score != MinScore {
		t.Errorf("zero vector score = %v, want %v", got[2].Score, MinScore)
	}
}

func TestMemoryIndex_BuildReplaces(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	idx := NewMemoryIndex()
	if err := idx.Build(ctx, [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}); err != nil {
		t.Fatalf("build A: %v", err)
	}
	if err := idx.Build(ctx, [][]float32{{1, 1}}); err != nil {
		t.Fatalf("build B: %v", err)
	}

	if idx.Len() != 1 {
		t.Fatalf("want 1 vector after rebuild, got %d", idx.Len())
	}
	if _, err := idx.ScoreAll(ctx, []float32{1, 0, 0}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("query shaped like document A should no longer fit: %v", err)
	}
	got, err := idx.ScoreAll(ctx, []float32{1, 1})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("want only document B's vector, got %d results", len(got))
	}
}

func TestMemoryIndex_BuildRejectsRagged(t *testing.T) {
	t.Parallel()

	err := NewMemoryIndex().Build(context.Background(), [][]float32{{1, 2}, {1}})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("want ErrDimensionMismatch, got %v", err)
	}
}

func TestMemoryIndex_BuildCopiesInput(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	vecs := [][]float32{{1, 0}}
	idx := NewMemoryIndex()
	if err := idx.Build(ctx, vecs); err != nil {
		t.Fatalf("build: %v", err)
	}
	vecs[0][0] = 0

	got, _ := idx.ScoreAll(ctx, []float32{1, 0})
	if got[0].Score != 1 {
		t.Errorf("index must not alias caller slices, score = %v", got[0].Score)
	}
}

func TestMemoryIndex_Empty(t *testing.T) {
	t.Parallel()

	got, err := NewMemoryIndex().ScoreAll(context.Background(), []float32{1})
	if err != nil || got != nil {
		t.Errorf("empty index: got %v, %v", got, err)
	}
}
