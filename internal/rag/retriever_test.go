package rag

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

// keywordEmbedder is a test double that counts vocabulary words, so passages
// sharing words with the query score higher.
type keywordEmbedder struct {
	// vocab is the fixed list of dimensions.
	vocab []string
	// err, when set, is returned from every call.
	err error

	mu    sync.Mutex
	roles []Role
	calls int
}

func (k *keywordEmbedder) Embed(_ context.Context, texts []string, role Role) ([][]float32, error) {
	k.mu.Lock()
	k.roles = append(k.roles, role)
	k.calls++
	k.mu.Unlock()
	if k.err != nil {
		return nil, &EmbeddingServiceError{Backend: "fake", Err: k.err}
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, len(k.vocab))
		for _, w := range strings.Fields(strings.ToLower(t)) {
			w = strings.Trim(w, ".,?!")
			for d, term := range k.vocab {
				if w == term {
					v[d]++
				}
			}
		}
		out[i] = v
	}
	return out, nil
}

// fakeReranker returns a fixed order or error.
type fakeReranker struct {
	order []int
	err   error
	calls int
	docs  []string
	topN  int
}

func (f *fakeReranker) Rerank(_ context.Context, _ string, docs []string, topN int) ([]int, error) {
	f.calls++
	f.docs = docs
	f.topN = topN
	return f.order, f.err
}

var animalVocab = []string{"cat", "mat", "dogs", "bark", "night", "birds", "sing"}

func buildSession(t *testing.T, emb Embedder, texts ...string) ([]Passage, VectorIndex) {
	t.Helper()
	ctx := context.Background()
	passages := make([]Passage, len(texts))
	for i, s := range texts {
		passages[i] = Passage{Index: i, Text: s}
	}
	vecs, err := emb.Embed(ctx, texts, RoleDocument)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	idx := NewMemoryIndex()
	if err := idx.Build(ctx, vecs); err != nil {
		t.Fatalf("build: %v", err)
	}
	return passages, idx
}

func TestRetriever_CatDogScenario(t *testing.T) {
	t.Parallel()

	emb := &keywordEmbedder{vocab: animalVocab}
	passages, idx := buildSession(t, emb, "The cat sat on the mat.", "Dogs bark loudly at night.")

	r, err := NewRetriever(&RetrieverConfig{Embedder: emb, CoarseK: 10, FinalK: 1})
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}

	got, err := r.Retrieve(context.Background(), "What do dogs do?", passages, idx)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if got.Len() != 1 || got.Passages[0].Index != 1 {
		t.Fatalf("want [passage 1], got %+v", got.Passages)
	}
	if got.Reranked {
		t.Error("no reranker configured, Reranked must be false")
	}
}

func TestRetriever_QueryUsesQueryRole(t *testing.T) {
	t.Parallel()

	emb := &keywordEmbedder{vocab: animalVocab}
	passages, idx := buildSession(t, emb, "cat", "dogs")
	emb.roles = nil

	r, _ := NewRetriever(&RetrieverConfig{Embedder: emb})
	if _, err := r.Retrieve(context.Background(), "dogs", passages, idx); err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(emb.roles) != 1 || emb.roles[0] != RoleQuery {
		t.Errorf("want a single RoleQuery embed call, got %v", emb.roles)
	}
}

func TestRetriever_ShortDocument(t *testing.T) {
	t.Parallel()

	emb := &keywordEmbedder{vocab: animalVocab}
	passages, idx := buildSession(t, emb, "birds sing", "dogs bark", "cat mat")

	r, _ := NewRetriever(&RetrieverConfig{Embedder: emb, CoarseK: 10, FinalK: 10})
	got, err := r.Retrieve(context.Background(), "dogs bark at night", passages, idx)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if got.Len() != 3 {
		t.Fatalf("want all 3 passages, got %d", got.Len())
	}
	if got.Passages[0].Index != 1 {
		t.Errorf("want passage 1 first, got %d", got.Passages[0].Index)
	}
	for i := 1; i < got.Len(); i++ {
		if got.Passages[i-1].Score < got.Passages[i].Score {
			t.Errorf("scores not descending at %d: %v", i, got.Passages)
		}
	}
}

func TestRetriever_TiesBrokenByIndex(t *testing.T) {
	t.Parallel()

	emb := &keywordEmbedder{vocab: animalVocab}
	passages, idx := buildSession(t, emb, "birds", "cat", "sing", "mat")

	r, _ := NewRetriever(&RetrieverConfig{Embedder: emb, CoarseK: 4, FinalK: 4})
	got, err := r.Retrieve(context.Background(), "dogs", passages, idx)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	for i, p := range got.Passages {
		if p.Index != i {
			t.Errorf("equal scores must keep index order, position %d has passage %d", i, p.Index)
		}
	}
}

func TestRetriever_RerankerOrderIsFinal(t *testing.T) {
	t.Parallel()

	emb := &keywordEmbedder{vocab: animalVocab}
	passages, idx := buildSession(t, emb, "dogs bark", "dogs", "cat")
	rr := &fakeReranker{order: []int{2, 0}}

	r, _ := NewRetriever(&RetrieverConfig{Embedder: emb, Reranker: rr, CoarseK: 3, FinalK: 2})
	got, err := r.Retrieve(context.Background(), "dogs bark", passages, idx)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if !got.Reranked {
		t.Error("want Reranked=true")
	}
	if rr.topN != 2 || len(rr.docs) != 3 {
		t.Errorf("reranker got topN=%d docs=%d, want 2 and 3", rr.topN, len(rr.docs))
	}
	// coarse order: [0 "dogs bark", 1 "dogs", 2 "cat"]; positions 2,0 map to passages 2,0.
	if got.Len() != 2 || got.Passages[0].Index != 2 || got.Passages[1].Index != 0 {
		t.Errorf("want passages [2 0], got %+v", got.Passages)
	}
}

func TestRetriever_RerankFailureDegrades(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rr   *fakeReranker
	}{
		{"error", &fakeReranker{err: errors.New("503 service unavailable")}},
		{"out of range", &fakeReranker{order: []int{7}}},
		{"negative", &fakeReranker{order: []int{-1}}},
		{"duplicate", &fakeReranker{order: []int{1, 1}}},
		{"empty", &fakeReranker{order: nil}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			emb := &keywordEmbedder{vocab: animalVocab}
			passages, idx := buildSession(t, emb, "cat mat", "dogs bark night", "dogs", "birds sing")

			r, _ := NewRetriever(&RetrieverConfig{Embedder: emb, Reranker: tt.rr, CoarseK: 4, FinalK: 2})
			got, err := r.Retrieve(context.Background(), "dogs bark at night", passages, idx)
			if err != nil {
				t.Fatalf("rerank failure must not be fatal: %v", err)
			}
			if got.Reranked {
				t.Error("want Reranked=false after degradation")
			}
			if got.Len() != 2 {
				t.Fatalf("want coarse ranking truncated to 2, got %d", got.Len())
			}
			if got.Passages[0].Index != 1 || got.Passages[1].Index != 2 {
				t.Errorf("want coarse order [1 2], got %+v", got.Passages)
			}
		})
	}
}

func TestRetriever_DegenerateInputs(t *testing.T) {
	t.Parallel()

	emb := &keywordEmbedder{vocab: animalVocab}
	passages, idx := buildSession(t, emb, "cat")
	emb.calls = 0
	r, _ := NewRetriever(&RetrieverConfig{Embedder: emb})

	for name, tc := range map[string]struct {
		query    string
		passages []Passage
		index    VectorIndex
	}{
		"empty query": {"   ", passages, idx},
		"no passages": {"cat", nil, idx},
		"empty index": {"cat", passages, NewMemoryIndex()},
		"nil index":   {"cat", passages, nil},
	} {
		got, err := r.Retrieve(context.Background(), tc.query, tc.passages, tc.index)
		if err != nil || got.Len() != 0 {
			t.Errorf("%s: got %+v, %v; want empty set", name, got, err)
		}
	}
	if emb.calls != 0 {
		t.Errorf("degenerate inputs must not call the embedder, got %d calls", emb.calls)
	}
}

func TestRetriever_EmbeddingFailureIsFatal(t *testing.T) {
	t.Parallel()

	good := &keywordEmbedder{vocab: animalVocab}
	passages, idx := buildSession(t, good, "cat")

	bad := &keywordEmbedder{vocab: animalVocab, err: errors.New("401 unauthorized")}
	r, _ := NewRetriever(&RetrieverConfig{Embedder: bad})

	_, err := r.Retrieve(context.Background(), "cat", passages, idx)
	var embErr *EmbeddingServiceError
	if !errors.As(err, &embErr) {
		t.Fatalf("want *EmbeddingServiceError, got %v", err)
	}
}

func TestNewRetriever_Defaults(t *testing.T) {
	t.Parallel()

	if _, err := NewRetriever(&RetrieverConfig{}); err == nil {
		t.Error("want error for nil embedder")
	}

	r, err := NewRetriever(&RetrieverConfig{Embedder: &keywordEmbedder{}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if r.CoarseK() != DefaultCoarseK || r.FinalK() != DefaultFinalK {
		t.Errorf("defaults = %d/%d", r.CoarseK(), r.FinalK())
	}

	r, _ = NewRetriever(&RetrieverConfig{Embedder: &keywordEmbedder{}, CoarseK: 2, FinalK: 5})
	if r.FinalK() != 2 {
		t.Errorf("FinalK must not exceed CoarseK, got %d", r.FinalK())
	}
}
