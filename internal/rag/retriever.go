package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/54b3r/paperqa-go/internal/logging"
)

const (
	// DefaultCoarseK is the size of the cosine shortlist sent to the reranker.
	DefaultCoarseK = 10
	// DefaultFinalK is the maximum size of a GroundingSet.
	DefaultFinalK = 3
)

// RetrieverConfig holds the dependencies and funnel sizes of a Retriever.
type RetrieverConfig struct {
	// Embedder embeds the query with RoleQuery. Required.
	Embedder Embedder

	// Reranker is the optional precision stage. When nil the coarse ranking
	// is final.
	Reranker Reranker

	// CoarseK is the number of passages kept after cosine ranking.
	// Defaults to DefaultCoarseK if zero.
	CoarseK int

	// FinalK is the maximum number of passages returned.
	// Defaults to DefaultFinalK if zero.
	FinalK int
}

// Retriever runs the two-stage funnel: cosine ranking over the whole index,
// then an optional rerank of the shortlist.
type Retriever struct {
	// embedder converts the query text into a vector.
	embedder Embedder

	// reranker reorders the coarse shortlist; may be nil.
	reranker Reranker

	// coarseK is the shortlist size.
	coarseK int

	// finalK is the grounding set size bound.
	finalK int
}

// NewRetriever constructs a Retriever from cfg, applying defaults.
func NewRetriever(cfg *RetrieverConfig) (*Retriever, error) {
	if cfg == nil || cfg.Embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	coarseK := cfg.CoarseK
	if coarseK <= 0 {
		coarseK = DefaultCoarseK
	}
	finalK := cfg.FinalK
	if finalK <= 0 {
		finalK = DefaultFinalK
	}
	if finalK > coarseK {
		finalK = coarseK
	}
	return &Retriever{
		embedder: cfg.Embedder,
		reranker: cfg.Reranker,
		coarseK:  coarseK,
		finalK:   finalK,
	}, nil
}

// CoarseK returns the configured shortlist size.
func (r *Retriever) CoarseK() int { return r.coarseK }

// FinalK returns the configured grounding set bound.
func (r *Retriever) FinalK() int { return r.finalK }

// HasReranker reports whether a precision stage is configured.
func (r *Retriever) HasReranker() bool { return r.reranker != nil }

// Retrieve selects at most FinalK passages for query. An empty query or an
// empty document yields an empty set without calling any service. Reranking
// failures are logged and the coarse ranking is returned instead.
func (r *Retriever) Retrieve(ctx context.Context, query string, passages []Passage, index VectorIndex) (GroundingSet, error) {
	if strings.TrimSpace(query) == "" || len(passages) == 0 || index == nil || index.Len() == 0 {
		return GroundingSet{}, nil
	}

	coarse, err := r.coarse(ctx, query, passages, index)
	if err != nil {
		return GroundingSet{}, err
	}

	if r.reranker == nil {
		return GroundingSet{Passages: truncate(coarse, r.finalK)}, nil
	}

	reranked, err := r.rerank(ctx, query, coarse)
	if err != nil {
		var rerr *RerankServiceError
		if !errors.As(err, &rerr) {
			rerr = &RerankServiceError{Err: err}
		}
		logging.FromContext(ctx).Warn("rag: rerank failed, using coarse ranking",
			slog.Any("error", rerr),
			slog.Int("candidates", len(coarse)),
		)
		return GroundingSet{Passages: truncate(coarse, r.finalK)}, nil
	}
	return GroundingSet{Passages: reranked, Reranked: true}, nil
}

// coarse embeds the query, scores every passage and keeps the top CoarseK.
func (r *Retriever) coarse(ctx context.Context, query string, passages []Passage, index VectorIndex) ([]GroundedPassage, error) {
	vecs, err := r.embedder.Embed(ctx, []string{query}, RoleQuery)
	if err != nil {
		return nil, fmt.Errorf("rag: embedding query failed: %w", err)
	}
	if len(vecs) != 1 {
		return nil, &EmbeddingServiceError{Backend: "query", Err: fmt.Errorf("expected 1 embedding, got %d", len(vecs))}
	}

	scores, err := index.ScoreAll(ctx, vecs[0])
	if err != nil {
		return nil, fmt.Errorf("rag: scoring failed: %w", err)
	}

	SortRanked(scores)

	out := make([]GroundedPassage, 0, min(r.coarseK, len(scores)))
	for _, s := range scores {
		if len(out) == r.coarseK {
			break
		}
		if s.Index < 0 || s.Index >= len(passages) {
			continue
		}
		out = append(out, GroundedPassage{Passage: passages[s.Index], Score: s.Score})
	}
	return out, nil
}

// rerank sends the shortlist to the reranker and validates its answer.
func (r *Retriever) rerank(ctx context.Context, query string, coarse []GroundedPassage) ([]GroundedPassage, error) {
	docs := make([]string, len(coarse))
	for i, p := range coarse {
		docs[i] = p.Text
	}

	order, err := r.reranker.Rerank(ctx, query, docs, r.finalK)
	if err != nil {
		return nil, err
	}
	if len(order) == 0 {
		return nil, &RerankServiceError{Err: errors.New("empty ranking")}
	}

	seen := make(map[int]bool, len(order))
	out := make([]GroundedPassage, 0, min(len(order), r.finalK))
	for _, pos := range order {
		if pos < 0 || pos >= len(coarse) {
			return nil, &RerankServiceError{Err: fmt.Errorf("position %d out of range [0, %d)", pos, len(coarse))}
		}
		if seen[pos] {
			return nil, &RerankServiceError{Err: fmt.Errorf("duplicate position %d", pos)}
		}
		seen[pos] = true
		if len(out) < r.finalK {
			out = append(out, coarse[pos])
		}
	}
	return out, nil
}

// SortRanked orders results by score descending, ties by ascending index.
func SortRanked(results []RankedResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Index < results[j].Index
	})
}

func truncate(ps []GroundedPassage, k int) []GroundedPassage {
	if len(ps) > k {
		return ps[:k]
	}
	return ps
}
