// Package rag defines the retrieval side of the paperqa pipeline: the passage
// and ranking types, the Embedder / Reranker / VectorIndex contracts, the
// in-memory and Qdrant-backed indexes, and the two-stage Retriever.
// Concrete embedding and reranking backends live in their own packages and
// satisfy these interfaces so the retriever never depends on a provider.
package rag

import (
	"context"
)

// Role selects the asymmetric embedding mode for a batch of texts.
type Role int

const (
	// RoleDocument embeds passages that will be stored in the index.
	RoleDocument Role = iota
	// RoleQuery embeds a user question that will be scored against the index.
	RoleQuery
)

// String returns the lowercase role name used in logs.
func (r Role) String() string {
	switch r {
	case RoleDocument:
		return "document"
	case RoleQuery:
		return "query"
	default:
		return "unknown"
	}
}

// Passage is a contiguous, bounded slice of a document's text.
type Passage struct {
	// Index is the position of the passage in the source document, starting
	// at 0. It is the passage's identifier throughout the pipeline.
	Index int

	// Text is the passage content.
	Text string
}

// RankedResult is the similarity of one indexed passage to a query.
type RankedResult struct {
	// Index is the Passage.Index this score belongs to.
	Index int

	// Score is the cosine similarity in [-1, 1].
	Score float32
}

// GroundedPassage is a passage selected for a generation request together
// with the score it was selected on.
type GroundedPassage struct {
	Passage

	// Score is the coarse cosine score of the passage.
	Score float32
}

// GroundingSet is the ordered, bounded set of passages handed to the generator.
type GroundingSet struct {
	// Passages is ordered most relevant first.
	Passages []GroundedPassage

	// Reranked is true when the ordering came from the reranking stage and
	// false when it is the coarse cosine ranking.
	Reranked bool
}

// Len returns the number of grounding passages.
func (g GroundingSet) Len() int { return len(g.Passages) }

// Embedder converts text into dense vectors.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts texts into embeddings using the given role. The returned
	// slice is parallel to texts. Failures are reported as
	// *EmbeddingServiceError.
	Embed(ctx context.Context, texts []string, role Role) ([][]float32, error)
}

// Reranker reorders a shortlist of documents by relevance to a query.
type Reranker interface {
	// Rerank returns at most topN positions into documents, most relevant first.
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]int, error)
}

// VectorIndex maps passage indices to embeddings and scores queries against them.
type VectorIndex interface {
	// Build replaces the index content with vectors; vectors[i] belongs to
	// passage i.
	Build(ctx context.Context, vectors [][]float32) error

	// ScoreAll returns one RankedResult per indexed passage, in index order.
	ScoreAll(ctx context.Context, query []float32) ([]RankedResult, error)

	// Len returns the number of indexed vectors.
	Len() int

	// Close releases any resources held by the index.
	Close() error
}
