// Package embedder provides implementations of the rag.Embedder interface for
// converting text into dense vector embeddings. Each implementation talks to
// a different backend (Cohere, Gemini, Ollama, OpenAI / Azure OpenAI) and
// keeps the document / query role asymmetry the backend expects.
package embedder

import (
	"context"
	"fmt"

	"github.com/54b3r/paperqa-go/internal/rag"
)

// RolePrefixes holds the text prepended to each input before embedding.
// Models such as nomic-embed-text are trained with task prefixes instead of
// a request-level input type.
type RolePrefixes struct {
	// Document is prepended to passages embedded with rag.RoleDocument.
	Document string
	// Query is prepended to questions embedded with rag.RoleQuery.
	Query string
}

// NomicPrefixes are the task prefixes nomic-embed-text was trained with.
var NomicPrefixes = RolePrefixes{Document: "search_document: ", Query: "search_query: "}

// apply returns texts with the prefix for role prepended. The input slice
// is returned unchanged when the prefix is empty.
func (p RolePrefixes) apply(texts []string, role rag.Role) []string {
	prefix := p.Document
	if role == rag.RoleQuery {
		prefix = p.Query
	}
	if prefix == "" {
		return texts
	}
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = prefix + t
	}
	return out
}

// serviceError wraps err as a *rag.EmbeddingServiceError for backend.
func serviceError(backend, format string, args ...any) error {
	return &rag.EmbeddingServiceError{Backend: backend, Err: fmt.Errorf(format, args...)}
}

// checkCount reports a service error when a backend returned a different
// number of vectors than it was sent texts.
func checkCount(backend string, want int, got [][]float32) error {
	if len(got) != want {
		return serviceError(backend, "expected %d embeddings, got %d", want, len(got))
	}
	for i, v := range got {
		if len(v) == 0 {
			return serviceError(backend, "embedding %d is empty", i)
		}
	}
	return nil
}

// Batched wraps an Embedder so no single backend call carries more than
// size texts. Batches are sent sequentially and the results concatenated in
// input order.
type Batched struct {
	// inner is the wrapped embedder.
	inner rag.Embedder
	// size is the maximum number of texts per call.
	size int
}

// NewBatched wraps inner. A size <= 0 disables splitting.
func NewBatched(inner rag.Embedder, size int) *Batched {
	return &Batched{inner: inner, size: size}
}

// Embed implements rag.Embedder.
func (b *Batched) Embed(ctx context.Context, texts []string, role rag.Role) ([][]float32, error) {
	if b.size <= 0 || len(texts) <= b.size {
		return b.inner.Embed(ctx, texts, role)
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += b.size {
		end := min(start+b.size, len(texts))
		vecs, err := b.inner.Embed(ctx, texts[start:end], role)
		if err != nil {
			return nil, err
		}
		if len(vecs) != end-start {
			return nil, &rag.EmbeddingServiceError{
				Backend: "batch",
				Err:     fmt.Errorf("batch %d-%d: expected %d embeddings, got %d", start, end, end-start, len(vecs)),
			}
		}
		out = append(out, vecs...)
	}
	return out, nil
}
