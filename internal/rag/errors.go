package rag

import (
	"errors"
	"fmt"
)

var (
	// ErrNotSupported is returned when a configured backend has no implementation.
	ErrNotSupported = errors.New("not supported")

	// ErrDimensionMismatch is returned when vectors of different lengths meet.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// EmbeddingServiceError reports a transport, auth, quota or response-shape
// failure of an embedding backend. It aborts the current operation.
type EmbeddingServiceError struct {
	// Backend names the embedding provider (e.g. "cohere").
	Backend string
	// Err is the underlying cause.
	Err error
}

func (e *EmbeddingServiceError) Error() string {
	return fmt.Sprintf("embedding service %s: %v", e.Backend, e.Err)
}

func (e *EmbeddingServiceError) Unwrap() error { return e.Err }

// RerankServiceError reports a failure of the reranking stage. The retriever
// never returns it; it is logged and the coarse ranking is used instead.
type RerankServiceError struct {
	// Err is the underlying cause.
	Err error
}

func (e *RerankServiceError) Error() string {
	return fmt.Sprintf("rerank service: %v", e.Err)
}

func (e *RerankServiceError) Unwrap() error { return e.Err }
