// Package agent is the facade over the paperqa pipeline. It loads a document
// into an immutable DocumentSession (chunk, embed, index) and answers queries
// or produces summaries against that session. Loading another document
// yields a new session; nothing is mutated in place.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/54b3r/paperqa-go/internal/chunker"
	"github.com/54b3r/paperqa-go/internal/loader"
	"github.com/54b3r/paperqa-go/internal/logging"
	"github.com/54b3r/paperqa-go/internal/rag"
	"github.com/54b3r/paperqa-go/internal/store"
)

// ErrNoSession is returned when an operation is called without a loaded
// document.
var ErrNoSession = errors.New("agent: no document loaded")

// DocumentLoader reads a source into text. *loader.Loader implements it.
type DocumentLoader interface {
	Load(ctx context.Context, source string) (*loader.Document, error)
}

// PassageRetriever selects grounding passages. *rag.Retriever implements it.
type PassageRetriever interface {
	Retrieve(ctx context.Context, query string, passages []rag.Passage, index rag.VectorIndex) (rag.GroundingSet, error)
}

// TextGenerator produces answers and summaries. *generator.Generator
// implements it.
type TextGenerator interface {
	GenerateAnswer(ctx context.Context, query string, grounding rag.GroundingSet) (string, error)
	GenerateSummary(ctx context.Context, fullText string) (string, error)
}

// IndexFactory returns an empty index for a new session.
type IndexFactory func(ctx context.Context, sessionID string) (rag.VectorIndex, error)

// MemoryIndexFactory builds in-process indexes.
func MemoryIndexFactory(context.Context, string) (rag.VectorIndex, error) {
	return rag.NewMemoryIndex(), nil
}

// Config holds the collaborators and settings for an Agent.
type Config struct {
	// Loader reads document sources. Required.
	Loader DocumentLoader
	// Embedder embeds passages at load time. Required.
	Embedder rag.Embedder
	// Retriever selects grounding passages per query. Required.
	Retriever PassageRetriever
	// Generator produces the final text. Required.
	Generator TextGenerator
	// NewIndex builds the per-session index. Defaults to MemoryIndexFactory.
	NewIndex IndexFactory
	// ChunkSize is the passage length in characters. Defaults to
	// chunker.DefaultSize if zero.
	ChunkSize int
	// ChunkOverlap is the overlap between passages in characters. Defaults
	// to chunker.DefaultOverlap if zero; use a negative value for none.
	ChunkOverlap int
	// History is the optional exchange log. If nil, nothing is persisted.
	History store.ExchangeLog
}

// Agent composes loader, chunker, embedder, index, retriever and generator.
// It holds no per-document state and is safe for concurrent use when its
// collaborators are.
type Agent struct {
	// cfg holds the resolved configuration.
	cfg Config
}

// Result is the outcome of answering a query.
type Result struct {
	// Answer is the generated text.
	Answer string
	// Grounding is the passage set the answer was generated from.
	Grounding rag.GroundingSet
}

// New validates cfg, applies defaults and returns an Agent.
func New(cfg *Config) (*Agent, error) {
	switch {
	case cfg.Loader == nil:
		return nil, fmt.Errorf("agent: Loader must not be nil")
	case cfg.Embedder == nil:
		return nil, fmt.Errorf("agent: Embedder must not be nil")
	case cfg.Retriever == nil:
		return nil, fmt.Errorf("agent: Retriever must not be nil")
	case cfg.Generator == nil:
		return nil, fmt.Errorf("agent: Generator must not be nil")
	}
	c := *cfg
	if c.NewIndex == nil {
		c.NewIndex = MemoryIndexFactory
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = chunker.DefaultSize
	}
	switch {
	case c.ChunkOverlap == 0:
		c.ChunkOverlap = min(chunker.DefaultOverlap, c.ChunkSize/5)
	case c.ChunkOverlap < 0:
		c.ChunkOverlap = 0
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return nil, fmt.Errorf("agent: chunk overlap %d must be smaller than chunk size %d: %w",
			c.ChunkOverlap, c.ChunkSize, chunker.ErrInvalidSize)
	}
	return &Agent{cfg: c}, nil
}

// LoadDocument reads source, splits it into passages, embeds them with the
// document role and builds a fresh index. Load failures are returned as
// *loader.DocumentLoadError and embedding failures as
// *rag.EmbeddingServiceError. An empty document yields a session with no
// passages.
func (a *Agent) LoadDocument(ctx context.Context, source string) (*DocumentSession, error) {
	log := logging.FromContext(ctx)
	start := time.Now()

	doc, err := a.cfg.Loader.Load(ctx, source)
	if err != nil {
		return nil, err
	}

	passages, err := chunker.Split(doc.Text, a.cfg.ChunkSize, a.cfg.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("agent: chunk: %w", err)
	}

	var vectors [][]float32
	if len(passages) > 0 {
		vectors, err = a.cfg.Embedder.Embed(ctx, chunker.Texts(passages), rag.RoleDocument)
		if err != nil {
			return nil, err
		}
		if len(vectors) != len(passages) {
			return nil, &rag.EmbeddingServiceError{
				Backend: "agent",
				Err:     fmt.Errorf("expected %d embeddings, got %d", len(passages), len(vectors)),
			}
		}
	}

	id := uuid.NewString()
	index, err := a.cfg.NewIndex(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("agent: create index: %w", err)
	}
	if err := index.Build(ctx, vectors); err != nil {
		_ = index.Close()
		return nil, fmt.Errorf("agent: build index: %w", err)
	}

	s := &DocumentSession{
		id:       id,
		source:   source,
		title:    doc.Title,
		text:     doc.Text,
		key:      store.DocumentKey(doc.Text),
		passages: passages,
		index:    index,
		loadedAt: time.Now(),
	}
	log.Info("agent: document loaded",
		slog.String("session", id),
		slog.String("source", source),
		slog.Int("passages", len(passages)),
		slog.Duration("elapsed", time.Since(start)),
	)
	if len(passages) == 0 {
		log.Warn("agent: document has no text, queries will have no grounding", slog.String("source", source))
	}
	return s, nil
}

// Summarize produces a summary from the session's full text. It does not
// use the index.
func (a *Agent) Summarize(ctx context.Context, s *DocumentSession) (string, error) {
	if s == nil {
		return "", ErrNoSession
	}
	summary, err := a.cfg.Generator.GenerateSummary(ctx, s.text)
	if err != nil {
		return "", err
	}
	a.record(ctx, s.key, s.source, store.KindSummary, "", summary)
	return summary, nil
}

// AnswerQuery retrieves grounding passages for query from the session and
// generates an answer from them. A blank query yields an empty Result
// without calling any service or recording an exchange.
func (a *Agent) AnswerQuery(ctx context.Context, s *DocumentSession, query string) (*Result, error) {
	if s == nil {
		return nil, ErrNoSession
	}
	if strings.TrimSpace(query) == "" {
		logging.FromContext(ctx).Debug("agent: blank query, nothing to answer", slog.String("session", s.id))
		return &Result{}, nil
	}
	grounding, err := a.cfg.Retriever.Retrieve(ctx, query, s.passages, s.index)
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Debug("agent: grounding selected",
		slog.String("session", s.id),
		slog.Int("passages", grounding.Len()),
		slog.Bool("reranked", grounding.Reranked),
	)

	answer, err := a.cfg.Generator.GenerateAnswer(ctx, query, grounding)
	if err != nil {
		return nil, err
	}
	a.record(ctx, s.key, s.source, store.KindAnswer, query, answer)
	return &Result{Answer: answer, Grounding: grounding}, nil
}

// SummarizeSource loads the text of source and summarises it. Nothing is
// embedded or indexed.
func (a *Agent) SummarizeSource(ctx context.Context, source string) (string, error) {
	doc, err := a.cfg.Loader.Load(ctx, source)
	if err != nil {
		return "", err
	}
	summary, err := a.cfg.Generator.GenerateSummary(ctx, doc.Text)
	if err != nil {
		return "", err
	}
	a.record(ctx, store.DocumentKey(doc.Text), source, store.KindSummary, "", summary)
	return summary, nil
}

// AnswerSource loads source into a throwaway session and answers query.
func (a *Agent) AnswerSource(ctx context.Context, source, query string) (*Result, error) {
	s, err := a.LoadDocument(ctx, source)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := s.Close(); err != nil {
			logging.FromContext(ctx).Warn("agent: failed to release session index", slog.Any("error", err))
		}
	}()
	return a.AnswerQuery(ctx, s, query)
}

// record appends an exchange to the history log. Failures are logged, never
// returned.
func (a *Agent) record(ctx context.Context, key, source string, kind store.Kind, query, answer string) {
	if a.cfg.History == nil {
		return
	}
	err := a.cfg.History.Append(ctx, store.Exchange{
		DocumentKey: key,
		Source:      source,
		Kind:        kind,
		Query:       query,
		Answer:      answer,
	})
	if err != nil {
		logging.FromContext(ctx).Warn("history: failed to persist exchange",
			slog.String("kind", string(kind)),
			slog.Any("error", err),
		)
	}
}
