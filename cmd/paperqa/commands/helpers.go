package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/model"
	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/paperqa-go/internal/agent"
	"github.com/54b3r/paperqa-go/internal/config"
	"github.com/54b3r/paperqa-go/internal/embedder"
	"github.com/54b3r/paperqa-go/internal/generator"
	"github.com/54b3r/paperqa-go/internal/loader"
	"github.com/54b3r/paperqa-go/internal/provider"
	"github.com/54b3r/paperqa-go/internal/rag"
	"github.com/54b3r/paperqa-go/internal/rerank"
	"github.com/54b3r/paperqa-go/internal/store"
)

// runtime is everything a command needs to drive the pipeline. Close
// releases it.
type runtime struct {
	// agent is the wired document agent.
	agent *agent.Agent
	// chat is the chat model behind the generator.
	chat model.BaseChatModel
	// providerCfg is the resolved chat provider configuration.
	providerCfg *provider.Config
	// pipeline is the resolved pipeline configuration.
	pipeline *config.Pipeline
	// qdrant is the shared client when INDEX_BACKEND=qdrant.
	qdrant *qdrant.Client
	// reranking reports whether a reranker is configured.
	reranking bool
	// history is the exchange log, or nil when disabled.
	history *store.SQLiteStore
}

// buildRuntime wires provider, embedder, reranker, retriever, generator,
// loader, index backend and exchange log from the environment.
func buildRuntime(ctx context.Context, log *slog.Logger) (*runtime, error) {
	pipeline, err := config.PipelineFromEnv()
	if err != nil {
		return nil, err
	}

	chat, providerCfg, err := provider.NewFromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}
	log.Debug("provider initialised", slog.String("provider", string(providerCfg.Backend)))

	if err := embedder.Validate(log); err != nil {
		return nil, err
	}
	emb, err := embedder.NewFromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}

	reranker, err := rerank.NewFromEnv(chat)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise reranker: %w", err)
	}

	retriever, err := rag.NewRetriever(&rag.RetrieverConfig{
		Embedder: emb,
		Reranker: reranker,
		CoarseK:  pipeline.CoarseK,
		FinalK:   pipeline.FinalK,
	})
	if err != nil {
		return nil, err
	}

	gen, err := generator.New(&generator.Config{
		ChatModel:        chat,
		Temperature:      providerCfg.Tuning.Temperature,
		SummaryModel:     pipeline.SummaryModel,
		MaxContextTokens: pipeline.MaxContextTokens,
	})
	if err != nil {
		return nil, err
	}

	rt := &runtime{
		chat:        chat,
		providerCfg: providerCfg,
		pipeline:    pipeline,
		reranking:   reranker != nil,
	}

	newIndex := agent.MemoryIndexFactory
	if pipeline.IndexBackend == config.IndexQdrant {
		client, err := rag.NewQdrantClient(&rag.QdrantConfig{
			Host:   pipeline.QdrantHost,
			Port:   pipeline.QdrantPort,
			APIKey: pipeline.QdrantAPIKey,
			UseTLS: pipeline.QdrantTLS,
		})
		if err != nil {
			return nil, err
		}
		rt.qdrant = client
		newIndex = qdrantIndexFactory(client)
		log.Debug("qdrant index backend", slog.String("host", pipeline.QdrantHost), slog.Int("port", pipeline.QdrantPort))
	}

	var history store.ExchangeLog
	if h := openHistory(pipeline, log); h != nil {
		rt.history = h
		history = h
	}

	// Zero selects the agent default; an explicit CHUNK_OVERLAP=0 means none.
	overlap := pipeline.ChunkOverlap
	if overlap == 0 {
		overlap = -1
	}
	rt.agent, err = agent.New(&agent.Config{
		Loader:       loader.New(nil),
		Embedder:     emb,
		Retriever:    retriever,
		Generator:    gen,
		NewIndex:     newIndex,
		ChunkSize:    pipeline.ChunkSize,
		ChunkOverlap: overlap,
		History:      history,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

// Close releases the exchange log and the Qdrant client.
func (rt *runtime) Close() {
	if rt.history != nil {
		_ = rt.history.Close()
	}
	if rt.qdrant != nil {
		_ = rt.qdrant.Close()
	}
}

// collectionPrefix starts every per-session Qdrant collection name.
const collectionPrefix = "paperqa_"

// qdrantIndexFactory gives every session its own collection.
func qdrantIndexFactory(client *qdrant.Client) agent.IndexFactory {
	return func(_ context.Context, sessionID string) (rag.VectorIndex, error) {
		return rag.NewQdrantIndex(client, collectionPrefix+sessionID), nil
	}
}

// openHistory opens the exchange log. Failures disable it with a warning.
func openHistory(p *config.Pipeline, log *slog.Logger) *store.SQLiteStore {
	if p.HistoryDisabled() {
		log.Debug("history: disabled via PAPERQA_HISTORY_DB=disabled")
		return nil
	}
	path := p.HistoryDB
	if path == "" {
		var err error
		if path, err = store.DefaultDBPath(); err != nil {
			log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil
		}
	}
	s, err := store.Open(path)
	if err != nil {
		log.Warn("history: failed to open store, disabling", slog.Any("error", err))
		return nil
	}
	log.Debug("history: store opened", slog.String("path", path))
	return s
}

// userError turns pipeline failures into messages a person can act on.
// Errors of other kinds are wrapped with op.
func userError(op string, err error) error {
	var (
		loadErr *loader.DocumentLoadError
		embErr  *rag.EmbeddingServiceError
		genErr  *generator.GenerationServiceError
		rrErr   *rag.RerankServiceError
	)
	switch {
	case errors.As(err, &loadErr):
		return fmt.Errorf("could not load document %q: %v", loadErr.Source, loadErr.Err)
	case errors.As(err, &embErr):
		return fmt.Errorf("embedding service %s failed: %v", embErr.Backend, embErr.Err)
	case errors.As(err, &genErr):
		return fmt.Errorf("language model failed to produce the %s: %v", genErr.Op, genErr.Err)
	case errors.As(err, &rrErr):
		return fmt.Errorf("rerank service failed: %v", rrErr.Err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: cancelled", op)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: timed out", op)
	}
	return fmt.Errorf("%s: %w", op, err)
}
