package embedder

import (
	"context"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/54b3r/paperqa-go/internal/rag"
)

// OpenAIMaxBatch is the most inputs the embeddings endpoint accepts per call.
const OpenAIMaxBatch = 2048

// OpenAIEmbedder implements rag.Embedder using the OpenAI (or Azure OpenAI)
// embeddings API through go-openai. It is safe for concurrent use.
type OpenAIEmbedder struct {
	// client is the go-openai client configured for OpenAI or Azure.
	client *openai.Client
	// model is the embedding model name or Azure deployment.
	model string
	// dimensions is the desired embedding vector length (0 = model default).
	dimensions int
	// prefixes are prepended to inputs to express the role.
	prefixes RolePrefixes
	// backend is "openai" or "azure", used in error reports.
	backend string
}

// OpenAIConfig holds the settings for constructing an OpenAIEmbedder.
type OpenAIConfig struct {
	// BaseURL is the API base URL. For OpenAI: "https://api.openai.com/v1".
	// For Azure: "https://<resource>.openai.azure.com".
	BaseURL string
	// APIKey is the authentication key.
	APIKey string
	// Model is the embedding model name (e.g. "text-embedding-3-small").
	// For Azure it is the deployment name.
	Model string
	// Dimensions is the desired vector length (0 = model default).
	Dimensions int
	// Azure enables Azure OpenAI mode (api-key header + api-version param).
	Azure bool
	// APIVersion is the Azure OpenAI API version (e.g. "2025-04-01-preview").
	// Ignored when Azure is false.
	APIVersion string
	// Prefixes are optional role prefixes. The text-embedding-3 family is
	// symmetric so they default to empty.
	Prefixes RolePrefixes
}

// NewOpenAIEmbedder constructs an OpenAIEmbedder from the given config.
func NewOpenAIEmbedder(cfg *OpenAIConfig) *OpenAIEmbedder {
	var clientCfg openai.ClientConfig
	backend := "openai"
	if cfg.Azure {
		backend = "azure"
		clientCfg = openai.DefaultAzureConfig(cfg.APIKey, strings.TrimRight(cfg.BaseURL, "/"))
		if cfg.APIVersion != "" {
			clientCfg.APIVersion = cfg.APIVersion
		}
		// Use the deployment name as-is; the default mapper strips dots.
		clientCfg.AzureModelMapperFunc = func(model string) string { return model }
	} else {
		clientCfg = openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
		}
	}
	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		prefixes:   cfg.Prefixes,
		backend:    backend,
	}
}

// Embed converts a batch of texts into their corresponding embeddings.
// The returned slice is parallel to the input slice.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string, role rag.Role) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      e.prefixes.apply(texts, role),
		Model:      openai.EmbeddingModel(e.model),
		Dimensions: e.dimensions,
	})
	if err != nil {
		return nil, serviceError(e.backend, "create embeddings: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, serviceError(e.backend, "expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	// The API may return data out of order; place by index.
	embeddings := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, serviceError(e.backend, "index %d out of range [0, %d)", d.Index, len(texts))
		}
		if embeddings[d.Index] != nil {
			return nil, serviceError(e.backend, "duplicate index %d", d.Index)
		}
		embeddings[d.Index] = d.Embedding
	}
	if err := checkCount(e.backend, len(texts), embeddings); err != nil {
		return nil, err
	}
	return embeddings, nil
}
