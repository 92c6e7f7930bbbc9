package embedder

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/54b3r/paperqa-go/internal/rag"
)

// Default embedding models per backend.
const (
	defaultCohereModel  = "embed-english-v3.0"
	defaultOllamaModel  = "nomic-embed-text"
	defaultOpenAIModel  = "text-embedding-3-small"
	defaultBedrockModel = "amazon.titan-embed-text-v2"
	defaultGeminiModel  = "text-embedding-004"

	// defaultBatch is used for backends without a documented per-call limit.
	defaultBatch = 64
)

// ResolveBackend returns the effective embedding backend name.
//
// Resolution order: EMBEDDING_PROVIDER, then MODEL_PROVIDER, then "cohere"
// when COHERE_API_KEY is set, otherwise "ollama".
func ResolveBackend() string {
	if v := getEnv("EMBEDDING_PROVIDER"); v != "" {
		return v
	}
	if v := getEnv("MODEL_PROVIDER"); v != "" {
		return v
	}
	if getEnv("COHERE_API_KEY") != "" {
		return "cohere"
	}
	return "ollama"
}

// NewFromEnv constructs a rag.Embedder using cascading defaults that inherit
// from the chat provider configuration when embedding-specific overrides are
// not set. The result is wrapped in Batched with the backend's batch limit.
//
// Resolution order:
//
//  1. Backend via ResolveBackend
//  2. Per-backend credentials are inherited from the chat provider's env vars
//  3. EMBEDDING_MODEL overrides the default model for the resolved backend
//  4. EMBEDDING_API_KEY overrides the inherited API key
//  5. EMBEDDING_ENDPOINT overrides the inherited endpoint
//  6. EMBEDDING_DIMENSIONS requests a vector size where the backend allows it
//  7. EMBEDDING_BATCH_SIZE overrides the per-call batch limit
//  8. EMBEDDING_PREFIX_DOCUMENT / EMBEDDING_PREFIX_QUERY override role prefixes
func NewFromEnv(ctx context.Context) (rag.Embedder, error) {
	backend := ResolveBackend()
	dims := getEnvInt("EMBEDDING_DIMENSIONS", 0)

	var (
		inner rag.Embedder
		batch = defaultBatch
	)
	switch backend {
	case "cohere":
		apiKey := firstEnv("EMBEDDING_API_KEY", "COHERE_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("embedder: cohere requires COHERE_API_KEY or EMBEDDING_API_KEY")
		}
		inner = NewCohereEmbedder(&CohereConfig{
			BaseURL:           firstEnv("EMBEDDING_ENDPOINT", "COHERE_BASE_URL"),
			APIKey:            apiKey,
			Model:             firstEnvOrDefault(defaultCohereModel, "EMBEDDING_MODEL", "COHERE_EMBED_MODEL"),
			RequestsPerMinute: getEnvInt("COHERE_REQUESTS_PER_MINUTE", 0),
		})
		batch = CohereMaxBatch

	case "ollama":
		inner = NewOllamaEmbedder(&OllamaConfig{
			Host:     firstEnvOrDefault("http://localhost:11434", "EMBEDDING_ENDPOINT", "OLLAMA_HOST"),
			Model:    getEnvOrDefault("EMBEDDING_MODEL", defaultOllamaModel),
			Prefixes: prefixesFromEnv(NomicPrefixes),
		})

	case "openai":
		apiKey := firstEnv("EMBEDDING_API_KEY", "OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("embedder: openai requires OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		inner = NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    getEnvOrDefault("EMBEDDING_ENDPOINT", "https://api.openai.com/v1"),
			APIKey:     apiKey,
			Model:      getEnvOrDefault("EMBEDDING_MODEL", defaultOpenAIModel),
			Dimensions: dims,
			Prefixes:   prefixesFromEnv(RolePrefixes{}),
		})
		batch = OpenAIMaxBatch

	case "azure":
		apiKey := firstEnv("EMBEDDING_API_KEY", "AZURE_OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		endpoint := firstEnv("EMBEDDING_ENDPOINT", "AZURE_OPENAI_ENDPOINT")
		if endpoint == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
		inner = NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    endpoint,
			APIKey:     apiKey,
			Model:      getEnvOrDefault("EMBEDDING_MODEL", defaultOpenAIModel),
			Dimensions: dims,
			Azure:      true,
			APIVersion: getEnvOrDefault("AZURE_OPENAI_API_VERSION", "2025-04-01-preview"),
			Prefixes:   prefixesFromEnv(RolePrefixes{}),
		})
		batch = OpenAIMaxBatch

	case "gemini":
		g, err := NewGeminiEmbedder(ctx, &GeminiConfig{
			APIKey:     firstEnv("EMBEDDING_API_KEY", "GOOGLE_API_KEY"),
			Model:      getEnvOrDefault("EMBEDDING_MODEL", defaultGeminiModel),
			Dimensions: dims,
		})
		if err != nil {
			return nil, err
		}
		inner = g
		batch = GeminiMaxBatch

	case "local":
		inner = NewLocalEmbedder(dims)

	case "bedrock":
		return nil, fmt.Errorf("embedder: bedrock (%s): %w", defaultBedrockModel, rag.ErrNotSupported)

	default:
		return nil, fmt.Errorf("embedder: unknown backend %q, valid values: cohere, ollama, openai, azure, gemini, local", backend)
	}

	return NewBatched(inner, getEnvInt("EMBEDDING_BATCH_SIZE", batch)), nil
}

// prefixesFromEnv returns def with any EMBEDDING_PREFIX_* overrides applied.
// Setting a variable to the empty string is indistinguishable from unset, so
// "none" clears a prefix.
func prefixesFromEnv(def RolePrefixes) RolePrefixes {
	if v, ok := os.LookupEnv("EMBEDDING_PREFIX_DOCUMENT"); ok {
		def.Document = clearable(v)
	}
	if v, ok := os.LookupEnv("EMBEDDING_PREFIX_QUERY"); ok {
		def.Query = clearable(v)
	}
	return def
}

func clearable(v string) string {
	if v == "none" {
		return ""
	}
	return v
}

// getEnv returns the value of the named environment variable, or empty string.
func getEnv(key string) string {
	return os.Getenv(key)
}

// firstEnv returns the first non-empty value among keys.
func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// firstEnvOrDefault is firstEnv with a fallback.
func firstEnvOrDefault(fallback string, keys ...string) string {
	if v := firstEnv(keys...); v != "" {
		return v
	}
	return fallback
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
