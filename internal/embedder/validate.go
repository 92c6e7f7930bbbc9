package embedder

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// knownChatModelPrefixes contains name fragments that identify chat/completion
// models which are NOT suitable for embedding.
var knownChatModelPrefixes = []string{
	"gpt-4",
	"gpt-3.5",
	"gpt-35",
	"o1",
	"o3",
	"llama3",
	"llama2",
	"llama-3",
	"llama-2",
	"mistral",
	"mixtral",
	"gemma",
	"phi-",
	"phi3",
	"claude",
	"command-r",
	"command-a",
	"deepseek",
	"qwen",
	"gemini-",
}

// looksLikeChatModel returns true when the model name resembles a known
// chat/completion model rather than a dedicated embedding model.
func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	for _, prefix := range knownChatModelPrefixes {
		if strings.Contains(lower, prefix) {
			return true
		}
	}
	return false
}

// Validate checks the embedding configuration before any document is
// loaded. It returns an error when the configuration is clearly broken
// (missing credentials, unsupported backend) and logs a warning when
// EMBEDDING_MODEL looks like a chat model.
//
// Call it at command start so operators get a clear error rather than a
// failure on the first embed call.
func Validate(log *slog.Logger) error {
	backend := ResolveBackend()

	if os.Getenv("EMBEDDING_PROVIDER") == "" && os.Getenv("MODEL_PROVIDER") != "" {
		log.Debug("embedder: EMBEDDING_PROVIDER unset, inheriting MODEL_PROVIDER",
			slog.String("backend", backend),
		)
	}

	switch backend {
	case "cohere":
		if firstEnv("EMBEDDING_API_KEY", "COHERE_API_KEY") == "" {
			return fmt.Errorf("embedder: no Cohere API key found, set COHERE_API_KEY or EMBEDDING_API_KEY")
		}
	case "openai":
		if firstEnv("EMBEDDING_API_KEY", "OPENAI_API_KEY") == "" {
			return fmt.Errorf("embedder: no OpenAI API key found, set OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
	case "azure":
		if firstEnv("EMBEDDING_API_KEY", "AZURE_OPENAI_API_KEY") == "" {
			return fmt.Errorf("embedder: no Azure API key found, set AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		if firstEnv("EMBEDDING_ENDPOINT", "AZURE_OPENAI_ENDPOINT") == "" {
			return fmt.Errorf("embedder: no Azure endpoint found, set AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
	case "gemini":
		if firstEnv("EMBEDDING_API_KEY", "GOOGLE_API_KEY") == "" {
			return fmt.Errorf("embedder: no Gemini API key found, set GOOGLE_API_KEY or EMBEDDING_API_KEY")
		}
	case "bedrock":
		return fmt.Errorf("embedder: bedrock embedding is not supported, set EMBEDDING_PROVIDER to cohere, ollama, openai, azure, gemini or local")
	case "ollama", "local":
	default:
		return fmt.Errorf("embedder: unknown backend %q", backend)
	}

	if model := os.Getenv("EMBEDDING_MODEL"); model != "" && looksLikeChatModel(model) {
		log.Warn("embedder: EMBEDDING_MODEL looks like a chat model, not an embedding model",
			slog.String("model", model),
			slog.String("hint", "use a dedicated embedding model e.g. embed-english-v3.0, nomic-embed-text, text-embedding-3-small"),
		)
	}
	return nil
}
