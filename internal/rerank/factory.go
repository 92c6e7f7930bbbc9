package rerank

import (
	"fmt"
	"os"
	"strconv"

	"github.com/cloudwego/eino/components/model"

	"github.com/54b3r/paperqa-go/internal/rag"
)

// Provider names accepted by RERANK_PROVIDER.
const (
	ProviderCohere = "cohere"
	ProviderLLM    = "llm"
	ProviderNone   = "none"
)

// ResolveProvider returns the effective RERANK_PROVIDER: the variable when
// set, otherwise "cohere" when COHERE_API_KEY is set, otherwise "none".
func ResolveProvider() string {
	if v := os.Getenv("RERANK_PROVIDER"); v != "" {
		return v
	}
	if os.Getenv("COHERE_API_KEY") != "" {
		return ProviderCohere
	}
	return ProviderNone
}

// NewFromEnv constructs the configured reranker. It returns a nil Reranker
// and no error when reranking is disabled. chat is only used by the llm
// provider and may be nil otherwise.
//
// Environment variables:
//
//	RERANK_PROVIDER  = cohere | llm | none
//	RERANK_MODEL     (default: rerank-v3.5)
//	COHERE_API_KEY, COHERE_BASE_URL, COHERE_REQUESTS_PER_MINUTE
func NewFromEnv(chat model.BaseChatModel) (rag.Reranker, error) {
	switch p := ResolveProvider(); p {
	case ProviderNone:
		return nil, nil
	case ProviderCohere:
		key := os.Getenv("COHERE_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("rerank: cohere requires COHERE_API_KEY")
		}
		rpm, _ := strconv.Atoi(os.Getenv("COHERE_REQUESTS_PER_MINUTE"))
		return NewCohereReranker(&CohereConfig{
			BaseURL:           os.Getenv("COHERE_BASE_URL"),
			APIKey:            key,
			Model:             os.Getenv("RERANK_MODEL"),
			RequestsPerMinute: rpm,
		}), nil
	case ProviderLLM:
		if chat == nil {
			return nil, fmt.Errorf("rerank: llm provider requires a chat model")
		}
		return NewLLMReranker(chat), nil
	default:
		return nil, fmt.Errorf("rerank: unknown provider %q, valid values: cohere, llm, none", p)
	}
}
