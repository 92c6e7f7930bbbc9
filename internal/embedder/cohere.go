package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/54b3r/paperqa-go/internal/rag"
)

const (
	// DefaultCohereBaseURL is the Cohere v2 API root.
	DefaultCohereBaseURL = "https://api.cohere.com"
	// CohereMaxBatch is the most texts the /v2/embed endpoint accepts per call.
	CohereMaxBatch = 96
)

// CohereEmbedder implements rag.Embedder using the Cohere /v2/embed endpoint.
// The role maps onto Cohere's input_type. It is safe for concurrent use.
type CohereEmbedder struct {
	// baseURL is the API root (e.g. "https://api.cohere.com").
	baseURL string
	// apiKey is the Bearer token.
	apiKey string
	// model is the embedding model name (e.g. "embed-english-v3.0").
	model string
	// limiter paces outbound calls; nil means unlimited.
	limiter *rate.Limiter
	// client is the shared HTTP client with a sensible timeout.
	client *http.Client
}

// CohereConfig holds the settings for constructing a CohereEmbedder.
type CohereConfig struct {
	// BaseURL is the API root. Defaults to DefaultCohereBaseURL.
	BaseURL string
	// APIKey is the Cohere API key.
	APIKey string
	// Model is the embedding model name.
	Model string
	// RequestsPerMinute caps outbound calls (0 = unlimited). Trial keys are
	// limited to a few calls per minute.
	RequestsPerMinute int
}

// NewCohereEmbedder constructs a CohereEmbedder from the given config.
func NewCohereEmbedder(cfg *CohereConfig) *CohereEmbedder {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultCohereBaseURL
	}
	e := &CohereEmbedder{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
	if cfg.RequestsPerMinute > 0 {
		e.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return e
}

// cohereEmbedRequest is the JSON body sent to /v2/embed.
type cohereEmbedRequest struct {
	Model          string   `json:"model"`
	Texts          []string `json:"texts"`
	InputType      string   `json:"input_type"`
	EmbeddingTypes []string `json:"embedding_types"`
}

// cohereEmbedResponse is the JSON body returned from /v2/embed.
type cohereEmbedResponse struct {
	Embeddings struct {
		Float [][]float32 `json:"float"`
	} `json:"embeddings"`
	Message string `json:"message,omitempty"`
}

// cohereInputType maps a role onto Cohere's input_type.
func cohereInputType(role rag.Role) string {
	if role == rag.RoleQuery {
		return "search_query"
	}
	return "search_document"
}

// Embed converts a batch of texts into their corresponding embeddings.
// The returned slice is parallel to the input slice.
func (e *CohereEmbedder) Embed(ctx context.Context, texts []string, role rag.Role) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	payload, err := json.Marshal(cohereEmbedRequest{
		Model:          e.model,
		Texts:          texts,
		InputType:      cohereInputType(role),
		EmbeddingTypes: []string{"float"},
	})
	if err != nil {
		return nil, fmt.Errorf("cohere embedder: marshal request: %w", err)
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, serviceError("cohere", "rate limit wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v2/embed", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("cohere embedder: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, serviceError("cohere", "request failed: %w", err)
	}
	defer resp.Body.Close()

	var result cohereEmbedResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&result)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if result.Message != "" {
			msg += ": " + result.Message
		}
		return nil, serviceError("cohere", "%s", msg)
	}
	if decodeErr != nil {
		return nil, serviceError("cohere", "decode response: %w", decodeErr)
	}

	if err := checkCount("cohere", len(texts), result.Embeddings.Float); err != nil {
		return nil, err
	}
	return result.Embeddings.Float, nil
}
