// Package rerank provides rag.Reranker implementations: the Cohere rerank
// endpoint and a fallback that asks the configured chat model to order the
// shortlist. Responses are validated here so the retriever only ever sees
// in-range, unique positions or an error.
package rerank

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
	// DefaultCohereModel is the rerank model used when none is configured.
	DefaultCohereModel = "rerank-v3.5"
)

// CohereReranker implements rag.Reranker using the Cohere /v2/rerank endpoint.
// It is safe for concurrent use.
type CohereReranker struct {
	// baseURL is the API root.
	baseURL string
	// apiKey is the Bearer token.
	apiKey string
	// model is the rerank model name.
	model string
	// limiter paces outbound calls; nil means unlimited.
	limiter *rate.Limiter
	// client is the shared HTTP client.
	client *http.Client
}

// CohereConfig holds the settings for constructing a CohereReranker.
type CohereConfig struct {
	// BaseURL is the API root. Defaults to DefaultCohereBaseURL.
	BaseURL string
	// APIKey is the Cohere API key.
	APIKey string
	// Model is the rerank model. Defaults to DefaultCohereModel.
	Model string
	// RequestsPerMinute caps outbound calls (0 = unlimited).
	RequestsPerMinute int
}

// NewCohereReranker constructs a CohereReranker from the given config.
func NewCohereReranker(cfg *CohereConfig) *CohereReranker {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultCohereBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultCohereModel
	}
	r := &CohereReranker{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		model:   model,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	if cfg.RequestsPerMinute > 0 {
		r.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return r
}

type cohereRerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n,omitempty"`
}

type cohereRerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
	Message string `json:"message,omitempty"`
}

// Rerank implements rag.Reranker.
func (r *CohereReranker) Rerank(ctx context.Context, query string, documents []string, topN int) ([]int, error) {
	if len(documents) == 0 {
		return nil, nil
	}
	topN = clampTopN(topN, len(documents))

	payload, err := json.Marshal(cohereRerankRequest{
		Model:     r.model,
		Query:     query,
		Documents: documents,
		TopN:      topN,
	})
	if err != nil {
		return nil, fmt.Errorf("cohere reranker: marshal request: %w", err)
	}

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, &rag.RerankServiceError{Err: fmt.Errorf("rate limit wait: %w", err)}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v2/rerank", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("cohere reranker: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &rag.RerankServiceError{Err: fmt.Errorf("cohere: request failed: %w", err)}
	}
	defer resp.Body.Close()

	var result cohereRerankResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&result)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if result.Message != "" {
			msg += ": " + result.Message
		}
		return nil, &rag.RerankServiceError{Err: fmt.Errorf("cohere: %s", msg)}
	}
	if decodeErr != nil {
		return nil, &rag.RerankServiceError{Err: fmt.Errorf("cohere: decode response: %w", decodeErr)}
	}

	order := make([]int, len(result.Results))
	for i, res := range result.Results {
		order[i] = res.Index
	}
	if err := validate(order, len(documents), topN); err != nil {
		return nil, &rag.RerankServiceError{Err: fmt.Errorf("cohere: %w", err)}
	}
	return order, nil
}

// clampTopN bounds topN to [1, n]; a non-positive topN means all.
func clampTopN(topN, n int) int {
	if topN <= 0 || topN > n {
		return n
	}
	return topN
}

// validate checks that order is a non-empty list of at most topN unique
// positions in [0, n).
func validate(order []int, n, topN int) error {
	if len(order) == 0 {
		return fmt.Errorf("empty ranking")
	}
	if len(order) > topN {
		return fmt.Errorf("%d results for top_n %d", len(order), topN)
	}
	seen := make(map[int]bool, len(order))
	for _, i := range order {
		if i < 0 || i >= n {
			return fmt.Errorf("index %d out of range [0, %d)", i, n)
		}
		if seen[i] {
			return fmt.Errorf("duplicate index %d", i)
		}
		seen[i] = true
	}
	return nil
}
