package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Index backends accepted by INDEX_BACKEND.
const (
	IndexMemory = "memory"
	IndexQdrant = "qdrant"
)

// Pipeline holds the typed settings of the document pipeline, resolved from
// the environment after Load has applied the YAML file.
type Pipeline struct {
	// ChunkSize is the passage length in characters.
	ChunkSize int
	// ChunkOverlap is the overlap between consecutive passages.
	ChunkOverlap int
	// CoarseK is the cosine shortlist size.
	CoarseK int
	// FinalK is the grounding set size.
	FinalK int
	// IndexBackend is IndexMemory or IndexQdrant.
	IndexBackend string
	// QdrantHost is the Qdrant hostname.
	QdrantHost string
	// QdrantPort is the Qdrant gRPC port.
	QdrantPort int
	// QdrantAPIKey is the optional Qdrant API key.
	QdrantAPIKey string
	// QdrantTLS enables TLS to Qdrant.
	QdrantTLS bool
	// SummaryModel overrides the chat model for summaries.
	SummaryModel string
	// MaxContextTokens is the prompt budget.
	MaxContextTokens int
	// HistoryDB is the exchange log path; empty selects the default and
	// "disabled" turns the log off.
	HistoryDB string
}

// HistoryDisabled reports whether the exchange log is turned off.
func (p *Pipeline) HistoryDisabled() bool {
	return strings.EqualFold(p.HistoryDB, "disabled")
}

// PipelineFromEnv resolves Pipeline settings from environment variables.
//
// Environment variables:
//
//	CHUNK_SIZE          (default: 1000)
//	CHUNK_OVERLAP       (default: 200)
//	RETRIEVAL_COARSE_K  (default: 10)
//	RETRIEVAL_FINAL_K   (default: 3)
//	INDEX_BACKEND       = memory | qdrant (default: memory)
//	QDRANT_HOST, QDRANT_PORT, QDRANT_API_KEY, QDRANT_TLS
//	SUMMARY_MODEL       (default: command-r-plus-08-2024 for cohere, else unset)
//	MAX_CONTEXT_TOKENS  (default: 120000)
//	PAPERQA_HISTORY_DB  (default: ~/.paperqa/history.db)
func PipelineFromEnv() (*Pipeline, error) {
	p := &Pipeline{
		IndexBackend: strings.ToLower(getEnvOrDefault("INDEX_BACKEND", IndexMemory)),
		QdrantHost:   getEnvOrDefault("QDRANT_HOST", "localhost"),
		QdrantAPIKey: os.Getenv("QDRANT_API_KEY"),
		SummaryModel: os.Getenv("SUMMARY_MODEL"),
		HistoryDB:    os.Getenv("PAPERQA_HISTORY_DB"),
	}
	if p.SummaryModel == "" && cohereSelected() {
		p.SummaryModel = "command-r-plus-08-2024"
	}

	var err error
	ints := []struct {
		key      string
		fallback int
		dst      *int
	}{
		{"CHUNK_SIZE", 1000, &p.ChunkSize},
		{"CHUNK_OVERLAP", 200, &p.ChunkOverlap},
		{"RETRIEVAL_COARSE_K", 10, &p.CoarseK},
		{"RETRIEVAL_FINAL_K", 3, &p.FinalK},
		{"QDRANT_PORT", 6334, &p.QdrantPort},
		{"MAX_CONTEXT_TOKENS", 120000, &p.MaxContextTokens},
	}
	for _, i := range ints {
		if *i.dst, err = getEnvInt(i.key, i.fallback); err != nil {
			return nil, err
		}
	}
	if p.QdrantTLS, err = getEnvBool("QDRANT_TLS"); err != nil {
		return nil, err
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks the settings for internal consistency.
func (p *Pipeline) Validate() error {
	switch {
	case p.ChunkSize <= 0:
		return fmt.Errorf("config: CHUNK_SIZE must be positive, got %d", p.ChunkSize)
	case p.ChunkOverlap < 0 || p.ChunkOverlap >= p.ChunkSize:
		return fmt.Errorf("config: CHUNK_OVERLAP must be in [0, %d), got %d", p.ChunkSize, p.ChunkOverlap)
	case p.CoarseK <= 0 || p.FinalK <= 0:
		return fmt.Errorf("config: RETRIEVAL_COARSE_K and RETRIEVAL_FINAL_K must be positive")
	case p.IndexBackend != IndexMemory && p.IndexBackend != IndexQdrant:
		return fmt.Errorf("config: INDEX_BACKEND %q is not one of memory, qdrant", p.IndexBackend)
	}
	return nil
}

// cohereSelected mirrors the chat backend resolution: MODEL_PROVIDER, else
// cohere whenever COHERE_API_KEY is present.
func cohereSelected() bool {
	if v := os.Getenv("MODEL_PROVIDER"); v != "" {
		return strings.EqualFold(v, "cohere")
	}
	return os.Getenv("COHERE_API_KEY") != ""
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer, got %q", key, v)
	}
	return n, nil
}

func getEnvBool(key string) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: %s must be a boolean, got %q", key, v)
	}
	return b, nil
}
