package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/54b3r/paperqa-go/internal/logging"
)

func TestLoad_NoFile(t *testing.T) {
	t.Parallel()

	path, err := Load("/nonexistent/path/config.yaml", logging.Discard())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "" {
		t.Errorf("expected empty path, got %q", path)
	}
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
model:
  provider: cohere
  temperature: 0.3
  summary_model: command-r-plus-08-2024
  cohere:
    chat_model: command-r
embedding:
  provider: cohere
  model: embed-english-v3.0
rerank:
  provider: cohere
retrieval:
  chunk_size: 800
  chunk_overlap: 100
  coarse_k: 12
  index_backend: qdrant
qdrant:
  host: qdrant.internal
  port: 6334
logging:
  level: debug
  format: text
`)
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	checks := map[string]string{
		"MODEL_PROVIDER":     "cohere",
		"MODEL_TEMPERATURE":  "0.3",
		"SUMMARY_MODEL":      "command-r-plus-08-2024",
		"COHERE_CHAT_MODEL":  "command-r",
		"EMBEDDING_PROVIDER": "cohere",
		"EMBEDDING_MODEL":    "embed-english-v3.0",
		"RERANK_PROVIDER":    "cohere",
		"CHUNK_SIZE":         "800",
		"CHUNK_OVERLAP":      "100",
		"RETRIEVAL_COARSE_K": "12",
		"INDEX_BACKEND":      "qdrant",
		"QDRANT_HOST":        "qdrant.internal",
		"QDRANT_PORT":        "6334",
		"LOG_LEVEL":          "debug",
		"LOG_FORMAT":         "text",
	}
	// Clear env vars that the YAML should set.
	for k := range checks {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	loaded, err := Load(cfgPath, logging.Discard())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}

	for k, want := range checks {
		if got := os.Getenv(k); got != want {
			t.Errorf("%s: got %q, want %q", k, got, want)
		}
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(cfgPath, []byte("model:\n  provider: ollama\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	// Set env var before loading; it must not be overwritten.
	t.Setenv("MODEL_PROVIDER", "azure")

	if _, err := Load(cfgPath, logging.Discard()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := os.Getenv("MODEL_PROVIDER"); got != "azure" {
		t.Errorf("MODEL_PROVIDER: expected env override %q, got %q", "azure", got)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	t.Parallel()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")

	if err := os.WriteFile(cfgPath, []byte("{{invalid yaml"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(cfgPath, logging.Discard()); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestResolveConfigPath_EnvVar(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(cfgPath, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PAPERQA_CONFIG", cfgPath)

	if got := resolveConfigPath(""); got != cfgPath {
		t.Errorf("resolveConfigPath = %q, want %q", got, cfgPath)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("COHERE_API_KEY=from-dotenv\nCHUNK_SIZE=500\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("COHERE_API_KEY", "")
	os.Unsetenv("COHERE_API_KEY")
	t.Setenv("CHUNK_SIZE", "900")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("COHERE_API_KEY"); got != "from-dotenv" {
		t.Errorf("COHERE_API_KEY = %q", got)
	}
	if got := os.Getenv("CHUNK_SIZE"); got != "900" {
		t.Errorf(".env must not override the environment, CHUNK_SIZE = %q", got)
	}
}

func TestLoadDotEnv_Missing(t *testing.T) {
	t.Parallel()
	if err := LoadDotEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Errorf("missing .env should be ignored, got %v", err)
	}
}

func TestPipelineFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{
		"CHUNK_SIZE", "CHUNK_OVERLAP", "RETRIEVAL_COARSE_K", "RETRIEVAL_FINAL_K",
		"INDEX_BACKEND", "QDRANT_PORT", "QDRANT_TLS", "MAX_CONTEXT_TOKENS",
		"SUMMARY_MODEL", "MODEL_PROVIDER", "COHERE_API_KEY", "PAPERQA_HISTORY_DB",
	} {
		t.Setenv(k, "")
	}

	p, err := PipelineFromEnv()
	if err != nil {
		t.Fatalf("PipelineFromEnv: %v", err)
	}
	if p.ChunkSize != 1000 || p.ChunkOverlap != 200 || p.CoarseK != 10 || p.FinalK != 3 {
		t.Errorf("unexpected defaults: %+v", p)
	}
	if p.IndexBackend != IndexMemory || p.QdrantPort != 6334 || p.MaxContextTokens != 120000 {
		t.Errorf("unexpected defaults: %+v", p)
	}
	if p.SummaryModel != "" {
		t.Errorf("summary model should be unset without cohere, got %q", p.SummaryModel)
	}
}

func TestPipelineFromEnv_CohereSummaryModel(t *testing.T) {
	t.Setenv("MODEL_PROVIDER", "")
	t.Setenv("SUMMARY_MODEL", "")
	t.Setenv("COHERE_API_KEY", "key")

	p, err := PipelineFromEnv()
	if err != nil {
		t.Fatalf("PipelineFromEnv: %v", err)
	}
	if p.SummaryModel != "command-r-plus-08-2024" {
		t.Errorf("SummaryModel = %q", p.SummaryModel)
	}
}

func TestPipelineFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantMsg string
	}{
		{"non-numeric", map[string]string{"CHUNK_SIZE": "big"}, "CHUNK_SIZE"},
		{"overlap too large", map[string]string{"CHUNK_SIZE": "100", "CHUNK_OVERLAP": "100"}, "CHUNK_OVERLAP"},
		{"zero final k", map[string]string{"RETRIEVAL_FINAL_K": "0"}, "RETRIEVAL_FINAL_K"},
		{"unknown backend", map[string]string{"INDEX_BACKEND": "faiss"}, "INDEX_BACKEND"},
		{"bad tls", map[string]string{"QDRANT_TLS": "maybe"}, "QDRANT_TLS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{"CHUNK_SIZE", "CHUNK_OVERLAP", "RETRIEVAL_FINAL_K", "INDEX_BACKEND", "QDRANT_TLS"} {
				t.Setenv(k, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := PipelineFromEnv()
			if err == nil || !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("want error mentioning %s, got %v", tt.wantMsg, err)
			}
		})
	}
}

func TestPipeline_HistoryDisabled(t *testing.T) {
	t.Parallel()
	if !(&Pipeline{HistoryDB: "Disabled"}).HistoryDisabled() {
		t.Error("expected disabled")
	}
	if (&Pipeline{}).HistoryDisabled() {
		t.Error("empty path selects the default, not disabled")
	}
}

func TestFloat32Str(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   float32
		want string
	}{
		{0.0, ""},
		{0.2, "0.2"},
		{0.3, "0.3"},
		{1.0, "1"},
	}
	for _, tt := range tests {
		if got := float32Str(tt.in); got != tt.want {
			t.Errorf("float32Str(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
