package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/paperqa-go/internal/agent"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response. It must
	// exceed OperationTimeout.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// OperationTimeout bounds each load, ask and summary call (default: 3m).
	OperationTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, slog.Default is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on document
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on /api/documents routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MaxSessions caps the number of loaded documents held in memory. When
	// full, the least recently used session is evicted. Values below one
	// select the default of 32.
	MaxSessions int
	// SessionTTL evicts sessions idle for longer than this. Defaults to 30m;
	// a negative value disables idle eviction.
	SessionTTL time.Duration
	// MaxUploadBytes caps multipart uploads. Defaults to 50 MiB.
	MaxUploadBytes int64
	// AllowLocalPaths lets JSON requests name files on the server's disk.
	// Off by default; uploads and URLs are always accepted.
	AllowLocalPaths bool
	// RerankEnabled reports whether the retriever has a reranker, so
	// answers without a reranked grounding are counted as fallbacks.
	RerankEnabled bool
	// MetricsRegistry receives the server's collectors. Defaults to
	// prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// documentAgent is the subset of *agent.Agent the handlers call.
type documentAgent interface {
	LoadDocument(ctx context.Context, source string) (*agent.DocumentSession, error)
	Summarize(ctx context.Context, s *agent.DocumentSession) (string, error)
	AnswerQuery(ctx context.Context, s *agent.DocumentSession, query string) (*agent.Result, error)
}

// Server exposes an Agent over HTTP.
type Server struct {
	// agent answers and summarises loaded documents.
	agent documentAgent
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// sessions holds the loaded documents.
	sessions *registry
	// metrics holds the Prometheus collectors.
	metrics *serverMetrics
	// stop halts background goroutines (rate limiter and session eviction).
	stop []func()
}

// loadRequest is the JSON body for POST /api/documents.
type loadRequest struct {
	// Source is a URL, an arXiv identifier or, when enabled, a local path.
	Source string `json:"source"`
}

// documentResponse describes a loaded document session.
type documentResponse struct {
	// ID is the session identifier used in later requests.
	ID string `json:"id"`
	// Name is the upload filename or source string.
	Name string `json:"name"`
	// Title is the inferred document title.
	Title string `json:"title"`
	// Passages is the number of indexed passages.
	Passages int `json:"passages"`
	// LoadedAt is when the session was built.
	LoadedAt time.Time `json:"loadedAt"`
}

// askRequest is the JSON body for POST /api/documents/{id}/ask.
type askRequest struct {
	// Query is the user's question.
	Query string `json:"query"`
}

// sourceRef is one grounding passage in an answer.
type sourceRef struct {
	// Index is the passage position in the document.
	Index int `json:"index"`
	// Score is the cosine similarity the passage was shortlisted on.
	Score float32 `json:"score"`
	// Text is the passage content.
	Text string `json:"text"`
}

// askResponse is the JSON response for POST /api/documents/{id}/ask.
type askResponse struct {
	// Answer is the generated answer.
	Answer string `json:"answer"`
	// Reranked is true when the sources were ordered by the reranker.
	Reranked bool `json:"reranked"`
	// Sources are the grounding passages, most relevant first.
	Sources []sourceRef `json:"sources"`
}

// summaryResponse is the JSON response for POST /api/documents/{id}/summary.
type summaryResponse struct {
	// Summary is the generated summary.
	Summary string `json:"summary"`
}

// errorResponse is the JSON body of every non-2xx API response.
type errorResponse struct {
	// Error is a user-facing message.
	Error string `json:"error"`
}
