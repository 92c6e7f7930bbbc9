package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/54b3r/paperqa-go/internal/logging"
	"github.com/54b3r/paperqa-go/internal/server"
)

// NewServeCmd constructs the `paperqa serve` command, which exposes the
// document pipeline over HTTP.
func NewServeCmd() *cobra.Command {
	var (
		host            string
		port            int
		maxSessions     int
		sessionTTL      time.Duration
		allowLocalPaths bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the paperqa HTTP API",
		Long: `Start the paperqa HTTP API.

Documents are loaded with POST /api/documents (multipart "file" upload or
JSON {"source": "..."}) and queried with POST /api/documents/{id}/ask.
Loaded documents are held in memory until deleted, evicted as least
recently used, or idle for longer than --session-ttl.

PAPERQA_API_KEY enables bearer authentication on /api/documents.

Examples:
  paperqa serve
  paperqa serve --port 9090 --max-sessions 8
  INDEX_BACKEND=qdrant paperqa serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			log := logging.FromContext(ctx)

			rt, err := buildRuntime(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer rt.Close()

			pingers := []server.Pinger{server.NewLLMPinger(rt.chat, string(rt.providerCfg.Backend))}
			if rt.qdrant != nil {
				pingers = append(pingers, server.NewQdrantPinger(rt.qdrant))
			}

			srv, err := server.New(rt.agent, &server.Config{
				Host:            host,
				Port:            port,
				Logger:          log,
				Pingers:         pingers,
				APIKey:          os.Getenv("PAPERQA_API_KEY"),
				MaxSessions:     maxSessions,
				SessionTTL:      sessionTTL,
				AllowLocalPaths: allowLocalPaths,
				RerankEnabled:   rt.reranking,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			log.Info("serve starting",
				slog.String("provider", string(rt.providerCfg.Backend)),
				slog.String("index_backend", rt.pipeline.IndexBackend),
				slog.Bool("rerank", rt.reranking),
			)
			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")
	cmd.Flags().IntVar(&maxSessions, "max-sessions", 32, "Maximum number of documents held in memory")
	cmd.Flags().DurationVar(&sessionTTL, "session-ttl", 30*time.Minute, "Evict documents idle for longer than this")
	cmd.Flags().BoolVar(&allowLocalPaths, "allow-local-paths", false, "Let JSON load requests read files on this machine")

	return cmd
}
