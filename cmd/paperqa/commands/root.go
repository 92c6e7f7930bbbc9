// Package commands defines all Cobra CLI commands for the paperqa binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/54b3r/paperqa-go/internal/audit"
	"github.com/54b3r/paperqa-go/internal/config"
	"github.com/54b3r/paperqa-go/internal/logging"
	"github.com/54b3r/paperqa-go/internal/tracing"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// envFile holds the --env-file flag value.
var envFile string

// flushTracing is set when Langfuse tracing was installed for this run.
var flushTracing func()

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "paperqa",
		Short: "Ask questions about a document and get grounded answers",
		Long: `paperqa loads one document (PDF, text, Office file, URL or arXiv id),
splits it into passages, embeds them and answers questions from the most
relevant passages. Summaries are generated from the full text.

Model, embedding and rerank backends are selected via environment variables
(MODEL_PROVIDER, EMBEDDING_PROVIDER, RERANK_PROVIDER), a .env file, or a
YAML config file (~/.paperqa/config.yaml).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// .env never overrides the real environment; YAML fills what is left.
			if err := config.LoadDotEnv(envFile); err != nil {
				return err
			}
			log := logging.New()
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}

			ctx := logging.WithLogger(cmd.Context(), log)
			cmd.SetContext(ctx)
			audit.LogCommandStart(ctx, log, cmd.Name(), path)

			if flush, ok := tracing.Install(); ok {
				flushTracing = flush
				log.Debug("langfuse tracing enabled")
			}
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if flushTracing != nil {
				flushTracing()
			}
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.paperqa/config.yaml)")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a dotenv file loaded before the config")

	root.AddCommand(
		NewAskCmd(),
		NewSummarizeCmd(),
		NewChatCmd(),
		NewServeCmd(),
		NewHistoryCmd(),
		NewEmbedCmd(),
		NewVersionCmd(),
	)

	return root
}
