package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/54b3r/paperqa-go/internal/chunker"
	"github.com/54b3r/paperqa-go/internal/config"
	"github.com/54b3r/paperqa-go/internal/embedder"
	"github.com/54b3r/paperqa-go/internal/loader"
	"github.com/54b3r/paperqa-go/internal/logging"
	"github.com/54b3r/paperqa-go/internal/rag"
)

// NewEmbedCmd constructs the `paperqa embed` command, a smoke test for the
// embedding backend: it chunks a document, embeds every passage and prints
// the vector dimensions with a text preview.
func NewEmbedCmd() *cobra.Command {
	var (
		file  string
		limit int
	)

	cmd := &cobra.Command{
		Use:     "embed",
		Short:   "Embed a document's passages and print their dimensions",
		Example: `  EMBEDDING_PROVIDER=ollama paperqa embed --file notes.md`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if file == "" {
				return fmt.Errorf("embed: --file is required")
			}
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			pipeline, err := config.PipelineFromEnv()
			if err != nil {
				return fmt.Errorf("embed: %w", err)
			}
			if err := embedder.Validate(log); err != nil {
				return fmt.Errorf("embed: %w", err)
			}
			emb, err := embedder.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("embed: failed to initialise embedder: %w", err)
			}
			log.Debug("embedder initialised", slog.String("backend", embedder.ResolveBackend()))

			doc, err := loader.New(nil).Load(ctx, file)
			if err != nil {
				return userError("embed", err)
			}
			passages, err := chunker.Split(doc.Text, pipeline.ChunkSize, pipeline.ChunkOverlap)
			if err != nil {
				return fmt.Errorf("embed: %w", err)
			}
			vectors, err := emb.Embed(ctx, chunker.Texts(passages), rag.RoleDocument)
			if err != nil {
				return userError("embed", err)
			}
			if len(vectors) != len(passages) {
				return fmt.Errorf("embed: backend returned %d vectors for %d passages", len(vectors), len(passages))
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d passages, backend %s\n", doc.Title, len(passages), embedder.ResolveBackend())
			for i, p := range passages {
				if limit > 0 && i >= limit {
					fmt.Fprintf(out, "... %d more\n", len(passages)-i)
					break
				}
				fmt.Fprintf(out, "[%d] dims=%d  %s\n", p.Index, len(vectors[i]), preview(p.Text, 60))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Document path, URL or arXiv id")
	cmd.Flags().IntVarP(&limit, "max", "n", 10, "Maximum number of passages to list (0 for all)")
	return cmd
}
