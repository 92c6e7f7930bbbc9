package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/paperqa-go/internal/logging"
)

// NewSummarizeCmd constructs the `paperqa summarize` command. Summaries are
// generated from the full document text and skip retrieval entirely.
func NewSummarizeCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:     "summarize",
		Aliases: []string{"summarise"},
		Short:   "Summarise a whole document",
		Example: `  paperqa summarize --file paper.pdf
  paperqa summarize --file https://arxiv.org/abs/1706.03762`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if file == "" {
				return fmt.Errorf("summarize: --file is required")
			}
			ctx := cmd.Context()
			rt, err := buildRuntime(ctx, logging.FromContext(ctx))
			if err != nil {
				return fmt.Errorf("summarize: %w", err)
			}
			defer rt.Close()

			summary, err := rt.agent.SummarizeSource(ctx, file)
			if err != nil {
				return userError("summarize", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), summary)
			return err
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Document path, URL or arXiv id")
	return cmd
}
