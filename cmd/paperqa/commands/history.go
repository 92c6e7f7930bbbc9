package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/54b3r/paperqa-go/internal/config"
	"github.com/54b3r/paperqa-go/internal/loader"
	"github.com/54b3r/paperqa-go/internal/logging"
	"github.com/54b3r/paperqa-go/internal/store"
)

// NewHistoryCmd constructs the `paperqa history` command, which lists past
// answers and summaries recorded for a document. Exchanges are keyed by the
// document's content, so a renamed copy shows the same history.
func NewHistoryCmd() *cobra.Command {
	var (
		file  string
		limit int
	)

	cmd := &cobra.Command{
		Use:     "history",
		Short:   "Show past questions and answers for a document",
		Example: `  paperqa history --file paper.pdf --limit 5`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if file == "" {
				return fmt.Errorf("history: --file is required")
			}
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			pipeline, err := config.PipelineFromEnv()
			if err != nil {
				return fmt.Errorf("history: %w", err)
			}
			if pipeline.HistoryDisabled() {
				return fmt.Errorf("history: disabled via PAPERQA_HISTORY_DB=disabled")
			}
			hs := openHistory(pipeline, log)
			if hs == nil {
				return fmt.Errorf("history: store unavailable (see logs)")
			}
			defer hs.Close()

			doc, err := loader.New(nil).Load(ctx, file)
			if err != nil {
				return userError("history", err)
			}
			exchanges, err := hs.Recent(ctx, store.DocumentKey(doc.Text), limit)
			if err != nil {
				return fmt.Errorf("history: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(exchanges) == 0 {
				_, err := fmt.Fprintf(out, "No history for %s\n", file)
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
			fmt.Fprintln(tw, "WHEN\tKIND\tQUERY\tANSWER")
			for _, ex := range exchanges {
				query := ex.Query
				if query == "" {
					query = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
					ex.CreatedAt.Local().Format(time.DateTime), ex.Kind, preview(query, 40), preview(ex.Answer, 60))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Document path, URL or arXiv id")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of exchanges to show")
	return cmd
}
