package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/54b3r/paperqa-go/internal/agent"
	"github.com/54b3r/paperqa-go/internal/logging"
)

// NewAskCmd constructs the `paperqa ask` command, which loads a document and
// answers one question about it, or summarises it with --summarise.
func NewAskCmd() *cobra.Command {
	var (
		file        string
		query       string
		summarise   bool
		showSources bool
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask one question about a document",
		Long: `Load a document, retrieve the passages most relevant to the question and
answer from those passages only.

The document may be a local file (PDF, txt, md, docx, odt, rtf, xlsx), an
http(s) URL or an arXiv identifier.

Examples:
  paperqa ask --file paper.pdf "What dataset was used?"
  paperqa ask --file 1706.03762 --query "How many attention heads?" --show-sources
  paperqa ask --file notes.md --summarise`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if query == "" && len(args) == 1 {
				query = args[0]
			}
			switch {
			case file == "":
				return fmt.Errorf("ask: --file is required")
			case summarise && query != "":
				return fmt.Errorf("ask: use either a question or --summarise, not both")
			case !summarise && query == "":
				return fmt.Errorf("ask: provide a question or --summarise")
			}

			ctx := cmd.Context()
			rt, err := buildRuntime(ctx, logging.FromContext(ctx))
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer rt.Close()

			out := cmd.OutOrStdout()
			if summarise {
				summary, err := rt.agent.SummarizeSource(ctx, file)
				if err != nil {
					return userError("ask", err)
				}
				_, err = fmt.Fprintln(out, summary)
				return err
			}

			res, err := rt.agent.AnswerSource(ctx, file, query)
			if err != nil {
				return userError("ask", err)
			}
			return printResult(out, res, showSources)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Document path, URL or arXiv id")
	cmd.Flags().StringVarP(&query, "query", "q", "", "Question to answer")
	cmd.Flags().BoolVarP(&summarise, "summarise", "s", false, "Summarise the whole document instead")
	cmd.Flags().BoolVar(&showSources, "show-sources", false, "Print the passages the answer was grounded on")

	return cmd
}

// printResult writes the answer and, with sources, the grounding passages.
func printResult(w io.Writer, res *agent.Result, sources bool) error {
	if _, err := fmt.Fprintln(w, res.Answer); err != nil {
		return err
	}
	if !sources || res.Grounding.Len() == 0 {
		return nil
	}
	label := "coarse"
	if res.Grounding.Reranked {
		label = "reranked"
	}
	fmt.Fprintf(w, "\nSources (%s):\n", label)
	for _, p := range res.Grounding.Passages {
		fmt.Fprintf(w, "  [%d] score=%.3f  %s\n", p.Index, p.Score, preview(p.Text, 80))
	}
	return nil
}

// preview returns the first n runes of s on one line.
func preview(s string, n int) string {
	r := []rune(s)
	for i, c := range r {
		if c == '\n' || c == '\r' || c == '\t' {
			r[i] = ' '
		}
	}
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}
