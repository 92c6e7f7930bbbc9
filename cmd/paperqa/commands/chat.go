package commands

import (
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/54b3r/paperqa-go/internal/loader"
	"github.com/54b3r/paperqa-go/internal/logging"
	"github.com/54b3r/paperqa-go/internal/tui"
)

// NewChatCmd constructs the `paperqa chat` command: an interactive terminal
// session over one document.
func NewChatCmd() *cobra.Command {
	var (
		file        string
		watch       bool
		showSources bool
		instant     bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with a document in the terminal",
		Long: `Open an interactive chat over one document. Type a question and press
Enter; /summary summarises the whole document, /quit exits.

With --watch a local file is reloaded and re-indexed whenever it changes.
Logs go to LOG_FILE when set and are discarded otherwise.`,
		Example: `  paperqa chat --file paper.pdf
  paperqa chat --file draft.md --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if file == "" {
				return fmt.Errorf("chat: --file is required")
			}

			// The terminal belongs to the UI.
			log := logging.NewWithWriter(io.Discard)
			if os.Getenv("LOG_FILE") != "" {
				log = logging.New()
			}
			ctx := logging.WithLogger(cmd.Context(), log)

			rt, err := buildRuntime(ctx, log)
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}
			defer rt.Close()

			opts := tui.Options{Source: file, ShowSources: showSources}
			if instant {
				opts.RevealInterval = -1
			}
			if watch {
				ref, err := loader.Resolve(file)
				if err != nil {
					return userError("chat", err)
				}
				if ref.Kind != loader.KindFile {
					return fmt.Errorf("chat: --watch needs a local file, got %s", file)
				}
				fw, err := tui.WatchFile(ctx, ref.Location, tui.DefaultDebounce)
				if err != nil {
					return fmt.Errorf("chat: %w", err)
				}
				defer fw.Close()
				opts.Changes = fw.Changes()
			}

			m := tui.New(ctx, rt.agent, opts)
			final, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			if fm, ok := final.(tui.Model); ok && fm.Session() != nil {
				_ = fm.Session().Close()
			}
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Document path, URL or arXiv id")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Reload the document when the file changes")
	cmd.Flags().BoolVar(&showSources, "show-sources", false, "Show grounding passage indices with each answer")
	cmd.Flags().BoolVar(&instant, "no-reveal", false, "Print answers at once instead of word by word")
	return cmd
}
