// Package tui implements `paperqa chat`: an interactive terminal session
// over one loaded document, built on Bubble Tea.
package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/54b3r/paperqa-go/internal/agent"
)

// LoadingStatus is shown while a document is being loaded and indexed.
const LoadingStatus = "Getting file context..."

// DefaultRevealInterval is the delay between revealed words of an answer.
const DefaultRevealInterval = 25 * time.Millisecond

// Agent is the subset of *agent.Agent the chat needs.
type Agent interface {
	LoadDocument(ctx context.Context, source string) (*agent.DocumentSession, error)
	Summarize(ctx context.Context, s *agent.DocumentSession) (string, error)
	AnswerQuery(ctx context.Context, s *agent.DocumentSession, query string) (*agent.Result, error)
}

// Options configures a chat Model.
type Options struct {
	// Source is the document to load.
	Source string
	// RevealInterval paces the word-by-word reveal. Zero selects
	// DefaultRevealInterval; a negative value shows answers at once.
	RevealInterval time.Duration
	// Changes, when set, triggers a reload each time it receives.
	Changes <-chan struct{}
	// ShowSources appends passage indices and scores to each answer.
	ShowSources bool
}

// role labels a transcript entry.
type role int

const (
	roleUser role = iota
	roleAssistant
	roleSystem
)

// entry is one line of the transcript.
type entry struct {
	role role
	text string
}

// Messages produced by commands.
type (
	loadedMsg struct {
		session *agent.DocumentSession
		err     error
	}
	replyMsg struct {
		text string
		err  error
	}
	revealTickMsg  struct{}
	fileChangedMsg struct{}
)

// Model is the Bubble Tea model for the chat.
type Model struct {
	ctx      context.Context
	agent    Agent
	opts     Options
	session  *agent.DocumentSession
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	transcript []entry
	// pending holds the words of the answer still to be revealed.
	pending []string
	busy    bool
	// reloadPending defers a file change seen while busy.
	reloadPending bool
	status        string
}

// New creates a chat model. The document is loaded when the program starts.
func New(ctx context.Context, a Agent, opts Options) Model {
	if opts.RevealInterval == 0 {
		opts.RevealInterval = DefaultRevealInterval
	}
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about the document, /summary, /help"
	ti.CharLimit = 0
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	return Model{
		ctx:      ctx,
		agent:    a,
		opts:     opts,
		input:    ti,
		viewport: viewport.New(80, 20),
		spinner:  sp,
		busy:     true,
		status:   LoadingStatus,
	}
}

// Session returns the currently loaded document, if any.
func (m Model) Session() *agent.DocumentSession { return m.session }

// Init starts loading the document.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.load(), m.waitForChange())
}

// Update handles input and command results.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		fx, fy := transcriptStyle.GetFrameSize()
		m.viewport.Width = max(20, msg.Width-fx)
		m.viewport.Height = max(3, msg.Height-fy-4)
		m.input.Width = max(10, msg.Width-4)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case loadedMsg:
		if msg.err != nil {
			m.status = "Load failed"
			m.append(roleSystem, "Error: "+msg.err.Error())
			return m, m.settle()
		}
		if m.session != nil {
			_ = m.session.Close()
		}
		m.session = msg.session
		m.status = fmt.Sprintf("Loaded %s (%d passages)", titleOf(msg.session), msg.session.PassageCount())
		m.refresh()
		return m, m.settle()

	case replyMsg:
		if msg.err != nil {
			m.status = "Request failed"
			m.append(roleSystem, "Error: "+msg.err.Error())
			return m, m.settle()
		}
		m.status = "Ready"
		m.transcript = append(m.transcript, entry{role: roleAssistant})
		m.pending = splitWords(msg.text)
		return m, m.reveal()

	case revealTickMsg:
		return m, m.reveal()

	case fileChangedMsg:
		// The session in use must not be closed under an in-flight request.
		if m.busy {
			m.reloadPending = true
			return m, m.waitForChange()
		}
		return m, tea.Batch(m.reload(), m.waitForChange())

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit handles Enter: slash commands, or a question.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || m.busy {
		return m, nil
	}
	m.input.Reset()

	switch strings.ToLower(text) {
	case "/quit", "/exit":
		return m, tea.Quit
	case "/help":
		m.append(roleSystem, helpText)
		return m, nil
	case "/summary", "/summarise", "/summarize":
		m.append(roleUser, text)
		m.busy = true
		m.status = "Summarising..."
		return m, tea.Batch(m.summarize(), m.spinner.Tick)
	}

	m.append(roleUser, text)
	m.busy = true
	m.status = "Thinking..."
	return m, tea.Batch(m.ask(text), m.spinner.Tick)
}

// reveal moves the next word of the pending answer into the transcript.
func (m *Model) reveal() tea.Cmd {
	if len(m.pending) == 0 {
		return m.settle()
	}
	last := &m.transcript[len(m.transcript)-1]
	if m.opts.RevealInterval < 0 {
		last.text += strings.Join(m.pending, "")
		m.pending = nil
		m.refresh()
		return m.settle()
	}
	last.text += m.pending[0]
	m.pending = m.pending[1:]
	m.refresh()
	return tea.Tick(m.opts.RevealInterval, func(time.Time) tea.Msg { return revealTickMsg{} })
}

// settle marks the model idle and starts any reload deferred while busy.
func (m *Model) settle() tea.Cmd {
	m.busy = false
	if !m.reloadPending {
		return nil
	}
	m.reloadPending = false
	return m.reload()
}

func (m *Model) reload() tea.Cmd {
	m.append(roleSystem, "File changed, reloading.")
	m.busy = true
	m.status = LoadingStatus
	return tea.Batch(m.load(), m.spinner.Tick)
}

func (m Model) load() tea.Cmd {
	ctx, a, source := m.ctx, m.agent, m.opts.Source
	return func() tea.Msg {
		s, err := a.LoadDocument(ctx, source)
		return loadedMsg{session: s, err: err}
	}
}

func (m Model) ask(query string) tea.Cmd {
	ctx, a, s, show := m.ctx, m.agent, m.session, m.opts.ShowSources
	return func() tea.Msg {
		res, err := a.AnswerQuery(ctx, s, query)
		if err != nil {
			return replyMsg{err: err}
		}
		text := res.Answer
		if show && res.Grounding.Len() > 0 {
			text += "\n" + formatSources(res)
		}
		return replyMsg{text: text}
	}
}

func (m Model) summarize() tea.Cmd {
	ctx, a, s := m.ctx, m.agent, m.session
	return func() tea.Msg {
		text, err := a.Summarize(ctx, s)
		return replyMsg{text: text, err: err}
	}
}

func (m Model) waitForChange() tea.Cmd {
	ch := m.opts.Changes
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return fileChangedMsg{}
	}
}

func (m *Model) append(r role, text string) {
	m.transcript = append(m.transcript, entry{role: r, text: text})
	m.refresh()
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

// View renders the header, transcript, input and status line.
func (m Model) View() string {
	header := headerStyle.Render("paperqa") + " " + mutedStyle.Render(m.opts.Source)
	status := statusStyle.Render(m.status)
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	return header + "\n" +
		transcriptStyle.Render(m.viewport.View()) + "\n" +
		m.input.View() + "\n" +
		status
}

func (m Model) renderTranscript() string {
	if len(m.transcript) == 0 {
		return mutedStyle.Render("Ask a question about the document. /summary summarises it, /quit exits.")
	}
	width := max(20, m.viewport.Width)
	var b strings.Builder
	for i, e := range m.transcript {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch e.role {
		case roleUser:
			b.WriteString(userStyle.Render("You: "))
			b.WriteString(e.text)
		case roleAssistant:
			b.WriteString(assistantStyle.Render("Agent: "))
			b.WriteString(lipgloss.NewStyle().Width(width).Render(e.text))
		default:
			b.WriteString(mutedStyle.Render(e.text))
		}
	}
	return b.String()
}

// wordRe matches a word with its trailing whitespace so the reveal
// preserves line breaks.
var wordRe = regexp.MustCompile(`\S+\s*|\s+`)

func splitWords(s string) []string {
	return wordRe.FindAllString(s, -1)
}

func formatSources(res *agent.Result) string {
	parts := make([]string, 0, res.Grounding.Len())
	for _, p := range res.Grounding.Passages {
		parts = append(parts, fmt.Sprintf("#%d (%.2f)", p.Index, p.Score))
	}
	return "Sources: " + strings.Join(parts, ", ")
}

func titleOf(s *agent.DocumentSession) string {
	if t := s.Title(); t != "" {
		return t
	}
	return s.Source()
}

const helpText = "Commands: /summary summarises the whole document, /quit exits. Anything else is a question."

var (
	headerStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	mutedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	userStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
	assistantStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	spinnerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	transcriptStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)
