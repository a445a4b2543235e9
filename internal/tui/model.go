package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"pdfrag/internal/conversation"
	"pdfrag/internal/domain"
	"pdfrag/internal/responder"
	"pdfrag/internal/service"
)

// ChatPort is the TUI-facing subset of the RAG service.
type ChatPort interface {
	Ask(ctx context.Context, conv *conversation.Conversation, question string) (*service.Answer, error)
}

type (
	answerMsg   struct{ answer *service.Answer }
	fragmentMsg struct{ text string }
	doneMsg     struct{}
	errMsg      struct{ err error }
	savedMsg    struct{ err error }
)

// Model is the Bubble Tea model for the chat.
type Model struct {
	ctx     context.Context
	service ChatPort
	conv    *conversation.Conversation
	persist func() error

	input       textinput.Model
	viewport    viewport.Model
	summary     string
	status      string
	ready       bool
	showSources bool

	sources   []domain.SearchResult
	cursor    int
	lastQuery string

	// pending is set while an Ask call has not returned yet.
	pending  bool
	stream   responder.Stream
	question string
	partial  string
}

// New creates a chat model. persist, when non-nil, is called after every
// completed answer to save the conversation.
func New(ctx context.Context, svc ChatPort, conv *conversation.Conversation, summary string, persist func() error) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question about your documents and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		ctx:      ctx,
		service:  svc,
		conv:     conv,
		persist:  persist,
		input:    ti,
		viewport: vp,
		summary:  summary,
		status:   "Ready. Tab toggles sources.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) streaming() bool { return m.pending || m.stream != nil }

// Update handles key, window and streaming events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around the chat and input boxes
		_, ch := chatBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 2 + 1 + ih + 1 // header + summary, status, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-ch)
		m.refresh()
		return m, nil

	case answerMsg:
		m.pending = false
		m.stream = msg.answer.Stream
		m.sources = msg.answer.Sources
		m.cursor = 0
		m.status = fmt.Sprintf("Answering from %d sources...", len(m.sources))
		m.refresh()
		return m, recv(m.stream)

	case fragmentMsg:
		m.partial += msg.text
		m.refresh()
		return m, recv(m.stream)

	case doneMsg:
		m.stream.Close()
		m.stream = nil
		m.question, m.partial = "", ""
		m.status = fmt.Sprintf("Answered with %d sources.", len(m.sources))
		m.refresh()
		if m.persist == nil {
			return m, nil
		}
		return m, save(m.persist)

	case errMsg:
		m.pending = false
		if m.stream != nil {
			m.stream.Close()
			m.stream = nil
		}
		m.question, m.partial = "", ""
		m.status = "Error: " + msg.err.Error()
		m.refresh()
		return m, nil

	case savedMsg:
		if msg.err != nil {
			m.status = "Error saving history: " + msg.err.Error()
		}
		return m, nil

	case tea.KeyMsg:
		// Global quits
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			if m.stream != nil {
				m.stream.Close()
			}
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.streaming() {
				return m, nil
			}
			m.input.SetValue("")
			m.pending = true
			m.question = q
			m.lastQuery = q
			m.partial = ""
			m.status = "Searching..."
			m.refresh()
			return m, ask(m.ctx, m.service, m.conv, q)
		case "tab":
			m.showSources = !m.showSources
			m.refresh()
			return m, nil
		case "down":
			if m.showSources && len(m.sources) > 0 {
				m.cursor = (m.cursor + 1) % len(m.sources)
				m.refresh()
				return m, nil
			}
		case "up":
			if m.showSources && len(m.sources) > 0 {
				m.cursor = (m.cursor - 1 + len(m.sources)) % len(m.sources)
				m.refresh()
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func ask(ctx context.Context, svc ChatPort, conv *conversation.Conversation, q string) tea.Cmd {
	return func() tea.Msg {
		answer, err := svc.Ask(ctx, conv, q)
		if err != nil {
			return errMsg{err}
		}
		return answerMsg{answer}
	}
}

func recv(s responder.Stream) tea.Cmd {
	return func() tea.Msg {
		frag, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return doneMsg{}
		}
		if err != nil {
			return errMsg{err}
		}
		return fragmentMsg{frag}
	}
}

func save(persist func() error) tea.Cmd {
	return func() tea.Msg { return savedMsg{persist()} }
}

func (m *Model) refresh() {
	if m.showSources {
		m.viewport.SetContent(m.renderCurrentSource())
		return
	}
	m.viewport.SetContent(m.renderChat())
	m.viewport.GotoBottom()
}

// View renders the TUI layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("PDF Chat")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	body := chatBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	return header + "\n" + summary + "\n" + body + "\n" + input + "\n" + status
}

func (m Model) renderChat() string {
	var b strings.Builder
	for _, t := range m.conv.Turns() {
		writeTurn(&b, t.Role, t.Content)
	}
	if m.question != "" {
		writeTurn(&b, domain.RoleUser, m.question)
		writeTurn(&b, domain.RoleAssistant, m.partial+"▌")
	}
	if b.Len() == 0 {
		return "No messages yet."
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeTurn(b *strings.Builder, role domain.Role, content string) {
	if role == domain.RoleUser {
		b.WriteString(userStyle.Render("You: "))
	} else {
		b.WriteString(assistantStyle.Render("Assistant: "))
	}
	b.WriteString(content)
	b.WriteString("\n\n")
}

func (m Model) renderCurrentSource() string {
	if len(m.sources) == 0 {
		return "No sources yet."
	}
	r := m.sources[m.cursor]
	title := fmt.Sprintf("Source %d/%d  %s  score=%.3f", m.cursor+1, len(m.sources), responder.Label(r), r.Score)
	body := highlightBestSentence(r.Entry.Chunk.Text, m.lastQuery)
	return title + "\n\n" + body
}

var (
	chatBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
)
