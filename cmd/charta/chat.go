package main

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/chartalabs/chartad/internal/chat"
	"github.com/chartalabs/chartad/internal/client"
	"github.com/chartalabs/chartad/internal/stream"
)

var (
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	inputBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// Stream events delivered into the Bubble Tea loop.
type (
	frameMsg        struct{ frame stream.Frame }
	sourcesMsg      struct{ sources string }
	streamDoneMsg   struct{}
	streamClosedMsg struct{}
	streamErrMsg    struct{ err error }
)

// chatClient is the subset of the API client the model needs.
type chatClient interface {
	Chat(ctx context.Context, messages []chat.Message) (*client.Stream, error)
}

// model holds the chat TUI state. The conversation lives entirely here; the
// server is stateless and receives the full history on every turn.
type model struct {
	client   chatClient
	input    textinput.Model
	viewport viewport.Model
	spin     spinner.Model

	history []chat.Message
	current string
	sources string
	status  string

	streaming bool
	aborting  bool
	cancel    context.CancelFunc
	frames    chan tea.Msg

	ready bool
}

func newModel(c chatClient) model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot

	return model{
		client:   c,
		input:    ti,
		viewport: viewport.New(0, 0),
		spin:     sp,
		status:   "Connected. Esc aborts an in-flight answer, ctrl+c quits.",
	}
}

func (m model) Init() tea.Cmd { return textinput.Blink }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 2 + ih + 1 // header, input frame, status
		m.viewport.Width = msg.Width
		m.viewport.Height = max(3, msg.Height-reserved-1)
		m.refreshTranscript()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		case tea.KeyEsc:
			if m.streaming {
				// Abort: the partial answer is discarded entirely, as
				// though the turn never happened.
				m.aborting = true
				m.cancel()
			}
			return m, nil
		case tea.KeyEnter:
			if m.streaming {
				return m, nil
			}
			question := strings.TrimSpace(m.input.Value())
			if question == "" {
				return m, nil
			}
			return m.startTurn(question)
		}

	case sourcesMsg:
		m.sources = msg.sources
		return m, m.nextFrame()

	case frameMsg:
		return m.handleFrame(msg.frame)

	case streamDoneMsg:
		// Stream ended without a finish frame; keep whatever arrived.
		if m.current != "" {
			m.commitAssistant(m.current)
		}
		m.endStream("")
		return m, m.nextFrame()

	case streamErrMsg:
		if m.aborting || errors.Is(msg.err, context.Canceled) {
			m.current = ""
			m.endStream("Answer aborted and discarded.")
		} else {
			m.commitAssistant(errorStyle.Render("The answer could not be retrieved: " + msg.err.Error()))
			m.endStream("")
		}
		return m, m.nextFrame()

	case streamClosedMsg:
		m.frames = nil
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		if m.streaming {
			m.refreshTranscript()
			return m, cmd
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// startTurn appends the user message and launches the answer stream.
func (m model) startTurn(question string) (tea.Model, tea.Cmd) {
	m.history = append(m.history, client.UserMessage(question))
	m.input.Reset()
	m.current = ""
	m.sources = ""
	m.streaming = true
	m.aborting = false
	m.status = "Thinking..."

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	ch := make(chan tea.Msg, 32)
	m.frames = ch
	go runStream(ctx, m.client, append([]chat.Message(nil), m.history...), ch)

	m.refreshTranscript()
	return m, tea.Batch(m.nextFrame(), m.spin.Tick)
}

// handleFrame folds one protocol frame into the view state.
func (m model) handleFrame(f stream.Frame) (tea.Model, tea.Cmd) {
	switch f.Tag {
	case stream.TagDelta:
		m.current += f.Text
		m.refreshTranscript()

	case stream.TagError:
		// A delivered error replaces the in-progress answer with a
		// visible notice that stays in the history.
		m.commitAssistant(errorStyle.Render("Error: " + f.Text))
		m.endStream("")

	case stream.TagFinishMessage:
		m.commitAssistant(m.current)
		m.endStream("")
	}
	return m, m.nextFrame()
}

func (m *model) commitAssistant(content string) {
	m.history = append(m.history, client.AssistantMessage(content))
	m.current = ""
}

func (m *model) endStream(status string) {
	m.streaming = false
	m.aborting = false
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if status == "" {
		status = "Ready."
	}
	m.status = status
	m.refreshTranscript()
}

func (m *model) nextFrame() tea.Cmd {
	ch := m.frames
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return streamClosedMsg{}
		}
		return msg
	}
}

func (m *model) refreshTranscript() {
	var sb strings.Builder
	for _, msg := range m.history {
		switch msg.Role {
		case chat.RoleUser:
			sb.WriteString(userStyle.Render("You: "))
		case chat.RoleAssistant:
			sb.WriteString(assistantStyle.Render("Charta: "))
		}
		sb.WriteString(msg.Content)
		sb.WriteString("\n\n")
	}
	if m.streaming {
		sb.WriteString(assistantStyle.Render("Charta: "))
		sb.WriteString(m.current)
		sb.WriteString(" " + m.spin.View())
	}
	m.viewport.SetContent(sb.String())
	m.viewport.GotoBottom()
}

func (m model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Charta")
	status := m.status
	if m.sources != "" {
		status += "  [sections: " + m.sources + "]"
	}
	return header + "\n" +
		m.viewport.View() + "\n" +
		inputBoxStyle.Render(m.input.View()) + "\n" +
		statusStyle.Render(status)
}

// runStream drives one answer stream and forwards its events to the TUI.
// It closes ch when the stream is exhausted.
func runStream(ctx context.Context, c chatClient, messages []chat.Message, ch chan<- tea.Msg) {
	defer close(ch)

	st, err := c.Chat(ctx, messages)
	if err != nil {
		ch <- streamErrMsg{err: err}
		return
	}
	defer st.Close()

	if s := st.Sources(); s != "" {
		ch <- sourcesMsg{sources: s}
	}

	for {
		f, err := st.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				ch <- streamDoneMsg{}
			} else if ctx.Err() != nil {
				ch <- streamErrMsg{err: context.Canceled}
			} else {
				ch <- streamErrMsg{err: err}
			}
			return
		}
		ch <- frameMsg{frame: f}
		if f.Tag == stream.TagFinishMessage || f.Tag == stream.TagError {
			return
		}
	}
}
