// Package tui is the chat-style terminal front end. Plain text is stored as
// feedback for the current brand; slash commands drive the group and
// generation flow.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"brandviz.io/studio/internal/core"
	"brandviz.io/studio/internal/domain"
	"brandviz.io/studio/internal/download"
	"brandviz.io/studio/internal/logging"
)

const (
	headerHeight = 2
	footerHeight = 1
	inputHeight  = 3
)

type Config struct {
	Brand      string
	BatchDelay time.Duration
}

// Model is the bubbletea model of the chat front end.
type Model struct {
	textinput textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	styles    Styles

	messages []*domain.ChatMessage
	brand    string
	width    int
	height   int
	ready    bool

	ctx         context.Context
	preferences *core.PreferenceService
	studio      *core.StudioService
	downloader  *download.Downloader
	batchDelay  time.Duration
	logger      *zap.Logger
}

// replyMsg resolves the assistant message with the given id.
type replyMsg struct {
	id     string
	text   string
	images []domain.GeneratedImage
	err    error
}

func New(ctx context.Context, cfg Config, preferences *core.PreferenceService, studio *core.StudioService, downloader *download.Downloader, logger *zap.Logger) Model {
	if ctx == nil {
		ctx = context.Background()
	}
	styles := DefaultStyles()

	ti := textinput.New()
	ti.Placeholder = "Describe what you like, or /help for commands"
	ti.Focus()
	ti.Prompt = "│ "
	ti.CharLimit = 2000
	ti.Width = 80

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	return Model{
		textinput:   ti,
		viewport:    viewport.New(80, 20),
		spinner:     sp,
		styles:      styles,
		brand:       strings.TrimSpace(cfg.Brand),
		ctx:         ctx,
		preferences: preferences,
		studio:      studio,
		downloader:  downloader,
		batchDelay:  cfg.BatchDelay,
		logger:      logging.OrNop(logger).Named("tui"),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			input := strings.TrimSpace(m.textinput.Value())
			m.textinput.Reset()
			if input == "" {
				return m, nil
			}
			var cmd tea.Cmd
			m, cmd = m.submit(input)
			m.refresh()
			return m, tea.Batch(cmd, m.spinner.Tick)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		height := max(msg.Height-headerHeight-footerHeight-inputHeight, 3)
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.textinput.Width = max(msg.Width-6, 10)
		m.refresh()

	case spinner.TickMsg:
		if m.loading() {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			m.refresh()
			return m, cmd
		}
		return m, nil

	case replyMsg:
		m.resolve(msg)
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.textinput, cmd = m.textinput.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// submit appends the user turn and a pending assistant turn, and returns
// the command that will resolve it.
func (m Model) submit(input string) (Model, tea.Cmd) {
	m.messages = append(m.messages, domain.NewUserMessage(input, ""))
	reply := domain.NewPendingReply()
	m.messages = append(m.messages, reply)

	if strings.HasPrefix(input, "/") {
		return m.handleCommand(reply, input)
	}
	if m.brand == "" {
		reply.Fail(fmt.Errorf("set a brand first with /brand <name>"))
		return m, nil
	}
	return m, m.storeNote(reply.ID, m.brand, input)
}

func (m *Model) resolve(msg replyMsg) {
	for _, message := range m.messages {
		if message.ID != msg.id {
			continue
		}
		if msg.err != nil {
			message.Fail(msg.err)
		} else {
			message.Resolve(msg.text, msg.images)
		}
		return
	}
	m.logger.Debug("Reply for unknown message", zap.String("id", msg.id))
}

func (m Model) loading() bool {
	for _, message := range m.messages {
		if message.Loading {
			return true
		}
	}
	return false
}

// Messages returns the conversation so far.
func (m Model) Messages() []*domain.ChatMessage {
	return m.messages
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
}

func (m Model) renderHistory() string {
	var sb strings.Builder
	for _, message := range m.messages {
		if message.Sender == domain.SenderUser {
			sb.WriteString(m.styles.User.Render("You") + "\n")
			sb.WriteString(m.styles.Body.Render(message.Prompt) + "\n")
			continue
		}

		sb.WriteString(m.styles.Assistant.Render("Studio") + "\n")
		switch {
		case message.Loading:
			sb.WriteString(m.styles.Muted.Render(m.spinner.View()+" working...") + "\n")
		case message.Failed:
			sb.WriteString(m.styles.Error.Render("Error: "+message.Text) + "\n")
		default:
			sb.WriteString(m.styles.Body.Render(message.Text) + "\n")
			for _, img := range message.Images {
				src := img.URL
				if img.Inline() {
					src = "(inline image, use /download to save it)"
				}
				sb.WriteString(m.styles.Muted.Render(fmt.Sprintf("v%d  %s", img.VariationNumber, src)) + "\n")
			}
		}
	}
	return sb.String()
}

func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	snap := m.studio.State().Snapshot()
	brand := m.brand
	if brand == "" {
		brand = "no brand"
	}
	header := m.styles.Header.Render(fmt.Sprintf("Brand Studio · %s · threshold %.2f · %s", brand, snap.Threshold, snap.Phase))
	footer := m.styles.Footer.Render("Enter to send · /help for commands · Esc to quit")

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		m.viewport.View(),
		m.styles.Input.Render(m.textinput.View()),
		footer,
	)
}

// Run starts the program on the terminal and blocks until the user quits.
func Run(m Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx)).Run()
	return err
}
