package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"commlink/internal/audio"
	"commlink/internal/codec"
	"commlink/internal/logging"
	"commlink/internal/router"
	"commlink/internal/types"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

const (
	headerHeight = 1
	footerHeight = 1
	inputHeight  = 2 // divider + input line
)

// Session is what the chat model drives.
type Session interface {
	Submit(ctx context.Context, text string) (router.Reply, error)
	Phase() types.SessionPhase
}

// Options configures a Model.
type Options struct {
	Context    context.Context
	Session    Session
	Dictionary codec.Dictionary
	// SaveAudio stores a synthesized clip and returns where it went. Optional.
	SaveAudio func(audio.Clip) (string, error)
	// GlamourStyle is a glamour style name; empty means auto-detect.
	GlamourStyle string
	Styles       *Styles
}

// PhaseMsg reports a session phase change.
type PhaseMsg types.SessionPhase

// AnnounceMsg is one handshake announcement.
type AnnounceMsg string

// HistoryMsg is a full, ordered snapshot of the conversation.
type HistoryMsg []types.Utterance

type replyMsg struct {
	reply router.Reply
	err   error
}

// Model is the bubbletea chat model. The input line is disabled while a
// dispatch is in flight. Enter does nothing until the session is Ready, so
// text typed earlier stays in the line until the user sends it again.
type Model struct {
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	styles   Styles
	renderer *glamour.TermRenderer
	gstyle   string

	ctx       context.Context
	session   Session
	dict      codec.Dictionary
	saveAudio func(audio.Clip) (string, error)

	phase         types.SessionPhase
	announcements []string
	history       []types.Utterance
	notes         []string
	busy          bool

	width  int
	height int
	ready  bool
}

// New creates a chat model.
func New(opts Options) Model {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Dictionary == nil {
		opts.Dictionary = codec.DefaultDictionary()
	}
	styles := DefaultStyles()
	if opts.Styles != nil {
		styles = *opts.Styles
	}

	ti := textinput.New()
	ti.Placeholder = "Waiting for secure channel..."
	ti.Prompt = "› "
	ti.PromptStyle = styles.Prompt
	ti.CharLimit = 2000
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	return Model{
		input:     ti,
		viewport:  viewport.New(80, 20),
		spinner:   sp,
		styles:    styles,
		gstyle:    opts.GlamourStyle,
		ctx:       opts.Context,
		session:   opts.Session,
		dict:      opts.Dictionary,
		saveAudio: opts.SaveAudio,
		phase:     opts.Session.Phase(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-headerHeight-footerHeight-inputHeight, 3)
		m.input.Width = max(msg.Width-4, 10)
		m.renderer = m.newRenderer(msg.Width - 4)
		m.ready = true
		m.refresh()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		if !m.busy {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			cmds = append(cmds, cmd)
		}

	case PhaseMsg:
		m.setPhase(types.SessionPhase(msg))
		m.refresh()

	case AnnounceMsg:
		m.announcements = append(m.announcements, string(msg))
		m.refresh()

	case HistoryMsg:
		m.history = msg
		m.refresh()

	case replyMsg:
		m.busy = false
		m.handleReply(msg)
		if m.canSubmit() {
			cmds = append(cmds, m.input.Focus())
		}
		m.refresh()

	case spinner.TickMsg:
		if m.busy {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) setPhase(p types.SessionPhase) {
	if p == types.PhaseUnauthenticated {
		m.announcements = nil
		m.notes = nil
	}
	m.phase = p
	if p == types.PhaseReady {
		m.input.Placeholder = "Message, /help for commands"
	} else {
		m.input.Placeholder = "Waiting for secure channel..."
	}
}

func (m Model) canSubmit() bool {
	return m.phase == types.PhaseReady && !m.busy
}

// submit sends the input line. Nothing happens unless the session is Ready
// and idle.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || !m.canSubmit() {
		return m, nil
	}
	m.input.Reset()
	m.input.Blur()
	m.busy = true

	ctx, s := m.ctx, m.session
	send := func() tea.Msg {
		reply, err := s.Submit(ctx, text)
		return replyMsg{reply: reply, err: err}
	}
	return m, tea.Batch(m.spinner.Tick, send)
}

func (m *Model) handleReply(msg replyMsg) {
	switch {
	case errors.Is(msg.err, types.ErrNotReady):
		m.notes = append(m.notes, m.styles.Warning.Render("Not ready yet, message not sent."))
		return
	case errors.Is(msg.err, types.ErrBusy):
		m.notes = append(m.notes, m.styles.Warning.Render("Still working on the previous message."))
		return
	case msg.err != nil:
		m.notes = append(m.notes, m.styles.Error.Render(msg.err.Error()))
		return
	}

	r := msg.reply
	if r.Audio != nil && m.saveAudio != nil {
		path, err := m.saveAudio(*r.Audio)
		if err != nil {
			logging.Get(logging.CategoryUI).Error("failed to save audio: %v", err)
			m.notes = append(m.notes, m.styles.Error.Render("Could not save audio: "+err.Error()))
		} else {
			m.notes = append(m.notes, m.styles.Info.Render(fmt.Sprintf("🎧 Saved %d bytes to %s", r.Audio.Len(), path)))
		}
	}
	if r.Err != nil {
		logging.Get(logging.CategoryUI).Debug("reply carried error: %v", r.Err)
	}
}

func (m *Model) newRenderer(width int) *glamour.TermRenderer {
	opt := glamour.WithAutoStyle()
	if m.gstyle != "" {
		opt = glamour.WithStandardStyle(m.gstyle)
	}
	r, err := glamour.NewTermRenderer(opt, glamour.WithWordWrap(max(width, 20)))
	if err != nil {
		logging.Get(logging.CategoryUI).Warn("markdown renderer unavailable: %v", err)
		return nil
	}
	return r
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
}

func (m Model) renderHistory() string {
	var b strings.Builder
	for _, a := range m.announcements {
		b.WriteString(m.styles.Muted.Render(a))
		b.WriteString("\n")
	}
	if len(m.announcements) > 0 {
		b.WriteString("\n")
	}
	for _, u := range m.history {
		b.WriteString(m.renderUtterance(u))
		b.WriteString("\n")
	}
	for _, n := range m.notes {
		b.WriteString(n)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderUtterance(u types.Utterance) string {
	var label string
	switch u.Sender {
	case types.SenderBot:
		label = m.styles.BotLabel.Render("commlink")
	case types.SenderReminder:
		label = m.styles.ReminderLabel.Render("reminder")
	default:
		label = m.styles.UserLabel.Render(string(u.Sender))
	}

	if u.IsCompressed() {
		text := codec.Decode(*u.TokenIndex, m.dict)
		return label + " " + text + " " + m.styles.TokenBadge.Render(fmt.Sprintf("[token %d]", *u.TokenIndex))
	}
	if u.Sender.IsAgent() {
		return label + "\n" + m.styles.AgentResponse.Render(m.markdown(u.Text))
	}
	return label + " " + u.Text
}

func (m Model) markdown(text string) string {
	if m.renderer == nil {
		return text
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	header := m.styles.Header.Render(fmt.Sprintf("commlink · %s", m.phase))

	var line string
	if m.busy {
		line = m.spinner.View() + m.styles.Muted.Render(" thinking...")
	} else {
		line = m.input.View()
	}

	footer := m.styles.Footer.Render("enter send · pgup/pgdn scroll · esc quit")
	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.styles.Content.Render(m.viewport.View()),
		m.styles.RenderDivider(m.width),
		line,
		footer,
	)
}
