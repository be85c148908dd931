// Package tui is a terminal shell around a widget.Widget. It renders
// snapshots and turns input lines into widget calls; it owns no chat state.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/wirechat-widget/internal/identity"
	"github.com/vovakirdan/wirechat-widget/internal/settings"
	"github.com/vovakirdan/wirechat-widget/internal/widget"
)

type (
	snapshotMsg widget.Snapshot
	confirmMsg  confirmRequest
	stoppedMsg  struct{}
)

// Options configures the shell.
type Options struct {
	Widget       *widget.Widget
	Session      *identity.Session
	Prompter     *Prompter
	Settings     settings.ChatSettings
	SettingsPath string
}

// Model is the bubbletea model of the chat shell.
type Model struct {
	ctx          context.Context
	widget       *widget.Widget
	session      *identity.Session
	prompter     *Prompter
	settings     settings.ChatSettings
	settingsPath string

	snap    widget.Snapshot
	input   textinput.Model
	chat    viewport.Model
	pending *confirmRequest
	status  string
	ackSeq  uint64

	width, height int
}

// New builds the shell model. ctx bounds every widget call it makes.
func New(ctx context.Context, opts Options) *Model {
	in := textinput.New()
	in.Placeholder = "Type a message or /help"
	in.Prompt = "> "
	in.CharLimit = 2000
	in.Focus()

	if opts.Prompter == nil {
		opts.Prompter = NewPrompter()
	}

	m := &Model{
		ctx:          ctx,
		widget:       opts.Widget,
		session:      opts.Session,
		prompter:     opts.Prompter,
		settings:     opts.Settings.Normalize(),
		settingsPath: opts.SettingsPath,
		input:        in,
		chat:         viewport.New(opts.Settings.Width, opts.Settings.Height),
	}
	m.layout()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		waitForSnapshot(m.widget),
		waitForConfirm(m.prompter),
		call(m.ctx, "connect", m.widget.Open),
		call(m.ctx, "open", func(ctx context.Context) error { return m.widget.SetOpen(ctx, true) }),
	)
}

func waitForSnapshot(w *widget.Widget) tea.Cmd {
	return func() tea.Msg {
		select {
		case s := <-w.Updates():
			return snapshotMsg(s)
		case <-w.Done():
			return stoppedMsg{}
		}
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		return m, nil

	case snapshotMsg:
		m.snap = widget.Snapshot(msg)
		m.layout()
		return m, tea.Batch(waitForSnapshot(m.widget), m.ackAlert())

	case stoppedMsg:
		return m, tea.Quit

	case confirmMsg:
		req := confirmRequest(msg)
		m.pending = &req
		return m, nil

	case resultMsg:
		m.status = describeResult(msg)
		return m, nil

	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if m.pending != nil {
		switch strings.ToLower(msg.String()) {
		case "y", "n", "esc", "ctrl+c":
			m.pending.reply <- msg.String() == "y" || msg.String() == "Y"
			m.pending = nil
			return waitForConfirm(m.prompter)
		}
		return nil
	}

	switch msg.Type {
	case tea.KeyCtrlC:
		return tea.Quit
	case tea.KeyEnter:
		line := m.input.Value()
		m.input.Reset()
		return m.execute(parseInput(line))
	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.chat, cmd = m.chat.Update(msg)
		return cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

// ackAlert shows a fresh widget alert in the status line and acknowledges it.
func (m *Model) ackAlert() tea.Cmd {
	a := m.snap.Alert
	if a == nil || a.Seq == m.ackSeq {
		return nil
	}
	m.ackSeq = a.Seq
	m.status = "! " + a.Message
	seq := a.Seq
	return call(m.ctx, "ack", func(ctx context.Context) error { return m.widget.AckAlert(ctx, seq) })
}

func describeResult(r resultMsg) string {
	switch {
	case r.err == nil:
		return ""
	case errors.Is(r.err, widget.ErrNotConfirmed):
		return r.what + " cancelled"
	case errors.Is(r.err, context.Canceled):
		return ""
	default:
		return fmt.Sprintf("%s: %v", r.what, r.err)
	}
}

// layout sizes the viewport and input from the saved panel size.
func (m *Model) layout() {
	w, h := m.settings.Width, m.settings.Height
	if m.width > 0 && w > m.width {
		w = m.width
	}
	if m.height > 0 && h > m.height {
		h = m.height
	}
	inner := w - panelStyle.GetHorizontalFrameSize()
	// header, notices, input and status take the rest of the panel.
	chatHeight := h - panelStyle.GetVerticalFrameSize() - 3 - len(m.snap.Notices)
	if chatHeight < 1 {
		chatHeight = 1
	}
	m.chat.Width = inner
	m.chat.Height = chatHeight
	m.input.Width = inner - lipgloss.Width(m.input.Prompt) - 1
	m.render()
}

func (m *Model) render() {
	var b strings.Builder
	for i, msg := range m.snap.Messages {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(renderMessage(msg, m.snap.IsAdmin()))
	}
	m.chat.SetContent(b.String())
	m.chat.GotoBottom()
}
