package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vovakirdan/wirechat-widget/internal/settings"
	"github.com/vovakirdan/wirechat-widget/internal/widget"
)

const helpText = "/join /leave /notice <text> /delete <id> /clear /purge /dismiss <id> /retry /logout /open /close /size <w> <h>|+dw -dh /dock <position> /quit"

// command is one parsed input line.
type command struct {
	name string
	arg  string
}

// parseInput splits a slash command from its argument. Plain text is a "send".
func parseInput(line string) command {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return command{name: "send", arg: line}
	}
	name, arg, _ := strings.Cut(line[1:], " ")
	return command{name: strings.ToLower(name), arg: strings.TrimSpace(arg)}
}

// resultMsg reports the outcome of a widget call made off the update loop.
type resultMsg struct {
	what string
	err  error
}

// call runs fn as a tea.Cmd. Moderation blocks on the y/n prompt, which is
// answered through Update, so widget calls never run inline.
func call(ctx context.Context, what string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return resultMsg{what: what, err: fn(ctx)}
	}
}

// execute turns a command into a tea.Cmd. Presentation-only commands are
// applied to m directly.
func (m *Model) execute(c command) tea.Cmd {
	w := m.widget
	switch c.name {
	case "send":
		if c.arg == "" {
			return nil
		}
		body := c.arg
		return call(m.ctx, "send", func(ctx context.Context) error {
			return w.Send(ctx, body, widget.SendOptions{})
		})
	case "notice":
		body := c.arg
		return call(m.ctx, "notice", func(ctx context.Context) error {
			return w.Send(ctx, body, widget.SendOptions{IsNotice: true})
		})
	case "join":
		return call(m.ctx, "join", w.JoinRoom)
	case "leave":
		return call(m.ctx, "leave", w.LeaveRoom)
	case "delete":
		id := c.arg
		return call(m.ctx, "delete", func(ctx context.Context) error { return w.DeleteMessage(ctx, id) })
	case "clear":
		return call(m.ctx, "clear", w.ClearAll)
	case "purge":
		return call(m.ctx, "purge", w.PurgeHistory)
	case "dismiss":
		id := c.arg
		return call(m.ctx, "dismiss", func(ctx context.Context) error { return w.Dismiss(ctx, id) })
	case "retry":
		return call(m.ctx, "retry", w.Retry)
	case "open":
		return call(m.ctx, "open", func(ctx context.Context) error { return w.SetOpen(ctx, true) })
	case "close":
		return call(m.ctx, "close", func(ctx context.Context) error { return w.SetOpen(ctx, false) })
	case "logout":
		if m.session == nil {
			m.status = "no session to log out of"
			return nil
		}
		m.session.Logout()
		m.status = "logged out"
		return nil
	case "size":
		return m.resize(c.arg)
	case "dock":
		return m.dock(c.arg)
	case "help":
		m.status = helpText
		return nil
	case "quit":
		return tea.Quit
	default:
		m.status = fmt.Sprintf("unknown command /%s, try /help", c.name)
		return nil
	}
}

func (m *Model) resize(arg string) tea.Cmd {
	fields := strings.Fields(arg)
	if len(fields) != 2 {
		m.status = "usage: /size <width> <height>"
		return nil
	}
	width, errW := strconv.Atoi(fields[0])
	height, errH := strconv.Atoi(fields[1])
	if errW != nil || errH != nil {
		m.status = "size must be two numbers"
		return nil
	}
	// "+4 -2" grows or shrinks the panel; plain numbers set it.
	if isRelative(fields[0]) && isRelative(fields[1]) {
		return m.applySettings(m.settings.Resize(width, height))
	}
	next := m.settings
	next.Width, next.Height = width, height
	return m.applySettings(next.Normalize())
}

func isRelative(field string) bool {
	return strings.HasPrefix(field, "+") || strings.HasPrefix(field, "-")
}

func (m *Model) dock(arg string) tea.Cmd {
	next := m.settings
	next.Position = settings.Position(strings.ToLower(arg))
	if next.Normalize().Position != next.Position {
		m.status = "position must be one of bottom-right, bottom-left, top-right, top-left"
		return nil
	}
	return m.applySettings(next)
}

func (m *Model) applySettings(s settings.ChatSettings) tea.Cmd {
	m.settings = s
	m.layout()
	if m.settingsPath == "" {
		return nil
	}
	path := m.settingsPath
	return func() tea.Msg {
		return resultMsg{what: "save settings", err: settings.Save(path, s)}
	}
}
