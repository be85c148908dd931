package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/wirechat-widget/internal/proto"
	"github.com/vovakirdan/wirechat-widget/internal/settings"
	"github.com/vovakirdan/wirechat-widget/internal/widget"
)

var (
	accent = lipgloss.Color("#5EEAD4")
	muted  = lipgloss.Color("#9CA3AF")

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#374151"))

	headerStyle  = lipgloss.NewStyle().Foreground(accent).Bold(true)
	stateStyle   = lipgloss.NewStyle().Foreground(muted)
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FDE68A")).Bold(true)
	timeStyle    = lipgloss.NewStyle().Foreground(muted)
	adminStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F87171")).Bold(true)
	authorStyle  = lipgloss.NewStyle().Bold(true)
	systemStyle  = lipgloss.NewStyle().Foreground(muted).Italic(true)
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	promptStyle  = lipgloss.NewStyle().Foreground(accent).Bold(true)
	badgeStyle   = lipgloss.NewStyle().Padding(0, 1).Background(lipgloss.Color("#1F2937")).Foreground(accent)
	unreadStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
	disableStyle = lipgloss.NewStyle().Foreground(muted)
)

const unavailableLine = "chat unavailable"

// View implements tea.Model.
func (m *Model) View() string {
	if m.snap.Unavailable {
		return disableStyle.Render(unavailableLine)
	}

	var panel string
	if m.snap.Open {
		panel = m.panelView()
	} else {
		panel = m.badgeView()
	}
	if m.width == 0 || m.height == 0 {
		return panel
	}
	h, v := placement(m.settings.Position)
	return lipgloss.Place(m.width, m.height, h, v, panel)
}

func (m *Model) badgeView() string {
	label := fmt.Sprintf("chat · %d online", m.snap.OnlineCount)
	if m.snap.Unread > 0 {
		label += " " + unreadStyle.Render(fmt.Sprintf("(%d new)", m.snap.Unread))
	}
	lines := []string{badgeStyle.Render(label)}
	if m.pending != nil {
		lines = append(lines, promptStyle.Render(m.pending.prompt+" [y/n]"))
	} else {
		lines = append(lines, m.input.View())
	}
	if m.status != "" {
		lines = append(lines, statusStyle.Render(m.status))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) panelView() string {
	header := headerStyle.Render("wirechat") + " " +
		stateStyle.Render(fmt.Sprintf("%s · %d online · %d in chat", m.snap.State, m.snap.OnlineCount, m.snap.ChatCount))
	if m.snap.ConnErr != nil && m.snap.State == widget.StateErrored {
		header += " " + statusStyle.Render("(/retry)")
	}

	lines := []string{header}
	for _, n := range m.snap.Notices {
		lines = append(lines, noticeStyle.Render(fmt.Sprintf("📌 %s [%s]", n.Body, n.ID)))
	}
	lines = append(lines, m.chat.View())
	if m.pending != nil {
		lines = append(lines, promptStyle.Render(m.pending.prompt+" [y/n]"))
	} else {
		lines = append(lines, m.input.View())
	}
	lines = append(lines, statusStyle.Render(m.status))

	width := m.chat.Width + panelStyle.GetHorizontalFrameSize()
	return panelStyle.Width(width - panelStyle.GetHorizontalBorderSize()).Render(strings.Join(lines, "\n"))
}

// renderMessage formats one transcript line. Admins also see message ids so
// they can address /delete.
func renderMessage(msg widget.Message, showIDs bool) string {
	ts := timeStyle.Render(msg.SentAtLabel())
	if msg.Kind == proto.KindSystem {
		return ts + " " + systemStyle.Render(msg.Body)
	}
	author := authorStyle.Render(msg.AuthorName)
	if msg.Kind == proto.KindAdmin {
		author = adminStyle.Render(msg.AuthorName)
	}
	line := fmt.Sprintf("%s %s: %s", ts, author, msg.Body)
	if showIDs {
		line += " " + timeStyle.Render("#"+msg.ID)
	}
	return line
}

func placement(p settings.Position) (lipgloss.Position, lipgloss.Position) {
	switch p {
	case settings.BottomLeft:
		return lipgloss.Left, lipgloss.Bottom
	case settings.TopRight:
		return lipgloss.Right, lipgloss.Top
	case settings.TopLeft:
		return lipgloss.Left, lipgloss.Top
	default:
		return lipgloss.Right, lipgloss.Bottom
	}
}
