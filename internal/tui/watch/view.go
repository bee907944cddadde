package watch

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Theme centralizes the watch screen's styles.
type Theme struct {
	Title     lipgloss.Style
	Border    lipgloss.Style
	OK        lipgloss.Style
	Failed    lipgloss.Style
	Warn      lipgloss.Style
	Dim       lipgloss.Style
	Highlight lipgloss.Style
}

func DefaultTheme() Theme {
	return Theme{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Padding(0, 1),
		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#874BFD")),
		OK:        lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		Failed:    lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")),
		Warn:      lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00")),
		Dim:       lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		Highlight: lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B")),
	}
}

func (m Model) View() string {
	if m.width == 0 {
		return "Connecting..."
	}

	header := m.renderHeader()
	counters := m.renderCounters()
	executions := m.theme.Border.Width(m.width - 6).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.theme.Title.Render("EXECUTIONS"),
			m.executions.View(),
		),
	)

	parts := []string{header, counters, executions}
	if m.lastError != "" {
		parts = append(parts, m.theme.Failed.Render(" ⚠ "+m.lastError))
	}
	parts = append(parts, m.theme.Dim.Render(" [q] Quit • [↑/↓] Scroll"))

	return lipgloss.NewStyle().Margin(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
}

func (m Model) renderHeader() string {
	conn := m.theme.Failed.Render("● offline")
	if m.connected {
		conn = m.theme.OK.Render("● live")
	}
	uptime := time.Duration(m.uptimeSeconds) * time.Second
	return fmt.Sprintf("%s  %s  %s  %s",
		m.theme.Title.Render("agentgw watch"),
		conn,
		m.theme.Dim.Render("up "+uptime.String()),
		m.theme.Dim.Render(fmt.Sprintf("retries pending: %d", m.pendingRetries)),
	)
}

func (m Model) renderCounters() string {
	retry := m.theme.Dim.Render("no retry runs yet")
	if m.lastRetryRun != nil {
		r := m.lastRetryRun
		retry = m.theme.Highlight.Render(fmt.Sprintf(
			"last retry run: %d processed, %d ok, %d failed, %d skipped",
			r.Processed, r.Succeeded, r.Failed, r.Skipped))
	}
	return fmt.Sprintf(" %s  %s  %s   %s",
		m.theme.OK.Render(fmt.Sprintf("✓ %d", m.successes)),
		m.theme.Failed.Render(fmt.Sprintf("✗ %d", m.errors)),
		m.theme.Warn.Render(fmt.Sprintf("⏱ %d", m.timeouts)),
		retry,
	)
}
