package watch

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/agentgw/internal/events"
)

const tableRows = 12

// Model is the bubbletea model for the watch screen.
type Model struct {
	apiURL string
	token  string

	width  int
	height int

	connected      bool
	status         string
	uptimeSeconds  int64
	pendingRetries int64

	successes int
	errors    int
	timeouts  int

	lastRetryRun *events.RetryRunEvent

	executions table.Model
	rows       []table.Row

	feed  chan events.Event
	theme Theme

	lastError string
}

func New(apiURL, token string) *Model {
	cols := []table.Column{
		{Title: "Time", Width: 8},
		{Title: "Function", Width: 22},
		{Title: "Status", Width: 8},
		{Title: "ms", Width: 6},
		{Title: "Code", Width: 20},
	}
	t := table.New(table.WithColumns(cols), table.WithHeight(tableRows))
	return &Model{
		apiURL:     apiURL,
		token:      token,
		executions: t,
		feed:       make(chan events.Event, 100),
		theme:      DefaultTheme(),
		status:     "unknown",
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		subscribe(m.apiURL, m.token, m.feed),
		nextEvent(m.feed),
		func() tea.Msg { return fetchHealth(m.apiURL) },
		tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) }),
		tea.EnterAltScreen,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "k", "down", "j":
			var cmd tea.Cmd
			m.executions, cmd = m.executions.Update(msg)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		return m, tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })

	case eventMsg:
		m.connected = true
		m.lastError = ""
		m.apply(events.Event(msg))
		return m, nextEvent(m.feed)

	case healthMsg:
		m.connected = true
		m.status = msg.Status
		m.uptimeSeconds = msg.UptimeSeconds
		m.pendingRetries = msg.PendingRetries
		m.lastError = ""
		return m, tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
			return fetchHealth(m.apiURL)
		})

	case sseDisconnectedMsg:
		m.connected = false
		m.lastError = "event stream disconnected, reconnecting..."
		return m, tea.Tick(3*time.Second, func(t time.Time) tea.Msg { return reconnectMsg{} })

	case reconnectMsg:
		return m, subscribe(m.apiURL, m.token, m.feed)

	case errMsg:
		m.lastError = msg.Error()
		return m, tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
			return fetchHealth(m.apiURL)
		})
	}

	return m, nil
}

func (m *Model) apply(ev events.Event) {
	switch ev.Type {
	case events.TypeExecution:
		var e events.ExecutionEvent
		if err := json.Unmarshal(ev.Payload, &e); err != nil {
			return
		}
		switch e.Status {
		case "success":
			m.successes++
		case "timeout":
			m.timeouts++
		default:
			m.errors++
		}
		row := table.Row{
			ev.At.Format("15:04:05"),
			e.Function,
			e.Status,
			fmt.Sprint(e.DurationMS),
			e.ErrorCode,
		}
		m.rows = append([]table.Row{row}, m.rows...)
		if len(m.rows) > 100 {
			m.rows = m.rows[:100]
		}
		m.executions.SetRows(m.rows)

	case events.TypeRetryRun:
		var r events.RetryRunEvent
		if err := json.Unmarshal(ev.Payload, &r); err != nil {
			return
		}
		m.lastRetryRun = &r
	}
}
