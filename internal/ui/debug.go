package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/touchmapd/touchmapd/internal/ipc"
)

const statusPollInterval = time.Second

type statusMsg struct {
	status *ipc.StatusPayload
	err    error
}

type recalibrateMsg struct {
	err error
}

type pollMsg time.Time

// DebugModel is the live diagnostics view: it polls the daemon's
// control socket and renders the pipeline state plus the flight
// recorder's recent entries.
type DebugModel struct {
	client  *ipc.Client
	spinner spinner.Model
	table   table.Model
	status  *ipc.StatusPayload
	err     error
	flash   string
	width   int
}

// NewDebugModel creates the debug view over an existing control client.
func NewDebugModel(client *ipc.Client) *DebugModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = SpinnerStyle

	columns := []table.Column{
		{Title: "Seq", Width: 6},
		{Title: "Time", Width: 12},
		{Title: "Kind", Width: 8},
		{Title: "Dev", Width: 4},
		{Title: "Original", Width: 16},
		{Title: "Remapped", Width: 16},
		{Title: "Outcome", Width: 10},
	}
	tbl := table.New(
		table.WithColumns(columns),
		table.WithHeight(10),
		table.WithFocused(false),
	)
	styles := table.DefaultStyles()
	styles.Header = TableHeaderStyle
	styles.Selected = TableSelectedStyle
	tbl.SetStyles(styles)

	return &DebugModel{
		client:  client,
		spinner: sp,
		table:   tbl,
		width:   80,
	}
}

// Init implements tea.Model.
func (m *DebugModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetchStatus, m.schedulePoll())
}

// Update implements tea.Model.
func (m *DebugModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			m.flash = "Recalibrating..."
			return m, m.recalibrate
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case pollMsg:
		return m, tea.Batch(m.fetchStatus, m.schedulePoll())

	case statusMsg:
		m.status = msg.status
		m.err = msg.err
		if msg.status != nil {
			m.table.SetRows(recordRows(msg.status))
		}
		return m, nil

	case recalibrateMsg:
		if msg.err != nil {
			m.flash = ErrorStyle.Render(fmt.Sprintf("Recalibrate failed: %v", msg.err))
		} else {
			m.flash = SuccessStyle.Render("Recalibrated, relearning touch device")
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m *DebugModel) View() string {
	var b strings.Builder

	b.WriteString(FormatAppHeader("debug"))
	b.WriteString("\n\n")

	switch {
	case m.err != nil:
		b.WriteString(ErrorStyle.Render(fmt.Sprintf("✗ %v", m.err)))
		b.WriteString("\n")
	case m.status == nil:
		b.WriteString(m.spinner.View() + " Connecting to daemon...")
		b.WriteString("\n")
	default:
		b.WriteString(m.statusView())
	}

	if m.flash != "" {
		b.WriteString("\n" + m.flash + "\n")
	}

	b.WriteString("\n")
	b.WriteString(FormatControl("r", "recalibrate"))
	b.WriteString("  ")
	b.WriteString(FormatControl("q", "quit"))
	b.WriteString("\n")

	return b.String()
}

func (m *DebugModel) statusView() string {
	st := m.status
	var b strings.Builder

	b.WriteString(FormatHealth(st.Watchdog.Healthy, healthText(st)))
	b.WriteString("\n")
	b.WriteString(FormatField("Permission", st.Permission))
	b.WriteString("   ")
	b.WriteString(FormatField("Calibration", st.Calibration))
	b.WriteString("\n")
	b.WriteString(FormatField("Touch device", learnedText(st)))
	b.WriteString("   ")
	b.WriteString(FormatField("Uptime", st.Uptime.Truncate(time.Second).String()))
	b.WriteString("\n")
	b.WriteString(FormatField("Events/s", fmt.Sprintf("%.1f", st.Recorder.EventsPerSecond)))
	b.WriteString("   ")
	b.WriteString(FormatField("Dropped", fmt.Sprintf("%d", st.Recorder.TotalDropped)))
	if st.Recorder.AverageLatencyMs != nil {
		b.WriteString("   ")
		b.WriteString(FormatField("Latency", fmt.Sprintf("%.2fms", *st.Recorder.AverageLatencyMs)))
	}
	b.WriteString("\n")
	if st.Watchdog.DisableCount > 0 {
		b.WriteString(WarningStyle.Render(fmt.Sprintf("Session recreated %d time(s)", st.Watchdog.DisableCount)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.table.View())
	b.WriteString("\n")

	return b.String()
}

func (m *DebugModel) fetchStatus() tea.Msg {
	status, err := m.client.GetStatus()
	return statusMsg{status: status, err: err}
}

func (m *DebugModel) recalibrate() tea.Msg {
	return recalibrateMsg{err: m.client.Recalibrate()}
}

func (m *DebugModel) schedulePoll() tea.Cmd {
	return tea.Tick(statusPollInterval, func(t time.Time) tea.Msg {
		return pollMsg(t)
	})
}

func healthText(st *ipc.StatusPayload) string {
	if !st.Running {
		return "stopped"
	}
	if !st.SessionActive {
		return "running, session inactive"
	}
	if st.Watchdog.Healthy {
		return "running"
	}
	return "unhealthy"
}

func learnedText(st *ipc.StatusPayload) string {
	if st.LearnedDevice == nil {
		return "learning"
	}
	return fmt.Sprintf("event%d", *st.LearnedDevice)
}

func recordRows(st *ipc.StatusPayload) []table.Row {
	rows := make([]table.Row, 0, len(st.Recorder.Recent))
	for _, rec := range st.Recorder.Recent {
		remapped := "-"
		if rec.Remapped != nil {
			remapped = fmt.Sprintf("%.0f,%.0f", rec.Remapped.X, rec.Remapped.Y)
		}
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", rec.Seq),
			rec.Time.Format("15:04:05.000"),
			rec.Kind.String(),
			fmt.Sprintf("%d", rec.Device),
			fmt.Sprintf("%.0f,%.0f", rec.Original.X, rec.Original.Y),
			remapped,
			rec.Outcome.String(),
		})
	}
	return rows
}
