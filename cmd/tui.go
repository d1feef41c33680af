// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/canlink/pkg/slcan"
)

// Event log entry
type logEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// Latest frame per identifier
type idEntry struct {
	frame    slcan.Frame
	count    uint64
	lastSeen time.Time
	changed  bool // payload differs from the previous frame
}

type monitorKeys struct {
	Quit  key.Binding
	Pause key.Binding
	Reset key.Binding
}

func (k monitorKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Pause, k.Reset, k.Quit}
}

func (k monitorKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var defaultMonitorKeys = monitorKeys{
	Quit:  key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Pause: key.NewBinding(key.WithKeys("p", " "), key.WithHelp("p", "pause")),
	Reset: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reset stats")),
}

// TUI model
type monitorModel struct {
	connInfo   string
	recordPath string
	stats      *slcan.Statistics
	ids        map[uint32]*idEntry
	eventLog   []logEntry
	maxLog     int
	table      table.Model
	keys       monitorKeys
	help       help.Model
	paused     bool
	connErr    error
	width      int
	height     int
	quitting   bool
}

// Messages
type tickMsg time.Time
type frameMsg frameEvent
type connErrMsg struct{ err error }

func newMonitorModel(connInfo, recordPath string) monitorModel {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "ID", Width: 10},
			{Title: "Len", Width: 4},
			{Title: "Data", Width: 24},
			{Title: "Count", Width: 8},
			{Title: "Age", Width: 8},
		}),
		table.WithHeight(10),
		table.WithFocused(false),
	)

	return monitorModel{
		connInfo:   connInfo,
		recordPath: recordPath,
		stats:      slcan.NewStatistics(),
		ids:        make(map[uint32]*idEntry),
		eventLog:   make([]logEntry, 0),
		maxLog:     100,
		table:      t,
		keys:       defaultMonitorKeys,
		help:       help.New(),
		width:      80,
		height:     24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Pause):
			m.paused = !m.paused
		case key.Matches(msg, m.keys.Reset):
			m.stats.Reset()
			m.ids = make(map[uint32]*idEntry)
			m.addLogEntry("Statistics reset", false)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetHeight(max(5, m.height/2-6))

	case tickMsg:
		m.stats.CalculateRates()
		m.table.SetRows(m.tableRows())
		return m, tickCmd()

	case connErrMsg:
		m.connErr = msg.err
		m.addLogEntry(fmt.Sprintf("CONNECTION: %v", msg.err), true)

	case frameMsg:
		m.stats.Update(msg.frame, msg.decodeErr)
		if msg.decodeErr != nil {
			m.addLogEntry(fmt.Sprintf("%v (%q)", msg.decodeErr, msg.raw), true)
			return m, nil
		}
		m.trackFrame(*msg.frame, msg.at)
		if !m.paused {
			m.table.SetRows(m.tableRows())
		}
	}

	return m, nil
}

func (m *monitorModel) trackFrame(f slcan.Frame, at time.Time) {
	entry, ok := m.ids[f.ID]
	if !ok {
		entry = &idEntry{}
		m.ids[f.ID] = entry
		m.addLogEntry(fmt.Sprintf("New identifier %08X", f.ID), false)
	}
	entry.changed = ok && entry.frame != f
	entry.frame = f
	entry.count++
	entry.lastSeen = at
}

func (m monitorModel) tableRows() []table.Row {
	ids := make([]uint32, 0, len(m.ids))
	for id := range m.ids {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	rows := make([]table.Row, 0, len(ids))
	for _, id := range ids {
		e := m.ids[id]
		data := slcan.FormatHex(e.frame.Payload())
		if e.changed {
			data += " *"
		}
		rows = append(rows, table.Row{
			fmt.Sprintf("%08X", id),
			fmt.Sprintf("%d", e.frame.Length),
			data,
			fmt.Sprintf("%d", e.count),
			time.Since(e.lastSeen).Truncate(100 * time.Millisecond).String(),
		})
	}
	return rows
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, logEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})

	// Keep only last N entries
	if len(m.eventLog) > m.maxLog {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLog:]
	}
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("CANLINK - MONITOR"))
	s.WriteString("\n")
	header := fmt.Sprintf("Connection: %s", m.connInfo)
	if m.recordPath != "" {
		header += fmt.Sprintf(" | Recording: %s", m.recordPath)
	}
	s.WriteString(headerStyle.Render(header))
	s.WriteString("\n")
	if m.paused {
		s.WriteString(warningStyle.Render("Paused"))
		s.WriteString("\n")
	}
	s.WriteString("\n")

	// Statistics
	st := m.stats
	errRate := statsValueStyle.Render(fmt.Sprintf("%.1f err/s", st.ErrorRate))
	if st.ErrorRate > 0 {
		errRate = errorStyle.Render(fmt.Sprintf("%.1f err/s", st.ErrorRate))
	}
	statsContent := fmt.Sprintf("%s %s   %s %s   %s %s   %s %s\n%s %s   %s %s",
		statsLabelStyle.Render("Frames:"), statsValueStyle.Render(fmt.Sprintf("%d", st.ValidFrames)),
		statsLabelStyle.Render("Malformed:"), errorStyle.Render(fmt.Sprintf("%d", st.MalformedLines)),
		statsLabelStyle.Render("IDs:"), statsValueStyle.Render(fmt.Sprintf("%d", len(m.ids))),
		statsLabelStyle.Render("Bytes:"), statsValueStyle.Render(fmt.Sprintf("%d", st.DataBytes)),
		statsLabelStyle.Render("Frame Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f fr/s", st.FrameRate)),
		statsLabelStyle.Render("Error Rate:"), errRate,
	)
	s.WriteString(boxStyle.Render(statsContent))
	s.WriteString("\n\n")

	s.WriteString(boxStyle.Render(m.table.View()))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := max(3, m.height-m.table.Height()-16)
	startIdx := max(0, len(m.eventLog)-logHeight)

	var logContent strings.Builder
	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	}
	for _, entry := range m.eventLog[startIdx:] {
		timestamp := headerStyle.Render(entry.timestamp.Format("15:04:05.000"))
		if entry.isError {
			logContent.WriteString(fmt.Sprintf("%s %s\n", timestamp, errorStyle.Render("✗ "+entry.message)))
		} else {
			logContent.WriteString(fmt.Sprintf("%s %s\n", timestamp, warningStyle.Render("ℹ "+entry.message)))
		}
	}
	s.WriteString(boxStyle.Width(max(20, m.width-4)).Render(logContent.String()))
	s.WriteString("\n")
	s.WriteString(m.help.View(m.keys))

	return s.String()
}
