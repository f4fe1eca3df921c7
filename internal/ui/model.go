// ABOUTME: Bubbletea model for encode progress
// ABOUTME: Tracks job events and renders a per-source progress view
package ui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Resonate-Protocol/pcmenc/internal/job"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).MarginBottom(1)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	helpStyle   = lipgloss.NewStyle().Faint(true)
)

const barWidth = 30

// Model represents the TUI state
type Model struct {
	output string
	config string

	source      string
	sourceIndex int
	sourceCount int

	bytesRead int64
	ptsUs     int64
	chunks    int64
	batch     int

	started  time.Time
	elapsed  time.Duration
	done     bool
	err      error
	quitting bool

	quitChan chan struct{}
}

// ProgressMsg carries one job event into the model
type ProgressMsg job.Event

type tickMsg time.Time

// NewModel creates a model for one output file
func NewModel(output, config string, quitChan chan struct{}) Model {
	return Model{
		output:   output,
		config:   config,
		started:  time.Now(),
		quitChan: quitChan,
	}
}

// Init starts the elapsed-time ticker
func (m Model) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			m.quitting = true
			select {
			case m.quitChan <- struct{}{}:
			default:
			}
			return m, tea.Quit
		}

	case tickMsg:
		if m.done {
			return m, nil
		}
		m.elapsed = time.Since(m.started)
		return m, tickEvery()

	case ProgressMsg:
		m.apply(job.Event(msg))
		if m.done {
			return m, tea.Quit
		}
	}

	return m, nil
}

// apply updates model from a job event
func (m *Model) apply(ev job.Event) {
	if ev.Source != "" {
		m.source = ev.Source
		m.sourceIndex = ev.SourceIndex
		m.sourceCount = ev.SourceCount
	}
	m.bytesRead = ev.State.TotalBytesRead
	m.ptsUs = ev.State.PresentationTimeUs
	m.chunks = ev.State.ChunksWritten
	m.batch = ev.State.CurrentBatchBytes

	if ev.Done {
		m.done = true
		m.err = ev.Err
		m.elapsed = time.Since(m.started)
		if ev.Err == nil {
			m.sourceIndex = m.sourceCount
		}
	}
}

// View renders the TUI
func (m Model) View() string {
	if m.quitting && !m.done {
		return "Cancelling after the current source...\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("pcmenc"))
	b.WriteString("\n")

	field := func(name, value string) {
		b.WriteString(headerStyle.Render(fmt.Sprintf("%-8s", name)))
		b.WriteString(valueStyle.Render(value))
		b.WriteString("\n")
	}

	field("Output:", truncate(m.output, 60))
	field("Codec:", m.config)
	if m.sourceCount > 0 {
		field("Source:", fmt.Sprintf("%d/%d %s", min(m.sourceIndex+1, m.sourceCount), m.sourceCount, truncate(filepath.Base(m.source), 40)))
	}
	b.WriteString("\n")

	b.WriteString(fmt.Sprintf("[%s] %3d%%\n\n", renderBar(m.sourceIndex, m.sourceCount, barWidth), percent(m.sourceIndex, m.sourceCount)))

	field("Read:", formatBytes(m.bytesRead))
	field("Audio:", (time.Duration(m.ptsUs) * time.Microsecond).Round(time.Millisecond).String())
	field("Chunks:", fmt.Sprintf("%d", m.chunks))
	field("Elapsed:", m.elapsed.Round(time.Second/10).String())
	b.WriteString("\n")

	switch {
	case m.done && m.err != nil:
		b.WriteString(errorStyle.Render("Failed: " + m.err.Error()))
		b.WriteString("\n")
	case m.done:
		b.WriteString(headerStyle.Render("Done"))
		b.WriteString("\n")
	default:
		b.WriteString(helpStyle.Render("Press 'q' or Ctrl+C to cancel"))
	}

	return b.String()
}

// Utility functions
func renderBar(value, max, width int) string {
	filled := 0
	if max > 0 {
		filled = (value * width) / max
	}
	if filled > width {
		filled = width
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func percent(value, max int) int {
	if max <= 0 {
		return 0
	}
	return min(100, value*100/max)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
