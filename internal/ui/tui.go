// ABOUTME: Encode progress TUI runner
// ABOUTME: Feeds job events into a bubbletea program
package ui

import (
	"github.com/Resonate-Protocol/pcmenc/internal/job"
	tea "github.com/charmbracelet/bubbletea"
)

// TUI shows progress for a single job
type TUI struct {
	program  *tea.Program
	quitChan chan struct{}
}

// New creates a TUI for the given output and codec description
func New(output, config string, opts ...tea.ProgramOption) *TUI {
	quit := make(chan struct{}, 1)
	return &TUI{
		program:  tea.NewProgram(NewModel(output, config, quit), opts...),
		quitChan: quit,
	}
}

// Run blocks until the job reports done or the user quits. Events
// after that are drained so the producer never stalls.
func (t *TUI) Run(events <-chan job.Event) error {
	go func() {
		for ev := range events {
			t.program.Send(ProgressMsg(ev))
		}
	}()

	_, err := t.program.Run()
	return err
}

// QuitChan signals when the user asks to cancel
func (t *TUI) QuitChan() <-chan struct{} {
	return t.quitChan
}
