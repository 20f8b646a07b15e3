// Package tui hosts the stepping loop inside a bubbletea program. Frame
// ticks drive the loop, so stepping runs on the program's event goroutine
// and is decoupled from how often the screen is redrawn.
package tui

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"aisim/internal/sim"
)

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
	Run() (tea.Model, error)
}

// Options configures the UI.
type Options struct {
	FramePeriod time.Duration
	ListenAddr  string
	Logs        *LogBuffer
}

// UI runs the interactive presentation.
type UI struct {
	program teaProgram
}

// New builds the UI for loop. The program is not started until Run.
func New(ctx context.Context, loop *sim.Loop, opts Options) *UI {
	m := newModel(loop, opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	return &UI{program: p}
}

// Run blocks until the user quits, the mailbox is terminated or ctx is done.
func (u *UI) Run() error {
	_, err := u.program.Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

// Quit asks the program to exit. It is safe to call from any goroutine.
func (u *UI) Quit() {
	u.program.Send(tea.Quit())
}
