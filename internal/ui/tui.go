// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program for the playback status view
package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// NewModel creates a model polling src every interval. ctl may be nil.
func NewModel(src Source, ctl Controls, interval time.Duration) Model {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return Model{src: src, ctl: ctl, interval: interval}
}

// Run shows the status view until the user quits
func Run(src Source, ctl Controls) error {
	p := tea.NewProgram(NewModel(src, ctl, 0), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
