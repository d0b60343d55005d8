// ABOUTME: Bubbletea model for the playback status view
// ABOUTME: Polls the engine for voices, streams and worker stats and renders them
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Resonate-Protocol/streamout/internal/version"
	"github.com/Resonate-Protocol/streamout/pkg/engine"
	"github.com/Resonate-Protocol/streamout/pkg/voice"
)

const maxRows = 8

// Source provides the state shown by the view
type Source interface {
	Stats() engine.Stats
	ActiveSounds() []engine.SoundInfo
	ActiveStreams() []engine.SoundInfo
}

// Controls are the actions bound to keys
type Controls interface {
	PauseSounds(types engine.PlayType) error
	ResumeSounds(types engine.PlayType) error
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFA500"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5FAFFF"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#A40000"))
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// Model represents the TUI state
type Model struct {
	src      Source
	ctl      Controls
	interval time.Duration

	stats   engine.Stats
	sounds  []engine.SoundInfo
	streams []engine.SoundInfo

	paused    bool
	showDebug bool
	err       error

	width  int
	height int
}

// StatusMsg carries a fresh snapshot of the engine
type StatusMsg struct {
	Stats   engine.Stats
	Sounds  []engine.SoundInfo
	Streams []engine.SoundInfo
}

type tickMsg time.Time

// Init starts polling
func (m Model) Init() tea.Cmd {
	return m.poll()
}

func (m Model) poll() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// snapshot reads the source
func (m Model) snapshot() StatusMsg {
	return StatusMsg{
		Stats:   m.src.Stats(),
		Sounds:  m.src.ActiveSounds(),
		Streams: m.src.ActiveStreams(),
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		if m.src != nil {
			m.applyStatus(m.snapshot())
		}
		return m, m.poll()
	case StatusMsg:
		m.applyStatus(msg)
	}
	return m, nil
}

func (m *Model) applyStatus(msg StatusMsg) {
	m.stats = msg.Stats
	m.sounds = msg.Sounds
	m.streams = msg.Streams
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case " ", "p":
		if m.ctl == nil {
			break
		}
		if m.paused {
			m.err = m.ctl.ResumeSounds(engine.TypeMask)
		} else {
			m.err = m.ctl.PauseSounds(engine.TypeMask)
		}
		if m.err == nil {
			m.paused = !m.paused
		}
	case "d":
		m.showDebug = !m.showDebug
	}
	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("%s %s", version.Product, version.Version)))
	b.WriteString("\n")
	b.WriteString(m.renderDevice())
	b.WriteString(m.renderList("Streams", m.streams))
	b.WriteString(m.renderList("Sounds", m.sounds))
	if m.showDebug {
		b.WriteString(m.renderDebug())
	}
	if m.err != nil {
		b.WriteString(errorStyle.Render("Error: "+m.err.Error()) + "\n")
	}
	b.WriteString(mutedStyle.Render("space:Pause/Resume  d:Debug  q:Quit"))

	return boxStyle.Render(b.String())
}

func (m Model) renderDevice() string {
	if m.stats.Device == "" {
		return "Device: " + mutedStyle.Render("closed") + "\n"
	}
	used := m.stats.Voices - m.stats.FreeVoices
	state := "playing"
	if m.paused {
		state = "paused"
	}
	return fmt.Sprintf("Device: %s (%s)\nVoices: [%s] %d/%d  Buffers: %d\n",
		truncate(m.stats.Device, 40), state,
		renderBar(used, m.stats.Voices, 20), used, m.stats.Voices, m.stats.Buffers)
}

func (m Model) renderList(title string, infos []engine.SoundInfo) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%s (%d)", title, len(infos))))
	b.WriteString("\n")
	for i, info := range infos {
		if i == maxRows {
			b.WriteString(mutedStyle.Render(fmt.Sprintf("  ... %d more", len(infos)-maxRows)) + "\n")
			break
		}
		b.WriteString(fmt.Sprintf("  %s %-32s %-6s vol %3.0f%%\n",
			stateIcon(info.State), truncate(info.Name, 32), info.Type, info.Volume*100))
	}
	return b.String()
}

func (m Model) renderDebug() string {
	s := m.stats.Scheduler
	return mutedStyle.Render(fmt.Sprintf("Worker: ticks %d  refills %d  dropped %d  jobs %d (%d pending)",
		s.Ticks, s.Refills, s.Dropped, s.Jobs, s.Pending)) + "\n"
}

func stateIcon(s voice.State) string {
	switch s {
	case voice.StatePlaying:
		return "▶"
	case voice.StatePaused:
		return "⏸"
	}
	return "■"
}

// Utility functions
func renderBar(value, max, width int) string {
	filled := 0
	if max > 0 {
		filled = (value * width) / max
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}
