// Package tui renders a live terminal view of a running simulation: run
// state, active attacks, and a real-vs-observed chart for one signal.
package tui

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"otsim/internal/attack"
	"otsim/internal/sim"
	"otsim/internal/telemetry"
)

const historyCapacity = 600

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	attackStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	armedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("221"))
	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	graphStyle  = lipgloss.NewStyle().Padding(1, 0)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

type frameMsg telemetry.Frame

type closedMsg struct{}

// Model is the bubbletea model driving the watch view.
type Model struct {
	engine *sim.Engine
	frames <-chan telemetry.Frame
	cancel func()

	signals  []string
	selected int
	history  map[string]*series
	last     telemetry.Frame
	haveData bool
	closed   bool
}

type series struct {
	real     []float64
	observed []float64
}

// NewModel attaches a watch view to a running engine.
func NewModel(engine *sim.Engine) Model {
	frames, cancel := engine.Subscribe()
	return Model{
		engine:  engine,
		frames:  frames,
		cancel:  cancel,
		history: make(map[string]*series),
	}
}

func (m Model) Init() tea.Cmd {
	return m.waitForFrame()
}

func (m Model) waitForFrame() tea.Cmd {
	return func() tea.Msg {
		f, ok := <-m.frames
		if !ok {
			return closedMsg{}
		}
		return frameMsg(f)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.cancel()
			return m, tea.Quit
		case "tab", "right":
			if len(m.signals) > 0 {
				m.selected = (m.selected + 1) % len(m.signals)
			}
		case "left":
			if len(m.signals) > 0 {
				m.selected = (m.selected + len(m.signals) - 1) % len(m.signals)
			}
		case "p":
			if m.engine.State() == sim.StatePaused {
				m.engine.Resume()
			} else {
				m.engine.Pause()
			}
		case "s":
			m.engine.Stop()
		}
		return m, nil

	case frameMsg:
		m.record(telemetry.Frame(msg))
		return m, m.waitForFrame()

	case closedMsg:
		m.closed = true
		return m, nil
	}
	return m, nil
}

func (m *Model) record(f telemetry.Frame) {
	if !m.haveData {
		m.signals = f.Real.Names()
		sort.Strings(m.signals)
		m.haveData = true
	}
	m.last = f
	for _, name := range m.signals {
		s, ok := m.history[name]
		if !ok {
			s = &series{}
			m.history[name] = s
		}
		s.real = append(s.real, f.Real[name])
		s.observed = append(s.observed, f.Observed[name])
		if len(s.real) > historyCapacity {
			s.real = s.real[1:]
			s.observed = s.observed[1:]
		}
	}
}

func (m Model) View() string {
	var b strings.Builder

	state := m.engine.State()
	b.WriteString(headerStyle.Render("otsim watch"))
	b.WriteString("  ")
	b.WriteString(labelStyle.Render("state "))
	b.WriteString(valueStyle.Render(string(state)))
	if m.haveData {
		b.WriteString(labelStyle.Render("  t "))
		b.WriteString(valueStyle.Render(fmt.Sprintf("%.2fs", m.last.T)))
	}
	b.WriteString("\n")

	if len(m.last.Attacks) > 0 {
		b.WriteString(labelStyle.Render("attacks: "))
		parts := make([]string, 0, len(m.last.Attacks))
		for _, a := range m.last.Attacks {
			label := fmt.Sprintf("%s(%s)", a.Kind, a.TargetSignal)
			switch a.Status {
			case attack.StatusActive:
				parts = append(parts, attackStyle.Render(label+" ACTIVE"))
			case attack.StatusArmed:
				parts = append(parts, armedStyle.Render(label+" armed"))
			default:
				parts = append(parts, doneStyle.Render(label+" done"))
			}
		}
		b.WriteString(strings.Join(parts, "  "))
		b.WriteString("\n")
	}

	if m.haveData && len(m.signals) > 0 {
		name := m.signals[m.selected]
		s := m.history[name]
		if len(s.real) > 1 {
			chart := asciigraph.PlotMany(
				[][]float64{s.real, s.observed},
				asciigraph.Height(12),
				asciigraph.Width(76),
				asciigraph.SeriesColors(asciigraph.Green, asciigraph.Red),
				asciigraph.Caption(name+" (green=real, red=observed)"),
			)
			b.WriteString(graphStyle.Render(chart))
			b.WriteString("\n")
		}
	}

	if m.closed {
		b.WriteString(doneStyle.Render("run finished; q to exit"))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("tab/←/→ signal  p pause/resume  s stop  q quit"))
	b.WriteString("\n")
	return b.String()
}

// Run starts the watch view and blocks until it exits.
func Run(engine *sim.Engine) error {
	_, err := tea.NewProgram(NewModel(engine)).Run()
	return err
}
