// Package tui renders a live terminal view of the receding-horizon
// controller: current state, actuated command, solve statistics, and a
// sparkline of the tracking error.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/nloc/internal/dynamo"
	"github.com/san-kum/nloc/internal/mpc"
)

const historyCapacity = 200

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(14)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	graphStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

type TickMsg time.Time

// Model drives one plant under the MPC controller inside a bubbletea loop.
type Model struct {
	ctrl  *mpc.Controller
	plant dynamo.System
	goal  dynamo.State

	x       dynamo.State
	u       dynamo.Control
	t       float64
	dt      float64
	step    int
	running bool
	err     error

	errHistory []float64
}

func NewModel(ctrl *mpc.Controller, plant dynamo.System, x0, goal dynamo.State, dt float64) Model {
	return Model{
		ctrl:    ctrl,
		plant:   plant,
		goal:    goal,
		x:       x0.Clone(),
		dt:      dt,
		running: true,
	}
}

func (m Model) Init() tea.Cmd {
	return tick(m.dt)
}

func tick(dt float64) tea.Cmd {
	return tea.Tick(time.Duration(dt*float64(time.Second)), func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
			if m.running {
				return m, tick(m.dt)
			}
			return m, nil
		}

	case TickMsg:
		if !m.running || m.err != nil {
			return m, nil
		}
		elapsed := m.dt
		if m.step == 0 {
			elapsed = 0
		}
		cmd, err := m.ctrl.Tick(m.x, elapsed)
		if err != nil {
			m.err = err
			return m, nil
		}
		m.u = cmd.Apply(m.x)

		next, err := m.plant.Propagate(m.x, m.u, m.step)
		if err != nil {
			m.err = err
			return m, nil
		}
		m.x = next
		m.t += m.dt
		m.step++

		m.errHistory = append(m.errHistory, m.x.Sub(m.goal).Norm())
		if len(m.errHistory) > historyCapacity {
			m.errHistory = m.errHistory[1:]
		}
		return m, tick(m.dt)
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("nloc · receding-horizon control"))
	b.WriteString("\n")

	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label))
		b.WriteString(valueStyle.Render(value))
		b.WriteString("\n")
	}

	row("time", fmt.Sprintf("%.2f s", m.t))
	row("state", fmtVec(m.x))
	row("control", fmtVec(dynamo.State(m.u)))
	row("error", fmt.Sprintf("%.4f", m.x.Sub(m.goal).Norm()))

	if res := m.ctrl.LastResult(); res != nil {
		row("solve", fmt.Sprintf("%s in %d iters, cost %.4g",
			res.Status, res.Iterations, res.Cost))
	}

	if m.err != nil {
		b.WriteString(errStyle.Render("error: " + m.err.Error()))
		b.WriteString("\n")
	}

	if len(m.errHistory) > 1 {
		graph := asciigraph.Plot(m.errHistory,
			asciigraph.Height(8), asciigraph.Width(60),
			asciigraph.Caption("tracking error"))
		b.WriteString(graphStyle.Render(graph))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("space pause · q quit"))
	return b.String()
}

func fmtVec(v dynamo.State) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprintf("%+.3f", x)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
