// Package tui is the terminal front end: it renders each UiState snapshot
// and maps keys to controller commands.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/chaz8081/focusband/internal/ble"
	"github.com/chaz8081/focusband/internal/broadcast"
	"github.com/chaz8081/focusband/internal/monitor"
)

// Controller is the subset of monitor.Controller the UI drives.
type Controller interface {
	Subscribe() *broadcast.Subscription[monitor.UiState]
	RequestConnectionToggle()
	StartMonitoring()
	StopMonitoring()
	Disconnect()
}

var _ Controller = (*monitor.Controller)(nil)

type stateMsg monitor.UiState

type closedMsg struct{}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(12)
	scoreStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	statusStyle = map[ble.Status]lipgloss.Style{
		ble.Disconnected: lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		ble.Scanning:     lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		ble.Connecting:   lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		ble.Connected:    lipgloss.NewStyle().Foreground(lipgloss.Color("78")),
	}
)

// Model is the bubbletea model for the focus screen.
type Model struct {
	ctrl    Controller
	sub     *broadcast.Subscription[monitor.UiState]
	device  ble.Peripheral
	state   monitor.UiState
	spinner spinner.Model
}

// New creates a Model subscribed to ctrl. device is shown in the header.
func New(ctrl Controller, device ble.Peripheral) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		ctrl:    ctrl,
		sub:     ctrl.Subscribe(),
		device:  device,
		spinner: sp,
	}
}

// Run shows the UI until the user quits.
func Run(ctrl Controller, device ble.Peripheral) error {
	m := New(ctrl, device)
	defer m.sub.Close()
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForState())
}

// waitForState blocks for the next snapshot.
func (m Model) waitForState() tea.Cmd {
	sub := m.sub
	return func() tea.Msg {
		st, err := sub.Next(context.Background())
		if err != nil {
			return closedMsg{}
		}
		return stateMsg(st)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.sub.Close()
			return m, tea.Quit
		case "c":
			m.ctrl.RequestConnectionToggle()
		case "m":
			if m.state.IsMonitoring {
				m.ctrl.StopMonitoring()
			} else {
				m.ctrl.StartMonitoring()
			}
		case "d":
			m.ctrl.Disconnect()
		}
		return m, nil

	case stateMsg:
		m.state = monitor.UiState(msg)
		return m, m.waitForState()

	case closedMsg:
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Focus Monitor"))
	b.WriteString("\n\n")

	status := statusStyle[m.state.BleStatus].Render(m.state.BleStatus.String())
	if m.state.BleStatus == ble.Scanning || m.state.BleStatus == ble.Connecting {
		status = m.spinner.View() + " " + status
	}
	row(&b, "Device", m.device.Name)
	row(&b, "Service", helpStyle.Render(m.device.Service.String()))
	row(&b, "Link", status)
	row(&b, "Permission", yesNo(m.state.HasBluetoothPermission, "granted", "not granted"))
	row(&b, "Monitoring", yesNo(m.state.IsMonitoring, "on", "off"))
	row(&b, "Focus", scoreStyle.Render(fmt.Sprintf("%3d", m.state.FocusScore))+" "+bar(m.state.FocusScore))

	b.WriteString("\n")
	connect := "connect"
	if m.state.HasBluetoothPermission && m.state.BleStatus != ble.Disconnected {
		connect = "disconnect"
	}
	monitoring := "start"
	if m.state.IsMonitoring {
		monitoring = "stop"
	}
	b.WriteString(helpStyle.Render(fmt.Sprintf("c: %s • m: %s monitoring • d: disconnect • q: quit", connect, monitoring)))
	b.WriteString("\n")
	return b.String()
}

func row(b *strings.Builder, label, value string) {
	b.WriteString(labelStyle.Render(label))
	b.WriteString(value)
	b.WriteString("\n")
}

func yesNo(v bool, yes, no string) string {
	if v {
		return yes
	}
	return no
}

// bar draws the score as a 20-cell gauge.
func bar(score int) string {
	filled := score / 5
	if filled < 0 {
		filled = 0
	}
	if filled > 20 {
		filled = 20
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("·", 20-filled) + "]"
}
