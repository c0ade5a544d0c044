// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Phi Robotics

package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/phi-robotics/motorlink/pkg/cia402"
	"github.com/phi-robotics/motorlink/pkg/diag"
)

var monitorAddr string

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live axis TUI over the controller's diagnostic stream",
	Long: `Attach to a running controller's diagnostic websocket and show live
per-axis telemetry. Jog commands go back over the HTTP control surface.

Keys:
  f  jog forward        r  jog reverse
  s  stop               +/-  adjust step size
  q  quit`,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().StringVar(&monitorAddr, "addr", "localhost:8800", "Controller diagnostic address")
	rootCmd.AddCommand(monitorCmd)
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type frameMsg diag.DiagReply

type connLostMsg struct {
	err error
}

type cmdSentMsg struct {
	err error
}

//////////////////////////////////////////////////////////////
// Model
//////////////////////////////////////////////////////////////

type monitorModel struct {
	addr   string
	frames chan tea.Msg
	closed chan struct{}

	axisTable table.Model
	latest    diag.DiagReply
	step      int
	lastErr   error
	quitting  bool
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	helpStyle  = lipgloss.NewStyle().Faint(true)
)

func initialMonitorModel(addr string) monitorModel {
	cols := []table.Column{
		{Title: "#", Width: 3},
		{Title: "Adapter", Width: 10},
		{Title: "Status", Width: 8},
		{Title: "State", Width: 22},
		{Title: "Target", Width: 12},
		{Title: "Actual", Width: 12},
		{Title: "FErr", Width: 8},
		{Title: "En", Width: 3},
	}
	t := table.New(table.WithColumns(cols), table.WithHeight(12))
	st := table.DefaultStyles()
	st.Header = st.Header.Bold(true)
	t.SetStyles(st)

	return monitorModel{
		addr:      addr,
		frames:    make(chan tea.Msg, 16),
		closed:    make(chan struct{}),
		axisTable: t,
		step:      1000,
	}
}

// readLoop pumps websocket frames into the model's channel.
func (m monitorModel) readLoop(conn *websocket.Conn) {
	defer conn.Close()
	for {
		var d diag.DiagReply
		if err := conn.ReadJSON(&d); err != nil {
			select {
			case m.frames <- connLostMsg{err: err}:
			case <-m.closed:
			}
			return
		}
		select {
		case m.frames <- frameMsg(d):
		case <-m.closed:
			return
		}
	}
}

func (m monitorModel) connect() tea.Msg {
	conn, resp, err := websocket.DefaultDialer.Dial("ws://"+m.addr+"/ws", nil)
	if resp != nil {
		resp.Body.Close()
	}
	if err != nil {
		return connLostMsg{err: err}
	}
	go m.readLoop(conn)
	return nil
}

func (m monitorModel) waitForFrame() tea.Cmd {
	return func() tea.Msg {
		return <-m.frames
	}
}

func (m monitorModel) postControl(dir string) tea.Cmd {
	addr, step := m.addr, m.step
	return func() tea.Msg {
		body, _ := json.Marshal(map[string]interface{}{"direction": dir, "step": step})
		resp, err := http.Post("http://"+addr+"/control", "application/json", bytes.NewReader(body))
		if err == nil {
			resp.Body.Close()
		}
		return cmdSentMsg{err: err}
	}
}

func (m monitorModel) postStop() tea.Cmd {
	addr := m.addr
	return func() tea.Msg {
		resp, err := http.Post("http://"+addr+"/stop", "application/json", nil)
		if err == nil {
			resp.Body.Close()
		}
		return cmdSentMsg{err: err}
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(m.connect, m.waitForFrame())
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			close(m.closed)
			return m, tea.Quit
		case "f":
			return m, m.postControl("forward")
		case "r":
			return m, m.postControl("reverse")
		case "s":
			return m, m.postStop()
		case "+", "=":
			if m.step < 100000 {
				m.step *= 2
			}
			return m, nil
		case "-":
			if m.step > 1 {
				m.step /= 2
			}
			return m, nil
		}

	case frameMsg:
		m.latest = diag.DiagReply(msg)
		m.refreshTable()
		return m, m.waitForFrame()

	case connLostMsg:
		m.lastErr = msg.err
		return m, nil

	case cmdSentMsg:
		m.lastErr = msg.err
		return m, nil
	}

	var cmd tea.Cmd
	m.axisTable, cmd = m.axisTable.Update(msg)
	return m, cmd
}

func (m *monitorModel) refreshTable() {
	rows := make([]table.Row, len(m.latest.Axes))
	for i, a := range m.latest.Axes {
		enabled := " "
		if a.Enabled {
			enabled = "*"
		}
		rows[i] = table.Row{
			fmt.Sprintf("%d", i),
			a.Adapter,
			fmt.Sprintf("0x%04X", a.Status),
			cia402.StateOf(a.Status).String(),
			fmt.Sprintf("%d", a.Target),
			fmt.Sprintf("%d", a.Actual),
			fmt.Sprintf("%d", a.FollowingErr),
			enabled,
		}
	}
	m.axisTable.SetRows(rows)
}

func (m monitorModel) View() string {
	if m.quitting {
		return ""
	}
	var b bytes.Buffer
	b.WriteString(titleStyle.Render("motorlink monitor"))
	b.WriteString(helpStyle.Render(fmt.Sprintf("  %s  cycle %d", m.addr, m.latest.Cycle)))
	b.WriteString("\n")

	switch {
	case m.latest.MotionStarted:
		b.WriteString(okStyle.Render("motion started"))
	case m.latest.BarrierArmed:
		b.WriteString(warnStyle.Render("barrier armed, waiting"))
	default:
		b.WriteString(helpStyle.Render("holding at actual"))
	}
	b.WriteString("\n\n")
	b.WriteString(m.axisTable.View())
	b.WriteString("\n")
	if m.lastErr != nil {
		b.WriteString(warnStyle.Render(fmt.Sprintf("error: %v", m.lastErr)))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render(fmt.Sprintf("step %d  ·  f forward  r reverse  s stop  +/- step  q quit", m.step)))
	return b.String()
}

func runMonitor(cmd *cobra.Command, args []string) error {
	m := initialMonitorModel(monitorAddr)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}
