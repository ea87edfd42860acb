package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/BioHazard786/Deskrelay/internal/control"
	"github.com/BioHazard786/Deskrelay/internal/remote"
	"github.com/BioHazard786/Deskrelay/internal/session"
)

const maxNotes = 4

// Controller is the part of session.Controller the status view drives.
type Controller interface {
	Role() session.Role
	Updates() <-chan session.Update
	Done() <-chan struct{}
	SendControl(msg control.Message) error
	RetryMedia()
	Join(id string) error
}

type updateMsg session.Update

type doneMsg struct{}

type tickMsg time.Time

// StatusModel shows the lifecycle of one participant. For a guest it also
// captures keyboard and mouse input and forwards it as control messages.
type StatusModel struct {
	ctl     Controller
	role    session.Role
	link    func(id string) string
	copy    func(text string) error
	spinner spinner.Model
	idInput textinput.Model
	started time.Time

	state     session.State
	sessionID string
	notes     []string
	lastErr   error

	width, height int
	capture       bool
	prompting     bool
	held          control.Button
	sent          uint64
	dropped       uint64
	quitting      bool
}

// NewStatusModel builds the view for ctl. link turns a session id into the
// shareable link shown to the host.
func NewStatusModel(ctl Controller, link func(id string) string) *StatusModel {
	s := spinner.New()
	s.Spinner = spinner.Globe
	s.Style = SpinnerStyle

	in := textinput.New()
	in.Placeholder = "session-xxxxxxxxx"
	in.Prompt = "Session ID: "
	in.CharLimit = 64

	return &StatusModel{
		idInput: in,
		ctl:     ctl,
		role:    ctl.Role(),
		link:    link,
		copy:    copyText,
		spinner: s,
		started: time.Now(),
		held:    control.ButtonLeft,
	}
}

// Run starts the full screen program and blocks until the user quits or the
// controller shuts down.
func (m *StatusModel) Run() error {
	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if m.role == session.RoleGuest {
		opts = append(opts, tea.WithMouseAllMotion())
	}
	_, err := tea.NewProgram(m, opts...).Run()
	return err
}

func (m *StatusModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listen(), tick())
}

func (m *StatusModel) listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case u := <-m.ctl.Updates():
			return updateMsg(u)
		case <-m.ctl.Done():
			return doneMsg{}
		}
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *StatusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		if m.role == session.RoleGuest && m.capture {
			m.forward(MouseMessages(msg, m.width, m.height, &m.held))
		}
		return m, nil

	case updateMsg:
		m.apply(session.Update(msg))
		return m, m.listen()

	case doneMsg:
		m.quitting = true
		return m, tea.Quit

	case tickMsg:
		return m, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *StatusModel) handleKey(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	if k.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}
	if m.prompting {
		return m.handlePrompt(k)
	}
	if k.String() == "ctrl+g" && m.role == session.RoleGuest {
		m.capture = !m.capture
		return m, nil
	}

	if m.capture {
		m.forward(KeyMessages(k))
		return m, nil
	}

	switch k.String() {
	case "q", "esc":
		m.quitting = true
		return m, tea.Quit
	case "r":
		if m.role == session.RoleHost {
			m.ctl.RetryMedia()
		}
	case "c":
		if m.role == session.RoleHost && m.sessionID != "" {
			m.copyLink()
		}
	}
	return m, nil
}

// handlePrompt edits the corrected session id a refused guest types in.
func (m *StatusModel) handlePrompt(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch k.String() {
	case "esc":
		m.quitting = true
		return m, tea.Quit
	case "enter":
		id := strings.TrimSpace(m.idInput.Value())
		if id == "" {
			return m, nil
		}
		if err := m.ctl.Join(id); err != nil {
			m.lastErr = err
			return m, nil
		}
		m.prompting = false
		m.lastErr = nil
		m.idInput.Reset()
		m.idInput.Blur()
		m.note("joining " + id)
		return m, nil
	}

	var cmd tea.Cmd
	m.idInput, cmd = m.idInput.Update(k)
	return m, cmd
}

func (m *StatusModel) copyLink() {
	if err := m.copy(m.link(m.sessionID)); err != nil {
		m.note("clipboard unavailable: " + err.Error())
		return
	}
	m.note("session link copied")
}

func (m *StatusModel) forward(msgs []control.Message) {
	for _, msg := range msgs {
		if err := m.ctl.SendControl(msg); err != nil {
			m.dropped++
			continue
		}
		m.sent++
	}
}

func (m *StatusModel) apply(u session.Update) {
	m.state = u.State
	if u.SessionID != "" || u.State == session.StateIdle {
		m.sessionID = u.SessionID
	}
	if u.Note != "" {
		m.note(u.Note)
	}
	if u.Err != nil {
		m.lastErr = u.Err
	}
	if u.State == session.StateStreaming {
		m.lastErr = nil
	}
	if m.role == session.RoleGuest && u.State == session.StateIdle && joinRefused(u.Err) {
		m.capture = false
		m.prompting = true
		m.idInput.Focus()
	}
}

func joinRefused(err error) bool {
	return errors.Is(err, remote.ErrSessionNotFound) || errors.Is(err, remote.ErrSessionFull)
}

func (m *StatusModel) note(s string) {
	stamp := time.Now().Format("15:04:05")
	m.notes = append(m.notes, fmt.Sprintf("%s %s", stamp, s))
	if len(m.notes) > maxNotes {
		m.notes = m.notes[len(m.notes)-maxNotes:]
	}
}

func (m *StatusModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(TitleStyle.Render(fmt.Sprintf("Deskrelay · %s", m.role)))
	b.WriteString("\n\n")

	if m.role == session.RoleHost && m.sessionID != "" {
		b.WriteString(SessionInfo{SessionID: m.sessionID, Link: m.link(m.sessionID)}.View())
		b.WriteString("\n\n")
	}

	b.WriteString(m.stateLine())
	b.WriteString("\n")

	if m.lastErr != nil {
		b.WriteString(FormatError(m.lastErr.Error()))
		if hint := errorHint(m.role, m.lastErr); hint != "" {
			b.WriteString("\n" + MutedStyle.Render(hint))
		}
		b.WriteString("\n")
	}

	if m.prompting {
		b.WriteString("\n" + m.idInput.View() + "\n")
	}

	if len(m.notes) > 0 {
		b.WriteString("\n")
		for _, n := range m.notes {
			b.WriteString(MutedStyle.Render(n) + "\n")
		}
	}

	if m.role == session.RoleGuest {
		b.WriteString("\n")
		b.WriteString(MutedStyle.Render(fmt.Sprintf("%s sent %d, dropped %d", IconMouse, m.sent, m.dropped)))
		b.WriteString("\n")
	}

	b.WriteString(FooterStyle.Render(KeyHelp(m.bindings())))
	return ContainerStyle.Render(b.String())
}

func (m *StatusModel) stateLine() string {
	label := StateStyle(m.state).Render(m.state.String())
	elapsed := MutedStyle.Render(formatDuration(time.Since(m.started)))

	if m.capture {
		label += " " + CaptureStyle.Render("input captured")
	}

	switch m.state {
	case session.StateStreaming:
		return fmt.Sprintf("%s %s %s", IconLive, label, elapsed)
	case session.StateClosed, session.StateIdle:
		return fmt.Sprintf("%s %s", label, elapsed)
	}
	return fmt.Sprintf("%s %s %s", m.spinner.View(), label, elapsed)
}

func (m *StatusModel) bindings() [][2]string {
	if m.role == session.RoleHost {
		return [][2]string{{"c", "copy session link"}, {"r", "retry screen source"}, {"q", "end session"}}
	}
	if m.prompting {
		return [][2]string{{"enter", "join session"}, {"esc", "leave"}}
	}
	if m.capture {
		return [][2]string{{"ctrl+g", "release input"}, {"ctrl+c", "end session"}}
	}
	return [][2]string{{"ctrl+g", "capture input"}, {"q", "leave session"}}
}

func errorHint(role session.Role, err error) string {
	switch {
	case errors.Is(err, remote.ErrSessionNotFound):
		if role == session.RoleGuest {
			return "Check the id with the host and enter it below."
		}
	case errors.Is(err, remote.ErrSessionFull):
		return "The session already has two participants."
	case errors.Is(err, remote.ErrPeerDisconnected):
		if role == session.RoleHost {
			return "The session stays open until the guest rejoins."
		}
	case errors.Is(err, remote.ErrCaptureUnavailable):
		if role == session.RoleHost {
			return "The session is still open. Press r to retry."
		}
	}
	return ""
}
