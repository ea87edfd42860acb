package ui

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/BioHazard786/Deskrelay/internal/session"
)

// Palette
var (
	Primary = lipgloss.Color("#22d3ee")
	Accent  = lipgloss.Color("#7C3AED")
	Live    = lipgloss.Color("#10B981")
	Pending = lipgloss.Color("#F59E0B")
	Failure = lipgloss.Color("#EF4444")
	Muted   = lipgloss.Color("#6B7280")
	Light   = lipgloss.Color("#F9FAFB")
)

var (
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(Primary)

	ErrorStyle = lipgloss.NewStyle().Foreground(Failure).Bold(true)

	MutedStyle = lipgloss.NewStyle().Foreground(Muted)

	IDStyle = lipgloss.NewStyle().Bold(true).Foreground(Primary)

	badgeStyle = lipgloss.NewStyle().Foreground(Light).Padding(0, 1).Bold(true)

	CaptureStyle = badgeStyle.Background(Accent)

	SpinnerStyle = lipgloss.NewStyle().Foreground(Primary)

	ContainerStyle = lipgloss.NewStyle().Margin(1, 2)

	FooterStyle = lipgloss.NewStyle().Foreground(Muted).MarginTop(1)
)

var (
	keyHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(Primary).Align(lipgloss.Center)
	keyCellStyle   = lipgloss.NewStyle().Padding(0, 1)
	keyRowStyle    = keyCellStyle.Foreground(lipgloss.Color("255"))
	keyRowAltStyle = keyCellStyle.Foreground(lipgloss.Color("245"))
)

const (
	IconError   = "❌"
	IconSession = "🖥️"
	IconID      = "📋"
	IconLink    = "🌐"
	IconMouse   = "🖱️"
	IconLive    = "🔴"
)

// StateStyle colours the state badge: green while streaming, red once the
// peer or broker is gone, amber while anything is still being set up.
func StateStyle(s session.State) lipgloss.Style {
	switch s {
	case session.StateStreaming:
		return badgeStyle.Background(Live)
	case session.StateDisconnected, session.StateClosed:
		return badgeStyle.Background(Failure)
	case session.StateIdle:
		return badgeStyle.Background(Muted)
	}
	return badgeStyle.Background(Pending)
}

// PrintError writes msg to stderr, leaving stdout for the session summary.
func PrintError(msg string) {
	fmt.Fprintln(os.Stderr, FormatError(msg))
}

func FormatError(msg string) string {
	return fmt.Sprintf("%s %s", ErrorStyle.Render(IconError), ErrorStyle.Render(msg))
}
