package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	pretty "github.com/jedib0t/go-pretty/v6/table"

	"github.com/BioHazard786/Deskrelay/internal/session"
)

// SessionInfo is the box the host shows once the broker hands out an id.
type SessionInfo struct {
	SessionID string
	Link      string
}

func (s SessionInfo) View() string {
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(Live).
		Padding(1, 2)

	content := fmt.Sprintf("%s Session ready\n\n%s Session ID:  %s\n%s Link:        %s",
		IconSession,
		IconID, IDStyle.Render(s.SessionID),
		IconLink, MutedStyle.Render(s.Link),
	)
	return boxStyle.Render(content)
}

// KeyHelp renders key bindings as a two column lipgloss table.
func KeyHelp(bindings [][2]string) string {
	rows := make([][]string, 0, len(bindings))
	for _, b := range bindings {
		rows = append(rows, []string{b[0], b[1]})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Muted)).
		Headers("Key", "Action").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return keyHeaderStyle
			case row%2 == 0:
				return keyRowStyle
			default:
				return keyRowAltStyle
			}
		})
	return tbl.Render()
}

// SummaryView renders the end-of-session report.
func SummaryView(s session.Summary) string {
	t := pretty.NewWriter()
	t.SetTitle("Session summary")
	t.AppendHeader(pretty.Row{"Metric", "Value"})
	t.AppendRows([]pretty.Row{
		{"Role", s.Role.String()},
		{"Session", orDash(s.SessionID)},
		{"Duration", formatDuration(s.Duration)},
		{controlLabel(s.Role), s.ControlEvents},
		{"Reconnects", s.Reconnects},
	})
	if s.Role == session.RoleGuest {
		t.AppendRow(pretty.Row{"Video packets", s.VideoPackets})
	}
	t.AppendFooter(pretty.Row{"Final state", s.FinalState.String()})
	t.SetStyle(pretty.StyleRounded)
	return t.Render()
}

func RenderSummary(s session.Summary) {
	fmt.Println(SummaryView(s))
}

func controlLabel(r session.Role) string {
	if r == session.RoleHost {
		return "Input events applied"
	}
	return "Input events sent"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	sec := int(d.Seconds()) % 60

	var b strings.Builder
	if h > 0 {
		fmt.Fprintf(&b, "%dh", h)
	}
	if h > 0 || m > 0 {
		fmt.Fprintf(&b, "%dm", m)
	}
	fmt.Fprintf(&b, "%ds", sec)
	return b.String()
}
