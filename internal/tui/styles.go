package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/prpulse/prpulse/internal/domain"
)

var (
	// Readiness colors
	colorReady    = lipgloss.Color("46")  // green
	colorPending  = lipgloss.Color("214") // orange
	colorBlocked  = lipgloss.Color("196") // red
	colorChecking = lipgloss.Color("33")  // blue

	// Styles
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			PaddingLeft(1).
			PaddingRight(1)

	tabActiveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	tabInactiveStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240"))

	rowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	selectedRowStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Background(lipgloss.Color("237"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	badgeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginTop(1)

	emptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

func readinessIcon(r domain.Readiness) string {
	switch r.Kind {
	case domain.Ready:
		return "✅"
	case domain.Pending:
		return "📋"
	case domain.Blocked:
		return "⛔"
	default:
		return "⚙️"
	}
}

func readinessColor(r domain.Readiness) lipgloss.Color {
	switch r.Kind {
	case domain.Ready:
		return colorReady
	case domain.Pending:
		return colorPending
	case domain.Blocked:
		return colorBlocked
	default:
		return colorChecking
	}
}

func readinessLabel(r domain.Readiness) string {
	switch r.Kind {
	case domain.Ready:
		return "ready"
	case domain.Pending:
		return "pending review"
	case domain.Blocked:
		return r.Reason
	default:
		return "checking"
	}
}

func overrideLabel(o domain.Override) string {
	switch o.State {
	case domain.OverrideTodo:
		return "TODO"
	case domain.OverrideNotApplicable:
		return "N/A"
	default:
		return ""
	}
}
