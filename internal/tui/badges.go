package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// renderModelBadge returns a Lipgloss-styled badge naming the model under
// evaluation.
func renderModelBadge(model string) string {
	if model == "" {
		model = "unknown"
	}
	badgeStyle := lipgloss.NewStyle().Background(lipgloss.Color("229")).Foreground(lipgloss.Color("0")).Padding(0, 1).MarginLeft(1)
	return badgeStyle.Render("Model: " + model)
}

// renderWorkersBadge returns a Lipgloss-styled badge for the worker count.
func renderWorkersBadge(workers int) string {
	badgeStyle := lipgloss.NewStyle().Background(lipgloss.Color("255")).Foreground(lipgloss.Color("0")).Padding(0, 1).MarginLeft(1)
	return badgeStyle.Render(fmt.Sprintf("Workers: %d", workers))
}
