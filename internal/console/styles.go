package console

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/ostrem/steward/internal/directory"
)

// --- View rendering ---

var (
	activeTabStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")).Padding(0, 1)
	inactiveTabStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Padding(0, 1)
	titleStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	headerStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245"))
	cursorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	normalStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	dimStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	warnStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	okStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	overlayStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("241")).Padding(0, 1)
)

// padCell truncates s to width and pads it with spaces so table columns
// line up. Width is measured in display cells, not bytes.
func padCell(s string, width int) string {
	if width <= 0 {
		return ""
	}
	s = runewidth.Truncate(s, width, "…")
	if pad := width - runewidth.StringWidth(s); pad > 0 {
		s += strings.Repeat(" ", pad)
	}
	return s
}

// viewNotice renders a screen-local error line, or an empty string when
// there is nothing to show.
func viewNotice(n *errNotice) string {
	if n == nil {
		return ""
	}
	label := "network"
	if n.kind == directory.KindValidation {
		label = "validation"
	}
	return errorStyle.Render("✗ "+label+": ") + normalStyle.Render(n.text)
}
