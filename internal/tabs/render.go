package tabs

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/p-blackswan/kubejit/internal/models"
)

var (
	activeTabStyle   = lipgloss.NewStyle().Bold(true).Underline(true).Padding(0, 1).Foreground(lipgloss.Color("39"))
	inactiveTabStyle = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("245"))
	badgeStyle       = lipgloss.NewStyle().Bold(true).Padding(0, 1).Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62"))
	userStyle        = lipgloss.NewStyle().Bold(true)
	buildStyle       = lipgloss.NewStyle().Faint(true)
)

// Header is everything the shell's top bar shows.
type Header struct {
	User   *models.UserIdentity
	Layout Layout
	// Build is the backend's short sha, empty until fetched.
	Build string
}

// Render draws the header as two lines: identity and badge, then tabs.
func Render(h Header) string {
	var top []string
	if h.User != nil {
		who := userStyle.Render(h.User.Name)
		if h.User.Email != "" {
			who += " <" + h.User.Email + ">"
		}
		top = append(top, who)
	}
	if h.Layout.Badge != "" {
		top = append(top, badgeStyle.Render(h.Layout.Badge))
	}
	if h.Build != "" {
		top = append(top, buildStyle.Render("build "+h.Build))
	}

	tabs := make([]string, 0, len(h.Layout.Tabs))
	for _, t := range h.Layout.Tabs {
		style := inactiveTabStyle
		if t == h.Layout.Active {
			style = activeTabStyle
		}
		tabs = append(tabs, style.Render(t.String()))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		strings.Join(top, " "),
		lipgloss.JoinHorizontal(lipgloss.Top, tabs...),
	)
}
