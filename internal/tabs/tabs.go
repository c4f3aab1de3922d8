// Package tabs decides which panes of the shell a user may see.
package tabs

import (
	"fmt"
	"strings"

	kerrors "github.com/p-blackswan/kubejit/internal/errors"
	"github.com/p-blackswan/kubejit/internal/models"
)

// Tab is a pane of the authenticated shell.
type Tab int

const (
	Request Tab = iota
	Approve
	History
	Admin
)

// All lists every tab in display order.
var All = []Tab{Request, Approve, History, Admin}

func (t Tab) String() string {
	switch t {
	case Request:
		return "Request"
	case Approve:
		return "Approve"
	case History:
		return "History"
	case Admin:
		return "Admin"
	default:
		return fmt.Sprintf("Tab(%d)", int(t))
	}
}

// Parse resolves a tab name, case-insensitively.
func Parse(name string) (Tab, error) {
	for _, t := range All {
		if strings.EqualFold(t.String(), strings.TrimSpace(name)) {
			return t, nil
		}
	}
	return Request, fmt.Errorf("%w: unknown tab %q", kerrors.ErrInvalidInput, name)
}

// Visible reports whether tab is shown for perms.
func Visible(tab Tab, perms models.PermissionSet) bool {
	switch tab {
	case Request, History:
		return true
	case Approve:
		return perms.CanApprove()
	case Admin:
		return perms.IsAdmin
	default:
		return false
	}
}

// Require returns ErrNotPermitted when tab is hidden for perms.
func Require(tab Tab, perms models.PermissionSet) error {
	if !Visible(tab, perms) {
		return fmt.Errorf("%w: %s tab", kerrors.ErrNotPermitted, tab)
	}
	return nil
}

// Badge returns the label of the highest role held, or "".
func Badge(perms models.PermissionSet) string {
	return perms.HighestRole().String()
}

// Layout is the composed view for one render.
type Layout struct {
	Tabs   []Tab
	Active Tab
	Badge  string
}

// Compose lays out the tabs for perms. A selected tab that is hidden falls
// back to Request.
func Compose(perms models.PermissionSet, selected Tab) Layout {
	l := Layout{Badge: Badge(perms), Active: Request}
	for _, t := range All {
		if Visible(t, perms) {
			l.Tabs = append(l.Tabs, t)
		}
	}
	if Visible(selected, perms) {
		l.Active = selected
	}
	return l
}

// Has reports whether t is part of the layout.
func (l Layout) Has(t Tab) bool {
	for _, v := range l.Tabs {
		if v == t {
			return true
		}
	}
	return false
}
