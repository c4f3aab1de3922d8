// Package requestform collects and submits access requests.
package requestform

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/p-blackswan/kubejit/internal/banner"
	kerrors "github.com/p-blackswan/kubejit/internal/errors"
	"github.com/p-blackswan/kubejit/internal/models"
	"github.com/p-blackswan/kubejit/internal/tabs"
)

const (
	MaxJustification = 100

	// SubmitRedirectDelay is how long the success message shows before the
	// shell switches to History.
	SubmitRedirectDelay = time.Second
	ErrorBannerTTL      = 5 * time.Second

	FallbackSubmitError = "Error submitting request"
)

// Field names used in FieldErrors.
const (
	FieldUsers         = "users"
	FieldNamespaces    = "namespaces"
	FieldJustification = "justification"
	FieldCluster       = "cluster"
	FieldRole          = "role"
	FieldApprovingTeam = "approvingTeam"
	FieldStartDate     = "startDate"
	FieldEndDate       = "endDate"
)

// Submitter posts a completed request.
type Submitter interface {
	SubmitRequest(ctx context.Context, req *models.SubmitRequest) (string, error)
}

// Form holds the state of one access request being composed.
type Form struct {
	Users      *TagInput
	Namespaces *TagInput

	justification string
	cluster       string
	role          string
	team          *models.Team
	start         time.Time
	end           time.Time

	options models.Options
	banners *banner.Board
}

// New creates an empty form offering the given clusters and roles. Banners
// may be nil.
func New(options models.Options, banners *banner.Board) *Form {
	return &Form{
		Users:      newTagInput(ValidEmail, EmailTagError),
		Namespaces: newTagInput(ValidNamespace, NamespaceTagError),
		options:    options,
		banners:    banners,
	}
}

// Options returns the loaded cluster and role options.
func (f *Form) Options() models.Options { return f.options }

// SetJustification sets the free-text reason.
func (f *Form) SetJustification(s string) error {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > MaxJustification {
		return kerrors.FieldErrors{FieldJustification: fmt.Sprintf("must be at most %d characters", MaxJustification)}
	}
	f.justification = s
	return nil
}

// SelectCluster picks a cluster from the loaded options.
func (f *Form) SelectCluster(name string) error {
	if !f.options.HasCluster(name) {
		return kerrors.FieldErrors{FieldCluster: fmt.Sprintf("unknown cluster %q", name)}
	}
	f.cluster = name
	return nil
}

// SelectRole picks a role from the loaded options.
func (f *Form) SelectRole(name string) error {
	if !f.options.HasRole(name) {
		return kerrors.FieldErrors{FieldRole: fmt.Sprintf("unknown role %q", name)}
	}
	f.role = name
	return nil
}

// SelectApprovingTeam picks the team asked to approve, by id or name, from
// the requester's approver groups. It is optional.
func (f *Form) SelectApprovingTeam(key string, groups []models.Team) error {
	for _, g := range groups {
		if g.ID == key || g.Name == key {
			team := g
			f.team = &team
			return nil
		}
	}
	return kerrors.FieldErrors{FieldApprovingTeam: fmt.Sprintf("unknown team %q", key)}
}

// SetStart sets the window start. An end date before the new start is
// cleared.
func (f *Form) SetStart(t time.Time) {
	f.start = t
	if !f.end.IsZero() && f.end.Before(t) {
		f.end = time.Time{}
	}
}

// SetEnd sets the window end.
func (f *Form) SetEnd(t time.Time) error {
	if !f.start.IsZero() && t.Before(f.start) {
		return kerrors.FieldErrors{FieldEndDate: "must not be before the start date"}
	}
	f.end = t
	return nil
}

// Window returns the selected start and end.
func (f *Form) Window() (time.Time, time.Time) { return f.start, f.end }

// Validate checks every submit precondition.
func (f *Form) Validate() error {
	fe := kerrors.FieldErrors{}
	if f.Users.Len() == 0 {
		fe[FieldUsers] = "at least one email is required"
	}
	if f.Namespaces.Len() == 0 {
		fe[FieldNamespaces] = "at least one namespace is required"
	}
	switch n := utf8.RuneCountInString(f.justification); {
	case n == 0:
		fe[FieldJustification] = "is required"
	case n > MaxJustification:
		fe[FieldJustification] = fmt.Sprintf("must be at most %d characters", MaxJustification)
	}
	if f.cluster == "" || !f.options.HasCluster(f.cluster) {
		fe[FieldCluster] = "select a cluster"
	}
	if f.role == "" || !f.options.HasRole(f.role) {
		fe[FieldRole] = "select a role"
	}
	if f.start.IsZero() {
		fe[FieldStartDate] = "is required"
	}
	switch {
	case f.end.IsZero():
		fe[FieldEndDate] = "is required"
	case !f.start.IsZero() && f.end.Before(f.start):
		fe[FieldEndDate] = "must not be before the start date"
	}
	if len(fe) == 0 {
		return nil
	}
	return fe
}

// CanSubmit reports whether the submit control is enabled.
func (f *Form) CanSubmit() bool {
	return f.Validate() == nil
}

// Payload builds the request body for user.
func (f *Form) Payload(user *models.UserIdentity) *models.SubmitRequest {
	req := &models.SubmitRequest{
		Justification: f.justification,
		Users:         f.Users.Tags(),
		Cluster:       &models.Cluster{Name: f.cluster},
		Namespaces:    f.Namespaces.Tags(),
		Role:          &models.ClusterRole{Name: f.role},
		ApprovingTeam: f.team,
		Status:        models.StatusRequested,
		StartDate:     f.start,
		EndDate:       f.end,
	}
	if user != nil {
		req.RequestorID = user.ID
		req.RequestorName = user.Name
	}
	return req
}

// Review renders the confirmation summary shown before submitting.
func (f *Form) Review() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Cluster:       %s\n", f.cluster)
	fmt.Fprintf(&b, "Role:          %s\n", f.role)
	fmt.Fprintf(&b, "Namespaces:    %s\n", strings.Join(f.Namespaces.Tags(), ", "))
	fmt.Fprintf(&b, "Users:         %s\n", strings.Join(f.Users.Tags(), ", "))
	if f.team != nil {
		fmt.Fprintf(&b, "Team:          %s\n", f.team.Name)
	}
	fmt.Fprintf(&b, "Justification: %s\n", f.justification)
	fmt.Fprintf(&b, "Start:         %s\n", formatTime(f.start))
	fmt.Fprintf(&b, "End:           %s\n", formatTime(f.end))
	return b.String()
}

// Reset clears every field, tags included.
func (f *Form) Reset() {
	f.Users.Reset()
	f.Namespaces.Reset()
	f.justification = ""
	f.cluster = ""
	f.role = ""
	f.team = nil
	f.start = time.Time{}
	f.end = time.Time{}
}

// Outcome tells the shell what to do after a submission.
type Outcome struct {
	Message string
	// Redirect is the tab to switch to after RedirectAfter.
	Redirect      tabs.Tab
	RedirectAfter time.Duration
}

// Submit posts the form when confirmed. On success the form is reset; on
// failure it is left as it was and an error banner is shown.
func (f *Form) Submit(ctx context.Context, s Submitter, user *models.UserIdentity, confirmed bool) (*Outcome, error) {
	if !confirmed {
		return nil, kerrors.ErrNotConfirmed
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	msg, err := s.SubmitRequest(ctx, f.Payload(user))
	if err != nil {
		f.show(banner.Error, kerrors.UserMessage(err, FallbackSubmitError), ErrorBannerTTL)
		return nil, err
	}

	f.Reset()
	f.show(banner.Success, msg, SubmitRedirectDelay)
	return &Outcome{Message: msg, Redirect: tabs.History, RedirectAfter: SubmitRedirectDelay}, nil
}

func (f *Form) show(kind banner.Kind, text string, ttl time.Duration) {
	if f.banners != nil && text != "" {
		f.banners.Show(kind, text, ttl)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04")
}
