package requestform

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/kubejit/internal/banner"
	kerrors "github.com/p-blackswan/kubejit/internal/errors"
	"github.com/p-blackswan/kubejit/internal/models"
	"github.com/p-blackswan/kubejit/internal/tabs"
)

var (
	testOptions = models.Options{
		Clusters: []string{"dev-cluster", "prod-cluster"},
		Roles:    []models.ClusterRole{{Name: "edit"}, {Name: "view"}},
	}
	start = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
)

type fakeSubmitter struct {
	got []*models.SubmitRequest
	msg string
	err error
}

func (f *fakeSubmitter) SubmitRequest(_ context.Context, req *models.SubmitRequest) (string, error) {
	f.got = append(f.got, req)
	return f.msg, f.err
}

func completeForm(t *testing.T, board *banner.Board) *Form {
	t.Helper()
	f := New(testOptions, board)
	require.True(t, f.Users.Add("ada@example.com"))
	require.True(t, f.Namespaces.Add("team-a"))
	require.NoError(t, f.SetJustification("INC-1234 debugging"))
	require.NoError(t, f.SelectCluster("dev-cluster"))
	require.NoError(t, f.SelectRole("edit"))
	f.SetStart(start)
	require.NoError(t, f.SetEnd(start.Add(2*time.Hour)))
	return f
}

func TestForm_InvalidEmailKeepsSubmitDisabled(t *testing.T) {
	f := New(testOptions, nil)
	require.True(t, f.Namespaces.Add("team-a"))
	require.NoError(t, f.SetJustification("because"))
	require.NoError(t, f.SelectCluster("dev-cluster"))
	require.NoError(t, f.SelectRole("edit"))
	f.SetStart(start)
	require.NoError(t, f.SetEnd(start.Add(time.Hour)))

	assert.False(t, f.Users.Add("not-an-email"))
	assert.Equal(t, EmailTagError, f.Users.Error())
	assert.Zero(t, f.Users.Len())
	assert.False(t, f.CanSubmit())

	assert.True(t, f.Users.Add("ada@example.com"))
	assert.Empty(t, f.Users.Error())
	assert.True(t, f.CanSubmit())
}

func TestForm_ValidateReportsEveryMissingField(t *testing.T) {
	err := New(testOptions, nil).Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, kerrors.ErrInvalidInput)

	var fe kerrors.FieldErrors
	require.ErrorAs(t, err, &fe)
	for _, field := range []string{FieldUsers, FieldNamespaces, FieldJustification, FieldCluster, FieldRole, FieldStartDate, FieldEndDate} {
		assert.Contains(t, fe, field)
	}
}

func TestTagInput_NamespaceRules(t *testing.T) {
	ns := New(testOptions, nil).Namespaces
	for _, bad := range []string{"Team-A", "-team", "team-", "team_a", strings.Repeat("a", 64)} {
		assert.False(t, ns.Add(bad), bad)
		assert.Equal(t, NamespaceTagError, ns.Error())
	}
	assert.True(t, ns.Add("a"))
	assert.True(t, ns.Add(strings.Repeat("b", 63)))
	assert.True(t, ns.Add("team-a, team-b team-a"))
	assert.Equal(t, []string{"a", strings.Repeat("b", 63), "team-a", "team-b"}, ns.Tags())

	ns.Remove("a")
	assert.False(t, ns.Contains("a"))
	ns.Reset()
	assert.Zero(t, ns.Len())
}

func TestForm_Justification(t *testing.T) {
	f := New(testOptions, nil)
	assert.NoError(t, f.SetJustification(strings.Repeat("x", MaxJustification)))
	assert.ErrorIs(t, f.SetJustification(strings.Repeat("x", MaxJustification+1)), kerrors.ErrInvalidInput)
}

func TestForm_SelectionsMustComeFromOptions(t *testing.T) {
	f := New(testOptions, nil)
	assert.Error(t, f.SelectCluster("staging"))
	assert.Error(t, f.SelectRole("cluster-admin"))
	assert.NoError(t, f.SelectCluster("prod-cluster"))
	assert.NoError(t, f.SelectRole("view"))
}

func TestForm_Window(t *testing.T) {
	f := New(testOptions, nil)
	f.SetStart(start)
	assert.Error(t, f.SetEnd(start.Add(-time.Minute)))
	require.NoError(t, f.SetEnd(start))

	// Moving the start past the end clears the end.
	f.SetStart(start.Add(time.Hour))
	_, end := f.Window()
	assert.True(t, end.IsZero())
}

func TestForm_SubmitRequiresConfirmation(t *testing.T) {
	s := &fakeSubmitter{msg: "ok"}
	f := completeForm(t, nil)

	_, err := f.Submit(context.Background(), s, &models.UserIdentity{ID: "u1", Name: "Ada"}, false)
	assert.ErrorIs(t, err, kerrors.ErrNotConfirmed)
	assert.Empty(t, s.got)
}

func TestForm_SubmitSuccess(t *testing.T) {
	board := banner.NewBoard(nil)
	s := &fakeSubmitter{msg: "Request submitted successfully"}
	f := completeForm(t, board)
	team := models.Team{ID: "42", Name: "platform"}
	require.NoError(t, f.SelectApprovingTeam("platform", []models.Team{team}))

	out, err := f.Submit(context.Background(), s, &models.UserIdentity{ID: "u1", Name: "Ada"}, true)
	require.NoError(t, err)
	assert.Equal(t, tabs.History, out.Redirect)
	assert.Equal(t, time.Second, out.RedirectAfter)
	assert.Equal(t, "Request submitted successfully", board.Current(banner.Success).Text)

	require.Len(t, s.got, 1)
	req := s.got[0]
	assert.Equal(t, models.StatusRequested, req.Status)
	assert.Equal(t, "u1", req.RequestorID)
	assert.Equal(t, "Ada", req.RequestorName)
	assert.Equal(t, "dev-cluster", req.Cluster.Name)
	assert.Equal(t, "edit", req.Role.Name)
	assert.Equal(t, []string{"team-a"}, req.Namespaces)
	assert.Equal(t, []string{"ada@example.com"}, req.Users)
	assert.Equal(t, &team, req.ApprovingTeam)

	// The form is cleared, tags included.
	assert.Zero(t, f.Users.Len())
	assert.Zero(t, f.Namespaces.Len())
	assert.False(t, f.CanSubmit())
}

func TestForm_SubmitFailureKeepsState(t *testing.T) {
	board := banner.NewBoard(nil)
	s := &fakeSubmitter{err: kerrors.NewAPIError("/submit-request", 500, "Failed to submit request (database err)")}
	f := completeForm(t, board)

	_, err := f.Submit(context.Background(), s, &models.UserIdentity{ID: "u1", Name: "Ada"}, true)
	require.Error(t, err)
	assert.Equal(t, "Failed to submit request (database err)", board.Current(banner.Error).Text)
	assert.True(t, f.CanSubmit())

	s.err = errors.New("dial tcp: connection refused")
	_, err = f.Submit(context.Background(), s, nil, true)
	require.Error(t, err)
	assert.Equal(t, FallbackSubmitError, board.Current(banner.Error).Text)
}

func TestForm_Review(t *testing.T) {
	out := completeForm(t, nil).Review()
	assert.Contains(t, out, "dev-cluster")
	assert.Contains(t, out, "team-a")
	assert.Contains(t, out, "ada@example.com")
	assert.Contains(t, out, "2024-06-01 09:00")
}
