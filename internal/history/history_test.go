package history

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/kubejit/internal/api"
	"github.com/p-blackswan/kubejit/internal/banner"
	kerrors "github.com/p-blackswan/kubejit/internal/errors"
	"github.com/p-blackswan/kubejit/internal/models"
)

var (
	self       = &models.UserIdentity{ID: "u1", Name: "Ada"}
	ordinary   = models.PermissionSet{IsApprover: true}
	privileged = models.PermissionSet{IsPlatformApprover: true}
)

func TestClampLimit(t *testing.T) {
	tests := []struct {
		limit int
		perms models.PermissionSet
		want  int
	}{
		{0, ordinary, DefaultLimit},
		{5, ordinary, 5},
		{20, ordinary, 20},
		{21, ordinary, 20},
		{500, ordinary, 20},
		{-3, ordinary, 1},
		{50, privileged, 50},
		{101, privileged, 100},
		{101, models.PermissionSet{IsAdmin: true}, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampLimit(tt.limit, tt.perms), "limit %d", tt.limit)
	}
}

func TestResolve_OrdinaryUserPinnedToSelf(t *testing.T) {
	q, err := Resolve(Params{UserID: "someone-else", Username: "bob", Limit: 50}, self, ordinary)
	require.NoError(t, err)
	assert.Equal(t, "u1", q.UserID)
	assert.Empty(t, q.Username)
	assert.Equal(t, 20, q.Limit)
}

func TestResolve_PrivilegedMayQueryOthers(t *testing.T) {
	q, err := Resolve(Params{Username: "bob", Limit: 80}, self, privileged)
	require.NoError(t, err)
	assert.Empty(t, q.UserID)
	assert.Equal(t, "bob", q.Username)
	assert.Equal(t, 80, q.Limit)

	q, err = Resolve(Params{}, self, privileged)
	require.NoError(t, err)
	assert.Equal(t, "u1", q.UserID)
}

func TestResolve_Errors(t *testing.T) {
	now := time.Now()
	_, err := Resolve(Params{Start: now, End: now.Add(-time.Hour)}, self, ordinary)
	assert.ErrorIs(t, err, kerrors.ErrInvalidInput)

	_, err = Resolve(Params{}, nil, ordinary)
	assert.ErrorIs(t, err, kerrors.ErrUnauthorized)
}

type fakeBackend struct {
	got  api.HistoryQuery
	rows []models.AccessRequest
	err  error
}

func (f *fakeBackend) History(_ context.Context, q api.HistoryQuery) ([]models.AccessRequest, error) {
	f.got = q
	return f.rows, f.err
}

func TestSearch_Run(t *testing.T) {
	backend := &fakeBackend{rows: sampleRows()}
	board := banner.NewBoard(nil)
	s := NewSearch(backend, board, zerolog.Nop())

	tbl, err := s.Run(context.Background(), Params{Limit: 3}, self, ordinary)
	require.NoError(t, err)
	assert.Equal(t, 3, tbl.Len())
	assert.Equal(t, "u1", backend.got.UserID)
	assert.Equal(t, 3, backend.got.Limit)

	backend.err = errors.New("boom")
	_, err = s.Run(context.Background(), Params{}, self, ordinary)
	require.Error(t, err)
	assert.Equal(t, FetchError, board.Current(banner.Error).Text)
}

func sampleRows() []models.AccessRequest {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return []models.AccessRequest{
		{ID: 2, Username: "ada", ClusterName: "prod", RoleName: "edit", Status: models.StatusApproved,
			Namespaces: []string{"payments"}, Users: []string{"ada@example.com"}, ApproverNames: []string{"grace"},
			StartDate: base.Add(2 * time.Hour), EndDate: base.Add(3 * time.Hour), CreatedAt: base.Add(time.Hour)},
		{ID: 10, Username: "bob", ClusterName: "dev", RoleName: "view", Status: models.StatusRejected,
			Namespaces: []string{"web"}, Justification: "INC-77, rollback",
			StartDate: base, EndDate: base.Add(time.Hour), CreatedAt: base},
		{ID: 5, Username: "carol", ClusterName: "dev", RoleName: "admin", Status: models.StatusSucceeded,
			Namespaces: []string{"batch", "jobs"},
			StartDate: base.Add(time.Hour), EndDate: base.Add(5 * time.Hour), CreatedAt: base.Add(2 * time.Hour)},
	}
}

func ids(t *Table) []uint {
	var out []uint
	for _, r := range t.Rows() {
		out = append(out, r.ID)
	}
	return out
}

func TestTable_Filter(t *testing.T) {
	tbl := NewTable(sampleRows())
	assert.Equal(t, []uint{10, 5}, ids(tbl.Filter("DEV")))
	assert.Equal(t, []uint{2}, ids(tbl.Filter("grace")))
	assert.Equal(t, []uint{5}, ids(tbl.Filter("jobs")))
	assert.Equal(t, 3, tbl.Filter("  ").Len())
	assert.Zero(t, tbl.Filter("nothing-matches").Len())
}

func TestTable_Sort(t *testing.T) {
	tbl := NewTable(sampleRows())

	require.NoError(t, tbl.Sort("id", false))
	assert.Equal(t, []uint{2, 5, 10}, ids(tbl))

	require.NoError(t, tbl.Sort("ID", true))
	assert.Equal(t, []uint{10, 5, 2}, ids(tbl))

	require.NoError(t, tbl.Sort("period", false))
	assert.Equal(t, []uint{10, 5, 2}, ids(tbl))

	require.NoError(t, tbl.Sort("created", true))
	assert.Equal(t, []uint{5, 2, 10}, ids(tbl))

	require.NoError(t, tbl.Sort("requester", false))
	assert.Equal(t, []uint{2, 10, 5}, ids(tbl))

	assert.Error(t, tbl.Sort("colour", false))
}

func TestTable_ExportCSV(t *testing.T) {
	tbl := NewTable(sampleRows())
	require.NoError(t, tbl.Sort("ID", false))

	var buf bytes.Buffer
	require.NoError(t, tbl.ExportCSV(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, strings.Join(Columns, ","), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "2,"))
	assert.Contains(t, lines[3], `"INC-77, rollback"`)
}

func TestTable_RenderTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTable(sampleRows()).Render(&buf, "table"))
	assert.Contains(t, buf.String(), "JUSTIFICATION")
	assert.Contains(t, buf.String(), "payments")
}
