package tabs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kerrors "github.com/p-blackswan/kubejit/internal/errors"
	"github.com/p-blackswan/kubejit/internal/models"
)

func TestCompose_ApproverOnly(t *testing.T) {
	perms := models.PermissionSet{IsApprover: true}
	l := Compose(perms, Approve)

	assert.True(t, l.Has(Approve))
	assert.False(t, l.Has(Admin))
	assert.Equal(t, "Approver", l.Badge)
	assert.Equal(t, Approve, l.Active)
	assert.Equal(t, []Tab{Request, Approve, History}, l.Tabs)
}

func TestCompose_AdminOutranksOtherRoles(t *testing.T) {
	perms := models.PermissionSet{IsAdmin: true, IsApprover: true, IsPlatformApprover: true}
	l := Compose(perms, Admin)

	assert.Equal(t, All, l.Tabs)
	assert.Equal(t, "Admin", l.Badge)
	assert.Equal(t, Admin, l.Active)
}

func TestCompose_AdminFlagAloneShowsApproveAndAdmin(t *testing.T) {
	l := Compose(models.PermissionSet{IsAdmin: true}, Request)
	assert.True(t, l.Has(Approve))
	assert.True(t, l.Has(Admin))
	assert.Equal(t, "Admin", l.Badge)
}

func TestCompose_NoRoles(t *testing.T) {
	l := Compose(models.PermissionSet{}, Admin)
	assert.Equal(t, []Tab{Request, History}, l.Tabs)
	assert.Equal(t, Request, l.Active)
	assert.Empty(t, l.Badge)
}

func TestBadge_Precedence(t *testing.T) {
	assert.Equal(t, "Platform Approver", Badge(models.PermissionSet{IsPlatformApprover: true, IsApprover: true}))
	assert.Equal(t, "Approver", Badge(models.PermissionSet{IsApprover: true}))
	assert.Equal(t, "", Badge(models.PermissionSet{}))
}

func TestRequire(t *testing.T) {
	assert.NoError(t, Require(History, models.PermissionSet{}))
	assert.ErrorIs(t, Require(Approve, models.PermissionSet{}), kerrors.ErrNotPermitted)
	assert.ErrorIs(t, Require(Admin, models.PermissionSet{IsPlatformApprover: true}), kerrors.ErrNotPermitted)
	assert.NoError(t, Require(Approve, models.PermissionSet{IsPlatformApprover: true}))
}

func TestParse(t *testing.T) {
	tab, err := Parse(" approve ")
	require.NoError(t, err)
	assert.Equal(t, Approve, tab)

	_, err = Parse("settings")
	assert.ErrorIs(t, err, kerrors.ErrInvalidInput)
}

func TestRender(t *testing.T) {
	out := Render(Header{
		User:   &models.UserIdentity{Name: "Ada", Email: "ada@example.com"},
		Layout: Compose(models.PermissionSet{IsApprover: true}, History),
		Build:  "abc1234",
	})
	assert.Contains(t, out, "Ada")
	assert.Contains(t, out, "ada@example.com")
	assert.Contains(t, out, "Approver")
	assert.Contains(t, out, "build abc1234")
	assert.Contains(t, out, "History")
	assert.NotContains(t, out, "Admin")
}
