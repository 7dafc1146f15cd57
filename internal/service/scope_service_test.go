package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-integrity/internal/model"
	"github.com/stemsi/exstem-integrity/internal/policy"
	"github.com/stemsi/exstem-integrity/internal/scope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeService_Resolve(t *testing.T) {
	f := newFixture(t)
	other := f.db.AddInstitute("SMAN2")
	admin := f.db.AddUser(model.RoleAdmin, &f.institute.ID)
	super := f.db.AddUser(model.RoleSuperAdmin, nil)

	adminID := &scope.Identity{UserID: admin.ID, Role: admin.Role, InstituteID: admin.InstituteID}
	superID := &scope.Identity{UserID: super.ID, Role: super.Role}

	t.Run("own institute", func(t *testing.T) {
		sc, err := f.scopes.Resolve(t.Context(), adminID, "")
		require.NoError(t, err)
		assert.Equal(t, f.institute.ID, sc.InstituteID)
	})

	t.Run("matching code is case insensitive", func(t *testing.T) {
		sc, err := f.scopes.Resolve(t.Context(), adminID, "sman1")
		require.NoError(t, err)
		assert.Equal(t, f.institute.ID, sc.InstituteID)
	})

	t.Run("foreign code does not elevate", func(t *testing.T) {
		_, err := f.scopes.Resolve(t.Context(), adminID, "SMAN2")
		assert.ErrorIs(t, err, ErrScopeMissing)
	})

	t.Run("unknown code", func(t *testing.T) {
		_, err := f.scopes.Resolve(t.Context(), superID, "NOPE")
		assert.ErrorIs(t, err, ErrScopeMissing)
	})

	t.Run("super admin narrowed", func(t *testing.T) {
		sc, err := f.scopes.Resolve(t.Context(), superID, "SMAN2")
		require.NoError(t, err)
		assert.True(t, sc.IsSuperAdmin)
		assert.Equal(t, other.ID, sc.InstituteID)
		assert.False(t, sc.Allows(f.institute.ID))
	})

	t.Run("unauthenticated", func(t *testing.T) {
		_, err := f.scopes.Resolve(t.Context(), nil, "")
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})
}

func TestScopeService_Describe(t *testing.T) {
	f := newFixture(t)

	view, err := f.scopes.Describe(t.Context(), f.reviewer)
	require.NoError(t, err)
	require.NotNil(t, view.Institute)
	assert.Equal(t, "SMAN1", view.Institute.Code)
	assert.Equal(t, []string{"review"}, view.Capabilities)

	super := f.resolve(t, f.db.AddUser(model.RoleSuperAdmin, nil))
	view, err = f.scopes.Describe(t.Context(), super)
	require.NoError(t, err)
	assert.Nil(t, view.Institute)
}

func TestScopeService_DescribeSeverityPolicy(t *testing.T) {
	f := newFixture(t)

	path := filepath.Join(t.TempDir(), "severity.yaml")
	body := "institutes:\n  " + f.institute.ID.String() + ":\n    focus_loss: high\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	sev, err := policy.Load(path, zerolog.Nop())
	require.NoError(t, err)
	scopes := NewScopeService(f.db.Institutes(), sev)

	t.Run("reviewer sees institute overrides", func(t *testing.T) {
		view, err := scopes.Describe(t.Context(), f.reviewer)
		require.NoError(t, err)
		assert.Equal(t, model.SeverityHigh, view.SeverityPolicy[model.EventFocusLoss])
		assert.Equal(t, model.SeverityMedium, view.SeverityPolicy[model.EventTabSwitch])
		assert.Len(t, view.SeverityPolicy, len(model.AllEventTypes))
	})

	t.Run("teacher sees it too", func(t *testing.T) {
		view, err := scopes.Describe(t.Context(), f.teacher)
		require.NoError(t, err)
		assert.NotEmpty(t, view.SeverityPolicy)
	})

	t.Run("unrestricted super admin sees the base table", func(t *testing.T) {
		super := f.resolve(t, f.db.AddUser(model.RoleSuperAdmin, nil))
		view, err := scopes.Describe(t.Context(), super)
		require.NoError(t, err)
		assert.Equal(t, model.SeverityLow, view.SeverityPolicy[model.EventFocusLoss])
	})

	t.Run("student does not", func(t *testing.T) {
		view, err := scopes.Describe(t.Context(), f.enrolledStudent(t))
		require.NoError(t, err)
		assert.Nil(t, view.SeverityPolicy)
	})
}
