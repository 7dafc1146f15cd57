package scope

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-integrity/internal/model"
	"github.com/stretchr/testify/require"
)

func TestResolveRejectsMissingIdentity(t *testing.T) {
	_, err := Resolve(nil, "", nil)
	require.ErrorIs(t, err, ErrUnauthenticated)

	_, err = Resolve(&Identity{Role: model.RoleAdmin}, "", nil)
	require.ErrorIs(t, err, ErrUnauthenticated)

	_, err = Resolve(&Identity{UserID: uuid.New(), Role: "janitor"}, "", nil)
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestResolveUsesIdentityInstitute(t *testing.T) {
	inst := uuid.New()
	s, err := Resolve(&Identity{UserID: uuid.New(), Role: model.RoleStudent, InstituteID: &inst}, "", nil)
	require.NoError(t, err)
	require.Equal(t, inst, s.InstituteID)
	require.False(t, s.IsSuperAdmin)
	require.True(t, s.Allows(inst))
	require.False(t, s.Allows(uuid.New()))

	filter, ok := s.InstituteFilter()
	require.True(t, ok)
	require.Equal(t, inst, filter)
}

func TestResolveMissingInstitute(t *testing.T) {
	_, err := Resolve(&Identity{UserID: uuid.New(), Role: model.RoleAdmin}, "", nil)
	require.ErrorIs(t, err, ErrScopeMissing)

	nilID := uuid.Nil
	_, err = Resolve(&Identity{UserID: uuid.New(), Role: model.RoleAdmin, InstituteID: &nilID}, "", nil)
	require.ErrorIs(t, err, ErrScopeMissing)
}

func TestResolveCodeNeverElevates(t *testing.T) {
	own := uuid.New()
	other := &model.Institute{ID: uuid.New(), Code: "OTHER"}

	_, err := Resolve(&Identity{UserID: uuid.New(), Role: model.RoleAdmin, InstituteID: &own}, "OTHER", other)
	require.ErrorIs(t, err, ErrScopeMissing)

	_, err = Resolve(&Identity{UserID: uuid.New(), Role: model.RoleAdmin, InstituteID: &own}, "NOPE", nil)
	require.ErrorIs(t, err, ErrScopeMissing)

	mine := &model.Institute{ID: own, Code: "MINE"}
	s, err := Resolve(&Identity{UserID: uuid.New(), Role: model.RoleAdmin, InstituteID: &own}, "MINE", mine)
	require.NoError(t, err)
	require.Equal(t, own, s.InstituteID)
}

func TestResolveSuperAdmin(t *testing.T) {
	s, err := Resolve(&Identity{UserID: uuid.New(), Role: model.RoleSuperAdmin}, "", nil)
	require.NoError(t, err)
	require.True(t, s.IsSuperAdmin)
	require.True(t, s.Allows(uuid.New()))
	_, ok := s.InstituteFilter()
	require.False(t, ok)
	require.True(t, s.Can(CrossTenantRead))

	inst := &model.Institute{ID: uuid.New(), Code: "X"}
	narrowed, err := Resolve(&Identity{UserID: uuid.New(), Role: model.RoleSuperAdmin}, "X", inst)
	require.NoError(t, err)
	require.True(t, narrowed.IsSuperAdmin)
	require.True(t, narrowed.Allows(inst.ID))
	require.False(t, narrowed.Allows(uuid.New()))
}

func TestCapabilitiesByRole(t *testing.T) {
	inst := uuid.New()
	cases := []struct {
		role model.Role
		can  []Capability
		not  []Capability
	}{
		{model.RoleStudent, []Capability{TakeExam}, []Capability{Grade, Review, ManageEnrollment}},
		{model.RoleTeacher, []Capability{Grade}, []Capability{TakeExam, OverrideGrade, Review}},
		{model.RoleReviewer, []Capability{Review}, []Capability{Grade, ManageEnrollment}},
		{model.RoleAdmin, []Capability{Grade, OverrideGrade, Review, ManageEnrollment, ManageExams}, []Capability{TakeExam, Maintain, CrossTenantRead}},
	}
	for _, tc := range cases {
		t.Run(string(tc.role), func(t *testing.T) {
			s, err := Resolve(&Identity{UserID: uuid.New(), Role: tc.role, InstituteID: &inst}, "", nil)
			require.NoError(t, err)
			for _, c := range tc.can {
				require.True(t, s.Can(c), c.String())
			}
			for _, c := range tc.not {
				require.False(t, s.Can(c), c.String())
			}
		})
	}
}

func TestNilScopeDeniesEverything(t *testing.T) {
	var s *Scope
	require.False(t, s.Can(TakeExam))
	require.False(t, s.Allows(uuid.New()))
	require.False(t, s.Owns(uuid.New()))
}

func TestSystemScopes(t *testing.T) {
	inst := uuid.New()

	all := System()
	_, restricted := all.InstituteFilter()
	require.False(t, restricted)
	require.True(t, all.Allows(inst))
	require.True(t, all.Can(Maintain))

	one := SystemFor(inst)
	id, restricted := one.InstituteFilter()
	require.True(t, restricted)
	require.Equal(t, inst, id)
	require.False(t, one.Allows(uuid.New()))
}
