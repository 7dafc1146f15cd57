package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-integrity/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedLogin(t *testing.T, f *fixture, role model.Role, email, password string) *model.User {
	t.Helper()
	u := f.db.AddUser(role, &f.institute.ID)
	hash, err := f.auth.HashPassword(password)
	require.NoError(t, err)
	f.db.Users().SetPassword(u.ID, email, hash)
	return u
}

func TestLogin_StudentSingleSession(t *testing.T) {
	f := newFixture(t)
	u := seedLogin(t, f, model.RoleStudent, "siswa@sman1.sch.id", "rahasia123")
	req := model.LoginRequest{Email: "Siswa@sman1.sch.id", Password: "rahasia123"}

	resp, err := f.auth.Login(t.Context(), req)
	require.NoError(t, err)
	assert.Equal(t, u.ID, resp.User.ID)

	claims, err := f.auth.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, model.RoleStudent, claims.Role)
	require.NotNil(t, claims.InstituteID)
	assert.Equal(t, f.institute.ID, *claims.InstituteID)
	require.NoError(t, f.auth.ValidateSession(t.Context(), claims))

	_, err = f.auth.Login(t.Context(), req)
	assert.ErrorIs(t, err, ErrSessionAlreadyActive)

	require.NoError(t, f.auth.ResetStudentSession(t.Context(), f.admin, u.ID))
	assert.ErrorIs(t, f.auth.ValidateSession(t.Context(), claims), ErrSessionInvalidated)

	resp, err = f.auth.Login(t.Context(), req)
	require.NoError(t, err)
	fresh, err := f.auth.ValidateToken(resp.Token)
	require.NoError(t, err)
	require.NoError(t, f.auth.ValidateSession(t.Context(), fresh))
}

func TestLogin_StaffNotSessionBound(t *testing.T) {
	f := newFixture(t)
	seedLogin(t, f, model.RoleReviewer, "reviewer@sman1.sch.id", "rahasia123")
	req := model.LoginRequest{Email: "reviewer@sman1.sch.id", Password: "rahasia123"}

	_, err := f.auth.Login(t.Context(), req)
	require.NoError(t, err)
	resp, err := f.auth.Login(t.Context(), req)
	require.NoError(t, err)

	claims, err := f.auth.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.NoError(t, f.auth.ValidateSession(t.Context(), claims))
}

func TestLogin_BadCredentials(t *testing.T) {
	f := newFixture(t)
	seedLogin(t, f, model.RoleAdmin, "admin@sman1.sch.id", "rahasia123")

	_, err := f.auth.Login(t.Context(), model.LoginRequest{Email: "admin@sman1.sch.id", Password: "salah"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.auth.Login(t.Context(), model.LoginRequest{Email: "nobody@sman1.sch.id", Password: "rahasia123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateToken_Expired(t *testing.T) {
	f := newFixture(t)
	u := seedLogin(t, f, model.RoleTeacher, "guru@sman1.sch.id", "rahasia123")
	token, err := f.auth.GenerateToken(t.Context(), u)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	_, err = f.auth.ValidateToken(token)
	assert.Error(t, err)
}

func TestResetStudentSession_Scoped(t *testing.T) {
	f := newFixture(t)
	u := seedLogin(t, f, model.RoleStudent, "siswa@sman1.sch.id", "rahasia123")

	assert.ErrorIs(t, f.auth.ResetStudentSession(t.Context(), f.teacher, u.ID), ErrForbidden)
	assert.ErrorIs(t, f.auth.ResetStudentSession(t.Context(), f.admin, uuid.New()), ErrNotFound)

	other := f.db.AddInstitute("SMAN2")
	outsider := f.staff(t, model.RoleAdmin, other.ID)
	assert.ErrorIs(t, f.auth.ResetStudentSession(t.Context(), outsider, u.ID), ErrNotFound)
}
