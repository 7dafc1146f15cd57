package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRoster_EnrollOutcomes(t *testing.T) {
	now := time.Date(2026, 1, 5, 7, 0, 0, 0, time.UTC)
	actor := uuid.New()
	student := uuid.New()
	var r Roster

	assert.Equal(t, EnrollOutcomeEnrolled, r.Enroll(student, actor, now))
	assert.Equal(t, EnrollOutcomeAlreadyActive, r.Enroll(student, actor, now))

	found, changed := r.SetStatus(student, actor, EnrollmentWithdrawn, now)
	assert.True(t, found)
	assert.True(t, changed)
	assert.Zero(t, r.ActiveCount())

	assert.Equal(t, EnrollOutcomeReactivated, r.Enroll(student, actor, now.Add(time.Hour)))
	assert.Len(t, r, 1)
	assert.Equal(t, now, r[0].EnrolledAt)
	assert.Equal(t, now.Add(time.Hour), r[0].UpdatedAt)
}

func TestRoster_EnrollPrefersActiveDuplicate(t *testing.T) {
	student := uuid.New()
	r := Roster{
		{StudentID: student, Status: EnrollmentInactive},
		{StudentID: student, Status: EnrollmentActive},
	}
	assert.Equal(t, EnrollOutcomeAlreadyActive, r.Enroll(student, uuid.New(), time.Now()))
	assert.Len(t, r, 2)
}

func TestRoster_ActiveCountIgnoresDuplicates(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	r := Roster{
		{StudentID: a, Status: EnrollmentActive},
		{StudentID: a, Status: EnrollmentActive},
		{StudentID: b, Status: EnrollmentInactive},
	}
	assert.Equal(t, 1, r.ActiveCount())
	assert.True(t, r.IsActive(a))
	assert.False(t, r.IsActive(b))
}

func TestRoster_SetStatusUnchanged(t *testing.T) {
	student := uuid.New()
	r := Roster{{StudentID: student, Status: EnrollmentInactive}}

	found, changed := r.SetStatus(student, uuid.New(), EnrollmentInactive, time.Now())
	assert.True(t, found)
	assert.False(t, changed)

	found, _ = r.SetStatus(uuid.New(), uuid.New(), EnrollmentInactive, time.Now())
	assert.False(t, found)
}

func TestRoster_Deduplicate(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	r := Roster{
		{StudentID: a, Status: EnrollmentWithdrawn},
		{StudentID: b, Status: EnrollmentActive},
		{StudentID: a, Status: EnrollmentActive},
		{StudentID: c, Status: EnrollmentInactive},
		{StudentID: c, Status: EnrollmentWithdrawn},
	}
	before := r.ActiveCount()

	assert.Equal(t, 2, r.Deduplicate())
	assert.Equal(t, Roster{
		{StudentID: b, Status: EnrollmentActive},
		{StudentID: a, Status: EnrollmentActive},
		{StudentID: c, Status: EnrollmentInactive},
	}, r)
	assert.Equal(t, before, r.ActiveCount())
	assert.Zero(t, r.Deduplicate())
}
