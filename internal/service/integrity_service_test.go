package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-integrity/internal/config"
	"github.com/stemsi/exstem-integrity/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordEvent_SeverityFromPolicyOnly(t *testing.T) {
	f := newFixture(t)
	student, sub := f.startedAttempt(t)

	inputs := []EventInput{
		{EventType: model.EventTabSwitch},
		{EventType: model.EventTabSwitch, Metadata: model.EventMetadata{Source: "critical", Extra: []byte(`{"severity":"critical"}`)}},
		{EventType: model.EventTabSwitch, QuestionID: "q2"},
	}
	for _, in := range inputs {
		f.clock.Advance(time.Second)
		e, err := f.integrity.RecordEvent(t.Context(), student, sub.ID, in)
		require.NoError(t, err)
		assert.Equal(t, model.SeverityMedium, e.Severity)
		assert.False(t, e.Late)
		assert.Equal(t, f.institute.ID, e.InstituteID)
		assert.Equal(t, student.UserID, e.StudentID)
		assert.Equal(t, f.examID, e.ExamID)
	}

	e, err := f.integrity.RecordEvent(t.Context(), student, sub.ID, EventInput{EventType: model.EventMultipleSessions})
	require.NoError(t, err)
	assert.Equal(t, model.SeverityCritical, e.Severity)
	assert.Equal(t, int64(3), e.TimeFromStart)
}

func TestRecordEvent_UnknownTypeRejected(t *testing.T) {
	f := newFixture(t)
	student, sub := f.startedAttempt(t)

	_, err := f.integrity.RecordEvent(t.Context(), student, sub.ID, EventInput{EventType: "screen_recording"})
	assert.ErrorIs(t, err, ErrInvalidEventType)
	assert.Empty(t, f.db.Events())
}

func TestRecordEvent_OnlyOwnerMayReport(t *testing.T) {
	f := newFixture(t)
	_, sub := f.startedAttempt(t)

	_, err := f.integrity.RecordEvent(t.Context(), f.enrolledStudent(t), sub.ID, EventInput{EventType: model.EventTabSwitch})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.integrity.RecordEvent(t.Context(), f.reviewer, sub.ID, EventInput{EventType: model.EventTabSwitch})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Empty(t, f.db.Events())
}

func TestRecordEvent_LateEventIsKept(t *testing.T) {
	f := newFixture(t)
	student, sub := f.startedAttempt(t)
	_, err := f.submissions.Submit(t.Context(), student, sub.ID, nil)
	require.NoError(t, err)

	e, err := f.integrity.RecordEvent(t.Context(), student, sub.ID, EventInput{EventType: model.EventFocusLoss})
	assert.ErrorIs(t, err, ErrLateEvent)
	assert.ErrorIs(t, err, ErrNotInProgress)
	require.NotNil(t, e)
	assert.True(t, e.Late)

	stored := f.db.Events()
	require.Len(t, stored, 1)
	assert.True(t, stored[0].Late)
}

func TestUnreviewedForExam_GroupedBySeverity(t *testing.T) {
	f := newFixture(t)
	student, sub := f.startedAttempt(t)

	for _, et := range []model.EventType{
		model.EventRightClick,
		model.EventMultipleSessions,
		model.EventTabSwitch,
		model.EventRightClick,
	} {
		f.clock.Advance(time.Second)
		_, err := f.integrity.RecordEvent(t.Context(), student, sub.ID, EventInput{EventType: et})
		require.NoError(t, err)
	}

	_, err := f.integrity.UnreviewedForExam(t.Context(), f.teacher, f.examID)
	assert.ErrorIs(t, err, ErrForbidden)

	groups, err := f.integrity.UnreviewedForExam(t.Context(), f.reviewer, f.examID)
	require.NoError(t, err)
	require.Len(t, groups, 3)
	assert.Equal(t, model.SeverityCritical, groups[0].Severity)
	assert.Equal(t, model.SeverityMedium, groups[1].Severity)
	assert.Equal(t, model.SeverityLow, groups[2].Severity)
	assert.Equal(t, 2, groups[2].Count)

	list, err := f.integrity.EventsForSubmission(t.Context(), f.teacher, sub.ID)
	require.NoError(t, err)
	require.Len(t, list, 4)
	for i := 1; i < len(list); i++ {
		assert.False(t, list[i].OccurredAt.Before(list[i-1].OccurredAt))
	}
}

func TestEventsForStudent_ReviewedFilter(t *testing.T) {
	f := newFixture(t)
	student, sub := f.startedAttempt(t)

	first, err := f.integrity.RecordEvent(t.Context(), student, sub.ID, EventInput{EventType: model.EventCopyAttempt})
	require.NoError(t, err)
	_, err = f.integrity.RecordEvent(t.Context(), student, sub.ID, EventInput{EventType: model.EventPasteAttempt})
	require.NoError(t, err)
	_, err = f.review.ReviewEvent(t.Context(), f.reviewer, first.ID, Disposition{Action: model.ReviewWarn})
	require.NoError(t, err)

	all, err := f.integrity.EventsForStudent(t.Context(), f.reviewer, student.UserID, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	no := false
	pending, err := f.integrity.EventsForStudent(t.Context(), f.reviewer, student.UserID, &no)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, model.EventPasteAttempt, pending[0].EventType)

	_, err = f.integrity.EventsForStudent(t.Context(), f.reviewer, uuid.New(), nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGroupBySeverity_Empty(t *testing.T) {
	assert.Empty(t, GroupBySeverity(nil))
}

func TestStreamPresence(t *testing.T) {
	f := newFixture(t)
	id := uuid.New()

	ok, err := f.integrity.ClaimStream(t.Context(), id, "conn-a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.integrity.ClaimStream(t.Context(), id, "conn-b")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.integrity.RefreshStream(t.Context(), id, "conn-b")
	require.NoError(t, err)
	assert.False(t, ok)

	// Release by a non-holder leaves the claim in place.
	require.NoError(t, f.integrity.ReleaseStream(t.Context(), id, "conn-b"))
	ok, err = f.integrity.RefreshStream(t.Context(), id, "conn-a")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, f.integrity.ReleaseStream(t.Context(), id, "conn-a"))
	ok, err = f.integrity.ClaimStream(t.Context(), id, "conn-b")
	require.NoError(t, err)
	assert.True(t, ok)

	f.mr.FastForward(time.Minute)
	ok, err = f.integrity.ClaimStream(t.Context(), id, "conn-c")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRefreshStream_OnlyExtendsOwnClaim(t *testing.T) {
	f := newFixture(t)
	id := uuid.New()
	key := config.CacheKey.SubmissionStreamKey(id)

	ok, err := f.integrity.ClaimStream(t.Context(), id, "conn-a")
	require.NoError(t, err)
	require.True(t, ok)

	f.mr.FastForward(30 * time.Second)
	ok, err = f.integrity.RefreshStream(t.Context(), id, "conn-b")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 15*time.Second, f.mr.TTL(key), "foreign refresh must not extend")
	got, err := f.mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "conn-a", got)

	ok, err = f.integrity.RefreshStream(t.Context(), id, "conn-a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 45*time.Second, f.mr.TTL(key))

	// Once the claim lapses, the next refresher takes it over.
	f.mr.FastForward(time.Minute)
	ok, err = f.integrity.RefreshStream(t.Context(), id, "conn-b")
	require.NoError(t, err)
	assert.True(t, ok)
	got, err = f.mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "conn-b", got)
	assert.Equal(t, 45*time.Second, f.mr.TTL(key))
}
