package service

import (
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-integrity/internal/config"
	"github.com/stemsi/exstem-integrity/internal/model"
	"github.com/stemsi/exstem-integrity/internal/policy"
	"github.com/stemsi/exstem-integrity/internal/scope"
	"github.com/stemsi/exstem-integrity/internal/testutil"
	"github.com/stretchr/testify/require"
)

// clock is a manually advanced time source shared by every service under test.
type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	db        *testutil.DB
	examStore *testutil.Exams
	mr        *miniredis.Miniredis
	rdb       *redis.Client
	clock     *clock

	auth        *AuthService
	scopes      *ScopeService
	enrollment  *EnrollmentService
	exams       *ExamService
	submissions *SubmissionService
	integrity   *IntegrityService
	review      *ReviewService

	institute *model.Institute
	admin     *scope.Scope
	reviewer  *scope.Scope
	teacher   *scope.Scope
	examID    uuid.UUID
	courseID  uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	log := zerolog.New(io.Discard)
	cfg := &config.Config{
		JWTSecret:  "test-secret",
		JWTExpiry:  time.Hour,
		BcryptCost: 4,
	}

	db := testutil.NewDB()
	clk := &clock{t: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)}

	f := &fixture{db: db, examStore: db.Exams(), mr: mr, rdb: rdb, clock: clk}
	f.auth = NewAuthService(cfg, rdb, db.Users(), log)
	f.auth.now = clk.Now
	severity := policy.New(log)
	f.scopes = NewScopeService(db.Institutes(), severity)
	f.enrollment = NewEnrollmentService(db.Batches(), db.Users(), log)
	f.enrollment.now = clk.Now
	f.exams = NewExamService(f.examStore, rdb, 30*time.Minute, log)
	f.submissions = NewSubmissionService(db.Submissions(), f.exams, db.Batches(), log)
	f.submissions.now = clk.Now
	f.integrity = NewIntegrityService(db.EventStore(), db.Submissions(), f.examStore, db.Users(), severity, rdb, 45*time.Second, log)
	f.integrity.now = clk.Now
	f.review = NewReviewService(db.EventStore(), f.submissions, log)
	f.review.now = clk.Now

	f.institute = db.AddInstitute("SMAN1")
	f.admin = f.staff(t, model.RoleAdmin, f.institute.ID)
	f.reviewer = f.staff(t, model.RoleReviewer, f.institute.ID)
	f.teacher = f.staff(t, model.RoleTeacher, f.institute.ID)

	f.courseID = uuid.New()
	exam := db.AddExam(f.institute.ID, f.courseID, clk.t.Add(-time.Hour), clk.t.Add(2*time.Hour), model.AnswerKey{
		"q1": {Answer: "A", Points: 2},
		"q2": {Answer: "B", Points: 1},
		"q3": {Answer: "C", Points: 1},
	})
	f.examID = exam.ID
	return f
}

func (f *fixture) resolve(t *testing.T, u *model.User) *scope.Scope {
	t.Helper()
	sc, err := scope.Resolve(&scope.Identity{UserID: u.ID, Role: u.Role, InstituteID: u.InstituteID}, "", nil)
	require.NoError(t, err)
	return sc
}

func (f *fixture) staff(t *testing.T, role model.Role, instituteID uuid.UUID) *scope.Scope {
	t.Helper()
	return f.resolve(t, f.db.AddUser(role, &instituteID))
}

// enrolledStudent creates a student in the fixture institute who is active in
// a batch for the exam's course.
func (f *fixture) enrolledStudent(t *testing.T) *scope.Scope {
	t.Helper()
	u := f.db.AddUser(model.RoleStudent, &f.institute.ID)
	f.db.AddBatch(f.institute.ID, f.courseID, model.Roster{{
		StudentID:  u.ID,
		Status:     model.EnrollmentActive,
		EnrolledAt: f.clock.t,
		UpdatedAt:  f.clock.t,
	}})
	return f.resolve(t, u)
}

// startedAttempt returns an in-progress submission for a fresh student.
func (f *fixture) startedAttempt(t *testing.T) (*scope.Scope, *model.Submission) {
	t.Helper()
	student := f.enrolledStudent(t)
	res, err := f.submissions.StartAttempt(t.Context(), student, f.examID)
	require.NoError(t, err)
	return student, res.Submission
}
