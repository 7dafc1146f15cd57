// Package testutil provides in-memory stores that honour the same scoping
// and conditional-update semantics as the Postgres repositories.
package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-integrity/internal/model"
	"github.com/stemsi/exstem-integrity/internal/repository"
	"github.com/stemsi/exstem-integrity/internal/scope"
)

// DB is a process-local stand-in for the database. A single mutex plays the
// role of row-level atomicity.
type DB struct {
	mu          sync.Mutex
	institutes  map[uuid.UUID]*model.Institute
	users       map[uuid.UUID]*model.User
	batches     map[uuid.UUID]*model.Batch
	batchOrder  []uuid.UUID
	exams       map[uuid.UUID]*model.Exam
	submissions map[uuid.UUID]*model.Submission
	events      []*model.ProctoringEvent
}

// NewDB returns an empty in-memory database.
func NewDB() *DB {
	return &DB{
		institutes:  map[uuid.UUID]*model.Institute{},
		users:       map[uuid.UUID]*model.User{},
		batches:     map[uuid.UUID]*model.Batch{},
		exams:       map[uuid.UUID]*model.Exam{},
		submissions: map[uuid.UUID]*model.Submission{},
	}
}

func visible(sc *scope.Scope, instituteID uuid.UUID) bool {
	return sc.Allows(instituteID)
}

func cloneBatch(b *model.Batch) *model.Batch {
	c := *b
	c.Roster = append(model.Roster{}, b.Roster...)
	return &c
}

func cloneSubmission(s *model.Submission) *model.Submission {
	c := *s
	c.Answers = s.Answers.Clone()
	c.DraftAnswers = s.DraftAnswers.Clone()
	return &c
}

func ptr[T any](v T) *T { return &v }

// ─── Seeding helpers ────────────────────────────────────────────────

// AddInstitute stores a new institute.
func (db *DB) AddInstitute(code string) *model.Institute {
	db.mu.Lock()
	defer db.mu.Unlock()
	i := &model.Institute{ID: uuid.New(), Code: strings.ToUpper(code), Name: code, CreatedAt: time.Now()}
	db.institutes[i.ID] = i
	return i
}

// AddUser stores a new user. instituteID may be nil for super admins.
func (db *DB) AddUser(role model.Role, instituteID *uuid.UUID) *model.User {
	db.mu.Lock()
	defer db.mu.Unlock()
	id := uuid.New()
	u := &model.User{
		ID:          id,
		InstituteID: instituteID,
		Email:       id.String() + "@example.test",
		Name:        string(role),
		Role:        role,
	}
	db.users[u.ID] = u
	return u
}

// AddBatch stores a batch with the given roster.
func (db *DB) AddBatch(instituteID, courseID uuid.UUID, roster model.Roster) *model.Batch {
	db.mu.Lock()
	defer db.mu.Unlock()
	if roster == nil {
		roster = model.Roster{}
	}
	b := &model.Batch{
		ID:            uuid.New(),
		InstituteID:   instituteID,
		CourseID:      courseID,
		Name:          "batch",
		Roster:        roster,
		SchemaVersion: model.BatchSchemaVersion,
	}
	db.batches[b.ID] = b
	db.batchOrder = append(db.batchOrder, b.ID)
	return cloneBatch(b)
}

// AddExam stores an exam.
func (db *DB) AddExam(instituteID, courseID uuid.UUID, start, end time.Time, key model.AnswerKey) *model.Exam {
	db.mu.Lock()
	defer db.mu.Unlock()
	e := &model.Exam{
		ID:            uuid.New(),
		InstituteID:   instituteID,
		CourseID:      courseID,
		Title:         "exam",
		ScheduleStart: start,
		ScheduleEnd:   end,
		AnswerKey:     key,
	}
	db.exams[e.ID] = e
	c := *e
	return &c
}

// PutSubmission stores s as-is, overwriting any row with the same id.
func (db *DB) PutSubmission(s *model.Submission) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.submissions[s.ID] = cloneSubmission(s)
}

// Batch returns a snapshot of a batch regardless of scope.
func (db *DB) Batch(id uuid.UUID) *model.Batch {
	db.mu.Lock()
	defer db.mu.Unlock()
	if b, ok := db.batches[id]; ok {
		return cloneBatch(b)
	}
	return nil
}

// Submission returns a snapshot of a submission regardless of scope.
func (db *DB) Submission(id uuid.UUID) *model.Submission {
	db.mu.Lock()
	defer db.mu.Unlock()
	if s, ok := db.submissions[id]; ok {
		return cloneSubmission(s)
	}
	return nil
}

// SubmissionCount counts stored attempts for an (exam, student) pair.
func (db *DB) SubmissionCount(examID, studentID uuid.UUID) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	n := 0
	for _, s := range db.submissions {
		if s.ExamID == examID && s.StudentID == studentID {
			n++
		}
	}
	return n
}

// Events returns a snapshot of every stored event in insertion order.
func (db *DB) Events() []model.ProctoringEvent {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]model.ProctoringEvent, 0, len(db.events))
	for _, e := range db.events {
		out = append(out, *e)
	}
	return out
}

// ─── Institutes ─────────────────────────────────────────────────────

// Institutes is the in-memory InstituteStore.
type Institutes struct{ db *DB }

func (db *DB) Institutes() *Institutes { return &Institutes{db: db} }

func (r *Institutes) GetByCode(_ context.Context, code string) (*model.Institute, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, i := range r.db.institutes {
		if i.Code == code {
			c := *i
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *Institutes) GetByID(_ context.Context, id uuid.UUID) (*model.Institute, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if i, ok := r.db.institutes[id]; ok {
		c := *i
		return &c, nil
	}
	return nil, repository.ErrNotFound
}

// ─── Users ──────────────────────────────────────────────────────────

// Users is the in-memory UserStore.
type Users struct{ db *DB }

func (db *DB) Users() *Users { return &Users{db: db} }

func (r *Users) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, u := range r.db.users {
		if strings.EqualFold(u.Email, email) {
			c := *u
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *Users) GetStudent(_ context.Context, sc *scope.Scope, id uuid.UUID) (*model.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok || u.Role != model.RoleStudent || u.InstituteID == nil || !visible(sc, *u.InstituteID) {
		return nil, repository.ErrNotFound
	}
	c := *u
	return &c, nil
}

// SetPassword stores a password hash on a seeded user.
func (r *Users) SetPassword(id uuid.UUID, email, hash string) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if u, ok := r.db.users[id]; ok {
		u.Email = email
		u.PasswordHash = hash
	}
}

// ─── Batches ────────────────────────────────────────────────────────

// Batches is the in-memory BatchStore.
type Batches struct{ db *DB }

func (db *DB) Batches() *Batches { return &Batches{db: db} }

func (r *Batches) Create(_ context.Context, b *model.Batch) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	b.ID = uuid.New()
	b.SchemaVersion = model.BatchSchemaVersion
	if b.Roster == nil {
		b.Roster = model.Roster{}
	}
	r.db.batches[b.ID] = cloneBatch(b)
	r.db.batchOrder = append(r.db.batchOrder, b.ID)
	return nil
}

func (r *Batches) GetByID(_ context.Context, sc *scope.Scope, id uuid.UUID) (*model.Batch, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	b, ok := r.db.batches[id]
	if !ok || !visible(sc, b.InstituteID) {
		return nil, repository.ErrNotFound
	}
	return cloneBatch(b), nil
}

func (r *Batches) Mutate(_ context.Context, sc *scope.Scope, id uuid.UUID, fn func(b *model.Batch) (bool, error)) (*model.Batch, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	b, ok := r.db.batches[id]
	if !ok || !visible(sc, b.InstituteID) {
		return nil, repository.ErrNotFound
	}
	work := cloneBatch(b)
	changed, err := fn(work)
	if err != nil {
		return nil, err
	}
	if changed {
		work.UpdatedAt = time.Now()
		r.db.batches[id] = cloneBatch(work)
	}
	return work, nil
}

func (r *Batches) HasActiveEnrollment(_ context.Context, instituteID, courseID, studentID uuid.UUID) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, b := range r.db.batches {
		if b.InstituteID == instituteID && b.CourseID == courseID && b.Roster.IsActive(studentID) {
			return true, nil
		}
	}
	return false, nil
}

func (r *Batches) ListIDs(_ context.Context, sc *scope.Scope) ([]uuid.UUID, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var ids []uuid.UUID
	for _, id := range r.db.batchOrder {
		if visible(sc, r.db.batches[id].InstituteID) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// ─── Exams ──────────────────────────────────────────────────────────

// Exams is the in-memory ExamStore. KeyLoads counts answer key reads.
type Exams struct {
	db       *DB
	KeyLoads int
}

func (db *DB) Exams() *Exams { return &Exams{db: db} }

func (r *Exams) Create(_ context.Context, e *model.Exam) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	e.ID = uuid.New()
	c := *e
	r.db.exams[e.ID] = &c
	return nil
}

func (r *Exams) GetByID(_ context.Context, sc *scope.Scope, id uuid.UUID) (*model.Exam, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	e, ok := r.db.exams[id]
	if !ok || !visible(sc, e.InstituteID) {
		return nil, repository.ErrNotFound
	}
	c := *e
	c.AnswerKey = nil
	return &c, nil
}

func (r *Exams) GetAnswerKey(_ context.Context, examID uuid.UUID) (model.AnswerKey, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	e, ok := r.db.exams[examID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	r.KeyLoads++
	out := model.AnswerKey{}
	for k, v := range e.AnswerKey {
		out[k] = v
	}
	return out, nil
}

// ─── Submissions ────────────────────────────────────────────────────

// Submissions is the in-memory SubmissionStore.
type Submissions struct{ db *DB }

func (db *DB) Submissions() *Submissions { return &Submissions{db: db} }

func (r *Submissions) CreateOrGet(_ context.Context, s *model.Submission) (*model.Submission, bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.submissions {
		if existing.ExamID == s.ExamID && existing.StudentID == s.StudentID {
			return cloneSubmission(existing), false, nil
		}
	}
	row := &model.Submission{
		ID:            uuid.New(),
		InstituteID:   s.InstituteID,
		ExamID:        s.ExamID,
		StudentID:     s.StudentID,
		Status:        model.SubmissionInProgress,
		Answers:       model.Answers{},
		DraftAnswers:  model.Answers{},
		StartedAt:     s.StartedAt,
		SchemaVersion: model.SubmissionSchemaVersion,
	}
	r.db.submissions[row.ID] = row
	return cloneSubmission(row), true, nil
}

// get returns the live row if visible. Caller holds the lock.
func (r *Submissions) get(sc *scope.Scope, id uuid.UUID) (*model.Submission, bool) {
	s, ok := r.db.submissions[id]
	if !ok || !visible(sc, s.InstituteID) {
		return nil, false
	}
	return s, true
}

func (r *Submissions) GetByID(_ context.Context, sc *scope.Scope, id uuid.UUID) (*model.Submission, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, ok := r.get(sc, id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneSubmission(s), nil
}

func (r *Submissions) SaveDraft(_ context.Context, sc *scope.Scope, id, studentID uuid.UUID, draft model.Answers, receivedAt time.Time) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, ok := r.get(sc, id)
	if !ok || s.StudentID != studentID || s.Status != model.SubmissionInProgress {
		return false, nil
	}
	if s.LastAutoSaveAt != nil && s.LastAutoSaveAt.After(receivedAt) {
		return false, nil
	}
	s.DraftAnswers = draft.Clone()
	s.LastAutoSaveAt = ptr(receivedAt)
	return true, nil
}

func (r *Submissions) Submit(_ context.Context, sc *scope.Scope, id, studentID uuid.UUID, answers model.Answers, at time.Time) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, ok := r.get(sc, id)
	if !ok || s.StudentID != studentID || s.Status != model.SubmissionInProgress {
		return false, nil
	}
	if answers != nil {
		s.Answers = answers.Clone()
	} else {
		s.Answers = s.DraftAnswers.Clone()
	}
	s.Status = model.SubmissionSubmitted
	s.SubmittedAt = ptr(at)
	return true, nil
}

func (r *Submissions) Grade(_ context.Context, sc *scope.Scope, id uuid.UUID, score, maxScore float64, at time.Time) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, ok := r.get(sc, id)
	if !ok || s.Status != model.SubmissionSubmitted {
		return false, nil
	}
	s.Score, s.MaxScore, s.GradedAt = ptr(score), ptr(maxScore), ptr(at)
	s.Status = model.SubmissionGraded
	return true, nil
}

func (r *Submissions) Regrade(_ context.Context, sc *scope.Scope, id uuid.UUID, score, maxScore float64, reason string, at time.Time) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, ok := r.get(sc, id)
	if !ok || s.Status != model.SubmissionGraded {
		return false, nil
	}
	s.Score, s.MaxScore, s.GradedAt = ptr(score), ptr(maxScore), ptr(at)
	s.RegradeReason = reason
	return true, nil
}

func (r *Submissions) Invalidate(_ context.Context, sc *scope.Scope, id uuid.UUID, reason string, at time.Time) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, ok := r.get(sc, id)
	if !ok || (s.Status != model.SubmissionInProgress && s.Status != model.SubmissionSubmitted) {
		return false, nil
	}
	s.Status = model.SubmissionInvalidated
	s.InvalidatedAt = ptr(at)
	s.InvalidationReason = reason
	return true, nil
}

func (r *Submissions) ListByExam(_ context.Context, sc *scope.Scope, examID uuid.UUID) ([]model.Submission, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []model.Submission
	for _, s := range r.db.submissions {
		if s.ExamID == examID && visible(sc, s.InstituteID) {
			out = append(out, *cloneSubmission(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

// ─── Events ─────────────────────────────────────────────────────────

// Events is the in-memory EventStore.
type Events struct{ db *DB }

func (db *DB) EventStore() *Events { return &Events{db: db} }

func (r *Events) Append(_ context.Context, e *model.ProctoringEvent) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, ok := r.db.submissions[e.SubmissionID]
	if !ok {
		return repository.ErrNotFound
	}
	e.ID = uuid.New()
	e.InstituteID = s.InstituteID
	e.StudentID = s.StudentID
	e.ExamID = s.ExamID
	e.TimeFromStart = int64(e.OccurredAt.Sub(s.StartedAt) / time.Second)
	if e.TimeFromStart < 0 {
		e.TimeFromStart = 0
	}
	e.Late = s.Status != model.SubmissionInProgress
	c := *e
	r.db.events = append(r.db.events, &c)
	return nil
}

func (r *Events) GetByID(_ context.Context, sc *scope.Scope, id uuid.UUID) (*model.ProctoringEvent, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, e := range r.db.events {
		if e.ID == id && visible(sc, e.InstituteID) {
			c := *e
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *Events) filter(sc *scope.Scope, keep func(e *model.ProctoringEvent) bool) []model.ProctoringEvent {
	var out []model.ProctoringEvent
	for _, e := range r.db.events {
		if visible(sc, e.InstituteID) && keep(e) {
			out = append(out, *e)
		}
	}
	return out
}

func (r *Events) ListBySubmission(_ context.Context, sc *scope.Scope, submissionID uuid.UUID) ([]model.ProctoringEvent, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := r.filter(sc, func(e *model.ProctoringEvent) bool { return e.SubmissionID == submissionID })
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

func (r *Events) ListUnreviewedByExam(_ context.Context, sc *scope.Scope, examID uuid.UUID) ([]model.ProctoringEvent, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := r.filter(sc, func(e *model.ProctoringEvent) bool { return e.ExamID == examID && !e.Reviewed })
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Severity.Rank() != out[j].Severity.Rank() {
			return out[i].Severity.Rank() > out[j].Severity.Rank()
		}
		return out[i].OccurredAt.Before(out[j].OccurredAt)
	})
	return out, nil
}

func (r *Events) ListByStudent(_ context.Context, sc *scope.Scope, studentID uuid.UUID, reviewed *bool) ([]model.ProctoringEvent, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := r.filter(sc, func(e *model.ProctoringEvent) bool {
		return e.StudentID == studentID && (reviewed == nil || e.Reviewed == *reviewed)
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	return out, nil
}

func (r *Events) MarkReviewed(_ context.Context, sc *scope.Scope, id uuid.UUID, rv model.Review) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, e := range r.db.events {
		if e.ID != id || !visible(sc, e.InstituteID) {
			continue
		}
		if e.Reviewed {
			return false, nil
		}
		e.Reviewed = true
		e.ReviewedBy = ptr(rv.ReviewedBy)
		e.ReviewedAt = ptr(rv.ReviewedAt)
		e.ReviewNotes = rv.Notes
		e.ActionTaken = rv.Action
		return true, nil
	}
	return false, nil
}
