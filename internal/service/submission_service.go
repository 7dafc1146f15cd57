package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-integrity/internal/metrics"
	"github.com/stemsi/exstem-integrity/internal/model"
	"github.com/stemsi/exstem-integrity/internal/scope"
)

// SubmissionService drives the attempt lifecycle:
//
//	in_progress -> submitted -> graded
//	in_progress | submitted -> invalidated  (review only)
//
// Each transition is one conditional write in the store. Reads before a
// write only pick the error to report; they never decide the outcome.
type SubmissionService struct {
	submissions SubmissionStore
	exams       *ExamService
	batches     BatchStore
	log         zerolog.Logger
	now         func() time.Time
}

// NewSubmissionService creates a new SubmissionService.
func NewSubmissionService(submissions SubmissionStore, exams *ExamService, batches BatchStore, log zerolog.Logger) *SubmissionService {
	return &SubmissionService{
		submissions: submissions,
		exams:       exams,
		batches:     batches,
		log:         log.With().Str("component", "submission_service").Logger(),
		now:         time.Now,
	}
}

// AttemptResult is returned by StartAttempt.
type AttemptResult struct {
	Submission *model.Submission `json:"submission"`
	Resumed    bool              `json:"resumed"`
}

// AutosaveResult is returned by Autosave. Superseded is set when a write
// received later had already been applied; the draft was left untouched.
type AutosaveResult struct {
	LastAutoSaveAt time.Time `json:"last_autosave_at"`
	Superseded     bool      `json:"superseded"`
}

// StartAttempt opens the caller's attempt at examID, or resumes it if it is
// still in progress.
func (s *SubmissionService) StartAttempt(ctx context.Context, sc *scope.Scope, examID uuid.UUID) (*AttemptResult, error) {
	if !sc.Can(scope.TakeExam) {
		return nil, ErrForbidden
	}
	exam, err := s.exams.Get(ctx, sc, examID)
	if err != nil {
		return nil, err
	}

	enrolled, err := s.batches.HasActiveEnrollment(ctx, exam.InstituteID, exam.CourseID, sc.UserID)
	if err != nil {
		return nil, storeErr("check enrollment", err)
	}
	if !enrolled {
		metrics.Transition("start", "not_enrolled")
		return nil, ErrNotEnrolled
	}

	now := s.now()
	if !exam.InWindow(now) {
		metrics.Transition("start", "outside_window")
		return nil, ErrOutsideWindow
	}

	sub, created, err := s.submissions.CreateOrGet(ctx, &model.Submission{
		InstituteID: exam.InstituteID,
		ExamID:      exam.ID,
		StudentID:   sc.UserID,
		StartedAt:   now,
	})
	if err != nil {
		return nil, storeErr("create submission", err)
	}

	if created {
		metrics.Transition("start", "created")
		s.log.Info().
			Str("submission_id", sub.ID.String()).
			Str("exam_id", examID.String()).
			Str("student_id", sc.UserID.String()).
			Msg("Attempt started")
		return &AttemptResult{Submission: sub}, nil
	}
	if sub.Status == model.SubmissionInProgress {
		metrics.Transition("start", "resumed")
		return &AttemptResult{Submission: sub, Resumed: true}, nil
	}
	metrics.Transition("start", "already_attempted")
	return nil, ErrAlreadyAttempted
}

// owned loads a submission visible to sc and owned by the calling student.
func (s *SubmissionService) owned(ctx context.Context, sc *scope.Scope, id uuid.UUID) (*model.Submission, error) {
	sub, err := s.submissions.GetByID(ctx, sc, id)
	if err != nil {
		return nil, storeErr("get submission", err)
	}
	if !sc.Can(scope.TakeExam) || !sc.Owns(sub.StudentID) {
		return nil, ErrForbidden
	}
	return sub, nil
}

// Autosave replaces the whole draft. Writes are ordered by server receipt
// time: a write received earlier than one already applied is dropped and
// reported as superseded.
func (s *SubmissionService) Autosave(ctx context.Context, sc *scope.Scope, id uuid.UUID, draft model.Answers) (*AutosaveResult, error) {
	sub, err := s.owned(ctx, sc, id)
	if err != nil {
		return nil, err
	}
	if sub.Status != model.SubmissionInProgress {
		metrics.Transition("autosave", "not_in_progress")
		return nil, ErrNotInProgress
	}

	receivedAt := s.now()
	applied, err := s.submissions.SaveDraft(ctx, sc, id, sc.UserID, draft.Clone(), receivedAt)
	if err != nil {
		return nil, storeErr("save draft", err)
	}
	if applied {
		metrics.Transition("autosave", "applied")
		return &AutosaveResult{LastAutoSaveAt: receivedAt}, nil
	}

	cur, err := s.submissions.GetByID(ctx, sc, id)
	if err != nil {
		return nil, storeErr("get submission", err)
	}
	if cur.Status != model.SubmissionInProgress {
		metrics.Transition("autosave", "not_in_progress")
		return nil, ErrNotInProgress
	}

	metrics.Transition("autosave", "superseded")
	res := &AutosaveResult{Superseded: true}
	if cur.LastAutoSaveAt != nil {
		res.LastAutoSaveAt = *cur.LastAutoSaveAt
	}
	return res, nil
}

// Submit freezes the attempt. With answers nil the current draft becomes
// the committed answer set; otherwise answers supersede the draft.
func (s *SubmissionService) Submit(ctx context.Context, sc *scope.Scope, id uuid.UUID, answers *model.Answers) (*model.Submission, error) {
	sub, err := s.owned(ctx, sc, id)
	if err != nil {
		return nil, err
	}
	if err := submitGuard(sub.Status); err != nil {
		metrics.Transition("submit", "rejected")
		return nil, err
	}

	var final model.Answers
	if answers != nil {
		final = answers.Clone()
	}
	applied, err := s.submissions.Submit(ctx, sc, id, sc.UserID, final, s.now())
	if err != nil {
		return nil, storeErr("submit", err)
	}

	cur, err := s.submissions.GetByID(ctx, sc, id)
	if err != nil {
		return nil, storeErr("get submission", err)
	}
	if !applied {
		metrics.Transition("submit", "rejected")
		if err := submitGuard(cur.Status); err != nil {
			return nil, err
		}
		return nil, ErrAlreadyFinalized
	}

	metrics.Transition("submit", "applied")
	s.log.Info().Str("submission_id", id.String()).Int("answers", len(cur.Answers)).Msg("Attempt submitted")
	return cur, nil
}

func submitGuard(status model.SubmissionStatus) error {
	switch {
	case status == model.SubmissionInProgress:
		return nil
	case status.Final():
		return ErrAlreadyFinalized
	default:
		return ErrNotInProgress
	}
}

// staff loads a submission visible to sc for a capability-gated operation.
func (s *SubmissionService) staff(ctx context.Context, sc *scope.Scope, id uuid.UUID, c scope.Capability) (*model.Submission, error) {
	if !sc.Can(c) {
		return nil, ErrForbidden
	}
	sub, err := s.submissions.GetByID(ctx, sc, id)
	if err != nil {
		return nil, storeErr("get submission", err)
	}
	return sub, nil
}

// Grade scores a submitted attempt against the exam's answer key. A graded
// score is never recomputed through this path.
func (s *SubmissionService) Grade(ctx context.Context, sc *scope.Scope, id uuid.UUID) (*model.Submission, error) {
	sub, err := s.staff(ctx, sc, id, scope.Grade)
	if err != nil {
		return nil, err
	}
	if err := gradeGuard(sub.Status); err != nil {
		metrics.Transition("grade", "rejected")
		return nil, err
	}

	score, maxScore, err := s.exams.Score(ctx, sub.ExamID, sub.Answers)
	if err != nil {
		return nil, err
	}

	applied, err := s.submissions.Grade(ctx, sc, id, score, maxScore, s.now())
	if err != nil {
		return nil, storeErr("grade", err)
	}
	cur, err := s.submissions.GetByID(ctx, sc, id)
	if err != nil {
		return nil, storeErr("get submission", err)
	}
	if !applied {
		metrics.Transition("grade", "rejected")
		if err := gradeGuard(cur.Status); err != nil {
			return nil, err
		}
		return nil, ErrAlreadyGraded
	}

	metrics.Transition("grade", "applied")
	s.log.Info().
		Str("submission_id", id.String()).
		Float64("score", score).
		Float64("max_score", maxScore).
		Str("actor_id", sc.UserID.String()).
		Msg("Attempt graded")
	return cur, nil
}

func gradeGuard(status model.SubmissionStatus) error {
	switch status {
	case model.SubmissionSubmitted:
		return nil
	case model.SubmissionGraded:
		return ErrAlreadyGraded
	default:
		return ErrNotSubmitted
	}
}

// Regrade is the administrative override for a graded attempt. The score is
// recomputed from the current answer key and the reason is recorded.
func (s *SubmissionService) Regrade(ctx context.Context, sc *scope.Scope, id uuid.UUID, reason string) (*model.Submission, error) {
	sub, err := s.staff(ctx, sc, id, scope.OverrideGrade)
	if err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrValidation
	}
	if sub.Status != model.SubmissionGraded {
		return nil, ErrNotGraded
	}

	score, maxScore, err := s.exams.Score(ctx, sub.ExamID, sub.Answers)
	if err != nil {
		return nil, err
	}
	applied, err := s.submissions.Regrade(ctx, sc, id, score, maxScore, reason, s.now())
	if err != nil {
		return nil, storeErr("regrade", err)
	}
	if !applied {
		return nil, ErrNotGraded
	}

	metrics.Transition("regrade", "applied")
	s.log.Warn().
		Str("submission_id", id.String()).
		Float64("score", score).
		Str("reason", reason).
		Str("actor_id", sc.UserID.String()).
		Msg("Attempt regraded by override")
	return s.Get(ctx, sc, id)
}

// Invalidate freezes an in-progress or submitted attempt. It is idempotent
// for an attempt that is already invalidated.
func (s *SubmissionService) Invalidate(ctx context.Context, sc *scope.Scope, id uuid.UUID, reason string) (*model.Submission, error) {
	sub, err := s.staff(ctx, sc, id, scope.Review)
	if err != nil {
		return nil, err
	}
	if sub.Status == model.SubmissionInvalidated {
		return sub, nil
	}
	if sub.Status != model.SubmissionInProgress && sub.Status != model.SubmissionSubmitted {
		return nil, ErrInvalidTransition
	}

	applied, err := s.submissions.Invalidate(ctx, sc, id, reason, s.now())
	if err != nil {
		return nil, storeErr("invalidate", err)
	}
	cur, err := s.submissions.GetByID(ctx, sc, id)
	if err != nil {
		return nil, storeErr("get submission", err)
	}
	if !applied && cur.Status != model.SubmissionInvalidated {
		return nil, ErrInvalidTransition
	}

	if applied {
		metrics.Transition("invalidate", "applied")
		s.log.Warn().
			Str("submission_id", id.String()).
			Str("reason", reason).
			Str("actor_id", sc.UserID.String()).
			Msg("Attempt invalidated")
	}
	return cur, nil
}

// Get returns a submission to its owning student or to grading/review staff.
func (s *SubmissionService) Get(ctx context.Context, sc *scope.Scope, id uuid.UUID) (*model.Submission, error) {
	sub, err := s.submissions.GetByID(ctx, sc, id)
	if err != nil {
		return nil, storeErr("get submission", err)
	}
	if sc.Owns(sub.StudentID) || sc.Can(scope.Grade) || sc.Can(scope.Review) {
		return sub, nil
	}
	return nil, ErrForbidden
}

// ListByExam lists every attempt of an exam for grading staff.
func (s *SubmissionService) ListByExam(ctx context.Context, sc *scope.Scope, examID uuid.UUID) ([]model.Submission, error) {
	if !sc.Can(scope.Grade) && !sc.Can(scope.Review) {
		return nil, ErrForbidden
	}
	if _, err := s.exams.Get(ctx, sc, examID); err != nil {
		return nil, err
	}
	subs, err := s.submissions.ListByExam(ctx, sc, examID)
	if err != nil {
		return nil, storeErr("list submissions", err)
	}
	return subs, nil
}
