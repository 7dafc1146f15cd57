package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-integrity/internal/metrics"
	"github.com/stemsi/exstem-integrity/internal/model"
	"github.com/stemsi/exstem-integrity/internal/scope"
)

// EnrollmentService maintains batch rosters. Every roster change runs
// inside BatchStore.Mutate, which holds the batch row lock for the whole
// check-then-write.
type EnrollmentService struct {
	batches BatchStore
	users   UserStore
	log     zerolog.Logger
	now     func() time.Time
}

// NewEnrollmentService creates a new EnrollmentService.
func NewEnrollmentService(batches BatchStore, users UserStore, log zerolog.Logger) *EnrollmentService {
	return &EnrollmentService{
		batches: batches,
		users:   users,
		log:     log.With().Str("component", "enrollment_service").Logger(),
		now:     time.Now,
	}
}

// EnrollResult reports what Enroll did.
type EnrollResult struct {
	BatchID     uuid.UUID           `json:"batch_id"`
	StudentID   uuid.UUID           `json:"student_id"`
	Outcome     model.EnrollOutcome `json:"outcome"`
	ActiveCount int                 `json:"active_count"`
}

// RosterView is a batch roster together with its derived active count.
type RosterView struct {
	BatchID     uuid.UUID    `json:"batch_id"`
	Name        string       `json:"name"`
	Entries     model.Roster `json:"entries"`
	ActiveCount int          `json:"active_count"`
}

func rosterView(b *model.Batch) *RosterView {
	return &RosterView{
		BatchID:     b.ID,
		Name:        b.Name,
		Entries:     b.Roster,
		ActiveCount: b.Roster.ActiveCount(),
	}
}

// CreateBatch creates an empty batch in the caller's institute.
func (s *EnrollmentService) CreateBatch(ctx context.Context, sc *scope.Scope, req model.CreateBatchRequest) (*model.Batch, error) {
	if !sc.Can(scope.ManageEnrollment) {
		return nil, ErrForbidden
	}
	instituteID, ok := sc.InstituteFilter()
	if !ok {
		// An unrestricted super admin must name the institute first.
		return nil, ErrScopeMissing
	}

	b := &model.Batch{
		InstituteID: instituteID,
		CourseID:    req.CourseID,
		Name:        req.Name,
	}
	if err := s.batches.Create(ctx, b); err != nil {
		return nil, storeErr("create batch", err)
	}
	s.log.Info().Str("batch_id", b.ID.String()).Str("institute_id", instituteID.String()).Msg("Batch created")
	return b, nil
}

// checkTarget verifies the batch and the student are both visible to sc and
// belong to the same institute.
func (s *EnrollmentService) checkTarget(ctx context.Context, sc *scope.Scope, batchID, studentID uuid.UUID) error {
	batch, err := s.batches.GetByID(ctx, sc, batchID)
	if err != nil {
		return storeErr("get batch", err)
	}
	student, err := s.users.GetStudent(ctx, sc, studentID)
	if err != nil {
		return storeErr("get student", err)
	}
	if student.InstituteID == nil || *student.InstituteID != batch.InstituteID {
		return ErrCrossTenant
	}
	return nil
}

// Enroll makes studentID an active member of the batch. It appends a new
// entry, reactivates an existing one, or reports the student already active.
func (s *EnrollmentService) Enroll(ctx context.Context, sc *scope.Scope, batchID, studentID uuid.UUID) (*EnrollResult, error) {
	if !sc.Can(scope.ManageEnrollment) {
		return nil, ErrForbidden
	}
	if err := s.checkTarget(ctx, sc, batchID, studentID); err != nil {
		return nil, err
	}

	var outcome model.EnrollOutcome
	batch, err := s.batches.Mutate(ctx, sc, batchID, func(b *model.Batch) (bool, error) {
		outcome = b.Roster.Enroll(studentID, sc.UserID, s.now())
		return outcome.Changed(), nil
	})
	if err != nil {
		return nil, storeErr("enroll", err)
	}

	metrics.Enrollment("enroll", string(outcome))
	s.log.Info().
		Str("batch_id", batchID.String()).
		Str("student_id", studentID.String()).
		Str("outcome", string(outcome)).
		Str("actor_id", sc.UserID.String()).
		Msg("Enrollment processed")

	return &EnrollResult{
		BatchID:     batchID,
		StudentID:   studentID,
		Outcome:     outcome,
		ActiveCount: batch.Roster.ActiveCount(),
	}, nil
}

// SetStatus moves a student's roster entry to status. Setting active goes
// through Enroll so that reactivation never appends.
func (s *EnrollmentService) SetStatus(ctx context.Context, sc *scope.Scope, batchID, studentID uuid.UUID, status model.EnrollmentStatus) (*RosterView, error) {
	if !sc.Can(scope.ManageEnrollment) {
		return nil, ErrForbidden
	}
	if !status.Valid() {
		return nil, ErrValidation
	}
	if status == model.EnrollmentActive {
		if _, err := s.Enroll(ctx, sc, batchID, studentID); err != nil {
			return nil, err
		}
		return s.Roster(ctx, sc, batchID)
	}

	batch, err := s.batches.Mutate(ctx, sc, batchID, func(b *model.Batch) (bool, error) {
		found, changed := b.Roster.SetStatus(studentID, sc.UserID, status, s.now())
		if !found {
			return false, ErrNotFound
		}
		return changed, nil
	})
	if err != nil {
		return nil, storeErr("set enrollment status", err)
	}

	metrics.Enrollment("set_status", string(status))
	s.log.Info().
		Str("batch_id", batchID.String()).
		Str("student_id", studentID.String()).
		Str("status", string(status)).
		Str("actor_id", sc.UserID.String()).
		Msg("Enrollment status changed")
	return rosterView(batch), nil
}

// Roster returns the batch roster with its active count.
func (s *EnrollmentService) Roster(ctx context.Context, sc *scope.Scope, batchID uuid.UUID) (*RosterView, error) {
	if !sc.Can(scope.ManageEnrollment) {
		return nil, ErrForbidden
	}
	batch, err := s.batches.GetByID(ctx, sc, batchID)
	if err != nil {
		return nil, storeErr("get batch", err)
	}
	return rosterView(batch), nil
}

// Deduplicate collapses duplicate roster entries and returns how many were
// removed. Running it again without intervening changes removes nothing.
func (s *EnrollmentService) Deduplicate(ctx context.Context, sc *scope.Scope, batchID uuid.UUID) (int, error) {
	if !sc.Can(scope.ManageEnrollment) && !sc.Can(scope.Maintain) {
		return 0, ErrForbidden
	}

	var removed int
	_, err := s.batches.Mutate(ctx, sc, batchID, func(b *model.Batch) (bool, error) {
		removed = b.Roster.Deduplicate()
		return removed > 0, nil
	})
	if err != nil {
		return 0, storeErr("deduplicate", err)
	}

	if removed > 0 {
		metrics.Enrollment("deduplicate", "repaired")
		s.log.Warn().Str("batch_id", batchID.String()).Int("removed", removed).Msg("Duplicate roster entries removed")
	}
	return removed, nil
}

// DedupeReport summarises a maintenance pass over many batches.
type DedupeReport struct {
	Scanned  int                  `json:"scanned"`
	Repaired map[uuid.UUID]int    `json:"repaired"`
	Failed   map[uuid.UUID]string `json:"failed,omitempty"`
}

// DeduplicateAll runs Deduplicate over every batch visible to sc. A failure
// on one batch is recorded and the pass continues.
func (s *EnrollmentService) DeduplicateAll(ctx context.Context, sc *scope.Scope) (*DedupeReport, error) {
	if !sc.Can(scope.Maintain) {
		return nil, ErrForbidden
	}
	ids, err := s.batches.ListIDs(ctx, sc)
	if err != nil {
		return nil, storeErr("list batches", err)
	}

	report := &DedupeReport{Repaired: map[uuid.UUID]int{}, Failed: map[uuid.UUID]string{}}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Scanned++
		removed, err := s.Deduplicate(ctx, sc, id)
		if err != nil {
			report.Failed[id] = err.Error()
			s.log.Error().Err(err).Str("batch_id", id.String()).Msg("Deduplicate failed")
			continue
		}
		if removed > 0 {
			report.Repaired[id] = removed
		}
	}
	return report, nil
}
