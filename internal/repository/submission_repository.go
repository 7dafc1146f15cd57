package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-integrity/internal/model"
	"github.com/stemsi/exstem-integrity/internal/scope"
)

const submissionColumns = `id, institute_id, exam_id, student_id, status, answers, draft_answers,
	started_at, last_autosave_at, submitted_at, graded_at, invalidated_at,
	score, max_score, invalidation_reason, regrade_reason, schema_version`

// SubmissionRepository handles exam attempt data access. Every state
// transition is a single UPDATE whose WHERE clause carries the guard, so a
// transition either applies atomically or reports applied=false.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

func scanSubmission(row pgx.Row) (*model.Submission, error) {
	s := &model.Submission{}
	err := row.Scan(&s.ID, &s.InstituteID, &s.ExamID, &s.StudentID, &s.Status, &s.Answers, &s.DraftAnswers,
		&s.StartedAt, &s.LastAutoSaveAt, &s.SubmittedAt, &s.GradedAt, &s.InvalidatedAt,
		&s.Score, &s.MaxScore, &s.InvalidationReason, &s.RegradeReason, &s.SchemaVersion)
	if err != nil {
		return nil, translate(err)
	}
	if s.Answers == nil {
		s.Answers = model.Answers{}
	}
	if s.DraftAnswers == nil {
		s.DraftAnswers = model.Answers{}
	}
	return s, nil
}

// CreateOrGet inserts s as a fresh in-progress attempt. When an attempt for
// the same (exam, student) already exists nothing is written and the stored
// row is returned with created=false.
func (r *SubmissionRepository) CreateOrGet(ctx context.Context, s *model.Submission) (*model.Submission, bool, error) {
	row, err := scanSubmission(r.pool.QueryRow(ctx,
		`INSERT INTO submissions (institute_id, exam_id, student_id, status, answers, draft_answers, started_at, schema_version)
		 VALUES ($1, $2, $3, $4, '{}'::jsonb, '{}'::jsonb, $5, $6)
		 ON CONFLICT (exam_id, student_id) DO NOTHING
		 RETURNING `+submissionColumns,
		s.InstituteID, s.ExamID, s.StudentID, model.SubmissionInProgress, s.StartedAt, model.SubmissionSchemaVersion))
	if err == nil {
		return row, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	// ON CONFLICT DO NOTHING returns no row; fetch the winner.
	existing, err := scanSubmission(r.pool.QueryRow(ctx,
		`SELECT `+submissionColumns+` FROM submissions
		 WHERE exam_id = $1 AND student_id = $2 AND deleted_at IS NULL`, s.ExamID, s.StudentID))
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// GetByID retrieves a submission visible to sc.
func (r *SubmissionRepository) GetByID(ctx context.Context, sc *scope.Scope, id uuid.UUID) (*model.Submission, error) {
	return scanSubmission(r.pool.QueryRow(ctx,
		`SELECT `+submissionColumns+` FROM submissions
		 WHERE id = $1 AND deleted_at IS NULL
		   AND ($2::uuid IS NULL OR institute_id = $2)`, id, instituteArg(sc)))
}

// SaveDraft replaces the draft if the attempt is in progress, owned by
// studentID and no later receipt has been applied already.
func (r *SubmissionRepository) SaveDraft(ctx context.Context, sc *scope.Scope, id, studentID uuid.UUID, draft model.Answers, receivedAt time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE submissions
		 SET draft_answers = $3, last_autosave_at = $4
		 WHERE id = $1 AND student_id = $2 AND status = 'in_progress' AND deleted_at IS NULL
		   AND (last_autosave_at IS NULL OR last_autosave_at <= $4)
		   AND ($5::uuid IS NULL OR institute_id = $5)`,
		id, studentID, draft, receivedAt, instituteArg(sc))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Submit freezes the attempt. A nil answers copies the current draft.
func (r *SubmissionRepository) Submit(ctx context.Context, sc *scope.Scope, id, studentID uuid.UUID, answers model.Answers, at time.Time) (bool, error) {
	var explicit any
	if answers != nil {
		explicit = answers
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE submissions
		 SET answers = COALESCE($3::jsonb, draft_answers), status = 'submitted', submitted_at = $4
		 WHERE id = $1 AND student_id = $2 AND status = 'in_progress' AND deleted_at IS NULL
		   AND ($5::uuid IS NULL OR institute_id = $5)`,
		id, studentID, explicit, at, instituteArg(sc))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Grade records the score of a submitted attempt.
func (r *SubmissionRepository) Grade(ctx context.Context, sc *scope.Scope, id uuid.UUID, score, maxScore float64, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE submissions
		 SET score = $2, max_score = $3, graded_at = $4, status = 'graded'
		 WHERE id = $1 AND status = 'submitted' AND deleted_at IS NULL
		   AND ($5::uuid IS NULL OR institute_id = $5)`,
		id, score, maxScore, at, instituteArg(sc))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Regrade overwrites the score of a graded attempt and records why.
func (r *SubmissionRepository) Regrade(ctx context.Context, sc *scope.Scope, id uuid.UUID, score, maxScore float64, reason string, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE submissions
		 SET score = $2, max_score = $3, graded_at = $4, regrade_reason = $5
		 WHERE id = $1 AND status = 'graded' AND deleted_at IS NULL
		   AND ($6::uuid IS NULL OR institute_id = $6)`,
		id, score, maxScore, at, reason, instituteArg(sc))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Invalidate freezes an in-progress or submitted attempt as invalidated.
func (r *SubmissionRepository) Invalidate(ctx context.Context, sc *scope.Scope, id uuid.UUID, reason string, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE submissions
		 SET status = 'invalidated', invalidated_at = $2, invalidation_reason = $3
		 WHERE id = $1 AND status IN ('in_progress', 'submitted') AND deleted_at IS NULL
		   AND ($4::uuid IS NULL OR institute_id = $4)`,
		id, at, reason, instituteArg(sc))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListByExam returns every attempt of an exam visible to sc.
func (r *SubmissionRepository) ListByExam(ctx context.Context, sc *scope.Scope, examID uuid.UUID) ([]model.Submission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+submissionColumns+` FROM submissions
		 WHERE exam_id = $1 AND deleted_at IS NULL
		   AND ($2::uuid IS NULL OR institute_id = $2)
		 ORDER BY started_at`, examID, instituteArg(sc))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}
