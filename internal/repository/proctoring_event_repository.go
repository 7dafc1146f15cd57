package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-integrity/internal/model"
	"github.com/stemsi/exstem-integrity/internal/scope"
)

const eventColumns = `id, institute_id, submission_id, student_id, exam_id, event_type, severity,
	occurred_at, client_timestamp, time_from_start, question_id, metadata, late,
	reviewed, reviewed_by, reviewed_at, review_notes, action_taken`

const severityRank = `CASE severity WHEN 'critical' THEN 4 WHEN 'high' THEN 3 WHEN 'medium' THEN 2 ELSE 1 END`

// ProctoringEventRepository handles the append-only proctoring log. Rows are
// never updated except for the review columns.
type ProctoringEventRepository struct {
	pool *pgxpool.Pool
}

// NewProctoringEventRepository creates a new ProctoringEventRepository.
func NewProctoringEventRepository(pool *pgxpool.Pool) *ProctoringEventRepository {
	return &ProctoringEventRepository{pool: pool}
}

func scanEvent(row pgx.Row) (*model.ProctoringEvent, error) {
	e := &model.ProctoringEvent{}
	var questionID, notes, action *string
	err := row.Scan(&e.ID, &e.InstituteID, &e.SubmissionID, &e.StudentID, &e.ExamID, &e.EventType, &e.Severity,
		&e.OccurredAt, &e.ClientTimestamp, &e.TimeFromStart, &questionID, &e.Metadata, &e.Late,
		&e.Reviewed, &e.ReviewedBy, &e.ReviewedAt, &notes, &action)
	if err != nil {
		return nil, translate(err)
	}
	if questionID != nil {
		e.QuestionID = *questionID
	}
	if notes != nil {
		e.ReviewNotes = *notes
	}
	if action != nil {
		e.ActionTaken = model.ReviewAction(*action)
	}
	return e, nil
}

func collectEvents(rows pgx.Rows) ([]model.ProctoringEvent, error) {
	defer rows.Close()
	var out []model.ProctoringEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// Append inserts e against its submission. Ownership columns and the late
// flag are taken from the submission row inside the same statement, so late
// reflects the submission's status at the instant of the write.
func (r *ProctoringEventRepository) Append(ctx context.Context, e *model.ProctoringEvent) error {
	var questionID *string
	if e.QuestionID != "" {
		questionID = &e.QuestionID
	}
	row := r.pool.QueryRow(ctx,
		`INSERT INTO proctoring_events
			(institute_id, submission_id, student_id, exam_id, event_type, severity,
			 occurred_at, client_timestamp, time_from_start, question_id, metadata, late)
		 SELECT s.institute_id, s.id, s.student_id, s.exam_id, $2::text, $3::text,
			$4::timestamptz, $5::timestamptz,
			GREATEST(0, FLOOR(EXTRACT(EPOCH FROM ($4::timestamptz - s.started_at))))::bigint,
			$6::text, $7::jsonb,
			s.status <> 'in_progress'
		 FROM submissions s
		 WHERE s.id = $1 AND s.deleted_at IS NULL
		 RETURNING id, institute_id, student_id, exam_id, time_from_start, late`,
		e.SubmissionID, e.EventType, e.Severity, e.OccurredAt, e.ClientTimestamp, questionID, e.Metadata)
	err := row.Scan(&e.ID, &e.InstituteID, &e.StudentID, &e.ExamID, &e.TimeFromStart, &e.Late)
	return translate(err)
}

// GetByID retrieves an event visible to sc.
func (r *ProctoringEventRepository) GetByID(ctx context.Context, sc *scope.Scope, id uuid.UUID) (*model.ProctoringEvent, error) {
	return scanEvent(r.pool.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM proctoring_events
		 WHERE id = $1 AND deleted_at IS NULL
		   AND ($2::uuid IS NULL OR institute_id = $2)`, id, instituteArg(sc)))
}

// ListBySubmission returns a submission's events in occurrence order.
func (r *ProctoringEventRepository) ListBySubmission(ctx context.Context, sc *scope.Scope, submissionID uuid.UUID) ([]model.ProctoringEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+eventColumns+` FROM proctoring_events
		 WHERE submission_id = $1 AND deleted_at IS NULL
		   AND ($2::uuid IS NULL OR institute_id = $2)
		 ORDER BY occurred_at, id`, submissionID, instituteArg(sc))
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

// ListUnreviewedByExam returns the exam's unreviewed events, most severe first.
func (r *ProctoringEventRepository) ListUnreviewedByExam(ctx context.Context, sc *scope.Scope, examID uuid.UUID) ([]model.ProctoringEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+eventColumns+` FROM proctoring_events
		 WHERE exam_id = $1 AND reviewed = FALSE AND deleted_at IS NULL
		   AND ($2::uuid IS NULL OR institute_id = $2)
		 ORDER BY `+severityRank+` DESC, occurred_at, id`, examID, instituteArg(sc))
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

// ListByStudent returns a student's events, optionally filtered by review state.
func (r *ProctoringEventRepository) ListByStudent(ctx context.Context, sc *scope.Scope, studentID uuid.UUID, reviewed *bool) ([]model.ProctoringEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+eventColumns+` FROM proctoring_events
		 WHERE student_id = $1 AND deleted_at IS NULL
		   AND ($2::uuid IS NULL OR institute_id = $2)
		   AND ($3::boolean IS NULL OR reviewed = $3)
		 ORDER BY occurred_at DESC, id`, studentID, instituteArg(sc), reviewed)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

// MarkReviewed writes the review columns once. applied is false when the
// event was already reviewed.
func (r *ProctoringEventRepository) MarkReviewed(ctx context.Context, sc *scope.Scope, id uuid.UUID, rv model.Review) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE proctoring_events
		 SET reviewed = TRUE, reviewed_by = $2, reviewed_at = $3, review_notes = $4, action_taken = $5
		 WHERE id = $1 AND reviewed = FALSE AND deleted_at IS NULL
		   AND ($6::uuid IS NULL OR institute_id = $6)`,
		id, rv.ReviewedBy, rv.ReviewedAt, rv.Notes, rv.Action, instituteArg(sc))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
