package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-integrity/internal/model"
	"github.com/stemsi/exstem-integrity/internal/scope"
)

// ExamRepository handles exam data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

// Create inserts a new exam together with its answer key.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO exams (institute_id, course_id, title, schedule_start, schedule_end, answer_key)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		e.InstituteID, e.CourseID, e.Title, e.ScheduleStart, e.ScheduleEnd, e.AnswerKey,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	return translate(err)
}

// GetByID retrieves an exam visible to sc. The answer key is not loaded.
func (r *ExamRepository) GetByID(ctx context.Context, sc *scope.Scope, id uuid.UUID) (*model.Exam, error) {
	e := &model.Exam{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, institute_id, course_id, title, schedule_start, schedule_end, created_at, updated_at
		 FROM exams
		 WHERE id = $1 AND deleted_at IS NULL
		   AND ($2::uuid IS NULL OR institute_id = $2)`, id, instituteArg(sc),
	).Scan(&e.ID, &e.InstituteID, &e.CourseID, &e.Title, &e.ScheduleStart, &e.ScheduleEnd, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return e, nil
}

// GetAnswerKey loads the answer key of an exam the caller already resolved.
func (r *ExamRepository) GetAnswerKey(ctx context.Context, examID uuid.UUID) (model.AnswerKey, error) {
	var key model.AnswerKey
	err := r.pool.QueryRow(ctx,
		`SELECT answer_key FROM exams WHERE id = $1 AND deleted_at IS NULL`, examID,
	).Scan(&key)
	if err != nil {
		return nil, translate(err)
	}
	if key == nil {
		key = model.AnswerKey{}
	}
	return key, nil
}
