package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-integrity/internal/model"
	"github.com/stemsi/exstem-integrity/internal/scope"
)

// The store interfaces below are satisfied by the Postgres repositories and
// by the in-memory doubles used in tests. Every scoped read or write takes
// the caller's scope and must intersect its filter with it.

type InstituteStore interface {
	GetByCode(ctx context.Context, code string) (*model.Institute, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Institute, error)
}

type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetStudent(ctx context.Context, sc *scope.Scope, id uuid.UUID) (*model.User, error)
}

type BatchStore interface {
	Create(ctx context.Context, b *model.Batch) error
	GetByID(ctx context.Context, sc *scope.Scope, id uuid.UUID) (*model.Batch, error)
	Mutate(ctx context.Context, sc *scope.Scope, id uuid.UUID, fn func(b *model.Batch) (bool, error)) (*model.Batch, error)
	HasActiveEnrollment(ctx context.Context, instituteID, courseID, studentID uuid.UUID) (bool, error)
	ListIDs(ctx context.Context, sc *scope.Scope) ([]uuid.UUID, error)
}

type ExamStore interface {
	Create(ctx context.Context, e *model.Exam) error
	GetByID(ctx context.Context, sc *scope.Scope, id uuid.UUID) (*model.Exam, error)
	GetAnswerKey(ctx context.Context, examID uuid.UUID) (model.AnswerKey, error)
}

type SubmissionStore interface {
	CreateOrGet(ctx context.Context, s *model.Submission) (*model.Submission, bool, error)
	GetByID(ctx context.Context, sc *scope.Scope, id uuid.UUID) (*model.Submission, error)
	SaveDraft(ctx context.Context, sc *scope.Scope, id, studentID uuid.UUID, draft model.Answers, receivedAt time.Time) (bool, error)
	Submit(ctx context.Context, sc *scope.Scope, id, studentID uuid.UUID, answers model.Answers, at time.Time) (bool, error)
	Grade(ctx context.Context, sc *scope.Scope, id uuid.UUID, score, maxScore float64, at time.Time) (bool, error)
	Regrade(ctx context.Context, sc *scope.Scope, id uuid.UUID, score, maxScore float64, reason string, at time.Time) (bool, error)
	Invalidate(ctx context.Context, sc *scope.Scope, id uuid.UUID, reason string, at time.Time) (bool, error)
	ListByExam(ctx context.Context, sc *scope.Scope, examID uuid.UUID) ([]model.Submission, error)
}

type EventStore interface {
	Append(ctx context.Context, e *model.ProctoringEvent) error
	GetByID(ctx context.Context, sc *scope.Scope, id uuid.UUID) (*model.ProctoringEvent, error)
	ListBySubmission(ctx context.Context, sc *scope.Scope, submissionID uuid.UUID) ([]model.ProctoringEvent, error)
	ListUnreviewedByExam(ctx context.Context, sc *scope.Scope, examID uuid.UUID) ([]model.ProctoringEvent, error)
	ListByStudent(ctx context.Context, sc *scope.Scope, studentID uuid.UUID, reviewed *bool) ([]model.ProctoringEvent, error)
	MarkReviewed(ctx context.Context, sc *scope.Scope, id uuid.UUID, rv model.Review) (bool, error)
}
