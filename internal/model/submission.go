package model

import (
	"time"

	"github.com/google/uuid"
)

// SubmissionSchemaVersion is the current layout of a submission record.
const SubmissionSchemaVersion = 1

// SubmissionStatus enumerates attempt lifecycle states.
type SubmissionStatus string

const (
	SubmissionNotStarted  SubmissionStatus = "not_started"
	SubmissionInProgress  SubmissionStatus = "in_progress"
	SubmissionSubmitted   SubmissionStatus = "submitted"
	SubmissionGraded      SubmissionStatus = "graded"
	SubmissionInvalidated SubmissionStatus = "invalidated"
)

// Final reports whether answers are frozen in this state.
func (s SubmissionStatus) Final() bool {
	switch s {
	case SubmissionSubmitted, SubmissionGraded, SubmissionInvalidated:
		return true
	}
	return false
}

// Answers maps question id to answer text.
type Answers map[string]string

// Clone returns a copy that does not alias a.
func (a Answers) Clone() Answers {
	if a == nil {
		return Answers{}
	}
	out := make(Answers, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Submission is one student's attempt at one exam.
type Submission struct {
	ID                 uuid.UUID        `json:"id"`
	InstituteID        uuid.UUID        `json:"institute_id"`
	ExamID             uuid.UUID        `json:"exam_id"`
	StudentID          uuid.UUID        `json:"student_id"`
	Status             SubmissionStatus `json:"status"`
	Answers            Answers          `json:"answers"`
	DraftAnswers       Answers          `json:"draft_answers"`
	StartedAt          time.Time        `json:"started_at"`
	LastAutoSaveAt     *time.Time       `json:"last_autosave_at,omitempty"`
	SubmittedAt        *time.Time       `json:"submitted_at,omitempty"`
	GradedAt           *time.Time       `json:"graded_at,omitempty"`
	InvalidatedAt      *time.Time       `json:"invalidated_at,omitempty"`
	Score              *float64         `json:"score,omitempty"`
	MaxScore           *float64         `json:"max_score,omitempty"`
	InvalidationReason string           `json:"invalidation_reason,omitempty"`
	RegradeReason      string           `json:"regrade_reason,omitempty"`
	SchemaVersion      int              `json:"schema_version"`
}

// AutosaveRequest replaces the whole draft.
type AutosaveRequest struct {
	DraftAnswers Answers `json:"draft_answers" binding:"required,answer_map"`
}

// SubmitRequest optionally supersedes the draft with an explicit answer set.
type SubmitRequest struct {
	Answers *Answers `json:"answers" binding:"omitempty,answer_map"`
}

// RegradeRequest is the administrative override payload.
type RegradeRequest struct {
	Reason string `json:"reason" binding:"required,min=5,max=500"`
}
