package model

import (
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// KeyEntry is the expected answer and weight of one question.
// Entries without an expected answer are not auto-graded.
type KeyEntry struct {
	Answer string  `json:"answer"`
	Points float64 `json:"points"`
}

// AnswerKey maps question id to its key entry.
type AnswerKey map[string]KeyEntry

// Score grades answers against the key. Comparison ignores surrounding
// whitespace and case. Points are summed in question id order so the same
// key and answers always yield the same float result.
func (k AnswerKey) Score(answers Answers) (score, maxScore float64) {
	for _, qid := range slices.Sorted(maps.Keys(k)) {
		entry := k[qid]
		if entry.Answer == "" {
			continue
		}
		points := entry.Points
		if points <= 0 {
			points = 1
		}
		maxScore += points
		given, ok := answers[qid]
		if ok && strings.EqualFold(strings.TrimSpace(given), strings.TrimSpace(entry.Answer)) {
			score += points
		}
	}
	return score, maxScore
}

// Exam is the schedulable unit a student attempts.
type Exam struct {
	ID            uuid.UUID `json:"id"`
	InstituteID   uuid.UUID `json:"institute_id"`
	CourseID      uuid.UUID `json:"course_id"`
	Title         string    `json:"title"`
	ScheduleStart time.Time `json:"schedule_start"`
	ScheduleEnd   time.Time `json:"schedule_end"`
	AnswerKey     AnswerKey `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// InWindow reports whether t lies within [ScheduleStart, ScheduleEnd].
func (e *Exam) InWindow(t time.Time) bool {
	return !t.Before(e.ScheduleStart) && !t.After(e.ScheduleEnd)
}

// CreateExamRequest is the payload for creating an exam.
type CreateExamRequest struct {
	CourseID      uuid.UUID `json:"course_id" binding:"required"`
	Title         string    `json:"title" binding:"required,min=3,max=255"`
	ScheduleStart time.Time `json:"schedule_start" binding:"required"`
	ScheduleEnd   time.Time `json:"schedule_end" binding:"required,gtfield=ScheduleStart"`
	AnswerKey     AnswerKey `json:"answer_key" binding:"required"`
}
