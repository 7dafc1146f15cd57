package model

import (
	"time"

	"github.com/google/uuid"
)

// BatchSchemaVersion is the current layout of the embedded roster document.
const BatchSchemaVersion = 1

// EnrollmentStatus enumerates roster entry states.
type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentInactive  EnrollmentStatus = "inactive"
	EnrollmentWithdrawn EnrollmentStatus = "withdrawn"
)

// Valid reports whether s is a known enrollment status.
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentActive, EnrollmentInactive, EnrollmentWithdrawn:
		return true
	}
	return false
}

// EnrollOutcome describes what Enroll did to the roster.
type EnrollOutcome string

const (
	EnrollOutcomeEnrolled      EnrollOutcome = "enrolled"
	EnrollOutcomeReactivated   EnrollOutcome = "reactivated"
	EnrollOutcomeAlreadyActive EnrollOutcome = "already_active"
)

// Changed reports whether the outcome mutated the roster.
func (o EnrollOutcome) Changed() bool {
	return o != EnrollOutcomeAlreadyActive
}

// EnrollmentRecord is one roster entry embedded in a batch.
type EnrollmentRecord struct {
	StudentID  uuid.UUID        `json:"student_id"`
	Status     EnrollmentStatus `json:"status"`
	EnrolledAt time.Time        `json:"enrolled_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
	UpdatedBy  *uuid.UUID       `json:"updated_by,omitempty"`
}

// Roster is the ordered list of enrollment records of a batch.
// It is stored as a single JSONB document; all mutation goes through its methods.
type Roster []EnrollmentRecord

// ActiveCount is the only sanctioned membership count: the number of distinct
// students holding an active entry. The raw slice length is never a membership signal.
func (r Roster) ActiveCount() int {
	seen := make(map[uuid.UUID]struct{}, len(r))
	for _, e := range r {
		if e.Status == EnrollmentActive {
			seen[e.StudentID] = struct{}{}
		}
	}
	return len(seen)
}

// IsActive reports whether studentID has an active entry.
func (r Roster) IsActive(studentID uuid.UUID) bool {
	for _, e := range r {
		if e.StudentID == studentID && e.Status == EnrollmentActive {
			return true
		}
	}
	return false
}

// find returns the index of the entry Enroll should act on: the first active
// entry for the student, else the first entry in stored order, else -1.
func (r Roster) find(studentID uuid.UUID) int {
	first := -1
	for i, e := range r {
		if e.StudentID != studentID {
			continue
		}
		if e.Status == EnrollmentActive {
			return i
		}
		if first < 0 {
			first = i
		}
	}
	return first
}

// Enroll appends a new active entry, reactivates an existing one, or reports
// that the student is already active. It never appends a second entry for a
// student that already has one.
func (r *Roster) Enroll(studentID, actorID uuid.UUID, now time.Time) EnrollOutcome {
	idx := r.find(studentID)
	if idx < 0 {
		*r = append(*r, EnrollmentRecord{
			StudentID:  studentID,
			Status:     EnrollmentActive,
			EnrolledAt: now,
			UpdatedAt:  now,
			UpdatedBy:  &actorID,
		})
		return EnrollOutcomeEnrolled
	}

	entry := &(*r)[idx]
	if entry.Status == EnrollmentActive {
		return EnrollOutcomeAlreadyActive
	}
	entry.Status = EnrollmentActive
	entry.UpdatedAt = now
	entry.UpdatedBy = &actorID
	return EnrollOutcomeReactivated
}

// SetStatus moves every entry of studentID to status and reports whether
// anything changed. Found is false when the student has no entry at all.
func (r Roster) SetStatus(studentID, actorID uuid.UUID, status EnrollmentStatus, now time.Time) (found, changed bool) {
	for i := range r {
		if r[i].StudentID != studentID {
			continue
		}
		found = true
		if r[i].Status == status {
			continue
		}
		r[i].Status = status
		r[i].UpdatedAt = now
		r[i].UpdatedBy = &actorID
		changed = true
	}
	return found, changed
}

// Deduplicate keeps one entry per student and returns how many were dropped.
// The kept entry is the first active occurrence, or the first occurrence in
// stored order when none is active. Relative order of kept entries is preserved.
func (r *Roster) Deduplicate() int {
	keep := make(map[uuid.UUID]int, len(*r))
	for i, e := range *r {
		cur, ok := keep[e.StudentID]
		if !ok {
			keep[e.StudentID] = i
			continue
		}
		if (*r)[cur].Status != EnrollmentActive && e.Status == EnrollmentActive {
			keep[e.StudentID] = i
		}
	}

	if len(keep) == len(*r) {
		return 0
	}

	out := make(Roster, 0, len(keep))
	for i, e := range *r {
		if keep[e.StudentID] == i {
			out = append(out, e)
		}
	}
	removed := len(*r) - len(out)
	*r = out
	return removed
}

// Batch is a cohort of students bound to a course. The roster is embedded.
type Batch struct {
	ID            uuid.UUID `json:"id"`
	InstituteID   uuid.UUID `json:"institute_id"`
	CourseID      uuid.UUID `json:"course_id"`
	Name          string    `json:"name"`
	Roster        Roster    `json:"roster"`
	SchemaVersion int       `json:"schema_version"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CreateBatchRequest is the payload for creating a batch.
type CreateBatchRequest struct {
	CourseID uuid.UUID `json:"course_id" binding:"required"`
	Name     string    `json:"name" binding:"required,min=2,max=120"`
}

// EnrollRequest is the payload for enrolling a student into a batch.
type EnrollRequest struct {
	StudentID uuid.UUID `json:"student_id" binding:"required"`
}

// UpdateEnrollmentRequest changes a student's roster status.
type UpdateEnrollmentRequest struct {
	Status EnrollmentStatus `json:"status" binding:"required,oneof=active inactive withdrawn"`
}
