package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType is the kind of proctoring signal the exam client reports.
type EventType string

const (
	EventTabSwitch        EventType = "tab_switch"
	EventFullscreenExit   EventType = "fullscreen_exit"
	EventCopyAttempt      EventType = "copy_attempt"
	EventPasteAttempt     EventType = "paste_attempt"
	EventRightClick       EventType = "right_click"
	EventContextMenu      EventType = "context_menu"
	EventDevToolsOpen     EventType = "dev_tools_open"
	EventMultipleSessions EventType = "multiple_sessions"
	EventKeyboardShortcut EventType = "keyboard_shortcut"
	EventFocusLoss        EventType = "focus_loss"
)

// AllEventTypes lists every accepted event type.
var AllEventTypes = []EventType{
	EventTabSwitch,
	EventFullscreenExit,
	EventCopyAttempt,
	EventPasteAttempt,
	EventRightClick,
	EventContextMenu,
	EventDevToolsOpen,
	EventMultipleSessions,
	EventKeyboardShortcut,
	EventFocusLoss,
}

// Valid reports whether t is an accepted event type.
func (t EventType) Valid() bool {
	for _, known := range AllEventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Severity classifies how suspicious a signal is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities; higher is worse. Unknown severities rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// ReviewAction is the remedial action a reviewer records.
type ReviewAction string

const (
	ReviewDismiss    ReviewAction = "dismiss"
	ReviewWarn       ReviewAction = "warn"
	ReviewInvalidate ReviewAction = "invalidate"
)

// EventMetadata is the write-once technical context captured with an event.
type EventMetadata struct {
	IPAddress       string          `json:"ip_address,omitempty"`
	ClientSignature string          `json:"client_signature,omitempty"`
	ScreenWidth     int             `json:"screen_width,omitempty"`
	ScreenHeight    int             `json:"screen_height,omitempty"`
	ClipboardText   string          `json:"clipboard_text,omitempty"`
	KeyCombination  string          `json:"key_combination,omitempty"`
	Source          string          `json:"source,omitempty"`
	Extra           json.RawMessage `json:"extra,omitempty"`
}

// ProctoringEvent is an append-only record of one detected signal.
type ProctoringEvent struct {
	ID              uuid.UUID     `json:"id"`
	InstituteID     uuid.UUID     `json:"institute_id"`
	SubmissionID    uuid.UUID     `json:"submission_id"`
	StudentID       uuid.UUID     `json:"student_id"`
	ExamID          uuid.UUID     `json:"exam_id"`
	EventType       EventType     `json:"event_type"`
	Severity        Severity      `json:"severity"`
	OccurredAt      time.Time     `json:"occurred_at"`
	ClientTimestamp *time.Time    `json:"client_timestamp,omitempty"`
	TimeFromStart   int64         `json:"time_from_start"`
	QuestionID      string        `json:"question_id,omitempty"`
	Metadata        EventMetadata `json:"metadata"`
	Late            bool          `json:"late"`
	Reviewed        bool          `json:"reviewed"`
	ReviewedBy      *uuid.UUID    `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time    `json:"reviewed_at,omitempty"`
	ReviewNotes     string        `json:"review_notes,omitempty"`
	ActionTaken     ReviewAction  `json:"action_taken,omitempty"`
}

// Review is the disposition written by the Review Workflow.
type Review struct {
	ReviewedBy uuid.UUID
	ReviewedAt time.Time
	Notes      string
	Action     ReviewAction
}

// RecordEventRequest is the payload the exam client sends.
type RecordEventRequest struct {
	EventType       EventType     `json:"event_type" binding:"required"`
	QuestionID      string        `json:"question_id" binding:"omitempty,max=64"`
	ClientTimestamp *time.Time    `json:"client_timestamp"`
	Metadata        EventMetadata `json:"metadata"`
}

// ReviewEventRequest is the payload for disposing of an event.
type ReviewEventRequest struct {
	Action ReviewAction `json:"action" binding:"required,oneof=dismiss warn invalidate"`
	Notes  string       `json:"notes" binding:"omitempty,max=2000"`
}

// SeverityGroup is one bucket of the unreviewed-by-exam aggregation.
type SeverityGroup struct {
	Severity Severity          `json:"severity"`
	Count    int               `json:"count"`
	Events   []ProctoringEvent `json:"events"`
}
