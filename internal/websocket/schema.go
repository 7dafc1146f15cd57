package websocket

import (
	"time"

	"github.com/stemsi/exstem-integrity/internal/model"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAutosave Action = "autosave"
	ActionSubmit   Action = "submit"
	ActionEvent    Action = "event"
	ActionPing     Action = "ping"
)

// RequestPayload is the single inbound message shape. Fields unused by an
// action are ignored.
type RequestPayload struct {
	Action Action `json:"action"`

	// autosave
	DraftAnswers model.Answers `json:"draft_answers,omitempty"`

	// submit
	Answers *model.Answers `json:"answers,omitempty"`

	// event
	EventType       model.EventType     `json:"event_type,omitempty"`
	QuestionID      string              `json:"question_id,omitempty"`
	ClientTimestamp *time.Time          `json:"client_timestamp,omitempty"`
	Metadata        model.EventMetadata `json:"metadata,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError      Event = "error"
	EventSaved      Event = "saved"
	EventSuperseded Event = "superseded"
	EventSubmitted  Event = "submitted"
	EventRecorded   Event = "recorded"
	EventPong       Event = "pong"
)

// SavedResponse acknowledges an autosave.
type SavedResponse struct {
	Event          Event     `json:"event"`
	LastAutoSaveAt time.Time `json:"last_autosave_at"`
}

// SubmittedResponse acknowledges a submit.
type SubmittedResponse struct {
	Event       Event      `json:"event"`
	Status      string     `json:"status"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
}

// RecordedResponse acknowledges a proctoring event. Late mirrors the stored flag.
type RecordedResponse struct {
	Event    Event     `json:"event"`
	EventID  string    `json:"event_id"`
	Severity string    `json:"severity"`
	Late     bool      `json:"late"`
	At       time.Time `json:"occurred_at"`
}

type ErrorResponse struct {
	Event   Event  `json:"event"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
