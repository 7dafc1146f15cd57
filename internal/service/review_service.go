package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-integrity/internal/model"
	"github.com/stemsi/exstem-integrity/internal/scope"
)

// ReviewService lets reviewers dispose of proctoring events.
type ReviewService struct {
	events      EventStore
	submissions *SubmissionService
	sanitizer   *bluemonday.Policy
	log         zerolog.Logger
	now         func() time.Time
}

// NewReviewService creates a new ReviewService.
func NewReviewService(events EventStore, submissions *SubmissionService, log zerolog.Logger) *ReviewService {
	return &ReviewService{
		events:      events,
		submissions: submissions,
		sanitizer:   bluemonday.StrictPolicy(),
		log:         log.With().Str("component", "review_service").Logger(),
		now:         time.Now,
	}
}

// Disposition is a reviewer's decision on one event.
type Disposition struct {
	Action model.ReviewAction
	Notes  string
}

// ReviewResult is the reviewed event and, for invalidations, the frozen submission.
type ReviewResult struct {
	Event      *model.ProctoringEvent `json:"event"`
	Submission *model.Submission      `json:"submission,omitempty"`
}

// ReviewEvent records a disposition. The invalidate action is accepted only
// for critical events and invalidates the submission before the event is
// marked reviewed, so a failed invalidation leaves the event in the queue.
func (s *ReviewService) ReviewEvent(ctx context.Context, sc *scope.Scope, eventID uuid.UUID, d Disposition) (*ReviewResult, error) {
	if !sc.Can(scope.Review) {
		return nil, ErrForbidden
	}
	event, err := s.events.GetByID(ctx, sc, eventID)
	if err != nil {
		return nil, storeErr("get event", err)
	}
	if event.Reviewed {
		return nil, ErrAlreadyReviewed
	}

	switch d.Action {
	case model.ReviewDismiss, model.ReviewWarn:
	case model.ReviewInvalidate:
		if event.Severity != model.SeverityCritical {
			return nil, fmt.Errorf("%w: only critical events can invalidate an attempt", ErrValidation)
		}
	default:
		return nil, fmt.Errorf("%w: unknown action %q", ErrValidation, d.Action)
	}

	notes := strings.TrimSpace(s.sanitizer.Sanitize(d.Notes))
	result := &ReviewResult{}

	if d.Action == model.ReviewInvalidate {
		reason := fmt.Sprintf("%s event %s", event.EventType, event.ID)
		if notes != "" {
			reason += ": " + notes
		}
		sub, err := s.submissions.Invalidate(ctx, sc, event.SubmissionID, reason)
		if err != nil {
			return nil, err
		}
		result.Submission = sub
	}

	rv := model.Review{
		ReviewedBy: sc.UserID,
		ReviewedAt: s.now(),
		Notes:      notes,
		Action:     d.Action,
	}
	applied, err := s.events.MarkReviewed(ctx, sc, eventID, rv)
	if err != nil {
		return nil, storeErr("mark reviewed", err)
	}
	if !applied {
		return nil, ErrAlreadyReviewed
	}

	event.Reviewed = true
	event.ReviewedBy = &rv.ReviewedBy
	event.ReviewedAt = &rv.ReviewedAt
	event.ReviewNotes = rv.Notes
	event.ActionTaken = rv.Action
	result.Event = event

	s.log.Info().
		Str("event_id", eventID.String()).
		Str("action", string(d.Action)).
		Str("reviewer_id", sc.UserID.String()).
		Msg("Proctoring event reviewed")
	return result, nil
}
