package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-integrity/internal/config"
	"github.com/stemsi/exstem-integrity/internal/metrics"
	"github.com/stemsi/exstem-integrity/internal/model"
	"github.com/stemsi/exstem-integrity/internal/policy"
	"github.com/stemsi/exstem-integrity/internal/scope"
)

// releaseIfOwner deletes the presence key only if it still holds our token.
var releaseIfOwner = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// refreshIfOwner extends the presence key if it holds our token and reclaims
// it if it has expired. A key held by another token is left untouched.
var refreshIfOwner = redis.NewScript(`
local holder = redis.call("GET", KEYS[1])
if holder == ARGV[1] then
	redis.call("PEXPIRE", KEYS[1], ARGV[2])
	return 1
end
if not holder then
	redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
	return 1
end
return 0
`)

// IntegrityService records proctoring signals and serves the review queries.
// Severity comes from the policy table alone.
type IntegrityService struct {
	events      EventStore
	submissions SubmissionStore
	exams       ExamStore
	users       UserStore
	policy      *policy.Policy
	rdb         *redis.Client
	presenceTTL time.Duration
	log         zerolog.Logger
	now         func() time.Time
}

// NewIntegrityService creates a new IntegrityService.
func NewIntegrityService(
	events EventStore,
	submissions SubmissionStore,
	exams ExamStore,
	users UserStore,
	pol *policy.Policy,
	rdb *redis.Client,
	presenceTTL time.Duration,
	log zerolog.Logger,
) *IntegrityService {
	return &IntegrityService{
		events:      events,
		submissions: submissions,
		exams:       exams,
		users:       users,
		policy:      pol,
		rdb:         rdb,
		presenceTTL: presenceTTL,
		log:         log.With().Str("component", "integrity_service").Logger(),
		now:         time.Now,
	}
}

// EventInput is a proctoring signal as received from the exam client.
type EventInput struct {
	EventType       model.EventType
	QuestionID      string
	ClientTimestamp *time.Time
	Metadata        model.EventMetadata
}

// RecordEvent appends a signal against the caller's own submission. When the
// submission is no longer in progress the event is still stored, flagged
// late, and ErrLateEvent is returned together with it.
func (s *IntegrityService) RecordEvent(ctx context.Context, sc *scope.Scope, submissionID uuid.UUID, in EventInput) (*model.ProctoringEvent, error) {
	sub, err := s.submissions.GetByID(ctx, sc, submissionID)
	if err != nil {
		return nil, storeErr("get submission", err)
	}
	if !sc.Can(scope.TakeExam) || !sc.Owns(sub.StudentID) {
		return nil, ErrForbidden
	}

	severity, ok := s.policy.Severity(sub.InstituteID, in.EventType)
	if !ok {
		return nil, ErrInvalidEventType
	}

	e := &model.ProctoringEvent{
		SubmissionID:    sub.ID,
		EventType:       in.EventType,
		Severity:        severity,
		OccurredAt:      s.now(),
		ClientTimestamp: in.ClientTimestamp,
		QuestionID:      in.QuestionID,
		Metadata:        in.Metadata,
	}
	if err := s.events.Append(ctx, e); err != nil {
		return nil, storeErr("append event", err)
	}

	metrics.Event(string(e.EventType), string(e.Severity), e.Late)
	l := s.log.With().
		Str("event_id", e.ID.String()).
		Str("submission_id", sub.ID.String()).
		Str("event_type", string(e.EventType)).
		Str("severity", string(e.Severity)).
		Logger()

	if e.Late {
		l.Warn().Msg("Late proctoring event recorded")
		return e, ErrLateEvent
	}
	if e.Severity == model.SeverityCritical {
		l.Warn().Msg("Critical proctoring event recorded")
	} else {
		l.Debug().Msg("Proctoring event recorded")
	}
	return e, nil
}

// EventsForSubmission lists a submission's events in occurrence order.
func (s *IntegrityService) EventsForSubmission(ctx context.Context, sc *scope.Scope, submissionID uuid.UUID) ([]model.ProctoringEvent, error) {
	if !sc.Can(scope.Review) && !sc.Can(scope.Grade) {
		return nil, ErrForbidden
	}
	if _, err := s.submissions.GetByID(ctx, sc, submissionID); err != nil {
		return nil, storeErr("get submission", err)
	}
	events, err := s.events.ListBySubmission(ctx, sc, submissionID)
	if err != nil {
		return nil, storeErr("list events", err)
	}
	return events, nil
}

// UnreviewedForExam groups an exam's unreviewed events by severity, most
// severe group first. Empty groups are omitted.
func (s *IntegrityService) UnreviewedForExam(ctx context.Context, sc *scope.Scope, examID uuid.UUID) ([]model.SeverityGroup, error) {
	if !sc.Can(scope.Review) {
		return nil, ErrForbidden
	}
	if _, err := s.exams.GetByID(ctx, sc, examID); err != nil {
		return nil, storeErr("get exam", err)
	}
	events, err := s.events.ListUnreviewedByExam(ctx, sc, examID)
	if err != nil {
		return nil, storeErr("list events", err)
	}
	return GroupBySeverity(events), nil
}

// GroupBySeverity buckets events by severity in descending severity order,
// preserving the input order within each bucket.
func GroupBySeverity(events []model.ProctoringEvent) []model.SeverityGroup {
	order := []model.Severity{model.SeverityCritical, model.SeverityHigh, model.SeverityMedium, model.SeverityLow}
	buckets := make(map[model.Severity][]model.ProctoringEvent, len(order))
	for _, e := range events {
		buckets[e.Severity] = append(buckets[e.Severity], e)
	}

	groups := make([]model.SeverityGroup, 0, len(order))
	for _, sev := range order {
		if len(buckets[sev]) == 0 {
			continue
		}
		groups = append(groups, model.SeverityGroup{Severity: sev, Count: len(buckets[sev]), Events: buckets[sev]})
	}
	return groups
}

// EventsForStudent lists a student's events, optionally filtered by review state.
func (s *IntegrityService) EventsForStudent(ctx context.Context, sc *scope.Scope, studentID uuid.UUID, reviewed *bool) ([]model.ProctoringEvent, error) {
	if !sc.Can(scope.Review) {
		return nil, ErrForbidden
	}
	if _, err := s.users.GetStudent(ctx, sc, studentID); err != nil {
		return nil, storeErr("get student", err)
	}
	events, err := s.events.ListByStudent(ctx, sc, studentID, reviewed)
	if err != nil {
		return nil, storeErr("list events", err)
	}
	return events, nil
}

// ClaimStream marks connID as the live stream for a submission. It returns
// false when another connection already holds the claim.
func (s *IntegrityService) ClaimStream(ctx context.Context, submissionID uuid.UUID, connID string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, config.CacheKey.SubmissionStreamKey(submissionID), connID, s.presenceTTL).Result()
	if err != nil {
		return false, fmt.Errorf("claim stream: %w", err)
	}
	return ok, nil
}

// RefreshStream extends a held claim, or retakes it once expired. It reports
// false if another connection holds it.
func (s *IntegrityService) RefreshStream(ctx context.Context, submissionID uuid.UUID, connID string) (bool, error) {
	key := config.CacheKey.SubmissionStreamKey(submissionID)
	held, err := refreshIfOwner.Run(ctx, s.rdb, []string{key}, connID, s.presenceTTL.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("refresh stream: %w", err)
	}
	return held == 1, nil
}

// ReleaseStream drops the claim if connID still holds it.
func (s *IntegrityService) ReleaseStream(ctx context.Context, submissionID uuid.UUID, connID string) error {
	key := config.CacheKey.SubmissionStreamKey(submissionID)
	if err := releaseIfOwner.Run(ctx, s.rdb, []string{key}, connID).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release stream: %w", err)
	}
	return nil
}
