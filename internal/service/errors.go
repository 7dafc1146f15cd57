package service

import (
	"errors"
	"fmt"

	"github.com/stemsi/exstem-integrity/internal/repository"
	"github.com/stemsi/exstem-integrity/internal/scope"
)

// Domain errors. Handlers map them to HTTP responses in one place.
var (
	ErrUnauthenticated = scope.ErrUnauthenticated
	ErrScopeMissing    = scope.ErrScopeMissing

	ErrNotFound    = errors.New("not found")
	ErrForbidden   = errors.New("forbidden")
	ErrCrossTenant = errors.New("resource belongs to another institute")
	ErrValidation  = errors.New("validation failed")
	ErrDuplicate   = errors.New("already exists")

	ErrNotEnrolled       = errors.New("student has no active enrollment for this exam")
	ErrOutsideWindow     = errors.New("exam is outside its scheduled window")
	ErrAlreadyAttempted  = errors.New("exam already attempted")
	ErrNotInProgress     = errors.New("submission is not in progress")
	ErrAlreadyFinalized  = errors.New("submission already finalized")
	ErrAlreadyGraded     = errors.New("submission already graded")
	ErrNotSubmitted      = errors.New("submission not submitted")
	ErrNotGraded         = errors.New("submission not graded")
	ErrInvalidTransition = errors.New("transition not allowed from current state")

	ErrInvalidEventType = errors.New("unknown proctoring event type")
	ErrAlreadyReviewed  = errors.New("event already reviewed")
)

// ErrLateEvent is returned alongside a persisted event whose submission was
// no longer in progress. It satisfies errors.Is(err, ErrNotInProgress).
var ErrLateEvent = lateEventError{}

type lateEventError struct{}

func (lateEventError) Error() string { return "event recorded late: submission is not in progress" }

func (lateEventError) Unwrap() error { return ErrNotInProgress }

// storeErr folds a repository miss into ErrNotFound and a unique violation
// into ErrDuplicate. Anything else is wrapped with op.
func storeErr(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrDuplicate):
		return fmt.Errorf("%s: %w", op, ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", op, err)
}
