package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stemsi/exstem-integrity/internal/model"
	"github.com/stemsi/exstem-integrity/internal/policy"
	"github.com/stemsi/exstem-integrity/internal/repository"
	"github.com/stemsi/exstem-integrity/internal/scope"
)

// ScopeService looks up the optional institute code and hands the result to
// the pure resolver.
type ScopeService struct {
	institutes InstituteStore
	severity   *policy.Policy
}

// NewScopeService creates a new ScopeService. severity may be nil, in which
// case scope descriptions carry no severity table.
func NewScopeService(institutes InstituteStore, severity *policy.Policy) *ScopeService {
	return &ScopeService{institutes: institutes, severity: severity}
}

// Resolve produces the scope for id. A code that does not resolve yields
// ErrScopeMissing, never an unscoped result.
func (s *ScopeService) Resolve(ctx context.Context, id *scope.Identity, code string) (*scope.Scope, error) {
	if id == nil {
		return nil, ErrUnauthenticated
	}

	code = strings.TrimSpace(code)
	var inst *model.Institute
	if code != "" {
		found, err := s.institutes.GetByCode(ctx, strings.ToUpper(code))
		switch {
		case err == nil:
			inst = found
		case errors.Is(err, repository.ErrNotFound):
		default:
			return nil, fmt.Errorf("lookup institute: %w", err)
		}
	}
	return scope.Resolve(id, code, inst)
}

// ScopeView is the public description of a resolved scope.
type ScopeView struct {
	*scope.Scope
	Institute    *model.Institute `json:"institute,omitempty"`
	Capabilities []string         `json:"capabilities"`
	// SeverityPolicy is the event severity table in force for the scope's
	// institute. Only staff who grade or review see it.
	SeverityPolicy policy.Table `json:"severity_policy,omitempty"`
}

// Describe returns sc together with its institute record, if any.
func (s *ScopeService) Describe(ctx context.Context, sc *scope.Scope) (*ScopeView, error) {
	view := &ScopeView{Scope: sc, Capabilities: sc.Capabilities()}
	id, filtered := sc.InstituteFilter()
	if filtered {
		inst, err := s.institutes.GetByID(ctx, id)
		if err != nil {
			return nil, storeErr("get institute", err)
		}
		view.Institute = inst
	}
	if s.severity != nil && (sc.Can(scope.Review) || sc.Can(scope.Grade)) {
		// An unfiltered super admin gets the base table.
		view.SeverityPolicy = s.severity.Effective(id)
	}
	return view, nil
}
