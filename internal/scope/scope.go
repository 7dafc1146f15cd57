// Package scope derives the tenant boundary and privileges of a caller.
//
// Resolve is a pure function: it never touches storage. Callers look up the
// institute for a request-supplied code beforehand and pass the result in.
// Every repository query intersects its filter with the returned Scope.
package scope

import (
	"errors"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-integrity/internal/model"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrScopeMissing    = errors.New("scope missing")
)

// Capability is a privilege a scope may carry.
type Capability uint16

const (
	TakeExam Capability = 1 << iota
	Grade
	OverrideGrade
	Review
	ManageEnrollment
	ManageExams
	Maintain
	CrossTenantRead
)

func (c Capability) String() string {
	switch c {
	case TakeExam:
		return "take_exam"
	case Grade:
		return "grade"
	case OverrideGrade:
		return "override_grade"
	case Review:
		return "review"
	case ManageEnrollment:
		return "manage_enrollment"
	case ManageExams:
		return "manage_exams"
	case Maintain:
		return "maintain"
	case CrossTenantRead:
		return "cross_tenant_read"
	}
	return "unknown"
}

// roleCapabilities is the single place roles turn into privileges.
var roleCapabilities = map[model.Role]Capability{
	model.RoleSuperAdmin: Grade | OverrideGrade | Review | ManageEnrollment | ManageExams | Maintain | CrossTenantRead,
	model.RoleAdmin:      Grade | OverrideGrade | Review | ManageEnrollment | ManageExams,
	model.RoleReviewer:   Review,
	model.RoleTeacher:    Grade,
	model.RoleStudent:    TakeExam,
}

// Identity is the authenticated principal as carried by a verified token.
type Identity struct {
	UserID      uuid.UUID
	Role        model.Role
	InstituteID *uuid.UUID
}

// Scope is the resolved tenant boundary and privilege set of one request.
type Scope struct {
	UserID       uuid.UUID  `json:"user_id"`
	Role         model.Role `json:"role"`
	InstituteID  uuid.UUID  `json:"institute_id"`
	IsSuperAdmin bool       `json:"is_super_admin"`
	caps         Capability
}

// Resolve produces the scope for id. requestedCode is an optional institute
// code supplied by the client; institute is the record that code resolved to,
// or nil if it did not resolve. The code only ever narrows a super admin's
// view or confirms a regular identity's own institute.
func Resolve(id *Identity, requestedCode string, institute *model.Institute) (*Scope, error) {
	if id == nil || id.UserID == uuid.Nil || !id.Role.Valid() {
		return nil, ErrUnauthenticated
	}
	if requestedCode != "" && institute == nil {
		return nil, ErrScopeMissing
	}

	s := &Scope{
		UserID: id.UserID,
		Role:   id.Role,
		caps:   roleCapabilities[id.Role],
	}

	if id.Role == model.RoleSuperAdmin {
		s.IsSuperAdmin = true
		if institute != nil {
			s.InstituteID = institute.ID
		}
		return s, nil
	}

	if id.InstituteID == nil || *id.InstituteID == uuid.Nil {
		return nil, ErrScopeMissing
	}
	if institute != nil && institute.ID != *id.InstituteID {
		return nil, ErrScopeMissing
	}
	s.InstituteID = *id.InstituteID
	return s, nil
}

// Can reports whether the scope carries capability c.
func (s *Scope) Can(c Capability) bool {
	return s != nil && s.caps&c == c
}

// Capabilities lists the capability names the scope carries.
func (s *Scope) Capabilities() []string {
	var out []string
	for c := TakeExam; c <= CrossTenantRead; c <<= 1 {
		if s.Can(c) {
			out = append(out, c.String())
		}
	}
	return out
}

// Allows reports whether a record owned by instituteID is visible.
// An unrestricted super admin sees every institute.
func (s *Scope) Allows(instituteID uuid.UUID) bool {
	if s == nil {
		return false
	}
	if s.IsSuperAdmin && s.InstituteID == uuid.Nil {
		return true
	}
	return s.InstituteID == instituteID
}

// InstituteFilter returns the institute id every query must be restricted to.
// ok is false only for an unrestricted super admin. A nil scope filters on
// uuid.Nil, which matches nothing.
func (s *Scope) InstituteFilter() (uuid.UUID, bool) {
	if s == nil {
		return uuid.Nil, true
	}
	if s.IsSuperAdmin && s.InstituteID == uuid.Nil {
		return uuid.Nil, false
	}
	return s.InstituteID, true
}

// Owns reports whether the scope's user is userID.
func (s *Scope) Owns(userID uuid.UUID) bool {
	return s != nil && s.UserID == userID
}

// System returns an unrestricted super-admin scope for maintenance tooling.
func System() *Scope {
	return &Scope{
		Role:         model.RoleSuperAdmin,
		IsSuperAdmin: true,
		caps:         roleCapabilities[model.RoleSuperAdmin],
	}
}

// SystemFor returns a maintenance scope narrowed to one institute.
func SystemFor(instituteID uuid.UUID) *Scope {
	s := System()
	s.InstituteID = instituteID
	return s
}
