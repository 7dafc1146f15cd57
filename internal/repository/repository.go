package repository

import (
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stemsi/exstem-integrity/internal/scope"
)

var (
	// ErrNotFound is returned when a row is absent, soft-deleted, or outside
	// the caller's scope. The three cases are deliberately indistinguishable.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned on a unique constraint violation.
	ErrDuplicate = errors.New("record already exists")
)

// instituteArg is the value bound to every "($n::uuid IS NULL OR institute_id = $n)"
// predicate. Nil only for an unrestricted super admin.
func instituteArg(sc *scope.Scope) *uuid.UUID {
	if id, ok := sc.InstituteFilter(); ok {
		return &id
	}
	return nil
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}
