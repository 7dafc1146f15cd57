package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-integrity/internal/response"
	"github.com/stemsi/exstem-integrity/internal/service"
)

type errorMapping struct {
	err    error
	status int
	code   response.ErrCode
}

// errorTable is checked in order. Forbidden and cross-tenant collapse into
// the same 404 as a true absence so callers cannot probe other tenants.
var errorTable = []errorMapping{
	{service.ErrUnauthenticated, http.StatusUnauthorized, response.ErrTokenRequired},
	{service.ErrScopeMissing, http.StatusForbidden, response.ErrScopeMissing},
	{service.ErrForbidden, http.StatusNotFound, response.ErrNotFound},
	{service.ErrCrossTenant, http.StatusNotFound, response.ErrNotFound},
	{service.ErrNotFound, http.StatusNotFound, response.ErrNotFound},

	{service.ErrInvalidCredentials, http.StatusUnauthorized, response.ErrInvalidCredentials},
	{service.ErrSessionAlreadyActive, http.StatusConflict, response.ErrSessionActive},
	{service.ErrSessionInvalidated, http.StatusUnauthorized, response.ErrSessionInvalidated},

	{service.ErrValidation, http.StatusBadRequest, response.ErrValidation},
	{service.ErrInvalidEventType, http.StatusBadRequest, response.ErrInvalidEventType},

	{service.ErrNotEnrolled, http.StatusForbidden, response.ErrNotEnrolled},
	{service.ErrOutsideWindow, http.StatusForbidden, response.ErrOutsideWindow},
	{service.ErrAlreadyAttempted, http.StatusConflict, response.ErrAlreadyAttempted},
	{service.ErrAlreadyFinalized, http.StatusConflict, response.ErrAlreadyFinalized},
	{service.ErrNotInProgress, http.StatusConflict, response.ErrNotInProgress},
	{service.ErrAlreadyGraded, http.StatusConflict, response.ErrAlreadyGraded},
	{service.ErrNotSubmitted, http.StatusConflict, response.ErrNotSubmitted},
	{service.ErrNotGraded, http.StatusConflict, response.ErrNotGraded},
	{service.ErrAlreadyReviewed, http.StatusConflict, response.ErrAlreadyReviewed},
	{service.ErrInvalidTransition, http.StatusConflict, response.ErrInvalidTransition},
	{service.ErrDuplicate, http.StatusConflict, response.ErrConflict},
}

// classify finds the status and code for a service error.
func classify(err error) (errorMapping, bool) {
	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			return m, true
		}
	}
	return errorMapping{}, false
}

// writeError renders a service error. Unknown errors are logged and become 500.
func writeError(c *gin.Context, err error) {
	m, ok := classify(err)
	if !ok {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).
			Str("route", c.FullPath()).
			Msg("Unhandled service error")
		_ = c.Error(err)
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	if m.err == service.ErrValidation && err != service.ErrValidation {
		response.FailWithFields(c, m.status, m.code, map[string]string{"detail": err.Error()})
		return
	}
	response.Fail(c, m.status, m.code)
}

// uuidParam parses a path parameter, writing 400 INVALID_ID on failure.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}
