package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-integrity/internal/response"
	"github.com/stemsi/exstem-integrity/internal/service"
	"github.com/stretchr/testify/assert"
)

func TestClassify_TenantErrorsLookLikeAbsence(t *testing.T) {
	for _, err := range []error{service.ErrForbidden, service.ErrCrossTenant, service.ErrNotFound} {
		m, ok := classify(fmt.Errorf("load submission: %w", err))
		assert.True(t, ok)
		assert.Equal(t, http.StatusNotFound, m.status)
		assert.Equal(t, response.ErrNotFound, m.code)
	}
}

func TestClassify_LateEventIsNotInProgress(t *testing.T) {
	m, ok := classify(service.ErrLateEvent)
	assert.True(t, ok)
	assert.Equal(t, http.StatusConflict, m.status)
	assert.Equal(t, response.ErrNotInProgress, m.code)
}

func TestClassify_Unknown(t *testing.T) {
	_, ok := classify(errors.New("connection reset"))
	assert.False(t, ok)
}

func TestWriteError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"wrapped validation keeps detail", fmt.Errorf("%w: schedule end must follow start", service.ErrValidation), http.StatusBadRequest, "schedule end must follow start"},
		{"conflict", service.ErrAlreadyFinalized, http.StatusConflict, "ALREADY_FINALIZED"},
		{"duplicate", fmt.Errorf("create batch: %w", service.ErrDuplicate), http.StatusConflict, `"CONFLICT"`},
		{"unknown becomes internal", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			writeError(c, tc.err)

			assert.Equal(t, tc.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.body)
		})
	}
}
