package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-integrity/internal/middleware"
	"github.com/stemsi/exstem-integrity/internal/model"
	"github.com/stemsi/exstem-integrity/internal/response"
	"github.com/stemsi/exstem-integrity/internal/service"
	"github.com/stemsi/exstem-integrity/internal/validator"
)

// EnrollmentHandler exposes batch and roster management.
type EnrollmentHandler struct {
	enrollmentService *service.EnrollmentService
}

// NewEnrollmentHandler creates a new EnrollmentHandler.
func NewEnrollmentHandler(enrollmentService *service.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollmentService: enrollmentService}
}

// CreateBatch godoc
// POST /api/v1/admin/batches
func (h *EnrollmentHandler) CreateBatch(c *gin.Context) {
	var req model.CreateBatchRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	batch, err := h.enrollmentService.CreateBatch(c.Request.Context(), middleware.GetScope(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"batch": batch})
}

// Enroll godoc
// POST /api/v1/admin/batches/:batch_id/enrollments
// Enrolls a student, reactivating an existing entry instead of appending.
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	batchID, ok := uuidParam(c, "batch_id")
	if !ok {
		return
	}
	var req model.EnrollRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	res, err := h.enrollmentService.Enroll(c.Request.Context(), middleware.GetScope(c), batchID, req.StudentID)
	if err != nil {
		writeError(c, err)
		return
	}

	status := http.StatusOK
	if res.Outcome == model.EnrollOutcomeEnrolled {
		status = http.StatusCreated
	}
	response.Success(c, status, gin.H{"enrollment": res})
}

// UpdateStatus godoc
// PATCH /api/v1/admin/batches/:batch_id/enrollments/:student_id
// Withdraws, deactivates or reactivates a student's enrollment.
func (h *EnrollmentHandler) UpdateStatus(c *gin.Context) {
	batchID, ok := uuidParam(c, "batch_id")
	if !ok {
		return
	}
	studentID, ok := uuidParam(c, "student_id")
	if !ok {
		return
	}
	var req model.UpdateEnrollmentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	roster, err := h.enrollmentService.SetStatus(c.Request.Context(), middleware.GetScope(c), batchID, studentID, req.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"roster": roster})
}

// Roster godoc
// GET /api/v1/admin/batches/:batch_id/roster
func (h *EnrollmentHandler) Roster(c *gin.Context) {
	batchID, ok := uuidParam(c, "batch_id")
	if !ok {
		return
	}

	roster, err := h.enrollmentService.Roster(c.Request.Context(), middleware.GetScope(c), batchID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"roster": roster})
}

// Deduplicate godoc
// POST /api/v1/admin/batches/:batch_id/deduplicate
// Collapses duplicate roster entries. Safe to repeat.
func (h *EnrollmentHandler) Deduplicate(c *gin.Context) {
	batchID, ok := uuidParam(c, "batch_id")
	if !ok {
		return
	}

	removed, err := h.enrollmentService.Deduplicate(c.Request.Context(), middleware.GetScope(c), batchID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"batch_id": batchID, "removed": removed})
}
