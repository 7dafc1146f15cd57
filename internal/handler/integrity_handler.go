package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-integrity/internal/middleware"
	"github.com/stemsi/exstem-integrity/internal/model"
	"github.com/stemsi/exstem-integrity/internal/response"
	"github.com/stemsi/exstem-integrity/internal/service"
	"github.com/stemsi/exstem-integrity/internal/validator"
)

// IntegrityHandler serves the reviewer-facing event queries and reviews.
type IntegrityHandler struct {
	integrityService *service.IntegrityService
	reviewService    *service.ReviewService
}

// NewIntegrityHandler creates a new IntegrityHandler.
func NewIntegrityHandler(integrityService *service.IntegrityService, reviewService *service.ReviewService) *IntegrityHandler {
	return &IntegrityHandler{
		integrityService: integrityService,
		reviewService:    reviewService,
	}
}

// SubmissionEvents godoc
// GET /api/v1/admin/submissions/:submission_id/events
// Lists the submission's events in occurrence order.
func (h *IntegrityHandler) SubmissionEvents(c *gin.Context) {
	id, ok := uuidParam(c, "submission_id")
	if !ok {
		return
	}

	events, err := h.integrityService.EventsForSubmission(c.Request.Context(), middleware.GetScope(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"events": events})
}

// UnreviewedExamEvents godoc
// GET /api/v1/admin/exams/:exam_id/events/unreviewed
// Returns the review queue grouped by severity, most severe first.
func (h *IntegrityHandler) UnreviewedExamEvents(c *gin.Context) {
	examID, ok := uuidParam(c, "exam_id")
	if !ok {
		return
	}

	groups, err := h.integrityService.UnreviewedForExam(c.Request.Context(), middleware.GetScope(c), examID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"groups": groups})
}

// StudentEvents godoc
// GET /api/v1/admin/students/:student_id/events?reviewed=true|false
func (h *IntegrityHandler) StudentEvents(c *gin.Context) {
	studentID, ok := uuidParam(c, "student_id")
	if !ok {
		return
	}

	var reviewed *bool
	if raw := c.Query("reviewed"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{
				"reviewed": "reviewed must be true or false",
			})
			return
		}
		reviewed = &v
	}

	events, err := h.integrityService.EventsForStudent(c.Request.Context(), middleware.GetScope(c), studentID, reviewed)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"events": events})
}

// ReviewEvent godoc
// POST /api/v1/admin/events/:event_id/review
// Records a reviewer's disposition. An event can be reviewed once.
func (h *IntegrityHandler) ReviewEvent(c *gin.Context) {
	eventID, ok := uuidParam(c, "event_id")
	if !ok {
		return
	}
	var req model.ReviewEventRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	res, err := h.reviewService.ReviewEvent(c.Request.Context(), middleware.GetScope(c), eventID, service.Disposition{
		Action: req.Action,
		Notes:  req.Notes,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}
