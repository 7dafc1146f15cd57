package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-integrity/internal/middleware"
	"github.com/stemsi/exstem-integrity/internal/model"
	"github.com/stemsi/exstem-integrity/internal/response"
	"github.com/stemsi/exstem-integrity/internal/service"
	"github.com/stemsi/exstem-integrity/internal/validator"
)

// AttemptHandler serves the student-facing attempt lifecycle.
type AttemptHandler struct {
	submissionService *service.SubmissionService
	integrityService  *service.IntegrityService
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(submissionService *service.SubmissionService, integrityService *service.IntegrityService) *AttemptHandler {
	return &AttemptHandler{
		submissionService: submissionService,
		integrityService:  integrityService,
	}
}

// StartAttempt godoc
// POST /api/v1/student/exams/:exam_id/attempt
// Opens the attempt, or resumes it while still in progress.
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	examID, ok := uuidParam(c, "exam_id")
	if !ok {
		return
	}

	res, err := h.submissionService.StartAttempt(c.Request.Context(), middleware.GetScope(c), examID)
	if err != nil {
		writeError(c, err)
		return
	}

	status := http.StatusCreated
	if res.Resumed {
		status = http.StatusOK
	}
	response.Success(c, status, res)
}

// GetSubmission godoc
// GET /api/v1/student/submissions/:submission_id
func (h *AttemptHandler) GetSubmission(c *gin.Context) {
	id, ok := uuidParam(c, "submission_id")
	if !ok {
		return
	}

	sub, err := h.submissionService.Get(c.Request.Context(), middleware.GetScope(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"submission": sub})
}

// Autosave godoc
// PUT /api/v1/student/submissions/:submission_id/draft
// Replaces the whole draft answer map.
func (h *AttemptHandler) Autosave(c *gin.Context) {
	id, ok := uuidParam(c, "submission_id")
	if !ok {
		return
	}
	var req model.AutosaveRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	res, err := h.submissionService.Autosave(c.Request.Context(), middleware.GetScope(c), id, req.DraftAnswers)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

// Submit godoc
// POST /api/v1/student/submissions/:submission_id/submit
// Freezes the attempt. Without answers the current draft is committed.
func (h *AttemptHandler) Submit(c *gin.Context) {
	id, ok := uuidParam(c, "submission_id")
	if !ok {
		return
	}
	var req model.SubmitRequest
	if c.Request.ContentLength != 0 {
		if fields := validator.Bind(c, &req); fields != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
			return
		}
	}

	sub, err := h.submissionService.Submit(c.Request.Context(), middleware.GetScope(c), id, req.Answers)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"submission": sub})
}

// RecordEvent godoc
// POST /api/v1/student/submissions/:submission_id/events
// Appends a proctoring signal. Severity is assigned server-side. A signal
// arriving after the attempt closed is kept and answered with 202 LATE_EVENT.
func (h *AttemptHandler) RecordEvent(c *gin.Context) {
	id, ok := uuidParam(c, "submission_id")
	if !ok {
		return
	}
	var req model.RecordEventRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if req.Metadata.IPAddress == "" {
		req.Metadata.IPAddress = c.ClientIP()
	}

	event, err := h.integrityService.RecordEvent(c.Request.Context(), middleware.GetScope(c), id, service.EventInput{
		EventType:       req.EventType,
		QuestionID:      req.QuestionID,
		ClientTimestamp: req.ClientTimestamp,
		Metadata:        req.Metadata,
	})
	if errors.Is(err, service.ErrLateEvent) {
		response.Accepted(c, gin.H{"event": event}, response.ErrLateEvent)
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"event": event})
}
