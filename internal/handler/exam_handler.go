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

// ExamHandler handles exam scheduling and grading endpoints.
type ExamHandler struct {
	examService       *service.ExamService
	submissionService *service.SubmissionService
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(examService *service.ExamService, submissionService *service.SubmissionService) *ExamHandler {
	return &ExamHandler{
		examService:       examService,
		submissionService: submissionService,
	}
}

// CreateExam godoc
// POST /api/v1/admin/exams
func (h *ExamHandler) CreateExam(c *gin.Context) {
	var req model.CreateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.examService.Create(c.Request.Context(), middleware.GetScope(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"exam": exam})
}

// GetExamResults godoc
// GET /api/v1/admin/exams/:exam_id/results
// Lists every attempt of the exam with its status and score.
func (h *ExamHandler) GetExamResults(c *gin.Context) {
	examID, ok := uuidParam(c, "exam_id")
	if !ok {
		return
	}

	subs, err := h.submissionService.ListByExam(c.Request.Context(), middleware.GetScope(c), examID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"submissions": subs})
}

// GetSubmission godoc
// GET /api/v1/admin/submissions/:submission_id
func (h *ExamHandler) GetSubmission(c *gin.Context) {
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

// Grade godoc
// POST /api/v1/admin/submissions/:submission_id/grade
func (h *ExamHandler) Grade(c *gin.Context) {
	id, ok := uuidParam(c, "submission_id")
	if !ok {
		return
	}

	sub, err := h.submissionService.Grade(c.Request.Context(), middleware.GetScope(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"submission": sub})
}

// Regrade godoc
// POST /api/v1/admin/submissions/:submission_id/regrade
// Administrative override: recomputes a graded score and records why.
func (h *ExamHandler) Regrade(c *gin.Context) {
	id, ok := uuidParam(c, "submission_id")
	if !ok {
		return
	}
	var req model.RegradeRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sub, err := h.submissionService.Regrade(c.Request.Context(), middleware.GetScope(c), id, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"submission": sub})
}
