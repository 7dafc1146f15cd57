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

// AuthHandler handles authentication and scope endpoints.
type AuthHandler struct {
	authService  *service.AuthService
	scopeService *service.ScopeService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService, scopeService *service.ScopeService) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		scopeService: scopeService,
	}
}

// Login godoc
// POST /api/v1/auth/login
// Validates email + password and returns a JWT. Students are refused while
// another session is live.
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, resp)
}

// MyScope godoc
// GET /api/v1/me/scope
// Describes the caller's resolved tenant scope and capabilities.
func (h *AuthHandler) MyScope(c *gin.Context) {
	view, err := h.scopeService.Describe(c.Request.Context(), middleware.GetScope(c))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"scope": view})
}

// ResetStudentSession godoc
// DELETE /api/v1/admin/students/:student_id/session
// Clears a student's live session so they can log in on a new device.
func (h *AuthHandler) ResetStudentSession(c *gin.Context) {
	studentID, ok := uuidParam(c, "student_id")
	if !ok {
		return
	}

	if err := h.authService.ResetStudentSession(c.Request.Context(), middleware.GetScope(c), studentID); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "student session reset successfully"})
}
