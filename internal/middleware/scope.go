package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-integrity/internal/response"
	"github.com/stemsi/exstem-integrity/internal/scope"
	"github.com/stemsi/exstem-integrity/internal/service"
)

const (
	// ContextKeyScope is the Gin context key for the resolved tenant scope.
	ContextKeyScope = "scope"

	// HeaderInstituteCode narrows a super admin to one institute. The
	// institute_code query parameter is accepted as well.
	HeaderInstituteCode = "X-Institute-Code"
)

// ResolveScope turns the authenticated identity into a tenant scope. No
// handler behind it runs without one.
func ResolveScope(scopeService *service.ScopeService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		code := c.GetHeader(HeaderInstituteCode)
		if code == "" {
			code = c.Query("institute_code")
		}

		sc, err := scopeService.Resolve(c.Request.Context(), claims.Identity(), code)
		switch {
		case err == nil:
		case errors.Is(err, service.ErrUnauthenticated):
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		case errors.Is(err, service.ErrScopeMissing):
			response.AbortFail(c, http.StatusForbidden, response.ErrScopeMissing)
			return
		default:
			zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("Scope resolution failed")
			response.AbortFail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}

		c.Set(ContextKeyScope, sc)
		c.Next()
	}
}

// GetScope retrieves the resolved scope from the Gin context.
func GetScope(c *gin.Context) *scope.Scope {
	val, exists := c.Get(ContextKeyScope)
	if !exists {
		return nil
	}
	sc, ok := val.(*scope.Scope)
	if !ok {
		return nil
	}
	return sc
}

// RequireAnyCapability rejects callers whose scope carries none of caps.
// Services check again; this keeps whole route groups closed early.
func RequireAnyCapability(caps ...scope.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		sc := GetScope(c)
		if sc == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}
		for _, want := range caps {
			if sc.Can(want) {
				c.Next()
				return
			}
		}
		response.AbortFail(c, http.StatusForbidden, response.ErrPermissionDenied)
	}
}
