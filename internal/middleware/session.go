package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-integrity/internal/response"
	"github.com/stemsi/exstem-integrity/internal/service"
)

// CheckSingleDeviceSession validates a student token's JTI against the live
// session in Redis. A reset by an admin invalidates the old token.
func CheckSingleDeviceSession(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		if err := authService.ValidateSession(c.Request.Context(), claims); err != nil {
			if !errors.Is(err, service.ErrSessionInvalidated) {
				zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("Session check failed")
				response.AbortFail(c, http.StatusInternalServerError, response.ErrInternal)
				return
			}
			response.AbortFail(c, http.StatusUnauthorized, response.ErrSessionInvalidated)
			return
		}

		c.Next()
	}
}
