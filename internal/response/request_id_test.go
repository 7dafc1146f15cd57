package response

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/x", func(c *gin.Context) { Success(c, http.StatusOK, gin.H{"ok": true}) })

	cases := []struct {
		name   string
		header string
		keep   bool
	}{
		{"absent", "", false},
		{"well formed", "edge-7f3a.42_b", true},
		{"too long", strings.Repeat("a", maxRequestIDLen+1), false},
		{"log injection", "abc\nlevel=error", false},
		{"spaces", "abc def", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tc.header != "" {
				req.Header.Set(HeaderRequestID, tc.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			got := rec.Header().Get(HeaderRequestID)
			require.NotEmpty(t, got)
			if tc.keep {
				assert.Equal(t, tc.header, got)
			} else {
				_, err := uuid.Parse(got)
				assert.NoError(t, err, "replaced by a generated id")
			}
			assert.Contains(t, rec.Body.String(), `"request_id":"`+got+`"`)
		})
	}
}
