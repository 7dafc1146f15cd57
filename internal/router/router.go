package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-integrity/internal/config"
	"github.com/stemsi/exstem-integrity/internal/handler"
	"github.com/stemsi/exstem-integrity/internal/metrics"
	"github.com/stemsi/exstem-integrity/internal/middleware"
	"github.com/stemsi/exstem-integrity/internal/response"
	"github.com/stemsi/exstem-integrity/internal/scope"
	"github.com/stemsi/exstem-integrity/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth       *handler.AuthHandler
	Enrollment *handler.EnrollmentHandler
	Exam       *handler.ExamHandler
	Attempt    *handler.AttemptHandler
	Integrity  *handler.IntegrityHandler
	WS         *handler.WSHandler
}

// Services are the collaborators the middleware chain needs.
type Services struct {
	Auth  *service.AuthService
	Scope *service.ScopeService
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// The returned limiter must be closed on shutdown.
func SetupRouter(
	services Services,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) (*gin.Engine, *middleware.RateLimiter) {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID", middleware.HeaderInstituteCode}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Request ID first so the logger and every response carry it.
	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.RequestLogger(log))

	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", metrics.Handler())

	authenticated := []gin.HandlerFunc{
		middleware.Authenticate(services.Auth),
		middleware.CheckSingleDeviceSession(services.Auth),
		middleware.ResolveScope(services.Scope),
	}

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	loginLimiter := middleware.NewRateLimiter(cfg.LoginRateLimitPerMin, time.Minute)
	auth := router.Group("/api/v1/auth")
	auth.Use(loginLimiter.Middleware())
	{
		auth.POST("/login", handlers.Auth.Login)
	}

	// ─── 2. Me (any authenticated caller) ──────────────────────────────
	me := router.Group("/api/v1/me")
	me.Use(authenticated...)
	{
		me.GET("/scope", handlers.Auth.MyScope)
	}

	// ─── 3. Student Group (JWT + Single Device + Scope) ────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(authenticated...)
	studentAPI.Use(middleware.RequireAnyCapability(scope.TakeExam), middleware.NoStore())
	{
		studentAPI.POST("/exams/:exam_id/attempt", handlers.Attempt.StartAttempt)
		studentAPI.GET("/submissions/:submission_id", handlers.Attempt.GetSubmission)
		studentAPI.PUT("/submissions/:submission_id/draft", handlers.Attempt.Autosave)
		studentAPI.POST("/submissions/:submission_id/submit", handlers.Attempt.Submit)
		studentAPI.POST("/submissions/:submission_id/events", handlers.Attempt.RecordEvent)
	}

	// ─── 4. WebSocket Group ────────────────────────────────────────────
	wsGroup := router.Group("/ws/v1")
	wsGroup.Use(authenticated...)
	wsGroup.Use(middleware.RequireAnyCapability(scope.TakeExam))
	{
		wsGroup.GET("/student/submissions/:submission_id/stream", handlers.WS.SubmissionStream)
	}

	// ─── 5. Admin Group (JWT + Scope + Capabilities) ───────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(authenticated...)
	adminAPI.Use(middleware.NoStore(), middleware.Brotli())
	{
		// Enrollment ledger
		enrollment := adminAPI.Group("/batches")
		enrollment.Use(middleware.RequireAnyCapability(scope.ManageEnrollment, scope.Maintain))
		{
			enrollment.POST("", handlers.Enrollment.CreateBatch)
			enrollment.POST("/:batch_id/enrollments", handlers.Enrollment.Enroll)
			enrollment.PATCH("/:batch_id/enrollments/:student_id", handlers.Enrollment.UpdateStatus)
			enrollment.GET("/:batch_id/roster", handlers.Enrollment.Roster)
			enrollment.POST("/:batch_id/deduplicate", handlers.Enrollment.Deduplicate)
		}

		adminAPI.DELETE("/students/:student_id/session",
			middleware.RequireAnyCapability(scope.ManageEnrollment),
			handlers.Auth.ResetStudentSession,
		)

		// Exams and grading
		adminAPI.POST("/exams",
			middleware.RequireAnyCapability(scope.ManageExams),
			handlers.Exam.CreateExam,
		)
		adminAPI.GET("/exams/:exam_id/results",
			middleware.RequireAnyCapability(scope.Grade, scope.Review),
			handlers.Exam.GetExamResults,
		)
		adminAPI.GET("/submissions/:submission_id",
			middleware.RequireAnyCapability(scope.Grade, scope.Review),
			handlers.Exam.GetSubmission,
		)
		adminAPI.POST("/submissions/:submission_id/grade",
			middleware.RequireAnyCapability(scope.Grade),
			handlers.Exam.Grade,
		)
		adminAPI.POST("/submissions/:submission_id/regrade",
			middleware.RequireAnyCapability(scope.OverrideGrade),
			handlers.Exam.Regrade,
		)

		// Integrity review
		adminAPI.GET("/submissions/:submission_id/events",
			middleware.RequireAnyCapability(scope.Review, scope.Grade),
			handlers.Integrity.SubmissionEvents,
		)
		adminAPI.GET("/exams/:exam_id/events/unreviewed",
			middleware.RequireAnyCapability(scope.Review),
			handlers.Integrity.UnreviewedExamEvents,
		)
		adminAPI.GET("/students/:student_id/events",
			middleware.RequireAnyCapability(scope.Review),
			handlers.Integrity.StudentEvents,
		)
		adminAPI.POST("/events/:event_id/review",
			middleware.RequireAnyCapability(scope.Review),
			handlers.Integrity.ReviewEvent,
		)
	}

	return router, loginLimiter
}
