package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-integrity/internal/config"
	"github.com/stemsi/exstem-integrity/internal/database"
	"github.com/stemsi/exstem-integrity/internal/handler"
	"github.com/stemsi/exstem-integrity/internal/logger"
	"github.com/stemsi/exstem-integrity/internal/metrics"
	"github.com/stemsi/exstem-integrity/internal/policy"
	"github.com/stemsi/exstem-integrity/internal/repository"
	"github.com/stemsi/exstem-integrity/internal/router"
	"github.com/stemsi/exstem-integrity/internal/service"
	"github.com/stemsi/exstem-integrity/internal/validator"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting ExStem Integrity Engine")

	// ─── Initialize Validator & Metrics ────────────────────────────────
	validator.Setup()
	metrics.Register()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Load Severity Policy ──────────────────────────────────────────
	// An empty path keeps the built-in table.
	severity, err := policy.Load(cfg.SeverityPolicyFile, log)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.SeverityPolicyFile).Msg("Failed to load severity policy")
	}

	// ─── Initialize Repositories ───────────────────────────────────────
	instituteRepo := repository.NewInstituteRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	batchRepo := repository.NewBatchRepository(pool)
	examRepo := repository.NewExamRepository(pool)
	submissionRepo := repository.NewSubmissionRepository(pool)
	eventRepo := repository.NewProctoringEventRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, rdb, userRepo, log)
	scopeService := service.NewScopeService(instituteRepo, severity)
	enrollmentService := service.NewEnrollmentService(batchRepo, userRepo, log)
	examService := service.NewExamService(examRepo, rdb, cfg.AnswerKeyCacheTTL, log)
	submissionService := service.NewSubmissionService(submissionRepo, examService, batchRepo, log)
	integrityService := service.NewIntegrityService(
		eventRepo, submissionRepo, examRepo, userRepo, severity, rdb, cfg.StreamPresenceTTL, log,
	)
	reviewService := service.NewReviewService(eventRepo, submissionService, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:       handler.NewAuthHandler(authService, scopeService),
		Enrollment: handler.NewEnrollmentHandler(enrollmentService),
		Exam:       handler.NewExamHandler(examService, submissionService),
		Attempt:    handler.NewAttemptHandler(submissionService, integrityService),
		Integrity:  handler.NewIntegrityHandler(integrityService, reviewService),
		WS:         handler.NewWSHandler(submissionService, integrityService, log, cfg.AllowedOrigins),
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r, loginLimiter := router.SetupRouter(
		router.Services{Auth: authService, Scope: scopeService},
		handlers,
		cfg,
		logger.Component(log, "http"),
	)
	defer loginLimiter.Close()

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// Stop accepting new requests. Open streams release their presence
	// claims as their handlers return.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
