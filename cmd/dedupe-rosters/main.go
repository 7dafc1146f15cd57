package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/stemsi/exstem-integrity/internal/config"
	"github.com/stemsi/exstem-integrity/internal/database"
	"github.com/stemsi/exstem-integrity/internal/logger"
	"github.com/stemsi/exstem-integrity/internal/repository"
	"github.com/stemsi/exstem-integrity/internal/scope"
	"github.com/stemsi/exstem-integrity/internal/service"
)

func main() {
	var instituteCode string
	flag.StringVar(&instituteCode, "institute", "", "Limit the pass to one institute code (default: all institutes)")
	flag.Parse()

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Component(logger.Setup(cfg.LogLevel, cfg.LogFormat), "dedupe_rosters")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Initialize Service ────────────────────────────────────────────
	instituteRepo := repository.NewInstituteRepository(pool)
	enrollmentService := service.NewEnrollmentService(
		repository.NewBatchRepository(pool),
		repository.NewUserRepository(pool),
		log,
	)

	sc := scope.System()
	if instituteCode != "" {
		inst, err := instituteRepo.GetByCode(ctx, strings.ToUpper(instituteCode))
		if errors.Is(err, repository.ErrNotFound) {
			fmt.Printf("Error: institute %q not found\n", instituteCode)
			os.Exit(1)
		}
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to look up institute")
		}
		sc = scope.SystemFor(inst.ID)
	}

	fmt.Println("=== Deduplicate Batch Rosters ===")

	report, err := enrollmentService.DeduplicateAll(ctx, sc)
	if err != nil && report == nil {
		log.Fatal().Err(err).Msg("Deduplication pass failed")
	}

	removed := 0
	for batchID, n := range report.Repaired {
		removed += n
		fmt.Printf("  batch %s: removed %d duplicate entries\n", batchID, n)
	}
	for batchID, reason := range report.Failed {
		fmt.Printf("  batch %s: FAILED: %s\n", batchID, reason)
	}

	fmt.Printf("\nScanned %d batches, repaired %d, removed %d entries, %d failures.\n",
		report.Scanned, len(report.Repaired), removed, len(report.Failed))

	if err != nil {
		log.Error().Err(err).Msg("Pass interrupted before every batch was scanned")
		os.Exit(1)
	}
	if len(report.Failed) > 0 {
		os.Exit(1)
	}
}
