package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-integrity/internal/config"
	"github.com/stemsi/exstem-integrity/internal/database"
	"github.com/stemsi/exstem-integrity/internal/logger"
	"github.com/stemsi/exstem-integrity/internal/model"
	"github.com/stemsi/exstem-integrity/internal/repository"
	"github.com/stemsi/exstem-integrity/internal/scope"
	"github.com/stemsi/exstem-integrity/internal/service"
	"golang.org/x/crypto/bcrypt"
)

var names = []string{
	"Budi Santoso", "Siti Aminah", "Andi Pratama", "Rina Wati", "Joko Susilo",
	"Ayu Lestari", "Dodi Kusuma", "Eka Putri", "Fahri Hamzah", "Gita Savitri",
	"Hendra Gunawan", "Ika Sari", "Jamal Mirdad", "Kiki Fatmala", "Lukman Hakim",
	"Maya Septiana", "Nanda Pratama", "Oki Setiana", "Putri Dian", "Qori Maharani",
	"Rafi Ahmad", "Siska Saraswati", "Toni Setiawan", "Umi Kalsum", "Vina Panduwinata",
	"Wahyu Hidayat", "Xena Maharani", "Yudi Pratama", "Zaki Anwar", "Alifia Zahra",
}

func main() {
	var (
		instituteCode string
		batchName     string
		courseRaw     string
		count         int
		password      string
	)
	flag.StringVar(&instituteCode, "institute", "DEMO", "Institute code to seed into (created if missing)")
	flag.StringVar(&batchName, "batch", "XII TKJ 2", "Name of the batch the students are enrolled in")
	flag.StringVar(&courseRaw, "course", "", "Course id for the batch (default: a new id)")
	flag.IntVar(&count, "count", len(names), "Number of students to create")
	flag.StringVar(&password, "password", "stemsijaya", "Password for every seeded student")
	flag.Parse()

	cfg := config.Load()
	log := logger.Component(logger.Setup(cfg.LogLevel, cfg.LogFormat), "seed_students")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	instituteRepo := repository.NewInstituteRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	enrollmentService := service.NewEnrollmentService(repository.NewBatchRepository(pool), userRepo, log)

	courseID := uuid.New()
	if courseRaw != "" {
		if courseID, err = uuid.Parse(courseRaw); err != nil {
			log.Fatal().Err(err).Msg("Invalid course id")
		}
	}

	// ─── Institute ─────────────────────────────────────────────────────
	code := strings.ToUpper(instituteCode)
	inst, err := instituteRepo.GetByCode(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		inst = &model.Institute{Code: code, Name: "Institute " + code}
		err = instituteRepo.Create(ctx, inst)
		fmt.Printf("Created institute %s\n", code)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare institute")
	}
	sc := scope.SystemFor(inst.ID)

	// ─── Batch ─────────────────────────────────────────────────────────
	batch, err := enrollmentService.CreateBatch(ctx, sc, model.CreateBatchRequest{CourseID: courseID, Name: batchName})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create batch")
	}
	fmt.Printf("=== Seeding %d students into %s (batch %s, course %s) ===\n", count, batchName, batch.ID, courseID)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	successCount := 0
	for i := 0; i < count; i++ {
		student := &model.User{
			InstituteID:  &inst.ID,
			Email:        fmt.Sprintf("student%03d@%s.test", i+1, strings.ToLower(code)),
			Name:         names[i%len(names)],
			PasswordHash: string(hash),
			Role:         model.RoleStudent,
		}
		if err := userRepo.Create(ctx, student); err != nil {
			fmt.Printf("Error creating student %s: %v\n", student.Email, err)
			continue
		}
		if _, err := enrollmentService.Enroll(ctx, sc, batch.ID, student.ID); err != nil {
			fmt.Printf("Error enrolling student %s: %v\n", student.Email, err)
			continue
		}
		successCount++
		if successCount%10 == 0 {
			fmt.Printf("Enrolled %d students...\n", successCount)
		}
	}

	fmt.Printf("\nSeed completed! Successfully enrolled %d/%d students.\n", successCount, count)
}
