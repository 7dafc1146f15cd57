package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-integrity/internal/config"
	"github.com/stemsi/exstem-integrity/internal/database"
	"github.com/stemsi/exstem-integrity/internal/logger"
	"github.com/stemsi/exstem-integrity/internal/model"
	"github.com/stemsi/exstem-integrity/internal/repository"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	instituteRepo := repository.NewInstituteRepository(pool)
	userRepo := repository.NewUserRepository(pool)

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)
	prompt := func(label string) string {
		fmt.Print(label)
		s, _ := reader.ReadString('\n')
		return strings.TrimSpace(s)
	}

	fmt.Println("=== Create Institute Admin ===")

	// Blank institute code means a super admin with no home institute.
	code := strings.ToUpper(prompt("Institute Code (blank for super admin): "))

	role := model.RoleSuperAdmin
	var institute *model.Institute
	if code != "" {
		role = model.RoleAdmin
		institute, err = instituteRepo.GetByCode(ctx, code)
		switch {
		case err == nil:
			fmt.Printf("Using existing institute %s (%s)\n", institute.Name, institute.ID)
		case errors.Is(err, repository.ErrNotFound):
			name := prompt("Institute not found. Institute Name: ")
			if name == "" {
				fmt.Println("Error: Institute name is required")
				return
			}
			institute = &model.Institute{Code: code, Name: name}
			if err := instituteRepo.Create(ctx, institute); err != nil {
				if errors.Is(err, repository.ErrDuplicate) {
					fmt.Printf("Error: Institute code %s was taken concurrently, run again to reuse it\n", code)
					return
				}
				log.Fatal().Err(err).Msg("Failed to create institute")
			}
			fmt.Printf("Created institute %s with ID: %s\n", institute.Code, institute.ID)
		default:
			log.Fatal().Err(err).Msg("Failed to look up institute")
		}
	}

	email := strings.ToLower(prompt("Enter Email: "))
	if email == "" {
		fmt.Println("Error: Email is required")
		return
	}

	var homeID *uuid.UUID
	if institute != nil {
		homeID = &institute.ID
	}

	// An existing account is promoted instead of duplicated.
	existing, err := userRepo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if err := userRepo.UpdateRole(ctx, existing.ID, role, homeID); err != nil {
			log.Fatal().Err(err).Msg("Failed to update role")
		}
		fmt.Printf("\nSuccess! Existing user '%s' is now %s.\n", existing.Email, role)
		return
	case !errors.Is(err, repository.ErrNotFound):
		log.Fatal().Err(err).Msg("Failed to look up user")
	}

	name := prompt("Enter Name: ")
	if name == "" {
		fmt.Println("Error: Name is required")
		return
	}

	fmt.Print("Enter Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		fmt.Println("Error reading password")
		return
	}
	if len(bytePassword) < 6 {
		fmt.Println("Error: Password must be at least 6 characters")
		return
	}

	// ─── Logic ─────────────────────────────────────────────────────────
	hashedPassword, err := bcrypt.GenerateFromPassword(bytePassword, cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	user := &model.User{
		InstituteID:  homeID,
		Email:        email,
		Name:         name,
		PasswordHash: string(hashedPassword),
		Role:         role,
	}
	if err := userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			fmt.Printf("Error: Email %s is already registered\n", email)
			return
		}
		log.Fatal().Err(err).Msg("Failed to create admin")
	}

	fmt.Printf("\nSuccess! %s '%s' (%s) created with ID: %s\n", role, user.Name, user.Email, user.ID)
}
