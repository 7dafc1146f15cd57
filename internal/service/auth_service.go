package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-integrity/internal/config"
	"github.com/stemsi/exstem-integrity/internal/model"
	"github.com/stemsi/exstem-integrity/internal/repository"
	"github.com/stemsi/exstem-integrity/internal/scope"
	"golang.org/x/crypto/bcrypt"
)

// Common auth errors.
var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrSessionAlreadyActive = errors.New("another session is already active, please contact admin to reset")
	ErrSessionInvalidated   = errors.New("session invalidated")
)

// Claims extends JWT standard claims with the identity fields scope
// resolution needs. InstituteID is absent only for super admins.
type Claims struct {
	jwt.RegisteredClaims
	UserID      uuid.UUID  `json:"user_id"`
	Role        model.Role `json:"role"`
	InstituteID *uuid.UUID `json:"institute_id,omitempty"`
}

// Identity converts verified claims into the resolver's input.
func (c *Claims) Identity() *scope.Identity {
	if c == nil {
		return nil
	}
	return &scope.Identity{UserID: c.UserID, Role: c.Role, InstituteID: c.InstituteID}
}

// AuthService handles authentication, JWT, and session management.
type AuthService struct {
	cfg   *config.Config
	rdb   *redis.Client
	users UserStore
	log   zerolog.Logger
	now   func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config, rdb *redis.Client, users UserStore, log zerolog.Logger) *AuthService {
	return &AuthService{
		cfg:   cfg,
		rdb:   rdb,
		users: users,
		log:   log.With().Str("component", "auth_service").Logger(),
		now:   time.Now,
	}
}

// HashPassword hashes a password with the configured bcrypt cost.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	return string(hash), err
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func (s *AuthService) CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Login verifies credentials and issues a token. Students are limited to a
// single live session; a second login is rejected until an admin resets it.
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (*model.LoginResponse, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if err := s.CheckPassword(user.PasswordHash, req.Password); err != nil {
		return nil, err
	}

	token, err := s.GenerateToken(ctx, user)
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("user_id", user.ID.String()).Str("role", string(user.Role)).Msg("User logged in")
	return &model.LoginResponse{Token: token, User: *user}, nil
}

// GenerateToken creates a JWT for user. For students the JTI is registered
// in Redis and a second concurrent session is refused.
func (s *AuthService) GenerateToken(ctx context.Context, user *model.User) (string, error) {
	jti := uuid.New().String()
	now := s.now()

	if user.Role == model.RoleStudent {
		ok, err := s.rdb.SetNX(ctx, config.CacheKey.UserSessionKey(user.ID), jti, s.cfg.JWTExpiry).Result()
		if err != nil {
			return "", fmt.Errorf("store session: %w", err)
		}
		if !ok {
			return "", ErrSessionAlreadyActive
		}
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
		},
		UserID:      user.ID,
		Role:        user.Role,
		InstituteID: user.InstituteID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// ValidateSession checks that a student token's JTI is still the live session.
// Staff tokens are not session-bound.
func (s *AuthService) ValidateSession(ctx context.Context, claims *Claims) error {
	if claims.Role != model.RoleStudent {
		return nil
	}
	stored, err := s.rdb.Get(ctx, config.CacheKey.UserSessionKey(claims.UserID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrSessionInvalidated
		}
		return fmt.Errorf("check session: %w", err)
	}
	if stored != claims.ID {
		return ErrSessionInvalidated
	}
	return nil
}

// ResetStudentSession removes a student's live session so they can log in
// again, e.g. after a device failure mid-exam.
func (s *AuthService) ResetStudentSession(ctx context.Context, sc *scope.Scope, studentID uuid.UUID) error {
	if !sc.Can(scope.ManageEnrollment) {
		return ErrForbidden
	}
	if _, err := s.users.GetStudent(ctx, sc, studentID); err != nil {
		return storeErr("get student", err)
	}
	if err := s.rdb.Del(ctx, config.CacheKey.UserSessionKey(studentID)).Err(); err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	s.log.Info().Str("student_id", studentID.String()).Str("actor_id", sc.UserID.String()).Msg("Student session reset")
	return nil
}
