package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-integrity/internal/model"
	"github.com/stemsi/exstem-integrity/internal/scope"
)

const userColumns = `id, institute_id, email, name, password_hash, role, created_at, updated_at`

// UserRepository handles staff and student account data access.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	u := &model.User{}
	if err := row.Scan(&u.ID, &u.InstituteID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, translate(err)
	}
	return u, nil
}

// GetByEmail retrieves a user by email. Used only by login.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE lower(email) = $1 AND deleted_at IS NULL`, strings.ToLower(email)))
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE id = $1 AND deleted_at IS NULL`, id))
}

// GetStudent retrieves a student visible to sc.
func (r *UserRepository) GetStudent(ctx context.Context, sc *scope.Scope, id uuid.UUID) (*model.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE id = $1 AND role = 'student' AND deleted_at IS NULL
		   AND ($2::uuid IS NULL OR institute_id = $2)`, id, instituteArg(sc)))
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (institute_id, email, name, password_hash, role)
		 VALUES ($1, lower($2), $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		u.InstituteID, u.Email, u.Name, u.PasswordHash, u.Role,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	return translate(err)
}

// UpdateRole changes a user's role and institute binding.
func (r *UserRepository) UpdateRole(ctx context.Context, id uuid.UUID, role model.Role, instituteID *uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET role = $2, institute_id = $3, updated_at = NOW()
		 WHERE id = $1 AND deleted_at IS NULL`, id, role, instituteID)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
