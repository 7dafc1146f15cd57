package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-integrity/internal/model"
)

// InstituteRepository handles institute data access.
type InstituteRepository struct {
	pool *pgxpool.Pool
}

// NewInstituteRepository creates a new InstituteRepository.
func NewInstituteRepository(pool *pgxpool.Pool) *InstituteRepository {
	return &InstituteRepository{pool: pool}
}

// GetByCode retrieves an institute by its public code.
func (r *InstituteRepository) GetByCode(ctx context.Context, code string) (*model.Institute, error) {
	i := &model.Institute{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, code, name, created_at
		 FROM institutes WHERE code = $1 AND deleted_at IS NULL`, code,
	).Scan(&i.ID, &i.Code, &i.Name, &i.CreatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return i, nil
}

// GetByID retrieves an institute by ID.
func (r *InstituteRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Institute, error) {
	i := &model.Institute{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, code, name, created_at
		 FROM institutes WHERE id = $1 AND deleted_at IS NULL`, id,
	).Scan(&i.ID, &i.Code, &i.Name, &i.CreatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return i, nil
}

// Create inserts a new institute.
func (r *InstituteRepository) Create(ctx context.Context, i *model.Institute) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO institutes (code, name) VALUES ($1, $2)
		 RETURNING id, created_at`,
		i.Code, i.Name,
	).Scan(&i.ID, &i.CreatedAt)
	return translate(err)
}
