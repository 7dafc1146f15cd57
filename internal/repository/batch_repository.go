package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-integrity/internal/database"
	"github.com/stemsi/exstem-integrity/internal/model"
	"github.com/stemsi/exstem-integrity/internal/scope"
)

const batchColumns = `id, institute_id, course_id, name, roster, schema_version, created_at, updated_at`

// BatchRepository handles batch and embedded roster data access.
type BatchRepository struct {
	pool *pgxpool.Pool
}

// NewBatchRepository creates a new BatchRepository.
func NewBatchRepository(pool *pgxpool.Pool) *BatchRepository {
	return &BatchRepository{pool: pool}
}

func scanBatch(row pgx.Row) (*model.Batch, error) {
	b := &model.Batch{}
	if err := row.Scan(&b.ID, &b.InstituteID, &b.CourseID, &b.Name, &b.Roster, &b.SchemaVersion, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, translate(err)
	}
	if b.Roster == nil {
		b.Roster = model.Roster{}
	}
	return b, nil
}

// Create inserts a new batch with an empty roster.
func (r *BatchRepository) Create(ctx context.Context, b *model.Batch) error {
	if b.Roster == nil {
		b.Roster = model.Roster{}
	}
	b.SchemaVersion = model.BatchSchemaVersion
	err := r.pool.QueryRow(ctx,
		`INSERT INTO batches (institute_id, course_id, name, roster, schema_version)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		b.InstituteID, b.CourseID, b.Name, b.Roster, b.SchemaVersion,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	return translate(err)
}

// GetByID retrieves a batch visible to sc.
func (r *BatchRepository) GetByID(ctx context.Context, sc *scope.Scope, id uuid.UUID) (*model.Batch, error) {
	return scanBatch(r.pool.QueryRow(ctx,
		`SELECT `+batchColumns+` FROM batches
		 WHERE id = $1 AND deleted_at IS NULL
		   AND ($2::uuid IS NULL OR institute_id = $2)`, id, instituteArg(sc)))
}

// Mutate loads the batch under a row lock, hands it to fn and writes the
// roster back when fn reports a change. Concurrent callers on the same batch
// are serialised by the lock, so fn always sees the latest roster.
func (r *BatchRepository) Mutate(ctx context.Context, sc *scope.Scope, id uuid.UUID, fn func(b *model.Batch) (bool, error)) (*model.Batch, error) {
	var out *model.Batch
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		b, err := scanBatch(tx.QueryRow(ctx,
			`SELECT `+batchColumns+` FROM batches
			 WHERE id = $1 AND deleted_at IS NULL
			   AND ($2::uuid IS NULL OR institute_id = $2)
			 FOR UPDATE`, id, instituteArg(sc)))
		if err != nil {
			return err
		}

		changed, err := fn(b)
		if err != nil {
			return err
		}
		if changed {
			b.SchemaVersion = model.BatchSchemaVersion
			if err := tx.QueryRow(ctx,
				`UPDATE batches SET roster = $2, schema_version = $3, updated_at = NOW()
				 WHERE id = $1
				 RETURNING updated_at`, b.ID, b.Roster, b.SchemaVersion,
			).Scan(&b.UpdatedAt); err != nil {
				return err
			}
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return out, nil
}

// HasActiveEnrollment reports whether studentID is active in any batch of
// the institute bound to courseID.
func (r *BatchRepository) HasActiveEnrollment(ctx context.Context, instituteID, courseID, studentID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1
			FROM batches b, jsonb_array_elements(b.roster) AS e
			WHERE b.institute_id = $1 AND b.course_id = $2 AND b.deleted_at IS NULL
			  AND e->>'student_id' = $3 AND e->>'status' = 'active'
		 )`, instituteID, courseID, studentID.String(),
	).Scan(&ok)
	return ok, err
}

// ListIDs returns the ids of all batches visible to sc.
func (r *BatchRepository) ListIDs(ctx context.Context, sc *scope.Scope) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM batches
		 WHERE deleted_at IS NULL AND ($1::uuid IS NULL OR institute_id = $1)
		 ORDER BY created_at`, instituteArg(sc))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
