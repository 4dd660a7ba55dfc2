package repository

import (
	"context"

	"github.com/Sara-Samara/HealthAidProj-sub001/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgDonorRepository は DonorRepository の PostgreSQL 実装
type PgDonorRepository struct {
	pool *pgxpool.Pool
}

// NewPgDonorRepository は PgDonorRepository を生成する
func NewPgDonorRepository(pool *pgxpool.Pool) *PgDonorRepository {
	return &PgDonorRepository{pool: pool}
}

const donorSelectCols = `id, user_id, display_name, total_donated, created_at, updated_at`

func scanDonor(scan func(...any) error) (*model.Donor, error) {
	var d model.Donor
	if err := scan(&d.ID, &d.UserID, &d.DisplayName, &d.TotalDonated, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, mapPgError(err)
	}
	return &d, nil
}

// GetByID は ID で寄付者を取得する
func (r *PgDonorRepository) GetByID(ctx context.Context, id string) (*model.Donor, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+donorSelectCols+` FROM donors WHERE id = $1`, id)
	return scanDonor(row.Scan)
}

// GetByUserID はユーザー ID で寄付者を取得する
func (r *PgDonorRepository) GetByUserID(ctx context.Context, userID string) (*model.Donor, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+donorSelectCols+` FROM donors WHERE user_id = $1`, userID)
	return scanDonor(row.Scan)
}

// Exists は寄付者の存在確認を行う
func (r *PgDonorRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM donors WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

// Create は寄付者を累計ゼロで作成する。同じ user_id が既にあれば ErrDuplicate
func (r *PgDonorRepository) Create(ctx context.Context, d *model.Donor) error {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO donors (id, user_id, display_name)
		 VALUES ($1, $2, $3)
		 RETURNING `+donorSelectCols,
		d.ID, d.UserID, d.DisplayName,
	)
	created, err := scanDonor(row.Scan)
	if err != nil {
		return err
	}
	*d = *created
	return nil
}
