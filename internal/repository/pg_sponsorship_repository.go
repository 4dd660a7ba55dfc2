package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/Sara-Samara/HealthAidProj-sub001/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgSponsorshipRepository は SponsorshipRepository の PostgreSQL 実装
type PgSponsorshipRepository struct {
	pool *pgxpool.Pool
}

// NewPgSponsorshipRepository は PgSponsorshipRepository を生成する
func NewPgSponsorshipRepository(pool *pgxpool.Pool) *PgSponsorshipRepository {
	return &PgSponsorshipRepository{pool: pool}
}

const sponsorshipSelectCols = `id, COALESCE(patient_id, ''), COALESCE(owner_id, ''), title,
	COALESCE(description, ''), category, goal_amount, amount_raised, donor_count, status,
	deadline, is_urgent, created_at, updated_at`

func scanSponsorship(scan func(...any) error) (*model.Sponsorship, error) {
	var s model.Sponsorship
	err := scan(
		&s.ID, &s.PatientID, &s.OwnerID, &s.Title,
		&s.Description, &s.Category, &s.GoalAmount, &s.AmountRaised, &s.DonorCount, &s.Status,
		&s.Deadline, &s.IsUrgent, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, mapPgError(err)
	}
	return &s, nil
}

// GetByID は ID でキャンペーンを取得する
func (r *PgSponsorshipRepository) GetByID(ctx context.Context, id string) (*model.Sponsorship, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+sponsorshipSelectCols+` FROM sponsorships WHERE id = $1`, id)
	return scanSponsorship(row.Scan)
}

// Exists はキャンペーンの存在確認を行う
func (r *PgSponsorshipRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM sponsorships WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

// Create はキャンペーンを active・集計値ゼロで作成する
func (r *PgSponsorshipRepository) Create(ctx context.Context, s *model.Sponsorship) error {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO sponsorships
		 (id, patient_id, owner_id, title, description, category, goal_amount, status, deadline, is_urgent)
		 VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, NULLIF($5, ''), $6, $7, $8, $9, $10)
		 RETURNING `+sponsorshipSelectCols,
		s.ID, s.PatientID, s.OwnerID, s.Title, s.Description, s.Category, s.GoalAmount,
		model.SponsorshipActive, s.Deadline, s.IsUrgent,
	)
	created, err := scanSponsorship(row.Scan)
	if err != nil {
		return err
	}
	*s = *created
	return nil
}

// sponsorshipOrderBy は sort パラメータを ORDER BY 句に変換する（未知の値は新着順）
func sponsorshipOrderBy(sort string) string {
	switch sort {
	case "deadline":
		return "deadline ASC NULLS LAST, created_at DESC"
	case "progress":
		return "(amount_raised / goal_amount) DESC, created_at DESC"
	case "raised":
		return "amount_raised DESC, created_at DESC"
	default:
		return "created_at DESC"
	}
}

// List は絞り込み・並び替え・ページネーション付きでキャンペーン一覧を取得する
func (r *PgSponsorshipRepository) List(ctx context.Context, filter model.SponsorshipFilter) (*model.SponsorshipListResult, error) {
	where := []string{"TRUE"}
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, filter.Status)
		argIdx++
	}
	if filter.Category != "" {
		where = append(where, fmt.Sprintf("category = $%d", argIdx))
		args = append(args, filter.Category)
		argIdx++
	}
	if filter.Urgent != nil {
		where = append(where, fmt.Sprintf("is_urgent = $%d", argIdx))
		args = append(args, *filter.Urgent)
		argIdx++
	}
	whereSQL := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM sponsorships WHERE `+whereSQL, args...).Scan(&total); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM sponsorships WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		sponsorshipSelectCols, whereSQL, sponsorshipOrderBy(filter.Sort), argIdx, argIdx+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []*model.Sponsorship{}
	for rows.Next() {
		s, err := scanSponsorship(rows.Scan)
		if err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &model.SponsorshipListResult{Sponsorships: list, Total: total}, nil
}
