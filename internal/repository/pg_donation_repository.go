package repository

import (
	"context"

	"github.com/Sara-Samara/HealthAidProj-sub001/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgDonationRepository struct {
	pool *pgxpool.Pool
}

// NewPgDonationRepository returns a PostgreSQL-backed DonationRepository.
func NewPgDonationRepository(pool *pgxpool.Pool) DonationRepository {
	return &pgDonationRepository{pool: pool}
}

const donationSelectCols = `id, sponsorship_id, COALESCE(donor_id::text, ''), amount,
	payment_method, COALESCE(message, ''), status, COALESCE(transaction_ref, ''),
	submitted_at, processed_at, updated_at`

func scanDonation(scan func(...any) error) (*model.Donation, error) {
	d := &model.Donation{}
	err := scan(
		&d.ID, &d.SponsorshipID, &d.DonorID, &d.Amount,
		&d.PaymentMethod, &d.Message, &d.Status, &d.TransactionRef,
		&d.SubmittedAt, &d.ProcessedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, mapPgError(err)
	}
	return d, nil
}

func collectDonations(rows pgx.Rows) ([]*model.Donation, error) {
	defer rows.Close()
	var list []*model.Donation
	for rows.Next() {
		d, err := scanDonation(rows.Scan)
		if err != nil {
			return nil, err
		}
		list = append(list, d)
	}
	return list, rows.Err()
}

func (r *pgDonationRepository) Create(ctx context.Context, d *model.Donation) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO donations
		 (id, sponsorship_id, donor_id, amount, payment_method, message, status)
		 VALUES ($1, $2, NULLIF($3, '')::uuid, $4, $5, NULLIF($6, ''), $7)
		 RETURNING submitted_at, updated_at`,
		d.ID, d.SponsorshipID, d.DonorID, d.Amount, d.PaymentMethod, d.Message, d.Status,
	).Scan(&d.SubmittedAt, &d.UpdatedAt)
	return mapPgError(err)
}

func (r *pgDonationRepository) GetByID(ctx context.Context, id string) (*model.Donation, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+donationSelectCols+` FROM donations WHERE id = $1`, id)
	return scanDonation(row.Scan)
}

func (r *pgDonationRepository) ListBySponsorship(ctx context.Context, sponsorshipID string, limit, offset int) ([]*model.Donation, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+donationSelectCols+`
		 FROM donations
		 WHERE sponsorship_id = $1
		 ORDER BY submitted_at DESC, id
		 LIMIT $2 OFFSET $3`,
		sponsorshipID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectDonations(rows)
}

func (r *pgDonationRepository) ListByDonor(ctx context.Context, donorID string, limit, offset int) ([]*model.Donation, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+donationSelectCols+`
		 FROM donations
		 WHERE donor_id = $1
		 ORDER BY submitted_at DESC, id
		 LIMIT $2 OFFSET $3`,
		donorID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectDonations(rows)
}
