package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sara-Samara/HealthAidProj-sub001/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PgLedgerStore は LedgerStore の PostgreSQL 実装。
// READ COMMITTED + 行ロック（SELECT ... FOR NO KEY UPDATE）で直列化する。
// NO KEY なので donations 挿入時の外部キー検査（FOR KEY SHARE）とは競合しない

type PgLedgerStore struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

// NewPgLedgerStore は PgLedgerStore を生成する。lockTimeout が 0 の場合はサーバー設定に従う
func NewPgLedgerStore(pool *pgxpool.Pool, lockTimeout time.Duration) *PgLedgerStore {
	return &PgLedgerStore{pool: pool, lockTimeout: lockTimeout}
}

// InTx は fn を 1 トランザクション内で実行する
func (s *PgLedgerStore) InTx(ctx context.Context, fn func(tx LedgerTx) error) error {
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		if s.lockTimeout > 0 {
			if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())); err != nil {
				return err
			}
		}
		return fn(&pgLedgerTx{tx: tx})
	})
	return mapPgError(err)
}

type pgLedgerTx struct {
	tx pgx.Tx
}

func (t *pgLedgerTx) GetDonation(ctx context.Context, id string) (*model.Donation, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+donationSelectCols+` FROM donations WHERE id = $1`, id)
	return scanDonation(row.Scan)
}

func (t *pgLedgerTx) LockSponsorship(ctx context.Context, id string) (*model.Sponsorship, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+sponsorshipSelectCols+` FROM sponsorships WHERE id = $1 FOR NO KEY UPDATE`, id)
	return scanSponsorship(row.Scan)
}

func (t *pgLedgerTx) LockDonor(ctx context.Context, id string) (*model.Donor, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+donorSelectCols+` FROM donors WHERE id = $1 FOR NO KEY UPDATE`, id)
	return scanDonor(row.Scan)
}

func (t *pgLedgerTx) CompareAndSetDonationStatus(ctx context.Context, id string, from, to model.DonationStatus, transactionRef string, processedAt *time.Time) (*model.Donation, bool, error) {
	row := t.tx.QueryRow(ctx,
		`UPDATE donations
		 SET status = $3,
		     transaction_ref = COALESCE(NULLIF($4, ''), transaction_ref),
		     processed_at = COALESCE($5, processed_at),
		     updated_at = NOW()
		 WHERE id = $1 AND status = $2
		 RETURNING `+donationSelectCols,
		id, from, to, transactionRef, processedAt,
	)
	d, err := scanDonation(row.Scan)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return d, true, nil
}

// ApplySponsorshipDelta の donor_count サブクエリは同一トランザクション内の直前の
// ステータス更新を参照する（READ COMMITTED ではステートメント毎にスナップショットを取る）
func (t *pgLedgerTx) ApplySponsorshipDelta(ctx context.Context, id string, delta decimal.Decimal) (*model.Sponsorship, error) {
	row := t.tx.QueryRow(ctx,
		`UPDATE sponsorships
		 SET amount_raised = amount_raised + $2,
		     donor_count = (
		         SELECT COUNT(DISTINCT donor_id)
		         FROM donations
		         WHERE sponsorship_id = $1 AND status = 'completed' AND donor_id IS NOT NULL
		     ),
		     updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+sponsorshipSelectCols,
		id, delta,
	)
	return scanSponsorship(row.Scan)
}

func (t *pgLedgerTx) ApplyDonorDelta(ctx context.Context, id string, delta decimal.Decimal) (*model.Donor, error) {
	row := t.tx.QueryRow(ctx,
		`UPDATE donors
		 SET total_donated = total_donated + $2, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+donorSelectCols,
		id, delta,
	)
	return scanDonor(row.Scan)
}

func (t *pgLedgerTx) SetSponsorshipStatus(ctx context.Context, id string, status model.SponsorshipStatus) (*model.Sponsorship, error) {
	row := t.tx.QueryRow(ctx,
		`UPDATE sponsorships SET status = $2, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+sponsorshipSelectCols,
		id, status,
	)
	return scanSponsorship(row.Scan)
}
