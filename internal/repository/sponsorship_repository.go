package repository

import (
	"context"

	"github.com/Sara-Samara/HealthAidProj-sub001/internal/model"
)

// SponsorshipRepository はキャンペーン永続化のインターフェース。
// amount_raised / donor_count を更新するメソッドは持たない（LedgerTx 経由のみ）。
type SponsorshipRepository interface {
	GetByID(ctx context.Context, id string) (*model.Sponsorship, error)
	Exists(ctx context.Context, id string) (bool, error)
	List(ctx context.Context, filter model.SponsorshipFilter) (*model.SponsorshipListResult, error)
	Create(ctx context.Context, s *model.Sponsorship) error
}
