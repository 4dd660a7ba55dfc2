package repository

import (
	"context"

	"github.com/Sara-Samara/HealthAidProj-sub001/internal/model"
)

// DonorRepository は寄付者永続化のインターフェース
type DonorRepository interface {
	GetByID(ctx context.Context, id string) (*model.Donor, error)
	GetByUserID(ctx context.Context, userID string) (*model.Donor, error)
	Exists(ctx context.Context, id string) (bool, error)
	Create(ctx context.Context, d *model.Donor) error
}
