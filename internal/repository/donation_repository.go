package repository

import (
	"context"

	"github.com/Sara-Samara/HealthAidProj-sub001/internal/model"
)

// DonationRepository handles persistence for donations outside ledger transactions.
// Status changes go through LedgerTx only.
type DonationRepository interface {
	// Create inserts a donation in its initial status and fills SubmittedAt/UpdatedAt.
	Create(ctx context.Context, d *model.Donation) error
	// GetByID returns a single donation by ID.
	GetByID(ctx context.Context, id string) (*model.Donation, error)
	// ListBySponsorship returns donations for a sponsorship, newest first.
	ListBySponsorship(ctx context.Context, sponsorshipID string, limit, offset int) ([]*model.Donation, error)
	// ListByDonor returns donations made by a donor, newest first.
	ListByDonor(ctx context.Context, donorID string, limit, offset int) ([]*model.Donation, error)
}
