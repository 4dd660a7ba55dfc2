package repository

import (
	"context"
	"time"

	"github.com/Sara-Samara/HealthAidProj-sub001/internal/model"
	"github.com/shopspring/decimal"
)

// LedgerStore runs ledger work inside a single database transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
type LedgerStore interface {
	InTx(ctx context.Context, fn func(tx LedgerTx) error) error
}

// LedgerTx is the set of writes permitted inside a ledger transaction.
// Lock order is sponsorship, then donor, then the donation status compare-and-set.
type LedgerTx interface {
	// GetDonation reads a donation without locking it.
	GetDonation(ctx context.Context, id string) (*model.Donation, error)
	// LockSponsorship reads a sponsorship and holds its row lock until the transaction ends.
	LockSponsorship(ctx context.Context, id string) (*model.Sponsorship, error)
	// LockDonor reads a donor and holds its row lock until the transaction ends.
	LockDonor(ctx context.Context, id string) (*model.Donor, error)
	// CompareAndSetDonationStatus moves a donation from `from` to `to`.
	// It reports false, with no error, when the donation is no longer in `from`.
	// A nil processedAt keeps the stored value.
	CompareAndSetDonationStatus(ctx context.Context, id string, from, to model.DonationStatus, transactionRef string, processedAt *time.Time) (*model.Donation, bool, error)
	// ApplySponsorshipDelta adds delta to amount_raised and recomputes donor_count
	// from the completed donations visible in this transaction.
	ApplySponsorshipDelta(ctx context.Context, id string, delta decimal.Decimal) (*model.Sponsorship, error)
	// ApplyDonorDelta adds delta to the donor's total_donated.
	ApplyDonorDelta(ctx context.Context, id string, delta decimal.Decimal) (*model.Donor, error)
	// SetSponsorshipStatus writes the sponsorship status.
	SetSponsorshipStatus(ctx context.Context, id string, status model.SponsorshipStatus) (*model.Sponsorship, error)
}
