package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DonationStatus is the lifecycle state of a donation.
type DonationStatus string

const (
	DonationPending   DonationStatus = "pending"
	DonationCompleted DonationStatus = "completed"
	DonationFailed    DonationStatus = "failed"
	DonationRefunded  DonationStatus = "refunded"
)

// Valid reports whether s is one of the known donation statuses.
func (s DonationStatus) Valid() bool {
	switch s {
	case DonationPending, DonationCompleted, DonationFailed, DonationRefunded:
		return true
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s DonationStatus) IsTerminal() bool {
	return s == DonationFailed || s == DonationRefunded
}

// CanTransition reports whether a donation in status s may move to next.
// Moving to the current status is not a transition; callers treat it as a no-op.
func (s DonationStatus) CanTransition(next DonationStatus) bool {
	if s.IsTerminal() || !next.Valid() {
		return false
	}
	switch s {
	case DonationPending:
		return next == DonationCompleted || next == DonationFailed
	case DonationCompleted:
		return next == DonationRefunded
	}
	return false
}

// ParseDonationStatus converts a request string to a DonationStatus.
func ParseDonationStatus(s string) (DonationStatus, bool) {
	st := DonationStatus(s)
	return st, st.Valid()
}

// Donation represents a single pledge from a donor toward a sponsorship.
// DonorID is empty for anonymous donations.
type Donation struct {
	ID             string          `json:"id"`
	SponsorshipID  string          `json:"sponsorship_id"`
	DonorID        string          `json:"donor_id,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	PaymentMethod  string          `json:"payment_method"`
	Message        string          `json:"message,omitempty"`
	Status         DonationStatus  `json:"status"`
	TransactionRef string          `json:"transaction_ref,omitempty"`
	SubmittedAt    time.Time       `json:"submitted_at"`
	ProcessedAt    *time.Time      `json:"processed_at,omitempty"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// IsAnonymous reports whether the donation carries no donor reference.
func (d *Donation) IsAnonymous() bool {
	return d.DonorID == ""
}

// DonationInput holds the caller-supplied fields of a new donation.
type DonationInput struct {
	SponsorshipID string
	DonorID       string
	Amount        decimal.Decimal
	PaymentMethod string
	Message       string
}
