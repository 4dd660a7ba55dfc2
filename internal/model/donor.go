package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Donor is the giving identity of a user. TotalDonated is maintained by the ledger.
type Donor struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	DisplayName  string          `json:"display_name"`
	TotalDonated decimal.Decimal `json:"total_donated"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
