package service

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// maxIntegerDigits matches NUMERIC(18,2): 16 digits before the point, 2 after.
const maxIntegerDigits = 16

var maxAmount = decimal.New(1, maxIntegerDigits)

// validateAmount rejects amounts that are not positive or that would not be stored exactly.
func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: must be greater than 0", ErrInvalidAmount)
	}
	if !amount.Equal(amount.Round(2)) {
		return fmt.Errorf("%w: at most 2 decimal places", ErrInvalidAmount)
	}
	if amount.GreaterThanOrEqual(maxAmount) {
		return fmt.Errorf("%w: too large", ErrInvalidAmount)
	}
	return nil
}

// validID reports whether id is a well-formed UUID. Malformed ids can never match a row.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
