package money

import (
	"collection-ledger/internal/pkg/apperrors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places kept by every money column.
const Scale = 2

// HasSubCent reports whether d carries a non-zero digit past the cent.
// Trailing zeros such as "1.500" are not sub-cent.
func HasSubCent(d decimal.Decimal) bool {
	return !d.Equal(d.Round(Scale))
}

// RequireCents rejects amounts the store would have to round on write.
func RequireCents(field string, d decimal.Decimal) error {
	if HasSubCent(d) {
		return fmt.Errorf("%w: %s must have at most %d decimal places, got %s", apperrors.ErrInvalidAmount, field, Scale, d.String())
	}
	return nil
}
