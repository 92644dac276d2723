package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ComputeTotal prices a stay: nightly rate times whole nights, in
// fixed-point decimal. Upstream validation already rejects empty ranges;
// the duration check here is the storage-level backstop.
func ComputeTotal(pricePerNight decimal.Decimal, start, end time.Time) (decimal.Decimal, error) {
	nights := int64(end.Sub(start) / (24 * time.Hour))
	if nights <= 0 {
		return decimal.Decimal{}, fmt.Errorf("%w: stay must be at least one night", ErrInvalidDuration)
	}
	return pricePerNight.Mul(decimal.NewFromInt(nights)), nil
}
