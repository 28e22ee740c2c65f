package service

import (
	"errors"
	"math/big"
)

// ErrAmountOverflow is returned when a price does not fit in int64 cents.
var ErrAmountOverflow = errors.New("amount exceeds supported range")

// bulkTiers lists quantity thresholds and their discounts in basis points,
// largest first.
var bulkTiers = []struct {
	minQty int
	bps    int64
}{
	{100, 1500},
	{50, 1000},
	{10, 500},
}

// BulkDiscountBps returns the discount for ordering qty units.
func BulkDiscountBps(qty int) int64 {
	for _, tier := range bulkTiers {
		if qty >= tier.minQty {
			return tier.bps
		}
	}
	return 0
}

// TotalPriceCents returns unit*qty less a discount of bps basis points.
// The discounted total is rounded half-to-even to the cent.
func TotalPriceCents(unitCents int64, qty int, bps int64) (int64, error) {
	subtotal := new(big.Int).Mul(big.NewInt(unitCents), big.NewInt(int64(qty)))

	// Net amount in hundredths of a basis point of a cent.
	net := new(big.Int).Mul(subtotal, big.NewInt(10000-bps))
	total := roundHalfEven(net, big.NewInt(10000))
	if !total.IsInt64() {
		return 0, ErrAmountOverflow
	}
	return total.Int64(), nil
}

// roundHalfEven divides a non-negative n by d, rounding ties to even.
func roundHalfEven(n, d *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(n, d, new(big.Int))
	switch new(big.Int).Mul(r, big.NewInt(2)).Cmp(d) {
	case 1:
		q.Add(q, big.NewInt(1))
	case 0:
		if q.Bit(0) == 1 {
			q.Add(q, big.NewInt(1))
		}
	}
	return q
}
