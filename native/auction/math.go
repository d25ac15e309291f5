package auction

import (
	"math"

	"github.com/holiman/uint256"
)

// mulDiv computes a*b/divisor with a 256-bit intermediate product. The result
// is floored unless roundUp is set, in which case any remainder rounds it up.
func mulDiv(a, b, divisor uint64, roundUp bool) (uint64, error) {
	if divisor == 0 {
		return 0, ErrNumericalOverflow
	}
	product := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	quotient, remainder := new(uint256.Int), new(uint256.Int)
	quotient.DivMod(product, uint256.NewInt(divisor), remainder)
	if roundUp && !remainder.IsZero() {
		quotient.AddUint64(quotient, 1)
	}
	if !quotient.IsUint64() {
		return 0, ErrNumericalOverflow
	}
	return quotient.Uint64(), nil
}

func checkedAdd(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, ErrNumericalOverflow
	}
	return a + b, nil
}

// MinimumStartingBid returns the smallest opening bid that still leaves the
// fraction holders with reservePrice once the facilitator fee is deducted:
// ceil(reservePrice * MaxFacilitatorFee / (MaxFacilitatorFee - facilitatorFee)).
func MinimumStartingBid(reservePrice, facilitatorFee uint64) (uint64, error) {
	if facilitatorFee >= MaxFacilitatorFee {
		return 0, ErrNumericalOverflow
	}
	return mulDiv(reservePrice, MaxFacilitatorFee, MaxFacilitatorFee-facilitatorFee, true)
}

// MinimumBidIncrease returns floor(topBid * bidIncrement / MaxBidIncrement).
func MinimumBidIncrease(topBid, bidIncrement uint64) (uint64, error) {
	return mulDiv(topBid, bidIncrement, MaxBidIncrement, false)
}

// MinimumNextBid returns the lowest amount that outbids topBid.
func MinimumNextBid(topBid, bidIncrement uint64) (uint64, error) {
	increase, err := MinimumBidIncrease(topBid, bidIncrement)
	if err != nil {
		return 0, err
	}
	return checkedAdd(topBid, increase)
}

// FacilitatorFee returns floor(topBid * facilitatorFee / MaxFacilitatorFee).
func FacilitatorFee(topBid, facilitatorFee uint64) (uint64, error) {
	return mulDiv(topBid, facilitatorFee, MaxFacilitatorFee, false)
}

// RedeemPayment returns the pro-rata share of remaining owed for amount out
// of supply fractions, floored.
func RedeemPayment(remaining, amount, supply uint64) (uint64, error) {
	return mulDiv(remaining, amount, supply, false)
}
