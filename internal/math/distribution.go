package math

import (
	sdkmath "cosmossdk.io/math"
)

// Share is one participant's weight in a pro-rata split.
type Share struct {
	Key    uint64
	Weight sdkmath.Int
}

// Allocation is one participant's floored part of a pro-rata split.
type Allocation struct {
	Key    uint64
	Amount sdkmath.Int
}

// ProRata splits total across shares by weight, flooring each part.
// Residual is the undistributed remainder: total - sum(parts). Zero-weight
// shares get nothing; with no positive weight the whole total is residual.
func ProRata(total sdkmath.Int, shares []Share) (parts []Allocation, residual sdkmath.Int) {
	sum := sdkmath.ZeroInt()
	for _, s := range shares {
		if s.Weight.IsPositive() {
			sum = sum.Add(s.Weight)
		}
	}
	if sum.IsZero() || !total.IsPositive() {
		return nil, total
	}

	distributed := sdkmath.ZeroInt()
	parts = make([]Allocation, 0, len(shares))
	for _, s := range shares {
		if !s.Weight.IsPositive() {
			continue
		}
		amt := MulDiv(total, s.Weight, sum)
		parts = append(parts, Allocation{Key: s.Key, Amount: amt})
		distributed = distributed.Add(amt)
	}
	return parts, total.Sub(distributed)
}
