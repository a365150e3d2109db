package math

import (
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"
)

// FeeModel is the fraction of every swap input a constant-product pool keeps
// as liquidity-provider fee, expressed as the retained part: a 0.25% fee is
// Numerator=9975, Denominator=10000.
type FeeModel struct {
	Numerator   int64 `json:"numerator" yaml:"numerator"`
	Denominator int64 `json:"denominator" yaml:"denominator"`
}

// DefaultFee is the 0.25% per-hop fee.
var DefaultFee = FeeModel{Numerator: 9975, Denominator: 10_000}

func (f FeeModel) Validate() error {
	if f.Denominator <= 0 || f.Numerator <= 0 || f.Numerator > f.Denominator {
		return fmt.Errorf("invalid fee model %d/%d", f.Numerator, f.Denominator)
	}
	return nil
}

// GetAmountOut returns the output of a single constant-product hop:
// in*N*rOut / (rIn*D + in*N).
func GetAmountOut(amountIn, reserveIn, reserveOut sdkmath.Int, fee FeeModel) sdkmath.Int {
	if !amountIn.IsPositive() || !reserveIn.IsPositive() || !reserveOut.IsPositive() {
		return sdkmath.ZeroInt()
	}
	n := big.NewInt(fee.Numerator)
	d := big.NewInt(fee.Denominator)

	inWithFee := getBig()
	defer putBig(inWithFee)
	inWithFee.Mul(amountIn.BigInt(), n)

	num := getBig()
	defer putBig(num)
	num.Mul(inWithFee, reserveOut.BigInt())

	den := getBig()
	defer putBig(den)
	den.Mul(reserveIn.BigInt(), d)
	den.Add(den, inWithFee)

	num.Quo(num, den)
	return sdkmath.NewIntFromBigInt(new(big.Int).Set(num))
}

// Quote returns the amount of B matching amountA at the pool ratio rB/rA.
func Quote(amountA, reserveA, reserveB sdkmath.Int) sdkmath.Int {
	if !reserveA.IsPositive() {
		return sdkmath.ZeroInt()
	}
	return MulDiv(amountA, reserveB, reserveA)
}

// OptimalSwapAmount is the amount of a single-asset deposit to swap so the
// two resulting balances match the post-swap pool ratio. It is the floor of
// the positive root of
//
//	N·x² + (D+N)·r·x − D·A·r = 0
//
// with r = reserveIn, A = amountIn and N/D the retained fee fraction.
// Estimation and execution both call this; do not fork it.
func OptimalSwapAmount(reserveIn, amountIn sdkmath.Int, fee FeeModel) sdkmath.Int {
	if !reserveIn.IsPositive() || !amountIn.IsPositive() {
		return sdkmath.ZeroInt()
	}
	n := big.NewInt(fee.Numerator)
	d := big.NewInt(fee.Denominator)
	r := reserveIn.BigInt()

	// b = (D+N)·r
	b := getBig()
	defer putBig(b)
	b.Add(d, n)
	b.Mul(b, r)

	// c = D·A·r
	c := getBig()
	defer putBig(c)
	c.Mul(d, amountIn.BigInt())
	c.Mul(c, r)

	// disc = b² + 4·N·c
	disc := getBig()
	defer putBig(disc)
	disc.Mul(b, b)
	c.Mul(c, n)
	c.Lsh(c, 2)
	disc.Add(disc, c)
	disc.Sqrt(disc)

	disc.Sub(disc, b)
	if disc.Sign() <= 0 {
		return sdkmath.ZeroInt()
	}
	twoA := new(big.Int).Lsh(n, 1)
	disc.Quo(disc, twoA)
	return sdkmath.NewIntFromBigInt(new(big.Int).Set(disc))
}

// EstimateSplit splits a single-asset amount into the part kept (half0) and
// the part swapped through the pool (half1).
func EstimateSplit(amount, reserveIn sdkmath.Int, fee FeeModel) (half0, half1 sdkmath.Int) {
	half1 = OptimalSwapAmount(reserveIn, amount, fee)
	return amount.Sub(half1), half1
}

// LiquidityMinted mirrors the pool's LP mint rule: sqrt(a·b) − minimum for
// the first provider, min(a·T/r0, b·T/r1) afterwards.
func LiquidityMinted(amount0, amount1, reserve0, reserve1, totalSupply, minimum sdkmath.Int) sdkmath.Int {
	if totalSupply.IsZero() {
		prod := getBig()
		defer putBig(prod)
		prod.Mul(amount0.BigInt(), amount1.BigInt())
		prod.Sqrt(prod)
		root := sdkmath.NewIntFromBigInt(new(big.Int).Set(prod))
		if root.LTE(minimum) {
			return sdkmath.ZeroInt()
		}
		return root.Sub(minimum)
	}
	if !reserve0.IsPositive() || !reserve1.IsPositive() {
		return sdkmath.ZeroInt()
	}
	return MinInt(
		MulDiv(amount0, totalSupply, reserve0),
		MulDiv(amount1, totalSupply, reserve1),
	)
}
