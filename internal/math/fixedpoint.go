package math

import (
	"fmt"
	"math/big"
	"sync"

	sdkmath "cosmossdk.io/math"
)

// Token amounts are raw integer units (18-decimal tokens in practice). All
// arithmetic floors; intermediates that can exceed the 256-bit bound of
// sdkmath.Int are computed on pooled big.Int values.

// Unit is one whole token at 18 decimals.
var Unit = sdkmath.NewIntWithDecimal(1, 18)

var bigPool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getBig() *big.Int {
	return bigPool.Get().(*big.Int)
}

func putBig(v *big.Int) {
	v.SetInt64(0)
	bigPool.Put(v)
}

// MulDiv computes floor(a * b / c). c must be positive.
func MulDiv(a, b, c sdkmath.Int) sdkmath.Int {
	if !c.IsPositive() {
		panic(fmt.Sprintf("MulDiv: non-positive divisor %s", c))
	}
	num := getBig()
	defer putBig(num)
	num.Mul(a.BigInt(), b.BigInt())
	num.Quo(num, c.BigInt())
	return sdkmath.NewIntFromBigInt(new(big.Int).Set(num))
}

// BpsOf returns floor(amount * bps / 10000).
func BpsOf(amount sdkmath.Int, bps uint16) sdkmath.Int {
	return MulDiv(amount, sdkmath.NewInt(int64(bps)), sdkmath.NewInt(10_000))
}

// Sqrt returns floor(sqrt(x)) for x >= 0.
func Sqrt(x sdkmath.Int) sdkmath.Int {
	if x.IsNegative() {
		panic(fmt.Sprintf("Sqrt: negative operand %s", x))
	}
	r := getBig()
	defer putBig(r)
	r.Sqrt(x.BigInt())
	return sdkmath.NewIntFromBigInt(new(big.Int).Set(r))
}

// MinInt returns the smaller of a and b.
func MinInt(a, b sdkmath.Int) sdkmath.Int {
	if a.LT(b) {
		return a
	}
	return b
}

// ParseAmount parses a base-10 integer amount. Negative amounts are rejected.
func ParseAmount(s string) (sdkmath.Int, error) {
	v, ok := sdkmath.NewIntFromString(s)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("invalid amount %q", s)
	}
	if v.IsNegative() {
		return sdkmath.Int{}, fmt.Errorf("negative amount %q", s)
	}
	return v, nil
}
