package math_test

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fpmath "VaultLedger/internal/math"
)

func tokens(whole int64) sdkmath.Int {
	return fpmath.Unit.MulRaw(whole)
}

func mustInt(t *testing.T, s string) sdkmath.Int {
	t.Helper()
	v, err := fpmath.ParseAmount(s)
	require.NoError(t, err)
	return v
}

// ============================================================================
// Test: OptimalSwapAmount
// ============================================================================

func TestOptimalSwapAmount_SmallVectors(t *testing.T) {
	fee := fpmath.DefaultFee
	assert.Equal(t, "48", fpmath.OptimalSwapAmount(sdkmath.NewInt(1000), sdkmath.NewInt(100), fee).String())
	assert.Equal(t, "4993", fpmath.OptimalSwapAmount(sdkmath.NewInt(1_000_000), sdkmath.NewInt(10_000), fee).String())
}

func TestOptimalSwapAmount_ZeroInputs(t *testing.T) {
	fee := fpmath.DefaultFee
	assert.True(t, fpmath.OptimalSwapAmount(sdkmath.ZeroInt(), sdkmath.NewInt(100), fee).IsZero())
	assert.True(t, fpmath.OptimalSwapAmount(sdkmath.NewInt(100), sdkmath.ZeroInt(), fee).IsZero())
}

func TestOptimalSwapAmount_EighteenDecimals(t *testing.T) {
	// 0.1 BASE into a 1000 BASE reserve.
	deposit := fpmath.Unit.QuoRaw(10)
	x := fpmath.OptimalSwapAmount(tokens(1000), deposit, fpmath.DefaultFee)
	assert.Equal(t, "50061326722857487", x.String())

	out := fpmath.GetAmountOut(x, tokens(1000), tokens(100), fpmath.DefaultFee)
	assert.Equal(t, "4993367990915159", out.String())
}

func TestOptimalSwapAmount_BalancesPostSwapRatio(t *testing.T) {
	fee := fpmath.DefaultFee
	r0, r1 := tokens(1000), tokens(100)
	amount := tokens(3)

	x := fpmath.OptimalSwapAmount(r0, amount, fee)
	out := fpmath.GetAmountOut(x, r0, r1, fee)

	// After the swap the kept part must match the pool ratio to within one
	// unit of the counter token.
	keep := amount.Sub(x)
	newR0, newR1 := r0.Add(x), r1.Sub(out)
	matched := fpmath.Quote(keep, newR0, newR1)
	diff := matched.Sub(out).Abs()
	assert.True(t, diff.LTE(sdkmath.OneInt()), "ratio mismatch %s", diff)
}

func TestEstimateSplit(t *testing.T) {
	half0, half1 := fpmath.EstimateSplit(sdkmath.NewInt(100), sdkmath.NewInt(1000), fpmath.DefaultFee)
	assert.Equal(t, int64(52), half0.Int64())
	assert.Equal(t, int64(48), half1.Int64())
}

// ============================================================================
// Test: GetAmountOut / Quote / LiquidityMinted
// ============================================================================

func TestGetAmountOut(t *testing.T) {
	got := fpmath.GetAmountOut(sdkmath.NewInt(1000), sdkmath.NewInt(10_000), sdkmath.NewInt(10_000), fpmath.DefaultFee)
	assert.Equal(t, int64(907), got.Int64())

	assert.True(t, fpmath.GetAmountOut(sdkmath.ZeroInt(), sdkmath.NewInt(1), sdkmath.NewInt(1), fpmath.DefaultFee).IsZero())
	assert.True(t, fpmath.GetAmountOut(sdkmath.NewInt(1), sdkmath.ZeroInt(), sdkmath.NewInt(1), fpmath.DefaultFee).IsZero())
}

func TestQuote(t *testing.T) {
	assert.Equal(t, int64(10), fpmath.Quote(sdkmath.NewInt(100), sdkmath.NewInt(1000), sdkmath.NewInt(100)).Int64())
	assert.True(t, fpmath.Quote(sdkmath.NewInt(100), sdkmath.ZeroInt(), sdkmath.NewInt(100)).IsZero())
}

func TestLiquidityMinted_FirstProvider(t *testing.T) {
	minimum := sdkmath.NewInt(1000)
	lp := fpmath.LiquidityMinted(tokens(1000), tokens(100), sdkmath.ZeroInt(), sdkmath.ZeroInt(), sdkmath.ZeroInt(), minimum)
	assert.Equal(t, "316227766016837932199", lp.String())

	tiny := fpmath.LiquidityMinted(sdkmath.NewInt(10), sdkmath.NewInt(10), sdkmath.ZeroInt(), sdkmath.ZeroInt(), sdkmath.ZeroInt(), minimum)
	assert.True(t, tiny.IsZero())
}

func TestLiquidityMinted_Proportional(t *testing.T) {
	lp := fpmath.LiquidityMinted(
		sdkmath.NewInt(10), sdkmath.NewInt(50),
		sdkmath.NewInt(100), sdkmath.NewInt(100),
		sdkmath.NewInt(1000), sdkmath.ZeroInt(),
	)
	assert.Equal(t, int64(100), lp.Int64())
}

func TestFeeModel_Validate(t *testing.T) {
	require.NoError(t, fpmath.DefaultFee.Validate())
	assert.Error(t, fpmath.FeeModel{Numerator: 0, Denominator: 1000}.Validate())
	assert.Error(t, fpmath.FeeModel{Numerator: 1001, Denominator: 1000}.Validate())
	assert.Error(t, fpmath.FeeModel{Numerator: 1, Denominator: 0}.Validate())
}

// ============================================================================
// Test: fixed point helpers
// ============================================================================

func TestMulDiv_Floors(t *testing.T) {
	assert.Equal(t, int64(3), fpmath.MulDiv(sdkmath.NewInt(10), sdkmath.NewInt(1), sdkmath.NewInt(3)).Int64())
	assert.Panics(t, func() { fpmath.MulDiv(sdkmath.NewInt(1), sdkmath.NewInt(1), sdkmath.ZeroInt()) })
}

func TestMulDiv_WideIntermediate(t *testing.T) {
	// a*b exceeds 256 bits; the quotient does not.
	big := mustInt(t, "100000000000000000000000000000000000000000000000000")
	got := fpmath.MulDiv(big, big, big)
	assert.True(t, got.Equal(big))
}

func TestBpsOf(t *testing.T) {
	assert.Equal(t, int64(25), fpmath.BpsOf(sdkmath.NewInt(1000), 250).Int64())
	assert.Equal(t, int64(0), fpmath.BpsOf(sdkmath.NewInt(39), 250).Int64())
}

func TestSqrt(t *testing.T) {
	assert.Equal(t, int64(3), fpmath.Sqrt(sdkmath.NewInt(15)).Int64())
	assert.Equal(t, int64(4), fpmath.Sqrt(sdkmath.NewInt(16)).Int64())
	assert.Panics(t, func() { fpmath.Sqrt(sdkmath.NewInt(-1)) })
}

func TestParseAmount(t *testing.T) {
	v, err := fpmath.ParseAmount("1000000000000000000")
	require.NoError(t, err)
	assert.True(t, v.Equal(fpmath.Unit))

	_, err = fpmath.ParseAmount("-5")
	assert.Error(t, err)
	_, err = fpmath.ParseAmount("abc")
	assert.Error(t, err)
}
