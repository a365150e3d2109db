package math_test

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"

	fpmath "VaultLedger/internal/math"
)

func TestProRata_ResidualStaysUndistributed(t *testing.T) {
	parts, residual := fpmath.ProRata(sdkmath.NewInt(100), []fpmath.Share{
		{Key: 1, Weight: sdkmath.NewInt(1)},
		{Key: 2, Weight: sdkmath.NewInt(1)},
		{Key: 3, Weight: sdkmath.NewInt(1)},
	})

	assert.Len(t, parts, 3)
	sum := sdkmath.ZeroInt()
	for _, p := range parts {
		assert.Equal(t, int64(33), p.Amount.Int64())
		sum = sum.Add(p.Amount)
	}
	assert.Equal(t, int64(1), residual.Int64())
	assert.True(t, sum.Add(residual).Equal(sdkmath.NewInt(100)))
}

func TestProRata_SkipsZeroWeights(t *testing.T) {
	parts, residual := fpmath.ProRata(sdkmath.NewInt(90), []fpmath.Share{
		{Key: 1, Weight: sdkmath.NewInt(2)},
		{Key: 2, Weight: sdkmath.ZeroInt()},
		{Key: 3, Weight: sdkmath.NewInt(1)},
	})

	if assert.Len(t, parts, 2) {
		assert.Equal(t, uint64(1), parts[0].Key)
		assert.Equal(t, "60", parts[0].Amount.String())
		assert.Equal(t, uint64(3), parts[1].Key)
		assert.Equal(t, "30", parts[1].Amount.String())
	}
	assert.True(t, residual.IsZero())
}

func TestProRata_NoWeights(t *testing.T) {
	parts, residual := fpmath.ProRata(sdkmath.NewInt(7), nil)
	assert.Empty(t, parts)
	assert.Equal(t, int64(7), residual.Int64())
}
