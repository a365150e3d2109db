package fees_test

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"VaultLedger/internal/auth"
	"VaultLedger/internal/fees"
	"VaultLedger/internal/ledger"
	"VaultLedger/internal/types"
)

const (
	base types.TokenID = "BASE"

	operator  types.Address = "operator"
	vault     types.Address = "vault"
	treasury  types.Address = "treasury"
	partner   types.Address = "client/acme"
	collector types.Address = "fee-collector"
)

func newCollector(t *testing.T) (*fees.Collector, *ledger.BalanceTracker) {
	t.Helper()
	bank := ledger.NewBalanceTracker(nil)
	reg := auth.NewRegistry([]types.Address{operator}, func(a types.Address) (types.TokenID, bool) {
		return base, a == vault
	})
	require.NoError(t, reg.Approve(operator, auth.KindVault, []types.Address{vault}, true))
	require.NoError(t, reg.Approve(operator, auth.KindBountyCollector, []types.Address{treasury, partner}, true))
	return fees.NewCollector(collector, base, bank, reg), bank
}

// register funds the collector and books the fee the way a harvest does.
func register(t *testing.T, c *fees.Collector, bank *ledger.BalanceTracker, who types.Address, amount int64) {
	t.Helper()
	require.NoError(t, bank.Mint(collector, base, sdkmath.NewInt(amount)))
	require.NoError(t, c.RegisterFees(vault, []types.Address{who}, []sdkmath.Int{sdkmath.NewInt(amount)}))
}

func TestRegisterFees_Additive(t *testing.T) {
	c, bank := newCollector(t)
	register(t, c, bank, treasury, 100)
	register(t, c, bank, treasury, 50)
	register(t, c, bank, partner, 7)

	assert.Equal(t, "150", c.FeesOf(treasury).String())
	assert.Equal(t, "7", c.FeesOf(partner).String())
	assert.Equal(t, "157", c.Outstanding().String())
}

func TestRegisterFees_Validation(t *testing.T) {
	c, _ := newCollector(t)

	err := c.RegisterFees("mallory", []types.Address{treasury}, []sdkmath.Int{sdkmath.NewInt(1)})
	require.ErrorIs(t, err, types.ErrUnauthorized)

	err = c.RegisterFees(vault, []types.Address{treasury, partner}, []sdkmath.Int{sdkmath.NewInt(1)})
	require.ErrorIs(t, err, types.ErrInvalidArgument)

	// A bad element rejects the whole batch.
	err = c.RegisterFees(vault, []types.Address{treasury, partner}, []sdkmath.Int{sdkmath.NewInt(5), sdkmath.NewInt(-1)})
	require.ErrorIs(t, err, types.ErrInvalidArgument)
	assert.True(t, c.FeesOf(treasury).IsZero())
}

func TestCollect_ThresholdGating(t *testing.T) {
	c, bank := newCollector(t)
	require.NoError(t, c.SetBountyThreshold(operator, sdkmath.NewInt(100)))
	register(t, c, bank, treasury, 99)

	_, err := c.Collect(treasury)
	require.ErrorIs(t, err, types.ErrBelowThreshold)
	assert.Equal(t, "99", c.FeesOf(treasury).String())

	register(t, c, bank, treasury, 1)
	register(t, c, bank, partner, 500)
	paid, err := c.Collect(treasury)
	require.NoError(t, err)
	assert.Equal(t, "100", paid.String())
	assert.True(t, c.FeesOf(treasury).IsZero())
	assert.Equal(t, "100", bank.BalanceOf(treasury, base).String())

	// Another beneficiary's balance is untouched.
	assert.Equal(t, "500", c.FeesOf(partner).String())
	assert.Equal(t, "500", bank.BalanceOf(collector, base).String())
}

func TestCollect_RequiresBountyCollector(t *testing.T) {
	c, bank := newCollector(t)
	register(t, c, bank, "someone", 10)
	_, err := c.Collect("someone")
	require.ErrorIs(t, err, types.ErrUnauthorized)
}

func TestCollect_EmptyBalance(t *testing.T) {
	c, _ := newCollector(t)
	_, err := c.Collect(treasury)
	require.ErrorIs(t, err, types.ErrBelowThreshold)
}

func TestSetBountyThreshold(t *testing.T) {
	c, _ := newCollector(t)
	require.ErrorIs(t, c.SetBountyThreshold(treasury, sdkmath.NewInt(1)), types.ErrUnauthorized)
	require.ErrorIs(t, c.SetBountyThreshold(operator, sdkmath.NewInt(-1)), types.ErrInvalidArgument)
	require.NoError(t, c.SetBountyThreshold(operator, sdkmath.NewInt(42)))
	assert.Equal(t, "42", c.BountyThreshold().String())
}

func TestCheckpoint_Restores(t *testing.T) {
	c, bank := newCollector(t)
	register(t, c, bank, treasury, 10)
	before := c.Balances()

	restore := c.Checkpoint()
	register(t, c, bank, partner, 5)
	require.NoError(t, c.SetBountyThreshold(operator, sdkmath.NewInt(3)))
	restore()

	after := c.Balances()
	diff := cmp.Diff(before, after, cmp.Comparer(func(a, b sdkmath.Int) bool { return a.Equal(b) }))
	assert.Empty(t, diff)
	assert.True(t, c.BountyThreshold().IsZero())
}
