package farm_test

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"VaultLedger/internal/farm"
	"VaultLedger/internal/ledger"
	"VaultLedger/internal/types"
)

const (
	lpToken types.TokenID = "LP/BASE-FARM"
	reward  types.TokenID = "FARM"
)

func newFarm(t *testing.T) (*farm.Farm, *ledger.BalanceTracker, uint64) {
	t.Helper()
	bank := ledger.NewBalanceTracker(nil)
	f := farm.New(bank, "farm", reward)
	id, err := f.AddPool(lpToken, sdkmath.NewInt(100))
	require.NoError(t, err)
	require.NoError(t, bank.Mint("alice", lpToken, sdkmath.NewInt(3_000)))
	require.NoError(t, bank.Mint("bob", lpToken, sdkmath.NewInt(1_000)))
	return f, bank, id
}

func TestAddPool_Duplicate(t *testing.T) {
	f, _, _ := newFarm(t)
	_, err := f.AddPool(lpToken, sdkmath.NewInt(1))
	require.ErrorIs(t, err, types.ErrInvalidArgument)
	assert.Equal(t, uint64(1), f.PoolLength())
}

func TestAdvance_SplitsByStake(t *testing.T) {
	f, bank, id := newFarm(t)
	require.NoError(t, f.Stake("alice", id, sdkmath.NewInt(3_000)))
	require.NoError(t, f.Stake("bob", id, sdkmath.NewInt(1_000)))

	emitted, err := f.Advance(10)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000), emitted.Int64())

	pa, _ := f.PendingReward(id, "alice")
	pb, _ := f.PendingReward(id, "bob")
	assert.Equal(t, int64(750), pa.Int64())
	assert.Equal(t, int64(250), pb.Int64())

	got, err := f.ClaimReward("alice", id)
	require.NoError(t, err)
	assert.Equal(t, int64(750), got.Int64())
	assert.Equal(t, int64(750), bank.BalanceOf("alice", reward).Int64())

	pa, _ = f.PendingReward(id, "alice")
	assert.True(t, pa.IsZero())
}

func TestAdvance_NoStakeNoEmission(t *testing.T) {
	f, bank, _ := newFarm(t)
	emitted, err := f.Advance(5)
	require.NoError(t, err)
	assert.True(t, emitted.IsZero())
	assert.True(t, bank.TotalSupply(reward).IsZero())
	assert.Equal(t, uint64(5), f.Block())
}

func TestUnstake_KeepsAccruedReward(t *testing.T) {
	f, bank, id := newFarm(t)
	require.NoError(t, f.Stake("alice", id, sdkmath.NewInt(3_000)))
	_, err := f.Advance(1)
	require.NoError(t, err)

	out, err := f.Unstake("alice", id, sdkmath.NewInt(3_000))
	require.NoError(t, err)
	assert.Equal(t, int64(3_000), out.Int64())
	assert.Equal(t, int64(3_000), bank.BalanceOf("alice", lpToken).Int64())

	pending, _ := f.PendingReward(id, "alice")
	assert.InDelta(t, 100, pending.Int64(), 1, "per-share accounting floors")

	staked, _ := f.StakedBalance(id, "alice")
	assert.True(t, staked.IsZero())
}

func TestUnstake_TooMuch(t *testing.T) {
	f, _, id := newFarm(t)
	require.NoError(t, f.Stake("bob", id, sdkmath.NewInt(10)))
	_, err := f.Unstake("bob", id, sdkmath.NewInt(11))
	require.ErrorIs(t, err, types.ErrInsufficientFunds)
}

func TestUnknownPool(t *testing.T) {
	f, _, _ := newFarm(t)
	require.ErrorIs(t, f.Stake("alice", 9, sdkmath.NewInt(1)), types.ErrPoolNotFound)
	_, err := f.PendingReward(9, "alice")
	require.ErrorIs(t, err, types.ErrPoolNotFound)
}

func TestCheckpoint_Restores(t *testing.T) {
	f, _, id := newFarm(t)
	require.NoError(t, f.Stake("alice", id, sdkmath.NewInt(1_000)))
	restore := f.Checkpoint()

	require.NoError(t, f.Stake("alice", id, sdkmath.NewInt(1_000)))
	_, err := f.Advance(3)
	require.NoError(t, err)
	restore()

	staked, _ := f.StakedBalance(id, "alice")
	assert.Equal(t, int64(1_000), staked.Int64())
	pending, _ := f.PendingReward(id, "alice")
	assert.True(t, pending.IsZero())
	assert.Equal(t, uint64(0), f.Block())
}
