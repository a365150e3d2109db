package client_test

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"VaultLedger/internal/client"
	"VaultLedger/internal/ledger"
	"VaultLedger/internal/strategy"
	"VaultLedger/internal/types"
	"VaultLedger/internal/vault"
)

const (
	base types.TokenID = "BASE"

	clientAddr types.Address = "client/acme"
	vaultAddr  types.Address = "vault/base"
	workerA    types.Address = "worker/base-farm"
	workerB    types.Address = "worker/other"
	op         types.Address = "acme-ops"
	alice      types.Address = "alice"
	mallory    types.Address = "mallory"
)

// fakeVault pulls deposits from the client and refunds a fixed dust amount.
type fakeVault struct {
	bank     *ledger.BalanceTracker
	dust     sdkmath.Int
	treasury uint16
	nextID   types.PositionID

	lastOwner    types.Address
	lastWithdraw types.PositionID
	collectFor   types.Address
}

func (v *fakeVault) Address() types.Address   { return vaultAddr }
func (v *fakeVault) BaseToken() types.TokenID { return base }

func (v *fakeVault) Deposit(caller, owner, worker types.Address, amount, _ sdkmath.Int) (vault.DepositResult, error) {
	if err := v.bank.Transfer(caller, vaultAddr, base, amount); err != nil {
		return vault.DepositResult{}, err
	}
	if err := v.bank.Transfer(vaultAddr, caller, base, v.dust); err != nil {
		return vault.DepositResult{}, err
	}
	v.nextID++
	v.lastOwner = owner
	return vault.DepositResult{
		Position: vault.Position{ID: v.nextID, Owner: owner, Client: caller, Worker: worker, StakedShare: amount.Sub(v.dust), Principal: amount},
		Dust:     []strategy.Coin{{Token: base, Amount: v.dust}},
	}, nil
}

func (v *fakeVault) Withdraw(_, owner, _ types.Address, id types.PositionID, _, _ sdkmath.Int) (vault.WithdrawResult, error) {
	v.lastWithdraw = id
	return vault.WithdrawResult{Position: vault.Position{ID: id, Owner: owner}, BaseOut: sdkmath.NewInt(7)}, nil
}

func (v *fakeVault) CollectRewards(_, owner types.Address) (sdkmath.Int, error) {
	v.collectFor = owner
	return sdkmath.NewInt(3), nil
}

func (v *fakeVault) WorkerTreasuryFeeBps(worker types.Address) (uint16, error) {
	if worker != workerA && worker != workerB {
		return 0, types.ErrUnknownComponent
	}
	return v.treasury, nil
}

type fakeFees struct{ owed sdkmath.Int }

func (f *fakeFees) Collect(types.Address) (sdkmath.Int, error) {
	amt := f.owed
	f.owed = sdkmath.ZeroInt()
	return amt, nil
}

func setup(t *testing.T) (*client.Client, *fakeVault, *ledger.BalanceTracker) {
	t.Helper()
	bank := ledger.NewBalanceTracker(nil)
	require.NoError(t, bank.Mint(alice, base, sdkmath.NewInt(1_000)))
	require.NoError(t, bank.Mint(vaultAddr, base, sdkmath.NewInt(100)))

	v := &fakeVault{bank: bank, dust: sdkmath.NewInt(5), treasury: 1_000}
	c := client.New(clientAddr, bank, v, &fakeFees{owed: sdkmath.NewInt(40)}, []types.Address{op})
	require.NoError(t, c.SetUsers(op, []types.Address{alice}, true))
	require.NoError(t, c.EnableWorkers(op, []types.Address{workerA}, true))
	return c, v, bank
}

// ============================================================================
// Configuration
// ============================================================================

func TestSetWorkerFee_BoundedByTreasuryFee(t *testing.T) {
	c, _, _ := setup(t)

	require.NoError(t, c.SetWorkerFee(op, workerA, 500))
	assert.Equal(t, uint16(500), c.WorkerFeeBps(workerA))

	err := c.SetWorkerFee(op, workerA, 9_000)
	assert.ErrorIs(t, err, types.ErrInvariantViolation)
	assert.Equal(t, uint16(500), c.WorkerFeeBps(workerA), "rejected fee leaves prior configuration")

	require.NoError(t, c.SetWorkerFee(op, workerA, 8_999))
	require.NoError(t, c.SetWorkerFee(op, workerA, 0))
	assert.Equal(t, uint16(0), c.WorkerFeeBps(workerA))

	assert.ErrorIs(t, c.SetWorkerFee(op, "worker/unknown", 1), types.ErrUnknownComponent)
}

func TestMutators_RequireOperator(t *testing.T) {
	c, _, _ := setup(t)
	before := c.Snapshot()

	assert.ErrorIs(t, c.SetWorkerFee(mallory, workerA, 1), types.ErrUnauthorized)
	assert.ErrorIs(t, c.SetUsers(mallory, []types.Address{mallory}, true), types.ErrUnauthorized)
	assert.ErrorIs(t, c.EnableWorkers(mallory, []types.Address{workerB}, true), types.ErrUnauthorized)
	assert.ErrorIs(t, c.SetOperator(mallory, mallory, true), types.ErrUnauthorized)
	_, err := c.CollectFees(mallory)
	assert.ErrorIs(t, err, types.ErrUnauthorized)

	assert.Equal(t, before, c.Snapshot())
}

func TestSetUsers_EmptyAddressAppliesNothing(t *testing.T) {
	c, _, _ := setup(t)
	err := c.SetUsers(op, []types.Address{"bob", ""}, true)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
	assert.False(t, c.IsUser("bob"))
}

func TestSetOperator_HandsOver(t *testing.T) {
	c, _, _ := setup(t)
	require.NoError(t, c.SetOperator(op, "new-ops", true))
	require.NoError(t, c.SetOperator("new-ops", op, false))
	assert.False(t, c.IsOperator(op))
	assert.True(t, c.IsOperator("new-ops"))
}

// ============================================================================
// User flows
// ============================================================================

func TestDeposit_RoutesThroughClientAndRefundsDust(t *testing.T) {
	c, v, bank := setup(t)

	res, err := c.Deposit(alice, workerA, sdkmath.NewInt(200), sdkmath.ZeroInt())
	require.NoError(t, err)
	assert.Equal(t, types.PositionID(1), res.Position.ID)
	assert.Equal(t, alice, v.lastOwner)
	assert.Equal(t, "805", bank.BalanceOf(alice, base).String(), "200 in, 5 dust back")
	assert.True(t, bank.BalanceOf(clientAddr, base).IsZero())
}

func TestDeposit_Gates(t *testing.T) {
	c, _, bank := setup(t)

	_, err := c.Deposit(mallory, workerA, sdkmath.NewInt(1), sdkmath.ZeroInt())
	assert.ErrorIs(t, err, types.ErrUnauthorized)

	_, err = c.Deposit(alice, workerB, sdkmath.NewInt(1), sdkmath.ZeroInt())
	assert.ErrorIs(t, err, types.ErrUnauthorized)

	_, err = c.Deposit(alice, workerA, sdkmath.NewInt(5_000), sdkmath.ZeroInt())
	assert.ErrorIs(t, err, types.ErrInsufficientFunds)
	assert.Equal(t, "1000", bank.BalanceOf(alice, base).String())
}

func TestWithdrawAndCollect_ActForUser(t *testing.T) {
	c, v, _ := setup(t)

	out, err := c.Withdraw(alice, workerA, 4, sdkmath.ZeroInt(), sdkmath.ZeroInt())
	require.NoError(t, err)
	assert.Equal(t, types.PositionID(4), v.lastWithdraw)
	assert.Equal(t, int64(7), out.BaseOut.Int64())

	got, err := c.CollectRewards(alice)
	require.NoError(t, err)
	assert.Equal(t, alice, v.collectFor)
	assert.Equal(t, int64(3), got.Int64())

	_, err = c.Withdraw(mallory, workerA, 4, sdkmath.ZeroInt(), sdkmath.ZeroInt())
	assert.ErrorIs(t, err, types.ErrUnauthorized)
}

func TestCollectFees_Accrues(t *testing.T) {
	c, _, _ := setup(t)

	amt, err := c.CollectFees(op)
	require.NoError(t, err)
	assert.Equal(t, int64(40), amt.Int64())

	_, err = c.CollectFees(op)
	require.NoError(t, err)
	assert.Equal(t, int64(40), c.FeeAccrued().Int64())
}

// ============================================================================
// Checkpoint and directory
// ============================================================================

func TestCheckpoint_Restores(t *testing.T) {
	c, _, _ := setup(t)
	require.NoError(t, c.SetWorkerFee(op, workerA, 100))
	before := c.Snapshot()

	restore := c.Checkpoint()
	require.NoError(t, c.SetUsers(op, []types.Address{"bob"}, true))
	require.NoError(t, c.SetWorkerFee(op, workerA, 200))
	_, err := c.CollectFees(op)
	require.NoError(t, err)
	restore()

	assert.Equal(t, before, c.Snapshot())
}

func TestDirectory_WorkerFeeBps(t *testing.T) {
	c, _, _ := setup(t)
	require.NoError(t, c.SetWorkerFee(op, workerA, 250))

	dir := client.Directory{clientAddr: c}
	assert.Equal(t, uint16(250), dir.WorkerFeeBps(clientAddr, workerA))
	assert.Equal(t, uint16(0), dir.WorkerFeeBps(clientAddr, workerB))
	assert.Equal(t, uint16(0), dir.WorkerFeeBps("client/other", workerA))

	other, _, _ := setup(t)
	require.NoError(t, other.SetWorkerFee(op, workerA, 700))
	dir["client/other"] = other
	assert.Equal(t, uint16(700), dir.MaxWorkerFeeBps(workerA))
	assert.Equal(t, uint16(0), dir.MaxWorkerFeeBps(workerB))
}
