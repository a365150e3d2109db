package auth_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"VaultLedger/internal/auth"
	"VaultLedger/internal/types"
)

const op types.Address = "operator"

func newRegistry() *auth.Registry {
	vaults := map[types.Address]types.TokenID{
		"vault-base":  "BASE",
		"vault-base2": "BASE",
		"vault-usd":   "USD",
	}
	return auth.NewRegistry([]types.Address{op}, func(v types.Address) (types.TokenID, bool) {
		t, ok := vaults[v]
		return t, ok
	})
}

func TestApprove_Kinds(t *testing.T) {
	r := newRegistry()
	require.NoError(t, r.Approve(op, auth.KindWorker, []types.Address{"w1", "w2"}, true))
	assert.True(t, r.Has(auth.KindWorker, "w1"))
	assert.True(t, r.Has(auth.KindWorker, "w2"))
	assert.False(t, r.Has(auth.KindStrategy, "w1"))

	require.NoError(t, r.Approve(op, auth.KindWorker, []types.Address{"w1"}, false))
	assert.False(t, r.Has(auth.KindWorker, "w1"))
	assert.True(t, r.Has(auth.KindWorker, "w2"))
}

func TestApprove_Admin(t *testing.T) {
	r := newRegistry()
	_, ok := r.AdminContract()
	assert.False(t, ok)

	require.NoError(t, r.Approve(op, auth.KindAdmin, []types.Address{"admin"}, true))
	admin, ok := r.AdminContract()
	require.True(t, ok)
	assert.Equal(t, types.Address("admin"), admin)
	assert.True(t, r.Has(auth.KindAdmin, "admin"))

	err := r.Approve(op, auth.KindAdmin, []types.Address{"a", "b"}, true)
	require.ErrorIs(t, err, types.ErrInvalidArgument)

	require.NoError(t, r.Approve(op, auth.KindAdmin, []types.Address{"admin"}, false))
	assert.False(t, r.Has(auth.KindAdmin, "admin"))
}

func TestApprove_VaultMapsToken(t *testing.T) {
	r := newRegistry()
	require.NoError(t, r.Approve(op, auth.KindVault, []types.Address{"vault-base"}, true))

	v, ok := r.VaultForToken("BASE")
	require.True(t, ok)
	assert.Equal(t, types.Address("vault-base"), v)

	// Re-approving the same vault is idempotent.
	require.NoError(t, r.Approve(op, auth.KindVault, []types.Address{"vault-base"}, true))

	require.NoError(t, r.Approve(op, auth.KindVault, []types.Address{"vault-base"}, false))
	_, ok = r.VaultForToken("BASE")
	assert.False(t, ok)
}

func TestApprove_SecondVaultForTokenFailsClosed(t *testing.T) {
	r := newRegistry()
	require.NoError(t, r.Approve(op, auth.KindVault, []types.Address{"vault-base"}, true))
	before := r.Snapshot()

	err := r.Approve(op, auth.KindVault, []types.Address{"vault-usd", "vault-base2"}, true)
	require.ErrorIs(t, err, types.ErrInvariantViolation)

	// Nothing from the rejected call was applied, including vault-usd.
	if diff := cmp.Diff(before, r.Snapshot()); diff != "" {
		t.Errorf("registry changed on rejected approval (-before +after):\n%s", diff)
	}
}

func TestApprove_TwoVaultsSameTokenInOneCall(t *testing.T) {
	r := newRegistry()
	err := r.Approve(op, auth.KindVault, []types.Address{"vault-base", "vault-base2"}, true)
	require.ErrorIs(t, err, types.ErrInvariantViolation)
	assert.False(t, r.Has(auth.KindVault, "vault-base"))
}

func TestApprove_UnknownVault(t *testing.T) {
	r := newRegistry()
	err := r.Approve(op, auth.KindVault, []types.Address{"nope"}, true)
	require.ErrorIs(t, err, types.ErrUnknownComponent)
}

func TestMutators_RequireOperator(t *testing.T) {
	r := newRegistry()
	require.NoError(t, r.Approve(op, auth.KindClient, []types.Address{"client"}, true))
	before := r.Snapshot()

	calls := map[string]func() error{
		"approve": func() error {
			return r.Approve("mallory", auth.KindWorker, []types.Address{"w"}, true)
		},
		"whitelist": func() error { return r.WhitelistOperator("mallory", "mallory", true) },
		"stables":   func() error { return r.SetStables("mallory", []types.TokenID{"USD"}) },
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			require.ErrorIs(t, call(), types.ErrUnauthorized)
			if diff := cmp.Diff(before, r.Snapshot()); diff != "" {
				t.Errorf("state changed (-before +after):\n%s", diff)
			}
		})
	}
}

func TestWhitelistOperator(t *testing.T) {
	r := newRegistry()
	require.NoError(t, r.WhitelistOperator(op, "op2", true))
	assert.True(t, r.IsOperator("op2"))
	require.NoError(t, r.Approve("op2", auth.KindHarvester, []types.Address{"h"}, true))

	require.NoError(t, r.WhitelistOperator(op, "op2", false))
	assert.False(t, r.IsOperator("op2"))
}

func TestSetStables_CopiesInput(t *testing.T) {
	r := newRegistry()
	in := []types.TokenID{"USD", "USDC"}
	require.NoError(t, r.SetStables(op, in))
	in[0] = "X"
	assert.Equal(t, []types.TokenID{"USD", "USDC"}, r.Stables())
}

func TestCheckpoint_Restores(t *testing.T) {
	r := newRegistry()
	before := r.Snapshot()
	restore := r.Checkpoint()

	require.NoError(t, r.Approve(op, auth.KindVault, []types.Address{"vault-usd"}, true))
	require.NoError(t, r.WhitelistOperator(op, "op2", true))
	restore()

	if diff := cmp.Diff(before, r.Snapshot()); diff != "" {
		t.Errorf("checkpoint did not restore (-before +after):\n%s", diff)
	}
}

func TestParseKind(t *testing.T) {
	k, err := auth.ParseKind("Bounty_Collector")
	require.NoError(t, err)
	assert.Equal(t, auth.KindBountyCollector, k)

	_, err = auth.ParseKind("root")
	require.ErrorIs(t, err, types.ErrInvalidArgument)
}
