package admin_test

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"VaultLedger/internal/admin"
	"VaultLedger/internal/auth"
	"VaultLedger/internal/types"
	"VaultLedger/internal/vault"
	"VaultLedger/internal/worker"
)

const (
	operator     types.Address = "operator"
	orchestrator types.Address = "admin"
	vaultA       types.Address = "vault/base"
	vaultB       types.Address = "vault/stable"
	workerA      types.Address = "worker/base-farm"
	workerB      types.Address = "worker/stable-farm"
)

type exitCall struct{ caller, recipient types.Address }

type fakeWorker struct {
	addr       types.Address
	vault      types.Address
	liquidated int64
	principal  int64
	calls      []exitCall
}

func (w *fakeWorker) Address() types.Address { return w.addr }
func (w *fakeWorker) Vault() types.Address   { return w.vault }

func (w *fakeWorker) EmergencyExit(caller, recipient types.Address) (worker.ExitReport, error) {
	w.calls = append(w.calls, exitCall{caller, recipient})
	return worker.ExitReport{
		Harvest:    worker.HarvestReport{Worker: w.addr, Principal: sdkmath.NewInt(w.principal)},
		Liquidated: sdkmath.NewInt(w.liquidated),
	}, nil
}

type drainCall struct {
	caller, worker, recipient types.Address
	liquidated                sdkmath.Int
}

type fakeVault struct {
	addr    types.Address
	owed    map[types.Address]int64
	failFor types.Address
	calls   []drainCall
}

func (v *fakeVault) Address() types.Address { return v.addr }

func (v *fakeVault) DrainWorker(caller, w types.Address, liquidated sdkmath.Int, recipient types.Address) (vault.DrainReport, error) {
	v.calls = append(v.calls, drainCall{caller, w, recipient, liquidated})
	if w == v.failFor {
		return vault.DrainReport{}, types.ErrInsufficientFunds
	}
	drained := sdkmath.NewInt(v.owed[w])
	return vault.DrainReport{
		Worker:     w,
		Recipient:  recipient,
		Liquidated: liquidated,
		Drained:    drained,
		Paid:       liquidated.Add(drained),
		Positions:  []types.PositionID{1, 2},
	}, nil
}

type fixture struct {
	reg    *auth.Registry
	orch   *admin.Orchestrator
	wa, wb *fakeWorker
	va, vb *fakeVault
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := auth.NewRegistry([]types.Address{operator}, func(types.Address) (types.TokenID, bool) { return "", false })
	require.NoError(t, reg.Approve(operator, auth.KindAdmin, []types.Address{orchestrator}, true))

	f := &fixture{
		reg:  reg,
		orch: admin.New(orchestrator, reg),
		wa:   &fakeWorker{addr: workerA, vault: vaultA, liquidated: 900, principal: 30},
		wb:   &fakeWorker{addr: workerB, vault: vaultB, liquidated: 400, principal: 0},
		va:   &fakeVault{addr: vaultA, owed: map[types.Address]int64{workerA: 70}},
		vb:   &fakeVault{addr: vaultB, owed: map[types.Address]int64{workerB: 5}},
	}
	f.orch.AddWorker(f.wa)
	f.orch.AddWorker(f.wb)
	f.orch.AddVault(f.va)
	f.orch.AddVault(f.vb)
	return f
}

func (f *fixture) untouched(t *testing.T) {
	t.Helper()
	assert.Empty(t, f.wa.calls)
	assert.Empty(t, f.wb.calls)
	assert.Empty(t, f.va.calls)
	assert.Empty(t, f.vb.calls)
}

// ============================================================================
// Test: drain
// ============================================================================

func TestEmergencyWithdraw_TwoWorkersToTheirRecipients(t *testing.T) {
	f := newFixture(t)

	report, err := f.orch.EmergencyWithdraw(operator,
		[]types.Address{workerB, workerA},
		[]types.Address{"rescue-b", "rescue-a"})
	require.NoError(t, err)

	require.Len(t, report.Entries, 2)
	b, a := report.Entries[0], report.Entries[1]
	assert.Equal(t, workerB, b.Worker)
	assert.Equal(t, types.Address("rescue-b"), b.Recipient)
	assert.Equal(t, int64(405), b.Paid.Int64())
	assert.Equal(t, workerA, a.Worker)
	assert.Equal(t, types.Address("rescue-a"), a.Recipient)
	assert.Equal(t, int64(30), a.Harvested.Int64())
	assert.Equal(t, int64(970), a.Paid.Int64())
	for _, e := range report.Entries {
		assert.True(t, e.Paid.Equal(e.Liquidated.Add(e.Drained)))
	}
	assert.Equal(t, int64(1375), report.Paid.Int64())

	assert.Equal(t, []exitCall{{orchestrator, vaultA}}, f.wa.calls, "liquidation lands in the owning vault")
	require.Len(t, f.va.calls, 1)
	assert.Equal(t, orchestrator, f.va.calls[0].caller)
	assert.Equal(t, types.Address("rescue-a"), f.va.calls[0].recipient)
	assert.Equal(t, int64(900), f.va.calls[0].liquidated.Int64())
}

func TestEmergencyWithdraw_Rejects(t *testing.T) {
	tests := []struct {
		name       string
		caller     types.Address
		workers    []types.Address
		recipients []types.Address
		setup      func(t *testing.T, f *fixture)
		want       error
	}{
		{
			name:       "length mismatch",
			caller:     operator,
			workers:    []types.Address{workerA, workerB},
			recipients: []types.Address{"rescue"},
			want:       types.ErrInvalidArgument,
		},
		{
			name:   "empty lists",
			caller: operator,
			want:   types.ErrInvalidArgument,
		},
		{
			name:       "worker listed twice",
			caller:     operator,
			workers:    []types.Address{workerA, workerA},
			recipients: []types.Address{"r1", "r2"},
			want:       types.ErrInvalidArgument,
		},
		{
			name:       "empty recipient",
			caller:     operator,
			workers:    []types.Address{workerA, workerB},
			recipients: []types.Address{"rescue", ""},
			want:       types.ErrInvalidArgument,
		},
		{
			name:       "unknown worker",
			caller:     operator,
			workers:    []types.Address{"worker/none"},
			recipients: []types.Address{"rescue"},
			want:       types.ErrUnknownComponent,
		},
		{
			name:       "caller not an operator",
			caller:     "mallory",
			workers:    []types.Address{workerA},
			recipients: []types.Address{"rescue"},
			want:       types.ErrUnauthorized,
		},
		{
			name:       "another admin contract registered",
			caller:     operator,
			workers:    []types.Address{workerA},
			recipients: []types.Address{"rescue"},
			setup: func(t *testing.T, f *fixture) {
				require.NoError(t, f.reg.Approve(operator, auth.KindAdmin, []types.Address{"admin/v2"}, true))
			},
			want: types.ErrUnauthorized,
		},
		{
			name:       "no admin contract registered",
			caller:     operator,
			workers:    []types.Address{workerA},
			recipients: []types.Address{"rescue"},
			setup: func(t *testing.T, f *fixture) {
				require.NoError(t, f.reg.Approve(operator, auth.KindAdmin, []types.Address{orchestrator}, false))
			},
			want: types.ErrUnauthorized,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.setup != nil {
				tt.setup(t, f)
			}
			_, err := f.orch.EmergencyWithdraw(tt.caller, tt.workers, tt.recipients)
			require.ErrorIs(t, err, tt.want)
			f.untouched(t)
		})
	}
}

func TestEmergencyWithdraw_DrainFailureSurfaces(t *testing.T) {
	f := newFixture(t)
	f.vb.failFor = workerB

	_, err := f.orch.EmergencyWithdraw(operator,
		[]types.Address{workerA, workerB},
		[]types.Address{"rescue-a", "rescue-b"})
	require.ErrorIs(t, err, types.ErrInsufficientFunds)
	assert.ErrorContains(t, err, "drain "+string(workerB))
}
