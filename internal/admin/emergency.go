package admin

import (
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"VaultLedger/internal/auth"
	"VaultLedger/internal/types"
	"VaultLedger/internal/vault"
	"VaultLedger/internal/worker"
)

// Worker is the emergency surface of a worker.
type Worker interface {
	Address() types.Address
	Vault() types.Address
	EmergencyExit(caller, recipient types.Address) (worker.ExitReport, error)
}

// Vault is the emergency surface of a vault.
type Vault interface {
	Address() types.Address
	DrainWorker(caller, worker types.Address, liquidated sdkmath.Int, recipient types.Address) (vault.DrainReport, error)
}

// Entry is the outcome for one drained worker.
type Entry struct {
	Worker     types.Address      `json:"worker"`
	Recipient  types.Address      `json:"recipient"`
	Harvested  sdkmath.Int        `json:"harvested"`
	Liquidated sdkmath.Int        `json:"liquidated"`
	Drained    sdkmath.Int        `json:"drained"`
	Paid       sdkmath.Int        `json:"paid"`
	Positions  []types.PositionID `json:"positions"`
}

// Report lists every drained worker in call order.
type Report struct {
	Entries []Entry     `json:"entries"`
	Paid    sdkmath.Int `json:"paid"`
}

// Orchestrator is the admin contract. It liquidates whole workers at once
// and hands everything they owed to the chosen recipients.
type Orchestrator struct {
	address types.Address
	auth    auth.Port
	workers map[types.Address]Worker
	vaults  map[types.Address]Vault
}

func New(address types.Address, authz auth.Port) *Orchestrator {
	return &Orchestrator{
		address: address,
		auth:    authz,
		workers: make(map[types.Address]Worker),
		vaults:  make(map[types.Address]Vault),
	}
}

func (o *Orchestrator) Address() types.Address { return o.address }

func (o *Orchestrator) AddWorker(w Worker) { o.workers[w.Address()] = w }
func (o *Orchestrator) AddVault(v Vault) { o.vaults[v.Address()] = v }

// EmergencyWithdraw drains workers[i] into recipients[i]. Each worker is
// force-harvested and fully liquidated into its vault; the vault then
// closes the worker's positions and pays out liquidation plus every reward
// still owed on them. The caller must be a registry operator and this
// orchestrator the registered admin contract.
func (o *Orchestrator) EmergencyWithdraw(caller types.Address, workers, recipients []types.Address) (Report, error) {
	if !o.auth.IsOperator(caller) {
		return Report{}, errorsmod.Wrapf(types.ErrUnauthorized, "%s is not an operator", caller)
	}
	if admin, ok := o.auth.AdminContract(); !ok || admin != o.address {
		return Report{}, errorsmod.Wrapf(types.ErrUnauthorized, "%s is not the registered admin contract", o.address)
	}
	if len(workers) == 0 || len(workers) != len(recipients) {
		return Report{}, errorsmod.Wrapf(types.ErrInvalidArgument,
			"%d workers for %d recipients", len(workers), len(recipients))
	}

	type target struct {
		w Worker
		v Vault
	}
	targets := make([]target, len(workers))
	seen := make(map[types.Address]struct{}, len(workers))
	for i, addr := range workers {
		if _, dup := seen[addr]; dup {
			return Report{}, errorsmod.Wrapf(types.ErrInvalidArgument, "worker %s listed twice", addr)
		}
		seen[addr] = struct{}{}
		if recipients[i] == "" {
			return Report{}, errorsmod.Wrapf(types.ErrInvalidArgument, "no recipient for %s", addr)
		}
		w, ok := o.workers[addr]
		if !ok {
			return Report{}, errorsmod.Wrapf(types.ErrUnknownComponent, "worker %s", addr)
		}
		v, ok := o.vaults[w.Vault()]
		if !ok {
			return Report{}, errorsmod.Wrapf(types.ErrUnknownComponent, "vault %s of worker %s", w.Vault(), addr)
		}
		targets[i] = target{w: w, v: v}
	}

	report := Report{Entries: make([]Entry, 0, len(targets)), Paid: sdkmath.ZeroInt()}
	for i, t := range targets {
		exit, err := t.w.EmergencyExit(o.address, t.v.Address())
		if err != nil {
			return Report{}, errorsmod.Wrapf(err, "exit %s", t.w.Address())
		}
		drain, err := t.v.DrainWorker(o.address, t.w.Address(), exit.Liquidated, recipients[i])
		if err != nil {
			return Report{}, errorsmod.Wrapf(err, "drain %s", t.w.Address())
		}
		report.Entries = append(report.Entries, Entry{
			Worker:     t.w.Address(),
			Recipient:  recipients[i],
			Harvested:  exit.Harvest.Principal,
			Liquidated: drain.Liquidated,
			Drained:    drain.Drained,
			Paid:       drain.Paid,
			Positions:  drain.Positions,
		})
		report.Paid = report.Paid.Add(drain.Paid)
	}
	return report, nil
}
