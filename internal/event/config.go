package event

import (
	sdkmath "cosmossdk.io/math"

	"VaultLedger/internal/types"
)

// Approve grants or revokes a registry capability. Kind is the capability
// name ("vault", "worker", "strategy", "client", "harvester",
// "bounty_collector", "admin").
type Approve struct {
	Meta
	Kind      string          `json:"kind"`
	Addresses []types.Address `json:"addresses"`
	Approved  bool            `json:"approved"`
}

func (a *Approve) EventType() EventType {
	return EventTypeApprove
}

type WhitelistOperator struct {
	Meta
	Operator types.Address `json:"operator"`
	Approved bool          `json:"approved"`
}

func (w *WhitelistOperator) EventType() EventType {
	return EventTypeWhitelistOperator
}

type SetStables struct {
	Meta
	Tokens []types.TokenID `json:"tokens"`
}

func (s *SetStables) EventType() EventType {
	return EventTypeSetStables
}

type SetTreasuryFee struct {
	Meta
	Worker types.Address `json:"worker"`
	Bps    uint16        `json:"bps"`
}

func (s *SetTreasuryFee) EventType() EventType {
	return EventTypeSetTreasuryFee
}

type SetStrategies struct {
	Meta
	Worker    types.Address `json:"worker"`
	AddBase   types.Address `json:"add_base"`
	AddNoBase types.Address `json:"add_no_base"`
	Liquidate types.Address `json:"liquidate"`
}

func (s *SetStrategies) EventType() EventType {
	return EventTypeSetStrategies
}

type SetBountyThreshold struct {
	Meta
	Collector types.Address `json:"collector"`
	Amount    sdkmath.Int   `json:"amount"`
}

func (s *SetBountyThreshold) EventType() EventType {
	return EventTypeSetBountyThreshold
}

// SetWorkerFee sets a client's partner cut on one worker.
type SetWorkerFee struct {
	Meta
	Client types.Address `json:"client"`
	Worker types.Address `json:"worker"`
	Bps    uint16        `json:"bps"`
}

func (s *SetWorkerFee) EventType() EventType {
	return EventTypeSetWorkerFee
}

type SetUsers struct {
	Meta
	Client   types.Address   `json:"client"`
	Users    []types.Address `json:"users"`
	Approved bool            `json:"approved"`
}

func (s *SetUsers) EventType() EventType {
	return EventTypeSetUsers
}

type EnableWorkers struct {
	Meta
	Client  types.Address   `json:"client"`
	Workers []types.Address `json:"workers"`
	Enabled bool            `json:"enabled"`
}

func (e *EnableWorkers) EventType() EventType {
	return EventTypeEnableWorkers
}

type SetClientOperator struct {
	Meta
	Client   types.Address `json:"client"`
	Operator types.Address `json:"operator"`
	Approved bool          `json:"approved"`
}

func (s *SetClientOperator) EventType() EventType {
	return EventTypeSetClientOperator
}
