package event

import (
	sdkmath "cosmossdk.io/math"

	"VaultLedger/internal/types"
)

type Harvest struct {
	Meta
	Worker types.Address `json:"worker"`
}

func (h *Harvest) EventType() EventType {
	return EventTypeHarvest
}

// RegisterFees credits fee balances on a collector. Only vaults may do it.
type RegisterFees struct {
	Meta
	Collector     types.Address   `json:"collector"`
	Beneficiaries []types.Address `json:"beneficiaries"`
	Amounts       []sdkmath.Int   `json:"amounts"`
}

func (r *RegisterFees) EventType() EventType {
	return EventTypeRegisterFees
}

// CollectFees pays a bounty collector its fee balance.
type CollectFees struct {
	Meta
	Collector types.Address `json:"collector"`
}

func (c *CollectFees) EventType() EventType {
	return EventTypeCollectFees
}

// ClientCollectFees pulls a client's partner fees into its accrued total.
type ClientCollectFees struct {
	Meta
	Client types.Address `json:"client"`
}

func (c *ClientCollectFees) EventType() EventType {
	return EventTypeClientCollectFees
}

// EmergencyWithdraw drains Workers[i] into Recipients[i].
type EmergencyWithdraw struct {
	Meta
	Workers    []types.Address `json:"workers"`
	Recipients []types.Address `json:"recipients"`
}

func (e *EmergencyWithdraw) EventType() EventType {
	return EventTypeEmergencyWithdraw
}
