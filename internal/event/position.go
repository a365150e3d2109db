package event

import (
	sdkmath "cosmossdk.io/math"

	"VaultLedger/internal/types"
)

// Deposit opens a new position for the caller through a client.
type Deposit struct {
	Meta
	Client types.Address `json:"client"`
	Worker types.Address `json:"worker"`
	Amount sdkmath.Int   `json:"amount"`
	MinLP  sdkmath.Int   `json:"min_lp"`
}

func (d *Deposit) EventType() EventType {
	return EventTypeDeposit
}

// Withdraw exits Share of a position (zero exits all of it). With Client
// set the withdrawal goes through that client's facade, otherwise the owner
// calls the vault directly.
type Withdraw struct {
	Meta
	Client     types.Address    `json:"client,omitempty"`
	Worker     types.Address    `json:"worker"`
	PositionID types.PositionID `json:"position_id"`
	Share      sdkmath.Int      `json:"share"`
	MinOut     sdkmath.Int      `json:"min_out"`
}

func (w *Withdraw) EventType() EventType {
	return EventTypeWithdraw
}

// CollectRewards pays the caller's accrued rewards from a vault, either
// directly or through a client.
type CollectRewards struct {
	Meta
	Client types.Address `json:"client,omitempty"`
	Vault  types.Address `json:"vault,omitempty"`
}

func (c *CollectRewards) EventType() EventType {
	return EventTypeCollectRewards
}
