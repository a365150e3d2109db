package event

import (
	sdkmath "cosmossdk.io/math"

	"VaultLedger/internal/types"
)

// AdvanceFarm moves the farm clock forward. Operators only.
type AdvanceFarm struct {
	Meta
	Blocks uint64 `json:"blocks"`
}

func (a *AdvanceFarm) EventType() EventType {
	return EventTypeAdvanceFarm
}

// Mint issues tokens from the external boundary. Operators only.
type Mint struct {
	Meta
	To     types.Address `json:"to"`
	Token  types.TokenID `json:"token"`
	Amount sdkmath.Int   `json:"amount"`
}

func (m *Mint) EventType() EventType {
	return EventTypeMint
}

// SeedLiquidity adds the caller's tokens to a pair and credits the LP to the
// caller.
type SeedLiquidity struct {
	Meta
	TokenA  types.TokenID `json:"token_a"`
	TokenB  types.TokenID `json:"token_b"`
	AmountA sdkmath.Int   `json:"amount_a"`
	AmountB sdkmath.Int   `json:"amount_b"`
}

func (s *SeedLiquidity) EventType() EventType {
	return EventTypeSeedLiquidity
}

// Swap trades the caller's tokens along Path.
type Swap struct {
	Meta
	Path     []types.TokenID `json:"path"`
	AmountIn sdkmath.Int     `json:"amount_in"`
	MinOut   sdkmath.Int     `json:"min_out"`
}

func (s *Swap) EventType() EventType {
	return EventTypeSwap
}
