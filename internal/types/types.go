package types

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
)

// Address identifies any protocol participant: users, clients, vaults,
// workers, strategies, pools and the fee collector all live in one namespace.
type Address string

// TokenID identifies a fungible token (base asset, pair tokens, LP tokens,
// farm reward tokens).
type TokenID string

// PositionID is the vault-wide monotonic position identifier. Zero is never
// assigned.
type PositionID uint64

// PoolKey keys the per-worker reward accumulator: one farm pool as seen by
// one worker.
type PoolKey struct {
	Worker Address `json:"worker"`
	PoolID uint64  `json:"pool_id"`
}

func (k PoolKey) String() string {
	return fmt.Sprintf("%s/%d", k.Worker, k.PoolID)
}

// BpsDenominator is 100% in basis points.
const BpsDenominator = 10_000

// Bank is the fungible-token interface every component moves value through.
type Bank interface {
	Transfer(from, to Address, token TokenID, amount sdkmath.Int) error
	Mint(to Address, token TokenID, amount sdkmath.Int) error
	Burn(from Address, token TokenID, amount sdkmath.Int) error
	BalanceOf(holder Address, token TokenID) sdkmath.Int
}

// OrZero returns v, or zero when v was never initialised (map miss).
func OrZero(v sdkmath.Int) sdkmath.Int {
	if v.IsNil() {
		return sdkmath.ZeroInt()
	}
	return v
}
