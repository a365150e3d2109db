package vault

import (
	sdkmath "cosmossdk.io/math"

	"VaultLedger/internal/types"
)

// Position is one deposit. Owner, client and worker never change after
// creation; a fully withdrawn position keeps its record with a zero share.
type Position struct {
	ID          types.PositionID `json:"id"`
	Owner       types.Address    `json:"owner"`
	Client      types.Address    `json:"client"`
	Worker      types.Address    `json:"worker"`
	StakedShare sdkmath.Int      `json:"staked_share"`
	Principal   sdkmath.Int      `json:"principal"`
}

// Live reports whether the position still has stake on its worker.
func (p Position) Live() bool {
	return p.StakedShare.IsPositive()
}

// PositionValue is a position priced in the base token at current reserves.
type PositionValue struct {
	Position
	Value sdkmath.Int `json:"value"`
}

// arena stores positions by id. Ids start at 1 and are never reused.
type arena struct {
	items []Position
}

func (a *arena) next() types.PositionID {
	return types.PositionID(len(a.items) + 1)
}

func (a *arena) add(p Position) Position {
	p.ID = a.next()
	a.items = append(a.items, p)
	return p
}

func (a *arena) get(id types.PositionID) (*Position, bool) {
	if id == 0 || uint64(id) > uint64(len(a.items)) {
		return nil, false
	}
	return &a.items[id-1], true
}

// each visits positions in id order until fn returns false.
func (a *arena) each(fn func(p *Position) bool) {
	for i := range a.items {
		if !fn(&a.items[i]) {
			return
		}
	}
}

func (a *arena) clone() arena {
	return arena{items: append([]Position(nil), a.items...)}
}
