package dex

import (
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	fpmath "VaultLedger/internal/math"
	"VaultLedger/internal/types"
)

// View is a detached copy of every pair. Operations on it follow the same
// rules as the Exchange but move no tokens, so a quote taken from a View
// equals what the Exchange would do against the same reserves.
type View struct {
	fee   fpmath.FeeModel
	pairs map[pairKey]*PairState
}

func (v *View) Fee() fpmath.FeeModel {
	return v.fee
}

// Pair returns the pair for two tokens, if any.
func (v *View) Pair(a, b types.TokenID) (*PairState, bool) {
	k, err := sortTokens(a, b)
	if err != nil {
		return nil, false
	}
	p, ok := v.pairs[k]
	return p, ok
}

// HasPair reports whether an a/b pair exists in the view.
func (v *View) HasPair(a, b types.TokenID) bool {
	_, ok := v.Pair(a, b)
	return ok
}

func (v *View) pair(a, b types.TokenID) (*PairState, error) {
	k, err := sortTokens(a, b)
	if err != nil {
		return nil, err
	}
	p, ok := v.pairs[k]
	if !ok {
		return nil, errorsmod.Wrapf(types.ErrPoolNotFound, "%s/%s", a, b)
	}
	return p, nil
}

// GetReserves returns the reserves of a and b in the requested order.
func (v *View) GetReserves(a, b types.TokenID) (sdkmath.Int, sdkmath.Int, error) {
	p, err := v.pair(a, b)
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	ra, rb := p.ReservesFor(a)
	return ra, rb, nil
}

// Swap simulates swapping amountIn along path.
func (v *View) Swap(path []types.TokenID, amountIn sdkmath.Int) (sdkmath.Int, error) {
	outs, err := v.swapPath(path, amountIn)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return outs[len(outs)-1], nil
}

// swapPath applies every hop and returns the amount leaving each hop.
func (v *View) swapPath(path []types.TokenID, amountIn sdkmath.Int) ([]sdkmath.Int, error) {
	if len(path) < 2 {
		return nil, errorsmod.Wrapf(types.ErrInvalidArgument, "swap path needs two tokens, got %d", len(path))
	}
	if !amountIn.IsPositive() {
		return nil, errorsmod.Wrap(types.ErrInvalidArgument, "swap amount must be positive")
	}
	outs := make([]sdkmath.Int, 0, len(path)-1)
	in := amountIn
	for i := 0; i+1 < len(path); i++ {
		p, err := v.pair(path[i], path[i+1])
		if err != nil {
			return nil, err
		}
		out, err := p.swap(path[i], in, v.fee)
		if err != nil {
			return nil, err
		}
		outs = append(outs, out)
		in = out
	}
	return outs, nil
}

// AddLiquidity simulates a router add against the view.
func (v *View) AddLiquidity(a, b types.TokenID, aDesired, bDesired sdkmath.Int) (sdkmath.Int, sdkmath.Int, sdkmath.Int, error) {
	p, err := v.pair(a, b)
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, sdkmath.Int{}, err
	}
	amountA, amountB, lp, _, err := p.addLiquidity(a, aDesired, bDesired, sdkmath.ZeroInt(), sdkmath.ZeroInt())
	return amountA, amountB, lp, err
}

// RemoveLiquidity simulates burning lp of the a/b pair.
func (v *View) RemoveLiquidity(a, b types.TokenID, lp sdkmath.Int) (sdkmath.Int, sdkmath.Int, error) {
	p, err := v.pair(a, b)
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	return p.removeLiquidity(a, lp, sdkmath.ZeroInt(), sdkmath.ZeroInt())
}
