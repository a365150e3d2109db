package strategy

import (
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"VaultLedger/internal/dex"
	fpmath "VaultLedger/internal/math"
	"VaultLedger/internal/types"
)

// pool is what a plan runs against: the live exchange on Execute, a
// detached view on Estimate. Both paths share every line of plan code.
type pool interface {
	Fee() fpmath.FeeModel
	HasPair(a, b types.TokenID) bool
	GetReserves(a, b types.TokenID) (sdkmath.Int, sdkmath.Int, error)
	Swap(path []types.TokenID, amountIn sdkmath.Int) (sdkmath.Int, error)
	AddLiquidity(a, b types.TokenID, aDesired, bDesired sdkmath.Int) (sdkmath.Int, sdkmath.Int, sdkmath.Int, error)
	RemoveLiquidity(a, b types.TokenID, lp sdkmath.Int) (sdkmath.Int, sdkmath.Int, error)
	Stables() []types.TokenID
}

// livePool trades for the strategy itself: every output lands back at self.
type livePool struct {
	amm     AMM
	self    types.Address
	stables func() []types.TokenID
}

func (l *livePool) Fee() fpmath.FeeModel { return l.amm.Fee() }
func (l *livePool) HasPair(a, b types.TokenID) bool { return l.amm.HasPair(a, b) }
func (l *livePool) Stables() []types.TokenID { return l.stables() }

func (l *livePool) GetReserves(a, b types.TokenID) (sdkmath.Int, sdkmath.Int, error) {
	return l.amm.GetReserves(a, b)
}

func (l *livePool) Swap(path []types.TokenID, amountIn sdkmath.Int) (sdkmath.Int, error) {
	return l.amm.SwapExactIn(l.self, path, amountIn, sdkmath.ZeroInt(), l.self)
}

func (l *livePool) AddLiquidity(a, b types.TokenID, aDesired, bDesired sdkmath.Int) (sdkmath.Int, sdkmath.Int, sdkmath.Int, error) {
	return l.amm.AddLiquidity(l.self, a, b, aDesired, bDesired, sdkmath.ZeroInt(), sdkmath.ZeroInt(), l.self)
}

func (l *livePool) RemoveLiquidity(a, b types.TokenID, lp sdkmath.Int) (sdkmath.Int, sdkmath.Int, error) {
	return l.amm.RemoveLiquidity(l.self, a, b, lp, sdkmath.ZeroInt(), sdkmath.ZeroInt(), l.self)
}

type viewPool struct {
	*dex.View
	stables func() []types.TokenID
}

func (v *viewPool) Stables() []types.TokenID { return v.stables() }

// addSingleSided swaps the optimal part of amountIn into other, then adds
// both balances to the in/other pair. An empty pool takes the balances as
// they are.
func addSingleSided(p pool, in, other types.TokenID, amountIn, amountOther sdkmath.Int) (sdkmath.Int, error) {
	rIn, rOther, err := p.GetReserves(in, other)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if rIn.IsPositive() && rOther.IsPositive() {
		x := fpmath.OptimalSwapAmount(rIn, amountIn, p.Fee())
		if x.IsPositive() {
			out, err := p.Swap([]types.TokenID{in, other}, x)
			if err != nil {
				return sdkmath.Int{}, err
			}
			amountIn = amountIn.Sub(x)
			amountOther = amountOther.Add(out)
		}
	}
	_, _, lp, err := p.AddLiquidity(in, other, amountIn, amountOther)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return lp, nil
}

// intermediate picks the pair token reachable from base in one hop.
func intermediate(p pool, base, token0, token1 types.TokenID) (mid, other types.TokenID, err error) {
	switch {
	case p.HasPair(base, token0):
		return token0, token1, nil
	case p.HasPair(base, token1):
		return token1, token0, nil
	}
	return "", "", errorsmod.Wrapf(types.ErrPoolNotFound,
		"no pool links %s to %s/%s", base, token0, token1)
}

// addThroughIntermediate converts amountBase into the pair token that pools
// with base, then adds single-sided on the target pair.
func addThroughIntermediate(
	p pool,
	base, token0, token1 types.TokenID,
	amountBase, heldMid, heldOther sdkmath.Int,
	mid, other types.TokenID,
) (sdkmath.Int, error) {
	if !p.HasPair(token0, token1) {
		return sdkmath.Int{}, errorsmod.Wrapf(types.ErrPoolNotFound, "%s/%s", token0, token1)
	}
	amountMid := heldMid
	if amountBase.IsPositive() {
		out, err := p.Swap([]types.TokenID{base, mid}, amountBase)
		if err != nil {
			return sdkmath.Int{}, err
		}
		amountMid = amountMid.Add(out)
	}
	return addSingleSided(p, mid, other, amountMid, heldOther)
}

// routeToBase finds a swap path from token to base: direct, through the
// position's counter token, then through a stable.
func routeToBase(p pool, token, base, counter types.TokenID) ([]types.TokenID, error) {
	if p.HasPair(token, base) {
		return []types.TokenID{token, base}, nil
	}
	if counter != base && counter != token && p.HasPair(token, counter) && p.HasPair(counter, base) {
		return []types.TokenID{token, counter, base}, nil
	}
	for _, s := range p.Stables() {
		if s == token || s == base {
			continue
		}
		if p.HasPair(token, s) && p.HasPair(s, base) {
			return []types.TokenID{token, s, base}, nil
		}
	}
	return nil, errorsmod.Wrapf(types.ErrPoolNotFound, "no route from %s to %s", token, base)
}

func toBase(p pool, token, base, counter types.TokenID, amount sdkmath.Int) (sdkmath.Int, error) {
	if !amount.IsPositive() {
		return sdkmath.ZeroInt(), nil
	}
	if token == base {
		return amount, nil
	}
	path, err := routeToBase(p, token, base, counter)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return p.Swap(path, amount)
}

// liquidateToBase burns lp and converts both sides to base, token0 first.
func liquidateToBase(p pool, base, token0, token1 types.TokenID, lp sdkmath.Int) (sdkmath.Int, error) {
	a0, a1, err := p.RemoveLiquidity(token0, token1, lp)
	if err != nil {
		return sdkmath.Int{}, err
	}
	b0, err := toBase(p, token0, base, token1, a0)
	if err != nil {
		return sdkmath.Int{}, err
	}
	b1, err := toBase(p, token1, base, token0, a1)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return b0.Add(b1), nil
}
