package dex

import (
	"sort"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	fpmath "VaultLedger/internal/math"
	"VaultLedger/internal/types"
)

// Exchange is a set of constant-product pairs sharing one fee model. Pair
// tokens are custodied in the bank under each pair's address and reserves
// always equal those balances.
type Exchange struct {
	bank  types.Bank
	fee   fpmath.FeeModel
	pairs map[pairKey]*PairState
}

func NewExchange(bank types.Bank, fee fpmath.FeeModel) (*Exchange, error) {
	if err := fee.Validate(); err != nil {
		return nil, errorsmod.Wrap(types.ErrInvalidArgument, err.Error())
	}
	return &Exchange{
		bank:  bank,
		fee:   fee,
		pairs: make(map[pairKey]*PairState),
	}, nil
}

func (e *Exchange) Fee() fpmath.FeeModel {
	return e.fee
}

// CreatePair registers an empty a/b pair.
func (e *Exchange) CreatePair(a, b types.TokenID) (PairState, error) {
	k, err := sortTokens(a, b)
	if err != nil {
		return PairState{}, err
	}
	if _, ok := e.pairs[k]; ok {
		return PairState{}, errorsmod.Wrapf(types.ErrInvalidPair, "pair %s/%s exists", a, b)
	}
	p := newPairState(k)
	e.pairs[k] = p
	return *p, nil
}

func (e *Exchange) pair(a, b types.TokenID) (*PairState, error) {
	k, err := sortTokens(a, b)
	if err != nil {
		return nil, err
	}
	p, ok := e.pairs[k]
	if !ok {
		return nil, errorsmod.Wrapf(types.ErrPoolNotFound, "%s/%s", a, b)
	}
	return p, nil
}

// GetPair returns a copy of the a/b pair.
func (e *Exchange) GetPair(a, b types.TokenID) (PairState, error) {
	p, err := e.pair(a, b)
	if err != nil {
		return PairState{}, err
	}
	return *p, nil
}

// HasPair reports whether an a/b pair exists.
func (e *Exchange) HasPair(a, b types.TokenID) bool {
	_, err := e.pair(a, b)
	return err == nil
}

// GetReserves returns the reserves of a and b in the requested order.
func (e *Exchange) GetReserves(a, b types.TokenID) (sdkmath.Int, sdkmath.Int, error) {
	p, err := e.pair(a, b)
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	ra, rb := p.ReservesFor(a)
	return ra, rb, nil
}

// LPToken returns the liquidity token of the a/b pair.
func (e *Exchange) LPToken(a, b types.TokenID) (types.TokenID, error) {
	p, err := e.pair(a, b)
	if err != nil {
		return "", err
	}
	return p.LPToken, nil
}

// Pairs lists every pair ordered by address.
func (e *Exchange) Pairs() []PairState {
	out := make([]PairState, 0, len(e.pairs))
	for _, p := range e.pairs {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// View returns a detached copy of every pair for simulation.
func (e *Exchange) View() *View {
	v := &View{fee: e.fee, pairs: make(map[pairKey]*PairState, len(e.pairs))}
	for k, p := range e.pairs {
		v.pairs[k] = p.clone()
	}
	return v
}

// SwapExactIn swaps amountIn of path[0] held by caller along path and pays
// the final output to recipient. Every hop is computed before any token
// moves.
func (e *Exchange) SwapExactIn(
	caller types.Address,
	path []types.TokenID,
	amountIn, minOut sdkmath.Int,
	recipient types.Address,
) (sdkmath.Int, error) {
	minOut = types.OrZero(minOut)
	amountIn = types.OrZero(amountIn)

	sim := &View{fee: e.fee, pairs: make(map[pairKey]*PairState, len(path))}
	hops := make([]pairKey, 0, len(path))
	for i := 0; i+1 < len(path); i++ {
		k, err := sortTokens(path[i], path[i+1])
		if err != nil {
			return sdkmath.Int{}, err
		}
		p, ok := e.pairs[k]
		if !ok {
			return sdkmath.Int{}, errorsmod.Wrapf(types.ErrPoolNotFound, "%s/%s", path[i], path[i+1])
		}
		if _, seen := sim.pairs[k]; !seen {
			sim.pairs[k] = p.clone()
		}
		hops = append(hops, k)
	}

	outs, err := sim.swapPath(path, amountIn)
	if err != nil {
		return sdkmath.Int{}, err
	}
	final := outs[len(outs)-1]
	if final.LT(minOut) {
		return sdkmath.Int{}, errorsmod.Wrapf(types.ErrSlippageExceeded, "swap out %s < min %s", final, minOut)
	}

	if err := e.bank.Transfer(caller, e.pairs[hops[0]].Address, path[0], amountIn); err != nil {
		return sdkmath.Int{}, err
	}
	for i, k := range hops {
		to := recipient
		if i+1 < len(hops) {
			to = e.pairs[hops[i+1]].Address
		}
		if err := e.bank.Transfer(e.pairs[k].Address, to, path[i+1], outs[i]); err != nil {
			return sdkmath.Int{}, err
		}
	}
	for k, p := range sim.pairs {
		e.pairs[k] = p
	}
	return final, nil
}

// AddLiquidity deposits up to aDesired/bDesired from caller at the pool
// ratio and mints LP to recipient. The first deposit locks
// MinimumLiquidity.
func (e *Exchange) AddLiquidity(
	caller types.Address,
	a, b types.TokenID,
	aDesired, bDesired, aMin, bMin sdkmath.Int,
	recipient types.Address,
) (amountA, amountB, liquidity sdkmath.Int, err error) {
	p, err := e.pair(a, b)
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, sdkmath.Int{}, err
	}
	next := p.clone()
	amountA, amountB, liquidity, locked, err := next.addLiquidity(a,
		types.OrZero(aDesired), types.OrZero(bDesired), types.OrZero(aMin), types.OrZero(bMin))
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, sdkmath.Int{}, err
	}

	if err := e.bank.Transfer(caller, p.Address, a, amountA); err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, sdkmath.Int{}, err
	}
	if err := e.bank.Transfer(caller, p.Address, b, amountB); err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, sdkmath.Int{}, err
	}
	if locked.IsPositive() {
		if err := e.bank.Mint(DeadAddress, p.LPToken, locked); err != nil {
			return sdkmath.Int{}, sdkmath.Int{}, sdkmath.Int{}, err
		}
	}
	if err := e.bank.Mint(recipient, p.LPToken, liquidity); err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, sdkmath.Int{}, err
	}
	*p = *next
	return amountA, amountB, liquidity, nil
}

// RemoveLiquidity burns liquidity held by caller and pays both underlying
// tokens to recipient, returned in (a, b) order.
func (e *Exchange) RemoveLiquidity(
	caller types.Address,
	a, b types.TokenID,
	liquidity, aMin, bMin sdkmath.Int,
	recipient types.Address,
) (amountA, amountB sdkmath.Int, err error) {
	p, err := e.pair(a, b)
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	next := p.clone()
	amountA, amountB, err = next.removeLiquidity(a, types.OrZero(liquidity), types.OrZero(aMin), types.OrZero(bMin))
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}

	if err := e.bank.Burn(caller, p.LPToken, liquidity); err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	if err := e.bank.Transfer(p.Address, recipient, a, amountA); err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	if err := e.bank.Transfer(p.Address, recipient, b, amountB); err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	*p = *next
	return amountA, amountB, nil
}

// TotalSupply returns the LP supply of the a/b pair.
func (e *Exchange) TotalSupply(a, b types.TokenID) (sdkmath.Int, error) {
	p, err := e.pair(a, b)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return p.TotalSupply, nil
}

// Checkpoint captures every pair. The returned function restores them.
func (e *Exchange) Checkpoint() (restore func()) {
	saved := make(map[pairKey]PairState, len(e.pairs))
	for k, p := range e.pairs {
		saved[k] = *p
	}
	return func() {
		e.pairs = make(map[pairKey]*PairState, len(saved))
		for k, p := range saved {
			p := p
			e.pairs[k] = &p
		}
	}
}
