package dex

import (
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	fpmath "VaultLedger/internal/math"
	"VaultLedger/internal/types"
)

// MinimumLiquidity is locked forever at the first mint of every pair.
var MinimumLiquidity = sdkmath.NewInt(1000)

// DeadAddress holds the locked minimum liquidity.
const DeadAddress types.Address = "dex/dead"

type pairKey struct {
	token0, token1 types.TokenID
}

func sortTokens(a, b types.TokenID) (pairKey, error) {
	if a == b || a == "" || b == "" {
		return pairKey{}, errorsmod.Wrapf(types.ErrInvalidPair, "%s/%s", a, b)
	}
	if a < b {
		return pairKey{a, b}, nil
	}
	return pairKey{b, a}, nil
}

// PairState is one constant-product pool: reserves, LP supply and the
// address that custodies both tokens.
type PairState struct {
	Address     types.Address `json:"address"`
	Token0      types.TokenID `json:"token0"`
	Token1      types.TokenID `json:"token1"`
	LPToken     types.TokenID `json:"lp_token"`
	Reserve0    sdkmath.Int   `json:"reserve0"`
	Reserve1    sdkmath.Int   `json:"reserve1"`
	TotalSupply sdkmath.Int   `json:"total_supply"`
}

func newPairState(k pairKey) *PairState {
	name := string(k.token0) + "-" + string(k.token1)
	return &PairState{
		Address:     types.Address("pair/" + name),
		Token0:      k.token0,
		Token1:      k.token1,
		LPToken:     types.TokenID("LP/" + name),
		Reserve0:    sdkmath.ZeroInt(),
		Reserve1:    sdkmath.ZeroInt(),
		TotalSupply: sdkmath.ZeroInt(),
	}
}

func (p *PairState) clone() *PairState {
	c := *p
	return &c
}

// Contains reports whether token is one side of the pair.
func (p *PairState) Contains(token types.TokenID) bool {
	return p.Token0 == token || p.Token1 == token
}

// Other returns the pair's counter token to token.
func (p *PairState) Other(token types.TokenID) types.TokenID {
	if p.Token0 == token {
		return p.Token1
	}
	return p.Token0
}

// ReservesFor returns (reserve of a, reserve of the other token).
func (p *PairState) ReservesFor(a types.TokenID) (sdkmath.Int, sdkmath.Int) {
	if p.Token0 == a {
		return p.Reserve0, p.Reserve1
	}
	return p.Reserve1, p.Reserve0
}

func (p *PairState) setReservesFor(a types.TokenID, ra, rb sdkmath.Int) {
	if p.Token0 == a {
		p.Reserve0, p.Reserve1 = ra, rb
		return
	}
	p.Reserve0, p.Reserve1 = rb, ra
}

// swap applies one hop of amountIn of tokenIn and returns the output.
func (p *PairState) swap(tokenIn types.TokenID, amountIn sdkmath.Int, fee fpmath.FeeModel) (sdkmath.Int, error) {
	rIn, rOut := p.ReservesFor(tokenIn)
	if !rIn.IsPositive() || !rOut.IsPositive() {
		return sdkmath.Int{}, errorsmod.Wrapf(types.ErrInsufficientLiquidity, "pair %s has no reserves", p.Address)
	}
	out := fpmath.GetAmountOut(amountIn, rIn, rOut, fee)
	if !out.IsPositive() {
		return sdkmath.Int{}, errorsmod.Wrapf(types.ErrInsufficientLiquidity,
			"swap of %s %s through %s yields nothing", amountIn, tokenIn, p.Address)
	}
	p.setReservesFor(tokenIn, rIn.Add(amountIn), rOut.Sub(out))
	return out, nil
}

// addLiquidity sizes the deposit to the pool ratio, mints LP and updates
// reserves. Amounts are returned in (a, b) order.
func (p *PairState) addLiquidity(
	tokenA types.TokenID,
	aDesired, bDesired, aMin, bMin sdkmath.Int,
) (amountA, amountB, liquidity, locked sdkmath.Int, err error) {
	rA, rB := p.ReservesFor(tokenA)

	if rA.IsZero() && rB.IsZero() {
		amountA, amountB = aDesired, bDesired
	} else {
		bOptimal := fpmath.Quote(aDesired, rA, rB)
		if bOptimal.LTE(bDesired) {
			if bOptimal.LT(bMin) {
				return zero4(errorsmod.Wrapf(types.ErrSlippageExceeded, "amount B %s < min %s", bOptimal, bMin))
			}
			amountA, amountB = aDesired, bOptimal
		} else {
			aOptimal := fpmath.Quote(bDesired, rB, rA)
			if aOptimal.GT(aDesired) {
				return zero4(errorsmod.Wrap(types.ErrInvariantViolation, "optimal A exceeds desired"))
			}
			if aOptimal.LT(aMin) {
				return zero4(errorsmod.Wrapf(types.ErrSlippageExceeded, "amount A %s < min %s", aOptimal, aMin))
			}
			amountA, amountB = aOptimal, bDesired
		}
	}

	locked = sdkmath.ZeroInt()
	if p.TotalSupply.IsZero() {
		locked = MinimumLiquidity
	}
	liquidity = fpmath.LiquidityMinted(amountA, amountB, rA, rB, p.TotalSupply, locked)
	if !liquidity.IsPositive() {
		return zero4(errorsmod.Wrapf(types.ErrInsufficientLiquidity,
			"deposit %s/%s into %s mints no liquidity", amountA, amountB, p.Address))
	}

	p.setReservesFor(tokenA, rA.Add(amountA), rB.Add(amountB))
	p.TotalSupply = p.TotalSupply.Add(liquidity).Add(locked)
	return amountA, amountB, liquidity, locked, nil
}

// removeLiquidity burns liquidity and returns the pro rata reserves in
// (a, b) order.
func (p *PairState) removeLiquidity(
	tokenA types.TokenID,
	liquidity, aMin, bMin sdkmath.Int,
) (amountA, amountB sdkmath.Int, err error) {
	if !liquidity.IsPositive() {
		return sdkmath.Int{}, sdkmath.Int{}, errorsmod.Wrap(types.ErrInvalidArgument, "liquidity must be positive")
	}
	if liquidity.GT(p.TotalSupply) {
		return sdkmath.Int{}, sdkmath.Int{}, errorsmod.Wrapf(types.ErrInsufficientLiquidity,
			"burn %s exceeds supply %s", liquidity, p.TotalSupply)
	}
	rA, rB := p.ReservesFor(tokenA)
	amountA = fpmath.MulDiv(liquidity, rA, p.TotalSupply)
	amountB = fpmath.MulDiv(liquidity, rB, p.TotalSupply)
	if !amountA.IsPositive() || !amountB.IsPositive() {
		return sdkmath.Int{}, sdkmath.Int{}, errorsmod.Wrapf(types.ErrInsufficientLiquidity,
			"burn %s of %s returns nothing", liquidity, p.LPToken)
	}
	if amountA.LT(aMin) || amountB.LT(bMin) {
		return sdkmath.Int{}, sdkmath.Int{}, errorsmod.Wrapf(types.ErrSlippageExceeded,
			"removed %s/%s below min %s/%s", amountA, amountB, aMin, bMin)
	}

	p.setReservesFor(tokenA, rA.Sub(amountA), rB.Sub(amountB))
	p.TotalSupply = p.TotalSupply.Sub(liquidity)
	return amountA, amountB, nil
}

func zero4(err error) (sdkmath.Int, sdkmath.Int, sdkmath.Int, sdkmath.Int, error) {
	return sdkmath.Int{}, sdkmath.Int{}, sdkmath.Int{}, sdkmath.Int{}, err
}
