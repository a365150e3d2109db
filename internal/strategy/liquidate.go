package strategy

import (
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"VaultLedger/internal/auth"
	"VaultLedger/internal/types"
)

// Liquidate burns staged LP and returns everything as base.
type Liquidate struct {
	common
}

var _ Strategy = (*Liquidate)(nil)

func NewLiquidate(address types.Address, amm AMM, bank types.Bank, authz auth.Port) *Liquidate {
	return &Liquidate{common{address: address, amm: amm, bank: bank, auth: authz}}
}

func (s *Liquidate) Kind() Kind { return KindLiquidate }

func (s *Liquidate) Execute(caller types.Address, p Params) (Result, error) {
	if err := s.authorize(caller); err != nil {
		return Result{}, err
	}
	if err := validatePair(p); err != nil {
		return Result{}, err
	}
	lpToken, err := s.amm.LPToken(p.Token0, p.Token1)
	if err != nil {
		return Result{}, err
	}
	lp := s.held(lpToken)
	if !lp.IsPositive() {
		return Result{}, errorsmod.Wrap(types.ErrInvalidArgument, "no LP staged")
	}

	if _, err := liquidateToBase(s.live(), p.BaseToken, p.Token0, p.Token1, lp); err != nil {
		return Result{}, err
	}
	total := s.held(p.BaseToken)
	minOut := types.OrZero(p.MinBaseOut)
	if total.LT(minOut) {
		return Result{}, errorsmod.Wrapf(types.ErrSlippageExceeded, "base out %s < min %s", total, minOut)
	}
	if err := s.bank.Transfer(s.address, p.Recipient, p.BaseToken, total); err != nil {
		return Result{}, err
	}
	dust, err := s.sweep(p.Recipient, p.Token0, p.Token1)
	if err != nil {
		return Result{}, err
	}
	return Result{LPMinted: sdkmath.ZeroInt(), BaseOut: total, Dust: dust}, nil
}

// Estimate returns the base a liquidation of lp would yield now.
func (s *Liquidate) Estimate(base, token0, token1 types.TokenID, lp sdkmath.Int) (sdkmath.Int, error) {
	if err := validatePair(Params{BaseToken: base, Token0: token0, Token1: token1}); err != nil {
		return sdkmath.Int{}, err
	}
	lp = types.OrZero(lp)
	if lp.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	return liquidateToBase(s.simulated(), base, token0, token1, lp)
}

// EstimateAmounts returns the pair tokens burning lp would return now.
func (s *Liquidate) EstimateAmounts(token0, token1 types.TokenID, lp sdkmath.Int) (sdkmath.Int, sdkmath.Int, error) {
	lp = types.OrZero(lp)
	if lp.IsZero() {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), nil
	}
	return s.simulated().RemoveLiquidity(token0, token1, lp)
}
