package strategy

import (
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"VaultLedger/internal/auth"
	"VaultLedger/internal/types"
)

// AddNoBase turns staged base into LP of a pair that excludes base, routing
// through whichever pair token pools directly with base.
type AddNoBase struct {
	common
}

var _ Strategy = (*AddNoBase)(nil)

func NewAddNoBase(address types.Address, amm AMM, bank types.Bank, authz auth.Port) *AddNoBase {
	return &AddNoBase{common{address: address, amm: amm, bank: bank, auth: authz}}
}

func (s *AddNoBase) Kind() Kind { return KindAddNoBase }

func (s *AddNoBase) check(p Params) error {
	if err := validatePair(p); err != nil {
		return err
	}
	if containsToken(p, p.BaseToken) {
		return errorsmod.Wrapf(types.ErrInvalidPair,
			"pair %s/%s contains base %s", p.Token0, p.Token1, p.BaseToken)
	}
	return nil
}

func (s *AddNoBase) Execute(caller types.Address, p Params) (Result, error) {
	if err := s.authorize(caller); err != nil {
		return Result{}, err
	}
	if err := s.check(p); err != nil {
		return Result{}, err
	}
	live := s.live()
	mid, other, err := intermediate(live, p.BaseToken, p.Token0, p.Token1)
	if err != nil {
		return Result{}, err
	}
	amountBase, heldMid, heldOther := s.held(p.BaseToken), s.held(mid), s.held(other)
	if amountBase.IsZero() && heldMid.IsZero() && heldOther.IsZero() {
		return Result{}, errorsmod.Wrap(types.ErrInvalidArgument, "nothing staged")
	}

	lp, err := addThroughIntermediate(live, p.BaseToken, p.Token0, p.Token1, amountBase, heldMid, heldOther, mid, other)
	if err != nil {
		return Result{}, err
	}
	return s.deliverLP(p, lp, p.BaseToken, mid, other)
}

func (s *AddNoBase) Estimate(base, token0, token1 types.TokenID, amount sdkmath.Int) (sdkmath.Int, error) {
	if err := s.check(Params{BaseToken: base, Token0: token0, Token1: token1}); err != nil {
		return sdkmath.Int{}, err
	}
	view := s.simulated()
	mid, other, err := intermediate(view, base, token0, token1)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return addThroughIntermediate(view, base, token0, token1,
		types.OrZero(amount), sdkmath.ZeroInt(), sdkmath.ZeroInt(), mid, other)
}
