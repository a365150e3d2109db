package strategy

import (
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"VaultLedger/internal/auth"
	"VaultLedger/internal/types"
)

// AddBaseOnly turns staged base into LP of a pair that contains base.
type AddBaseOnly struct {
	common
}

var _ Strategy = (*AddBaseOnly)(nil)

func NewAddBaseOnly(address types.Address, amm AMM, bank types.Bank, authz auth.Port) *AddBaseOnly {
	return &AddBaseOnly{common{address: address, amm: amm, bank: bank, auth: authz}}
}

func (s *AddBaseOnly) Kind() Kind { return KindAddBaseOnly }

func (s *AddBaseOnly) counter(p Params) (types.TokenID, error) {
	if err := validatePair(p); err != nil {
		return "", err
	}
	if !containsToken(p, p.BaseToken) {
		return "", errorsmod.Wrapf(types.ErrInvalidPair,
			"pair %s/%s does not contain base %s", p.Token0, p.Token1, p.BaseToken)
	}
	if p.Token0 == p.BaseToken {
		return p.Token1, nil
	}
	return p.Token0, nil
}

func (s *AddBaseOnly) Execute(caller types.Address, p Params) (Result, error) {
	if err := s.authorize(caller); err != nil {
		return Result{}, err
	}
	other, err := s.counter(p)
	if err != nil {
		return Result{}, err
	}
	amountBase, amountOther := s.held(p.BaseToken), s.held(other)
	if amountBase.IsZero() && amountOther.IsZero() {
		return Result{}, errorsmod.Wrap(types.ErrInvalidArgument, "nothing staged")
	}

	lp, err := addSingleSided(s.live(), p.BaseToken, other, amountBase, amountOther)
	if err != nil {
		return Result{}, err
	}
	return s.deliverLP(p, lp, p.BaseToken, other)
}

func (s *AddBaseOnly) Estimate(base, token0, token1 types.TokenID, amount sdkmath.Int) (sdkmath.Int, error) {
	other, err := s.counter(Params{BaseToken: base, Token0: token0, Token1: token1})
	if err != nil {
		return sdkmath.Int{}, err
	}
	return addSingleSided(s.simulated(), base, other, types.OrZero(amount), sdkmath.ZeroInt())
}

// deliverLP checks the LP floor and sends LP plus leftovers to the
// recipient.
func (c *common) deliverLP(p Params, lp sdkmath.Int, leftovers ...types.TokenID) (Result, error) {
	minLP := types.OrZero(p.MinLP)
	if lp.LT(minLP) {
		return Result{}, errorsmod.Wrapf(types.ErrSlippageExceeded, "lp %s < min %s", lp, minLP)
	}
	lpToken, err := c.amm.LPToken(p.Token0, p.Token1)
	if err != nil {
		return Result{}, err
	}
	if err := c.bank.Transfer(c.address, p.Recipient, lpToken, lp); err != nil {
		return Result{}, err
	}
	dust, err := c.sweep(p.Recipient, leftovers...)
	if err != nil {
		return Result{}, err
	}
	return Result{LPMinted: lp, BaseOut: sdkmath.ZeroInt(), Dust: dust}, nil
}
