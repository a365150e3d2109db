package strategy

import (
	"fmt"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"VaultLedger/internal/auth"
	"VaultLedger/internal/dex"
	fpmath "VaultLedger/internal/math"
	"VaultLedger/internal/types"
)

// Kind names what a strategy does.
type Kind uint8

const (
	KindAddBaseOnly Kind = iota + 1
	KindAddNoBase
	KindLiquidate
)

func (k Kind) String() string {
	switch k {
	case KindAddBaseOnly:
		return "add_base_only"
	case KindAddNoBase:
		return "add_no_base"
	case KindLiquidate:
		return "liquidate"
	default:
		return fmt.Sprintf("strategy(%d)", uint8(k))
	}
}

// AMM is the pool service strategies trade against.
type AMM interface {
	Fee() fpmath.FeeModel
	HasPair(a, b types.TokenID) bool
	GetReserves(a, b types.TokenID) (sdkmath.Int, sdkmath.Int, error)
	LPToken(a, b types.TokenID) (types.TokenID, error)
	SwapExactIn(caller types.Address, path []types.TokenID, amountIn, minOut sdkmath.Int, recipient types.Address) (sdkmath.Int, error)
	AddLiquidity(caller types.Address, a, b types.TokenID, aDesired, bDesired, aMin, bMin sdkmath.Int, recipient types.Address) (sdkmath.Int, sdkmath.Int, sdkmath.Int, error)
	RemoveLiquidity(caller types.Address, a, b types.TokenID, liquidity, aMin, bMin sdkmath.Int, recipient types.Address) (sdkmath.Int, sdkmath.Int, error)
	View() *dex.View
}

var _ AMM = (*dex.Exchange)(nil)

// Params tells a strategy which pair to work on and what to guarantee.
type Params struct {
	BaseToken  types.TokenID
	Token0     types.TokenID
	Token1     types.TokenID
	MinLP      sdkmath.Int
	MinBaseOut sdkmath.Int
	Recipient  types.Address
}

// Coin is an amount of one token.
type Coin struct {
	Token  types.TokenID `json:"token"`
	Amount sdkmath.Int   `json:"amount"`
}

// Result reports what an Execute call produced. LP and dust go to the
// recipient for deposits; base goes to the recipient for liquidation.
type Result struct {
	LPMinted sdkmath.Int
	BaseOut  sdkmath.Int
	Dust     []Coin
}

// Strategy converts between a single asset and a pair's LP position. Tokens
// are pushed with Stage and consumed by Execute, which starts from whatever
// the strategy currently holds and ends holding nothing.
type Strategy interface {
	Address() types.Address
	Kind() Kind
	Stage(from types.Address, token types.TokenID, amount sdkmath.Int) error
	Execute(caller types.Address, p Params) (Result, error)
	// Estimate returns LP minted for deposit kinds and base returned for
	// liquidation, computed on a copy of the current reserves.
	Estimate(base, token0, token1 types.TokenID, amount sdkmath.Int) (sdkmath.Int, error)
}

// common carries the collaborators every strategy needs.
type common struct {
	address types.Address
	amm     AMM
	bank    types.Bank
	auth    auth.Port
}

func (c *common) Address() types.Address { return c.address }

func (c *common) Stage(from types.Address, token types.TokenID, amount sdkmath.Int) error {
	return c.bank.Transfer(from, c.address, token, types.OrZero(amount))
}

func (c *common) authorize(caller types.Address) error {
	if !c.auth.Has(auth.KindWorker, caller) {
		return errorsmod.Wrapf(types.ErrUnauthorized, "%s is not an approved worker", caller)
	}
	if !c.auth.Has(auth.KindStrategy, c.address) {
		return errorsmod.Wrapf(types.ErrUnauthorized, "strategy %s is not approved", c.address)
	}
	return nil
}

func (c *common) held(token types.TokenID) sdkmath.Int {
	return c.bank.BalanceOf(c.address, token)
}

// sweep sends every remaining balance of tokens to recipient and reports
// what moved.
func (c *common) sweep(recipient types.Address, tokens ...types.TokenID) ([]Coin, error) {
	var dust []Coin
	seen := make(map[types.TokenID]bool, len(tokens))
	for _, t := range tokens {
		if seen[t] {
			continue
		}
		seen[t] = true
		amt := c.held(t)
		if !amt.IsPositive() {
			continue
		}
		if err := c.bank.Transfer(c.address, recipient, t, amt); err != nil {
			return nil, err
		}
		dust = append(dust, Coin{Token: t, Amount: amt})
	}
	return dust, nil
}

func (c *common) live() *livePool {
	return &livePool{amm: c.amm, self: c.address, stables: c.auth.Stables}
}

func (c *common) simulated() *viewPool {
	return &viewPool{View: c.amm.View(), stables: c.auth.Stables}
}

func containsToken(p Params, t types.TokenID) bool {
	return p.Token0 == t || p.Token1 == t
}

func validatePair(p Params) error {
	if p.Token0 == "" || p.Token1 == "" || p.Token0 == p.Token1 || p.BaseToken == "" {
		return errorsmod.Wrapf(types.ErrInvalidPair, "base %s pair %s/%s", p.BaseToken, p.Token0, p.Token1)
	}
	return nil
}
