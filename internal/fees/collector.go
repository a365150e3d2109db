package fees

import (
	"sort"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"VaultLedger/internal/auth"
	"VaultLedger/internal/types"
)

// Balance is one beneficiary's accrued fee.
type Balance struct {
	Beneficiary types.Address `json:"beneficiary"`
	Amount      sdkmath.Int   `json:"amount"`
}

// Collector custodies treasury and client fees in one token until their
// beneficiaries collect them. Registration is bookkeeping only: the tokens
// are moved to the collector's address by whoever takes the fee.
type Collector struct {
	address   types.Address
	token     types.TokenID
	bank      types.Bank
	auth      auth.Port
	fees      map[types.Address]sdkmath.Int
	threshold sdkmath.Int
}

func NewCollector(address types.Address, token types.TokenID, bank types.Bank, authz auth.Port) *Collector {
	return &Collector{
		address:   address,
		token:     token,
		bank:      bank,
		auth:      authz,
		fees:      make(map[types.Address]sdkmath.Int),
		threshold: sdkmath.ZeroInt(),
	}
}

func (c *Collector) Address() types.Address { return c.address }
func (c *Collector) Token() types.TokenID { return c.token }
func (c *Collector) BountyThreshold() sdkmath.Int { return c.threshold }

// FeesOf returns a beneficiary's uncollected balance.
func (c *Collector) FeesOf(beneficiary types.Address) sdkmath.Int {
	return types.OrZero(c.fees[beneficiary])
}

// Outstanding is the sum of every uncollected balance. It never exceeds
// what the collector holds.
func (c *Collector) Outstanding() sdkmath.Int {
	sum := sdkmath.ZeroInt()
	for _, v := range c.fees {
		sum = sum.Add(v)
	}
	return sum
}

// RegisterFees credits amounts[i] to beneficiaries[i]. Only an approved
// vault may register. The whole batch is validated before any credit.
func (c *Collector) RegisterFees(caller types.Address, beneficiaries []types.Address, amounts []sdkmath.Int) error {
	if !c.auth.Has(auth.KindVault, caller) {
		return errorsmod.Wrapf(types.ErrUnauthorized, "%s is not an approved vault", caller)
	}
	if len(beneficiaries) != len(amounts) {
		return errorsmod.Wrapf(types.ErrInvalidArgument,
			"%d beneficiaries for %d amounts", len(beneficiaries), len(amounts))
	}
	for i, b := range beneficiaries {
		if b == "" {
			return errorsmod.Wrapf(types.ErrInvalidArgument, "beneficiary %d is empty", i)
		}
		if types.OrZero(amounts[i]).IsNegative() {
			return errorsmod.Wrapf(types.ErrInvalidArgument, "negative fee %s for %s", amounts[i], b)
		}
	}
	for i, b := range beneficiaries {
		amt := types.OrZero(amounts[i])
		if amt.IsZero() {
			continue
		}
		c.fees[b] = c.FeesOf(b).Add(amt)
	}
	return nil
}

// Collect pays caller its own balance and zeroes it.
func (c *Collector) Collect(caller types.Address) (sdkmath.Int, error) {
	if !c.auth.Has(auth.KindBountyCollector, caller) {
		return sdkmath.Int{}, errorsmod.Wrapf(types.ErrUnauthorized, "%s is not an approved bounty collector", caller)
	}
	owed := c.FeesOf(caller)
	if owed.LT(c.threshold) || !owed.IsPositive() {
		return sdkmath.Int{}, errorsmod.Wrapf(types.ErrBelowThreshold,
			"%s has %s, threshold %s", caller, owed, c.threshold)
	}
	if err := c.bank.Transfer(c.address, caller, c.token, owed); err != nil {
		return sdkmath.Int{}, err
	}
	delete(c.fees, caller)
	return owed, nil
}

// SetBountyThreshold sets the minimum collectable balance. Operators only.
func (c *Collector) SetBountyThreshold(caller types.Address, amount sdkmath.Int) error {
	if !c.auth.IsOperator(caller) {
		return errorsmod.Wrapf(types.ErrUnauthorized, "%s is not an operator", caller)
	}
	amount = types.OrZero(amount)
	if amount.IsNegative() {
		return errorsmod.Wrapf(types.ErrInvalidArgument, "threshold %s", amount)
	}
	c.threshold = amount
	return nil
}

// Balances lists every non-zero balance by beneficiary.
func (c *Collector) Balances() []Balance {
	out := make([]Balance, 0, len(c.fees))
	for b, v := range c.fees {
		out = append(out, Balance{Beneficiary: b, Amount: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Beneficiary < out[j].Beneficiary })
	return out
}

func (c *Collector) Checkpoint() (restore func()) {
	fees := make(map[types.Address]sdkmath.Int, len(c.fees))
	for b, v := range c.fees {
		fees[b] = v
	}
	threshold := c.threshold
	return func() {
		c.fees = fees
		c.threshold = threshold
	}
}
