package ledger

import (
	"sort"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"VaultLedger/internal/types"
)

// BalanceTracker maintains in-memory account balances and is the token bank
// every component moves value through. Every movement is a journal entry;
// holder accounts never go negative.
type BalanceTracker struct {
	balances  map[AccountKey]sdkmath.Int
	generator *JournalGenerator
}

var _ types.Bank = (*BalanceTracker)(nil)

func NewBalanceTracker(generator *JournalGenerator) *BalanceTracker {
	if generator == nil {
		generator = NewJournalGenerator()
	}
	return &BalanceTracker{
		balances:  make(map[AccountKey]sdkmath.Int),
		generator: generator,
	}
}

// Generator returns the journal generator this tracker records into.
func (bt *BalanceTracker) Generator() *JournalGenerator {
	return bt.generator
}

// ApplyJournal applies a single journal entry to balances
func (bt *BalanceTracker) ApplyJournal(j Journal) {
	bt.balances[j.DebitAccount] = bt.GetBalance(j.DebitAccount).Add(j.Amount)
	bt.balances[j.CreditAccount] = bt.GetBalance(j.CreditAccount).Sub(j.Amount)
}

// ApplyBatch applies all journals in a batch. Used on replay paths that
// reload journals instead of re-executing commands.
func (bt *BalanceTracker) ApplyBatch(batch *Batch) error {
	if err := batch.Validate(); err != nil {
		return errorsmod.Wrap(types.ErrInvariantViolation, err.Error())
	}

	for _, j := range batch.Journals {
		bt.ApplyJournal(j)
	}

	return nil
}

// GetBalance returns the current balance for an account
func (bt *BalanceTracker) GetBalance(key AccountKey) sdkmath.Int {
	return types.OrZero(bt.balances[key])
}

// === Bank ===

// Transfer moves amount of token from one holder to another. Zero amounts and
// self transfers are no-ops.
func (bt *BalanceTracker) Transfer(from, to types.Address, token types.TokenID, amount sdkmath.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if amount.IsZero() || from == to {
		return nil
	}
	credit := HolderAccount(from, token)
	if err := bt.ValidateSufficient(credit, amount); err != nil {
		return err
	}
	bt.ApplyJournal(bt.generator.record(HolderAccount(to, token), credit, amount, JournalTypeTransfer))
	return nil
}

// Mint issues new supply of token to a holder.
func (bt *BalanceTracker) Mint(to types.Address, token types.TokenID, amount sdkmath.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if amount.IsZero() {
		return nil
	}
	bt.ApplyJournal(bt.generator.record(
		HolderAccount(to, token),
		NewExternalAccountKey(SubTypeExternalIssuance, token),
		amount, JournalTypeMint,
	))
	return nil
}

// Burn removes supply of token from a holder.
func (bt *BalanceTracker) Burn(from types.Address, token types.TokenID, amount sdkmath.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if amount.IsZero() {
		return nil
	}
	credit := HolderAccount(from, token)
	if err := bt.ValidateSufficient(credit, amount); err != nil {
		return err
	}
	bt.ApplyJournal(bt.generator.record(
		NewExternalAccountKey(SubTypeExternalRedemptions, token),
		credit,
		amount, JournalTypeBurn,
	))
	return nil
}

// BalanceOf returns a holder's spendable balance.
func (bt *BalanceTracker) BalanceOf(holder types.Address, token types.TokenID) sdkmath.Int {
	return bt.GetBalance(HolderAccount(holder, token))
}

// TotalSupply is minted minus burned supply of token.
func (bt *BalanceTracker) TotalSupply(token types.TokenID) sdkmath.Int {
	issued := bt.GetBalance(NewExternalAccountKey(SubTypeExternalIssuance, token)).Neg()
	redeemed := bt.GetBalance(NewExternalAccountKey(SubTypeExternalRedemptions, token))
	return issued.Sub(redeemed)
}

func checkAmount(amount sdkmath.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return errorsmod.Wrapf(types.ErrInvalidArgument, "amount must be non-negative, got %s", amount)
	}
	return nil
}

// === Invariant Checks ===

// ValidateSufficient checks an account holds at least required.
func (bt *BalanceTracker) ValidateSufficient(key AccountKey, required sdkmath.Int) error {
	have := bt.GetBalance(key)
	if have.LT(required) {
		return errorsmod.Wrapf(types.ErrInsufficientFunds,
			"%s: have=%s, need=%s", key.AccountPath(), have, required)
	}
	return nil
}

// ValidateNonNegative checks that a specific account balance is >= 0
func (bt *BalanceTracker) ValidateNonNegative(key AccountKey) error {
	balance := bt.GetBalance(key)
	if balance.IsNegative() {
		return errorsmod.Wrapf(types.ErrInvariantViolation,
			"account %s has negative balance: %s", key.AccountPath(), balance)
	}
	return nil
}

// ComputeGlobalBalance sums all account balances per token (should be 0 for
// a zero-sum ledger)
func (bt *BalanceTracker) ComputeGlobalBalance() map[types.TokenID]sdkmath.Int {
	totals := make(map[types.TokenID]sdkmath.Int)

	for key, balance := range bt.balances {
		totals[key.Token] = types.OrZero(totals[key.Token]).Add(balance)
	}

	return totals
}

// Snapshot returns a copy of all balances (for state hashing)
func (bt *BalanceTracker) Snapshot() map[AccountKey]sdkmath.Int {
	snapshot := make(map[AccountKey]sdkmath.Int, len(bt.balances))
	for k, v := range bt.balances {
		snapshot[k] = v
	}
	return snapshot
}

// SortedKeys returns every account key with a recorded balance, ordered by
// account path.
func (bt *BalanceTracker) SortedKeys() []AccountKey {
	keys := make([]AccountKey, 0, len(bt.balances))
	for k := range bt.balances {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].AccountPath() < keys[j].AccountPath()
	})
	return keys
}

// Checkpoint captures balances and the open journal batch. The returned
// function restores both.
func (bt *BalanceTracker) Checkpoint() (restore func()) {
	saved := bt.Snapshot()
	pending := bt.generator.pending()
	return func() {
		bt.balances = saved
		bt.generator.truncate(pending)
	}
}
