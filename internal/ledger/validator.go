package ledger

import (
	errorsmod "cosmossdk.io/errors"

	"VaultLedger/internal/types"
)

// InvariantValidator checks ledger invariants
type InvariantValidator struct {
	tracker *BalanceTracker
}

func NewInvariantValidator(tracker *BalanceTracker) *InvariantValidator {
	return &InvariantValidator{
		tracker: tracker,
	}
}

// ValidateBatchBalance verifies batch is well-formed
func (v *InvariantValidator) ValidateBatchBalance(batch *Batch) error {
	return batch.Validate()
}

// ValidateGlobalBalance verifies every token is zero-sum across holder and
// external accounts.
func (v *InvariantValidator) ValidateGlobalBalance() error {
	totals := v.tracker.ComputeGlobalBalance()

	for token, total := range totals {
		if !total.IsZero() {
			return errorsmod.Wrapf(types.ErrInvariantViolation,
				"global balance for %s is non-zero: %s", token, total)
		}
	}

	return nil
}

// ValidateHoldersNonNegative verifies no holder account is overdrawn.
func (v *InvariantValidator) ValidateHoldersNonNegative() error {
	for key := range v.tracker.balances {
		if key.Scope != AccountScopeHolder {
			continue
		}
		if err := v.tracker.ValidateNonNegative(key); err != nil {
			return err
		}
	}
	return nil
}

// Validate runs every ledger-wide invariant.
func (v *InvariantValidator) Validate() error {
	if err := v.ValidateGlobalBalance(); err != nil {
		return err
	}
	return v.ValidateHoldersNonNegative()
}
