package core

import (
	errorsmod "cosmossdk.io/errors"

	"VaultLedger/internal/types"
)

// SequenceValidator enforces per-caller ordering of upstream source
// sequences. Commands carrying sequence 0 are unordered and skip the check.
// Gaps are tolerated; a sequence at or below the last accepted one is
// rejected as out of order.
// Not thread-safe; only accessed under the core lock.
type SequenceValidator struct {
	lastAccepted map[types.Address]int64
	gaps         map[types.Address]int64
}

func NewSequenceValidator() *SequenceValidator {
	return &SequenceValidator{
		lastAccepted: make(map[types.Address]int64),
		gaps:         make(map[types.Address]int64),
	}
}

// Check validates seq for caller without recording it.
func (sv *SequenceValidator) Check(caller types.Address, seq int64) error {
	if seq == 0 {
		return nil
	}
	if seq < 0 {
		return errorsmod.Wrapf(types.ErrInvalidArgument, "negative source sequence %d", seq)
	}
	if last, ok := sv.lastAccepted[caller]; ok && seq <= last {
		return errorsmod.Wrapf(types.ErrInvalidArgument,
			"out-of-order command from %s: last=%d, got=%d", caller, last, seq)
	}
	return nil
}

// Advance records seq as accepted. Call only after the command applied.
func (sv *SequenceValidator) Advance(caller types.Address, seq int64) {
	if seq == 0 {
		return
	}
	if last, ok := sv.lastAccepted[caller]; ok && seq > last+1 {
		sv.gaps[caller]++
	}
	sv.lastAccepted[caller] = seq
}

// LastAccepted returns the highest accepted sequence for caller.
func (sv *SequenceValidator) LastAccepted(caller types.Address) int64 {
	return sv.lastAccepted[caller]
}

// Gaps returns how many times caller skipped ahead.
func (sv *SequenceValidator) Gaps(caller types.Address) int64 {
	return sv.gaps[caller]
}
