package types

import (
	"errors"

	errorsmod "cosmossdk.io/errors"
)

const Codespace = "vaultledger"

// Failure taxonomy. Every error surfaced to a caller wraps exactly one of
// these so transports can report the specific reason.
var (
	ErrUnauthorized       = errorsmod.Register(Codespace, 2, "unauthorized")
	ErrSlippageExceeded   = errorsmod.Register(Codespace, 3, "slippage exceeded")
	ErrBelowThreshold     = errorsmod.Register(Codespace, 4, "below threshold")
	ErrPoolNotFound       = errorsmod.Register(Codespace, 5, "pool not found")
	ErrInvalidPair        = errorsmod.Register(Codespace, 6, "invalid pair")
	ErrInvariantViolation = errorsmod.Register(Codespace, 7, "invariant violation")

	ErrInsufficientFunds     = errorsmod.Register(Codespace, 10, "insufficient funds")
	ErrInsufficientLiquidity = errorsmod.Register(Codespace, 11, "insufficient liquidity")
	ErrInvalidArgument       = errorsmod.Register(Codespace, 12, "invalid argument")
	ErrPositionNotFound      = errorsmod.Register(Codespace, 13, "position not found")
	ErrReentrantCall         = errorsmod.Register(Codespace, 14, "reentrant call")
	ErrUnknownComponent      = errorsmod.Register(Codespace, 15, "unknown component")
)

// Reason returns the taxonomy name of err, or "internal" when err does not
// wrap a registered error.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	for _, known := range []*errorsmod.Error{
		ErrUnauthorized, ErrSlippageExceeded, ErrBelowThreshold, ErrPoolNotFound,
		ErrInvalidPair, ErrInvariantViolation, ErrInsufficientFunds,
		ErrInsufficientLiquidity, ErrInvalidArgument, ErrPositionNotFound,
		ErrReentrantCall, ErrUnknownComponent,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "internal"
}
