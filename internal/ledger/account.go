package ledger

import (
	"fmt"

	"VaultLedger/internal/types"
)

// AccountScope represents the top-level account namespace
type AccountScope uint8

const (
	AccountScopeHolder AccountScope = iota
	AccountScopeExternal
)

// AccountSubType represents the account purpose. Holder accounts have a
// single sub-type; external accounts mark the supply boundary.
type AccountSubType uint8

const (
	SubTypeHolding AccountSubType = iota

	// External sub-types
	SubTypeExternalIssuance
	SubTypeExternalRedemptions
)

// AccountKey is the in-memory key for balance tracking.
type AccountKey struct {
	Scope   AccountScope
	Holder  types.Address
	SubType AccountSubType
	Token   types.TokenID
}

// HolderAccount is the spendable balance of one participant in one token.
func HolderAccount(holder types.Address, token types.TokenID) AccountKey {
	return AccountKey{
		Scope:   AccountScopeHolder,
		Holder:  holder,
		SubType: SubTypeHolding,
		Token:   token,
	}
}

// NewExternalAccountKey creates a key for external boundary accounts
func NewExternalAccountKey(subType AccountSubType, token types.TokenID) AccountKey {
	return AccountKey{
		Scope:   AccountScopeExternal,
		SubType: subType,
		Token:   token,
	}
}

// AccountPath returns the string representation for storage/logging
func (k AccountKey) AccountPath() string {
	switch k.Scope {
	case AccountScopeHolder:
		return fmt.Sprintf("holder:%s:%s", k.Holder, k.Token)
	case AccountScopeExternal:
		return fmt.Sprintf("external:%s:%s", k.subTypeName(), k.Token)
	}
	return "unknown"
}

func (k AccountKey) subTypeName() string {
	switch k.SubType {
	case SubTypeHolding:
		return "holding"
	case SubTypeExternalIssuance:
		return "issuance"
	case SubTypeExternalRedemptions:
		return "redemptions"
	default:
		return "unknown"
	}
}
