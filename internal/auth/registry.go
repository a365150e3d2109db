package auth

import (
	"fmt"
	"sort"
	"strings"

	errorsmod "cosmossdk.io/errors"

	"VaultLedger/internal/types"
)

// Kind is a capability a participant can be approved for.
type Kind uint8

const (
	KindVault Kind = iota + 1
	KindWorker
	KindStrategy
	KindClient
	KindHarvester
	KindBountyCollector
	KindAdmin
)

var kindNames = map[Kind]string{
	KindVault:           "vault",
	KindWorker:          "worker",
	KindStrategy:        "strategy",
	KindClient:          "client",
	KindHarvester:       "harvester",
	KindBountyCollector: "bounty_collector",
	KindAdmin:           "admin",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind maps a capability name to its Kind.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, errorsmod.Wrapf(types.ErrInvalidArgument, "unknown capability kind %q", s)
}

// Port is the read side of the registry every component is injected with.
type Port interface {
	Has(kind Kind, addr types.Address) bool
	IsOperator(addr types.Address) bool
	AdminContract() (types.Address, bool)
	VaultForToken(token types.TokenID) (types.Address, bool)
	Stables() []types.TokenID
}

// VaultTokenResolver returns the base token of a known vault.
type VaultTokenResolver func(vault types.Address) (types.TokenID, bool)

// Registry holds the capability sets. Only operators mutate it; every
// mutation validates all of its elements before applying any of them.
type Registry struct {
	approved     map[Kind]map[types.Address]struct{}
	admin        types.Address
	operators    map[types.Address]struct{}
	tokenToVault map[types.TokenID]types.Address
	stables      []types.TokenID

	vaultToken VaultTokenResolver
}

var _ Port = (*Registry)(nil)

func NewRegistry(operators []types.Address, vaultToken VaultTokenResolver) *Registry {
	r := &Registry{
		approved:     make(map[Kind]map[types.Address]struct{}),
		operators:    make(map[types.Address]struct{}),
		tokenToVault: make(map[types.TokenID]types.Address),
		vaultToken:   vaultToken,
	}
	for k := range kindNames {
		if k != KindAdmin {
			r.approved[k] = make(map[types.Address]struct{})
		}
	}
	for _, op := range operators {
		r.operators[op] = struct{}{}
	}
	return r
}

func (r *Registry) requireOperator(caller types.Address) error {
	if !r.IsOperator(caller) {
		return errorsmod.Wrapf(types.ErrUnauthorized, "%s is not a registry operator", caller)
	}
	return nil
}

// Approve grants or revokes kind for every address in addrs.
func (r *Registry) Approve(caller types.Address, kind Kind, addrs []types.Address, approved bool) error {
	if err := r.requireOperator(caller); err != nil {
		return err
	}
	if _, ok := kindNames[kind]; !ok {
		return errorsmod.Wrapf(types.ErrInvalidArgument, "unknown capability kind %d", kind)
	}
	if len(addrs) == 0 {
		return errorsmod.Wrap(types.ErrInvalidArgument, "no addresses given")
	}
	for _, a := range addrs {
		if a == "" {
			return errorsmod.Wrap(types.ErrInvalidArgument, "empty address")
		}
	}

	switch kind {
	case KindAdmin:
		return r.approveAdmin(addrs, approved)
	case KindVault:
		return r.approveVaults(addrs, approved)
	}

	set := r.approved[kind]
	for _, a := range addrs {
		if approved {
			set[a] = struct{}{}
		} else {
			delete(set, a)
		}
	}
	return nil
}

func (r *Registry) approveAdmin(addrs []types.Address, approved bool) error {
	if len(addrs) != 1 {
		return errorsmod.Wrapf(types.ErrInvalidArgument, "admin approval takes one address, got %d", len(addrs))
	}
	if approved {
		r.admin = addrs[0]
	} else if r.admin == addrs[0] {
		r.admin = ""
	}
	return nil
}

// approveVaults keeps tokenToVault a bijection with the approved vault set.
// A second vault for an already mapped token is rejected, never overwritten.
func (r *Registry) approveVaults(addrs []types.Address, approved bool) error {
	tokens := make([]types.TokenID, len(addrs))
	staged := make(map[types.TokenID]types.Address)
	for i, a := range addrs {
		token, ok := r.vaultToken(a)
		if !ok {
			return errorsmod.Wrapf(types.ErrUnknownComponent, "vault %s", a)
		}
		tokens[i] = token
		if !approved {
			continue
		}
		if cur, mapped := r.tokenToVault[token]; mapped && cur != a {
			return errorsmod.Wrapf(types.ErrInvariantViolation,
				"token %s already routed to vault %s", token, cur)
		}
		if prev, dup := staged[token]; dup && prev != a {
			return errorsmod.Wrapf(types.ErrInvariantViolation,
				"vaults %s and %s both claim token %s", prev, a, token)
		}
		staged[token] = a
	}

	set := r.approved[KindVault]
	for i, a := range addrs {
		if approved {
			set[a] = struct{}{}
			r.tokenToVault[tokens[i]] = a
			continue
		}
		delete(set, a)
		if r.tokenToVault[tokens[i]] == a {
			delete(r.tokenToVault, tokens[i])
		}
	}
	return nil
}

// WhitelistOperator adds or removes a registry operator.
func (r *Registry) WhitelistOperator(caller, addr types.Address, ok bool) error {
	if err := r.requireOperator(caller); err != nil {
		return err
	}
	if addr == "" {
		return errorsmod.Wrap(types.ErrInvalidArgument, "empty address")
	}
	if ok {
		r.operators[addr] = struct{}{}
	} else {
		delete(r.operators, addr)
	}
	return nil
}

// SetStables replaces the stable-token routing hint.
func (r *Registry) SetStables(caller types.Address, tokens []types.TokenID) error {
	if err := r.requireOperator(caller); err != nil {
		return err
	}
	r.stables = append([]types.TokenID(nil), tokens...)
	return nil
}

// === Reads ===

func (r *Registry) Has(kind Kind, addr types.Address) bool {
	if kind == KindAdmin {
		return r.admin != "" && r.admin == addr
	}
	_, ok := r.approved[kind][addr]
	return ok
}

func (r *Registry) IsOperator(addr types.Address) bool {
	_, ok := r.operators[addr]
	return ok
}

func (r *Registry) AdminContract() (types.Address, bool) {
	return r.admin, r.admin != ""
}

func (r *Registry) VaultForToken(token types.TokenID) (types.Address, bool) {
	v, ok := r.tokenToVault[token]
	return v, ok
}

func (r *Registry) Stables() []types.TokenID {
	return append([]types.TokenID(nil), r.stables...)
}

// State is a sorted, comparable copy of the registry.
type State struct {
	Approved     map[string][]types.Address
	Admin        types.Address
	Operators    []types.Address
	TokenToVault map[types.TokenID]types.Address
	Stables      []types.TokenID
}

// Snapshot returns the registry contents in deterministic order.
func (r *Registry) Snapshot() State {
	s := State{
		Approved:     make(map[string][]types.Address, len(r.approved)),
		Admin:        r.admin,
		Operators:    sortedAddrs(r.operators),
		TokenToVault: make(map[types.TokenID]types.Address, len(r.tokenToVault)),
		Stables:      append([]types.TokenID(nil), r.stables...),
	}
	for k, set := range r.approved {
		s.Approved[k.String()] = sortedAddrs(set)
	}
	for t, v := range r.tokenToVault {
		s.TokenToVault[t] = v
	}
	return s
}

// Checkpoint captures the registry. The returned function restores it.
func (r *Registry) Checkpoint() (restore func()) {
	approved := make(map[Kind]map[types.Address]struct{}, len(r.approved))
	for k, set := range r.approved {
		approved[k] = copySet(set)
	}
	admin := r.admin
	operators := copySet(r.operators)
	tokenToVault := make(map[types.TokenID]types.Address, len(r.tokenToVault))
	for t, v := range r.tokenToVault {
		tokenToVault[t] = v
	}
	stables := r.stables
	return func() {
		r.approved = approved
		r.admin = admin
		r.operators = operators
		r.tokenToVault = tokenToVault
		r.stables = stables
	}
}

func copySet(in map[types.Address]struct{}) map[types.Address]struct{} {
	out := make(map[types.Address]struct{}, len(in))
	for a := range in {
		out[a] = struct{}{}
	}
	return out
}

func sortedAddrs(set map[types.Address]struct{}) []types.Address {
	out := make([]types.Address, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
