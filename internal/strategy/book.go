package strategy

import (
	"sort"

	errorsmod "cosmossdk.io/errors"

	"VaultLedger/internal/types"
)

// Book resolves strategy addresses to deployed strategies.
type Book struct {
	byAddr map[types.Address]Strategy
}

func NewBook(strategies ...Strategy) *Book {
	b := &Book{byAddr: make(map[types.Address]Strategy, len(strategies))}
	for _, s := range strategies {
		b.byAddr[s.Address()] = s
	}
	return b
}

// Add deploys s. Addresses are unique.
func (b *Book) Add(s Strategy) error {
	if _, ok := b.byAddr[s.Address()]; ok {
		return errorsmod.Wrapf(types.ErrInvalidArgument, "strategy %s already deployed", s.Address())
	}
	b.byAddr[s.Address()] = s
	return nil
}

func (b *Book) Get(addr types.Address) (Strategy, bool) {
	s, ok := b.byAddr[addr]
	return s, ok
}

// All lists every strategy ordered by address.
func (b *Book) All() []Strategy {
	out := make([]Strategy, 0, len(b.byAddr))
	for _, s := range b.byAddr {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address() < out[j].Address() })
	return out
}
