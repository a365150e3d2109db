package state

import (
	"sort"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"VaultLedger/internal/admin"
	"VaultLedger/internal/auth"
	"VaultLedger/internal/client"
	"VaultLedger/internal/dex"
	"VaultLedger/internal/farm"
	"VaultLedger/internal/fees"
	"VaultLedger/internal/ledger"
	fpmath "VaultLedger/internal/math"
	"VaultLedger/internal/strategy"
	"VaultLedger/internal/types"
	"VaultLedger/internal/vault"
	"VaultLedger/internal/worker"
)

// World owns every protocol component. It is not safe for concurrent use;
// the core serializes access to it.
type World struct {
	Bank       *ledger.BalanceTracker
	Exchange   *dex.Exchange
	Farm       *farm.Farm
	Registry   *auth.Registry
	Strategies *strategy.Book
	Admin      *admin.Orchestrator

	vaults     map[types.Address]*vault.Vault
	workers    map[types.Address]*worker.Worker
	clients    client.Directory
	collectors map[types.Address]*fees.Collector
	byToken    map[types.TokenID]*fees.Collector
}

// NewWorld builds the deployment described by g. Token movements made
// during genesis go through gen but are not part of any batch.
func NewWorld(g *Genesis, gen *ledger.JournalGenerator) (*World, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	fee := g.SwapFee
	if fee == (fpmath.FeeModel{}) {
		fee = fpmath.DefaultFee
	}

	w := &World{
		Bank:       ledger.NewBalanceTracker(gen),
		Strategies: strategy.NewBook(),
		vaults:     make(map[types.Address]*vault.Vault),
		workers:    make(map[types.Address]*worker.Worker),
		clients:    make(client.Directory),
		collectors: make(map[types.Address]*fees.Collector),
		byToken:    make(map[types.TokenID]*fees.Collector),
	}
	ex, err := dex.NewExchange(w.Bank, fee)
	if err != nil {
		return nil, err
	}
	w.Exchange = ex
	w.Registry = auth.NewRegistry(g.Operators, func(a types.Address) (types.TokenID, bool) {
		v, ok := w.vaults[a]
		if !ok {
			return "", false
		}
		return v.BaseToken(), true
	})
	w.Farm = farm.New(w.Bank, g.Farm.Address, g.Farm.RewardToken)

	b := &builder{w: w, g: g, op: g.Operators[0], farmPools: make(map[types.TokenID]uint64)}
	for _, step := range []func() error{
		b.balances,
		b.pools,
		b.farm,
		b.strategies,
		b.vaults,
		b.workers,
		b.clients,
		b.admin,
		b.approvals,
	} {
		if err := step(); err != nil {
			return nil, errorsmod.Wrap(err, "genesis")
		}
	}
	return w, nil
}

type builder struct {
	w         *World
	g         *Genesis
	op        types.Address
	farmPools map[types.TokenID]uint64
}

func (b *builder) balances() error {
	for _, bal := range b.g.Balances {
		if err := b.w.Bank.Mint(bal.Holder, bal.Token, bal.Amount.Value()); err != nil {
			return errorsmod.Wrapf(err, "balance %s/%s", bal.Holder, bal.Token)
		}
	}
	return nil
}

func (b *builder) pools() error {
	for _, p := range b.g.Pools {
		if _, err := b.w.Exchange.CreatePair(p.TokenA, p.TokenB); err != nil {
			return err
		}
		amtA, amtB := p.AmountA.Value(), p.AmountB.Value()
		if amtA.IsZero() && amtB.IsZero() {
			continue
		}
		provider := p.Provider
		if provider == "" {
			provider = b.op
		}
		if err := b.w.Bank.Mint(provider, p.TokenA, amtA); err != nil {
			return err
		}
		if err := b.w.Bank.Mint(provider, p.TokenB, amtB); err != nil {
			return err
		}
		zero := sdkmath.ZeroInt()
		if _, _, _, err := b.w.Exchange.AddLiquidity(provider, p.TokenA, p.TokenB, amtA, amtB, zero, zero, provider); err != nil {
			return errorsmod.Wrapf(err, "seed %s/%s", p.TokenA, p.TokenB)
		}
	}
	return nil
}

func (b *builder) farm() error {
	for _, fp := range b.g.Farm.Pools {
		lp, err := b.w.Exchange.LPToken(fp.TokenA, fp.TokenB)
		if err != nil {
			return err
		}
		id, err := b.w.Farm.AddPool(lp, fp.RewardPerBlock.Value())
		if err != nil {
			return err
		}
		b.farmPools[lp] = id
	}
	return nil
}

func (b *builder) strategies() error {
	addrs := make([]types.Address, 0, len(b.g.Strategies))
	for _, sc := range b.g.Strategies {
		var s strategy.Strategy
		switch sc.Kind {
		case strategy.KindAddBaseOnly.String():
			s = strategy.NewAddBaseOnly(sc.Address, b.w.Exchange, b.w.Bank, b.w.Registry)
		case strategy.KindAddNoBase.String():
			s = strategy.NewAddNoBase(sc.Address, b.w.Exchange, b.w.Bank, b.w.Registry)
		case strategy.KindLiquidate.String():
			s = strategy.NewLiquidate(sc.Address, b.w.Exchange, b.w.Bank, b.w.Registry)
		default:
			return errorsmod.Wrapf(types.ErrInvalidArgument, "strategy %s has unknown kind %q", sc.Address, sc.Kind)
		}
		if err := b.w.Strategies.Add(s); err != nil {
			return err
		}
		addrs = append(addrs, sc.Address)
	}
	return b.approve(auth.KindStrategy, addrs, true)
}

func (b *builder) vaults() error {
	addrs := make([]types.Address, 0, len(b.g.Vaults))
	for _, vc := range b.g.Vaults {
		col := fees.NewCollector(vc.FeeCollector, vc.BaseToken, b.w.Bank, b.w.Registry)
		if err := col.SetBountyThreshold(b.op, vc.BountyThreshold.Value()); err != nil {
			return err
		}
		v := vault.New(vc.Address, vc.BaseToken, b.w.Bank, b.w.Registry, col)
		v.BindClients(b.w.clients)
		b.w.vaults[vc.Address] = v
		b.w.collectors[col.Address()] = col
		b.w.byToken[vc.BaseToken] = col
		addrs = append(addrs, vc.Address)
	}
	if err := b.approve(auth.KindVault, addrs, true); err != nil {
		return err
	}
	return b.w.Registry.SetStables(b.op, b.g.Stables)
}

func (b *builder) workers() error {
	addrs := make([]types.Address, 0, len(b.g.Workers))
	for _, wc := range b.g.Workers {
		v := b.w.vaults[wc.Vault]
		lp, err := b.w.Exchange.LPToken(wc.Token0, wc.Token1)
		if err != nil {
			return errorsmod.Wrapf(err, "worker %s", wc.Address)
		}
		poolID, ok := b.farmPools[lp]
		if !ok {
			return errorsmod.Wrapf(types.ErrPoolNotFound, "no farm pool for %s (worker %s)", lp, wc.Address)
		}
		wk, err := worker.New(worker.Config{
			Address:           wc.Address,
			BaseToken:         v.BaseToken(),
			Token0:            wc.Token0,
			Token1:            wc.Token1,
			LPToken:           lp,
			FarmPoolID:        poolID,
			ReinvestPath:      wc.ReinvestPath,
			ReinvestThreshold: wc.ReinvestThreshold.Value(),
			TreasuryFeeBps:    wc.TreasuryFeeBps,
			Treasury:          wc.Treasury,
			FeeCollector:      b.w.byToken[v.BaseToken()].Address(),
			Vault:             v.Address(),
			Strategies: worker.Strategies{
				AddBase:   wc.Strategies.AddBase,
				AddNoBase: wc.Strategies.AddNoBase,
				Liquidate: wc.Strategies.Liquidate,
			},
		}, b.w.Bank, b.w.Registry, b.w.Farm, b.w.Exchange, b.w.Strategies)
		if err != nil {
			return err
		}
		wk.BindVault(v)
		wk.BindClientFees(b.w.clients)
		if err := v.AttachWorker(wk); err != nil {
			return err
		}
		b.w.workers[wc.Address] = wk
		addrs = append(addrs, wc.Address)
	}
	return b.approve(auth.KindWorker, addrs, true)
}

func (b *builder) clients() error {
	addrs := make([]types.Address, 0, len(b.g.Clients))
	for _, cc := range b.g.Clients {
		v := b.w.vaults[cc.Vault]
		c := client.New(cc.Address, b.w.Bank, v, b.w.byToken[v.BaseToken()], cc.Operators)
		op := cc.Operators[0]
		if err := c.SetUsers(op, cc.Users, true); err != nil {
			return err
		}
		if err := c.EnableWorkers(op, cc.Workers, true); err != nil {
			return err
		}
		for _, wAddr := range sortedKeys(cc.FeeBps) {
			if err := c.SetWorkerFee(op, wAddr, cc.FeeBps[wAddr]); err != nil {
				return errorsmod.Wrapf(err, "client %s", cc.Address)
			}
		}
		b.w.clients[cc.Address] = c
		addrs = append(addrs, cc.Address)
	}
	if err := b.approve(auth.KindClient, addrs, true); err != nil {
		return err
	}
	// Clients pull their partner fees from the collector themselves.
	return b.approve(auth.KindBountyCollector, addrs, true)
}

func (b *builder) admin() error {
	if b.g.Admin == "" {
		return nil
	}
	o := admin.New(b.g.Admin, b.w.Registry)
	for _, wk := range b.w.workers {
		o.AddWorker(wk)
	}
	for _, v := range b.w.vaults {
		o.AddVault(v)
	}
	b.w.Admin = o
	return b.approve(auth.KindAdmin, []types.Address{b.g.Admin}, true)
}

func (b *builder) approvals() error {
	names := make([]string, 0, len(b.g.Approvals))
	for name := range b.g.Approvals {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		kind, err := auth.ParseKind(name)
		if err != nil {
			return err
		}
		if err := b.approve(kind, b.g.Approvals[name], true); err != nil {
			return err
		}
	}
	return nil
}

// approve grants kind to addrs; an empty list is a no-op at genesis.
func (b *builder) approve(kind auth.Kind, addrs []types.Address, ok bool) error {
	if len(addrs) == 0 {
		return nil
	}
	return b.w.Registry.Approve(b.op, kind, addrs, ok)
}

func sortedKeys[V any](m map[types.Address]V) []types.Address {
	out := make([]types.Address, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ============================================================================
// Lookups
// ============================================================================

func (w *World) Vault(addr types.Address) (*vault.Vault, error) {
	v, ok := w.vaults[addr]
	if !ok {
		return nil, errorsmod.Wrapf(types.ErrUnknownComponent, "vault %s", addr)
	}
	return v, nil
}

func (w *World) Worker(addr types.Address) (*worker.Worker, error) {
	wk, ok := w.workers[addr]
	if !ok {
		return nil, errorsmod.Wrapf(types.ErrUnknownComponent, "worker %s", addr)
	}
	return wk, nil
}

// VaultOf returns the vault a worker belongs to.
func (w *World) VaultOf(workerAddr types.Address) (*vault.Vault, error) {
	wk, err := w.Worker(workerAddr)
	if err != nil {
		return nil, err
	}
	return w.Vault(wk.Vault())
}

func (w *World) Client(addr types.Address) (*client.Client, error) {
	c, ok := w.clients[addr]
	if !ok {
		return nil, errorsmod.Wrapf(types.ErrUnknownComponent, "client %s", addr)
	}
	return c, nil
}

func (w *World) Collector(addr types.Address) (*fees.Collector, error) {
	c, ok := w.collectors[addr]
	if !ok {
		return nil, errorsmod.Wrapf(types.ErrUnknownComponent, "fee collector %s", addr)
	}
	return c, nil
}

// CollectorFor returns the fee collector for a base token.
func (w *World) CollectorFor(token types.TokenID) (*fees.Collector, error) {
	c, ok := w.byToken[token]
	if !ok {
		return nil, errorsmod.Wrapf(types.ErrUnknownComponent, "fee collector for %s", token)
	}
	return c, nil
}

func (w *World) Orchestrator() (*admin.Orchestrator, error) {
	if w.Admin == nil {
		return nil, errorsmod.Wrap(types.ErrUnknownComponent, "no admin contract deployed")
	}
	return w.Admin, nil
}

func (w *World) Vaults() []*vault.Vault {
	out := make([]*vault.Vault, 0, len(w.vaults))
	for _, a := range sortedKeys(w.vaults) {
		out = append(out, w.vaults[a])
	}
	return out
}

func (w *World) Workers() []*worker.Worker {
	out := make([]*worker.Worker, 0, len(w.workers))
	for _, a := range sortedKeys(w.workers) {
		out = append(out, w.workers[a])
	}
	return out
}

func (w *World) Clients() []*client.Client {
	out := make([]*client.Client, 0, len(w.clients))
	for _, a := range sortedKeys(w.clients) {
		out = append(out, w.clients[a])
	}
	return out
}

func (w *World) Collectors() []*fees.Collector {
	out := make([]*fees.Collector, 0, len(w.collectors))
	for _, a := range sortedKeys(w.collectors) {
		out = append(out, w.collectors[a])
	}
	return out
}

// Checkpoint captures every mutable component. The returned function
// restores all of them, so a failed command leaves no partial effect.
func (w *World) Checkpoint() (restore func()) {
	restores := []func(){
		w.Bank.Checkpoint(),
		w.Exchange.Checkpoint(),
		w.Farm.Checkpoint(),
		w.Registry.Checkpoint(),
	}
	for _, v := range w.Vaults() {
		restores = append(restores, v.Checkpoint())
	}
	for _, wk := range w.Workers() {
		restores = append(restores, wk.Checkpoint())
	}
	for _, c := range w.Clients() {
		restores = append(restores, c.Checkpoint())
	}
	for _, c := range w.Collectors() {
		restores = append(restores, c.Checkpoint())
	}
	return func() {
		for i := len(restores) - 1; i >= 0; i-- {
			restores[i]()
		}
	}
}
