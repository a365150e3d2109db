package vault

import (
	"sort"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"VaultLedger/internal/auth"
	fpmath "VaultLedger/internal/math"
	"VaultLedger/internal/strategy"
	"VaultLedger/internal/types"
	"VaultLedger/internal/worker"
)

// Worker is the part of a worker the vault drives.
type Worker interface {
	Address() types.Address
	BaseToken() types.TokenID
	Vault() types.Address
	PoolKey() types.PoolKey
	DepositStrategy() types.Address
	Strategies() worker.Strategies
	TreasuryFeeBps() uint16
	Work(caller types.Address, id types.PositionID, p worker.Payload) (worker.WorkResult, error)
	EstimateWithdraw(share sdkmath.Int) (sdkmath.Int, error)
}

var _ Worker = (*worker.Worker)(nil)

// FeeRegistrar books fees the vault has moved to the collector.
type FeeRegistrar interface {
	Address() types.Address
	RegisterFees(caller types.Address, beneficiaries []types.Address, amounts []sdkmath.Int) error
}

// ClientFees returns the partner fee a client charges on a worker's yield.
type ClientFees interface {
	WorkerFeeBps(client, worker types.Address) uint16
}

// DepositResult reports a new position.
type DepositResult struct {
	Position Position        `json:"position"`
	Dust     []strategy.Coin `json:"dust,omitempty"`
}

// WithdrawResult reports a withdrawal from a position.
type WithdrawResult struct {
	Position Position    `json:"position"`
	BaseOut  sdkmath.Int `json:"base_out"`
}

// Distribution reports how one harvest was spread over positions.
type Distribution struct {
	Key         types.PoolKey `json:"key"`
	Principal   sdkmath.Int   `json:"principal"`
	TreasuryFee sdkmath.Int   `json:"treasury_fee"`
	ClientFees  sdkmath.Int   `json:"client_fees"`
	Credited    sdkmath.Int   `json:"credited"`
	Residual    sdkmath.Int   `json:"residual"`
	Positions   int           `json:"positions"`
}

// DrainReport reports an emergency drain of one worker.
type DrainReport struct {
	Worker     types.Address      `json:"worker"`
	Recipient  types.Address      `json:"recipient"`
	Liquidated sdkmath.Int        `json:"liquidated"`
	Drained    sdkmath.Int        `json:"drained"`
	Paid       sdkmath.Int        `json:"paid"`
	Positions  []types.PositionID `json:"positions"`
	Owners     []types.Address    `json:"owners"`
}

// Vault is the position ledger for one base token. It owns positions,
// routes deposits and withdrawals through workers, and accrues harvested
// yield per owner.
type Vault struct {
	address   types.Address
	baseToken types.TokenID

	bank    types.Bank
	auth    auth.Port
	fees    FeeRegistrar
	clients ClientFees
	workers map[types.Address]Worker

	positions        arena
	rewards          map[types.PoolKey]sdkmath.Int
	// owner -> worker -> credited yield; an owner collects the sum
	rewardsToCollect map[types.Address]map[types.Address]sdkmath.Int
	lastDistribution *Distribution
	entered          bool
}

var _ worker.HarvestSink = (*Vault)(nil)

func New(address types.Address, baseToken types.TokenID, bank types.Bank, authz auth.Port, fees FeeRegistrar) *Vault {
	return &Vault{
		address:          address,
		baseToken:        baseToken,
		bank:             bank,
		auth:             authz,
		fees:             fees,
		workers:          make(map[types.Address]Worker),
		rewards:          make(map[types.PoolKey]sdkmath.Int),
		rewardsToCollect: make(map[types.Address]map[types.Address]sdkmath.Int),
	}
}

func (v *Vault) Address() types.Address { return v.address }
func (v *Vault) BaseToken() types.TokenID { return v.baseToken }

// BindClients sets where partner fees are looked up. Without it no client
// fee is taken.
func (v *Vault) BindClients(c ClientFees) {
	v.clients = c
}

// AttachWorker registers a worker that routes to this vault.
func (v *Vault) AttachWorker(w Worker) error {
	if w.Vault() != v.address {
		return errorsmod.Wrapf(types.ErrInvalidArgument, "worker %s belongs to vault %s", w.Address(), w.Vault())
	}
	if w.BaseToken() != v.baseToken {
		return errorsmod.Wrapf(types.ErrInvalidArgument,
			"worker %s base %s, vault base %s", w.Address(), w.BaseToken(), v.baseToken)
	}
	if _, dup := v.workers[w.Address()]; dup {
		return errorsmod.Wrapf(types.ErrInvalidArgument, "worker %s already attached", w.Address())
	}
	v.workers[w.Address()] = w
	return nil
}

// Workers lists the attached workers by address.
func (v *Vault) Workers() []types.Address {
	out := make([]types.Address, 0, len(v.workers))
	for a := range v.workers {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// WorkerTreasuryFeeBps is the treasury cut an attached worker takes.
func (v *Vault) WorkerTreasuryFeeBps(addr types.Address) (uint16, error) {
	w, err := v.attached(addr)
	if err != nil {
		return 0, err
	}
	return w.TreasuryFeeBps(), nil
}

func (v *Vault) enter() (func(), error) {
	if v.entered {
		return nil, errorsmod.Wrapf(types.ErrReentrantCall, "vault %s", v.address)
	}
	v.entered = true
	return func() { v.entered = false }, nil
}

func (v *Vault) attached(addr types.Address) (Worker, error) {
	w, ok := v.workers[addr]
	if !ok {
		return nil, errorsmod.Wrapf(types.ErrUnknownComponent, "worker %s is not attached to %s", addr, v.address)
	}
	return w, nil
}

// Deposit pulls amount of base from the calling client, invests it through
// worker and opens a new position for owner. Dust comes back to the caller.
func (v *Vault) Deposit(caller, owner, workerAddr types.Address, amount, minLP sdkmath.Int) (DepositResult, error) {
	leave, err := v.enter()
	if err != nil {
		return DepositResult{}, err
	}
	defer leave()

	if !v.auth.Has(auth.KindClient, caller) {
		return DepositResult{}, errorsmod.Wrapf(types.ErrUnauthorized, "%s is not an approved client", caller)
	}
	if !v.auth.Has(auth.KindWorker, workerAddr) {
		return DepositResult{}, errorsmod.Wrapf(types.ErrUnauthorized, "worker %s is not approved", workerAddr)
	}
	w, err := v.attached(workerAddr)
	if err != nil {
		return DepositResult{}, err
	}
	amount = types.OrZero(amount)
	if owner == "" || !amount.IsPositive() {
		return DepositResult{}, errorsmod.Wrapf(types.ErrInvalidArgument, "deposit of %s for %q", amount, owner)
	}

	if err := v.bank.Transfer(caller, v.address, v.baseToken, amount); err != nil {
		return DepositResult{}, err
	}
	if err := v.bank.Transfer(v.address, workerAddr, v.baseToken, amount); err != nil {
		return DepositResult{}, err
	}
	res, err := w.Work(v.address, v.positions.next(), worker.Payload{
		Strategy: w.DepositStrategy(),
		MinLP:    minLP,
	})
	if err != nil {
		return DepositResult{}, err
	}
	for _, c := range res.Dust {
		if err := v.bank.Transfer(v.address, caller, c.Token, c.Amount); err != nil {
			return DepositResult{}, err
		}
	}

	pos := v.positions.add(Position{
		Owner:       owner,
		Client:      caller,
		Worker:      workerAddr,
		StakedShare: res.NewShare,
		Principal:   amount,
	})
	return DepositResult{Position: pos, Dust: res.Dust}, nil
}

// Withdraw liquidates share of a position (zero for all of it) and pays the
// base to its owner. The owner or the position's client may call it.
func (v *Vault) Withdraw(
	caller, owner, workerAddr types.Address,
	id types.PositionID,
	share, minOut sdkmath.Int,
) (WithdrawResult, error) {
	leave, err := v.enter()
	if err != nil {
		return WithdrawResult{}, err
	}
	defer leave()

	pos, ok := v.positions.get(id)
	if !ok || pos.Owner != owner || pos.Worker != workerAddr {
		return WithdrawResult{}, errorsmod.Wrapf(types.ErrPositionNotFound,
			"position %d of %s on %s", id, owner, workerAddr)
	}
	if caller != pos.Owner && !(caller == pos.Client && v.auth.Has(auth.KindClient, caller)) {
		return WithdrawResult{}, errorsmod.Wrapf(types.ErrUnauthorized, "%s may not withdraw position %d", caller, id)
	}
	if !pos.Live() {
		return WithdrawResult{}, errorsmod.Wrapf(types.ErrPositionNotFound, "position %d is closed", id)
	}
	w, err := v.attached(workerAddr)
	if err != nil {
		return WithdrawResult{}, err
	}

	res, err := w.Work(v.address, id, worker.Payload{
		Strategy:   w.Strategies().Liquidate,
		MinBaseOut: minOut,
		Share:      share,
		Recipient:  pos.Owner,
	})
	if err != nil {
		return WithdrawResult{}, err
	}
	pos.StakedShare = res.NewShare
	return WithdrawResult{Position: *pos, BaseOut: res.BaseOut}, nil
}

// PositionInfo prices a position at what a full withdrawal would pay now.
func (v *Vault) PositionInfo(id types.PositionID) (PositionValue, error) {
	pos, ok := v.positions.get(id)
	if !ok {
		return PositionValue{}, errorsmod.Wrapf(types.ErrPositionNotFound, "position %d", id)
	}
	out := PositionValue{Position: *pos, Value: sdkmath.ZeroInt()}
	if !pos.Live() {
		return out, nil
	}
	w, err := v.attached(pos.Worker)
	if err != nil {
		return PositionValue{}, err
	}
	value, err := w.EstimateWithdraw(pos.StakedShare)
	if err != nil {
		return PositionValue{}, err
	}
	out.Value = value
	return out, nil
}

// PostHarvest books a worker's harvest. The worker has already moved the
// principal to the vault and the treasury fee to the collector. Principal
// plus any earlier residual is spread over the worker's live positions by
// share; each part pays the position's client fee and the rest accrues to
// the owner. Client and treasury fees are both fractions of the gross
// harvest, so a part of net principal pays clientBps/(10000-treasuryBps)
// of itself. The flooring residual waits for the next harvest.
func (v *Vault) PostHarvest(caller types.Address, principal, fee sdkmath.Int, treasury types.Address) error {
	leave, err := v.enter()
	if err != nil {
		return err
	}
	defer leave()

	if !v.auth.Has(auth.KindWorker, caller) {
		return errorsmod.Wrapf(types.ErrUnauthorized, "%s is not an approved worker", caller)
	}
	w, err := v.attached(caller)
	if err != nil {
		return err
	}
	principal, fee = types.OrZero(principal), types.OrZero(fee)
	if principal.IsNegative() || fee.IsNegative() {
		return errorsmod.Wrapf(types.ErrInvariantViolation, "harvest principal %s fee %s", principal, fee)
	}
	if fee.IsPositive() {
		if err := v.fees.RegisterFees(v.address, []types.Address{treasury}, []sdkmath.Int{fee}); err != nil {
			return err
		}
	}

	key := w.PoolKey()
	pool := types.OrZero(v.rewards[key]).Add(principal)

	var shares []fpmath.Share
	v.positions.each(func(p *Position) bool {
		if p.Worker == caller && p.Live() {
			shares = append(shares, fpmath.Share{Key: uint64(p.ID), Weight: p.StakedShare})
		}
		return true
	})
	parts, residual := fpmath.ProRata(pool, shares)

	dist := Distribution{
		Key:         key,
		Principal:   principal,
		TreasuryFee: fee,
		ClientFees:  sdkmath.ZeroInt(),
		Credited:    sdkmath.ZeroInt(),
		Residual:    residual,
		Positions:   len(parts),
	}
	net := sdkmath.NewInt(int64(types.BpsDenominator) - int64(w.TreasuryFeeBps()))
	clientFees := make(map[types.Address]sdkmath.Int)
	for _, part := range parts {
		pos, _ := v.positions.get(types.PositionID(part.Key))
		cut := sdkmath.ZeroInt()
		if v.clients != nil {
			bps := v.clients.WorkerFeeBps(pos.Client, caller)
			cut = fpmath.MinInt(part.Amount, fpmath.MulDiv(part.Amount, sdkmath.NewInt(int64(bps)), net))
		}
		if cut.IsPositive() {
			clientFees[pos.Client] = types.OrZero(clientFees[pos.Client]).Add(cut)
			dist.ClientFees = dist.ClientFees.Add(cut)
		}
		credit := part.Amount.Sub(cut)
		v.credit(pos.Owner, caller, credit)
		dist.Credited = dist.Credited.Add(credit)
	}

	if dist.ClientFees.IsPositive() {
		if err := v.bank.Transfer(v.address, v.fees.Address(), v.baseToken, dist.ClientFees); err != nil {
			return err
		}
		beneficiaries := make([]types.Address, 0, len(clientFees))
		for c := range clientFees {
			beneficiaries = append(beneficiaries, c)
		}
		sort.Slice(beneficiaries, func(i, j int) bool { return beneficiaries[i] < beneficiaries[j] })
		amounts := make([]sdkmath.Int, len(beneficiaries))
		for i, c := range beneficiaries {
			amounts[i] = clientFees[c]
		}
		if err := v.fees.RegisterFees(v.address, beneficiaries, amounts); err != nil {
			return err
		}
	}

	if residual.IsZero() {
		delete(v.rewards, key)
	} else {
		v.rewards[key] = residual
	}
	v.lastDistribution = &dist
	return nil
}

func (v *Vault) credit(owner, workerAddr types.Address, amount sdkmath.Int) {
	if !amount.IsPositive() {
		return
	}
	byWorker, ok := v.rewardsToCollect[owner]
	if !ok {
		byWorker = make(map[types.Address]sdkmath.Int)
		v.rewardsToCollect[owner] = byWorker
	}
	byWorker[workerAddr] = types.OrZero(byWorker[workerAddr]).Add(amount)
}

// TakeDistribution returns and clears the report of the last PostHarvest.
func (v *Vault) TakeDistribution() (Distribution, bool) {
	if v.lastDistribution == nil {
		return Distribution{}, false
	}
	d := *v.lastDistribution
	v.lastDistribution = nil
	return d, true
}

// CollectRewards pays owner everything credited to it. The owner or an
// approved client acting for it may call.
func (v *Vault) CollectRewards(caller, owner types.Address) (sdkmath.Int, error) {
	leave, err := v.enter()
	if err != nil {
		return sdkmath.Int{}, err
	}
	defer leave()

	if caller != owner && !v.auth.Has(auth.KindClient, caller) {
		return sdkmath.Int{}, errorsmod.Wrapf(types.ErrUnauthorized, "%s may not collect for %s", caller, owner)
	}
	owed := v.RewardsToCollect(owner)
	if !owed.IsPositive() {
		return sdkmath.ZeroInt(), nil
	}
	if err := v.bank.Transfer(v.address, owner, v.baseToken, owed); err != nil {
		return sdkmath.Int{}, err
	}
	delete(v.rewardsToCollect, owner)
	return owed, nil
}

// DrainWorker closes every position on a worker after the admin has
// liquidated its stake into the vault. The pool's undistributed rewards
// and every owner's uncollected yield from this worker are paid to
// recipient together with the liquidated amount. Yield the same owners
// earned on other workers stays collectable.
func (v *Vault) DrainWorker(caller, workerAddr types.Address, liquidated sdkmath.Int, recipient types.Address) (DrainReport, error) {
	leave, err := v.enter()
	if err != nil {
		return DrainReport{}, err
	}
	defer leave()

	if !v.auth.Has(auth.KindAdmin, caller) {
		return DrainReport{}, errorsmod.Wrapf(types.ErrUnauthorized, "%s is not the admin contract", caller)
	}
	w, err := v.attached(workerAddr)
	if err != nil {
		return DrainReport{}, err
	}
	liquidated = types.OrZero(liquidated)
	if liquidated.IsNegative() || recipient == "" {
		return DrainReport{}, errorsmod.Wrapf(types.ErrInvalidArgument, "drain %s to %q", liquidated, recipient)
	}

	report := DrainReport{
		Worker:     workerAddr,
		Recipient:  recipient,
		Liquidated: liquidated,
		Drained:    types.OrZero(v.rewards[w.PoolKey()]),
	}
	owners := make(map[types.Address]struct{})
	v.positions.each(func(p *Position) bool {
		if p.Worker != workerAddr {
			return true
		}
		if p.Live() {
			report.Positions = append(report.Positions, p.ID)
		}
		p.StakedShare = sdkmath.ZeroInt()
		owners[p.Owner] = struct{}{}
		return true
	})
	for o := range owners {
		report.Owners = append(report.Owners, o)
		byWorker := v.rewardsToCollect[o]
		report.Drained = report.Drained.Add(types.OrZero(byWorker[workerAddr]))
		delete(byWorker, workerAddr)
		if len(byWorker) == 0 {
			delete(v.rewardsToCollect, o)
		}
	}
	sort.Slice(report.Owners, func(i, j int) bool { return report.Owners[i] < report.Owners[j] })
	delete(v.rewards, w.PoolKey())

	report.Paid = report.Liquidated.Add(report.Drained)
	if err := v.bank.Transfer(v.address, recipient, v.baseToken, report.Paid); err != nil {
		return DrainReport{}, err
	}
	return report, nil
}

// === Queries ===

func (v *Vault) Position(id types.PositionID) (Position, bool) {
	p, ok := v.positions.get(id)
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// Positions lists owner's positions in id order, closed ones included.
func (v *Vault) Positions(owner types.Address) []Position {
	var out []Position
	v.positions.each(func(p *Position) bool {
		if p.Owner == owner {
			out = append(out, *p)
		}
		return true
	})
	return out
}

// AllPositions lists every position in id order.
func (v *Vault) AllPositions() []Position {
	return append([]Position(nil), v.positions.items...)
}

func (v *Vault) RewardsToCollect(owner types.Address) sdkmath.Int {
	sum := sdkmath.ZeroInt()
	for _, r := range v.rewardsToCollect[owner] {
		sum = sum.Add(r)
	}
	return sum
}

func (v *Vault) Rewards(key types.PoolKey) sdkmath.Int {
	return types.OrZero(v.rewards[key])
}

// Owed is everything the vault holds for others: undistributed pool
// rewards plus uncollected owner rewards.
func (v *Vault) Owed() sdkmath.Int {
	sum := sdkmath.ZeroInt()
	for _, r := range v.rewards {
		sum = sum.Add(r)
	}
	for _, byWorker := range v.rewardsToCollect {
		for _, r := range byWorker {
			sum = sum.Add(r)
		}
	}
	return sum
}

// OwnerRewards lists every non-zero owner balance by owner.
func (v *Vault) OwnerRewards() map[types.Address]sdkmath.Int {
	out := make(map[types.Address]sdkmath.Int, len(v.rewardsToCollect))
	for o := range v.rewardsToCollect {
		out[o] = v.RewardsToCollect(o)
	}
	return out
}

// Credit is an owner's uncollected yield from one worker.
type Credit struct {
	Owner  types.Address `json:"owner"`
	Worker types.Address `json:"worker"`
	Amount sdkmath.Int   `json:"amount"`
}

// Credits lists every owner/worker credit ordered by owner then worker.
func (v *Vault) Credits() []Credit {
	var out []Credit
	for o, byWorker := range v.rewardsToCollect {
		for w, r := range byWorker {
			out = append(out, Credit{Owner: o, Worker: w, Amount: r})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Owner != out[j].Owner {
			return out[i].Owner < out[j].Owner
		}
		return out[i].Worker < out[j].Worker
	})
	return out
}

func (v *Vault) Checkpoint() (restore func()) {
	positions := v.positions.clone()
	rewards := make(map[types.PoolKey]sdkmath.Int, len(v.rewards))
	for k, r := range v.rewards {
		rewards[k] = r
	}
	owed := make(map[types.Address]map[types.Address]sdkmath.Int, len(v.rewardsToCollect))
	for o, byWorker := range v.rewardsToCollect {
		cp := make(map[types.Address]sdkmath.Int, len(byWorker))
		for w, r := range byWorker {
			cp[w] = r
		}
		owed[o] = cp
	}
	return func() {
		v.positions = positions
		v.rewards = rewards
		v.rewardsToCollect = owed
		v.lastDistribution = nil
		v.entered = false
	}
}
