package client

import (
	"sort"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"VaultLedger/internal/types"
	"VaultLedger/internal/vault"
)

// Vault is the ledger a client deposits into.
type Vault interface {
	Address() types.Address
	BaseToken() types.TokenID
	Deposit(caller, owner, worker types.Address, amount, minLP sdkmath.Int) (vault.DepositResult, error)
	Withdraw(caller, owner, worker types.Address, id types.PositionID, share, minOut sdkmath.Int) (vault.WithdrawResult, error)
	CollectRewards(caller, owner types.Address) (sdkmath.Int, error)
	WorkerTreasuryFeeBps(worker types.Address) (uint16, error)
}

// FeeSource pays out the client's accrued partner fees.
type FeeSource interface {
	Collect(caller types.Address) (sdkmath.Int, error)
}

// Client is a distribution partner: it whitelists its users, picks the
// workers they may use and charges a fee on their yield.
type Client struct {
	address types.Address
	bank    types.Bank
	vault   Vault
	fees    FeeSource

	operators      map[types.Address]struct{}
	users          map[types.Address]struct{}
	enabledWorkers map[types.Address]struct{}
	workerFeeBps   map[types.Address]uint16
	feeAccrued     sdkmath.Int
}

func New(address types.Address, bank types.Bank, v Vault, fees FeeSource, operators []types.Address) *Client {
	c := &Client{
		address:        address,
		bank:           bank,
		vault:          v,
		fees:           fees,
		operators:      make(map[types.Address]struct{}),
		users:          make(map[types.Address]struct{}),
		enabledWorkers: make(map[types.Address]struct{}),
		workerFeeBps:   make(map[types.Address]uint16),
		feeAccrued:     sdkmath.ZeroInt(),
	}
	for _, op := range operators {
		c.operators[op] = struct{}{}
	}
	return c
}

func (c *Client) Address() types.Address { return c.address }
func (c *Client) VaultAddress() types.Address { return c.vault.Address() }
func (c *Client) BaseToken() types.TokenID { return c.vault.BaseToken() }
func (c *Client) FeeAccrued() sdkmath.Int { return c.feeAccrued }

func (c *Client) IsOperator(a types.Address) bool {
	_, ok := c.operators[a]
	return ok
}

func (c *Client) IsUser(a types.Address) bool {
	_, ok := c.users[a]
	return ok
}

func (c *Client) WorkerEnabled(w types.Address) bool {
	_, ok := c.enabledWorkers[w]
	return ok
}

// WorkerFeeBps is the partner cut on yield from worker.
func (c *Client) WorkerFeeBps(worker types.Address) uint16 {
	return c.workerFeeBps[worker]
}

func (c *Client) requireOperator(caller types.Address) error {
	if !c.IsOperator(caller) {
		return errorsmod.Wrapf(types.ErrUnauthorized, "%s is not an operator of %s", caller, c.address)
	}
	return nil
}

func (c *Client) requireUser(caller types.Address) error {
	if !c.IsUser(caller) {
		return errorsmod.Wrapf(types.ErrUnauthorized, "%s is not a user of %s", caller, c.address)
	}
	return nil
}

// SetWorkerFee sets the partner cut on a worker. Together with the
// worker's treasury fee it must stay below 100%.
func (c *Client) SetWorkerFee(caller, worker types.Address, bps uint16) error {
	if err := c.requireOperator(caller); err != nil {
		return err
	}
	treasury, err := c.vault.WorkerTreasuryFeeBps(worker)
	if err != nil {
		return err
	}
	if int(bps)+int(treasury) >= types.BpsDenominator {
		return errorsmod.Wrapf(types.ErrInvariantViolation,
			"client fee %d + treasury fee %d bps on %s", bps, treasury, worker)
	}
	if bps == 0 {
		delete(c.workerFeeBps, worker)
		return nil
	}
	c.workerFeeBps[worker] = bps
	return nil
}

func setMembers(set map[types.Address]struct{}, addrs []types.Address, ok bool) error {
	for _, a := range addrs {
		if a == "" {
			return errorsmod.Wrap(types.ErrInvalidArgument, "empty address")
		}
	}
	for _, a := range addrs {
		if ok {
			set[a] = struct{}{}
		} else {
			delete(set, a)
		}
	}
	return nil
}

func (c *Client) SetUsers(caller types.Address, users []types.Address, ok bool) error {
	if err := c.requireOperator(caller); err != nil {
		return err
	}
	return setMembers(c.users, users, ok)
}

func (c *Client) EnableWorkers(caller types.Address, workers []types.Address, ok bool) error {
	if err := c.requireOperator(caller); err != nil {
		return err
	}
	return setMembers(c.enabledWorkers, workers, ok)
}

func (c *Client) SetOperator(caller, operator types.Address, ok bool) error {
	if err := c.requireOperator(caller); err != nil {
		return err
	}
	return setMembers(c.operators, []types.Address{operator}, ok)
}

// Deposit moves amount of base from the user through the client into the
// vault. Dust the vault refunds goes back to the user.
func (c *Client) Deposit(caller, worker types.Address, amount, minLP sdkmath.Int) (vault.DepositResult, error) {
	if err := c.requireUser(caller); err != nil {
		return vault.DepositResult{}, err
	}
	if !c.WorkerEnabled(worker) {
		return vault.DepositResult{}, errorsmod.Wrapf(types.ErrUnauthorized, "worker %s is not enabled on %s", worker, c.address)
	}
	if err := c.bank.Transfer(caller, c.address, c.vault.BaseToken(), types.OrZero(amount)); err != nil {
		return vault.DepositResult{}, err
	}
	res, err := c.vault.Deposit(c.address, caller, worker, amount, minLP)
	if err != nil {
		return vault.DepositResult{}, err
	}
	for _, d := range res.Dust {
		if err := c.bank.Transfer(c.address, caller, d.Token, d.Amount); err != nil {
			return vault.DepositResult{}, err
		}
	}
	return res, nil
}

// Withdraw exits share of one of the user's positions. Users removed from
// the whitelist can still withdraw through the vault directly.
func (c *Client) Withdraw(caller, worker types.Address, id types.PositionID, share, minOut sdkmath.Int) (vault.WithdrawResult, error) {
	if err := c.requireUser(caller); err != nil {
		return vault.WithdrawResult{}, err
	}
	return c.vault.Withdraw(c.address, caller, worker, id, share, minOut)
}

func (c *Client) CollectRewards(caller types.Address) (sdkmath.Int, error) {
	if err := c.requireUser(caller); err != nil {
		return sdkmath.Int{}, err
	}
	return c.vault.CollectRewards(c.address, caller)
}

// CollectFees pulls the client's partner fees from the collector.
func (c *Client) CollectFees(caller types.Address) (sdkmath.Int, error) {
	if err := c.requireOperator(caller); err != nil {
		return sdkmath.Int{}, err
	}
	amt, err := c.fees.Collect(c.address)
	if err != nil {
		return sdkmath.Int{}, err
	}
	c.feeAccrued = c.feeAccrued.Add(amt)
	return amt, nil
}

// State is a sorted copy of the client's configuration.
type State struct {
	Address        types.Address            `json:"address"`
	Operators      []types.Address          `json:"operators"`
	Users          []types.Address          `json:"users"`
	EnabledWorkers []types.Address          `json:"enabled_workers"`
	WorkerFeeBps   map[types.Address]uint16 `json:"worker_fee_bps"`
	FeeAccrued     sdkmath.Int              `json:"fee_accrued"`
}

func (c *Client) Snapshot() State {
	fees := make(map[types.Address]uint16, len(c.workerFeeBps))
	for w, b := range c.workerFeeBps {
		fees[w] = b
	}
	return State{
		Address:        c.address,
		Operators:      sorted(c.operators),
		Users:          sorted(c.users),
		EnabledWorkers: sorted(c.enabledWorkers),
		WorkerFeeBps:   fees,
		FeeAccrued:     c.feeAccrued,
	}
}

func (c *Client) Checkpoint() (restore func()) {
	s := c.Snapshot()
	return func() {
		c.operators = toSet(s.Operators)
		c.users = toSet(s.Users)
		c.enabledWorkers = toSet(s.EnabledWorkers)
		c.workerFeeBps = s.WorkerFeeBps
		c.feeAccrued = s.FeeAccrued
	}
}

func sorted(set map[types.Address]struct{}) []types.Address {
	out := make([]types.Address, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func toSet(addrs []types.Address) map[types.Address]struct{} {
	out := make(map[types.Address]struct{}, len(addrs))
	for _, a := range addrs {
		out[a] = struct{}{}
	}
	return out
}

// Directory resolves partner fees across every client for the vault.
type Directory map[types.Address]*Client

func (d Directory) WorkerFeeBps(client, worker types.Address) uint16 {
	c, ok := d[client]
	if !ok {
		return 0
	}
	return c.WorkerFeeBps(worker)
}

// MaxWorkerFeeBps is the highest partner fee any client charges on worker.
func (d Directory) MaxWorkerFeeBps(worker types.Address) uint16 {
	var highest uint16
	for _, c := range d {
		if bps := c.WorkerFeeBps(worker); bps > highest {
			highest = bps
		}
	}
	return highest
}

var _ vault.ClientFees = Directory(nil)
