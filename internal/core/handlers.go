package core

import (
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"VaultLedger/internal/auth"
	"VaultLedger/internal/event"
	"VaultLedger/internal/types"
	"VaultLedger/internal/vault"
	"VaultLedger/internal/worker"
)

func (c *DeterministicCore) dispatchEvent(evt event.Event) (any, error) {
	switch e := evt.(type) {
	case *event.Deposit:
		return c.handleDeposit(e)
	case *event.Withdraw:
		return c.handleWithdraw(e)
	case *event.CollectRewards:
		return c.handleCollectRewards(e)
	case *event.Harvest:
		return c.handleHarvest(e)
	case *event.RegisterFees:
		return c.handleRegisterFees(e)
	case *event.CollectFees:
		return c.handleCollectFees(e)
	case *event.ClientCollectFees:
		return c.handleClientCollectFees(e)
	case *event.EmergencyWithdraw:
		return c.handleEmergencyWithdraw(e)
	case *event.Approve:
		return nil, c.handleApprove(e)
	case *event.WhitelistOperator:
		return nil, c.world.Registry.WhitelistOperator(e.Caller(), e.Operator, e.Approved)
	case *event.SetStables:
		return nil, c.world.Registry.SetStables(e.Caller(), e.Tokens)
	case *event.SetTreasuryFee:
		return nil, c.handleSetTreasuryFee(e)
	case *event.SetStrategies:
		return nil, c.handleSetStrategies(e)
	case *event.SetBountyThreshold:
		return nil, c.handleSetBountyThreshold(e)
	case *event.SetWorkerFee:
		return nil, c.handleSetWorkerFee(e)
	case *event.SetUsers:
		return nil, c.handleSetUsers(e)
	case *event.EnableWorkers:
		return nil, c.handleEnableWorkers(e)
	case *event.SetClientOperator:
		return nil, c.handleSetClientOperator(e)
	case *event.AdvanceFarm:
		return c.handleAdvanceFarm(e)
	case *event.Mint:
		return nil, c.handleMint(e)
	case *event.SeedLiquidity:
		return c.handleSeedLiquidity(e)
	case *event.Swap:
		return c.handleSwap(e)
	default:
		return nil, errorsmod.Wrapf(types.ErrInvalidArgument, "unknown command type: %T", evt)
	}
}

// --- Positions ---

func (c *DeterministicCore) handleDeposit(e *event.Deposit) (any, error) {
	cl, err := c.world.Client(e.Client)
	if err != nil {
		return nil, err
	}
	v, err := c.world.VaultOf(e.Worker)
	if err != nil {
		return nil, err
	}
	res, err := cl.Deposit(e.Caller(), e.Worker, e.Amount, e.MinLP)
	if err != nil {
		return nil, err
	}
	return DepositOutcome{Vault: v.Address(), Position: res.Position, Dust: res.Dust}, nil
}

func (c *DeterministicCore) handleWithdraw(e *event.Withdraw) (any, error) {
	v, err := c.world.VaultOf(e.Worker)
	if err != nil {
		return nil, err
	}
	var res vault.WithdrawResult
	if e.Client != "" {
		cl, err := c.world.Client(e.Client)
		if err != nil {
			return nil, err
		}
		res, err = cl.Withdraw(e.Caller(), e.Worker, e.PositionID, e.Share, e.MinOut)
		if err != nil {
			return nil, err
		}
	} else {
		res, err = v.Withdraw(e.Caller(), e.Caller(), e.Worker, e.PositionID, e.Share, e.MinOut)
		if err != nil {
			return nil, err
		}
	}
	return WithdrawOutcome{Vault: v.Address(), Position: res.Position, BaseOut: res.BaseOut}, nil
}

func (c *DeterministicCore) handleCollectRewards(e *event.CollectRewards) (any, error) {
	if e.Client != "" {
		cl, err := c.world.Client(e.Client)
		if err != nil {
			return nil, err
		}
		amount, err := cl.CollectRewards(e.Caller())
		if err != nil {
			return nil, err
		}
		return CollectOutcome{Vault: cl.VaultAddress(), Owner: e.Caller(), Amount: amount}, nil
	}
	v, err := c.world.Vault(e.Vault)
	if err != nil {
		return nil, err
	}
	amount, err := v.CollectRewards(e.Caller(), e.Caller())
	if err != nil {
		return nil, err
	}
	return CollectOutcome{Vault: v.Address(), Owner: e.Caller(), Amount: amount}, nil
}

// --- Yield and fees ---

func (c *DeterministicCore) handleHarvest(e *event.Harvest) (any, error) {
	wk, err := c.world.Worker(e.Worker)
	if err != nil {
		return nil, err
	}
	v, err := c.world.VaultOf(e.Worker)
	if err != nil {
		return nil, err
	}
	report, err := wk.HarvestRewards(e.Caller())
	if err != nil {
		return nil, err
	}
	out := HarvestOutcome{Report: report}
	if !report.Skipped {
		if d, ok := v.TakeDistribution(); ok {
			out.Distribution = &d
		}
	}
	return out, nil
}

func (c *DeterministicCore) handleRegisterFees(e *event.RegisterFees) (any, error) {
	col, err := c.world.Collector(e.Collector)
	if err != nil {
		return nil, err
	}
	return nil, col.RegisterFees(e.Caller(), e.Beneficiaries, e.Amounts)
}

func (c *DeterministicCore) handleCollectFees(e *event.CollectFees) (any, error) {
	col, err := c.world.Collector(e.Collector)
	if err != nil {
		return nil, err
	}
	amount, err := col.Collect(e.Caller())
	if err != nil {
		return nil, err
	}
	return FeeOutcome{Collector: col.Address(), Beneficiary: e.Caller(), Amount: amount}, nil
}

func (c *DeterministicCore) handleClientCollectFees(e *event.ClientCollectFees) (any, error) {
	cl, err := c.world.Client(e.Client)
	if err != nil {
		return nil, err
	}
	amount, err := cl.CollectFees(e.Caller())
	if err != nil {
		return nil, err
	}
	col, err := c.world.CollectorFor(cl.BaseToken())
	if err != nil {
		return nil, err
	}
	return FeeOutcome{Collector: col.Address(), Beneficiary: cl.Address(), Amount: amount}, nil
}

func (c *DeterministicCore) handleEmergencyWithdraw(e *event.EmergencyWithdraw) (any, error) {
	o, err := c.world.Orchestrator()
	if err != nil {
		return nil, err
	}
	report, err := o.EmergencyWithdraw(e.Caller(), e.Workers, e.Recipients)
	if err != nil {
		return nil, err
	}
	// Forced harvests leave distribution reports behind; they are part of
	// the drain, not of a later harvest.
	for _, v := range c.world.Vaults() {
		v.TakeDistribution()
	}
	return EmergencyOutcome{Report: report}, nil
}

// --- Configuration ---

func (c *DeterministicCore) handleApprove(e *event.Approve) error {
	kind, err := auth.ParseKind(e.Kind)
	if err != nil {
		return err
	}
	return c.world.Registry.Approve(e.Caller(), kind, e.Addresses, e.Approved)
}

func (c *DeterministicCore) handleSetTreasuryFee(e *event.SetTreasuryFee) error {
	wk, err := c.world.Worker(e.Worker)
	if err != nil {
		return err
	}
	return wk.SetTreasuryFee(e.Caller(), e.Bps)
}

func (c *DeterministicCore) handleSetStrategies(e *event.SetStrategies) error {
	wk, err := c.world.Worker(e.Worker)
	if err != nil {
		return err
	}
	return wk.SetStrategies(e.Caller(), worker.Strategies{
		AddBase:   e.AddBase,
		AddNoBase: e.AddNoBase,
		Liquidate: e.Liquidate,
	})
}

func (c *DeterministicCore) handleSetBountyThreshold(e *event.SetBountyThreshold) error {
	col, err := c.world.Collector(e.Collector)
	if err != nil {
		return err
	}
	return col.SetBountyThreshold(e.Caller(), e.Amount)
}

func (c *DeterministicCore) handleSetWorkerFee(e *event.SetWorkerFee) error {
	cl, err := c.world.Client(e.Client)
	if err != nil {
		return err
	}
	return cl.SetWorkerFee(e.Caller(), e.Worker, e.Bps)
}

func (c *DeterministicCore) handleSetUsers(e *event.SetUsers) error {
	cl, err := c.world.Client(e.Client)
	if err != nil {
		return err
	}
	return cl.SetUsers(e.Caller(), e.Users, e.Approved)
}

func (c *DeterministicCore) handleEnableWorkers(e *event.EnableWorkers) error {
	cl, err := c.world.Client(e.Client)
	if err != nil {
		return err
	}
	for _, w := range e.Workers {
		if _, err := c.world.Worker(w); err != nil {
			return err
		}
	}
	return cl.EnableWorkers(e.Caller(), e.Workers, e.Enabled)
}

func (c *DeterministicCore) handleSetClientOperator(e *event.SetClientOperator) error {
	cl, err := c.world.Client(e.Client)
	if err != nil {
		return err
	}
	return cl.SetOperator(e.Caller(), e.Operator, e.Approved)
}

// --- Market plumbing ---

func (c *DeterministicCore) requireOperator(caller types.Address) error {
	if !c.world.Registry.IsOperator(caller) {
		return errorsmod.Wrapf(types.ErrUnauthorized, "%s is not an operator", caller)
	}
	return nil
}

func (c *DeterministicCore) handleAdvanceFarm(e *event.AdvanceFarm) (any, error) {
	if err := c.requireOperator(e.Caller()); err != nil {
		return nil, err
	}
	if e.Blocks == 0 {
		return nil, errorsmod.Wrap(types.ErrInvalidArgument, "advance by zero blocks")
	}
	emitted, err := c.world.Farm.Advance(e.Blocks)
	if err != nil {
		return nil, err
	}
	return FarmOutcome{Block: c.world.Farm.Block(), Emitted: emitted}, nil
}

func (c *DeterministicCore) handleMint(e *event.Mint) error {
	if err := c.requireOperator(e.Caller()); err != nil {
		return err
	}
	if e.To == "" || e.Token == "" {
		return errorsmod.Wrap(types.ErrInvalidArgument, "mint needs a recipient and a token")
	}
	if amount := types.OrZero(e.Amount); !amount.IsPositive() {
		return errorsmod.Wrapf(types.ErrInvalidArgument, "mint amount %s", amount)
	}
	return c.world.Bank.Mint(e.To, e.Token, e.Amount)
}

func (c *DeterministicCore) handleSeedLiquidity(e *event.SeedLiquidity) (any, error) {
	zero := sdkmath.ZeroInt()
	a, b, lp, err := c.world.Exchange.AddLiquidity(e.Caller(), e.TokenA, e.TokenB, e.AmountA, e.AmountB, zero, zero, e.Caller())
	if err != nil {
		return nil, err
	}
	return LiquidityOutcome{AmountA: a, AmountB: b, Liquidity: lp}, nil
}

func (c *DeterministicCore) handleSwap(e *event.Swap) (any, error) {
	if len(e.Path) < 2 {
		return nil, errorsmod.Wrapf(types.ErrInvalidArgument, "swap path %v", e.Path)
	}
	if amount := types.OrZero(e.AmountIn); !amount.IsPositive() {
		return nil, errorsmod.Wrapf(types.ErrInvalidArgument, "swap amount %s", amount)
	}
	out, err := c.world.Exchange.SwapExactIn(e.Caller(), e.Path, e.AmountIn, e.MinOut, e.Caller())
	if err != nil {
		return nil, err
	}
	return SwapOutcome{AmountOut: out}, nil
}
