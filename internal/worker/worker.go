package worker

import (
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"VaultLedger/internal/auth"
	fpmath "VaultLedger/internal/math"
	"VaultLedger/internal/strategy"
	"VaultLedger/internal/types"
)

// Strategies names the three strategies a worker may invoke.
type Strategies struct {
	AddBase   types.Address `json:"add_base" yaml:"add_base"`
	AddNoBase types.Address `json:"add_no_base" yaml:"add_no_base"`
	Liquidate types.Address `json:"liquidate" yaml:"liquidate"`
}

func (s Strategies) has(addr types.Address) bool {
	return addr != "" && (addr == s.AddBase || addr == s.AddNoBase || addr == s.Liquidate)
}

// Config is a worker's static wiring and its mutable fee settings.
type Config struct {
	Address           types.Address
	BaseToken         types.TokenID
	Token0            types.TokenID
	Token1            types.TokenID
	LPToken           types.TokenID
	FarmPoolID        uint64
	ReinvestPath      []types.TokenID
	ReinvestThreshold sdkmath.Int
	TreasuryFeeBps    uint16
	Treasury          types.Address
	FeeCollector      types.Address
	Vault             types.Address
	Strategies        Strategies
}

// Farm is the staking service a worker keeps its LP in.
type Farm interface {
	RewardToken() types.TokenID
	Stake(caller types.Address, poolID uint64, amount sdkmath.Int) error
	Unstake(caller types.Address, poolID uint64, amount sdkmath.Int) (sdkmath.Int, error)
	ClaimReward(caller types.Address, poolID uint64) (sdkmath.Int, error)
	PendingReward(poolID uint64, who types.Address) (sdkmath.Int, error)
}

// Swapper converts harvested rewards to base.
type Swapper interface {
	SwapExactIn(caller types.Address, path []types.TokenID, amountIn, minOut sdkmath.Int, recipient types.Address) (sdkmath.Int, error)
}

// StrategyResolver finds deployed strategies by address.
type StrategyResolver interface {
	Get(addr types.Address) (strategy.Strategy, bool)
}

// HarvestSink receives harvested principal. The owning vault implements it.
type HarvestSink interface {
	PostHarvest(caller types.Address, principal, fee sdkmath.Int, treasury types.Address) error
}

// ClientFeeBound reports the highest partner fee any client charges on a
// worker's yield.
type ClientFeeBound interface {
	MaxWorkerFeeBps(worker types.Address) uint16
}

// Payload selects the strategy for one Work call and its guarantees.
type Payload struct {
	Strategy   types.Address
	MinLP      sdkmath.Int
	MinBaseOut sdkmath.Int
	// Share of the position to liquidate; zero means all of it.
	Share sdkmath.Int
	// Recipient of liquidation proceeds; defaults to the caller.
	Recipient types.Address
}

// WorkResult reports the effect of one Work call.
type WorkResult struct {
	Kind     strategy.Kind
	LPDelta  sdkmath.Int
	BaseOut  sdkmath.Int
	Dust     []strategy.Coin
	NewShare sdkmath.Int
}

// HarvestReport describes one harvest. A skipped harvest moved nothing.
type HarvestReport struct {
	Worker    types.Address `json:"worker"`
	Skipped   bool          `json:"skipped"`
	Pending   sdkmath.Int   `json:"pending"`
	Reward    sdkmath.Int   `json:"reward"`
	Harvested sdkmath.Int   `json:"harvested"`
	Fee       sdkmath.Int   `json:"fee"`
	Principal sdkmath.Int   `json:"principal"`
}

// ExitReport describes an emergency exit.
type ExitReport struct {
	Harvest    HarvestReport `json:"harvest"`
	Liquidated sdkmath.Int   `json:"liquidated"`
}

// Worker adapts one AMM pair plus one farm pool to the vault. It holds the
// pair's LP staked in the farm on behalf of vault positions.
type Worker struct {
	cfg Config

	bank       types.Bank
	auth       auth.Port
	farm       Farm
	swapper    Swapper
	strategies StrategyResolver
	sink       HarvestSink
	clientFees ClientFeeBound

	shares     map[types.PositionID]sdkmath.Int
	totalShare sdkmath.Int
	entered    bool
}

func New(
	cfg Config,
	bank types.Bank,
	authz auth.Port,
	farm Farm,
	swapper Swapper,
	strategies StrategyResolver,
) (*Worker, error) {
	if cfg.Address == "" || cfg.Vault == "" || cfg.FeeCollector == "" {
		return nil, errorsmod.Wrap(types.ErrInvalidArgument, "worker needs address, vault and fee collector")
	}
	if cfg.Token0 == "" || cfg.Token1 == "" || cfg.Token0 == cfg.Token1 {
		return nil, errorsmod.Wrapf(types.ErrInvalidPair, "%s/%s", cfg.Token0, cfg.Token1)
	}
	if cfg.LPToken == "" {
		return nil, errorsmod.Wrapf(types.ErrInvalidPair, "no LP token for %s/%s", cfg.Token0, cfg.Token1)
	}
	if int(cfg.TreasuryFeeBps) >= types.BpsDenominator {
		return nil, errorsmod.Wrapf(types.ErrInvariantViolation, "treasury fee %d bps", cfg.TreasuryFeeBps)
	}
	reward := farm.RewardToken()
	if reward != cfg.BaseToken {
		p := cfg.ReinvestPath
		if len(p) < 2 || p[0] != reward || p[len(p)-1] != cfg.BaseToken {
			return nil, errorsmod.Wrapf(types.ErrInvalidArgument,
				"reinvest path %v must lead from %s to %s", p, reward, cfg.BaseToken)
		}
	}
	cfg.ReinvestThreshold = types.OrZero(cfg.ReinvestThreshold)
	cfg.ReinvestPath = append([]types.TokenID(nil), cfg.ReinvestPath...)
	return &Worker{
		cfg:        cfg,
		bank:       bank,
		auth:       authz,
		farm:       farm,
		swapper:    swapper,
		strategies: strategies,
		shares:     make(map[types.PositionID]sdkmath.Int),
		totalShare: sdkmath.ZeroInt(),
	}, nil
}

// BindVault sets where harvested principal is posted.
func (w *Worker) BindVault(sink HarvestSink) {
	w.sink = sink
}

// BindClientFees sets where partner fees on this worker are looked up when
// the treasury fee changes.
func (w *Worker) BindClientFees(c ClientFeeBound) {
	w.clientFees = c
}

func (w *Worker) Address() types.Address { return w.cfg.Address }
func (w *Worker) BaseToken() types.TokenID { return w.cfg.BaseToken }
func (w *Worker) Vault() types.Address { return w.cfg.Vault }
func (w *Worker) FarmPoolID() uint64 { return w.cfg.FarmPoolID }
func (w *Worker) TreasuryFeeBps() uint16 { return w.cfg.TreasuryFeeBps }
func (w *Worker) Strategies() Strategies { return w.cfg.Strategies }
func (w *Worker) TotalShare() sdkmath.Int { return w.totalShare }
func (w *Worker) Pair() (t0, t1 types.TokenID) { return w.cfg.Token0, w.cfg.Token1 }

// PoolKey identifies this worker's farm pool in the vault's accumulator.
func (w *Worker) PoolKey() types.PoolKey {
	return types.PoolKey{Worker: w.cfg.Address, PoolID: w.cfg.FarmPoolID}
}

// BaseInPair reports whether the LP pair contains the base token.
func (w *Worker) BaseInPair() bool {
	return w.cfg.Token0 == w.cfg.BaseToken || w.cfg.Token1 == w.cfg.BaseToken
}

// DepositStrategy is the strategy the vault should use for new deposits.
func (w *Worker) DepositStrategy() types.Address {
	if w.BaseInPair() {
		return w.cfg.Strategies.AddBase
	}
	return w.cfg.Strategies.AddNoBase
}

// Config returns a copy of the worker's configuration.
func (w *Worker) Config() Config {
	c := w.cfg
	c.ReinvestPath = append([]types.TokenID(nil), w.cfg.ReinvestPath...)
	return c
}

// Share returns a position's staked share.
func (w *Worker) Share(id types.PositionID) sdkmath.Int {
	return types.OrZero(w.shares[id])
}

// enter is the single-entry guard around every mutating call.
func (w *Worker) enter() (func(), error) {
	if w.entered {
		return nil, errorsmod.Wrapf(types.ErrReentrantCall, "worker %s", w.cfg.Address)
	}
	w.entered = true
	return func() { w.entered = false }, nil
}

func (w *Worker) resolve(addr types.Address) (strategy.Strategy, error) {
	if !w.cfg.Strategies.has(addr) {
		return nil, errorsmod.Wrapf(types.ErrUnauthorized, "strategy %s is not configured on %s", addr, w.cfg.Address)
	}
	if !w.auth.Has(auth.KindStrategy, addr) {
		return nil, errorsmod.Wrapf(types.ErrUnauthorized, "strategy %s is not approved", addr)
	}
	s, ok := w.strategies.Get(addr)
	if !ok {
		return nil, errorsmod.Wrapf(types.ErrUnknownComponent, "strategy %s", addr)
	}
	return s, nil
}

func (w *Worker) params(minLP, minBaseOut sdkmath.Int, recipient types.Address) strategy.Params {
	return strategy.Params{
		BaseToken:  w.cfg.BaseToken,
		Token0:     w.cfg.Token0,
		Token1:     w.cfg.Token1,
		MinLP:      types.OrZero(minLP),
		MinBaseOut: types.OrZero(minBaseOut),
		Recipient:  recipient,
	}
}

// Work runs a strategy for a position. Only the owning vault may call it.
// Deposits consume the base the vault pushed to the worker; liquidation
// unstakes the position's share and pays proceeds to the recipient.
func (w *Worker) Work(caller types.Address, id types.PositionID, p Payload) (WorkResult, error) {
	leave, err := w.enter()
	if err != nil {
		return WorkResult{}, err
	}
	defer leave()

	if caller != w.cfg.Vault || !w.auth.Has(auth.KindVault, caller) {
		return WorkResult{}, errorsmod.Wrapf(types.ErrUnauthorized, "%s is not the vault of %s", caller, w.cfg.Address)
	}
	if !w.auth.Has(auth.KindWorker, w.cfg.Address) {
		return WorkResult{}, errorsmod.Wrapf(types.ErrUnauthorized, "worker %s is not approved", w.cfg.Address)
	}
	s, err := w.resolve(p.Strategy)
	if err != nil {
		return WorkResult{}, err
	}

	if s.Kind() == strategy.KindLiquidate {
		return w.withdraw(caller, id, s, p)
	}
	return w.deposit(caller, id, s, p)
}

func (w *Worker) deposit(caller types.Address, id types.PositionID, s strategy.Strategy, p Payload) (WorkResult, error) {
	amount := w.bank.BalanceOf(w.cfg.Address, w.cfg.BaseToken)
	if !amount.IsPositive() {
		return WorkResult{}, errorsmod.Wrap(types.ErrInvalidArgument, "no base pushed to worker")
	}
	if err := s.Stage(w.cfg.Address, w.cfg.BaseToken, amount); err != nil {
		return WorkResult{}, err
	}
	res, err := s.Execute(w.cfg.Address, w.params(p.MinLP, sdkmath.ZeroInt(), w.cfg.Address))
	if err != nil {
		return WorkResult{}, err
	}
	if err := w.farm.Stake(w.cfg.Address, w.cfg.FarmPoolID, res.LPMinted); err != nil {
		return WorkResult{}, err
	}
	for _, c := range res.Dust {
		if err := w.bank.Transfer(w.cfg.Address, caller, c.Token, c.Amount); err != nil {
			return WorkResult{}, err
		}
	}

	share := w.Share(id).Add(res.LPMinted)
	w.shares[id] = share
	w.totalShare = w.totalShare.Add(res.LPMinted)
	return WorkResult{
		Kind:     s.Kind(),
		LPDelta:  res.LPMinted,
		BaseOut:  sdkmath.ZeroInt(),
		Dust:     res.Dust,
		NewShare: share,
	}, nil
}

func (w *Worker) withdraw(caller types.Address, id types.PositionID, s strategy.Strategy, p Payload) (WorkResult, error) {
	current := w.Share(id)
	if !current.IsPositive() {
		return WorkResult{}, errorsmod.Wrapf(types.ErrPositionNotFound, "position %d has no stake in %s", id, w.cfg.Address)
	}
	share := types.OrZero(p.Share)
	if share.IsZero() {
		share = current
	}
	if share.IsNegative() || share.GT(current) {
		return WorkResult{}, errorsmod.Wrapf(types.ErrInsufficientFunds, "share %s of %s", share, current)
	}
	recipient := p.Recipient
	if recipient == "" {
		recipient = caller
	}

	res, err := w.liquidate(s, share, p.MinBaseOut, recipient)
	if err != nil {
		return WorkResult{}, err
	}

	left := current.Sub(share)
	if left.IsZero() {
		delete(w.shares, id)
	} else {
		w.shares[id] = left
	}
	w.totalShare = w.totalShare.Sub(share)
	return WorkResult{
		Kind:     s.Kind(),
		LPDelta:  share.Neg(),
		BaseOut:  res.BaseOut,
		Dust:     res.Dust,
		NewShare: left,
	}, nil
}

func (w *Worker) liquidate(s strategy.Strategy, share, minBaseOut sdkmath.Int, recipient types.Address) (strategy.Result, error) {
	lp, err := w.farm.Unstake(w.cfg.Address, w.cfg.FarmPoolID, share)
	if err != nil {
		return strategy.Result{}, err
	}
	if err := s.Stage(w.cfg.Address, w.cfg.LPToken, lp); err != nil {
		return strategy.Result{}, err
	}
	return s.Execute(w.cfg.Address, w.params(sdkmath.ZeroInt(), minBaseOut, recipient))
}

// HarvestRewards claims farm rewards, converts them to base and posts them
// to the vault net of the treasury fee. Below the reinvest threshold it is
// a no-op reported as skipped.
func (w *Worker) HarvestRewards(caller types.Address) (HarvestReport, error) {
	leave, err := w.enter()
	if err != nil {
		return HarvestReport{}, err
	}
	defer leave()

	if !w.auth.Has(auth.KindHarvester, caller) {
		return HarvestReport{}, errorsmod.Wrapf(types.ErrUnauthorized, "%s is not an approved harvester", caller)
	}
	return w.harvest(false)
}

func (w *Worker) harvest(force bool) (HarvestReport, error) {
	report := HarvestReport{
		Worker:    w.cfg.Address,
		Reward:    sdkmath.ZeroInt(),
		Harvested: sdkmath.ZeroInt(),
		Fee:       sdkmath.ZeroInt(),
		Principal: sdkmath.ZeroInt(),
	}
	pending, err := w.farm.PendingReward(w.cfg.FarmPoolID, w.cfg.Address)
	if err != nil {
		return HarvestReport{}, err
	}
	report.Pending = pending
	if !pending.IsPositive() || (!force && pending.LT(w.cfg.ReinvestThreshold)) {
		report.Skipped = true
		return report, nil
	}
	if w.sink == nil {
		return HarvestReport{}, errorsmod.Wrapf(types.ErrUnknownComponent, "worker %s has no vault bound", w.cfg.Address)
	}

	reward, err := w.farm.ClaimReward(w.cfg.Address, w.cfg.FarmPoolID)
	if err != nil {
		return HarvestReport{}, err
	}
	report.Reward = reward
	if !reward.IsPositive() {
		report.Skipped = true
		return report, nil
	}

	harvested := reward
	if w.farm.RewardToken() != w.cfg.BaseToken {
		harvested, err = w.swapper.SwapExactIn(w.cfg.Address, w.cfg.ReinvestPath, reward, sdkmath.ZeroInt(), w.cfg.Address)
		if err != nil {
			return HarvestReport{}, err
		}
	}

	fee := fpmath.BpsOf(harvested, w.cfg.TreasuryFeeBps)
	principal := harvested.Sub(fee)
	if err := w.bank.Transfer(w.cfg.Address, w.cfg.FeeCollector, w.cfg.BaseToken, fee); err != nil {
		return HarvestReport{}, err
	}
	if err := w.bank.Transfer(w.cfg.Address, w.cfg.Vault, w.cfg.BaseToken, principal); err != nil {
		return HarvestReport{}, err
	}
	if err := w.sink.PostHarvest(w.cfg.Address, principal, fee, w.cfg.Treasury); err != nil {
		return HarvestReport{}, err
	}

	report.Harvested = harvested
	report.Fee = fee
	report.Principal = principal
	return report, nil
}

// EstimateWithdraw is the base a liquidation of share would yield now.
func (w *Worker) EstimateWithdraw(share sdkmath.Int) (sdkmath.Int, error) {
	s, ok := w.strategies.Get(w.cfg.Strategies.Liquidate)
	if !ok {
		return sdkmath.Int{}, errorsmod.Wrapf(types.ErrUnknownComponent, "strategy %s", w.cfg.Strategies.Liquidate)
	}
	return s.Estimate(w.cfg.BaseToken, w.cfg.Token0, w.cfg.Token1, share)
}

// EstimateDeposit is the LP a deposit of amount would mint now.
func (w *Worker) EstimateDeposit(amount sdkmath.Int) (sdkmath.Int, error) {
	addr := w.DepositStrategy()
	s, ok := w.strategies.Get(addr)
	if !ok {
		return sdkmath.Int{}, errorsmod.Wrapf(types.ErrUnknownComponent, "strategy %s", addr)
	}
	return s.Estimate(w.cfg.BaseToken, w.cfg.Token0, w.cfg.Token1, amount)
}

func (w *Worker) authorizeConfig(caller types.Address) error {
	if w.auth.Has(auth.KindAdmin, caller) || w.auth.IsOperator(caller) {
		return nil
	}
	return errorsmod.Wrapf(types.ErrUnauthorized, "%s may not configure %s", caller, w.cfg.Address)
}

// SetTreasuryFee changes the treasury cut of harvests.
func (w *Worker) SetTreasuryFee(caller types.Address, bps uint16) error {
	leave, err := w.enter()
	if err != nil {
		return err
	}
	defer leave()

	if err := w.authorizeConfig(caller); err != nil {
		return err
	}
	if int(bps) >= types.BpsDenominator {
		return errorsmod.Wrapf(types.ErrInvariantViolation, "treasury fee %d bps", bps)
	}
	if w.clientFees != nil {
		if client := w.clientFees.MaxWorkerFeeBps(w.cfg.Address); int(bps)+int(client) >= types.BpsDenominator {
			return errorsmod.Wrapf(types.ErrInvariantViolation,
				"treasury fee %d + client fee %d bps on %s", bps, client, w.cfg.Address)
		}
	}
	w.cfg.TreasuryFeeBps = bps
	return nil
}

// SetStrategies replaces the worker's strategy set. Each must be deployed
// with the matching kind; approval is checked again on every Work.
func (w *Worker) SetStrategies(caller types.Address, s Strategies) error {
	leave, err := w.enter()
	if err != nil {
		return err
	}
	defer leave()

	if err := w.authorizeConfig(caller); err != nil {
		return err
	}
	for addr, kind := range map[types.Address]strategy.Kind{
		s.AddBase:   strategy.KindAddBaseOnly,
		s.AddNoBase: strategy.KindAddNoBase,
		s.Liquidate: strategy.KindLiquidate,
	} {
		if addr == "" {
			continue
		}
		got, ok := w.strategies.Get(addr)
		if !ok {
			return errorsmod.Wrapf(types.ErrUnknownComponent, "strategy %s", addr)
		}
		if got.Kind() != kind {
			return errorsmod.Wrapf(types.ErrInvalidArgument, "strategy %s is %s, want %s", addr, got.Kind(), kind)
		}
	}
	if s.Liquidate == "" || s.DepositFor(w.BaseInPair()) == "" {
		return errorsmod.Wrap(types.ErrInvalidArgument, "worker needs a deposit and a liquidate strategy")
	}
	w.cfg.Strategies = s
	return nil
}

// DepositFor returns the deposit strategy matching the pair shape.
func (s Strategies) DepositFor(baseInPair bool) types.Address {
	if baseInPair {
		return s.AddBase
	}
	return s.AddNoBase
}

// EmergencyExit force-harvests, then liquidates the whole stake to
// recipient and clears every share. Only the admin contract may call it.
func (w *Worker) EmergencyExit(caller, recipient types.Address) (ExitReport, error) {
	leave, err := w.enter()
	if err != nil {
		return ExitReport{}, err
	}
	defer leave()

	if !w.auth.Has(auth.KindAdmin, caller) {
		return ExitReport{}, errorsmod.Wrapf(types.ErrUnauthorized, "%s is not the admin contract", caller)
	}

	report := ExitReport{Liquidated: sdkmath.ZeroInt()}
	report.Harvest, err = w.harvest(true)
	if err != nil {
		return ExitReport{}, err
	}

	if w.totalShare.IsPositive() {
		s, ok := w.strategies.Get(w.cfg.Strategies.Liquidate)
		if !ok {
			return ExitReport{}, errorsmod.Wrapf(types.ErrUnknownComponent, "strategy %s", w.cfg.Strategies.Liquidate)
		}
		res, err := w.liquidate(s, w.totalShare, sdkmath.ZeroInt(), recipient)
		if err != nil {
			return ExitReport{}, err
		}
		report.Liquidated = res.BaseOut
	}

	w.shares = make(map[types.PositionID]sdkmath.Int)
	w.totalShare = sdkmath.ZeroInt()
	return report, nil
}

// Checkpoint captures shares and settings. The returned function restores
// them.
func (w *Worker) Checkpoint() (restore func()) {
	cfg := w.Config()
	shares := make(map[types.PositionID]sdkmath.Int, len(w.shares))
	for id, s := range w.shares {
		shares[id] = s
	}
	total := w.totalShare
	return func() {
		w.cfg = cfg
		w.shares = shares
		w.totalShare = total
		w.entered = false
	}
}
