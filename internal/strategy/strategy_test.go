package strategy_test

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"VaultLedger/internal/auth"
	"VaultLedger/internal/dex"
	"VaultLedger/internal/ledger"
	fpmath "VaultLedger/internal/math"
	"VaultLedger/internal/strategy"
	"VaultLedger/internal/types"
)

const (
	base types.TokenID = "BASE"
	farm types.TokenID = "FARM"
	usd  types.TokenID = "USD"

	operator types.Address = "operator"
	worker   types.Address = "worker"
	seeder   types.Address = "seeder"
)

type fixture struct {
	bank      *ledger.BalanceTracker
	ex        *dex.Exchange
	reg       *auth.Registry
	addBase   *strategy.AddBaseOnly
	addNoBase *strategy.AddNoBase
	liquidate *strategy.Liquidate
}

func tokens(n int64) sdkmath.Int { return fpmath.Unit.MulRaw(n) }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	bank := ledger.NewBalanceTracker(nil)
	ex, err := dex.NewExchange(bank, fpmath.DefaultFee)
	require.NoError(t, err)
	reg := auth.NewRegistry([]types.Address{operator}, func(types.Address) (types.TokenID, bool) { return "", false })

	f := &fixture{
		bank:      bank,
		ex:        ex,
		reg:       reg,
		addBase:   strategy.NewAddBaseOnly("strategy/add-base", ex, bank, reg),
		addNoBase: strategy.NewAddNoBase("strategy/add-no-base", ex, bank, reg),
		liquidate: strategy.NewLiquidate("strategy/liquidate", ex, bank, reg),
	}
	require.NoError(t, reg.Approve(operator, auth.KindWorker, []types.Address{worker}, true))
	require.NoError(t, reg.Approve(operator, auth.KindStrategy, []types.Address{
		f.addBase.Address(), f.addNoBase.Address(), f.liquidate.Address(),
	}, true))

	f.seed(t, base, farm, tokens(1000), tokens(100))
	return f
}

func (f *fixture) seed(t *testing.T, a, b types.TokenID, ra, rb sdkmath.Int) {
	t.Helper()
	_, err := f.ex.CreatePair(a, b)
	require.NoError(t, err)
	require.NoError(t, f.bank.Mint(seeder, a, ra))
	require.NoError(t, f.bank.Mint(seeder, b, rb))
	_, _, _, err = f.ex.AddLiquidity(seeder, a, b, ra, rb, sdkmath.ZeroInt(), sdkmath.ZeroInt(), seeder)
	require.NoError(t, err)
}

func (f *fixture) deposit(t *testing.T, s strategy.Strategy, t0, t1 types.TokenID, amount sdkmath.Int) strategy.Result {
	t.Helper()
	require.NoError(t, f.bank.Mint(worker, base, amount))
	require.NoError(t, s.Stage(worker, base, amount))
	res, err := s.Execute(worker, strategy.Params{
		BaseToken: base, Token0: t0, Token1: t1,
		MinLP: sdkmath.ZeroInt(), Recipient: worker,
	})
	require.NoError(t, err)
	return res
}

// ============================================================================
// Test: AddBaseOnly
// ============================================================================

func TestAddBaseOnly_TenToOnePool(t *testing.T) {
	f := newFixture(t)
	deposit := fpmath.Unit.QuoRaw(10)

	est, err := f.addBase.Estimate(base, base, farm, deposit)
	require.NoError(t, err)

	first := f.deposit(t, f.addBase, base, farm, deposit)
	assert.Equal(t, "15791204559624730", first.LPMinted.String())
	assert.True(t, est.Equal(first.LPMinted), "estimate %s != executed %s", est, first.LPMinted)
	assert.Empty(t, first.Dust)

	second := f.deposit(t, f.addBase, base, farm, deposit)
	assert.Equal(t, "15790414110015922", second.LPMinted.String())

	lpToken, _ := f.ex.LPToken(base, farm)
	assert.Equal(t, "31581618669640652", f.bank.BalanceOf(worker, lpToken).String())

	// The strategy ends every call holding nothing.
	assert.True(t, f.bank.BalanceOf(f.addBase.Address(), base).IsZero())
	assert.True(t, f.bank.BalanceOf(f.addBase.Address(), farm).IsZero())
	assert.True(t, f.bank.BalanceOf(f.addBase.Address(), lpToken).IsZero())
}

func TestAddBaseOnly_MinLP(t *testing.T) {
	f := newFixture(t)
	amount := fpmath.Unit.QuoRaw(10)
	require.NoError(t, f.bank.Mint(worker, base, amount))
	require.NoError(t, f.addBase.Stage(worker, base, amount))

	_, err := f.addBase.Execute(worker, strategy.Params{
		BaseToken: base, Token0: base, Token1: farm,
		MinLP: tokens(1), Recipient: worker,
	})
	require.ErrorIs(t, err, types.ErrSlippageExceeded)
}

func TestAddBaseOnly_RejectsPairWithoutBase(t *testing.T) {
	f := newFixture(t)
	_, err := f.addBase.Estimate(base, farm, usd, tokens(1))
	require.ErrorIs(t, err, types.ErrInvalidPair)
}

func TestAddBaseOnly_MissingPool(t *testing.T) {
	f := newFixture(t)
	_, err := f.addBase.Estimate(base, base, usd, tokens(1))
	require.ErrorIs(t, err, types.ErrPoolNotFound)
}

func TestAddBaseOnly_EmptyPoolAddsWithoutSwap(t *testing.T) {
	f := newFixture(t)
	_, err := f.ex.CreatePair(base, usd)
	require.NoError(t, err)

	require.NoError(t, f.bank.Mint(worker, base, tokens(4)))
	require.NoError(t, f.bank.Mint(worker, usd, tokens(1)))
	require.NoError(t, f.addBase.Stage(worker, base, tokens(4)))
	require.NoError(t, f.addBase.Stage(worker, usd, tokens(1)))

	res, err := f.addBase.Execute(worker, strategy.Params{
		BaseToken: base, Token0: base, Token1: usd, Recipient: worker,
	})
	require.NoError(t, err)
	// sqrt(4e18 * 1e18) - 1000
	assert.Equal(t, tokens(2).SubRaw(1000).String(), res.LPMinted.String())

	rb, ru, _ := f.ex.GetReserves(base, usd)
	assert.True(t, rb.Equal(tokens(4)))
	assert.True(t, ru.Equal(tokens(1)))
}

func TestExecute_RequiresApprovedWorker(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.bank.Mint("mallory", base, tokens(1)))
	require.NoError(t, f.addBase.Stage("mallory", base, tokens(1)))

	_, err := f.addBase.Execute("mallory", strategy.Params{
		BaseToken: base, Token0: base, Token1: farm, Recipient: "mallory",
	})
	require.ErrorIs(t, err, types.ErrUnauthorized)
}

func TestExecute_RequiresApprovedStrategy(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.reg.Approve(operator, auth.KindStrategy, []types.Address{f.addBase.Address()}, false))
	require.NoError(t, f.bank.Mint(worker, base, tokens(1)))
	require.NoError(t, f.addBase.Stage(worker, base, tokens(1)))

	_, err := f.addBase.Execute(worker, strategy.Params{
		BaseToken: base, Token0: base, Token1: farm, Recipient: worker,
	})
	require.ErrorIs(t, err, types.ErrUnauthorized)
}

// ============================================================================
// Test: AddNoBase
// ============================================================================

func TestAddNoBase_RoutesThroughIntermediate(t *testing.T) {
	f := newFixture(t)
	f.seed(t, farm, usd, tokens(100), tokens(400))

	est, err := f.addNoBase.Estimate(base, farm, usd, tokens(1))
	require.NoError(t, err)

	res := f.deposit(t, f.addNoBase, farm, usd, tokens(1))
	assert.True(t, res.LPMinted.IsPositive())
	assert.True(t, est.Equal(res.LPMinted))

	lpToken, _ := f.ex.LPToken(farm, usd)
	assert.True(t, f.bank.BalanceOf(worker, lpToken).Equal(res.LPMinted))
	assert.True(t, f.bank.BalanceOf(f.addNoBase.Address(), base).IsZero())
}

func TestAddNoBase_RejectsBasePair(t *testing.T) {
	f := newFixture(t)
	_, err := f.addNoBase.Estimate(base, base, farm, tokens(1))
	require.ErrorIs(t, err, types.ErrInvalidPair)
}

func TestAddNoBase_NoIntermediatePool(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "ETH", usd, tokens(10), tokens(20))
	_, err := f.addNoBase.Estimate(base, "ETH", usd, tokens(1))
	require.ErrorIs(t, err, types.ErrPoolNotFound)
}

// ============================================================================
// Test: Liquidate
// ============================================================================

func TestLiquidate_MatchesEstimateAndLosesFees(t *testing.T) {
	f := newFixture(t)
	deposit := fpmath.Unit.QuoRaw(10)
	first := f.deposit(t, f.addBase, base, farm, deposit)
	f.deposit(t, f.addBase, base, farm, deposit)

	est, err := f.liquidate.Estimate(base, base, farm, first.LPMinted)
	require.NoError(t, err)

	a0, a1, err := f.liquidate.EstimateAmounts(base, farm, first.LPMinted)
	require.NoError(t, err)
	assert.Equal(t, "49941173023413158", a0.String())
	assert.Equal(t, "4993118678605594", a1.String())

	lpToken, _ := f.ex.LPToken(base, farm)
	require.NoError(t, f.liquidate.Stage(worker, lpToken, first.LPMinted))
	res, err := f.liquidate.Execute(worker, strategy.Params{
		BaseToken: base, Token0: base, Token1: farm,
		MinBaseOut: sdkmath.ZeroInt(), Recipient: "owner",
	})
	require.NoError(t, err)

	assert.Equal(t, "99755011944444565", res.BaseOut.String())
	assert.True(t, est.Equal(res.BaseOut))
	assert.True(t, res.BaseOut.LT(deposit))
	assert.True(t, f.bank.BalanceOf("owner", base).Equal(res.BaseOut))
}

func TestLiquidate_MinBaseOut(t *testing.T) {
	f := newFixture(t)
	res := f.deposit(t, f.addBase, base, farm, tokens(1))
	lpToken, _ := f.ex.LPToken(base, farm)
	require.NoError(t, f.liquidate.Stage(worker, lpToken, res.LPMinted))

	_, err := f.liquidate.Execute(worker, strategy.Params{
		BaseToken: base, Token0: base, Token1: farm,
		MinBaseOut: tokens(1), Recipient: worker,
	})
	require.ErrorIs(t, err, types.ErrSlippageExceeded)
}

func TestLiquidate_NoBasePairRoutesBack(t *testing.T) {
	f := newFixture(t)
	f.seed(t, farm, usd, tokens(100), tokens(400))
	res := f.deposit(t, f.addNoBase, farm, usd, tokens(1))

	est, err := f.liquidate.Estimate(base, farm, usd, res.LPMinted)
	require.NoError(t, err)

	lpToken, _ := f.ex.LPToken(farm, usd)
	require.NoError(t, f.liquidate.Stage(worker, lpToken, res.LPMinted))
	out, err := f.liquidate.Execute(worker, strategy.Params{
		BaseToken: base, Token0: farm, Token1: usd, Recipient: worker,
	})
	require.NoError(t, err)
	assert.True(t, out.BaseOut.Equal(est))
	assert.True(t, out.BaseOut.LT(tokens(1)))
	assert.True(t, f.bank.BalanceOf(f.liquidate.Address(), usd).IsZero())
}

func TestLiquidate_RoutesThroughStable(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "ETH", "WBTC", tokens(10), tokens(1))
	f.seed(t, "ETH", usd, tokens(10), tokens(20_000))
	f.seed(t, "WBTC", usd, tokens(1), tokens(20_000))
	f.seed(t, usd, base, tokens(20_000), tokens(20_000))

	_, err := f.liquidate.Estimate(base, "ETH", "WBTC", tokens(1))
	require.ErrorIs(t, err, types.ErrPoolNotFound)

	require.NoError(t, f.reg.SetStables(operator, []types.TokenID{usd}))
	out, err := f.liquidate.Estimate(base, "ETH", "WBTC", tokens(1))
	require.NoError(t, err)
	assert.True(t, out.IsPositive())
}

func TestBook(t *testing.T) {
	f := newFixture(t)
	book := strategy.NewBook(f.addBase, f.liquidate)
	require.NoError(t, book.Add(f.addNoBase))
	require.Error(t, book.Add(f.addNoBase))

	s, ok := book.Get(f.liquidate.Address())
	require.True(t, ok)
	assert.Equal(t, strategy.KindLiquidate, s.Kind())
	assert.Len(t, book.All(), 3)
}
