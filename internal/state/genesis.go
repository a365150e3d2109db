package state

import (
	"fmt"
	"os"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"gopkg.in/yaml.v3"

	fpmath "VaultLedger/internal/math"
	"VaultLedger/internal/types"
)

// Amount is an integer token amount written as a decimal string in YAML.
type Amount struct {
	sdkmath.Int
}

func (a *Amount) UnmarshalYAML(node *yaml.Node) error {
	v, ok := sdkmath.NewIntFromString(node.Value)
	if !ok {
		return fmt.Errorf("line %d: invalid amount %q", node.Line, node.Value)
	}
	a.Int = v
	return nil
}

func (a Amount) MarshalYAML() (any, error) {
	return types.OrZero(a.Int).String(), nil
}

// Value returns the amount, zero when it was omitted.
func (a Amount) Value() sdkmath.Int {
	return types.OrZero(a.Int)
}

type BalanceConfig struct {
	Holder types.Address `yaml:"holder"`
	Token  types.TokenID `yaml:"token"`
	Amount Amount        `yaml:"amount"`
}

// PoolConfig creates a pair. When both amounts are set the provider is
// minted them and adds them as initial liquidity.
type PoolConfig struct {
	TokenA   types.TokenID `yaml:"token_a"`
	TokenB   types.TokenID `yaml:"token_b"`
	AmountA  Amount        `yaml:"amount_a"`
	AmountB  Amount        `yaml:"amount_b"`
	Provider types.Address `yaml:"provider"`
}

type FarmPoolConfig struct {
	TokenA         types.TokenID `yaml:"token_a"`
	TokenB         types.TokenID `yaml:"token_b"`
	RewardPerBlock Amount        `yaml:"reward_per_block"`
}

type FarmConfig struct {
	Address     types.Address    `yaml:"address"`
	RewardToken types.TokenID    `yaml:"reward_token"`
	Pools       []FarmPoolConfig `yaml:"pools"`
}

type StrategyConfig struct {
	Address types.Address `yaml:"address"`
	Kind    string        `yaml:"kind"`
}

type VaultConfig struct {
	Address         types.Address `yaml:"address"`
	BaseToken       types.TokenID `yaml:"base_token"`
	FeeCollector    types.Address `yaml:"fee_collector"`
	BountyThreshold Amount        `yaml:"bounty_threshold"`
}

type WorkerStrategies struct {
	AddBase   types.Address `yaml:"add_base"`
	AddNoBase types.Address `yaml:"add_no_base"`
	Liquidate types.Address `yaml:"liquidate"`
}

type WorkerConfig struct {
	Address           types.Address    `yaml:"address"`
	Vault             types.Address    `yaml:"vault"`
	Token0            types.TokenID    `yaml:"token0"`
	Token1            types.TokenID    `yaml:"token1"`
	ReinvestPath      []types.TokenID  `yaml:"reinvest_path"`
	ReinvestThreshold Amount           `yaml:"reinvest_threshold"`
	TreasuryFeeBps    uint16           `yaml:"treasury_fee_bps"`
	Treasury          types.Address    `yaml:"treasury"`
	Strategies        WorkerStrategies `yaml:"strategies"`
}

type ClientConfig struct {
	Address   types.Address            `yaml:"address"`
	Vault     types.Address            `yaml:"vault"`
	Operators []types.Address          `yaml:"operators"`
	Users     []types.Address          `yaml:"users"`
	Workers   []types.Address          `yaml:"workers"`
	FeeBps    map[types.Address]uint16 `yaml:"fee_bps"`
}

// Genesis is the initial deployment: every component, its wiring and the
// registry approvals. Vaults, workers, strategies and clients listed here
// are approved automatically; Approvals covers the remaining capabilities.
type Genesis struct {
	Operators  []types.Address            `yaml:"operators"`
	Admin      types.Address              `yaml:"admin"`
	SwapFee    fpmath.FeeModel            `yaml:"swap_fee"`
	Stables    []types.TokenID            `yaml:"stables"`
	Balances   []BalanceConfig            `yaml:"balances"`
	Pools      []PoolConfig               `yaml:"pools"`
	Farm       FarmConfig                 `yaml:"farm"`
	Strategies []StrategyConfig           `yaml:"strategies"`
	Vaults     []VaultConfig              `yaml:"vaults"`
	Workers    []WorkerConfig             `yaml:"workers"`
	Clients    []ClientConfig             `yaml:"clients"`
	Approvals  map[string][]types.Address `yaml:"approvals"`
}

// LoadGenesis reads and validates a genesis file.
func LoadGenesis(path string) (*Genesis, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis: %w", err)
	}
	return ParseGenesis(raw)
}

func ParseGenesis(raw []byte) (*Genesis, error) {
	var g Genesis
	if err := yaml.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("parse genesis: %w", err)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

// Validate checks the structural rules that do not need a running world.
// Wiring errors (missing pools, unknown strategies) surface from NewWorld.
func (g *Genesis) Validate() error {
	if len(g.Operators) == 0 {
		return errorsmod.Wrap(types.ErrInvalidArgument, "genesis needs at least one operator")
	}
	if g.Farm.Address == "" || g.Farm.RewardToken == "" {
		return errorsmod.Wrap(types.ErrInvalidArgument, "farm address and reward token are required")
	}

	seen := make(map[types.Address]string)
	claim := func(a types.Address, what string) error {
		if a == "" {
			return errorsmod.Wrapf(types.ErrInvalidArgument, "%s without address", what)
		}
		if prev, dup := seen[a]; dup {
			return errorsmod.Wrapf(types.ErrInvalidArgument, "address %s used by %s and %s", a, prev, what)
		}
		seen[a] = what
		return nil
	}
	if err := claim(g.Farm.Address, "farm"); err != nil {
		return err
	}
	if g.Admin != "" {
		if err := claim(g.Admin, "admin"); err != nil {
			return err
		}
	}

	bases := make(map[types.TokenID]types.Address)
	vaults := make(map[types.Address]struct{})
	for _, v := range g.Vaults {
		if err := claim(v.Address, "vault"); err != nil {
			return err
		}
		if err := claim(v.FeeCollector, "fee collector of "+string(v.Address)); err != nil {
			return err
		}
		if v.BaseToken == "" {
			return errorsmod.Wrapf(types.ErrInvalidArgument, "vault %s has no base token", v.Address)
		}
		if other, dup := bases[v.BaseToken]; dup {
			return errorsmod.Wrapf(types.ErrInvariantViolation, "vaults %s and %s share base token %s", other, v.Address, v.BaseToken)
		}
		bases[v.BaseToken] = v.Address
		vaults[v.Address] = struct{}{}
	}
	for _, s := range g.Strategies {
		if err := claim(s.Address, "strategy"); err != nil {
			return err
		}
	}
	for _, w := range g.Workers {
		if err := claim(w.Address, "worker"); err != nil {
			return err
		}
		if _, ok := vaults[w.Vault]; !ok {
			return errorsmod.Wrapf(types.ErrUnknownComponent, "worker %s names unknown vault %s", w.Address, w.Vault)
		}
		if w.TreasuryFeeBps >= types.BpsDenominator {
			return errorsmod.Wrapf(types.ErrInvalidArgument, "worker %s treasury fee %d bps", w.Address, w.TreasuryFeeBps)
		}
	}
	for _, c := range g.Clients {
		if err := claim(c.Address, "client"); err != nil {
			return err
		}
		if _, ok := vaults[c.Vault]; !ok {
			return errorsmod.Wrapf(types.ErrUnknownComponent, "client %s names unknown vault %s", c.Address, c.Vault)
		}
		if len(c.Operators) == 0 {
			return errorsmod.Wrapf(types.ErrInvalidArgument, "client %s has no operators", c.Address)
		}
	}
	return nil
}
