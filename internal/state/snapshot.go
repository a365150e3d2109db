package state

import (
	"encoding/json"

	sdkmath "cosmossdk.io/math"

	"VaultLedger/internal/auth"
	"VaultLedger/internal/client"
	"VaultLedger/internal/dex"
	"VaultLedger/internal/farm"
	"VaultLedger/internal/fees"
	"VaultLedger/internal/types"
	"VaultLedger/internal/vault"
)

type BalanceEntry struct {
	Account string      `json:"account"`
	Amount  sdkmath.Int `json:"amount"`
}

type RewardPool struct {
	Key    types.PoolKey `json:"key"`
	Amount sdkmath.Int   `json:"amount"`
}

type VaultState struct {
	Address          types.Address                 `json:"address"`
	BaseToken        types.TokenID                 `json:"base_token"`
	Workers          []types.Address               `json:"workers"`
	Positions        []vault.Position              `json:"positions"`
	Rewards          []RewardPool                  `json:"rewards"`
	RewardsToCollect map[types.Address]sdkmath.Int `json:"rewards_to_collect"`
	Credits          []vault.Credit                `json:"credits"`
}

type WorkerState struct {
	Address        types.Address `json:"address"`
	Vault          types.Address `json:"vault"`
	FarmPoolID     uint64        `json:"farm_pool_id"`
	TreasuryFeeBps uint16        `json:"treasury_fee_bps"`
	TotalShare     sdkmath.Int   `json:"total_share"`
	AddBase        types.Address `json:"add_base"`
	AddNoBase      types.Address `json:"add_no_base"`
	Liquidate      types.Address `json:"liquidate"`
}

type CollectorState struct {
	Address   types.Address  `json:"address"`
	Token     types.TokenID  `json:"token"`
	Threshold sdkmath.Int    `json:"threshold"`
	Balances  []fees.Balance `json:"balances"`
}

// Snapshot is the full protocol state in deterministic order.
type Snapshot struct {
	Block      uint64           `json:"block"`
	Balances   []BalanceEntry   `json:"balances"`
	Pairs      []dex.PairState  `json:"pairs"`
	FarmPools  []farm.PoolInfo  `json:"farm_pools"`
	Registry   auth.State       `json:"registry"`
	Vaults     []VaultState     `json:"vaults"`
	Workers    []WorkerState    `json:"workers"`
	Clients    []client.State   `json:"clients"`
	Collectors []CollectorState `json:"collectors"`
}

func (w *World) Snapshot() Snapshot {
	s := Snapshot{
		Block:     w.Farm.Block(),
		Pairs:     w.Exchange.Pairs(),
		FarmPools: w.Farm.Pools(),
		Registry:  w.Registry.Snapshot(),
	}
	balances := w.Bank.Snapshot()
	for _, key := range w.Bank.SortedKeys() {
		s.Balances = append(s.Balances, BalanceEntry{Account: key.AccountPath(), Amount: balances[key]})
	}
	for _, v := range w.Vaults() {
		vs := VaultState{
			Address:          v.Address(),
			BaseToken:        v.BaseToken(),
			Workers:          v.Workers(),
			Positions:        v.AllPositions(),
			RewardsToCollect: v.OwnerRewards(),
			Credits:          v.Credits(),
		}
		for _, addr := range vs.Workers {
			key := w.workers[addr].PoolKey()
			vs.Rewards = append(vs.Rewards, RewardPool{Key: key, Amount: v.Rewards(key)})
		}
		s.Vaults = append(s.Vaults, vs)
	}
	for _, wk := range w.Workers() {
		st := wk.Strategies()
		s.Workers = append(s.Workers, WorkerState{
			Address:        wk.Address(),
			Vault:          wk.Vault(),
			FarmPoolID:     wk.FarmPoolID(),
			TreasuryFeeBps: wk.TreasuryFeeBps(),
			TotalShare:     wk.TotalShare(),
			AddBase:        st.AddBase,
			AddNoBase:      st.AddNoBase,
			Liquidate:      st.Liquidate,
		})
	}
	for _, c := range w.Clients() {
		s.Clients = append(s.Clients, c.Snapshot())
	}
	for _, c := range w.Collectors() {
		s.Collectors = append(s.Collectors, CollectorState{
			Address:   c.Address(),
			Token:     c.Token(),
			Threshold: c.BountyThreshold(),
			Balances:  c.Balances(),
		})
	}
	return s
}

// CanonicalBytes encodes the snapshot for state hashing. Map keys are
// emitted sorted, so equal states encode identically.
func (s Snapshot) CanonicalBytes() []byte {
	raw, err := json.Marshal(s)
	if err != nil {
		panic("state snapshot not encodable: " + err.Error())
	}
	return raw
}
