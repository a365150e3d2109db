package core

import (
	"encoding/json"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"VaultLedger/internal/admin"
	"VaultLedger/internal/event"
	"VaultLedger/internal/strategy"
	"VaultLedger/internal/types"
	"VaultLedger/internal/vault"
	"VaultLedger/internal/worker"
)

type DepositOutcome struct {
	Vault    types.Address   `json:"vault"`
	Position vault.Position  `json:"position"`
	Dust     []strategy.Coin `json:"dust,omitempty"`
}

type WithdrawOutcome struct {
	Vault    types.Address  `json:"vault"`
	Position vault.Position `json:"position"`
	BaseOut  sdkmath.Int    `json:"base_out"`
}

type CollectOutcome struct {
	Vault  types.Address `json:"vault"`
	Owner  types.Address `json:"owner"`
	Amount sdkmath.Int   `json:"amount"`
}

type HarvestOutcome struct {
	Report       worker.HarvestReport `json:"report"`
	Distribution *vault.Distribution  `json:"distribution,omitempty"`
}

type FeeOutcome struct {
	Collector   types.Address `json:"collector"`
	Beneficiary types.Address `json:"beneficiary"`
	Amount      sdkmath.Int   `json:"amount"`
}

type EmergencyOutcome struct {
	admin.Report
}

type FarmOutcome struct {
	Block   uint64      `json:"block"`
	Emitted sdkmath.Int `json:"emitted"`
}

type LiquidityOutcome struct {
	AmountA   sdkmath.Int `json:"amount_a"`
	AmountB   sdkmath.Int `json:"amount_b"`
	Liquidity sdkmath.Int `json:"liquidity"`
}

type SwapOutcome struct {
	AmountOut sdkmath.Int `json:"amount_out"`
}

// DecodeResult rebuilds the typed outcome of a logged command from its
// JSON result. Configuration commands have no outcome and decode to nil.
func DecodeResult(et event.EventType, data []byte) (any, error) {
	var out any
	switch et {
	case event.EventTypeDeposit:
		out = &DepositOutcome{}
	case event.EventTypeWithdraw:
		out = &WithdrawOutcome{}
	case event.EventTypeCollectRewards:
		out = &CollectOutcome{}
	case event.EventTypeHarvest:
		out = &HarvestOutcome{}
	case event.EventTypeCollectFees, event.EventTypeClientCollectFees:
		out = &FeeOutcome{}
	case event.EventTypeEmergencyWithdraw:
		out = &EmergencyOutcome{}
	case event.EventTypeAdvanceFarm:
		out = &FarmOutcome{}
	case event.EventTypeSeedLiquidity:
		out = &LiquidityOutcome{}
	case event.EventTypeSwap:
		out = &SwapOutcome{}
	default:
		return nil, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("decode %s result: %w", et, err)
	}
	switch o := out.(type) {
	case *DepositOutcome:
		return *o, nil
	case *WithdrawOutcome:
		return *o, nil
	case *CollectOutcome:
		return *o, nil
	case *HarvestOutcome:
		return *o, nil
	case *FeeOutcome:
		return *o, nil
	case *EmergencyOutcome:
		return *o, nil
	case *FarmOutcome:
		return *o, nil
	case *LiquidityOutcome:
		return *o, nil
	case *SwapOutcome:
		return *o, nil
	}
	return nil, nil
}
