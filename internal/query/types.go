package query

import (
	"time"

	sdkmath "cosmossdk.io/math"

	"VaultLedger/internal/fees"
	"VaultLedger/internal/projection"
	"VaultLedger/internal/types"
	"VaultLedger/internal/vault"
)

// Every response carries as_of_sequence: the core sequence for live state,
// the projection watermark for table reads.

// PositionsResponse lists an owner's positions across vaults.
type PositionsResponse struct {
	Owner        types.Address    `json:"owner"`
	Positions    []vault.Position `json:"positions"`
	AsOfSequence int64            `json:"as_of_sequence"`
}

// RewardsResponse is what an owner can collect from a vault now, plus the
// running total already collected when the projection tables are present.
type RewardsResponse struct {
	Vault        types.Address `json:"vault"`
	Owner        types.Address `json:"owner"`
	Pending      sdkmath.Int   `json:"pending"`
	Collected    sdkmath.Int   `json:"collected"`
	AsOfSequence int64         `json:"as_of_sequence"`
}

// CollectorResponse lists outstanding fee balances on one collector.
type CollectorResponse struct {
	Collector    types.Address  `json:"collector"`
	Token        types.TokenID  `json:"token"`
	Threshold    sdkmath.Int    `json:"threshold"`
	Balances     []fees.Balance `json:"balances"`
	AsOfSequence int64          `json:"as_of_sequence"`
}

// DepositQuote is the LP a deposit would mint at current reserves.
type DepositQuote struct {
	Worker       types.Address `json:"worker"`
	Amount       sdkmath.Int   `json:"amount"`
	LP           sdkmath.Int   `json:"lp"`
	AsOfSequence int64         `json:"as_of_sequence"`
}

// AmountsQuote is what burning lp on a worker's pair would return.
type AmountsQuote struct {
	Worker       types.Address `json:"worker"`
	LP           sdkmath.Int   `json:"lp"`
	Token0       types.TokenID `json:"token0"`
	Token1       types.TokenID `json:"token1"`
	Amount0      sdkmath.Int   `json:"amount0"`
	Amount1      sdkmath.Int   `json:"amount1"`
	AsOfSequence int64         `json:"as_of_sequence"`
}

// PositionInfoResponse prices one position in the base token.
type PositionInfoResponse struct {
	Vault types.Address `json:"vault"`
	vault.PositionValue
	AsOfSequence int64 `json:"as_of_sequence"`
}

type HarvestsResponse struct {
	Worker       types.Address             `json:"worker"`
	Harvests     []projection.HarvestEntry `json:"harvests"`
	AsOfSequence int64                     `json:"as_of_sequence"`
}

// JournalHistoryEntry is one logged token movement.
type JournalHistoryEntry struct {
	JournalID     string `json:"journal_id"`
	BatchID       string `json:"batch_id"`
	EventRef      string `json:"event_ref"`
	Sequence      int64  `json:"sequence"`
	DebitAccount  string `json:"debit_account"`
	CreditAccount string `json:"credit_account"`
	Token         string `json:"token"`
	Amount        string `json:"amount"`
	JournalType   string `json:"journal_type"`
	Timestamp     int64  `json:"timestamp"`
}

// CollectedTotal is a projected running total of paid-out rewards or fees.
type CollectedTotal struct {
	Scope        types.Address `json:"scope"`
	Who          types.Address `json:"who"`
	Collected    sdkmath.Int   `json:"collected"`
	LastSequence int64         `json:"last_sequence"`
}

// IntegrityReport is the result of an integrity verification check over
// the persisted command log.
type IntegrityReport struct {
	IsHealthy       bool      `json:"is_healthy"`
	HashChainBreaks []int64   `json:"hash_chain_breaks,omitempty"`
	SequenceGaps    []int64   `json:"sequence_gaps,omitempty"`
	LastSequence    int64     `json:"last_sequence"`
	CheckedAt       time.Time `json:"checked_at"`
}
