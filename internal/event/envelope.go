package event

import (
	"time"

	"VaultLedger/internal/types"
)

// EventType discriminator for command payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota

	// Positions
	EventTypeDeposit
	EventTypeWithdraw
	EventTypeCollectRewards

	// Yield and fees
	EventTypeHarvest
	EventTypeRegisterFees
	EventTypeCollectFees
	EventTypeClientCollectFees
	EventTypeEmergencyWithdraw

	// Registry and component configuration
	EventTypeApprove
	EventTypeWhitelistOperator
	EventTypeSetStables
	EventTypeSetTreasuryFee
	EventTypeSetStrategies
	EventTypeSetBountyThreshold
	EventTypeSetWorkerFee
	EventTypeSetUsers
	EventTypeEnableWorkers
	EventTypeSetClientOperator

	// Market plumbing
	EventTypeAdvanceFarm
	EventTypeMint
	EventTypeSeedLiquidity
	EventTypeSwap
)

var eventTypeNames = map[EventType]string{
	EventTypeDeposit:            "deposit",
	EventTypeWithdraw:           "withdraw",
	EventTypeCollectRewards:     "collect_rewards",
	EventTypeHarvest:            "harvest",
	EventTypeRegisterFees:       "register_fees",
	EventTypeCollectFees:        "collect_fees",
	EventTypeClientCollectFees:  "client_collect_fees",
	EventTypeEmergencyWithdraw:  "emergency_withdraw",
	EventTypeApprove:            "approve",
	EventTypeWhitelistOperator:  "whitelist_operator",
	EventTypeSetStables:         "set_stables",
	EventTypeSetTreasuryFee:     "set_treasury_fee",
	EventTypeSetStrategies:      "set_strategies",
	EventTypeSetBountyThreshold: "set_bounty_threshold",
	EventTypeSetWorkerFee:       "set_worker_fee",
	EventTypeSetUsers:           "set_users",
	EventTypeEnableWorkers:      "enable_workers",
	EventTypeSetClientOperator:  "set_client_operator",
	EventTypeAdvanceFarm:        "advance_farm",
	EventTypeMint:               "mint",
	EventTypeSeedLiquidity:      "seed_liquidity",
	EventTypeSwap:               "swap",
}

func (et EventType) String() string {
	if name, ok := eventTypeNames[et]; ok {
		return name
	}
	return "unknown"
}

// ParseEventType maps a wire name (also the NATS subject suffix) to its type.
func ParseEventType(name string) EventType {
	for et, n := range eventTypeNames {
		if n == name {
			return et
		}
	}
	return EventTypeUnknown
}

// EventTypes lists every known type in declaration order.
func EventTypes() []EventType {
	out := make([]EventType, 0, len(eventTypeNames))
	for et := EventTypeDeposit; et <= EventTypeSwap; et++ {
		out = append(out, et)
	}
	return out
}

// EventEnvelope wraps every accepted command in the log
type EventEnvelope struct {
	// Global monotonic sequence assigned by core
	Sequence int64

	// Stable idempotency key from upstream
	IdempotencyKey string

	EventType EventType

	// Address the command acts as
	Caller types.Address

	// Versioned input timestamp (NOT wall-clock)
	Timestamp time.Time

	// Upstream ordering hint, informational only
	SourceSequence int64

	// JSON-encoded command
	Payload []byte

	// JSON-encoded outcome
	Result []byte

	// SHA-256 of state AFTER applying this command
	StateHash [32]byte

	// Previous command's state hash (chain integrity)
	PrevHash [32]byte
}

// Event is the interface all command payloads implement
type Event interface {
	// IdempotencyKey returns the stable dedup key
	IdempotencyKey() string

	EventType() EventType

	// Caller is the authenticated sender the command acts as
	Caller() types.Address

	// SourceSequence returns the upstream ordering key
	SourceSequence() int64

	// TimestampMicros is the input timestamp in microseconds
	TimestampMicros() int64
}

// Meta carries the fields every command shares.
type Meta struct {
	Key         string        `json:"idempotency_key"`
	Sender      types.Address `json:"caller"`
	Sequence    int64         `json:"source_sequence,omitempty"`
	TimestampUs int64         `json:"timestamp_us,omitempty"`
}

func (m Meta) IdempotencyKey() string { return m.Key }
func (m Meta) Caller() types.Address { return m.Sender }
func (m Meta) SourceSequence() int64 { return m.Sequence }
func (m Meta) TimestampMicros() int64 { return m.TimestampUs }
