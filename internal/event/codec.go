package event

import (
	"bytes"
	"encoding/json"
	"fmt"
)

var factories = map[EventType]func() Event{
	EventTypeDeposit:            func() Event { return &Deposit{} },
	EventTypeWithdraw:           func() Event { return &Withdraw{} },
	EventTypeCollectRewards:     func() Event { return &CollectRewards{} },
	EventTypeHarvest:            func() Event { return &Harvest{} },
	EventTypeRegisterFees:       func() Event { return &RegisterFees{} },
	EventTypeCollectFees:        func() Event { return &CollectFees{} },
	EventTypeClientCollectFees:  func() Event { return &ClientCollectFees{} },
	EventTypeEmergencyWithdraw:  func() Event { return &EmergencyWithdraw{} },
	EventTypeApprove:            func() Event { return &Approve{} },
	EventTypeWhitelistOperator:  func() Event { return &WhitelistOperator{} },
	EventTypeSetStables:         func() Event { return &SetStables{} },
	EventTypeSetTreasuryFee:     func() Event { return &SetTreasuryFee{} },
	EventTypeSetStrategies:      func() Event { return &SetStrategies{} },
	EventTypeSetBountyThreshold: func() Event { return &SetBountyThreshold{} },
	EventTypeSetWorkerFee:       func() Event { return &SetWorkerFee{} },
	EventTypeSetUsers:           func() Event { return &SetUsers{} },
	EventTypeEnableWorkers:      func() Event { return &EnableWorkers{} },
	EventTypeSetClientOperator:  func() Event { return &SetClientOperator{} },
	EventTypeAdvanceFarm:        func() Event { return &AdvanceFarm{} },
	EventTypeMint:               func() Event { return &Mint{} },
	EventTypeSeedLiquidity:      func() Event { return &SeedLiquidity{} },
	EventTypeSwap:               func() Event { return &Swap{} },
}

// Decode parses a JSON command of the given type. Unknown fields are
// rejected, as are commands without an idempotency key or caller.
func Decode(et EventType, data []byte) (Event, error) {
	newEvent, ok := factories[et]
	if !ok {
		return nil, fmt.Errorf("unknown event type: %d", et)
	}
	evt := newEvent()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(evt); err != nil {
		return nil, fmt.Errorf("parse %s: %w", et, err)
	}
	if evt.IdempotencyKey() == "" {
		return nil, fmt.Errorf("parse %s: missing idempotency_key", et)
	}
	if evt.Caller() == "" {
		return nil, fmt.Errorf("parse %s: missing caller", et)
	}
	return evt, nil
}

// DecodeNamed is Decode keyed by the wire name of the type.
func DecodeNamed(name string, data []byte) (Event, error) {
	et := ParseEventType(name)
	if et == EventTypeUnknown {
		return nil, fmt.Errorf("unknown event type: %s", name)
	}
	return Decode(et, data)
}

// Encode is the canonical payload encoding stored in the event log.
func Encode(evt Event) ([]byte, error) {
	return json.Marshal(evt)
}
