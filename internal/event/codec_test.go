package event_test

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"VaultLedger/internal/event"
	"VaultLedger/internal/types"
)

func TestDecodeDeposit(t *testing.T) {
	raw := []byte(`{
		"idempotency_key": "dep-1",
		"caller": "alice",
		"source_sequence": 7,
		"timestamp_us": 1700000000000000,
		"client": "client/acme",
		"worker": "worker/base-farm",
		"amount": "100000000000000000",
		"min_lp": "0"
	}`)

	evt, err := event.DecodeNamed("deposit", raw)
	require.NoError(t, err)

	dep, ok := evt.(*event.Deposit)
	require.True(t, ok, "got %T", evt)
	assert.Equal(t, "dep-1", dep.IdempotencyKey())
	assert.Equal(t, types.Address("alice"), dep.Caller())
	assert.Equal(t, int64(7), dep.SourceSequence())
	assert.Equal(t, int64(1700000000000000), dep.TimestampMicros())
	assert.Equal(t, types.Address("client/acme"), dep.Client)
	assert.Equal(t, "100000000000000000", dep.Amount.String())
	assert.Equal(t, event.EventTypeDeposit, dep.EventType())
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	_, err := event.DecodeNamed("harvest", []byte(`{"idempotency_key":"h","caller":"x","worker":"w","extra":1}`))
	require.Error(t, err)
}

func TestDecodeRequiresKeyAndCaller(t *testing.T) {
	_, err := event.DecodeNamed("harvest", []byte(`{"caller":"x","worker":"w"}`))
	require.ErrorContains(t, err, "idempotency_key")

	_, err = event.DecodeNamed("harvest", []byte(`{"idempotency_key":"h","worker":"w"}`))
	require.ErrorContains(t, err, "caller")
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := event.DecodeNamed("open_short", []byte(`{}`))
	require.Error(t, err)
}

func TestEncodeDecode_PreservesAmounts(t *testing.T) {
	in := &event.Mint{
		Meta:   event.Meta{Key: "mint-1", Sender: "operator"},
		To:     "alice",
		Token:  "BASE",
		Amount: sdkmath.NewIntWithDecimal(12345, 30),
	}
	raw, err := event.Encode(in)
	require.NoError(t, err)

	out, err := event.Decode(event.EventTypeMint, raw)
	require.NoError(t, err)
	assert.True(t, out.(*event.Mint).Amount.Equal(in.Amount))
}

func TestEventTypeNames(t *testing.T) {
	seen := make(map[string]bool)
	for _, et := range event.EventTypes() {
		name := et.String()
		require.NotEqual(t, "unknown", name, "type %d has no name", et)
		require.False(t, seen[name], "duplicate name %s", name)
		seen[name] = true
		assert.Equal(t, et, event.ParseEventType(name))
	}
	assert.Equal(t, event.EventTypeUnknown, event.ParseEventType("bogus"))
}
