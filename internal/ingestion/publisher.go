package ingestion

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"VaultLedger/internal/core"
	"VaultLedger/internal/types"
)

const (
	LedgerEventStream   = "VAULT_LEDGER_EVENTS"
	LedgerEventPrefix   = "vault.ledger.events."
	LedgerEventSubjects = LedgerEventPrefix + ">"
)

// StreamPublisher is the part of jetstream.JetStream the publisher uses.
type StreamPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// OutboundPublisher publishes applied commands to
// vault.ledger.events.<type> for downstream consumers. The sequence is the
// JetStream message id, so a republish after restart is deduplicated.
type OutboundPublisher struct {
	js        StreamPublisher
	inputChan <-chan core.CoreOutput
	logger    zerolog.Logger
}

// PublishableEvent is the outbound wire form of one applied command.
type PublishableEvent struct {
	Sequence       int64           `json:"sequence"`
	EventType      string          `json:"event_type"`
	IdempotencyKey string          `json:"idempotency_key"`
	Caller         types.Address   `json:"caller"`
	Payload        json.RawMessage `json:"payload"`
	Result         json.RawMessage `json:"result,omitempty"`
	Journals       int             `json:"journals"`
	StateHash      string          `json:"state_hash"`
	Timestamp      time.Time       `json:"timestamp"`
}

func NewOutboundPublisher(js StreamPublisher, inputChan <-chan core.CoreOutput, logger zerolog.Logger) *OutboundPublisher {
	return &OutboundPublisher{js: js, inputChan: inputChan, logger: logger}
}

// Run publishes until ctx is cancelled or the input channel closes.
// Failures are logged; consumers can always read the command log.
func (op *OutboundPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out, ok := <-op.inputChan:
			if !ok {
				return nil
			}
			if out.Envelope == nil {
				continue
			}
			if err := op.publish(ctx, out); err != nil {
				op.logger.Warn().Err(err).Int64("sequence", out.Envelope.Sequence).Msg("outbound publish failed")
			}
		}
	}
}

// ToPublishable builds the outbound form of an applied command.
func ToPublishable(out core.CoreOutput) PublishableEvent {
	env := out.Envelope
	pe := PublishableEvent{
		Sequence:       env.Sequence,
		EventType:      env.EventType.String(),
		IdempotencyKey: env.IdempotencyKey,
		Caller:         env.Caller,
		Payload:        json.RawMessage(env.Payload),
		StateHash:      hex.EncodeToString(env.StateHash[:]),
		Timestamp:      env.Timestamp,
	}
	if len(env.Result) > 0 {
		pe.Result = json.RawMessage(env.Result)
	}
	if out.Batch != nil {
		pe.Journals = len(out.Batch.Journals)
	}
	return pe
}

// LedgerEventSubject is the subject an applied command is published on.
func LedgerEventSubject(eventType string) string {
	return LedgerEventPrefix + eventType
}

func (op *OutboundPublisher) publish(ctx context.Context, out core.CoreOutput) error {
	pe := ToPublishable(out)
	data, err := json.Marshal(pe)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = op.js.Publish(ctx, LedgerEventSubject(pe.EventType), data,
		jetstream.WithMsgID(strconv.FormatInt(pe.Sequence, 10)))
	return err
}
