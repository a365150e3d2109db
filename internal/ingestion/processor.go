package ingestion

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"VaultLedger/internal/core"
	"VaultLedger/internal/event"
	"VaultLedger/internal/observability"
	"VaultLedger/internal/types"
)

// Submitter applies one command. The deterministic core implements it.
type Submitter interface {
	ProcessEvent(evt event.Event) (core.CoreOutput, error)
}

var _ Submitter = (*core.DeterministicCore)(nil)

// Processor feeds raw transport commands into the core one at a time.
// A message is acked once the core has decided on it: applied, duplicate
// and rejected commands are all final, so none is redelivered. Payloads
// that do not decode are terminated.
type Processor struct {
	core    Submitter
	rawChan <-chan RawEvent
	source  string
	metrics *observability.Metrics
	logger  zerolog.Logger
}

func NewProcessor(c Submitter, rawChan <-chan RawEvent, source string, metrics *observability.Metrics, logger zerolog.Logger) *Processor {
	return &Processor{core: c, rawChan: rawChan, source: source, metrics: metrics, logger: logger}
}

// Run blocks until ctx is cancelled or the raw channel closes.
func (p *Processor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-p.rawChan:
			if !ok {
				return nil
			}
			if ctx.Err() != nil {
				raw.nak()
				return ctx.Err()
			}
			p.handle(raw)
		}
	}
}

func (p *Processor) handle(raw RawEvent) {
	evt, err := ParseRawEvent(raw)
	if err != nil {
		p.logger.Warn().Err(err).Str("subject", raw.Subject).Msg("dropping undecodable command")
		raw.term()
		return
	}

	out, err := p.core.ProcessEvent(evt)
	raw.ack()

	if !raw.Received.IsZero() && p.metrics != nil {
		p.metrics.IngestToApply.WithLabelValues(p.source).Observe(time.Since(raw.Received).Seconds())
	}
	switch {
	case err != nil:
		p.logger.Info().
			Str("event_type", evt.EventType().String()).
			Str("key", evt.IdempotencyKey()).
			Str("caller", string(evt.Caller())).
			Str("reason", types.Reason(err)).
			Err(err).
			Msg("command rejected")
	case out.Duplicate:
		p.logger.Debug().Str("key", evt.IdempotencyKey()).Msg("duplicate command")
	default:
		p.logger.Debug().Int64("sequence", out.Envelope.Sequence).Str("event_type", evt.EventType().String()).Msg("command applied")
	}
}
