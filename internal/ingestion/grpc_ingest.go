package ingestion

import (
	"context"
	"time"

	errorsmod "cosmossdk.io/errors"

	"VaultLedger/internal/core"
	"VaultLedger/internal/event"
	"VaultLedger/internal/observability"
	"VaultLedger/internal/types"
)

// GRPCIngestService applies commands submitted over gRPC/HTTP. Unlike the
// NATS path it is synchronous: the caller gets the outcome or the
// rejection reason back.
type GRPCIngestService struct {
	core    Submitter
	metrics *observability.Metrics
}

func NewGRPCIngestService(c Submitter, metrics *observability.Metrics) *GRPCIngestService {
	return &GRPCIngestService{core: c, metrics: metrics}
}

// Submit decodes a command by wire name and applies it.
func (s *GRPCIngestService) Submit(ctx context.Context, eventType string, payload []byte) (core.CoreOutput, error) {
	if err := ctx.Err(); err != nil {
		return core.CoreOutput{}, err
	}
	start := time.Now()
	evt, err := event.DecodeNamed(eventType, payload)
	if err != nil {
		return core.CoreOutput{}, errorsmod.Wrap(types.ErrInvalidArgument, err.Error())
	}
	out, err := s.core.ProcessEvent(evt)
	if s.metrics != nil {
		s.metrics.IngestToApply.WithLabelValues("grpc").Observe(time.Since(start).Seconds())
	}
	return out, err
}
