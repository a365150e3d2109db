package main

import (
	"context"
	"time"

	"VaultLedger/internal/core"
	"VaultLedger/internal/observability"
)

// fanOut forwards every applied command to the persistence worker and,
// best effort, to the outbound publisher. Persistence blocks so the core
// feels backpressure; a full publish channel drops the output. Both outputs
// close when in closes.
func fanOut(ctx context.Context, in <-chan core.CoreOutput, persistOut, publishOut chan<- core.CoreOutput, metrics *observability.Metrics) error {
	defer close(persistOut)
	defer close(publishOut)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out, ok := <-in:
			if !ok {
				return nil
			}
			select {
			case persistOut <- out:
			case <-ctx.Done():
				return ctx.Err()
			}
			select {
			case publishOut <- out:
			default:
				if metrics != nil {
					metrics.PublishDrops.Inc()
				}
			}
		}
	}
}

type namedChan struct {
	name string
	len  func() int
	cap  int
}

func chanGauge[T any](name string, ch chan T) namedChan {
	return namedChan{name: name, len: func() int { return len(ch) }, cap: cap(ch)}
}

// sampleChannels reports channel fill levels until ctx is cancelled.
func sampleChannels(ctx context.Context, metrics *observability.Metrics, every time.Duration, chans ...namedChan) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for _, c := range chans {
				metrics.SetChannelMetrics(c.name, c.len(), c.cap)
			}
		}
	}
}
