package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"VaultLedger/internal/core"
	"VaultLedger/internal/event"
	"VaultLedger/internal/observability"
)

// Replayer is the part of the core recovery drives.
type Replayer interface {
	Replay(env *event.EventEnvelope) error
	GetStateHash() [32]byte
	GetSequence() int64
	WarmLRU(keys []string)
}

var _ Replayer = (*core.DeterministicCore)(nil)

// RecoveryOptions tunes a restart.
type RecoveryOptions struct {
	PageSize   int
	WarmKeys   int
	OnReplayed func(env *event.EventEnvelope) // optional, e.g. projection rebuild
}

// Recover replays the whole command log into a core built from genesis,
// verifying every logged state hash and every stored checkpoint, then
// warms the idempotency LRU with the most recent keys.
func Recover(ctx context.Context, store *CheckpointStore, r Replayer, opts RecoveryOptions, metrics *observability.Metrics, logger zerolog.Logger) error {
	start := time.Now()
	if opts.PageSize <= 0 {
		opts.PageSize = 1000
	}

	checkpoints, err := store.Checkpoints(ctx)
	if err != nil {
		return fmt.Errorf("load checkpoints: %w", err)
	}
	byseq := make(map[int64]Checkpoint, len(checkpoints))
	for _, cp := range checkpoints {
		byseq[cp.Sequence] = cp
	}

	replayed := 0
	next := int64(1)
	for {
		envs, err := store.LoadEventsFrom(ctx, next, opts.PageSize)
		if err != nil {
			return fmt.Errorf("load events from %d: %w", next, err)
		}
		for _, env := range envs {
			if env.Sequence != next {
				return fmt.Errorf("event log gap: expected %d, found %d", next, env.Sequence)
			}
			if err := r.Replay(env); err != nil {
				return err
			}
			if cp, ok := byseq[env.Sequence]; ok {
				if cp.StateHash != r.GetStateHash() {
					return fmt.Errorf("%w at sequence %d", ErrCheckpointMismatch, env.Sequence)
				}
				if !cp.Verified {
					if err := store.MarkVerified(ctx, env.Sequence); err != nil {
						return fmt.Errorf("mark checkpoint %d verified: %w", env.Sequence, err)
					}
				}
			}
			if opts.OnReplayed != nil {
				opts.OnReplayed(env)
			}
			next++
			replayed++
		}
		if len(envs) < opts.PageSize {
			break
		}
	}

	if opts.WarmKeys > 0 {
		keys, err := store.RecentIdempotencyKeys(ctx, opts.WarmKeys)
		if err != nil {
			return fmt.Errorf("load recent keys: %w", err)
		}
		r.WarmLRU(keys)
	}

	if metrics != nil {
		metrics.ReplayDuration.Set(time.Since(start).Seconds())
	}
	logger.Info().
		Int("replayed", replayed).
		Int64("sequence", r.GetSequence()).
		Dur("took", time.Since(start)).
		Msg("recovery complete")
	return nil
}
