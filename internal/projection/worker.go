package projection

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"VaultLedger/internal/core"
	"VaultLedger/internal/event"
	"VaultLedger/internal/observability"
	"VaultLedger/internal/types"
	"VaultLedger/internal/vault"
)

const (
	watermarkName   = "main"
	rebuildPageSize = 1000
)

// ProjectionWorker updates the query tables from applied commands. The core
// drops outputs when this worker falls behind; the tables can be rebuilt
// from the command log. With a nil db only the in-memory history is kept.
type ProjectionWorker struct {
	db        *sql.DB
	inputChan <-chan core.CoreOutput
	history   *HarvestHistory
	metrics   *observability.Metrics
	logger    zerolog.Logger

	// mu serializes Apply with Rebuild.
	mu      sync.Mutex
	lastSeq atomic.Int64
}

// EventSource pages through the persisted command log.
type EventSource interface {
	LoadEventsFrom(ctx context.Context, fromSequence int64, limit int) ([]*event.EventEnvelope, error)
}

func NewProjectionWorker(
	db *sql.DB,
	inputChan <-chan core.CoreOutput,
	history *HarvestHistory,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *ProjectionWorker {
	return &ProjectionWorker{
		db:        db,
		inputChan: inputChan,
		history:   history,
		metrics:   metrics,
		logger:    logger,
	}
}

// Run starts the projection worker loop.
func (pw *ProjectionWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case output, ok := <-pw.inputChan:
			if !ok {
				return nil
			}
			if output.Envelope == nil {
				continue
			}
			if err := pw.Apply(ctx, output); err != nil {
				// Eventually consistent; a rebuild repairs the tables.
				pw.logger.Warn().Err(err).Int64("sequence", output.Envelope.Sequence).Msg("projection update failed")
			}
		}
	}
}

// LastSequence is the last sequence applied.
func (pw *ProjectionWorker) LastSequence() int64 {
	return pw.lastSeq.Load()
}

// Apply projects one applied command. Outputs at or below the last applied
// sequence are ignored.
func (pw *ProjectionWorker) Apply(ctx context.Context, output core.CoreOutput) error {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	if output.Envelope.Sequence <= pw.lastSeq.Load() {
		return nil
	}
	return pw.apply(ctx, output)
}

func (pw *ProjectionWorker) apply(ctx context.Context, output core.CoreOutput) error {
	start := time.Now()
	env := output.Envelope
	defer func() {
		pw.lastSeq.Store(env.Sequence)
		if pw.metrics != nil {
			pw.metrics.ProjectionUpdateDur.WithLabelValues(env.EventType.String()).Observe(time.Since(start).Seconds())
		}
	}()

	if h, ok := output.Result.(core.HarvestOutcome); ok && !h.Report.Skipped && pw.history != nil {
		pw.history.Add(harvestEntry(env.Sequence, env.Timestamp, h))
	}
	if pw.db == nil {
		return nil
	}

	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	switch r := output.Result.(type) {
	case core.DepositOutcome:
		err = upsertPosition(ctx, tx, r.Vault, r.Position, env.Sequence)
	case core.WithdrawOutcome:
		err = upsertPosition(ctx, tx, r.Vault, r.Position, env.Sequence)
	case core.CollectOutcome:
		err = addCollected(ctx, tx, "rewards", "vault", "owner", string(r.Vault), string(r.Owner), r.Amount, env.Sequence)
	case core.FeeOutcome:
		err = addCollected(ctx, tx, "fees", "collector", "beneficiary", string(r.Collector), string(r.Beneficiary), r.Amount, env.Sequence)
	case core.HarvestOutcome:
		if !r.Report.Skipped {
			err = insertHarvest(ctx, tx, harvestEntry(env.Sequence, env.Timestamp, r))
		}
	case core.EmergencyOutcome:
		for _, e := range r.Entries {
			if err = closePositions(ctx, tx, e.Worker, e.Positions, env.Sequence); err != nil {
				break
			}
		}
	}
	if err != nil {
		return fmt.Errorf("project %s: %w", env.EventType, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.watermark (projection, last_sequence, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (projection) DO UPDATE SET last_sequence = $2, updated_at = NOW()
	`, watermarkName, env.Sequence); err != nil {
		return fmt.Errorf("watermark update: %w", err)
	}

	return tx.Commit()
}

func harvestEntry(seq int64, ts time.Time, h core.HarvestOutcome) HarvestEntry {
	e := HarvestEntry{
		Sequence:    seq,
		Worker:      h.Report.Worker,
		Reward:      types.OrZero(h.Report.Reward),
		Harvested:   types.OrZero(h.Report.Harvested),
		TreasuryFee: types.OrZero(h.Report.Fee),
		ClientFees:  sdkmath.ZeroInt(),
		Credited:    sdkmath.ZeroInt(),
		Residual:    sdkmath.ZeroInt(),
		Timestamp:   ts,
	}
	if d := h.Distribution; d != nil {
		e.ClientFees = types.OrZero(d.ClientFees)
		e.Credited = types.OrZero(d.Credited)
		e.Residual = types.OrZero(d.Residual)
		e.Positions = d.Positions
	}
	return e
}

func upsertPosition(ctx context.Context, tx *sql.Tx, vaultAddr types.Address, p vault.Position, seq int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.positions
			(vault, position_id, owner, client, worker, staked_share, principal, live, last_sequence, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (vault, position_id) DO UPDATE SET
			staked_share = $6, principal = $7, live = $8, last_sequence = $9, updated_at = NOW()
	`, string(vaultAddr), int64(p.ID), string(p.Owner), string(p.Client), string(p.Worker),
		types.OrZero(p.StakedShare).String(), types.OrZero(p.Principal).String(), p.Live(), seq)
	return err
}

func closePositions(ctx context.Context, tx *sql.Tx, worker types.Address, ids []types.PositionID, seq int64) error {
	if len(ids) == 0 {
		return nil
	}
	raw := make([]int64, len(ids))
	for i, id := range ids {
		raw[i] = int64(id)
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE projections.positions
		SET staked_share = 0, principal = 0, live = FALSE, last_sequence = $3, updated_at = NOW()
		WHERE worker = $1 AND position_id = ANY($2)
	`, string(worker), pq.Array(raw), seq)
	return err
}

// addCollected bumps a running "collected" total keyed by (scope, who).
func addCollected(ctx context.Context, tx *sql.Tx, table, scopeCol, whoCol, scope, who string, amount sdkmath.Int, seq int64) error {
	query := fmt.Sprintf(`
		INSERT INTO projections.%[1]s (%[2]s, %[3]s, collected, last_sequence)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (%[2]s, %[3]s) DO UPDATE SET
			collected = projections.%[1]s.collected + $3, last_sequence = $4
	`, table, scopeCol, whoCol)
	_, err := tx.ExecContext(ctx, query, scope, who, types.OrZero(amount).String(), seq)
	return err
}

func insertHarvest(ctx context.Context, tx *sql.Tx, e HarvestEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.harvests
			(sequence, worker, reward, harvested, treasury_fee, client_fees, credited, residual, positions, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (sequence) DO NOTHING
	`, e.Sequence, string(e.Worker), e.Reward.String(), e.Harvested.String(), e.TreasuryFee.String(),
		e.ClientFees.String(), e.Credited.String(), e.Residual.String(), e.Positions, e.Timestamp)
	return err
}

// Warm records a replayed command in the in-memory history only. Used during
// recovery, when the tables are already current.
func (pw *ProjectionWorker) Warm(env *event.EventEnvelope) error {
	if pw.history == nil || env.EventType != event.EventTypeHarvest {
		return nil
	}
	result, err := core.DecodeResult(env.EventType, env.Result)
	if err != nil {
		return err
	}
	if h, ok := result.(core.HarvestOutcome); ok && !h.Report.Skipped {
		pw.history.Add(harvestEntry(env.Sequence, env.Timestamp, h))
	}
	return nil
}

// Rebuild clears the tables and the in-memory history, then replays the
// whole command log from src. Live outputs wait for it and are skipped if
// the replay already covered them. Returns the number of commands replayed.
func (pw *ProjectionWorker) Rebuild(ctx context.Context, src EventSource) (int64, error) {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if pw.db != nil {
		if err := RebuildProjections(ctx, pw.db, pw.logger); err != nil {
			return 0, err
		}
	}
	if pw.history != nil {
		pw.history.Reset()
	}
	pw.lastSeq.Store(0)

	var replayed int64
	next := int64(1)
	for {
		envs, err := src.LoadEventsFrom(ctx, next, rebuildPageSize)
		if err != nil {
			return replayed, fmt.Errorf("load events from %d: %w", next, err)
		}
		for _, env := range envs {
			result, err := core.DecodeResult(env.EventType, env.Result)
			if err != nil {
				return replayed, err
			}
			if err := pw.apply(ctx, core.CoreOutput{Envelope: env, Result: result}); err != nil {
				return replayed, err
			}
			replayed++
			next = env.Sequence + 1
		}
		if len(envs) < rebuildPageSize {
			break
		}
	}
	pw.logger.Info().Int64("replayed", replayed).Msg("projections rebuilt")
	return replayed, nil
}

// RebuildProjections empties every projection table. The caller then
// replays the command log through Apply.
func RebuildProjections(ctx context.Context, db *sql.DB, logger zerolog.Logger) error {
	truncateStatements := []string{
		`TRUNCATE projections.positions`,
		`TRUNCATE projections.rewards`,
		`TRUNCATE projections.fees`,
		`TRUNCATE projections.harvests`,
		`DELETE FROM projections.watermark WHERE projection = 'main'`,
	}
	for _, stmt := range truncateStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("truncate failed: %w", err)
		}
	}
	logger.Info().Msg("projection tables cleared for rebuild")
	return nil
}
