package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"VaultLedger/internal/core"
	"VaultLedger/internal/projection"
	"VaultLedger/internal/state"
	"VaultLedger/internal/strategy"
	"VaultLedger/internal/types"
	"VaultLedger/internal/vault"
)

// StateReader is read access to the live world.
type StateReader interface {
	ViewAt(fn func(seq int64, w *state.World) error) error
}

var _ StateReader = (*core.DeterministicCore)(nil)

// ErrNoDatabase is returned by table-backed queries when the service runs
// without Postgres.
var ErrNoDatabase = errors.New("query: projection database not configured")

// QueryService provides read-only access to protocol state. Balances,
// positions and quotes come from the core under its read lock; collected
// totals, the journal and integrity checks read the Postgres tables.
type QueryService struct {
	reader  StateReader
	db      *sql.DB
	history *projection.HarvestHistory
}

// NewQueryService wires the service. db and history may be nil.
func NewQueryService(reader StateReader, db *sql.DB, history *projection.HarvestHistory) *QueryService {
	return &QueryService{reader: reader, db: db, history: history}
}

func (qs *QueryService) view(ctx context.Context, fn func(seq int64, w *state.World) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return qs.reader.ViewAt(fn)
}

// --- Live state ---

// GetPositions returns every position owned by owner across all vaults,
// including fully withdrawn ones.
func (qs *QueryService) GetPositions(ctx context.Context, owner types.Address) (*PositionsResponse, error) {
	if owner == "" {
		return nil, errorsmod.Wrap(types.ErrInvalidArgument, "owner is required")
	}
	resp := &PositionsResponse{Owner: owner, Positions: []vault.Position{}}
	err := qs.view(ctx, func(seq int64, w *state.World) error {
		resp.AsOfSequence = seq
		for _, v := range w.Vaults() {
			resp.Positions = append(resp.Positions, v.Positions(owner)...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// GetRewards returns what owner can collect from vaultAddr now.
func (qs *QueryService) GetRewards(ctx context.Context, vaultAddr, owner types.Address) (*RewardsResponse, error) {
	resp := &RewardsResponse{Vault: vaultAddr, Owner: owner, Collected: sdkmath.ZeroInt()}
	err := qs.view(ctx, func(seq int64, w *state.World) error {
		v, err := w.Vault(vaultAddr)
		if err != nil {
			return err
		}
		resp.AsOfSequence = seq
		resp.Pending = types.OrZero(v.RewardsToCollect(owner))
		return nil
	})
	if err != nil {
		return nil, err
	}
	if qs.db != nil {
		total, err := qs.collected(ctx, "rewards", "vault", "owner", vaultAddr, owner)
		if err != nil {
			return nil, err
		}
		resp.Collected = total.Collected
	}
	return resp, nil
}

// GetCollector returns the outstanding fee balances of a collector.
func (qs *QueryService) GetCollector(ctx context.Context, addr types.Address) (*CollectorResponse, error) {
	var resp *CollectorResponse
	err := qs.view(ctx, func(seq int64, w *state.World) error {
		c, err := w.Collector(addr)
		if err != nil {
			return err
		}
		resp = &CollectorResponse{
			Collector:    c.Address(),
			Token:        c.Token(),
			Threshold:    types.OrZero(c.BountyThreshold()),
			Balances:     c.Balances(),
			AsOfSequence: seq,
		}
		return nil
	})
	return resp, err
}

// GetSnapshot returns the full protocol state and the sequence it reflects.
func (qs *QueryService) GetSnapshot(ctx context.Context) (state.Snapshot, int64, error) {
	var (
		snap state.Snapshot
		at   int64
	)
	err := qs.view(ctx, func(seq int64, w *state.World) error {
		snap, at = w.Snapshot(), seq
		return nil
	})
	return snap, at, err
}

// --- Quotes ---

// EstimateDeposit quotes the LP a deposit of amount on worker would mint.
func (qs *QueryService) EstimateDeposit(ctx context.Context, workerAddr types.Address, amount sdkmath.Int) (*DepositQuote, error) {
	amount = types.OrZero(amount)
	if !amount.IsPositive() {
		return nil, errorsmod.Wrap(types.ErrInvalidArgument, "amount must be positive")
	}
	var resp *DepositQuote
	err := qs.view(ctx, func(seq int64, w *state.World) error {
		wk, err := w.Worker(workerAddr)
		if err != nil {
			return err
		}
		lp, err := wk.EstimateDeposit(amount)
		if err != nil {
			return err
		}
		resp = &DepositQuote{Worker: workerAddr, Amount: amount, LP: lp, AsOfSequence: seq}
		return nil
	})
	return resp, err
}

// EstimateAmounts quotes the pair tokens burning lp on worker's pair returns.
func (qs *QueryService) EstimateAmounts(ctx context.Context, workerAddr types.Address, lp sdkmath.Int) (*AmountsQuote, error) {
	var resp *AmountsQuote
	err := qs.view(ctx, func(seq int64, w *state.World) error {
		wk, err := w.Worker(workerAddr)
		if err != nil {
			return err
		}
		addr := wk.Strategies().Liquidate
		s, ok := w.Strategies.Get(addr)
		if !ok {
			return errorsmod.Wrapf(types.ErrUnknownComponent, "strategy %s", addr)
		}
		liq, ok := s.(*strategy.Liquidate)
		if !ok {
			return errorsmod.Wrapf(types.ErrInvalidArgument, "strategy %s is %s, not liquidate", addr, s.Kind())
		}
		t0, t1 := wk.Pair()
		a0, a1, err := liq.EstimateAmounts(t0, t1, lp)
		if err != nil {
			return err
		}
		resp = &AmountsQuote{
			Worker: workerAddr, LP: types.OrZero(lp),
			Token0: t0, Token1: t1, Amount0: a0, Amount1: a1,
			AsOfSequence: seq,
		}
		return nil
	})
	return resp, err
}

// GetPositionInfo prices a position at what a full withdrawal would pay.
func (qs *QueryService) GetPositionInfo(ctx context.Context, vaultAddr types.Address, id types.PositionID) (*PositionInfoResponse, error) {
	var resp *PositionInfoResponse
	err := qs.view(ctx, func(seq int64, w *state.World) error {
		v, err := w.Vault(vaultAddr)
		if err != nil {
			return err
		}
		info, err := v.PositionInfo(id)
		if err != nil {
			return err
		}
		resp = &PositionInfoResponse{Vault: vaultAddr, PositionValue: info, AsOfSequence: seq}
		return nil
	})
	return resp, err
}

// --- History ---

// GetHarvestHistory returns recent harvests of worker, newest first. An
// empty worker lists every worker. The in-memory history is used when
// present, otherwise the harvests table.
func (qs *QueryService) GetHarvestHistory(ctx context.Context, workerAddr types.Address, limit int) (*HarvestsResponse, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	resp := &HarvestsResponse{Worker: workerAddr}
	if qs.history != nil {
		resp.Harvests = qs.history.QueryByWorker(workerAddr, limit)
		err := qs.view(ctx, func(seq int64, _ *state.World) error {
			resp.AsOfSequence = seq
			return nil
		})
		return resp, err
	}
	if qs.db == nil {
		return nil, ErrNoDatabase
	}

	asOf, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}
	resp.AsOfSequence = asOf

	rows, err := qs.db.QueryContext(ctx, `
		SELECT sequence, worker, reward, harvested, treasury_fee, client_fees,
		       credited, residual, positions, timestamp
		FROM projections.harvests
		WHERE $1 = '' OR worker = $1
		ORDER BY sequence DESC
		LIMIT $2
	`, string(workerAddr), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	resp.Harvests = make([]projection.HarvestEntry, 0, limit)
	for rows.Next() {
		var (
			e                                   projection.HarvestEntry
			worker                              string
			reward, harvested, fee, cfees, cred string
			residual                            string
		)
		if err := rows.Scan(&e.Sequence, &worker, &reward, &harvested, &fee, &cfees, &cred, &residual, &e.Positions, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Worker = types.Address(worker)
		for _, f := range []struct {
			dst *sdkmath.Int
			raw string
		}{
			{&e.Reward, reward}, {&e.Harvested, harvested}, {&e.TreasuryFee, fee},
			{&e.ClientFees, cfees}, {&e.Credited, cred}, {&e.Residual, residual},
		} {
			if *f.dst, err = parseAmount(f.raw); err != nil {
				return nil, fmt.Errorf("harvest %d: %w", e.Sequence, err)
			}
		}
		resp.Harvests = append(resp.Harvests, e)
	}
	return resp, rows.Err()
}

// GetCollectedFees returns the projected running total a beneficiary has
// been paid by a collector.
func (qs *QueryService) GetCollectedFees(ctx context.Context, collector, beneficiary types.Address) (*CollectedTotal, error) {
	if qs.db == nil {
		return nil, ErrNoDatabase
	}
	return qs.collected(ctx, "fees", "collector", "beneficiary", collector, beneficiary)
}

// GetJournalHistory returns token movements touching account, newest first.
// afterSequence pages backwards; zero starts from the newest.
func (qs *QueryService) GetJournalHistory(
	ctx context.Context,
	account string,
	limit int,
	afterSequence int64,
) ([]JournalHistoryEntry, error) {
	if qs.db == nil {
		return nil, ErrNoDatabase
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := `
		SELECT journal_id, batch_id, event_ref, sequence,
		       debit_account, credit_account, token, amount, journal_type, timestamp
		FROM event_log.journal
		WHERE (debit_account = $1 OR credit_account = $1)
	`
	args := []any{account}
	argIdx := 2

	if afterSequence > 0 {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, afterSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC, journal_id"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]JournalHistoryEntry, 0)
	for rows.Next() {
		var e JournalHistoryEntry
		if err := rows.Scan(
			&e.JournalID, &e.BatchID, &e.EventRef, &e.Sequence,
			&e.DebitAccount, &e.CreditAccount, &e.Token, &e.Amount,
			&e.JournalType, &e.Timestamp,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// --- Admin APIs ---

// VerifyIntegrity checks that the persisted log is gapless and that every
// command's prev_hash is its predecessor's state_hash.
func (qs *QueryService) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	if qs.db == nil {
		return nil, ErrNoDatabase
	}
	report := &IntegrityReport{CheckedAt: time.Now().UTC()}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT e1.sequence
		FROM event_log.events e1
		JOIN event_log.events e2 ON e2.sequence = e1.sequence - 1
		WHERE e1.prev_hash <> e2.state_hash
		ORDER BY e1.sequence
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	report.HashChainBreaks, err = scanSequences(rows)
	if err != nil {
		return nil, err
	}

	rows, err = qs.db.QueryContext(ctx, `
		SELECT e1.sequence + 1
		FROM event_log.events e1
		LEFT JOIN event_log.events e2 ON e2.sequence = e1.sequence + 1
		WHERE e2.sequence IS NULL
		  AND e1.sequence < (SELECT MAX(sequence) FROM event_log.events)
		ORDER BY e1.sequence
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	report.SequenceGaps, err = scanSequences(rows)
	if err != nil {
		return nil, err
	}

	var last sql.NullInt64
	if err := qs.db.QueryRowContext(ctx, `SELECT MAX(sequence) FROM event_log.events`).Scan(&last); err != nil {
		return nil, err
	}
	report.LastSequence = last.Int64

	report.IsHealthy = len(report.HashChainBreaks) == 0 && len(report.SequenceGaps) == 0
	return report, nil
}

// --- helpers ---

func scanSequences(rows *sql.Rows) ([]int64, error) {
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, err
		}
		out = append(out, seq)
	}
	return out, rows.Err()
}

func (qs *QueryService) collected(ctx context.Context, table, scopeCol, whoCol string, scope, who types.Address) (*CollectedTotal, error) {
	out := &CollectedTotal{Scope: scope, Who: who, Collected: sdkmath.ZeroInt()}
	var raw string
	err := qs.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT collected::TEXT, last_sequence FROM projections.%s
		WHERE %s = $1 AND %s = $2
	`, table, scopeCol, whoCol), string(scope), string(who)).Scan(&raw, &out.LastSequence)
	if errors.Is(err, sql.ErrNoRows) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	if out.Collected, err = parseAmount(raw); err != nil {
		return nil, err
	}
	return out, nil
}

func (qs *QueryService) getWatermark(ctx context.Context) (int64, error) {
	var seq int64
	err := qs.db.QueryRowContext(ctx, `
		SELECT last_sequence FROM projections.watermark WHERE projection = 'main'
	`).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return seq, err
}

func parseAmount(raw string) (sdkmath.Int, error) {
	v, ok := sdkmath.NewIntFromString(raw)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("invalid amount %q", raw)
	}
	return v, nil
}
