package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"VaultLedger/internal/event"
	"VaultLedger/internal/types"
)

// CheckpointStore reads the command log back for recovery and keeps
// periodic state-hash checkpoints. Recovery replays from genesis; a
// checkpoint pins the hash a replay must reach at its sequence.
type CheckpointStore struct {
	db *sql.DB
}

// Checkpoint is one stored state hash with the snapshot it was taken from.
type Checkpoint struct {
	Sequence  int64
	StateHash [32]byte
	Snapshot  []byte // canonical JSON world snapshot
	Verified  bool
	CreatedAt time.Time
}

func NewCheckpointStore(db *sql.DB) *CheckpointStore {
	return &CheckpointStore{db: db}
}

// SaveCheckpoint stores the state hash at sequence.
func (cs *CheckpointStore) SaveCheckpoint(ctx context.Context, cp Checkpoint) error {
	return cs.saveTx(ctx, cs.db, cp)
}

func (cs *CheckpointStore) saveTx(ctx context.Context, ex execer, cp Checkpoint) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO event_log.checkpoints (sequence, state_hash, snapshot, size_bytes, verified, created_at)
		VALUES ($1, $2, $3, $4, FALSE, $5)
		ON CONFLICT (sequence) DO UPDATE SET state_hash = $2, snapshot = $3, size_bytes = $4
	`, cp.Sequence, cp.StateHash[:], cp.Snapshot, len(cp.Snapshot), cp.CreatedAt)
	return err
}

// Checkpoints lists stored checkpoints in sequence order without snapshots.
func (cs *CheckpointStore) Checkpoints(ctx context.Context) ([]Checkpoint, error) {
	rows, err := cs.db.QueryContext(ctx, `
		SELECT sequence, state_hash, verified, created_at
		FROM event_log.checkpoints
		ORDER BY sequence ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Checkpoint
	for rows.Next() {
		var cp Checkpoint
		var hash []byte
		if err := rows.Scan(&cp.Sequence, &hash, &cp.Verified, &cp.CreatedAt); err != nil {
			return nil, err
		}
		if len(hash) != len(cp.StateHash) {
			return nil, fmt.Errorf("checkpoint %d: state hash has %d bytes", cp.Sequence, len(hash))
		}
		copy(cp.StateHash[:], hash)
		out = append(out, cp)
	}
	return out, rows.Err()
}

// MarkVerified marks a checkpoint as reproduced by replay.
func (cs *CheckpointStore) MarkVerified(ctx context.Context, sequence int64) error {
	_, err := cs.db.ExecContext(ctx, `
		UPDATE event_log.checkpoints SET verified = TRUE WHERE sequence = $1
	`, sequence)
	return err
}

// LoadEventsFrom loads up to limit logged commands with sequence >= fromSequence.
func (cs *CheckpointStore) LoadEventsFrom(ctx context.Context, fromSequence int64, limit int) ([]*event.EventEnvelope, error) {
	rows, err := cs.db.QueryContext(ctx, `
		SELECT sequence, event_type, idempotency_key, caller, payload, result,
		       state_hash, prev_hash, timestamp, source_sequence
		FROM event_log.events
		WHERE sequence >= $1
		ORDER BY sequence ASC
		LIMIT $2
	`, fromSequence, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*event.EventEnvelope
	for rows.Next() {
		var (
			env                 event.EventEnvelope
			eventType, caller   string
			stateHash, prevHash []byte
		)
		if err := rows.Scan(
			&env.Sequence, &eventType, &env.IdempotencyKey, &caller, &env.Payload, &env.Result,
			&stateHash, &prevHash, &env.Timestamp, &env.SourceSequence,
		); err != nil {
			return nil, err
		}
		et := event.ParseEventType(eventType)
		if et == event.EventTypeUnknown {
			return nil, fmt.Errorf("event %d: unknown event type %q", env.Sequence, eventType)
		}
		env.EventType = et
		env.Caller = types.Address(caller)
		copy(env.StateHash[:], stateHash)
		copy(env.PrevHash[:], prevHash)
		out = append(out, &env)
	}
	return out, rows.Err()
}

// GetLatestSequence returns the highest sequence in the event log.
func (cs *CheckpointStore) GetLatestSequence(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := cs.db.QueryRowContext(ctx, `SELECT MAX(sequence) FROM event_log.events`).Scan(&seq)
	if err != nil {
		return 0, err
	}
	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}

// RecentIdempotencyKeys returns the composite dedup keys of the last limit
// commands, oldest first, for warming the core's LRU.
func (cs *CheckpointStore) RecentIdempotencyKeys(ctx context.Context, limit int) ([]string, error) {
	rows, err := cs.db.QueryContext(ctx, `
		SELECT event_type || ':' || idempotency_key FROM (
			SELECT sequence, event_type, idempotency_key
			FROM event_log.events
			ORDER BY sequence DESC
			LIMIT $1
		) recent
		ORDER BY sequence ASC
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// ErrCheckpointMismatch means replay reached a checkpoint with a different hash.
var ErrCheckpointMismatch = errors.New("checkpoint state hash mismatch")
