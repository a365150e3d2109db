package persistence_test

import (
	"context"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"VaultLedger/internal/core"
	"VaultLedger/internal/event"
	fpmath "VaultLedger/internal/math"
	"VaultLedger/internal/persistence"
	"VaultLedger/internal/testutil"
	"VaultLedger/migrations"
)

func newCore(t *testing.T, persistCh chan core.CoreOutput, every int64) *core.DeterministicCore {
	t.Helper()
	c, err := core.NewDeterministicCore(testutil.DefaultGenesis(t), core.Options{
		PersistChan:     persistCh,
		LRUCapacity:     64,
		CheckpointEvery: every,
	})
	require.NoError(t, err)
	return c
}

func deposit(key string) *event.Deposit {
	return &event.Deposit{
		Meta:   event.Meta{Key: key, Sender: "alice", TimestampUs: 1_700_000_000_000_000},
		Client: "client/acme",
		Worker: "worker/base-farm",
		Amount: fpmath.Unit.QuoRaw(10),
		MinLP:  sdkmath.ZeroInt(),
	}
}

// ============================================================================
// Row mapping
// ============================================================================

func TestRowsFromOutput_MapsEnvelopeAndJournals(t *testing.T) {
	ch := make(chan core.CoreOutput, 4)
	c := newCore(t, ch, 0)
	_, err := c.ProcessEvent(deposit("dep-1"))
	require.NoError(t, err)
	out := <-ch

	row, journals := persistence.RowsFromOutput(out)
	assert.Equal(t, int64(1), row.Sequence)
	assert.Equal(t, "deposit", row.EventType)
	assert.Equal(t, "dep-1", row.IdempotencyKey)
	assert.Equal(t, "alice", row.Caller)
	assert.Equal(t, out.Envelope.StateHash[:], row.StateHash)
	assert.JSONEq(t, string(out.Envelope.Payload), string(row.Payload))

	require.Len(t, journals, len(out.Batch.Journals))
	for i, j := range journals {
		src := out.Batch.Journals[i]
		assert.Equal(t, src.Amount.String(), j.Amount)
		assert.Equal(t, src.DebitAccount.AccountPath(), j.DebitAccount)
		assert.Equal(t, int64(1), j.Sequence)
		assert.NotEqual(t, j.DebitAccount, j.CreditAccount)
	}
}

func TestCheckpointEvery_AttachesSnapshot(t *testing.T) {
	ch := make(chan core.CoreOutput, 4)
	c := newCore(t, ch, 2)
	for _, k := range []string{"a", "b", "c"} {
		_, err := c.ProcessEvent(deposit(k))
		require.NoError(t, err)
	}
	assert.Nil(t, (<-ch).Snapshot)
	assert.NotEmpty(t, (<-ch).Snapshot)
	assert.Nil(t, (<-ch).Snapshot)
}

// ============================================================================
// Postgres round trip (INTEGRATION_TEST=1)
// ============================================================================

func TestPersistAndRecover(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	logger := zerolog.Nop()
	require.NoError(t, persistence.NewMigrator(db, migrations.FS, logger).Up(ctx))

	ch := make(chan core.CoreOutput, 16)
	c := newCore(t, ch, 2)
	for _, k := range []string{"a", "b", "c"} {
		_, err := c.ProcessEvent(deposit(k))
		require.NoError(t, err)
	}
	close(ch)

	w := persistence.NewPersistenceWorker(db, ch, 2, 50*time.Millisecond, nil, logger)
	require.NoError(t, w.Run(ctx))

	dedup := persistence.NewPostgresIdempotencyChecker(db)
	dup, err := dedup.IsDuplicate("deposit", "b")
	require.NoError(t, err)
	assert.True(t, dup)

	store := persistence.NewCheckpointStore(db)
	last, err := store.GetLatestSequence(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), last)

	replica := newCore(t, nil, 0)
	require.NoError(t, persistence.Recover(ctx, store, replica, persistence.RecoveryOptions{PageSize: 2, WarmKeys: 10}, nil, logger))
	assert.Equal(t, c.GetStateHash(), replica.GetStateHash())

	cps, err := store.Checkpoints(ctx)
	require.NoError(t, err)
	require.Len(t, cps, 1)
	assert.True(t, cps[0].Verified)

	// warmed keys make the replica reject a resend
	out, err := replica.ProcessEvent(deposit("c"))
	require.NoError(t, err)
	assert.True(t, out.Duplicate)
}
