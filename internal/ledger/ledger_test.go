package ledger_test

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"VaultLedger/internal/ledger"
	"VaultLedger/internal/types"
)

const base types.TokenID = "BASE"

// ============================================================================
// Test: AccountKey
// ============================================================================

func TestAccountKey_HolderPath(t *testing.T) {
	key := ledger.HolderAccount("alice", base)
	assert.Equal(t, "holder:alice:BASE", key.AccountPath())
}

func TestAccountKey_ExternalPath(t *testing.T) {
	assert.Equal(t, "external:issuance:BASE",
		ledger.NewExternalAccountKey(ledger.SubTypeExternalIssuance, base).AccountPath())
	assert.Equal(t, "external:redemptions:BASE",
		ledger.NewExternalAccountKey(ledger.SubTypeExternalRedemptions, base).AccountPath())
}

// ============================================================================
// Test: Bank operations
// ============================================================================

func TestBalanceTracker_InitialBalanceZero(t *testing.T) {
	bt := ledger.NewBalanceTracker(nil)
	assert.True(t, bt.BalanceOf("alice", base).IsZero())
}

func TestBalanceTracker_MintTransferBurn(t *testing.T) {
	bt := ledger.NewBalanceTracker(nil)

	require.NoError(t, bt.Mint("alice", base, sdkmath.NewInt(1_000)))
	require.NoError(t, bt.Transfer("alice", "bob", base, sdkmath.NewInt(300)))
	require.NoError(t, bt.Burn("bob", base, sdkmath.NewInt(100)))

	assert.Equal(t, int64(700), bt.BalanceOf("alice", base).Int64())
	assert.Equal(t, int64(200), bt.BalanceOf("bob", base).Int64())
	assert.Equal(t, int64(900), bt.TotalSupply(base).Int64())
}

func TestBalanceTracker_TransferInsufficient(t *testing.T) {
	bt := ledger.NewBalanceTracker(nil)
	require.NoError(t, bt.Mint("alice", base, sdkmath.NewInt(10)))

	err := bt.Transfer("alice", "bob", base, sdkmath.NewInt(11))
	require.ErrorIs(t, err, types.ErrInsufficientFunds)
	assert.Equal(t, int64(10), bt.BalanceOf("alice", base).Int64())
	assert.True(t, bt.BalanceOf("bob", base).IsZero())
}

func TestBalanceTracker_RejectsNegative(t *testing.T) {
	bt := ledger.NewBalanceTracker(nil)
	err := bt.Mint("alice", base, sdkmath.NewInt(-1))
	require.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestBalanceTracker_ZeroAndSelfTransferAreNoops(t *testing.T) {
	gen := ledger.NewJournalGenerator()
	bt := ledger.NewBalanceTracker(gen)
	require.NoError(t, bt.Mint("alice", base, sdkmath.NewInt(5)))

	gen.BeginBatch("cmd-1", 1, 0)
	require.NoError(t, bt.Transfer("alice", "bob", base, sdkmath.ZeroInt()))
	require.NoError(t, bt.Transfer("alice", "alice", base, sdkmath.NewInt(5)))
	assert.Nil(t, gen.TakeBatch())
}

func TestBalanceTracker_GlobalBalanceZeroSum(t *testing.T) {
	bt := ledger.NewBalanceTracker(nil)
	require.NoError(t, bt.Mint("alice", base, sdkmath.NewInt(1_000_000)))
	require.NoError(t, bt.Transfer("alice", "bob", base, sdkmath.NewInt(300_000)))
	require.NoError(t, bt.Burn("bob", base, sdkmath.NewInt(1)))

	for token, total := range bt.ComputeGlobalBalance() {
		assert.True(t, total.IsZero(), "token %s has non-zero global balance %s", token, total)
	}
}

func TestBalanceTracker_Snapshot(t *testing.T) {
	bt := ledger.NewBalanceTracker(nil)
	require.NoError(t, bt.Mint("alice", base, sdkmath.NewInt(999)))

	snap := bt.Snapshot()
	require.NotEmpty(t, snap)

	// Mutating snapshot should not affect tracker
	for k := range snap {
		snap[k] = sdkmath.ZeroInt()
	}
	assert.Equal(t, int64(999), bt.BalanceOf("alice", base).Int64())
}

func TestBalanceTracker_CheckpointRestore(t *testing.T) {
	gen := ledger.NewJournalGenerator()
	bt := ledger.NewBalanceTracker(gen)
	require.NoError(t, bt.Mint("alice", base, sdkmath.NewInt(100)))

	gen.BeginBatch("cmd-1", 1, 0)
	require.NoError(t, bt.Transfer("alice", "bob", base, sdkmath.NewInt(10)))
	restore := bt.Checkpoint()
	require.NoError(t, bt.Transfer("alice", "carol", base, sdkmath.NewInt(20)))
	restore()

	assert.Equal(t, int64(90), bt.BalanceOf("alice", base).Int64())
	assert.True(t, bt.BalanceOf("carol", base).IsZero())

	batch := gen.TakeBatch()
	require.NotNil(t, batch)
	assert.Len(t, batch.Journals, 1)
}

// ============================================================================
// Test: JournalGenerator
// ============================================================================

func TestJournalGenerator_DeterministicIDs(t *testing.T) {
	run := func() *ledger.Batch {
		gen := ledger.NewJournalGenerator()
		bt := ledger.NewBalanceTracker(gen)
		gen.BeginBatch("cmd-42", 42, 1_700_000_000_000_000)
		require.NoError(t, bt.Mint("alice", base, sdkmath.NewInt(7)))
		require.NoError(t, bt.Transfer("alice", "bob", base, sdkmath.NewInt(3)))
		return gen.TakeBatch()
	}

	a, b := run(), run()
	require.NotNil(t, a)
	require.NoError(t, a.Validate())
	assert.Equal(t, a.BatchID, b.BatchID)
	require.Len(t, a.Journals, 2)
	for i := range a.Journals {
		assert.Equal(t, a.Journals[i].JournalID, b.Journals[i].JournalID)
		assert.Equal(t, int64(42), a.Journals[i].Sequence)
	}
	assert.Equal(t, ledger.JournalTypeMint, a.Journals[0].JournalType)
	assert.Equal(t, ledger.JournalTypeTransfer, a.Journals[1].JournalType)
}

func TestBalanceTracker_ApplyBatchReplays(t *testing.T) {
	gen := ledger.NewJournalGenerator()
	src := ledger.NewBalanceTracker(gen)
	gen.BeginBatch("cmd-1", 1, 0)
	require.NoError(t, src.Mint("alice", base, sdkmath.NewInt(50)))
	require.NoError(t, src.Transfer("alice", "bob", base, sdkmath.NewInt(20)))
	batch := gen.TakeBatch()

	dst := ledger.NewBalanceTracker(nil)
	require.NoError(t, dst.ApplyBatch(batch))
	assert.Equal(t, src.Snapshot(), dst.Snapshot())
}

// ============================================================================
// Test: Batch Validation
// ============================================================================

func validJournal(batchID uuid.UUID, amount int64) ledger.Journal {
	return ledger.Journal{
		JournalID:     uuid.New(),
		BatchID:       batchID,
		DebitAccount:  ledger.HolderAccount("alice", base),
		CreditAccount: ledger.NewExternalAccountKey(ledger.SubTypeExternalIssuance, base),
		Token:         base,
		Amount:        sdkmath.NewInt(amount),
	}
}

func TestBatchValidate_EmptyBatch_Fails(t *testing.T) {
	batch := &ledger.Batch{BatchID: uuid.New()}
	assert.Error(t, batch.Validate())
}

func TestBatchValidate_ZeroAmount_Fails(t *testing.T) {
	batchID := uuid.New()
	batch := &ledger.Batch{BatchID: batchID, Journals: []ledger.Journal{validJournal(batchID, 0)}}
	assert.Error(t, batch.Validate())
}

func TestBatchValidate_SelfTransfer_Fails(t *testing.T) {
	batchID := uuid.New()
	j := validJournal(batchID, 100)
	j.CreditAccount = j.DebitAccount
	batch := &ledger.Batch{BatchID: batchID, Journals: []ledger.Journal{j}}
	assert.Error(t, batch.Validate())
}

func TestBatchValidate_MismatchedBatchID_Fails(t *testing.T) {
	batch := &ledger.Batch{BatchID: uuid.New(), Journals: []ledger.Journal{validJournal(uuid.New(), 100)}}
	assert.Error(t, batch.Validate())
}

func TestBatchValidate_CrossToken_Fails(t *testing.T) {
	batchID := uuid.New()
	j := validJournal(batchID, 100)
	j.CreditAccount = ledger.HolderAccount("bob", "OTHER")
	batch := &ledger.Batch{BatchID: batchID, Journals: []ledger.Journal{j}}
	assert.Error(t, batch.Validate())
}

func TestBatchValidate_ValidBatch_Passes(t *testing.T) {
	batchID := uuid.New()
	batch := &ledger.Batch{BatchID: batchID, Journals: []ledger.Journal{validJournal(batchID, 1_000_000)}}
	assert.NoError(t, batch.Validate())
}

// ============================================================================
// Test: InvariantValidator
// ============================================================================

func TestInvariantValidator_GlobalBalanceZero(t *testing.T) {
	bt := ledger.NewBalanceTracker(nil)
	v := ledger.NewInvariantValidator(bt)
	require.NoError(t, v.Validate())

	require.NoError(t, bt.Mint("alice", base, sdkmath.NewInt(1_000_000)))
	assert.NoError(t, v.Validate())
}

func TestInvariantValidator_DetectsImbalance(t *testing.T) {
	bt := ledger.NewBalanceTracker(nil)
	v := ledger.NewInvariantValidator(bt)

	bt.ApplyJournal(ledger.Journal{
		DebitAccount:  ledger.HolderAccount("alice", base),
		CreditAccount: ledger.HolderAccount("bob", base),
		Token:         base,
		Amount:        sdkmath.NewInt(5),
	})
	err := v.Validate()
	require.ErrorIs(t, err, types.ErrInvariantViolation)
}
