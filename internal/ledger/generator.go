package ledger

import (
	"encoding/binary"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
)

// journalNamespace seeds deterministic batch and journal ids so a replay
// from the command log reproduces identical journals.
var journalNamespace = uuid.MustParse("6f1c1f0e-5b7a-4d8e-9a57-3c0e2b7d4a11")

// JournalGenerator collects the journals produced while one command runs.
// The core opens a batch before dispatching and takes it after success;
// entries recorded with no open batch are applied but not kept.
type JournalGenerator struct {
	open  bool
	batch Batch
}

func NewJournalGenerator() *JournalGenerator {
	return &JournalGenerator{}
}

// BeginBatch opens a batch for the command identified by eventRef.
func (jg *JournalGenerator) BeginBatch(eventRef string, sequence, timestampUs int64) {
	jg.open = true
	jg.batch = Batch{
		BatchID:   uuid.NewSHA1(journalNamespace, []byte(eventRef)),
		EventRef:  eventRef,
		Sequence:  sequence,
		Timestamp: timestampUs,
	}
}

// TakeBatch closes the open batch and returns it, or nil when the command
// moved no tokens.
func (jg *JournalGenerator) TakeBatch() *Batch {
	if !jg.open {
		return nil
	}
	jg.open = false
	if len(jg.batch.Journals) == 0 {
		return nil
	}
	b := jg.batch
	jg.batch = Batch{}
	return &b
}

// Discard drops the open batch.
func (jg *JournalGenerator) Discard() {
	jg.open = false
	jg.batch = Batch{}
}

func (jg *JournalGenerator) record(debit, credit AccountKey, amount sdkmath.Int, jt JournalType) Journal {
	j := Journal{
		DebitAccount:  debit,
		CreditAccount: credit,
		Token:         debit.Token,
		Amount:        amount,
		JournalType:   jt,
	}
	if !jg.open {
		return j
	}

	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], uint64(len(jg.batch.Journals)))
	j.JournalID = uuid.NewSHA1(jg.batch.BatchID, idx[:])
	j.BatchID = jg.batch.BatchID
	j.EventRef = jg.batch.EventRef
	j.Sequence = jg.batch.Sequence
	j.Timestamp = jg.batch.Timestamp
	jg.batch.Journals = append(jg.batch.Journals, j)
	return j
}

// pending returns the number of journals in the open batch.
func (jg *JournalGenerator) pending() int {
	return len(jg.batch.Journals)
}

func (jg *JournalGenerator) truncate(n int) {
	if n < len(jg.batch.Journals) {
		jg.batch.Journals = jg.batch.Journals[:n]
	}
}
