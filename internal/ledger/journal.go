package ledger

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"

	"VaultLedger/internal/types"
)

// JournalType represents the purpose of a journal entry
type JournalType int32

const (
	JournalTypeTransfer JournalType = iota
	JournalTypeMint
	JournalTypeBurn
)

func (t JournalType) String() string {
	switch t {
	case JournalTypeTransfer:
		return "transfer"
	case JournalTypeMint:
		return "mint"
	case JournalTypeBurn:
		return "burn"
	default:
		return "unknown"
	}
}

// Journal represents a single double-entry journal entry
type Journal struct {
	JournalID     uuid.UUID     // Unique identifier
	BatchID       uuid.UUID     // Groups the entries of one command
	EventRef      string        // Idempotency key of source command
	Sequence      int64         // Global command sequence
	DebitAccount  AccountKey    // Account receiving debit (balance increases)
	CreditAccount AccountKey    // Account receiving credit (balance decreases)
	Token         types.TokenID // Token being moved
	Amount        sdkmath.Int   // Always positive
	JournalType   JournalType   // Entry type
	Timestamp     int64         // Command timestamp (epoch microseconds)
}

// Batch represents the balanced set of journal entries one command produced
type Batch struct {
	BatchID   uuid.UUID
	EventRef  string
	Sequence  int64
	Timestamp int64
	Journals  []Journal
}

// Validate ensures the batch is well-formed. Each entry moves one positive
// amount from credit to debit, so every entry is balanced by construction.
func (b *Batch) Validate() error {
	if len(b.Journals) == 0 {
		return fmt.Errorf("batch %s is empty", b.BatchID)
	}

	for _, j := range b.Journals {
		if j.Amount.IsNil() || !j.Amount.IsPositive() {
			return fmt.Errorf("journal %s has non-positive amount: %s", j.JournalID, j.Amount)
		}

		if j.BatchID != b.BatchID {
			return fmt.Errorf("journal %s has mismatched batch_id", j.JournalID)
		}

		if j.DebitAccount == j.CreditAccount {
			return fmt.Errorf("journal %s has same debit and credit account", j.JournalID)
		}

		if j.DebitAccount.Token != j.Token || j.CreditAccount.Token != j.Token {
			return fmt.Errorf("journal %s crosses tokens", j.JournalID)
		}
	}

	return nil
}
