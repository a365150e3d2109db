package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"VaultLedger/internal/core"
)

// PostgresIdempotencyChecker is the tier-2 dedup lookup against the
// command log.
type PostgresIdempotencyChecker struct {
	db      *sql.DB
	timeout time.Duration
}

var _ core.DBIdempotencyChecker = (*PostgresIdempotencyChecker)(nil)

func NewPostgresIdempotencyChecker(db *sql.DB) *PostgresIdempotencyChecker {
	return &PostgresIdempotencyChecker{
		db:      db,
		timeout: 500 * time.Millisecond,
	}
}

// IsDuplicate checks if the command exists in the Postgres event log
func (pic *PostgresIdempotencyChecker) IsDuplicate(eventType string, idempotencyKey string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), pic.timeout)
	defer cancel()

	query := `
        SELECT 1
        FROM event_log.events
        WHERE event_type = $1 AND idempotency_key = $2
        LIMIT 1
    `

	var exists int
	err := pic.db.QueryRowContext(ctx, query, eventType, idempotencyKey).Scan(&exists)

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
