package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PostgresStore keeps cursors and operation ids in the deposits schema.
// Safe for concurrent use; concurrency control is left to Postgres.
type PostgresStore struct {
	db      *sql.DB
	timeout time.Duration
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:      db,
		timeout: 5 * time.Second,
	}
}

// GetCursor returns the persisted watermark for an account.
// ok is false when the account has never advanced.
func (ps *PostgresStore) GetCursor(ctx context.Context, brokerAccountID int64) (cursor int64, ok bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, ps.timeout)
	defer cancel()

	err = ps.db.QueryRowContext(ctx,
		`SELECT cursor FROM deposits.cursors WHERE broker_account_id = $1`,
		brokerAccountID,
	).Scan(&cursor)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get cursor for account %d: %w", brokerAccountID, err)
	}
	return cursor, true, nil
}

// SetCursor overwrites the watermark. Last write wins.
func (ps *PostgresStore) SetCursor(ctx context.Context, brokerAccountID, cursor int64) error {
	ctx, cancel := context.WithTimeout(ctx, ps.timeout)
	defer cancel()

	_, err := ps.db.ExecContext(ctx, `
		INSERT INTO deposits.cursors (broker_account_id, cursor, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (broker_account_id) DO UPDATE SET cursor = EXCLUDED.cursor, updated_at = NOW()
	`, brokerAccountID, cursor)
	if err != nil {
		return fmt.Errorf("set cursor for account %d: %w", brokerAccountID, err)
	}
	return nil
}

// GetOrCreateOperationID stores candidate for depositID unless a key already
// exists, then returns whichever key is persisted. The primary key on
// deposit_id guarantees one winner among concurrent callers.
func (ps *PostgresStore) GetOrCreateOperationID(ctx context.Context, depositID int64, candidate uuid.UUID) (uuid.UUID, error) {
	ctx, cancel := context.WithTimeout(ctx, ps.timeout)
	defer cancel()

	if _, err := ps.db.ExecContext(ctx, `
		INSERT INTO deposits.operation_ids (deposit_id, operation_id)
		VALUES ($1, $2)
		ON CONFLICT (deposit_id) DO NOTHING
	`, depositID, candidate); err != nil {
		return uuid.Nil, fmt.Errorf("insert operation id for deposit %d: %w", depositID, err)
	}

	// Separate statement: under READ COMMITTED it sees a concurrent winner's row.
	var opID uuid.UUID
	if err := ps.db.QueryRowContext(ctx,
		`SELECT operation_id FROM deposits.operation_ids WHERE deposit_id = $1`,
		depositID,
	).Scan(&opID); err != nil {
		return uuid.Nil, fmt.Errorf("select operation id for deposit %d: %w", depositID, err)
	}
	return opID, nil
}
