package relay

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/whispertag/whispertag/internal/dbx"
)

// SQLiteStore keeps the relay slot in a small sqlite database, so a handoff
// also survives a process restart within the TTL. The table holds at most one
// row; this is a slot, not a history.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Put(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO physical_key (slot, token_serial, bound_locator, captured_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET
			token_serial = excluded.token_serial,
			bound_locator = excluded.bound_locator,
			captured_at = excluded.captured_at
	`, rec.TokenSerial, rec.BoundLocator, rec.CapturedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to put physical key record: %w", err)
	}
	return nil
}

// Take reads and deletes the slot in one transaction, so two concurrent
// restores can never both receive the serial.
func (s *SQLiteStore) Take(ctx context.Context) (*Record, error) {
	var rec *Record

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var r Record
		var capturedAt int64
		err := tx.QueryRowContext(ctx,
			`SELECT token_serial, bound_locator, captured_at FROM physical_key WHERE slot = 1`,
		).Scan(&r.TokenSerial, &r.BoundLocator, &capturedAt)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read physical key slot: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM physical_key WHERE slot = 1`); err != nil {
			return fmt.Errorf("failed to clear physical key slot: %w", err)
		}

		r.CapturedAt = time.UnixMilli(capturedAt)
		rec = &r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}
