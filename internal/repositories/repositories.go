package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/desertthunder/d2t/internal/shared"
)

// sequenced lists the tables that carry a run number counter in <table>_sequence.
var sequenced = map[string]bool{"sync_runs": true}

// NextSequence bumps the counter of table and returns the new value, so the first run recorded is run #1.
//
// The number is what `d2t history` shows in its # column; run ids stay the lookup key.
func NextSequence(ctx context.Context, db *sql.DB, table string) (int, error) {
	if !sequenced[table] {
		return 0, fmt.Errorf("%w: no sequence for table %q", shared.ErrInvalidInput, table)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var sequence int
	query := "UPDATE " + table + "_sequence SET value = value + 1 WHERE id = 1 RETURNING value"
	if err := tx.QueryRowContext(ctx, query).Scan(&sequence); err != nil {
		return 0, fmt.Errorf("failed to advance %s sequence: %w", table, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit sequence transaction: %w", err)
	}
	return sequence, nil
}
