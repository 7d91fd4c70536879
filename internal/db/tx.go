package db

import (
	"context"
	"fmt"

	"github.com/baiirun/treelist/internal/lists"
)

var _ lists.Store = (*DB)(nil)

// WithTx runs fn inside a transaction. The transaction commits when fn returns
// nil and rolls back otherwise. Nested calls reuse the open transaction.
func (db *DB) WithTx(ctx context.Context, fn func(lists.Store) error) error {
	if db.tx != nil {
		return fn(db)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	txDB := &DB{DB: db.DB, q: tx, sq: db.sq, tx: tx}
	if err := fn(txDB); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
