package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/baiirun/treelist/internal/model"
)

// RegisterOwner records an owner so lists can be attached to it.
// Registering an existing owner updates its label.
func (db *DB) RegisterOwner(ctx context.Context, owner model.Owner, label string) error {
	if owner.Type == "" || owner.ID == "" {
		return fmt.Errorf("owner type and id are required")
	}

	_, err := db.q.ExecContext(ctx, `
		INSERT INTO owners (type, id, label) VALUES (?, ?, ?)
		ON CONFLICT (type, id) DO UPDATE SET label = excluded.label`,
		owner.Type, owner.ID, label)
	if err != nil {
		return fmt.Errorf("failed to register owner: %w", err)
	}
	return nil
}

// OwnerExists reports whether the owner has been registered.
func (db *DB) OwnerExists(ctx context.Context, owner model.Owner) (bool, error) {
	query, args, err := db.sq.Select("1").From("owners").
		Where(squirrel.Eq{"type": owner.Type, "id": owner.ID}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build owner query: %w", err)
	}

	var one int
	err = db.q.QueryRowContext(ctx, query, args...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check owner: %w", err)
	}
	return true, nil
}
