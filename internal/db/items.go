package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/baiirun/treelist/internal/model"
)

// itemColumns is the column order scanItem expects.
var itemColumns = []string{
	"id", "model_type", "model_id", "field_id", "form_type",
	"parent_id", "order_column", "value", "created_at", "updated_at",
}

func scopeEq(scope model.Scope) squirrel.Eq {
	return squirrel.Eq{
		"model_type": scope.Owner.Type,
		"model_id":   scope.Owner.ID,
		"field_id":   scope.FieldID,
	}
}

// parentArg is the column value for ref: NULL for the root.
func parentArg(ref model.ParentRef) any {
	if ref.IsRoot() {
		return nil
	}
	id, _ := ref.ID()
	return id
}

func notFound(scope model.Scope, id int64) error {
	return fmt.Errorf("%w: list item %d in %s", model.ErrNotFound, id, scope)
}

// CreateItem inserts a new list item and sets its ID and timestamps.
func (db *DB) CreateItem(ctx context.Context, item *model.ListItem) error {
	value := item.Value
	if value == nil {
		value = model.Value{}
	}
	valueJSON, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode value: %w", err)
	}

	now := time.Now().UTC()
	query, args, err := db.sq.Insert("list_items").
		Columns(itemColumns[1:]...).
		Values(item.OwnerType, item.OwnerID, item.FieldID, item.FormVariant,
			parentArg(item.Parent), item.OrderColumn, string(valueJSON), now, now).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}

	result, err := db.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to create list item: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read list item id: %w", err)
	}

	item.ID = id
	item.Value = value
	item.CreatedAt = now
	item.UpdatedAt = now
	return nil
}

// GetItem retrieves a list item by ID within scope.
func (db *DB) GetItem(ctx context.Context, scope model.Scope, id int64) (*model.ListItem, error) {
	query, args, err := db.sq.Select(itemColumns...).From("list_items").
		Where(scopeEq(scope)).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	item, err := scanItem(db.q.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, notFound(scope, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get list item: %w", err)
	}
	return item, nil
}

// UpdateValue replaces a list item's value.
func (db *DB) UpdateValue(ctx context.Context, scope model.Scope, id int64, value model.Value) error {
	valueJSON, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode value: %w", err)
	}

	query, args, err := db.sq.Update("list_items").
		Set("value", string(valueJSON)).
		Set("updated_at", time.Now().UTC()).
		Where(scopeEq(scope)).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}

	result, err := db.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update value: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return notFound(scope, id)
	}
	return nil
}

// UpdatePosition sets a list item's order column and, when pos carries one,
// its parent.
func (db *DB) UpdatePosition(ctx context.Context, scope model.Scope, pos model.Position) error {
	update := db.sq.Update("list_items").
		Set("order_column", pos.OrderColumn).
		Set("updated_at", time.Now().UTC())
	if pos.Parent != nil {
		update = update.Set("parent_id", parentArg(*pos.Parent))
	}

	query, args, err := update.
		Where(scopeEq(scope)).
		Where(squirrel.Eq{"id": pos.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}

	result, err := db.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update position: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return notFound(scope, pos.ID)
	}
	return nil
}

// DeleteItems deletes the given list items. An id missing from scope makes it
// fail with a not-found error; inside WithTx the partial delete rolls back.
func (db *DB) DeleteItems(ctx context.Context, scope model.Scope, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	query, args, err := db.sq.Delete("list_items").
		Where(scopeEq(scope)).
		Where(squirrel.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete: %w", err)
	}

	result, err := db.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete list items: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows != int64(len(ids)) {
		return fmt.Errorf("%w: deleted %d of %d list items in %s", model.ErrNotFound, rows, len(ids), scope)
	}
	return nil
}
