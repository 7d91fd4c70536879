package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/baiirun/treelist/internal/model"
)

// ListItems returns every list item in scope in a single query, ordered by
// order column then id. Depth is left for the tree index to compute.
func (db *DB) ListItems(ctx context.Context, scope model.Scope) ([]model.ListItem, error) {
	query, args, err := db.sq.Select(itemColumns...).From("list_items").
		Where(scopeEq(scope)).
		OrderBy("order_column ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := db.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []model.ListItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan list item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// CountSiblings counts the items of one form variant directly under parent.
func (db *DB) CountSiblings(ctx context.Context, scope model.Scope, variant string, parent model.ParentRef) (int, error) {
	where := squirrel.Eq{"form_type": variant, "parent_id": parentArg(parent)}
	query, args, err := db.sq.Select("COUNT(*)").From("list_items").
		Where(scopeEq(scope)).
		Where(where).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build query: %w", err)
	}

	var count int
	if err := db.q.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count siblings: %w", err)
	}
	return count, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (*model.ListItem, error) {
	item := &model.ListItem{}
	var parentID sql.NullInt64
	var value string
	err := row.Scan(
		&item.ID, &item.OwnerType, &item.OwnerID, &item.FieldID, &item.FormVariant,
		&parentID, &item.OrderColumn, &value, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if parentID.Valid && parentID.Int64 != 0 {
		item.Parent = model.ParentOf(parentID.Int64)
	}
	item.Value = model.Value{}
	if value != "" {
		if err := json.Unmarshal([]byte(value), &item.Value); err != nil {
			return nil, fmt.Errorf("failed to decode value of list item %d: %w", item.ID, err)
		}
	}
	return item, nil
}
