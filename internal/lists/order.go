package lists

import (
	"context"
	"fmt"

	"github.com/baiirun/treelist/internal/model"
	"github.com/baiirun/treelist/internal/schema"
	"github.com/baiirun/treelist/internal/tree"
)

// ParseBatch checks the shape of an order payload's items value: an array of
// objects with integer id and order_column and an optional integer or null
// parent_id. A parent_id of null or 0 means the root; an absent parent_id
// leaves the parent unchanged.
func ParseBatch(items any) ([]model.Position, error) {
	list, ok := items.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: items must be an array", ErrMalformedBatch)
	}

	out := make([]model.Position, 0, len(list))
	for i, raw := range list {
		entry, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: items.%d must be an object", ErrMalformedBatch, i)
		}

		id, ok := schema.AsInt(entry["id"])
		if !ok || id <= 0 {
			return nil, fmt.Errorf("%w: items.%d.id must be a positive integer", ErrMalformedBatch, i)
		}
		order, ok := schema.AsInt(entry["order_column"])
		if !ok || int64(int(order)) != order {
			return nil, fmt.Errorf("%w: items.%d.order_column must be an integer", ErrMalformedBatch, i)
		}

		pos := model.Position{ID: id, OrderColumn: int(order)}
		if p, present := entry["parent_id"]; present {
			ref := model.Root()
			if p != nil {
				pid, ok := schema.AsInt(p)
				if !ok || pid < 0 {
					return nil, fmt.Errorf("%w: items.%d.parent_id must be an integer", ErrMalformedBatch, i)
				}
				if pid > 0 {
					ref = model.ParentOf(pid)
				}
			}
			pos.Parent = &ref
		}
		out = append(out, pos)
	}
	return out, nil
}

// Order validates the whole batch against the current tree and, only if every
// entry passes, applies the new order and parents. Any violation rejects the
// batch as a *BatchError and nothing is written. It returns the scope's items
// after the change.
func (e *Engine) Order(ctx context.Context, scope model.Scope, batch []model.Position) ([]model.ListItem, error) {
	cfg, err := e.field(scope)
	if err != nil {
		return nil, err
	}
	if len(batch) == 0 {
		return nil, fmt.Errorf("%w: items must not be empty", ErrMalformedBatch)
	}

	var items []model.ListItem
	err = e.mutate(ctx, scope, func(st Store) error {
		idx, err := load(ctx, st, scope)
		if err != nil {
			return err
		}

		if violations := validateOrder(idx, batch, cfg.MaxDepth); len(violations) > 0 {
			return &BatchError{Violations: violations}
		}

		for _, pos := range batch {
			if err := st.UpdatePosition(ctx, scope, pos); err != nil {
				return fmt.Errorf("failed to reorder item %d: %w", pos.ID, err)
			}
		}

		after, err := load(ctx, st, scope)
		if err != nil {
			return err
		}
		items = after.Flat()
		return nil
	})
	if err != nil {
		e.logger.Warn("order rejected", "scope", scope.String(), "entries", len(batch), "error", err)
		return nil, err
	}

	e.logger.Info("list reordered", "scope", scope.String(), "entries", len(batch))
	return items, nil
}

// validateOrder is the pre-flight pass of Order. It never touches the store.
func validateOrder(idx *tree.Index, batch []model.Position, maxDepth int) []Violation {
	var violations []Violation
	fail := func(id int64, err error) {
		violations = append(violations, Violation{ItemID: id, Err: err})
	}

	seen := make(map[int64]bool, len(batch))
	moves := make(map[int64]model.ParentRef)
	var moved []int64

	for _, pos := range batch {
		if seen[pos.ID] {
			fail(pos.ID, fmt.Errorf("%w: item listed more than once", ErrMalformedBatch))
			continue
		}
		seen[pos.ID] = true

		item, ok := idx.Find(pos.ID)
		if !ok {
			fail(pos.ID, fmt.Errorf("%w: list item %d", ErrNotFound, pos.ID))
			continue
		}
		if pos.Parent == nil || pos.Parent.Equal(item.Parent) {
			continue
		}

		parent := *pos.Parent
		if pid, isItem := parent.ID(); isItem {
			if pid == pos.ID {
				fail(pos.ID, fmt.Errorf("%w: item cannot be its own parent", ErrCycle))
				continue
			}
			if !idx.Attached(pid) {
				fail(pos.ID, fmt.Errorf("%w: parent %d", ErrNotFound, pid))
				continue
			}
		}
		moves[pos.ID] = parent
		moved = append(moved, pos.ID)
	}

	if len(violations) > 0 || len(moved) == 0 {
		return violations
	}

	projected := idx.Project(moves)
	for _, id := range moved {
		if !projected.Attached(id) {
			fail(id, fmt.Errorf("%w: item would end up below itself", ErrCycle))
			continue
		}
		depth, _ := projected.DepthOf(model.ParentOf(id))
		if err := CheckMaxDepth(depth+projected.Height(id), maxDepth); err != nil {
			fail(id, err)
		}
	}
	return violations
}
