package lists

import (
	"context"
	"fmt"

	"github.com/baiirun/treelist/internal/field"
	"github.com/baiirun/treelist/internal/model"
	"github.com/baiirun/treelist/internal/schema"
	"github.com/baiirun/treelist/internal/tree"
)

// Index returns every item of scope, flattened, parents before children.
func (e *Engine) Index(ctx context.Context, scope model.Scope) ([]model.ListItem, error) {
	idx, err := e.Tree(ctx, scope)
	if err != nil {
		return nil, err
	}
	return idx.Flat(), nil
}

// Create returns an unsaved draft item under parent so a form can be
// pre-populated. A parent that is root, unknown or detached falls back to the
// root.
func (e *Engine) Create(ctx context.Context, scope model.Scope, parent model.ParentRef, variant string) (*model.ListItem, error) {
	cfg, err := e.field(scope)
	if err != nil {
		return nil, err
	}
	if variant == "" {
		variant = model.DefaultFormVariant
	}
	if _, err := formFor(cfg, variant); err != nil {
		return nil, err
	}

	idx, err := load(ctx, e.store, scope)
	if err != nil {
		return nil, err
	}

	parentDepth, ok := idx.DepthOf(parent)
	if !ok {
		parent, parentDepth = model.Root(), 0
	}
	depth := parentDepth + 1
	if err := CheckMaxDepth(depth, cfg.MaxDepth); err != nil {
		return nil, err
	}

	return &model.ListItem{
		OwnerType:   scope.Owner.Type,
		OwnerID:     scope.Owner.ID,
		FieldID:     scope.FieldID,
		FormVariant: variant,
		Parent:      parent,
		Depth:       depth,
		Value:       model.Value{},
	}, nil
}

// Store validates payload and persists a new item as the last child of parent.
// The payload is stored as given; only Update narrows it to registered sub-fields.
func (e *Engine) Store(ctx context.Context, scope model.Scope, parent model.ParentRef, variant string, payload map[string]any) (*model.ListItem, error) {
	cfg, err := e.field(scope)
	if err != nil {
		return nil, err
	}
	if variant == "" {
		variant = model.DefaultFormVariant
	}
	form, err := formFor(cfg, variant)
	if err != nil {
		return nil, err
	}

	var created *model.ListItem
	err = e.mutate(ctx, scope, func(st Store) error {
		idx, err := load(ctx, st, scope)
		if err != nil {
			return err
		}

		parentDepth, ok := idx.DepthOf(parent)
		if !ok {
			return fmt.Errorf("%w: parent %s", ErrNotFound, parent)
		}
		depth := parentDepth + 1
		if err := CheckMaxDepth(depth, cfg.MaxDepth); err != nil {
			return err
		}

		if err := schema.Validate(payload, form, schema.Creation); err != nil {
			return err
		}

		order, err := st.CountSiblings(ctx, scope, variant, parent)
		if err != nil {
			return fmt.Errorf("failed to count siblings: %w", err)
		}

		item := &model.ListItem{
			OwnerType:   scope.Owner.Type,
			OwnerID:     scope.Owner.ID,
			FieldID:     scope.FieldID,
			FormVariant: variant,
			Parent:      parent,
			OrderColumn: order,
			Value:       model.Value(payload).Clone(),
		}
		if err := st.CreateItem(ctx, item); err != nil {
			return fmt.Errorf("failed to store list item: %w", err)
		}
		item.Depth = depth
		created = item
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("list item stored",
		"scope", scope.String(),
		"item", created.ID,
		"parent", created.Parent.String(),
		"order", created.OrderColumn,
	)
	return created, nil
}

// Update validates payload against the item's form and merges the registered
// sub-fields into its value. Keys that are not registered sub-fields are
// dropped.
func (e *Engine) Update(ctx context.Context, scope model.Scope, itemID int64, payload map[string]any) (*model.ListItem, error) {
	cfg, err := e.field(scope)
	if err != nil {
		return nil, err
	}

	var updated *model.ListItem
	err = e.mutate(ctx, scope, func(st Store) error {
		item, err := st.GetItem(ctx, scope, itemID)
		if err != nil {
			return err
		}

		form, err := formFor(cfg, item.FormVariant)
		if err != nil {
			return err
		}
		if err := schema.Validate(payload, form, schema.Update); err != nil {
			return err
		}

		value := item.Value.Clone()
		for k, v := range form.Filter(payload) {
			value[k] = v
		}
		if err := st.UpdateValue(ctx, scope, item.ID, value); err != nil {
			return fmt.Errorf("failed to update list item: %w", err)
		}

		item.Value = value
		updated = item
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("list item updated", "scope", scope.String(), "item", updated.ID)
	return updated, nil
}

// Destroy deletes an item. What happens to its children depends on the field's
// delete policy. It returns the ids that were deleted.
func (e *Engine) Destroy(ctx context.Context, scope model.Scope, itemID int64) ([]int64, error) {
	cfg, err := e.field(scope)
	if err != nil {
		return nil, err
	}

	var deleted []int64
	err = e.mutate(ctx, scope, func(st Store) error {
		idx, err := load(ctx, st, scope)
		if err != nil {
			return err
		}
		item, ok := idx.Find(itemID)
		if !ok {
			return fmt.Errorf("%w: list item %d", ErrNotFound, itemID)
		}

		deleted, err = destroy(ctx, st, scope, idx, item, cfg.OnDelete)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("list item destroyed",
		"scope", scope.String(),
		"item", itemID,
		"policy", string(cfg.OnDelete),
		"deleted", len(deleted),
	)
	return deleted, nil
}

func destroy(ctx context.Context, st Store, scope model.Scope, idx *tree.Index, item model.ListItem, policy field.DeletePolicy) ([]int64, error) {
	self := model.ParentOf(item.ID)
	children := idx.Children(self)
	ids := []int64{item.ID}

	switch policy {
	case field.DeleteCascade:
		ids = append(ids, idx.Descendants(item.ID)...)

	case field.DeleteReparent:
		// Children keep their relative order and go after the deleted item's
		// remaining siblings.
		next := 0
		for _, sib := range idx.Children(item.Parent) {
			if sib.ID != item.ID && sib.OrderColumn >= next {
				next = sib.OrderColumn + 1
			}
		}
		for i, child := range children {
			parent := item.Parent
			pos := model.Position{ID: child.ID, OrderColumn: next + i, Parent: &parent}
			if err := st.UpdatePosition(ctx, scope, pos); err != nil {
				return nil, fmt.Errorf("failed to move child %d: %w", child.ID, err)
			}
		}

	default:
		if len(children) > 0 {
			return nil, fmt.Errorf("%w: list item %d has %d children", ErrHasChildren, item.ID, len(children))
		}
	}

	if err := st.DeleteItems(ctx, scope, ids); err != nil {
		return nil, fmt.Errorf("failed to delete list items: %w", err)
	}
	return ids, nil
}
