// Package tree materializes the list items of one scope into an in-memory
// adjacency index.
//
// Items are stored flat with a parent reference each. Build computes depth in
// a single top-down pass from the root, so lookups afterwards never touch the
// record store. Items whose parent chain never reaches the root (a dangling
// parent or a cycle) are detached: they keep depth 0 and cannot act as parents.
package tree

import (
	"sort"

	"github.com/baiirun/treelist/internal/model"
)

// Index is a read-only view over one scope's items.
type Index struct {
	byID     map[int64]*model.ListItem
	children map[model.ParentRef][]*model.ListItem
	order    []*model.ListItem // pre-order, attached items first
}

// Node is an item with its children, used for nested rendering.
type Node struct {
	Item     model.ListItem `json:"item"`
	Children []Node         `json:"children"`
}

// Build indexes items and computes their depth. The input slice is not modified.
func Build(items []model.ListItem) *Index {
	idx := &Index{
		byID:     make(map[int64]*model.ListItem, len(items)),
		children: make(map[model.ParentRef][]*model.ListItem),
	}

	for i := range items {
		item := items[i]
		item.Depth = 0
		idx.byID[item.ID] = &item
		idx.children[item.Parent] = append(idx.children[item.Parent], &item)
	}
	for _, siblings := range idx.children {
		sort.SliceStable(siblings, func(a, b int) bool {
			if siblings[a].OrderColumn != siblings[b].OrderColumn {
				return siblings[a].OrderColumn < siblings[b].OrderColumn
			}
			return siblings[a].ID < siblings[b].ID
		})
	}

	// Iterative pre-order walk from the root assigns depth exactly once per item.
	type frame struct {
		item  *model.ListItem
		depth int
	}
	roots := idx.children[model.Root()]
	stack := make([]frame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{roots[i], 1})
	}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.item.Depth != 0 {
			continue
		}
		f.item.Depth = f.depth
		idx.order = append(idx.order, f.item)

		kids := idx.children[model.ParentOf(f.item.ID)]
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, frame{kids[i], f.depth + 1})
		}
	}

	var detached []*model.ListItem
	for _, item := range idx.byID {
		if item.Depth == 0 {
			detached = append(detached, item)
		}
	}
	sort.Slice(detached, func(a, b int) bool { return detached[a].ID < detached[b].ID })
	idx.order = append(idx.order, detached...)

	return idx
}

// Len returns the number of indexed items.
func (idx *Index) Len() int {
	return len(idx.byID)
}

// Flat returns every item of the scope regardless of nesting, parents before
// their children and siblings in order. Detached items come last.
func (idx *Index) Flat() []model.ListItem {
	out := make([]model.ListItem, 0, len(idx.order))
	for _, item := range idx.order {
		out = append(out, *item)
	}
	return out
}

// Find returns the item with the given id.
func (idx *Index) Find(id int64) (model.ListItem, bool) {
	item, ok := idx.byID[id]
	if !ok {
		return model.ListItem{}, false
	}
	return *item, true
}

// Attached reports whether id exists and is reachable from the root.
func (idx *Index) Attached(id int64) bool {
	item, ok := idx.byID[id]
	return ok && item.Depth > 0
}

// DepthOf returns the depth of the node ref points at: 0 for the root, the
// item's depth for an attached item. ok is false for unknown or detached items.
func (idx *Index) DepthOf(ref model.ParentRef) (depth int, ok bool) {
	id, isItem := ref.ID()
	if !isItem {
		return 0, true
	}
	if !idx.Attached(id) {
		return 0, false
	}
	return idx.byID[id].Depth, true
}

// Children returns the direct children of ref in sibling order.
func (idx *Index) Children(ref model.ParentRef) []model.ListItem {
	kids := idx.children[ref]
	out := make([]model.ListItem, 0, len(kids))
	for _, k := range kids {
		out = append(out, *k)
	}
	return out
}

// Descendants returns the ids below id in pre-order, excluding id itself.
func (idx *Index) Descendants(id int64) []int64 {
	var out []int64
	seen := map[int64]bool{id: true}
	stack := []int64{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		kids := idx.children[model.ParentOf(cur)]
		for i := len(kids) - 1; i >= 0; i-- {
			if seen[kids[i].ID] {
				continue
			}
			seen[kids[i].ID] = true
			stack = append(stack, kids[i].ID)
		}
		if cur != id {
			out = append(out, cur)
		}
	}
	return out
}

// Height returns how many levels hang below id: 0 for a leaf.
func (idx *Index) Height(id int64) int {
	base, ok := idx.byID[id]
	if !ok || base.Depth == 0 {
		return 0
	}
	height := 0
	for _, d := range idx.Descendants(id) {
		if h := idx.byID[d].Depth - base.Depth; h > height {
			height = h
		}
	}
	return height
}

// Project returns a new index with the given parent changes applied.
func (idx *Index) Project(moves map[int64]model.ParentRef) *Index {
	items := make([]model.ListItem, 0, len(idx.byID))
	for _, item := range idx.byID {
		cp := *item
		if p, ok := moves[cp.ID]; ok {
			cp.Parent = p
		}
		items = append(items, cp)
	}
	return Build(items)
}

// Nested renders the attached items as a forest.
func (idx *Index) Nested() []Node {
	return idx.nest(model.Root())
}

func (idx *Index) nest(ref model.ParentRef) []Node {
	kids := idx.children[ref]
	nodes := make([]Node, 0, len(kids))
	for _, k := range kids {
		if k.Depth == 0 {
			continue
		}
		nodes = append(nodes, Node{Item: *k, Children: idx.nest(model.ParentOf(k.ID))})
	}
	return nodes
}
