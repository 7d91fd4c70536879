package dynamo_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/go-cmp/cmp"

	"github.com/baiirun/treelist/internal/dynamo"
	"github.com/baiirun/treelist/internal/field"
	"github.com/baiirun/treelist/internal/lists"
	"github.com/baiirun/treelist/internal/model"
	"github.com/baiirun/treelist/internal/schema"
)

var scope = model.Scope{
	Owner:   model.Owner{Type: "page", ID: "1"},
	FieldID: "menu",
}

func setupStore(t *testing.T) (*dynamo.Store, *fakeDynamo) {
	t.Helper()
	fake := newFakeDynamo()
	s := dynamo.New(fake, dynamo.Config{})
	if err := s.RegisterOwner(context.Background(), scope.Owner, "Home"); err != nil {
		t.Fatalf("failed to register owner: %v", err)
	}
	return s, fake
}

func create(t *testing.T, s *dynamo.Store, parent model.ParentRef, order int, title string) *model.ListItem {
	t.Helper()
	item := &model.ListItem{
		OwnerType:   scope.Owner.Type,
		OwnerID:     scope.Owner.ID,
		FieldID:     scope.FieldID,
		FormVariant: model.DefaultFormVariant,
		Parent:      parent,
		OrderColumn: order,
		Value:       model.Value{"title": title},
	}
	if err := s.CreateItem(context.Background(), item); err != nil {
		t.Fatalf("failed to create item: %v", err)
	}
	return item
}

func TestCreateTables(t *testing.T) {
	fake := newFakeDynamo()
	s := dynamo.New(fake, dynamo.DefaultConfig())

	if err := s.CreateTables(context.Background()); err != nil {
		t.Fatalf("failed to create tables: %v", err)
	}
	if diff := cmp.Diff([]string{"treelist_items", "treelist_owners"}, fake.created); diff != "" {
		t.Errorf("tables mismatch (-want +got):\n%s", diff)
	}
}

func TestOwnerExists(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	ok, err := s.OwnerExists(ctx, scope.Owner)
	if err != nil || !ok {
		t.Errorf("OwnerExists = %v, %v; want true", ok, err)
	}
	ok, err = s.OwnerExists(ctx, model.Owner{Type: "page", ID: "2"})
	if err != nil || ok {
		t.Errorf("OwnerExists(missing) = %v, %v; want false", ok, err)
	}
}

func TestCreateAndGet(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	root := create(t, s, model.Root(), 0, "Home")
	child := create(t, s, model.ParentOf(root.ID), 0, "About")
	if root.ID != 1 || child.ID != 2 {
		t.Errorf("ids = %d, %d; want 1, 2", root.ID, child.ID)
	}

	got, err := s.GetItem(ctx, scope, child.ID)
	if err != nil {
		t.Fatalf("failed to get item: %v", err)
	}
	if got.Parent != model.ParentOf(root.ID) {
		t.Errorf("parent = %s, want %d", got.Parent, root.ID)
	}
	if diff := cmp.Diff(model.Value{"title": "About"}, got.Value); diff != "" {
		t.Errorf("value mismatch (-want +got):\n%s", diff)
	}
	if !got.CreatedAt.Equal(child.CreatedAt) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, child.CreatedAt)
	}

	got, err = s.GetItem(ctx, scope, root.ID)
	if err != nil {
		t.Fatalf("failed to get item: %v", err)
	}
	if !got.Parent.IsRoot() {
		t.Errorf("parent = %s, want root", got.Parent)
	}

	other := scope
	other.FieldID = "footer"
	if _, err := s.GetItem(ctx, other, root.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListItems_Paginates(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	c := create(t, s, model.Root(), 2, "c")
	a := create(t, s, model.Root(), 0, "a")
	b := create(t, s, model.Root(), 1, "b")
	a1 := create(t, s, model.ParentOf(a.ID), 0, "a1")
	create(t, s, model.Root(), 0, "other")

	items, err := s.ListItems(ctx, scope)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	var got []int64
	for _, it := range items {
		got = append(got, it.ID)
	}
	// order column first, then id
	want := []int64{a.ID, a1.ID, 5, b.ID, c.ID}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
}

func TestCountSiblings(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	a := create(t, s, model.Root(), 0, "a")
	create(t, s, model.Root(), 1, "b")
	create(t, s, model.ParentOf(a.ID), 0, "a1")

	n, err := s.CountSiblings(ctx, scope, model.DefaultFormVariant, model.Root())
	if err != nil || n != 2 {
		t.Errorf("root count = %d, %v; want 2", n, err)
	}
	n, err = s.CountSiblings(ctx, scope, model.DefaultFormVariant, model.ParentOf(a.ID))
	if err != nil || n != 1 {
		t.Errorf("child count = %d, %v; want 1", n, err)
	}
	n, err = s.CountSiblings(ctx, scope, "banner", model.Root())
	if err != nil || n != 0 {
		t.Errorf("banner count = %d, %v; want 0", n, err)
	}
}

func TestUpdates(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()
	a := create(t, s, model.Root(), 0, "a")
	b := create(t, s, model.Root(), 1, "b")

	if err := s.UpdateValue(ctx, scope, b.ID, model.Value{"title": "B", "url": "/b"}); err != nil {
		t.Fatalf("failed to update value: %v", err)
	}
	parent := model.ParentOf(a.ID)
	if err := s.UpdatePosition(ctx, scope, model.Position{ID: b.ID, OrderColumn: 3, Parent: &parent}); err != nil {
		t.Fatalf("failed to update position: %v", err)
	}

	got, err := s.GetItem(ctx, scope, b.ID)
	if err != nil {
		t.Fatalf("failed to get item: %v", err)
	}
	if got.Parent != parent || got.OrderColumn != 3 {
		t.Errorf("got parent %s order %d, want %s 3", got.Parent, got.OrderColumn, parent)
	}
	if diff := cmp.Diff(model.Value{"title": "B", "url": "/b"}, got.Value); diff != "" {
		t.Errorf("value mismatch (-want +got):\n%s", diff)
	}

	root := model.Root()
	if err := s.UpdatePosition(ctx, scope, model.Position{ID: b.ID, OrderColumn: 1, Parent: &root}); err != nil {
		t.Fatalf("failed to move to root: %v", err)
	}
	got, _ = s.GetItem(ctx, scope, b.ID)
	if !got.Parent.IsRoot() {
		t.Errorf("parent = %s, want root", got.Parent)
	}

	if err := s.UpdateValue(ctx, scope, 404, model.Value{}); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if err := s.UpdatePosition(ctx, scope, model.Position{ID: 404}); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteItems(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()
	a := create(t, s, model.Root(), 0, "a")
	b := create(t, s, model.Root(), 1, "b")

	if err := s.DeleteItems(ctx, scope, []int64{a.ID}); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	if err := s.DeleteItems(ctx, scope, []int64{a.ID}); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}

	items, _ := s.ListItems(ctx, scope)
	if len(items) != 1 || items[0].ID != b.ID {
		t.Errorf("remaining = %v, want only %d", items, b.ID)
	}
}

func TestEngineOnDynamo(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	fields, err := field.NewRegistry(field.Config{
		ID: "menu",
		Forms: map[string]schema.Form{
			"show": {Fields: []schema.SubField{{Name: "title", Rules: []string{"required"}}}},
		},
	})
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}
	e := lists.New(s, fields, lists.Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})

	a, err := e.Store(ctx, scope, model.Root(), "", map[string]any{"title": "a"})
	if err != nil {
		t.Fatalf("failed to store: %v", err)
	}
	b, err := e.Store(ctx, scope, model.Root(), "", map[string]any{"title": "b"})
	if err != nil {
		t.Fatalf("failed to store: %v", err)
	}
	if b.OrderColumn != 1 {
		t.Errorf("order = %d, want 1", b.OrderColumn)
	}

	parent := model.ParentOf(a.ID)
	items, err := e.Order(ctx, scope, []model.Position{{ID: b.ID, OrderColumn: 0, Parent: &parent}})
	if err != nil {
		t.Fatalf("failed to order: %v", err)
	}
	if len(items) != 2 || items[1].ID != b.ID || items[1].Depth != 2 {
		t.Errorf("items = %+v, want b at depth 2", items)
	}

	if _, err := e.Destroy(ctx, scope, a.ID); !errors.Is(err, lists.ErrHasChildren) {
		t.Errorf("err = %v, want ErrHasChildren", err)
	}
}

func TestScopesWithSeparatorsStayApart(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	first := model.Scope{Owner: model.Owner{Type: "a#b", ID: "c"}, FieldID: "menu"}
	second := model.Scope{Owner: model.Owner{Type: "a", ID: "b#c"}, FieldID: "menu"}
	for _, sc := range []model.Scope{first, second} {
		if err := s.RegisterOwner(ctx, sc.Owner, ""); err != nil {
			t.Fatalf("failed to register owner: %v", err)
		}
	}

	fields, err := field.NewRegistry(field.Config{
		ID: "menu",
		Forms: map[string]schema.Form{
			"show": {Fields: []schema.SubField{{Name: "title", Rules: []string{"required"}}}},
		},
	})
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}
	e := lists.New(s, fields, lists.Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})

	kept, err := e.Store(ctx, first, model.Root(), "", map[string]any{"title": "kept"})
	if err != nil {
		t.Fatalf("failed to store: %v", err)
	}

	items, err := e.Index(ctx, second)
	if err != nil {
		t.Fatalf("failed to index: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("second scope sees %+v, want nothing", items)
	}
	if _, err := s.GetItem(ctx, second, kept.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("GetItem from second scope err = %v, want ErrNotFound", err)
	}
	if _, err := e.Destroy(ctx, second, kept.ID); !errors.Is(err, lists.ErrNotFound) {
		t.Errorf("Destroy from second scope err = %v, want ErrNotFound", err)
	}

	items, err = e.Index(ctx, first)
	if err != nil {
		t.Fatalf("failed to index: %v", err)
	}
	if len(items) != 1 || items[0].ID != kept.ID {
		t.Errorf("first scope items = %+v, want only %d", items, kept.ID)
	}
}

func TestListItems_SkipsRecordsOfOtherScopes(t *testing.T) {
	s, fake := setupStore(t)
	ctx := context.Background()
	a := create(t, s, model.Root(), 0, "a")

	// A record filed under this partition but carrying another scope's
	// attributes is not returned.
	for _, rec := range fake.table("treelist_items") {
		if sk, ok := rec["sk"].(*types.AttributeValueMemberN); ok && sk.Value == strconv.FormatInt(a.ID, 10) {
			rec["model_id"] = &types.AttributeValueMemberS{Value: "2"}
		}
	}

	items, err := s.ListItems(ctx, scope)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("items = %+v, want none", items)
	}
	if _, err := s.GetItem(ctx, scope, a.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
