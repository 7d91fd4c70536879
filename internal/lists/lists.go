// Package lists is the hierarchical list engine: it keeps a tree of list items
// stored flat in a record store, enforcing a maximum depth, valid parent
// references and sibling order.
//
// Every operation runs against one scope (owner record + list field). The tree
// index is rebuilt from the store on each call; nothing is cached between
// calls. Mutations hold a per-scope lock for their whole read-validate-write
// window, and batch reorders validate the entire batch before writing anything.
package lists

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/baiirun/treelist/internal/field"
	"github.com/baiirun/treelist/internal/model"
	"github.com/baiirun/treelist/internal/schema"
	"github.com/baiirun/treelist/internal/tree"
)

// Store is the record store the engine persists list items in.
//
// Item lookups and writes are restricted to the given scope; an id outside it
// behaves like a missing id and yields an error wrapping model.ErrNotFound.
type Store interface {
	OwnerExists(ctx context.Context, owner model.Owner) (bool, error)
	ListItems(ctx context.Context, scope model.Scope) ([]model.ListItem, error)
	GetItem(ctx context.Context, scope model.Scope, id int64) (*model.ListItem, error)
	CountSiblings(ctx context.Context, scope model.Scope, variant string, parent model.ParentRef) (int, error)
	// CreateItem inserts item and sets its ID and timestamps.
	CreateItem(ctx context.Context, item *model.ListItem) error
	UpdateValue(ctx context.Context, scope model.Scope, id int64, value model.Value) error
	UpdatePosition(ctx context.Context, scope model.Scope, pos model.Position) error
	DeleteItems(ctx context.Context, scope model.Scope, ids []int64) error
	// WithTx runs fn against a transactional view of the store when the backend
	// supports one, and against the store itself otherwise.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// Options configures an Engine.
type Options struct {
	// LockDir enables cross-process scope locks when non-empty.
	LockDir     string
	LockTimeout time.Duration
	Logger      *slog.Logger
}

// Engine runs list operations against a store and a field registry.
type Engine struct {
	store  Store
	fields *field.Registry
	locker *ScopeLocker
	logger *slog.Logger
}

// New creates an engine.
func New(store Store, fields *field.Registry, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:  store,
		fields: fields,
		locker: NewScopeLocker(opts.LockDir, opts.LockTimeout),
		logger: logger,
	}
}

func (e *Engine) field(scope model.Scope) (*field.Config, error) {
	cfg, ok := e.fields.Get(scope.FieldID)
	if !ok {
		return nil, fmt.Errorf("%w: list field %q", ErrNotFound, scope.FieldID)
	}
	return cfg, nil
}

func formFor(cfg *field.Config, variant string) (schema.Form, error) {
	form, ok := cfg.Form(variant)
	if !ok {
		return schema.Form{}, schema.NewValidationError("form_type",
			fmt.Sprintf("The selected form_type %q is invalid. Valid types: %s.", variant, strings.Join(cfg.Variants(), ", ")))
	}
	return form, nil
}

// load builds the tree index for scope with a single item query.
func load(ctx context.Context, st Store, scope model.Scope) (*tree.Index, error) {
	exists, err := st.OwnerExists(ctx, scope.Owner)
	if err != nil {
		return nil, fmt.Errorf("failed to check owner: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: owner %s", ErrNotFound, scope.Owner)
	}

	items, err := st.ListItems(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to load list items: %w", err)
	}
	return tree.Build(items), nil
}

// mutate runs fn under the scope lock inside a store transaction.
func (e *Engine) mutate(ctx context.Context, scope model.Scope, fn func(Store) error) error {
	unlock, err := e.locker.Lock(ctx, scope)
	if err != nil {
		return err
	}
	defer unlock()

	return e.store.WithTx(ctx, fn)
}

// Tree returns the index of scope, for callers that need nesting information.
func (e *Engine) Tree(ctx context.Context, scope model.Scope) (*tree.Index, error) {
	if _, err := e.field(scope); err != nil {
		return nil, err
	}
	return load(ctx, e.store, scope)
}
