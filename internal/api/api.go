// Package api is the request layer in front of the list engine. It decodes
// operation envelopes, dispatches them to the engine and maps engine errors
// to HTTP-style status codes. The HTTP handler and the Lambda adapter both
// go through Service.Handle.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/baiirun/treelist/internal/lists"
	"github.com/baiirun/treelist/internal/model"
	"github.com/baiirun/treelist/internal/schema"
	"github.com/baiirun/treelist/internal/tree"
)

// Operations.
const (
	OpIndex   = "index"
	OpTree    = "tree"
	OpCreate  = "create"
	OpStore   = "store"
	OpUpdate  = "update"
	OpDestroy = "destroy"
	OpOrder   = "order"
)

// ErrBadRequest is returned for envelopes that do not name an operation scope.
var ErrBadRequest = errors.New("treelist: bad request")

// Request is one operation envelope.
type Request struct {
	Op        string         `json:"op"`
	OwnerType string         `json:"owner_type"`
	OwnerID   string         `json:"owner_id"`
	FieldID   string         `json:"field_id"`
	Payload   map[string]any `json:"payload"`
}

// Scope returns the scope the request addresses.
func (r Request) Scope() model.Scope {
	return model.Scope{
		Owner:   model.Owner{Type: r.OwnerType, ID: r.OwnerID},
		FieldID: r.FieldID,
	}
}

// ItemsResult is the body of index and order responses.
type ItemsResult struct {
	Items []model.ListItem `json:"items"`
}

// TreeResult is the body of a tree response.
type TreeResult struct {
	Tree []tree.Node `json:"tree"`
}

// ItemResult is the body of create, store and update responses.
type ItemResult struct {
	Item *model.ListItem `json:"item"`
}

// DeletedResult lists the ids removed by destroy.
type DeletedResult struct {
	Deleted []int64 `json:"deleted"`
}

// Service serves list operations.
type Service struct {
	engine *lists.Engine
	logger *slog.Logger
}

// New creates a service. A nil logger uses slog.Default().
func New(engine *lists.Engine, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{engine: engine, logger: logger}
}

// Handle runs one request and returns the status code and body to send.
// requestID may be empty, in which case one is generated.
func (s *Service) Handle(ctx context.Context, requestID string, req Request) (int, any) {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	logger := s.logger.With("request_id", requestID, "op", req.Op, "scope", req.Scope().String())

	result, err := s.dispatch(ctx, req)
	if err != nil {
		status := StatusOf(err)
		if status >= http.StatusInternalServerError {
			logger.Error("request failed", "status", status, "error", err)
		} else {
			logger.Info("request rejected", "status", status, "error", err)
		}
		return status, ErrorBodyOf(err)
	}

	status := http.StatusOK
	if req.Op == OpStore {
		status = http.StatusCreated
	}
	logger.Debug("request handled", "status", status)
	return status, result
}

func (s *Service) dispatch(ctx context.Context, req Request) (any, error) {
	if req.OwnerType == "" || req.OwnerID == "" || req.FieldID == "" {
		return nil, fmt.Errorf("%w: owner_type, owner_id and field_id are required", ErrBadRequest)
	}
	scope := req.Scope()
	payload := req.Payload
	if payload == nil {
		payload = map[string]any{}
	}

	switch req.Op {
	case OpIndex:
		items, err := s.engine.Index(ctx, scope)
		if err != nil {
			return nil, err
		}
		return ItemsResult{Items: nonNil(items)}, nil

	case OpTree:
		idx, err := s.engine.Tree(ctx, scope)
		if err != nil {
			return nil, err
		}
		return TreeResult{Tree: idx.Nested()}, nil

	case OpCreate, OpStore:
		parent, err := parentParam(payload)
		if err != nil {
			return nil, err
		}
		variant, err := formTypeParam(payload)
		if err != nil {
			return nil, err
		}
		var item *model.ListItem
		if req.Op == OpCreate {
			item, err = s.engine.Create(ctx, scope, parent, variant)
		} else {
			item, err = s.engine.Store(ctx, scope, parent, variant, attributes(payload))
		}
		if err != nil {
			return nil, err
		}
		return ItemResult{Item: item}, nil

	case OpUpdate:
		id, err := itemIDParam(payload)
		if err != nil {
			return nil, err
		}
		item, err := s.engine.Update(ctx, scope, id, payload)
		if err != nil {
			return nil, err
		}
		return ItemResult{Item: item}, nil

	case OpDestroy:
		id, err := itemIDParam(payload)
		if err != nil {
			return nil, err
		}
		deleted, err := s.engine.Destroy(ctx, scope, id)
		if err != nil {
			return nil, err
		}
		return DeletedResult{Deleted: deleted}, nil

	case OpOrder:
		batch, err := lists.ParseBatch(payload["items"])
		if err != nil {
			return nil, err
		}
		items, err := s.engine.Order(ctx, scope, batch)
		if err != nil {
			return nil, err
		}
		return ItemsResult{Items: nonNil(items)}, nil
	}

	return nil, fmt.Errorf("%w: unknown operation %q", ErrBadRequest, req.Op)
}

func nonNil(items []model.ListItem) []model.ListItem {
	if items == nil {
		return []model.ListItem{}
	}
	return items
}

// attributes returns payload without the placement keys Store reads itself.
func attributes(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		if k == "parent_id" || k == "form_type" {
			continue
		}
		out[k] = v
	}
	return out
}

// parentParam reads parent_id. Absent, null and 0 all mean the root.
func parentParam(payload map[string]any) (model.ParentRef, error) {
	raw, ok := payload["parent_id"]
	if !ok || raw == nil {
		return model.Root(), nil
	}
	id, ok := schema.AsInt(raw)
	if !ok || id < 0 {
		return model.Root(), schema.NewValidationError("parent_id", "The parent_id must be an integer.")
	}
	if id == 0 {
		return model.Root(), nil
	}
	return model.ParentOf(id), nil
}

func formTypeParam(payload map[string]any) (string, error) {
	raw, ok := payload["form_type"]
	if !ok || raw == nil {
		return model.DefaultFormVariant, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", schema.NewValidationError("form_type", "The form_type must be a string.")
	}
	if s == "" {
		return model.DefaultFormVariant, nil
	}
	return s, nil
}

func itemIDParam(payload map[string]any) (int64, error) {
	raw, ok := payload["list_item_id"]
	if !ok || raw == nil {
		return 0, schema.NewValidationError("list_item_id", "The list_item_id field is required.")
	}
	id, ok := schema.AsInt(raw)
	if !ok || id <= 0 {
		return 0, schema.NewValidationError("list_item_id", "The list_item_id must be an integer.")
	}
	return id, nil
}
