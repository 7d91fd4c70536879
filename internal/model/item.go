package model

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// DefaultFormVariant is used when a request does not name a form_type.
const DefaultFormVariant = "show"

// Owner identifies the business record a list belongs to.
type Owner struct {
	Type string
	ID   string
}

func (o Owner) String() string {
	return o.Type + "#" + o.ID
}

// Key encodes the owner for storage keys. Each part is path-escaped, so two
// distinct owners never share a key even when their parts contain separators.
func (o Owner) Key() string {
	return url.PathEscape(o.Type) + "/" + url.PathEscape(o.ID)
}

// Scope is an owner plus the list field on it. All tree operations run inside one scope.
type Scope struct {
	Owner   Owner
	FieldID string
}

func (s Scope) String() string {
	return s.Owner.String() + "#" + s.FieldID
}

// Key encodes the scope for storage and lock keys, like Owner.Key.
func (s Scope) Key() string {
	return s.Owner.Key() + "/" + url.PathEscape(s.FieldID)
}

// ParentRef is either the root sentinel or a reference to another item.
// The zero value is the root.
type ParentRef struct {
	id    int64
	valid bool
}

// Root returns the top-level parent reference.
func Root() ParentRef {
	return ParentRef{}
}

// ParentOf references the item with the given id.
func ParentOf(id int64) ParentRef {
	return ParentRef{id: id, valid: true}
}

// IsRoot reports whether the reference points at the root.
func (p ParentRef) IsRoot() bool {
	return !p.valid
}

// ID returns the referenced item id and false for the root.
func (p ParentRef) ID() (int64, bool) {
	return p.id, p.valid
}

// Equal reports whether both references point at the same node.
func (p ParentRef) Equal(other ParentRef) bool {
	return p == other
}

func (p ParentRef) String() string {
	if !p.valid {
		return "root"
	}
	return strconv.FormatInt(p.id, 10)
}

// Value is the user-entered attribute payload of a list item.
type Value map[string]any

// Clone returns a shallow copy.
func (v Value) Clone() Value {
	out := make(Value, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// MarshalJSON encodes the root as null and a parent as its id.
func (p ParentRef) MarshalJSON() ([]byte, error) {
	if !p.valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(p.id, 10)), nil
}

// UnmarshalJSON accepts null or 0 as the root. Store-assigned ids start at 1,
// so 0 never names a real item on the wire.
func (p *ParentRef) UnmarshalJSON(data []byte) error {
	var id *int64
	if err := json.Unmarshal(data, &id); err != nil {
		return fmt.Errorf("invalid parent reference %s: %w", data, err)
	}
	if id == nil || *id == 0 {
		*p = Root()
		return nil
	}
	*p = ParentOf(*id)
	return nil
}

type ListItem struct {
	ID          int64     `json:"id"`
	OwnerType   string    `json:"model_type"`
	OwnerID     string    `json:"model_id"`
	FieldID     string    `json:"field_id"`
	FormVariant string    `json:"form_type"`
	Parent      ParentRef `json:"parent_id"`
	OrderColumn int       `json:"order_column"`
	// Depth is computed by the tree index on load; it is never persisted.
	Depth     int       `json:"depth"`
	Value     Value     `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Scope returns the scope the item belongs to.
func (i *ListItem) Scope() Scope {
	return Scope{Owner: Owner{Type: i.OwnerType, ID: i.OwnerID}, FieldID: i.FieldID}
}

// InScope reports whether the item belongs to s.
func (i *ListItem) InScope(s Scope) bool {
	return i.OwnerType == s.Owner.Type && i.OwnerID == s.Owner.ID && i.FieldID == s.FieldID
}

// Position is a new sibling position for an item, as submitted by a reorder.
// A nil Parent leaves the item's parent unchanged.
type Position struct {
	ID          int64
	OrderColumn int
	Parent      *ParentRef
}

func (p Position) String() string {
	if p.Parent == nil {
		return fmt.Sprintf("%d@%d", p.ID, p.OrderColumn)
	}
	return fmt.Sprintf("%d@%d under %s", p.ID, p.OrderColumn, p.Parent)
}
