package model

import (
	"encoding/json"
	"testing"
)

func TestParentRef(t *testing.T) {
	tests := []struct {
		name   string
		ref    ParentRef
		root   bool
		id     int64
		string string
	}{
		{"zero value", ParentRef{}, true, 0, "root"},
		{"root", Root(), true, 0, "root"},
		{"parent", ParentOf(7), false, 7, "7"},
		{"parent zero id", ParentOf(0), false, 0, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ref.IsRoot(); got != tt.root {
				t.Errorf("IsRoot() = %v, want %v", got, tt.root)
			}
			id, ok := tt.ref.ID()
			if ok == tt.root {
				t.Errorf("ID() ok = %v, want %v", ok, !tt.root)
			}
			if id != tt.id {
				t.Errorf("ID() = %d, want %d", id, tt.id)
			}
			if got := tt.ref.String(); got != tt.string {
				t.Errorf("String() = %q, want %q", got, tt.string)
			}
		})
	}
}

func TestParentRef_ZeroIDIsNotRoot(t *testing.T) {
	// An item with id 0 is a real parent, distinct from the root sentinel.
	if ParentOf(0) == Root() {
		t.Error("ParentOf(0) must not equal Root()")
	}
}

func TestListItem_InScope(t *testing.T) {
	item := &ListItem{OwnerType: "page", OwnerID: "1", FieldID: "sections"}
	scope := Scope{Owner: Owner{Type: "page", ID: "1"}, FieldID: "sections"}

	if !item.InScope(scope) {
		t.Error("expected item to be in its own scope")
	}
	if item.Scope() != scope {
		t.Errorf("Scope() = %v, want %v", item.Scope(), scope)
	}

	other := scope
	other.FieldID = "links"
	if item.InScope(other) {
		t.Error("expected item not to be in another field's scope")
	}

	other = scope
	other.Owner.ID = "2"
	if item.InScope(other) {
		t.Error("expected item not to be in another owner's scope")
	}
}

func TestValue_Clone(t *testing.T) {
	v := Value{"title": "a"}
	c := v.Clone()
	c["title"] = "b"
	if v["title"] != "a" {
		t.Errorf("clone mutated original: %v", v)
	}
}

func TestScope_String(t *testing.T) {
	s := Scope{Owner: Owner{Type: "page", ID: "42"}, FieldID: "sections"}
	if got := s.String(); got != "page#42#sections" {
		t.Errorf("String() = %q", got)
	}
}

func TestParentRef_JSON(t *testing.T) {
	tests := []struct {
		in   string
		want ParentRef
	}{
		{"null", Root()},
		{"0", Root()},
		{"12", ParentOf(12)},
	}
	for _, tt := range tests {
		var got ParentRef
		if err := json.Unmarshal([]byte(tt.in), &got); err != nil {
			t.Fatalf("unmarshal %s: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("unmarshal %s = %v, want %v", tt.in, got, tt.want)
		}
	}

	var bad ParentRef
	if err := json.Unmarshal([]byte(`"x"`), &bad); err == nil {
		t.Error("expected error for non-numeric parent")
	}

	b, _ := json.Marshal(ListItem{ID: 3, Parent: ParentOf(1)})
	var decoded map[string]any
	_ = json.Unmarshal(b, &decoded)
	if decoded["parent_id"] != float64(1) {
		t.Errorf("parent_id = %v, want 1", decoded["parent_id"])
	}

	b, _ = json.Marshal(ListItem{ID: 4})
	decoded = nil
	_ = json.Unmarshal(b, &decoded)
	if decoded["parent_id"] != nil {
		t.Errorf("root parent_id = %v, want null", decoded["parent_id"])
	}
}

func TestScopeKey(t *testing.T) {
	a := Scope{Owner: Owner{Type: "a#b", ID: "c"}, FieldID: "menu"}
	b := Scope{Owner: Owner{Type: "a", ID: "b#c"}, FieldID: "menu"}
	c := Scope{Owner: Owner{Type: "a/b", ID: "c"}, FieldID: "menu"}
	d := Scope{Owner: Owner{Type: "a", ID: "b/c"}, FieldID: "menu"}

	seen := map[string]Scope{}
	for _, s := range []Scope{a, b, c, d} {
		if other, dup := seen[s.Key()]; dup {
			t.Errorf("%+v and %+v share key %q", s, other, s.Key())
		}
		seen[s.Key()] = s
	}
	if got := (Scope{Owner: Owner{Type: "page", ID: "1"}, FieldID: "menu"}).Key(); got != "page/1/menu" {
		t.Errorf("Key() = %q, want page/1/menu", got)
	}
}
