package types

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ValueKind tags the variants of the Value union.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindBool
	KindNumber
	KindString
	KindTemporal
	KindList
	KindMap
	KindNodeRef
	KindEdgeRef
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindTemporal:
		return "temporal"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindNodeRef:
		return "node"
	case KindEdgeRef:
		return "edge"
	}
	return "unknown"
}

// Value is a tagged union over the property value types of the graph model.
// The zero value is Null.
type Value struct {
	Kind     ValueKind
	Bool     bool
	Number   float64
	Str      string
	Temporal time.Time
	List     []Value
	Map      map[string]Value
	Ref      string // node or edge id for KindNodeRef / KindEdgeRef
}

// Null returns the null value.
func Null() Value { return Value{Kind: KindNull} }

// NewBool wraps a bool.
func NewBool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// NewNumber wraps a float64.
func NewNumber(n float64) Value { return Value{Kind: KindNumber, Number: n} }

// NewString wraps a string.
func NewString(s string) Value { return Value{Kind: KindString, Str: s} }

// NewTemporal wraps a timestamp.
func NewTemporal(t time.Time) Value { return Value{Kind: KindTemporal, Temporal: t.UTC()} }

// NewList wraps a list of values.
func NewList(vs ...Value) Value { return Value{Kind: KindList, List: vs} }

// NewMap wraps a map of values.
func NewMap(m map[string]Value) Value { return Value{Kind: KindMap, Map: m} }

// NewNodeRef references a node by id.
func NewNodeRef(id string) Value { return Value{Kind: KindNodeRef, Ref: id} }

// NewEdgeRef references an edge by id.
func NewEdgeRef(id string) Value { return Value{Kind: KindEdgeRef, Ref: id} }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// Truthy reports whether the value counts as true in a predicate position.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindNumber:
		return v.Number != 0
	case KindString:
		return v.Str != ""
	case KindNull:
		return false
	}
	return true
}

// Equal reports deep structural equality.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindBool:
		return v.Bool == o.Bool
	case KindNumber:
		return v.Number == o.Number
	case KindString:
		return v.Str == o.Str
	case KindTemporal:
		return v.Temporal.Equal(o.Temporal)
	case KindList:
		if len(v.List) != len(o.List) {
			return false
		}
		for i := range v.List {
			if !v.List[i].Equal(o.List[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.Map) != len(o.Map) {
			return false
		}
		for k, mv := range v.Map {
			ov, ok := o.Map[k]
			if !ok || !mv.Equal(ov) {
				return false
			}
		}
		return true
	case KindNodeRef, KindEdgeRef:
		return v.Ref == o.Ref
	}
	return false
}

// Compare orders two values. Null sorts last; mismatched kinds order by kind.
// Returns -1, 0, or 1.
func (v Value) Compare(o Value) int {
	if v.Kind == KindNull && o.Kind == KindNull {
		return 0
	}
	if v.Kind == KindNull {
		return 1
	}
	if o.Kind == KindNull {
		return -1
	}
	if v.Kind != o.Kind {
		if v.Kind < o.Kind {
			return -1
		}
		return 1
	}
	switch v.Kind {
	case KindBool:
		if v.Bool == o.Bool {
			return 0
		}
		if !v.Bool {
			return -1
		}
		return 1
	case KindNumber:
		switch {
		case v.Number < o.Number:
			return -1
		case v.Number > o.Number:
			return 1
		}
		return 0
	case KindString:
		return strings.Compare(v.Str, o.Str)
	case KindTemporal:
		switch {
		case v.Temporal.Before(o.Temporal):
			return -1
		case v.Temporal.After(o.Temporal):
			return 1
		}
		return 0
	}
	return 0
}

// Clone returns a deep copy of the value.
func (v Value) Clone() Value {
	out := v
	if v.List != nil {
		out.List = make([]Value, len(v.List))
		for i, e := range v.List {
			out.List[i] = e.Clone()
		}
	}
	if v.Map != nil {
		out.Map = make(map[string]Value, len(v.Map))
		for k, e := range v.Map {
			out.Map[k] = e.Clone()
		}
	}
	return out
}

func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%t", v.Bool)
	case KindNumber:
		if v.Number == float64(int64(v.Number)) {
			return fmt.Sprintf("%d", int64(v.Number))
		}
		return fmt.Sprintf("%g", v.Number)
	case KindString:
		return v.Str
	case KindTemporal:
		return v.Temporal.Format(time.RFC3339)
	case KindList:
		parts := make([]string, len(v.List))
		for i, e := range v.List {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap:
		keys := make([]string, 0, len(v.Map))
		for k := range v.Map {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + v.Map[k].String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KindNodeRef:
		return "node(" + v.Ref + ")"
	case KindEdgeRef:
		return "edge(" + v.Ref + ")"
	}
	return ""
}

// valueJSON is the wire shape for Value serialization. Kind discriminates
// which payload field is meaningful.
type valueJSON struct {
	Kind     string           `json:"kind"`
	Bool     *bool            `json:"bool,omitempty"`
	Number   *float64         `json:"number,omitempty"`
	Str      *string          `json:"string,omitempty"`
	Temporal *string          `json:"temporal,omitempty"`
	List     []Value          `json:"list,omitempty"`
	Map      map[string]Value `json:"map,omitempty"`
	Ref      *string          `json:"ref,omitempty"`
}

// MarshalJSON implements json.Marshaler with a deterministic encoding:
// map keys are sorted by encoding/json, temporals normalize to UTC RFC 3339.
func (v Value) MarshalJSON() ([]byte, error) {
	out := valueJSON{Kind: v.Kind.String()}
	switch v.Kind {
	case KindBool:
		out.Bool = &v.Bool
	case KindNumber:
		out.Number = &v.Number
	case KindString:
		out.Str = &v.Str
	case KindTemporal:
		s := v.Temporal.UTC().Format(time.RFC3339Nano)
		out.Temporal = &s
	case KindList:
		out.List = v.List
		if out.List == nil {
			out.List = []Value{}
		}
	case KindMap:
		out.Map = v.Map
		if out.Map == nil {
			out.Map = map[string]Value{}
		}
	case KindNodeRef, KindEdgeRef:
		out.Ref = &v.Ref
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var in valueJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch in.Kind {
	case "null":
		*v = Null()
	case "bool":
		if in.Bool == nil {
			return fmt.Errorf("bool value missing payload")
		}
		*v = NewBool(*in.Bool)
	case "number":
		if in.Number == nil {
			return fmt.Errorf("number value missing payload")
		}
		*v = NewNumber(*in.Number)
	case "string":
		if in.Str == nil {
			return fmt.Errorf("string value missing payload")
		}
		*v = NewString(*in.Str)
	case "temporal":
		if in.Temporal == nil {
			return fmt.Errorf("temporal value missing payload")
		}
		t, err := time.Parse(time.RFC3339Nano, *in.Temporal)
		if err != nil {
			return fmt.Errorf("invalid temporal value %q: %w", *in.Temporal, err)
		}
		*v = NewTemporal(t)
	case "list":
		*v = Value{Kind: KindList, List: in.List}
	case "map":
		*v = Value{Kind: KindMap, Map: in.Map}
	case "node":
		if in.Ref == nil {
			return fmt.Errorf("node ref missing payload")
		}
		*v = NewNodeRef(*in.Ref)
	case "edge":
		if in.Ref == nil {
			return fmt.Errorf("edge ref missing payload")
		}
		*v = NewEdgeRef(*in.Ref)
	default:
		return fmt.Errorf("unknown value kind %q", in.Kind)
	}
	return nil
}
