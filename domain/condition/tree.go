package condition

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// ToTree converts a condition into a generic tree of maps, lists and
// scalars suitable for any self-describing wire format:
//
//	{"and": [ ... ]}
//	{"string": {"fieldId": {"type": "FIELD", "id": "f1"}, "operator": "CONTAINS", "value": "foo"}}
//
// Times are written as RFC 3339 strings. Nullable leaves carry no value.
// FromTree(ToTree(c)) is deep-equal to Canonical(c).
func ToTree(c Condition) map[string]any {
	switch n := c.(type) {
	case And:
		return map[string]any{"and": childTrees(n.Conditions)}
	case Or:
		return map[string]any{"or": childTrees(n.Conditions)}
	case Basic:
		return leafTree("basic", n.Field, string(n.Operator), n.Value, true)
	case Bool:
		return leafTree("bool", n.Field, string(n.Operator), n.Value, true)
	case String:
		return leafTree("string", n.Field, string(n.Operator), n.Value, true)
	case Number:
		return leafTree("number", n.Field, string(n.Operator), n.Value, true)
	case Time:
		return leafTree("time", n.Field, string(n.Operator), n.Value.UTC().Format(time.RFC3339Nano), true)
	case Nullable:
		return leafTree("nullable", n.Field, string(n.Operator), nil, false)
	case Multiple:
		vals := n.Value
		if vals == nil {
			vals = []any{}
		}
		return leafTree("multiple", n.Field, string(n.Operator), vals, true)
	}
	return nil
}

func childTrees(cs []Condition) []any {
	out := make([]any, len(cs))
	for i, c := range cs {
		out[i] = ToTree(c)
	}
	return out
}

func leafTree(kind string, sel FieldSelector, op string, v any, withValue bool) map[string]any {
	fid := map[string]any{"type": string(sel.Type)}
	if sel.ID != "" {
		fid["id"] = sel.ID
	}
	leaf := map[string]any{"fieldId": fid, "operator": op}
	if withValue {
		leaf["value"] = v
	}
	return map[string]any{kind: leaf}
}

// FromTree rebuilds a condition from a tree produced by ToTree, after it
// went through a wire format. Each node must have exactly one member.
func FromTree(tree any) (Condition, error) {
	return fromTree("", tree)
}

func fromTree(parent string, tree any) (Condition, error) {
	m, ok := asMap(tree)
	if !ok {
		return nil, malformed(parent, ErrMalformed, "node must be an object, got %T", tree)
	}
	if len(m) != 1 {
		return nil, malformed(parent, ErrMalformed, "node must have exactly one member, got %d", len(m))
	}
	var (
		kind string
		body any
	)
	for k, v := range m {
		kind, body = k, v
	}
	path := join(parent, kind)

	switch kind {
	case "and", "or":
		list, ok := body.([]any)
		if !ok {
			return nil, malformed(path, ErrMalformed, "%s needs a list", kind)
		}
		var children []Condition
		for i, child := range list {
			c, err := fromTree(index(path, i), child)
			if err != nil {
				return nil, err
			}
			children = append(children, c)
		}
		if kind == "and" {
			return And{Conditions: children}, nil
		}
		return Or{Conditions: children}, nil
	}

	leaf, ok := asMap(body)
	if !ok {
		return nil, malformed(path, ErrMalformed, "leaf must be an object")
	}
	sel, err := selectorFrom(leaf["fieldId"])
	if err != nil {
		return nil, malformed(path, ErrBadSelector, "%v", err)
	}
	op, _ := leaf["operator"].(string)
	raw, hasValue := leaf["value"]

	switch kind {
	case "basic":
		return Basic{Field: sel, Operator: BasicOperator(op), Value: scalar(raw)}, nil
	case "bool":
		b, ok := raw.(bool)
		if !ok {
			return nil, malformed(path, ErrInvalidValue, "bool value is %T", raw)
		}
		return Bool{Field: sel, Operator: BoolOperator(op), Value: b}, nil
	case "string":
		s, ok := raw.(string)
		if !ok {
			return nil, malformed(path, ErrInvalidValue, "string value is %T", raw)
		}
		return String{Field: sel, Operator: StringOperator(op), Value: s}, nil
	case "number":
		f, ok := number(raw)
		if !ok {
			return nil, malformed(path, ErrInvalidValue, "number value is %T", raw)
		}
		return Number{Field: sel, Operator: NumberOperator(op), Value: f}, nil
	case "time":
		t, err := timestamp(raw, hasValue)
		if err != nil {
			return nil, malformed(path, ErrInvalidValue, "%v", err)
		}
		return Time{Field: sel, Operator: TimeOperator(op), Value: t}, nil
	case "nullable":
		return Nullable{Field: sel, Operator: NullableOperator(op)}, nil
	case "multiple":
		list, ok := raw.([]any)
		if !ok && raw != nil {
			return nil, malformed(path, ErrInvalidValue, "multiple value must be a list")
		}
		var vals []any
		for _, v := range list {
			vals = append(vals, scalar(v))
		}
		return Multiple{Field: sel, Operator: MultipleOperator(op), Value: vals}, nil
	}
	return nil, malformed(path, ErrMalformed, "unknown condition kind %q", kind)
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = val
		}
		return out, true
	}
	return nil, false
}

func selectorFrom(v any) (FieldSelector, error) {
	m, ok := asMap(v)
	if !ok {
		return FieldSelector{}, fmt.Errorf("fieldId must be an object")
	}
	t, _ := m["type"].(string)
	id, _ := m["id"].(string)
	sel := FieldSelector{Type: SelectorType(t), ID: id}
	return sel, sel.Check()
}

// Canonical returns c in the form FromTree produces: empty child and value
// lists are nil, whole numbers in Basic and Multiple values are int64 and
// other numbers float64, and times are UTC.
func Canonical(c Condition) Condition {
	switch n := c.(type) {
	case And:
		return And{Conditions: canonicalChildren(n.Conditions)}
	case Or:
		return Or{Conditions: canonicalChildren(n.Conditions)}
	case Basic:
		n.Value = scalar(n.Value)
		return n
	case Time:
		n.Value = n.Value.Round(0).UTC()
		return n
	case Multiple:
		var vals []any
		for _, v := range n.Value {
			vals = append(vals, scalar(v))
		}
		n.Value = vals
		return n
	}
	return c
}

func canonicalChildren(cs []Condition) []Condition {
	var out []Condition
	for _, c := range cs {
		out = append(out, Canonical(c))
	}
	return out
}

// scalar canonicalizes numbers: whole numbers within the int64 range become
// int64 and everything else float64. JSON and CBOR decode to the same value.
func scalar(v any) any {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return scalar(f)
		}
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case uint:
		return scalar(uint64(n))
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	case uint64:
		if n <= math.MaxInt64 {
			return int64(n)
		}
		return float64(n)
	case float32:
		return scalar(float64(n))
	case float64:
		if n == math.Trunc(n) && n >= math.MinInt64 && n < math.MaxInt64 {
			return int64(n)
		}
		return n
	}
	return v
}

func number(v any) (float64, bool) {
	switch n := scalar(v).(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func timestamp(v any, present bool) (time.Time, error) {
	switch t := v.(type) {
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, fmt.Errorf("time value %q is not RFC 3339", t)
		}
		return parsed.UTC(), nil
	case time.Time:
		return t.UTC(), nil
	case nil:
		if !present {
			return time.Time{}, nil
		}
	}
	return time.Time{}, fmt.Errorf("time value is %T", v)
}

// MarshalJSON encodes a condition as its JSON tree.
func MarshalJSON(c Condition) ([]byte, error) {
	if c == nil {
		return []byte("null"), nil
	}
	return json.Marshal(ToTree(c))
}

// UnmarshalJSON decodes a condition written by MarshalJSON. A JSON null
// decodes to a nil condition.
func UnmarshalJSON(data []byte) (Condition, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, malformed("", ErrMalformed, "%v", err)
	}
	if tree == nil {
		return nil, nil
	}
	return FromTree(tree)
}

// JSON wraps a condition so it can be embedded in JSON documents.
type JSON struct {
	Condition Condition
}

func (j JSON) MarshalJSON() ([]byte, error) {
	return MarshalJSON(j.Condition)
}

func (j *JSON) UnmarshalJSON(data []byte) error {
	c, err := UnmarshalJSON(data)
	if err != nil {
		return err
	}
	j.Condition = c
	return nil
}
