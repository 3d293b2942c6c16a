// Package value implements the value codec: it encodes raw values against a
// schema field's kind and constraints, and decodes stored values back into
// typed Go values.
package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/artpar/cmscore/domain/field"
	"github.com/artpar/cmscore/domain/schema"
)

// Value is the stored value of one item field. Items is always in canonical
// form (see field.Normalize). A single-valued field holds at most one item;
// an empty Items means the value was explicitly cleared. A field that was
// never set has no Value at all.
type Value struct {
	Kind     field.Kind
	Multiple bool
	Items    []any
}

// IsEmpty returns true if the value holds no items.
func (v Value) IsEmpty() bool {
	return len(v.Items) == 0
}

// First returns the first item, if any.
func (v Value) First() (any, bool) {
	if len(v.Items) == 0 {
		return nil, false
	}
	return v.Items[0], true
}

// Strings returns the string items. Non-string items are skipped.
func (v Value) Strings() []string {
	out := make([]string, 0, len(v.Items))
	for _, it := range v.Items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Equal reports whether two values hold the same kind, shape and items.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind || v.Multiple != o.Multiple || len(v.Items) != len(o.Items) {
		return false
	}
	for i := range v.Items {
		a, aok := v.Items[i].(time.Time)
		b, bok := o.Items[i].(time.Time)
		if aok && bok {
			if !a.Equal(b) {
				return false
			}
			continue
		}
		if !reflect.DeepEqual(v.Items[i], o.Items[i]) {
			return false
		}
	}
	return true
}

// As returns the first item as T.
func As[T any](v Value) (T, bool) {
	var zero T
	first, ok := v.First()
	if !ok {
		return zero, false
	}
	t, ok := first.(T)
	return t, ok
}

// Encode validates raw against the field and returns its stored form.
// Multiple fields take a list; each element is validated independently.
// A nil raw value (or an empty list) clears the field, which is rejected
// for required fields.
func Encode(f schema.Field, raw any) (Value, error) {
	if f.TypeProperty == nil {
		return Value{}, (&field.ValidationError{Code: field.CodeTypeMismatch, Message: "field has no type property"}).WithField(f.Key)
	}
	kind := f.Kind()
	if !kind.HoldsValue() {
		return Value{}, (&field.ValidationError{Code: field.CodeTypeMismatch, Message: "group fields hold no value"}).WithField(f.Key)
	}

	v := Value{Kind: kind, Multiple: f.Multiple}
	var elems []any
	if f.Multiple {
		list, err := asList(raw)
		if err != nil {
			return Value{}, attribute(err, f.Key)
		}
		elems = list
	} else if raw != nil {
		if _, isList := raw.([]any); isList {
			return Value{}, (&field.ValidationError{Code: field.CodeTypeMismatch, Message: "field is not multiple"}).WithField(f.Key)
		}
		elems = []any{raw}
	}

	for _, e := range elems {
		c, err := field.Validate(f.TypeProperty, e)
		if err != nil {
			return Value{}, attribute(err, f.Key)
		}
		v.Items = append(v.Items, c)
	}
	if v.Items == nil {
		v.Items = []any{}
	}

	if f.Required && v.IsEmpty() {
		return Value{}, (&field.ValidationError{Code: field.CodeRequired, Message: "value is required"}).WithField(f.Key)
	}
	return v, nil
}

// EncodeDefault encodes the field's default value. ok is false when the
// field has no default.
func EncodeDefault(f schema.Field) (Value, bool, error) {
	if f.Default == nil || !f.Kind().HoldsValue() {
		return Value{}, false, nil
	}
	f.Required = false
	v, err := Encode(f, f.Default)
	if err != nil {
		return Value{}, false, err
	}
	return v, true, nil
}

// Validate re-checks a stored value against the field's constraints.
func Validate(f schema.Field, v Value) error {
	if v.Kind != f.Kind() {
		return (&field.ValidationError{Code: field.CodeTypeMismatch, Message: fmt.Sprintf("value kind %s does not match field kind %s", v.Kind, f.Kind())}).WithField(f.Key)
	}
	if v.Multiple != f.Multiple {
		return (&field.ValidationError{Code: field.CodeTypeMismatch, Message: "value multiplicity does not match field"}).WithField(f.Key)
	}
	raw := any(nil)
	if f.Multiple {
		raw = v.Items
	} else if len(v.Items) > 1 {
		return (&field.ValidationError{Code: field.CodeTypeMismatch, Message: "single field holds several values"}).WithField(f.Key)
	} else if len(v.Items) == 1 {
		raw = v.Items[0]
	}
	_, err := Encode(f, raw)
	return err
}

// Decode returns the typed value: a scalar for single fields (nil when
// cleared) or a []any of scalars for multiple fields.
func Decode(kind field.Kind, v Value) (any, error) {
	items := make([]any, 0, len(v.Items))
	for _, it := range v.Items {
		c, err := field.Normalize(kind, it)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	if v.Multiple {
		return items, nil
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items[0], nil
}

func asList(raw any) ([]any, error) {
	if raw == nil {
		return []any{}, nil
	}
	if list, ok := raw.([]any); ok {
		return list, nil
	}
	rv := reflect.ValueOf(raw)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, &field.ValidationError{Code: field.CodeTypeMismatch, Message: fmt.Sprintf("multiple field needs a list, got %T", raw)}
	}
	if _, isBytes := raw.([]byte); isBytes {
		return nil, &field.ValidationError{Code: field.CodeTypeMismatch, Message: "multiple field needs a list, got bytes"}
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

func attribute(err error, key string) error {
	if verr, ok := err.(*field.ValidationError); ok {
		return verr.WithField(key)
	}
	return err
}

type wireValue struct {
	Kind     field.Kind      `json:"kind"`
	Multiple bool            `json:"multiple,omitempty"`
	Value    json.RawMessage `json:"value"`
}

// MarshalJSON encodes the value as {"kind":..,"multiple":..,"value":..}.
// Single values are written as a scalar (null when cleared).
func (v Value) MarshalJSON() ([]byte, error) {
	var payload any
	if v.Multiple {
		items := v.Items
		if items == nil {
			items = []any{}
		}
		payload = items
	} else if len(v.Items) > 0 {
		payload = v.Items[0]
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireValue{Kind: v.Kind, Multiple: v.Multiple, Value: data})
}

// UnmarshalJSON decodes and canonicalizes a value written by MarshalJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if !w.Kind.IsValid() {
		return fmt.Errorf("unknown value kind %q", w.Kind)
	}

	dec := json.NewDecoder(bytes.NewReader(w.Value))
	dec.UseNumber()
	var payload any
	if len(w.Value) > 0 {
		if err := dec.Decode(&payload); err != nil {
			return err
		}
	}

	out := Value{Kind: w.Kind, Multiple: w.Multiple, Items: []any{}}
	var raw []any
	if w.Multiple {
		list, ok := payload.([]any)
		if payload != nil && !ok {
			return fmt.Errorf("multiple value is not a list")
		}
		raw = list
	} else if payload != nil {
		raw = []any{payload}
	}
	for _, it := range raw {
		c, err := field.Normalize(w.Kind, it)
		if err != nil {
			return err
		}
		out.Items = append(out.Items, c)
	}
	*v = out
	return nil
}
