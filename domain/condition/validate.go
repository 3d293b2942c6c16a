package condition

import (
	"math"

	"github.com/artpar/cmscore/domain/field"
	"github.com/artpar/cmscore/domain/item"
	"github.com/artpar/cmscore/domain/schema"
)

// Resolver resolves FIELD and META_FIELD selectors.
type Resolver interface {
	ResolveField(id string) (schema.Field, bool)
	ResolveMetaField(id string) (schema.Field, bool)
}

// Schemas resolves selectors against a model's schema and optional
// metadata schema.
type Schemas struct {
	Schema schema.Schema
	Meta   *schema.Schema
}

func (s Schemas) ResolveField(id string) (schema.Field, bool) {
	return s.Schema.Field(id)
}

func (s Schemas) ResolveMetaField(id string) (schema.Field, bool) {
	if s.Meta == nil {
		return schema.Field{}, false
	}
	return s.Meta.Field(id)
}

// Target is what a selector resolved to.
type Target struct {
	Selector FieldSelector
	Field    *schema.Field // nil for fixed attributes
}

// Kind returns the field kind of the target, with fixed attributes mapped
// to the kind holding the same shape: dates to Date, and ID, STATUS and
// users to Text.
func (t Target) Kind() field.Kind {
	if t.Field != nil {
		return t.Field.Kind()
	}
	if t.Selector.Type.IsDate() {
		return field.KindDate
	}
	return field.KindText
}

// Resolve resolves a selector.
func Resolve(sel FieldSelector, r Resolver) (Target, error) {
	if err := sel.Check(); err != nil {
		return Target{}, err
	}
	var (
		f  schema.Field
		ok bool
	)
	switch sel.Type {
	case SelectorField:
		f, ok = r.ResolveField(sel.ID)
	case SelectorMetaField:
		f, ok = r.ResolveMetaField(sel.ID)
	default:
		return Target{Selector: sel}, nil
	}
	if !ok {
		return Target{}, ErrUnknownField
	}
	return Target{Selector: sel, Field: &f}, nil
}

// Validate checks every node of c against the resolver: each selector must
// resolve, each leaf kind must be compatible with its target, and each
// operator and value must be valid for the leaf. The first failure is
// returned as a *MalformedError.
func Validate(c Condition, r Resolver) error {
	if c == nil {
		return malformed("", ErrMalformed, "condition is nil")
	}
	return Walk(c, func(path string, n Condition) error {
		switch n.(type) {
		case And, Or:
			for i, child := range Children(n) {
				if child == nil {
					return malformed(index(path, i), ErrMalformed, "condition is nil")
				}
			}
			return nil
		}
		sel, _ := Selector(n)
		t, err := Resolve(sel, r)
		if err != nil {
			if err == ErrUnknownField {
				return malformed(path, ErrUnknownField, "%s does not resolve to a field", sel)
			}
			return malformed(path, ErrBadSelector, "%v", err)
		}
		return checkLeaf(path, n, t)
	})
}

func checkLeaf(path string, n Condition, t Target) error {
	if t.Field != nil && t.Field.Kind() == field.KindGroup {
		return malformed(path, ErrIncompatible, "group field %s cannot be filtered", t.Selector)
	}
	incompatible := func() error {
		return malformed(path, ErrIncompatible, "%s condition cannot target %s (%s)", Kind(n), t.Selector, t.Kind())
	}

	switch c := n.(type) {
	case Basic:
		if !c.Operator.IsValid() {
			return badOperator(path, c.Operator)
		}
		if t.Field != nil && t.Field.Kind().IsGeometry() {
			return incompatible()
		}
		return checkScalar(path, t, c.Value)
	case Bool:
		if !c.Operator.IsValid() {
			return badOperator(path, c.Operator)
		}
		if t.Field == nil || !t.Field.Kind().IsBoolean() {
			return incompatible()
		}
	case String:
		if !c.Operator.IsValid() {
			return badOperator(path, c.Operator)
		}
		if t.Field == nil {
			return incompatible()
		}
		k := t.Field.Kind()
		if !k.IsTextual() && k != field.KindURL && k != field.KindSelect {
			return incompatible()
		}
	case Number:
		if !c.Operator.IsValid() {
			return badOperator(path, c.Operator)
		}
		if t.Field == nil || !t.Field.Kind().IsNumeric() {
			return incompatible()
		}
		if math.IsNaN(c.Value) || math.IsInf(c.Value, 0) {
			return malformed(path, ErrInvalidValue, "number value must be finite")
		}
	case Time:
		if !c.Operator.IsValid() {
			return badOperator(path, c.Operator)
		}
		if t.Kind() != field.KindDate {
			return incompatible()
		}
		if !c.Operator.IsRelative() && c.Value.IsZero() {
			return malformed(path, ErrInvalidValue, "%s needs a timestamp", c.Operator)
		}
	case Nullable:
		if !c.Operator.IsValid() {
			return badOperator(path, c.Operator)
		}
		if t.Field == nil || t.Field.Required {
			return incompatible()
		}
	case Multiple:
		if !c.Operator.IsValid() {
			return badOperator(path, c.Operator)
		}
		if t.Field == nil || !t.Field.Multiple {
			return incompatible()
		}
		switch t.Field.Kind() {
		case field.KindSelect, field.KindTag, field.KindReference:
		default:
			return incompatible()
		}
		for _, v := range c.Value {
			if err := checkScalar(path, t, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkScalar verifies that v has the shape stored for the target.
func checkScalar(path string, t Target, v any) error {
	if t.Selector.Type == SelectorStatus {
		s, ok := v.(string)
		if !ok || !item.Status(s).IsValid() {
			return malformed(path, ErrInvalidValue, "%v is not an item status", v)
		}
		return nil
	}
	if _, err := field.Normalize(t.Kind(), v); err != nil {
		return malformed(path, ErrInvalidValue, "%v", err)
	}
	return nil
}

func badOperator[O ~string](path string, op O) error {
	return malformed(path, ErrInvalidOperator, "operator %q is not valid here", string(op))
}
