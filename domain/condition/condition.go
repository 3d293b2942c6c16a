// Package condition implements the filter algebra used by views: a tree of
// And/Or combinators over seven kinds of typed leaves, each targeting a
// FieldSelector.
//
// An empty And is always true and an empty Or is always false.
package condition

import "time"

// Condition is a node of a filter tree. The set of node types is closed.
type Condition interface {
	Accept(v Visitor) error
	condition()
}

// Visitor receives one call per node type.
type Visitor interface {
	VisitAnd(And) error
	VisitOr(Or) error
	VisitBasic(Basic) error
	VisitBool(Bool) error
	VisitString(String) error
	VisitNumber(Number) error
	VisitTime(Time) error
	VisitNullable(Nullable) error
	VisitMultiple(Multiple) error
}

type And struct {
	Conditions []Condition
}

type Or struct {
	Conditions []Condition
}

// Basic compares a target for equality with an arbitrary value.
type Basic struct {
	Field    FieldSelector
	Operator BasicOperator
	Value    any
}

type Bool struct {
	Field    FieldSelector
	Operator BoolOperator
	Value    bool
}

type String struct {
	Field    FieldSelector
	Operator StringOperator
	Value    string
}

type Number struct {
	Field    FieldSelector
	Operator NumberOperator
	Value    float64
}

// Time compares a timestamp target. Relative operators ignore Value.
type Time struct {
	Field    FieldSelector
	Operator TimeOperator
	Value    time.Time
}

type Nullable struct {
	Field    FieldSelector
	Operator NullableOperator
}

type Multiple struct {
	Field    FieldSelector
	Operator MultipleOperator
	Value    []any
}

func (c And) Accept(v Visitor) error      { return v.VisitAnd(c) }
func (c Or) Accept(v Visitor) error       { return v.VisitOr(c) }
func (c Basic) Accept(v Visitor) error    { return v.VisitBasic(c) }
func (c Bool) Accept(v Visitor) error     { return v.VisitBool(c) }
func (c String) Accept(v Visitor) error   { return v.VisitString(c) }
func (c Number) Accept(v Visitor) error   { return v.VisitNumber(c) }
func (c Time) Accept(v Visitor) error     { return v.VisitTime(c) }
func (c Nullable) Accept(v Visitor) error { return v.VisitNullable(c) }
func (c Multiple) Accept(v Visitor) error { return v.VisitMultiple(c) }

func (And) condition()      {}
func (Or) condition()       {}
func (Basic) condition()    {}
func (Bool) condition()     {}
func (String) condition()   {}
func (Number) condition()   {}
func (Time) condition()     {}
func (Nullable) condition() {}
func (Multiple) condition() {}

// Kind returns the envelope name of a node: "and", "or", "basic", ...
func Kind(c Condition) string {
	switch c.(type) {
	case And:
		return "and"
	case Or:
		return "or"
	case Basic:
		return "basic"
	case Bool:
		return "bool"
	case String:
		return "string"
	case Number:
		return "number"
	case Time:
		return "time"
	case Nullable:
		return "nullable"
	case Multiple:
		return "multiple"
	}
	return ""
}

// Selector returns the target of a leaf. ok is false for combinators.
func Selector(c Condition) (FieldSelector, bool) {
	switch n := c.(type) {
	case Basic:
		return n.Field, true
	case Bool:
		return n.Field, true
	case String:
		return n.Field, true
	case Number:
		return n.Field, true
	case Time:
		return n.Field, true
	case Nullable:
		return n.Field, true
	case Multiple:
		return n.Field, true
	}
	return FieldSelector{}, false
}

// Children returns the operands of a combinator.
func Children(c Condition) []Condition {
	switch n := c.(type) {
	case And:
		return n.Conditions
	case Or:
		return n.Conditions
	}
	return nil
}

// Selectors returns the selectors of every leaf in depth-first order.
func Selectors(c Condition) []FieldSelector {
	var out []FieldSelector
	_ = Walk(c, func(_ string, n Condition) error {
		if s, ok := Selector(n); ok {
			out = append(out, s)
		}
		return nil
	})
	return out
}

// Walk calls fn for c and every descendant in depth-first order, passing
// each node's path. Walking stops at the first error.
func Walk(c Condition, fn func(path string, c Condition) error) error {
	return walk("", c, fn)
}

func walk(parent string, c Condition, fn func(string, Condition) error) error {
	p := join(parent, Kind(c))
	if err := fn(p, c); err != nil {
		return err
	}
	for i, child := range Children(c) {
		if err := walk(index(p, i), child, fn); err != nil {
			return err
		}
	}
	return nil
}
