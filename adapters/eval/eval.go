// Package eval evaluates condition trees and sorts against item snapshots.
// Storage adapters share it so that every backend filters the same way.
package eval

import (
	"reflect"
	"strings"
	"time"

	"github.com/artpar/cmscore/domain/condition"
	"github.com/artpar/cmscore/domain/item"
	"github.com/artpar/cmscore/domain/view"
)

// Subject is what a condition is evaluated against: an item snapshot and
// its metadata item, if any.
type Subject struct {
	Item     item.Item
	Metadata *item.Item
}

// Values returns the values addressed by a selector. ok is false when the
// target holds no value.
func (s Subject) Values(sel condition.FieldSelector) ([]any, bool) {
	switch sel.Type {
	case condition.SelectorField:
		v, ok := s.Item.Value(sel.ID)
		return v.Items, ok
	case condition.SelectorMetaField:
		if s.Metadata == nil {
			return nil, false
		}
		v, ok := s.Metadata.Value(sel.ID)
		return v.Items, ok
	case condition.SelectorID:
		return []any{s.Item.ID}, true
	case condition.SelectorStatus:
		return []any{string(s.Item.Status)}, true
	case condition.SelectorCreationDate:
		return []any{s.Item.CreatedAt}, true
	case condition.SelectorModificationDate:
		return []any{s.Item.UpdatedAt}, true
	case condition.SelectorCreationUser:
		return optional(s.Item.CreatedBy)
	case condition.SelectorModificationUser:
		return optional(s.Item.UpdatedBy)
	}
	return nil, false
}

func optional(s string) ([]any, bool) {
	if s == "" {
		return nil, false
	}
	return []any{s}, true
}

// Match reports whether the subject satisfies c. A nil condition matches.
// Relative time operators are evaluated against now in UTC. Leaves on
// multiple-valued targets match when any value matches.
func Match(c condition.Condition, s Subject, now time.Time) bool {
	switch n := c.(type) {
	case nil:
		return true
	case condition.And:
		for _, child := range n.Conditions {
			if !Match(child, s, now) {
				return false
			}
		}
		return true
	case condition.Or:
		for _, child := range n.Conditions {
			if Match(child, s, now) {
				return true
			}
		}
		return false
	case condition.Basic:
		vals, _ := s.Values(n.Field)
		eq := anyOf(vals, func(v any) bool { return Equal(v, n.Value) })
		return eq == (n.Operator == condition.BasicEquals)
	case condition.Bool:
		vals, _ := s.Values(n.Field)
		eq := anyOf(vals, func(v any) bool {
			b, ok := v.(bool)
			return ok && b == n.Value
		})
		return eq == (n.Operator == condition.BoolEquals)
	case condition.String:
		vals, _ := s.Values(n.Field)
		return matchString(n, vals)
	case condition.Number:
		vals, _ := s.Values(n.Field)
		return anyOf(vals, func(v any) bool {
			f, ok := toFloat(v)
			if !ok {
				return false
			}
			switch n.Operator {
			case condition.NumberGreaterThan:
				return f > n.Value
			case condition.NumberGreaterThanOrEqualTo:
				return f >= n.Value
			case condition.NumberLessThan:
				return f < n.Value
			case condition.NumberLessThanOrEqualTo:
				return f <= n.Value
			}
			return false
		})
	case condition.Time:
		vals, _ := s.Values(n.Field)
		return anyOf(vals, func(v any) bool {
			t, ok := v.(time.Time)
			return ok && matchTime(n, t, now)
		})
	case condition.Nullable:
		vals, ok := s.Values(n.Field)
		empty := !ok || isEmpty(vals)
		return empty == (n.Operator == condition.NullableEmpty)
	case condition.Multiple:
		vals, _ := s.Values(n.Field)
		return matchMultiple(n, vals)
	}
	return false
}

func anyOf(vals []any, fn func(any) bool) bool {
	for _, v := range vals {
		if fn(v) {
			return true
		}
	}
	return false
}

func isEmpty(vals []any) bool {
	for _, v := range vals {
		if s, ok := v.(string); !ok || s != "" {
			return false
		}
	}
	return true
}

func matchString(n condition.String, vals []any) bool {
	var (
		test   func(string, string) bool
		negate bool
	)
	switch n.Operator {
	case condition.StringContains:
		test = strings.Contains
	case condition.StringNotContains:
		test, negate = strings.Contains, true
	case condition.StringStartsWith:
		test = strings.HasPrefix
	case condition.StringNotStartsWith:
		test, negate = strings.HasPrefix, true
	case condition.StringEndsWith:
		test = strings.HasSuffix
	case condition.StringNotEndsWith:
		test, negate = strings.HasSuffix, true
	default:
		return false
	}
	hit := anyOf(vals, func(v any) bool {
		s, ok := v.(string)
		return ok && test(s, n.Value)
	})
	return hit != negate
}

func matchTime(n condition.Time, t, now time.Time) bool {
	t, now = t.UTC(), now.UTC()
	switch n.Operator {
	case condition.TimeBefore:
		return t.Before(n.Value)
	case condition.TimeBeforeOrOn:
		return !t.After(n.Value)
	case condition.TimeAfter:
		return t.After(n.Value)
	case condition.TimeAfterOrOn:
		return !t.Before(n.Value)
	case condition.TimeOfThisWeek:
		ty, tw := t.ISOWeek()
		ny, nw := now.ISOWeek()
		return ty == ny && tw == nw
	case condition.TimeOfThisMonth:
		return t.Year() == now.Year() && t.Month() == now.Month()
	case condition.TimeOfThisYear:
		return t.Year() == now.Year()
	}
	return false
}

func matchMultiple(n condition.Multiple, vals []any) bool {
	has := func(want any) bool {
		return anyOf(vals, func(v any) bool { return Equal(v, want) })
	}
	switch n.Operator {
	case condition.MultipleIncludesAny, condition.MultipleNotIncludesAny:
		hit := anyOf(n.Value, has)
		return hit == (n.Operator == condition.MultipleIncludesAny)
	case condition.MultipleIncludesAll, condition.MultipleNotIncludesAll:
		all := true
		for _, want := range n.Value {
			if !has(want) {
				all = false
				break
			}
		}
		return all == (n.Operator == condition.MultipleIncludesAll)
	}
	return false
}

// Equal compares two scalars, treating numbers of any Go type by value and
// times by instant. RFC 3339 strings compare equal to the time they denote.
func Equal(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	if ta, ok := toTime(a); ok {
		if tb, ok := toTime(b); ok {
			return ta.Equal(tb)
		}
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case float64:
		return n, true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		return parsed, err == nil
	}
	return time.Time{}, false
}

// Less orders two subjects by a sort. Subjects without a value sort last
// regardless of direction; ties are broken by item id.
func Less(sort view.Sort, a, b Subject) bool {
	av, aok := first(a, sort.Field)
	bv, bok := first(b, sort.Field)
	switch {
	case !aok && !bok:
		return a.Item.ID < b.Item.ID
	case !aok:
		return false
	case !bok:
		return true
	}
	c := compare(av, bv)
	if c == 0 {
		return a.Item.ID < b.Item.ID
	}
	if sort.Direction == view.Desc {
		return c > 0
	}
	return c < 0
}

func first(s Subject, sel condition.FieldSelector) (any, bool) {
	vals, ok := s.Values(sel)
	if !ok || len(vals) == 0 {
		return nil, false
	}
	return vals[0], true
}

func compare(a, b any) int {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	switch x := a.(type) {
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			}
			return 1
		}
	}
	return 0
}
