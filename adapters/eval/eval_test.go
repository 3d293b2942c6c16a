package eval

import (
	"sort"
	"testing"
	"time"

	"github.com/artpar/cmscore/domain/condition"
	"github.com/artpar/cmscore/domain/field"
	"github.com/artpar/cmscore/domain/item"
	"github.com/artpar/cmscore/domain/value"
	"github.com/artpar/cmscore/domain/view"
	"github.com/artpar/cmscore/ports"
)

var now = time.Date(2024, 6, 12, 10, 0, 0, 0, time.UTC) // a Wednesday

func subject() Subject {
	it := item.Item{
		ID:        "i1",
		Status:    item.StatusPublic,
		CreatedAt: now.Add(-24 * time.Hour),
		UpdatedAt: now.Add(-40 * 24 * time.Hour),
		CreatedBy: "u1",
	}
	it = it.Set("title", "", value.Value{Kind: field.KindText, Items: []any{"Hello world"}})
	it = it.Set("count", "", value.Value{Kind: field.KindInteger, Items: []any{int64(5)}})
	it = it.Set("flag", "", value.Value{Kind: field.KindBool, Items: []any{true}})
	it = it.Set("tags", "", value.Value{Kind: field.KindTag, Multiple: true, Items: []any{"a", "b"}})
	it = it.Set("cleared", "", value.Value{Kind: field.KindText, Multiple: true, Items: []any{}})
	it = it.Set("when", "", value.Value{Kind: field.KindDate, Items: []any{time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}})
	meta := item.Item{ID: "m1"}.Set("seo", "", value.Value{Kind: field.KindText, Items: []any{"x"}})
	return Subject{Item: it, Metadata: &meta}
}

func TestMatch(t *testing.T) {
	s := subject()
	f := condition.Field
	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		c    condition.Condition
		want bool
	}{
		{"nil", nil, true},
		{"empty and", condition.And{}, true},
		{"empty or", condition.Or{}, false},
		{"string contains", condition.String{Field: f("title"), Operator: condition.StringContains, Value: "lo wo"}, true},
		{"string not contains", condition.String{Field: f("title"), Operator: condition.StringNotContains, Value: "lo wo"}, false},
		{"string starts", condition.String{Field: f("title"), Operator: condition.StringStartsWith, Value: "Hell"}, true},
		{"string not ends", condition.String{Field: f("title"), Operator: condition.StringNotEndsWith, Value: "xyz"}, true},
		{"string on absent", condition.String{Field: f("nope"), Operator: condition.StringNotContains, Value: "a"}, true},
		{"bool equals", condition.Bool{Field: f("flag"), Operator: condition.BoolEquals, Value: true}, true},
		{"bool not equals", condition.Bool{Field: f("flag"), Operator: condition.BoolNotEquals, Value: true}, false},
		{"number gt", condition.Number{Field: f("count"), Operator: condition.NumberGreaterThan, Value: 4.5}, true},
		{"number lte", condition.Number{Field: f("count"), Operator: condition.NumberLessThanOrEqualTo, Value: 5}, true},
		{"number lt", condition.Number{Field: f("count"), Operator: condition.NumberLessThan, Value: 5}, false},
		{"basic status", condition.Basic{Field: condition.Meta(condition.SelectorStatus), Operator: condition.BasicEquals, Value: "PUBLIC"}, true},
		{"basic id not equals", condition.Basic{Field: condition.Meta(condition.SelectorID), Operator: condition.BasicNotEquals, Value: "i1"}, false},
		{"basic int vs float", condition.Basic{Field: f("count"), Operator: condition.BasicEquals, Value: 5.0}, true},
		{"basic date vs string", condition.Basic{Field: f("when"), Operator: condition.BasicEquals, Value: "2024-01-01T00:00:00Z"}, true},
		{"time before", condition.Time{Field: f("when"), Operator: condition.TimeBefore, Value: jan}, false},
		{"time before or on", condition.Time{Field: f("when"), Operator: condition.TimeBeforeOrOn, Value: jan}, true},
		{"time after or on", condition.Time{Field: f("when"), Operator: condition.TimeAfterOrOn, Value: jan}, true},
		{"created this week", condition.Time{Field: condition.Meta(condition.SelectorCreationDate), Operator: condition.TimeOfThisWeek}, true},
		{"modified this month", condition.Time{Field: condition.Meta(condition.SelectorModificationDate), Operator: condition.TimeOfThisMonth}, false},
		{"modified this year", condition.Time{Field: condition.Meta(condition.SelectorModificationDate), Operator: condition.TimeOfThisYear}, true},
		{"empty absent", condition.Nullable{Field: f("nope"), Operator: condition.NullableEmpty}, true},
		{"empty cleared", condition.Nullable{Field: f("cleared"), Operator: condition.NullableEmpty}, true},
		{"not empty", condition.Nullable{Field: f("title"), Operator: condition.NullableNotEmpty}, true},
		{"meta not empty", condition.Nullable{Field: condition.MetaField("seo"), Operator: condition.NullableNotEmpty}, true},
		{"modification user empty", condition.Nullable{Field: condition.Meta(condition.SelectorModificationUser), Operator: condition.NullableEmpty}, true},
		{"includes any", condition.Multiple{Field: f("tags"), Operator: condition.MultipleIncludesAny, Value: []any{"z", "b"}}, true},
		{"includes all", condition.Multiple{Field: f("tags"), Operator: condition.MultipleIncludesAll, Value: []any{"a", "z"}}, false},
		{"not includes any", condition.Multiple{Field: f("tags"), Operator: condition.MultipleNotIncludesAny, Value: []any{"z"}}, true},
		{"not includes all", condition.Multiple{Field: f("tags"), Operator: condition.MultipleNotIncludesAll, Value: []any{"a", "b"}}, false},
		{"and", condition.And{Conditions: []condition.Condition{
			condition.Bool{Field: f("flag"), Operator: condition.BoolEquals, Value: true},
			condition.Number{Field: f("count"), Operator: condition.NumberLessThan, Value: 1},
		}}, false},
		{"or", condition.Or{Conditions: []condition.Condition{
			condition.Number{Field: f("count"), Operator: condition.NumberLessThan, Value: 1},
			condition.Bool{Field: f("flag"), Operator: condition.BoolEquals, Value: true},
		}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Match(tt.c, s, now); got != tt.want {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLess(t *testing.T) {
	mk := func(id string, n any) Subject {
		it := item.Item{ID: id}
		if n != nil {
			it = it.Set("n", "", value.Value{Kind: field.KindInteger, Items: []any{n}})
		}
		return Subject{Item: it}
	}
	subjects := []Subject{mk("c", int64(2)), mk("a", nil), mk("b", int64(2)), mk("d", int64(1))}

	order := func(dir view.Direction) []string {
		s := append([]Subject(nil), subjects...)
		by := view.Sort{Field: condition.Field("n"), Direction: dir}
		sort.SliceStable(s, func(i, j int) bool { return Less(by, s[i], s[j]) })
		ids := make([]string, len(s))
		for i := range s {
			ids[i] = s[i].Item.ID
		}
		return ids
	}

	if got, want := order(view.Asc), []string{"d", "b", "c", "a"}; !equal(got, want) {
		t.Errorf("asc = %v, want %v", got, want)
	}
	if got, want := order(view.Desc), []string{"b", "c", "d", "a"}; !equal(got, want) {
		t.Errorf("desc = %v, want %v", got, want)
	}
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSearch(t *testing.T) {
	var candidates []Candidate
	for i, title := range []string{"alpha", "beta", "gamma", "delta", "epsilon"} {
		it := item.Item{ID: title, CreatedAt: now.Add(time.Duration(i) * time.Minute)}
		it = it.Set("title", "", value.Value{Kind: field.KindText, Items: []any{title}})
		candidates = append(candidates, Candidate{Version: item.Version{ID: "v" + title, ItemID: title, Value: it}})
	}

	q := ports.Query{
		Filter:   condition.String{Field: condition.Field("title"), Operator: condition.StringContains, Value: "a"},
		Sort:     &view.Sort{Field: condition.Field("title"), Direction: view.Asc},
		PageSize: 2,
	}
	page, err := Search(candidates, q, now)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if got := ids(page); !equal(got, []string{"alpha", "beta"}) {
		t.Errorf("page 1 = %v", got)
	}
	if page.TotalCount != 4 || !page.HasNext || page.HasPrevious {
		t.Errorf("page 1 meta = %+v", page)
	}

	q.PageToken = page.NextToken
	page, err = Search(candidates, q, now)
	if err != nil {
		t.Fatalf("Search() page 2 error = %v", err)
	}
	if got := ids(page); !equal(got, []string{"delta", "gamma"}) {
		t.Errorf("page 2 = %v", got)
	}
	if page.HasNext || !page.HasPrevious {
		t.Errorf("page 2 meta = %+v", page)
	}

	// Default sort is newest first.
	all, err := Search(candidates, ports.Query{PageSize: 10}, now)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if got := ids(all); !equal(got, []string{"epsilon", "delta", "gamma", "beta", "alpha"}) {
		t.Errorf("default order = %v", got)
	}

	if _, err := Search(candidates, ports.Query{PageToken: "???"}, now); err == nil {
		t.Error("expected error for a bad page token")
	}
}

func ids(p ports.Page) []string {
	out := make([]string, len(p.Items))
	for i, v := range p.Items {
		out[i] = v.ItemID
	}
	return out
}
