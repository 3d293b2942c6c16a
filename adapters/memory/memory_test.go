package memory_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/artpar/cmscore/adapters/clock"
	"github.com/artpar/cmscore/adapters/memory"
	"github.com/artpar/cmscore/domain/condition"
	"github.com/artpar/cmscore/domain/field"
	"github.com/artpar/cmscore/domain/item"
	"github.com/artpar/cmscore/domain/reference"
	"github.com/artpar/cmscore/domain/schema"
	"github.com/artpar/cmscore/domain/value"
	"github.com/artpar/cmscore/domain/view"
	"github.com/artpar/cmscore/ports"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newItemStore() *memory.ItemStore {
	return memory.NewItemStore(memory.ItemStoreConfig{NumShards: 4, Clock: clock.NewFake(t0)})
}

// commit appends one version for it on top of the stored head.
func commit(t *testing.T, s ports.ItemStore, it item.Item, a item.Action, versionID string) item.Version {
	t.Helper()
	ctx := context.Background()

	head, err := s.Head(ctx, it.ID)
	if errors.Is(err, ports.ErrNotFound) {
		head = item.Head{ItemID: it.ID}
	} else if err != nil {
		t.Fatalf("Head failed: %v", err)
	}
	var current item.Item
	if head.Exists() {
		cur, err := s.GetVersion(ctx, it.ID, head.Version)
		if err != nil {
			t.Fatalf("GetVersion failed: %v", err)
		}
		current = cur.Value
	}
	v, refs, err := item.Commit(head, current, it, a, versionID, t0)
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if err := s.Append(ctx, head.Version, v, refs); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	return v
}

func titled(id, model, title string) item.Item {
	return item.Item{ID: id, ModelID: model}.Set("title", "", value.Value{Kind: field.KindText, Items: []any{title}})
}

// ItemStore tests

func TestItemStore_Lifecycle(t *testing.T) {
	s := newItemStore()
	ctx := context.Background()

	commit(t, s, titled("i1", "m1", "a"), item.ActionCreate, "v0")
	commit(t, s, titled("i1", "m1", "b"), item.ActionUpdate, "v1")
	commit(t, s, titled("i1", "m1", "b"), item.ActionPublish, "v2")

	head, err := s.Head(ctx, "i1")
	if err != nil {
		t.Fatalf("Head failed: %v", err)
	}
	if head.Version != "v2" || head.Refs[item.RefPublished] != "v2" {
		t.Errorf("head = %+v", head)
	}

	pub, err := s.Get(ctx, "i1", item.RefPublished)
	if err != nil {
		t.Fatalf("Get(published) failed: %v", err)
	}
	if len(pub.Refs) != 2 || pub.Value.Status != item.StatusPublic {
		t.Errorf("published version = %+v", pub)
	}

	commit(t, s, titled("i1", "m1", "c"), item.ActionUnpublish, "v3")
	if _, err := s.Get(ctx, "i1", item.RefPublished); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("Get(published) after unpublish = %v, want ErrNotFound", err)
	}

	history, err := s.History(ctx, "i1")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 4 || !item.Lineage(history) {
		t.Errorf("history = %+v", history)
	}
}

func TestItemStore_AppendConflict(t *testing.T) {
	s := newItemStore()
	ctx := context.Background()

	v0 := commit(t, s, titled("i1", "m1", "a"), item.ActionCreate, "v0")
	commit(t, s, titled("i1", "m1", "b"), item.ActionUpdate, "v1")

	stale, refs, err := item.Commit(item.Head{ItemID: "i1", Version: "v0"}, v0.Value, titled("i1", "m1", "x"), item.ActionUpdate, "v9", t0)
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	err = s.Append(ctx, "v0", stale, refs)
	if !errors.Is(err, item.ErrVersionConflict) {
		t.Fatalf("Append with stale head = %v, want ErrVersionConflict", err)
	}

	head, _ := s.Head(ctx, "i1")
	if head.Version != "v1" {
		t.Errorf("head after conflict = %s, want v1", head.Version)
	}

	// Creating an existing item conflicts too.
	if err := s.Append(ctx, "", stale, refs); !errors.Is(err, item.ErrVersionConflict) {
		t.Errorf("Append with empty head = %v", err)
	}
}

func TestItemStore_ConcurrentAppend(t *testing.T) {
	s := newItemStore()
	ctx := context.Background()
	v0 := commit(t, s, titled("i1", "m1", "a"), item.ActionCreate, "v0")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	head := item.Head{ItemID: "i1", Version: "v0", Refs: item.Refs{item.RefLatest: "v0"}}
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, refs, err := item.Commit(head, v0.Value, v0.Value, item.ActionUpdate, fmt.Sprintf("w%d", i), t0)
			if err != nil {
				return
			}
			if s.Append(ctx, "v0", v, refs) == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("successful appends = %d, want 1", successes)
	}
	history, _ := s.History(ctx, "i1")
	if len(history) != 2 {
		t.Errorf("len(history) = %d, want 2", len(history))
	}
}

func TestItemStore_Delete(t *testing.T) {
	s := newItemStore()
	ctx := context.Background()
	commit(t, s, titled("i1", "m1", "a"), item.ActionCreate, "v0")

	if err := s.Delete(ctx, "i1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(ctx, "i1", item.RefLatest); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
	if history, err := s.History(ctx, "i1"); err != nil || len(history) != 1 {
		t.Errorf("History after delete = %v, %v", history, err)
	}
	head, _ := s.Head(ctx, "i1")
	if !head.Deleted {
		t.Error("head not marked deleted")
	}
	if err := s.Delete(ctx, "i1"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("second Delete = %v", err)
	}
}

func TestItemStore_SearchAndReferences(t *testing.T) {
	s := newItemStore()
	ctx := context.Background()

	for i, title := range []string{"one", "two", "three"} {
		it := titled(fmt.Sprintf("i%d", i), "m1", title)
		it.CreatedAt = t0.Add(time.Duration(i) * time.Hour)
		commit(t, s, it, item.ActionCreate, fmt.Sprintf("v%d", i))
	}
	other := titled("o1", "m2", "two").
		Set("ref", "", value.Value{Kind: field.KindReference, Items: []any{"i1"}})
	commit(t, s, other, item.ActionCreate, "ov0")
	commit(t, s, titled("i1", "m1", "two"), item.ActionPublish, "v9")

	page, err := s.Search(ctx, ports.Query{
		ModelID:  "m1",
		Filter:   condition.String{Field: condition.Field("title"), Operator: condition.StringContains, Value: "t"},
		Sort:     &view.Sort{Field: condition.Field("title"), Direction: view.Asc},
		PageSize: 10,
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if page.TotalCount != 2 || page.Items[0].ItemID != "i2" || page.Items[1].ItemID != "i1" {
		t.Errorf("Search = %+v", page)
	}

	published, err := s.Search(ctx, ports.Query{ModelID: "m1", Ref: item.RefPublished, PageSize: 10})
	if err != nil {
		t.Fatalf("Search(published) failed: %v", err)
	}
	if published.TotalCount != 1 {
		t.Errorf("published count = %d, want 1", published.TotalCount)
	}

	if ok, _ := s.IsReferenced(ctx, "i1", "ref"); !ok {
		t.Error("IsReferenced(i1) = false")
	}
	if ok, _ := s.IsReferenced(ctx, "i0", "ref"); ok {
		t.Error("IsReferenced(i0) = true")
	}

	many, err := s.GetMany(ctx, []string{"i2", "missing", "i0"}, item.RefLatest)
	if err != nil || len(many) != 2 || many[0].ItemID != "i2" {
		t.Errorf("GetMany = %+v, %v", many, err)
	}
}

func TestItemStore_SearchMetadata(t *testing.T) {
	s := newItemStore()
	ctx := context.Background()

	meta := item.Item{ID: "meta1", ModelID: "meta"}.
		Set("seo", "", value.Value{Kind: field.KindBool, Items: []any{true}})
	commit(t, s, meta, item.ActionCreate, "mv0")
	it := titled("i1", "m1", "a")
	it.MetadataID = "meta1"
	commit(t, s, it, item.ActionCreate, "v0")
	commit(t, s, titled("i2", "m1", "b"), item.ActionCreate, "v1")

	page, err := s.Search(ctx, ports.Query{
		ModelID:  "m1",
		Filter:   condition.Bool{Field: condition.MetaField("seo"), Operator: condition.BoolEquals, Value: true},
		PageSize: 10,
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if page.TotalCount != 1 || page.Items[0].ItemID != "i1" {
		t.Errorf("Search = %+v", page)
	}
}

// SchemaStore tests

func TestSchemaStore_Apply(t *testing.T) {
	s := memory.NewSchemaStore()
	ctx := context.Background()

	sc, err := schema.New("s1", schema.Field{ID: "f1", Key: "title", TypeProperty: field.Text{}})
	if err != nil {
		t.Fatalf("schema.New failed: %v", err)
	}
	link := reference.Link{ID: "l1", SourceModelID: "m1", SourceFieldID: "f1", TargetModelID: "m2", TargetFieldID: "f2"}
	if err := s.Apply(ctx, ports.SchemaChange{Save: []schema.Schema{sc}, PutLinks: []reference.Link{link}}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	got, err := s.Get(ctx, "s1")
	if err != nil || got.Len() != 1 {
		t.Errorf("Get = %v, %v", got, err)
	}
	if l, err := s.LinkByField(ctx, "f2"); err != nil || l.ID != "l1" {
		t.Errorf("LinkByField = %+v, %v", l, err)
	}
	if links, _ := s.Links(ctx, "m2"); len(links) != 1 {
		t.Errorf("Links(m2) = %v", links)
	}

	// A change naming an unknown link is rejected without writing anything.
	err = s.Apply(ctx, ports.SchemaChange{Delete: []string{"s1"}, DropLinks: []string{"nope"}})
	if !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("Apply with unknown link = %v", err)
	}
	if _, err := s.Get(ctx, "s1"); err != nil {
		t.Errorf("schema deleted by rejected change: %v", err)
	}

	if err := s.Apply(ctx, ports.SchemaChange{Delete: []string{"s1"}, DropLinks: []string{"l1"}}); err != nil {
		t.Fatalf("Apply delete failed: %v", err)
	}
	if _, err := s.Get(ctx, "s1"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("Get after delete = %v", err)
	}
}

// ModelStore, GroupStore and ViewStore tests

func TestModelStore(t *testing.T) {
	s := memory.NewModelStore()
	ctx := context.Background()

	if err := s.Create(ctx, schema.Model{ID: "m1", Key: "blog", SchemaID: "s1"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := s.Create(ctx, schema.Model{ID: "m2", Key: "blog"}); !errors.Is(err, ports.ErrDuplicate) {
		t.Errorf("Create duplicate key = %v", err)
	}
	if m, err := s.GetByKey(ctx, "blog"); err != nil || m.ID != "m1" {
		t.Errorf("GetByKey = %+v, %v", m, err)
	}
	if err := s.Update(ctx, schema.Model{ID: "nope"}); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("Update unknown = %v", err)
	}
	if err := s.Delete(ctx, "m1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(ctx, "m1"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("Get after delete = %v", err)
	}
}

func TestGroupStore(t *testing.T) {
	s := memory.NewGroupStore()
	ctx := context.Background()

	s.Create(ctx, schema.Group{ID: "g2", Key: "b"})
	s.Create(ctx, schema.Group{ID: "g1", Key: "a"})

	groups, _ := s.List(ctx)
	if len(groups) != 2 || groups[0].ID != "g1" {
		t.Errorf("List = %+v", groups)
	}
}

func TestViewStore_ListByModel(t *testing.T) {
	s := memory.NewViewStore()
	ctx := context.Background()

	s.Create(ctx, view.View{ID: "v1", ModelID: "m1", Name: "b", Order: 1})
	s.Create(ctx, view.View{ID: "v2", ModelID: "m1", Name: "a", Order: 1})
	s.Create(ctx, view.View{ID: "v3", ModelID: "m1", Name: "z", Order: 0})
	s.Create(ctx, view.View{ID: "v4", ModelID: "m2", Name: "x"})

	views, _ := s.ListByModel(ctx, "m1")
	if len(views) != 3 || views[0].ID != "v3" || views[1].ID != "v2" {
		t.Errorf("ListByModel = %+v", views)
	}
}
