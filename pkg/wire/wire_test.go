package wire_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/cmscore/domain/condition"
	"github.com/artpar/cmscore/domain/field"
	"github.com/artpar/cmscore/domain/item"
	"github.com/artpar/cmscore/domain/reference"
	"github.com/artpar/cmscore/domain/schema"
	"github.com/artpar/cmscore/domain/value"
	"github.com/artpar/cmscore/domain/view"
	"github.com/artpar/cmscore/pkg/wire"
)

func codecs(t *testing.T) []wire.Codec {
	t.Helper()
	cb, err := wire.NewCBOR()
	require.NoError(t, err)
	return []wire.Codec{wire.JSON{}, cb}
}

func sampleItem() item.Item {
	at := time.Date(2024, 5, 6, 7, 8, 9, 123456000, time.UTC)
	return item.Item{
		ID:       "i1",
		ModelID:  "m1",
		SchemaID: "s1",
		Status:   item.StatusPublicDraft,
		Version:  "v2",
		Fields: []item.Field{
			{SchemaFieldID: "title", Value: value.Value{Kind: field.KindText, Items: []any{"hello"}}},
			{SchemaFieldID: "big", Value: value.Value{Kind: field.KindInteger, Items: []any{int64(9007199254740993)}}},
			{SchemaFieldID: "price", Value: value.Value{Kind: field.KindNumber, Items: []any{2.5}}},
			{SchemaFieldID: "flag", Value: value.Value{Kind: field.KindBool, Items: []any{true}}},
			{SchemaFieldID: "when", Value: value.Value{Kind: field.KindDate, Items: []any{at}}},
			{SchemaFieldID: "tags", Value: value.Value{Kind: field.KindTag, Multiple: true, Items: []any{"t1", "t2"}}},
			{SchemaFieldID: "none", Value: value.Value{Kind: field.KindTag, Multiple: true, Items: []any{}}},
			{SchemaFieldID: "cleared", Value: value.Value{Kind: field.KindText, Items: []any{}}},
			{SchemaFieldID: "geo", Value: value.Value{Kind: field.KindGeometryObject, Items: []any{`{"type":"Point","coordinates":[1,2]}`}}},
			{SchemaFieldID: "name", ItemGroupID: "ig1", Value: value.Value{Kind: field.KindText, Items: []any{"member"}}},
		},
		GroupOrder: map[string][]string{"grp": {"ig1"}},
		CreatedBy:  "u1",
		CreatedAt:  at,
		UpdatedAt:  at.Add(time.Hour),
	}
}

func TestItemDoc_RoundTrip(t *testing.T) {
	in := sampleItem()
	for _, c := range codecs(t) {
		t.Run(c.ContentType(), func(t *testing.T) {
			data, err := c.Marshal(wire.ItemToDoc(in))
			require.NoError(t, err)

			var doc wire.ItemDoc
			require.NoError(t, c.Unmarshal(data, &doc))
			out, err := doc.Item()
			require.NoError(t, err)

			require.Len(t, out.Fields, len(in.Fields))
			for i := range in.Fields {
				assert.Equal(t, in.Fields[i].SchemaFieldID, out.Fields[i].SchemaFieldID)
				assert.Equal(t, in.Fields[i].ItemGroupID, out.Fields[i].ItemGroupID)
				assert.True(t, in.Fields[i].Value.Equal(out.Fields[i].Value),
					"field %s: want %#v, got %#v", in.Fields[i].SchemaFieldID, in.Fields[i].Value, out.Fields[i].Value)
			}
			assert.Equal(t, in.GroupOrder, out.GroupOrder)
			assert.Equal(t, in.Status, out.Status)
			assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
			assert.True(t, in.UpdatedAt.Equal(out.UpdatedAt))
		})
	}
}

func TestVersionDoc_RoundTrip(t *testing.T) {
	in := item.Version{
		ID:        "v2",
		ItemID:    "i1",
		Parents:   []string{"v1"},
		Refs:      []string{item.RefLatest},
		Action:    item.ActionUpdate,
		Value:     sampleItem(),
		CreatedAt: time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC),
	}
	for _, c := range codecs(t) {
		t.Run(c.ContentType(), func(t *testing.T) {
			data, err := c.Marshal(wire.VersionToDoc(in))
			require.NoError(t, err)
			var doc wire.VersionDoc
			require.NoError(t, c.Unmarshal(data, &doc))
			out, err := doc.Version()
			require.NoError(t, err)
			assert.Equal(t, in.Parents, out.Parents)
			assert.Equal(t, in.Refs, out.Refs)
			assert.Equal(t, in.Action, out.Action)
			assert.Equal(t, "i1", out.Value.ID)
		})
	}
}

func TestVersionDoc_EmptyParents(t *testing.T) {
	doc := wire.VersionToDoc(item.Version{ID: "v0", ItemID: "i1"})
	assert.NotNil(t, doc.Parents)
	assert.NotNil(t, doc.Refs)
}

func TestViewDoc_FilterRoundTrip(t *testing.T) {
	filter := condition.And{Conditions: []condition.Condition{
		condition.String{Field: condition.Field("title"), Operator: condition.StringContains, Value: "foo"},
		condition.Or{Conditions: []condition.Condition{
			condition.Number{Field: condition.Field("price"), Operator: condition.NumberGreaterThan, Value: 2.5},
			condition.Basic{Field: condition.Field("big"), Operator: condition.BasicEquals, Value: int64(7)},
		}},
		condition.Nullable{Field: condition.MetaField("note"), Operator: condition.NullableEmpty},
		condition.Multiple{Field: condition.Field("tags"), Operator: condition.MultipleIncludesAny, Value: []any{"t1", "t2"}},
	}}
	in := view.View{
		ID:      "view1",
		ModelID: "m1",
		Name:    "Drafts",
		Columns: []view.Column{{Field: condition.Field("title"), Visible: true}},
		Sort:    &view.Sort{Field: condition.Meta(condition.SelectorModificationDate), Direction: view.Asc},
		Filter:  filter,
	}
	for _, c := range codecs(t) {
		t.Run(c.ContentType(), func(t *testing.T) {
			data, err := c.Marshal(wire.ViewToDoc(in))
			require.NoError(t, err)
			var doc wire.ViewDoc
			require.NoError(t, c.Unmarshal(data, &doc))
			out, err := doc.View()
			require.NoError(t, err)
			assert.Equal(t, in.Filter, out.Filter)
			assert.Equal(t, in.Columns, out.Columns)
			assert.Equal(t, in.Sort, out.Sort)
		})
	}
}

func TestSchemaDoc_RoundTrip(t *testing.T) {
	minV, maxV := int64(1), int64(10)
	in, err := schema.New("s1",
		schema.Field{ID: "f1", Key: "title", Title: "Title", TypeProperty: field.Text{}, IsTitle: true, Required: true},
		schema.Field{ID: "f2", Key: "count", TypeProperty: field.Integer{Min: &minV, Max: &maxV}, Default: int64(3)},
		schema.Field{ID: "f3", Key: "author", TypeProperty: field.Reference{
			ModelID:            "m2",
			CorrespondingField: &field.CorrespondingField{Key: "posts", Title: "Posts"},
		}},
	)
	require.NoError(t, err)

	data, err := wire.JSON{}.Marshal(wire.SchemaToDoc(in))
	require.NoError(t, err)
	var doc wire.SchemaDoc
	require.NoError(t, wire.JSON{}.Unmarshal(data, &doc))
	out, err := doc.Schema()
	require.NoError(t, err)

	want, got := in.Fields(), out.Fields()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].ID, got[i].ID)
		assert.Equal(t, want[i].Key, got[i].Key)
		assert.Equal(t, want[i].TypeProperty, got[i].TypeProperty)
		assert.Equal(t, want[i].IsTitle, got[i].IsTitle)
	}
}

func TestValueFromDoc_Errors(t *testing.T) {
	_, err := wire.ValueFromDoc("bogus", false, "x")
	assert.Error(t, err)
	_, err = wire.ValueFromDoc(field.KindGroup, false, nil)
	assert.Error(t, err)
	_, err = wire.ValueFromDoc(field.KindTag, true, "t1")
	assert.Error(t, err)
	_, err = wire.ValueFromDoc(field.KindInteger, false, "seven")
	assert.ErrorIs(t, err, field.ErrTypeMismatch)
}

func TestRegistry(t *testing.T) {
	r, err := wire.NewRegistry(wire.ContentTypeJSON)
	require.NoError(t, err)

	assert.Equal(t, wire.ContentTypeCBOR, r.Negotiate("application/cbor").ContentType())
	assert.Equal(t, wire.ContentTypeJSON, r.Negotiate("text/html, application/json;q=0.9").ContentType())
	assert.Equal(t, wire.ContentTypeJSON, r.Negotiate("").ContentType())
	assert.Equal(t, wire.ContentTypeJSON, r.Negotiate("*/*").ContentType())

	c, ok := r.ForContentType("application/json; charset=utf-8")
	require.True(t, ok)
	assert.Equal(t, wire.ContentTypeJSON, c.ContentType())
	_, ok = r.ForContentType("text/plain")
	assert.False(t, ok)
	c, ok = r.ForContentType("")
	require.True(t, ok)
	assert.Equal(t, wire.ContentTypeJSON, c.ContentType())

	cr, err := wire.NewRegistry(wire.ContentTypeCBOR)
	require.NoError(t, err)
	assert.Equal(t, wire.ContentTypeCBOR, cr.Default().ContentType())
}

func TestEncoder(t *testing.T) {
	for _, c := range codecs(t) {
		var buf bytes.Buffer
		require.NoError(t, c.NewEncoder(&buf).Encode(wire.LinkToDoc(reference.Link{ID: "l1", SourceFieldID: "f1"})))

		var doc wire.LinkDoc
		require.NoError(t, c.Unmarshal(buf.Bytes(), &doc))
		assert.Equal(t, "l1", doc.Link().ID)
		assert.Equal(t, "f1", doc.SourceFieldID)
	}
}
