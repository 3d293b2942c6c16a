package app_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/cmscore/app"
	"github.com/artpar/cmscore/domain/field"
	"github.com/artpar/cmscore/domain/item"
	"github.com/artpar/cmscore/domain/reference"
	"github.com/artpar/cmscore/domain/schema"
)

func TestReferenceService(t *testing.T) {
	f := newFixture(t)
	author := f.model(t, "author", false)
	tag := f.model(t, "tag", false)
	post := f.model(t, "post", false)
	f.field(t, author.SchemaID, schema.Field{Key: "name", TypeProperty: field.Text{}})
	f.field(t, tag.SchemaID, schema.Field{Key: "label", TypeProperty: field.Text{}})
	authorRef := f.field(t, post.SchemaID, schema.Field{
		Key:          "author",
		TypeProperty: field.Reference{ModelID: author.ID, CorrespondingField: &field.CorrespondingField{Key: "posts"}},
	})
	tagsRef := f.field(t, post.SchemaID, schema.Field{Key: "tags", Multiple: true, TypeProperty: field.Reference{ModelID: tag.ID}})

	a, err := f.items.Create(f.ctx, app.CreateItemInput{ModelID: author.ID, Fields: []app.FieldInput{{Field: "name", Value: "Ann"}}})
	require.NoError(t, err)
	t1, err := f.items.Create(f.ctx, app.CreateItemInput{ModelID: tag.ID, Fields: []app.FieldInput{{Field: "label", Value: "go"}}})
	require.NoError(t, err)
	t2, err := f.items.Create(f.ctx, app.CreateItemInput{ModelID: tag.ID, Fields: []app.FieldInput{{Field: "label", Value: "db"}}})
	require.NoError(t, err)

	p, err := f.items.Create(f.ctx, app.CreateItemInput{ModelID: post.ID, Fields: []app.FieldInput{
		{Field: "tags", Value: []any{t2.ItemID, "missing", t1.ItemID, a.ItemID}},
		{Field: "author", Value: a.ItemID},
	}})
	require.NoError(t, err)

	t.Run("field order then value order", func(t *testing.T) {
		got, err := f.refs.ResolveReferencedItems(f.ctx, p.Value, item.RefLatest)
		require.NoError(t, err)
		var pairs [][2]string
		for _, r := range got {
			pairs = append(pairs, [2]string{r.FieldID, r.Item.ItemID})
		}
		// The missing id and the author held in a tag field are omitted.
		assert.Equal(t, [][2]string{
			{authorRef.ID, a.ItemID},
			{tagsRef.ID, t2.ItemID},
			{tagsRef.ID, t1.ItemID},
		}, pairs)
	})

	t.Run("published ref", func(t *testing.T) {
		res := f.items.Publish(f.ctx, []app.PublishInput{{ItemID: t1.ItemID}}, "")
		require.NoError(t, res[0].Err)
		got, err := f.refs.ResolveReferencedItems(f.ctx, p.Value, item.RefPublished)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, t1.ItemID, got[0].Item.ItemID)
	})

	t.Run("is referenced through the corresponding field", func(t *testing.T) {
		l, err := f.stores.Schemas.LinkByField(f.ctx, authorRef.ID)
		require.NoError(t, err)

		held, err := f.refs.IsReferenced(f.ctx, a.ItemID, l.TargetFieldID)
		require.NoError(t, err)
		assert.True(t, held)

		held, err = f.refs.IsReferenced(f.ctx, t1.ItemID, l.TargetFieldID)
		require.NoError(t, err)
		assert.False(t, held)

		_, err = f.refs.IsReferenced(f.ctx, t1.ItemID, tagsRef.ID)
		assert.ErrorIs(t, err, reference.ErrNotBidirectional)

		fieldID, held, err := f.refs.ReferencedBy(f.ctx, a.ItemID)
		require.NoError(t, err)
		assert.True(t, held)
		assert.Equal(t, authorRef.ID, fieldID)
	})

	t.Run("deleted targets are omitted", func(t *testing.T) {
		require.NoError(t, f.items.Delete(f.ctx, a.ItemID, true))
		got, err := f.refs.ResolveReferencedItems(f.ctx, p.Value, item.RefLatest)
		require.NoError(t, err)
		for _, r := range got {
			assert.NotEqual(t, a.ItemID, r.Item.ItemID)
		}
		assert.Len(t, got, 2)
	})
}

func TestReferenceService_GroupMembers(t *testing.T) {
	f := newFixture(t)
	author := f.model(t, "author", false)
	f.field(t, author.SchemaID, schema.Field{Key: "name", TypeProperty: field.Text{}})
	g := f.group(t, "g1")
	by := f.field(t, g.SchemaID, schema.Field{Key: "by", TypeProperty: field.Reference{ModelID: author.ID}})
	post := f.model(t, "post", false)
	lead := f.field(t, post.SchemaID, schema.Field{Key: "lead", TypeProperty: field.Reference{ModelID: author.ID}})
	f.field(t, post.SchemaID, schema.Field{Key: "credits", Multiple: true, TypeProperty: field.Group{GroupID: g.ID}})

	ann, err := f.items.Create(f.ctx, app.CreateItemInput{ModelID: author.ID, Fields: []app.FieldInput{{Field: "name", Value: "Ann"}}})
	require.NoError(t, err)
	bob, err := f.items.Create(f.ctx, app.CreateItemInput{ModelID: author.ID, Fields: []app.FieldInput{{Field: "name", Value: "Bob"}}})
	require.NoError(t, err)

	p, err := f.items.Create(f.ctx, app.CreateItemInput{
		ModelID:   post.ID,
		Instances: map[string][]string{"credits": {"A", "B"}},
		Fields: []app.FieldInput{
			{Field: "lead", Value: bob.ItemID},
			{Field: "by", ItemGroupID: "A", Value: ann.ItemID},
			{Field: "by", ItemGroupID: "B", Value: bob.ItemID},
		},
	})
	require.NoError(t, err)

	got, err := f.refs.ResolveReferencedItems(f.ctx, p.Value, item.RefLatest)
	require.NoError(t, err)
	type hit struct{ field, group, item string }
	var hits []hit
	for _, r := range got {
		hits = append(hits, hit{r.FieldID, r.ItemGroupID, r.Item.ItemID})
	}
	assert.Equal(t, []hit{
		{lead.ID, "", bob.ItemID},
		{by.ID, "A", ann.ItemID},
		{by.ID, "B", bob.ItemID},
	}, hits)

	v, err := f.items.ReorderInstances(f.ctx, p.ItemID, p.ID, "credits", []string{"B", "A"}, "u1")
	require.NoError(t, err)
	got, err = f.refs.ResolveReferencedItems(f.ctx, v.Value, item.RefLatest)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "B", got[1].ItemGroupID)
	assert.Equal(t, "A", got[2].ItemGroupID)
}
