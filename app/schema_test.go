package app_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/cmscore/app"
	"github.com/artpar/cmscore/domain/field"
	"github.com/artpar/cmscore/domain/schema"
	"github.com/artpar/cmscore/ports"
)

func TestSchemaService_CreateModel(t *testing.T) {
	f := newFixture(t)

	m := f.model(t, "article", true)
	assert.NotEmpty(t, m.SchemaID)
	assert.NotEmpty(t, m.MetadataSchemaID)
	assert.Equal(t, 0, f.schema(t, m.SchemaID).Len())
	assert.Equal(t, 0, f.schema(t, m.MetadataSchemaID).Len())

	_, err := f.schemas.CreateModel(f.ctx, app.ModelInput{Key: "article", Name: "Again"})
	assert.ErrorIs(t, err, ports.ErrDuplicate)

	_, err = f.schemas.CreateModel(f.ctx, app.ModelInput{Key: "-bad-", Name: ""})
	var iv *app.InvalidError
	require.ErrorAs(t, err, &iv)
	assert.Contains(t, iv.Errors, "key")
	assert.Contains(t, iv.Errors, "name")
}

func TestSchemaService_UpdateModel(t *testing.T) {
	f := newFixture(t)
	f.model(t, "one", false)
	m := f.model(t, "two", false)

	taken := "one"
	_, err := f.schemas.UpdateModel(f.ctx, m.ID, app.ModelUpdate{Key: &taken})
	assert.ErrorIs(t, err, ports.ErrDuplicate)

	name := "Second"
	got, err := f.schemas.UpdateModel(f.ctx, m.ID, app.ModelUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Second", got.Name)
	assert.Equal(t, "two", got.Key)
}

func TestSchemaService_AddField(t *testing.T) {
	f := newFixture(t)
	m := f.model(t, "article", false)

	title := f.field(t, m.SchemaID, schema.Field{Key: "title", TypeProperty: field.Text{TextLimits: maxLen(5)}, IsTitle: true})
	assert.NotEmpty(t, title.ID)

	tests := []struct {
		name string
		fd   schema.Field
		want error
	}{
		{"unknown reference target", schema.Field{Key: "ref", TypeProperty: field.Reference{ModelID: "missing"}}, field.ErrUnknownReferenceTarget},
		{"unknown group target", schema.Field{Key: "grp", TypeProperty: field.Group{GroupID: "missing"}}, field.ErrUnknownGroupTarget},
		{"duplicate key", schema.Field{Key: "title", TypeProperty: field.Text{}}, schema.ErrDuplicateKey},
		{"bad key", schema.Field{Key: "no spaces", TypeProperty: field.Text{}}, schema.ErrInvalidKey},
		{"default too long", schema.Field{Key: "sub", TypeProperty: field.Text{TextLimits: maxLen(2)}, Default: "long"}, field.ErrValueOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.schemas.AddField(f.ctx, m.SchemaID, tt.fd)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	// Rejected additions leave the schema untouched.
	assert.Equal(t, 1, f.schema(t, m.SchemaID).Len())

	_, err := f.schemas.AddField(f.ctx, "no-such-schema", schema.Field{Key: "x", TypeProperty: field.Text{}})
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestSchemaService_SetTitleField(t *testing.T) {
	f := newFixture(t)
	m := f.model(t, "article", false)
	a := f.field(t, m.SchemaID, schema.Field{Key: "a", TypeProperty: field.Text{}, IsTitle: true})
	b := f.field(t, m.SchemaID, schema.Field{Key: "b", TypeProperty: field.Text{}})

	sc, err := f.schemas.SetTitleField(f.ctx, m.SchemaID, b.ID)
	require.NoError(t, err)

	var titles []string
	for _, fd := range sc.Fields() {
		if fd.IsTitle {
			titles = append(titles, fd.ID)
		}
	}
	assert.Equal(t, []string{b.ID}, titles)

	sc, err = f.schemas.ReorderFields(f.ctx, m.SchemaID, []string{b.ID, a.ID})
	require.NoError(t, err)
	assert.Equal(t, "b", sc.Fields()[0].Key)
	assert.Equal(t, "b", f.schema(t, m.SchemaID).Fields()[0].Key)
}

func TestSchemaService_BidirectionalReference(t *testing.T) {
	f := newFixture(t)
	post := f.model(t, "post", false)
	author := f.model(t, "author", false)

	src := f.field(t, post.SchemaID, schema.Field{
		Key: "author",
		TypeProperty: field.Reference{
			ModelID:            author.ID,
			CorrespondingField: &field.CorrespondingField{Key: "posts", Title: "Posts"},
		},
	})
	ref, _ := src.Reference()
	assert.Equal(t, author.SchemaID, ref.SchemaID)
	require.NotNil(t, ref.CorrespondingField)
	backID := ref.CorrespondingField.FieldID
	require.NotEmpty(t, backID)

	back, ok := f.schema(t, author.SchemaID).Field(backID)
	require.True(t, ok)
	assert.Equal(t, "posts", back.Key)
	backRef, _ := back.Reference()
	assert.Equal(t, post.ID, backRef.ModelID)
	assert.Equal(t, src.ID, backRef.CorrespondingField.FieldID)

	link, err := f.stores.Schemas.LinkByField(f.ctx, backID)
	require.NoError(t, err)
	assert.Equal(t, src.ID, link.SourceFieldID)
	assert.Equal(t, backID, link.TargetFieldID)

	t.Run("linked target cannot change", func(t *testing.T) {
		other := f.model(t, "editor", false)
		changed := src
		changed.TypeProperty = field.Reference{ModelID: other.ID}
		_, err := f.schemas.UpdateField(f.ctx, post.SchemaID, changed)
		assert.ErrorIs(t, err, schema.ErrLinkedTarget)
	})

	t.Run("back field removal is rejected", func(t *testing.T) {
		_, err := f.schemas.RemoveField(f.ctx, author.SchemaID, backID, false)
		assert.ErrorIs(t, err, schema.ErrCorrespondingRef)
		_, ok := f.schema(t, author.SchemaID).Field(backID)
		assert.True(t, ok)
	})

	t.Run("cascade clears the corresponding field", func(t *testing.T) {
		_, err := f.schemas.RemoveField(f.ctx, author.SchemaID, backID, true)
		require.NoError(t, err)
		_, ok := f.schema(t, author.SchemaID).Field(backID)
		assert.False(t, ok)

		kept, ok := f.schema(t, post.SchemaID).Field(src.ID)
		require.True(t, ok, "source reference removed")
		ref, _ := kept.Reference()
		assert.False(t, ref.IsBidirectional())
		assert.Equal(t, author.ID, ref.ModelID)

		_, err = f.stores.Schemas.LinkByField(f.ctx, src.ID)
		assert.ErrorIs(t, err, ports.ErrNotFound)
	})
}

func TestSchemaService_CascadeKeepsReferenceValues(t *testing.T) {
	f := newFixture(t)
	post := f.model(t, "post", false)
	author := f.model(t, "author", false)
	f.field(t, author.SchemaID, schema.Field{Key: "name", TypeProperty: field.Text{}})
	src := f.field(t, post.SchemaID, schema.Field{
		Key:          "author",
		TypeProperty: field.Reference{ModelID: author.ID, CorrespondingField: &field.CorrespondingField{Key: "posts"}},
	})
	ref, _ := src.Reference()

	a, err := f.items.Create(f.ctx, app.CreateItemInput{ModelID: author.ID, Fields: []app.FieldInput{{Field: "name", Value: "Ann"}}})
	require.NoError(t, err)
	p, err := f.items.Create(f.ctx, app.CreateItemInput{ModelID: post.ID, Fields: []app.FieldInput{{Field: "author", Value: a.ItemID}}})
	require.NoError(t, err)

	_, err = f.schemas.RemoveField(f.ctx, author.SchemaID, ref.CorrespondingField.FieldID, true)
	require.NoError(t, err)

	got, err := f.refs.ResolveReferencedItems(f.ctx, p.Value, "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a.ItemID, got[0].Item.ItemID)

	// The one-way reference can be linked again.
	relinked := src
	relinked.TypeProperty = field.Reference{ModelID: author.ID, CorrespondingField: &field.CorrespondingField{Key: "articles"}}
	_, err = f.schemas.UpdateField(f.ctx, post.SchemaID, relinked)
	require.NoError(t, err)
	_, ok := f.schema(t, author.SchemaID).FieldByKey("articles")
	assert.True(t, ok)
}

func TestSchemaService_AddFieldRejectsForeignID(t *testing.T) {
	f := newFixture(t)
	a := f.model(t, "a", false)
	b := f.model(t, "b", false)
	taken := f.field(t, a.SchemaID, schema.Field{ID: "shared", Key: "one", TypeProperty: field.Text{}})

	_, err := f.schemas.AddField(f.ctx, b.SchemaID, schema.Field{ID: taken.ID, Key: "two", TypeProperty: field.Text{}})
	assert.ErrorIs(t, err, schema.ErrDuplicateID)
	assert.True(t, schema.IsIntegrityError(err))
	assert.Equal(t, 0, f.schema(t, b.SchemaID).Len())
}

func TestSchemaService_RemoveSourceReference(t *testing.T) {
	f := newFixture(t)
	post := f.model(t, "post", false)
	tag := f.model(t, "tag", false)

	src := f.field(t, post.SchemaID, schema.Field{
		Key:      "tags",
		Multiple: true,
		TypeProperty: field.Reference{
			ModelID:            tag.ID,
			CorrespondingField: &field.CorrespondingField{Key: "posts", Title: "Posts"},
		},
	})

	_, err := f.schemas.RemoveField(f.ctx, post.SchemaID, src.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 0, f.schema(t, tag.SchemaID).Len())
	links, err := f.stores.Schemas.Links(f.ctx, post.ID)
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestSchemaService_SelfReference(t *testing.T) {
	f := newFixture(t)
	page := f.model(t, "page", false)

	src := f.field(t, page.SchemaID, schema.Field{
		Key: "parent",
		TypeProperty: field.Reference{
			ModelID:            page.ID,
			CorrespondingField: &field.CorrespondingField{Key: "children", Title: "Children"},
		},
	})
	sc := f.schema(t, page.SchemaID)
	assert.Equal(t, 2, sc.Len())
	_, ok := sc.FieldByKey("children")
	assert.True(t, ok)

	_, err := f.schemas.RemoveField(f.ctx, page.SchemaID, src.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 0, f.schema(t, page.SchemaID).Len())
}

func TestSchemaService_Groups(t *testing.T) {
	f := newFixture(t)
	g := f.group(t, "seo")
	f.field(t, g.SchemaID, schema.Field{Key: "text1", TypeProperty: field.Text{}})
	m := f.model(t, "article", false)
	gf := f.field(t, m.SchemaID, schema.Field{Key: "seo", TypeProperty: field.Group{GroupID: g.ID}, Required: true})
	assert.False(t, gf.Required, "group fields are never required")

	t.Run("nested groups are rejected", func(t *testing.T) {
		_, err := f.schemas.AddField(f.ctx, g.SchemaID, schema.Field{Key: "inner", TypeProperty: field.Group{GroupID: g.ID}})
		assert.ErrorIs(t, err, schema.ErrNestedGroup)
	})

	t.Run("bidirectional references in groups are rejected", func(t *testing.T) {
		_, err := f.schemas.AddField(f.ctx, g.SchemaID, schema.Field{
			Key:          "ref",
			TypeProperty: field.Reference{ModelID: m.ID, CorrespondingField: &field.CorrespondingField{Key: "back"}},
		})
		assert.ErrorIs(t, err, schema.ErrGroupBackRef)
	})

	t.Run("delete is rejected while referenced", func(t *testing.T) {
		err := f.schemas.DeleteGroup(f.ctx, g.ID, false)
		assert.ErrorIs(t, err, schema.ErrGroupReferenced)
		var ie *schema.IntegrityError
		require.True(t, errors.As(err, &ie))
		assert.Equal(t, "seo", ie.Field)
	})

	t.Run("cascade removes referencing fields", func(t *testing.T) {
		require.NoError(t, f.schemas.DeleteGroup(f.ctx, g.ID, true))
		_, ok := f.schema(t, m.SchemaID).Field(gf.ID)
		assert.False(t, ok)
		_, err := f.schemas.GetGroup(f.ctx, g.ID)
		assert.ErrorIs(t, err, ports.ErrNotFound)
		_, err = f.schemas.GetSchema(f.ctx, g.SchemaID)
		assert.ErrorIs(t, err, ports.ErrNotFound)
	})
}

func TestSchemaService_DeleteModel(t *testing.T) {
	f := newFixture(t)
	author := f.model(t, "author", false)
	post := f.model(t, "post", false)
	plain := f.field(t, post.SchemaID, schema.Field{Key: "writer", TypeProperty: field.Reference{ModelID: author.ID}})

	err := f.schemas.DeleteModel(f.ctx, author.ID)
	assert.ErrorIs(t, err, app.ErrModelInUse)

	_, err = f.schemas.RemoveField(f.ctx, post.SchemaID, plain.ID, false)
	require.NoError(t, err)
	f.field(t, post.SchemaID, schema.Field{
		Key:          "author",
		TypeProperty: field.Reference{ModelID: author.ID, CorrespondingField: &field.CorrespondingField{Key: "posts"}},
	})
	f.field(t, author.SchemaID, schema.Field{Key: "name", TypeProperty: field.Text{}})

	_, err = f.items.Create(f.ctx, app.CreateItemInput{ModelID: author.ID, Fields: []app.FieldInput{{Field: "name", Value: "Ann"}}})
	require.NoError(t, err)
	err = f.schemas.DeleteModel(f.ctx, author.ID)
	assert.ErrorIs(t, err, app.ErrModelInUse)

	// A model without items goes, taking the linked field on the other side.
	require.NoError(t, f.schemas.DeleteModel(f.ctx, post.ID))
	_, err = f.schemas.GetModel(f.ctx, post.ID)
	assert.ErrorIs(t, err, ports.ErrNotFound)
	_, ok := f.schema(t, author.SchemaID).FieldByKey("posts")
	assert.False(t, ok)
}
