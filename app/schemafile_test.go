package app_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/cmscore/app"
	"github.com/artpar/cmscore/domain/field"
	"github.com/artpar/cmscore/domain/schema"
)

const blogSchema = `
groups:
  - key: seo
    name: SEO
    fields:
      - {key: slug, title: Slug, type: text, maxLength: 80}
models:
  - key: post
    name: Post
    fields:
      - {key: title, title: Title, type: text, required: true, isTitle: true}
      - {key: seo, title: SEO, type: group, group: seo}
      - key: author
        title: Author
        type: reference
        model: author
        correspondingField: {key: posts, title: Posts}
    metadataFields:
      - {key: featured, title: Featured, type: bool}
  - key: author
    name: Author
    fields:
      - {key: name, title: Name, type: text}
`

func TestParseSchemaFile(t *testing.T) {
	sf, err := app.ParseSchemaFile([]byte(blogSchema))
	require.NoError(t, err)
	require.Len(t, sf.Groups, 1)
	require.Len(t, sf.Models, 2)

	author := sf.Models[0].Fields[2]
	assert.Equal(t, field.KindReference, author.Spec.Kind)
	assert.Equal(t, "author", author.Spec.ModelID)
	require.NotNil(t, author.Spec.Corresponding)
	assert.Equal(t, "posts", author.Spec.Corresponding.Key)
	assert.True(t, sf.Models[0].Fields[0].IsTitle)
	assert.Equal(t, 80, *sf.Groups[0].Fields[0].Spec.MaxLength)

	_, err = app.ParseSchemaFile([]byte("models: ["))
	assert.Error(t, err)
}

func TestSchemaService_ApplyFile(t *testing.T) {
	f := newFixture(t)
	sf, err := app.ParseSchemaFile([]byte(blogSchema))
	require.NoError(t, err)

	r, err := f.schemas.ApplyFile(f.ctx, sf)
	require.NoError(t, err)
	assert.True(t, r.OK(), "problems: %v", r.Problems)
	assert.Equal(t, 1, r.GroupsCreated)
	assert.Equal(t, 2, r.ModelsCreated)
	assert.Equal(t, 6, r.FieldsAdded)
	assert.Zero(t, r.Skipped)

	post, err := f.schemas.GetModelByKey(f.ctx, "post")
	require.NoError(t, err)
	author, err := f.schemas.GetModelByKey(f.ctx, "author")
	require.NoError(t, err)

	ps := f.schema(t, post.SchemaID)
	title, ok := ps.TitleField()
	require.True(t, ok)
	assert.Equal(t, "title", title.Key)

	ref, ok := ps.FieldByKey("author")
	require.True(t, ok)
	rp, _ := ref.Reference()
	assert.Equal(t, author.ID, rp.ModelID)
	assert.Equal(t, author.SchemaID, rp.SchemaID)

	back, ok := f.schema(t, author.SchemaID).FieldByKey("posts")
	require.True(t, ok, "back field not created")
	assert.Equal(t, field.KindReference, back.Kind())

	seo, ok := ps.FieldByKey("seo")
	require.True(t, ok)
	gid, _ := seo.GroupID()
	g, err := f.schemas.GetGroup(f.ctx, gid)
	require.NoError(t, err)
	assert.Equal(t, "seo", g.Key)

	require.True(t, post.HasMetadata())
	_, ok = f.schema(t, post.MetadataSchemaID).FieldByKey("featured")
	assert.True(t, ok)
}

func TestSchemaService_ApplyFile_Idempotent(t *testing.T) {
	f := newFixture(t)
	sf, err := app.ParseSchemaFile([]byte(blogSchema))
	require.NoError(t, err)

	_, err = f.schemas.ApplyFile(f.ctx, sf)
	require.NoError(t, err)

	r, err := f.schemas.ApplyFile(f.ctx, sf)
	require.NoError(t, err)
	assert.True(t, r.OK())
	assert.Zero(t, r.GroupsCreated+r.ModelsCreated+r.FieldsAdded)
	assert.Equal(t, 9, r.Skipped)

	author, err := f.schemas.GetModelByKey(f.ctx, "author")
	require.NoError(t, err)
	assert.Equal(t, 2, f.schema(t, author.SchemaID).Len())
}

func TestSchemaService_ApplyFile_Problems(t *testing.T) {
	f := newFixture(t)
	sf, err := app.ParseSchemaFile([]byte(`
groups:
  - key: inner
    name: Inner
    fields:
      - {key: self, title: Self, type: group, group: inner}
      - key: owner
        title: Owner
        type: reference
        model: page
        correspondingField: {key: blocks, title: Blocks}
      - {key: note, title: Note, type: text}
models:
  - key: -bad
    name: Broken
  - key: page
    name: Page
    fields:
      - {key: parent, title: Parent, type: reference, model: nowhere}
      - {key: colour, title: Colour, type: color}
      - {key: status, title: Status, type: select}
      - {key: body, title: Body, type: markdown}
`))
	require.NoError(t, err)

	r, err := f.schemas.ApplyFile(f.ctx, sf)
	require.NoError(t, err)
	assert.False(t, r.OK())
	assert.Equal(t, 1, r.GroupsCreated)
	assert.Equal(t, 1, r.ModelsCreated)
	assert.Equal(t, 2, r.FieldsAdded, "note and body still apply")

	byPath := make(map[string]error)
	for _, p := range r.Problems {
		byPath[p.Path] = p.Err
	}
	require.Len(t, byPath, 6, "problems: %v", r.Problems)

	assert.ErrorIs(t, byPath["groups.inner.fields.self"], schema.ErrNestedGroup)
	assert.ErrorIs(t, byPath["groups.inner.fields.owner"], schema.ErrGroupBackRef)

	var iv *app.InvalidError
	assert.ErrorAs(t, byPath["models.-bad"], &iv)

	assert.ErrorContains(t, byPath["models.page.fields.parent"], "unknown target key")
	assert.ErrorContains(t, byPath["models.page.fields.colour"], "unknown field kind")

	var ve *field.ValidationError
	require.ErrorAs(t, byPath["models.page.fields.status"], &ve)
	assert.Equal(t, field.CodeValueNotInEnumeration, ve.Code)
}

func TestSchemaService_ApplyFile_MetadataOnExistingModel(t *testing.T) {
	f := newFixture(t)
	f.model(t, "plain", false)

	sf, err := app.ParseSchemaFile([]byte(`
models:
  - key: plain
    name: Plain
    metadataFields:
      - {key: flag, title: Flag, type: bool}
`))
	require.NoError(t, err)

	r, err := f.schemas.ApplyFile(f.ctx, sf)
	require.NoError(t, err)
	require.Len(t, r.Problems, 1)
	assert.Equal(t, "models.plain.metadataFields", r.Problems[0].Path)
	assert.ErrorIs(t, r.Problems[0].Err, app.ErrNoMetadataSchema)
	assert.Equal(t, 1, r.Skipped)
}
