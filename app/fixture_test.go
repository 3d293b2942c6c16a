package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/artpar/cmscore/adapters/clock"
	"github.com/artpar/cmscore/adapters/idgen"
	"github.com/artpar/cmscore/adapters/memory"
	"github.com/artpar/cmscore/app"
	"github.com/artpar/cmscore/domain/field"
	"github.com/artpar/cmscore/domain/schema"
	"github.com/artpar/cmscore/ports"
)

// fixture wires every service over in-memory stores.
type fixture struct {
	ctx     context.Context
	stores  ports.Stores
	clock   *clock.Fake
	schemas *app.SchemaService
	items   *app.ItemService
	refs    *app.ReferenceService
	views   *app.ViewService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := clock.NewFake(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	stores := ports.Stores{
		Models:  memory.NewModelStore(),
		Groups:  memory.NewGroupStore(),
		Schemas: memory.NewSchemaStore(),
		Items:   memory.NewItemStore(memory.ItemStoreConfig{Clock: clk}),
		Views:   memory.NewViewStore(),
	}
	ids := idgen.NewSequential("id-")
	logger := zerolog.Nop()

	items := app.NewItemService(stores, ids, clk, nil, logger, app.ItemServiceConfig{})
	return &fixture{
		ctx:     context.Background(),
		stores:  stores,
		clock:   clk,
		schemas: app.NewSchemaService(stores, ids, clk, nil, logger),
		items:   items,
		refs:    app.NewReferenceService(stores, logger),
		views:   app.NewViewService(stores, items, ids, clk, logger),
	}
}

func (f *fixture) model(t *testing.T, key string, metadata bool) schema.Model {
	t.Helper()
	m, err := f.schemas.CreateModel(f.ctx, app.ModelInput{Key: key, Name: key, Metadata: metadata})
	require.NoError(t, err)
	return m
}

func (f *fixture) group(t *testing.T, key string) schema.Group {
	t.Helper()
	g, err := f.schemas.CreateGroup(f.ctx, app.GroupInput{Key: key, Name: key})
	require.NoError(t, err)
	return g
}

// field adds a field and returns it as stored.
func (f *fixture) field(t *testing.T, schemaID string, fd schema.Field) schema.Field {
	t.Helper()
	sc, err := f.schemas.AddField(f.ctx, schemaID, fd)
	require.NoError(t, err)
	got, ok := sc.FieldByKey(fd.Key)
	require.True(t, ok, "field %s not in schema", fd.Key)
	return got
}

func (f *fixture) schema(t *testing.T, id string) schema.Schema {
	t.Helper()
	sc, err := f.schemas.GetSchema(f.ctx, id)
	require.NoError(t, err)
	return sc
}

func maxLen(n int) field.TextLimits {
	return field.TextLimits{MaxLength: &n}
}
