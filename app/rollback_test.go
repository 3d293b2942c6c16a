package app_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/cmscore/adapters/clock"
	"github.com/artpar/cmscore/adapters/idgen"
	"github.com/artpar/cmscore/adapters/memory"
	"github.com/artpar/cmscore/app"
	"github.com/artpar/cmscore/domain/schema"
	"github.com/artpar/cmscore/ports"
)

var errStoreDown = errors.New("store down")

type brokenModels struct{ ports.ModelStore }

func (brokenModels) Create(context.Context, schema.Model) error { return errStoreDown }

type brokenGroups struct{ ports.GroupStore }

func (brokenGroups) Create(context.Context, schema.Group) error { return errStoreDown }

// noDeletes fails every change that removes schemas.
type noDeletes struct{ ports.SchemaStore }

func (s noDeletes) Apply(ctx context.Context, c ports.SchemaChange) error {
	if len(c.Delete) > 0 {
		return errStoreDown
	}
	return s.SchemaStore.Apply(ctx, c)
}

func rollbackService(t *testing.T, buf *bytes.Buffer) *app.SchemaService {
	t.Helper()
	stores := ports.Stores{
		Models:  brokenModels{memory.NewModelStore()},
		Groups:  brokenGroups{memory.NewGroupStore()},
		Schemas: noDeletes{memory.NewSchemaStore()},
		Views:   memory.NewViewStore(),
	}
	clk := clock.NewFake(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	return app.NewSchemaService(stores, idgen.NewSequential("id-"), clk, nil, zerolog.New(buf))
}

func TestSchemaService_FailedRollbackIsLogged(t *testing.T) {
	ctx := context.Background()

	t.Run("model", func(t *testing.T) {
		var buf bytes.Buffer
		s := rollbackService(t, &buf)
		_, err := s.CreateModel(ctx, app.ModelInput{Key: "post", Name: "Post"})
		require.ErrorIs(t, err, errStoreDown)
		assert.Contains(t, buf.String(), "failed to remove schemas of uncreated model")
		assert.Contains(t, buf.String(), `"level":"error"`)
	})

	t.Run("group", func(t *testing.T) {
		var buf bytes.Buffer
		s := rollbackService(t, &buf)
		_, err := s.CreateGroup(ctx, app.GroupInput{Key: "seo", Name: "SEO"})
		require.ErrorIs(t, err, errStoreDown)
		assert.Contains(t, buf.String(), "failed to remove schema of uncreated group")
	})
}
