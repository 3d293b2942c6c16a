// Package app provides application services that orchestrate domain logic.
package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/artpar/cmscore/domain/condition"
	"github.com/artpar/cmscore/domain/field"
	"github.com/artpar/cmscore/domain/item"
	"github.com/artpar/cmscore/domain/schema"
	"github.com/artpar/cmscore/ports"
)

// Service errors.
var (
	ErrVersionRequired  = errors.New("expected version is required")
	ErrModelInUse       = errors.New("model is still in use")
	ErrNoMetadataSchema = errors.New("model has no metadata schema")
	ErrNotMetadata      = errors.New("item is not a metadata item of the model")
	ErrUnknownRef       = errors.New("unknown ref")
	ErrUnknownField     = errors.New("unknown field")
)

// InvalidError reports model, group or view attributes that failed
// validation, keyed by attribute name.
type InvalidError struct {
	Errors map[string]string
}

func (e *InvalidError) Error() string {
	keys := make([]string, 0, len(e.Errors))
	for k := range e.Errors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Errors[k]
	}
	return "invalid " + strings.Join(parts, "; ")
}

func invalid(r schema.ValidationResult) error {
	if r.Valid {
		return nil
	}
	return &InvalidError{Errors: r.Errors}
}

// outcome classifies an operation result for metrics.
func outcome(err error) string {
	var (
		ve *field.ValidationError
		ie *schema.IntegrityError
		me *condition.MalformedError
		ce *item.ConflictError
		iv *InvalidError
		ic *item.InconsistencyError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &ce):
		return "conflict"
	case errors.As(err, &ve), errors.As(err, &ie), errors.As(err, &me), errors.As(err, &iv), errors.As(err, &ic),
		errors.Is(err, ports.ErrDuplicate), errors.Is(err, item.ErrReferenced), errors.Is(err, item.ErrInvalidTransition),
		errors.Is(err, item.ErrNotPublished), errors.Is(err, item.ErrDeleted), errors.Is(err, ErrModelInUse):
		return "rejected"
	}
	return "error"
}

type nopRecorder struct{}

func (nopRecorder) SchemaOp(string, string)      {}
func (nopRecorder) ItemOp(string, string)        {}
func (nopRecorder) Search(string, time.Duration) {}

func recorderOrNop(r ports.Recorder) ports.Recorder {
	if r == nil {
		return nopRecorder{}
	}
	return r
}

// content is the schema context an item is read and written in.
type content struct {
	model  schema.Model
	schema schema.Schema
	meta   *schema.Schema // metadata schema of the model, when it has one
	groups item.Groups
}

// resolver resolves selectors of conditions and views on the model's items.
func (c *content) resolver() condition.Schemas {
	return condition.Schemas{Schema: c.schema, Meta: c.meta}
}

// field returns a top-level field of the schema, or a member field of one
// of its groups.
func (c *content) field(id string, member bool) (schema.Field, bool) {
	if !member {
		return c.schema.Field(id)
	}
	for _, gs := range c.groups {
		if f, ok := gs.Field(id); ok {
			return f, true
		}
	}
	return schema.Field{}, false
}

// hasUnique reports whether any top-level field must hold unique values.
func (c *content) hasUnique() bool {
	for _, f := range c.schema.Fields() {
		if f.Unique {
			return true
		}
	}
	return false
}

// loadContent loads a model's schema (or its metadata schema when schemaID
// names it) and every group schema it embeds.
func loadContent(ctx context.Context, stores ports.Stores, modelID, schemaID string) (*content, error) {
	m, err := stores.Models.Get(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", modelID, err)
	}
	if schemaID == "" {
		schemaID = m.SchemaID
	}
	if schemaID != m.SchemaID && schemaID != m.MetadataSchemaID {
		return nil, fmt.Errorf("schema %s does not belong to model %s: %w", schemaID, m.ID, ports.ErrNotFound)
	}

	c := &content{model: m, groups: item.Groups{}}
	if c.schema, err = stores.Schemas.Get(ctx, schemaID); err != nil {
		return nil, fmt.Errorf("load schema %s: %w", schemaID, err)
	}
	if m.HasMetadata() && schemaID == m.SchemaID {
		meta, err := stores.Schemas.Get(ctx, m.MetadataSchemaID)
		if err != nil {
			return nil, fmt.Errorf("load metadata schema %s: %w", m.MetadataSchemaID, err)
		}
		c.meta = &meta
	}

	for _, gid := range c.schema.GroupTargets() {
		g, err := stores.Groups.Get(ctx, gid)
		if errors.Is(err, ports.ErrNotFound) {
			// Removed by a cascading group delete; Normalize drops its values.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load group %s: %w", gid, err)
		}
		gs, err := stores.Schemas.Get(ctx, g.SchemaID)
		if err != nil {
			return nil, fmt.Errorf("load group schema %s: %w", g.SchemaID, err)
		}
		c.groups[gid] = gs
	}
	return c, nil
}

// holderFields returns the fields whose values point at items of modelID
// through a bidirectional link: the source field of links targeting the
// model and the back field of links it is the source of.
func holderFields(ctx context.Context, schemas ports.SchemaStore, modelID string) ([]string, error) {
	links, err := schemas.Links(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("load links of model %s: %w", modelID, err)
	}
	var out []string
	for _, l := range links {
		if l.TargetModelID == modelID {
			out = append(out, l.SourceFieldID)
		}
		if l.SourceModelID == modelID {
			out = append(out, l.TargetFieldID)
		}
	}
	return out, nil
}

// referencedThrough returns the first holder field in which a live item
// references itemID.
func referencedThrough(ctx context.Context, stores ports.Stores, modelID, itemID string) (string, bool, error) {
	fields, err := holderFields(ctx, stores.Schemas, modelID)
	if err != nil {
		return "", false, err
	}
	for _, fid := range fields {
		ok, err := stores.Items.IsReferenced(ctx, itemID, fid)
		if err != nil {
			return "", false, fmt.Errorf("check references to %s: %w", itemID, err)
		}
		if ok {
			return fid, true, nil
		}
	}
	return "", false, nil
}

// targets answers field target lookups against the model and group stores.
type targets struct {
	ctx    context.Context
	models ports.ModelStore
	groups ports.GroupStore
}

func (t targets) ModelExists(id string) bool {
	_, err := t.models.Get(t.ctx, id)
	return err == nil
}

func (t targets) GroupExists(id string) bool {
	_, err := t.groups.Get(t.ctx, id)
	return err == nil
}
