package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/artpar/cmscore/domain/field"
	"github.com/artpar/cmscore/domain/reference"
	"github.com/artpar/cmscore/domain/schema"
	"github.com/artpar/cmscore/domain/value"
	"github.com/artpar/cmscore/ports"
	"github.com/rs/zerolog"
)

// SchemaService manages models, groups and their schemas. Schema mutations
// are serialized: each one reads the current schemas, applies a domain
// operation and writes the result as a single ports.SchemaChange.
type SchemaService struct {
	models  ports.ModelStore
	groups  ports.GroupStore
	schemas ports.SchemaStore
	items   ports.ItemStore
	views   ports.ViewStore
	ids     ports.IDGenerator
	clock   ports.Clock
	rec     ports.Recorder
	logger  zerolog.Logger

	mu sync.Mutex
}

// NewSchemaService creates a new schema service. rec may be nil.
func NewSchemaService(
	stores ports.Stores,
	ids ports.IDGenerator,
	clock ports.Clock,
	rec ports.Recorder,
	logger zerolog.Logger,
) *SchemaService {
	return &SchemaService{
		models:  stores.Models,
		groups:  stores.Groups,
		schemas: stores.Schemas,
		items:   stores.Items,
		views:   stores.Views,
		ids:     ids,
		clock:   clock,
		rec:     recorderOrNop(rec),
		logger:  logger.With().Str("service", "schema").Logger(),
	}
}

// ModelInput describes a model to create.
type ModelInput struct {
	Key         string
	Name        string
	Description string
	Metadata    bool // also create a metadata schema
}

// ModelUpdate holds the model attributes to change. Nil fields are kept.
type ModelUpdate struct {
	Key         *string
	Name        *string
	Description *string
}

// GroupInput describes a group to create.
type GroupInput struct {
	Key         string
	Name        string
	Description string
}

// GroupUpdate holds the group attributes to change. Nil fields are kept.
type GroupUpdate struct {
	Key         *string
	Name        *string
	Description *string
}

func (s *SchemaService) done(op string, err error) {
	o := outcome(err)
	s.rec.SchemaOp(op, o)
	switch o {
	case "rejected", "conflict":
		s.logger.Warn().Err(err).Str("op", op).Msg("schema operation rejected")
	case "error":
		s.logger.Error().Err(err).Str("op", op).Msg("schema operation failed")
	}
}

// -----------------------------------------------------------------------------
// Models
// -----------------------------------------------------------------------------

// CreateModel creates a model with an empty schema, and an empty metadata
// schema when requested.
func (s *SchemaService) CreateModel(ctx context.Context, in ModelInput) (m schema.Model, err error) {
	defer func() { s.done("create_model", err) }()

	now := s.clock.Now()
	m = schema.Model{
		ID:          s.ids.New(),
		Key:         in.Key,
		Name:        in.Name,
		Description: in.Description,
		SchemaID:    s.ids.New(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.Metadata {
		m.MetadataSchemaID = s.ids.New()
	}
	if err := invalid(schema.ValidateModel(m)); err != nil {
		return schema.Model{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.models.GetByKey(ctx, m.Key); err == nil {
		return schema.Model{}, fmt.Errorf("model key %q: %w", m.Key, ports.ErrDuplicate)
	}

	change := ports.SchemaChange{Save: []schema.Schema{{ID: m.SchemaID}}}
	if m.HasMetadata() {
		change.Save = append(change.Save, schema.Schema{ID: m.MetadataSchemaID})
	}
	if err := s.schemas.Apply(ctx, change); err != nil {
		return schema.Model{}, fmt.Errorf("create model schemas: %w", err)
	}
	if err := s.models.Create(ctx, m); err != nil {
		if rbErr := s.schemas.Apply(ctx, ports.SchemaChange{Delete: schemaIDs(change.Save)}); rbErr != nil {
			s.logger.Error().Err(rbErr).Str("model_id", m.ID).Msg("failed to remove schemas of uncreated model")
		}
		return schema.Model{}, fmt.Errorf("create model: %w", err)
	}

	s.logger.Info().Str("model_id", m.ID).Str("key", m.Key).Msg("model created")
	return m, nil
}

func schemaIDs(schemas []schema.Schema) []string {
	ids := make([]string, len(schemas))
	for i, sc := range schemas {
		ids[i] = sc.ID
	}
	return ids
}

// GetModel returns a model by id.
func (s *SchemaService) GetModel(ctx context.Context, id string) (schema.Model, error) {
	return s.models.Get(ctx, id)
}

// GetModelByKey returns a model by key.
func (s *SchemaService) GetModelByKey(ctx context.Context, key string) (schema.Model, error) {
	return s.models.GetByKey(ctx, key)
}

// ListModels returns every model.
func (s *SchemaService) ListModels(ctx context.Context) ([]schema.Model, error) {
	return s.models.List(ctx)
}

// UpdateModel changes a model's key, name or description.
func (s *SchemaService) UpdateModel(ctx context.Context, id string, up ModelUpdate) (m schema.Model, err error) {
	defer func() { s.done("update_model", err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	m, err = s.models.Get(ctx, id)
	if err != nil {
		return schema.Model{}, err
	}
	if up.Key != nil && *up.Key != m.Key {
		if other, err := s.models.GetByKey(ctx, *up.Key); err == nil && other.ID != id {
			return schema.Model{}, fmt.Errorf("model key %q: %w", *up.Key, ports.ErrDuplicate)
		}
		m.Key = *up.Key
	}
	if up.Name != nil {
		m.Name = *up.Name
	}
	if up.Description != nil {
		m.Description = *up.Description
	}
	if err := invalid(schema.ValidateModel(m)); err != nil {
		return schema.Model{}, err
	}
	m.UpdatedAt = s.clock.Now()
	if err := s.models.Update(ctx, m); err != nil {
		return schema.Model{}, fmt.Errorf("update model: %w", err)
	}
	return m, nil
}

// DeleteModel deletes a model, its schemas and views. It is rejected while
// the model has live items or is the target of a reference field outside
// its own schemas that is not part of a bidirectional link. Links the model
// takes part in are removed, back fields included.
func (s *SchemaService) DeleteModel(ctx context.Context, id string) (err error) {
	defer func() { s.done("delete_model", err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.models.Get(ctx, id)
	if err != nil {
		return err
	}
	page, err := s.items.Search(ctx, ports.Query{ModelID: id, PageSize: 1})
	if err != nil {
		return fmt.Errorf("count items: %w", err)
	}
	if page.TotalCount > 0 {
		return fmt.Errorf("%w: model %s has %d items", ErrModelInUse, m.Key, page.TotalCount)
	}

	w, err := s.workset(ctx)
	if err != nil {
		return err
	}
	links, err := s.schemas.Links(ctx, id)
	if err != nil {
		return fmt.Errorf("load links: %w", err)
	}
	linked := map[string]bool{}
	for _, l := range links {
		linked[l.SourceFieldID] = true
		linked[l.TargetFieldID] = true
	}
	for _, sc := range w.all() {
		if sc.ID == m.SchemaID || sc.ID == m.MetadataSchemaID {
			continue
		}
		for _, f := range sc.FieldsOfKind(field.KindReference) {
			ref, _ := f.Reference()
			if ref.ModelID == id && !linked[f.ID] {
				return fmt.Errorf("%w: field %s of schema %s references it", ErrModelInUse, f.Key, sc.ID)
			}
		}
	}

	for _, l := range links {
		if err := w.unwire(l); err != nil {
			return err
		}
	}
	w.remove(m.SchemaID)
	if m.HasMetadata() {
		w.remove(m.MetadataSchemaID)
	}
	if err := s.schemas.Apply(ctx, w.build()); err != nil {
		return fmt.Errorf("delete model schemas: %w", err)
	}
	if err := s.models.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete model: %w", err)
	}

	views, err := s.views.ListByModel(ctx, id)
	if err != nil {
		return fmt.Errorf("list views: %w", err)
	}
	for _, v := range views {
		if err := s.views.Delete(ctx, v.ID); err != nil && !errors.Is(err, ports.ErrNotFound) {
			return fmt.Errorf("delete view %s: %w", v.ID, err)
		}
	}

	s.logger.Info().Str("model_id", id).Int("links", len(links)).Msg("model deleted")
	return nil
}

// -----------------------------------------------------------------------------
// Groups
// -----------------------------------------------------------------------------

// CreateGroup creates a group with an empty schema.
func (s *SchemaService) CreateGroup(ctx context.Context, in GroupInput) (g schema.Group, err error) {
	defer func() { s.done("create_group", err) }()

	now := s.clock.Now()
	g = schema.Group{
		ID:          s.ids.New(),
		Key:         in.Key,
		Name:        in.Name,
		Description: in.Description,
		SchemaID:    s.ids.New(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := invalid(schema.ValidateGroup(g)); err != nil {
		return schema.Group{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.groups.GetByKey(ctx, g.Key); err == nil {
		return schema.Group{}, fmt.Errorf("group key %q: %w", g.Key, ports.ErrDuplicate)
	}
	if err := s.schemas.Apply(ctx, ports.SchemaChange{Save: []schema.Schema{{ID: g.SchemaID}}}); err != nil {
		return schema.Group{}, fmt.Errorf("create group schema: %w", err)
	}
	if err := s.groups.Create(ctx, g); err != nil {
		if rbErr := s.schemas.Apply(ctx, ports.SchemaChange{Delete: []string{g.SchemaID}}); rbErr != nil {
			s.logger.Error().Err(rbErr).Str("group_id", g.ID).Msg("failed to remove schema of uncreated group")
		}
		return schema.Group{}, fmt.Errorf("create group: %w", err)
	}

	s.logger.Info().Str("group_id", g.ID).Str("key", g.Key).Msg("group created")
	return g, nil
}

// GetGroup returns a group by id.
func (s *SchemaService) GetGroup(ctx context.Context, id string) (schema.Group, error) {
	return s.groups.Get(ctx, id)
}

// ListGroups returns every group.
func (s *SchemaService) ListGroups(ctx context.Context) ([]schema.Group, error) {
	return s.groups.List(ctx)
}

// UpdateGroup changes a group's key, name or description.
func (s *SchemaService) UpdateGroup(ctx context.Context, id string, up GroupUpdate) (g schema.Group, err error) {
	defer func() { s.done("update_group", err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	g, err = s.groups.Get(ctx, id)
	if err != nil {
		return schema.Group{}, err
	}
	if up.Key != nil && *up.Key != g.Key {
		if other, err := s.groups.GetByKey(ctx, *up.Key); err == nil && other.ID != id {
			return schema.Group{}, fmt.Errorf("group key %q: %w", *up.Key, ports.ErrDuplicate)
		}
		g.Key = *up.Key
	}
	if up.Name != nil {
		g.Name = *up.Name
	}
	if up.Description != nil {
		g.Description = *up.Description
	}
	if err := invalid(schema.ValidateGroup(g)); err != nil {
		return schema.Group{}, err
	}
	g.UpdatedAt = s.clock.Now()
	if err := s.groups.Update(ctx, g); err != nil {
		return schema.Group{}, fmt.Errorf("update group: %w", err)
	}
	return g, nil
}

// DeleteGroup deletes a group and its schema. While group fields embed it
// the delete is rejected with schema.ErrGroupReferenced, unless cascade is
// set: the embedding fields are then removed from their schemas and item
// values under them are dropped the next time each item is normalized.
func (s *SchemaService) DeleteGroup(ctx context.Context, id string, cascade bool) (err error) {
	defer func() { s.done("delete_group", err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.groups.Get(ctx, id)
	if err != nil {
		return err
	}
	w, err := s.workset(ctx)
	if err != nil {
		return err
	}
	refs := schema.GroupReferences(w.all(), id)
	if len(refs) > 0 && !cascade {
		return &schema.IntegrityError{Op: "delete_group", Field: refs[0].Key, Err: schema.ErrGroupReferenced}
	}
	for _, r := range refs {
		sc, err := w.get(r.SchemaID)
		if err != nil {
			return err
		}
		next, err := sc.RemoveField(r.FieldID)
		if err != nil {
			return err
		}
		w.put(next)
	}
	w.remove(g.SchemaID)

	if err := s.schemas.Apply(ctx, w.build()); err != nil {
		return fmt.Errorf("delete group schema: %w", err)
	}
	if err := s.groups.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete group: %w", err)
	}

	if len(refs) > 0 {
		s.logger.Warn().Str("group_id", id).Int("fields", len(refs)).Msg("group deleted with referencing fields")
	} else {
		s.logger.Info().Str("group_id", id).Msg("group deleted")
	}
	return nil
}

// -----------------------------------------------------------------------------
// Fields
// -----------------------------------------------------------------------------

// GetSchema returns a schema by id.
func (s *SchemaService) GetSchema(ctx context.Context, id string) (schema.Schema, error) {
	return s.schemas.Get(ctx, id)
}

// AddField adds a field to a schema, assigning its id when empty. A
// bidirectional reference also installs its back field on the target
// model's schema and records the link, in the same change.
func (s *SchemaService) AddField(ctx context.Context, schemaID string, f schema.Field) (sc schema.Schema, err error) {
	defer func() { s.done("add_field", err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	w, err := s.workset(ctx)
	if err != nil {
		return schema.Schema{}, err
	}
	sc, err = w.get(schemaID)
	if err != nil {
		return schema.Schema{}, err
	}
	own, err := s.ownerOf(ctx, schemaID)
	if err != nil {
		return schema.Schema{}, err
	}

	if f.ID == "" {
		f.ID = s.ids.New()
	} else if other, taken := w.holding(f.ID); taken {
		return schema.Schema{}, &schema.IntegrityError{Op: "add_field", Field: f.Key, Err: fmt.Errorf("%w in schema %s", schema.ErrDuplicateID, other.ID)}
	}
	if f, err = s.prepare(ctx, "add_field", own, f); err != nil {
		return schema.Schema{}, err
	}
	next, err := sc.AddField(f)
	if err != nil {
		return schema.Schema{}, err
	}
	w.put(next)

	if ref, ok := f.Reference(); ok && ref.IsBidirectional() {
		if err := s.wire(ctx, w, own, schemaID, f); err != nil {
			return schema.Schema{}, err
		}
	}

	if err := s.schemas.Apply(ctx, w.build()); err != nil {
		return schema.Schema{}, fmt.Errorf("save schema: %w", err)
	}
	s.logger.Info().Str("schema_id", schemaID).Str("field_id", f.ID).Str("kind", string(f.Kind())).Msg("field added")
	return w.get(schemaID)
}

// UpdateField replaces a field definition. The kind cannot change, and a
// linked reference keeps its target and back field.
func (s *SchemaService) UpdateField(ctx context.Context, schemaID string, f schema.Field) (sc schema.Schema, err error) {
	defer func() { s.done("update_field", err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	w, err := s.workset(ctx)
	if err != nil {
		return schema.Schema{}, err
	}
	sc, err = w.get(schemaID)
	if err != nil {
		return schema.Schema{}, err
	}
	old, ok := sc.Field(f.ID)
	if !ok {
		return schema.Schema{}, &schema.IntegrityError{Op: "update_field", Field: f.ID, Err: schema.ErrFieldNotFound}
	}
	own, err := s.ownerOf(ctx, schemaID)
	if err != nil {
		return schema.Schema{}, err
	}
	if f, err = s.prepare(ctx, "update_field", own, f); err != nil {
		return schema.Schema{}, err
	}

	_, linked, err := s.link(ctx, f.ID)
	if err != nil {
		return schema.Schema{}, err
	}
	ref, isRef := f.Reference()
	if linked {
		prev, _ := old.Reference()
		if !isRef || ref.ModelID != prev.ModelID || ref.SchemaID != prev.SchemaID {
			return schema.Schema{}, &schema.IntegrityError{Op: "update_field", Field: f.Key, Err: schema.ErrLinkedTarget}
		}
		cf := *prev.CorrespondingField
		if ref.CorrespondingField != nil {
			cf = *ref.CorrespondingField
			cf.FieldID = prev.CorrespondingField.FieldID
		}
		ref.CorrespondingField = &cf
		f.TypeProperty = ref
	}

	next, err := sc.UpdateField(f)
	if err != nil {
		return schema.Schema{}, err
	}
	w.put(next)

	if !linked && isRef && ref.IsBidirectional() {
		if err := s.wire(ctx, w, own, schemaID, f); err != nil {
			return schema.Schema{}, err
		}
	}

	if err := s.schemas.Apply(ctx, w.build()); err != nil {
		return schema.Schema{}, fmt.Errorf("save schema: %w", err)
	}
	s.logger.Info().Str("schema_id", schemaID).Str("field_id", f.ID).Msg("field updated")
	return w.get(schemaID)
}

// RemoveField removes a field. Removing the source of a bidirectional
// reference also removes its back field. Removing a back field is rejected
// with schema.ErrCorrespondingRef unless cascade is set, in which case the
// source field stays as a one-way reference and the link is dropped.
func (s *SchemaService) RemoveField(ctx context.Context, schemaID, fieldID string, cascade bool) (sc schema.Schema, err error) {
	defer func() { s.done("remove_field", err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	w, err := s.workset(ctx)
	if err != nil {
		return schema.Schema{}, err
	}
	sc, err = w.get(schemaID)
	if err != nil {
		return schema.Schema{}, err
	}
	f, ok := sc.Field(fieldID)
	if !ok {
		return schema.Schema{}, &schema.IntegrityError{Op: "remove_field", Field: fieldID, Err: schema.ErrFieldNotFound}
	}

	l, linked, err := s.link(ctx, fieldID)
	if err != nil {
		return schema.Schema{}, err
	}
	if linked {
		if l.SourceFieldID != fieldID && !cascade {
			return schema.Schema{}, &schema.IntegrityError{Op: "remove_field", Field: f.Key, Err: schema.ErrCorrespondingRef}
		}
		unlink := w.unwire
		if l.TargetFieldID == fieldID {
			unlink = w.detach
		}
		if err := unlink(l); err != nil {
			return schema.Schema{}, err
		}
	} else {
		next, err := sc.RemoveField(fieldID)
		if err != nil {
			return schema.Schema{}, err
		}
		w.put(next)
	}

	if err := s.schemas.Apply(ctx, w.build()); err != nil {
		return schema.Schema{}, fmt.Errorf("save schema: %w", err)
	}
	s.logger.Info().Str("schema_id", schemaID).Str("field_id", fieldID).Bool("linked", linked).Msg("field removed")
	return w.get(schemaID)
}

// ReorderFields sets the display order of a schema's fields.
func (s *SchemaService) ReorderFields(ctx context.Context, schemaID string, ids []string) (sc schema.Schema, err error) {
	defer func() { s.done("reorder_fields", err) }()
	return s.mutate(ctx, schemaID, func(sc schema.Schema) (schema.Schema, error) {
		return sc.ReorderFields(ids)
	})
}

// SetTitleField makes a field the schema's only title field.
func (s *SchemaService) SetTitleField(ctx context.Context, schemaID, fieldID string) (sc schema.Schema, err error) {
	defer func() { s.done("set_title_field", err) }()
	return s.mutate(ctx, schemaID, func(sc schema.Schema) (schema.Schema, error) {
		return sc.SetTitleField(fieldID)
	})
}

// mutate applies a single-schema operation.
func (s *SchemaService) mutate(ctx context.Context, schemaID string, op func(schema.Schema) (schema.Schema, error)) (schema.Schema, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, err := s.schemas.Get(ctx, schemaID)
	if err != nil {
		return schema.Schema{}, fmt.Errorf("load schema %s: %w", schemaID, err)
	}
	next, err := op(sc)
	if err != nil {
		return schema.Schema{}, err
	}
	if err := s.schemas.Apply(ctx, ports.SchemaChange{Save: []schema.Schema{next}}); err != nil {
		return schema.Schema{}, fmt.Errorf("save schema: %w", err)
	}
	return next, nil
}

// owner is the model or group a schema belongs to.
type owner struct {
	modelID string
	group   bool
}

func (s *SchemaService) ownerOf(ctx context.Context, schemaID string) (owner, error) {
	models, err := s.models.List(ctx)
	if err != nil {
		return owner{}, fmt.Errorf("list models: %w", err)
	}
	for _, m := range models {
		if m.SchemaID == schemaID || m.MetadataSchemaID == schemaID {
			return owner{modelID: m.ID}, nil
		}
	}
	groups, err := s.groups.List(ctx)
	if err != nil {
		return owner{}, fmt.Errorf("list groups: %w", err)
	}
	for _, g := range groups {
		if g.SchemaID == schemaID {
			return owner{group: true}, nil
		}
	}
	return owner{}, fmt.Errorf("owner of schema %s: %w", schemaID, ports.ErrNotFound)
}

// prepare checks a field definition against the stored targets and fills
// in the schema a reference validates against.
func (s *SchemaService) prepare(ctx context.Context, op string, own owner, f schema.Field) (schema.Field, error) {
	if err := field.ValidateProperty(f.TypeProperty, targets{ctx: ctx, models: s.models, groups: s.groups}); err != nil {
		return f, &schema.IntegrityError{Op: op, Field: f.Key, Err: err}
	}
	switch p := f.TypeProperty.(type) {
	case field.Group:
		if own.group {
			return f, &schema.IntegrityError{Op: op, Field: f.Key, Err: schema.ErrNestedGroup}
		}
	case field.Reference:
		tm, err := s.models.Get(ctx, p.ModelID)
		if err != nil {
			return f, fmt.Errorf("load model %s: %w", p.ModelID, err)
		}
		switch p.SchemaID {
		case "":
			p.SchemaID = tm.SchemaID
		case tm.SchemaID, tm.MetadataSchemaID:
		default:
			return f, &schema.IntegrityError{Op: op, Field: f.Key, Err: schema.ErrDanglingTarget}
		}
		if p.IsBidirectional() && own.group {
			return f, &schema.IntegrityError{Op: op, Field: f.Key, Err: schema.ErrGroupBackRef}
		}
		f.TypeProperty = p
	}
	if _, _, err := value.EncodeDefault(f); err != nil {
		return f, err
	}
	return f, nil
}

// wire installs the back field of a bidirectional reference already saved
// in the working set and records the link.
func (s *SchemaService) wire(ctx context.Context, w *workset, own owner, schemaID string, f schema.Field) error {
	ref, _ := f.Reference()
	if cf := ref.CorrespondingField.FieldID; cf != "" {
		if _, taken, err := s.link(ctx, cf); err != nil {
			return err
		} else if taken {
			return &schema.IntegrityError{Op: "wire_reference", Field: f.Key, Err: schema.ErrCorrespondingRef}
		}
	}

	src, err := w.get(schemaID)
	if err != nil {
		return err
	}
	tgt, err := w.get(ref.SchemaID)
	if err != nil {
		return err
	}
	src, tgt, link, err := reference.Wire(
		reference.Side{ModelID: own.modelID, Schema: src}, f.ID,
		reference.Side{ModelID: ref.ModelID, Schema: tgt}, s.ids.New(),
	)
	if err != nil {
		if schema.IsIntegrityError(err) {
			return err
		}
		return &schema.IntegrityError{Op: "wire_reference", Field: f.Key, Err: err}
	}
	link.ID = s.ids.New()
	w.put(tgt)
	w.put(src)
	w.change.PutLinks = append(w.change.PutLinks, link)
	return nil
}

func (s *SchemaService) link(ctx context.Context, fieldID string) (reference.Link, bool, error) {
	l, err := s.schemas.LinkByField(ctx, fieldID)
	if errors.Is(err, ports.ErrNotFound) {
		return reference.Link{}, false, nil
	}
	if err != nil {
		return reference.Link{}, false, fmt.Errorf("load link of field %s: %w", fieldID, err)
	}
	return l, true, nil
}

// -----------------------------------------------------------------------------
// Working set
// -----------------------------------------------------------------------------

// workset is a mutable copy of every stored schema that accumulates one
// ports.SchemaChange.
type workset struct {
	schemas map[string]schema.Schema
	saved   map[string]bool
	change  ports.SchemaChange
}

func (s *SchemaService) workset(ctx context.Context) (*workset, error) {
	list, err := s.schemas.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	w := &workset{schemas: make(map[string]schema.Schema, len(list)), saved: map[string]bool{}}
	for _, sc := range list {
		w.schemas[sc.ID] = sc
	}
	return w, nil
}

func (w *workset) get(id string) (schema.Schema, error) {
	sc, ok := w.schemas[id]
	if !ok {
		return schema.Schema{}, fmt.Errorf("schema %s: %w", id, ports.ErrNotFound)
	}
	return sc, nil
}

func (w *workset) put(sc schema.Schema) {
	w.schemas[sc.ID] = sc
	w.saved[sc.ID] = true
}

func (w *workset) remove(id string) {
	delete(w.schemas, id)
	delete(w.saved, id)
	w.change.Delete = append(w.change.Delete, id)
}

// holding returns the schema containing a field. AddField keeps field ids
// unique across schemas.
func (w *workset) holding(fieldID string) (schema.Schema, bool) {
	for _, sc := range w.schemas {
		if _, ok := sc.Field(fieldID); ok {
			return sc, true
		}
	}
	return schema.Schema{}, false
}

// unwire removes both fields of a link and drops the link record.
func (w *workset) unwire(l reference.Link) error {
	src, srcOK := w.holding(l.SourceFieldID)
	tgt, tgtOK := w.holding(l.TargetFieldID)
	switch {
	case srcOK && tgtOK:
		src, tgt, err := reference.Unwire(l, src, tgt)
		if err != nil {
			return err
		}
		w.put(src)
		w.put(tgt)
	case srcOK:
		next, err := src.RemoveField(l.SourceFieldID)
		if err != nil {
			return err
		}
		w.put(next)
	case tgtOK:
		next, err := tgt.RemoveField(l.TargetFieldID)
		if err != nil {
			return err
		}
		w.put(next)
	}
	w.change.DropLinks = append(w.change.DropLinks, l.ID)
	return nil
}

// detach removes the back field of a link, turns the source field into a
// one-way reference and drops the link record.
func (w *workset) detach(l reference.Link) error {
	tgt, tgtOK := w.holding(l.TargetFieldID)
	src, srcOK := w.holding(l.SourceFieldID)
	switch {
	case srcOK && tgtOK:
		src, tgt, err := reference.Detach(l, src, tgt)
		if err != nil {
			return err
		}
		w.put(src)
		w.put(tgt)
	case tgtOK:
		next, err := tgt.RemoveField(l.TargetFieldID)
		if err != nil {
			return err
		}
		w.put(next)
	}
	w.change.DropLinks = append(w.change.DropLinks, l.ID)
	return nil
}

// all returns every schema, sorted by id.
func (w *workset) all() []schema.Schema {
	out := make([]schema.Schema, 0, len(w.schemas))
	for _, sc := range w.schemas {
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// build returns the accumulated change with saved schemas in id order.
func (w *workset) build() ports.SchemaChange {
	c := w.change
	c.Save = nil
	ids := make([]string, 0, len(w.saved))
	for id := range w.saved {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		c.Save = append(c.Save, w.schemas[id])
	}
	return c
}
