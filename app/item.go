package app

import (
	"context"
	"fmt"
	"hash/fnv"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/artpar/cmscore/domain/condition"
	"github.com/artpar/cmscore/domain/field"
	"github.com/artpar/cmscore/domain/item"
	"github.com/artpar/cmscore/domain/schema"
	"github.com/artpar/cmscore/domain/value"
	"github.com/artpar/cmscore/domain/view"
	"github.com/artpar/cmscore/ports"
	"github.com/rs/zerolog"
)

// ItemService creates and versions items. Writes to one item are
// serialized by a striped lock on the item id; the store's head
// compare-and-swap catches writers in other processes.
type ItemService struct {
	stores ports.Stores
	ids    ports.IDGenerator
	clock  ports.Clock
	rec    ports.Recorder
	logger zerolog.Logger

	itemLocks  stripes
	modelLocks stripes // held while checking unique fields

	defaultPageSize atomic.Int64
	maxPageSize     atomic.Int64
}

// ItemServiceConfig contains configuration for ItemService.
type ItemServiceConfig struct {
	LockShards      int // Number of lock stripes (default: 64)
	DefaultPageSize int // Page size when a search names none (default: 50)
	MaxPageSize     int // Largest page a search may request (default: 100)
}

// NewItemService creates a new item service. rec may be nil.
func NewItemService(
	stores ports.Stores,
	ids ports.IDGenerator,
	clock ports.Clock,
	rec ports.Recorder,
	logger zerolog.Logger,
	cfg ItemServiceConfig,
) *ItemService {
	if cfg.LockShards <= 0 {
		cfg.LockShards = 64
	}
	s := &ItemService{
		stores:     stores,
		ids:        ids,
		clock:      clock,
		rec:        recorderOrNop(rec),
		logger:     logger.With().Str("service", "item").Logger(),
		itemLocks:  newStripes(cfg.LockShards),
		modelLocks: newStripes(cfg.LockShards),
	}
	s.SetPaging(cfg.DefaultPageSize, cfg.MaxPageSize)
	return s
}

// SetPaging changes the page size limits. Zero values select the defaults.
func (s *ItemService) SetPaging(defaultSize, maxSize int) {
	if defaultSize <= 0 {
		defaultSize = 50
	}
	if maxSize <= 0 {
		maxSize = 100
	}
	if defaultSize > maxSize {
		defaultSize = maxSize
	}
	s.defaultPageSize.Store(int64(defaultSize))
	s.maxPageSize.Store(int64(maxSize))
}

// Paging returns the current page size limits.
func (s *ItemService) Paging() (defaultSize, maxSize int) {
	return int(s.defaultPageSize.Load()), int(s.maxPageSize.Load())
}

func (s *ItemService) pageSize(n int) int {
	if n <= 0 {
		n = int(s.defaultPageSize.Load())
	}
	if max := int(s.maxPageSize.Load()); n > max {
		n = max
	}
	return n
}

// stripes is a fixed set of mutexes selected by key hash.
type stripes []sync.Mutex

func newStripes(n int) stripes {
	return make(stripes, n)
}

func (l stripes) lock(key string) func() {
	h := fnv.New32a()
	h.Write([]byte(key))
	m := &l[h.Sum32()%uint32(len(l))]
	m.Lock()
	return m.Unlock
}

// FieldInput is one value to store. Field is a field id or key; it names a
// member field of the instance's group when ItemGroupID is set. A nil Value
// clears the field.
type FieldInput struct {
	Field       string
	ItemGroupID string
	Value       any
}

// CreateItemInput describes an item to create. Instances lists, per group
// field id or key, the ordered instance ids the member values belong to.
type CreateItemInput struct {
	ModelID    string
	Metadata   bool // item of the model's metadata schema
	Fields     []FieldInput
	Instances  map[string][]string
	MetadataID string
	ThreadID   string
	UserID     string
}

// UpdateItemInput describes an update of the item's head version Version.
// A group field named in Instances gets exactly the listed instances, in
// that order; values of dropped instances are removed.
type UpdateItemInput struct {
	ItemID     string
	Version    string
	Fields     []FieldInput
	Instances  map[string][]string
	MetadataID *string
	UserID     string
}

// PublishInput names an item to publish. An empty Version publishes the
// current head.
type PublishInput struct {
	ItemID  string
	Version string
}

// PublishResult is the outcome of publishing one item of a batch.
type PublishResult struct {
	ItemID  string
	Version item.Version
	Err     error
}

// InstanceInput adds a group instance. The instance id is generated when
// ItemGroupID is empty; Fields hold its member values.
type InstanceInput struct {
	ItemID      string
	Version     string
	GroupField  string
	ItemGroupID string
	Fields      []FieldInput
	UserID      string
}

// SearchInput selects items of a model.
type SearchInput struct {
	ModelID   string
	Metadata  bool // search the model's metadata items
	Ref       string
	Filter    condition.Condition
	Sort      *view.Sort
	PageToken string
	PageSize  int
}

func (s *ItemService) done(action, itemID string, err error) {
	o := outcome(err)
	s.rec.ItemOp(action, o)
	switch o {
	case "conflict":
		s.logger.Warn().Err(err).Str("item_id", itemID).Str("action", action).Msg("version conflict")
	case "rejected":
		s.logger.Warn().Err(err).Str("item_id", itemID).Str("action", action).Msg("item operation rejected")
	case "error":
		s.logger.Error().Err(err).Str("item_id", itemID).Str("action", action).Msg("item operation failed")
	}
}

// -----------------------------------------------------------------------------
// Writes
// -----------------------------------------------------------------------------

// Create validates and stores a new item as its first version.
func (s *ItemService) Create(ctx context.Context, in CreateItemInput) (v item.Version, err error) {
	defer func() { s.done(string(item.ActionCreate), v.ItemID, err) }()

	c, err := loadContent(ctx, s.stores, in.ModelID, "")
	if err != nil {
		return item.Version{}, err
	}
	if in.Metadata {
		if !c.model.HasMetadata() {
			return item.Version{}, ErrNoMetadataSchema
		}
		if c, err = loadContent(ctx, s.stores, in.ModelID, c.model.MetadataSchemaID); err != nil {
			return item.Version{}, err
		}
	}

	it := item.Item{
		ID:         s.ids.New(),
		ModelID:    c.model.ID,
		SchemaID:   c.schema.ID,
		MetadataID: in.MetadataID,
		ThreadID:   in.ThreadID,
		CreatedBy:  in.UserID,
		UpdatedBy:  in.UserID,
	}
	if it, err = applyInput(c, it, in.Fields, in.Instances); err != nil {
		return item.Version{}, err
	}
	it = fillDefaults(c, it, true, allInstances(it))
	if err := s.checkMetadata(ctx, c, it.MetadataID); err != nil {
		return item.Version{}, err
	}

	unlock := s.itemLocks.lock(it.ID)
	defer unlock()
	if c.hasUnique() {
		unlockModel := s.modelLocks.lock(c.model.ID)
		defer unlockModel()
	}
	return s.commit(ctx, c, item.Head{ItemID: it.ID}, item.Item{}, it, item.ActionCreate)
}

// Update applies field values to the head version in.Version. A stale
// version fails with an *item.ConflictError and changes nothing.
func (s *ItemService) Update(ctx context.Context, in UpdateItemInput) (v item.Version, err error) {
	defer func() { s.done(string(item.ActionUpdate), in.ItemID, err) }()

	if in.Version == "" {
		return item.Version{}, ErrVersionRequired
	}
	return s.write(ctx, in.ItemID, in.Version, item.ActionUpdate, in.UserID, func(c *content, it item.Item) (item.Item, error) {
		before := allInstances(it)
		it, err := applyInput(c, it, in.Fields, in.Instances)
		if err != nil {
			return it, err
		}
		var added []string
		for _, id := range allInstances(it) {
			if !slices.Contains(before, id) {
				added = append(added, id)
			}
		}
		it = fillDefaults(c, it, false, added)
		if in.MetadataID != nil {
			if err := s.checkMetadata(ctx, c, *in.MetadataID); err != nil {
				return it, err
			}
			it.MetadataID = *in.MetadataID
		}
		return it, nil
	})
}

// Publish publishes a batch of items. Each item succeeds or fails on its
// own; results are in request order.
func (s *ItemService) Publish(ctx context.Context, reqs []PublishInput, userID string) []PublishResult {
	results := make([]PublishResult, len(reqs))
	for i, r := range reqs {
		v, err := s.transition(ctx, item.ActionPublish, r.ItemID, r.Version, userID)
		results[i] = PublishResult{ItemID: r.ItemID, Version: v, Err: err}
	}
	return results
}

// Unpublish clears the item's published ref. An empty version targets the
// current head.
func (s *ItemService) Unpublish(ctx context.Context, itemID, version, userID string) (item.Version, error) {
	return s.transition(ctx, item.ActionUnpublish, itemID, version, userID)
}

// RequestReview moves a draft into review.
func (s *ItemService) RequestReview(ctx context.Context, itemID, version, userID string) (item.Version, error) {
	return s.transition(ctx, item.ActionRequestReview, itemID, version, userID)
}

// CancelReview moves an item in review back to its draft state.
func (s *ItemService) CancelReview(ctx context.Context, itemID, version, userID string) (item.Version, error) {
	return s.transition(ctx, item.ActionCancelReview, itemID, version, userID)
}

// ApproveReview publishes an item that is in review.
func (s *ItemService) ApproveReview(ctx context.Context, itemID, version, userID string) (v item.Version, err error) {
	defer func() { s.done("approve_review", itemID, err) }()

	return s.write(ctx, itemID, version, item.ActionPublish, userID, func(_ *content, it item.Item) (item.Item, error) {
		if it.Status != item.StatusReview && it.Status != item.StatusPublicReview {
			return it, fmt.Errorf("%w: approve from %s", item.ErrInvalidTransition, it.Status)
		}
		return it, nil
	})
}

func (s *ItemService) transition(ctx context.Context, a item.Action, itemID, version, userID string) (v item.Version, err error) {
	defer func() { s.done(string(a), itemID, err) }()

	return s.write(ctx, itemID, version, a, userID, func(_ *content, it item.Item) (item.Item, error) {
		return it, nil
	})
}

// AddInstance appends an instance to a group field and stores its member
// values. It returns the new version and the instance id.
func (s *ItemService) AddInstance(ctx context.Context, in InstanceInput) (v item.Version, itemGroupID string, err error) {
	defer func() { s.done("add_instance", in.ItemID, err) }()

	if in.Version == "" {
		return item.Version{}, "", ErrVersionRequired
	}
	itemGroupID = in.ItemGroupID
	if itemGroupID == "" {
		itemGroupID = s.ids.New()
	}
	v, err = s.write(ctx, in.ItemID, in.Version, item.ActionUpdate, in.UserID, func(c *content, it item.Item) (item.Item, error) {
		gf, err := groupField(c, in.GroupField)
		if err != nil {
			return it, err
		}
		if it, err = it.AddInstance(gf.ID, itemGroupID); err != nil {
			return it, err
		}
		fields := make([]FieldInput, len(in.Fields))
		for i, f := range in.Fields {
			f.ItemGroupID = itemGroupID
			fields[i] = f
		}
		if it, err = applyInput(c, it, fields, nil); err != nil {
			return it, err
		}
		return fillDefaults(c, it, false, []string{itemGroupID}), nil
	})
	if err != nil {
		return item.Version{}, "", err
	}
	return v, itemGroupID, nil
}

// RemoveInstance drops a group instance and its member values.
func (s *ItemService) RemoveInstance(ctx context.Context, itemID, version, groupFieldRef, itemGroupID, userID string) (v item.Version, err error) {
	defer func() { s.done("remove_instance", itemID, err) }()

	if version == "" {
		return item.Version{}, ErrVersionRequired
	}
	return s.write(ctx, itemID, version, item.ActionUpdate, userID, func(c *content, it item.Item) (item.Item, error) {
		gf, err := groupField(c, groupFieldRef)
		if err != nil {
			return it, err
		}
		return it.RemoveInstance(gf.ID, itemGroupID)
	})
}

// ReorderInstances sets the order of a group field's instances.
func (s *ItemService) ReorderInstances(ctx context.Context, itemID, version, groupFieldRef string, order []string, userID string) (v item.Version, err error) {
	defer func() { s.done("reorder_instances", itemID, err) }()

	if version == "" {
		return item.Version{}, ErrVersionRequired
	}
	return s.write(ctx, itemID, version, item.ActionUpdate, userID, func(c *content, it item.Item) (item.Item, error) {
		gf, err := groupField(c, groupFieldRef)
		if err != nil {
			return it, err
		}
		return it.ReorderInstances(gf.ID, order)
	})
}

// Delete tombstones an item. While a linked reference field holds the item
// the delete fails with item.ErrReferenced, unless cascade is set.
func (s *ItemService) Delete(ctx context.Context, itemID string, cascade bool) (err error) {
	defer func() { s.done("delete", itemID, err) }()

	unlock := s.itemLocks.lock(itemID)
	defer unlock()

	head, err := s.stores.Items.Head(ctx, itemID)
	if err != nil {
		return fmt.Errorf("load item %s: %w", itemID, err)
	}
	if head.Deleted {
		return item.ErrDeleted
	}
	if !cascade {
		cur, err := s.stores.Items.GetVersion(ctx, itemID, head.Version)
		if err != nil {
			return fmt.Errorf("load item %s: %w", itemID, err)
		}
		fieldID, referenced, err := referencedThrough(ctx, s.stores, cur.Value.ModelID, itemID)
		if err != nil {
			return err
		}
		if referenced {
			return fmt.Errorf("%w: item %s is held by field %s", item.ErrReferenced, itemID, fieldID)
		}
	}
	if err := s.stores.Items.Delete(ctx, itemID); err != nil {
		return fmt.Errorf("delete item %s: %w", itemID, err)
	}
	s.logger.Info().Str("item_id", itemID).Bool("cascade", cascade).Msg("item deleted")
	return nil
}

// write runs one mutation of an existing item under its lock. expected, when
// set, must be the head version. mutate receives the head snapshot
// normalized against the current schema.
func (s *ItemService) write(ctx context.Context, itemID, expected string, a item.Action, userID string, mutate func(*content, item.Item) (item.Item, error)) (item.Version, error) {
	unlock := s.itemLocks.lock(itemID)
	defer unlock()

	head, err := s.stores.Items.Head(ctx, itemID)
	if err != nil {
		return item.Version{}, fmt.Errorf("load item %s: %w", itemID, err)
	}
	if head.Deleted {
		return item.Version{}, item.ErrDeleted
	}
	if expected != "" {
		if err := head.Check(expected); err != nil {
			return item.Version{}, err
		}
	}
	cur, err := s.stores.Items.GetVersion(ctx, itemID, head.Version)
	if err != nil {
		return item.Version{}, fmt.Errorf("load item %s: %w", itemID, err)
	}
	c, err := loadContent(ctx, s.stores, cur.Value.ModelID, cur.Value.SchemaID)
	if err != nil {
		return item.Version{}, err
	}

	next, err := mutate(c, cur.Value.Normalize(c.schema, c.groups))
	if err != nil {
		return item.Version{}, err
	}
	next.UpdatedBy = userID

	if a == item.ActionUpdate && c.hasUnique() {
		unlockModel := s.modelLocks.lock(c.model.ID)
		defer unlockModel()
	}
	return s.commit(ctx, c, head, cur.Value, next, a)
}

// commit checks next and appends it as the version after head.
func (s *ItemService) commit(ctx context.Context, c *content, head item.Head, current, next item.Item, a item.Action) (item.Version, error) {
	if err := next.CheckConsistency(c.schema, c.groups); err != nil {
		return item.Version{}, err
	}
	switch a {
	case item.ActionCreate, item.ActionUpdate:
		if err := checkRequired(c, next); err != nil {
			return item.Version{}, err
		}
		if err := s.checkUnique(ctx, c, next); err != nil {
			return item.Version{}, err
		}
	case item.ActionPublish:
		if err := checkRequired(c, next); err != nil {
			return item.Version{}, err
		}
	}

	v, refs, err := item.Commit(head, current, next, a, s.ids.New(), s.clock.Now())
	if err != nil {
		return item.Version{}, err
	}
	if err := s.stores.Items.Append(ctx, head.Version, v, refs); err != nil {
		return item.Version{}, err
	}
	s.logger.Info().
		Str("item_id", v.ItemID).
		Str("version", v.ID).
		Str("action", string(a)).
		Str("status", string(v.Value.Status)).
		Msg("item version appended")
	return v, nil
}

// -----------------------------------------------------------------------------
// Reads
// -----------------------------------------------------------------------------

// Get returns the latest version of an item.
func (s *ItemService) Get(ctx context.Context, itemID string) (item.Version, error) {
	return s.stores.Items.Get(ctx, itemID, item.RefLatest)
}

// GetAt returns the version a ref name or version id designates.
func (s *ItemService) GetAt(ctx context.Context, itemID, at string) (item.Version, error) {
	switch at {
	case "", item.RefLatest:
		return s.stores.Items.Get(ctx, itemID, item.RefLatest)
	case item.RefPublished:
		return s.stores.Items.Get(ctx, itemID, item.RefPublished)
	}
	return s.stores.Items.GetVersion(ctx, itemID, at)
}

// History returns every version of an item, oldest first.
func (s *ItemService) History(ctx context.Context, itemID string) ([]item.Version, error) {
	return s.stores.Items.History(ctx, itemID)
}

// Search validates the filter and sort against the model's schemas and
// returns one page of matching items.
func (s *ItemService) Search(ctx context.Context, in SearchInput) (ports.Page, error) {
	ref := in.Ref
	switch ref {
	case "":
		ref = item.RefLatest
	case item.RefLatest, item.RefPublished:
	default:
		return ports.Page{}, fmt.Errorf("%w: %s", ErrUnknownRef, ref)
	}

	c, err := loadContent(ctx, s.stores, in.ModelID, "")
	if err != nil {
		return ports.Page{}, err
	}
	if in.Metadata {
		if !c.model.HasMetadata() {
			return ports.Page{}, ErrNoMetadataSchema
		}
		if c, err = loadContent(ctx, s.stores, in.ModelID, c.model.MetadataSchemaID); err != nil {
			return ports.Page{}, err
		}
	}
	candidate := view.View{Name: "search", ModelID: c.model.ID, Sort: in.Sort, Filter: in.Filter}
	if err := view.Validate(candidate, c.resolver()); err != nil {
		return ports.Page{}, err
	}

	start := time.Now()
	page, err := s.stores.Items.Search(ctx, ports.Query{
		ModelID:   c.model.ID,
		SchemaID:  c.schema.ID,
		Ref:       ref,
		Filter:    in.Filter,
		Sort:      in.Sort,
		PageToken: in.PageToken,
		PageSize:  s.pageSize(in.PageSize),
	})
	s.rec.Search(ref, time.Since(start))
	if err != nil {
		return ports.Page{}, fmt.Errorf("search items: %w", err)
	}
	return page, nil
}

// LookupByModel pages through a model's items at a ref.
func (s *ItemService) LookupByModel(ctx context.Context, modelID, ref, pageToken string, pageSize int) (ports.Page, error) {
	return s.Search(ctx, SearchInput{ModelID: modelID, Ref: ref, PageToken: pageToken, PageSize: pageSize})
}

// -----------------------------------------------------------------------------
// Checks
// -----------------------------------------------------------------------------

func (s *ItemService) checkMetadata(ctx context.Context, c *content, metadataID string) error {
	if metadataID == "" {
		return nil
	}
	if !c.model.HasMetadata() {
		return ErrNoMetadataSchema
	}
	if c.schema.ID == c.model.MetadataSchemaID {
		return fmt.Errorf("%w: metadata items have no metadata", ErrNotMetadata)
	}
	v, err := s.stores.Items.Get(ctx, metadataID, item.RefLatest)
	if err != nil {
		return fmt.Errorf("load metadata item %s: %w", metadataID, err)
	}
	if v.Value.ModelID != c.model.ID || v.Value.SchemaID != c.model.MetadataSchemaID {
		return fmt.Errorf("%w: %s", ErrNotMetadata, metadataID)
	}
	return nil
}

// checkUnique rejects values of unique fields that another live item of the
// same schema already holds. The caller holds the model lock.
func (s *ItemService) checkUnique(ctx context.Context, c *content, it item.Item) error {
	for _, f := range c.schema.Fields() {
		if !f.Unique {
			continue
		}
		v, ok := it.Value(f.ID)
		if !ok {
			continue
		}
		for _, x := range v.Items {
			page, err := s.stores.Items.Search(ctx, ports.Query{
				ModelID:  it.ModelID,
				SchemaID: it.SchemaID,
				Filter:   condition.Basic{Field: condition.Field(f.ID), Operator: condition.BasicEquals, Value: x},
				PageSize: 2,
			})
			if err != nil {
				return fmt.Errorf("check unique %s: %w", f.Key, err)
			}
			for _, other := range page.Items {
				if other.ItemID != it.ID {
					return &field.ValidationError{Code: field.CodeNotUnique, Field: f.Key, Message: fmt.Sprintf("value %v is already used by item %s", x, other.ItemID)}
				}
			}
		}
	}
	return nil
}

func required(key string) error {
	return &field.ValidationError{Code: field.CodeRequired, Field: key, Message: "value is required"}
}

// checkRequired rejects missing or empty values of required fields,
// including required members of every group instance.
func checkRequired(c *content, it item.Item) error {
	for _, f := range c.schema.Fields() {
		if gid, ok := f.GroupID(); ok {
			gs, known := c.groups[gid]
			if !known {
				continue
			}
			for _, ig := range it.InstancesFor(f.ID) {
				for _, mf := range gs.Fields() {
					if !mf.Required {
						continue
					}
					if v, ok := it.MemberValue(ig, mf.ID); !ok || v.IsEmpty() {
						return required(f.Key + "." + mf.Key)
					}
				}
			}
			continue
		}
		if !f.Required {
			continue
		}
		if v, ok := it.Value(f.ID); !ok || v.IsEmpty() {
			return required(f.Key)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Input handling
// -----------------------------------------------------------------------------

// applyInput sets instance orders first, so member values can name their
// instances, then encodes every value.
func applyInput(c *content, it item.Item, fields []FieldInput, instances map[string][]string) (item.Item, error) {
	keys := make([]string, 0, len(instances))
	for k := range instances {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		gf, err := groupField(c, k)
		if err != nil {
			return it, err
		}
		if it, err = setInstances(it, gf.ID, instances[k]); err != nil {
			return it, err
		}
	}

	for _, in := range fields {
		f, err := fieldFor(c, it, in)
		if err != nil {
			return it, err
		}
		v, err := value.Encode(f, in.Value)
		if err != nil {
			return it, err
		}
		it = it.Set(f.ID, in.ItemGroupID, v)
	}
	return it, nil
}

// setInstances makes ids the instance list of a group field, dropping the
// values of instances not listed.
func setInstances(it item.Item, groupFieldID string, ids []string) (item.Item, error) {
	var err error
	for _, old := range it.InstancesFor(groupFieldID) {
		if !slices.Contains(ids, old) {
			if it, err = it.RemoveInstance(groupFieldID, old); err != nil {
				return it, err
			}
		}
	}
	current := it.InstancesFor(groupFieldID)
	for _, id := range ids {
		if !slices.Contains(current, id) {
			if it, err = it.AddInstance(groupFieldID, id); err != nil {
				return it, err
			}
			current = append(current, id)
		}
	}
	return it.ReorderInstances(groupFieldID, ids)
}

func groupField(c *content, ref string) (schema.Field, error) {
	gf, ok := c.schema.Lookup(ref)
	if !ok {
		return schema.Field{}, fmt.Errorf("%w: %s", ErrUnknownField, ref)
	}
	if gf.Kind() != field.KindGroup {
		return schema.Field{}, fmt.Errorf("%w: %s", item.ErrNotGroupField, gf.Key)
	}
	return gf, nil
}

// fieldFor resolves the schema field an input addresses: a top-level field,
// or a member of the group owning the input's instance.
func fieldFor(c *content, it item.Item, in FieldInput) (schema.Field, error) {
	if in.ItemGroupID == "" {
		f, ok := c.schema.Lookup(in.Field)
		if !ok {
			return schema.Field{}, fmt.Errorf("%w: %s", ErrUnknownField, in.Field)
		}
		return f, nil
	}
	gfID, ok := it.GroupFieldOf(in.ItemGroupID)
	if !ok {
		return schema.Field{}, fmt.Errorf("%w: %s", item.ErrUnknownInstance, in.ItemGroupID)
	}
	gf, _ := c.schema.Field(gfID)
	gid, _ := gf.GroupID()
	gs, ok := c.groups[gid]
	if !ok {
		return schema.Field{}, fmt.Errorf("%w: group of %s", ErrUnknownField, gf.Key)
	}
	f, ok := gs.Lookup(in.Field)
	if !ok {
		return schema.Field{}, fmt.Errorf("%w: %s.%s", ErrUnknownField, gf.Key, in.Field)
	}
	return f, nil
}

// fillDefaults stores default values for unset top-level fields when top is
// set, and for unset members of the given instances.
func fillDefaults(c *content, it item.Item, top bool, instances []string) item.Item {
	set := func(f schema.Field, itemGroupID string) {
		if _, ok := it.MemberValue(itemGroupID, f.ID); ok {
			return
		}
		if v, ok, err := value.EncodeDefault(f); err == nil && ok {
			it = it.Set(f.ID, itemGroupID, v)
		}
	}
	if top {
		for _, f := range c.schema.Fields() {
			set(f, "")
		}
	}
	for _, ig := range instances {
		gfID, ok := it.GroupFieldOf(ig)
		if !ok {
			continue
		}
		gf, _ := c.schema.Field(gfID)
		gid, _ := gf.GroupID()
		for _, mf := range c.groups[gid].Fields() {
			set(mf, ig)
		}
	}
	return it
}

// allInstances returns every instance id of an item, group fields in id
// order.
func allInstances(it item.Item) []string {
	keys := make([]string, 0, len(it.GroupOrder))
	for k := range it.GroupOrder {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out []string
	for _, k := range keys {
		out = append(out, it.GroupOrder[k]...)
	}
	return out
}
