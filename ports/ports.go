// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/artpar/cmscore/domain/condition"
	"github.com/artpar/cmscore/domain/item"
	"github.com/artpar/cmscore/domain/reference"
	"github.com/artpar/cmscore/domain/schema"
	"github.com/artpar/cmscore/domain/view"
)

// Store errors.
var (
	// ErrNotFound is returned by every store when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a record's id or key is already taken.
	ErrDuplicate = errors.New("already exists")
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// Recorder receives operation outcomes for metrics.
type Recorder interface {
	SchemaOp(op, outcome string)
	ItemOp(action, outcome string)
	Search(ref string, d time.Duration)
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// ModelStore persists models.
type ModelStore interface {
	Get(ctx context.Context, id string) (schema.Model, error)
	GetByKey(ctx context.Context, key string) (schema.Model, error)
	List(ctx context.Context) ([]schema.Model, error)
	Create(ctx context.Context, m schema.Model) error
	Update(ctx context.Context, m schema.Model) error
	Delete(ctx context.Context, id string) error
}

// GroupStore persists groups.
type GroupStore interface {
	Get(ctx context.Context, id string) (schema.Group, error)
	GetByKey(ctx context.Context, key string) (schema.Group, error)
	List(ctx context.Context) ([]schema.Group, error)
	Create(ctx context.Context, g schema.Group) error
	Update(ctx context.Context, g schema.Group) error
	Delete(ctx context.Context, id string) error
}

// SchemaChange is a set of schema writes applied atomically: schemas to save
// (insert or replace), schemas to delete, and link records to put or drop.
type SchemaChange struct {
	Save      []schema.Schema
	Delete    []string
	PutLinks  []reference.Link
	DropLinks []string
}

// SchemaStore persists schemas and the link records of bidirectional
// references.
type SchemaStore interface {
	Get(ctx context.Context, id string) (schema.Schema, error)
	List(ctx context.Context) ([]schema.Schema, error)

	// Apply writes every part of the change or none of it.
	Apply(ctx context.Context, change SchemaChange) error

	// Links returns every link involving a model, as source or target.
	Links(ctx context.Context, modelID string) ([]reference.Link, error)
	// LinkByField returns the link involving a field.
	LinkByField(ctx context.Context, fieldID string) (reference.Link, error)
}

// Query selects items of a model at a ref. SchemaID, when set, restricts
// the results to items of that schema, separating content items from the
// model's metadata items.
type Query struct {
	ModelID   string
	SchemaID  string
	Ref       string // item.RefLatest when empty
	Filter    condition.Condition
	Sort      *view.Sort
	PageToken string
	PageSize  int
}

// Page is one page of search results.
type Page struct {
	Items       []item.Version
	TotalCount  int
	NextToken   string
	PrevToken   string
	HasNext     bool
	HasPrevious bool
}

// ItemStore persists item versions and refs.
//
// Append is the only write path: it adds an immutable version and replaces
// the item's refs, provided the stored head is still expectedHead (empty
// for a new item). Otherwise it returns an *item.ConflictError and
// changes nothing.
type ItemStore interface {
	Head(ctx context.Context, itemID string) (item.Head, error)
	Append(ctx context.Context, expectedHead string, v item.Version, refs item.Refs) error

	// Get returns the version a ref points at.
	Get(ctx context.Context, itemID, ref string) (item.Version, error)
	GetVersion(ctx context.Context, itemID, versionID string) (item.Version, error)
	// History returns every version, oldest first. Deleted items keep theirs.
	History(ctx context.Context, itemID string) ([]item.Version, error)
	// GetMany returns the versions a ref points at for several items,
	// skipping items that are missing, deleted or lack the ref.
	GetMany(ctx context.Context, itemIDs []string, ref string) ([]item.Version, error)

	// Delete tombstones an item.
	Delete(ctx context.Context, itemID string) error

	Search(ctx context.Context, q Query) (Page, error)

	// IsReferenced reports whether any live item's latest version holds
	// targetID in the reference field fieldID.
	IsReferenced(ctx context.Context, targetID, fieldID string) (bool, error)
}

// ViewStore persists views.
type ViewStore interface {
	Get(ctx context.Context, id string) (view.View, error)
	ListByModel(ctx context.Context, modelID string) ([]view.View, error)
	Create(ctx context.Context, v view.View) error
	Update(ctx context.Context, v view.View) error
	Delete(ctx context.Context, id string) error
}

// Stores bundles every store for wiring.
type Stores struct {
	Models  ModelStore
	Groups  GroupStore
	Schemas SchemaStore
	Items   ItemStore
	Views   ViewStore
}
