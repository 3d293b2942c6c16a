package memory

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/artpar/cmscore/adapters/clock"
	"github.com/artpar/cmscore/adapters/eval"
	"github.com/artpar/cmscore/domain/item"
	"github.com/artpar/cmscore/domain/reference"
	"github.com/artpar/cmscore/ports"
)

// itemRecord is the stored history and refs of one item.
type itemRecord struct {
	modelID  string
	versions []item.Version
	refs     item.Refs
	deleted  bool
}

func (r *itemRecord) head(itemID string) item.Head {
	h := item.Head{ItemID: itemID, Refs: r.refs.Clone(), Deleted: r.deleted}
	if n := len(r.versions); n > 0 {
		h.Version = r.versions[n-1].ID
	}
	return h
}

func (r *itemRecord) version(id string) (item.Version, bool) {
	for _, v := range r.versions {
		if v.ID == id {
			v.Refs = r.refs.Names(id)
			v.Value = v.Value.Clone()
			return v, true
		}
	}
	return item.Version{}, false
}

func (r *itemRecord) at(ref string) (item.Version, bool) {
	if r.deleted {
		return item.Version{}, false
	}
	id, ok := r.refs[ref]
	if !ok {
		return item.Version{}, false
	}
	return r.version(id)
}

// itemShard is a single shard of the item store.
type itemShard struct {
	mu    sync.RWMutex
	items map[string]*itemRecord
}

// ItemStore is a sharded in-memory implementation of ports.ItemStore.
// Writes to one item lock only that item's shard.
type ItemStore struct {
	shards    []*itemShard
	numShards int
	clock     ports.Clock
}

// ItemStoreConfig configures the item store.
type ItemStoreConfig struct {
	NumShards int         // Number of shards (default: 32)
	Clock     ports.Clock // Reference time for relative filters (default: real clock)
}

// NewItemStore creates a new sharded in-memory item store.
func NewItemStore(cfg ItemStoreConfig) *ItemStore {
	if cfg.NumShards <= 0 {
		cfg.NumShards = 32
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	s := &ItemStore{
		shards:    make([]*itemShard, cfg.NumShards),
		numShards: cfg.NumShards,
		clock:     cfg.Clock,
	}
	for i := range s.shards {
		s.shards[i] = &itemShard{items: make(map[string]*itemRecord)}
	}
	return s
}

// getShard returns the shard for an item id.
func (s *ItemStore) getShard(itemID string) *itemShard {
	h := fnv.New32a()
	h.Write([]byte(itemID))
	return s.shards[h.Sum32()%uint32(s.numShards)]
}

// Head returns the current head of an item.
func (s *ItemStore) Head(ctx context.Context, itemID string) (item.Head, error) {
	shard := s.getShard(itemID)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	rec, ok := shard.items[itemID]
	if !ok {
		return item.Head{}, ports.ErrNotFound
	}
	return rec.head(itemID), nil
}

// Append adds a version if the stored head is still expectedHead.
func (s *ItemStore) Append(ctx context.Context, expectedHead string, v item.Version, refs item.Refs) error {
	shard := s.getShard(v.ItemID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	rec, ok := shard.items[v.ItemID]
	if !ok {
		rec = &itemRecord{modelID: v.Value.ModelID}
	}
	head := rec.head(v.ItemID)
	if err := head.Check(expectedHead); err != nil {
		return err
	}

	stored := v
	stored.Refs = nil
	stored.Value = v.Value.Clone()
	rec.versions = append(rec.versions, stored)
	rec.refs = refs.Clone()
	shard.items[v.ItemID] = rec
	return nil
}

// Get returns the version a ref points at.
func (s *ItemStore) Get(ctx context.Context, itemID, ref string) (item.Version, error) {
	shard := s.getShard(itemID)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	rec, ok := shard.items[itemID]
	if !ok {
		return item.Version{}, ports.ErrNotFound
	}
	v, ok := rec.at(ref)
	if !ok {
		return item.Version{}, ports.ErrNotFound
	}
	return v, nil
}

// GetVersion returns one version. Versions of deleted items stay readable.
func (s *ItemStore) GetVersion(ctx context.Context, itemID, versionID string) (item.Version, error) {
	shard := s.getShard(itemID)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	rec, ok := shard.items[itemID]
	if !ok {
		return item.Version{}, ports.ErrNotFound
	}
	v, ok := rec.version(versionID)
	if !ok {
		return item.Version{}, ports.ErrNotFound
	}
	return v, nil
}

// History returns every version of an item, oldest first.
func (s *ItemStore) History(ctx context.Context, itemID string) ([]item.Version, error) {
	shard := s.getShard(itemID)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	rec, ok := shard.items[itemID]
	if !ok {
		return nil, ports.ErrNotFound
	}
	result := make([]item.Version, 0, len(rec.versions))
	for _, v := range rec.versions {
		got, _ := rec.version(v.ID)
		result = append(result, got)
	}
	return result, nil
}

// GetMany returns the versions a ref points at, skipping unresolvable items.
func (s *ItemStore) GetMany(ctx context.Context, itemIDs []string, ref string) ([]item.Version, error) {
	result := make([]item.Version, 0, len(itemIDs))
	for _, id := range itemIDs {
		v, err := s.Get(ctx, id, ref)
		if err == ports.ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return result, nil
}

// Delete tombstones an item. Its history is kept.
func (s *ItemStore) Delete(ctx context.Context, itemID string) error {
	shard := s.getShard(itemID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	rec, ok := shard.items[itemID]
	if !ok || rec.deleted {
		return ports.ErrNotFound
	}
	rec.deleted = true
	return nil
}

// scan calls fn for every live item at ref, one shard at a time.
func (s *ItemStore) scan(ref string, fn func(modelID string, v item.Version)) {
	for _, shard := range s.shards {
		shard.mu.RLock()
		for _, rec := range shard.items {
			if v, ok := rec.at(ref); ok {
				fn(rec.modelID, v)
			}
		}
		shard.mu.RUnlock()
	}
}

// Search filters, sorts and pages a model's items at a ref.
func (s *ItemStore) Search(ctx context.Context, q ports.Query) (ports.Page, error) {
	ref := q.Ref
	if ref == "" {
		ref = item.RefLatest
	}

	var candidates []eval.Candidate
	s.scan(ref, func(modelID string, v item.Version) {
		if modelID == q.ModelID {
			candidates = append(candidates, eval.Candidate{Version: v})
		}
	})
	for i := range candidates {
		candidates[i].Metadata = s.metadata(ctx, candidates[i].Version.Value.MetadataID, ref)
	}
	return eval.Search(candidates, q, s.clock.Now())
}

// metadata loads a metadata item at ref, falling back to its latest version.
func (s *ItemStore) metadata(ctx context.Context, id, ref string) *item.Item {
	if id == "" {
		return nil
	}
	v, err := s.Get(ctx, id, ref)
	if err != nil {
		if v, err = s.Get(ctx, id, item.RefLatest); err != nil {
			return nil
		}
	}
	return &v.Value
}

// IsReferenced reports whether any live item holds targetID in fieldID.
func (s *ItemStore) IsReferenced(ctx context.Context, targetID, fieldID string) (bool, error) {
	found := false
	s.scan(item.RefLatest, func(_ string, v item.Version) {
		if !found && reference.Holds(v.Value, fieldID, targetID) {
			found = true
		}
	})
	return found, nil
}

// Ensure interface compliance.
var _ ports.ItemStore = (*ItemStore)(nil)
