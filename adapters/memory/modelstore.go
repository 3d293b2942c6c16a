// Package memory provides in-memory implementations of the storage ports,
// used by tests and by the ephemeral "memory" database driver.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/artpar/cmscore/domain/schema"
	"github.com/artpar/cmscore/ports"
)

// ModelStore is an in-memory implementation of ports.ModelStore.
type ModelStore struct {
	mu     sync.RWMutex
	models map[string]schema.Model
}

// NewModelStore creates a new in-memory model store.
func NewModelStore() *ModelStore {
	return &ModelStore{models: make(map[string]schema.Model)}
}

// Get retrieves a model by ID.
func (s *ModelStore) Get(ctx context.Context, id string) (schema.Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.models[id]
	if !ok {
		return schema.Model{}, ports.ErrNotFound
	}
	return m, nil
}

// GetByKey retrieves a model by key.
func (s *ModelStore) GetByKey(ctx context.Context, key string) (schema.Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.models {
		if m.Key == key {
			return m, nil
		}
	}
	return schema.Model{}, ports.ErrNotFound
}

// List returns all models ordered by key.
func (s *ModelStore) List(ctx context.Context) ([]schema.Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]schema.Model, 0, len(s.models))
	for _, m := range s.models {
		result = append(result, m)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

// Create stores a new model.
func (s *ModelStore) Create(ctx context.Context, m schema.Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.models[m.ID]; ok {
		return ports.ErrDuplicate
	}
	for _, other := range s.models {
		if other.Key == m.Key {
			return ports.ErrDuplicate
		}
	}
	s.models[m.ID] = m
	return nil
}

// Update replaces an existing model.
func (s *ModelStore) Update(ctx context.Context, m schema.Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.models[m.ID]; !ok {
		return ports.ErrNotFound
	}
	s.models[m.ID] = m
	return nil
}

// Delete removes a model.
func (s *ModelStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.models[id]; !ok {
		return ports.ErrNotFound
	}
	delete(s.models, id)
	return nil
}

// GroupStore is an in-memory implementation of ports.GroupStore.
type GroupStore struct {
	mu     sync.RWMutex
	groups map[string]schema.Group
}

// NewGroupStore creates a new in-memory group store.
func NewGroupStore() *GroupStore {
	return &GroupStore{groups: make(map[string]schema.Group)}
}

// Get retrieves a group by ID.
func (s *GroupStore) Get(ctx context.Context, id string) (schema.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[id]
	if !ok {
		return schema.Group{}, ports.ErrNotFound
	}
	return g, nil
}

// GetByKey retrieves a group by key.
func (s *GroupStore) GetByKey(ctx context.Context, key string) (schema.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, g := range s.groups {
		if g.Key == key {
			return g, nil
		}
	}
	return schema.Group{}, ports.ErrNotFound
}

// List returns all groups ordered by key.
func (s *GroupStore) List(ctx context.Context) ([]schema.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]schema.Group, 0, len(s.groups))
	for _, g := range s.groups {
		result = append(result, g)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

// Create stores a new group.
func (s *GroupStore) Create(ctx context.Context, g schema.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.groups[g.ID]; ok {
		return ports.ErrDuplicate
	}
	for _, other := range s.groups {
		if other.Key == g.Key {
			return ports.ErrDuplicate
		}
	}
	s.groups[g.ID] = g
	return nil
}

// Update replaces an existing group.
func (s *GroupStore) Update(ctx context.Context, g schema.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.groups[g.ID]; !ok {
		return ports.ErrNotFound
	}
	s.groups[g.ID] = g
	return nil
}

// Delete removes a group.
func (s *GroupStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.groups[id]; !ok {
		return ports.ErrNotFound
	}
	delete(s.groups, id)
	return nil
}

// Ensure interface compliance.
var (
	_ ports.ModelStore = (*ModelStore)(nil)
	_ ports.GroupStore = (*GroupStore)(nil)
)
