package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/artpar/cmscore/domain/view"
	"github.com/artpar/cmscore/ports"
)

// ViewStore is an in-memory implementation of ports.ViewStore.
type ViewStore struct {
	mu    sync.RWMutex
	views map[string]view.View
}

// NewViewStore creates a new in-memory view store.
func NewViewStore() *ViewStore {
	return &ViewStore{views: make(map[string]view.View)}
}

// Get retrieves a view by ID.
func (s *ViewStore) Get(ctx context.Context, id string) (view.View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.views[id]
	if !ok {
		return view.View{}, ports.ErrNotFound
	}
	return v, nil
}

// ListByModel returns a model's views by order, then name.
func (s *ViewStore) ListByModel(ctx context.Context, modelID string) ([]view.View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []view.View
	for _, v := range s.views {
		if v.ModelID == modelID {
			result = append(result, v)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Order != result[j].Order {
			return result[i].Order < result[j].Order
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}

// Create stores a new view.
func (s *ViewStore) Create(ctx context.Context, v view.View) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.views[v.ID]; ok {
		return ports.ErrDuplicate
	}
	s.views[v.ID] = v
	return nil
}

// Update replaces an existing view.
func (s *ViewStore) Update(ctx context.Context, v view.View) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.views[v.ID]; !ok {
		return ports.ErrNotFound
	}
	s.views[v.ID] = v
	return nil
}

// Delete removes a view.
func (s *ViewStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.views[id]; !ok {
		return ports.ErrNotFound
	}
	delete(s.views, id)
	return nil
}

// Ensure interface compliance.
var _ ports.ViewStore = (*ViewStore)(nil)
