package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/artpar/cmscore/domain/reference"
	"github.com/artpar/cmscore/domain/schema"
	"github.com/artpar/cmscore/ports"
)

// SchemaStore is an in-memory implementation of ports.SchemaStore.
type SchemaStore struct {
	mu      sync.RWMutex
	schemas map[string]schema.Schema
	links   map[string]reference.Link
}

// NewSchemaStore creates a new in-memory schema store.
func NewSchemaStore() *SchemaStore {
	return &SchemaStore{
		schemas: make(map[string]schema.Schema),
		links:   make(map[string]reference.Link),
	}
}

// Get retrieves a schema by ID.
func (s *SchemaStore) Get(ctx context.Context, id string) (schema.Schema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sc, ok := s.schemas[id]
	if !ok {
		return schema.Schema{}, ports.ErrNotFound
	}
	return sc, nil
}

// List returns all schemas ordered by ID.
func (s *SchemaStore) List(ctx context.Context) ([]schema.Schema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]schema.Schema, 0, len(s.schemas))
	for _, sc := range s.schemas {
		result = append(result, sc)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Apply writes a schema change under a single lock. Schemas are values, so
// nothing can be half applied.
func (s *SchemaStore) Apply(ctx context.Context, change ports.SchemaChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range change.DropLinks {
		if _, ok := s.links[id]; !ok {
			return ports.ErrNotFound
		}
	}
	for _, sc := range change.Save {
		s.schemas[sc.ID] = sc
	}
	for _, id := range change.Delete {
		delete(s.schemas, id)
	}
	for _, id := range change.DropLinks {
		delete(s.links, id)
	}
	for _, l := range change.PutLinks {
		s.links[l.ID] = l
	}
	return nil
}

// Links returns every link involving a model.
func (s *SchemaStore) Links(ctx context.Context, modelID string) ([]reference.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []reference.Link
	for _, l := range s.links {
		if l.SourceModelID == modelID || l.TargetModelID == modelID {
			result = append(result, l)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// LinkByField returns the link involving a field.
func (s *SchemaStore) LinkByField(ctx context.Context, fieldID string) (reference.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, l := range s.links {
		if l.Involves(fieldID) {
			return l, nil
		}
	}
	return reference.Link{}, ports.ErrNotFound
}

// Ensure interface compliance.
var _ ports.SchemaStore = (*SchemaStore)(nil)
