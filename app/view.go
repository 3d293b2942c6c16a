package app

import (
	"context"
	"fmt"

	"github.com/artpar/cmscore/domain/item"
	"github.com/artpar/cmscore/domain/view"
	"github.com/artpar/cmscore/ports"
	"github.com/rs/zerolog"
)

// ViewService manages saved views and runs their searches.
type ViewService struct {
	stores ports.Stores
	items  *ItemService
	ids    ports.IDGenerator
	clock  ports.Clock
	logger zerolog.Logger
}

// NewViewService creates a new view service. Searches run through items.
func NewViewService(stores ports.Stores, items *ItemService, ids ports.IDGenerator, clock ports.Clock, logger zerolog.Logger) *ViewService {
	return &ViewService{
		stores: stores,
		items:  items,
		ids:    ids,
		clock:  clock,
		logger: logger.With().Str("service", "view").Logger(),
	}
}

// Validate checks a view against its model's schemas without saving it.
func (s *ViewService) Validate(ctx context.Context, v view.View) error {
	if v.ModelID == "" {
		return view.ErrMissingModel
	}
	c, err := loadContent(ctx, s.stores, v.ModelID, "")
	if err != nil {
		return err
	}
	return view.Validate(v, c.resolver())
}

// Create validates and stores a new view.
func (s *ViewService) Create(ctx context.Context, v view.View) (view.View, error) {
	if err := s.Validate(ctx, v); err != nil {
		s.logger.Warn().Err(err).Str("model_id", v.ModelID).Msg("view rejected")
		return view.View{}, err
	}
	now := s.clock.Now()
	v.ID = s.ids.New()
	v.CreatedAt = now
	v.UpdatedAt = now
	if err := s.stores.Views.Create(ctx, v); err != nil {
		return view.View{}, fmt.Errorf("create view: %w", err)
	}
	s.logger.Info().Str("view_id", v.ID).Str("model_id", v.ModelID).Msg("view created")
	return v, nil
}

// Get returns a view by id.
func (s *ViewService) Get(ctx context.Context, id string) (view.View, error) {
	return s.stores.Views.Get(ctx, id)
}

// ListByModel returns a model's views in display order.
func (s *ViewService) ListByModel(ctx context.Context, modelID string) ([]view.View, error) {
	return s.stores.Views.ListByModel(ctx, modelID)
}

// Update replaces a view's definition. Its id, model and creation
// attributes are kept.
func (s *ViewService) Update(ctx context.Context, v view.View) (view.View, error) {
	prev, err := s.stores.Views.Get(ctx, v.ID)
	if err != nil {
		return view.View{}, err
	}
	v.ModelID = prev.ModelID
	v.CreatedBy = prev.CreatedBy
	v.CreatedAt = prev.CreatedAt
	if err := s.Validate(ctx, v); err != nil {
		s.logger.Warn().Err(err).Str("view_id", v.ID).Msg("view rejected")
		return view.View{}, err
	}
	v.UpdatedAt = s.clock.Now()
	if err := s.stores.Views.Update(ctx, v); err != nil {
		return view.View{}, fmt.Errorf("update view: %w", err)
	}
	return v, nil
}

// Delete removes a view.
func (s *ViewService) Delete(ctx context.Context, id string) error {
	if err := s.stores.Views.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("view_id", id).Msg("view deleted")
	return nil
}

// Search returns one page of the view's items at ref, filtered and sorted
// the way the view says. The view is revalidated first, so a view broken by
// a later schema change fails with a malformed condition error.
func (s *ViewService) Search(ctx context.Context, viewID, ref, pageToken string, pageSize int) (ports.Page, error) {
	v, err := s.stores.Views.Get(ctx, viewID)
	if err != nil {
		return ports.Page{}, err
	}
	if ref == "" {
		ref = item.RefLatest
	}
	sort := v.EffectiveSort()
	return s.items.Search(ctx, SearchInput{
		ModelID:   v.ModelID,
		Ref:       ref,
		Filter:    v.Filter,
		Sort:      &sort,
		PageToken: pageToken,
		PageSize:  pageSize,
	})
}
