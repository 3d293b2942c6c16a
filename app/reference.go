package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/artpar/cmscore/domain/item"
	"github.com/artpar/cmscore/domain/reference"
	"github.com/artpar/cmscore/ports"
	"github.com/rs/zerolog"
)

// ReferenceService resolves reference fields between items.
type ReferenceService struct {
	stores ports.Stores
	logger zerolog.Logger
}

// NewReferenceService creates a new reference service.
func NewReferenceService(stores ports.Stores, logger zerolog.Logger) *ReferenceService {
	return &ReferenceService{
		stores: stores,
		logger: logger.With().Str("service", "reference").Logger(),
	}
}

// Resolved is one referenced item and the field that holds it. ItemGroupID
// is set when the field is a member of a group instance.
type Resolved struct {
	FieldID     string
	ItemGroupID string
	Item        item.Version
}

// ResolveReferencedItems returns the items it references at ref: top-level
// reference fields in field order then value order, then the references
// held inside group instances in instance order. Targets that are missing,
// deleted, of another model or lack the ref are omitted.
func (s *ReferenceService) ResolveReferencedItems(ctx context.Context, it item.Item, ref string) ([]Resolved, error) {
	if ref == "" {
		ref = item.RefLatest
	}
	c, err := loadContent(ctx, s.stores, it.ModelID, it.SchemaID)
	if err != nil {
		return nil, err
	}

	targets := reference.Targets(c.schema, c.groups, it)
	ids := make([]string, 0, len(targets))
	for _, t := range targets {
		ids = append(ids, t.ItemID)
	}
	found, err := s.stores.Items.GetMany(ctx, ids, ref)
	if err != nil {
		return nil, fmt.Errorf("load referenced items: %w", err)
	}
	byID := make(map[string]item.Version, len(found))
	for _, v := range found {
		byID[v.ItemID] = v
	}

	out := make([]Resolved, 0, len(targets))
	for _, t := range targets {
		v, ok := byID[t.ItemID]
		if !ok {
			continue
		}
		f, _ := c.field(t.FieldID, t.ItemGroupID != "")
		if r, ok := f.Reference(); ok && r.ModelID != v.Value.ModelID {
			continue
		}
		out = append(out, Resolved{FieldID: t.FieldID, ItemGroupID: t.ItemGroupID, Item: v})
	}
	if skipped := len(targets) - len(out); skipped > 0 {
		s.logger.Debug().Str("item_id", it.ID).Int("skipped", skipped).Msg("unresolved references omitted")
	}
	return out, nil
}

// IsReferenced reports whether any live item holds a reference to itemID
// through the bidirectional link that correspondingFieldID belongs to: the
// holding field is the opposite side of that link.
func (s *ReferenceService) IsReferenced(ctx context.Context, itemID, correspondingFieldID string) (bool, error) {
	l, err := s.stores.Schemas.LinkByField(ctx, correspondingFieldID)
	if errors.Is(err, ports.ErrNotFound) {
		return false, fmt.Errorf("field %s: %w", correspondingFieldID, reference.ErrNotBidirectional)
	}
	if err != nil {
		return false, fmt.Errorf("load link: %w", err)
	}
	holder, _ := l.Opposite(correspondingFieldID)
	return s.stores.Items.IsReferenced(ctx, itemID, holder)
}

// ReferencedBy returns the link field through which a live item references
// itemID, if any. Only bidirectional links are considered.
func (s *ReferenceService) ReferencedBy(ctx context.Context, itemID string) (string, bool, error) {
	v, err := s.stores.Items.Get(ctx, itemID, item.RefLatest)
	if err != nil {
		return "", false, err
	}
	return referencedThrough(ctx, s.stores, v.Value.ModelID, itemID)
}
