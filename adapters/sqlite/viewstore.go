package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/artpar/cmscore/domain/view"
	"github.com/artpar/cmscore/pkg/wire"
	"github.com/artpar/cmscore/ports"
)

// ViewStore implements ports.ViewStore using SQLite.
type ViewStore struct {
	db *DB
}

// NewViewStore creates a new SQLite view store.
func NewViewStore(db *DB) *ViewStore {
	return &ViewStore{db: db}
}

// Get retrieves a view by ID.
func (s *ViewStore) Get(ctx context.Context, id string) (view.View, error) {
	var doc string
	if err := s.db.QueryRowContext(ctx, `SELECT doc FROM views WHERE id = ?`, id).Scan(&doc); err != nil {
		return view.View{}, notFound(err)
	}
	return decodeView(doc)
}

// ListByModel returns a model's views by order, then name.
func (s *ViewStore) ListByModel(ctx context.Context, modelID string) ([]view.View, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc FROM views WHERE model_id = ? ORDER BY sort_order, name
	`, modelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []view.View
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		v, err := decodeView(doc)
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return result, rows.Err()
}

// Create stores a new view.
func (s *ViewStore) Create(ctx context.Context, v view.View) error {
	now := time.Now().UTC()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}
	if v.UpdatedAt.IsZero() {
		v.UpdatedAt = now
	}
	doc, err := encodeDoc(wire.ViewToDoc(v))
	if err != nil {
		return fmt.Errorf("encode view %s: %w", v.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO views (id, model_id, name, sort_order, doc, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, v.ID, v.ModelID, v.Name, v.Order, doc, v.CreatedAt, v.UpdatedAt)
	return duplicate(err)
}

// Update replaces an existing view.
func (s *ViewStore) Update(ctx context.Context, v view.View) error {
	if v.UpdatedAt.IsZero() {
		v.UpdatedAt = time.Now().UTC()
	}
	doc, err := encodeDoc(wire.ViewToDoc(v))
	if err != nil {
		return fmt.Errorf("encode view %s: %w", v.ID, err)
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE views SET model_id = ?, name = ?, sort_order = ?, doc = ?, updated_at = ?
		WHERE id = ?
	`, v.ModelID, v.Name, v.Order, doc, v.UpdatedAt, v.ID)
	if err != nil {
		return err
	}
	return affected(result)
}

// Delete removes a view.
func (s *ViewStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM views WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affected(result)
}

func decodeView(data string) (view.View, error) {
	var doc wire.ViewDoc
	if err := decodeDoc(data, &doc); err != nil {
		return view.View{}, fmt.Errorf("decode view: %w", err)
	}
	return doc.View()
}

// Ensure interface compliance.
var _ ports.ViewStore = (*ViewStore)(nil)
