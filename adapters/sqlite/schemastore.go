package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/artpar/cmscore/domain/reference"
	"github.com/artpar/cmscore/domain/schema"
	"github.com/artpar/cmscore/pkg/wire"
	"github.com/artpar/cmscore/ports"
)

// SchemaStore implements ports.SchemaStore using SQLite. The fields of a
// schema are one JSON document.
type SchemaStore struct {
	db *DB
}

// NewSchemaStore creates a new SQLite schema store.
func NewSchemaStore(db *DB) *SchemaStore {
	return &SchemaStore{db: db}
}

// Get retrieves a schema by ID.
func (s *SchemaStore) Get(ctx context.Context, id string) (schema.Schema, error) {
	var fields string
	err := s.db.QueryRowContext(ctx, `SELECT fields FROM schemas WHERE id = ?`, id).Scan(&fields)
	if err != nil {
		return schema.Schema{}, notFound(err)
	}
	return decodeSchema(id, fields)
}

// List returns all schemas ordered by ID.
func (s *SchemaStore) List(ctx context.Context) ([]schema.Schema, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, fields FROM schemas ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []schema.Schema
	for rows.Next() {
		var id, fields string
		if err := rows.Scan(&id, &fields); err != nil {
			return nil, err
		}
		sc, err := decodeSchema(id, fields)
		if err != nil {
			return nil, err
		}
		result = append(result, sc)
	}
	return result, rows.Err()
}

// Apply writes a schema change in one transaction.
func (s *SchemaStore) Apply(ctx context.Context, change ports.SchemaChange) error {
	return s.db.inTx(ctx, func(tx *sql.Tx) error {
		for _, id := range change.DropLinks {
			result, err := tx.ExecContext(ctx, `DELETE FROM reference_links WHERE id = ?`, id)
			if err != nil {
				return err
			}
			if err := affected(result); err != nil {
				return err
			}
		}
		for _, sc := range change.Save {
			fields, err := encodeDoc(wire.SchemaToDoc(sc).Fields)
			if err != nil {
				return fmt.Errorf("encode schema %s: %w", sc.ID, err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO schemas (id, fields, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
				ON CONFLICT(id) DO UPDATE SET fields = excluded.fields, updated_at = excluded.updated_at
			`, sc.ID, fields)
			if err != nil {
				return err
			}
		}
		for _, id := range change.Delete {
			if _, err := tx.ExecContext(ctx, `DELETE FROM schemas WHERE id = ?`, id); err != nil {
				return err
			}
		}
		for _, l := range change.PutLinks {
			_, err := tx.ExecContext(ctx, `
				INSERT OR REPLACE INTO reference_links (id, source_model_id, source_field_id, target_model_id, target_field_id)
				VALUES (?, ?, ?, ?, ?)
			`, l.ID, l.SourceModelID, l.SourceFieldID, l.TargetModelID, l.TargetFieldID)
			if err != nil {
				return duplicate(err)
			}
		}
		return nil
	})
}

const linkColumns = `id, source_model_id, source_field_id, target_model_id, target_field_id`

// Links returns every link involving a model.
func (s *SchemaStore) Links(ctx context.Context, modelID string) ([]reference.Link, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+linkColumns+` FROM reference_links
		WHERE source_model_id = ? OR target_model_id = ?
		ORDER BY id
	`, modelID, modelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []reference.Link
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, l)
	}
	return result, rows.Err()
}

// LinkByField returns the link involving a field.
func (s *SchemaStore) LinkByField(ctx context.Context, fieldID string) (reference.Link, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+linkColumns+` FROM reference_links
		WHERE source_field_id = ? OR target_field_id = ?
		LIMIT 1
	`, fieldID, fieldID)
	return scanLink(row)
}

func scanLink(row scanner) (reference.Link, error) {
	var l reference.Link
	if err := row.Scan(&l.ID, &l.SourceModelID, &l.SourceFieldID, &l.TargetModelID, &l.TargetFieldID); err != nil {
		return reference.Link{}, notFound(err)
	}
	return l, nil
}

func decodeSchema(id, fields string) (schema.Schema, error) {
	doc := wire.SchemaDoc{ID: id}
	if err := decodeDoc(fields, &doc.Fields); err != nil {
		return schema.Schema{}, fmt.Errorf("decode schema %s: %w", id, err)
	}
	return doc.Schema()
}

// Ensure interface compliance.
var _ ports.SchemaStore = (*SchemaStore)(nil)
