package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/artpar/cmscore/domain/schema"
	"github.com/artpar/cmscore/ports"
)

// ModelStore implements ports.ModelStore using SQLite.
type ModelStore struct {
	db *DB
}

// NewModelStore creates a new SQLite model store.
func NewModelStore(db *DB) *ModelStore {
	return &ModelStore{db: db}
}

const modelColumns = `id, key, name, description, schema_id, metadata_schema_id, created_at, updated_at`

// Get retrieves a model by ID.
func (s *ModelStore) Get(ctx context.Context, id string) (schema.Model, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+modelColumns+` FROM models WHERE id = ?`, id)
	return scanModel(row)
}

// GetByKey retrieves a model by key.
func (s *ModelStore) GetByKey(ctx context.Context, key string) (schema.Model, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+modelColumns+` FROM models WHERE key = ?`, key)
	return scanModel(row)
}

// List returns all models ordered by key.
func (s *ModelStore) List(ctx context.Context) ([]schema.Model, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+modelColumns+` FROM models ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var models []schema.Model
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	return models, rows.Err()
}

// Create stores a new model.
func (s *ModelStore) Create(ctx context.Context, m schema.Model) error {
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = now
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO models (`+modelColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.Key, m.Name, m.Description, m.SchemaID, nullString(m.MetadataSchemaID), m.CreatedAt, m.UpdatedAt)
	return duplicate(err)
}

// Update modifies an existing model.
func (s *ModelStore) Update(ctx context.Context, m schema.Model) error {
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = time.Now().UTC()
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE models
		SET key = ?, name = ?, description = ?, schema_id = ?, metadata_schema_id = ?, updated_at = ?
		WHERE id = ?
	`, m.Key, m.Name, m.Description, m.SchemaID, nullString(m.MetadataSchemaID), m.UpdatedAt, m.ID)
	if err != nil {
		return duplicate(err)
	}
	return affected(result)
}

// Delete removes a model.
func (s *ModelStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM models WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affected(result)
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanModel(row scanner) (schema.Model, error) {
	var m schema.Model
	var metadataSchemaID sql.NullString
	err := row.Scan(&m.ID, &m.Key, &m.Name, &m.Description, &m.SchemaID, &metadataSchemaID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return schema.Model{}, notFound(err)
	}
	m.MetadataSchemaID = metadataSchemaID.String
	return m, nil
}

// GroupStore implements ports.GroupStore using SQLite.
type GroupStore struct {
	db *DB
}

// NewGroupStore creates a new SQLite group store.
func NewGroupStore(db *DB) *GroupStore {
	return &GroupStore{db: db}
}

const groupColumns = `id, key, name, description, schema_id, created_at, updated_at`

// Get retrieves a group by ID.
func (s *GroupStore) Get(ctx context.Context, id string) (schema.Group, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+groupColumns+` FROM groups WHERE id = ?`, id)
	return scanGroup(row)
}

// GetByKey retrieves a group by key.
func (s *GroupStore) GetByKey(ctx context.Context, key string) (schema.Group, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+groupColumns+` FROM groups WHERE key = ?`, key)
	return scanGroup(row)
}

// List returns all groups ordered by key.
func (s *GroupStore) List(ctx context.Context) ([]schema.Group, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+groupColumns+` FROM groups ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []schema.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// Create stores a new group.
func (s *GroupStore) Create(ctx context.Context, g schema.Group) error {
	now := time.Now().UTC()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	if g.UpdatedAt.IsZero() {
		g.UpdatedAt = now
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO groups (`+groupColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, g.ID, g.Key, g.Name, g.Description, g.SchemaID, g.CreatedAt, g.UpdatedAt)
	return duplicate(err)
}

// Update modifies an existing group.
func (s *GroupStore) Update(ctx context.Context, g schema.Group) error {
	if g.UpdatedAt.IsZero() {
		g.UpdatedAt = time.Now().UTC()
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE groups
		SET key = ?, name = ?, description = ?, schema_id = ?, updated_at = ?
		WHERE id = ?
	`, g.Key, g.Name, g.Description, g.SchemaID, g.UpdatedAt, g.ID)
	if err != nil {
		return duplicate(err)
	}
	return affected(result)
}

// Delete removes a group.
func (s *GroupStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM groups WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affected(result)
}

func scanGroup(row scanner) (schema.Group, error) {
	var g schema.Group
	err := row.Scan(&g.ID, &g.Key, &g.Name, &g.Description, &g.SchemaID, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return schema.Group{}, notFound(err)
	}
	return g, nil
}

// Ensure interface compliance.
var (
	_ ports.ModelStore = (*ModelStore)(nil)
	_ ports.GroupStore = (*GroupStore)(nil)
)
