package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/artpar/cmscore/adapters/clock"
	"github.com/artpar/cmscore/adapters/eval"
	"github.com/artpar/cmscore/domain/item"
	"github.com/artpar/cmscore/domain/reference"
	"github.com/artpar/cmscore/pkg/wire"
	"github.com/artpar/cmscore/ports"
)

// ItemStore implements ports.ItemStore using SQLite. Each version's item
// snapshot is stored as a JSON document; filters and sorts are evaluated
// over the decoded snapshots.
type ItemStore struct {
	db    *DB
	clock ports.Clock
}

// NewItemStore creates a new SQLite item store. A nil clock uses real time.
func NewItemStore(db *DB, c ports.Clock) *ItemStore {
	if c == nil {
		c = clock.Real{}
	}
	return &ItemStore{db: db, clock: c}
}

// Head returns the current head of an item.
func (s *ItemStore) Head(ctx context.Context, itemID string) (item.Head, error) {
	return head(ctx, s.db, itemID)
}

func head(ctx context.Context, q querier, itemID string) (item.Head, error) {
	h := item.Head{ItemID: itemID}
	var deleted int
	err := q.QueryRowContext(ctx, `SELECT head_version, deleted FROM items WHERE id = ?`, itemID).
		Scan(&h.Version, &deleted)
	if err != nil {
		return item.Head{}, notFound(err)
	}
	h.Deleted = deleted != 0
	refs, err := loadRefs(ctx, q, itemID)
	if err != nil {
		return item.Head{}, err
	}
	h.Refs = refs
	return h, nil
}

func loadRefs(ctx context.Context, q querier, itemID string) (item.Refs, error) {
	rows, err := q.QueryContext(ctx, `SELECT name, version_id FROM item_refs WHERE item_id = ?`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refs := item.Refs{}
	for rows.Next() {
		var name, versionID string
		if err := rows.Scan(&name, &versionID); err != nil {
			return nil, err
		}
		refs[name] = versionID
	}
	return refs, rows.Err()
}

// Append adds a version if the stored head is still expectedHead.
func (s *ItemStore) Append(ctx context.Context, expectedHead string, v item.Version, refs item.Refs) error {
	parents, err := encodeDoc(nonNilStrings(v.Parents))
	if err != nil {
		return err
	}
	value, err := encodeDoc(wire.ItemToDoc(v.Value))
	if err != nil {
		return fmt.Errorf("encode item %s: %w", v.ItemID, err)
	}

	return s.db.inTx(ctx, func(tx *sql.Tx) error {
		current, err := head(ctx, tx, v.ItemID)
		switch {
		case errors.Is(err, ports.ErrNotFound):
			current = item.Head{ItemID: v.ItemID}
		case err != nil:
			return err
		}
		if err := current.Check(expectedHead); err != nil {
			return err
		}

		if current.Exists() {
			_, err = tx.ExecContext(ctx, `
				UPDATE items SET head_version = ?, version_count = version_count + 1, updated_at = ?
				WHERE id = ?
			`, v.ID, v.CreatedAt, v.ItemID)
		} else {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO items (id, model_id, head_version, version_count, created_at, updated_at)
				VALUES (?, ?, ?, 1, ?, ?)
			`, v.ItemID, v.Value.ModelID, v.ID, v.CreatedAt, v.CreatedAt)
		}
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO item_versions (item_id, id, seq, parents, action, value, created_at)
			VALUES (?, ?, (SELECT version_count FROM items WHERE id = ?), ?, ?, ?, ?)
		`, v.ItemID, v.ID, v.ItemID, parents, string(v.Action), value, v.CreatedAt)
		if err != nil {
			return duplicate(err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM item_refs WHERE item_id = ?`, v.ItemID); err != nil {
			return err
		}
		for name, versionID := range refs {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO item_refs (item_id, name, version_id) VALUES (?, ?, ?)
			`, v.ItemID, name, versionID)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

const versionColumns = `v.id, v.item_id, v.parents, v.action, v.value, v.created_at`

// Get returns the version a ref points at.
func (s *ItemStore) Get(ctx context.Context, itemID, ref string) (item.Version, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+versionColumns+`
		FROM item_refs r
		JOIN items i ON i.id = r.item_id
		JOIN item_versions v ON v.item_id = r.item_id AND v.id = r.version_id
		WHERE r.item_id = ? AND r.name = ? AND i.deleted = 0
	`, itemID, ref)
	v, err := scanVersion(row)
	if err != nil {
		return item.Version{}, err
	}
	return s.withRefs(ctx, v)
}

// GetVersion returns one version. Versions of deleted items stay readable.
func (s *ItemStore) GetVersion(ctx context.Context, itemID, versionID string) (item.Version, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+versionColumns+`
		FROM item_versions v
		WHERE v.item_id = ? AND v.id = ?
	`, itemID, versionID)
	v, err := scanVersion(row)
	if err != nil {
		return item.Version{}, err
	}
	return s.withRefs(ctx, v)
}

// History returns every version of an item, oldest first.
func (s *ItemStore) History(ctx context.Context, itemID string) ([]item.Version, error) {
	refs, err := loadRefs(ctx, s.db, itemID)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+versionColumns+`
		FROM item_versions v
		WHERE v.item_id = ?
		ORDER BY v.seq
	`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []item.Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		v.Refs = refs.Names(v.ID)
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, ports.ErrNotFound
	}
	return result, nil
}

// GetMany returns the versions a ref points at, skipping unresolvable items.
func (s *ItemStore) GetMany(ctx context.Context, itemIDs []string, ref string) ([]item.Version, error) {
	result := make([]item.Version, 0, len(itemIDs))
	for _, id := range itemIDs {
		v, err := s.Get(ctx, id, ref)
		if errors.Is(err, ports.ErrNotFound) {
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
	result, err := s.db.ExecContext(ctx, `
		UPDATE items SET deleted = 1, updated_at = ? WHERE id = ? AND deleted = 0
	`, s.clock.Now(), itemID)
	if err != nil {
		return err
	}
	return affected(result)
}

// atRef returns the live versions at ref, restricted to a model when
// modelID is non-empty.
func (s *ItemStore) atRef(ctx context.Context, modelID, ref string) ([]item.Version, error) {
	query := `
		SELECT ` + versionColumns + `
		FROM item_refs r
		JOIN items i ON i.id = r.item_id
		JOIN item_versions v ON v.item_id = r.item_id AND v.id = r.version_id
		WHERE r.name = ? AND i.deleted = 0`
	args := []any{ref}
	if modelID != "" {
		query += ` AND i.model_id = ?`
		args = append(args, modelID)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []item.Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return result, rows.Err()
}

// Search filters, sorts and pages a model's items at a ref.
func (s *ItemStore) Search(ctx context.Context, q ports.Query) (ports.Page, error) {
	ref := q.Ref
	if ref == "" {
		ref = item.RefLatest
	}
	versions, err := s.atRef(ctx, q.ModelID, ref)
	if err != nil {
		return ports.Page{}, err
	}

	candidates := make([]eval.Candidate, len(versions))
	for i, v := range versions {
		if v, err = s.withRefs(ctx, v); err != nil {
			return ports.Page{}, err
		}
		candidates[i] = eval.Candidate{Version: v, Metadata: s.metadata(ctx, v.Value.MetadataID, ref)}
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
	versions, err := s.atRef(ctx, "", item.RefLatest)
	if err != nil {
		return false, err
	}
	for _, v := range versions {
		if reference.Holds(v.Value, fieldID, targetID) {
			return true, nil
		}
	}
	return false, nil
}

func (s *ItemStore) withRefs(ctx context.Context, v item.Version) (item.Version, error) {
	refs, err := loadRefs(ctx, s.db, v.ItemID)
	if err != nil {
		return item.Version{}, err
	}
	v.Refs = refs.Names(v.ID)
	return v, nil
}

func scanVersion(row scanner) (item.Version, error) {
	var v item.Version
	var parents, action, value string
	if err := row.Scan(&v.ID, &v.ItemID, &parents, &action, &value, &v.CreatedAt); err != nil {
		return item.Version{}, notFound(err)
	}
	if err := decodeDoc(parents, &v.Parents); err != nil {
		return item.Version{}, fmt.Errorf("decode parents of %s: %w", v.ID, err)
	}
	if len(v.Parents) == 0 {
		v.Parents = nil
	}
	var doc wire.ItemDoc
	if err := decodeDoc(value, &doc); err != nil {
		return item.Version{}, fmt.Errorf("decode version %s: %w", v.ID, err)
	}
	it, err := doc.Item()
	if err != nil {
		return item.Version{}, err
	}
	v.Action = item.Action(action)
	v.Value = it
	return v, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Ensure interface compliance.
var _ ports.ItemStore = (*ItemStore)(nil)
