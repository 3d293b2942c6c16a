// Package schema provides schema, field, model and group value types and the
// pure operations that keep schema invariants.
// This package has NO dependencies on I/O or external packages.
package schema

import (
	"errors"
	"fmt"
	"regexp"
	"sort"

	"github.com/artpar/cmscore/domain/field"
)

// keyRegex matches ASCII letters, digits and hyphens with no leading or trailing hyphen.
var keyRegex = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]*[A-Za-z0-9])?$`)

// ValidateKey checks a field, model or group key against the key grammar.
func ValidateKey(key string) error {
	if !keyRegex.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// Field is one field definition of a schema (immutable value type).
type Field struct {
	ID           string
	Key          string
	Title        string
	Description  string
	TypeProperty field.TypeProperty
	Required     bool
	Unique       bool
	Multiple     bool
	IsTitle      bool
	Order        int
	// Default is the raw default value; a list for multiple fields.
	Default any
}

// Kind returns the field kind, or "" when the type property is missing.
func (f Field) Kind() field.Kind {
	if f.TypeProperty == nil {
		return ""
	}
	return f.TypeProperty.Kind()
}

// GroupID returns the embedded group id for group fields.
func (f Field) GroupID() (string, bool) {
	g, ok := f.TypeProperty.(field.Group)
	if !ok {
		return "", false
	}
	return g.GroupID, true
}

// Reference returns the reference property for reference fields.
func (f Field) Reference() (field.Reference, bool) {
	r, ok := f.TypeProperty.(field.Reference)
	return r, ok
}

// normalized clears flags that carry no meaning for the field's kind.
func (f Field) normalized() Field {
	if f.Kind() == field.KindGroup {
		f.Required = false
		f.Unique = false
		f.Default = nil
	}
	return f
}

// Schema is an ordered set of field definitions (immutable value type).
// All mutating operations return a new Schema and never modify the receiver.
type Schema struct {
	ID     string
	fields []Field // insertion order
}

// New builds a schema from fields, enforcing every schema invariant.
func New(id string, fields ...Field) (Schema, error) {
	s := Schema{ID: id}
	for _, f := range fields {
		order := f.Order
		next, err := s.AddField(f)
		if err != nil {
			return Schema{}, err
		}
		// Preserve explicit orders from storage.
		next.fields[len(next.fields)-1].Order = order
		s = next
	}
	return s, nil
}

// Fields returns the fields sorted by order, ties broken by insertion.
func (s Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Order < out[j].Order
	})
	return out
}

// Len returns the number of fields.
func (s Schema) Len() int {
	return len(s.fields)
}

// Field returns the field with the given id.
func (s Schema) Field(id string) (Field, bool) {
	for _, f := range s.fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}

// FieldByKey returns the field with the given key.
func (s Schema) FieldByKey(key string) (Field, bool) {
	for _, f := range s.fields {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// Lookup finds a field by id, falling back to key.
func (s Schema) Lookup(idOrKey string) (Field, bool) {
	if f, ok := s.Field(idOrKey); ok {
		return f, true
	}
	return s.FieldByKey(idOrKey)
}

// TitleField returns the title field, if one is set.
func (s Schema) TitleField() (Field, bool) {
	for _, f := range s.fields {
		if f.IsTitle {
			return f, true
		}
	}
	return Field{}, false
}

// FieldsOfKind returns the fields of the given kind in display order.
func (s Schema) FieldsOfKind(kind field.Kind) []Field {
	var out []Field
	for _, f := range s.Fields() {
		if f.Kind() == kind {
			out = append(out, f)
		}
	}
	return out
}

// GroupTargets returns the distinct group ids embedded by the schema.
func (s Schema) GroupTargets() []string {
	var out []string
	seen := make(map[string]bool)
	for _, f := range s.Fields() {
		if gid, ok := f.GroupID(); ok && !seen[gid] {
			seen[gid] = true
			out = append(out, gid)
		}
	}
	return out
}

// References returns true if any group field embeds the group.
func (s Schema) References(groupID string) bool {
	for _, f := range s.fields {
		if gid, ok := f.GroupID(); ok && gid == groupID {
			return true
		}
	}
	return false
}

func (s Schema) clone() Schema {
	c := Schema{ID: s.ID, fields: make([]Field, len(s.fields))}
	copy(c.fields, s.fields)
	return c
}

func (s Schema) index(id string) int {
	for i, f := range s.fields {
		if f.ID == id {
			return i
		}
	}
	return -1
}

func (s Schema) checkField(op string, f Field, self int) error {
	if f.ID == "" {
		return integrity(op, f.Key, ErrMissingID)
	}
	if err := ValidateKey(f.Key); err != nil {
		return integrity(op, f.Key, err)
	}
	if f.TypeProperty == nil {
		return integrity(op, f.Key, ErrMissingType)
	}
	if err := field.ValidateProperty(f.TypeProperty, nil); err != nil {
		return integrity(op, f.Key, err)
	}
	if f.IsTitle && f.Kind() == field.KindGroup {
		return integrity(op, f.Key, ErrInvalidTitle)
	}
	for i, other := range s.fields {
		if i == self {
			continue
		}
		if other.ID == f.ID {
			return integrity(op, f.Key, ErrDuplicateID)
		}
		if other.Key == f.Key {
			return integrity(op, f.Key, ErrDuplicateKey)
		}
	}
	return nil
}

// AddField appends a field at the end of the display order. If the field is
// flagged as title, the previous title field is cleared.
func (s Schema) AddField(f Field) (Schema, error) {
	f = f.normalized()
	if err := s.checkField("add_field", f, -1); err != nil {
		return s, err
	}
	next := s.clone()
	f.Order = len(next.fields)
	if f.IsTitle {
		next.clearTitle()
	}
	next.fields = append(next.fields, f)
	return next, nil
}

// UpdateField replaces the field with the same id. The kind cannot change.
func (s Schema) UpdateField(f Field) (Schema, error) {
	i := s.index(f.ID)
	if i < 0 {
		return s, integrity("update_field", f.ID, ErrFieldNotFound)
	}
	f = f.normalized()
	if err := s.checkField("update_field", f, i); err != nil {
		return s, err
	}
	if s.fields[i].Kind() != f.Kind() {
		return s, integrity("update_field", f.Key, ErrKindChanged)
	}
	next := s.clone()
	if f.IsTitle {
		next.clearTitle()
	}
	next.fields[i] = f
	return next, nil
}

// RemoveField removes a field. Removing the title field leaves no title.
func (s Schema) RemoveField(id string) (Schema, error) {
	i := s.index(id)
	if i < 0 {
		return s, integrity("remove_field", id, ErrFieldNotFound)
	}
	next := Schema{ID: s.ID, fields: make([]Field, 0, len(s.fields)-1)}
	next.fields = append(next.fields, s.fields[:i]...)
	next.fields = append(next.fields, s.fields[i+1:]...)
	return next, nil
}

// ReorderFields assigns display order from a permutation of all field ids.
func (s Schema) ReorderFields(ids []string) (Schema, error) {
	if len(ids) != len(s.fields) {
		return s, integrity("reorder_fields", "", ErrNotPermutation)
	}
	pos := make(map[string]int, len(ids))
	for i, id := range ids {
		if _, dup := pos[id]; dup {
			return s, integrity("reorder_fields", id, ErrNotPermutation)
		}
		if s.index(id) < 0 {
			return s, integrity("reorder_fields", id, ErrFieldNotFound)
		}
		pos[id] = i
	}
	next := s.clone()
	for i := range next.fields {
		next.fields[i].Order = pos[next.fields[i].ID]
	}
	return next, nil
}

// SetTitleField makes the field the only title field of the schema.
func (s Schema) SetTitleField(id string) (Schema, error) {
	i := s.index(id)
	if i < 0 {
		return s, integrity("set_title_field", id, ErrFieldNotFound)
	}
	if s.fields[i].Kind() == field.KindGroup {
		return s, integrity("set_title_field", s.fields[i].Key, ErrInvalidTitle)
	}
	next := s.clone()
	next.clearTitle()
	next.fields[i].IsTitle = true
	return next, nil
}

func (s *Schema) clearTitle() {
	for i := range s.fields {
		s.fields[i].IsTitle = false
	}
}

// IsIntegrityError reports whether err is a rejected schema mutation.
func IsIntegrityError(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}
