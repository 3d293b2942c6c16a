// Package item provides the content record, its field values and group
// instances, the status machine and version lineage.
// This package has NO dependencies on I/O or external packages.
package item

import (
	"fmt"
	"slices"
	"time"

	"github.com/artpar/cmscore/domain/field"
	"github.com/artpar/cmscore/domain/schema"
	"github.com/artpar/cmscore/domain/value"
)

// Field is one stored value for a (schema field, group instance) pair.
// ItemGroupID is empty for top-level fields.
type Field struct {
	SchemaFieldID string
	ItemGroupID   string
	Value         value.Value
}

// Item is one content record conforming to a model's schema.
type Item struct {
	ID         string
	ModelID    string
	SchemaID   string
	Status     Status
	Version    string // id of the version this snapshot belongs to
	Fields     []Field
	GroupOrder map[string][]string // group field id -> ordered item group ids
	MetadataID string
	ThreadID   string
	CreatedBy  string
	UpdatedBy  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Clone returns a deep copy of the item's mutable parts.
func (it Item) Clone() Item {
	c := it
	c.Fields = slices.Clone(it.Fields)
	for i := range c.Fields {
		c.Fields[i].Value.Items = slices.Clone(c.Fields[i].Value.Items)
	}
	if it.GroupOrder != nil {
		c.GroupOrder = make(map[string][]string, len(it.GroupOrder))
		for k, v := range it.GroupOrder {
			c.GroupOrder[k] = slices.Clone(v)
		}
	}
	return c
}

func (it Item) index(fieldID, itemGroupID string) int {
	for i, f := range it.Fields {
		if f.SchemaFieldID == fieldID && f.ItemGroupID == itemGroupID {
			return i
		}
	}
	return -1
}

// Value returns the top-level value of a schema field.
func (it Item) Value(fieldID string) (value.Value, bool) {
	return it.MemberValue("", fieldID)
}

// MemberValue returns the value of a member field within one group instance.
func (it Item) MemberValue(itemGroupID, memberFieldID string) (value.Value, bool) {
	i := it.index(memberFieldID, itemGroupID)
	if i < 0 {
		return value.Value{}, false
	}
	return it.Fields[i].Value, true
}

// Set returns a copy of the item with the value stored for the pair.
func (it Item) Set(fieldID, itemGroupID string, v value.Value) Item {
	c := it.Clone()
	if i := c.index(fieldID, itemGroupID); i >= 0 {
		c.Fields[i].Value = v
		return c
	}
	c.Fields = append(c.Fields, Field{SchemaFieldID: fieldID, ItemGroupID: itemGroupID, Value: v})
	return c
}

// Unset returns a copy of the item without a value for the pair.
func (it Item) Unset(fieldID, itemGroupID string) Item {
	c := it.Clone()
	if i := c.index(fieldID, itemGroupID); i >= 0 {
		c.Fields = slices.Delete(c.Fields, i, i+1)
	}
	return c
}

// InstancesFor returns the ordered instance ids of a group field.
func (it Item) InstancesFor(groupFieldID string) []string {
	return slices.Clone(it.GroupOrder[groupFieldID])
}

// GroupFieldOf returns the group field owning an instance id.
func (it Item) GroupFieldOf(itemGroupID string) (string, bool) {
	for gf, ids := range it.GroupOrder {
		if slices.Contains(ids, itemGroupID) {
			return gf, true
		}
	}
	return "", false
}

// AddInstance appends a new instance id to a group field's order.
func (it Item) AddInstance(groupFieldID, itemGroupID string) (Item, error) {
	if itemGroupID == "" {
		return it, fmt.Errorf("%w: empty instance id", ErrUnknownInstance)
	}
	if _, taken := it.GroupFieldOf(itemGroupID); taken {
		return it, fmt.Errorf("instance %s already exists", itemGroupID)
	}
	c := it.Clone()
	if c.GroupOrder == nil {
		c.GroupOrder = map[string][]string{}
	}
	c.GroupOrder[groupFieldID] = append(c.GroupOrder[groupFieldID], itemGroupID)
	return c, nil
}

// RemoveInstance drops an instance and every member value under it.
func (it Item) RemoveInstance(groupFieldID, itemGroupID string) (Item, error) {
	ids := it.GroupOrder[groupFieldID]
	i := slices.Index(ids, itemGroupID)
	if i < 0 {
		return it, fmt.Errorf("%w: %s", ErrUnknownInstance, itemGroupID)
	}
	c := it.Clone()
	c.GroupOrder[groupFieldID] = slices.Delete(c.GroupOrder[groupFieldID], i, i+1)
	c.Fields = slices.DeleteFunc(c.Fields, func(f Field) bool { return f.ItemGroupID == itemGroupID })
	return c, nil
}

// ReorderInstances replaces a group field's order with a permutation of it.
// Instance ids and member values are untouched.
func (it Item) ReorderInstances(groupFieldID string, order []string) (Item, error) {
	current := it.GroupOrder[groupFieldID]
	if len(order) != len(current) {
		return it, ErrNotPermutation
	}
	seen := make(map[string]bool, len(order))
	for _, id := range order {
		if seen[id] || !slices.Contains(current, id) {
			return it, ErrNotPermutation
		}
		seen[id] = true
	}
	c := it.Clone()
	c.GroupOrder[groupFieldID] = slices.Clone(order)
	return c, nil
}

// Groups maps group ids to their schemas.
type Groups map[string]schema.Schema

// CheckConsistency verifies that every stored field fits the schema: every
// top-level field is a non-group field of s, every member field carries an
// instance recorded for a group field of s and belongs to that group's schema.
func (it Item) CheckConsistency(s schema.Schema, groups Groups) error {
	owner := map[string]string{}
	for gfID, ids := range it.GroupOrder {
		gf, ok := s.Field(gfID)
		if !ok || gf.Kind() != field.KindGroup {
			return &InconsistencyError{SchemaFieldID: gfID, Reason: "instance order for a non-group field"}
		}
		if !gf.Multiple && len(ids) > 1 {
			return &InconsistencyError{SchemaFieldID: gfID, Reason: "single group field has several instances"}
		}
		for _, id := range ids {
			if _, dup := owner[id]; dup {
				return &InconsistencyError{SchemaFieldID: gfID, ItemGroupID: id, Reason: "instance id used twice"}
			}
			owner[id] = gfID
		}
	}

	seen := map[[2]string]bool{}
	for _, f := range it.Fields {
		key := [2]string{f.SchemaFieldID, f.ItemGroupID}
		if seen[key] {
			return &InconsistencyError{SchemaFieldID: f.SchemaFieldID, ItemGroupID: f.ItemGroupID, Reason: "duplicate value"}
		}
		seen[key] = true

		sf, err := it.schemaFieldFor(f, s, groups, owner)
		if err != nil {
			return err
		}
		if f.Value.Kind != sf.Kind() {
			return &InconsistencyError{SchemaFieldID: f.SchemaFieldID, ItemGroupID: f.ItemGroupID, Reason: fmt.Sprintf("value kind %s does not match %s", f.Value.Kind, sf.Kind())}
		}
	}
	return nil
}

func (it Item) schemaFieldFor(f Field, s schema.Schema, groups Groups, owner map[string]string) (schema.Field, error) {
	if f.ItemGroupID == "" {
		sf, ok := s.Field(f.SchemaFieldID)
		if !ok {
			return schema.Field{}, &InconsistencyError{SchemaFieldID: f.SchemaFieldID, Reason: "not a schema field"}
		}
		if sf.Kind() == field.KindGroup {
			return schema.Field{}, &InconsistencyError{SchemaFieldID: f.SchemaFieldID, Reason: "group fields hold no value"}
		}
		return sf, nil
	}

	gfID, ok := owner[f.ItemGroupID]
	if !ok {
		return schema.Field{}, &InconsistencyError{SchemaFieldID: f.SchemaFieldID, ItemGroupID: f.ItemGroupID, Reason: "instance is not recorded"}
	}
	gf, _ := s.Field(gfID)
	groupID, _ := gf.GroupID()
	gs, ok := groups[groupID]
	if !ok {
		return schema.Field{}, &InconsistencyError{SchemaFieldID: f.SchemaFieldID, ItemGroupID: f.ItemGroupID, Reason: "group schema is unknown"}
	}
	sf, ok := gs.Field(f.SchemaFieldID)
	if !ok || sf.Kind() == field.KindGroup {
		return schema.Field{}, &InconsistencyError{SchemaFieldID: f.SchemaFieldID, ItemGroupID: f.ItemGroupID, Reason: "not a member of the group"}
	}
	return sf, nil
}

// Normalize returns a copy of the item with everything CheckConsistency
// would reject dropped: orders for removed group fields, values of removed
// fields and values under unrecorded instances.
func (it Item) Normalize(s schema.Schema, groups Groups) Item {
	c := it.Clone()
	owner := map[string]string{}
	for gfID, ids := range c.GroupOrder {
		gf, ok := s.Field(gfID)
		if !ok || gf.Kind() != field.KindGroup {
			delete(c.GroupOrder, gfID)
			continue
		}
		groupID, _ := gf.GroupID()
		if _, known := groups[groupID]; !known {
			delete(c.GroupOrder, gfID)
			continue
		}
		kept := ids[:0]
		for _, id := range ids {
			if _, dup := owner[id]; dup {
				continue
			}
			if !gf.Multiple && len(kept) == 1 {
				break
			}
			owner[id] = gfID
			kept = append(kept, id)
		}
		c.GroupOrder[gfID] = kept
	}

	seen := map[[2]string]bool{}
	c.Fields = slices.DeleteFunc(c.Fields, func(f Field) bool {
		key := [2]string{f.SchemaFieldID, f.ItemGroupID}
		if seen[key] {
			return true
		}
		sf, err := c.schemaFieldFor(f, s, groups, owner)
		if err != nil || f.Value.Kind != sf.Kind() {
			return true
		}
		seen[key] = true
		return false
	})
	return c
}
