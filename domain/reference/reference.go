// Package reference models links between items through reference fields:
// the two-sided link record created for bidirectional references, and the
// pure helpers that collect reference targets from an item.
package reference

import (
	"errors"
	"fmt"

	"github.com/artpar/cmscore/domain/field"
	"github.com/artpar/cmscore/domain/item"
	"github.com/artpar/cmscore/domain/schema"
)

var (
	ErrNotReference     = errors.New("field is not a reference field")
	ErrNotBidirectional = errors.New("reference has no corresponding field")
)

// Link is the two-sided record of a bidirectional reference. The source
// field references the target model and the target field references back.
type Link struct {
	ID            string
	SourceModelID string
	SourceFieldID string
	TargetModelID string
	TargetFieldID string
}

// Involves returns true if the field is either side of the link.
func (l Link) Involves(fieldID string) bool {
	return l.SourceFieldID == fieldID || l.TargetFieldID == fieldID
}

// Opposite returns the field on the other side of the link.
func (l Link) Opposite(fieldID string) (string, bool) {
	switch fieldID {
	case l.SourceFieldID:
		return l.TargetFieldID, true
	case l.TargetFieldID:
		return l.SourceFieldID, true
	}
	return "", false
}

// Find returns the link involving a field.
func Find(links []Link, fieldID string) (Link, bool) {
	for _, l := range links {
		if l.Involves(fieldID) {
			return l, true
		}
	}
	return Link{}, false
}

// Target is one referenced item id and the field holding it. ItemGroupID
// names the group instance when the field is a group member.
type Target struct {
	FieldID     string
	ItemID      string
	ItemGroupID string
}

// Targets returns the reference values of an item: top-level fields in
// field order then value order, followed by the member references of each
// group field in instance order. Groups missing from groups are skipped.
func Targets(s schema.Schema, groups item.Groups, it item.Item) []Target {
	var out []Target
	collect := func(gs schema.Schema, itemGroupID string) {
		for _, f := range gs.FieldsOfKind(field.KindReference) {
			v, ok := it.MemberValue(itemGroupID, f.ID)
			if !ok {
				continue
			}
			for _, id := range v.Strings() {
				out = append(out, Target{FieldID: f.ID, ItemID: id, ItemGroupID: itemGroupID})
			}
		}
	}

	collect(s, "")
	for _, gf := range s.FieldsOfKind(field.KindGroup) {
		gid, _ := gf.GroupID()
		gs, ok := groups[gid]
		if !ok {
			continue
		}
		for _, instance := range it.InstancesFor(gf.ID) {
			collect(gs, instance)
		}
	}
	return out
}

// Holds returns true if the item's field contains a reference to targetID.
func Holds(it item.Item, fieldID, targetID string) bool {
	v, ok := it.Value(fieldID)
	if !ok {
		return false
	}
	for _, id := range v.Strings() {
		if id == targetID {
			return true
		}
	}
	return false
}

// Side is one model's schema taking part in a link.
type Side struct {
	ModelID string
	Schema  schema.Schema
}

// Wire installs the back-pointing field of a bidirectional reference. The
// target schema receives a new field with id backFieldID, or reuses the
// field already named by the reference's corresponding field. The source
// field is updated to point at the back field. When both sides are the same
// schema the returned source and target are equal.
func Wire(source Side, sourceFieldID string, target Side, backFieldID string) (schema.Schema, schema.Schema, Link, error) {
	sf, ok := source.Schema.Field(sourceFieldID)
	if !ok {
		return source.Schema, target.Schema, Link{}, schema.ErrFieldNotFound
	}
	ref, ok := sf.Reference()
	if !ok {
		return source.Schema, target.Schema, Link{}, ErrNotReference
	}
	if !ref.IsBidirectional() {
		return source.Schema, target.Schema, Link{}, ErrNotBidirectional
	}
	if ref.ModelID != target.ModelID {
		return source.Schema, target.Schema, Link{}, fmt.Errorf("reference targets model %s, not %s", ref.ModelID, target.ModelID)
	}
	self := source.Schema.ID == target.Schema.ID

	cf := *ref.CorrespondingField
	back := schema.Field{
		ID:          backFieldID,
		Key:         cf.Key,
		Title:       cf.Title,
		Description: cf.Description,
		Required:    cf.Required,
		Multiple:    sf.Multiple,
		TypeProperty: field.Reference{
			ModelID:  source.ModelID,
			SchemaID: source.Schema.ID,
			CorrespondingField: &field.CorrespondingField{
				FieldID:     sf.ID,
				Key:         sf.Key,
				Title:       sf.Title,
				Description: sf.Description,
				Required:    sf.Required,
			},
		},
	}

	tgt := target.Schema
	var err error
	if existing, ok := tgt.Field(cf.FieldID); ok && cf.FieldID != "" {
		back.ID = existing.ID
		back.Order = existing.Order
		tgt, err = tgt.UpdateField(back)
	} else {
		tgt, err = tgt.AddField(back)
	}
	if err != nil {
		return source.Schema, target.Schema, Link{}, err
	}

	cf.FieldID = back.ID
	ref.CorrespondingField = &cf
	sf.TypeProperty = ref

	src := source.Schema
	if self {
		src = tgt
	}
	src, err = src.UpdateField(sf)
	if err != nil {
		return source.Schema, target.Schema, Link{}, err
	}
	if self {
		tgt = src
	}

	return src, tgt, Link{
		SourceModelID: source.ModelID,
		SourceFieldID: sf.ID,
		TargetModelID: target.ModelID,
		TargetFieldID: back.ID,
	}, nil
}

// Detach removes the back field of a link and clears the source reference's
// corresponding field, leaving a one-way reference. When both sides are the
// same schema the returned source and target are equal.
func Detach(l Link, source schema.Schema, target schema.Schema) (schema.Schema, schema.Schema, error) {
	self := source.ID == target.ID
	tgt, err := target.RemoveField(l.TargetFieldID)
	if err != nil {
		return source, target, err
	}
	src := source
	if self {
		src = tgt
	}
	sf, ok := src.Field(l.SourceFieldID)
	if !ok {
		return source, target, schema.ErrFieldNotFound
	}
	ref, ok := sf.Reference()
	if !ok {
		return source, target, ErrNotReference
	}
	ref.CorrespondingField = nil
	sf.TypeProperty = ref
	if src, err = src.UpdateField(sf); err != nil {
		return source, target, err
	}
	if self {
		tgt = src
	}
	return src, tgt, nil
}

// Unwire removes both fields of a link from their schemas. When both sides
// are the same schema the returned source and target are equal.
func Unwire(l Link, source schema.Schema, target schema.Schema) (schema.Schema, schema.Schema, error) {
	self := source.ID == target.ID
	src, err := source.RemoveField(l.SourceFieldID)
	if err != nil {
		return source, target, err
	}
	tgt := target
	if self {
		tgt = src
	}
	tgt, err = tgt.RemoveField(l.TargetFieldID)
	if err != nil {
		return source, target, err
	}
	if self {
		src = tgt
	}
	return src, tgt, nil
}
