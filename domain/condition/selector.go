package condition

import "fmt"

// SelectorType names what a FieldSelector targets.
type SelectorType string

const (
	SelectorField            SelectorType = "FIELD"
	SelectorMetaField        SelectorType = "META_FIELD"
	SelectorID               SelectorType = "ID"
	SelectorStatus           SelectorType = "STATUS"
	SelectorCreationDate     SelectorType = "CREATION_DATE"
	SelectorCreationUser     SelectorType = "CREATION_USER"
	SelectorModificationDate SelectorType = "MODIFICATION_DATE"
	SelectorModificationUser SelectorType = "MODIFICATION_USER"
)

// FieldSelector identifies a schema field, a metadata field, or one of the
// fixed item attributes. Only FIELD and META_FIELD carry an id.
type FieldSelector struct {
	Type SelectorType `json:"type" yaml:"type"`
	ID   string       `json:"id,omitempty" yaml:"id,omitempty"`
}

// Field selects a schema field by id.
func Field(id string) FieldSelector {
	return FieldSelector{Type: SelectorField, ID: id}
}

// MetaField selects a metadata schema field by id.
func MetaField(id string) FieldSelector {
	return FieldSelector{Type: SelectorMetaField, ID: id}
}

// Meta selects a fixed item attribute.
func Meta(t SelectorType) FieldSelector {
	return FieldSelector{Type: t}
}

// HasID returns true for selector types that name a field.
func (t SelectorType) HasID() bool {
	return t == SelectorField || t == SelectorMetaField
}

// IsValid returns true for a known selector type.
func (t SelectorType) IsValid() bool {
	switch t {
	case SelectorField, SelectorMetaField, SelectorID, SelectorStatus,
		SelectorCreationDate, SelectorCreationUser, SelectorModificationDate, SelectorModificationUser:
		return true
	}
	return false
}

// IsDate returns true for the fixed timestamp attributes.
func (t SelectorType) IsDate() bool {
	return t == SelectorCreationDate || t == SelectorModificationDate
}

// IsUser returns true for the fixed user attributes.
func (t SelectorType) IsUser() bool {
	return t == SelectorCreationUser || t == SelectorModificationUser
}

// Check verifies the selector's shape.
func (s FieldSelector) Check() error {
	if !s.Type.IsValid() {
		return fmt.Errorf("unknown selector type %q", s.Type)
	}
	if s.Type.HasID() && s.ID == "" {
		return fmt.Errorf("%s selector needs an id", s.Type)
	}
	if !s.Type.HasID() && s.ID != "" {
		return fmt.Errorf("%s selector carries no id", s.Type)
	}
	return nil
}

func (s FieldSelector) String() string {
	if s.ID != "" {
		return string(s.Type) + ":" + s.ID
	}
	return string(s.Type)
}
