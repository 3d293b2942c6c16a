package schema

import (
	"strings"
	"time"
)

// Model is a named content type. It owns one schema and, optionally, an
// independent metadata schema for out-of-band fields.
type Model struct {
	ID               string
	Key              string
	Name             string
	Description      string
	SchemaID         string
	MetadataSchemaID string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HasMetadata returns true if the model has a metadata schema.
func (m Model) HasMetadata() bool {
	return m.MetadataSchemaID != ""
}

// Group is a named, reusable sub-schema embeddable through group fields.
type Group struct {
	ID          string
	Key         string
	Name        string
	Description string
	SchemaID    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ValidationResult represents the outcome of model or group validation.
type ValidationResult struct {
	Valid  bool
	Errors map[string]string
}

// ValidateModel validates a model definition (pure function).
func ValidateModel(m Model) ValidationResult {
	return validateNamed(m.Key, m.Name)
}

// ValidateGroup validates a group definition (pure function).
func ValidateGroup(g Group) ValidationResult {
	return validateNamed(g.Key, g.Name)
}

func validateNamed(key, name string) ValidationResult {
	errors := make(map[string]string)

	if err := ValidateKey(key); err != nil {
		errors["key"] = "Key must contain only letters, numbers, and inner hyphens"
	}

	name = strings.TrimSpace(name)
	if name == "" {
		errors["name"] = "Name is required"
	} else if len(name) > 100 {
		errors["name"] = "Name must be less than 100 characters"
	}

	return ValidationResult{
		Valid:  len(errors) == 0,
		Errors: errors,
	}
}

// FieldRef locates a field inside a specific schema.
type FieldRef struct {
	SchemaID string
	FieldID  string
	Key      string
}

// GroupReferences returns every group field in schemas that embeds groupID.
func GroupReferences(schemas []Schema, groupID string) []FieldRef {
	var refs []FieldRef
	for _, s := range schemas {
		for _, f := range s.Fields() {
			if gid, ok := f.GroupID(); ok && gid == groupID {
				refs = append(refs, FieldRef{SchemaID: s.ID, FieldID: f.ID, Key: f.Key})
			}
		}
	}
	return refs
}
