// Package field provides the schema field kind registry: the closed set of
// field kinds, their type properties, and pure value validation.
// This package has NO dependencies on I/O or external packages.
package field

// Kind selects the value shape and constraints of a schema field.
type Kind string

const (
	KindText           Kind = "text"
	KindTextArea       Kind = "textArea"
	KindRichText       Kind = "richText"
	KindMarkdown       Kind = "markdownText"
	KindSelect         Kind = "select"
	KindTag            Kind = "tag"
	KindInteger        Kind = "integer"
	KindNumber         Kind = "number"
	KindBool           Kind = "bool"
	KindCheckbox       Kind = "checkbox"
	KindDate           Kind = "date"
	KindURL            Kind = "url"
	KindAsset          Kind = "asset"
	KindGeometryObject Kind = "geometryObject"
	KindGeometryEditor Kind = "geometryEditor"
	KindGroup          Kind = "group"
	KindReference      Kind = "reference"
)

var allKinds = []Kind{
	KindText, KindTextArea, KindRichText, KindMarkdown,
	KindSelect, KindTag,
	KindInteger, KindNumber,
	KindBool, KindCheckbox,
	KindDate, KindURL, KindAsset,
	KindGeometryObject, KindGeometryEditor,
	KindGroup, KindReference,
}

// Kinds returns every known field kind in registry order.
func Kinds() []Kind {
	out := make([]Kind, len(allKinds))
	copy(out, allKinds)
	return out
}

// IsValid returns true if the kind is a known field kind.
func (k Kind) IsValid() bool {
	for _, known := range allKinds {
		if k == known {
			return true
		}
	}
	return false
}

// IsTextual returns true for the kinds that store length-bounded text.
func (k Kind) IsTextual() bool {
	switch k {
	case KindText, KindTextArea, KindRichText, KindMarkdown:
		return true
	}
	return false
}

// IsNumeric returns true for Integer and Number.
func (k Kind) IsNumeric() bool {
	return k == KindInteger || k == KindNumber
}

// IsBoolean returns true for Bool and Checkbox.
func (k Kind) IsBoolean() bool {
	return k == KindBool || k == KindCheckbox
}

// IsGeometry returns true for the geometry kinds.
func (k Kind) IsGeometry() bool {
	return k == KindGeometryObject || k == KindGeometryEditor
}

// HoldsValue returns false for kinds whose values live elsewhere (Group).
func (k Kind) HoldsValue() bool {
	return k != KindGroup
}
