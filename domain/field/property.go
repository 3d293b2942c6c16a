package field

import (
	"fmt"
	"math"
)

// TypeProperty is the kind-specific configuration of a schema field.
// Exactly one implementation exists per Kind; switches over TypeProperty
// must list every variant.
type TypeProperty interface {
	Kind() Kind
	typeProperty()
}

// TextLimits bounds the length of textual values. A nil MaxLength means unbounded.
type TextLimits struct {
	MaxLength *int
}

// Text is a single-line text field.
type Text struct{ TextLimits }

// TextArea is a multi-line text field.
type TextArea struct{ TextLimits }

// RichText is an HTML-ish rich text field.
type RichText struct{ TextLimits }

// Markdown is a markdown text field.
type Markdown struct{ TextLimits }

// Select restricts values to a fixed list of strings.
type Select struct {
	Values []string
}

// TagDef defines one selectable tag.
type TagDef struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Color string `json:"color,omitempty" yaml:"color,omitempty"`
}

// Tag restricts values to the ids of its tag definitions.
type Tag struct {
	Tags []TagDef
}

// Integer holds whole numbers with optional inclusive bounds.
type Integer struct {
	Min *int64
	Max *int64
}

// Number holds IEEE-754 doubles with optional inclusive bounds.
type Number struct {
	Min *float64
	Max *float64
}

// Bool is a true/false switch.
type Bool struct{}

// Checkbox is a true/false checkbox.
type Checkbox struct{}

// Date holds RFC3339 timestamps.
type Date struct{}

// URL holds absolute URLs.
type URL struct{}

// Asset holds asset ids managed by the asset collaborator.
type Asset struct{}

// GeometryType is a GeoJSON geometry type.
type GeometryType string

const (
	GeometryPoint           GeometryType = "POINT"
	GeometryMultiPoint      GeometryType = "MULTIPOINT"
	GeometryLineString      GeometryType = "LINESTRING"
	GeometryMultiLineString GeometryType = "MULTILINESTRING"
	GeometryPolygon         GeometryType = "POLYGON"
	GeometryMultiPolygon    GeometryType = "MULTIPOLYGON"
	GeometryCollection      GeometryType = "GEOMETRYCOLLECTION"
)

// EditorType is a geometry type drawable by the geometry editor.
type EditorType string

const (
	EditorPoint      EditorType = "POINT"
	EditorLineString EditorType = "LINESTRING"
	EditorPolygon    EditorType = "POLYGON"
	EditorAny        EditorType = "ANY"
)

// GeometryObject holds a GeoJSON geometry of one of the supported types.
type GeometryObject struct {
	SupportedTypes []GeometryType
}

// GeometryEditor holds a GeoJSON geometry drawn with the editor.
type GeometryEditor struct {
	SupportedTypes []EditorType
}

// Group embeds a reusable group schema. Group fields hold no value themselves.
type Group struct {
	GroupID string
}

// CorrespondingField describes the back-pointing field a bidirectional
// reference creates (or reuses) on the target model's schema.
// FieldID is empty until the link is established.
type CorrespondingField struct {
	FieldID     string `json:"fieldId,omitempty" yaml:"fieldId,omitempty"`
	Key         string `json:"key" yaml:"key"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool   `json:"required,omitempty" yaml:"required,omitempty"`
}

// Reference points at items of another model.
type Reference struct {
	ModelID            string
	SchemaID           string
	CorrespondingField *CorrespondingField
}

// IsBidirectional returns true if the reference has a corresponding field.
func (r Reference) IsBidirectional() bool {
	return r.CorrespondingField != nil
}

func (Text) Kind() Kind           { return KindText }
func (TextArea) Kind() Kind       { return KindTextArea }
func (RichText) Kind() Kind       { return KindRichText }
func (Markdown) Kind() Kind       { return KindMarkdown }
func (Select) Kind() Kind         { return KindSelect }
func (Tag) Kind() Kind            { return KindTag }
func (Integer) Kind() Kind        { return KindInteger }
func (Number) Kind() Kind         { return KindNumber }
func (Bool) Kind() Kind           { return KindBool }
func (Checkbox) Kind() Kind       { return KindCheckbox }
func (Date) Kind() Kind           { return KindDate }
func (URL) Kind() Kind            { return KindURL }
func (Asset) Kind() Kind          { return KindAsset }
func (GeometryObject) Kind() Kind { return KindGeometryObject }
func (GeometryEditor) Kind() Kind { return KindGeometryEditor }
func (Group) Kind() Kind          { return KindGroup }
func (Reference) Kind() Kind      { return KindReference }

func (Text) typeProperty()           {}
func (TextArea) typeProperty()       {}
func (RichText) typeProperty()       {}
func (Markdown) typeProperty()       {}
func (Select) typeProperty()         {}
func (Tag) typeProperty()            {}
func (Integer) typeProperty()        {}
func (Number) typeProperty()         {}
func (Bool) typeProperty()           {}
func (Checkbox) typeProperty()       {}
func (Date) typeProperty()           {}
func (URL) typeProperty()            {}
func (Asset) typeProperty()          {}
func (GeometryObject) typeProperty() {}
func (GeometryEditor) typeProperty() {}
func (Group) typeProperty()          {}
func (Reference) typeProperty()      {}

// TagIDs returns the ids of the tag definitions in order.
func (t Tag) TagIDs() []string {
	ids := make([]string, len(t.Tags))
	for i, tag := range t.Tags {
		ids[i] = tag.ID
	}
	return ids
}

// Spec is the flat, serializable form of a TypeProperty.
// It is the shape used by storage, transport and schema files.
type Spec struct {
	Kind           Kind                `json:"kind" yaml:"type"`
	MaxLength      *int                `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
	Min            *float64            `json:"min,omitempty" yaml:"min,omitempty"`
	Max            *float64            `json:"max,omitempty" yaml:"max,omitempty"`
	Values         []string            `json:"values,omitempty" yaml:"values,omitempty"`
	Tags           []TagDef            `json:"tags,omitempty" yaml:"tags,omitempty"`
	SupportedTypes []string            `json:"supportedTypes,omitempty" yaml:"supportedTypes,omitempty"`
	GroupID        string              `json:"groupId,omitempty" yaml:"group,omitempty"`
	ModelID        string              `json:"modelId,omitempty" yaml:"model,omitempty"`
	SchemaID       string              `json:"schemaId,omitempty" yaml:"schema,omitempty"`
	Corresponding  *CorrespondingField `json:"correspondingField,omitempty" yaml:"correspondingField,omitempty"`
}

// SpecOf flattens a TypeProperty.
func SpecOf(tp TypeProperty) Spec {
	switch p := tp.(type) {
	case Text:
		return Spec{Kind: KindText, MaxLength: p.MaxLength}
	case TextArea:
		return Spec{Kind: KindTextArea, MaxLength: p.MaxLength}
	case RichText:
		return Spec{Kind: KindRichText, MaxLength: p.MaxLength}
	case Markdown:
		return Spec{Kind: KindMarkdown, MaxLength: p.MaxLength}
	case Select:
		return Spec{Kind: KindSelect, Values: append([]string(nil), p.Values...)}
	case Tag:
		return Spec{Kind: KindTag, Tags: append([]TagDef(nil), p.Tags...)}
	case Integer:
		s := Spec{Kind: KindInteger}
		if p.Min != nil {
			v := float64(*p.Min)
			s.Min = &v
		}
		if p.Max != nil {
			v := float64(*p.Max)
			s.Max = &v
		}
		return s
	case Number:
		return Spec{Kind: KindNumber, Min: p.Min, Max: p.Max}
	case Bool:
		return Spec{Kind: KindBool}
	case Checkbox:
		return Spec{Kind: KindCheckbox}
	case Date:
		return Spec{Kind: KindDate}
	case URL:
		return Spec{Kind: KindURL}
	case Asset:
		return Spec{Kind: KindAsset}
	case GeometryObject:
		s := Spec{Kind: KindGeometryObject}
		for _, t := range p.SupportedTypes {
			s.SupportedTypes = append(s.SupportedTypes, string(t))
		}
		return s
	case GeometryEditor:
		s := Spec{Kind: KindGeometryEditor}
		for _, t := range p.SupportedTypes {
			s.SupportedTypes = append(s.SupportedTypes, string(t))
		}
		return s
	case Group:
		return Spec{Kind: KindGroup, GroupID: p.GroupID}
	case Reference:
		s := Spec{Kind: KindReference, ModelID: p.ModelID, SchemaID: p.SchemaID}
		if p.CorrespondingField != nil {
			cf := *p.CorrespondingField
			s.Corresponding = &cf
		}
		return s
	}
	return Spec{}
}

// Build converts the flat form back into a TypeProperty.
func (s Spec) Build() (TypeProperty, error) {
	switch s.Kind {
	case KindText:
		return Text{TextLimits{MaxLength: s.MaxLength}}, nil
	case KindTextArea:
		return TextArea{TextLimits{MaxLength: s.MaxLength}}, nil
	case KindRichText:
		return RichText{TextLimits{MaxLength: s.MaxLength}}, nil
	case KindMarkdown:
		return Markdown{TextLimits{MaxLength: s.MaxLength}}, nil
	case KindSelect:
		return Select{Values: append([]string(nil), s.Values...)}, nil
	case KindTag:
		return Tag{Tags: append([]TagDef(nil), s.Tags...)}, nil
	case KindInteger:
		p := Integer{}
		if s.Min != nil {
			v, ok := wholeNumber(*s.Min)
			if !ok {
				return nil, fmt.Errorf("integer min %v is not a whole number", *s.Min)
			}
			p.Min = &v
		}
		if s.Max != nil {
			v, ok := wholeNumber(*s.Max)
			if !ok {
				return nil, fmt.Errorf("integer max %v is not a whole number", *s.Max)
			}
			p.Max = &v
		}
		return p, nil
	case KindNumber:
		return Number{Min: s.Min, Max: s.Max}, nil
	case KindBool:
		return Bool{}, nil
	case KindCheckbox:
		return Checkbox{}, nil
	case KindDate:
		return Date{}, nil
	case KindURL:
		return URL{}, nil
	case KindAsset:
		return Asset{}, nil
	case KindGeometryObject:
		p := GeometryObject{}
		for _, t := range s.SupportedTypes {
			p.SupportedTypes = append(p.SupportedTypes, GeometryType(t))
		}
		return p, nil
	case KindGeometryEditor:
		p := GeometryEditor{}
		for _, t := range s.SupportedTypes {
			p.SupportedTypes = append(p.SupportedTypes, EditorType(t))
		}
		return p, nil
	case KindGroup:
		return Group{GroupID: s.GroupID}, nil
	case KindReference:
		p := Reference{ModelID: s.ModelID, SchemaID: s.SchemaID}
		if s.Corresponding != nil {
			cf := *s.Corresponding
			p.CorrespondingField = &cf
		}
		return p, nil
	}
	return nil, fmt.Errorf("unknown field kind %q", s.Kind)
}

func wholeNumber(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}
