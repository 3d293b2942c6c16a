package field

import (
	"net/url"
	"time"
	"unicode/utf8"
)

// TargetLookup answers structural questions about reference and group targets.
type TargetLookup interface {
	ModelExists(id string) bool
	GroupExists(id string) bool
}

// Validate checks a single (non-list) value against the type property and
// returns its canonical form. It is side effect free.
func Validate(tp TypeProperty, raw any) (any, error) {
	if tp == nil {
		return nil, invalid(CodeTypeMismatch, "field has no type property")
	}
	v, err := Normalize(tp.Kind(), raw)
	if err != nil {
		return nil, err
	}

	switch p := tp.(type) {
	case Text:
		return v, p.check(v.(string))
	case TextArea:
		return v, p.check(v.(string))
	case RichText:
		return v, p.check(v.(string))
	case Markdown:
		return v, p.check(v.(string))
	case Select:
		s := v.(string)
		for _, allowed := range p.Values {
			if s == allowed {
				return v, nil
			}
		}
		return nil, invalid(CodeValueNotInEnumeration, "%q is not one of the select values", s)
	case Tag:
		s := v.(string)
		for _, tag := range p.Tags {
			if s == tag.ID {
				return v, nil
			}
		}
		return nil, invalid(CodeValueNotInEnumeration, "%q is not a defined tag", s)
	case Integer:
		i := v.(int64)
		if p.Min != nil && i < *p.Min {
			return nil, invalid(CodeValueOutOfRange, "%d is less than minimum %d", i, *p.Min)
		}
		if p.Max != nil && i > *p.Max {
			return nil, invalid(CodeValueOutOfRange, "%d is greater than maximum %d", i, *p.Max)
		}
		return v, nil
	case Number:
		f := v.(float64)
		if p.Min != nil && f < *p.Min {
			return nil, invalid(CodeValueOutOfRange, "%v is less than minimum %v", f, *p.Min)
		}
		if p.Max != nil && f > *p.Max {
			return nil, invalid(CodeValueOutOfRange, "%v is greater than maximum %v", f, *p.Max)
		}
		return v, nil
	case Bool, Checkbox:
		return v, nil
	case Date:
		if v.(time.Time).IsZero() {
			return nil, invalid(CodeTypeMismatch, "date value is zero")
		}
		return v, nil
	case URL:
		u, err := url.Parse(v.(string))
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, invalid(CodeTypeMismatch, "%q is not an absolute URL", v)
		}
		return v, nil
	case Asset:
		if v.(string) == "" {
			return nil, invalid(CodeTypeMismatch, "asset id is empty")
		}
		return v, nil
	case Reference:
		if v.(string) == "" {
			return nil, invalid(CodeTypeMismatch, "referenced item id is empty")
		}
		return v, nil
	case GeometryObject:
		t, err := geometryType(v.(string))
		if err != nil {
			return nil, err
		}
		if len(p.SupportedTypes) == 0 {
			return v, nil
		}
		for _, st := range p.SupportedTypes {
			if string(st) == t {
				return v, nil
			}
		}
		return nil, invalid(CodeValueNotInEnumeration, "geometry type %s is not supported", t)
	case GeometryEditor:
		t, err := geometryType(v.(string))
		if err != nil {
			return nil, err
		}
		if len(p.SupportedTypes) == 0 {
			return v, nil
		}
		for _, st := range p.SupportedTypes {
			if st == EditorAny || string(st) == t {
				return v, nil
			}
		}
		return nil, invalid(CodeValueNotInEnumeration, "geometry type %s is not drawable by this editor", t)
	case Group:
		return nil, invalid(CodeTypeMismatch, "group fields hold no value")
	}
	return nil, invalid(CodeTypeMismatch, "unknown type property %T", tp)
}

func (l TextLimits) check(s string) error {
	if l.MaxLength != nil && utf8.RuneCountInString(s) > *l.MaxLength {
		return invalid(CodeValueOutOfRange, "length %d exceeds max length %d", utf8.RuneCountInString(s), *l.MaxLength)
	}
	return nil
}

// ValidateProperty checks that a type property is internally consistent and,
// when lookup is non-nil, that its reference or group target exists.
func ValidateProperty(tp TypeProperty, lookup TargetLookup) error {
	if tp == nil {
		return invalid(CodeTypeMismatch, "field has no type property")
	}

	switch p := tp.(type) {
	case Text:
		return p.validate()
	case TextArea:
		return p.validate()
	case RichText:
		return p.validate()
	case Markdown:
		return p.validate()
	case Select:
		if len(p.Values) == 0 {
			return invalid(CodeValueNotInEnumeration, "select field needs at least one value")
		}
		seen := make(map[string]bool, len(p.Values))
		for _, v := range p.Values {
			if v == "" {
				return invalid(CodeValueNotInEnumeration, "select values must be non-empty")
			}
			if seen[v] {
				return invalid(CodeValueNotInEnumeration, "duplicate select value %q", v)
			}
			seen[v] = true
		}
	case Tag:
		seen := make(map[string]bool, len(p.Tags))
		for _, t := range p.Tags {
			if t.ID == "" || t.Name == "" {
				return invalid(CodeValueNotInEnumeration, "tags need an id and a name")
			}
			if seen[t.ID] {
				return invalid(CodeValueNotInEnumeration, "duplicate tag id %q", t.ID)
			}
			seen[t.ID] = true
		}
	case Integer:
		if p.Min != nil && p.Max != nil && *p.Min > *p.Max {
			return invalid(CodeValueOutOfRange, "min %d is greater than max %d", *p.Min, *p.Max)
		}
	case Number:
		if p.Min != nil && p.Max != nil && *p.Min > *p.Max {
			return invalid(CodeValueOutOfRange, "min %v is greater than max %v", *p.Min, *p.Max)
		}
	case Bool, Checkbox, Date, URL, Asset:
	case GeometryObject:
		for _, t := range p.SupportedTypes {
			switch t {
			case GeometryPoint, GeometryMultiPoint, GeometryLineString, GeometryMultiLineString,
				GeometryPolygon, GeometryMultiPolygon, GeometryCollection:
			default:
				return invalid(CodeValueNotInEnumeration, "unknown geometry type %q", t)
			}
		}
	case GeometryEditor:
		for _, t := range p.SupportedTypes {
			switch t {
			case EditorPoint, EditorLineString, EditorPolygon, EditorAny:
			default:
				return invalid(CodeValueNotInEnumeration, "unknown editor type %q", t)
			}
		}
	case Group:
		if p.GroupID == "" {
			return invalid(CodeUnknownGroupTarget, "group field has no group id")
		}
		if lookup != nil && !lookup.GroupExists(p.GroupID) {
			return invalid(CodeUnknownGroupTarget, "group %q does not exist", p.GroupID)
		}
	case Reference:
		if p.ModelID == "" {
			return invalid(CodeUnknownReferenceTarget, "reference field has no target model")
		}
		if lookup != nil && !lookup.ModelExists(p.ModelID) {
			return invalid(CodeUnknownReferenceTarget, "model %q does not exist", p.ModelID)
		}
	default:
		return invalid(CodeTypeMismatch, "unknown type property %T", tp)
	}
	return nil
}

func (l TextLimits) validate() error {
	if l.MaxLength != nil && *l.MaxLength <= 0 {
		return invalid(CodeValueOutOfRange, "max length must be positive, got %d", *l.MaxLength)
	}
	return nil
}
