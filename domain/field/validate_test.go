package field_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/artpar/cmscore/domain/field"
)

func intPtr(v int) *int             { return &v }
func int64Ptr(v int64) *int64       { return &v }
func float64Ptr(v float64) *float64 { return &v }

type lookup struct {
	models map[string]bool
	groups map[string]bool
}

func (l lookup) ModelExists(id string) bool { return l.models[id] }
func (l lookup) GroupExists(id string) bool { return l.groups[id] }

func TestValidate(t *testing.T) {
	point := `{"type":"Point","coordinates":[139.7,35.6]}`
	polygon := `{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}`

	tests := []struct {
		name     string
		tp       field.TypeProperty
		value    any
		wantCode field.Code
	}{
		{"text within limit", field.Text{TextLimits: field.TextLimits{MaxLength: intPtr(5)}}, "text1", ""},
		{"text over limit", field.Text{TextLimits: field.TextLimits{MaxLength: intPtr(5)}}, "text12", field.CodeValueOutOfRange},
		{"text counts runes", field.Text{TextLimits: field.TextLimits{MaxLength: intPtr(2)}}, "日本", ""},
		{"text unbounded", field.TextArea{}, "anything goes here", ""},
		{"markdown wrong type", field.Markdown{}, 12, field.CodeTypeMismatch},
		{"select member", field.Select{Values: []string{"a", "b"}}, "b", ""},
		{"select non member", field.Select{Values: []string{"a", "b"}}, "c", field.CodeValueNotInEnumeration},
		{"tag member", field.Tag{Tags: []field.TagDef{{ID: "t1", Name: "one"}}}, "t1", ""},
		{"tag by name is rejected", field.Tag{Tags: []field.TagDef{{ID: "t1", Name: "one"}}}, "one", field.CodeValueNotInEnumeration},
		{"integer in range", field.Integer{Min: int64Ptr(1), Max: int64Ptr(10)}, 10, ""},
		{"integer from float64", field.Integer{}, float64(3), ""},
		{"integer from json number", field.Integer{}, json.Number("42"), ""},
		{"integer fraction", field.Integer{}, 3.5, field.CodeTypeMismatch},
		{"integer below min", field.Integer{Min: int64Ptr(1)}, 0, field.CodeValueOutOfRange},
		{"number inclusive max", field.Number{Max: float64Ptr(1.5)}, 1.5, ""},
		{"number over max", field.Number{Max: float64Ptr(1.5)}, 1.6, field.CodeValueOutOfRange},
		{"number string", field.Number{}, "1", field.CodeTypeMismatch},
		{"bool", field.Bool{}, true, ""},
		{"checkbox not bool", field.Checkbox{}, "true", field.CodeTypeMismatch},
		{"date string", field.Date{}, "2024-01-02T03:04:05Z", ""},
		{"date time", field.Date{}, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), ""},
		{"date garbage", field.Date{}, "yesterday", field.CodeTypeMismatch},
		{"url absolute", field.URL{}, "https://example.com/a", ""},
		{"url relative", field.URL{}, "/a/b", field.CodeTypeMismatch},
		{"asset", field.Asset{}, "asset-1", ""},
		{"asset empty", field.Asset{}, "", field.CodeTypeMismatch},
		{"reference", field.Reference{ModelID: "m1"}, "item-1", ""},
		{"geometry any", field.GeometryObject{}, point, ""},
		{"geometry supported", field.GeometryObject{SupportedTypes: []field.GeometryType{field.GeometryPoint}}, point, ""},
		{"geometry unsupported", field.GeometryObject{SupportedTypes: []field.GeometryType{field.GeometryPoint}}, polygon, field.CodeValueNotInEnumeration},
		{"geometry map", field.GeometryObject{}, map[string]any{"type": "Point", "coordinates": []any{1.0, 2.0}}, ""},
		{"geometry bad json", field.GeometryObject{}, "{", field.CodeTypeMismatch},
		{"geometry unknown type", field.GeometryObject{}, `{"type":"Circle"}`, field.CodeTypeMismatch},
		{"editor any", field.GeometryEditor{SupportedTypes: []field.EditorType{field.EditorAny}}, polygon, ""},
		{"editor point only", field.GeometryEditor{SupportedTypes: []field.EditorType{field.EditorPoint}}, polygon, field.CodeValueNotInEnumeration},
		{"group holds no value", field.Group{GroupID: "g1"}, "x", field.CodeTypeMismatch},
		{"null", field.Text{}, nil, field.CodeTypeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := field.Validate(tt.tp, tt.value)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			var verr *field.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error = %v, want ValidationError", err)
			}
			if verr.Code != tt.wantCode {
				t.Errorf("Validate() code = %s, want %s", verr.Code, tt.wantCode)
			}
		})
	}
}

func TestValidate_Canonical(t *testing.T) {
	v, err := field.Validate(field.Integer{}, float64(7))
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got, ok := v.(int64); !ok || got != 7 {
		t.Errorf("Validate() = %#v, want int64(7)", v)
	}

	v, err = field.Validate(field.Date{}, "2024-01-02T12:00:00+09:00")
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	want := time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC)
	if got := v.(time.Time); !got.Equal(want) || got.Location() != time.UTC {
		t.Errorf("Validate() = %v, want %v in UTC", got, want)
	}

	v, err = field.Validate(field.GeometryObject{}, "{ \"type\": \"Point\",\n \"coordinates\": [1, 2] }")
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if v != `{"type":"Point","coordinates":[1,2]}` {
		t.Errorf("Validate() = %q, want compact GeoJSON", v)
	}
}

func TestValidationError_Is(t *testing.T) {
	_, err := field.Validate(field.Text{TextLimits: field.TextLimits{MaxLength: intPtr(1)}}, "ab")
	if !errors.Is(err, field.ErrValueOutOfRange) {
		t.Errorf("errors.Is(err, ErrValueOutOfRange) = false")
	}
	if !errors.Is(err, field.ErrValidation) {
		t.Errorf("errors.Is(err, ErrValidation) = false")
	}
	if errors.Is(err, field.ErrTypeMismatch) {
		t.Errorf("errors.Is(err, ErrTypeMismatch) = true")
	}
}

func TestValidateProperty(t *testing.T) {
	l := lookup{
		models: map[string]bool{"m1": true},
		groups: map[string]bool{"g1": true},
	}

	tests := []struct {
		name     string
		tp       field.TypeProperty
		wantCode field.Code
	}{
		{"text ok", field.Text{TextLimits: field.TextLimits{MaxLength: intPtr(10)}}, ""},
		{"text zero length", field.Text{TextLimits: field.TextLimits{MaxLength: intPtr(0)}}, field.CodeValueOutOfRange},
		{"select empty", field.Select{}, field.CodeValueNotInEnumeration},
		{"select duplicate", field.Select{Values: []string{"a", "a"}}, field.CodeValueNotInEnumeration},
		{"tag duplicate", field.Tag{Tags: []field.TagDef{{ID: "a", Name: "A"}, {ID: "a", Name: "B"}}}, field.CodeValueNotInEnumeration},
		{"integer inverted", field.Integer{Min: int64Ptr(5), Max: int64Ptr(1)}, field.CodeValueOutOfRange},
		{"number inverted", field.Number{Min: float64Ptr(5), Max: float64Ptr(1)}, field.CodeValueOutOfRange},
		{"geometry unknown", field.GeometryObject{SupportedTypes: []field.GeometryType{"CIRCLE"}}, field.CodeValueNotInEnumeration},
		{"editor unknown", field.GeometryEditor{SupportedTypes: []field.EditorType{"CIRCLE"}}, field.CodeValueNotInEnumeration},
		{"group known", field.Group{GroupID: "g1"}, ""},
		{"group unknown", field.Group{GroupID: "g2"}, field.CodeUnknownGroupTarget},
		{"reference known", field.Reference{ModelID: "m1"}, ""},
		{"reference unknown", field.Reference{ModelID: "m2"}, field.CodeUnknownReferenceTarget},
		{"reference missing", field.Reference{}, field.CodeUnknownReferenceTarget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := field.ValidateProperty(tt.tp, l)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("ValidateProperty() error = %v", err)
				}
				return
			}
			var verr *field.ValidationError
			if !errors.As(err, &verr) || verr.Code != tt.wantCode {
				t.Errorf("ValidateProperty() error = %v, want code %s", err, tt.wantCode)
			}
		})
	}
}

func TestSpec_RoundTrip(t *testing.T) {
	props := []field.TypeProperty{
		field.Text{TextLimits: field.TextLimits{MaxLength: intPtr(5)}},
		field.TextArea{},
		field.RichText{},
		field.Markdown{TextLimits: field.TextLimits{MaxLength: intPtr(100)}},
		field.Select{Values: []string{"a", "b"}},
		field.Tag{Tags: []field.TagDef{{ID: "t1", Name: "One", Color: "red"}}},
		field.Integer{Min: int64Ptr(-3), Max: int64Ptr(9)},
		field.Number{Min: float64Ptr(0.5)},
		field.Bool{},
		field.Checkbox{},
		field.Date{},
		field.URL{},
		field.Asset{},
		field.GeometryObject{SupportedTypes: []field.GeometryType{field.GeometryPolygon}},
		field.GeometryEditor{SupportedTypes: []field.EditorType{field.EditorAny}},
		field.Group{GroupID: "g1"},
		field.Reference{ModelID: "m1", SchemaID: "s1", CorrespondingField: &field.CorrespondingField{Key: "back", Title: "Back"}},
	}

	if len(props) != len(field.Kinds()) {
		t.Fatalf("test covers %d kinds, registry has %d", len(props), len(field.Kinds()))
	}

	for _, tp := range props {
		t.Run(string(tp.Kind()), func(t *testing.T) {
			data, err := json.Marshal(field.SpecOf(tp))
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			var spec field.Spec
			if err := json.Unmarshal(data, &spec); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			got, err := spec.Build()
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if got.Kind() != tp.Kind() {
				t.Errorf("Kind = %s, want %s", got.Kind(), tp.Kind())
			}
			again, _ := json.Marshal(field.SpecOf(got))
			if string(again) != string(data) {
				t.Errorf("round trip changed spec:\n got %s\nwant %s", again, data)
			}
		})
	}
}

func TestSpec_BuildRejectsFractionalIntegerBounds(t *testing.T) {
	_, err := field.Spec{Kind: field.KindInteger, Min: float64Ptr(1.5)}.Build()
	if err == nil {
		t.Error("expected error for fractional integer bound")
	}
	_, err = field.Spec{Kind: "polygonish"}.Build()
	if err == nil {
		t.Error("expected error for unknown kind")
	}
}
