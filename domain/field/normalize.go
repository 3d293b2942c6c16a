package field

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Normalize converts a raw value into the canonical Go shape of the kind:
//
//	text kinds, select, tag, url, asset, reference -> string
//	integer -> int64
//	number -> float64
//	bool, checkbox -> bool
//	date -> time.Time (UTC)
//	geometry kinds -> compact GeoJSON string
//
// Transport layers hand numbers over as float64 or json.Number; both are
// accepted for integer fields as long as the value is whole.
func Normalize(kind Kind, raw any) (any, error) {
	if raw == nil {
		return nil, invalid(CodeTypeMismatch, "%s value is null", kind)
	}
	switch kind {
	case KindText, KindTextArea, KindRichText, KindMarkdown,
		KindSelect, KindTag, KindURL, KindAsset, KindReference:
		s, ok := raw.(string)
		if !ok {
			return nil, invalid(CodeTypeMismatch, "%s value must be a string, got %T", kind, raw)
		}
		return s, nil
	case KindInteger:
		return toInt64(raw)
	case KindNumber:
		f, ok := toFloat64(raw)
		if !ok {
			return nil, invalid(CodeTypeMismatch, "number value must be numeric, got %T", raw)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, invalid(CodeTypeMismatch, "number value must be finite")
		}
		return f, nil
	case KindBool, KindCheckbox:
		b, ok := raw.(bool)
		if !ok {
			return nil, invalid(CodeTypeMismatch, "%s value must be a bool, got %T", kind, raw)
		}
		return b, nil
	case KindDate:
		return toTime(raw)
	case KindGeometryObject, KindGeometryEditor:
		return toGeoJSON(raw)
	case KindGroup:
		return nil, invalid(CodeTypeMismatch, "group fields hold no value")
	}
	return nil, invalid(CodeTypeMismatch, "unknown field kind %q", kind)
}

func toFloat64(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

func toInt64(raw any) (int64, error) {
	switch v := raw.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint:
		if uint64(v) > math.MaxInt64 {
			return 0, invalid(CodeValueOutOfRange, "integer value %d overflows int64", v)
		}
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, invalid(CodeValueOutOfRange, "integer value %d overflows int64", v)
		}
		return int64(v), nil
	case json.Number:
		if i, err := strconv.ParseInt(string(v), 10, 64); err == nil {
			return i, nil
		}
		f, err := v.Float64()
		if err != nil {
			return 0, invalid(CodeTypeMismatch, "integer value %q is not numeric", string(v))
		}
		return wholeOrMismatch(f)
	}
	if f, ok := toFloat64(raw); ok {
		return wholeOrMismatch(f)
	}
	return 0, invalid(CodeTypeMismatch, "integer value must be numeric, got %T", raw)
}

func wholeOrMismatch(f float64) (int64, error) {
	i, ok := wholeNumber(f)
	if !ok {
		return 0, invalid(CodeTypeMismatch, "integer value %v is not a whole number", f)
	}
	return i, nil
}

func toTime(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v.UTC(), nil
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return time.Time{}, invalid(CodeTypeMismatch, "date value %q is not RFC3339", v)
		}
		return t.UTC(), nil
	}
	return time.Time{}, invalid(CodeTypeMismatch, "date value must be a timestamp, got %T", raw)
}

func toGeoJSON(raw any) (string, error) {
	var data []byte
	switch v := raw.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	case map[string]any:
		b, err := json.Marshal(v)
		if err != nil {
			return "", invalid(CodeTypeMismatch, "geometry value cannot be encoded: %v", err)
		}
		data = b
	default:
		return "", invalid(CodeTypeMismatch, "geometry value must be GeoJSON, got %T", raw)
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return "", invalid(CodeTypeMismatch, "geometry value is not valid JSON")
	}
	return buf.String(), nil
}

// geometryType extracts the upper-cased GeoJSON "type" member.
func geometryType(geojson string) (string, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(geojson), &head); err != nil {
		return "", invalid(CodeTypeMismatch, "geometry value is not a GeoJSON object")
	}
	t := strings.ToUpper(head.Type)
	switch GeometryType(t) {
	case GeometryPoint, GeometryMultiPoint, GeometryLineString, GeometryMultiLineString,
		GeometryPolygon, GeometryMultiPolygon, GeometryCollection:
		return t, nil
	}
	return "", invalid(CodeTypeMismatch, "unknown geometry type %q", head.Type)
}
