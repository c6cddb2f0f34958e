package firestore

import (
	"encoding/base64"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"rockmap-rules/internal/shared/errors"
)

// GeoPoint is a latitude/longitude pair stored as a geoPointValue
type GeoPoint struct {
	Latitude  float64 `json:"latitude" bson:"latitude"`
	Longitude float64 `json:"longitude" bson:"longitude"`
}

// Map returns the point as a plain map, the shape rule conditions see
func (g GeoPoint) Map() map[string]interface{} {
	return map[string]interface{}{
		"latitude":  g.Latitude,
		"longitude": g.Longitude,
	}
}

// EncodeFields converts a native field map into Firestore typed values:
// {"name": {"stringValue": "taro"}, ...}
func EncodeFields(fields map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(fields))
	for key, value := range fields {
		encoded, err := EncodeValue(value)
		if err != nil {
			return nil, errors.NewValidationError("unsupported field value").
				WithDetail("field", key).
				WithCause(err)
		}
		out[key] = encoded
	}
	return out, nil
}

// EncodeValue converts a native Go value into a Firestore typed value
func EncodeValue(value interface{}) (map[string]interface{}, error) {
	switch v := value.(type) {
	case nil:
		return map[string]interface{}{"nullValue": "NULL_VALUE"}, nil
	case bool:
		return map[string]interface{}{"booleanValue": v}, nil
	case int:
		return integerValue(int64(v)), nil
	case int32:
		return integerValue(int64(v)), nil
	case int64:
		return integerValue(v), nil
	case float32:
		return map[string]interface{}{"doubleValue": float64(v)}, nil
	case float64:
		return map[string]interface{}{"doubleValue": v}, nil
	case string:
		return map[string]interface{}{"stringValue": v}, nil
	case time.Time:
		return map[string]interface{}{"timestampValue": v.UTC().Format(time.RFC3339Nano)}, nil
	case *time.Time:
		if v == nil {
			return EncodeValue(nil)
		}
		return EncodeValue(*v)
	case []byte:
		return map[string]interface{}{"bytesValue": base64.StdEncoding.EncodeToString(v)}, nil
	case GeoPoint:
		return map[string]interface{}{"geoPointValue": v.Map()}, nil
	case *GeoPoint:
		if v == nil {
			return EncodeValue(nil)
		}
		return EncodeValue(*v)
	case map[string]interface{}:
		fields, err := EncodeFields(v)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"mapValue": map[string]interface{}{"fields": fields}}, nil
	case []interface{}:
		values := make([]interface{}, 0, len(v))
		for _, item := range v {
			encoded, err := EncodeValue(item)
			if err != nil {
				return nil, err
			}
			values = append(values, encoded)
		}
		return map[string]interface{}{"arrayValue": map[string]interface{}{"values": values}}, nil
	}

	// Typed slices such as []string
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice {
		items := make([]interface{}, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return EncodeValue(items)
	}
	return nil, fmt.Errorf("unsupported value type %T", value)
}

func integerValue(v int64) map[string]interface{} {
	// Firestore sends integers as strings
	return map[string]interface{}{"integerValue": strconv.FormatInt(v, 10)}
}

// DecodeFields converts Firestore typed fields back into native Go values
func DecodeFields(fields map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(fields))
	for key, value := range fields {
		decoded, err := DecodeValue(value)
		if err != nil {
			return nil, errors.NewValidationError("invalid typed value").
				WithDetail("field", key).
				WithCause(err)
		}
		out[key] = decoded
	}
	return out, nil
}

// DecodeValue extracts the native value from a Firestore typed value
func DecodeValue(value interface{}) (interface{}, error) {
	typed, ok := value.(map[string]interface{})
	if !ok || len(typed) != 1 {
		return nil, fmt.Errorf("expected a single typed value, got %v", value)
	}

	for kind, raw := range typed {
		switch kind {
		case "nullValue":
			return nil, nil
		case "booleanValue":
			b, ok := raw.(bool)
			if !ok {
				return nil, fmt.Errorf("booleanValue must be a bool")
			}
			return b, nil
		case "integerValue":
			return decodeInteger(raw)
		case "doubleValue":
			switch d := raw.(type) {
			case float64:
				return d, nil
			case string:
				return strconv.ParseFloat(d, 64)
			}
			return nil, fmt.Errorf("doubleValue must be a number")
		case "stringValue", "referenceValue":
			s, ok := raw.(string)
			if !ok {
				return nil, fmt.Errorf("%s must be a string", kind)
			}
			return s, nil
		case "timestampValue":
			s, ok := raw.(string)
			if !ok {
				return nil, fmt.Errorf("timestampValue must be a string")
			}
			t, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return nil, fmt.Errorf("invalid timestampValue %q: %w", s, err)
			}
			return t, nil
		case "bytesValue":
			s, ok := raw.(string)
			if !ok {
				return nil, fmt.Errorf("bytesValue must be a base64 string")
			}
			return base64.StdEncoding.DecodeString(s)
		case "geoPointValue":
			point, ok := raw.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("geoPointValue must be an object")
			}
			lat, _ := point["latitude"].(float64)
			lng, _ := point["longitude"].(float64)
			return GeoPoint{Latitude: lat, Longitude: lng}, nil
		case "arrayValue":
			array, _ := raw.(map[string]interface{})
			values, _ := array["values"].([]interface{})
			out := make([]interface{}, 0, len(values))
			for _, item := range values {
				decoded, err := DecodeValue(item)
				if err != nil {
					return nil, err
				}
				out = append(out, decoded)
			}
			return out, nil
		case "mapValue":
			m, _ := raw.(map[string]interface{})
			fields, _ := m["fields"].(map[string]interface{})
			return DecodeFields(fields)
		default:
			return nil, fmt.Errorf("unknown value type %q", kind)
		}
	}
	return nil, nil
}

func decodeInteger(raw interface{}) (int64, error) {
	switch v := raw.(type) {
	case string:
		i, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid integerValue %q: %w", v, err)
		}
		return i, nil
	case float64:
		return int64(v), nil
	}
	return 0, fmt.Errorf("integerValue must be a string")
}
