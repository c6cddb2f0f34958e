package firestore

import (
	"encoding/json"
	"testing"
	"time"

	"rockmap-rules/internal/shared/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeValue_Scalars(t *testing.T) {
	ts := time.Date(2021, 3, 4, 5, 6, 7, 8, time.UTC)

	tests := []struct {
		name  string
		value interface{}
		want  map[string]interface{}
	}{
		{"null", nil, map[string]interface{}{"nullValue": "NULL_VALUE"}},
		{"bool", true, map[string]interface{}{"booleanValue": true}},
		{"int", 42, map[string]interface{}{"integerValue": "42"}},
		{"int64", int64(-7), map[string]interface{}{"integerValue": "-7"}},
		{"double", 1.5, map[string]interface{}{"doubleValue": 1.5}},
		{"string", "taro", map[string]interface{}{"stringValue": "taro"}},
		{"timestamp", ts, map[string]interface{}{"timestampValue": "2021-03-04T05:06:07.000000008Z"}},
		{"bytes", []byte("hi"), map[string]interface{}{"bytesValue": "aGk="}},
		{"geopoint", GeoPoint{Latitude: 35.1, Longitude: 139.2},
			map[string]interface{}{"geoPointValue": map[string]interface{}{"latitude": 35.1, "longitude": 139.2}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeValue(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeValue_TypedSlice(t *testing.T) {
	got, err := EncodeValue([]string{"spring", "autumn"})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"arrayValue": map[string]interface{}{
			"values": []interface{}{
				map[string]interface{}{"stringValue": "spring"},
				map[string]interface{}{"stringValue": "autumn"},
			},
		},
	}, got)
}

func TestEncodeFields_Unsupported(t *testing.T) {
	_, err := EncodeFields(map[string]interface{}{"ch": make(chan int)})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

// Typed values survive a JSON hop, where numbers come back as float64
func TestEncodeDecode_OverJSON(t *testing.T) {
	createdAt := time.Date(2020, 12, 1, 9, 0, 0, 0, time.UTC)
	fields := map[string]interface{}{
		"name":      "rock",
		"createdAt": createdAt,
		"deleted":   false,
		"count":     int64(3),
		"location":  GeoPoint{Latitude: 35.6, Longitude: 139.7},
		"seasons":   []interface{}{"winter"},
		"headerUrl": nil,
		"socialLinks": []interface{}{
			map[string]interface{}{"linkType": "twitter", "link": "@rock"},
		},
	}

	encoded, err := EncodeFields(fields)
	require.NoError(t, err)

	payload, err := json.Marshal(encoded)
	require.NoError(t, err)
	var wire map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &wire))

	decoded, err := DecodeFields(wire)
	require.NoError(t, err)
	assert.Equal(t, fields, decoded)
}

func TestDecodeValue_Invalid(t *testing.T) {
	for name, value := range map[string]interface{}{
		"not a map":    "plain",
		"two kinds":    map[string]interface{}{"stringValue": "a", "booleanValue": true},
		"unknown kind": map[string]interface{}{"fooValue": 1},
		"bad integer":  map[string]interface{}{"integerValue": "x1"},
		"bad time":     map[string]interface{}{"timestampValue": "yesterday"},
		"bad bool":     map[string]interface{}{"booleanValue": "true"},
	} {
		_, err := DecodeValue(value)
		assert.Error(t, err, name)
	}
}

func TestDecodeValue_EmptyContainers(t *testing.T) {
	arr, err := DecodeValue(map[string]interface{}{"arrayValue": map[string]interface{}{}})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{}, arr)

	m, err := DecodeValue(map[string]interface{}{"mapValue": map[string]interface{}{}})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{}, m)
}
