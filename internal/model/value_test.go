package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValueType(t *testing.T) {
	for _, s := range []string{"string", "number", "boolean", "array", "object"} {
		got, err := ParseValueType(s)
		require.NoError(t, err, s)
		assert.Equal(t, ValueType(s), got)
	}

	_, err := ParseValueType("float")
	assert.Error(t, err)
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		name    string
		typ     ValueType
		raw     string
		want    any
		wantErr bool
	}{
		{name: "string passthrough", typ: TypeString, raw: "hello", want: "hello"},
		{name: "empty string", typ: TypeString, raw: "", want: ""},
		{name: "number int", typ: TypeNumber, raw: "42", want: float64(42)},
		{name: "number float", typ: TypeNumber, raw: "0.7", want: 0.7},
		{name: "number negative", typ: TypeNumber, raw: "-1.5", want: -1.5},
		{name: "number garbage", typ: TypeNumber, raw: "fast", wantErr: true},
		{name: "boolean true", typ: TypeBoolean, raw: "true", want: true},
		{name: "boolean false", typ: TypeBoolean, raw: "false", want: false},
		{name: "boolean yes rejected", typ: TypeBoolean, raw: "yes", wantErr: true},
		{name: "boolean upper rejected", typ: TypeBoolean, raw: "True", wantErr: true},
		{name: "array", typ: TypeArray, raw: `["a","b"]`, want: []any{"a", "b"}},
		{name: "array empty", typ: TypeArray, raw: `[]`, want: []any{}},
		{name: "array not json", typ: TypeArray, raw: `a,b`, wantErr: true},
		{name: "array object rejected", typ: TypeArray, raw: `{"a":1}`, wantErr: true},
		{name: "object", typ: TypeObject, raw: `{"k":"v"}`, want: map[string]any{"k": "v"}},
		{name: "object array rejected", typ: TypeObject, raw: `[1,2]`, wantErr: true},
		{name: "object not json", typ: TypeObject, raw: `k=v`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseValue(tt.typ, tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
