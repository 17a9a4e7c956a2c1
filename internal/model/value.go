package model

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// ValueType tags how a parameter value is interpreted and validated.
// Values are stored as their canonical string encoding and checked at
// write time, so the same row shape works for every type.
type ValueType string

const (
	TypeString  ValueType = "string"
	TypeNumber  ValueType = "number"
	TypeBoolean ValueType = "boolean"
	TypeArray   ValueType = "array"
	TypeObject  ValueType = "object"
)

// valueTypes lists every defined ValueType.
var valueTypes = map[ValueType]struct{}{
	TypeString:  {},
	TypeNumber:  {},
	TypeBoolean: {},
	TypeArray:   {},
	TypeObject:  {},
}

// Valid reports whether t is one of the defined value types.
func (t ValueType) Valid() bool {
	_, ok := valueTypes[t]
	return ok
}

// ParseValueType converts a string into a ValueType.
func ParseValueType(s string) (ValueType, error) {
	t := ValueType(s)
	if !t.Valid() {
		return "", eris.Errorf("unknown value type: %q", s)
	}
	return t, nil
}

// ParseValue decodes a raw stored value into its Go representation:
// float64 for number, bool for boolean, []any for array, map[string]any
// for object, and the string itself for string. An error means the raw
// encoding does not satisfy the type.
func ParseValue(t ValueType, raw string) (any, error) {
	switch t {
	case TypeString:
		return raw, nil
	case TypeNumber:
		n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, eris.Errorf("not a number: %q", raw)
		}
		return n, nil
	case TypeBoolean:
		switch strings.TrimSpace(raw) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		default:
			return nil, eris.Errorf("not a boolean: %q", raw)
		}
	case TypeArray:
		var arr []any
		if err := json.Unmarshal([]byte(raw), &arr); err != nil {
			return nil, eris.Errorf("not a JSON array: %q", raw)
		}
		return arr, nil
	case TypeObject:
		var obj map[string]any
		if err := json.Unmarshal([]byte(raw), &obj); err != nil {
			return nil, eris.Errorf("not a JSON object: %q", raw)
		}
		return obj, nil
	default:
		return nil, eris.Errorf("unknown value type: %q", t)
	}
}
