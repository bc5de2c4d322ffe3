package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ValueType is the type tag of a variable value.
type ValueType string

const (
	TypeNumber  ValueType = "number"
	TypeString  ValueType = "string"
	TypeBoolean ValueType = "boolean"
)

// Valid reports whether t is one of the known value types.
func (t ValueType) Valid() bool {
	switch t {
	case TypeNumber, TypeString, TypeBoolean:
		return true
	}
	return false
}

// Value is a tagged variable value. The zero Value has no type and is
// treated as "unset" by the variable store.
type Value struct {
	Type ValueType
	Num  float64
	Str  string
	Bool bool
}

// Number builds a number value.
func Number(n float64) Value { return Value{Type: TypeNumber, Num: n} }

// String builds a string value.
func String(s string) Value { return Value{Type: TypeString, Str: s} }

// Boolean builds a boolean value.
func Boolean(b bool) Value { return Value{Type: TypeBoolean, Bool: b} }

// Zero returns the zero value for the given type.
func Zero(t ValueType) Value {
	return Value{Type: t}
}

// IsZero reports whether the value carries no type.
func (v Value) IsZero() bool {
	return v.Type == ""
}

// Equal compares two values including their type tag.
func (v Value) Equal(o Value) bool {
	if v.Type != o.Type {
		return false
	}
	switch v.Type {
	case TypeNumber:
		return v.Num == o.Num
	case TypeString:
		return v.Str == o.Str
	case TypeBoolean:
		return v.Bool == o.Bool
	}
	return true
}

// Display renders the value the way it appears inside interpolated text.
func (v Value) Display() string {
	switch v.Type {
	case TypeNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case TypeString:
		return v.Str
	case TypeBoolean:
		return strconv.FormatBool(v.Bool)
	}
	return ""
}

func (v Value) String() string {
	if v.IsZero() {
		return "<unset>"
	}
	return fmt.Sprintf("%s(%s)", v.Type, v.Display())
}

// Any returns the raw Go value (float64, string or bool).
func (v Value) Any() any {
	switch v.Type {
	case TypeNumber:
		return v.Num
	case TypeString:
		return v.Str
	case TypeBoolean:
		return v.Bool
	}
	return nil
}

type wireValue struct {
	Type  ValueType       `json:"type"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON encodes the value as {"type": tag, "value": raw}.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Type.Valid() {
		return nil, fmt.Errorf("cannot marshal value with type %q", v.Type)
	}
	raw, err := json.Marshal(v.Any())
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireValue{Type: v.Type, Value: raw})
}

// UnmarshalJSON decodes the {"type", "value"} form. A value whose payload does
// not match its tag is reported as a TypeMismatchError.
func (v *Value) UnmarshalJSON(data []byte) error {
	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	out, err := ValueFrom(w.Type, w.Value)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

// ValueFrom decodes a raw JSON payload according to the given tag.
func ValueFrom(t ValueType, raw json.RawMessage) (Value, error) {
	switch t {
	case TypeNumber:
		var n float64
		if err := json.Unmarshal(raw, &n); err != nil {
			return Value{}, &TypeMismatchError{Expected: TypeNumber, Detail: string(raw)}
		}
		return Number(n), nil
	case TypeString:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Value{}, &TypeMismatchError{Expected: TypeString, Detail: string(raw)}
		}
		return String(s), nil
	case TypeBoolean:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return Value{}, &TypeMismatchError{Expected: TypeBoolean, Detail: string(raw)}
		}
		return Boolean(b), nil
	}
	return Value{}, &TypeMismatchError{Detail: fmt.Sprintf("unknown type tag %q", t)}
}

// Coerce builds a Value from a decoded Go value (as produced by JSON/YAML
// decoders). When want is empty the type is inferred.
func Coerce(want ValueType, raw any) (Value, error) {
	switch x := raw.(type) {
	case nil:
		if want.Valid() {
			return Zero(want), nil
		}
	case bool:
		if want == "" || want == TypeBoolean {
			return Boolean(x), nil
		}
	case string:
		if want == "" || want == TypeString {
			return String(x), nil
		}
	case json.Number:
		if want == "" || want == TypeNumber {
			f, err := x.Float64()
			if err != nil {
				return Value{}, &TypeMismatchError{Expected: TypeNumber, Detail: x.String()}
			}
			return Number(f), nil
		}
	case float64:
		if want == "" || want == TypeNumber {
			return Number(x), nil
		}
	case float32:
		if want == "" || want == TypeNumber {
			return Number(float64(x)), nil
		}
	case int:
		if want == "" || want == TypeNumber {
			return Number(float64(x)), nil
		}
	case int64:
		if want == "" || want == TypeNumber {
			return Number(float64(x)), nil
		}
	case uint64:
		if want == "" || want == TypeNumber {
			return Number(float64(x)), nil
		}
	case Value:
		if want == "" || want == x.Type {
			return x, nil
		}
	}
	return Value{}, &TypeMismatchError{Expected: want, Detail: fmt.Sprintf("%v (%T)", raw, raw)}
}

// VariableSnapshot is the serializable form of a variable store.
type VariableSnapshot map[string]Value

// Clone returns a shallow copy; values are immutable.
func (s VariableSnapshot) Clone() VariableSnapshot {
	out := make(VariableSnapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
