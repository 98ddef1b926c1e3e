package program

import (
	"fmt"
	"strconv"
)

// ---------------------------------------------------------------------------
// Value: the runtime value model shared by the compiler and the VM
// ---------------------------------------------------------------------------

// ValueType identifies the type of a Value.
type ValueType uint8

const (
	TypeAny ValueType = iota // unknown / not yet inferred
	TypeString
	TypeNumber
	TypeBool
)

// String returns a human-readable name for ValueType.
func (t ValueType) String() string {
	switch t {
	case TypeAny:
		return "any"
	case TypeString:
		return "string"
	case TypeNumber:
		return "number"
	case TypeBool:
		return "bool"
	default:
		return fmt.Sprintf("ValueType(%d)", uint8(t))
	}
}

// ParseValueType resolves a type name as written in a declare statement.
func ParseValueType(name string) (ValueType, bool) {
	switch name {
	case "string":
		return TypeString, true
	case "number":
		return TypeNumber, true
	case "bool":
		return TypeBool, true
	default:
		return TypeAny, false
	}
}

// Value is a tagged union over the three dialogue value kinds.
// The zero Value is the empty string.
type Value struct {
	Type ValueType `cbor:"1,keyasint"`
	Str  string    `cbor:"2,keyasint,omitempty"`
	Num  float64   `cbor:"3,keyasint,omitempty"`
	Bool bool      `cbor:"4,keyasint,omitempty"`
}

// String constructs a string Value.
func String(s string) Value { return Value{Type: TypeString, Str: s} }

// Number constructs a number Value.
func Number(n float64) Value { return Value{Type: TypeNumber, Num: n} }

// Bool constructs a bool Value.
func Bool(b bool) Value { return Value{Type: TypeBool, Bool: b} }

// AsString returns the string payload, or an error for other kinds.
func (v Value) AsString() (string, error) {
	if v.Type != TypeString {
		return "", fmt.Errorf("value is %s, not string", v.Type)
	}
	return v.Str, nil
}

// AsNumber returns the numeric payload, or an error for other kinds.
func (v Value) AsNumber() (float64, error) {
	if v.Type != TypeNumber {
		return 0, fmt.Errorf("value is %s, not number", v.Type)
	}
	return v.Num, nil
}

// AsBool returns the boolean payload, or an error for other kinds.
func (v Value) AsBool() (bool, error) {
	if v.Type != TypeBool {
		return false, fmt.Errorf("value is %s, not bool", v.Type)
	}
	return v.Bool, nil
}

// ConvertString renders the value as display text. Numbers render with
// trailing zeros trimmed, so 3.0 becomes "3" in delivered lines.
func (v Value) ConvertString() string {
	switch v.Type {
	case TypeString:
		return v.Str
	case TypeNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case TypeBool:
		if v.Bool {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

// Equals reports value equality. Values of different kinds are never
// equal; there is no implicit coercion.
func (v Value) Equals(o Value) bool {
	if v.Type != o.Type {
		return false
	}
	switch v.Type {
	case TypeString:
		return v.Str == o.Str
	case TypeNumber:
		return v.Num == o.Num
	case TypeBool:
		return v.Bool == o.Bool
	default:
		return false
	}
}

// GoString implements fmt.GoStringer for readable test failures.
func (v Value) GoString() string {
	switch v.Type {
	case TypeString:
		return fmt.Sprintf("String(%q)", v.Str)
	case TypeNumber:
		return fmt.Sprintf("Number(%v)", v.Num)
	case TypeBool:
		return fmt.Sprintf("Bool(%v)", v.Bool)
	default:
		return "Value{}"
	}
}
