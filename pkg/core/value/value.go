package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Type represents the tag in the Value tagged union.
type Type uint8

const (
	TypeVoid Type = iota
	TypeNull
	TypeBool
	TypeByte
	TypeInt
	TypeFloat
	TypeDouble
	TypeString
	TypeArray
	TypeObject
)

var typeNames = [...]string{
	TypeVoid:   "void",
	TypeNull:   "null",
	TypeBool:   "bool",
	TypeByte:   "byte",
	TypeInt:    "int",
	TypeFloat:  "float",
	TypeDouble: "double",
	TypeString: "string",
	TypeArray:  "array",
	TypeObject: "object",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// Value is a tagged union. Scalars live in Data; strings, arrays and objects in Opaque.
type Value struct {
	Type   Type
	Data   uint64
	Opaque any
}

// Array is the backing store of a TypeArray value.
type Array struct {
	Elem  TypeRef
	Items []Value
}

// Named is implemented by host objects stored in TypeObject values.
type Named interface {
	TypeName() string
}

func Null() Value               { return Value{Type: TypeNull} }
func Bool(b bool) Value         { return Value{Type: TypeBool, Data: b2u(b)} }
func Byte(b uint8) Value        { return Value{Type: TypeByte, Data: uint64(b)} }
func Int(i int64) Value         { return Value{Type: TypeInt, Data: uint64(i)} }
func Double(f float64) Value    { return Value{Type: TypeDouble, Data: math.Float64bits(f)} }
func String(s string) Value     { return Value{Type: TypeString, Opaque: s} }
func Object(o Named) Value      { return Value{Type: TypeObject, Opaque: o} }
func ArrayValue(a *Array) Value { return Value{Type: TypeArray, Opaque: a} }

// Float stores f with single precision semantics.
func Float(f float64) Value {
	return Value{Type: TypeFloat, Data: math.Float64bits(float64(float32(f)))}
}

// NewArray allocates an array of n zero elements.
func NewArray(elem TypeRef, n int) Value {
	items := make([]Value, n)
	for i := range items {
		items[i] = elem.Zero()
	}
	return ArrayValue(&Array{Elem: elem, Items: items})
}

func b2u(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// Int returns the value as int64.
func (v Value) Int() int64 {
	switch v.Type {
	case TypeFloat, TypeDouble:
		return int64(math.Float64frombits(v.Data))
	}
	return int64(v.Data)
}

// Float returns the value as float64.
func (v Value) Float() float64 {
	if v.Type == TypeFloat || v.Type == TypeDouble {
		return math.Float64frombits(v.Data)
	}
	return float64(int64(v.Data))
}

func (v Value) Bool() bool { return v.Data != 0 }

// Str returns the string payload, or "" for non-strings.
func (v Value) Str() string {
	s, _ := v.Opaque.(string)
	return s
}

// Array returns the array payload, or nil for null and non-arrays.
func (v Value) Array() *Array {
	a, _ := v.Opaque.(*Array)
	return a
}

// IsNull reports whether v is null or an unset reference.
func (v Value) IsNull() bool {
	switch v.Type {
	case TypeNull, TypeVoid:
		return true
	case TypeArray, TypeObject:
		return v.Opaque == nil
	}
	return false
}

// Format returns the printable form of the value.
func (v Value) Format() string {
	return v.formatRecursive(0)
}

func (v Value) formatRecursive(depth int) string {
	if depth > 10 {
		return "..."
	}
	switch v.Type {
	case TypeString:
		return v.Str()
	case TypeInt:
		return strconv.FormatInt(int64(v.Data), 10)
	case TypeByte:
		return strconv.FormatUint(v.Data&0xFF, 10)
	case TypeFloat:
		return strconv.FormatFloat(math.Float64frombits(v.Data), 'g', -1, 32)
	case TypeDouble:
		return strconv.FormatFloat(math.Float64frombits(v.Data), 'g', -1, 64)
	case TypeBool:
		if v.Data != 0 {
			return "true"
		}
		return "false"
	case TypeArray:
		a := v.Array()
		if a == nil {
			return "null"
		}
		parts := make([]string, len(a.Items))
		for i, el := range a.Items {
			parts[i] = el.formatRecursive(depth + 1)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case TypeObject:
		if o, ok := v.Opaque.(Named); ok && o != nil {
			return "<" + o.TypeName() + ">"
		}
		return "null"
	case TypeNull, TypeVoid:
		return "null"
	default:
		return fmt.Sprintf("%v", v.Data)
	}
}

// Equal compares two values of the same tag. Numeric tags compare by value.
func Equal(a, b Value) bool {
	if a.IsNumeric() && b.IsNumeric() {
		if a.IsFloating() || b.IsFloating() {
			return a.Float() == b.Float()
		}
		return a.Int() == b.Int()
	}
	switch {
	case a.IsNull() || b.IsNull():
		return a.IsNull() && b.IsNull()
	case a.Type != b.Type:
		return false
	case a.Type == TypeString:
		return a.Str() == b.Str()
	case a.Type == TypeBool:
		return a.Data == b.Data
	}
	return a.Opaque == b.Opaque
}

// Less orders two numeric values.
func Less(a, b Value) bool {
	if a.IsFloating() || b.IsFloating() {
		return a.Float() < b.Float()
	}
	return a.Int() < b.Int()
}

func (v Value) IsNumeric() bool  { return v.Type.IsNumeric() }
func (v Value) IsFloating() bool { return v.Type.IsFloating() }

func (t Type) IsNumeric() bool {
	return t == TypeByte || t == TypeInt || t == TypeFloat || t == TypeDouble
}

func (t Type) IsFloating() bool { return t == TypeFloat || t == TypeDouble }

// IsReference reports whether null is assignable to the tag.
func (t Type) IsReference() bool {
	return t == TypeString || t == TypeArray || t == TypeObject || t == TypeNull
}
