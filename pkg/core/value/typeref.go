package value

import (
	"fmt"
	"strings"
)

// TypeRef is a fully resolved DRASM type: a tag, plus the element type for
// arrays or the class name for objects.
type TypeRef struct {
	Tag   Type
	Elem  *TypeRef
	Class string
}

var (
	VoidRef   = TypeRef{Tag: TypeVoid}
	NullRef   = TypeRef{Tag: TypeNull}
	BoolRef   = TypeRef{Tag: TypeBool}
	ByteRef   = TypeRef{Tag: TypeByte}
	IntRef    = TypeRef{Tag: TypeInt}
	FloatRef  = TypeRef{Tag: TypeFloat}
	DoubleRef = TypeRef{Tag: TypeDouble}
	StringRef = TypeRef{Tag: TypeString}
)

// Scalars maps the builtin type names to their references.
var Scalars = map[string]TypeRef{
	"bool":   BoolRef,
	"byte":   ByteRef,
	"int":    IntRef,
	"float":  FloatRef,
	"double": DoubleRef,
	"string": StringRef,
}

func ArrayOf(elem TypeRef) TypeRef {
	return TypeRef{Tag: TypeArray, Elem: &elem}
}

func ObjectOf(class string) TypeRef {
	return TypeRef{Tag: TypeObject, Class: class}
}

func (t TypeRef) String() string {
	switch t.Tag {
	case TypeArray:
		if t.Elem == nil {
			return "[]"
		}
		return t.Elem.String() + "[]"
	case TypeObject:
		return t.Class
	}
	return t.Tag.String()
}

// Equal reports structural identity.
func (t TypeRef) Equal(o TypeRef) bool {
	if t.Tag != o.Tag {
		return false
	}
	switch t.Tag {
	case TypeArray:
		if t.Elem == nil || o.Elem == nil {
			return t.Elem == o.Elem
		}
		return t.Elem.Equal(*o.Elem)
	case TypeObject:
		return t.Class == o.Class
	}
	return true
}

// Zero returns the value a fresh slot of this type holds.
func (t TypeRef) Zero() Value {
	switch t.Tag {
	case TypeBool:
		return Bool(false)
	case TypeByte:
		return Byte(0)
	case TypeInt:
		return Int(0)
	case TypeFloat:
		return Float(0)
	case TypeDouble:
		return Double(0)
	case TypeString:
		return String("")
	case TypeVoid:
		return Value{}
	}
	return Null()
}

// Assignable reports whether a value of type from may be stored in a slot of
// type t, possibly through Convert.
func (t TypeRef) Assignable(from TypeRef) bool {
	switch {
	case t.Tag == TypeString:
		return from.Tag != TypeVoid
	case t.Tag.IsNumeric():
		return from.Tag.IsNumeric()
	case t.Tag == TypeBool:
		return from.Tag == TypeBool
	case t.Tag == TypeArray || t.Tag == TypeObject:
		return from.Tag == TypeNull || t.Equal(from)
	}
	return false
}

// Convert coerces v into type t. Numeric kinds convert freely (floating to
// integer truncates, byte wraps), any value converts to string.
func Convert(v Value, t TypeRef) (Value, error) {
	switch t.Tag {
	case TypeInt:
		if v.IsNumeric() {
			return Int(v.Int()), nil
		}
	case TypeByte:
		if v.IsNumeric() {
			return Byte(uint8(v.Int())), nil
		}
	case TypeFloat:
		if v.IsNumeric() {
			return Float(v.Float()), nil
		}
	case TypeDouble:
		if v.IsNumeric() {
			return Double(v.Float()), nil
		}
	case TypeBool:
		if v.Type == TypeBool {
			return v, nil
		}
	case TypeString:
		if v.Type == TypeString || v.IsNull() {
			return v, nil
		}
		return String(v.Format()), nil
	case TypeArray:
		if v.IsNull() {
			return Null(), nil
		}
		if a := v.Array(); a != nil && t.Elem != nil && a.Elem.Equal(*t.Elem) {
			return v, nil
		}
	case TypeObject:
		if v.IsNull() {
			return Null(), nil
		}
		if o, ok := v.Opaque.(Named); ok && o.TypeName() == t.Class {
			return v, nil
		}
	}
	return Value{}, fmt.Errorf("value: cannot convert %s to %s", v.Type, t)
}

// ParseTypeName resolves a builtin or array type name. classes reports
// whether a name is a declared class. ok is false for unknown names.
func ParseTypeName(name string, classes func(string) bool) (TypeRef, bool) {
	if strings.HasSuffix(name, "[]") {
		elem, ok := ParseTypeName(strings.TrimSuffix(name, "[]"), classes)
		if !ok || elem.Tag == TypeVoid {
			return TypeRef{}, false
		}
		return ArrayOf(elem), true
	}
	if t, ok := Scalars[name]; ok {
		return t, true
	}
	if name != "" && classes != nil && classes(name) {
		return ObjectOf(name), true
	}
	return TypeRef{}, false
}
