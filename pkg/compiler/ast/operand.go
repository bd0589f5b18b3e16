package ast

import (
	"fmt"
	"strconv"
)

// Kind is the DRASM value kind of an operand.
type Kind uint8

const (
	KindIdentifier Kind = iota
	KindString
	KindBool
	KindByte
	KindInt
	KindFloat
	KindDouble
	KindNull
	KindReturnValue
)

var kindNames = [...]string{
	KindIdentifier:  "identifier",
	KindString:      "string",
	KindBool:        "bool",
	KindByte:        "byte",
	KindInt:         "int",
	KindFloat:       "float",
	KindDouble:      "double",
	KindNull:        "null",
	KindReturnValue: "return-value",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

func (k Kind) IsFloating() bool { return k == KindFloat || k == KindDouble }

func (k Kind) IsNumeric() bool {
	return k == KindByte || k == KindInt || k == KindFloat || k == KindDouble
}

// Operand is a closed tagged union: Kind selects which payload is meaningful.
// Text carries identifier names and string literals.
type Operand struct {
	Kind  Kind
	Text  string
	Int   int64
	Float float64
	Bool  bool
}

func Ident(name string) Operand  { return Operand{Kind: KindIdentifier, Text: name} }
func Str(s string) Operand       { return Operand{Kind: KindString, Text: s} }
func IntLit(i int64) Operand     { return Operand{Kind: KindInt, Int: i} }
func FloatLit(f float64) Operand { return Operand{Kind: KindFloat, Float: f} }
func BoolLit(b bool) Operand     { return Operand{Kind: KindBool, Bool: b} }
func NullLit() Operand           { return Operand{Kind: KindNull} }
func ReturnValue() Operand       { return Operand{Kind: KindReturnValue} }

func (o Operand) String() string {
	switch o.Kind {
	case KindIdentifier:
		return o.Text
	case KindString:
		return strconv.Quote(o.Text)
	case KindBool:
		return strconv.FormatBool(o.Bool)
	case KindByte, KindInt:
		return strconv.FormatInt(o.Int, 10)
	case KindFloat, KindDouble:
		return strconv.FormatFloat(o.Float, 'g', -1, 64)
	case KindNull:
		return "null"
	case KindReturnValue:
		return "ret"
	}
	panic(fmt.Sprintf("ast: unhandled operand kind %d", o.Kind))
}
