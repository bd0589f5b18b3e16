package emitter

import (
	"fmt"

	"github.com/agenthands/drasm/pkg/compiler/ast"
	"github.com/agenthands/drasm/pkg/core/diag"
	"github.com/agenthands/drasm/pkg/core/value"
	"github.com/agenthands/drasm/pkg/stdlib"
	"github.com/agenthands/drasm/pkg/vm"
)

// Emitter lowers one Program into a vm.Module. It holds per-unit state and
// must not be shared between compilations.
type Emitter struct {
	prog *ast.Program
	mod  *vm.Module

	printIdx uint32
}

func NewEmitter(prog *ast.Program) *Emitter {
	idx, _ := stdlib.Index("print")
	return &Emitter{prog: prog, printIdx: idx}
}

// Emit generates every class. The first error aborts the whole unit and no
// module is returned.
func (e *Emitter) Emit() (*vm.Module, error) {
	e.mod = vm.NewModule()

	// Layouts first, so bodies can refer to any class, field or method
	// regardless of declaration order.
	for _, c := range e.prog.Classes {
		e.mod.AddClass(vm.NewClass(c.Name, c.Public, c.Abstract))
	}
	for i, c := range e.prog.Classes {
		if err := e.layout(c, e.mod.Classes[i]); err != nil {
			return nil, err
		}
	}
	for i, c := range e.prog.Classes {
		if err := e.emitClass(c, e.mod.Classes[i]); err != nil {
			return nil, err
		}
	}
	return e.mod, nil
}

func (e *Emitter) isClass(name string) bool {
	_, ok := e.mod.Class(name)
	return ok
}

// resolveType maps a declared type name onto a TypeRef.
func (e *Emitter) resolveType(name string, line int) (value.TypeRef, error) {
	t, ok := value.ParseTypeName(name, e.isClass)
	if !ok {
		return value.TypeRef{}, diag.New(diag.KindType, line, name, "unknown type %s", name)
	}
	return t, nil
}

func (e *Emitter) layout(c *ast.Class, vc *vm.Class) error {
	for _, f := range c.Fields {
		t, err := e.fieldType(f)
		if err != nil {
			return err
		}
		vc.AddField(vm.FieldSlot{Name: f.Name, Type: t, Public: f.Public})
	}

	for _, name := range c.MethodOrder {
		m := c.Methods[name]
		ret := value.VoidRef
		if m.ReturnType != "" && m.ReturnType != "void" {
			t, err := e.resolveType(m.ReturnType, m.Line)
			if err != nil {
				return err
			}
			ret = t
		}
		vc.AddMethod(&vm.Procedure{Name: m.Name, Public: m.Public, Abstract: m.Abstract, Returns: ret})
	}

	for _, ctor := range constructors(c) {
		vc.AddConstructor(&vm.Procedure{Name: "constructor", Public: ctor.Public, Returns: value.VoidRef})
	}
	return nil
}

// constructors returns the declared constructors of c, or a public empty one
// that only runs the field prologue.
func constructors(c *ast.Class) []*ast.Method {
	if len(c.Constructors) > 0 {
		return c.Constructors
	}
	return []*ast.Method{{
		Constructor: true,
		Public:      true,
		Line:        c.Line,
		Body:        ast.NewCodeBlock(),
	}}
}

func (e *Emitter) fieldType(f *ast.Field) (value.TypeRef, error) {
	if f.TypeName != "" {
		return e.resolveType(f.TypeName, f.Line)
	}
	switch lit := f.Default[0]; lit.Kind {
	case ast.KindInt:
		return value.IntRef, nil
	case ast.KindFloat:
		return value.FloatRef, nil
	case ast.KindDouble:
		return value.DoubleRef, nil
	case ast.KindString:
		return value.StringRef, nil
	case ast.KindBool:
		return value.BoolRef, nil
	case ast.KindByte:
		return value.ByteRef, nil
	default:
		return value.TypeRef{}, diag.New(diag.KindType, f.Line, f.Name, "cannot infer the type of field %s from %s", f.Name, lit)
	}
}

func (e *Emitter) emitClass(c *ast.Class, vc *vm.Class) error {
	for i, ctor := range constructors(c) {
		if err := e.emitProcedure(c, vc, ctor, vc.Constructors[i]); err != nil {
			return err
		}
	}
	for i, name := range c.MethodOrder {
		if err := e.emitProcedure(c, vc, c.Methods[name], vc.Methods[i]); err != nil {
			return err
		}
	}
	return nil
}

func (e *Emitter) emitProcedure(c *ast.Class, vc *vm.Class, m *ast.Method, p *vm.Procedure) error {
	b := newBlock(e, vc, m, p)
	if m.Constructor {
		if err := b.prologue(c); err != nil {
			return err
		}
	}
	if !m.Abstract {
		if err := b.body(); err != nil {
			return err
		}
	}
	b.epilogue()
	return b.finish()
}

// prologue stores every field default before user code runs.
func (b *block) prologue(c *ast.Class) error {
	for i, f := range c.Fields {
		if !f.HasValue {
			continue
		}
		b.line = f.Line
		slot := b.class.Fields[i]

		b.emit(vm.OP_PUSH_THIS, 0)
		if slot.Type.Tag == value.TypeArray && !(len(f.Default) == 1 && f.Default[0].Kind == ast.KindNull) {
			elem := *slot.Type.Elem
			b.emit(vm.OP_PUSH_C, b.constant(value.Int(int64(len(f.Default)))))
			b.emit(vm.OP_NEW_ARR, b.typeIndex(slot.Type))
			for j, lit := range f.Default {
				v, err := b.literalAs(lit, elem, f.Name)
				if err != nil {
					return err
				}
				b.emit(vm.OP_DUP, 0)
				b.emit(vm.OP_PUSH_C, b.constant(value.Int(int64(j))))
				b.emit(vm.OP_PUSH_C, b.constant(v))
				b.emit(vm.OP_STORE_IDX, 0)
			}
		} else {
			if len(f.Default) > 1 {
				return b.errorf(diag.KindType, f.Name, "field %s of type %s takes a single default value", f.Name, slot.Type)
			}
			v, err := b.literalAs(f.Default[0], slot.Type, f.Name)
			if err != nil {
				return err
			}
			b.emit(vm.OP_PUSH_C, b.constant(v))
		}
		b.emit(vm.OP_STORE_F, uint32(i))
	}
	return nil
}

// literalAs converts a literal operand into a constant of type t at compile
// time.
func (b *block) literalAs(lit ast.Operand, t value.TypeRef, construct string) (value.Value, error) {
	v, from := literal(lit)
	if !t.Assignable(from) {
		return value.Value{}, b.errorf(diag.KindType, construct, "cannot use %s literal %s as %s", from, lit, t)
	}
	if t.Tag == value.TypeByte && lit.Kind == ast.KindInt && (lit.Int < 0 || lit.Int > 255) {
		return value.Value{}, b.errorf(diag.KindType, construct, "literal %d overflows byte", lit.Int)
	}
	cv, err := value.Convert(v, t)
	if err != nil {
		return value.Value{}, b.errorf(diag.KindType, construct, "%v", err)
	}
	return cv, nil
}

// literal maps a literal operand onto its constant and type.
func literal(o ast.Operand) (value.Value, value.TypeRef) {
	switch o.Kind {
	case ast.KindString:
		return value.String(o.Text), value.StringRef
	case ast.KindBool:
		return value.Bool(o.Bool), value.BoolRef
	case ast.KindByte:
		return value.Byte(uint8(o.Int)), value.ByteRef
	case ast.KindInt:
		return value.Int(o.Int), value.IntRef
	case ast.KindFloat:
		return value.Float(o.Float), value.FloatRef
	case ast.KindDouble:
		return value.Double(o.Float), value.DoubleRef
	case ast.KindNull:
		return value.Null(), value.NullRef
	}
	panic(fmt.Sprintf("emitter: %s is not a literal", o.Kind))
}
