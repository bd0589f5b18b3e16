package emitter

import (
	"fmt"
	"strings"

	"github.com/agenthands/drasm/pkg/compiler/ast"
	"github.com/agenthands/drasm/pkg/core/diag"
	"github.com/agenthands/drasm/pkg/core/value"
	"github.com/agenthands/drasm/pkg/vm"
)

// lower emits the code of the i-th instruction of the block.
func (b *block) lower(i int, in *ast.Instruction) error {
	ops := in.Operands
	switch in.Op {
	case ast.OpSet:
		return b.lowerSet(ops[0], ops[1])

	case ast.OpDefine:
		return b.lowerDefine(ops)

	case ast.OpDelete:
		name, err := b.identifier(ops[0], "op_delete")
		if err != nil {
			return err
		}
		if _, ok := b.locals[name]; !ok {
			return b.errorf(diag.KindResolution, name, "unknown local %s", name)
		}
		delete(b.locals, name)
		return nil

	case ast.OpSelect, ast.OpCompare:
		t, err := b.operand(ops[0])
		if err != nil {
			return err
		}
		r := regSelected
		if in.Op == ast.OpCompare {
			r = regComparing
		}
		b.writeRegister(r, t)
		return nil

	case ast.OpAdd, ast.OpSub, ast.OpMul, ast.OpDiv, ast.OpRem:
		return b.lowerArithmetic(in)

	case ast.OpIsTrue, ast.OpIsFalse, ast.OpIsEqls, ast.OpIsNeqls, ast.OpIsGrtn, ast.OpIsLstn:
		if err := b.lowerCondition(in); err != nil {
			return err
		}
		// A failed condition skips exactly the next instruction.
		b.jumpTo(vm.OP_JMP_FALSE, i+2)
		b.pop(1)
		return nil

	case ast.OpGoto, ast.OpJmp:
		name, err := b.identifier(ops[0], in.Op.String())
		if err != nil {
			return err
		}
		target, ok := b.method.Body.Labels[name]
		if !ok {
			return b.errorf(diag.KindResolution, name, "undefined label %s", name)
		}
		b.jumpTo(vm.OP_JMP, target)
		b.reachable = false
		return nil

	case ast.OpLoop:
		b.loops = append(b.loops, loopTop{pc: b.pc(), instr: i})
		return nil

	case ast.OpDoop:
		if len(b.loops) == 0 {
			return b.errorf(diag.KindStructural, "op_doop", "op_doop without an open op_loop")
		}
		top := b.loops[len(b.loops)-1]
		b.emit(vm.OP_JMP, uint32(top.pc))
		b.edge(top.instr)
		b.reachable = false
		return nil

	case ast.OpBreak:
		if len(b.loops) == 0 {
			return b.errorf(diag.KindStructural, "op_break", "op_break without an open op_loop")
		}
		b.loops = b.loops[:len(b.loops)-1]
		return nil

	case ast.OpCall:
		return b.lowerCall(ops[0])

	case ast.OpPrint:
		if _, err := b.operand(ops[0]); err != nil {
			return err
		}
		b.emit(vm.OP_SYSCALL, b.e.printIdx)
		b.pop(1)
		return nil

	case ast.OpReturn:
		b.reachable = false
		return b.lowerReturn(ops)

	case ast.OpNew:
		return b.lowerNew(ops)
	}
	return fmt.Errorf("emitter: unhandled opcode %s", in.Op)
}

// operand pushes the value of o and returns its type.
func (b *block) operand(o ast.Operand) (value.TypeRef, error) {
	switch o.Kind {
	case ast.KindIdentifier:
		p, err := b.resolve(o.Text)
		if err != nil {
			return value.TypeRef{}, err
		}
		b.load(p)
		return p.typ, nil
	case ast.KindReturnValue:
		if err := b.readRegister(regReturn, "ret"); err != nil {
			return value.TypeRef{}, err
		}
		return b.regs[regReturn].typ, nil
	}
	v, t := literal(o)
	b.emit(vm.OP_PUSH_C, b.constant(v))
	b.push(t)
	return t, nil
}

// leftOperand pushes an explicit left operand, or the register r when the
// instruction omits it.
func (b *block) leftOperand(ops []ast.Operand, want int, r int, construct string) ([]ast.Operand, error) {
	if len(ops) == want {
		if _, err := b.operand(ops[0]); err != nil {
			return nil, err
		}
		return ops[1:], nil
	}
	return ops, b.readRegister(r, construct)
}

func (b *block) identifier(o ast.Operand, construct string) (string, error) {
	if o.Kind != ast.KindIdentifier {
		return "", b.errorf(diag.KindStructural, construct, "%s expects a name, got %s", construct, o)
	}
	return o.Text, nil
}

func (b *block) lowerSet(target, src ast.Operand) error {
	name, err := b.identifier(target, "op_set")
	if err != nil {
		return err
	}
	p, err := b.resolve(name)
	if err != nil {
		return err
	}
	if _, err := b.operand(src); err != nil {
		return err
	}
	return b.store(p)
}

func (b *block) lowerDefine(ops []ast.Operand) error {
	name, err := b.identifier(ops[0], "op_define")
	if err != nil {
		return err
	}
	if ops[1].Kind != ast.KindIdentifier || ops[1].Text != "as" {
		return b.errorf(diag.KindStructural, name, "expected: op_define %s as <type>", name)
	}
	typeName, err := b.identifier(ops[2], "op_define")
	if err != nil {
		return err
	}
	if strings.ContainsAny(name, ".[]") || name == "this" {
		return b.errorf(diag.KindStructural, name, "invalid local name %s", name)
	}
	if _, dup := b.locals[name]; dup {
		return b.errorf(diag.KindResolution, name, "local %s is already defined", name)
	}

	t, err := b.e.resolveType(typeName, b.line)
	if err != nil {
		return err
	}
	l, err := b.declare(name, t)
	if err != nil {
		return err
	}
	b.emit(vm.OP_PUSH_C, b.constant(t.Zero()))
	b.emit(vm.OP_POP_L, uint32(l.slot))
	return nil
}

// promote converts both operands on top of the stack to a common kind: int
// when both are integral, otherwise float, or double when either is double.
func (b *block) promote(construct string) (value.TypeRef, error) {
	lk, lt := b.peek(1)
	rk, rt := b.peek(0)
	if !lk.IsNumeric() || !rk.IsNumeric() {
		return value.TypeRef{}, b.errorf(diag.KindType, construct, "%s needs numeric operands, got %s and %s", construct, lt, rt)
	}

	common := value.IntRef
	switch {
	case lk == ast.KindDouble || rk == ast.KindDouble:
		common = value.DoubleRef
	case lk.IsFloating() || rk.IsFloating():
		common = value.FloatRef
	}

	b.convertTop(common)
	if !lt.Equal(common) {
		b.emit(vm.OP_SWAP, 0)
		b.emit(vm.OP_CONV, b.typeIndex(common))
		b.emit(vm.OP_SWAP, 0)
		b.retype(1, common)
	}
	return common, nil
}

var arithmetic = map[ast.Opcode][2]uint8{
	ast.OpAdd: {vm.OP_ADD_I, vm.OP_ADD_F},
	ast.OpSub: {vm.OP_SUB_I, vm.OP_SUB_F},
	ast.OpMul: {vm.OP_MUL_I, vm.OP_MUL_F},
	ast.OpDiv: {vm.OP_DIV_I, vm.OP_DIV_F},
	ast.OpRem: {vm.OP_REM_I, vm.OP_REM_F},
}

// lowerArithmetic computes in the promoted kind and stores the result in the
// return-value cell as a float.
func (b *block) lowerArithmetic(in *ast.Instruction) error {
	construct := in.Op.String()
	rest, err := b.leftOperand(in.Operands, 2, regSelected, construct)
	if err != nil {
		return err
	}
	if _, err := b.operand(rest[0]); err != nil {
		return err
	}
	common, err := b.promote(construct)
	if err != nil {
		return err
	}

	ops := arithmetic[in.Op]
	switch common.Tag {
	case value.TypeInt:
		b.emit(ops[0], 0)
	case value.TypeFloat:
		b.emit(ops[1], 1)
	default:
		b.emit(ops[1], 0)
	}
	b.pop(2)
	b.push(common)

	b.convertTop(value.FloatRef)
	b.writeRegister(regReturn, value.FloatRef)
	return nil
}

// lowerCondition leaves the outcome of a conditional on the stack as a bool.
func (b *block) lowerCondition(in *ast.Instruction) error {
	construct := in.Op.String()
	if in.Op == ast.OpIsTrue || in.Op == ast.OpIsFalse {
		var err error
		if len(in.Operands) == 1 {
			_, err = b.operand(in.Operands[0])
		} else {
			err = b.readRegister(regComparing, construct)
		}
		if err != nil {
			return err
		}
		if _, t := b.peek(0); t.Tag != value.TypeBool {
			return b.errorf(diag.KindType, construct, "%s needs a bool, got %s", construct, t)
		}
		if in.Op == ast.OpIsFalse {
			b.emit(vm.OP_NOT, 0)
		}
		return nil
	}

	rest, err := b.leftOperand(in.Operands, 2, regComparing, construct)
	if err != nil {
		return err
	}
	if _, err := b.operand(rest[0]); err != nil {
		return err
	}

	lk, lt := b.peek(1)
	rk, rt := b.peek(0)
	switch {
	case lk.IsNumeric() && rk.IsNumeric():
		if _, err := b.promote(construct); err != nil {
			return err
		}
	case in.Op == ast.OpIsGrtn || in.Op == ast.OpIsLstn:
		return b.errorf(diag.KindType, construct, "%s needs numeric operands, got %s and %s", construct, lt, rt)
	case !canCompare(lt, rt):
		return b.errorf(diag.KindType, construct, "cannot compare %s with %s", lt, rt)
	}

	switch in.Op {
	case ast.OpIsEqls:
		b.emit(vm.OP_EQ, 0)
	case ast.OpIsNeqls:
		b.emit(vm.OP_NE, 0)
	case ast.OpIsGrtn:
		b.emit(vm.OP_GT, 0)
	case ast.OpIsLstn:
		b.emit(vm.OP_LT, 0)
	}
	b.pop(2)
	b.push(value.BoolRef)
	return nil
}

func canCompare(a, b value.TypeRef) bool {
	switch {
	case a.Tag == value.TypeNull:
		return b.Tag.IsReference()
	case b.Tag == value.TypeNull:
		return a.Tag.IsReference()
	}
	return a.Equal(b)
}

func (b *block) lowerCall(o ast.Operand) error {
	name, err := b.identifier(o, "op_call")
	if err != nil {
		return err
	}
	callee, idx, ok := b.class.Method(name)
	if !ok {
		return b.errorf(diag.KindResolution, name, "unknown method %s on class %s", name, b.class.Name)
	}
	b.emit(vm.OP_CALL, uint32(idx))
	if callee.Returns.Tag != value.TypeVoid {
		b.push(callee.Returns)
		b.writeRegister(regReturn, callee.Returns)
	}
	return nil
}

func (b *block) lowerReturn(ops []ast.Operand) error {
	ret := b.proc.Returns
	construct := "op_return"
	switch {
	case len(ops) == 0 && ret.Tag != value.TypeVoid:
		return b.errorf(diag.KindType, construct, "%s must return a %s value", b.proc.FullName(), ret)
	case len(ops) == 0:
		b.emit(vm.OP_RET, 0)
		return nil
	case ret.Tag == value.TypeVoid:
		return b.errorf(diag.KindType, construct, "%s does not return a value", b.proc.FullName())
	}

	t, err := b.operand(ops[0])
	if err != nil {
		return err
	}
	if !ret.Assignable(t) {
		return b.errorf(diag.KindType, construct, "cannot return %s from %s (%s)", t, b.proc.FullName(), ret)
	}
	b.convertTop(ret)
	b.emit(vm.OP_RET, 1)
	b.pop(1)
	return nil
}

// lowerNew handles "op_new target Class" and "op_new target T[] size".
func (b *block) lowerNew(ops []ast.Operand) error {
	name, err := b.identifier(ops[0], "op_new")
	if err != nil {
		return err
	}
	typeName, err := b.identifier(ops[1], "op_new")
	if err != nil {
		return err
	}
	t, err := b.e.resolveType(typeName, b.line)
	if err != nil {
		return err
	}

	p, err := b.resolve(name)
	if err != nil {
		return err
	}

	if len(ops) == 3 {
		if t.Tag != value.TypeArray {
			t = value.ArrayOf(t)
		}
		st, err := b.operand(ops[2])
		if err != nil {
			return err
		}
		if !st.Tag.IsNumeric() {
			return b.errorf(diag.KindType, typeName, "array size must be a number, got %s", st)
		}
		b.convertTop(value.IntRef)
		b.emit(vm.OP_NEW_ARR, b.typeIndex(t))
		b.pop(1)
		b.push(t)
		return b.store(p)
	}

	if t.Tag != value.TypeObject {
		return b.errorf(diag.KindType, typeName, "op_new of %s needs a size", t)
	}
	c, _ := b.e.mod.Class(t.Class)
	if c.Abstract {
		return b.errorf(diag.KindType, typeName, "cannot instantiate abstract class %s", c.Name)
	}
	b.emit(vm.OP_NEW, uint32(c.Index))
	b.push(t)
	return b.store(p)
}
