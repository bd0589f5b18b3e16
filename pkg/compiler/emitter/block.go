package emitter

import (
	"fmt"

	"github.com/agenthands/drasm/pkg/compiler/ast"
	"github.com/agenthands/drasm/pkg/core/diag"
	"github.com/agenthands/drasm/pkg/core/value"
	"github.com/agenthands/drasm/pkg/vm"
)

// Pseudo-registers live in the first local slots of every procedure.
const (
	regSelected = iota
	regComparing
	regReturn
	numRegisters
)

var registerNames = [numRegisters]string{"selected", "comparing", "ret"}

type local struct {
	slot int
	typ  value.TypeRef
}

// register is what the generator knows about a pseudo-register at one point
// of the code. mixed marks a register written with different types on the
// paths that meet there.
type register struct {
	set   bool
	mixed bool
	typ   value.TypeRef
}

type regState [numRegisters]register

// meet keeps a register written only when it is written on both paths.
func (x register) meet(y register) register {
	switch {
	case !x.set || !y.set:
		return register{}
	case x.mixed || y.mixed || !x.typ.Equal(y.typ):
		return register{set: true, mixed: true}
	}
	return x
}

func (s regState) meet(o regState) regState {
	for r := range s {
		s[r] = s[r].meet(o[r])
	}
	return s
}

func (s regState) equal(o regState) bool {
	for r := range s {
		x, y := s[r], o[r]
		if x.set != y.set || x.mixed != y.mixed || (x.set && !x.mixed && !x.typ.Equal(y.typ)) {
			return false
		}
	}
	return true
}

// join merges st into the state recorded for instruction i.
func join(m map[int]regState, i int, st regState) {
	if prev, ok := m[i]; ok {
		st = prev.meet(st)
	}
	m[i] = st
}

// patch is a jump whose target is an instruction index of the code block,
// known only once the whole block has been lowered.
type patch struct {
	at     int
	target int
}

// loopTop is an open op_loop: its code offset and instruction index.
type loopTop struct {
	pc    int
	instr int
}

// block is the generation state of one code block. A fresh block is used for
// every constructor and method, so registers, locals, labels and the loop
// stack never leak between procedures.
type block struct {
	e      *Emitter
	class  *vm.Class
	method *ast.Method
	proc   *vm.Procedure
	line   int

	// Shadow stacks, pushed and popped in lockstep with the emitted code.
	kinds []ast.Kind
	types []value.TypeRef

	locals    map[string]local
	nextLocal int
	regs      regState

	// Register state flowing along jumps. Forward edges are joined while
	// lowering; back edges only take effect on the next pass.
	cur       int
	reachable bool
	forward   map[int]regState
	back      map[int]regState
	backOut   map[int]regState

	offsets []int // code offset of each source instruction
	patches []patch
	loops   []loopTop
}

func newBlock(e *Emitter, class *vm.Class, m *ast.Method, p *vm.Procedure) *block {
	return &block{
		e:         e,
		class:     class,
		method:    m,
		proc:      p,
		line:      m.Line,
		locals:    make(map[string]local),
		nextLocal: numRegisters,
		back:      make(map[int]regState),
	}
}

func (b *block) errorf(kind diag.Kind, construct, format string, args ...any) error {
	return diag.New(kind, b.line, construct, format, args...)
}

func (b *block) emit(op uint8, arg uint32) int {
	b.proc.Instructions = append(b.proc.Instructions, vm.Encode(op, arg))
	b.proc.Lines = append(b.proc.Lines, b.line)
	return len(b.proc.Instructions) - 1
}

func (b *block) pc() int { return len(b.proc.Instructions) }

func (b *block) constant(v value.Value) uint32 {
	for i, c := range b.proc.Constants {
		if c.Type != v.Type || c.Data != v.Data {
			continue
		}
		if v.Type != value.TypeString || c.Str() == v.Str() {
			return uint32(i)
		}
	}
	b.proc.Constants = append(b.proc.Constants, v)
	return uint32(len(b.proc.Constants) - 1)
}

func (b *block) typeIndex(t value.TypeRef) uint32 {
	for i, c := range b.proc.Types {
		if c.Equal(t) {
			return uint32(i)
		}
	}
	b.proc.Types = append(b.proc.Types, t)
	return uint32(len(b.proc.Types) - 1)
}

func (b *block) push(t value.TypeRef) {
	b.kinds = append(b.kinds, kindOf(t))
	b.types = append(b.types, t)
}

func (b *block) pop(n int) {
	b.kinds = b.kinds[:len(b.kinds)-n]
	b.types = b.types[:len(b.types)-n]
}

// peek returns the tracked type i entries below the top.
func (b *block) peek(i int) (ast.Kind, value.TypeRef) {
	j := len(b.kinds) - 1 - i
	return b.kinds[j], b.types[j]
}

// retype replaces the tracked type of the top of the stack after a CONV.
func (b *block) retype(i int, t value.TypeRef) {
	j := len(b.kinds) - 1 - i
	b.kinds[j] = kindOf(t)
	b.types[j] = t
}

// kindOf maps a native type onto the DRASM value kind that carries it.
func kindOf(t value.TypeRef) ast.Kind {
	switch t.Tag {
	case value.TypeBool:
		return ast.KindBool
	case value.TypeByte:
		return ast.KindByte
	case value.TypeInt:
		return ast.KindInt
	case value.TypeFloat:
		return ast.KindFloat
	case value.TypeDouble:
		return ast.KindDouble
	case value.TypeString:
		return ast.KindString
	case value.TypeNull:
		return ast.KindNull
	}
	return ast.KindIdentifier
}

// declare allocates a new local slot.
func (b *block) declare(name string, t value.TypeRef) (local, error) {
	if b.nextLocal >= vm.MaxLocals {
		return local{}, b.errorf(diag.KindResolution, name, "too many locals in %s (limit %d)", b.proc.FullName(), vm.MaxLocals-numRegisters)
	}
	l := local{slot: b.nextLocal, typ: t}
	b.nextLocal++
	b.locals[name] = l
	return l, nil
}

func (b *block) writeRegister(r int, t value.TypeRef) {
	b.emit(vm.OP_POP_L, uint32(r))
	b.pop(1)
	b.regs[r] = register{set: true, typ: t}
}

func (b *block) readRegister(r int, construct string) error {
	reg := b.regs[r]
	if !reg.set {
		return b.errorf(diag.KindResolution, construct, "%s register read before it is written on every path", registerNames[r])
	}
	if reg.mixed {
		return b.errorf(diag.KindType, construct, "%s register holds different types on the paths reaching line %d", registerNames[r], b.line)
	}
	b.emit(vm.OP_PUSH_L, uint32(r))
	b.push(reg.typ)
	return nil
}

// jumpTo emits op with a placeholder target resolved by finish.
func (b *block) jumpTo(op uint8, instr int) {
	at := b.emit(op, 0)
	b.patches = append(b.patches, patch{at: at, target: instr})
	b.edge(instr)
}

// edge records the current register state as flowing into instruction
// target. The epilogue reads no register, so edges past the body are dropped.
func (b *block) edge(target int) {
	if target >= len(b.method.Body.Instructions) {
		return
	}
	if target <= b.cur {
		join(b.backOut, target, b.regs)
		return
	}
	join(b.forward, target, b.regs)
}

// enter computes the register state at the start of instruction i from the
// fall-through path and every jump into it. Unreachable code keeps the state
// it follows.
func (b *block) enter(i int) {
	var st regState
	have := false
	meet := func(o regState) {
		if have {
			st = st.meet(o)
		} else {
			st, have = o, true
		}
	}
	if b.reachable {
		meet(b.regs)
	}
	if o, ok := b.forward[i]; ok {
		meet(o)
	}
	if o, ok := b.back[i]; ok {
		meet(o)
	}
	if have {
		b.regs = st
	}
	b.cur = i
	b.reachable = true
}

// body lowers the code block. Register states carried by backward jumps are
// only known after a pass, so the block is lowered again until they settle.
// States only lose information between passes, which bounds the iteration.
func (b *block) body() error {
	code := b.method.Body
	for name, target := range code.Labels {
		if target > len(code.Instructions) {
			return b.errorf(diag.KindResolution, name, "label %s is out of range", name)
		}
	}

	p := b.proc
	nInstr, nConst, nTypes := len(p.Instructions), len(p.Constants), len(p.Types)
	for {
		p.Instructions, p.Lines = p.Instructions[:nInstr], p.Lines[:nInstr]
		p.Constants, p.Types = p.Constants[:nConst], p.Types[:nTypes]
		b.locals = make(map[string]local)
		b.nextLocal = numRegisters
		b.regs = regState{}
		b.reachable = true
		b.forward = make(map[int]regState)
		b.backOut = make(map[int]regState)
		b.offsets, b.patches, b.loops = b.offsets[:0], b.patches[:0], b.loops[:0]

		if err := b.pass(); err != nil {
			return err
		}

		settled := true
		for i, st := range b.backOut {
			old, ok := b.back[i]
			if ok {
				st = old.meet(st)
			}
			if !ok || !st.equal(old) {
				b.back[i] = st
				settled = false
			}
		}
		if settled {
			return nil
		}
	}
}

func (b *block) pass() error {
	for i, instr := range b.method.Body.Instructions {
		b.enter(i)
		b.offsets = append(b.offsets, b.pc())
		b.line = instr.Line
		if err := b.lower(i, instr); err != nil {
			return err
		}
		if len(b.kinds) != 0 {
			return fmt.Errorf("emitter: %s left %d values on the stack at line %d", instr.Op, len(b.kinds), instr.Line)
		}
	}
	return nil
}

// epilogue appends the implicit return; falling off the end of a method with
// a result returns the zero value of its type.
func (b *block) epilogue() {
	b.offsets = append(b.offsets, b.pc())
	if ret := b.proc.Returns; ret.Tag != value.TypeVoid {
		b.emit(vm.OP_PUSH_C, b.constant(ret.Zero()))
		b.emit(vm.OP_RET, 1)
		return
	}
	b.emit(vm.OP_RET, 0)
}

func (b *block) finish() error {
	end := len(b.offsets) - 1
	for _, p := range b.patches {
		target := p.target
		if target > end {
			target = end
		}
		op, _ := vm.Decode(b.proc.Instructions[p.at])
		b.proc.Instructions[p.at] = vm.Encode(op, uint32(b.offsets[target]))
	}
	b.proc.NumLocals = b.nextLocal
	return nil
}
