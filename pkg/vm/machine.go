package vm

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"runtime"

	"github.com/agenthands/drasm/pkg/core/value"
)

var (
	ErrStackOverflow    = errors.New("vm: stack overflow")
	ErrStackUnderflow   = errors.New("vm: stack underflow")
	ErrFrameOverflow    = errors.New("vm: call depth exceeded")
	ErrGasExhausted     = errors.New("vm: gas exhausted")
	ErrDivisionByZero   = errors.New("vm: division by zero")
	ErrNullReference    = errors.New("vm: null reference")
	ErrIndexOutOfRange  = errors.New("vm: index out of range")
	ErrAbstractCall     = errors.New("vm: call of abstract method")
	ErrAbstractClass    = errors.New("vm: instantiation of abstract class")
	ErrNoConstructor    = errors.New("vm: class has no constructor")
	ErrUnknownOpcode    = errors.New("vm: unknown opcode")
	ErrUnknownSyscall   = errors.New("vm: unknown host function")
	ErrNegativeCapacity = errors.New("vm: negative array size")
	ErrArrayTooLarge    = errors.New("vm: array size exceeds MaxArrayLen")
	ErrNotNumeric       = errors.New("vm: operand is not a number")
)

// RuntimeError locates a fault inside generated code.
type RuntimeError struct {
	Proc string
	Line int
	Err  error
}

func (e *RuntimeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%v in %s (line %d)", e.Err, e.Proc, e.Line)
	}
	return fmt.Sprintf("%v in %s", e.Err, e.Proc)
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// HostFunction is a Go function registered to the VM.
type HostFunction func(m *Machine) error

// HostFunctionEntry names a registered host function.
type HostFunctionEntry struct {
	Name string
	Fn   HostFunction
}

const (
	StackDepth = 256
	MaxFrames  = 64
	MaxLocals  = 64
	DefaultGas = 1000000

	// MaxArrayLen bounds a single NEW_ARR allocation.
	MaxArrayLen = 1 << 20
)

// Frame is one active procedure invocation.
type Frame struct {
	Proc      *Procedure
	IP        int
	Base      int // SP at entry
	This      *Object
	Construct bool // push This to the caller on return
	Locals    [MaxLocals]value.Value
}

// Machine executes generated procedures. A Machine is not safe for
// concurrent use; pool them with GetMachine/PutMachine.
type Machine struct {
	Stack [StackDepth]value.Value
	SP    int // Stack Pointer

	Frames [MaxFrames]Frame
	FP     int // number of active frames

	HostRegistry []HostFunctionEntry
	Out          io.Writer
	GasLimit     int
}

// Reset clears the machine state for reuse (sync.Pool compliant).
func (m *Machine) Reset() {
	for i := 0; i < m.SP; i++ {
		m.Stack[i] = value.Value{}
	}
	for i := 0; i < m.FP; i++ {
		m.Frames[i] = Frame{}
	}
	m.SP = 0
	m.FP = 0
}

// RegisterHostFunction adds a host-side Go function and returns its index.
func (m *Machine) RegisterHostFunction(name string, fn HostFunction) uint32 {
	m.HostRegistry = append(m.HostRegistry, HostFunctionEntry{Name: name, Fn: fn})
	return uint32(len(m.HostRegistry) - 1)
}

// Writer returns the output sink for printing host functions.
func (m *Machine) Writer() io.Writer {
	if m.Out == nil {
		return os.Stdout
	}
	return m.Out
}

// Push adds a value to the stack. Panics on overflow.
func (m *Machine) Push(v value.Value) {
	if m.SP >= StackDepth {
		panic(ErrStackOverflow)
	}
	m.Stack[m.SP] = v
	m.SP++
}

// Pop removes and returns the top value from the stack. Panics on underflow.
func (m *Machine) Pop() value.Value {
	if m.SP <= 0 {
		panic(ErrStackUnderflow)
	}
	m.SP--
	v := m.Stack[m.SP]
	m.Stack[m.SP] = value.Value{}
	return v
}

func (m *Machine) pushFrame(p *Procedure, this *Object, construct bool) error {
	if m.FP >= MaxFrames {
		return ErrFrameOverflow
	}
	f := &m.Frames[m.FP]
	*f = Frame{Proc: p, Base: m.SP, This: this, Construct: construct}
	m.FP++
	return nil
}

// Invoke runs p against this until it returns. The result is the zero Value
// for void procedures.
func (m *Machine) Invoke(p *Procedure, this *Object) (value.Value, error) {
	return m.invoke(p, this, false)
}

func (m *Machine) invoke(p *Procedure, this *Object, construct bool) (ret value.Value, err error) {
	if p.Abstract {
		return value.Value{}, &RuntimeError{Proc: p.FullName(), Err: ErrAbstractCall}
	}
	depth, base := m.FP, m.SP
	if err := m.pushFrame(p, this, construct); err != nil {
		return value.Value{}, &RuntimeError{Proc: p.FullName(), Err: err}
	}

	gas := m.GasLimit
	if gas <= 0 {
		gas = DefaultGas
	}
	if err := m.Run(depth, gas); err != nil {
		for m.FP > depth {
			m.FP--
			m.Frames[m.FP] = Frame{}
		}
		for m.SP > base {
			m.Pop()
		}
		return value.Value{}, err
	}
	if construct || p.Returns.Tag != value.TypeVoid {
		ret = m.Pop()
	}
	return ret, nil
}

// Run executes until the frame count drops back to depth, an error occurs,
// or gasLimit instructions have been executed.
func (m *Machine) Run(depth, gasLimit int) (err error) {
	var f *Frame

	// Safety net: convert stack panics and runtime faults to located errors.
	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(error)
			if !ok {
				panic(r)
			}
			if _, isRuntime := r.(runtime.Error); !isRuntime && e != ErrStackOverflow && e != ErrStackUnderflow {
				panic(r)
			}
			err = m.fault(f, e)
		}
	}()

	for gas := 0; m.FP > depth; gas++ {
		f = &m.Frames[m.FP-1]
		if gas >= gasLimit {
			return m.fault(f, ErrGasExhausted)
		}

		proc := f.Proc
		op, arg := Decode(proc.Instructions[f.IP])

		switch op {
		case OP_NOOP:
			f.IP++

		case OP_PUSH_C:
			m.Push(proc.Constants[arg])
			f.IP++

		case OP_PUSH_L:
			m.Push(f.Locals[arg])
			f.IP++

		case OP_POP_L:
			f.Locals[arg] = m.Pop()
			f.IP++

		case OP_PUSH_THIS:
			if f.This == nil {
				m.Push(value.Null())
			} else {
				m.Push(value.Object(f.This))
			}
			f.IP++

		case OP_DUP:
			v := m.Pop()
			m.Push(v)
			m.Push(v)
			f.IP++

		case OP_DROP:
			m.Pop()
			f.IP++

		case OP_SWAP:
			b := m.Pop()
			a := m.Pop()
			m.Push(b)
			m.Push(a)
			f.IP++

		case OP_CONV:
			v, cerr := value.Convert(m.Pop(), proc.Types[arg])
			if cerr != nil {
				return m.fault(f, cerr)
			}
			m.Push(v)
			f.IP++

		case OP_LOAD_F:
			obj, ok := asObject(m.Pop())
			if !ok {
				return m.fault(f, ErrNullReference)
			}
			m.Push(obj.Fields[arg])
			f.IP++

		case OP_STORE_F:
			v := m.Pop()
			obj, ok := asObject(m.Pop())
			if !ok {
				return m.fault(f, ErrNullReference)
			}
			obj.Fields[arg] = v
			f.IP++

		case OP_LOAD_IDX:
			idx := m.Pop().Int()
			arr := m.Pop().Array()
			if arr == nil {
				return m.fault(f, ErrNullReference)
			}
			if idx < 0 || idx >= int64(len(arr.Items)) {
				return m.fault(f, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, idx, len(arr.Items)))
			}
			m.Push(arr.Items[idx])
			f.IP++

		case OP_STORE_IDX:
			v := m.Pop()
			idx := m.Pop().Int()
			arr := m.Pop().Array()
			if arr == nil {
				return m.fault(f, ErrNullReference)
			}
			if idx < 0 || idx >= int64(len(arr.Items)) {
				return m.fault(f, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, idx, len(arr.Items)))
			}
			arr.Items[idx] = v
			f.IP++

		case OP_ADD_I, OP_SUB_I, OP_MUL_I, OP_DIV_I, OP_REM_I:
			bv, av := m.Pop(), m.Pop()
			if !numeric(av, bv) {
				return m.fault(f, ErrNotNumeric)
			}
			a, b := av.Int(), bv.Int()
			var r int64
			switch op {
			case OP_ADD_I:
				r = a + b
			case OP_SUB_I:
				r = a - b
			case OP_MUL_I:
				r = a * b
			case OP_DIV_I, OP_REM_I:
				if b == 0 {
					return m.fault(f, ErrDivisionByZero)
				}
				if op == OP_DIV_I {
					r = a / b
				} else {
					r = a % b
				}
			}
			m.Push(value.Int(r))
			f.IP++

		case OP_ADD_F, OP_SUB_F, OP_MUL_F, OP_DIV_F, OP_REM_F:
			bv, av := m.Pop(), m.Pop()
			if !numeric(av, bv) {
				return m.fault(f, ErrNotNumeric)
			}
			a, b := av.Float(), bv.Float()
			var r float64
			switch op {
			case OP_ADD_F:
				r = a + b
			case OP_SUB_F:
				r = a - b
			case OP_MUL_F:
				r = a * b
			case OP_DIV_F:
				r = a / b
			case OP_REM_F:
				r = math.Mod(a, b)
			}
			// arg 1 selects single precision
			if arg == 1 {
				m.Push(value.Float(r))
			} else {
				m.Push(value.Double(r))
			}
			f.IP++

		case OP_EQ, OP_NE:
			b := m.Pop()
			a := m.Pop()
			eq := value.Equal(a, b)
			m.Push(value.Bool(eq == (op == OP_EQ)))
			f.IP++

		case OP_GT, OP_LT:
			b := m.Pop()
			a := m.Pop()
			if !numeric(a, b) {
				return m.fault(f, ErrNotNumeric)
			}
			if op == OP_GT {
				a, b = b, a
			}
			m.Push(value.Bool(value.Less(a, b)))
			f.IP++

		case OP_NOT:
			m.Push(value.Bool(!m.Pop().Bool()))
			f.IP++

		case OP_JMP:
			f.IP = int(arg)

		case OP_JMP_FALSE:
			if m.Pop().Bool() {
				f.IP++
			} else {
				f.IP = int(arg)
			}

		case OP_CALL:
			callee := proc.Class.Methods[arg]
			if callee.Abstract {
				return m.fault(f, ErrAbstractCall)
			}
			f.IP++
			if perr := m.pushFrame(callee, f.This, false); perr != nil {
				return m.fault(f, perr)
			}

		case OP_RET:
			var rv value.Value
			if arg == 1 {
				rv = m.Pop()
			}
			for m.SP > f.Base {
				m.Pop()
			}
			this, construct := f.This, f.Construct
			m.FP--
			m.Frames[m.FP] = Frame{}
			if arg == 1 {
				m.Push(rv)
			}
			if construct {
				m.Push(value.Object(this))
			}

		case OP_NEW:
			class := proc.Class.Module.Classes[arg]
			if class.Abstract {
				return m.fault(f, ErrAbstractClass)
			}
			if len(class.Constructors) == 0 {
				return m.fault(f, ErrNoConstructor)
			}
			f.IP++
			if perr := m.pushFrame(class.Constructors[0], NewObject(class), true); perr != nil {
				return m.fault(f, perr)
			}

		case OP_NEW_ARR:
			n := m.Pop().Int()
			if n < 0 {
				return m.fault(f, ErrNegativeCapacity)
			}
			if n > MaxArrayLen {
				return m.fault(f, ErrArrayTooLarge)
			}
			m.Push(value.NewArray(*proc.Types[arg].Elem, int(n)))
			f.IP++

		case OP_SYSCALL:
			if int(arg) >= len(m.HostRegistry) || m.HostRegistry[arg].Fn == nil {
				return m.fault(f, ErrUnknownSyscall)
			}
			if herr := m.HostRegistry[arg].Fn(m); herr != nil {
				return m.fault(f, herr)
			}
			f.IP++

		default:
			return m.fault(f, ErrUnknownOpcode)
		}
	}
	return nil
}

func (m *Machine) fault(f *Frame, err error) error {
	if f == nil || f.Proc == nil {
		return err
	}
	return &RuntimeError{Proc: f.Proc.FullName(), Line: f.Proc.lineAt(f.IP), Err: err}
}

func asObject(v value.Value) (*Object, bool) {
	o, ok := v.Opaque.(*Object)
	return o, ok && o != nil
}

func numeric(a, b value.Value) bool {
	return a.Type.IsNumeric() && b.Type.IsNumeric()
}
