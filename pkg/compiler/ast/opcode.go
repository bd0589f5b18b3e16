package ast

import "strings"

// Opcode tags an Instruction.
type Opcode uint8

const (
	OpSet Opcode = iota
	OpDefine
	OpDelete
	OpSelect
	OpCompare
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpRem
	OpIsTrue
	OpIsFalse
	OpIsEqls
	OpIsNeqls
	OpIsGrtn
	OpIsLstn
	OpGoto
	OpJmp
	OpLoop
	OpDoop
	OpBreak
	OpCall
	OpPrint
	OpReturn
	OpNew
	DefLabel
)

// OpSignature bounds the operand count of an opcode.
type OpSignature struct {
	Name     string
	Min, Max int
}

// Opcodes lists the signature of every opcode, indexed by Opcode.
var Opcodes = [...]OpSignature{
	OpSet:     {"op_set", 2, 2},
	OpDefine:  {"op_define", 3, 3},
	OpDelete:  {"op_delete", 1, 1},
	OpSelect:  {"op_select", 1, 1},
	OpCompare: {"op_compare", 1, 1},
	OpAdd:     {"op_add", 1, 2},
	OpSub:     {"op_sub", 1, 2},
	OpMul:     {"op_mul", 1, 2},
	OpDiv:     {"op_div", 1, 2},
	OpRem:     {"op_rem", 1, 2},
	OpIsTrue:  {"op_istrue", 0, 1},
	OpIsFalse: {"op_isfalse", 0, 1},
	OpIsEqls:  {"op_iseqls", 1, 2},
	OpIsNeqls: {"op_isneqls", 1, 2},
	OpIsGrtn:  {"op_isgrtn", 1, 2},
	OpIsLstn:  {"op_islstn", 1, 2},
	OpGoto:    {"op_goto", 1, 1},
	OpJmp:     {"op_jmp", 1, 1},
	OpLoop:    {"op_loop", 0, 0},
	OpDoop:    {"op_doop", 0, 0},
	OpBreak:   {"op_break", 0, 0},
	OpCall:    {"op_call", 1, 1},
	OpPrint:   {"op_print", 1, 1},
	OpReturn:  {"op_return", 0, 1},
	OpNew:     {"op_new", 2, 3},
	DefLabel:  {"def_label", 1, 1},
}

var opcodeByName = func() map[string]Opcode {
	m := make(map[string]Opcode, len(Opcodes))
	for op, sig := range Opcodes {
		m[sig.Name] = Opcode(op)
	}
	return m
}()

func (op Opcode) String() string {
	if int(op) < len(Opcodes) {
		return Opcodes[op].Name
	}
	return "op_unknown"
}

// LookupOpcode resolves an instruction word case-insensitively, with or
// without its "op_" prefix.
func LookupOpcode(word string) (Opcode, bool) {
	w := strings.ToLower(word)
	if op, ok := opcodeByName[w]; ok {
		return op, true
	}
	op, ok := opcodeByName["op_"+w]
	return op, ok
}

// IsConditional reports whether op skips the next instruction when it fails.
func (op Opcode) IsConditional() bool {
	return op >= OpIsTrue && op <= OpIsLstn
}

// IsArithmetic reports whether op writes the return-value cell.
func (op Opcode) IsArithmetic() bool {
	return op >= OpAdd && op <= OpRem
}
