package vm

const (
	OP_NOOP      uint8 = 0x01
	OP_PUSH_C    uint8 = 0x02
	OP_PUSH_L    uint8 = 0x03
	OP_POP_L     uint8 = 0x04
	OP_PUSH_THIS uint8 = 0x05
	OP_DUP       uint8 = 0x06
	OP_DROP      uint8 = 0x07
	OP_SWAP      uint8 = 0x08
	OP_CONV      uint8 = 0x09
	OP_LOAD_F    uint8 = 0x0A
	OP_STORE_F   uint8 = 0x0B
	OP_LOAD_IDX  uint8 = 0x0C
	OP_STORE_IDX uint8 = 0x0D
	OP_ADD_I     uint8 = 0x10
	OP_SUB_I     uint8 = 0x11
	OP_MUL_I     uint8 = 0x12
	OP_DIV_I     uint8 = 0x13
	OP_REM_I     uint8 = 0x14
	OP_ADD_F     uint8 = 0x18
	OP_SUB_F     uint8 = 0x19
	OP_MUL_F     uint8 = 0x1A
	OP_DIV_F     uint8 = 0x1B
	OP_REM_F     uint8 = 0x1C
	OP_EQ        uint8 = 0x1D
	OP_NE        uint8 = 0x1E
	OP_GT        uint8 = 0x1F
	OP_LT        uint8 = 0x20
	OP_NOT       uint8 = 0x21
	OP_JMP       uint8 = 0x28
	OP_JMP_FALSE uint8 = 0x29
	OP_CALL      uint8 = 0x2A
	OP_RET       uint8 = 0x2B
	OP_NEW       uint8 = 0x30
	OP_NEW_ARR   uint8 = 0x31
	OP_SYSCALL   uint8 = 0x40
)

// ArgMask selects the operand bits of a packed instruction.
const ArgMask = 0x00FFFFFF

// Encode packs an opcode and its 24-bit argument.
func Encode(op uint8, arg uint32) uint32 {
	return (uint32(op) << 24) | (arg & ArgMask)
}

// Decode splits a packed instruction.
func Decode(instr uint32) (uint8, uint32) {
	return uint8(instr >> 24), instr & ArgMask
}

var opNames = map[uint8]string{
	OP_NOOP:      "NOOP",
	OP_PUSH_C:    "PUSH_C",
	OP_PUSH_L:    "PUSH_L",
	OP_POP_L:     "POP_L",
	OP_PUSH_THIS: "PUSH_THIS",
	OP_DUP:       "DUP",
	OP_DROP:      "DROP",
	OP_SWAP:      "SWAP",
	OP_CONV:      "CONV",
	OP_LOAD_F:    "LOAD_F",
	OP_STORE_F:   "STORE_F",
	OP_LOAD_IDX:  "LOAD_IDX",
	OP_STORE_IDX: "STORE_IDX",
	OP_ADD_I:     "ADD_I",
	OP_SUB_I:     "SUB_I",
	OP_MUL_I:     "MUL_I",
	OP_DIV_I:     "DIV_I",
	OP_REM_I:     "REM_I",
	OP_ADD_F:     "ADD_F",
	OP_SUB_F:     "SUB_F",
	OP_MUL_F:     "MUL_F",
	OP_DIV_F:     "DIV_F",
	OP_REM_F:     "REM_F",
	OP_EQ:        "EQ",
	OP_NE:        "NE",
	OP_GT:        "GT",
	OP_LT:        "LT",
	OP_NOT:       "NOT",
	OP_JMP:       "JMP",
	OP_JMP_FALSE: "JMP_FALSE",
	OP_CALL:      "CALL",
	OP_RET:       "RET",
	OP_NEW:       "NEW",
	OP_NEW_ARR:   "NEW_ARR",
	OP_SYSCALL:   "SYSCALL",
}

// OpName returns the mnemonic of op.
func OpName(op uint8) string {
	if n, ok := opNames[op]; ok {
		return n
	}
	return "UNKNOWN"
}
