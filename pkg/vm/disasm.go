package vm

import (
	"fmt"
	"strings"
)

// Disassemble renders p one instruction per line with resolved operands.
func Disassemble(p *Procedure) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s locals=%d returns=%s\n", p.FullName(), p.NumLocals, p.Returns)
	for ip, instr := range p.Instructions {
		op, arg := Decode(instr)
		fmt.Fprintf(&sb, "%4d  %-10s", ip, OpName(op))
		switch op {
		case OP_PUSH_C:
			fmt.Fprintf(&sb, " %d (%s)", arg, p.Constants[arg].Format())
		case OP_PUSH_L, OP_POP_L, OP_JMP, OP_JMP_FALSE, OP_SYSCALL:
			fmt.Fprintf(&sb, " %d", arg)
		case OP_CONV, OP_NEW_ARR:
			fmt.Fprintf(&sb, " %s", p.Types[arg])
		case OP_LOAD_F, OP_STORE_F, OP_CALL, OP_NEW, OP_RET:
			fmt.Fprintf(&sb, " %s", operandName(p, op, arg))
		case OP_ADD_F, OP_SUB_F, OP_MUL_F, OP_DIV_F, OP_REM_F:
			if arg == 1 {
				sb.WriteString(" float")
			}
		}
		if line := p.lineAt(ip); line > 0 {
			fmt.Fprintf(&sb, "\t; line %d", line)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func operandName(p *Procedure, op uint8, arg uint32) string {
	switch op {
	case OP_CALL:
		if p.Class != nil && int(arg) < len(p.Class.Methods) {
			return p.Class.Methods[arg].Name
		}
	case OP_NEW:
		if p.Class != nil && p.Class.Module != nil && int(arg) < len(p.Class.Module.Classes) {
			return p.Class.Module.Classes[arg].Name
		}
	case OP_RET:
		if arg == 1 {
			return "value"
		}
		return ""
	}
	return fmt.Sprintf("#%d", arg)
}
