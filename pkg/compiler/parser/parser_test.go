package parser_test

import (
	"testing"

	"github.com/agenthands/drasm/pkg/compiler/ast"
	"github.com/agenthands/drasm/pkg/compiler/lexer"
	"github.com/agenthands/drasm/pkg/compiler/parser"
	"github.com/agenthands/drasm/pkg/core/diag"
)

func parse(src string) (*ast.Program, error) {
	return parser.Parse(lexer.Scan(src))
}

func TestNestingRules(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr bool
		line    int
	}{
		{
			name: "Valid class with members",
			src:  "class A public\nfield x = 1\nconstructor public\nend\nfunc f public\nend\nend",
		},
		{
			name:    "Class inside class",
			src:     "class A\nclass B\nend\nend",
			wantErr: true,
			line:    2,
		},
		{
			name:    "Func outside class",
			src:     "func f\nend",
			wantErr: true,
			line:    1,
		},
		{
			name:    "Func inside func",
			src:     "class A\nfunc f\nfunc g\nend\nend\nend",
			wantErr: true,
			line:    3,
		},
		{
			name:    "Constructor inside func",
			src:     "class A\nfunc f\nconstructor\nend\nend",
			wantErr: true,
			line:    3,
		},
		{
			name:    "Field inside method",
			src:     "class A\nconstructor\nfield x = 1\nend\nend",
			wantErr: true,
			line:    3,
		},
		{
			name:    "Instruction outside method",
			src:     "class A\nprint 1\nend",
			wantErr: true,
			line:    2,
		},
		{
			name:    "Dangling end",
			src:     "end",
			wantErr: true,
			line:    1,
		},
		{
			name:    "Unclosed class",
			src:     "class A\nfunc f\nend",
			wantErr: true,
			line:    3,
		},
		{
			name:    "Unknown instruction",
			src:     "class A\nfunc f\nfrobnicate x\nend\nend",
			wantErr: true,
			line:    3,
		},
		{
			name:    "Wrong arity",
			src:     "class A\nfunc f\nset x\nend\nend",
			wantErr: true,
			line:    3,
		},
		{
			name:    "Duplicate label",
			src:     "class A\nfunc f\ndef_label top\ndef_label top\nend\nend",
			wantErr: true,
			line:    4,
		},
		{
			name:    "Duplicate method",
			src:     "class A\nfunc f\nend\nfunc f\nend\nend",
			wantErr: true,
			line:    4,
		},
		{
			name:    "Field without type or value",
			src:     "class A\nfield x\nend",
			wantErr: true,
			line:    2,
		},
		{
			name:    "Punctuation as operand",
			src:     "class A\nfunc f\nset x = 1\nend\nend",
			wantErr: true,
			line:    3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse(tt.src)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				return
			}
			d, ok := diag.As(err)
			if !ok {
				t.Fatalf("expected *diag.Error, got %T", err)
			}
			if d.Kind != diag.KindStructural {
				t.Errorf("expected structural error, got %v", d.Kind)
			}
			if d.Line != tt.line {
				t.Errorf("expected line %d, got %d (%v)", tt.line, d.Line, err)
			}
		})
	}
}

func TestParseProgramModel(t *testing.T) {
	src := `
class Foo public
  field msg : string = "hi"
  field nums : int[] public = 1 2 3
  field ratio = 0.5
  constructor public
    print msg
  end
  func total : float public override
    def_label top
    ADD 2 3.5
    op_Return ret
    goto top
  end
end
class Bar
end`
	prog, err := parse(src)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(prog.Classes) != 2 || prog.Classes[0].Name != "Foo" || prog.Classes[1].Name != "Bar" {
		t.Fatalf("unexpected classes: %+v", prog.Classes)
	}

	foo := prog.Classes[0]
	if !foo.Public || prog.Classes[1].Public {
		t.Errorf("visibility not recorded: Foo=%v Bar=%v", foo.Public, prog.Classes[1].Public)
	}

	msg, _ := foo.Field("msg")
	if msg.Public || msg.TypeName != "string" || len(msg.Default) != 1 || msg.Default[0].Text != "hi" {
		t.Errorf("unexpected msg field: %+v", msg)
	}
	nums, _ := foo.Field("nums")
	if !nums.Public || nums.TypeName != "int[]" || len(nums.Default) != 3 {
		t.Errorf("unexpected nums field: %+v", nums)
	}
	ratio, _ := foo.Field("ratio")
	if ratio.TypeName != "" || ratio.Default[0].Kind != ast.KindFloat {
		t.Errorf("unexpected ratio field: %+v", ratio)
	}

	if len(foo.Constructors) != 1 || len(foo.Constructors[0].Body.Instructions) != 1 {
		t.Fatalf("unexpected constructors: %+v", foo.Constructors)
	}

	total := foo.Methods["total"]
	if total == nil || total.ReturnType != "float" || !total.Public || !total.Override {
		t.Fatalf("unexpected method: %+v", total)
	}
	body := total.Body
	if body.Labels["top"] != 0 {
		t.Errorf("expected label top at 0, got %d", body.Labels["top"])
	}
	wantOps := []ast.Opcode{ast.OpAdd, ast.OpReturn, ast.OpGoto}
	if len(body.Instructions) != len(wantOps) {
		t.Fatalf("expected %d instructions, got %d", len(wantOps), len(body.Instructions))
	}
	for i, op := range wantOps {
		if body.Instructions[i].Op != op {
			t.Errorf("instr %d: expected %v, got %v", i, op, body.Instructions[i].Op)
		}
	}

	add := body.Instructions[0].Operands
	if add[0].Kind != ast.KindInt || add[1].Kind != ast.KindFloat || add[1].Float != 3.5 {
		t.Errorf("unexpected add operands: %+v", add)
	}
	if body.Instructions[1].Operands[0].Kind != ast.KindReturnValue {
		t.Errorf("expected ret operand, got %+v", body.Instructions[1].Operands[0])
	}
	if body.Instructions[0].Line != 11 {
		t.Errorf("expected add on line 11, got %d", body.Instructions[0].Line)
	}
}

func TestReservedOperands(t *testing.T) {
	prog, err := parse("class A\nfunc f\nset a true\nset b null\nset c false\nend\nend")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	ins := prog.Classes[0].Methods["f"].Body.Instructions
	if ins[0].Operands[1].Kind != ast.KindBool || !ins[0].Operands[1].Bool {
		t.Errorf("true not mapped to bool: %+v", ins[0].Operands[1])
	}
	if ins[1].Operands[1].Kind != ast.KindNull {
		t.Errorf("null not mapped: %+v", ins[1].Operands[1])
	}
	if ins[2].Operands[1].Kind != ast.KindBool || ins[2].Operands[1].Bool {
		t.Errorf("false not mapped to bool: %+v", ins[2].Operands[1])
	}
}
