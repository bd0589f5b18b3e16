package emitter_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/davecgh/go-spew/spew"

	"github.com/agenthands/drasm/pkg/compiler/emitter"
	"github.com/agenthands/drasm/pkg/compiler/lexer"
	"github.com/agenthands/drasm/pkg/compiler/parser"
	"github.com/agenthands/drasm/pkg/core/diag"
	"github.com/agenthands/drasm/pkg/core/value"
	"github.com/agenthands/drasm/pkg/stdlib"
	"github.com/agenthands/drasm/pkg/vm"
)

func compile(src string) (*vm.Module, error) {
	prog, err := parser.Parse(lexer.Scan(src))
	if err != nil {
		return nil, err
	}
	return emitter.NewEmitter(prog).Emit()
}

func mustCompile(t *testing.T, src string) *vm.Module {
	t.Helper()
	mod, err := compile(src)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	return mod
}

// instantiate builds class name on a fresh machine that prints into out.
func instantiate(t *testing.T, mod *vm.Module, name string) (*vm.Machine, *vm.Object, *bytes.Buffer) {
	t.Helper()
	c, ok := mod.Class(name)
	if !ok {
		t.Fatalf("class %s not generated", name)
	}
	out := &bytes.Buffer{}
	m := &vm.Machine{Out: out}
	stdlib.Install(m)
	obj, err := m.Instantiate(c, 0)
	if err != nil {
		t.Fatalf("Instantiate(%s) failed: %v", name, err)
	}
	return m, obj, out
}

func TestEmitterConstructorPrints(t *testing.T) {
	mod := mustCompile(t, `
class Foo public
  field msg : string = "hi"
  constructor public
    print msg
  end
end`)

	_, _, out := instantiate(t, mod, "Foo")
	if out.String() != "hi\n" {
		t.Errorf("expected %q printed once, got %q", "hi\n", out.String())
	}
}

func TestEmitterFieldRoundTrip(t *testing.T) {
	mod := mustCompile(t, `
class Box public
  field size : int public
  constructor public
    set size 42
  end
end`)

	_, obj, _ := instantiate(t, mod, "Box")
	got, err := obj.Get("size")
	if err != nil {
		t.Fatal(err)
	}
	if got.Type != value.TypeInt || got.Int() != 42 {
		t.Errorf("expected int 42, got %s (%s)", got.Format(), got.Type)
	}
}

func TestEmitterArithmeticPromotion(t *testing.T) {
	tests := []struct {
		name string
		body string
		want float64
	}{
		{"int plus float", "add 2 3.5", 5.5},
		{"float plus int", "add 3.5 2", 5.5},
		{"int plus int", "add 2 3", 5},
		{"int division", "div 7 2", 3},
		{"float division", "div 7 2.0", 3},
		{"float division fraction", "div 7 2.5", 2.8},
		{"remainder", "rem 7.5 2", 1.5},
		{"selected register", "select 10\n sub 4", 6},
		{"chained result", "mul 2 3\n add ret 0.5", 6.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mod := mustCompile(t, "class Calc public\n func run : float public\n "+tt.body+"\n return ret\n end\nend")
			m, obj, _ := instantiate(t, mod, "Calc")
			got, err := m.Call(obj, "run")
			if err != nil {
				t.Fatal(err)
			}
			if got.Type != value.TypeFloat {
				t.Fatalf("expected a float result, got %s", got.Type)
			}
			if got.Float() != value.Float(tt.want).Float() {
				t.Errorf("expected %v, got %s", tt.want, got.Format())
			}
		})
	}
}

func TestEmitterPromotionCode(t *testing.T) {
	mod := mustCompile(t, `
class Calc public
  func run public
    add 1 2.5
  end
end`)
	c, _ := mod.Class("Calc")
	p := c.Methods[0]

	var ops []string
	for _, instr := range p.Instructions {
		op, _ := vm.Decode(instr)
		ops = append(ops, vm.OpName(op))
	}
	want := "PUSH_C PUSH_C SWAP CONV SWAP ADD_F POP_L RET"
	if got := strings.Join(ops, " "); got != want {
		t.Errorf("expected %s, got %s\n%s", want, got, vm.Disassemble(p))
	}
}

func TestEmitterLoopRunsThreeTimes(t *testing.T) {
	mod := mustCompile(t, `
class Counter public
  field runs : int public
  constructor public
    define i as int
    set i 3
    loop
      print i
      add runs 1
      set runs ret
      sub i 1
      set i ret
      isgrtn i 0
      doop
    break
  end
end`)

	_, obj, out := instantiate(t, mod, "Counter")
	runs, _ := obj.Get("runs")
	if runs.Int() != 3 {
		t.Errorf("expected 3 iterations, got %d", runs.Int())
	}
	if out.String() != "3\n2\n1\n" {
		t.Errorf("unexpected loop output %q", out.String())
	}
}

func TestEmitterConditionalSkip(t *testing.T) {
	mod := mustCompile(t, `
class Branch public
  field flag : bool = true
  constructor public
    iseqls 1 2
    print "equal"
    isneqls 1 2
    print "different"
    compare flag
    istrue
    print "flag set"
    isfalse
    print "flag clear"
    islstn 1.5 2
    print "less"
    compare "x"
    iseqls "y"
    print "last"
  end
end`)

	_, _, out := instantiate(t, mod, "Branch")
	want := "different\nflag set\nless\n"
	if out.String() != want {
		t.Errorf("expected %q, got %q", want, out.String())
	}
}

func TestEmitterLabels(t *testing.T) {
	mod := mustCompile(t, `
class Jumper public
  constructor public
    goto skip
    print "never"
    def_label skip
    print "once"
    jmp done
    print "never"
    def_label done
  end
end`)

	_, _, out := instantiate(t, mod, "Jumper")
	if out.String() != "once\n" {
		t.Errorf("expected %q, got %q", "once\n", out.String())
	}
}

func TestEmitterNestedLoops(t *testing.T) {
	mod := mustCompile(t, `
class Nest public
  field hits : int public
  constructor public
    define i as int
    define j as int
    set i 2
    loop
      set j 3
      loop
        add hits 1
        set hits ret
        sub j 1
        set j ret
        isgrtn j 0
        doop
      break
      sub i 1
      set i ret
      isgrtn i 0
      doop
    break
  end
end`)

	_, obj, _ := instantiate(t, mod, "Nest")
	hits, _ := obj.Get("hits")
	if hits.Int() != 6 {
		t.Errorf("expected 2x3 = 6 inner iterations, got %d", hits.Int())
	}
}

func TestEmitterTrailingConditional(t *testing.T) {
	mod := mustCompile(t, `
class Tail public
  field n : int public
  constructor public
    set n 1
    iseqls n 2
  end
  func check : int public
    isgrtn 1 2
  end
end`)

	m, obj, _ := instantiate(t, mod, "Tail")
	n, _ := obj.Get("n")
	if n.Int() != 1 {
		t.Errorf("expected n = 1, got %s", n.Format())
	}
	got, err := m.Call(obj, "check")
	if err != nil {
		t.Fatal(err)
	}
	if got.Type != value.TypeInt || got.Int() != 0 {
		t.Errorf("expected the epilogue's int zero, got %s (%s)", got.Format(), got.Type)
	}
}

func TestEmitterRegistersMergeAtLabels(t *testing.T) {
	mod := mustCompile(t, `
class Pick public
  field hit : bool public = true
  func run : float public
    compare hit
    istrue
    goto big
    add 1 1
    goto done
    def_label big
    add 10 10
    def_label done
    return ret
  end
end`)

	m, obj, _ := instantiate(t, mod, "Pick")
	for _, tt := range []struct {
		hit  bool
		want float64
	}{{true, 20}, {false, 2}} {
		if err := obj.Set("hit", value.Bool(tt.hit)); err != nil {
			t.Fatal(err)
		}
		got, err := m.Call(obj, "run")
		if err != nil {
			t.Fatal(err)
		}
		if got.Float() != tt.want {
			t.Errorf("hit=%v: expected %v, got %s", tt.hit, tt.want, got.Format())
		}
	}
}

func TestEmitterPrivateClassNotInstantiable(t *testing.T) {
	mod := mustCompile(t, `
class Box
  field size : int public
  constructor public
    set size 42
  end
end`)

	c, _ := mod.Class("Box")
	m := &vm.Machine{}
	if _, err := m.Instantiate(c, 0); !diag.Is(err, diag.KindInstantiation) {
		t.Errorf("expected a private class refusal, got %v", err)
	}
}

func TestEmitterChains(t *testing.T) {
	mod := mustCompile(t, `
class Item public
  field durability : int public = 7
end

class Bag public
  field items : Item[]
  field nums : int[] public = 1 2 3
  field total : int public
  field picked : int public
  constructor public
    new items Item[] 2
    new this.items.[1] Item
    set total this.items.[1].durability
    define i as int
    set i 2
    set picked nums[i]
    set nums[0] 10
  end
  func first : int public
    return nums.[0]
  end
end`)

	m, obj, _ := instantiate(t, mod, "Bag")
	for name, want := range map[string]int64{"total": 7, "picked": 3} {
		got, err := obj.Get(name)
		if err != nil {
			t.Fatal(err)
		}
		if got.Int() != want {
			t.Errorf("%s: expected %d, got %s", name, want, got.Format())
		}
	}
	first, err := m.Call(obj, "first")
	if err != nil {
		t.Fatal(err)
	}
	if first.Int() != 10 {
		t.Errorf("expected nums[0] = 10, got %s", first.Format())
	}

	nums, _ := obj.Get("nums")
	if nums.Format() != "[10, 2, 3]" {
		t.Errorf("unexpected nums %s", nums.Format())
	}
}

func TestEmitterCallsAndReturns(t *testing.T) {
	mod := mustCompile(t, `
class Greeter public
  field name : string = "drasm"
  func greet : string
    return name
  end
  func run : int public
    call greet
    print ret
    return 2.9
  end
  func fallthrough : double public
  end
end`)

	m, obj, out := instantiate(t, mod, "Greeter")
	got, err := m.Call(obj, "run")
	if err != nil {
		t.Fatal(err)
	}
	if got.Type != value.TypeInt || got.Int() != 2 {
		t.Errorf("expected int 2, got %s (%s)", got.Format(), got.Type)
	}
	if out.String() != "drasm\n" {
		t.Errorf("unexpected output %q", out.String())
	}

	zero, err := m.Call(obj, "fallthrough")
	if err != nil {
		t.Fatal(err)
	}
	if zero.Type != value.TypeDouble || zero.Float() != 0 {
		t.Errorf("expected double zero, got %s", spew.Sdump(zero))
	}
	if _, err := m.Call(obj, "greet"); !diag.Is(err, diag.KindInstantiation) {
		t.Errorf("expected private method refusal, got %v", err)
	}
}

func TestEmitterSynthesizedConstructor(t *testing.T) {
	mod := mustCompile(t, `
class Plain public
  field n = 5
  field ratio = 0.5
  field label = "x"
  field ok = true
end`)

	c, _ := mod.Class("Plain")
	if len(c.Constructors) != 1 || !c.Constructors[0].Public {
		t.Fatalf("expected one synthesized public constructor, got %s", spew.Sdump(c.Constructors))
	}
	wantTypes := []value.TypeRef{value.IntRef, value.FloatRef, value.StringRef, value.BoolRef}
	for i, f := range c.Fields {
		if !f.Type.Equal(wantTypes[i]) {
			t.Errorf("field %s: expected %s, got %s", f.Name, wantTypes[i], f.Type)
		}
	}

	m := &vm.Machine{}
	obj, err := m.Instantiate(c, 0)
	if err != nil {
		t.Fatal(err)
	}
	if obj.Fields[0].Int() != 5 || obj.Fields[2].Str() != "x" {
		t.Errorf("defaults not applied: %s", spew.Sdump(obj.Fields))
	}
}

func TestEmitterErrors(t *testing.T) {
	tests := []struct {
		name      string
		src       string
		kind      diag.Kind
		construct string
		line      int
	}{
		{
			name:      "unknown identifier",
			src:       "class A\nfield x = 5\nfunc f\nset y 1\nend\nend",
			kind:      diag.KindResolution,
			construct: "y",
			line:      4,
		},
		{
			name:      "unknown define type",
			src:       "class A\nfunc f\ndefine v as Frobnicator\nend\nend",
			kind:      diag.KindType,
			construct: "Frobnicator",
			line:      3,
		},
		{
			name:      "undefined label",
			src:       "class A\nfunc f\ngoto nowhere\nend\nend",
			kind:      diag.KindResolution,
			construct: "nowhere",
			line:      3,
		},
		{
			name:      "unknown method",
			src:       "class A\nfunc f\ncall nope\nend\nend",
			kind:      diag.KindResolution,
			construct: "nope",
			line:      3,
		},
		{
			name:      "deleted local",
			src:       "class A\nfunc f\ndefine v as int\ndelete v\nset v 1\nend\nend",
			kind:      diag.KindResolution,
			construct: "v",
			line:      5,
		},
		{
			name:      "string into int",
			src:       "class A\nfield n : int\nfunc f\nset n \"x\"\nend\nend",
			kind:      diag.KindType,
			construct: "n",
			line:      4,
		},
		{
			name:      "non numeric arithmetic",
			src:       "class A\nfunc f\nadd \"a\" 1\nend\nend",
			kind:      diag.KindType,
			construct: "op_add",
			line:      3,
		},
		{
			name:      "ret before write",
			src:       "class A\nfunc f\nprint ret\nend\nend",
			kind:      diag.KindResolution,
			construct: "ret",
			line:      3,
		},
		{
			name:      "selected before write",
			src:       "class A\nfunc f\nadd 1\nend\nend",
			kind:      diag.KindResolution,
			construct: "op_add",
			line:      3,
		},
		{
			name:      "doop without loop",
			src:       "class A\nfunc f\ndoop\nend\nend",
			kind:      diag.KindStructural,
			construct: "op_doop",
			line:      3,
		},
		{
			name:      "value from void",
			src:       "class A\nfunc f\nreturn 1\nend\nend",
			kind:      diag.KindType,
			construct: "op_return",
			line:      3,
		},
		{
			name:      "private field of other class",
			src:       "class A\nfield secret : int\nend\nclass B\nfield a : A\nfunc f\nprint a.secret\nend\nend",
			kind:      diag.KindResolution,
			construct: "secret",
			line:      7,
		},
		{
			name:      "member of scalar",
			src:       "class A\nfield n : int\nfunc f\nprint n.size\nend\nend",
			kind:      diag.KindResolution,
			construct: "size",
			line:      4,
		},
		{
			name:      "istrue on int",
			src:       "class A\nfunc f\nistrue 5\nprint 1\nend\nend",
			kind:      diag.KindType,
			construct: "op_istrue",
			line:      3,
		},
		{
			name:      "new abstract",
			src:       "class Shape abstract\nend\nclass A\nfield s : Shape\nfunc f\nnew s Shape\nend\nend",
			kind:      diag.KindType,
			construct: "Shape",
			line:      6,
		},
		{
			name:      "byte overflow",
			src:       "class A\nfield b : byte = 300\nend",
			kind:      diag.KindType,
			construct: "b",
			line:      2,
		},
		{
			name:      "unknown field type",
			src:       "class A\nfield w : Widget\nend",
			kind:      diag.KindType,
			construct: "Widget",
			line:      2,
		},
		{
			name:      "index of scalar",
			src:       "class A\nfield n : int\nfunc f\nprint n[0]\nend\nend",
			kind:      diag.KindType,
			construct: "[0]",
			line:      4,
		},
		{
			name:      "ret typed differently on skipped path",
			src:       "class A\nfunc name : string\nreturn \"abc\"\nend\nfunc run : float public\ncall name\niseqls 1 2\nmul 2 3\nadd ret 1\nreturn ret\nend\nend",
			kind:      diag.KindType,
			construct: "ret",
			line:      9,
		},
		{
			name:      "selected written only on skipped path",
			src:       "class A\nfunc run : float public\niseqls 1 2\nselect 10\nsub 4\nreturn ret\nend\nend",
			kind:      diag.KindResolution,
			construct: "op_sub",
			line:      5,
		},
		{
			name:      "selected retyped along backward goto",
			src:       "class A\nfunc f\nselect 1\ndef_label top\nsub 1\nselect \"s\"\ngoto top\nend\nend",
			kind:      diag.KindType,
			construct: "op_sub",
			line:      5,
		},
		{
			name:      "ret unset at loop top",
			src:       "class A\nfunc f\nloop\nprint ret\nadd 1 2\ndoop\nbreak\nend\nend",
			kind:      diag.KindResolution,
			construct: "ret",
			line:      4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mod, err := compile(tt.src)
			if mod != nil {
				t.Errorf("expected no module on failure, got %s", spew.Sdump(mod.Classes))
			}
			d, ok := diag.As(err)
			if !ok {
				t.Fatalf("expected a diagnostic, got %v", err)
			}
			if d.Kind != tt.kind || d.Construct != tt.construct || d.Line != tt.line {
				t.Errorf("expected %s error on %q at line %d, got %s", tt.kind, tt.construct, tt.line, spew.Sdump(d))
			}
		})
	}
}
