package stdlib_test

import (
	"bytes"
	"testing"

	"github.com/agenthands/drasm/pkg/core/value"
	"github.com/agenthands/drasm/pkg/stdlib"
	"github.com/agenthands/drasm/pkg/vm"
)

func TestPrint(t *testing.T) {
	m := vm.GetMachine()
	defer vm.PutMachine(m)

	var out bytes.Buffer
	m.Out = &out

	tests := []struct {
		name string
		v    value.Value
		want string
	}{
		{"string", value.String("hi"), "hi\n"},
		{"int", value.Int(-3), "-3\n"},
		{"float", value.Float(5.5), "5.5\n"},
		{"bool", value.Bool(true), "true\n"},
		{"null", value.Null(), "null\n"},
		{"array", value.ArrayValue(&value.Array{Elem: value.IntRef, Items: []value.Value{value.Int(1), value.Int(2)}}), "[1, 2]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			m.Push(tt.v)
			if err := stdlib.Print(m); err != nil {
				t.Fatal(err)
			}
			if out.String() != tt.want {
				t.Errorf("expected %q, got %q", tt.want, out.String())
			}
		})
	}
}

func TestInstall(t *testing.T) {
	m := &vm.Machine{}
	m.RegisterHostFunction("stale", nil)
	stdlib.Install(m)

	idx, ok := stdlib.Index("print")
	if !ok {
		t.Fatal("print is not a builtin")
	}
	if len(m.HostRegistry) != len(stdlib.Builtins) || m.HostRegistry[idx].Name != "print" {
		t.Errorf("unexpected registry after Install: %+v", m.HostRegistry)
	}
	if _, ok := stdlib.Index("nope"); ok {
		t.Error("unexpected builtin nope")
	}
}
