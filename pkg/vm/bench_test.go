package vm_test

import (
	"testing"

	"github.com/agenthands/drasm/pkg/core/value"
	"github.com/agenthands/drasm/pkg/vm"
)

func BenchmarkVMLoop(b *testing.B) {
	// Counter loop over local 3 up to 1000, the shape op_loop/op_doop lowers to.
	p := proc("loop", value.VoidRef, []uint32{
		vm.Encode(vm.OP_PUSH_C, 0),
		vm.Encode(vm.OP_POP_L, 3),
		vm.Encode(vm.OP_PUSH_L, 3),
		vm.Encode(vm.OP_PUSH_C, 1),
		vm.Encode(vm.OP_LT, 0),
		vm.Encode(vm.OP_JMP_FALSE, 11),
		vm.Encode(vm.OP_PUSH_L, 3),
		vm.Encode(vm.OP_PUSH_C, 2),
		vm.Encode(vm.OP_ADD_I, 0),
		vm.Encode(vm.OP_POP_L, 3),
		vm.Encode(vm.OP_JMP, 2),
		vm.Encode(vm.OP_RET, 0),
	}, value.Int(0), value.Int(1000), value.Int(1))

	m := &vm.Machine{GasLimit: 10000}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Reset()
		if _, err := m.Invoke(p, nil); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkStringEquality(b *testing.B) {
	p := proc("eq", value.BoolRef, []uint32{
		vm.Encode(vm.OP_PUSH_C, 0),
		vm.Encode(vm.OP_PUSH_C, 1),
		vm.Encode(vm.OP_EQ, 0),
		vm.Encode(vm.OP_RET, 1),
	}, value.String("hello"), value.String("hello"))

	m := &vm.Machine{}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Reset()
		if _, err := m.Invoke(p, nil); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkInstantiate(b *testing.B) {
	_, c := counterClass()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m := vm.GetMachine()
		if _, err := m.Instantiate(c, 0); err != nil {
			b.Fatal(err)
		}
		vm.PutMachine(m)
	}
}
