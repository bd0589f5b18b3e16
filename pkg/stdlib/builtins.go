package stdlib

import (
	"fmt"

	"github.com/agenthands/drasm/pkg/vm"
)

// Print: ( value -- ) writes the formatted value and a newline to the
// machine output.
func Print(m *vm.Machine) error {
	_, err := fmt.Fprintln(m.Writer(), m.Pop().Format())
	return err
}

// Builtins is the host function table generated code is compiled against.
// Install registers it in this order, so the index of an entry is its
// SYSCALL argument.
var Builtins = []vm.HostFunctionEntry{
	{Name: "print", Fn: Print},
}

// Index returns the SYSCALL argument of the builtin name.
func Index(name string) (uint32, bool) {
	for i, b := range Builtins {
		if b.Name == name {
			return uint32(i), true
		}
	}
	return 0, false
}

// Install replaces the host registry of m with the builtin table.
func Install(m *vm.Machine) {
	m.HostRegistry = append(m.HostRegistry[:0], Builtins...)
}
