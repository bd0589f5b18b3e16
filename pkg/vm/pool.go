package vm

import "sync"

var machinePool = sync.Pool{
	New: func() any { return &Machine{} },
}

// GetMachine returns a reset machine from the pool.
func GetMachine() *Machine {
	return machinePool.Get().(*Machine)
}

// PutMachine resets m and returns it to the pool. Host registrations are
// dropped so a pooled machine never leaks another caller's functions.
func PutMachine(m *Machine) {
	m.Reset()
	m.HostRegistry = m.HostRegistry[:0]
	m.Out = nil
	m.GasLimit = 0
	machinePool.Put(m)
}
