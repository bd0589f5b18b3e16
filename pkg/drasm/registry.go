package drasm

import (
	"io"
	"os"

	cmap "github.com/orcaman/concurrent-map"

	"github.com/agenthands/drasm/pkg/core/diag"
	"github.com/agenthands/drasm/pkg/core/value"
	"github.com/agenthands/drasm/pkg/stdlib"
	"github.com/agenthands/drasm/pkg/vm"
)

// Registry is the host side of DRASM: it loads units and instantiates and
// invokes their classes by name. Loading, lookups and instantiation are safe
// for concurrent use; each operation runs on its own pooled machine. Objects
// are not synchronized: concurrent Calls on the same *vm.Object race on its
// fields and must be serialized by the caller.
type Registry struct {
	compiler *Compiler
	classes  cmap.ConcurrentMap
	out      io.Writer
	gas      int
}

func NewRegistry(c *Compiler, out io.Writer) *Registry {
	if out == nil {
		out = os.Stdout
	}
	return &Registry{
		compiler: c,
		classes:  cmap.New(),
		out:      out,
		gas:      c.cfg.GasLimit,
	}
}

// Load compiles src and registers every class it declares. Nothing is
// registered when any class name is already taken.
func (r *Registry) Load(src string) ([]string, error) {
	mod, err := r.compiler.Compile(src)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(mod.Classes))
	for _, c := range mod.Classes {
		if r.classes.Has(c.Name) {
			return nil, diag.New(diag.KindInstantiation, 0, c.Name, "class %s is already loaded", c.Name)
		}
		names = append(names, c.Name)
	}
	for i, c := range mod.Classes {
		if !r.classes.SetIfAbsent(c.Name, c) {
			for _, done := range names[:i] {
				r.classes.Remove(done)
			}
			return nil, diag.New(diag.KindInstantiation, 0, c.Name, "class %s is already loaded", c.Name)
		}
	}
	log.Info("Loaded unit", "classes", names)
	return names, nil
}

// Class returns the loaded class name.
func (r *Registry) Class(name string) (*vm.Class, bool) {
	v, ok := r.classes.Get(name)
	if !ok {
		return nil, false
	}
	return v.(*vm.Class), true
}

// Classes lists the loaded class names.
func (r *Registry) Classes() []string {
	return r.classes.Keys()
}

// Unload forgets a class. Live objects keep working.
func (r *Registry) Unload(name string) {
	r.classes.Remove(name)
}

func (r *Registry) machine() *vm.Machine {
	m := vm.GetMachine()
	stdlib.Install(m)
	m.Out = r.out
	m.GasLimit = r.gas
	return m
}

// New instantiates class name through its first constructor.
func (r *Registry) New(name string) (*vm.Object, error) {
	return r.NewWith(name, 0)
}

// NewWith instantiates class name through the constructor at index ctor.
func (r *Registry) NewWith(name string, ctor int) (*vm.Object, error) {
	c, ok := r.Class(name)
	if !ok {
		return nil, diag.New(diag.KindInstantiation, 0, name, "class %s is not loaded", name)
	}
	m := r.machine()
	defer vm.PutMachine(m)

	obj, err := m.Instantiate(c, ctor)
	if err != nil {
		log.Warn("Instantiation failed", "class", name, "err", err)
		return nil, err
	}
	return obj, nil
}

// Call invokes the public method name on obj.
func (r *Registry) Call(obj *vm.Object, method string) (value.Value, error) {
	m := r.machine()
	defer vm.PutMachine(m)

	v, err := m.Call(obj, method)
	if err != nil {
		log.Warn("Call failed", "method", method, "err", err)
	}
	return v, err
}
