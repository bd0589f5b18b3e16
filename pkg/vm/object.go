package vm

import (
	"github.com/agenthands/drasm/pkg/core/diag"
	"github.com/agenthands/drasm/pkg/core/value"
)

// Object is an instance of a generated class.
type Object struct {
	Class  *Class
	Fields []value.Value
}

// NewObject allocates an instance with every field at its zero value. Field
// defaults are applied by the constructor prologue, not here.
func NewObject(c *Class) *Object {
	fields := make([]value.Value, len(c.Fields))
	for i, f := range c.Fields {
		fields[i] = f.Type.Zero()
	}
	return &Object{Class: c, Fields: fields}
}

func (o *Object) TypeName() string { return o.Class.Name }

// Get reads a public field by name.
func (o *Object) Get(name string) (value.Value, error) {
	i, err := o.lookup(name)
	if err != nil {
		return value.Value{}, err
	}
	return o.Fields[i], nil
}

// Set converts v to the field type and stores it in a public field.
func (o *Object) Set(name string, v value.Value) error {
	i, err := o.lookup(name)
	if err != nil {
		return err
	}
	cv, cerr := value.Convert(v, o.Class.Fields[i].Type)
	if cerr != nil {
		return diag.New(diag.KindType, 0, name, "field %s.%s: %v", o.Class.Name, name, cerr)
	}
	o.Fields[i] = cv
	return nil
}

func (o *Object) lookup(name string) (int, error) {
	i, ok := o.Class.Field(name)
	if !ok {
		return 0, diag.New(diag.KindInstantiation, 0, name, "class %s has no field %s", o.Class.Name, name)
	}
	if !o.Class.Fields[i].Public {
		return 0, diag.New(diag.KindInstantiation, 0, name, "field %s.%s is private", o.Class.Name, name)
	}
	return i, nil
}

// Instantiate builds a new instance of c through its constructor at index
// ctor. Private or abstract classes and private constructors are refused.
func (m *Machine) Instantiate(c *Class, ctor int) (*Object, error) {
	switch {
	case !c.Public:
		return nil, diag.New(diag.KindInstantiation, 0, c.Name, "class %s is private", c.Name)
	case c.Abstract:
		return nil, diag.New(diag.KindInstantiation, 0, c.Name, "class %s is abstract", c.Name)
	case ctor < 0 || ctor >= len(c.Constructors):
		return nil, diag.New(diag.KindInstantiation, 0, c.Name, "class %s has no constructor #%d", c.Name, ctor)
	case !c.Constructors[ctor].Public:
		return nil, diag.New(diag.KindInstantiation, 0, c.Name, "constructor #%d of class %s is private", ctor, c.Name)
	}

	v, err := m.invoke(c.Constructors[ctor], NewObject(c), true)
	if err != nil {
		return nil, err
	}
	obj, _ := v.Opaque.(*Object)
	return obj, nil
}

// Call invokes the public method name on obj.
func (m *Machine) Call(obj *Object, name string) (value.Value, error) {
	if obj == nil {
		return value.Value{}, diag.New(diag.KindInstantiation, 0, name, "call of %s on a nil object", name)
	}
	p, _, ok := obj.Class.Method(name)
	switch {
	case !ok:
		return value.Value{}, diag.New(diag.KindInstantiation, 0, name, "class %s has no method %s", obj.Class.Name, name)
	case !p.Public:
		return value.Value{}, diag.New(diag.KindInstantiation, 0, name, "method %s.%s is private", obj.Class.Name, name)
	case p.Abstract:
		return value.Value{}, diag.New(diag.KindInstantiation, 0, name, "method %s.%s is abstract", obj.Class.Name, name)
	}
	return m.Invoke(p, obj)
}
