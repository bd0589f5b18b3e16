package vm

import (
	"github.com/agenthands/drasm/pkg/core/value"
)

// Module is the executable artifact of one compilation unit.
type Module struct {
	Classes []*Class
	index   map[string]int
}

func NewModule() *Module {
	return &Module{index: make(map[string]int)}
}

// AddClass appends c and assigns its index.
func (mod *Module) AddClass(c *Class) {
	c.Index = len(mod.Classes)
	c.Module = mod
	mod.index[c.Name] = c.Index
	mod.Classes = append(mod.Classes, c)
}

// Class looks a class up by name.
func (mod *Module) Class(name string) (*Class, bool) {
	i, ok := mod.index[name]
	if !ok {
		return nil, false
	}
	return mod.Classes[i], true
}

// FieldSlot is the storage layout entry of one field.
type FieldSlot struct {
	Name   string
	Type   value.TypeRef
	Public bool
}

// Class is the runtime type descriptor of a DRASM class.
type Class struct {
	Name     string
	Index    int
	Public   bool
	Abstract bool
	Module   *Module

	Fields       []FieldSlot
	Constructors []*Procedure
	Methods      []*Procedure

	fieldIndex  map[string]int
	methodIndex map[string]int
}

func NewClass(name string, public, abstract bool) *Class {
	return &Class{
		Name:        name,
		Public:      public,
		Abstract:    abstract,
		fieldIndex:  make(map[string]int),
		methodIndex: make(map[string]int),
	}
}

func (c *Class) AddField(f FieldSlot) int {
	c.fieldIndex[f.Name] = len(c.Fields)
	c.Fields = append(c.Fields, f)
	return len(c.Fields) - 1
}

func (c *Class) Field(name string) (int, bool) {
	i, ok := c.fieldIndex[name]
	return i, ok
}

func (c *Class) AddMethod(p *Procedure) int {
	p.Class = c
	c.methodIndex[p.Name] = len(c.Methods)
	c.Methods = append(c.Methods, p)
	return len(c.Methods) - 1
}

func (c *Class) AddConstructor(p *Procedure) {
	p.Class = c
	p.Constructor = true
	c.Constructors = append(c.Constructors, p)
}

func (c *Class) Method(name string) (*Procedure, int, bool) {
	i, ok := c.methodIndex[name]
	if !ok {
		return nil, 0, false
	}
	return c.Methods[i], i, true
}

// Procedure is one executable constructor or method body.
type Procedure struct {
	Name        string
	Class       *Class
	Public      bool
	Abstract    bool
	Constructor bool
	Returns     value.TypeRef

	Instructions []uint32
	Lines        []int
	Constants    []value.Value
	Types        []value.TypeRef
	NumLocals    int
}

// FullName is Class.Name for diagnostics.
func (p *Procedure) FullName() string {
	if p.Class == nil {
		return p.Name
	}
	return p.Class.Name + "." + p.Name
}

func (p *Procedure) lineAt(ip int) int {
	if ip >= 0 && ip < len(p.Lines) {
		return p.Lines[ip]
	}
	return 0
}
