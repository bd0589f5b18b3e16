package ast

// Program is the root of the program model: classes in declaration order.
type Program struct {
	Classes []*Class
}

// Class returns the class declared under name.
func (p *Program) Class(name string) (*Class, bool) {
	for _, c := range p.Classes {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Class describes one declared class.
type Class struct {
	Name         string
	Line         int
	Public       bool
	Abstract     bool
	Fields       []*Field
	Constructors []*Method
	Methods      map[string]*Method
	MethodOrder  []string
}

func NewClass(name string, line int) *Class {
	return &Class{Name: name, Line: line, Methods: make(map[string]*Method)}
}

// Field returns the field declared under name.
func (c *Class) Field(name string) (*Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// AddMethod registers m; it reports false when the name is taken.
func (c *Class) AddMethod(m *Method) bool {
	if _, dup := c.Methods[m.Name]; dup {
		return false
	}
	c.Methods[m.Name] = m
	c.MethodOrder = append(c.MethodOrder, m.Name)
	return true
}

// Field describes a field declaration. TypeName is empty when the type is to
// be inferred from Default. Default holds one operand for scalars and every
// element for array types.
type Field struct {
	Name     string
	Line     int
	Public   bool
	TypeName string
	Default  []Operand
	HasValue bool
}

// Method describes a method or a constructor. Constructors have an empty Name
// and no ReturnType. Override is recorded but has no effect, since classes
// do not inherit.
type Method struct {
	Name        string
	Line        int
	Public      bool
	Abstract    bool
	Override    bool
	Constructor bool
	ReturnType  string
	Body        *CodeBlock
}

// CodeBlock is the body of a method or constructor. Labels maps a label name
// to the index of the instruction that follows its declaration.
type CodeBlock struct {
	Labels       map[string]int
	Instructions []*Instruction
}

func NewCodeBlock() *CodeBlock {
	return &CodeBlock{Labels: make(map[string]int)}
}

// Instruction is one opcode with its typed operands.
type Instruction struct {
	Op       Opcode
	Operands []Operand
	Line     int
}
