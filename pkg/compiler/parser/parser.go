package parser

import (
	"fmt"

	"github.com/agenthands/drasm/pkg/compiler/ast"
	"github.com/agenthands/drasm/pkg/compiler/lexer"
	"github.com/agenthands/drasm/pkg/core/diag"
)

// Parser builds the program model from token rows, one row per source line.
// It tracks the open class and the open method or constructor; nesting is
// at most class > member.
type Parser struct {
	rows [][]lexer.Token
	row  []lexer.Token
	line int

	prog   *ast.Program
	class  *ast.Class
	method *ast.Method
}

func NewParser(rows [][]lexer.Token) *Parser {
	return &Parser{rows: rows, prog: &ast.Program{}}
}

// Parse is shorthand for NewParser(rows).Parse().
func Parse(rows [][]lexer.Token) (*ast.Program, error) {
	return NewParser(rows).Parse()
}

func (p *Parser) Parse() (*ast.Program, error) {
	for _, row := range p.rows {
		if len(row) == 0 {
			continue
		}
		p.row = row
		p.line = row[0].Line
		if err := p.parseLine(); err != nil {
			return nil, err
		}
	}

	if p.method != nil {
		return nil, p.errorf(memberName(p.method), "%s is not closed before end of input", describe(p.method))
	}
	if p.class != nil {
		return nil, p.errorf(p.class.Name, "class %s is not closed before end of input", p.class.Name)
	}
	return p.prog, nil
}

func (p *Parser) parseLine() error {
	switch head := p.row[0]; head.Kind {
	case lexer.KindClass:
		return p.parseClass()
	case lexer.KindFunc:
		return p.parseFunc()
	case lexer.KindConstructor:
		return p.parseConstructor()
	case lexer.KindField:
		return p.parseField()
	case lexer.KindEnd:
		return p.parseEnd()
	case lexer.KindIdentifier:
		return p.parseInstruction()
	default:
		return p.errorf(head.Value, "unexpected %v at start of line", head.Kind)
	}
}

func (p *Parser) parseClass() error {
	name, err := p.expectName(1, "class")
	if err != nil {
		return err
	}
	if p.class != nil {
		return p.errorf(name, "class %s declared inside class %s", name, p.class.Name)
	}
	if _, dup := p.prog.Class(name); dup {
		return p.errorf(name, "class %s is already declared", name)
	}

	c := ast.NewClass(name, p.line)
	for _, tok := range p.row[2:] {
		switch tok.Kind {
		case lexer.KindPublic:
			c.Public = true
		case lexer.KindPrivate:
			c.Public = false
		case lexer.KindAbstract:
			c.Abstract = true
		default:
			return p.errorf(name, "unexpected %v in declaration of class %s", tok.Kind, name)
		}
	}
	p.prog.Classes = append(p.prog.Classes, c)
	p.class = c
	return nil
}

func (p *Parser) parseFunc() error {
	name, err := p.expectName(1, "func")
	if err != nil {
		return err
	}
	if err := p.checkMemberScope("func " + name); err != nil {
		return err
	}

	m := &ast.Method{Name: name, Line: p.line, Body: ast.NewCodeBlock()}
	rest := p.row[2:]
	if len(rest) > 0 && rest[0].Kind == lexer.KindColon {
		if len(rest) < 2 || rest[1].Kind != lexer.KindIdentifier {
			return p.errorf(name, "expected return type after ':' in func %s", name)
		}
		m.ReturnType = rest[1].Value
		rest = rest[2:]
	}
	if err := p.memberAttrs(m, rest); err != nil {
		return err
	}
	if m.Abstract && !p.class.Abstract {
		return p.errorf(name, "abstract func %s in non-abstract class %s", name, p.class.Name)
	}
	if !p.class.AddMethod(m) {
		return p.errorf(name, "func %s is already declared in class %s", name, p.class.Name)
	}
	p.method = m
	return nil
}

func (p *Parser) parseConstructor() error {
	if err := p.checkMemberScope("constructor"); err != nil {
		return err
	}
	m := &ast.Method{Constructor: true, Line: p.line, Body: ast.NewCodeBlock()}
	if err := p.memberAttrs(m, p.row[1:]); err != nil {
		return err
	}
	p.class.Constructors = append(p.class.Constructors, m)
	p.method = m
	return nil
}

func (p *Parser) checkMemberScope(what string) error {
	if p.class == nil {
		return p.errorf(what, "%s declared outside of a class", what)
	}
	if p.method != nil {
		return p.errorf(what, "%s declared inside %s", what, describe(p.method))
	}
	return nil
}

func (p *Parser) memberAttrs(m *ast.Method, toks []lexer.Token) error {
	for _, tok := range toks {
		switch tok.Kind {
		case lexer.KindPublic:
			m.Public = true
		case lexer.KindPrivate:
			m.Public = false
		case lexer.KindAbstract:
			m.Abstract = true
		case lexer.KindOverride:
			m.Override = true
		default:
			return p.errorf(memberName(m), "unexpected %v in declaration of %s", tok.Kind, describe(m))
		}
	}
	return nil
}

// parseField handles: field <name> [: <type>] [attrs] [= <value>...]
func (p *Parser) parseField() error {
	name, err := p.expectName(1, "field")
	if err != nil {
		return err
	}
	if p.class == nil {
		return p.errorf(name, "field %s declared outside of a class", name)
	}
	if p.method != nil {
		return p.errorf(name, "field %s declared inside %s", name, describe(p.method))
	}
	if _, dup := p.class.Field(name); dup {
		return p.errorf(name, "field %s is already declared in class %s", name, p.class.Name)
	}

	f := &ast.Field{Name: name, Line: p.line}
	rest := p.row[2:]
	if len(rest) > 0 && rest[0].Kind == lexer.KindColon {
		if len(rest) < 2 || rest[1].Kind != lexer.KindIdentifier {
			return p.errorf(name, "expected type after ':' in field %s", name)
		}
		f.TypeName = rest[1].Value
		rest = rest[2:]
	}
	for len(rest) > 0 && rest[0].Kind.IsAttribute() {
		switch rest[0].Kind {
		case lexer.KindPublic:
			f.Public = true
		case lexer.KindPrivate:
			f.Public = false
		default:
			return p.errorf(name, "attribute %v is not valid on field %s", rest[0].Kind, name)
		}
		rest = rest[1:]
	}
	if len(rest) > 0 {
		if rest[0].Kind != lexer.KindAssign {
			return p.errorf(name, "unexpected %v in declaration of field %s", rest[0].Kind, name)
		}
		if len(rest) == 1 {
			return p.errorf(name, "missing default value for field %s", name)
		}
		for _, tok := range rest[1:] {
			op, err := p.operand(tok)
			if err != nil {
				return err
			}
			if op.Kind == ast.KindIdentifier || op.Kind == ast.KindReturnValue {
				return p.errorf(name, "default of field %s must be a literal, got %s", name, tok.Value)
			}
			f.Default = append(f.Default, op)
		}
		f.HasValue = true
	}

	if f.TypeName == "" {
		if !f.HasValue {
			return p.errorf(name, "field %s has neither a type nor a default value", name)
		}
		if len(f.Default) > 1 {
			return p.errorf(name, "array default of field %s needs a declared type", name)
		}
	}
	p.class.Fields = append(p.class.Fields, f)
	return nil
}

func (p *Parser) parseEnd() error {
	if len(p.row) > 1 {
		return p.errorf("end", "unexpected %v after end", p.row[1].Kind)
	}
	switch {
	case p.method != nil:
		if p.method.Abstract && len(p.method.Body.Instructions) > 0 {
			return p.errorf(memberName(p.method), "abstract %s has a body", describe(p.method))
		}
		p.method = nil
	case p.class != nil:
		p.class = nil
	default:
		return p.errorf("end", "end without an open class or method")
	}
	return nil
}

func (p *Parser) parseInstruction() error {
	word := p.row[0].Value
	op, ok := ast.LookupOpcode(word)
	if !ok {
		return p.errorf(word, "unknown instruction %q", word)
	}
	if p.method == nil {
		return p.errorf(word, "instruction %s outside of a method or constructor", op)
	}

	sig := ast.Opcodes[op]
	args := p.row[1:]
	if len(args) < sig.Min || len(args) > sig.Max {
		return p.errorf(word, "%s takes %s, got %d", op, arity(sig), len(args))
	}

	body := p.method.Body
	if op == ast.DefLabel {
		if args[0].Kind != lexer.KindIdentifier {
			return p.errorf(word, "label name must be an identifier, got %v", args[0].Kind)
		}
		name := args[0].Value
		if _, dup := body.Labels[name]; dup {
			return p.errorf(name, "label %s is already declared in %s", name, describe(p.method))
		}
		body.Labels[name] = len(body.Instructions)
		return nil
	}

	instr := &ast.Instruction{Op: op, Line: p.line}
	for _, tok := range args {
		o, err := p.operand(tok)
		if err != nil {
			return err
		}
		instr.Operands = append(instr.Operands, o)
	}
	body.Instructions = append(body.Instructions, instr)
	return nil
}

// operand maps a token onto a typed operand. The words true, false, null and
// ret are reserved.
func (p *Parser) operand(tok lexer.Token) (ast.Operand, error) {
	switch tok.Kind {
	case lexer.KindIdentifier:
		switch tok.Value {
		case "true":
			return ast.BoolLit(true), nil
		case "false":
			return ast.BoolLit(false), nil
		case "null":
			return ast.NullLit(), nil
		case "ret":
			return ast.ReturnValue(), nil
		}
		return ast.Ident(tok.Value), nil
	case lexer.KindString:
		return ast.Str(tok.Value), nil
	case lexer.KindInt:
		return ast.IntLit(tok.Int), nil
	case lexer.KindFloat:
		return ast.FloatLit(tok.Float), nil
	}
	return ast.Operand{}, p.errorf(tok.Value, "unexpected %v in operand position", tok.Kind)
}

func (p *Parser) expectName(i int, what string) (string, error) {
	if len(p.row) <= i || p.row[i].Kind != lexer.KindIdentifier {
		return "", p.errorf(what, "expected name after %s", what)
	}
	return p.row[i].Value, nil
}

func (p *Parser) errorf(construct, format string, args ...any) error {
	return diag.New(diag.KindStructural, p.line, construct, format, args...)
}

func describe(m *ast.Method) string {
	if m.Constructor {
		return "constructor"
	}
	return "func " + m.Name
}

func memberName(m *ast.Method) string {
	if m.Constructor {
		return "constructor"
	}
	return m.Name
}

func arity(sig ast.OpSignature) string {
	switch {
	case sig.Min == sig.Max && sig.Min == 1:
		return "1 operand"
	case sig.Min == sig.Max:
		return fmt.Sprintf("%d operands", sig.Min)
	}
	return fmt.Sprintf("%d to %d operands", sig.Min, sig.Max)
}
