package emitter

import (
	"strconv"
	"strings"

	"github.com/agenthands/drasm/pkg/core/diag"
	"github.com/agenthands/drasm/pkg/core/value"
	"github.com/agenthands/drasm/pkg/vm"
)

type placeKind uint8

const (
	placeLocal placeKind = iota
	placeThis
	placeField // object on the stack
	placeIndex // array and index on the stack
)

// place is a resolved identifier chain whose final access is still pending.
// Everything the access needs is already on the stack.
type place struct {
	kind  placeKind
	index int // local slot or field index
	typ   value.TypeRef
	name  string
}

// splitChain splits "this.items.[0].name" or "items[i].name" into segments.
// Brackets keep their contents intact, so nested chains survive.
func splitChain(s string) ([]string, bool) {
	var segs []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[':
			if depth == 0 && i > start {
				segs = append(segs, s[start:i])
				start = i
			}
			depth++
		case ']':
			depth--
			if depth < 0 {
				return nil, false
			}
			if depth == 0 {
				segs = append(segs, s[start:i+1])
				start = i + 1
			}
		case '.':
			if depth != 0 {
				continue
			}
			if i > start {
				segs = append(segs, s[start:i])
			} else if i == 0 || s[i-1] != ']' {
				return nil, false
			}
			start = i + 1
		}
	}
	if depth != 0 || strings.HasSuffix(s, ".") {
		return nil, false
	}
	if start < len(s) {
		segs = append(segs, s[start:])
	}
	return segs, len(segs) > 0
}

// resolve walks an identifier chain left to right, emitting the loads of
// every segment but the last.
func (b *block) resolve(chain string) (place, error) {
	segs, ok := splitChain(chain)
	if !ok {
		return place{}, b.errorf(diag.KindResolution, chain, "malformed identifier %s", chain)
	}

	var cur place
	for i, seg := range segs {
		if i > 0 {
			b.load(cur)
		}

		switch {
		case seg[0] == '[':
			if i == 0 {
				return place{}, b.errorf(diag.KindResolution, chain, "identifier %s starts with an index", chain)
			}
			_, arr := b.peek(0)
			if arr.Tag != value.TypeArray {
				return place{}, b.errorf(diag.KindType, seg, "cannot index %s of type %s", segs[i-1], arr)
			}
			if err := b.index(seg[1 : len(seg)-1]); err != nil {
				return place{}, err
			}
			cur = place{kind: placeIndex, typ: *arr.Elem, name: seg}

		case seg == "this":
			if i != 0 {
				return place{}, b.errorf(diag.KindResolution, chain, "this must start identifier %s", chain)
			}
			cur = place{kind: placeThis, typ: value.ObjectOf(b.class.Name), name: seg}

		case i == 0:
			if l, ok := b.locals[seg]; ok {
				cur = place{kind: placeLocal, index: l.slot, typ: l.typ, name: seg}
				break
			}
			idx, ok := b.class.Field(seg)
			if !ok {
				return place{}, b.errorf(diag.KindResolution, seg, "unknown identifier %s", seg)
			}
			b.emit(vm.OP_PUSH_THIS, 0)
			b.push(value.ObjectOf(b.class.Name))
			cur = place{kind: placeField, index: idx, typ: b.class.Fields[idx].Type, name: seg}

		default:
			_, owner := b.peek(0)
			p, err := b.member(owner, seg)
			if err != nil {
				return place{}, err
			}
			cur = p
		}
	}
	return cur, nil
}

// member resolves a field of the object type on top of the stack.
func (b *block) member(owner value.TypeRef, name string) (place, error) {
	if owner.Tag != value.TypeObject {
		return place{}, b.errorf(diag.KindResolution, name, "unknown member %s on type %s", name, owner)
	}
	c, ok := b.e.mod.Class(owner.Class)
	if !ok {
		return place{}, b.errorf(diag.KindResolution, name, "unknown class %s", owner.Class)
	}
	idx, ok := c.Field(name)
	if !ok {
		return place{}, b.errorf(diag.KindResolution, name, "unknown member %s on type %s", name, owner)
	}
	if c != b.class && !c.Fields[idx].Public {
		return place{}, b.errorf(diag.KindResolution, name, "field %s of class %s is private", name, c.Name)
	}
	return place{kind: placeField, index: idx, typ: c.Fields[idx].Type, name: name}, nil
}

// index pushes a bracket subscript: an integer literal or a nested chain.
func (b *block) index(expr string) error {
	if n, err := strconv.ParseInt(expr, 10, 64); err == nil {
		b.emit(vm.OP_PUSH_C, b.constant(value.Int(n)))
		b.push(value.IntRef)
		return nil
	}
	if expr == "" {
		return b.errorf(diag.KindResolution, "[]", "empty index")
	}
	p, err := b.resolve(expr)
	if err != nil {
		return err
	}
	b.load(p)
	_, t := b.peek(0)
	if !t.Tag.IsNumeric() {
		return b.errorf(diag.KindType, expr, "index %s has type %s, not a number", expr, t)
	}
	b.convertTop(value.IntRef)
	return nil
}

// load emits the pending access of p, leaving its value on the stack.
func (b *block) load(p place) {
	switch p.kind {
	case placeLocal:
		b.emit(vm.OP_PUSH_L, uint32(p.index))
	case placeThis:
		b.emit(vm.OP_PUSH_THIS, 0)
	case placeField:
		b.emit(vm.OP_LOAD_F, uint32(p.index))
		b.pop(1)
	case placeIndex:
		b.emit(vm.OP_LOAD_IDX, 0)
		b.pop(2)
	}
	b.push(p.typ)
}

// store emits the pending access of p as a write of the value on top of the
// stack, converting it to the type of p first.
func (b *block) store(p place) error {
	_, from := b.peek(0)
	if p.kind == placeThis {
		return b.errorf(diag.KindResolution, p.name, "cannot assign to this")
	}
	if !p.typ.Assignable(from) {
		return b.errorf(diag.KindType, p.name, "cannot assign %s to %s of type %s", from, p.name, p.typ)
	}
	b.convertTop(p.typ)

	switch p.kind {
	case placeLocal:
		b.emit(vm.OP_POP_L, uint32(p.index))
		b.pop(1)
	case placeField:
		b.emit(vm.OP_STORE_F, uint32(p.index))
		b.pop(2)
	case placeIndex:
		b.emit(vm.OP_STORE_IDX, 0)
		b.pop(3)
	}
	return nil
}

// convertTop emits a CONV of the top of the stack unless it already has type
// t. Null needs no conversion into reference types.
func (b *block) convertTop(t value.TypeRef) {
	_, from := b.peek(0)
	if from.Equal(t) || (from.Tag == value.TypeNull && t.Tag.IsReference()) {
		return
	}
	b.emit(vm.OP_CONV, b.typeIndex(t))
	b.retype(0, t)
}
