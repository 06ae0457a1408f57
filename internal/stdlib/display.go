package stdlib

import (
	"fmt"
	"strings"

	"github.com/ssvm/ssvm/internal/heap"
	"github.com/ssvm/ssvm/internal/symtab"
	"github.com/ssvm/ssvm/internal/value"
	"github.com/ssvm/ssvm/internal/vcode"
)

// render formats v the way display prints it: symbols and strings bare
// (no quoting), pairs as "(a . d)" collapsing proper-list tails to
// "(a b c)", vectors as "#(a b c)".
func Render(h *heap.Heap, symbols *symtab.Table, v value.Object) string {
	switch {
	case value.IsNull(v):
		return "()"
	case value.IsBoolean(v):
		if value.Bool(v) {
			return "#t"
		}
		return "#f"
	case value.IsUndef(v):
		return ""
	case value.IsInteger(v):
		return fmt.Sprintf("%d", value.Integer(v))
	case value.IsFloat32(v):
		return fmt.Sprintf("%g", value.Float32(v))
	case value.IsSymbol(v):
		return symbols.Name(symtab.ID(value.Symbol(v)))
	case value.IsPtr(v):
		switch {
		case h.IsPair(v):
			return renderPair(h, symbols, v)
		case h.IsVector(v):
			return renderVector(h, symbols, v)
		case h.IsString(v):
			return h.String(v)
		case h.IsFloat64(v):
			return fmt.Sprintf("%g", h.Float64(v))
		case h.IsClosure(v):
			return "#<procedure>"
		case h.IsBox(v):
			return "#<box>"
		default:
			return "#<object>"
		}
	default:
		return "#<unknown>"
	}
}

func renderPair(h *heap.Heap, symbols *symtab.Table, v value.Object) string {
	var b strings.Builder
	b.WriteByte('(')
	b.WriteString(Render(h, symbols, h.Car(v)))
	rest := h.Cdr(v)
	for {
		if value.IsNull(rest) {
			break
		}
		if value.IsPtr(rest) && h.IsPair(rest) {
			b.WriteByte(' ')
			b.WriteString(Render(h, symbols, h.Car(rest)))
			rest = h.Cdr(rest)
			continue
		}
		b.WriteString(" . ")
		b.WriteString(Render(h, symbols, rest))
		break
	}
	b.WriteByte(')')
	return b.String()
}

func renderVector(h *heap.Heap, symbols *symtab.Table, v value.Object) string {
	var b strings.Builder
	b.WriteString("#(")
	for i := 0; i < h.VectorLen(v); i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(Render(h, symbols, h.VectorRef(v, i)))
	}
	b.WriteByte(')')
	return b.String()
}

var displayBindings = []binding{
	{name: "display", arity: 1, fn: func(e *Env, a vcode.ArgView) (value.Object, error) {
		fmt.Fprint(e.out(), Render(e.Heap, e.Symbols, a.At(0)))
		return value.Undef, nil
	}},
	{name: "displayln", arity: 1, fn: func(e *Env, a vcode.ArgView) (value.Object, error) {
		fmt.Fprintln(e.out(), Render(e.Heap, e.Symbols, a.At(0)))
		return value.Undef, nil
	}},
}
