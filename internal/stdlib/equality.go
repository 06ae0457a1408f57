package stdlib

import (
	"github.com/ssvm/ssvm/internal/heap"
	"github.com/ssvm/ssvm/internal/value"
	"github.com/ssvm/ssvm/internal/vcode"
)

// eqv reports spec.md §8's equality lattice one step up from eq?:
// identical raw words, or two boxed floats with the same value — eq?
// on two freshly-boxed floats of equal value need not hold, since they
// may occupy distinct heap slots.
func eqv(h *heap.Heap, a, b value.Object) bool {
	if value.Eq(a, b) {
		return true
	}
	if value.IsPtr(a) && value.IsPtr(b) && h.IsFloat64(a) && h.IsFloat64(b) {
		return h.Float64(a) == h.Float64(b)
	}
	return false
}

// deepEqual implements equal?'s structural recursion over pairs,
// vectors and strings; every other kind falls back to eqv.
func deepEqual(h *heap.Heap, a, b value.Object) bool {
	if eqv(h, a, b) {
		return true
	}
	if !value.IsPtr(a) || !value.IsPtr(b) {
		return false
	}
	switch {
	case h.IsPair(a) && h.IsPair(b):
		return deepEqual(h, h.Car(a), h.Car(b)) && deepEqual(h, h.Cdr(a), h.Cdr(b))
	case h.IsVector(a) && h.IsVector(b):
		if h.VectorLen(a) != h.VectorLen(b) {
			return false
		}
		for i := 0; i < h.VectorLen(a); i++ {
			if !deepEqual(h, h.VectorRef(a, i), h.VectorRef(b, i)) {
				return false
			}
		}
		return true
	case h.IsString(a) && h.IsString(b):
		return h.String(a) == h.String(b)
	default:
		return false
	}
}

var equalityBindings = []binding{
	{name: "eq?", arity: 2, fn: func(e *Env, a vcode.ArgView) (value.Object, error) {
		return value.MakeBool(value.Eq(a.At(0), a.At(1))), nil
	}},
	{name: "eqv?", arity: 2, fn: func(e *Env, a vcode.ArgView) (value.Object, error) {
		return value.MakeBool(eqv(e.Heap, a.At(0), a.At(1))), nil
	}},
	{name: "equal?", arity: 2, fn: func(e *Env, a vcode.ArgView) (value.Object, error) {
		return value.MakeBool(deepEqual(e.Heap, a.At(0), a.At(1))), nil
	}},
}
