package heap

import "github.com/ssvm/ssvm/internal/value"

// Free returns ref's storage to the allocator. It is the collaborator
// hook a completed mark phase (see Marker, sweep.go) would call for
// every unmarked object; exposed publicly so tests can exercise
// allocate/deallocate balance directly (spec.md §8 "Allocator
// conservation").
func (h *Heap) Free(ref Ref) { h.free(ref) }

// Eqv implements eqv?: eq? plus content-equality for numbers
// (spec.md §4.2). Fixnums and inline float32s are already compared by
// raw word under Eq; Eqv additionally compares boxed Float64s by value.
func (h *Heap) Eqv(a, b value.Object) bool {
	if value.Eq(a, b) {
		return true
	}
	if h.IsFloat64(a) && h.IsFloat64(b) {
		return h.Float64(a) == h.Float64(b)
	}
	return false
}

// Equal implements equal?: recursively descends pairs and vectors and
// byte-compares strings (spec.md §4.2).
func (h *Heap) Equal(a, b value.Object) bool {
	if h.Eqv(a, b) {
		return true
	}
	switch {
	case h.IsPair(a) && h.IsPair(b):
		return h.Equal(h.Car(a), h.Car(b)) && h.Equal(h.Cdr(a), h.Cdr(b))
	case h.IsVector(a) && h.IsVector(b):
		if h.VectorLen(a) != h.VectorLen(b) {
			return false
		}
		for i := 0; i < h.VectorLen(a); i++ {
			if !h.Equal(h.VectorRef(a, i), h.VectorRef(b, i)) {
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

// ToDouble coerces a fixnum, inline float32, or boxed float64 to a
// float64 (spec.md §4.2 "Numeric coercion"). ok is false if v is none
// of those numeric kinds.
func (h *Heap) ToDouble(v value.Object) (float64, bool) {
	switch {
	case value.IsInteger(v):
		return float64(value.Integer(v)), true
	case value.IsFloat32(v):
		return float64(value.Float32(v)), true
	case h.IsFloat64(v):
		return h.Float64(v), true
	default:
		return 0, false
	}
}

// IsNumber reports whether v is any of the numeric kinds.
func (h *Heap) IsNumber(v value.Object) bool {
	_, ok := h.ToDouble(v)
	return ok
}
