// Package heap implements the segregated-size-class allocator and the
// boxed-object layer described in spec.md §3-4.3: a back end (page
// regions), a middle end (per-size-class central free lists), a front
// end (per-thread caches), and a mark-and-sweep sweep phase. It also
// owns the concrete storage for every boxed kind (Box, Pair, Float64,
// String, Vector, Syntax, Closure) behind opaque Ref handles.
package heap

import (
	"github.com/pkg/errors"

	"github.com/ssvm/ssvm/internal/value"
)

// Kind tags a boxed object's header, exactly as spec.md §3 describes:
// "every heap object begins with (size-class index, allocator-thread
// index, kind tag)".
type Kind byte

const (
	KindBox Kind = iota
	KindPair
	KindFloat64
	KindString
	KindVector
	KindSyntax
	KindClosure
)

func (k Kind) String() string {
	switch k {
	case KindBox:
		return "box"
	case KindPair:
		return "pair"
	case KindFloat64:
		return "float64"
	case KindString:
		return "string"
	case KindVector:
		return "vector"
	case KindSyntax:
		return "syntax"
	case KindClosure:
		return "closure"
	default:
		return "unknown"
	}
}

// Span records a source location; produced by the (out-of-scope) parser
// and attached to Syntax objects (spec.md §3).
type Span struct {
	File      string
	Line, Col int
	EndLine   int
	EndCol    int
}

// object is the generic boxed-object record. Only the fields relevant
// to Kind are populated; this mirrors the teacher's habit of a single
// concrete struct per record type (InstructionADD, InstructionLUI, ...)
// rather than an interface per kind, kept here as one struct with a
// discriminant because the VM needs O(1) kind dispatch on the hot path.
type object struct {
	kind        Kind
	sci         int
	ownerThread uint8

	words []value.Object // Box(1), Pair(2), Closure(1+n), Float64 unused
	float float64        // KindFloat64 payload
	str   string         // KindString payload (immutable, per spec.md §3)
	span  Span           // KindSyntax payload
	datum value.Object   // KindSyntax payload: the wrapped value
}

// Heap owns all boxed storage plus the three-tier allocator. One Heap
// belongs to exactly one VM (spec.md §5: "the VM owns ... Closures and
// other heap objects live in the GC'd region").
type Heap struct {
	pages    *pageHeap
	centrals []*centralFreeList
	caches   []*freeListCache

	objects   []object // indexed by slot id, i.e. value.UnpackRef(ref)
	allocated []bool   // parallel to objects: true while the slot is live
	live      int      // allocations - deallocations, for conservation checks
	allocs    int64
	frees     int64
}

// New creates a heap with the given page-region capacity, in pages.
func New(numPages int) *Heap {
	h := &Heap{pages: newPageHeap(numPages)}
	h.centrals = make([]*centralFreeList, NumSizeClasses())
	h.caches = make([]*freeListCache, NumSizeClasses())
	for i := 1; i < NumSizeClasses(); i++ {
		class := sizeClasses[i]
		h.centrals[i] = newCentralFreeList(class, h.pages, h.mintSlot)
		h.caches[i] = newFreeListCache(class, h.centrals[i])
	}
	return h
}

func (h *Heap) mintSlot() uint64 {
	id := uint64(len(h.objects))
	h.objects = append(h.objects, object{})
	h.allocated = append(h.allocated, false)
	return id
}

// Ref is the handle callers hold to a boxed object: a pointer-tagged
// value.Object whose payload is a slot id in Heap.objects. It stands in
// for the "pointer-tagged OBJECT" of spec.md §3 on a GC that performs
// no unsafe pointer arithmetic (see SPEC_FULL.md GLOSSARY).
type Ref = value.Object

func (h *Heap) allocWords(n int) (Ref, *object, error) {
	class := ClassOf(n)
	if class.Index == 0 {
		return 0, nil, errors.Errorf("heap: oversized allocation (%d words) not implemented", n)
	}
	id, err := h.caches[class.Index].allocate()
	if err != nil {
		return 0, nil, err
	}
	h.objects[id] = object{kind: KindBox, sci: class.Index}
	h.allocated[id] = true
	h.live++
	h.allocs++
	return value.PackRef(id), &h.objects[id], nil
}

func (h *Heap) free(ref Ref) {
	id := value.UnpackRef(ref)
	obj := &h.objects[id]
	sci := obj.sci
	*obj = object{}
	h.allocated[id] = false
	h.caches[sci].deallocate(id)
	h.live--
	h.frees++
}

// TrimUnusedPages asks every central free list to return fully-idle
// spans to the back end (spec.md §4.3).
func (h *Heap) TrimUnusedPages() {
	for _, c := range h.centrals {
		if c != nil {
			c.trimUnusedPages()
		}
	}
}

// LiveObjects returns the number of objects currently allocated and not
// yet deallocated, for the allocator-conservation testable property
// (spec.md §8).
func (h *Heap) LiveObjects() int { return h.live }

func (h *Heap) get(ref Ref) *object {
	return &h.objects[value.UnpackRef(ref)]
}

// KindOf returns the boxed kind of ref. The caller must have checked
// value.IsPtr(ref).
func (h *Heap) KindOf(ref Ref) Kind { return h.get(ref).kind }

// --- kind predicates, combining value.IsPtr with a kind-byte read
// (spec.md §4.2) ------------------------------------------------------

func (h *Heap) is(ref Ref, k Kind) bool {
	return value.IsPtr(ref) && h.KindOf(ref) == k
}

func (h *Heap) IsPair(ref Ref) bool    { return h.is(ref, KindPair) }
func (h *Heap) IsBox(ref Ref) bool     { return h.is(ref, KindBox) }
func (h *Heap) IsVector(ref Ref) bool  { return h.is(ref, KindVector) }
func (h *Heap) IsString(ref Ref) bool  { return h.is(ref, KindString) }
func (h *Heap) IsClosure(ref Ref) bool { return h.is(ref, KindClosure) }
func (h *Heap) IsFloat64(ref Ref) bool { return h.is(ref, KindFloat64) }
func (h *Heap) IsSyntax(ref Ref) bool  { return h.is(ref, KindSyntax) }

// --- Pair ---------------------------------------------------------------

// NewPair allocates a mutable cons cell.
func (h *Heap) NewPair(car, cdr value.Object) (Ref, error) {
	ref, obj, err := h.allocWords(2)
	if err != nil {
		return 0, err
	}
	obj.kind = KindPair
	obj.words = []value.Object{car, cdr}
	return ref, nil
}

func (h *Heap) Car(ref Ref) value.Object { return h.get(ref).words[0] }
func (h *Heap) Cdr(ref Ref) value.Object { return h.get(ref).words[1] }

func (h *Heap) SetCar(ref Ref, v value.Object) { h.get(ref).words[0] = v }
func (h *Heap) SetCdr(ref Ref, v value.Object) { h.get(ref).words[1] = v }

// --- Box (single-slot mutable cell for captured, mutated variables) ----

// NewBox allocates a one-slot mutable cell.
func (h *Heap) NewBox(v value.Object) (Ref, error) {
	ref, obj, err := h.allocWords(1)
	if err != nil {
		return 0, err
	}
	obj.kind = KindBox
	obj.words = []value.Object{v}
	return ref, nil
}

func (h *Heap) Unbox(ref Ref) value.Object    { return h.get(ref).words[0] }
func (h *Heap) SetBox(ref Ref, v value.Object) { h.get(ref).words[0] = v }

// --- Vector -----------------------------------------------------------

// NewVector allocates a vector of the given length, initialized with
// fill in every slot.
func (h *Heap) NewVector(length int, fill value.Object) (Ref, error) {
	ref, obj, err := h.allocWords(length)
	if err != nil {
		return 0, err
	}
	obj.kind = KindVector
	obj.words = make([]value.Object, length)
	for i := range obj.words {
		obj.words[i] = fill
	}
	return ref, nil
}

// newVectorFromSlots allocates a vector whose contents are exactly
// slots; used by NewClosure to materialize a closure vector without an
// intermediate fill pass.
func (h *Heap) newVectorFromSlots(kind Kind, slots []value.Object) (Ref, error) {
	ref, obj, err := h.allocWords(len(slots))
	if err != nil {
		return 0, err
	}
	obj.kind = kind
	obj.words = slots
	return ref, nil
}

func (h *Heap) VectorLen(ref Ref) int { return len(h.get(ref).words) }

func (h *Heap) VectorRef(ref Ref, i int) value.Object { return h.get(ref).words[i] }

func (h *Heap) VectorSet(ref Ref, i int, v value.Object) { h.get(ref).words[i] = v }

// --- String (immutable, per spec.md §3) --------------------------------

// NewString allocates an immutable UTF-8 string.
func (h *Heap) NewString(s string) (Ref, error) {
	ref, obj, err := h.allocWords(1)
	if err != nil {
		return 0, err
	}
	obj.kind = KindString
	obj.str = s
	return ref, nil
}

func (h *Heap) String(ref Ref) string { return h.get(ref).str }
func (h *Heap) StringLen(ref Ref) int { return len(h.get(ref).str) }

// --- Float64 (boxed; float32 is an inline immediate, see value.Object) --

// NewFloat64 boxes a float64.
func (h *Heap) NewFloat64(f float64) (Ref, error) {
	ref, obj, err := h.allocWords(1)
	if err != nil {
		return 0, err
	}
	obj.kind = KindFloat64
	obj.float = f
	return ref, nil
}

func (h *Heap) Float64(ref Ref) float64 { return h.get(ref).float }

// --- Syntax (a value plus a source-location record) --------------------

// NewSyntax wraps datum with a source span, produced by the (external)
// parser and reduced to datum before compilation (spec.md §3).
func (h *Heap) NewSyntax(datum value.Object, span Span) (Ref, error) {
	ref, obj, err := h.allocWords(1)
	if err != nil {
		return 0, err
	}
	obj.kind = KindSyntax
	obj.datum = datum
	obj.span = span
	return ref, nil
}

func (h *Heap) SyntaxDatum(ref Ref) value.Object { return h.get(ref).datum }
func (h *Heap) SyntaxSpan(ref Ref) Span          { return h.get(ref).span }

// --- Closure (vector whose slot 0 is the entry instruction id) ---------

// NewClosure allocates a closure: a vector whose slot 0 is the entry
// body instruction id (wrapped as a fixnum) and whose remaining slots
// are the captured free-variable cells, in order (spec.md §4.7 Close).
func (h *Heap) NewClosure(bodyID int, free []value.Object) (Ref, error) {
	slots := make([]value.Object, 0, len(free)+1)
	bodyObj, ok := value.MakeInteger(int64(bodyID))
	if !ok {
		return 0, errors.Errorf("heap: instruction id %d exceeds fixnum range", bodyID)
	}
	slots = append(slots, bodyObj)
	slots = append(slots, free...)
	return h.newVectorFromSlots(KindClosure, slots)
}

func (h *Heap) ClosureBody(ref Ref) int {
	return int(value.Integer(h.get(ref).words[0]))
}

func (h *Heap) ClosureFree(ref Ref, i int) value.Object {
	return h.get(ref).words[1+i]
}
