package heap_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ssvm/ssvm/internal/heap"
	"github.com/ssvm/ssvm/internal/value"
)

func mustInt(t *testing.T, n int64) value.Object {
	t.Helper()
	v, ok := value.MakeInteger(n)
	require.True(t, ok)
	return v
}

func TestPairConsCarCdr(t *testing.T) {
	h := heap.New(64)
	a := mustInt(t, 1)
	d := mustInt(t, 2)
	p, err := h.NewPair(a, d)
	require.NoError(t, err)
	require.True(t, h.IsPair(p))
	require.True(t, value.Eq(h.Car(p), a))
	require.True(t, value.Eq(h.Cdr(p), d))
}

func TestSetCarSetCdr(t *testing.T) {
	h := heap.New(64)
	p, err := h.NewPair(mustInt(t, 1), mustInt(t, 2))
	require.NoError(t, err)
	h.SetCar(p, mustInt(t, 9))
	h.SetCdr(p, mustInt(t, 10))
	require.Equal(t, int64(9), value.Integer(h.Car(p)))
	require.Equal(t, int64(10), value.Integer(h.Cdr(p)))
}

func listLength(h *heap.Heap, v value.Object) int {
	n := 0
	for !value.IsNull(v) {
		n++
		v = h.Cdr(v)
	}
	return n
}

func TestListLength(t *testing.T) {
	h := heap.New(64)
	var lst value.Object = value.Null
	for i := 0; i < 4; i++ {
		p, err := h.NewPair(mustInt(t, int64(i)), lst)
		require.NoError(t, err)
		lst = p
	}
	require.Equal(t, 4, listLength(h, lst))
}

func TestEqualityLattice(t *testing.T) {
	h := heap.New(64)
	a, _ := h.NewPair(mustInt(t, 1), value.Null)
	b, _ := h.NewPair(mustInt(t, 1), value.Null)

	require.True(t, h.Equal(a, b))
	require.False(t, h.Eqv(a, b)) // distinct allocations, not eq?/eqv?
	require.False(t, value.Eq(a, b))

	n := mustInt(t, 7)
	require.True(t, value.Eq(n, n))
	require.True(t, h.Eqv(n, n))
	require.True(t, h.Equal(n, n))
}

func TestVector(t *testing.T) {
	h := heap.New(64)
	v, err := h.NewVector(3, value.Null)
	require.NoError(t, err)
	require.Equal(t, 3, h.VectorLen(v))
	h.VectorSet(v, 1, mustInt(t, 5))
	require.Equal(t, int64(5), value.Integer(h.VectorRef(v, 1)))
}

func TestClosureCapturesFreeVars(t *testing.T) {
	h := heap.New(64)
	free := []value.Object{mustInt(t, 1), mustInt(t, 2)}
	c, err := h.NewClosure(42, free)
	require.NoError(t, err)
	require.True(t, h.IsClosure(c))
	require.Equal(t, 42, h.ClosureBody(c))
	require.Equal(t, int64(1), value.Integer(h.ClosureFree(c, 0)))
	require.Equal(t, int64(2), value.Integer(h.ClosureFree(c, 1)))
}

func TestAllocatorConservation(t *testing.T) {
	h := heap.New(256)
	var refs []heap.Ref
	for i := 0; i < 50; i++ {
		r, err := h.NewPair(mustInt(t, int64(i)), value.Null)
		require.NoError(t, err)
		refs = append(refs, r)
	}
	require.Equal(t, 50, h.LiveObjects())
	for _, r := range refs[:20] {
		h.Free(r)
	}
	require.Equal(t, 30, h.LiveObjects())
}

type fixedMarker struct{ roots []heap.Ref }

func (m fixedMarker) Mark() []heap.Ref { return m.roots }

func TestSweepFreesUnmarked(t *testing.T) {
	h := heap.New(256)
	keep, err := h.NewPair(mustInt(t, 1), value.Null)
	require.NoError(t, err)
	_, err = h.NewPair(mustInt(t, 2), value.Null)
	require.NoError(t, err)
	require.Equal(t, 2, h.LiveObjects())

	h.Sweep(fixedMarker{roots: []heap.Ref{keep}})
	require.Equal(t, 1, h.LiveObjects())
	require.True(t, h.IsPair(keep))
}

func TestOversizedAllocationFails(t *testing.T) {
	h := heap.New(64)
	_, err := h.NewVector(1<<20, value.Null)
	require.Error(t, err)
}
