package stdlib_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ssvm/ssvm/internal/heap"
	"github.com/ssvm/ssvm/internal/stdlib"
	"github.com/ssvm/ssvm/internal/symtab"
	"github.com/ssvm/ssvm/internal/value"
	"github.com/ssvm/ssvm/internal/vcode"
)

// fixture bundles the collaborators Register needs and exposes a
// by-name call helper, so each test reads like "call the binding,
// check its result" instead of re-deriving the platform-proc id table.
type fixture struct {
	t       *testing.T
	code    *vcode.Code
	env     *stdlib.Env
	byName  map[string]int
	symbols *symtab.Table
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	symbols := symtab.New()
	code := vcode.New()
	h := heap.New(64)
	env := &stdlib.Env{Heap: h, Symbols: symbols, Out: &bytes.Buffer{}}
	ids := stdlib.Register(code, env)

	byName := make(map[string]int, len(ids))
	for sym, id := range ids {
		byName[symbols.Name(sym)] = id
	}
	return &fixture{t: t, code: code, env: env, byName: byName, symbols: symbols}
}

func (f *fixture) call(name string, args ...value.Object) (value.Object, error) {
	f.t.Helper()
	id, ok := f.byName[name]
	require.True(f.t, ok, "no platform proc registered for %q", name)
	stack := append([]value.Object{}, args...)
	return f.code.Invoke(id, stack, 0, len(stack))
}

func fixnum(t *testing.T, n int64) value.Object {
	t.Helper()
	v, ok := value.MakeInteger(n)
	require.True(t, ok)
	return v
}

func TestAdditionStaysFixnumWhenAllOperandsAreExact(t *testing.T) {
	f := newFixture(t)
	v, err := f.call("+", fixnum(t, 2), fixnum(t, 3))
	require.NoError(t, err)
	require.True(t, value.IsInteger(v))
	require.EqualValues(t, 5, value.Integer(v))
}

func TestAdditionPromotesToFloat64WhenAnyOperandIsInexact(t *testing.T) {
	f := newFixture(t)
	inexact, err := f.env.Heap.NewFloat64(0.5)
	require.NoError(t, err)
	v, err := f.call("+", fixnum(t, 2), inexact)
	require.NoError(t, err)
	require.True(t, value.IsPtr(v))
	require.True(t, f.env.Heap.IsFloat64(v))
	require.InDelta(t, 2.5, f.env.Heap.Float64(v), 1e-9)
}

func TestWrongTypeArgumentIsReported(t *testing.T) {
	f := newFixture(t)
	_, err := f.call("+", value.MakeBool(true))
	require.ErrorIs(t, err, stdlib.ErrWrongType)
}

func TestWrongArityIsReported(t *testing.T) {
	f := newFixture(t)
	_, err := f.call("cons", fixnum(t, 1))
	require.ErrorIs(t, err, stdlib.ErrWrongArity)
}

func TestEqualityLattice(t *testing.T) {
	f := newFixture(t)

	a, err := f.env.Heap.NewPair(fixnum(t, 1), value.Null)
	require.NoError(t, err)
	b, err := f.env.Heap.NewPair(fixnum(t, 1), value.Null)
	require.NoError(t, err)

	eq, err := f.call("eq?", a, b)
	require.NoError(t, err)
	require.False(t, value.Bool(eq))

	equal, err := f.call("equal?", a, b)
	require.NoError(t, err)
	require.True(t, value.Bool(equal))

	eqv, err := f.call("eqv?", fixnum(t, 7), fixnum(t, 7))
	require.NoError(t, err)
	require.True(t, value.Bool(eqv))
}

func TestVectorRefOutOfRange(t *testing.T) {
	f := newFixture(t)
	vec, err := f.call("vector", fixnum(t, 1), fixnum(t, 2))
	require.NoError(t, err)

	_, err = f.call("vector-ref", vec, fixnum(t, 5))
	require.ErrorIs(t, err, stdlib.ErrRange)
}

func TestLogicalAndOfTruthsAndOfNoArguments(t *testing.T) {
	f := newFixture(t)
	v, err := f.call("and", value.MakeBool(true), value.MakeBool(true))
	require.NoError(t, err)
	require.True(t, value.Bool(v))

	v, err = f.call("and")
	require.NoError(t, err)
	require.True(t, value.Bool(v), "zero-argument and is vacuously true")
}

func TestDisplayRendersPairsAndVectors(t *testing.T) {
	f := newFixture(t)
	pair, err := f.env.Heap.NewPair(fixnum(t, 1), value.Null)
	require.NoError(t, err)
	require.Equal(t, "(1)", stdlib.Render(f.env.Heap, f.symbols, pair))

	vec, err := f.call("vector", fixnum(t, 1), fixnum(t, 2))
	require.NoError(t, err)
	require.Equal(t, "#(1 2)", stdlib.Render(f.env.Heap, f.symbols, vec))
}
