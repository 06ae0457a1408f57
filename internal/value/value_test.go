package value_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ssvm/ssvm/internal/value"
)

func TestFixnumRoundTrip(t *testing.T) {
	for _, n := range []int64{0, 1, -1, 42, value.MaxFixnum, value.MinFixnum} {
		v, ok := value.MakeInteger(n)
		require.True(t, ok, "n=%d", n)
		require.True(t, value.IsInteger(v))
		require.Equal(t, n, value.Integer(v))
	}
}

func TestFixnumRangeRejected(t *testing.T) {
	_, ok := value.MakeInteger(value.MaxFixnum + 1)
	require.False(t, ok)
	_, ok = value.MakeInteger(value.MinFixnum - 1)
	require.False(t, ok)
}

func TestSymbolRoundTrip(t *testing.T) {
	v := value.MakeSymbol(12345)
	require.True(t, value.IsSymbol(v))
	require.Equal(t, uint32(12345), value.Symbol(v))
}

func TestFloat32RoundTrip(t *testing.T) {
	v := value.MakeFloat32(3.5)
	require.True(t, value.IsFloat32(v))
	require.Equal(t, float32(3.5), value.Float32(v))
}

func TestBooleanIdentityAndTruthiness(t *testing.T) {
	require.True(t, value.IsBoolean(value.True))
	require.True(t, value.IsBoolean(value.False))
	require.True(t, value.Bool(value.True))
	require.False(t, value.Bool(value.False))

	require.True(t, value.IsTruthy(value.True))
	require.False(t, value.IsTruthy(value.False))
	require.True(t, value.IsTruthy(value.Null)) // only #f is false-like
}

func TestPredicatesMutuallyExclusive(t *testing.T) {
	vals := []value.Object{
		value.Null,
		mustInt(t, 7),
		value.MakeSymbol(3),
		value.MakeFloat32(1.5),
		value.True,
		value.False,
		value.EOF,
		value.Undef,
	}
	for i, v := range vals {
		count := 0
		for _, pred := range []func(value.Object) bool{
			value.IsNull, value.IsInteger, value.IsSymbol,
			value.IsFloat32, value.IsBoolean, value.IsEOF, value.IsUndef,
		} {
			if pred(v) {
				count++
			}
		}
		require.Equal(t, 1, count, "value %d (%#v) matched %d predicates", i, v, count)
	}
}

func TestHeapRefRoundTrip(t *testing.T) {
	for _, idx := range []uint64{0, 1, 1 << 40} {
		v := value.PackRef(idx)
		require.True(t, value.IsPtr(v))
		require.Equal(t, idx, value.UnpackRef(v))
	}
}

func TestEq(t *testing.T) {
	a := mustInt(t, 42)
	b := mustInt(t, 42)
	require.True(t, value.Eq(a, b))
	require.True(t, value.Eq(value.True, value.True))
	require.False(t, value.Eq(value.True, value.False))
}

func mustInt(t *testing.T, n int64) value.Object {
	t.Helper()
	v, ok := value.MakeInteger(n)
	require.True(t, ok)
	return v
}
