package stdlib

import (
	"github.com/pkg/errors"

	"github.com/ssvm/ssvm/internal/heap"
	"github.com/ssvm/ssvm/internal/value"
	"github.com/ssvm/ssvm/internal/vcode"
)

// numeric unpacks a fixnum, inline float32 or boxed float64 into a
// float64 plus a flag reporting whether it was already exact, per
// spec.md §4.2's coercion rule: "integer/float32/float64 all coerce to
// float64 via to_double; mixed-type arithmetic on any float64 operand
// produces float64; otherwise fixnum-preserving."
func numeric(h *heap.Heap, v value.Object) (f float64, exact bool, ok bool) {
	switch {
	case value.IsInteger(v):
		return float64(value.Integer(v)), true, true
	case value.IsFloat32(v):
		return float64(value.Float32(v)), false, true
	case value.IsPtr(v) && h.IsFloat64(v):
		return h.Float64(v), false, true
	default:
		return 0, false, false
	}
}

// collectNumbers unpacks every argument, reporting whether any operand
// was inexact — the signal to promote the whole computation to
// float64.
func collectNumbers(h *heap.Heap, a vcode.ArgView, who string) (fs []float64, anyInexact bool, err error) {
	fs = make([]float64, a.Size())
	for i := 0; i < a.Size(); i++ {
		f, exact, ok := numeric(h, a.At(i))
		if !ok {
			return nil, false, errors.Wrapf(ErrWrongType, "%s: argument %d is not a number", who, i)
		}
		fs[i] = f
		anyInexact = anyInexact || !exact
	}
	return fs, anyInexact, nil
}

func result(h *heap.Heap, f float64, inexact bool) (value.Object, error) {
	if inexact {
		return h.NewFloat64(f)
	}
	fx, ok := value.MakeInteger(int64(f))
	if !ok {
		return value.Undef, errors.Wrapf(ErrRange, "integer result %v out of fixnum range", f)
	}
	return fx, nil
}

var arithBindings = []binding{
	{name: "+", arity: 0, variadic: true, fn: func(e *Env, a vcode.ArgView) (value.Object, error) {
		fs, inexact, err := collectNumbers(e.Heap, a, "+")
		if err != nil {
			return value.Undef, err
		}
		sum := 0.0
		for _, f := range fs {
			sum += f
		}
		return result(e.Heap, sum, inexact)
	}},
	{name: "*", arity: 0, variadic: true, fn: func(e *Env, a vcode.ArgView) (value.Object, error) {
		fs, inexact, err := collectNumbers(e.Heap, a, "*")
		if err != nil {
			return value.Undef, err
		}
		prod := 1.0
		for _, f := range fs {
			prod *= f
		}
		return result(e.Heap, prod, inexact)
	}},
	{name: "-", arity: 1, variadic: true, fn: func(e *Env, a vcode.ArgView) (value.Object, error) {
		fs, inexact, err := collectNumbers(e.Heap, a, "-")
		if err != nil {
			return value.Undef, err
		}
		if len(fs) == 1 {
			return result(e.Heap, -fs[0], inexact)
		}
		diff := fs[0]
		for _, f := range fs[1:] {
			diff -= f
		}
		return result(e.Heap, diff, inexact)
	}},
	{name: "/", arity: 1, variadic: true, fn: func(e *Env, a vcode.ArgView) (value.Object, error) {
		fs, inexact, err := collectNumbers(e.Heap, a, "/")
		if err != nil {
			return value.Undef, err
		}
		operands := fs
		num := 1.0
		if len(fs) > 1 {
			num = fs[0]
			operands = fs[1:]
		}
		for _, f := range operands {
			if f == 0 {
				return value.Undef, errors.Wrap(ErrDivByZero, "/")
			}
			num /= f
		}
		return result(e.Heap, num, inexact)
	}},
	{name: "%", arity: 2, fn: func(e *Env, a vcode.ArgView) (value.Object, error) {
		x, xExact, xOk := numeric(e.Heap, a.At(0))
		y, yExact, yOk := numeric(e.Heap, a.At(1))
		if !xOk || !yOk || !xExact || !yExact {
			return value.Undef, errors.Wrap(ErrWrongType, "%: both arguments must be exact integers")
		}
		if y == 0 {
			return value.Undef, errors.Wrap(ErrDivByZero, "%")
		}
		fx, _ := value.MakeInteger(int64(x) % int64(y))
		return fx, nil
	}},
	{name: "=", arity: 1, variadic: true, fn: func(e *Env, a vcode.ArgView) (value.Object, error) {
		return chainCompare(e.Heap, a, "=", func(x, y float64) bool { return x == y })
	}},
	{name: "<", arity: 1, variadic: true, fn: func(e *Env, a vcode.ArgView) (value.Object, error) {
		return chainCompare(e.Heap, a, "<", func(x, y float64) bool { return x < y })
	}},
	{name: ">", arity: 1, variadic: true, fn: func(e *Env, a vcode.ArgView) (value.Object, error) {
		return chainCompare(e.Heap, a, ">", func(x, y float64) bool { return x > y })
	}},
}

func chainCompare(h *heap.Heap, a vcode.ArgView, who string, ok func(x, y float64) bool) (value.Object, error) {
	fs, _, err := collectNumbers(h, a, who)
	if err != nil {
		return value.Undef, err
	}
	for i := 1; i < len(fs); i++ {
		if !ok(fs[i-1], fs[i]) {
			return value.MakeBool(false), nil
		}
	}
	return value.MakeBool(true), nil
}
