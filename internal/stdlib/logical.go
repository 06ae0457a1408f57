package stdlib

import (
	"github.com/ssvm/ssvm/internal/value"
	"github.com/ssvm/ssvm/internal/vcode"
)

// and/or/not are ordinary standard procedures here, not special forms:
// p/invoke's calling convention evaluates every argument before the
// callback runs (internal/compiler.compilePInvoke), so these are
// eager, not short-circuiting. A short-circuiting `and`/`or` would need
// to be a syntactic keyword lowered like `if`, which spec.md §4.8
// does not ask for.
var logicalBindings = []binding{
	{name: "and", arity: 0, variadic: true, fn: func(e *Env, a vcode.ArgView) (value.Object, error) {
		for i := 0; i < a.Size(); i++ {
			if !value.IsTruthy(a.At(i)) {
				return value.MakeBool(false), nil
			}
		}
		return value.MakeBool(true), nil
	}},
	{name: "or", arity: 0, variadic: true, fn: func(e *Env, a vcode.ArgView) (value.Object, error) {
		for i := 0; i < a.Size(); i++ {
			if value.IsTruthy(a.At(i)) {
				return value.MakeBool(true), nil
			}
		}
		return value.MakeBool(false), nil
	}},
	{name: "not", arity: 1, fn: func(e *Env, a vcode.ArgView) (value.Object, error) {
		return value.MakeBool(!value.IsTruthy(a.At(0))), nil
	}},
}
