// Package stdlib registers the standard-procedure bindings spec.md
// §4.8 describes: cons/car/cdr and the other pair/vector/equality/
// arithmetic/output primitives, each wired into a VCode's
// platform-procedures table as a vcode.PlatformProc.
//
// Grounded on the teacher's own "register a table of native callbacks
// against a name" idiom (pkg/vm's opcode dispatch table, generalized
// here to a dynamic table keyed by interned symbol rather than a fixed
// opcode enum) and on the ArgView contract spec.md §6 specifies for a
// platform-procedure callback.
package stdlib

import (
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/ssvm/ssvm/internal/heap"
	"github.com/ssvm/ssvm/internal/symtab"
	"github.com/ssvm/ssvm/internal/value"
	"github.com/ssvm/ssvm/internal/vcode"
)

// The following errors are returned by primitive callbacks when
// typechecks fail at run time (spec.md §7 kind 4, "runtime type
// errors... produced only when typechecks are enabled" — stdlib has no
// way to know the VM's TypecheckLevel, so it always checks; the VM
// itself separately guards Apply/Indirect).
var (
	ErrWrongType  = errors.New("stdlib: wrong argument type")
	ErrWrongArity = errors.New("stdlib: wrong number of arguments")
	ErrRange      = errors.New("stdlib: index out of range")
	ErrDivByZero  = errors.New("stdlib: division by zero")
)

// binding is the declarative registration record this package builds
// the platform-procedures table from.
type binding struct {
	name     string
	arity    int
	variadic bool
	fn       func(e *Env, a vcode.ArgView) (value.Object, error)
}

// Env is the state a primitive callback needs beyond its arguments: the
// heap to allocate result pairs/vectors/strings in, the symbol table
// for display's symbol rendering, and the stream display/displayln
// write to (os.Stdout if Out is nil).
type Env struct {
	Heap    *heap.Heap
	Symbols *symtab.Table
	Out     io.Writer
}

func (e *Env) out() io.Writer {
	if e.Out == nil {
		return os.Stdout
	}
	return e.Out
}

// Register installs every standard procedure into code's
// platform-procedures table and returns the name -> proc-id mapping the
// scope resolver's p/invoke lookup needs (internal/scope.New's
// platform parameter).
func Register(code *vcode.Code, env *Env) map[symtab.ID]int {
	out := make(map[symtab.ID]int, len(bindings))
	for _, b := range bindings {
		b := b
		id := code.RegisterPlatformProc(vcode.PlatformProc{
			Name:     env.Symbols.Intern(b.name),
			Arity:    b.arity,
			Variadic: b.variadic,
			Callback: func(a vcode.ArgView) (value.Object, error) {
				if err := checkArity(b, a); err != nil {
					return value.Undef, err
				}
				return b.fn(env, a)
			},
		})
		out[env.Symbols.Intern(b.name)] = id
	}
	return out
}

var bindings = func() []binding {
	var all []binding
	all = append(all, pairBindings...)
	all = append(all, equalityBindings...)
	all = append(all, arithBindings...)
	all = append(all, displayBindings...)
	all = append(all, logicalBindings...)
	return all
}()

func checkArity(b binding, a vcode.ArgView) error {
	if b.variadic {
		if a.Size() < b.arity {
			return errors.Wrapf(ErrWrongArity, "%s expects at least %d argument(s), got %d", b.name, b.arity, a.Size())
		}
		return nil
	}
	if a.Size() != b.arity {
		return errors.Wrapf(ErrWrongArity, "%s expects %d argument(s), got %d", b.name, b.arity, a.Size())
	}
	return nil
}

var pairBindings = []binding{
	{name: "cons", arity: 2, fn: func(e *Env, a vcode.ArgView) (value.Object, error) {
		return e.Heap.NewPair(a.At(0), a.At(1))
	}},
	{name: "car", arity: 1, fn: func(e *Env, a vcode.ArgView) (value.Object, error) {
		v := a.At(0)
		if !value.IsPtr(v) || !e.Heap.IsPair(v) {
			return value.Undef, errors.Wrap(ErrWrongType, "car: not a pair")
		}
		return e.Heap.Car(v), nil
	}},
	{name: "cdr", arity: 1, fn: func(e *Env, a vcode.ArgView) (value.Object, error) {
		v := a.At(0)
		if !value.IsPtr(v) || !e.Heap.IsPair(v) {
			return value.Undef, errors.Wrap(ErrWrongType, "cdr: not a pair")
		}
		return e.Heap.Cdr(v), nil
	}},
	{name: "pair?", arity: 1, fn: func(e *Env, a vcode.ArgView) (value.Object, error) {
		v := a.At(0)
		return value.MakeBool(value.IsPtr(v) && e.Heap.IsPair(v)), nil
	}},
	{name: "null?", arity: 1, fn: func(e *Env, a vcode.ArgView) (value.Object, error) {
		return value.MakeBool(value.IsNull(a.At(0))), nil
	}},
	{name: "list", arity: 0, variadic: true, fn: func(e *Env, a vcode.ArgView) (value.Object, error) {
		out := value.Null
		for i := a.Size() - 1; i >= 0; i-- {
			ref, err := e.Heap.NewPair(a.At(i), out)
			if err != nil {
				return value.Undef, err
			}
			out = ref
		}
		return out, nil
	}},
	{name: "length", arity: 1, fn: func(e *Env, a vcode.ArgView) (value.Object, error) {
		n := 0
		v := a.At(0)
		for !value.IsNull(v) {
			if !value.IsPtr(v) || !e.Heap.IsPair(v) {
				return value.Undef, errors.Wrap(ErrWrongType, "length: not a proper list")
			}
			n++
			v = e.Heap.Cdr(v)
		}
		fx, _ := value.MakeInteger(int64(n))
		return fx, nil
	}},
	{name: "vector", arity: 0, variadic: true, fn: func(e *Env, a vcode.ArgView) (value.Object, error) {
		ref, err := e.Heap.NewVector(a.Size(), value.Null)
		if err != nil {
			return value.Undef, err
		}
		for i := 0; i < a.Size(); i++ {
			e.Heap.VectorSet(ref, i, a.At(i))
		}
		return ref, nil
	}},
	{name: "vector-ref", arity: 2, fn: func(e *Env, a vcode.ArgView) (value.Object, error) {
		v := a.At(0)
		if !value.IsPtr(v) || !e.Heap.IsVector(v) {
			return value.Undef, errors.Wrap(ErrWrongType, "vector-ref: not a vector")
		}
		idx := int(value.Integer(a.At(1)))
		if idx < 0 || idx >= e.Heap.VectorLen(v) {
			return value.Undef, errors.Wrapf(ErrRange, "vector-ref: index %d out of range", idx)
		}
		return e.Heap.VectorRef(v, idx), nil
	}},
	{name: "vector-set!", arity: 3, fn: func(e *Env, a vcode.ArgView) (value.Object, error) {
		v := a.At(0)
		if !value.IsPtr(v) || !e.Heap.IsVector(v) {
			return value.Undef, errors.Wrap(ErrWrongType, "vector-set!: not a vector")
		}
		idx := int(value.Integer(a.At(1)))
		if idx < 0 || idx >= e.Heap.VectorLen(v) {
			return value.Undef, errors.Wrapf(ErrRange, "vector-set!: index %d out of range", idx)
		}
		e.Heap.VectorSet(v, idx, a.At(2))
		return value.Undef, nil
	}},
}
