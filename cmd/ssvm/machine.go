package main

import (
	"io"

	"github.com/pkg/errors"

	"github.com/ssvm/ssvm/internal/compiler"
	"github.com/ssvm/ssvm/internal/diag"
	"github.com/ssvm/ssvm/internal/heap"
	"github.com/ssvm/ssvm/internal/scope"
	"github.com/ssvm/ssvm/internal/stdlib"
	"github.com/ssvm/ssvm/internal/symtab"
	"github.com/ssvm/ssvm/internal/value"
	"github.com/ssvm/ssvm/internal/vcode"
	"github.com/ssvm/ssvm/pkg/vm"
)

// heapPages is the page-region capacity handed to heap.New. Scheme
// source files this CLI is meant to run are small translation units,
// not long-running servers, so a modest fixed region is enough.
const heapPages = 256

// machine bundles the collaborators one run of the CLI wires together:
// the shared symbol table and instruction pool, the heap, and the
// VThread that finally executes compiled entries.
type machine struct {
	symbols *symtab.Table
	code    *vcode.Code
	heap    *heap.Heap
	thread  *vm.VThread
	stdlib  map[symtab.ID]int
}

// newMachine constructs a fresh machine: registers the standard
// procedures first, since the scope resolver's p/invoke resolution
// needs their name -> proc-id table up front.
func newMachine(typecheck vm.TypecheckLevel, stackSize int, out io.Writer) *machine {
	symbols := symtab.New()
	code := vcode.New()
	h := heap.New(heapPages)

	env := &stdlib.Env{Heap: h, Symbols: symbols, Out: out}
	procs := stdlib.Register(code, env)

	thread := vm.New(code, h, stackSize)
	thread.Typecheck = typecheck

	return &machine{symbols: symbols, code: code, heap: h, thread: thread, stdlib: procs}
}

// result is one top-level form's outcome, used by both `run` (the last
// result matters) and `repl` (every result is echoed).
type result struct {
	Value value.Object
}

// compileSource reads every top-level form in src and resolves and
// compiles the whole translation unit together, so later forms may
// refer to earlier defines.
func (m *machine) compileSource(src string) (*compiler.VSubr, error) {
	datums, err := readAll(src, m.symbols)
	if err != nil {
		return nil, errors.Wrap(err, "parse")
	}
	if len(datums) == 0 {
		return &compiler.VSubr{Code: m.code}, nil
	}

	resolver := scope.New(m.code, m.symbols, m.stdlib)
	prog, err := resolver.ResolveProgram(datums)
	if err != nil {
		return nil, err
	}

	comp := compiler.New(m.code, m.heap)
	return comp.CompileProgram(prog)
}

// evalSource compiles src, then runs each compiled entry in turn.
func (m *machine) evalSource(src string) ([]result, error) {
	subr, err := m.compileSource(src)
	if err != nil {
		return nil, err
	}
	out := make([]result, 0, len(subr.EntryIDs))
	for _, entry := range subr.EntryIDs {
		v, err := m.thread.Run(entry)
		if err != nil {
			return out, err
		}
		out = append(out, result{Value: v})
	}
	return out, nil
}

// render formats a result's value the way display would, for the CLI's
// own echoing (run's final value, repl's per-form value).
func (m *machine) render(v value.Object) string {
	return stdlib.Render(m.heap, m.symbols, v)
}

// asReport renders err the way spec.md §7 asks for ("ERROR:"-prefixed,
// indented continuations), whether it is a *diag.Error (scope/compile
// errors) or a teacher-style sentinel runtime error.
func asReport(err error) string {
	return string(diag.AsReport(err))
}
