package scope

import (
	"github.com/ssvm/ssvm/internal/ast"
	"github.com/ssvm/ssvm/internal/heap"
	"github.com/ssvm/ssvm/internal/symtab"
	"github.com/ssvm/ssvm/internal/vcode"
)

// LocalDef is one binding introduced by a lambda's formal-parameter
// list. It is shared (by pointer) between the defining scope and every
// FreeCapture that threads it down to an inner lambda, so that
// Captured/Mutated accumulate correctly no matter how deeply the
// variable is captured (spec.md §4.6 Box pass: "if a local is
// set!-assigned and captured, box it").
type LocalDef struct {
	Name     symtab.ID
	ID       LDefID
	Captured bool
	Mutated  bool
}

// NeedsBox reports whether this local must be allocated as a Box cell
// by the compiler's Box pass. Every local ever targeted by a set! is
// boxed unconditionally, not only captured-and-mutated ones: spec.md
// §4.7's AssignLocal/AssignFree semantics ("set_box(stack[f-n-1], a)")
// treat every assignment target as a box with no conditional case, so
// the Box pass boxing exactly the Mutated set is what makes that
// unconditional VM behavior sound — see DESIGN.md.
func (d *LocalDef) NeedsBox() bool { return d.Mutated }

// boxedFormals returns, in ascending order, the indices of locals in a
// just-popped frame that need boxing — the compiler's Box-pass input.
func boxedFormals(locals []*LocalDef) []int {
	var out []int
	for _, d := range locals {
		if d.NeedsBox() {
			out = append(out, int(d.ID))
		}
	}
	return out
}

// frame is one entry of the resolver's scope stack: one per lambda
// (the outermost frame represents top level, which has no locals).
type frame struct {
	locals []*LocalDef
	byName map[symtab.ID]*LocalDef

	// free holds, in order, each outer LocalDef this frame has had to
	// capture, together with how to fetch it from the scope ONE level
	// up (Access) — spec.md §4.5 "attached to the emitted lambda so the
	// compiler knows which captured cells to materialize".
	free      []FreeCapture
	freeOuter []*LocalDef // parallel to free, for dedup by identity
}

func newFrame() *frame {
	return &frame{byName: make(map[symtab.ID]*LocalDef)}
}

func (f *frame) defineLocal(name symtab.ID) (*LocalDef, bool) {
	if _, exists := f.byName[name]; exists {
		return nil, false
	}
	d := &LocalDef{Name: name, ID: LDefID(len(f.locals))}
	f.locals = append(f.locals, d)
	f.byName[name] = d
	return d, true
}

// captureSlot returns this frame's free-slot index for outer, adding a
// new FreeCapture (built lazily by the caller) only the first time
// outer is captured at this level.
func (f *frame) captureSlot(outer *LocalDef, access Node) int {
	for i, o := range f.freeOuter {
		if o == outer {
			return i
		}
	}
	f.free = append(f.free, FreeCapture{Access: access})
	f.freeOuter = append(f.freeOuter, outer)
	return len(f.free) - 1
}

// Resolver walks a post-macro-expansion datum tree and produces
// scope-resolved IR, per spec.md §4.5.
type Resolver struct {
	code     *vcode.Code
	symbols  *symtab.Table
	platform map[symtab.ID]int // registered p/invoke name -> proc id
	stack    []*frame
	kw       keywords
}

// New creates a Resolver sharing code's global table and the given
// symbol table. platform maps a p/invoke-able name to its registered
// vcode platform-proc id (see internal/stdlib.Register).
func New(code *vcode.Code, symbols *symtab.Table, platform map[symtab.ID]int) *Resolver {
	return &Resolver{
		code:     code,
		symbols:  symbols,
		platform: platform,
		stack:    []*frame{newFrame()},
		kw:       internKeywords(symbols),
	}
}

func (r *Resolver) top() *frame { return r.stack[len(r.stack)-1] }

func (r *Resolver) pushFrame() *frame {
	f := newFrame()
	r.stack = append(r.stack, f)
	return f
}

func (r *Resolver) popFrame() *frame {
	f := r.top()
	r.stack = r.stack[:len(r.stack)-1]
	return f
}

// ResolveProgram resolves every top-level datum in forms.
func (r *Resolver) ResolveProgram(forms []ast.Datum) (*Program, error) {
	out := make([]Node, 0, len(forms))
	for _, d := range forms {
		n, err := r.resolveTop(d)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return &Program{Forms: out, Code: r.code}, nil
}

func (r *Resolver) resolveTop(d ast.Datum) (Node, error) {
	return r.resolve(d)
}

// refer resolves a bare symbol reference (spec.md §4.5 "refer(sym)").
// forMutation marks every intermediate capture (and the originating
// LocalDef) as Mutated, which is how the Box pass learns a captured
// variable escapes through set!.
func (r *Resolver) refer(sym symtab.ID, span heap.Span, forMutation bool) (Node, error) {
	cur := r.top()
	if d, ok := cur.byName[sym]; ok {
		if forMutation {
			d.Mutated = true
		}
		return Reference{Scope: ScopeLocal, ID: int(d.ID)}, nil
	}

	// Walk outward; the first ancestor match is threaded back down
	// through every intermediate frame as a Free capture.
	for i := len(r.stack) - 2; i >= 0; i-- {
		anc := r.stack[i]
		d, ok := anc.byName[sym]
		if !ok {
			continue
		}
		d.Captured = true
		if forMutation {
			d.Mutated = true
		}
		// access, initially, is how frame i+1 sees d: a direct Local
		// reference into frame i (its immediate parent).
		var access Node = Reference{Scope: ScopeLocal, ID: int(d.ID)}
		for lvl := i + 1; lvl < len(r.stack); lvl++ {
			fr := r.stack[lvl]
			slot := fr.captureSlot(d, access)
			if forMutation {
				fr.free[slot].Mutated = true
			}
			access = Reference{Scope: ScopeFree, ID: slot}
		}
		return access, nil
	}

	if gid, ok := r.code.LookupGlobal(sym); ok {
		return Reference{Scope: ScopeGlobal, ID: int(gid)}, nil
	}

	return nil, scopeErrorUndefined(r.symbols, sym, span)
}

// define introduces a new binding for sym in the current scope. At top
// level (empty-beyond-root stack) it becomes a Global; inside a lambda
// it becomes a Local (spec.md §4.5 "Define behavior").
func (r *Resolver) define(sym symtab.ID, span heap.Span, doc string) (RefScope, int, error) {
	if len(r.stack) == 1 { // only the top-level frame is active
		gid, fresh := r.code.DefineGlobal(sym, span, doc)
		if !fresh {
			return 0, 0, scopeErrorRedefined(r.symbols, sym, span, true)
		}
		return ScopeGlobal, int(gid), nil
	}
	d, fresh := r.top().defineLocal(sym)
	if !fresh {
		return 0, 0, scopeErrorRedefined(r.symbols, sym, span, false)
	}
	return ScopeLocal, int(d.ID), nil
}
