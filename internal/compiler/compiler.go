// Package compiler implements the structural-recursion lowering of
// scope-resolved IR (internal/scope) to the flat CPS instruction pool
// (internal/vcode), per spec.md §4.6: the per-form lowering table, the
// Box pass, and Shift-based tail-call translation.
//
// Grounded on the teacher's pkg/asm encode-by-struct-method shape (each
// VmExp constructor plays the role the teacher's Instruction
// implementors play) and on the mna-nenuphar compiler reference's
// locals/freevars "Cells" technique for the free-variable Close
// preamble.
package compiler

import (
	"github.com/ssvm/ssvm/internal/ast"
	"github.com/ssvm/ssvm/internal/diag"
	"github.com/ssvm/ssvm/internal/heap"
	"github.com/ssvm/ssvm/internal/scope"
	"github.com/ssvm/ssvm/internal/value"
	"github.com/ssvm/ssvm/internal/vcode"
)

// VSubr bundles a compiled translation unit (spec.md §6 "Compiler
// output"): the original top-level forms, the entry instruction id of
// each, and the shared pool they were compiled into.
type VSubr struct {
	Forms    []scope.Node
	EntryIDs []vcode.ExpID
	Code     *vcode.Code
}

// Compiler lowers scope.Node trees into a shared vcode.Code pool. It
// also needs a heap, since compiling a literal datum (a quoted list,
// vector, or string) must materialize it as a heap object up front —
// spec.md's Constant instruction expects an already-built OBJECT, not
// a datum to construct at run time.
type Compiler struct {
	code *vcode.Code
	heap *heap.Heap
}

// New creates a Compiler that appends to code and materializes literal
// data in heap.
func New(code *vcode.Code, h *heap.Heap) *Compiler {
	return &Compiler{code: code, heap: h}
}

// ctx carries the per-lambda compile-time information needed to decide
// whether a reference must be unboxed with Indirect: which formal-slot
// indices were boxed by this lambda's own Box pass, which free-capture
// indices are boxed (inherited from the defining lambda via
// scope.FreeCapture.Mutated), and the current lambda's formal count
// (used as Shift's m operand for tail calls — spec.md §4.6 "m is the
// arg count of the outer Return").
type ctx struct {
	boxedLocal map[int]bool
	boxedFree  map[int]bool
	frameSize  int

	// returnID is this lambda's own Return instruction — the resume
	// point a tail-position call/cc's reified continuation must nuate
	// back to, since a tail call never gets its own Frame/postReturn
	// address of its own.
	returnID vcode.ExpID
}

// rootCtx is the compile-time context for top-level forms, which are
// never in tail position, so returnID is never consulted.
func rootCtx() *ctx { return &ctx{returnID: vcode.NoExp} }

// CompileProgram compiles every top-level form of prog, sharing one
// Halt instruction as their common continuation (spec.md §6 "a
// sequence of datums per 'subroutine'").
func (c *Compiler) CompileProgram(prog *scope.Program) (*VSubr, error) {
	haltID := c.code.NewHalt()
	entries := make([]vcode.ExpID, len(prog.Forms))
	for i, form := range prog.Forms {
		entry, err := c.compileExpr(rootCtx(), form, haltID, false)
		if err != nil {
			return nil, err
		}
		entries[i] = entry
	}
	return &VSubr{Forms: prog.Forms, EntryIDs: entries, Code: c.code}, nil
}

func compileErr(format string, args ...interface{}) error {
	return diag.New(diag.KindCompile, format, args...)
}

// compileExpr lowers n so that, once executed, the accumulator holds
// n's value and execution proceeds to next. tail reports whether n is
// in tail position of its enclosing lambda (or top-level form),
// enabling the Shift-based calling convention for Apply and call/cc.
func (c *Compiler) compileExpr(cx *ctx, n scope.Node, next vcode.ExpID, tail bool) (vcode.ExpID, error) {
	switch v := n.(type) {
	case scope.Const:
		return c.compileLiteral(v.Datum, next)
	case scope.Quote:
		return c.compileLiteral(v.Datum, next)
	case scope.Reference:
		return c.compileReference(cx, v, next)
	case scope.Mutation:
		return c.compileMutation(cx, v, next)
	case scope.If:
		return c.compileIf(cx, v, next, tail)
	case scope.Lambda:
		return c.compileLambda(cx, v, next)
	case scope.Begin:
		return c.compileBegin(cx, v, next, tail)
	case scope.CallCC:
		return c.compileCallCC(cx, v, next, tail)
	case scope.PInvoke:
		return c.compilePInvoke(cx, v, next)
	case scope.Apply:
		return c.compileApply(cx, v, next, tail)
	case scope.Define:
		return c.compileDefine(cx, v, next)
	default:
		return 0, compileErr("unrecognized scope-resolved node %T", n)
	}
}

func (c *Compiler) compileLiteral(d ast.Datum, next vcode.ExpID) (vcode.ExpID, error) {
	v, err := c.datumToValue(d)
	if err != nil {
		return 0, err
	}
	return c.code.NewConstant(v, next), nil
}

func (c *Compiler) compileReference(cx *ctx, r scope.Reference, next vcode.ExpID) (vcode.ExpID, error) {
	switch r.Scope {
	case scope.ScopeLocal:
		if cx.boxedLocal[r.ID] {
			return c.code.NewReferLocal(r.ID, c.code.NewIndirect(next)), nil
		}
		return c.code.NewReferLocal(r.ID, next), nil
	case scope.ScopeFree:
		if cx.boxedFree[r.ID] {
			return c.code.NewReferFree(r.ID, c.code.NewIndirect(next)), nil
		}
		return c.code.NewReferFree(r.ID, next), nil
	case scope.ScopeGlobal:
		return c.code.NewReferGlobal(vcode.GDefID(r.ID), next), nil
	default:
		return 0, compileErr("unrecognized reference scope %v", r.Scope)
	}
}

// compileMutation always assigns through the slot unconditionally
// (AssignLocal/AssignFree always behave as set_box, see
// scope.LocalDef.NeedsBox) — every slot a Mutation ever targets was
// boxed by the Box pass for exactly that reason.
func (c *Compiler) compileMutation(cx *ctx, m scope.Mutation, next vcode.ExpID) (vcode.ExpID, error) {
	var assignID vcode.ExpID
	switch m.Scope {
	case scope.ScopeLocal:
		assignID = c.code.NewAssignLocal(m.ID, next)
	case scope.ScopeFree:
		assignID = c.code.NewAssignFree(m.ID, next)
	case scope.ScopeGlobal:
		gid := vcode.GDefID(m.ID)
		c.code.SetGlobalMutated(gid)
		assignID = c.code.NewAssignGlobal(gid, next)
	default:
		return 0, compileErr("unrecognized mutation scope %v", m.Scope)
	}
	return c.compileExpr(cx, m.Value, assignID, false)
}

func (c *Compiler) compileIf(cx *ctx, f scope.If, next vcode.ExpID, tail bool) (vcode.ExpID, error) {
	thenID, err := c.compileExpr(cx, f.Then, next, tail)
	if err != nil {
		return 0, err
	}
	elseID, err := c.compileExpr(cx, f.Else, next, tail)
	if err != nil {
		return 0, err
	}
	testID := c.code.NewTest(thenID, elseID)
	return c.compileExpr(cx, f.Cond, testID, false)
}

func (c *Compiler) compileBegin(cx *ctx, b scope.Begin, next vcode.ExpID, tail bool) (vcode.ExpID, error) {
	if len(b.Exprs) == 0 {
		return c.code.NewConstant(value.Undef, next), nil
	}
	cont := next
	for i := len(b.Exprs) - 1; i >= 0; i-- {
		isTail := tail && i == len(b.Exprs)-1
		id, err := c.compileExpr(cx, b.Exprs[i], cont, isTail)
		if err != nil {
			return 0, err
		}
		cont = id
	}
	return cont, nil
}

// compileLambda emits the free-capture preamble (pushing each
// scope.FreeCapture.Access in the enclosing context) followed by Close
// — spec.md §4.6's "(lambda vars frees body)" row.
func (c *Compiler) compileLambda(cx *ctx, lam scope.Lambda, next vcode.ExpID) (vcode.ExpID, error) {
	bodyEntry, err := c.compileLambdaBody(lam)
	if err != nil {
		return 0, err
	}
	closeID := c.code.NewClose(len(lam.Frees), bodyEntry, next)
	cont := closeID
	for i := len(lam.Frees) - 1; i >= 0; i-- {
		argID := c.code.NewArgument(cont)
		free := lam.Frees[i]
		var id vcode.ExpID
		if ref, isRef := free.Access.(scope.Reference); isRef && free.Mutated {
			// A mutated capture shares the enclosing box itself, so it is
			// fetched without the Indirect that would read its contents.
			id, err = c.compileReference(&ctx{}, ref, argID)
		} else {
			id, err = c.compileExpr(cx, free.Access, argID, false)
		}
		if err != nil {
			return 0, err
		}
		cont = id
	}
	return cont, nil
}

// compileLambdaBody compiles the lambda's own code in a fresh context:
// its formal-slot Box pass, its free-capture boxing, and a frame size
// of its own NFormals for any tail calls inside it.
func (c *Compiler) compileLambdaBody(lam scope.Lambda) (vcode.ExpID, error) {
	returnID := c.code.NewReturn(lam.NFormals)
	inner := &ctx{
		boxedLocal: toSet(lam.BoxedFormals),
		boxedFree:  boxedFreeSet(lam.Frees),
		frameSize:  lam.NFormals,
		returnID:   returnID,
	}
	bodyID, err := c.compileExpr(inner, lam.Body, returnID, true)
	if err != nil {
		return 0, err
	}
	cont := bodyID
	for i := len(lam.BoxedFormals) - 1; i >= 0; i-- {
		cont = c.code.NewBox(lam.BoxedFormals[i], cont)
	}
	return cont, nil
}

func toSet(ids []int) map[int]bool {
	if len(ids) == 0 {
		return nil
	}
	m := make(map[int]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

func boxedFreeSet(frees []scope.FreeCapture) map[int]bool {
	var m map[int]bool
	for i, f := range frees {
		if f.Mutated {
			if m == nil {
				m = make(map[int]bool)
			}
			m[i] = true
		}
	}
	return m
}

// compileCallCC lowers `(call/cc proc)` per spec.md §4.6: reify the
// current continuation, push it as the sole argument, then apply proc
// — Frame-wrapped outside tail position, Shift-based within it.
//
// The continuation reified here must know where to resume once
// invoked: outside tail position that is simply next, the ordinary
// point right after the call/cc form; in tail position there is no
// such fixed address of this form's own, since a tail call shares its
// caller's continuation — so the resume point is this lambda's own
// Return instruction instead.
func (c *Compiler) compileCallCC(cx *ctx, cc scope.CallCC, next vcode.ExpID, tail bool) (vcode.ExpID, error) {
	resume := next
	if tail {
		resume = cx.returnID
	}
	nuateID := c.code.NewNuate(resume)

	var applyID vcode.ExpID
	if tail {
		applyID = c.code.NewShift(1, cx.frameSize, c.code.NewApply())
	} else {
		applyID = c.code.NewApply()
	}
	procEntry, err := c.compileExpr(cx, cc.Proc, applyID, false)
	if err != nil {
		return 0, err
	}
	argID := c.code.NewArgument(procEntry)
	contiID := c.code.NewConti(nuateID, argID)
	if tail {
		return contiID, nil
	}
	return c.code.NewFrame(contiID, next), nil
}

func (c *Compiler) compilePInvoke(cx *ctx, p scope.PInvoke, next vcode.ExpID) (vcode.ExpID, error) {
	invokeID := c.code.NewPInvoke(len(p.Args), p.ProcID, next)
	cont := invokeID
	for i := len(p.Args) - 1; i >= 0; i-- {
		argID := c.code.NewArgument(cont)
		id, err := c.compileExpr(cx, p.Args[i], argID, false)
		if err != nil {
			return 0, err
		}
		cont = id
	}
	return cont, nil
}

// compileApply lowers an ordinary application. In tail position it
// overwrites the caller's frame with Shift instead of pushing a new
// Frame/Return pair (spec.md §4.6's tail-call detection).
func (c *Compiler) compileApply(cx *ctx, a scope.Apply, next vcode.ExpID, tail bool) (vcode.ExpID, error) {
	k := len(a.Args)
	applyID := c.code.NewApply()
	var fnNext vcode.ExpID
	if tail {
		fnNext = c.code.NewShift(k, cx.frameSize, applyID)
	} else {
		fnNext = applyID
	}
	fnEntry, err := c.compileExpr(cx, a.Fn, fnNext, false)
	if err != nil {
		return 0, err
	}
	// Arguments are pushed last to first, so argument 0 ends up in
	// stack[f-1], the slot ReferLocal 0 reads once Apply sets f.
	cont := fnEntry
	for i := 0; i < k; i++ {
		argID := c.code.NewArgument(cont)
		id, err := c.compileExpr(cx, a.Args[i], argID, false)
		if err != nil {
			return 0, err
		}
		cont = id
	}
	if tail {
		return cont, nil
	}
	return c.code.NewFrame(cont, next), nil
}

// compileDefine lowers a top-level define to an assignment into its
// already-allocated global slot. Internal (non-top-level) defines are
// not supported by this compiler — a documented scope cut, see
// DESIGN.md — since they would require per-frame slot allocation
// beyond a lambda's fixed formal list.
func (c *Compiler) compileDefine(cx *ctx, d scope.Define, next vcode.ExpID) (vcode.ExpID, error) {
	if d.Scope != scope.ScopeGlobal {
		return 0, compileErr("internal (define %q) is not supported; only top-level define is", d.Name)
	}
	gid := vcode.GDefID(d.ID)
	assignID := c.code.NewAssignGlobal(gid, next)
	return c.compileExpr(cx, d.Value, assignID, false)
}
