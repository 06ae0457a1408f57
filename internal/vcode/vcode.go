// Package vcode implements the flat, append-only instruction pool
// (spec.md §4.4): a vector of CPS instruction records indexed by small
// integer ExpID, plus the global-definitions table and the
// platform-procedure table that it owns on the compiler's behalf.
//
// Instructions hold the ids of their successors ("next-pointer based"),
// never offsets, so the compiler can build the instruction graph
// bottom-up the way spec.md §4.4 requires.
package vcode

import (
	"github.com/ssvm/ssvm/internal/heap"
	"github.com/ssvm/ssvm/internal/symtab"
	"github.com/ssvm/ssvm/internal/value"
)

// ExpID indexes a single instruction record in a Code's pool.
type ExpID int

// NoExp marks an absent instruction id. It is not the zero value:
// instructions without a successor (Halt, Apply, Return) leave Next at
// 0.
const NoExp ExpID = -1

// Op discriminates the instruction record variants of spec.md §3's
// VmExp table.
type Op int

const (
	OpHalt Op = iota
	OpReferLocal
	OpReferFree
	OpReferGlobal
	OpIndirect
	OpConstant
	OpClose
	OpBox
	OpTest
	OpAssignLocal
	OpAssignFree
	OpAssignGlobal
	OpConti
	OpNuate
	OpFrame
	OpArgument
	OpApply
	OpReturn
	OpShift
	OpPInvoke
)

func (op Op) String() string {
	names := [...]string{
		"halt", "refer-local", "refer-free", "refer-global", "indirect",
		"constant", "close", "box", "test", "assign-local", "assign-free",
		"assign-global", "conti", "nuate", "frame", "argument", "apply",
		"return", "shift", "p/invoke",
	}
	if int(op) < 0 || int(op) >= len(names) {
		return "unknown"
	}
	return names[op]
}

// Exp is one instruction record. Only the fields relevant to Op are
// meaningful; this follows spec.md §3's "variant with one of the
// following constructors" while staying a single flat struct so the
// executor (pkg/vm) can index the pool array directly instead of type
// switching on a per-instruction Go type, matching the teacher's
// single-struct-plus-opcode decoding style (pkg/vm.Decode).
type Exp struct {
	Op Op

	N ExpID // Close n-free / Box n / ReferLocal,Free,Global n / AssignLocal,Free,Global n / Return n / Shift n, reused as plain int via int(N)
	M int    // Shift m

	Next ExpID // the common "and then" successor
	Alt  ExpID // Test if-false; Frame's post-return

	Body ExpID // Close body; Frame body

	Value value.Object // Constant

	ProcID   int // PInvoke proc-id
	ArgCount int // PInvoke arg-count
}

// GDef is one entry of the append-only global-definitions table
// (spec.md §3).
type GDef struct {
	Name    symtab.ID
	Code    *ExpID // entry instruction of a top-level procedure, if any
	Init    value.Object
	Doc     string
	Loc     heap.Span
	Mutated bool
}

// PlatformProc is one entry of the append-only platform-procedures
// table (spec.md §3): a native callback plus its calling convention.
type PlatformProc struct {
	Name     symtab.ID
	Arity    int
	Variadic bool
	ArgNames []symtab.ID
	Doc      string
	Callback func(ArgView) (value.Object, error)
}

// ArgView is the windowed, bounds-checked view over the live stack that
// a platform-procedure callback receives (spec.md §6). Callbacks must
// read every argument before doing anything that could relocate the
// stack's backing slice (spec.md §9 "ArgView aliasing"): in practice
// that means reading everything into locals before allocating.
type ArgView struct {
	stack []value.Object
	base  int
}

func newArgView(stack []value.Object, base, count int) ArgView {
	return ArgView{stack: stack[base : base+count], base: 0}
}

// Size returns the number of arguments in the view.
func (a ArgView) Size() int { return len(a.stack) }

// At returns the i'th argument, panicking if i is out of range — the
// same "bounds-checked" contract spec.md §6 describes, backed by Go
// slice bounds checks rather than a hand-rolled check.
func (a ArgView) At(i int) value.Object { return a.stack[i] }

// GDefID indexes the global-definitions table.
type GDefID int

// Code owns the instruction pool plus the global and platform-proc
// tables (spec.md §4.4: "The pool also holds the global-definition
// table and platform-proc table (ownership: VCode owns both)").
type Code struct {
	pool []Exp

	globals    []GDef
	globalByID map[symtab.ID]GDefID

	platform []PlatformProc
}

// New creates an empty instruction pool.
func New() *Code {
	return &Code{globalByID: make(map[symtab.ID]GDefID)}
}

func (c *Code) append(e Exp) ExpID {
	id := ExpID(len(c.pool))
	c.pool = append(c.pool, e)
	return id
}

// Exp returns the instruction stored at id.
func (c *Code) Exp(id ExpID) Exp { return c.pool[id] }

// Len returns the number of instructions in the pool.
func (c *Code) Len() int { return len(c.pool) }

// --- constructors, one per spec.md §3 VmExp variant --------------------

func (c *Code) NewHalt() ExpID { return c.append(Exp{Op: OpHalt}) }

func (c *Code) NewReferLocal(n int, next ExpID) ExpID {
	return c.append(Exp{Op: OpReferLocal, N: ExpID(n), Next: next})
}

func (c *Code) NewReferFree(n int, next ExpID) ExpID {
	return c.append(Exp{Op: OpReferFree, N: ExpID(n), Next: next})
}

func (c *Code) NewReferGlobal(n GDefID, next ExpID) ExpID {
	return c.append(Exp{Op: OpReferGlobal, N: ExpID(n), Next: next})
}

func (c *Code) NewIndirect(next ExpID) ExpID {
	return c.append(Exp{Op: OpIndirect, Next: next})
}

func (c *Code) NewConstant(v value.Object, next ExpID) ExpID {
	return c.append(Exp{Op: OpConstant, Value: v, Next: next})
}

func (c *Code) NewClose(nFree int, body, next ExpID) ExpID {
	return c.append(Exp{Op: OpClose, N: ExpID(nFree), Body: body, Next: next})
}

func (c *Code) NewBox(n int, next ExpID) ExpID {
	return c.append(Exp{Op: OpBox, N: ExpID(n), Next: next})
}

func (c *Code) NewTest(ifTrue, ifFalse ExpID) ExpID {
	return c.append(Exp{Op: OpTest, Next: ifTrue, Alt: ifFalse})
}

func (c *Code) NewAssignLocal(n int, next ExpID) ExpID {
	return c.append(Exp{Op: OpAssignLocal, N: ExpID(n), Next: next})
}

func (c *Code) NewAssignFree(n int, next ExpID) ExpID {
	return c.append(Exp{Op: OpAssignFree, N: ExpID(n), Next: next})
}

func (c *Code) NewAssignGlobal(n GDefID, next ExpID) ExpID {
	return c.append(Exp{Op: OpAssignGlobal, N: ExpID(n), Next: next})
}

// NewConti appends a Conti instruction. nuateID is the id of the Nuate
// instruction that resumes this capture site — stored in Alt, since
// Conti has no other use for it — so the executor knows where to send
// control once the reified continuation is later invoked (spec.md
// §4.7 "continuation(s) allocates a closure whose body references the
// stack snapshot via Nuate").
func (c *Code) NewConti(nuateID, next ExpID) ExpID {
	return c.append(Exp{Op: OpConti, Alt: nuateID, Next: next})
}

// NewNuate appends the Nuate instruction a reified continuation's
// closure body points at. The stack snapshot itself is not known at
// compile time — it is supplied per-invocation as the continuation
// closure's sole free-variable slot — so, unlike every other
// instruction with a Value field, Nuate carries none; only its static
// resume point next.
func (c *Code) NewNuate(next ExpID) ExpID {
	return c.append(Exp{Op: OpNuate, Next: next})
}

func (c *Code) NewFrame(body, postReturn ExpID) ExpID {
	return c.append(Exp{Op: OpFrame, Body: body, Alt: postReturn})
}

func (c *Code) NewArgument(next ExpID) ExpID {
	return c.append(Exp{Op: OpArgument, Next: next})
}

func (c *Code) NewApply() ExpID { return c.append(Exp{Op: OpApply}) }

func (c *Code) NewReturn(n int) ExpID {
	return c.append(Exp{Op: OpReturn, N: ExpID(n)})
}

func (c *Code) NewShift(n, m int, next ExpID) ExpID {
	return c.append(Exp{Op: OpShift, N: ExpID(n), M: m, Next: next})
}

func (c *Code) NewPInvoke(argCount int, procID int, next ExpID) ExpID {
	return c.append(Exp{Op: OpPInvoke, ArgCount: argCount, ProcID: procID, Next: next})
}

// --- global definitions table -------------------------------------------

// DefineGlobal appends a new global definition and returns its id. If
// name was already defined, DefineGlobal returns the existing id and ok
// is false so the caller (the scope resolver) can apply its
// redefinition policy (spec.md §4.5 "Redefinition... is an error").
func (c *Code) DefineGlobal(name symtab.ID, loc heap.Span, doc string) (GDefID, bool) {
	if id, found := c.globalByID[name]; found {
		return id, false
	}
	id := GDefID(len(c.globals))
	c.globals = append(c.globals, GDef{Name: name, Init: value.Undef, Doc: doc, Loc: loc})
	c.globalByID[name] = id
	return id, true
}

// LookupGlobal returns the GDefID for name, if it has been defined.
func (c *Code) LookupGlobal(name symtab.ID) (GDefID, bool) {
	id, ok := c.globalByID[name]
	return id, ok
}

// SetGlobalCode records the entry instruction id of a global's value,
// used when a top-level `(define (f ...) ...)` compiles to a closure.
func (c *Code) SetGlobalCode(id GDefID, entry ExpID) {
	c.globals[id].Code = &entry
}

// SetGlobalMutated marks a global as having been the target of a set!,
// matching spec.md §7's "global redefinition with a hint to use set!".
func (c *Code) SetGlobalMutated(id GDefID) { c.globals[id].Mutated = true }

// Global returns the GDef record at id.
func (c *Code) Global(id GDefID) GDef { return c.globals[id] }

// CountGlobals returns the number of defined globals, the size the
// caller must allocate for initialize_platform_globals (spec.md §6).
func (c *Code) CountGlobals() int { return len(c.globals) }

// InitializeGlobals writes the initial value of every global (taken
// from its definition record) into dst, which must have length
// CountGlobals() (spec.md §6 "initialize_platform_globals").
func (c *Code) InitializeGlobals(dst []value.Object) {
	for i, g := range c.globals {
		dst[i] = g.Init
	}
}

// --- platform procedures table -------------------------------------------

// RegisterPlatformProc appends a native procedure and returns its id.
func (c *Code) RegisterPlatformProc(p PlatformProc) int {
	id := len(c.platform)
	c.platform = append(c.platform, p)
	return id
}

// PlatformProcByID returns the platform procedure registered under id.
func (c *Code) PlatformProcByID(id int) PlatformProc { return c.platform[id] }

// Invoke calls the platform procedure id with a bounds-checked view of
// the top count stack slots starting at base (spec.md §6).
func (c *Code) Invoke(id int, stack []value.Object, base, count int) (value.Object, error) {
	return c.platform[id].Callback(newArgView(stack, base, count))
}
