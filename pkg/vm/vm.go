// Package vm implements the CPS virtual machine's executor (spec.md
// §4.7): VThread, a register-based interpreter over the flat
// instruction pool built by internal/vcode and internal/compiler.
//
// Registers
//
// - a: accumulator (OBJECT)
// - x: next instruction id
// - f: frame pointer (stack offset at which the current call's
//   arguments begin)
// - c: current closure (a heap Ref to a Closure object)
// - s: stack pointer (grows upward)
//
// This directly continues the teacher's pkg/vm.VM struct-with-
// Execute(ci)-switch shape (a flat register file, a Fetch/Execute
// cycle, sentinel errors surfaced through Execute's return value),
// generalized from the teacher's 32-bit fixed-format RiSC-32 ISA to
// the graph-shaped CPS instruction set.
package vm

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/ssvm/ssvm/internal/heap"
	"github.com/ssvm/ssvm/internal/value"
	"github.com/ssvm/ssvm/internal/vcode"
)

// DefaultStackSize is the stack's default capacity in OBJECT slots
// (spec.md §4.7 "preallocated at a configurable capacity (default ≈ 4
// Mi slots)"); kept far smaller here since tests never need millions
// of slots and a large default would make every test allocate 32+ MiB.
const DefaultStackSize = 1 << 16

// The following errors are returned by execute. Run reports every one
// except ErrHalted, which ends a run normally.
var (
	// ErrHalted indicates that the VM has executed a Halt instruction.
	ErrHalted = errors.New("vm: halted")

	// ErrNotAProcedure indicates that Apply's accumulator did not hold a
	// closure.
	ErrNotAProcedure = errors.New("vm: value is not a procedure")

	// ErrNotABox indicates that Indirect's accumulator did not hold a
	// box.
	ErrNotABox = errors.New("vm: value is not a box")

	// ErrUndefinedGlobal indicates a ReferGlobal against a global that
	// was declared but never given a value.
	ErrUndefinedGlobal = errors.New("vm: global referenced before assignment")

	// ErrStackOverflow indicates the stack has reached its configured
	// capacity.
	ErrStackOverflow = errors.New("vm: stack overflow")

	// ErrBadInstruction indicates a malformed instruction graph (should
	// never occur against compiler output; only reachable by hand-built
	// or corrupted vcode.Code).
	ErrBadInstruction = errors.New("vm: malformed instruction")
)

// TypecheckLevel selects whether execute performs the per-instruction
// dynamic typechecks spec.md §4.7 describes as a build-time flag ("a
// configuration flag selects whether per-instruction dynamic
// typechecks... are compiled in"). Go has no cheap preprocessor story
// for a true build-time flag, so it is represented as a run-time field
// instead — a documented Open Question resolution, see DESIGN.md.
type TypecheckLevel int

const (
	// TypecheckOn performs the Apply, Indirect, ReferFree and AssignFree
	// kind checks and returns a sentinel error on mismatch. This is the
	// default.
	TypecheckOn TypecheckLevel = iota

	// TypecheckOff trusts the compiler's guarantees and skips the
	// checks, trading safety for a faster inner loop.
	TypecheckOff
)

// VThread is a single CPS virtual machine instance. Like the teacher's
// VM, it is not goroutine-safe; a single goroutine drives it (spec.md
// §5 "exactly one VThread per VM instance").
type VThread struct {
	Code *vcode.Code
	Heap *heap.Heap

	Globals []value.Object

	Typecheck TypecheckLevel

	stack []value.Object

	a value.Object
	x vcode.ExpID
	f int
	c value.Object
	s int
}

// New creates a VThread over code and h, with stackSize stack slots
// (DefaultStackSize if stackSize <= 0), its globals vector initialized
// per spec.md §6 "initialize_platform_globals".
func New(code *vcode.Code, h *heap.Heap, stackSize int) *VThread {
	if stackSize <= 0 {
		stackSize = DefaultStackSize
	}
	globals := make([]value.Object, code.CountGlobals())
	code.InitializeGlobals(globals)
	return &VThread{
		Code:    code,
		Heap:    h,
		Globals: globals,
		stack:   make([]value.Object, stackSize),
	}
}

// Accumulator returns the value currently held in the accumulator
// register, typically read after a top-level form has run to Halt.
func (t *VThread) Accumulator() value.Object { return t.a }

// The following accessors expose the rest of the register file and the
// live stack window read-only, for internal/dump's trace rendering —
// the generalized counterpart of the teacher's exported VM.GPR/S/PC
// fields, kept unexported here since nothing outside a debugger should
// mutate them directly.
func (t *VThread) NextExp() vcode.ExpID       { return t.x }
func (t *VThread) FramePointer() int          { return t.f }
func (t *VThread) Closure() value.Object      { return t.c }
func (t *VThread) StackPointer() int          { return t.s }
func (t *VThread) StackSlice() []value.Object { return t.stack[:t.s] }

// String renders the register file, matching the teacher's
// cmd/vm/main.go "-v" trace idiom. The CLI's symbol-aware trace comes
// from internal/dump, which reads the accessors above instead.
func (t *VThread) String() string {
	return fmt.Sprintf("vm: {a:%v x:%d f:%d c:%v s:%d}", t.a, t.x, t.f, t.c, t.s)
}

func (t *VThread) push(v value.Object) error {
	if t.s >= len(t.stack) {
		return ErrStackOverflow
	}
	t.stack[t.s] = v
	t.s++
	return nil
}

func (t *VThread) local(n int) value.Object       { return t.stack[t.f-n-1] }
func (t *VThread) setLocal(n int, v value.Object) { t.stack[t.f-n-1] = v }

// reifyContinuation snapshots the live stack into a heap vector and
// wraps it in a closure whose body is nuateID — a Nuate instruction
// baked in at compile time for this call/cc site (spec.md §4.7
// "continuation(s) allocates a closure whose body references the
// stack snapshot via Nuate"). The snapshot is the closure's sole free
// variable, so invoking the continuation later (an ordinary Apply)
// hands Nuate the snapshot via t.c exactly like any other free
// reference.
func (t *VThread) reifyContinuation(nuateID vcode.ExpID) (value.Object, error) {
	snapshot, err := t.Heap.NewVector(t.s, value.Null)
	if err != nil {
		return value.Undef, err
	}
	for i := 0; i < t.s; i++ {
		t.Heap.VectorSet(snapshot, i, t.stack[i])
	}
	return t.Heap.NewClosure(int(nuateID), []value.Object{snapshot})
}

// restoreContinuation copies a previously reified snapshot back onto
// the stack and sets s to its length (spec.md §4.7 "Nuate saved next —
// s <- restore(saved)"). saved is read from the invoking closure's own
// free slot 0, since Apply has already set c to that closure by the
// time Nuate runs.
func (t *VThread) restoreContinuation() {
	saved := t.Heap.ClosureFree(t.c, 0)
	n := t.Heap.VectorLen(saved)
	for i := 0; i < n; i++ {
		t.stack[i] = t.Heap.VectorRef(saved, i)
	}
	t.s = n
}

// Run executes entry to completion (a Halt instruction) and returns
// the final accumulator value. It is the convenience entry point a CLI
// uses for one top-level form. Globals is first extended, with
// undefined slots, to cover any globals defined in Code since the
// VThread was created.
func (t *VThread) Run(entry vcode.ExpID) (value.Object, error) {
	if n := t.Code.CountGlobals(); n > len(t.Globals) {
		grown := make([]value.Object, n)
		t.Code.InitializeGlobals(grown)
		copy(grown, t.Globals)
		t.Globals = grown
	}
	t.x = entry
	t.f = t.s
	for {
		ci := t.Code.Exp(t.x)
		if err := t.execute(ci); err != nil {
			if errors.Is(err, ErrHalted) {
				return t.a, nil
			}
			return value.Undef, err
		}
	}
}

// execute performs one instruction and advances t.x, or returns
// ErrHalted/a fault. This mirrors the teacher's Execute(ci) shape: one
// big opcode switch, register file mutated in place.
func (t *VThread) execute(e vcode.Exp) error {
	switch e.Op {
	case vcode.OpHalt:
		return ErrHalted

	case vcode.OpReferLocal:
		t.a = t.local(int(e.N))
		t.x = e.Next

	case vcode.OpReferFree:
		if t.Typecheck == TypecheckOn && !t.Heap.IsClosure(t.c) {
			return ErrNotAProcedure
		}
		t.a = t.Heap.ClosureFree(t.c, int(e.N))
		t.x = e.Next

	case vcode.OpReferGlobal:
		g := t.Globals[int(e.N)]
		if value.IsUndef(g) {
			return ErrUndefinedGlobal
		}
		t.a = g
		t.x = e.Next

	case vcode.OpIndirect:
		if t.Typecheck == TypecheckOn && !t.Heap.IsBox(t.a) {
			return ErrNotABox
		}
		t.a = t.Heap.Unbox(t.a)
		t.x = e.Next

	case vcode.OpConstant:
		t.a = e.Value
		t.x = e.Next

	case vcode.OpClose:
		n := int(e.N)
		free := make([]value.Object, n)
		copy(free, t.stack[t.s-n:t.s])
		t.s -= n
		ref, err := t.Heap.NewClosure(int(e.Body), free)
		if err != nil {
			return err
		}
		t.a = ref
		t.x = e.Next

	case vcode.OpBox:
		ref, err := t.Heap.NewBox(t.local(int(e.N)))
		if err != nil {
			return err
		}
		t.setLocal(int(e.N), ref)
		t.x = e.Next

	case vcode.OpTest:
		if value.IsTruthy(t.a) {
			t.x = e.Next
		} else {
			t.x = e.Alt
		}

	case vcode.OpAssignLocal:
		t.Heap.SetBox(t.local(int(e.N)), t.a)
		t.x = e.Next

	case vcode.OpAssignFree:
		if t.Typecheck == TypecheckOn && !t.Heap.IsClosure(t.c) {
			return ErrNotAProcedure
		}
		t.Heap.SetBox(t.Heap.ClosureFree(t.c, int(e.N)), t.a)
		t.x = e.Next

	case vcode.OpAssignGlobal:
		t.Globals[int(e.N)] = t.a
		t.x = e.Next

	case vcode.OpConti:
		ref, err := t.reifyContinuation(e.Alt)
		if err != nil {
			return err
		}
		t.a = ref
		t.x = e.Next

	case vcode.OpNuate:
		// the argument the continuation was called with is its result
		t.a = t.local(0)
		t.restoreContinuation()
		t.x = e.Next

	case vcode.OpFrame:
		postRet, ok := value.MakeInteger(int64(e.Alt))
		if !ok {
			return ErrBadInstruction
		}
		fObj, _ := value.MakeInteger(int64(t.f))
		if err := t.push(postRet); err != nil {
			return err
		}
		if err := t.push(fObj); err != nil {
			return err
		}
		if err := t.push(t.c); err != nil {
			return err
		}
		t.x = e.Body

	case vcode.OpArgument:
		if err := t.push(t.a); err != nil {
			return err
		}
		t.x = e.Next

	case vcode.OpApply:
		if t.Typecheck == TypecheckOn && !t.Heap.IsClosure(t.a) {
			return ErrNotAProcedure
		}
		t.c = t.a
		t.x = vcode.ExpID(t.Heap.ClosureBody(t.c))
		t.f = t.s

	case vcode.OpReturn:
		n := int(e.N)
		t.s -= n
		if t.s < 3 {
			return ErrBadInstruction
		}
		t.c = t.stack[t.s-1]
		fObj := t.stack[t.s-2]
		xObj := t.stack[t.s-3]
		t.s -= 3
		t.f = int(value.Integer(fObj))
		t.x = vcode.ExpID(value.Integer(xObj))

	case vcode.OpShift:
		n, m := int(e.N), e.M
		copy(t.stack[t.s-n-m:t.s-m], t.stack[t.s-n:t.s])
		t.s -= m
		t.x = e.Next

	case vcode.OpPInvoke:
		k := e.ArgCount
		result, err := t.Code.Invoke(e.ProcID, t.stack, t.s-k, k)
		if err != nil {
			return err
		}
		t.s -= k
		t.a = result
		t.x = e.Next

	default:
		return ErrBadInstruction
	}
	return nil
}
