// Package dump formats a running VThread's register file and stack for
// the CLI's "-v" flag (spec.md §6 "Diagnostic output" generalized
// from VCode to the live executor), continuing the teacher's
// cmd/vm/main.go "log.Printf("vm: %s", machine)" / Disassemble trace
// idiom: a symbol-aware textual rendering a human reads directly,
// rather than a structured log event.
package dump

import (
	"fmt"
	"io"

	"github.com/ssvm/ssvm/internal/heap"
	"github.com/ssvm/ssvm/internal/stdlib"
	"github.com/ssvm/ssvm/internal/symtab"
	"github.com/ssvm/ssvm/internal/value"
	"github.com/ssvm/ssvm/internal/vcode"
)

// Thread is the subset of *vm.VThread's accessors a trace needs; kept
// as an interface, rather than importing pkg/vm directly, so a test
// can exercise Trace against a fake register file without constructing
// a real VM.
type Thread interface {
	Accumulator() value.Object
	NextExp() vcode.ExpID
	FramePointer() int
	Closure() value.Object
	StackPointer() int
	StackSlice() []value.Object
}

// Trace writes one line per register plus the live stack window,
// rendering OBJECT values the way stdlib.Render/display would instead
// of as raw tagged words.
func Trace(w io.Writer, t Thread, h *heap.Heap, symbols *symtab.Table) {
	fmt.Fprintf(w, "vm: a=%s x=%d f=%d c=%s s=%d\n",
		stdlib.Render(h, symbols, t.Accumulator()),
		t.NextExp(), t.FramePointer(),
		stdlib.Render(h, symbols, t.Closure()),
		t.StackPointer())

	stack := t.StackSlice()
	for i := len(stack) - 1; i >= 0; i-- {
		fmt.Fprintf(w, "  [%3d] %s\n", i, stdlib.Render(h, symbols, stack[i]))
	}
}

// Instruction renders the single instruction id, using the same
// per-opcode rendering vcode.Code.Dump uses for the whole pool. The CLI
// does not call it; its "-v" trace uses Trace only.
func Instruction(w io.Writer, code *vcode.Code, id vcode.ExpID) {
	fmt.Fprintf(w, "%6d  %s\n", id, vcode.FormatExp(code.Exp(id)))
}
