package vcode

import (
	"fmt"
	"io"

	"github.com/davecgh/go-spew/spew"

	"github.com/ssvm/ssvm/internal/symtab"
)

// dumpConfig renders Constant payloads compactly instead of go-spew's
// default multi-line struct dump, since value.Object is a bare uint64
// and the interesting structure lives in the heap, not in the word
// itself (spec.md §6 "dump(VCode) emits a textual listing").
var dumpConfig = &spew.ConfigState{Indent: "  ", DisableMethods: true}

// Dump emits a textual listing of every instruction in the pool and the
// global-definitions table, satisfying spec.md §6's diagnostic-output
// requirement. names is used to print symbolic names instead of bare
// ids; it may be nil, in which case ids are printed numerically.
func (c *Code) Dump(w io.Writer, names *symtab.Table) {
	fmt.Fprintf(w, "; instruction pool (%d entries)\n", len(c.pool))
	for id, e := range c.pool {
		fmt.Fprintf(w, "%6d  %s\n", id, FormatExp(e))
	}
	fmt.Fprintf(w, "; globals (%d entries)\n", len(c.globals))
	for id, g := range c.globals {
		name := fmt.Sprintf("sym#%d", g.Name)
		if names != nil {
			name = names.Name(g.Name)
		}
		entry := "none"
		if g.Code != nil {
			entry = fmt.Sprintf("%d", *g.Code)
		}
		fmt.Fprintf(w, "%6d  %-24s entry=%-6s mutated=%v  %s\n", id, name, entry, g.Mutated, g.Doc)
	}
	fmt.Fprintf(w, "; platform procedures (%d entries)\n", len(c.platform))
	for id, p := range c.platform {
		name := fmt.Sprintf("sym#%d", p.Name)
		if names != nil {
			name = names.Name(p.Name)
		}
		fmt.Fprintf(w, "%6d  %-16s arity=%d variadic=%v\n", id, name, p.Arity, p.Variadic)
	}
}

// FormatExp renders one instruction's opcode and operands, the same
// rendering Dump uses per pool entry.
func FormatExp(e Exp) string {
	switch e.Op {
	case OpHalt:
		return "halt"
	case OpReferLocal:
		return fmt.Sprintf("refer-local %d -> %d", e.N, e.Next)
	case OpReferFree:
		return fmt.Sprintf("refer-free %d -> %d", e.N, e.Next)
	case OpReferGlobal:
		return fmt.Sprintf("refer-global %d -> %d", e.N, e.Next)
	case OpIndirect:
		return fmt.Sprintf("indirect -> %d", e.Next)
	case OpConstant:
		return fmt.Sprintf("constant %s -> %d", dumpConfig.Sprint(e.Value), e.Next)
	case OpClose:
		return fmt.Sprintf("close n=%d body=%d -> %d", e.N, e.Body, e.Next)
	case OpBox:
		return fmt.Sprintf("box %d -> %d", e.N, e.Next)
	case OpTest:
		return fmt.Sprintf("test true=%d false=%d", e.Next, e.Alt)
	case OpAssignLocal:
		return fmt.Sprintf("assign-local %d -> %d", e.N, e.Next)
	case OpAssignFree:
		return fmt.Sprintf("assign-free %d -> %d", e.N, e.Next)
	case OpAssignGlobal:
		return fmt.Sprintf("assign-global %d -> %d", e.N, e.Next)
	case OpConti:
		return fmt.Sprintf("conti -> %d", e.Next)
	case OpNuate:
		return fmt.Sprintf("nuate -> %d", e.Next)
	case OpFrame:
		return fmt.Sprintf("frame body=%d post-return=%d", e.Body, e.Alt)
	case OpArgument:
		return fmt.Sprintf("argument -> %d", e.Next)
	case OpApply:
		return "apply"
	case OpReturn:
		return fmt.Sprintf("return %d", e.N)
	case OpShift:
		return fmt.Sprintf("shift n=%d m=%d -> %d", e.N, e.M, e.Next)
	case OpPInvoke:
		return fmt.Sprintf("p/invoke argc=%d proc=%d -> %d", e.ArgCount, e.ProcID, e.Next)
	default:
		return "<unknown>"
	}
}
