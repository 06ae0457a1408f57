package dump_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ssvm/ssvm/internal/dump"
	"github.com/ssvm/ssvm/internal/heap"
	"github.com/ssvm/ssvm/internal/symtab"
	"github.com/ssvm/ssvm/internal/value"
	"github.com/ssvm/ssvm/internal/vcode"
)

// fakeThread is a hand-built dump.Thread, standing in for a real
// *vm.VThread to confirm Trace needs nothing beyond the interface.
type fakeThread struct {
	a     value.Object
	x     vcode.ExpID
	f     int
	c     value.Object
	s     int
	stack []value.Object
}

func (f *fakeThread) Accumulator() value.Object  { return f.a }
func (f *fakeThread) NextExp() vcode.ExpID       { return f.x }
func (f *fakeThread) FramePointer() int          { return f.f }
func (f *fakeThread) Closure() value.Object      { return f.c }
func (f *fakeThread) StackPointer() int          { return f.s }
func (f *fakeThread) StackSlice() []value.Object { return f.stack[:f.s] }

func TestTraceRendersRegistersAndStack(t *testing.T) {
	h := heap.New(64)
	symbols := symtab.New()
	one, _ := value.MakeInteger(1)
	two, _ := value.MakeInteger(2)

	th := &fakeThread{
		a:     one,
		x:     vcode.ExpID(7),
		f:     0,
		c:     value.Undef,
		s:     2,
		stack: []value.Object{one, two},
	}

	var buf bytes.Buffer
	dump.Trace(&buf, th, h, symbols)
	out := buf.String()
	require.Contains(t, out, "a=1")
	require.Contains(t, out, "x=7")
	require.Contains(t, out, "[  1] 2")
	require.Contains(t, out, "[  0] 1")
}

func TestInstructionRendersOneOpcode(t *testing.T) {
	code := vcode.New()
	halt := code.NewHalt()

	var buf bytes.Buffer
	dump.Instruction(&buf, code, halt)
	require.NotEmpty(t, buf.String())
}
