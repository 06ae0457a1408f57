package vm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ssvm/ssvm/internal/heap"
	"github.com/ssvm/ssvm/internal/value"
	"github.com/ssvm/ssvm/internal/vcode"
	"github.com/ssvm/ssvm/pkg/vm"
)

func TestRunReturnsConstantAccumulator(t *testing.T) {
	code := vcode.New()
	h := heap.New(64)
	halt := code.NewHalt()
	n, ok := value.MakeInteger(42)
	require.True(t, ok)
	entry := code.NewConstant(n, halt)

	thread := vm.New(code, h, vm.DefaultStackSize)
	result, err := thread.Run(entry)
	require.NoError(t, err)
	require.True(t, value.IsInteger(result))
	require.EqualValues(t, 42, value.Integer(result))
}

func TestApplyOnNonClosureIsRejectedWhenTypecheckIsOn(t *testing.T) {
	code := vcode.New()
	h := heap.New(64)
	n, ok := value.MakeInteger(1)
	require.True(t, ok)
	apply := code.NewApply()
	entry := code.NewConstant(n, apply)

	thread := vm.New(code, h, vm.DefaultStackSize)
	thread.Typecheck = vm.TypecheckOn
	_, err := thread.Run(entry)
	require.ErrorIs(t, err, vm.ErrNotAProcedure)
}

func TestStackOverflowIsReportedOnArgumentPush(t *testing.T) {
	code := vcode.New()
	h := heap.New(64)
	halt := code.NewHalt()
	n, ok := value.MakeInteger(1)
	require.True(t, ok)
	arg := code.NewArgument(halt)
	entry := code.NewConstant(n, arg)

	thread := vm.New(code, h, 1) // one slot: a single push fits exactly
	_, err := thread.Run(entry)
	require.NoError(t, err)

	// A second program reusing the same one-slot stack must overflow.
	entry2 := code.NewConstant(n, code.NewArgument(code.NewArgument(halt)))
	thread2 := vm.New(code, h, 1)
	_, err = thread2.Run(entry2)
	require.ErrorIs(t, err, vm.ErrStackOverflow)
}

func TestUndefinedGlobalReferenceFails(t *testing.T) {
	code := vcode.New()
	h := heap.New(64)
	gid, fresh := code.DefineGlobal(0, heap.Span{}, "")
	require.True(t, fresh)
	halt := code.NewHalt()
	entry := code.NewReferGlobal(gid, halt)

	thread := vm.New(code, h, vm.DefaultStackSize)
	_, err := thread.Run(entry)
	require.ErrorIs(t, err, vm.ErrUndefinedGlobal)
}

func TestRegisterAccessorsReflectState(t *testing.T) {
	code := vcode.New()
	h := heap.New(64)
	halt := code.NewHalt()
	thread := vm.New(code, h, vm.DefaultStackSize)
	_, err := thread.Run(halt)
	require.NoError(t, err)
	require.Equal(t, 0, thread.StackPointer())
	require.Empty(t, thread.StackSlice())
}
