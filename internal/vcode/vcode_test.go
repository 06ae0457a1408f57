package vcode_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ssvm/ssvm/internal/heap"
	"github.com/ssvm/ssvm/internal/symtab"
	"github.com/ssvm/ssvm/internal/vcode"
)

func TestConstructorsAppendAndReturnIDs(t *testing.T) {
	c := vcode.New()
	h := c.NewHalt()
	r := c.NewReferLocal(0, h)
	require.Equal(t, vcode.ExpID(0), h)
	require.Equal(t, vcode.ExpID(1), r)
	require.Equal(t, 2, c.Len())
	require.Equal(t, vcode.OpReferLocal, c.Exp(r).Op)
	require.Equal(t, h, c.Exp(r).Next)
}

func TestGlobalDefinitionIsAppendOnlyAndDense(t *testing.T) {
	c := vcode.New()
	tab := symtab.New()
	foo := tab.Intern("foo")
	bar := tab.Intern("bar")

	id1, fresh1 := c.DefineGlobal(foo, heap.Span{}, "")
	require.True(t, fresh1)
	id2, fresh2 := c.DefineGlobal(bar, heap.Span{}, "")
	require.True(t, fresh2)
	require.NotEqual(t, id1, id2)

	// redefining returns the existing id and reports non-fresh, so the
	// scope resolver can apply its own redefinition policy.
	id1Again, fresh3 := c.DefineGlobal(foo, heap.Span{}, "")
	require.Equal(t, id1, id1Again)
	require.False(t, fresh3)

	require.Equal(t, 2, c.CountGlobals())
	require.Less(t, int(id1), c.CountGlobals())
	require.Less(t, int(id2), c.CountGlobals())
}

func TestDumpDoesNotPanic(t *testing.T) {
	c := vcode.New()
	c.NewHalt()
	var buf bytes.Buffer
	c.Dump(&buf, nil)
	require.NotEmpty(t, buf.String())
}
