package symtab_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ssvm/ssvm/internal/symtab"
)

func TestInternIsIdempotent(t *testing.T) {
	tab := symtab.New()
	id1 := tab.Intern("foo")
	id2 := tab.Intern("foo")
	require.Equal(t, id1, id2)
}

func TestInternIsDenseAndStable(t *testing.T) {
	tab := symtab.New()
	a := tab.Intern("a")
	b := tab.Intern("b")
	require.NotEqual(t, a, b)
	require.Equal(t, "a", tab.Name(a))
	require.Equal(t, "b", tab.Name(b))
	require.Equal(t, 2, tab.Len())
	// re-interning does not grow the table
	tab.Intern("a")
	require.Equal(t, 2, tab.Len())
}

func TestWellKnownCached(t *testing.T) {
	tab := symtab.WellKnown()
	require.Equal(t, "quote", tab.Name(symtab.Quote))
	require.Equal(t, "lambda", tab.Name(symtab.Lambda))
	require.Equal(t, "call/cc", tab.Name(symtab.CallCC))
}
