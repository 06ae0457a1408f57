package scope_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ssvm/ssvm/internal/ast"
	"github.com/ssvm/ssvm/internal/scope"
	"github.com/ssvm/ssvm/internal/symtab"
	"github.com/ssvm/ssvm/internal/vcode"
)

func newResolver(t *testing.T) (*scope.Resolver, *symtab.Table) {
	t.Helper()
	tab := symtab.New()
	code := vcode.New()
	return scope.New(code, tab, map[symtab.ID]int{}), tab
}

func sym(tab *symtab.Table, name string) ast.Sym { return ast.Sym{ID: tab.Intern(name)} }

// TestTotality exercises spec.md §8's resolver totality property: every
// free identifier in an accepted expression resolves to exactly one of
// local/free/global, and a reference to an unbound name is rejected.
func TestTotality(t *testing.T) {
	r, tab := newResolver(t)

	// (define x 10)
	define := ast.List(sym(tab, "define"), sym(tab, "x"), ast.Int{Value: 10})
	prog, err := r.ResolveProgram([]ast.Datum{define})
	require.NoError(t, err)
	require.Len(t, prog.Forms, 1)

	def, ok := prog.Forms[0].(scope.Define)
	require.True(t, ok)
	require.Equal(t, scope.ScopeGlobal, def.Scope)

	// (lambda (y) x) -- x must resolve to Global from inside the lambda.
	lambda := ast.List(sym(tab, "lambda"), ast.List(sym(tab, "y")), sym(tab, "x"))
	node, err := r.ResolveProgram([]ast.Datum{lambda})
	require.NoError(t, err)
	lam := node.Forms[0].(scope.Lambda)
	ref, ok := lam.Body.(scope.Reference)
	require.True(t, ok)
	require.Equal(t, scope.ScopeGlobal, ref.Scope)

	// referencing an unbound name is an error.
	bad := sym(tab, "undefined-name")
	_, err = r.ResolveProgram([]ast.Datum{bad})
	require.Error(t, err)
}

// TestRedefinitionAtTopLevelIsRejected checks the define policy from
// spec.md §4.5.
func TestRedefinitionAtTopLevelIsRejected(t *testing.T) {
	r, tab := newResolver(t)
	define := ast.List(sym(tab, "define"), sym(tab, "x"), ast.Int{Value: 1})
	_, err := r.ResolveProgram([]ast.Datum{define, define})
	require.Error(t, err)
}

// TestCapturedMutatedLocalNeedsBox exercises the box-insertion decision:
// a local that is both captured by an inner lambda and set!-assigned
// must be flagged for boxing (spec.md §4.6 Box pass).
func TestCapturedMutatedLocalNeedsBox(t *testing.T) {
	r, tab := newResolver(t)

	// (lambda (x) (lambda (y) (set! x y)))
	inner := ast.List(sym(tab, "lambda"), ast.List(sym(tab, "y")),
		ast.List(sym(tab, "set!"), sym(tab, "x"), sym(tab, "y")))
	outer := ast.List(sym(tab, "lambda"), ast.List(sym(tab, "x")), inner)

	prog, err := r.ResolveProgram([]ast.Datum{outer})
	require.NoError(t, err)

	outerLam := prog.Forms[0].(scope.Lambda)
	innerLam := outerLam.Body.(scope.Lambda)

	require.Len(t, innerLam.Frees, 1)
	require.True(t, innerLam.Frees[0].Mutated)

	mut, ok := innerLam.Body.(scope.Mutation)
	require.True(t, ok)
	require.Equal(t, scope.ScopeFree, mut.Scope)
}

// TestMultiLevelCaptureThreadsThroughEveryFrame checks that a variable
// captured three lambdas deep is threaded as a Free reference at every
// intermediate level, not just the innermost one.
func TestMultiLevelCaptureThreadsThroughEveryFrame(t *testing.T) {
	r, tab := newResolver(t)

	// (lambda (x) (lambda (a) (lambda (b) x)))
	innermost := ast.List(sym(tab, "lambda"), ast.List(sym(tab, "b")), sym(tab, "x"))
	middle := ast.List(sym(tab, "lambda"), ast.List(sym(tab, "a")), innermost)
	outer := ast.List(sym(tab, "lambda"), ast.List(sym(tab, "x")), middle)

	prog, err := r.ResolveProgram([]ast.Datum{outer})
	require.NoError(t, err)

	outerLam := prog.Forms[0].(scope.Lambda)
	middleLam := outerLam.Body.(scope.Lambda)
	require.Len(t, middleLam.Frees, 1)
	_, isRefInMiddle := middleLam.Frees[0].Access.(scope.Reference)
	require.True(t, isRefInMiddle)

	innerLam := middleLam.Body.(scope.Lambda)
	require.Len(t, innerLam.Frees, 1)
	ref, ok := innerLam.Body.(scope.Reference)
	require.True(t, ok)
	require.Equal(t, scope.ScopeFree, ref.Scope)
}

// TestLetAndLetStarAndLetrec checks the three binding-form sugars
// desugar without error and letrec permits mutual self-reference.
func TestLetAndLetStarAndLetrec(t *testing.T) {
	r, tab := newResolver(t)

	let := ast.List(sym(tab, "let"),
		ast.List(ast.List(sym(tab, "x"), ast.Int{Value: 1})),
		sym(tab, "x"))
	_, err := r.ResolveProgram([]ast.Datum{let})
	require.NoError(t, err)

	r2, tab2 := newResolver(t)
	letStar := ast.List(sym(tab2, "let*"),
		ast.List(
			ast.List(sym(tab2, "x"), ast.Int{Value: 1}),
			ast.List(sym(tab2, "y"), sym(tab2, "x")),
		),
		sym(tab2, "y"))
	_, err = r2.ResolveProgram([]ast.Datum{letStar})
	require.NoError(t, err)

	r3, tab3 := newResolver(t)
	letrec := ast.List(sym(tab3, "letrec"),
		ast.List(
			ast.List(sym(tab3, "even?"), ast.Bool{Value: true}),
			ast.List(sym(tab3, "odd?"), sym(tab3, "even?")),
		),
		sym(tab3, "odd?"))
	_, err = r3.ResolveProgram([]ast.Datum{letrec})
	require.NoError(t, err)
}

// TestPInvokeUnknownNameIsScopeError checks that p/invoke names are
// resolved against the platform table at scope-resolution time.
func TestPInvokeUnknownNameIsScopeError(t *testing.T) {
	tab := symtab.New()
	code := vcode.New()
	plusID := tab.Intern("+")
	r := scope.New(code, tab, map[symtab.ID]int{plusID: 0})

	ok := ast.List(sym(tab, "p/invoke"), sym(tab, "+"), ast.Int{Value: 1}, ast.Int{Value: 2})
	prog, err := r.ResolveProgram([]ast.Datum{ok})
	require.NoError(t, err)
	pi := prog.Forms[0].(scope.PInvoke)
	require.Equal(t, 0, pi.ProcID)
	require.Len(t, pi.Args, 2)

	bad := ast.List(sym(tab, "p/invoke"), sym(tab, "nonexistent"))
	_, err = r.ResolveProgram([]ast.Datum{bad})
	require.Error(t, err)
}
