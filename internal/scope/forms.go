package scope

import (
	"github.com/ssvm/ssvm/internal/ast"
	"github.com/ssvm/ssvm/internal/diag"
	"github.com/ssvm/ssvm/internal/heap"
	"github.com/ssvm/ssvm/internal/symtab"
)

// keywords are interned in the Resolver's OWN symbol table, never read
// from symtab.WellKnown's singleton table: two symtab.Table instances
// assign ids by insertion order, so a keyword's id is only comparable
// against datums produced against that same table.
type keywords struct {
	quote, lambda, if_, setBang, callcc, define, begin, pinvoke symtab.ID
	let, letStar, letrec                                        symtab.ID
}

func internKeywords(t *symtab.Table) keywords {
	return keywords{
		quote:   t.Intern("quote"),
		lambda:  t.Intern("lambda"),
		if_:     t.Intern("if"),
		setBang: t.Intern("set!"),
		callcc:  t.Intern("call/cc"),
		define:  t.Intern("define"),
		begin:   t.Intern("begin"),
		pinvoke: t.Intern("p/invoke"),
		let:     t.Intern("let"),
		letStar: t.Intern("let*"),
		letrec:  t.Intern("letrec"),
	}
}

func scopeErrorUndefined(t *symtab.Table, sym symtab.ID, span heap.Span) error {
	return diag.At(diag.KindScope, span, "symbol %q used but not defined", t.Name(sym))
}

func scopeErrorRedefined(t *symtab.Table, sym symtab.ID, span heap.Span, global bool) error {
	kind := "local"
	if global {
		kind = "global"
	}
	return diag.At(diag.KindScope, span, "%s %q redefined in the same scope", kind, t.Name(sym))
}

func scopeErrorMalformed(span heap.Span, form, reason string) error {
	return diag.At(diag.KindScope, span, "malformed %s: %s", form, reason)
}

// headSymbol reports whether d is a non-empty list whose first element
// is the symbol sym.
func (r *Resolver) headSymbol(d ast.Datum, sym symtab.ID) (rest []ast.Datum, ok bool) {
	p, isPair := d.(ast.Pair)
	if !isPair {
		return nil, false
	}
	s, isSym := p.Car.(ast.Sym)
	if !isSym || s.ID != sym {
		return nil, false
	}
	rest, proper := ast.Slice(p.Cdr)
	if !proper {
		return nil, false
	}
	return rest, true
}

// resolve dispatches on d's shape, per spec.md §4.6's per-form lowering
// table.
func (r *Resolver) resolve(d ast.Datum) (Node, error) {
	switch v := d.(type) {
	case ast.Sym:
		return r.refer(v.ID, heap.Span{}, false)
	case ast.Int, ast.Flo, ast.Bool, ast.Str, ast.Nil, ast.Vec:
		return Const{Datum: d}, nil
	case ast.Pair:
		return r.resolvePair(v)
	default:
		return nil, scopeErrorMalformed(heap.Span{}, "expression", "unrecognized datum")
	}
}

func (r *Resolver) resolvePair(p ast.Pair) (Node, error) {
	kw := r.kw

	if rest, ok := r.headSymbol(p, kw.quote); ok {
		if len(rest) != 1 {
			return nil, scopeErrorMalformed(heap.Span{}, "quote", "expected exactly one datum")
		}
		return Quote{Datum: rest[0]}, nil
	}
	if rest, ok := r.headSymbol(p, kw.if_); ok {
		return r.resolveIf(rest)
	}
	if rest, ok := r.headSymbol(p, kw.setBang); ok {
		return r.resolveSetBang(rest)
	}
	if rest, ok := r.headSymbol(p, kw.lambda); ok {
		return r.resolveLambda(rest, "")
	}
	if rest, ok := r.headSymbol(p, kw.callcc); ok {
		if len(rest) != 1 {
			return nil, scopeErrorMalformed(heap.Span{}, "call/cc", "expected exactly one operand")
		}
		proc, err := r.resolve(rest[0])
		if err != nil {
			return nil, err
		}
		return CallCC{Proc: proc}, nil
	}
	if rest, ok := r.headSymbol(p, kw.begin); ok {
		return r.resolveBegin(rest)
	}
	if rest, ok := r.headSymbol(p, kw.pinvoke); ok {
		return r.resolvePInvoke(rest)
	}
	if rest, ok := r.headSymbol(p, kw.define); ok {
		return r.resolveDefine(rest)
	}
	if rest, ok := r.headSymbol(p, kw.let); ok {
		return r.resolveLet(rest)
	}
	if rest, ok := r.headSymbol(p, kw.letStar); ok {
		return r.resolveLetStar(rest)
	}
	if rest, ok := r.headSymbol(p, kw.letrec); ok {
		return r.resolveLetrec(rest)
	}

	return r.resolveApply(p)
}

func (r *Resolver) resolveIf(rest []ast.Datum) (Node, error) {
	if len(rest) != 2 && len(rest) != 3 {
		return nil, scopeErrorMalformed(heap.Span{}, "if", "expected (if test then [else])")
	}
	cond, err := r.resolve(rest[0])
	if err != nil {
		return nil, err
	}
	then, err := r.resolve(rest[1])
	if err != nil {
		return nil, err
	}
	var els Node = Const{Datum: ast.Bool{Value: false}}
	if len(rest) == 3 {
		els, err = r.resolve(rest[2])
		if err != nil {
			return nil, err
		}
	}
	return If{Cond: cond, Then: then, Else: els}, nil
}

func (r *Resolver) resolveSetBang(rest []ast.Datum) (Node, error) {
	if len(rest) != 2 {
		return nil, scopeErrorMalformed(heap.Span{}, "set!", "expected (set! var value)")
	}
	sym, ok := rest[0].(ast.Sym)
	if !ok {
		return nil, scopeErrorMalformed(heap.Span{}, "set!", "target must be a symbol")
	}
	target, err := r.refer(sym.ID, heap.Span{}, true)
	if err != nil {
		return nil, err
	}
	ref, isRef := target.(Reference)
	if !isRef {
		return nil, scopeErrorMalformed(heap.Span{}, "set!", "target did not resolve to a reference")
	}
	val, err := r.resolve(rest[1])
	if err != nil {
		return nil, err
	}
	return Mutation{Scope: ref.Scope, ID: ref.ID, Value: val}, nil
}

// resolveBegin resolves a sequence of forms, collapsing a single-form
// sequence to a bare node rather than wrapping it in a degenerate
// Begin — lambda and let bodies are the common caller of this, and
// almost always have exactly one form.
func (r *Resolver) resolveBegin(rest []ast.Datum) (Node, error) {
	exprs := make([]Node, 0, len(rest))
	for _, d := range rest {
		n, err := r.resolve(d)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, n)
	}
	if len(exprs) == 1 {
		return exprs[0], nil
	}
	return Begin{Exprs: exprs}, nil
}

func (r *Resolver) resolvePInvoke(rest []ast.Datum) (Node, error) {
	if len(rest) < 1 {
		return nil, scopeErrorMalformed(heap.Span{}, "p/invoke", "expected a procedure name")
	}
	sym, ok := rest[0].(ast.Sym)
	if !ok {
		return nil, scopeErrorMalformed(heap.Span{}, "p/invoke", "procedure name must be a symbol")
	}
	procID, known := r.platform[sym.ID]
	if !known {
		return nil, scopeErrorUndefined(r.symbols, sym.ID, heap.Span{})
	}
	args := make([]Node, 0, len(rest)-1)
	for _, d := range rest[1:] {
		n, err := r.resolve(d)
		if err != nil {
			return nil, err
		}
		args = append(args, n)
	}
	return PInvoke{ProcID: procID, Name: r.symbols.Name(sym.ID), Args: args}, nil
}

// resolveDefine handles both `(define name value)` and the procedure
// shorthand `(define (name . formals) body...)`, normalized to
// `(define name (lambda formals body...))` before resolution, per
// spec.md §4.5 "Define behavior". The name is defined before the body
// is resolved, so a procedure may refer to itself.
func (r *Resolver) resolveDefine(rest []ast.Datum) (Node, error) {
	if len(rest) < 1 {
		return nil, scopeErrorMalformed(heap.Span{}, "define", "expected at least a name")
	}
	if headPair, isPair := rest[0].(ast.Pair); isPair {
		nameSym, ok := headPair.Car.(ast.Sym)
		if !ok {
			return nil, scopeErrorMalformed(heap.Span{}, "define", "procedure name must be a symbol")
		}
		formals, proper := ast.Slice(headPair.Cdr)
		if !proper {
			return nil, scopeErrorMalformed(heap.Span{}, "define", "formal-parameter list must be proper")
		}
		scopeKind, id, err := r.define(nameSym.ID, heap.Span{}, "")
		if err != nil {
			return nil, err
		}
		lambdaRest := append([]ast.Datum{ast.List(formals...)}, rest[1:]...)
		val, err := r.resolveLambda(lambdaRest, r.symbols.Name(nameSym.ID))
		if err != nil {
			return nil, err
		}
		return Define{Scope: scopeKind, ID: id, Value: val, Name: r.symbols.Name(nameSym.ID)}, nil
	}

	nameSym, ok := rest[0].(ast.Sym)
	if !ok {
		return nil, scopeErrorMalformed(heap.Span{}, "define", "name must be a symbol")
	}
	if len(rest) > 2 {
		return nil, scopeErrorMalformed(heap.Span{}, "define", "expected (define name value)")
	}
	scopeKind, id, err := r.define(nameSym.ID, heap.Span{}, "")
	if err != nil {
		return nil, err
	}
	var val Node = Const{Datum: ast.Nil{}}
	if len(rest) == 2 {
		val, err = r.resolve(rest[1])
		if err != nil {
			return nil, err
		}
	}
	return Define{Scope: scopeKind, ID: id, Value: val, Name: r.symbols.Name(nameSym.ID)}, nil
}

// resolveLambda resolves `(lambda formals body...)`, where formals is
// a proper list of symbols (fixed arity); variadic rest parameters are
// not supported.
func (r *Resolver) resolveLambda(rest []ast.Datum, name string) (Node, error) {
	if len(rest) < 1 {
		return nil, scopeErrorMalformed(heap.Span{}, "lambda", "expected (lambda formals body...)")
	}
	formals, proper := ast.Slice(rest[0])
	if !proper {
		return nil, scopeErrorMalformed(heap.Span{}, "lambda", "formal-parameter list must be proper")
	}

	fr := r.pushFrame()
	for _, fd := range formals {
		sym, ok := fd.(ast.Sym)
		if !ok {
			r.popFrame()
			return nil, scopeErrorMalformed(heap.Span{}, "lambda", "formal parameters must be symbols")
		}
		if _, fresh := fr.defineLocal(sym.ID); !fresh {
			r.popFrame()
			return nil, scopeErrorRedefined(r.symbols, sym.ID, heap.Span{}, false)
		}
	}

	body, err := r.resolveBegin(rest[1:])
	if err != nil {
		r.popFrame()
		return nil, err
	}
	r.popFrame()

	return Lambda{
		NFormals:     len(formals),
		BoxedFormals: boxedFormals(fr.locals),
		Frees:        fr.free,
		Body:         body,
		Name:         name,
	}, nil
}

func (r *Resolver) resolveApply(p ast.Pair) (Node, error) {
	items, proper := ast.Slice(p)
	if !proper || len(items) == 0 {
		return nil, scopeErrorMalformed(heap.Span{}, "application", "improper or empty combination")
	}
	// A call whose head names a registered platform procedure not
	// shadowed by a local or global binding lowers to p/invoke.
	if s, isSym := items[0].(ast.Sym); isSym {
		_, isPlatform := r.platform[s.ID]
		_, bound := r.code.LookupGlobal(s.ID)
		for _, fr := range r.stack {
			if _, ok := fr.byName[s.ID]; ok {
				bound = true
			}
		}
		if isPlatform && !bound {
			return r.resolvePInvoke(items)
		}
	}
	fn, err := r.resolve(items[0])
	if err != nil {
		return nil, err
	}
	args := make([]Node, 0, len(items)-1)
	for _, d := range items[1:] {
		n, err := r.resolve(d)
		if err != nil {
			return nil, err
		}
		args = append(args, n)
	}
	return Apply{Fn: fn, Args: args}, nil
}

// resolveLet desugars `(let ((x1 v1) ...) body...)` into an immediate
// application of a lambda, the standard Scheme expansion.
func (r *Resolver) resolveLet(rest []ast.Datum) (Node, error) {
	if len(rest) < 1 {
		return nil, scopeErrorMalformed(heap.Span{}, "let", "expected (let (bindings...) body...)")
	}
	names, inits, err := r.parseBindings(rest[0])
	if err != nil {
		return nil, err
	}
	lambdaRest := append([]ast.Datum{ast.List(names...)}, rest[1:]...)
	lambda, err := r.resolveLambda(lambdaRest, "")
	if err != nil {
		return nil, err
	}
	argNodes := make([]Node, 0, len(inits))
	for _, in := range inits {
		n, err := r.resolve(in)
		if err != nil {
			return nil, err
		}
		argNodes = append(argNodes, n)
	}
	return Apply{Fn: lambda, Args: argNodes}, nil
}

// resolveLetStar desugars `(let* ((x1 v1) (x2 v2) ...) body...)` into
// nested single-binding lets, each init evaluated in scope of every
// previous binding: `(let ((x1 v1)) (let ((x2 v2)) ... body...))`.
func (r *Resolver) resolveLetStar(rest []ast.Datum) (Node, error) {
	if len(rest) < 1 {
		return nil, scopeErrorMalformed(heap.Span{}, "let*", "expected (let* (bindings...) body...)")
	}
	names, inits, err := r.parseBindings(rest[0])
	if err != nil {
		return nil, err
	}
	body := rest[1:]
	if len(names) == 0 {
		return r.resolveBegin(body)
	}
	return r.resolveNestedLet(names, inits, body)
}

// resolveNestedLet resolves one binding at a time as `(let ((name
// init)) <rest nested the same way>)`, implementing let*'s sequential
// scoping directly rather than building and re-walking a desugared
// datum tree.
func (r *Resolver) resolveNestedLet(names, inits []ast.Datum, body []ast.Datum) (Node, error) {
	sym := names[0].(ast.Sym)
	init, err := r.resolve(inits[0])
	if err != nil {
		return nil, err
	}

	fr := r.pushFrame()
	if _, fresh := fr.defineLocal(sym.ID); !fresh {
		r.popFrame()
		return nil, scopeErrorRedefined(r.symbols, sym.ID, heap.Span{}, false)
	}

	var inner Node
	if len(names) == 1 {
		inner, err = r.resolveBegin(body)
	} else {
		inner, err = r.resolveNestedLet(names[1:], inits[1:], body)
	}
	if err != nil {
		r.popFrame()
		return nil, err
	}
	fr = r.popFrame()

	lambda := Lambda{NFormals: 1, BoxedFormals: boxedFormals(fr.locals), Frees: fr.free, Body: inner}
	return Apply{Fn: lambda, Args: []Node{init}}, nil
}

// resolveLetrec desugars `(letrec ((x1 v1) ...) body...)` into the
// standard allocate-then-assign expansion: bind every name to an
// undefined placeholder, set! each to its initializer (now in scope of
// every sibling binding, enabling mutual recursion), then run body.
func (r *Resolver) resolveLetrec(rest []ast.Datum) (Node, error) {
	if len(rest) < 1 {
		return nil, scopeErrorMalformed(heap.Span{}, "letrec", "expected (letrec (bindings...) body...)")
	}
	names, inits, err := r.parseBindings(rest[0])
	if err != nil {
		return nil, err
	}

	fr := r.pushFrame()
	locals := make([]*LocalDef, len(names))
	for i, n := range names {
		sym := n.(ast.Sym)
		d, fresh := fr.defineLocal(sym.ID)
		if !fresh {
			r.popFrame()
			return nil, scopeErrorRedefined(r.symbols, sym.ID, heap.Span{}, false)
		}
		locals[i] = d
	}

	assigns := make([]Node, len(names))
	for i, d := range locals {
		val, err := r.resolve(inits[i])
		if err != nil {
			r.popFrame()
			return nil, err
		}
		d.Mutated = true
		assigns[i] = Mutation{Scope: ScopeLocal, ID: int(d.ID), Value: val}
	}

	bodyNode, err := r.resolveBegin(rest[1:])
	if err != nil {
		r.popFrame()
		return nil, err
	}
	fr = r.popFrame()

	exprs := append(assigns, bodyNode)
	lambda := Lambda{
		NFormals:     len(names),
		BoxedFormals: boxedFormals(fr.locals),
		Frees:        fr.free,
		Body:         Begin{Exprs: exprs},
	}
	args := make([]Node, len(names))
	for i := range args {
		args[i] = Const{Datum: ast.Bool{Value: false}}
	}
	return Apply{Fn: lambda, Args: args}, nil
}

// parseBindings parses a `((x1 v1) (x2 v2) ...)` binding-list datum
// into parallel name/init slices.
func (r *Resolver) parseBindings(d ast.Datum) (names, inits []ast.Datum, err error) {
	items, proper := ast.Slice(d)
	if !proper {
		return nil, nil, scopeErrorMalformed(heap.Span{}, "bindings", "binding list must be proper")
	}
	for _, it := range items {
		pair, proper := ast.Slice(it)
		if !proper || len(pair) != 2 {
			return nil, nil, scopeErrorMalformed(heap.Span{}, "bindings", "each binding must be (name init)")
		}
		if _, ok := pair[0].(ast.Sym); !ok {
			return nil, nil, scopeErrorMalformed(heap.Span{}, "bindings", "binding name must be a symbol")
		}
		names = append(names, pair[0])
		inits = append(inits, pair[1])
	}
	return names, inits, nil
}
