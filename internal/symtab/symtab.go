// Package symtab implements the process-wide interned-symbol table.
//
// The table is a bijection between strings and small, dense integer ids.
// It is append-only: once a string has been interned its id is stable for
// the remainder of the process. A small set of well-known ids (quote,
// lambda, if, ...) is interned on the first call to WellKnown, into a
// shared table of its own, and cached in package-level ID variables.
package symtab

import (
	"sync"

	"github.com/dolthub/swiss"
)

// ID is a dense, append-only symbol identifier.
type ID uint32

// Table is a bijection between strings and symbol ids.
//
// A Table is safe for concurrent use: Intern, Name and Len each take
// the mutex below. The VM itself is single-threaded (see pkg/vm), so
// the lock is normally uncontended.
type Table struct {
	mu    sync.Mutex
	names []string
	ids   *swiss.Map[string, ID]
}

// New creates an empty symbol table.
func New() *Table {
	return &Table{
		ids: swiss.NewMap[string, ID](64),
	}
}

// Intern maps s to an id, allocating a new one if s has not been seen
// before. Intern is idempotent: interning the same string twice returns
// the same id.
func (t *Table) Intern(s string) ID {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.ids.Get(s); ok {
		return id
	}
	id := ID(len(t.names))
	t.names = append(t.names, s)
	t.ids.Put(s, id)
	return id
}

// Name returns the string that was interned under id. It panics if id is
// out of range, which indicates a compiler or VM bug rather than a
// recoverable runtime condition.
func (t *Table) Name(id ID) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.names[id]
}

// Len returns the number of interned symbols.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.names)
}

// Well-known returns the global table used to resolve the fixed set of
// syntactic keywords. It is initialized lazily, once, behind sync.Once,
// per the "process-wide append-only structure" design note in spec.md §9.
var (
	wellKnownOnce sync.Once
	wellKnown     *Table

	Quote    ID
	Lambda   ID
	If       ID
	SetBang  ID
	CallCC   ID
	Define   ID
	Begin    ID
	PInvoke  ID
	Refer    ID
	Local    ID
	Free     ID
	Global   ID
	Let      ID
	LetStar  ID
	Letrec   ID
	Mutation ID
)

// WellKnown returns the shared table holding the fixed set of syntactic
// keywords, interning them on first use.
func WellKnown() *Table {
	wellKnownOnce.Do(func() {
		wellKnown = New()
		Quote = wellKnown.Intern("quote")
		Lambda = wellKnown.Intern("lambda")
		If = wellKnown.Intern("if")
		SetBang = wellKnown.Intern("set!")
		CallCC = wellKnown.Intern("call/cc")
		Define = wellKnown.Intern("define")
		Begin = wellKnown.Intern("begin")
		PInvoke = wellKnown.Intern("p/invoke")
		Refer = wellKnown.Intern("reference")
		Local = wellKnown.Intern("local")
		Free = wellKnown.Intern("free")
		Global = wellKnown.Intern("global")
		Let = wellKnown.Intern("let")
		LetStar = wellKnown.Intern("let*")
		Letrec = wellKnown.Intern("letrec")
		Mutation = wellKnown.Intern("mutation")
	})
	return wellKnown
}
