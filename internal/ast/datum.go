// Package ast is the minimal S-expression datum representation that
// sits at the boundary spec.md §6 describes: "Compiler input: a
// sequence of datums per 'subroutine' ... Each datum is a tree over the
// recognized atomic kinds and the pair and vector constructors." The
// lexer/parser and macro expander that would normally produce these
// datums are external collaborators (spec.md §1); this package is the
// shape their output is assumed to have.
package ast

import "github.com/ssvm/ssvm/internal/symtab"

// Datum is any node in a parsed-and-expanded S-expression tree.
type Datum interface{ isDatum() }

// Sym is a symbol reference or syntactic keyword occurrence.
type Sym struct{ ID symtab.ID }

// Int is an exact integer literal.
type Int struct{ Value int64 }

// Flo is an inexact (floating point) literal.
type Flo struct{ Value float64 }

// Bool is a boolean literal.
type Bool struct{ Value bool }

// Str is a string literal.
type Str struct{ Value string }

// Nil is the empty list.
type Nil struct{}

// Pair is a cons cell: the spine of every special form and application.
type Pair struct{ Car, Cdr Datum }

// Vec is a literal vector.
type Vec struct{ Items []Datum }

func (Sym) isDatum()  {}
func (Int) isDatum()  {}
func (Flo) isDatum()  {}
func (Bool) isDatum() {}
func (Str) isDatum()  {}
func (Nil) isDatum()  {}
func (Pair) isDatum() {}
func (Vec) isDatum()  {}

// List builds a proper list terminated by Nil{} from items, the way the
// parser would after reading `(a b c)`.
func List(items ...Datum) Datum {
	var out Datum = Nil{}
	for i := len(items) - 1; i >= 0; i-- {
		out = Pair{Car: items[i], Cdr: out}
	}
	return out
}

// Slice flattens a proper list back into a Go slice. ok is false if d is
// not a proper list (the spine does not end in Nil{}).
func Slice(d Datum) (items []Datum, ok bool) {
	for {
		switch v := d.(type) {
		case Nil:
			return items, true
		case Pair:
			items = append(items, v.Car)
			d = v.Cdr
		default:
			return items, false
		}
	}
}
