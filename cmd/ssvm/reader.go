package main

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/ssvm/ssvm/internal/ast"
	"github.com/ssvm/ssvm/internal/symtab"
)

// The S-expression lexer/parser is spec.md §1's explicit external
// collaborator ("compiler input: a sequence of datums"); internal/ast's
// own doc comment says as much. This reader is not a core component —
// it lives here, in the CLI, as the minimum glue needed to turn a file
// on disk into the ast.Datum trees the resolver actually consumes.
// Dotted-pair notation and character literals are not supported; every
// scenario in spec.md §8 parses without them.
type reader struct {
	src     []rune
	pos     int
	symbols *symtab.Table
}

func readAll(src string, symbols *symtab.Table) ([]ast.Datum, error) {
	r := &reader{src: []rune(src), symbols: symbols}
	var out []ast.Datum
	for {
		r.skipSpace()
		if r.atEnd() {
			return out, nil
		}
		d, err := r.datum()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
}

func (r *reader) atEnd() bool { return r.pos >= len(r.src) }

func (r *reader) peek() rune {
	if r.atEnd() {
		return 0
	}
	return r.src[r.pos]
}

func (r *reader) advance() rune {
	ch := r.src[r.pos]
	r.pos++
	return ch
}

func (r *reader) skipSpace() {
	for !r.atEnd() {
		ch := r.peek()
		switch {
		case ch == ';':
			for !r.atEnd() && r.peek() != '\n' {
				r.pos++
			}
		case unicode.IsSpace(ch):
			r.pos++
		default:
			return
		}
	}
}

func isDelim(ch rune) bool {
	return ch == 0 || ch == '(' || ch == ')' || ch == '"' || ch == ';' || unicode.IsSpace(ch)
}

func (r *reader) datum() (ast.Datum, error) {
	r.skipSpace()
	if r.atEnd() {
		return nil, fmt.Errorf("reader: unexpected end of input")
	}
	switch ch := r.peek(); {
	case ch == '(':
		r.advance()
		return r.list()
	case ch == ')':
		return nil, fmt.Errorf("reader: unexpected )")
	case ch == '\'':
		r.advance()
		inner, err := r.datum()
		if err != nil {
			return nil, err
		}
		quote := ast.Sym{ID: r.symbols.Intern("quote")}
		return ast.List(quote, inner), nil
	case ch == '"':
		return r.stringLiteral()
	case ch == '#':
		return r.hashForm()
	default:
		return r.atom()
	}
}

func (r *reader) list() (ast.Datum, error) {
	var items []ast.Datum
	for {
		r.skipSpace()
		if r.atEnd() {
			return nil, fmt.Errorf("reader: unterminated list")
		}
		if r.peek() == ')' {
			r.advance()
			return ast.List(items...), nil
		}
		d, err := r.datum()
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
}

func (r *reader) stringLiteral() (ast.Datum, error) {
	r.advance() // opening quote
	var b strings.Builder
	for {
		if r.atEnd() {
			return nil, fmt.Errorf("reader: unterminated string literal")
		}
		ch := r.advance()
		if ch == '"' {
			return ast.Str{Value: b.String()}, nil
		}
		if ch == '\\' && !r.atEnd() {
			switch esc := r.advance(); esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteRune(esc)
			}
			continue
		}
		b.WriteRune(ch)
	}
}

func (r *reader) hashForm() (ast.Datum, error) {
	r.advance() // '#'
	switch ch := r.peek(); {
	case ch == 't':
		r.advance()
		return ast.Bool{Value: true}, nil
	case ch == 'f':
		r.advance()
		return ast.Bool{Value: false}, nil
	case ch == '(':
		r.advance()
		list, err := r.list()
		if err != nil {
			return nil, err
		}
		items, _ := ast.Slice(list)
		return ast.Vec{Items: items}, nil
	default:
		return nil, fmt.Errorf("reader: unrecognized # syntax %q", ch)
	}
}

func (r *reader) atom() (ast.Datum, error) {
	start := r.pos
	for !r.atEnd() && !isDelim(r.peek()) {
		r.advance()
	}
	text := string(r.src[start:r.pos])
	if text == "" {
		return nil, fmt.Errorf("reader: empty atom at offset %d", start)
	}
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return ast.Int{Value: n}, nil
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return ast.Flo{Value: f}, nil
	}
	return ast.Sym{ID: r.symbols.Intern(text)}, nil
}
