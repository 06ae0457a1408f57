// Package diag implements the single sum-typed error described in
// spec.md §7: "A single sum-typed error carrying kind + message +
// optional source location is raised and propagated to the VM entry
// point." It is used by the scope resolver and compiler (kinds 2-3;
// scope errors are built with At, compile errors with New and no
// span); the VM's own runtime and resource
// errors (kinds 4-6) remain teacher-style sentinel errors wrapped with
// github.com/pkg/errors, and are bridged into a diag.Report by
// AsReport so that cmd/ssvm has one formatting path for both families.
package diag

import (
	"fmt"
	"strings"

	"github.com/ssvm/ssvm/internal/heap"
)

// Kind classifies an Error, following spec.md §7's numbered list.
type Kind int

const (
	KindScope Kind = iota + 1
	KindCompile
	KindRuntimeType
	KindRuntimeLookup
	KindResource
)

func (k Kind) String() string {
	switch k {
	case KindScope:
		return "scope"
	case KindCompile:
		return "compile"
	case KindRuntimeType:
		return "runtime-type"
	case KindRuntimeLookup:
		return "runtime-lookup"
	case KindResource:
		return "resource"
	default:
		return "unknown"
	}
}

// Error is the sum-typed diagnostic spec.md §7 asks for.
type Error struct {
	Kind    Kind
	Message string
	Span    *heap.Span // optional source location
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Span == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s:%d:%d)", e.Kind, e.Message, e.Span.File, e.Span.Line, e.Span.Col)
}

// New constructs an Error with no source span.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// At constructs an Error carrying a source span.
func At(kind Kind, span heap.Span, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Span: &span}
}

// Report is the user-visible rendering described in spec.md §7: "a
// single-line ERROR: prefix followed by the message; multi-line
// messages have subsequent lines indented consistently."
type Report string

// AsReport renders any error, diag.Error or otherwise, in the
// ERROR:-prefixed, indented-continuation format spec.md §7 requires.
func AsReport(err error) Report {
	lines := strings.Split(err.Error(), "\n")
	var b strings.Builder
	b.WriteString("ERROR: ")
	b.WriteString(lines[0])
	for _, l := range lines[1:] {
		b.WriteString("\n    ")
		b.WriteString(l)
	}
	return Report(b.String())
}
