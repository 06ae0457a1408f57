package compiler

import (
	"github.com/ssvm/ssvm/internal/ast"
	"github.com/ssvm/ssvm/internal/value"
)

// datumToValue materializes a datum as a run-time OBJECT, allocating
// compound data (pairs, vectors, strings) in the heap up front: the
// Constant instruction (spec.md §4.7 "Constant v next — a <- v")
// expects an already-built value, not a datum to construct at run
// time.
func (c *Compiler) datumToValue(d ast.Datum) (value.Object, error) {
	switch v := d.(type) {
	case ast.Int:
		obj, ok := value.MakeInteger(v.Value)
		if !ok {
			return 0, compileErr("integer literal %d out of fixnum range", v.Value)
		}
		return obj, nil
	case ast.Flo:
		return c.heap.NewFloat64(v.Value)
	case ast.Bool:
		return value.MakeBool(v.Value), nil
	case ast.Str:
		return c.heap.NewString(v.Value)
	case ast.Nil:
		return value.Null, nil
	case ast.Sym:
		return value.MakeSymbol(uint32(v.ID)), nil
	case ast.Pair:
		car, err := c.datumToValue(v.Car)
		if err != nil {
			return 0, err
		}
		cdr, err := c.datumToValue(v.Cdr)
		if err != nil {
			return 0, err
		}
		return c.heap.NewPair(car, cdr)
	case ast.Vec:
		ref, err := c.heap.NewVector(len(v.Items), value.Null)
		if err != nil {
			return 0, err
		}
		for i, item := range v.Items {
			val, err := c.datumToValue(item)
			if err != nil {
				return 0, err
			}
			c.heap.VectorSet(ref, i, val)
		}
		return ref, nil
	default:
		return 0, compileErr("unrecognized literal datum %T", d)
	}
}
