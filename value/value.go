// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package value implements the runtime value representation
// consumed and produced by the evaluator (eval). Values carry
// no column names at runtime; column identity is positional,
// tracked separately by coltrees computed at compile time.
package value

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// Kind identifies a Value variant.
type Kind int

const (
	KindNil Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindDistinguisher
	KindLambda
	KindPathElement
	KindStruct
	KindTuple
	KindSet
	KindSequence
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindDistinguisher:
		return "distinguisher"
	case KindLambda:
		return "lambda"
	case KindPathElement:
		return "pathelement"
	case KindStruct:
		return "struct"
	case KindTuple:
		return "tuple"
	case KindSet:
		return "set"
	case KindSequence:
		return "sequence"
	}
	return "<unknown>"
}

// Value is the external value interface (§3.5, §6.3 of the spec).
//
// A Value is observed via Kind plus a type switch on the
// concrete variant; there is no separate accessor interface
// because the variant set is small and closed.
type Value interface {
	Kind() Kind
	// Clone returns a deep copy of the receiver; the evaluator
	// never mutates a Value shared with another binding.
	Clone() Value
	// Equal reports whether two values are equal under
	// PQL equality (§4.9's "X = Y" semantics).
	Equal(Value) bool
	// Compare orders two values of compatible kind; used by
	// Order/Uniq. Returns 0 for equal, <0, or >0.
	Compare(Value) int
	String() string
}

// Nil is the PQL nil value. Binary arithmetic/comparison
// operators propagate Nil rather than erroring (§7, §8).
type Nil struct{}

func (Nil) Kind() Kind         { return KindNil }
func (Nil) Clone() Value       { return Nil{} }
func (Nil) String() string     { return "nil" }
func (Nil) Equal(o Value) bool { _, ok := o.(Nil); return ok }
func (Nil) Compare(o Value) int {
	if _, ok := o.(Nil); ok {
		return 0
	}
	return -1
}

type Bool bool

func (b Bool) Kind() Kind   { return KindBool }
func (b Bool) Clone() Value { return b }
func (b Bool) String() string {
	if b {
		return "true"
	}
	return "false"
}
func (b Bool) Equal(o Value) bool { v, ok := o.(Bool); return ok && v == b }
func (b Bool) Compare(o Value) int {
	v, ok := o.(Bool)
	if !ok {
		return -1
	}
	if b == v {
		return 0
	}
	if !b {
		return -1
	}
	return 1
}

type Int int64

func (i Int) Kind() Kind       { return KindInt }
func (i Int) Clone() Value     { return i }
func (i Int) String() string   { return strconv.FormatInt(int64(i), 10) }
func (i Int) Equal(o Value) bool {
	switch v := o.(type) {
	case Int:
		return v == i
	case Float:
		return float64(v) == float64(i)
	}
	return false
}
func (i Int) Compare(o Value) int {
	switch v := o.(type) {
	case Int:
		return cmpInt64(int64(i), int64(v))
	case Float:
		return cmpFloat64(float64(i), float64(v))
	}
	return -1
}

type Float float64

func (f Float) Kind() Kind     { return KindFloat }
func (f Float) Clone() Value   { return f }
func (f Float) String() string { return strconv.FormatFloat(float64(f), 'g', -1, 64) }
func (f Float) Equal(o Value) bool {
	switch v := o.(type) {
	case Float:
		return v == f
	case Int:
		return float64(v) == float64(f)
	}
	return false
}
func (f Float) Compare(o Value) int {
	switch v := o.(type) {
	case Float:
		return cmpFloat64(float64(f), float64(v))
	case Int:
		return cmpFloat64(float64(f), float64(v))
	}
	return -1
}

type String string

func (s String) Kind() Kind       { return KindString }
func (s String) Clone() Value     { return s }
func (s String) String() string   { return string(s) }
func (s String) Equal(o Value) bool { v, ok := o.(String); return ok && v == s }
func (s String) Compare(o Value) int {
	v, ok := o.(String)
	if !ok {
		return -1
	}
	switch {
	case s < v:
		return -1
	case s > v:
		return 1
	default:
		return 0
	}
}

// Distinguisher is an opaque, unique token appended to rows
// to defeat duplicate elimination (§4.6 Distinguish, GLOSSARY).
// Two Distinguishers are equal only if minted from the same
// underlying UUID.
type Distinguisher struct {
	id uuid.UUID
}

// NewDistinguisher mints a fresh, globally-unique distinguisher.
func NewDistinguisher() Distinguisher {
	return Distinguisher{id: uuid.New()}
}

func (d Distinguisher) Kind() Kind     { return KindDistinguisher }
func (d Distinguisher) Clone() Value   { return d }
func (d Distinguisher) String() string { return "#" + d.id.String() }
func (d Distinguisher) Equal(o Value) bool {
	v, ok := o.(Distinguisher)
	return ok && v.id == d.id
}
func (d Distinguisher) Compare(o Value) int {
	v, ok := o.(Distinguisher)
	if !ok {
		return -1
	}
	if d.id == v.id {
		return 0
	}
	if d.id.String() < v.id.String() {
		return -1
	}
	return 1
}

// PathElement is the triple (leftObj, edgeName, rightObj)
// describing one traversed graph edge (§3.5, GLOSSARY).
type PathElement struct {
	Left  Value
	Edge  string
	Right Value
}

func (p PathElement) Kind() Kind   { return KindPathElement }
func (p PathElement) Clone() Value { return PathElement{p.Left.Clone(), p.Edge, p.Right.Clone()} }
func (p PathElement) String() string {
	return fmt.Sprintf("(%s -%s-> %s)", p.Left, p.Edge, p.Right)
}
func (p PathElement) Equal(o Value) bool {
	v, ok := o.(PathElement)
	return ok && v.Edge == p.Edge && v.Left.Equal(p.Left) && v.Right.Equal(p.Right)
}
func (p PathElement) Compare(o Value) int {
	v, ok := o.(PathElement)
	if !ok {
		return -1
	}
	if c := p.Left.Compare(v.Left); c != 0 {
		return c
	}
	if p.Edge != v.Edge {
		if p.Edge < v.Edge {
			return -1
		}
		return 1
	}
	return p.Right.Compare(v.Right)
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpFloat64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
