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

package value

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
)

// Struct is an opaque heap object handle produced by the
// backend (§3.5 "struct (opaque db object)"). The core never
// inspects a Struct's contents directly; it is compared by
// the backend-assigned identity string (typically an object id).
type Struct struct {
	ID string
}

func (s Struct) Kind() Kind       { return KindStruct }
func (s Struct) Clone() Value     { return s }
func (s Struct) String() string   { return "#obj:" + s.ID }
func (s Struct) Equal(o Value) bool { v, ok := o.(Struct); return ok && v.ID == s.ID }
func (s Struct) Compare(o Value) int {
	v, ok := o.(Struct)
	if !ok {
		return -1
	}
	switch {
	case s.ID < v.ID:
		return -1
	case s.ID > v.ID:
		return 1
	default:
		return 0
	}
}

// Lambda is a held tuple-calculus expression; it is never
// returned from or stored in the graph (§3.5). LambdaExpr is
// left as an opaque interface{} here because the concrete
// TC node type lives in package tcalc, which would otherwise
// import value and create a cycle; the evaluator type-asserts
// it back to *tcalc.Lambda before use.
type Lambda struct {
	Expr interface{}
}

func (l Lambda) Kind() Kind       { return KindLambda }
func (l Lambda) Clone() Value     { return l }
func (l Lambda) String() string   { return "#lambda" }
func (l Lambda) Equal(Value) bool { return false }
func (l Lambda) Compare(Value) int { return -1 }

// Tuple is a fixed-arity ordered list of values. Tuples of
// values carry no column names at runtime; the coltree
// computed during compilation is what gives positions names.
type Tuple []Value

func (t Tuple) Kind() Kind { return KindTuple }
func (t Tuple) Clone() Value {
	out := make(Tuple, len(t))
	for i := range t {
		out[i] = t[i].Clone()
	}
	return out
}
func (t Tuple) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, v := range t {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(v.String())
	}
	b.WriteByte(')')
	return b.String()
}
func (t Tuple) Equal(o Value) bool {
	v, ok := o.(Tuple)
	if !ok || len(v) != len(t) {
		return false
	}
	for i := range t {
		if !t[i].Equal(v[i]) {
			return false
		}
	}
	return true
}
func (t Tuple) Compare(o Value) int {
	v, ok := o.(Tuple)
	if !ok {
		return -1
	}
	for i := 0; i < len(t) && i < len(v); i++ {
		if c := t[i].Compare(v[i]); c != 0 {
			return c
		}
	}
	return cmpInt64(int64(len(t)), int64(len(v)))
}

// At returns the i'th component of the tuple.
func (t Tuple) At(i int) Value { return t[i] }

// Append returns a new tuple with v appended.
func (t Tuple) Append(v Value) Tuple {
	out := make(Tuple, len(t)+1)
	copy(out, t)
	out[len(t)] = v
	return out
}

// Strip returns a new tuple with the component at index i removed.
func (t Tuple) Strip(i int) Tuple {
	out := make(Tuple, 0, len(t)-1)
	out = append(out, t[:i]...)
	out = append(out, t[i+1:]...)
	return out
}

// Replace returns a new tuple with the component at index i replaced.
func (t Tuple) Replace(i int, v Value) Tuple {
	out := slices.Clone([]Value(t))
	out[i] = v
	return Tuple(out)
}

// Set is an unordered, duplicate-free collection of values
// (§3.5). Membership/insertion use Value.Equal, so Set is
// O(n) per operation -- acceptable for the in-core reference
// evaluator (§1 scope: evaluator correctness, not performance).
type Set struct {
	items []Value
}

// NewSet builds a Set from items, de-duplicating via Equal.
func NewSet(items ...Value) *Set {
	s := &Set{}
	for _, it := range items {
		s.Add(it)
	}
	return s
}

func (s *Set) Kind() Kind { return KindSet }
func (s *Set) Clone() Value {
	out := &Set{items: make([]Value, len(s.items))}
	for i, v := range s.items {
		out.items[i] = v.Clone()
	}
	return out
}
func (s *Set) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, v := range s.items {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(v.String())
	}
	b.WriteByte('}')
	return b.String()
}
func (s *Set) Equal(o Value) bool {
	v, ok := o.(*Set)
	if !ok || len(v.items) != len(s.items) {
		return false
	}
	for _, a := range s.items {
		if !v.Contains(a) {
			return false
		}
	}
	return true
}
func (s *Set) Compare(o Value) int {
	v, ok := o.(*Set)
	if !ok {
		return -1
	}
	return cmpInt64(int64(len(s.items)), int64(len(v.items)))
}

// Len returns the number of elements in the set.
func (s *Set) Len() int { return len(s.items) }

// Items returns the set's backing slice; callers must not mutate it.
func (s *Set) Items() []Value { return s.items }

// Contains reports whether v is a member of s.
func (s *Set) Contains(v Value) bool {
	for _, x := range s.items {
		if x.Equal(v) {
			return true
		}
	}
	return false
}

// Add inserts v if not already present (set_add, §6.3).
func (s *Set) Add(v Value) {
	if !s.Contains(v) {
		s.items = append(s.items, v)
	}
}

// Drop removes v if present (set_drop, §6.3).
func (s *Set) Drop(v Value) {
	for i, x := range s.items {
		if x.Equal(v) {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return
		}
	}
}

// Replace substitutes old with new in place (set_replace, §6.3).
func (s *Set) Replace(old, nw Value) {
	for i, x := range s.items {
		if x.Equal(old) {
			s.items[i] = nw
			return
		}
	}
}

// PryOpen expands the set so that the element at position i is
// repeated counts[i] times in sequence, creating sequential
// space for Unnest's expansion (set_pry_open, §6.3). Used when
// the evaluator needs a per-row repeat count aligned 1:1 with
// another column being unnested alongside this one.
func (s *Set) PryOpen(counts []int) []Value {
	var out []Value
	for i, v := range s.items {
		n := 1
		if i < len(counts) {
			n = counts[i]
		}
		for j := 0; j < n; j++ {
			out = append(out, v)
		}
	}
	return out
}

// Sequence is an ordered collection of values, produced by
// Order (§4.11) and by the `++` operator (see Concat).
type Sequence []Value

func (sq Sequence) Kind() Kind { return KindSequence }
func (sq Sequence) Clone() Value {
	out := make(Sequence, len(sq))
	for i, v := range sq {
		out[i] = v.Clone()
	}
	return out
}
func (sq Sequence) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range sq {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(v.String())
	}
	b.WriteByte(']')
	return b.String()
}
func (sq Sequence) Equal(o Value) bool {
	v, ok := o.(Sequence)
	if !ok || len(v) != len(sq) {
		return false
	}
	for i := range sq {
		if !sq[i].Equal(v[i]) {
			return false
		}
	}
	return true
}
func (sq Sequence) Compare(o Value) int {
	v, ok := o.(Sequence)
	if !ok {
		return -1
	}
	for i := 0; i < len(sq) && i < len(v); i++ {
		if c := sq[i].Compare(v[i]); c != 0 {
			return c
		}
	}
	return cmpInt64(int64(len(sq)), int64(len(v)))
}

// Concat returns the concatenation of a and b (used by eval for
// the `++` operator).
func Concat(a, b Sequence) Sequence {
	out := make(Sequence, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}

// Coll is the polymorphic view over Set and Sequence shared
// by operators that accept either (coll_*, §6.3): count, map,
// unnest, order-of-a-sequence.
type Coll interface {
	Value
	Elements() []Value
}

func (s *Set) Elements() []Value { return s.items }
func (sq Sequence) Elements() []Value { return sq }

// AsColl returns v as a Coll, or (nil, false) if v is neither
// a Set nor a Sequence.
func AsColl(v Value) (Coll, bool) {
	c, ok := v.(Coll)
	return c, ok
}

var _ fmt.Stringer = Nil{}
