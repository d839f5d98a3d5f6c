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

// Package types implements the hash-consed datatype lattice
// used by typeinf/typecheck (§3.3). Equality between Types is
// pointer equality; the only way to build a Type is through
// this package's constructors, which intern every composite
// through a process-wide table keyed by a structural hash
// (computed with siphash, matching the teacher's habit of
// hashing structural keys -- see plan/partset.go's ion-encoded
// group keys -- but over a purpose-built key encoding here
// instead of ion).
package types

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dchest/siphash"
)

// Kind is the tag of a Type's variant.
type Kind int

const (
	Unit Kind = iota
	Bool
	Int
	Double
	String

	// distinguished tokens
	Distinguisher
	DBObj
	DBEdge
	PathElement

	Struct // opaque heap object

	// abstract types
	AbsAny
	AbsBottom
	AbsNumber
	AbsDBObj
	AbsDBEdge
	AbsDBOther
	AbsTop // universal type, used when no constraint is known

	// composites
	TupleKind
	SetKind
	SequenceKind
	LambdaKind
)

// Type is a hash-consed datatype. Two Types are equal iff
// they are the same pointer (§3.3).
type Type struct {
	Kind Kind
	// Elem is the element type for Set/Sequence, the return
	// type for Lambda.
	Elem *Type
	// Arg is the lambda argument type (Lambda only).
	Arg *Type
	// Components is the member list for Tuple.
	Components []*Type
}

var (
	unitT          = &Type{Kind: Unit}
	boolT          = &Type{Kind: Bool}
	intT           = &Type{Kind: Int}
	doubleT        = &Type{Kind: Double}
	stringT        = &Type{Kind: String}
	distinguisherT = &Type{Kind: Distinguisher}
	dbobjT         = &Type{Kind: DBObj}
	dbedgeT        = &Type{Kind: DBEdge}
	pathelementT   = &Type{Kind: PathElement}
	structT        = &Type{Kind: Struct}
	absAnyT        = &Type{Kind: AbsAny}
	absBottomT     = &Type{Kind: AbsBottom}
	absNumberT     = &Type{Kind: AbsNumber}
	absDBObjT      = &Type{Kind: AbsDBObj}
	absDBEdgeT     = &Type{Kind: AbsDBEdge}
	absDBOtherT    = &Type{Kind: AbsDBOther}
	absTopT        = &Type{Kind: AbsTop}
)

func Unit_() *Type          { return unitT }
func Bool_() *Type          { return boolT }
func Int_() *Type           { return intT }
func Double_() *Type        { return doubleT }
func String_() *Type        { return stringT }
func DistinguisherT() *Type { return distinguisherT }
func DBObjT() *Type         { return dbobjT }
func DBEdgeT() *Type        { return dbedgeT }
func PathElementT() *Type   { return pathelementT }
func StructT() *Type        { return structT }
func AbsAnyT() *Type        { return absAnyT }
func AbsBottomT() *Type     { return absBottomT }
func AbsNumberT() *Type     { return absNumberT }
func AbsDBObjT() *Type      { return absDBObjT }
func AbsDBEdgeT() *Type     { return absDBEdgeT }
func AbsDBOtherT() *Type    { return absDBOtherT }
func AbsTop() *Type         { return absTopT }

// intern table for composite types, keyed by structural hash.
// Collisions are resolved by an equality check against the
// bucket so that hash-consing stays correct even with a
// truncated 64-bit key.
var (
	internMu sync.Mutex
	interned = map[uint64][]*Type{}
)

const (
	hashK0 = 0x646f6c7468756221
	hashK1 = 0x736e656c6c657221
)

func intern(t *Type, key []byte) *Type {
	h := siphash.Hash(hashK0, hashK1, key)
	internMu.Lock()
	defer internMu.Unlock()
	for _, cand := range interned[h] {
		if structEqual(cand, t) {
			return cand
		}
	}
	interned[h] = append(interned[h], t)
	return t
}

func structEqual(a, b *Type) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case SetKind, SequenceKind:
		return a.Elem == b.Elem
	case LambdaKind:
		return a.Arg == b.Arg && a.Elem == b.Elem
	case TupleKind:
		if len(a.Components) != len(b.Components) {
			return false
		}
		for i := range a.Components {
			if a.Components[i] != b.Components[i] {
				return false
			}
		}
		return true
	}
	return true
}

// Set returns the hash-consed type set(elem).
func Set(elem *Type) *Type {
	key := append([]byte{byte(SetKind)}, keyOf(elem)...)
	return intern(&Type{Kind: SetKind, Elem: elem}, key)
}

// Sequence returns the hash-consed type sequence(elem).
func Sequence(elem *Type) *Type {
	key := append([]byte{byte(SequenceKind)}, keyOf(elem)...)
	return intern(&Type{Kind: SequenceKind, Elem: elem}, key)
}

// Lambda returns the hash-consed type lambda(arg, ret).
func Lambda(arg, ret *Type) *Type {
	key := append([]byte{byte(LambdaKind)}, append(keyOf(arg), keyOf(ret)...)...)
	return intern(&Type{Kind: LambdaKind, Arg: arg, Elem: ret}, key)
}

// Tuple returns the hash-consed flat tuple type tuple(ts...).
// Tuple never contains a tuple directly (§3.3); callers that
// nest are expected to have flattened already (TupleConcat
// enforces this).
func Tuple(ts ...*Type) *Type {
	key := []byte{byte(TupleKind)}
	for _, t := range ts {
		key = append(key, keyOf(t)...)
	}
	comps := append([]*Type(nil), ts...)
	return intern(&Type{Kind: TupleKind, Components: comps}, key)
}

func keyOf(t *Type) []byte {
	if t == nil {
		return []byte{0xff}
	}
	// t is always an interned (or primitive singleton) pointer,
	// so its address uniquely identifies it for hashing purposes.
	return []byte(fmt.Sprintf("%d:%p;", t.Kind, t))
}

// Arity returns the tuple arity of t: for a Tuple, the number
// of components; for a Set/Sequence, the arity of the element
// type; otherwise 1 (a scalar), matching §4.7's "nonset arity".
func Arity(t *Type) int {
	switch t.Kind {
	case TupleKind:
		return len(t.Components)
	case SetKind, SequenceKind:
		return Arity(t.Elem)
	default:
		return 1
	}
}

// GetNth returns the n'th component of a tuple type.
func GetNth(t *Type, n int) *Type {
	if t.Kind != TupleKind || n < 0 || n >= len(t.Components) {
		return absTopT
	}
	return t.Components[n]
}

// TupleConcat concatenates the (flattened) components of a and b.
func TupleConcat(a, b *Type) *Type {
	return Tuple(append(append([]*Type{}, flatComponents(a)...), flatComponents(b)...)...)
}

// TupleAppend appends t as one more component of a tuple type.
func TupleAppend(a, t *Type) *Type {
	return Tuple(append(append([]*Type{}, flatComponents(a)...), t)...)
}

// TupleStrip removes the n'th component from a tuple type.
func TupleStrip(a *Type, n int) *Type {
	comps := flatComponents(a)
	out := make([]*Type, 0, len(comps)-1)
	out = append(out, comps[:n]...)
	out = append(out, comps[n+1:]...)
	return Tuple(out...)
}

func flatComponents(t *Type) []*Type {
	if t == nil {
		return nil
	}
	if t.Kind == TupleKind {
		return t.Components
	}
	return []*Type{t}
}

// MatchSpecialize reports whether b is a subtype of (is B <= A)
// the constraint a -- i.e. a value of type b may be used
// wherever a is expected.
func MatchSpecialize(a, b *Type) bool {
	if a == b {
		return true
	}
	if a.Kind == AbsTop {
		return true
	}
	switch a.Kind {
	case AbsAny:
		return true
	case AbsNumber:
		return b.Kind == Int || b.Kind == Double || b.Kind == AbsNumber
	case AbsDBObj:
		return b.Kind == DBObj || b.Kind == AbsDBObj
	case AbsDBEdge:
		return b.Kind == DBEdge || b.Kind == AbsDBEdge
	case AbsDBOther:
		return b.Kind == Struct || b.Kind == PathElement || b.Kind == AbsDBOther
	case AbsBottom:
		return false
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case SetKind, SequenceKind:
		return MatchSpecialize(a.Elem, b.Elem)
	case LambdaKind:
		return MatchSpecialize(a.Arg, b.Arg) && MatchSpecialize(a.Elem, b.Elem)
	case TupleKind:
		if len(a.Components) != len(b.Components) {
			return false
		}
		for i := range a.Components {
			if !MatchSpecialize(a.Components[i], b.Components[i]) {
				return false
			}
		}
		return true
	}
	return true
}

// MatchGeneralize computes the least upper bound of a and b,
// falling back to AbsTop when no common generalization exists.
func MatchGeneralize(a, b *Type) *Type {
	if a == b {
		return a
	}
	if a.Kind == AbsTop || b.Kind == AbsTop {
		return absTopT
	}
	if a.Kind == AbsBottom {
		return b
	}
	if b.Kind == AbsBottom {
		return a
	}
	if (a.Kind == Int || a.Kind == Double) && (b.Kind == Int || b.Kind == Double) {
		if a.Kind == b.Kind {
			return a
		}
		return doubleT
	}
	if a.Kind == DBObj || b.Kind == DBObj {
		if a.Kind == DBObj && b.Kind == DBObj {
			return dbobjT
		}
		return absDBObjT
	}
	if a.Kind != b.Kind {
		return absTopT
	}
	switch a.Kind {
	case SetKind:
		return Set(MatchGeneralize(a.Elem, b.Elem))
	case SequenceKind:
		return Sequence(MatchGeneralize(a.Elem, b.Elem))
	case TupleKind:
		if len(a.Components) != len(b.Components) {
			return absTopT
		}
		out := make([]*Type, len(a.Components))
		for i := range out {
			out[i] = MatchGeneralize(a.Components[i], b.Components[i])
		}
		return Tuple(out...)
	}
	return absTopT
}

// String renders t for diagnostics and dumps.
func (t *Type) String() string {
	switch t.Kind {
	case Unit:
		return "unit"
	case Bool:
		return "bool"
	case Int:
		return "int"
	case Double:
		return "double"
	case String:
		return "string"
	case Distinguisher:
		return "distinguisher"
	case DBObj:
		return "dbobj"
	case DBEdge:
		return "dbedge"
	case PathElement:
		return "pathelement"
	case Struct:
		return "struct"
	case AbsAny:
		return "absany"
	case AbsBottom:
		return "absbottom"
	case AbsNumber:
		return "absnumber"
	case AbsDBObj:
		return "absdbobj"
	case AbsDBEdge:
		return "absdbedge"
	case AbsDBOther:
		return "absdbother"
	case AbsTop:
		return "abstop"
	case SetKind:
		return "set(" + t.Elem.String() + ")"
	case SequenceKind:
		return "sequence(" + t.Elem.String() + ")"
	case LambdaKind:
		return "lambda(" + t.Arg.String() + "->" + t.Elem.String() + ")"
	case TupleKind:
		parts := make([]string, len(t.Components))
		for i, c := range t.Components {
			parts[i] = c.String()
		}
		return "tuple(" + strings.Join(parts, ",") + ")"
	}
	return "?"
}
