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

package types

import "testing"

func TestHashConsingIsPointerIdentity(t *testing.T) {
	a := Set(Int_())
	b := Set(Int_())
	if a != b {
		t.Fatal("two calls to Set(Int_()) should return the same interned pointer")
	}

	c := Tuple(Int_(), String_())
	d := Tuple(Int_(), String_())
	if c != d {
		t.Fatal("structurally identical tuples should intern to the same pointer")
	}

	e := Tuple(String_(), Int_())
	if c == e {
		t.Fatal("tuples with different component order should not intern to the same pointer")
	}
}

func TestArity(t *testing.T) {
	if Arity(Int_()) != 1 {
		t.Error("scalar arity should be 1")
	}
	tup := Tuple(Int_(), String_(), Bool_())
	if Arity(tup) != 3 {
		t.Errorf("tuple arity = %d, want 3", Arity(tup))
	}
	if Arity(Set(tup)) != 3 {
		t.Error("Set's arity should delegate to its element type")
	}
}

func TestTupleConcatAppendStrip(t *testing.T) {
	a := Tuple(Int_(), String_())
	b := Tuple(Bool_())
	cat := TupleConcat(a, b)
	if Arity(cat) != 3 {
		t.Fatalf("TupleConcat arity = %d, want 3", Arity(cat))
	}
	if GetNth(cat, 2) != Bool_() {
		t.Error("TupleConcat should flatten, not nest, its operands")
	}

	appended := TupleAppend(a, Bool_())
	if appended != cat {
		t.Fatal("TupleAppend(a, Bool_()) should hash-cons to the same type as TupleConcat(a, tuple(Bool_()))")
	}

	stripped := TupleStrip(cat, 0)
	if Arity(stripped) != 2 || GetNth(stripped, 0) != String_() {
		t.Fatal("TupleStrip should remove exactly the named component")
	}
}

func TestMatchSpecialize(t *testing.T) {
	if !MatchSpecialize(AbsNumberT(), Int_()) {
		t.Error("Int should specialize AbsNumber")
	}
	if MatchSpecialize(AbsNumberT(), String_()) {
		t.Error("String should not specialize AbsNumber")
	}
	if !MatchSpecialize(AbsTop(), Int_()) {
		t.Error("every type should specialize AbsTop")
	}
	if MatchSpecialize(AbsBottomT(), Int_()) {
		t.Error("AbsBottom should specialize nothing")
	}
}

func TestMatchGeneralize(t *testing.T) {
	if got := MatchGeneralize(Int_(), Double_()); got != Double_() {
		t.Errorf("generalizing int and double should widen to double, got %s", got)
	}
	if got := MatchGeneralize(Int_(), Int_()); got != Int_() {
		t.Error("generalizing int with itself should stay int")
	}
	if got := MatchGeneralize(Int_(), String_()); got != AbsTop() {
		t.Error("generalizing incompatible kinds should fall back to AbsTop")
	}
}

func TestTypeStringRendersStructure(t *testing.T) {
	tup := Tuple(Int_(), Set(String_()))
	if got, want := tup.String(), "tuple(int,set(string))"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
