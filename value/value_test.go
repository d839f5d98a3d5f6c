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

import "testing"

func TestIntFloatEqualAcrossKinds(t *testing.T) {
	if !Int(3).Equal(Float(3.0)) {
		t.Error("Int(3) should equal Float(3.0)")
	}
	if !Float(3.0).Equal(Int(3)) {
		t.Error("Float(3.0) should equal Int(3)")
	}
	if Int(3).Equal(Int(4)) {
		t.Error("Int(3) should not equal Int(4)")
	}
}

func TestCompareOrdering(t *testing.T) {
	if Int(1).Compare(Int(2)) >= 0 {
		t.Error("1 should compare less than 2")
	}
	if String("a").Compare(String("b")) >= 0 {
		t.Error(`"a" should compare less than "b"`)
	}
}

func TestNilEquality(t *testing.T) {
	if !(Nil{}).Equal(Nil{}) {
		t.Error("Nil should equal Nil")
	}
	if (Nil{}).Equal(Int(0)) {
		t.Error("Nil should not equal Int(0)")
	}
}

func TestDistinguisherUniqueness(t *testing.T) {
	a := NewDistinguisher()
	b := NewDistinguisher()
	if a.Equal(b) {
		t.Error("two fresh distinguishers should not be equal")
	}
	if !a.Equal(a) {
		t.Error("a distinguisher should equal itself")
	}
}

func TestSetDeduplicatesByEqual(t *testing.T) {
	s := NewSet(Int(1), Int(2), Int(1), Float(2.0))
	if s.Len() != 2 {
		t.Fatalf("got Len()=%d, want 2 (Float(2.0) should dedup against Int(2))", s.Len())
	}
	if !s.Contains(Int(2)) {
		t.Error("set should contain 2")
	}
	s.Drop(Int(1))
	if s.Contains(Int(1)) {
		t.Error("set should no longer contain 1 after Drop")
	}
}

func TestSetEqualIgnoresOrder(t *testing.T) {
	a := NewSet(Int(1), Int(2), Int(3))
	b := NewSet(Int(3), Int(2), Int(1))
	if !a.Equal(b) {
		t.Error("sets with the same elements in different orders should be equal")
	}
}

func TestTupleAppendStripReplace(t *testing.T) {
	tup := Tuple{Int(1), Int(2)}
	tup2 := tup.Append(Int(3))
	if tup2.At(2) != Int(3) {
		t.Fatalf("Append: At(2) = %v, want 3", tup2.At(2))
	}
	if len(tup) != 2 {
		t.Fatal("Append must not mutate the original tuple")
	}

	stripped := tup2.Strip(0)
	if !stripped.Equal(Tuple{Int(2), Int(3)}) {
		t.Fatalf("Strip(0) = %v, want (2, 3)", stripped)
	}

	replaced := tup2.Replace(1, Int(99))
	if !replaced.Equal(Tuple{Int(1), Int(99), Int(3)}) {
		t.Fatalf("Replace(1, 99) = %v, want (1, 99, 3)", replaced)
	}
}

func TestSequenceConcatPreservesOrder(t *testing.T) {
	a := Sequence{Int(1), Int(2)}
	b := Sequence{Int(3)}
	got := Concat(a, b)
	want := Sequence{Int(1), Int(2), Int(3)}
	if !got.Equal(want) {
		t.Fatalf("Concat = %v, want %v", got, want)
	}
}

func TestAsColl(t *testing.T) {
	if _, ok := AsColl(NewSet(Int(1))); !ok {
		t.Error("*Set should satisfy Coll")
	}
	if _, ok := AsColl(Sequence{Int(1)}); !ok {
		t.Error("Sequence should satisfy Coll")
	}
	if _, ok := AsColl(Int(1)); ok {
		t.Error("Int should not satisfy Coll")
	}
}

func TestPryOpenRepeatsByCount(t *testing.T) {
	s := NewSet(String("a"), String("b"))
	got := s.PryOpen([]int{2, 1})
	if len(got) != 3 {
		t.Fatalf("got %d elements, want 3", len(got))
	}
}

func TestStructIdentityByID(t *testing.T) {
	a := Struct{ID: "obj1"}
	b := Struct{ID: "obj1"}
	c := Struct{ID: "obj2"}
	if !a.Equal(b) {
		t.Error("structs with the same ID should be equal")
	}
	if a.Equal(c) {
		t.Error("structs with different IDs should not be equal")
	}
}
